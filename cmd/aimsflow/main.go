// Entry point for the aimsflow CLI.
//
// Subcommands:
//
//	aimsflow init                 set up the .aimsflow project directory
//	aimsflow flavors              list registered flavors and presets
//	aimsflow build ...            assemble a workflow and materialize inputs
//	aimsflow inspect ...          open the interactive graph inspector
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aimsflow/internal/config"
	"aimsflow/internal/flows"
	"aimsflow/internal/job"
	"aimsflow/internal/logging"
	"aimsflow/internal/outputs"
	"aimsflow/internal/params"
	"aimsflow/internal/presets"
	"aimsflow/internal/structure"
	"aimsflow/internal/tui"
	"aimsflow/internal/workflow"
	"aimsflow/internal/workflow/assembler"
	"aimsflow/internal/workflow/planner"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "init":
		runInit()
	case "flavors":
		runFlavors()
	case "build":
		runBuild(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(`
usage: aimsflow <command> [flags]

commands:
  init      create the .aimsflow directory structure
  flavors   list builtin flavors and project presets
  build     assemble a workflow and write stage input files
  inspect   open the interactive graph inspector
`))
}

func runInit() {
	cwd := mustGetwd()
	if err := config.InitProjectDir(cwd); err != nil {
		die("init %s: %v", config.ProjectDirName, err)
	}
	fmt.Printf("Initialized %s in %s\n", config.ProjectDirName, cwd)
}

func runFlavors() {
	cwd := mustGetwd()
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		die("load config: %v", err)
	}
	registry := params.NewRegistry()
	if err := presets.Register(registry, cfg.PresetsDir()); err != nil {
		die("load presets: %v", err)
	}
	names := registry.Names()
	sort.Strings(names)
	for _, name := range names {
		recipe, err := registry.Resolve(name)
		if err != nil {
			die("resolve %s: %v", name, err)
		}
		line := name
		if string(recipe.Flavor) != name {
			line += fmt.Sprintf(" (%s)", recipe.Flavor)
		}
		if recipe.Description != "" {
			line += "  " + recipe.Description
		}
		fmt.Println(line)
	}
}

type buildArgs struct {
	workflowName  string
	structurePath string
	dryRun        bool
}

func parseBuildArgs(name string, argv []string) buildArgs {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	workflowName := fs.String("workflow", "", "workflow name, YAML file, or builtin flow")
	structurePath := fs.String("structure", "", "structure YAML file")
	dryRun := fs.Bool("dry-run", false, "assemble without writing input files")
	fs.Parse(argv)
	return buildArgs{
		workflowName:  strings.TrimSpace(*workflowName),
		structurePath: strings.TrimSpace(*structurePath),
		dryRun:        *dryRun,
	}
}

func runBuild(argv []string) {
	args := parseBuildArgs("build", argv)
	if args.structurePath == "" {
		die("--structure is required")
	}
	cwd := mustGetwd()
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		die("load config: %v", err)
	}
	logger, err := logging.New(cwd)
	if err != nil {
		die("open log: %v", err)
	}
	defer logger.Close()

	graph, plan := assembleProject(cfg, args.workflowName, args.structurePath)
	logger.Printf("assembled workflow %s: %d stages, %d ready", graph.ID, graph.Len(), len(plan.Ready))

	if args.dryRun {
		emitGraph(graph)
		return
	}
	for _, node := range graph.Nodes() {
		if err := materialize(node.Spec); err != nil {
			die("write inputs for %s: %v", node.Spec.Stage, err)
		}
		logger.Printf("stage %s: inputs written to %s", node.Spec.Stage, node.Spec.Workdir)
		fmt.Printf("%-20s %s\n", node.Spec.Stage, node.Spec.Workdir)
	}
}

func runInspect(argv []string) {
	args := parseBuildArgs("inspect", argv)
	if args.structurePath == "" {
		die("--structure is required")
	}
	cwd := mustGetwd()
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		die("load config: %v", err)
	}
	graph, plan := assembleProject(cfg, args.workflowName, args.structurePath)
	if err := tui.Run(graph, plan); err != nil {
		die("%v", err)
	}
}

// assembleProject wires the project collaborators together: presets into
// the registry, prior documents from the output store, and the generator
// from config.
func assembleProject(cfg *config.Config, workflowName, structurePath string) (*workflow.Graph, planner.Plan) {
	s, err := structure.LoadFile(structurePath)
	if err != nil {
		die("load structure: %v", err)
	}
	def, err := resolveDefinition(cfg, workflowName)
	if err != nil {
		die("load workflow: %v", err)
	}
	registry := params.NewRegistry()
	if err := presets.Register(registry, cfg.PresetsDir()); err != nil {
		die("load presets: %v", err)
	}
	store := outputs.NewStore(cfg.CalcsDir())
	docs, problems := store.LoadAll()
	for _, problem := range problems {
		fmt.Fprintf(os.Stderr, "warning: %v\n", problem)
	}
	graph, err := assembler.Assemble(def, s, assembler.Options{
		Generator:   cfg.Generator(),
		Registry:    registry,
		Command:     cfg.Command(),
		CodeVersion: cfg.CodeVersion(),
		WorkRoot:    cfg.CalcsDir(),
		PriorDocs:   docs,
	})
	if err != nil {
		die("assemble: %v", err)
	}
	plan, err := planner.Preview(graph, planner.Snapshot{Docs: docs})
	if err != nil {
		die("preview: %v", err)
	}
	return graph, plan
}

// resolveDefinition accepts a YAML file path, a name under
// .aimsflow/workflows, or a builtin flow name. An empty name falls back to
// the configured default workflow.
func resolveDefinition(cfg *config.Config, name string) (workflow.Definition, error) {
	if name == "" {
		name = cfg.DefaultWorkflow()
	}
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		if _, err := os.Stat(name); err == nil {
			return workflow.LoadDefinitionFile(name)
		}
	}
	for _, candidate := range []string{name + ".yaml", name + ".yml"} {
		path := filepath.Join(cfg.WorkflowsDir(), candidate)
		if _, err := os.Stat(path); err == nil {
			return workflow.LoadDefinitionFile(path)
		}
	}
	return builtinFlow(name)
}

func builtinFlow(name string) (workflow.Definition, error) {
	switch name {
	case "double-relax":
		return flows.DoubleRelax(flows.DoubleRelaxOptions{}), nil
	case "band-structure":
		return flows.BandStructure(flows.BandStructureOptions{}), nil
	case "phonon":
		return flows.Phonon(flows.PhononOptions{}), nil
	default:
		return workflow.Definition{}, fmt.Errorf("no workflow named %q (not a file, project workflow, or builtin flow)", name)
	}
}

// materialize writes a stage's rendered input files into its workdir.
func materialize(spec job.Spec) error {
	if err := os.MkdirAll(spec.Workdir, 0o755); err != nil {
		return err
	}
	for _, name := range spec.SortedFileNames() {
		path := filepath.Join(spec.Workdir, name)
		if err := os.WriteFile(path, []byte(spec.InputFiles[name]), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func emitGraph(graph *workflow.Graph) {
	encoded, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		die("encode graph: %v", err)
	}
	fmt.Println(string(encoded))
}

func mustGetwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		die("determine working directory: %v", err)
	}
	return cwd
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
