// flowc is the headless workflow compiler: it assembles a workflow
// definition plus a structure into a graph and prints the engine hand-off
// JSON on stdout. It never launches calculations or opens a TUI, so it is
// suitable for pipelines and remote submission scripts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aimsflow/internal/config"
	"aimsflow/internal/outputs"
	"aimsflow/internal/params"
	"aimsflow/internal/presets"
	"aimsflow/internal/structure"
	"aimsflow/internal/workflow"
	"aimsflow/internal/workflow/assembler"
)

func main() {
	workflowPath := flag.String("workflow", "", "workflow definition YAML file")
	structurePath := flag.String("structure", "", "structure YAML file")
	projectDir := flag.String("project", "", "project directory holding .aimsflow (defaults to cwd)")
	compact := flag.Bool("compact", false, "emit compact JSON instead of indented")
	flag.Parse()

	if strings.TrimSpace(*workflowPath) == "" {
		die("--workflow is required")
	}
	if strings.TrimSpace(*structurePath) == "" {
		die("--structure is required")
	}
	project := strings.TrimSpace(*projectDir)
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
		project = cwd
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}

	def, err := workflow.LoadDefinitionFile(*workflowPath)
	if err != nil {
		die("%v", err)
	}
	s, err := structure.LoadFile(*structurePath)
	if err != nil {
		die("%v", err)
	}
	registry := params.NewRegistry()
	if err := presets.Register(registry, cfg.PresetsDir()); err != nil {
		die("load presets: %v", err)
	}
	docs, problems := outputs.NewStore(cfg.CalcsDir()).LoadAll()
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

	var encoded []byte
	if *compact {
		encoded, err = json.Marshal(graph)
	} else {
		encoded, err = json.MarshalIndent(graph, "", "  ")
	}
	if err != nil {
		die("encode graph: %v", err)
	}
	fmt.Println(string(encoded))
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
