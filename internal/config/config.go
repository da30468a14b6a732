// Package config handles project configuration and the .aimsflow directory
// structure. Every project gets a .aimsflow/ folder holding workflow
// definitions, flavor presets, calculation directories, and logs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"aimsflow/internal/params"
)

const (
	// ProjectDirName is the directory created in each project root.
	ProjectDirName = ".aimsflow"

	defaultWorkflowID = "band-structure"
	defaultCodeName   = "aims.x"
)

const defaultProjectConfigYAML = `# aimsflow project configuration
version: 1

# How to invoke FHI-aims. The version string feeds job fingerprints, so
# bump it when the binary changes.
aims:
  command: [mpirun, aims.x]
  version: ""

# Parameter generation defaults applied to every stage. Band-structure and
# gw flavors additionally need a band_path, e.g.:
#   band_path:
#     - {from: [0, 0, 0], to: [0.5, 0, 0.5], from_label: G, to_label: X, points: 21}
generator:
  species_dir: light
  k_point_density: 5.0
  strict: false

workflows:
  default: band-structure
`

// AimsConfig declares how the external code is launched.
type AimsConfig struct {
	Command []string `yaml:"command"`
	Version string   `yaml:"version,omitempty"`
}

// GeneratorConfig captures project-wide parameter generation defaults.
type GeneratorConfig struct {
	SpeciesDir    string               `yaml:"species_dir,omitempty"`
	KPointDensity float64              `yaml:"k_point_density,omitempty"`
	Strict        bool                 `yaml:"strict,omitempty"`
	BandPath      []params.BandSegment `yaml:"band_path,omitempty"`
}

// WorkflowConfig captures workflow preferences.
type WorkflowConfig struct {
	Default   string   `yaml:"default"`
	Available []string `yaml:"available,omitempty"`
}

// ProjectConfig models .aimsflow/config.yaml.
type ProjectConfig struct {
	Version   int             `yaml:"version"`
	Aims      AimsConfig      `yaml:"aims"`
	Generator GeneratorConfig `yaml:"generator"`
	Workflows WorkflowConfig  `yaml:"workflows"`
}

// Config holds the runtime configuration for one project.
type Config struct {
	// ProjectDir is the directory the CLI was launched from.
	ProjectDir string
	// FlowDir is ProjectDir/.aimsflow.
	FlowDir string

	Project ProjectConfig
}

// InitProjectDir creates the .aimsflow directory structure:
//
// .aimsflow/
// ├── calcs/      <- stage working directories and output documents
// ├── workflows/  <- YAML workflow definitions
// ├── presets/    <- YAML flavor presets
// └── logs/       <- assembly and inspection logs
func InitProjectDir(projectDir string) error {
	flowDir := filepath.Join(projectDir, ProjectDirName)
	dirs := []string{
		filepath.Join(flowDir, "calcs"),
		filepath.Join(flowDir, "workflows"),
		filepath.Join(flowDir, "presets"),
		filepath.Join(flowDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(flowDir, "config.yaml"))
}

// NewConfig loads the configuration for a project directory. A missing
// config file yields the defaults.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		FlowDir:    filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CalcsDir returns the directory stage workdirs are materialized in.
func (c *Config) CalcsDir() string {
	return filepath.Join(c.FlowDir, "calcs")
}

// WorkflowsDir returns the directory holding YAML workflow definitions.
func (c *Config) WorkflowsDir() string {
	return filepath.Join(c.FlowDir, "workflows")
}

// PresetsDir returns the directory holding YAML flavor presets.
func (c *Config) PresetsDir() string {
	return filepath.Join(c.FlowDir, "presets")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.FlowDir, "logs")
}

// ProjectConfigPath returns the on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.FlowDir, "config.yaml")
}

// Command returns the configured code invocation.
func (c *Config) Command() []string {
	if len(c.Project.Aims.Command) == 0 {
		return []string{defaultCodeName}
	}
	return append([]string{}, c.Project.Aims.Command...)
}

// CodeVersion returns the configured code version string.
func (c *Config) CodeVersion() string {
	return c.Project.Aims.Version
}

// Generator builds a parameter generator from the project defaults.
func (c *Config) Generator() params.Generator {
	gen := params.Generator{
		KPointDensity: c.Project.Generator.KPointDensity,
		Strict:        c.Project.Generator.Strict,
		BandPath:      append([]params.BandSegment{}, c.Project.Generator.BandPath...),
	}
	if c.Project.Generator.SpeciesDir != "" {
		gen.Base = params.Set{"species_dir": c.Project.Generator.SpeciesDir}
	}
	return gen
}

// DefaultWorkflow returns the configured default workflow identifier.
func (c *Config) DefaultWorkflow() string {
	return c.Project.Workflows.Default
}

// SetDefaultWorkflow updates the default workflow identifier and persists
// the value back to .aimsflow/config.yaml. The ID is also appended to the
// available list so selectors can display it on future launches.
func (c *Config) SetDefaultWorkflow(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: workflow id is required")
	}
	c.Project.Workflows.Default = id
	if !contains(c.Project.Workflows.Available, id) {
		c.Project.Workflows.Available = append(c.Project.Workflows.Available, id)
	}
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Aims:    AimsConfig{Command: []string{defaultCodeName}},
		Generator: GeneratorConfig{
			SpeciesDir:    "light",
			KPointDensity: 5.0,
		},
		Workflows: WorkflowConfig{Default: defaultWorkflowID},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if len(pc.Aims.Command) == 0 {
		pc.Aims.Command = []string{defaultCodeName}
	}
	if pc.Generator.KPointDensity == 0 {
		pc.Generator.KPointDensity = 5.0
	}
}

func (pc *ProjectConfig) normalize() {
	for i := range pc.Aims.Command {
		pc.Aims.Command[i] = strings.TrimSpace(pc.Aims.Command[i])
	}
	pc.Aims.Version = strings.TrimSpace(pc.Aims.Version)
	pc.Generator.SpeciesDir = strings.TrimSpace(pc.Generator.SpeciesDir)
	pc.Workflows.Default = strings.TrimSpace(pc.Workflows.Default)
	if pc.Workflows.Default == "" {
		pc.Workflows.Default = defaultWorkflowID
	}
	if len(pc.Workflows.Available) > 0 && !contains(pc.Workflows.Available, pc.Workflows.Default) {
		pc.Workflows.Available = append(pc.Workflows.Available, pc.Workflows.Default)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	for i, part := range pc.Aims.Command {
		if part == "" {
			return fmt.Errorf("aims.command[%d] is empty", i)
		}
	}
	if pc.Generator.KPointDensity < 0 {
		return fmt.Errorf("generator.k_point_density must not be negative")
	}
	if strings.TrimSpace(pc.Workflows.Default) == "" {
		return fmt.Errorf("workflows.default is required")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.FlowDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure project dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
