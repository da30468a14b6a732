// Package presets loads user-defined flavor recipes from YAML files. A
// preset names a builtin flavor and layers a parameter overlay on top, so
// projects can register variants like relax-tight or static-hse without
// writing code. Presets live under the project directory and are registered
// into the recipe registry at startup.
package presets

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"aimsflow/internal/params"
)

// Definition mirrors the on-disk schema under .aimsflow/presets/*.yaml.
type Definition struct {
	Name        string     `json:"name" yaml:"name"`
	Flavor      string     `json:"flavor" yaml:"flavor"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Overlay     params.Set `json:"overlay,omitempty" yaml:"overlay,omitempty"`
}

// Normalized returns a trimmed copy of the definition.
func (def Definition) Normalized() Definition {
	clone := Definition{
		Name:        strings.TrimSpace(def.Name),
		Flavor:      strings.TrimSpace(def.Flavor),
		Description: strings.TrimSpace(def.Description),
	}
	if len(def.Overlay) > 0 {
		clone.Overlay = def.Overlay.Clone()
	}
	return clone
}

// Validate ensures the preset is well-formed and names a builtin flavor.
func (def Definition) Validate() error {
	normalized := def.Normalized()
	if normalized.Name == "" {
		return fmt.Errorf("preset: name is required")
	}
	if normalized.Flavor == "" {
		return fmt.Errorf("preset %s: flavor is required", normalized.Name)
	}
	if _, err := params.ParseFlavor(normalized.Flavor); err != nil {
		return fmt.Errorf("preset %s: %w", normalized.Name, err)
	}
	return nil
}

// Recipe converts the preset into a registrable recipe.
func (def Definition) Recipe() (params.Recipe, error) {
	normalized := def.Normalized()
	if err := normalized.Validate(); err != nil {
		return params.Recipe{}, err
	}
	flavor, err := params.ParseFlavor(normalized.Flavor)
	if err != nil {
		return params.Recipe{}, err
	}
	return params.Recipe{
		Flavor:      flavor,
		Description: normalized.Description,
		Overlay:     normalized.Overlay.Clone(),
	}, nil
}

// File pairs a parsed preset with its on-disk source.
type File struct {
	Definition Definition
	Path       string
}

// ParseYAML decodes and validates a single preset payload.
func ParseYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("preset: payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("preset: decode: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def.Normalized(), nil
}

// LoadFile reads one preset file from disk.
func LoadFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("preset: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("preset: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("preset: read %s: %w", path, err)
	}
	def, err := ParseYAML(data)
	if err != nil {
		return File{}, fmt.Errorf("preset: %s: %w", path, err)
	}
	return File{Definition: def, Path: filepath.Clean(path)}, nil
}

// LoadDir scans a directory for *.yaml presets. A missing directory means
// no presets, to simplify startup.
func LoadDir(dir string) ([]File, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("preset: read %s: %w", trimmed, err)
	}
	var files []File
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		file, err := LoadFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Register discovers presets under dir and registers them into the
// registry. Duplicate names across files are an error before anything is
// registered.
func Register(reg *params.Registry, dir string) error {
	if reg == nil {
		return nil
	}
	files, err := LoadDir(dir)
	if err != nil {
		return err
	}
	seen := map[string]string{}
	recipes := make([]params.Recipe, len(files))
	for i, file := range files {
		def := file.Definition
		if existing, ok := seen[def.Name]; ok {
			return fmt.Errorf("preset: duplicate name %s (%s and %s)", def.Name, existing, file.Path)
		}
		seen[def.Name] = file.Path
		recipe, err := def.Recipe()
		if err != nil {
			return fmt.Errorf("preset: %s: %w", file.Path, err)
		}
		recipes[i] = recipe
	}
	for i, file := range files {
		if err := reg.Register(file.Definition.Name, recipes[i]); err != nil {
			return fmt.Errorf("preset: register %s from %s: %w", file.Definition.Name, file.Path, err)
		}
	}
	return nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
