package structure

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a structure from YAML/JSON bytes and validates it.
func ParseYAML(data []byte) (Structure, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Structure{}, fmt.Errorf("structure: payload is empty")
	}
	var s Structure
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Structure{}, fmt.Errorf("structure: decode: %w", err)
	}
	if s.Lattice != nil && !s.Periodic() {
		// A lattice with no pbc flags means fully periodic.
		s.PBC = [3]bool{true, true, true}
	}
	if err := s.Validate(); err != nil {
		return Structure{}, err
	}
	return s, nil
}

// LoadFile loads a structure from an explicit file path.
func LoadFile(path string) (Structure, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Structure{}, fmt.Errorf("structure: read %s: %w", path, err)
	}
	s, parseErr := ParseYAML(content)
	if parseErr != nil {
		return Structure{}, fmt.Errorf("structure: %s: %w", path, parseErr)
	}
	return s, nil
}
