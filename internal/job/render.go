package job

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"aimsflow/internal/params"
	"aimsflow/internal/structure"
)

// renderInputFiles produces the input deck for a spec. control.in and
// parameters.json are always rendered; geometry.in requires a concrete
// structure.
func renderInputFiles(spec Spec) (map[string]string, error) {
	control, err := RenderControl(spec.Parameters)
	if err != nil {
		return nil, err
	}
	paramsJSON, err := json.MarshalIndent(spec.Parameters, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", ParametersFile, err)
	}
	files := map[string]string{
		ControlFile:    control,
		ParametersFile: string(paramsJSON) + "\n",
	}
	if spec.Structure != nil {
		files[GeometryFile] = RenderGeometry(*spec.Structure)
	}
	return files, nil
}

// RenderControl renders a parameter set as control.in text. Keys are
// emitted in sorted order so the output is byte-stable for identical sets.
func RenderControl(set params.Set) (string, error) {
	var sb strings.Builder
	for _, key := range set.Keys() {
		if err := writeControlOption(&sb, key, set[key]); err != nil {
			return "", fmt.Errorf("render %s: option %s: %w", ControlFile, key, err)
		}
	}
	return sb.String(), nil
}

func writeControlOption(sb *strings.Builder, key string, value any) error {
	switch v := value.(type) {
	case bool:
		fmt.Fprintf(sb, "%-35s %s\n", key, aimsBool(v))
	case string:
		fmt.Fprintf(sb, "%-35s %s\n", key, v)
	case int:
		fmt.Fprintf(sb, "%-35s %d\n", key, v)
	case float64:
		fmt.Fprintf(sb, "%-35s %s\n", key, aimsFloat(v))
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.Itoa(n)
		}
		fmt.Fprintf(sb, "%-35s %s\n", key, strings.Join(parts, " "))
	case []string:
		for _, line := range v {
			fmt.Fprintf(sb, "%-35s %s\n", key, line)
		}
	case []any:
		// "output" style options repeat the keyword per entry; scalar
		// tuples join on one line.
		if allScalars(v) && key != "output" {
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = scalarString(item)
			}
			fmt.Fprintf(sb, "%-35s %s\n", key, strings.Join(parts, " "))
			return nil
		}
		for _, item := range v {
			fmt.Fprintf(sb, "%-35s %s\n", key, scalarString(item))
		}
	case params.Set:
		for _, sub := range v.Keys() {
			fmt.Fprintf(sb, "%-35s %s %s\n", key, sub, scalarString(v[sub]))
		}
	case map[string]any:
		return writeControlOption(sb, key, params.Set(v))
	default:
		return fmt.Errorf("unsupported value type %T", value)
	}
	return nil
}

// RenderGeometry renders a structure as geometry.in text: lattice vectors
// first, then one atom line per site.
func RenderGeometry(s structure.Structure) string {
	var sb strings.Builder
	if s.Lattice != nil {
		for _, row := range s.Lattice {
			fmt.Fprintf(&sb, "lattice_vector %16.8f %16.8f %16.8f\n", row[0], row[1], row[2])
		}
	}
	for _, site := range s.Sites {
		fmt.Fprintf(&sb, "atom %16.8f %16.8f %16.8f  %s\n",
			site.Position[0], site.Position[1], site.Position[2], site.Species)
	}
	return sb.String()
}

func aimsBool(v bool) string {
	if v {
		return ".true."
	}
	return ".false."
}

func aimsFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func allScalars(items []any) bool {
	for _, item := range items {
		switch item.(type) {
		case string, bool, int, float64:
		default:
			return false
		}
	}
	return true
}

func scalarString(item any) string {
	switch v := item.(type) {
	case bool:
		return aimsBool(v)
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return aimsFloat(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// SortedFileNames returns the input file names of a spec in stable order.
func (s Spec) SortedFileNames() []string {
	names := make([]string, 0, len(s.InputFiles))
	for name := range s.InputFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
