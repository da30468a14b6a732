package params

import (
	"fmt"

	"aimsflow/internal/structure"
)

// Flavor enumerates the supported calculation types. The set is closed:
// every switch over Flavor in this package handles all members, so adding a
// member forces the compiler checks below to be revisited.
type Flavor string

const (
	FlavorStatic        Flavor = "static"
	FlavorRelaxation    Flavor = "relaxation"
	FlavorBandStructure Flavor = "band-structure"
	FlavorPhonon        Flavor = "phonon"
	FlavorGW            Flavor = "gw"
	FlavorSocket        Flavor = "socket"
)

// Flavors returns every builtin flavor in a stable order.
func Flavors() []Flavor {
	return []Flavor{
		FlavorStatic,
		FlavorRelaxation,
		FlavorBandStructure,
		FlavorPhonon,
		FlavorGW,
		FlavorSocket,
	}
}

// ParseFlavor converts a name into a Flavor.
func ParseFlavor(name string) (Flavor, error) {
	for _, f := range Flavors() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("params: unknown flavor %q", name)
}

// BandSegment is one leg of a band-structure k-path in fractional reciprocal
// coordinates.
type BandSegment struct {
	From      [3]float64 `json:"from" yaml:"from"`
	To        [3]float64 `json:"to" yaml:"to"`
	FromLabel string     `json:"from_label" yaml:"from_label"`
	ToLabel   string     `json:"to_label" yaml:"to_label"`
	Points    int        `json:"points" yaml:"points"`
}

func (seg BandSegment) validate() error {
	if seg.Points < 2 {
		return fmt.Errorf("band segment %s-%s: at least 2 points required", seg.FromLabel, seg.ToLabel)
	}
	if seg.FromLabel == "" || seg.ToLabel == "" {
		return fmt.Errorf("band segment: endpoint labels are required")
	}
	return nil
}

// controlLine renders the segment as an aims "output band" directive.
func (seg BandSegment) controlLine() string {
	return fmt.Sprintf("band %9.5f%9.5f%9.5f %9.5f%9.5f%9.5f %4d %3s%3s",
		seg.From[0], seg.From[1], seg.From[2],
		seg.To[0], seg.To[1], seg.To[2],
		seg.Points, seg.FromLabel, seg.ToLabel)
}

// updates returns the flavor-specific parameter overlay: static adds
// nothing, relaxation configures the
// optimizer, band-structure and gw emit the band path, socket wires the
// i-PI driver, phonon forces force output for displacement runs.
func (f Flavor) updates(s structure.Structure, gen Generator) (Set, error) {
	switch f {
	case FlavorStatic:
		return nil, nil
	case FlavorRelaxation:
		updates := Set{
			"relax_geometry": fmt.Sprintf("%s %.0e", gen.relaxMethod(), gen.maxForce()),
		}
		if s.Periodic() {
			if gen.RelaxCell {
				updates["relax_unit_cell"] = "full"
			} else {
				updates["relax_unit_cell"] = "none"
			}
		}
		return updates, nil
	case FlavorBandStructure:
		return bandOutput(f, gen.BandPath)
	case FlavorGW:
		updates, err := bandOutput(f, gen.BandPath)
		if err != nil {
			return nil, err
		}
		updates["qpe_calc"] = "gw"
		return updates, nil
	case FlavorSocket:
		host := gen.SocketHost
		if host == "" {
			host = "localhost"
		}
		port := gen.SocketPort
		if port == 0 {
			port = 12345
		}
		return Set{"use_pimd_wrapper": []any{host, port}}, nil
	case FlavorPhonon:
		return Set{"compute_forces": true}, nil
	}
	return nil, configErr(string(f), "", "unknown flavor")
}

func bandOutput(f Flavor, path []BandSegment) (Set, error) {
	if len(path) == 0 {
		return nil, configErr(string(f), "band_path", "a band path is required but none was configured")
	}
	lines := make([]any, 0, len(path))
	for _, seg := range path {
		if err := seg.validate(); err != nil {
			return nil, configErr(string(f), "band_path", "%v", err)
		}
		lines = append(lines, seg.controlLine())
	}
	return Set{"output": lines}, nil
}

// required lists the options that must be present in the final merged set
// for this flavor. Periodic structures additionally require k_grid, which
// the generator synthesizes when missing.
func (f Flavor) required() []string {
	base := []string{"xc", "relativistic"}
	switch f {
	case FlavorStatic, FlavorSocket:
		return base
	case FlavorRelaxation:
		return append(base, "relax_geometry")
	case FlavorBandStructure:
		return append(base, "output")
	case FlavorGW:
		return append(base, "output", "qpe_calc")
	case FlavorPhonon:
		return append(base, "compute_forces")
	}
	return base
}
