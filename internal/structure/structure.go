// Package structure defines the atomic structure value type handed to input
// generators and calculation jobs. Structures are owned by the caller and
// treated as immutable once a job has been built from them; every accessor
// that could leak internal slices returns a copy.
package structure

import (
	"fmt"
	"math"
	"strings"
)

// Vec3 is a Cartesian vector in Angstrom.
type Vec3 [3]float64

// Lattice holds the three cell vectors as rows, in Angstrom.
type Lattice [3]Vec3

// Site is one atom: a species label plus its Cartesian position.
type Site struct {
	Species  string `json:"species" yaml:"species"`
	Position Vec3   `json:"position" yaml:"position"`
}

// Structure describes atomic positions, lattice, and species. Lattice is nil
// for molecules; PBC marks the periodic directions for slab/wire setups.
type Structure struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Sites   []Site   `json:"sites" yaml:"sites"`
	Lattice *Lattice `json:"lattice,omitempty" yaml:"lattice,omitempty"`
	PBC     [3]bool  `json:"pbc,omitempty" yaml:"pbc,omitempty"`
}

// Clone returns a deep copy of the structure.
func (s Structure) Clone() Structure {
	clone := Structure{
		Name: s.Name,
		PBC:  s.PBC,
	}
	if len(s.Sites) > 0 {
		clone.Sites = make([]Site, len(s.Sites))
		copy(clone.Sites, s.Sites)
	}
	if s.Lattice != nil {
		lattice := *s.Lattice
		clone.Lattice = &lattice
	}
	return clone
}

// Periodic reports whether the structure is periodic in any direction.
func (s Structure) Periodic() bool {
	return s.PBC[0] || s.PBC[1] || s.PBC[2]
}

// SpeciesLabels returns the distinct species labels in first-appearance order.
func (s Structure) SpeciesLabels() []string {
	seen := map[string]struct{}{}
	var labels []string
	for _, site := range s.Sites {
		if _, ok := seen[site.Species]; ok {
			continue
		}
		seen[site.Species] = struct{}{}
		labels = append(labels, site.Species)
	}
	return labels
}

// Validate ensures the structure is self-consistent.
func (s Structure) Validate() error {
	if len(s.Sites) == 0 {
		return fmt.Errorf("structure: at least one site is required")
	}
	for i, site := range s.Sites {
		if strings.TrimSpace(site.Species) == "" {
			return fmt.Errorf("structure: site[%d] species is required", i)
		}
	}
	if s.Periodic() && s.Lattice == nil {
		return fmt.Errorf("structure %s: periodic directions declared without a lattice", s.Name)
	}
	if s.Lattice != nil {
		for i, row := range s.Lattice {
			if norm(row) == 0 {
				return fmt.Errorf("structure %s: lattice vector %d is zero", s.Name, i)
			}
		}
		if math.Abs(s.Lattice.Volume()) < 1e-10 {
			return fmt.Errorf("structure %s: lattice vectors are coplanar", s.Name)
		}
	}
	return nil
}

// Volume returns the signed cell volume in Angstrom^3.
func (l *Lattice) Volume() float64 {
	a, b, c := l[0], l[1], l[2]
	return a[0]*(b[1]*c[2]-b[2]*c[1]) -
		a[1]*(b[0]*c[2]-b[2]*c[0]) +
		a[2]*(b[0]*c[1]-b[1]*c[0])
}

// Reciprocal returns the reciprocal cell rows (without the 2*pi factor),
// i.e. the matrix inverse transposed.
func (l *Lattice) Reciprocal() Lattice {
	vol := l.Volume()
	a, b, c := l[0], l[1], l[2]
	return Lattice{
		scale(cross(b, c), 1/vol),
		scale(cross(c, a), 1/vol),
		scale(cross(a, b), 1/vol),
	}
}

// KGrid converts a k-point density (points per reciprocal Angstrom) into a
// Monkhorst-Pack grid. Non-periodic directions get a single point; periodic
// directions are rounded up, to an even count when even is set.
func (s Structure) KGrid(density float64, even bool) ([3]int, error) {
	if s.Lattice == nil {
		return [3]int{}, fmt.Errorf("structure %s: k-grid requires a lattice", s.Name)
	}
	if density <= 0 {
		return [3]int{}, fmt.Errorf("structure: k-point density must be > 0, got %g", density)
	}
	recip := s.Lattice.Reciprocal()
	var grid [3]int
	for i := 0; i < 3; i++ {
		if !s.PBC[i] {
			grid[i] = 1
			continue
		}
		k := 2 * math.Pi * norm(recip[i]) * density
		if even {
			grid[i] = 2 * int(math.Ceil(k/2))
		} else {
			grid[i] = int(math.Ceil(k))
		}
		if grid[i] < 1 {
			grid[i] = 1
		}
	}
	return grid, nil
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func scale(v Vec3, f float64) Vec3 {
	return Vec3{v[0] * f, v[1] * f, v[2] * f}
}

func norm(v Vec3) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}
