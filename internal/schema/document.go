// Package schema defines the validated record a finished calculation must
// report. Documents are created once by whatever parses the code output and
// never mutated; downstream stages consume their fields through symbolic
// references resolved by the execution engine.
package schema

import (
	"fmt"
	"time"

	"aimsflow/internal/params"
	"aimsflow/internal/structure"
)

// Field names one typed entry of an output document.
type Field string

const (
	FieldEnergy      Field = "energy"
	FieldFreeEnergy  Field = "free_energy"
	FieldForces      Field = "forces"
	FieldStress      Field = "stress"
	FieldConverged   Field = "converged"
	FieldStructure   Field = "structure"
	FieldBandgap     Field = "bandgap"
	FieldDirName     Field = "dir_name"
	FieldCompletedAt Field = "completed_at"
)

// Fields returns every document field in a stable order.
func Fields() []Field {
	return []Field{
		FieldEnergy,
		FieldFreeEnergy,
		FieldForces,
		FieldStress,
		FieldConverged,
		FieldStructure,
		FieldBandgap,
		FieldDirName,
		FieldCompletedAt,
	}
}

// ParseField converts a name into a Field.
func ParseField(name string) (Field, error) {
	for _, f := range Fields() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("schema: unknown field %q", name)
}

// Document is the immutable result record of one calculation, keyed by the
// originating job's fingerprint.
type Document struct {
	Stage       string               `json:"stage" yaml:"stage"`
	Fingerprint string               `json:"fingerprint" yaml:"fingerprint"`
	Flavor      string               `json:"flavor" yaml:"flavor"`
	Energy      *float64             `json:"energy,omitempty" yaml:"energy,omitempty"`
	FreeEnergy  *float64             `json:"free_energy,omitempty" yaml:"free_energy,omitempty"`
	Forces      [][3]float64         `json:"forces,omitempty" yaml:"forces,omitempty"`
	Stress      []float64            `json:"stress,omitempty" yaml:"stress,omitempty"`
	Converged   bool                 `json:"converged" yaml:"converged"`
	Structure   *structure.Structure `json:"structure,omitempty" yaml:"structure,omitempty"`
	Bandgap     *float64             `json:"bandgap,omitempty" yaml:"bandgap,omitempty"`
	DirName     string               `json:"dir_name,omitempty" yaml:"dir_name,omitempty"`
	CompletedAt time.Time            `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	// Parameters records the set the calculation actually ran with, so
	// restart flows can carry it forward.
	Parameters params.Set `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Has reports whether the document carries a value for the field.
func (d Document) Has(field Field) bool {
	switch field {
	case FieldEnergy:
		return d.Energy != nil
	case FieldFreeEnergy:
		return d.FreeEnergy != nil
	case FieldForces:
		return len(d.Forces) > 0
	case FieldStress:
		return len(d.Stress) > 0
	case FieldConverged:
		return true
	case FieldStructure:
		return d.Structure != nil
	case FieldBandgap:
		return d.Bandgap != nil
	case FieldDirName:
		return d.DirName != ""
	case FieldCompletedAt:
		return !d.CompletedAt.IsZero()
	}
	return false
}

// Validate checks the document against an expectation. A document for a
// stage that did not converge only needs its identity fields.
func (d Document) Validate(expect Expectation) error {
	if d.Stage == "" {
		return fmt.Errorf("schema: document stage is required")
	}
	if d.Fingerprint == "" {
		return fmt.Errorf("schema: document for %s: fingerprint is required", d.Stage)
	}
	if !d.Converged {
		return nil
	}
	for _, field := range expect.Required {
		if !d.Has(field) {
			return fmt.Errorf("schema: document for %s: required field %s is missing", d.Stage, field)
		}
	}
	if len(d.Stress) > 0 && len(d.Stress) != 6 {
		return fmt.Errorf("schema: document for %s: stress must have 6 components, got %d", d.Stage, len(d.Stress))
	}
	return nil
}

// Expectation declares the output shape a finished job of some flavor must
// report.
type Expectation struct {
	Required []Field `json:"required" yaml:"required"`
	Optional []Field `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Produces reports whether a conforming document can be relied on to carry
// the field.
func (e Expectation) Produces(field Field) bool {
	for _, f := range e.Required {
		if f == field {
			return true
		}
	}
	for _, f := range e.Optional {
		if f == field {
			return true
		}
	}
	return false
}
