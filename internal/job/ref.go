// Package job builds inert calculation descriptions. A Spec declares what
// one FHI-aims invocation needs (structure, parameters, files, prior-stage
// outputs) without executing anything; launching, retrying, and storing the
// result belong to the external execution engine.
package job

import (
	"fmt"
	"strings"

	"aimsflow/internal/schema"
)

// OutputRef is a symbolic reference to a field of a prior stage's output
// document. It is a placeholder: the assembler records it and the execution
// engine resolves it once the referenced stage has actually run.
type OutputRef struct {
	Stage string       `json:"stage" yaml:"stage"`
	Field schema.Field `json:"field" yaml:"field"`
}

// String renders the reference as "stage.field".
func (r OutputRef) String() string {
	return fmt.Sprintf("%s.%s", r.Stage, r.Field)
}

// Validate ensures the reference is well-formed.
func (r OutputRef) Validate() error {
	if strings.TrimSpace(r.Stage) == "" {
		return fmt.Errorf("job: output reference needs a stage")
	}
	if _, err := schema.ParseField(string(r.Field)); err != nil {
		return fmt.Errorf("job: output reference %s: %w", r.Stage, err)
	}
	return nil
}

// ParseOutputRef parses a "stage.field" reference string.
func ParseOutputRef(s string) (OutputRef, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return OutputRef{}, fmt.Errorf("job: malformed output reference %q, want stage.field", s)
	}
	ref := OutputRef{Stage: s[:idx], Field: schema.Field(s[idx+1:])}
	if err := ref.Validate(); err != nil {
		return OutputRef{}, err
	}
	return ref, nil
}

// DependencyError reports a prior-stage reference that cannot be satisfied:
// the stage is not part of the workflow, its flavor does not produce the
// referenced field, or a materialized prior run did not converge.
type DependencyError struct {
	Stage  string
	Ref    OutputRef
	Reason string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("job: stage %s: dependency %s: %s", e.Stage, e.Ref, e.Reason)
}

func depErr(stage string, ref OutputRef, format string, args ...any) *DependencyError {
	return &DependencyError{
		Stage:  stage,
		Ref:    ref,
		Reason: fmt.Sprintf(format, args...),
	}
}
