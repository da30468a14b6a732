package workflow

import (
	"fmt"
	"strings"

	"aimsflow/internal/job"
	"aimsflow/internal/schema"
)

// Op is a comparison operator in a conditional-edge predicate.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

func (op Op) valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Predicate is a recorded condition over a prior stage's output document.
// The assembler never evaluates predicates; it encodes them on conditional
// edges for the execution engine to check at run time.
type Predicate struct {
	Ref   string `json:"ref" yaml:"ref"` // "stage.field"
	Op    Op     `json:"op" yaml:"op"`
	Value any    `json:"value" yaml:"value"`
}

// OutputRef parses the predicate's reference.
func (p Predicate) OutputRef() (job.OutputRef, error) {
	return job.ParseOutputRef(p.Ref)
}

// Validate ensures the predicate is well-formed.
func (p Predicate) Validate() error {
	if strings.TrimSpace(p.Ref) == "" {
		return fmt.Errorf("workflow: predicate needs a ref")
	}
	if _, err := p.OutputRef(); err != nil {
		return err
	}
	if !p.Op.valid() {
		return fmt.Errorf("workflow: predicate %s: unknown operator %q", p.Ref, p.Op)
	}
	if p.Value == nil {
		return fmt.Errorf("workflow: predicate %s: value is required", p.Ref)
	}
	return nil
}

// String renders the predicate for logs and the inspector.
func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Ref, p.Op, p.Value)
}

// Converged is shorthand for the common "prior stage converged" guard.
func Converged(stage string) Predicate {
	return Predicate{
		Ref:   fmt.Sprintf("%s.%s", stage, schema.FieldConverged),
		Op:    OpEq,
		Value: true,
	}
}
