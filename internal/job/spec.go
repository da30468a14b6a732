package job

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"aimsflow/internal/params"
	"aimsflow/internal/schema"
	"aimsflow/internal/structure"
)

// Input file names inside a calculation working directory.
const (
	ControlFile    = "control.in"
	GeometryFile   = "geometry.in"
	ParametersFile = "parameters.json"
)

// Spec is the inert description of one calculation. It owns no state and is
// consumed exactly once by the execution engine.
type Spec struct {
	Stage       string               `json:"stage" yaml:"stage"`
	FlavorName  string               `json:"flavor" yaml:"flavor"`
	Flavor      params.Flavor        `json:"calc_type" yaml:"calc_type"`
	Fingerprint string               `json:"fingerprint" yaml:"fingerprint"`
	Structure   *structure.Structure `json:"structure,omitempty" yaml:"structure,omitempty"`
	// StructureFrom points at a prior stage's output when the stage starts
	// from a computed structure instead of a caller-supplied one.
	StructureFrom *OutputRef `json:"structure_from,omitempty" yaml:"structure_from,omitempty"`
	Parameters    params.Set `json:"parameters" yaml:"parameters"`
	Command       []string   `json:"command" yaml:"command"`
	Workdir       string     `json:"workdir" yaml:"workdir"`
	// InputFiles holds the rendered input deck. geometry.in is present only
	// when the structure is concrete; otherwise the engine writes it after
	// resolving StructureFrom.
	InputFiles map[string]string  `json:"input_files" yaml:"input_files"`
	Needs      []string           `json:"needs,omitempty" yaml:"needs,omitempty"`
	Properties []string           `json:"properties,omitempty" yaml:"properties,omitempty"`
	Expect     schema.Expectation `json:"expect" yaml:"expect"`
}

// Builder collects everything needed to describe one calculation.
type Builder struct {
	Stage      string
	FlavorName string
	Flavor     params.Flavor
	// Exactly one of Structure / StructureFrom must be set.
	Structure     *structure.Structure
	StructureFrom *OutputRef
	Parameters    params.Set
	// Needs lists prior stages this job depends on beyond StructureFrom.
	Needs []string
	// Priors maps every earlier stage of the workflow to its flavor, for
	// contract checks against symbolic references.
	Priors map[string]params.Flavor
	// PriorDocs carries materialized output documents when restarting from
	// finished runs. References into these are checked eagerly.
	PriorDocs map[string]*schema.Document
	// Properties the calculation should report beyond the flavor contract.
	Properties []string

	Command     []string
	CodeVersion string
	WorkRoot    string
}

// Build assembles the job spec. It resolves symbolic prior-output
// references against the declared priors and fails with DependencyError
// when a reference cannot be satisfied.
func (b Builder) Build() (Spec, error) {
	if strings.TrimSpace(b.Stage) == "" {
		return Spec{}, fmt.Errorf("job: stage id is required")
	}
	expect, ok := schema.ContractFor(b.Flavor)
	if !ok {
		return Spec{}, fmt.Errorf("job: stage %s: no output contract for flavor %s", b.Stage, b.Flavor)
	}
	if (b.Structure == nil) == (b.StructureFrom == nil) {
		return Spec{}, fmt.Errorf("job: stage %s: exactly one of structure and structure_from is required", b.Stage)
	}

	needs := map[string]struct{}{}
	for _, dep := range b.Needs {
		if dep != "" {
			needs[dep] = struct{}{}
		}
	}

	if b.StructureFrom != nil {
		ref := *b.StructureFrom
		if err := ref.Validate(); err != nil {
			return Spec{}, err
		}
		if err := b.checkRef(ref); err != nil {
			return Spec{}, err
		}
		needs[ref.Stage] = struct{}{}
	}
	for dep := range needs {
		if _, ok := b.Priors[dep]; !ok {
			return Spec{}, depErr(b.Stage, OutputRef{Stage: dep}, "stage is not defined before %s", b.Stage)
		}
	}

	spec := Spec{
		Stage:         b.Stage,
		FlavorName:    b.flavorName(),
		Flavor:        b.Flavor,
		StructureFrom: b.StructureFrom,
		Parameters:    b.Parameters.Clone(),
		Command:       append([]string{}, b.Command...),
		Workdir:       filepath.Join(b.WorkRoot, b.Stage),
		Needs:         sortedKeys(needs),
		Properties:    append([]string{}, b.Properties...),
		Expect:        expect,
	}
	if b.Structure != nil {
		clone := b.Structure.Clone()
		spec.Structure = &clone
	}

	fingerprint, err := b.fingerprint()
	if err != nil {
		return Spec{}, err
	}
	spec.Fingerprint = fingerprint

	files, err := renderInputFiles(spec)
	if err != nil {
		return Spec{}, fmt.Errorf("job: stage %s: %w", b.Stage, err)
	}
	spec.InputFiles = files
	return spec, nil
}

// checkRef verifies a symbolic reference against the prior stage's flavor
// contract, or against the materialized document when one is available.
func (b Builder) checkRef(ref OutputRef) error {
	if doc, ok := b.PriorDocs[ref.Stage]; ok && doc != nil {
		if !doc.Converged {
			return depErr(b.Stage, ref, "stage did not converge")
		}
		if !doc.Has(ref.Field) {
			return depErr(b.Stage, ref, "field is absent from the output document")
		}
		return nil
	}
	flavor, ok := b.Priors[ref.Stage]
	if !ok {
		return depErr(b.Stage, ref, "stage is not defined before %s", b.Stage)
	}
	contract, ok := schema.ContractFor(flavor)
	if !ok {
		return depErr(b.Stage, ref, "prior flavor %s has no output contract", flavor)
	}
	if !contract.Produces(ref.Field) {
		return depErr(b.Stage, ref, "flavor %s does not produce this field", flavor)
	}
	return nil
}

func (b Builder) flavorName() string {
	if b.FlavorName != "" {
		return b.FlavorName
	}
	return string(b.Flavor)
}

// fingerprint derives the job identity from the structure (or its symbolic
// source), the merged parameters, and the code version. JSON map keys
// marshal in sorted order, so the digest is deterministic.
func (b Builder) fingerprint() (string, error) {
	payload := struct {
		Structure     *structure.Structure `json:"structure,omitempty"`
		StructureFrom *OutputRef           `json:"structure_from,omitempty"`
		Parameters    params.Set           `json:"parameters"`
		CodeVersion   string               `json:"code_version"`
	}{
		Structure:     b.Structure,
		StructureFrom: b.StructureFrom,
		Parameters:    b.Parameters,
		CodeVersion:   b.CodeVersion,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("job: stage %s: fingerprint: %w", b.Stage, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
