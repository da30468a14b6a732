// Package outputs persists and inspects the result documents of finished
// stages. Each stage owns one directory under the store root holding
// doc.yaml, the output document, and parameters.json, the parameter set the
// run actually used. The store is how a restarted workflow finds its prior
// results.
package outputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"aimsflow/internal/params"
	"aimsflow/internal/schema"
)

const (
	// DocumentFile is the per-stage output document.
	DocumentFile = "doc.yaml"
	// ParametersFile mirrors the parameter set for quick inspection.
	ParametersFile = "parameters.json"
)

// State classifies what the store found for a stage.
type State string

const (
	// StateMissing means no document exists yet.
	StateMissing State = "missing"
	// StateInvalid means a document exists but does not satisfy its
	// flavor's output contract.
	StateInvalid State = "invalid"
	// StateReady means a valid document is on disk.
	StateReady State = "ready"
	// StateError means the store could not inspect the stage directory.
	StateError State = "error"
)

// CheckResult reports the store's verdict for one stage.
type CheckResult struct {
	Stage string
	Path  string
	State State
	Doc   *schema.Document
	Err   error
}

// Store manages document IO rooted at one directory.
type Store struct {
	root string
	now  func() time.Time
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithClock overrides the clock used to stamp completion times.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// NewStore builds a store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	store := &Store{root: dir, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Dir returns the directory owned by a stage.
func (s *Store) Dir(stage string) string {
	return filepath.Join(s.root, stage)
}

// Write persists a finished stage's document and its parameter set. The
// completion time and directory name are stamped when the document does not
// carry them yet.
func (s *Store) Write(doc *schema.Document) error {
	if doc == nil {
		return fmt.Errorf("outputs: document is required")
	}
	if doc.Stage == "" {
		return fmt.Errorf("outputs: document stage is required")
	}
	prepared := *doc
	if prepared.CompletedAt.IsZero() {
		prepared.CompletedAt = s.now()
	}
	dir := s.Dir(prepared.Stage)
	if prepared.DirName == "" {
		prepared.DirName = dir
	}
	if err := s.validate(&prepared); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("outputs: create %s: %w", dir, err)
	}
	encoded, err := yaml.Marshal(&prepared)
	if err != nil {
		return fmt.Errorf("outputs: encode document for %s: %w", prepared.Stage, err)
	}
	if err := os.WriteFile(filepath.Join(dir, DocumentFile), encoded, 0o644); err != nil {
		return fmt.Errorf("outputs: write document for %s: %w", prepared.Stage, err)
	}
	return s.writeParameters(dir, prepared.Stage, prepared.Parameters)
}

func (s *Store) writeParameters(dir, stage string, set params.Set) error {
	if len(set) == 0 {
		return nil
	}
	encoded, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("outputs: encode parameters for %s: %w", stage, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ParametersFile), encoded, 0o644); err != nil {
		return fmt.Errorf("outputs: write parameters for %s: %w", stage, err)
	}
	return nil
}

// Check inspects the stage directory and classifies what it holds.
func (s *Store) Check(stage string) CheckResult {
	path := filepath.Join(s.Dir(stage), DocumentFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Stage: stage, Path: path, State: StateMissing}
		}
		return CheckResult{Stage: stage, Path: path, State: StateError, Err: err}
	}
	var doc schema.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return CheckResult{Stage: stage, Path: path, State: StateInvalid,
			Err: fmt.Errorf("outputs: decode %s: %w", path, err)}
	}
	if doc.Stage != stage {
		return CheckResult{Stage: stage, Path: path, State: StateInvalid,
			Err: fmt.Errorf("outputs: document names stage %s, expected %s", doc.Stage, stage)}
	}
	if err := s.validate(&doc); err != nil {
		return CheckResult{Stage: stage, Path: path, State: StateInvalid, Doc: &doc, Err: err}
	}
	return CheckResult{Stage: stage, Path: path, State: StateReady, Doc: &doc}
}

// Load returns the stage's document, or an error when it is missing or
// invalid.
func (s *Store) Load(stage string) (*schema.Document, error) {
	result := s.Check(stage)
	switch result.State {
	case StateReady:
		return result.Doc, nil
	case StateMissing:
		return nil, fmt.Errorf("outputs: no document for stage %s", stage)
	default:
		return nil, result.Err
	}
}

// LoadAll scans the store root and returns every valid document keyed by
// stage, in shape for the assembler's restart hook. Invalid documents are
// skipped; the error list names them.
func (s *Store) LoadAll() (map[string]*schema.Document, []error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]*schema.Document{}, nil
		}
		return nil, []error{fmt.Errorf("outputs: scan %s: %w", s.root, err)}
	}
	docs := map[string]*schema.Document{}
	var problems []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		result := s.Check(entry.Name())
		switch result.State {
		case StateReady:
			docs[result.Stage] = result.Doc
		case StateMissing:
			// A stage directory without a document is an unfinished run.
		default:
			problems = append(problems, result.Err)
		}
	}
	return docs, problems
}

// Stages lists every stage directory in the store, sorted.
func (s *Store) Stages() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("outputs: scan %s: %w", s.root, err)
	}
	var stages []string
	for _, entry := range entries {
		if entry.IsDir() {
			stages = append(stages, entry.Name())
		}
	}
	sort.Strings(stages)
	return stages, nil
}

// validate checks a document against its flavor's output contract when the
// flavor is known. Documents from unknown flavors only need their identity.
func (s *Store) validate(doc *schema.Document) error {
	var expect schema.Expectation
	if doc.Flavor != "" {
		if flavor, err := params.ParseFlavor(doc.Flavor); err == nil {
			if contract, ok := schema.ContractFor(flavor); ok {
				expect = contract
			}
		}
	}
	return doc.Validate(expect)
}
