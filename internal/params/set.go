// Package params generates FHI-aims control parameter sets. A Set is merged
// from flavor defaults and caller overrides; the override always wins. The
// merge semantics follow the aims convention: nested maps merge recursively,
// lists append, scalars replace.
package params

import (
	"fmt"
	"sort"
)

// Set maps control-option names to values.
type Set map[string]any

// Clone returns a deep copy of the set. Nested maps and slices are copied;
// scalar values are shared.
func (s Set) Clone() Set {
	if len(s) == 0 {
		return nil
	}
	clone := make(Set, len(s))
	for key, value := range s {
		clone[key] = cloneValue(value)
	}
	return clone
}

// Merge applies updates on top of the set and returns the result. The
// receiver is not modified. Nested maps merge recursively, lists are
// appended to any existing list, and scalars override.
func (s Set) Merge(updates Set) Set {
	merged := s.Clone()
	if merged == nil {
		merged = Set{}
	}
	for key, value := range updates {
		switch v := value.(type) {
		case Set:
			merged[key] = mergeChild(merged[key], v)
		case map[string]any:
			merged[key] = mergeChild(merged[key], Set(v))
		case []any:
			merged[key] = appendChild(merged[key], v)
		case []string:
			generic := make([]any, len(v))
			for i, item := range v {
				generic[i] = item
			}
			merged[key] = appendChild(merged[key], generic)
		default:
			merged[key] = value
		}
	}
	return merged
}

// Keys returns the option names in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func mergeChild(existing any, updates Set) Set {
	switch cur := existing.(type) {
	case Set:
		return cur.Merge(updates)
	case map[string]any:
		return Set(cur).Merge(updates)
	default:
		return Set{}.Merge(updates)
	}
}

func appendChild(existing any, updates []any) []any {
	var base []any
	switch cur := existing.(type) {
	case []any:
		base = append(base, cur...)
	case []string:
		for _, item := range cur {
			base = append(base, item)
		}
	}
	out := append(base, updates...)
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case Set:
		return v.Clone()
	case map[string]any:
		return Set(v).Clone()
	case []any:
		clone := make([]any, len(v))
		for i, item := range v {
			clone[i] = cloneValue(item)
		}
		return clone
	case []string:
		clone := make([]string, len(v))
		copy(clone, v)
		return clone
	case []int:
		clone := make([]int, len(v))
		copy(clone, v)
		return clone
	default:
		return value
	}
}

// String renders a compact "key=value" summary, mainly for logs.
func (s Set) String() string {
	out := ""
	for i, key := range s.Keys() {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", key, s[key])
	}
	return out
}
