package params

import (
	"fmt"
	"strings"
)

// optionDomain validates one known control option's value.
type optionDomain func(value any) error

// knownOptions declares the domains of the control options this package
// understands. Options outside this table are raw aims directives: rejected
// in strict mode, passed through verbatim otherwise.
var knownOptions = map[string]optionDomain{
	"xc":                      nonEmptyString,
	"relativistic":            nonEmptyString,
	"charge":                  numeric,
	"spin":                    oneOf("none", "collinear"),
	"k_grid":                  positiveIntTriple,
	"relax_geometry":          nonEmptyString,
	"relax_unit_cell":         oneOf("full", "none", "fixed_angles"),
	"compute_forces":          boolean,
	"compute_analytical_stress": boolean,
	"compute_numerical_stress":  boolean,
	"compute_heat_flux":         boolean,
	"occupation_type":         nonEmptyString,
	"sc_accuracy_rho":         positiveNumber,
	"sc_accuracy_etot":        positiveNumber,
	"sc_accuracy_forces":      positiveNumber,
	"sc_iter_limit":           positiveInt,
	"qpe_calc":                nonEmptyString,
	"species_dir":             nonEmptyString,
	"output":                  stringList,
	"use_pimd_wrapper":        hostPortPair,
	"elsi_restart":            nil, // free-form restart directive
}

func knownOption(name string) bool {
	_, ok := knownOptions[name]
	return ok
}

func validateOption(flavor Flavor, name string, value any) error {
	domain, ok := knownOptions[name]
	if !ok || domain == nil {
		return nil
	}
	if err := domain(value); err != nil {
		return configErr(string(flavor), name, "%v", err)
	}
	return nil
}

func nonEmptyString(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a string, got %T", value)
	}
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value must not be empty")
	}
	return nil
}

func oneOf(allowed ...string) optionDomain {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", value)
		}
		for _, candidate := range allowed {
			if s == candidate {
				return nil
			}
		}
		return fmt.Errorf("value %q not in {%s}", s, strings.Join(allowed, ", "))
	}
}

func boolean(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected a bool, got %T", value)
	}
	return nil
}

func numeric(value any) error {
	if _, ok := asFloat(value); !ok {
		return fmt.Errorf("expected a number, got %T", value)
	}
	return nil
}

func positiveNumber(value any) error {
	f, ok := asFloat(value)
	if !ok {
		return fmt.Errorf("expected a number, got %T", value)
	}
	if f <= 0 {
		return fmt.Errorf("value must be > 0, got %g", f)
	}
	return nil
}

func positiveInt(value any) error {
	n, ok := asInt(value)
	if !ok {
		return fmt.Errorf("expected an integer, got %T", value)
	}
	if n <= 0 {
		return fmt.Errorf("value must be > 0, got %d", n)
	}
	return nil
}

func positiveIntTriple(value any) error {
	items, ok := asList(value)
	if !ok {
		return fmt.Errorf("expected a list, got %T", value)
	}
	if len(items) != 3 {
		return fmt.Errorf("expected 3 entries, got %d", len(items))
	}
	for i, item := range items {
		n, ok := asInt(item)
		if !ok {
			return fmt.Errorf("entry %d: expected an integer, got %T", i, item)
		}
		if n < 1 {
			return fmt.Errorf("entry %d: value must be >= 1, got %d", i, n)
		}
	}
	return nil
}

func stringList(value any) error {
	switch v := value.(type) {
	case string:
		return nil
	case []string:
		return nil
	case []any:
		for i, item := range v {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("entry %d: expected a string, got %T", i, item)
			}
		}
		return nil
	default:
		return fmt.Errorf("expected a string or list of strings, got %T", v)
	}
}

func hostPortPair(value any) error {
	items, ok := asList(value)
	if !ok || len(items) != 2 {
		return fmt.Errorf("expected a (host, port) pair")
	}
	if err := nonEmptyString(items[0]); err != nil {
		return fmt.Errorf("host: %v", err)
	}
	port, ok := asInt(items[1])
	if !ok || port < 1 || port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}
	return nil
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
