package params

import "fmt"

// ConfigurationError reports a parameter set that cannot be completed: a
// flavor-required option left unset after merging, or an override value
// outside its declared domain. It is raised synchronously during generation
// and never retried.
type ConfigurationError struct {
	Flavor string
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("params: %s: %s", e.Flavor, e.Reason)
	}
	return fmt.Sprintf("params: %s: option %q: %s", e.Flavor, e.Option, e.Reason)
}

func configErr(flavor, option, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Flavor: flavor,
		Option: option,
		Reason: fmt.Sprintf(format, args...),
	}
}
