package params

import (
	"fmt"
	"sort"
	"sync"
)

// Recipe binds a stage's flavor name to a builtin calculation type plus the
// parameter layers specific to that name. Presets register recipes that
// overlay extra parameters on a builtin flavor (for example a tight
// species-defaults relaxation); restart flows put a previous run's
// parameters into Carry.
type Recipe struct {
	Flavor      Flavor
	Description string
	// Overlay is layered above the flavor updates, below user parameters.
	Overlay Set
	// Carry holds parameters inherited from a previous calculation. It is
	// layered below the flavor updates so the new flavor wins.
	Carry Set
}

// Clone returns a deep copy of the recipe.
func (r Recipe) Clone() Recipe {
	return Recipe{
		Flavor:      r.Flavor,
		Description: r.Description,
		Overlay:     r.Overlay.Clone(),
		Carry:       r.Carry.Clone(),
	}
}

// WithCarry returns a copy of the recipe carrying a previous run's
// parameters.
func (r Recipe) WithCarry(carry Set) Recipe {
	clone := r.Clone()
	clone.Carry = carry.Clone()
	return clone
}

// Registry maintains the known flavor recipes. Builtin flavors are
// registered under their own names; presets add more.
type Registry struct {
	mu      sync.RWMutex
	recipes map[string]Recipe
}

// NewRegistry returns a registry pre-populated with the builtin flavors.
func NewRegistry() *Registry {
	r := &Registry{recipes: map[string]Recipe{}}
	for _, flavor := range Flavors() {
		r.recipes[string(flavor)] = Recipe{Flavor: flavor}
	}
	return r
}

// Register installs a recipe. Returns an error if the name already exists.
func (r *Registry) Register(name string, recipe Recipe) error {
	if name == "" {
		return fmt.Errorf("params: recipe name is required")
	}
	if _, err := ParseFlavor(string(recipe.Flavor)); err != nil {
		return fmt.Errorf("params: recipe %s: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recipes[name]; exists {
		return fmt.Errorf("params: recipe %s already registered", name)
	}
	r.recipes[name] = recipe.Clone()
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, recipe Recipe) {
	if err := r.Register(name, recipe); err != nil {
		panic(err)
	}
}

// Resolve returns the recipe for a flavor name.
func (r *Registry) Resolve(name string) (Recipe, error) {
	r.mu.RLock()
	recipe, ok := r.recipes[name]
	r.mu.RUnlock()
	if !ok {
		return Recipe{}, fmt.Errorf("params: unknown flavor %q", name)
	}
	return recipe.Clone(), nil
}

// Names returns the registered flavor names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.recipes))
	for name := range r.recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
