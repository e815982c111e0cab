package variable

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Built-in variable names resolved directly from the generation timestamp and
// counter value. They are reserved and cannot be overridden by custom variables.
const (
	BuiltinYear    = "YEAR"
	BuiltinMonth   = "MONTH"
	BuiltinDay     = "DAY"
	BuiltinCounter = "COUNTER"
)

// IsBuiltin reports whether name is a reserved built-in variable.
func IsBuiltin(name string) bool {
	switch strings.ToUpper(name) {
	case BuiltinYear, BuiltinMonth, BuiltinDay, BuiltinCounter:
		return true
	}
	return false
}

// Registry maps variable names to resolvers. Lookup is case-insensitive with
// an uppercase convention. Safe for concurrent use after startup registration.
type Registry struct {
	mu   sync.RWMutex
	vars map[string]CustomVariable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{vars: make(map[string]CustomVariable)}
}

// Register adds a custom variable. Registering a reserved built-in name or a
// duplicate name is an error.
func (r *Registry) Register(v CustomVariable) error {
	name := strings.ToUpper(strings.TrimSpace(v.Name()))
	if name == "" {
		return fmt.Errorf("variable name must not be empty")
	}
	if IsBuiltin(name) {
		return fmt.Errorf("variable name %q is reserved", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.vars[name]; exists {
		return fmt.Errorf("variable %q is already registered", name)
	}
	r.vars[name] = v
	return nil
}

// MustRegister adds a custom variable, panicking on error.
// Use only during process startup.
func (r *Registry) MustRegister(v CustomVariable) {
	if err := r.Register(v); err != nil {
		panic(err)
	}
}

// Get returns the custom variable registered under name.
func (r *Registry) Get(name string) (CustomVariable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vars[strings.ToUpper(name)]
	return v, ok
}

// Names returns the registered variable names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.vars))
	for name := range r.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
