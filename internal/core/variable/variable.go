// Package variable provides the custom-variable plugin contract and the
// registry that maps pattern variable names to resolvers.
package variable

import (
	"fmt"
	"strings"
	"time"
)

// Context supplies values consumed by custom variables and conditional blocks.
// It is constructed per generation call and never mutated by the engine.
type Context map[string]string

// Lookup finds a value by key. The lookup is case-insensitive: the exact key
// is tried first, then its lowercase form. Pattern tokens are uppercase by
// convention while context keys tend to be lowercase (e.g. {?DEPARTMENT?...}
// with context key "department").
func (c Context) Lookup(key string) (string, bool) {
	if v, ok := c[key]; ok {
		return v, true
	}
	if v, ok := c[strings.ToLower(key)]; ok {
		return v, true
	}
	return "", false
}

// Truthy reports whether the key is present with a non-empty value that is
// not "0" or "false" (case-insensitive).
func (c Context) Truthy(key string) bool {
	v, ok := c.Lookup(key)
	if !ok || v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "0", "false":
		return false
	}
	return true
}

// ValidationResult reports whether a variable can resolve against a context.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// OK returns a passing validation result.
func OK() ValidationResult {
	return ValidationResult{Valid: true}
}

// Failf returns a failing validation result with a formatted reason.
func Failf(format string, args ...any) ValidationResult {
	return ValidationResult{Errors: []string{fmt.Sprintf(format, args...)}}
}

// CustomVariable is the plugin contract for pattern variables beyond the
// built-in date/counter tokens. Implementations are registered at startup;
// there is no reflection-based discovery.
type CustomVariable interface {
	// Name returns the variable name as used in patterns (uppercase convention).
	Name() string

	// Resolve produces the variable's value for the given context and timestamp.
	Resolve(ctx Context, ts time.Time) (string, error)

	// Validate checks the context before any counter is consumed.
	Validate(ctx Context) ValidationResult
}

// ParameterizedVariable is implemented by variables that accept a parameter,
// e.g. {DEPARTMENT:ABBREV}. Support is detected by type assertion; a parameter
// given to a variable without this interface is a validation error.
type ParameterizedVariable interface {
	CustomVariable

	// SupportedParameters returns the closed set of accepted parameter names.
	SupportedParameters() []string

	// ResolveWithParameter produces the value for the given parameter.
	ResolveWithParameter(ctx Context, ts time.Time, param string) (string, error)
}

// SupportsParameters reports whether v accepts parameters.
func SupportsParameters(v CustomVariable) bool {
	_, ok := v.(ParameterizedVariable)
	return ok
}

// SupportsParameter reports whether v accepts the specific parameter name
// (case-insensitive).
func SupportsParameter(v CustomVariable, param string) bool {
	pv, ok := v.(ParameterizedVariable)
	if !ok {
		return false
	}
	for _, p := range pv.SupportedParameters() {
		if strings.EqualFold(p, param) {
			return true
		}
	}
	return false
}
