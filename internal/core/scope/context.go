// Package scope provides explicit tenant-scope propagation.
// The scope identifier is constructed per call and passed down through
// context.Context, never stored in process-wide mutable state.
package scope

import (
	"context"
	"errors"
)

type scopeKey struct{}

// ErrNoScope is returned when a scope identifier is required but absent.
var ErrNoScope = errors.New("scope not found in context")

// WithScope stores the scope (tenant) identifier in context.
func WithScope(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scopeKey{}, id)
}

// Get retrieves the scope identifier from context.
func Get(ctx context.Context) (string, error) {
	id, ok := ctx.Value(scopeKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoScope
	}
	return id, nil
}

// GetID returns the scope identifier or empty string.
func GetID(ctx context.Context) string {
	id, _ := Get(ctx)
	return id
}
