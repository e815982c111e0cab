// Package sequence provides the domain model and orchestration for
// tenant-scoped, pattern-driven identifier generation.
package sequence

import (
	"time"

	"seqgen/internal/core/apperror"
	"seqgen/internal/core/variable"
)

// ResetPeriod controls time-based counter resets.
type ResetPeriod string

const (
	ResetNever   ResetPeriod = "never"
	ResetDaily   ResetPeriod = "daily"
	ResetMonthly ResetPeriod = "monthly"
	ResetYearly  ResetPeriod = "yearly"
)

// Valid reports whether p is a known reset period.
func (p ResetPeriod) Valid() bool {
	switch p {
	case ResetNever, ResetDaily, ResetMonthly, ResetYearly:
		return true
	}
	return false
}

// Config is the immutable configuration of one sequence, unique per
// (scope, name). Administrative changes to pattern, period or padding do not
// retroactively alter already-generated values.
type Config struct {
	// Scope is the tenant key the sequence belongs to.
	Scope string

	// Name identifies the sequence within its scope.
	Name string

	// Pattern defines the identifier format, e.g. "INV-{YEAR}-{COUNTER:5}".
	Pattern string

	// ResetPeriod controls time-based counter resets.
	ResetPeriod ResetPeriod

	// Padding is the default COUNTER width (1-20) when the token gives none.
	Padding int

	// StepSize is the counter increment per generation (>= 1).
	StepSize int64

	// ResetLimit resets the counter once it reaches this value. 0 disables
	// the limit.
	ResetLimit int64

	// Enabled soft-disables the sequence. Configs are never deleted while
	// generated records reference them.
	Enabled bool
}

// DefaultConfig returns a sequence config with production defaults.
func DefaultConfig(scope, name, pattern string) Config {
	return Config{
		Scope:       scope,
		Name:        name,
		Pattern:     pattern,
		ResetPeriod: ResetYearly,
		Padding:     5,
		StepSize:    1,
		Enabled:     true,
	}
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if c.Scope == "" {
		return apperror.NewValidation("scope is required")
	}
	if c.Name == "" {
		return apperror.NewValidation("sequence name is required")
	}
	if c.Pattern == "" {
		return apperror.NewValidation("pattern is required")
	}
	if !c.ResetPeriod.Valid() {
		return apperror.NewValidation("invalid reset period").WithDetail("reset_period", string(c.ResetPeriod))
	}
	if c.Padding < 1 || c.Padding > 20 {
		return apperror.NewValidation("padding must be between 1 and 20").WithDetail("padding", c.Padding)
	}
	if c.StepSize < 1 {
		return apperror.NewValidation("step size must be at least 1").WithDetail("step_size", c.StepSize)
	}
	if c.ResetLimit < 0 {
		return apperror.NewValidation("reset limit must be positive").WithDetail("reset_limit", c.ResetLimit)
	}
	return nil
}

// CounterState is the persisted, mutable counter of one sequence. It is owned
// exclusively by the CounterStore and mutated only inside the atomic
// increment.
type CounterState struct {
	// Value is the last consumed counter value. It only increases between
	// resets; a reset returns it to 0.
	Value int64

	// LastResetAt is nil until the first reset establishes a baseline.
	LastResetAt *time.Time
}

// Context is the immutable per-call value map consumed by custom variables
// and conditional blocks.
type Context = variable.Context

// GeneratedNumber is the result of one successful generation.
type GeneratedNumber struct {
	// Value is the rendered identifier.
	Value string `json:"value"`

	// Counter is the consumed counter value.
	Counter int64 `json:"counter"`

	// GeneratedAt is the generation timestamp.
	GeneratedAt time.Time `json:"generated_at"`

	// Metadata carries flags such as is_preview or fallback.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsPreview reports whether the number was produced without consuming the counter.
func (g *GeneratedNumber) IsPreview() bool {
	return g.Metadata["is_preview"] == "true"
}
