package sequence

import (
	"context"
	"time"
)

// CounterStore is the engine's boundary to durable, lockable counter state
// keyed by (scope, name). Implementations live in the infrastructure layer
// (PostgreSQL row locks, Redis scripts, in-process locks).
type CounterStore interface {
	// Exists reports whether counter state is provisioned for the sequence.
	Exists(ctx context.Context, cfg Config) (bool, error)

	// Create provisions counter state at zero. Returns false when state
	// already existed.
	Create(ctx context.Context, cfg Config) (bool, error)

	// GetCurrentState reads the counter without locking. Used by previews;
	// never by generation.
	GetCurrentState(ctx context.Context, cfg Config) (CounterState, error)

	// LockAndIncrement acquires an exclusive per-row lock, applies the reset
	// policy, increments by cfg.StepSize, and returns the post-increment
	// state. The reset and increment are indivisible for concurrent callers
	// on the same (scope, name).
	//
	// Errors are classified: LOCK_TIMEOUT when the lock was not acquired
	// within the caller's budget (nothing was mutated, safe to retry),
	// COUNTER_INCREMENT for any other store failure.
	LockAndIncrement(ctx context.Context, cfg Config, now time.Time) (CounterState, error)

	// SetCounter overwrites the counter value. Administrative surface for
	// migrations; not part of the generation protocol.
	SetCounter(ctx context.Context, cfg Config, value int64) error
}

// ConfigRepository persists sequence configurations. Configurations change
// rarely and may be cached read-only with a bounded TTL; counter values must
// never be cached.
type ConfigRepository interface {
	Get(ctx context.Context, scopeID, name string) (Config, error)
	Save(ctx context.Context, cfg Config) error
	List(ctx context.Context, scopeID string) ([]Config, error)
	SetEnabled(ctx context.Context, scopeID, name string, enabled bool) error
}
