package sequence

import (
	"context"
	"sync"
	"time"
)

// MockStore is a test implementation of CounterStore.
// Use in unit tests to avoid database dependencies.
type MockStore struct {
	ExistsFunc           func(ctx context.Context, cfg Config) (bool, error)
	CreateFunc           func(ctx context.Context, cfg Config) (bool, error)
	GetCurrentStateFunc  func(ctx context.Context, cfg Config) (CounterState, error)
	LockAndIncrementFunc func(ctx context.Context, cfg Config, now time.Time) (CounterState, error)
	SetCounterFunc       func(ctx context.Context, cfg Config, value int64) error

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how many times the named method was invoked.
func (m *MockStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of store invocations across all methods.
func (m *MockStore) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *MockStore) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Exists implements CounterStore.
func (m *MockStore) Exists(ctx context.Context, cfg Config) (bool, error) {
	m.record("Exists")
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, cfg)
	}
	return true, nil
}

// Create implements CounterStore.
func (m *MockStore) Create(ctx context.Context, cfg Config) (bool, error) {
	m.record("Create")
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cfg)
	}
	return true, nil
}

// GetCurrentState implements CounterStore.
func (m *MockStore) GetCurrentState(ctx context.Context, cfg Config) (CounterState, error) {
	m.record("GetCurrentState")
	if m.GetCurrentStateFunc != nil {
		return m.GetCurrentStateFunc(ctx, cfg)
	}
	return CounterState{}, nil
}

// LockAndIncrement implements CounterStore.
func (m *MockStore) LockAndIncrement(ctx context.Context, cfg Config, now time.Time) (CounterState, error) {
	m.record("LockAndIncrement")
	if m.LockAndIncrementFunc != nil {
		return m.LockAndIncrementFunc(ctx, cfg, now)
	}
	return CounterState{Value: cfg.StepSize}, nil
}

// SetCounter implements CounterStore.
func (m *MockStore) SetCounter(ctx context.Context, cfg Config, value int64) error {
	m.record("SetCounter")
	if m.SetCounterFunc != nil {
		return m.SetCounterFunc(ctx, cfg, value)
	}
	return nil
}

var _ CounterStore = (*MockStore)(nil)

// MockPublisher is a test implementation of EventPublisher.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, event GeneratedEvent) error

	mu     sync.Mutex
	events []GeneratedEvent
}

// Publish implements EventPublisher.
func (m *MockPublisher) Publish(ctx context.Context, event GeneratedEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	return nil
}

// Events returns the published events.
func (m *MockPublisher) Events() []GeneratedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GeneratedEvent(nil), m.events...)
}

var _ EventPublisher = (*MockPublisher)(nil)
