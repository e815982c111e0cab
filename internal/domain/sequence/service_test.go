package sequence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"seqgen/internal/core/apperror"
	"seqgen/internal/core/variable"
)

func testRegistry() *variable.Registry {
	r := variable.NewRegistry()
	r.MustRegister(variable.NewDepartmentCode())
	r.MustRegister(variable.NewCustomerTier())
	return r
}

func testConfig() Config {
	return DefaultConfig("tenant-1", "invoice", "INV-{YEAR}-{COUNTER:5}")
}

var genTime = time.Date(2025, time.March, 7, 10, 30, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	store := &MockStore{
		LockAndIncrementFunc: func(_ context.Context, cfg Config, _ time.Time) (CounterState, error) {
			return CounterState{Value: 42}, nil
		},
	}
	publisher := &MockPublisher{}
	svc := NewService(store, testRegistry(), WithPublisher(publisher))

	n, err := svc.Generate(context.Background(), testConfig(), nil, genTime)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if n.Value != "INV-2025-00042" {
		t.Errorf("Value = %q, want INV-2025-00042", n.Value)
	}
	if n.Counter != 42 {
		t.Errorf("Counter = %d, want 42", n.Counter)
	}
	if n.IsPreview() {
		t.Error("generated number reports preview")
	}

	events := publisher.Events()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Scope != "tenant-1" || ev.SequenceName != "invoice" || ev.Value != "INV-2025-00042" || ev.Counter != 42 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.ID == "" {
		t.Error("event has no ID")
	}
}

func TestGenerateFailsFastBeforeStoreAccess(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		genCtx   Context
		wantCode string
	}{
		{
			name:     "invalid config",
			mutate:   func(c *Config) { c.Padding = 0 },
			wantCode: apperror.CodeValidation,
		},
		{
			name:     "disabled sequence",
			mutate:   func(c *Config) { c.Enabled = false },
			wantCode: apperror.CodeSequenceDisabled,
		},
		{
			name:     "malformed pattern",
			mutate:   func(c *Config) { c.Pattern = "INV-{" },
			wantCode: apperror.CodePatternSyntax,
		},
		{
			name:     "unknown variable",
			mutate:   func(c *Config) { c.Pattern = "{BOGUS}" },
			wantCode: apperror.CodePatternValidation,
		},
		{
			name:     "missing required context",
			mutate:   func(c *Config) { c.Pattern = "{DEPARTMENT}-{COUNTER:5}" },
			wantCode: apperror.CodePatternValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockStore{}
			svc := NewService(store, testRegistry())

			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := svc.Generate(context.Background(), cfg, tt.genCtx, genTime)
			if !apperror.IsCode(err, tt.wantCode) {
				t.Errorf("Generate = %v, want code %s", err, tt.wantCode)
			}
			if store.TotalCalls() != 0 {
				t.Errorf("store was touched %d times during fail-fast validation", store.TotalCalls())
			}
		})
	}
}

func TestGenerateConditionalFallbackWithEmptyContext(t *testing.T) {
	// The else branch of a conditional must not require the context keys of
	// the then branch. An empty context takes the fallback literal.
	var counter int64
	store := &MockStore{
		LockAndIncrementFunc: func(context.Context, Config, time.Time) (CounterState, error) {
			counter++
			return CounterState{Value: counter}, nil
		},
	}
	svc := NewService(store, testRegistry())

	cfg := testConfig()
	cfg.Pattern = "INV-{?DEPARTMENT?{DEPARTMENT:ABBREV}:GEN}-{YEAR}-{COUNTER:5}"

	n, err := svc.Generate(context.Background(), cfg, nil, genTime)
	if err != nil {
		t.Fatalf("Generate with empty context failed: %v", err)
	}
	if n.Value != "INV-GEN-2025-00001" {
		t.Errorf("Value = %q, want INV-GEN-2025-00001", n.Value)
	}

	n, err = svc.Generate(context.Background(), cfg, Context{"department": "Sales"}, genTime)
	if err != nil {
		t.Fatalf("Generate with department context failed: %v", err)
	}
	if n.Value != "INV-SLS-2025-00002" {
		t.Errorf("Value = %q, want INV-SLS-2025-00002", n.Value)
	}
}

func TestGenerateUnprovisioned(t *testing.T) {
	store := &MockStore{
		ExistsFunc: func(context.Context, Config) (bool, error) { return false, nil },
	}
	svc := NewService(store, testRegistry())

	_, err := svc.Generate(context.Background(), testConfig(), nil, genTime)
	if !apperror.IsSequenceNotFound(err) {
		t.Errorf("Generate = %v, want SEQUENCE_NOT_FOUND", err)
	}
	if store.Calls("LockAndIncrement") != 0 {
		t.Error("increment attempted on unprovisioned sequence")
	}
}

func TestGenerateAutoProvision(t *testing.T) {
	store := &MockStore{
		ExistsFunc: func(context.Context, Config) (bool, error) { return false, nil },
	}
	svc := NewService(store, testRegistry(), WithAutoProvision())

	n, err := svc.Generate(context.Background(), testConfig(), nil, genTime)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if store.Calls("Create") != 1 {
		t.Errorf("Create called %d times, want 1", store.Calls("Create"))
	}
	if n.Counter != 1 {
		t.Errorf("Counter = %d, want 1", n.Counter)
	}
}

func TestGenerateIncrementFailure(t *testing.T) {
	store := &MockStore{
		LockAndIncrementFunc: func(context.Context, Config, time.Time) (CounterState, error) {
			return CounterState{}, errors.New("connection reset")
		},
	}
	svc := NewService(store, testRegistry())

	_, err := svc.Generate(context.Background(), testConfig(), nil, genTime)
	if !apperror.IsCode(err, apperror.CodeCounterIncrement) {
		t.Errorf("Generate = %v, want COUNTER_INCREMENT", err)
	}
}

func TestGenerateLockTimeoutPassesThrough(t *testing.T) {
	store := &MockStore{
		LockAndIncrementFunc: func(_ context.Context, cfg Config, _ time.Time) (CounterState, error) {
			return CounterState{}, apperror.NewLockTimeout(cfg.Scope, cfg.Name)
		},
	}
	svc := NewService(store, testRegistry())

	_, err := svc.Generate(context.Background(), testConfig(), nil, genTime)
	if !apperror.IsLockTimeout(err) {
		t.Errorf("Generate = %v, want LOCK_TIMEOUT", err)
	}
}

func TestGeneratePublishFailureDoesNotFail(t *testing.T) {
	publisher := &MockPublisher{
		PublishFunc: func(context.Context, GeneratedEvent) error {
			return errors.New("broker down")
		},
	}
	svc := NewService(&MockStore{}, testRegistry(), WithPublisher(publisher))

	n, err := svc.Generate(context.Background(), testConfig(), nil, genTime)
	if err != nil {
		t.Fatalf("Generate failed on publish error: %v", err)
	}
	if n.Value == "" {
		t.Error("generated value is empty")
	}
}

func TestGenerateRenderFallback(t *testing.T) {
	// A variable can pass validation and still fail at render time. The
	// counter is already consumed, so the service must degrade, not error.
	registry := testRegistry()
	registry.MustRegister(failingVar{})

	store := &MockStore{
		LockAndIncrementFunc: func(context.Context, Config, time.Time) (CounterState, error) {
			return CounterState{Value: 7}, nil
		},
	}
	svc := NewService(store, registry)

	cfg := testConfig()
	cfg.Pattern = "INV-{FLAKY}-{COUNTER:5}"

	n, err := svc.Generate(context.Background(), cfg, nil, genTime)
	if err != nil {
		t.Fatalf("Generate failed instead of falling back: %v", err)
	}
	if n.Metadata["fallback"] != "true" {
		t.Errorf("Metadata = %v, want fallback=true", n.Metadata)
	}
	if want := "INVOICE-2025-00007"; n.Value != want {
		t.Errorf("fallback value = %q, want %q", n.Value, want)
	}
	if n.Counter != 7 {
		t.Errorf("Counter = %d, want 7", n.Counter)
	}
}

type failingVar struct{}

func (failingVar) Name() string { return "FLAKY" }
func (failingVar) Resolve(variable.Context, time.Time) (string, error) {
	return "", errors.New("resolver exploded")
}
func (failingVar) Validate(variable.Context) variable.ValidationResult {
	return variable.OK()
}

func TestPreview(t *testing.T) {
	store := &MockStore{
		GetCurrentStateFunc: func(context.Context, Config) (CounterState, error) {
			return CounterState{Value: 41}, nil
		},
	}
	svc := NewService(store, testRegistry())

	for i := 0; i < 2; i++ {
		n, err := svc.Preview(context.Background(), testConfig(), nil, genTime)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if n.Value != "INV-2025-00042" {
			t.Errorf("Value = %q, want INV-2025-00042", n.Value)
		}
		if !n.IsPreview() {
			t.Error("preview not flagged")
		}
	}

	if store.Calls("LockAndIncrement") != 0 {
		t.Error("preview consumed the counter")
	}
	if store.Calls("SetCounter") != 0 {
		t.Error("preview mutated the counter")
	}
}

func TestPreviewAppliesResetPolicy(t *testing.T) {
	last := time.Date(2024, time.November, 2, 0, 0, 0, 0, time.UTC)
	store := &MockStore{
		GetCurrentStateFunc: func(context.Context, Config) (CounterState, error) {
			return CounterState{Value: 873, LastResetAt: &last}, nil
		},
	}
	svc := NewService(store, testRegistry())

	n, err := svc.Preview(context.Background(), testConfig(), nil, genTime)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	// Yearly reset pending: the next generation starts over at the step size.
	if n.Counter != 1 {
		t.Errorf("Counter = %d, want 1", n.Counter)
	}
	if n.Value != "INV-2025-00001" {
		t.Errorf("Value = %q, want INV-2025-00001", n.Value)
	}
}

func TestProvision(t *testing.T) {
	store := &MockStore{}
	svc := NewService(store, testRegistry())

	if err := svc.Provision(context.Background(), testConfig()); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	// Context-dependent patterns provision fine; context is checked per call.
	cfg := testConfig()
	cfg.Name = "order"
	cfg.Pattern = "ORD-{DEPARTMENT:ABBREV}-{COUNTER:4}"
	if err := svc.Provision(context.Background(), cfg); err != nil {
		t.Fatalf("Provision of context-dependent pattern failed: %v", err)
	}
}

func TestProvisionDuplicate(t *testing.T) {
	store := &MockStore{
		CreateFunc: func(context.Context, Config) (bool, error) { return false, nil },
	}
	svc := NewService(store, testRegistry())

	err := svc.Provision(context.Background(), testConfig())
	if !apperror.IsCode(err, apperror.CodeDuplicate) {
		t.Errorf("Provision = %v, want DUPLICATE_ENTRY", err)
	}
}

func TestProvisionRejectsBadPattern(t *testing.T) {
	store := &MockStore{}
	svc := NewService(store, testRegistry())

	cfg := testConfig()
	cfg.Pattern = "{BOGUS}"
	if err := svc.Provision(context.Background(), cfg); err == nil {
		t.Error("Provision accepted unknown variable")
	}
	if store.TotalCalls() != 0 {
		t.Error("store touched for invalid provisioning")
	}
}

func TestSetCounter(t *testing.T) {
	store := &MockStore{}
	svc := NewService(store, testRegistry())

	if err := svc.SetCounter(context.Background(), testConfig(), 10500); err != nil {
		t.Fatalf("SetCounter failed: %v", err)
	}
	if store.Calls("SetCounter") != 1 {
		t.Error("store SetCounter not invoked")
	}

	err := svc.SetCounter(context.Background(), testConfig(), -1)
	if !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("SetCounter(-1) = %v, want VALIDATION_ERROR", err)
	}
}

func TestFallbackValueFormat(t *testing.T) {
	cfg := testConfig()
	got := fallbackValue(cfg, 42, genTime)
	if got != "INVOICE-2025-00042" {
		t.Errorf("fallbackValue = %q, want INVOICE-2025-00042", got)
	}
	if !strings.HasPrefix(got, strings.ToUpper(cfg.Name)) {
		t.Errorf("fallback does not start with sequence name: %q", got)
	}
}
