package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"seqgen/internal/core/apperror"
	"seqgen/internal/domain/sequence"
)

func testConfig() sequence.Config {
	return sequence.DefaultConfig("tenant-1", "invoice", "INV-{COUNTER:5}")
}

func mustCreate(t *testing.T, s *Store, cfg sequence.Config) {
	t.Helper()
	created, err := s.Create(context.Background(), cfg)
	if err != nil || !created {
		t.Fatalf("Create = %v, %v", created, err)
	}
}

func TestLifecycle(t *testing.T) {
	s := NewStore()
	cfg := testConfig()
	ctx := context.Background()

	exists, err := s.Exists(ctx, cfg)
	if err != nil || exists {
		t.Fatalf("Exists before create = %v, %v", exists, err)
	}

	mustCreate(t, s, cfg)

	if created, _ := s.Create(ctx, cfg); created {
		t.Error("second Create reported created")
	}

	st, err := s.GetCurrentState(ctx, cfg)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	if st.Value != 0 || st.LastResetAt != nil {
		t.Errorf("fresh state = %+v, want zero value and nil baseline", st)
	}
}

func TestLockAndIncrementSequential(t *testing.T) {
	s := NewStore()
	cfg := testConfig()
	ctx := context.Background()
	mustCreate(t, s, cfg)

	now := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)
	for want := int64(1); want <= 3; want++ {
		st, err := s.LockAndIncrement(ctx, cfg, now)
		if err != nil {
			t.Fatalf("LockAndIncrement failed: %v", err)
		}
		if st.Value != want {
			t.Errorf("Value = %d, want %d", st.Value, want)
		}
	}
}

func TestLockAndIncrementConcurrent(t *testing.T) {
	s := NewStore()
	cfg := testConfig()
	mustCreate(t, s, cfg)

	const goroutines = 100
	now := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	values := make([]int64, 0, goroutines)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			st, err := s.LockAndIncrement(ctx, cfg, now)
			if err != nil {
				return err
			}
			mu.Lock()
			values = append(values, st.Value)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent increment failed: %v", err)
	}

	// Every generation must observe a distinct, gap-free counter value.
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		if v != int64(i+1) {
			t.Fatalf("values[%d] = %d, want %d (duplicates or gaps)", i, v, i+1)
		}
	}
}

func TestLimitReset(t *testing.T) {
	s := NewStore()
	cfg := testConfig()
	cfg.ResetPeriod = sequence.ResetNever
	cfg.ResetLimit = 3
	mustCreate(t, s, cfg)

	ctx := context.Background()
	now := time.Now().UTC()

	got := make([]int64, 0, 5)
	for i := 0; i < 5; i++ {
		st, err := s.LockAndIncrement(ctx, cfg, now)
		if err != nil {
			t.Fatalf("LockAndIncrement failed: %v", err)
		}
		got = append(got, st.Value)
	}

	// Counter reaches the limit at 3, then resets before the next increment.
	want := []int64{1, 2, 3, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}

	st, _ := s.GetCurrentState(ctx, cfg)
	if st.LastResetAt == nil {
		t.Error("limit reset did not establish a baseline")
	}
}

func TestTimeReset(t *testing.T) {
	s := NewStore()
	cfg := testConfig()
	cfg.ResetPeriod = sequence.ResetYearly
	cfg.ResetLimit = 2
	mustCreate(t, s, cfg)

	ctx := context.Background()
	y2024 := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	y2025 := time.Date(2025, time.January, 1, 1, 0, 0, 0, time.UTC)

	// The third increment trips the limit reset, establishing a 2024 baseline.
	for i := 0; i < 3; i++ {
		if _, err := s.LockAndIncrement(ctx, cfg, y2024); err != nil {
			t.Fatalf("LockAndIncrement failed: %v", err)
		}
	}

	// Crossing into 2025 resets again off the 2024 baseline.
	st, err := s.LockAndIncrement(ctx, cfg, y2025)
	if err != nil {
		t.Fatalf("LockAndIncrement failed: %v", err)
	}
	if st.Value != 1 {
		t.Errorf("Value after year boundary = %d, want 1", st.Value)
	}
}

func TestCancelledContextIsLockTimeout(t *testing.T) {
	s := NewStore()
	cfg := testConfig()
	mustCreate(t, s, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LockAndIncrement(ctx, cfg, time.Now())
	if !apperror.IsLockTimeout(err) {
		t.Errorf("LockAndIncrement with cancelled context = %v, want LOCK_TIMEOUT", err)
	}
}

func TestNotFoundErrors(t *testing.T) {
	s := NewStore()
	cfg := testConfig()
	ctx := context.Background()

	if _, err := s.GetCurrentState(ctx, cfg); !apperror.IsSequenceNotFound(err) {
		t.Errorf("GetCurrentState = %v, want SEQUENCE_NOT_FOUND", err)
	}
	if _, err := s.LockAndIncrement(ctx, cfg, time.Now()); !apperror.IsSequenceNotFound(err) {
		t.Errorf("LockAndIncrement = %v, want SEQUENCE_NOT_FOUND", err)
	}
	if err := s.SetCounter(ctx, cfg, 5); !apperror.IsSequenceNotFound(err) {
		t.Errorf("SetCounter = %v, want SEQUENCE_NOT_FOUND", err)
	}
}

func TestScopeIsolation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	a := sequence.DefaultConfig("tenant-a", "invoice", "A-{COUNTER}")
	b := sequence.DefaultConfig("tenant-b", "invoice", "B-{COUNTER}")
	mustCreate(t, s, a)
	mustCreate(t, s, b)

	for i := 0; i < 3; i++ {
		if _, err := s.LockAndIncrement(ctx, a, now); err != nil {
			t.Fatalf("LockAndIncrement failed: %v", err)
		}
	}

	st, err := s.GetCurrentState(ctx, b)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	if st.Value != 0 {
		t.Errorf("tenant-b counter = %d, want 0 (scope bleed)", st.Value)
	}
}

func TestConfigRepository(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	cfg := testConfig()
	mustCreate(t, s, cfg)

	got, err := s.Get(ctx, cfg.Scope, cfg.Name)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Pattern != cfg.Pattern {
		t.Errorf("Pattern = %q, want %q", got.Pattern, cfg.Pattern)
	}

	got.Pattern = "INV2-{COUNTER:6}"
	if err := s.Save(ctx, got); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reread, _ := s.Get(ctx, cfg.Scope, cfg.Name)
	if reread.Pattern != "INV2-{COUNTER:6}" {
		t.Errorf("Pattern after save = %q", reread.Pattern)
	}

	if err := s.SetEnabled(ctx, cfg.Scope, cfg.Name, false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	reread, _ = s.Get(ctx, cfg.Scope, cfg.Name)
	if reread.Enabled {
		t.Error("sequence still enabled after SetEnabled(false)")
	}

	list, err := s.List(ctx, cfg.Scope)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
}
