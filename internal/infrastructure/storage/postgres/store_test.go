package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"seqgen/internal/core/apperror"
	"seqgen/internal/domain/sequence"
)

func TestClassifyIncrementErr(t *testing.T) {
	cfg := sequence.DefaultConfig("tenant-1", "invoice", "INV-{COUNTER:5}")

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "app error passes through",
			err:      apperror.NewSequenceDisabled("tenant-1", "invoice"),
			wantCode: apperror.CodeSequenceDisabled,
		},
		{
			name:     "missing row",
			err:      pgx.ErrNoRows,
			wantCode: apperror.CodeSequenceNotFound,
		},
		{
			name:     "lock_timeout expiry",
			err:      &pgconn.PgError{Code: pgLockNotAvailable},
			wantCode: apperror.CodeLockTimeout,
		},
		{
			name:     "wrapped lock_timeout expiry",
			err:      errors.Join(errors.New("exec"), &pgconn.PgError{Code: pgLockNotAvailable}),
			wantCode: apperror.CodeLockTimeout,
		},
		{
			name:     "context deadline",
			err:      context.DeadlineExceeded,
			wantCode: apperror.CodeLockTimeout,
		},
		{
			name:     "context cancellation",
			err:      context.Canceled,
			wantCode: apperror.CodeLockTimeout,
		},
		{
			name:     "other failures are counter increment errors",
			err:      errors.New("connection reset by peer"),
			wantCode: apperror.CodeCounterIncrement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyIncrementErr(tt.err, cfg)
			if !apperror.IsCode(got, tt.wantCode) {
				t.Errorf("classifyIncrementErr(%v) = %v, want code %s", tt.err, got, tt.wantCode)
			}
		})
	}
}

func TestSequenceRowConfig(t *testing.T) {
	limit := int64(9999)
	row := sequenceRow{
		Scope:       "tenant-1",
		Name:        "invoice",
		Pattern:     "INV-{YEAR}-{COUNTER:5}",
		ResetPeriod: "yearly",
		Padding:     5,
		StepSize:    1,
		ResetLimit:  &limit,
		Enabled:     true,
	}

	cfg := row.config()
	if cfg.ResetPeriod != sequence.ResetYearly {
		t.Errorf("ResetPeriod = %v", cfg.ResetPeriod)
	}
	if cfg.ResetLimit != 9999 {
		t.Errorf("ResetLimit = %d, want 9999", cfg.ResetLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("mapped config invalid: %v", err)
	}

	row.ResetLimit = nil
	if got := row.config().ResetLimit; got != 0 {
		t.Errorf("nil reset_limit mapped to %d, want 0", got)
	}
}

func TestOutboxFetchQueryClaimsRows(t *testing.T) {
	// The fetch must lock claimed rows and let a second relay instance skip
	// them, and it must respect the retry schedule.
	for _, clause := range []string{
		"FOR UPDATE SKIP LOCKED",
		"next_retry_at IS NULL OR next_retry_at <= now()",
		"ORDER BY created_at",
	} {
		if !strings.Contains(outboxFetchQuery, clause) {
			t.Errorf("fetch query missing %q", clause)
		}
	}
}

func TestConfigQuerySQL(t *testing.T) {
	query, args, err := psql.
		Select(configColumns...).
		From("seq_sequences").
		Where(sq.Eq{"scope": "tenant-1", "name": "invoice"}).
		ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	// Placeholders must be PostgreSQL-style.
	if want := 2; len(args) != want {
		t.Errorf("args = %v, want %d values", args, want)
	}
	for _, ph := range []string{"$1", "$2"} {
		if !strings.Contains(query, ph) {
			t.Errorf("query %q missing placeholder %s", query, ph)
		}
	}
}
