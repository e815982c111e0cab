package postgres

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"seqgen/internal/core/apperror"
	"seqgen/internal/domain/sequence"
)

// SchemaDDL creates the engine's tables. Applied by deployment tooling; kept
// here so adapters and tests agree on the shape.
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS seq_sequences (
    scope         TEXT        NOT NULL,
    name          TEXT        NOT NULL,
    pattern       TEXT        NOT NULL,
    reset_period  TEXT        NOT NULL DEFAULT 'never',
    padding       INT         NOT NULL DEFAULT 5,
    step_size     BIGINT      NOT NULL DEFAULT 1,
    reset_limit   BIGINT,
    enabled       BOOLEAN     NOT NULL DEFAULT TRUE,
    current_val   BIGINT      NOT NULL DEFAULT 0,
    last_reset_at TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (scope, name)
);
`

// pgLockNotAvailable is raised when SET LOCAL lock_timeout expires while
// waiting on the row lock.
const pgLockNotAvailable = "55P03"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements sequence.CounterStore and sequence.ConfigRepository on
// PostgreSQL. The atomic increment takes a row-scoped SELECT ... FOR UPDATE
// lock, so two different sequences never contend.
type Store struct {
	txm         *TxManager
	lockTimeout time.Duration
}

// NewStore creates the store. lockTimeout bounds row-lock acquisition in
// LockAndIncrement; zero disables the explicit bound (the caller's context
// deadline still applies).
func NewStore(txm *TxManager, lockTimeout time.Duration) *Store {
	return &Store{txm: txm, lockTimeout: lockTimeout}
}

var (
	_ sequence.CounterStore     = (*Store)(nil)
	_ sequence.ConfigRepository = (*Store)(nil)
)

// sequenceRow maps one seq_sequences row.
type sequenceRow struct {
	Scope       string     `db:"scope"`
	Name        string     `db:"name"`
	Pattern     string     `db:"pattern"`
	ResetPeriod string     `db:"reset_period"`
	Padding     int        `db:"padding"`
	StepSize    int64      `db:"step_size"`
	ResetLimit  *int64     `db:"reset_limit"`
	Enabled     bool       `db:"enabled"`
	CurrentVal  int64      `db:"current_val"`
	LastResetAt *time.Time `db:"last_reset_at"`
}

func (r sequenceRow) config() sequence.Config {
	cfg := sequence.Config{
		Scope:       r.Scope,
		Name:        r.Name,
		Pattern:     r.Pattern,
		ResetPeriod: sequence.ResetPeriod(r.ResetPeriod),
		Padding:     r.Padding,
		StepSize:    r.StepSize,
		Enabled:     r.Enabled,
	}
	if r.ResetLimit != nil {
		cfg.ResetLimit = *r.ResetLimit
	}
	return cfg
}

// --- CounterStore ---

// Exists implements CounterStore.
func (s *Store) Exists(ctx context.Context, cfg sequence.Config) (bool, error) {
	q := s.txm.GetQuerier(ctx)
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seq_sequences WHERE scope = $1 AND name = $2)`,
		cfg.Scope, cfg.Name,
	).Scan(&exists)
	if err != nil {
		return false, apperror.NewCounterIncrement(err)
	}
	return exists, nil
}

// Create implements CounterStore. The counter starts at zero.
func (s *Store) Create(ctx context.Context, cfg sequence.Config) (bool, error) {
	q := s.txm.GetQuerier(ctx)
	var resetLimit *int64
	if cfg.ResetLimit > 0 {
		resetLimit = &cfg.ResetLimit
	}
	tag, err := q.Exec(ctx, `
		INSERT INTO seq_sequences (scope, name, pattern, reset_period, padding, step_size, reset_limit, enabled, current_val)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
		ON CONFLICT (scope, name) DO NOTHING
	`, cfg.Scope, cfg.Name, cfg.Pattern, string(cfg.ResetPeriod), cfg.Padding, cfg.StepSize, resetLimit, cfg.Enabled)
	if err != nil {
		return false, apperror.NewCounterIncrement(err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetCurrentState implements CounterStore. Plain read, no lock.
func (s *Store) GetCurrentState(ctx context.Context, cfg sequence.Config) (sequence.CounterState, error) {
	q := s.txm.GetQuerier(ctx)
	var st sequence.CounterState
	err := q.QueryRow(ctx,
		`SELECT current_val, last_reset_at FROM seq_sequences WHERE scope = $1 AND name = $2`,
		cfg.Scope, cfg.Name,
	).Scan(&st.Value, &st.LastResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return sequence.CounterState{}, apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	if err != nil {
		return sequence.CounterState{}, apperror.NewCounterIncrement(err)
	}
	return st, nil
}

// LockAndIncrement implements CounterStore: one transaction takes the row
// lock, applies the reset policy and writes the incremented value. Lock
// acquisition failures surface as LOCK_TIMEOUT; nothing was mutated.
func (s *Store) LockAndIncrement(ctx context.Context, cfg sequence.Config, now time.Time) (sequence.CounterState, error) {
	opts := DefaultTxOptions()
	opts.LockTimeout = s.lockTimeout

	var result sequence.CounterState
	err := s.txm.RunInTransactionWithOptions(ctx, opts, func(ctx context.Context) error {
		q := s.txm.GetQuerier(ctx)

		var st sequence.CounterState
		err := q.QueryRow(ctx,
			`SELECT current_val, last_reset_at FROM seq_sequences WHERE scope = $1 AND name = $2 FOR UPDATE`,
			cfg.Scope, cfg.Name,
		).Scan(&st.Value, &st.LastResetAt)
		if err != nil {
			return err
		}

		if sequence.ShouldReset(cfg, st, now) {
			st = sequence.Reset(now)
		}
		st.Value += cfg.StepSize

		_, err = q.Exec(ctx, `
			UPDATE seq_sequences
			SET current_val = $3, last_reset_at = $4, updated_at = now()
			WHERE scope = $1 AND name = $2
		`, cfg.Scope, cfg.Name, st.Value, st.LastResetAt)
		if err != nil {
			return err
		}

		result = st
		return nil
	})
	if err != nil {
		return sequence.CounterState{}, classifyIncrementErr(err, cfg)
	}
	return result, nil
}

// SetCounter implements CounterStore.
func (s *Store) SetCounter(ctx context.Context, cfg sequence.Config, value int64) error {
	q := s.txm.GetQuerier(ctx)
	tag, err := q.Exec(ctx,
		`UPDATE seq_sequences SET current_val = $3, updated_at = now() WHERE scope = $1 AND name = $2`,
		cfg.Scope, cfg.Name, value,
	)
	if err != nil {
		return apperror.NewCounterIncrement(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	return nil
}

// classifyIncrementErr maps store failures onto the engine taxonomy. Lock
// timeouts are all-or-nothing and safe to retry; everything else is a
// COUNTER_INCREMENT the caller must treat as possibly persistent.
func classifyIncrementErr(err error, cfg sequence.Config) error {
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return apperror.NewLockTimeout(cfg.Scope, cfg.Name).WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.NewLockTimeout(cfg.Scope, cfg.Name).WithCause(err)
	}
	return apperror.NewCounterIncrement(err)
}

// --- ConfigRepository ---

var configColumns = []string{
	"scope", "name", "pattern", "reset_period", "padding",
	"step_size", "reset_limit", "enabled", "current_val", "last_reset_at",
}

// Get implements ConfigRepository.
func (s *Store) Get(ctx context.Context, scopeID, name string) (sequence.Config, error) {
	query, args, err := psql.
		Select(configColumns...).
		From("seq_sequences").
		Where(sq.Eq{"scope": scopeID, "name": name}).
		ToSql()
	if err != nil {
		return sequence.Config{}, apperror.NewInternal(err)
	}

	var row sequenceRow
	if err := pgxscan.Get(ctx, s.txm.GetQuerier(ctx), &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return sequence.Config{}, apperror.NewSequenceNotFound(scopeID, name)
		}
		return sequence.Config{}, apperror.NewInternal(err)
	}
	return row.config(), nil
}

// Save implements ConfigRepository: administrative update of pattern, period,
// padding, step and limit. Counter state is untouched.
func (s *Store) Save(ctx context.Context, cfg sequence.Config) error {
	var resetLimit *int64
	if cfg.ResetLimit > 0 {
		resetLimit = &cfg.ResetLimit
	}
	query, args, err := psql.
		Update("seq_sequences").
		Set("pattern", cfg.Pattern).
		Set("reset_period", string(cfg.ResetPeriod)).
		Set("padding", cfg.Padding).
		Set("step_size", cfg.StepSize).
		Set("reset_limit", resetLimit).
		Set("enabled", cfg.Enabled).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"scope": cfg.Scope, "name": cfg.Name}).
		ToSql()
	if err != nil {
		return apperror.NewInternal(err)
	}

	tag, err := s.txm.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewSequenceNotFound(cfg.Scope, cfg.Name)
	}
	return nil
}

// List implements ConfigRepository.
func (s *Store) List(ctx context.Context, scopeID string) ([]sequence.Config, error) {
	query, args, err := psql.
		Select(configColumns...).
		From("seq_sequences").
		Where(sq.Eq{"scope": scopeID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var rows []sequenceRow
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, apperror.NewInternal(err)
	}

	configs := make([]sequence.Config, 0, len(rows))
	for _, row := range rows {
		configs = append(configs, row.config())
	}
	return configs, nil
}

// SetEnabled implements ConfigRepository (soft-disable; configs are never deleted).
func (s *Store) SetEnabled(ctx context.Context, scopeID, name string, enabled bool) error {
	tag, err := s.txm.GetQuerier(ctx).Exec(ctx,
		`UPDATE seq_sequences SET enabled = $3, updated_at = now() WHERE scope = $1 AND name = $2`,
		scopeID, name, enabled,
	)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewSequenceNotFound(scopeID, name)
	}
	return nil
}
