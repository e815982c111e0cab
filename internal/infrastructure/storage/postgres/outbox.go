package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seqgen/internal/domain/sequence"
	"seqgen/pkg/logger"
)

// OutboxDDL creates the outbox table for SequenceGenerated events.
const OutboxDDL = `
CREATE TABLE IF NOT EXISTS seq_outbox (
    id            UUID        PRIMARY KEY,
    scope         TEXT        NOT NULL,
    sequence_name TEXT        NOT NULL,
    event_type    TEXT        NOT NULL,
    payload       JSONB       NOT NULL,
    status        TEXT        NOT NULL DEFAULT 'pending',
    retry_count   INT         NOT NULL DEFAULT 0,
    last_error    TEXT,
    next_retry_at TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    published_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS seq_outbox_pending_idx ON seq_outbox (created_at) WHERE status = 'pending';
`

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxOutboxRetries before a message is marked failed.
const maxOutboxRetries = 5

// OutboxMessage represents a stored SequenceGenerated event awaiting relay.
type OutboxMessage struct {
	ID           uuid.UUID    `db:"id"`
	Scope        string       `db:"scope"`
	SequenceName string       `db:"sequence_name"`
	EventType    string       `db:"event_type"`
	Payload      []byte       `db:"payload"`
	Status       OutboxStatus `db:"status"`
	RetryCount   int          `db:"retry_count"`
	LastError    *string      `db:"last_error"`
	NextRetryAt  *time.Time   `db:"next_retry_at"`
	CreatedAt    time.Time    `db:"created_at"`
	PublishedAt  *time.Time   `db:"published_at"`
}

// OutboxPublisher persists generation events for asynchronous relay. This is
// the at-least-once leg of the event contract: a write failure is surfaced to
// the generation service, which logs it and keeps the consumed counter.
type OutboxPublisher struct {
	txm *TxManager
}

// NewOutboxPublisher creates an outbox-backed event publisher.
func NewOutboxPublisher(txm *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txm: txm}
}

var _ sequence.EventPublisher = (*OutboxPublisher)(nil)

// Publish implements sequence.EventPublisher. When called inside the
// increment transaction the event commits atomically with the counter;
// outside one it lands in its own statement.
func (p *OutboxPublisher) Publish(ctx context.Context, event sequence.GeneratedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	id, err := uuid.Parse(event.ID)
	if err != nil {
		id = uuid.New()
	}

	_, err = p.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO seq_outbox (id, scope, sequence_name, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, event.Scope, event.SequenceName, sequence.EventTypeGenerated, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler processes relayed outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// outboxFetchQuery claims a batch of due pending messages. SKIP LOCKED keeps
// concurrent relay instances on disjoint batches while the claiming
// transaction is open.
const outboxFetchQuery = `
	SELECT id, scope, sequence_name, event_type, payload, status,
	       retry_count, last_error, next_retry_at, created_at, published_at
	FROM seq_outbox
	WHERE status = $1
	  AND (next_retry_at IS NULL OR next_retry_at <= now())
	ORDER BY created_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
`

// OutboxRelay reads pending messages and hands them to a handler (e.g. the
// Kafka publisher). Run by the background worker.
type OutboxRelay struct {
	pool      *pgxpool.Pool
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *pgxpool.Pool, batchSize int, handler OutboxHandler) *OutboxRelay {
	return &OutboxRelay{
		pool:      pool,
		batchSize: batchSize,
		handler:   handler,
	}
}

// ProcessBatch fetches and processes pending messages.
// Returns number of processed messages.
//
// Fetch and status updates run in one transaction so the SKIP LOCKED row
// locks are held for the whole batch. Concurrent relay instances pick
// disjoint batches instead of double-delivering.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (processed int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	rows, err := tx.Query(ctx, outboxFetchQuery, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		err := rows.Scan(
			&msg.ID, &msg.Scope, &msg.SequenceName, &msg.EventType,
			&msg.Payload, &msg.Status, &msg.RetryCount, &msg.LastError,
			&msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox messages: %w", err)
	}

	for _, msg := range messages {
		if handleErr := r.processMessage(ctx, tx, msg); handleErr != nil {
			logger.Warn(ctx, "outbox message delivery failed",
				"message_id", msg.ID,
				"retry_count", msg.RetryCount,
				"error", handleErr,
			)
			continue
		}
		processed++
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return processed, nil
}

func (r *OutboxRelay) processMessage(ctx context.Context, tx pgx.Tx, msg *OutboxMessage) error {
	err := r.handler.Handle(ctx, msg)
	if err != nil {
		// Linear backoff; the message flips to failed after maxOutboxRetries.
		nextRetry := time.Now().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		errStr := err.Error()

		_, updateErr := tx.Exec(ctx, `
			UPDATE seq_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, errStr, nextRetry, maxOutboxRetries, OutboxStatusFailed, msg.ID)
		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE seq_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}
