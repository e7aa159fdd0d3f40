package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Batch is one debounce window for a conversation. All jobs enqueued while
// the batch is pending are answered together.
type Batch struct {
	ID             uuid.UUID
	ConversationID string
	Status         string
	ScheduledAt    time.Time
	LockedAt       *time.Time
	CreatedAt      time.Time
}

const pendingBatchSQL = `SELECT id, conversation_id, status, scheduled_at, locked_at, created_at
	FROM conversation_batches
	WHERE conversation_id = $1 AND status = 'pending'
	ORDER BY scheduled_at DESC
	LIMIT 1`

// PendingBatch returns the current pending batch for a conversation, or nil
// when none exists.
func (s *Store) PendingBatch(ctx context.Context, conversationID string) (*Batch, error) {
	var b Batch
	err := s.pool.QueryRow(ctx, pendingBatchSQL, conversationID).Scan(
		&b.ID, &b.ConversationID, &b.Status, &b.ScheduledAt, &b.LockedAt, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending batch: %w", err)
	}
	return &b, nil
}

// CreateBatch opens a new pending batch scheduled at the given time.
func (s *Store) CreateBatch(ctx context.Context, conversationID string, scheduledAt time.Time) (*Batch, error) {
	var b Batch
	err := s.pool.QueryRow(ctx, `INSERT INTO conversation_batches (conversation_id, scheduled_at)
		VALUES ($1, $2)
		RETURNING id, conversation_id, status, scheduled_at, locked_at, created_at`,
		conversationID, scheduledAt).Scan(
		&b.ID, &b.ConversationID, &b.Status, &b.ScheduledAt, &b.LockedAt, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}
	return &b, nil
}

// ExtendBatch pushes a pending batch's deadline to the given time. Returns
// false when the batch is no longer pending (a worker already claimed it).
func (s *Store) ExtendBatch(ctx context.Context, batchID uuid.UUID, scheduledAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE conversation_batches
		SET scheduled_at = $2
		WHERE id = $1 AND status = 'pending'`,
		batchID, scheduledAt)
	if err != nil {
		return false, fmt.Errorf("extending batch: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const acquireBatchLockSQL = `UPDATE conversation_batches
	SET locked_at = $2
	WHERE id = $1
	  AND status = 'pending'
	  AND (locked_at IS NULL OR locked_at < $3)
	RETURNING id`

// TryAcquireBatchLock performs a compare-and-set claim on a pending batch.
// The claim succeeds when the batch is unlocked or its previous lock is
// older than staleness (a crashed worker's lock is reclaimed). Returns
// false when another live worker holds the lock or the batch is no longer
// pending.
func (s *Store) TryAcquireBatchLock(ctx context.Context, batchID uuid.UUID, staleness time.Duration) (bool, error) {
	now := s.now().UTC()
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, acquireBatchLockSQL, batchID, now, now.Add(-staleness)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquiring batch lock: %w", err)
	}
	return true, nil
}

// BatchSchedule returns the current deadline and status of a batch.
func (s *Store) BatchSchedule(ctx context.Context, batchID uuid.UUID) (time.Time, string, error) {
	var (
		scheduledAt time.Time
		status      string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT scheduled_at, status FROM conversation_batches WHERE id = $1`,
		batchID).Scan(&scheduledAt, &status)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("querying batch schedule: %w", err)
	}
	return scheduledAt, status, nil
}

// FinishBatch records the terminal status of a batch and releases its lock.
func (s *Store) FinishBatch(ctx context.Context, batchID uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `UPDATE conversation_batches
		SET status = $2, locked_at = NULL
		WHERE id = $1`,
		batchID, status)
	if err != nil {
		return fmt.Errorf("finishing batch: %w", err)
	}
	return nil
}
