// Package store implements the PostgreSQL persistence layer: inbound
// message dedup, conversation batches with their advisory lock, inbound
// jobs, agent and location lookups, CRM token rows, and knowledge search.
package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Batch status values for conversation_batches.status.
const (
	BatchStatusPending   = "pending"
	BatchStatusCompleted = "completed"
	BatchStatusError     = "error"
)

// Job status values for inbound_jobs.status.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusError      = "error"
	JobStatusSkipped    = "skipped"
)

// Knowledge item content types.
const (
	ContentTypeFAQ   = "faq"
	ContentTypeChunk = "chunk"
)

// Store provides typed access to the application schema.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Store backed by the given connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger, now: time.Now}, nil
}
