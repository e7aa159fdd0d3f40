package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job is one unit of work inside a batch: a single inbound message awaiting
// a batched reply.
type Job struct {
	ID                     uuid.UUID
	MessageID              string
	AgentID                uuid.UUID
	LocationID             string
	ContactID              string
	ConversationID         string
	Status                 string
	MessageText            string
	BatchID                uuid.UUID
	ScheduledAt            time.Time
	KnowledgeBaseIDs       []uuid.UUID
	MessageType            string
	ConversationProviderID string
	ResponseText           *string
	ContextSources         []byte
	ErrorMessage           *string
	CreatedAt              time.Time
}

const enqueueJobSQL = `INSERT INTO inbound_jobs
	(message_id, agent_id, location_id, contact_id, conversation_id,
	 message_text, batch_id, scheduled_at, knowledge_base_ids,
	 message_type, conversation_provider_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

// EnqueueJob inserts a pending job into its batch.
func (s *Store) EnqueueJob(ctx context.Context, j Job) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, enqueueJobSQL,
		j.MessageID, j.AgentID, j.LocationID, j.ContactID, j.ConversationID,
		j.MessageText, j.BatchID, j.ScheduledAt, j.KnowledgeBaseIDs,
		j.MessageType, j.ConversationProviderID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueueing job: %w", err)
	}
	return id, nil
}

const jobCols = `id, message_id, agent_id, location_id, contact_id, conversation_id,
	status, message_text, batch_id, scheduled_at, knowledge_base_ids,
	message_type, conversation_provider_id, response_text, context_sources,
	error_message, created_at`

// ClaimBatchJobs moves all pending jobs of a batch to processing and returns
// them in arrival order. An empty result means the batch had nothing to do.
func (s *Store) ClaimBatchJobs(ctx context.Context, batchID uuid.UUID) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `UPDATE inbound_jobs
		SET status = 'processing'
		WHERE batch_id = $1 AND status = 'pending'
		RETURNING `+jobCols, batchID)
	if err != nil {
		return nil, fmt.Errorf("claiming batch jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(jobs, func(a, b Job) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return jobs, nil
}

// BatchJobs returns every job in a batch, in arrival order.
func (s *Store) BatchJobs(ctx context.Context, batchID uuid.UUID) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobCols+`
		FROM inbound_jobs
		WHERE batch_id = $1
		ORDER BY created_at ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("querying batch jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CompleteBatchJobs marks every processing job of the batch completed with
// the reply text and the decision trace that produced it.
func (s *Store) CompleteBatchJobs(ctx context.Context, batchID uuid.UUID, responseText string, trace []byte) error {
	return s.settleBatchJobs(ctx, batchID, JobStatusCompleted, &responseText, trace, nil)
}

// SkipBatchJobs marks every processing job of the batch skipped, recording
// why in the decision trace.
func (s *Store) SkipBatchJobs(ctx context.Context, batchID uuid.UUID, note string, trace []byte) error {
	return s.settleBatchJobs(ctx, batchID, JobStatusSkipped, &note, trace, nil)
}

// FailBatchJobs marks every processing job of the batch errored.
func (s *Store) FailBatchJobs(ctx context.Context, batchID uuid.UUID, errMsg string, trace []byte) error {
	return s.settleBatchJobs(ctx, batchID, JobStatusError, nil, trace, &errMsg)
}

func (s *Store) settleBatchJobs(ctx context.Context, batchID uuid.UUID,
	status string, responseText *string, trace []byte, errMsg *string) error {
	_, err := s.pool.Exec(ctx, `UPDATE inbound_jobs
		SET status = $2,
		    response_text = COALESCE($3, response_text),
		    context_sources = COALESCE($4, context_sources),
		    error_message = COALESCE($5, error_message)
		WHERE batch_id = $1 AND status = 'processing'`,
		batchID, status, responseText, trace, errMsg)
	if err != nil {
		return fmt.Errorf("settling batch jobs: %w", err)
	}
	return nil
}

func scanJobs(rows pgx.Rows) ([]Job, error) {
	var out []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.MessageID, &j.AgentID, &j.LocationID,
			&j.ContactID, &j.ConversationID, &j.Status, &j.MessageText,
			&j.BatchID, &j.ScheduledAt, &j.KnowledgeBaseIDs, &j.MessageType,
			&j.ConversationProviderID, &j.ResponseText, &j.ContextSources,
			&j.ErrorMessage, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return out, nil
}
