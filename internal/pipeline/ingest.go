package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atendai/atendai/internal/store"
)

// Ingest outcomes. These map one-to-one onto the webhook response bodies.
type IngestStatus string

const (
	StatusAccepted   IngestStatus = "accepted"
	StatusIgnored    IngestStatus = "ignored"
	StatusDuplicate  IngestStatus = "duplicate"
	StatusDisabled   IngestStatus = "disabled"
	StatusBadRequest IngestStatus = "bad_request"
)

// IngestResult reports what happened to one webhook delivery. BatchID and
// LockAcquired are only meaningful for StatusAccepted; LockAcquired means
// this caller is responsible for processing the batch.
type IngestResult struct {
	Status       IngestStatus
	BatchID      uuid.UUID
	LockAcquired bool
}

// ingestStore is the store subset ingestion needs.
type ingestStore interface {
	MessageExists(ctx context.Context, messageID string) (bool, error)
	ConversationAgentEnabled(ctx context.Context, conversationID string) (bool, error)
	LocationByGHLID(ctx context.Context, ghlLocationID string) (uuid.UUID, bool, error)
	ActiveAgent(ctx context.Context, locationID uuid.UUID) (*store.Agent, error)
	AgentKnowledgeBaseIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error)
	InsertMessage(ctx context.Context, m store.InboundMessage) (bool, error)
	PendingBatch(ctx context.Context, conversationID string) (*store.Batch, error)
	ExtendBatch(ctx context.Context, batchID uuid.UUID, scheduledAt time.Time) (bool, error)
	CreateBatch(ctx context.Context, conversationID string, scheduledAt time.Time) (*store.Batch, error)
	EnqueueJob(ctx context.Context, j store.Job) (uuid.UUID, error)
	TryAcquireBatchLock(ctx context.Context, batchID uuid.UUID, staleness time.Duration) (bool, error)
}

// Ingestor turns webhook deliveries into batched jobs.
type Ingestor struct {
	store  ingestStore
	logger *slog.Logger
	now    func() time.Time
}

// NewIngestor creates an Ingestor.
func NewIngestor(s ingestStore, logger *slog.Logger) (*Ingestor, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: s, logger: logger, now: time.Now}, nil
}

// Ingest runs one delivery through the short-circuit chain and, when it
// survives, records the message, folds it into the conversation's pending
// batch (extending the debounce window), and tries to claim the batch lock.
func (i *Ingestor) Ingest(ctx context.Context, raw []byte) (IngestResult, error) {
	payload, err := UnwrapPayload(raw)
	if err != nil {
		return IngestResult{Status: StatusBadRequest}, err
	}

	if dir := payload.Direction(); dir != "" && !strings.EqualFold(dir, "inbound") {
		return IngestResult{Status: StatusIgnored}, nil
	}
	messageType := payload.MessageType()
	if strings.EqualFold(messageType, "CALL") {
		return IngestResult{Status: StatusIgnored}, nil
	}

	conversationID := payload.ConversationID()
	locationID := payload.LocationID()
	contactID := payload.ContactID()
	if conversationID == "" || locationID == "" || contactID == "" {
		return IngestResult{Status: StatusBadRequest}, nil
	}
	messageID := payload.MessageID(i.now())

	exists, err := i.store.MessageExists(ctx, messageID)
	if err != nil {
		return IngestResult{}, err
	}
	if exists {
		return IngestResult{Status: StatusDuplicate}, nil
	}

	enabled, err := i.store.ConversationAgentEnabled(ctx, conversationID)
	if err != nil {
		return IngestResult{}, err
	}
	if !enabled {
		return IngestResult{Status: StatusDisabled}, nil
	}

	locID, found, err := i.store.LocationByGHLID(ctx, locationID)
	if err != nil {
		return IngestResult{}, err
	}
	if !found {
		return IngestResult{Status: StatusDisabled}, nil
	}

	agent, err := i.store.ActiveAgent(ctx, locID)
	if err != nil {
		return IngestResult{}, err
	}
	if agent == nil {
		return IngestResult{Status: StatusDisabled}, nil
	}

	kbIDs, err := i.store.AgentKnowledgeBaseIDs(ctx, agent.ID)
	if err != nil {
		return IngestResult{}, err
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return IngestResult{}, fmt.Errorf("encoding raw payload: %w", err)
	}
	inserted, err := i.store.InsertMessage(ctx, store.InboundMessage{
		MessageID:              messageID,
		LocationID:             locationID,
		ContactID:              contactID,
		ConversationID:         conversationID,
		Body:                   payload.Body(),
		RawPayload:             rawPayload,
		AgentID:                &agent.ID,
		MessageType:            messageType,
		ConversationProviderID: payload.ConversationProviderID(),
	})
	if err != nil {
		return IngestResult{}, err
	}
	if !inserted {
		// Lost the race against a concurrent delivery of the same message.
		return IngestResult{Status: StatusDuplicate}, nil
	}

	scheduledAt := i.now().UTC().Add(DebounceWindow)
	batchID, err := i.placeInBatch(ctx, conversationID, scheduledAt)
	if err != nil {
		return IngestResult{}, err
	}

	_, err = i.store.EnqueueJob(ctx, store.Job{
		MessageID:              messageID,
		AgentID:                agent.ID,
		LocationID:             locationID,
		ContactID:              contactID,
		ConversationID:         conversationID,
		MessageText:            payload.Body(),
		BatchID:                batchID,
		ScheduledAt:            scheduledAt,
		KnowledgeBaseIDs:       kbIDs,
		MessageType:            messageType,
		ConversationProviderID: payload.ConversationProviderID(),
	})
	if err != nil {
		return IngestResult{}, err
	}

	locked, err := i.store.TryAcquireBatchLock(ctx, batchID, LockStaleness)
	if err != nil {
		return IngestResult{}, err
	}
	i.logger.Debug("message ingested",
		"message_id", messageID,
		"conversation_id", conversationID,
		"batch_id", batchID,
		"lock_acquired", locked)

	return IngestResult{Status: StatusAccepted, BatchID: batchID, LockAcquired: locked}, nil
}

// placeInBatch extends the conversation's pending batch to the new
// deadline, or opens a fresh batch when none is pending or the pending one
// got claimed underneath us.
func (i *Ingestor) placeInBatch(ctx context.Context, conversationID string, scheduledAt time.Time) (uuid.UUID, error) {
	pending, err := i.store.PendingBatch(ctx, conversationID)
	if err != nil {
		return uuid.Nil, err
	}
	if pending != nil {
		extended, err := i.store.ExtendBatch(ctx, pending.ID, scheduledAt)
		if err != nil {
			return uuid.Nil, err
		}
		if extended {
			return pending.ID, nil
		}
	}
	created, err := i.store.CreateBatch(ctx, conversationID, scheduledAt)
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}
