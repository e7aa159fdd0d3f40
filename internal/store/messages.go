package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InboundMessage is one deduplicated inbound webhook message.
type InboundMessage struct {
	ID                     uuid.UUID
	MessageID              string
	LocationID             string
	ContactID              string
	ConversationID         string
	Body                   string
	RawPayload             []byte
	AgentID                *uuid.UUID
	MessageType            string
	ConversationProviderID string
	CreatedAt              time.Time
}

const insertMessageSQL = `INSERT INTO inbound_messages
	(message_id, location_id, contact_id, conversation_id, body, raw_payload,
	 agent_id, message_type, conversation_provider_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (message_id) DO NOTHING`

// InsertMessage records an inbound message. Returns false when a message
// with the same message_id already exists (duplicate delivery).
func (s *Store) InsertMessage(ctx context.Context, m InboundMessage) (bool, error) {
	tag, err := s.pool.Exec(ctx, insertMessageSQL,
		m.MessageID, m.LocationID, m.ContactID, m.ConversationID,
		m.Body, m.RawPayload, m.AgentID, m.MessageType, m.ConversationProviderID)
	if err != nil {
		return false, fmt.Errorf("inserting inbound message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MessageExists reports whether a message with the given message_id has
// already been recorded.
func (s *Store) MessageExists(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM inbound_messages WHERE message_id = $1)`,
		messageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking message existence: %w", err)
	}
	return exists, nil
}

// MessageMeta is the channel metadata recorded with a message, used to
// infer the reply type when the job row lacks it.
type MessageMeta struct {
	MessageType            string
	ConversationProviderID string
	RawPayload             []byte
}

// MessageMeta returns the recorded channel metadata for a message, or nil
// when the message is unknown.
func (s *Store) MessageMeta(ctx context.Context, messageID string) (*MessageMeta, error) {
	var m MessageMeta
	err := s.pool.QueryRow(ctx,
		`SELECT message_type, conversation_provider_id, raw_payload
		 FROM inbound_messages WHERE message_id = $1`,
		messageID).Scan(&m.MessageType, &m.ConversationProviderID, &m.RawPayload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying message meta: %w", err)
	}
	return &m, nil
}

// ConversationAgentEnabled reports whether the AI attendant is enabled for
// the conversation. Unknown conversations are treated as disabled.
func (s *Store) ConversationAgentEnabled(ctx context.Context, conversationID string) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx,
		`SELECT agent_enabled FROM conversations WHERE conversation_id = $1`,
		conversationID).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying conversation flag: %w", err)
	}
	return enabled, nil
}

// SetConversationAgentEnabled creates or updates the conversation row with
// the given attendant flag.
func (s *Store) SetConversationAgentEnabled(ctx context.Context, conversationID string, enabled bool) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO conversations (conversation_id, agent_enabled)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id) DO UPDATE SET agent_enabled = EXCLUDED.agent_enabled`,
		conversationID, enabled)
	if err != nil {
		return fmt.Errorf("updating conversation flag: %w", err)
	}
	return nil
}
