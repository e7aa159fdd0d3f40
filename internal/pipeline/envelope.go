package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Payload is an unwrapped webhook payload. Accessors tolerate the field
// spelling variants the CRM and intermediary relays produce.
type Payload map[string]any

// UnwrapPayload peels the delivery envelopes some relays wrap around the
// webhook body: an array wraps its first element, and an object whose
// "body" looks like a message payload yields that inner object.
func UnwrapPayload(raw []byte) (Payload, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding webhook payload: %w", err)
	}
	return unwrap(decoded), nil
}

func unwrap(input any) Payload {
	if arr, ok := input.([]any); ok {
		if len(arr) == 0 {
			return Payload{}
		}
		if first, ok := arr[0].(map[string]any); ok {
			if inner, ok := first["body"]; ok {
				return unwrap(inner)
			}
			return unwrap(first)
		}
		return unwrap(arr[0])
	}
	if obj, ok := input.(map[string]any); ok {
		if inner, ok := obj["body"].(map[string]any); ok && looksLikeMessage(inner) {
			return Payload(inner)
		}
		return Payload(obj)
	}
	return Payload{}
}

func looksLikeMessage(obj map[string]any) bool {
	for _, key := range []string{"type", "messageId", "messageType", "conversationId"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func (p Payload) str(keys ...string) string {
	for _, key := range keys {
		if v, ok := p[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Direction returns the message direction, empty when absent.
func (p Payload) Direction() string { return p.str("direction") }

// MessageType returns the channel message type.
func (p Payload) MessageType() string {
	return p.str("messageType", "message_type", "type")
}

// ConversationID returns the conversation id.
func (p Payload) ConversationID() string {
	return p.str("conversationId", "conversation_id")
}

// LocationID returns the CRM location id.
func (p Payload) LocationID() string { return p.str("locationId", "location_id") }

// ContactID returns the contact id.
func (p Payload) ContactID() string { return p.str("contactId", "contact_id") }

// ConversationProviderID returns the custom conversation provider id, if any.
func (p Payload) ConversationProviderID() string {
	return p.str("conversationProviderId", "conversation_provider_id")
}

// MessageID returns the best available message identity for dedup. When the
// payload carries none, a synthetic id is derived from the conversation and
// timestamp so redeliveries of the same event still collide.
func (p Payload) MessageID(now time.Time) string {
	if id := p.str("messageId", "message_id", "webhookId", "webhook_id"); id != "" {
		return id
	}
	conv := p.ConversationID()
	if conv == "" {
		conv = "unknown"
	}
	stamp := p.str("dateAdded", "timestamp")
	if stamp == "" {
		stamp = strconv.FormatInt(now.UnixMilli(), 10)
	}
	return conv + ":" + stamp
}

// Body returns the message text. Some relays nest it one level deeper.
func (p Payload) Body() string {
	if v, ok := p["body"].(string); ok {
		return v
	}
	if inner, ok := p["body"].(map[string]any); ok {
		if v, ok := inner["body"].(string); ok {
			return v
		}
	}
	return ""
}
