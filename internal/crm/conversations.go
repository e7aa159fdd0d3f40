package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"
)

// HistoryMessage is one message from a conversation's CRM history.
type HistoryMessage struct {
	Direction string
	Body      string
	At        time.Time
}

// Inbound reports whether the message came from the contact.
func (m HistoryMessage) Inbound() bool { return m.Direction == "inbound" }

// rawHistoryMessage tolerates the field variants the CRM emits across
// channels.
type rawHistoryMessage struct {
	Direction string `json:"direction"`
	Body      string `json:"body"`
	Message   string `json:"message"`
	DateAdded string `json:"dateAdded"`
	CreatedAt string `json:"createdAt"`
	CreatedAt2 string `json:"created_at"`
	Timestamp string `json:"timestamp"`
	Date      string `json:"date"`
}

func (m rawHistoryMessage) toMessage() HistoryMessage {
	body := m.Body
	if body == "" {
		body = m.Message
	}
	return HistoryMessage{Direction: m.Direction, Body: body, At: m.bestTimestamp()}
}

// bestTimestamp tries the known timestamp fields in order; unparseable or
// absent timestamps sort first.
func (m rawHistoryMessage) bestTimestamp() time.Time {
	for _, s := range []string{m.DateAdded, m.CreatedAt, m.CreatedAt2, m.Timestamp, m.Date} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ConversationHistory fetches the message history of a conversation, oldest
// first. The CRM nests the list either directly under "messages" or one
// level deeper under "messages.messages"; both shapes are accepted.
func (c *Client) ConversationHistory(ctx context.Context, token, conversationID string) ([]HistoryMessage, error) {
	var resp struct {
		Messages json.RawMessage `json:"messages"`
	}
	err := c.doJSON(ctx, http.MethodGet,
		"/conversations/"+url.PathEscape(conversationID)+"/messages",
		token, VersionConversations, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetching conversation history: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	var raw []rawHistoryMessage
	if err := json.Unmarshal(resp.Messages, &raw); err != nil {
		var nested struct {
			Messages []rawHistoryMessage `json:"messages"`
		}
		if err := json.Unmarshal(resp.Messages, &nested); err != nil {
			return nil, nil
		}
		raw = nested.Messages
	}

	out := make([]HistoryMessage, 0, len(raw))
	for _, m := range raw {
		out = append(out, m.toMessage())
	}
	slices.SortStableFunc(out, func(a, b HistoryMessage) int { return a.At.Compare(b.At) })
	return out, nil
}

// OutboundMessage is a reply dispatched back into the conversation.
type OutboundMessage struct {
	Type                   string `json:"type"`
	ContactID              string `json:"contactId"`
	Message                string `json:"message"`
	ConversationProviderID string `json:"conversationProviderId,omitempty"`
}

// SendMessage dispatches a reply through the CRM.
func (c *Client) SendMessage(ctx context.Context, token string, msg OutboundMessage) error {
	err := c.doJSON(ctx, http.MethodPost, "/conversations/messages",
		token, VersionConversations, msg, nil)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// GetConversation fetches the technical details of a conversation.
func (c *Client) GetConversation(ctx context.Context, token, conversationID string) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet,
		"/conversations/"+url.PathEscape(conversationID),
		token, VersionConversations, nil, &out)
	if err != nil {
		return nil, fmt.Errorf("fetching conversation: %w", err)
	}
	return out, nil
}

// messageTypeMapping converts webhook message types to the type field the
// outbound message API expects.
var messageTypeMapping = map[string]string{
	"TYPE_SMS":       "SMS",
	"TYPE_EMAIL":     "Email",
	"TYPE_WHATSAPP":  "WhatsApp",
	"TYPE_INSTAGRAM": "IG",
	"TYPE_FACEBOOK":  "FB",
	"TYPE_GMB":       "Custom",
	"TYPE_WEBCHAT":   "Live_Chat",
	"Custom":         "Custom",
	"SMS":            "SMS",
	"Email":          "Email",
	"WhatsApp":       "WhatsApp",
	"IG":             "IG",
	"FB":             "FB",
	"Live_Chat":      "Live_Chat",
}

// MapMessageType resolves the outbound reply type for an inbound message
// type. Any conversation provider forces SMS; unknown types pass through.
func MapMessageType(messageType, conversationProviderID string) string {
	if conversationProviderID != "" {
		return "SMS"
	}
	if mapped, ok := messageTypeMapping[messageType]; ok {
		return mapped
	}
	return messageType
}
