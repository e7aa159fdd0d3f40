package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atendai/atendai/internal/crm"
	"github.com/atendai/atendai/internal/llm"
	"github.com/atendai/atendai/internal/store"
)

// crmAPI is every CRM operation the batch run can perform, satisfied by
// *crm.Client.
type crmAPI interface {
	ConversationHistory(ctx context.Context, token, conversationID string) ([]crm.HistoryMessage, error)
	SendMessage(ctx context.Context, token string, msg crm.OutboundMessage) error
	GetContact(ctx context.Context, token, contactID string) (map[string]any, error)
	GetConversation(ctx context.Context, token, conversationID string) (map[string]any, error)
	GetCustomFields(ctx context.Context, token, locationID, model string) (map[string]any, error)
	ManageContact(ctx context.Context, token string, req crm.ManageContactRequest) (map[string]any, error)
}

// autofillToolArgs fills in the id arguments the model left out, using the
// job the batch was built from. Returns which arguments were filled, for
// the trace.
func autofillToolArgs(call *llm.ToolCall, job store.Job) []string {
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	var filled []string
	fill := func(key, value string) {
		if s, _ := call.Args[key].(string); s == "" {
			call.Args[key] = value
			filled = append(filled, key)
		}
	}

	switch call.Name {
	case llm.ToolManageContact, llm.ToolGetContact:
		fill("locationId", job.LocationID)
		fill("contactId", job.ContactID)
	case llm.ToolGetCustomFields:
		fill("locationId", job.LocationID)
	case llm.ToolGetConversation:
		fill("locationId", job.LocationID)
		fill("conversationId", job.ConversationID)
	}
	return filled
}

// dispatchTool executes a tool call against the CRM. Failures become an
// error payload handed back to the model instead of aborting the batch.
func dispatchTool(ctx context.Context, api crmAPI, token string, call *llm.ToolCall, trace *Trace) map[string]any {
	result, err := executeTool(ctx, api, token, call)
	if err != nil {
		trace.Add("tool_call", map[string]any{"name": call.Name, "ok": false, "error": err.Error()})
		return map[string]any{"error": fmt.Sprintf("Failed to call tool function: %s", err)}
	}
	trace.Add("tool_call", map[string]any{"name": call.Name, "ok": true})
	return result
}

func executeTool(ctx context.Context, api crmAPI, token string, call *llm.ToolCall) (map[string]any, error) {
	argStr := func(key string) string {
		s, _ := call.Args[key].(string)
		return s
	}

	switch call.Name {
	case llm.ToolGetContact:
		return api.GetContact(ctx, token, argStr("contactId"))
	case llm.ToolGetConversation:
		return api.GetConversation(ctx, token, argStr("conversationId"))
	case llm.ToolGetCustomFields:
		return api.GetCustomFields(ctx, token, argStr("locationId"), argStr("model"))
	case llm.ToolManageContact:
		req, err := decodeManageContactArgs(call.Args)
		if err != nil {
			return nil, err
		}
		return api.ManageContact(ctx, token, req)
	default:
		return nil, fmt.Errorf("tool not implemented: %s", call.Name)
	}
}

// wireManageContactArgs is the tool-call argument shape. Custom field
// values arrive as field_value and are renamed for the update payload.
type wireManageContactArgs struct {
	ContactID string `json:"contactId"`
	Updates   *struct {
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		BusinessName string `json:"businessName"`
		CompanyName  string `json:"companyName"`
		Company      string `json:"company"`
		CustomFields []struct {
			ID         string `json:"id"`
			FieldValue string `json:"field_value"`
		} `json:"customFields"`
	} `json:"updates"`
	Tags       []string `json:"tags"`
	RemoveTags []string `json:"removeTags"`
	Notes      []string `json:"notes"`
	WorkflowID string   `json:"workflowId"`
}

func decodeManageContactArgs(args map[string]any) (crm.ManageContactRequest, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return crm.ManageContactRequest{}, fmt.Errorf("encoding tool args: %w", err)
	}
	var wire wireManageContactArgs
	if err := json.Unmarshal(raw, &wire); err != nil {
		return crm.ManageContactRequest{}, fmt.Errorf("decoding tool args: %w", err)
	}

	req := crm.ManageContactRequest{
		ContactID:  wire.ContactID,
		Tags:       wire.Tags,
		RemoveTags: wire.RemoveTags,
		Notes:      wire.Notes,
		WorkflowID: wire.WorkflowID,
	}
	if wire.Updates != nil {
		updates := crm.ContactUpdates{
			FirstName:    wire.Updates.FirstName,
			LastName:     wire.Updates.LastName,
			Name:         wire.Updates.Name,
			Email:        wire.Updates.Email,
			Phone:        wire.Updates.Phone,
			BusinessName: wire.Updates.BusinessName,
			CompanyName:  wire.Updates.CompanyName,
			Company:      wire.Updates.Company,
		}
		for _, cf := range wire.Updates.CustomFields {
			updates.CustomFields = append(updates.CustomFields, crm.CustomFieldUpdate{
				ID:    cf.ID,
				Value: cf.FieldValue,
			})
		}
		req.Updates = &updates
	}
	return req, nil
}
