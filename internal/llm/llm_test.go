package llm

import (
	"testing"

	"google.golang.org/genai"
)

func TestToolDeclarations(t *testing.T) {
	decls := ToolDeclarations()
	if len(decls) != 4 {
		t.Fatalf("len = %d, want 4", len(decls))
	}

	byName := map[string]*genai.FunctionDeclaration{}
	for _, d := range decls {
		byName[d.Name] = d
	}
	for _, name := range []string{ToolGetCustomFields, ToolManageContact, ToolGetConversation, ToolGetContact} {
		d, ok := byName[name]
		if !ok {
			t.Fatalf("missing declaration %q", name)
		}
		if d.Description == "" {
			t.Errorf("%s has no description", name)
		}
		if d.Parameters == nil || d.Parameters.Type != genai.TypeObject {
			t.Errorf("%s parameters not an object schema", name)
		}
		// All id arguments are optional: the backend autofills them.
		if len(d.Parameters.Required) != 0 {
			t.Errorf("%s requires %v, want none", name, d.Parameters.Required)
		}
	}

	manage := byName[ToolManageContact]
	updates, ok := manage.Parameters.Properties["updates"]
	if !ok {
		t.Fatal("ghl_manage_contact missing updates property")
	}
	cf, ok := updates.Properties["customFields"]
	if !ok || cf.Type != genai.TypeArray {
		t.Fatal("updates.customFields missing or not an array")
	}
	wantRequired := map[string]bool{"id": true, "field_value": true}
	for _, r := range cf.Items.Required {
		delete(wantRequired, r)
	}
	if len(wantRequired) != 0 {
		t.Errorf("customFields items missing required keys: %v", wantRequired)
	}
}

func TestToContent(t *testing.T) {
	t.Run("user text defaults role", func(t *testing.T) {
		c, err := toContent(Turn{Text: "oi"})
		if err != nil {
			t.Fatalf("toContent(): %v", err)
		}
		if c.Role != RoleUser || c.Parts[0].Text != "oi" {
			t.Fatalf("content = %+v", c)
		}
	})

	t.Run("tool call becomes model turn", func(t *testing.T) {
		c, err := toContent(Turn{Call: &ToolCall{Name: ToolGetContact, Args: map[string]any{"contactId": "c1"}}})
		if err != nil {
			t.Fatalf("toContent(): %v", err)
		}
		if c.Role != RoleModel || c.Parts[0].FunctionCall == nil {
			t.Fatalf("content = %+v", c)
		}
		if c.Parts[0].FunctionCall.Name != ToolGetContact {
			t.Fatalf("call name = %q", c.Parts[0].FunctionCall.Name)
		}
	})

	t.Run("tool result becomes function turn", func(t *testing.T) {
		c, err := toContent(Turn{Result: &ToolResult{
			Name:   ToolGetContact,
			Result: map[string]any{"contact": map[string]any{"name": "João"}},
		}})
		if err != nil {
			t.Fatalf("toContent(): %v", err)
		}
		if c.Role != RoleFunction || c.Parts[0].FunctionResponse == nil {
			t.Fatalf("content = %+v", c)
		}
	})

	t.Run("empty turn is an error", func(t *testing.T) {
		if _, err := toContent(Turn{}); err == nil {
			t.Fatal("expected error for empty turn")
		}
	})
}

func TestParseReply(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		r, err := parseReply(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{
				Parts: []*genai.Part{genai.NewPartFromText("olá!")},
			}}},
		})
		if err != nil {
			t.Fatalf("parseReply(): %v", err)
		}
		if r.Text != "olá!" || r.Call != nil {
			t.Fatalf("reply = %+v", r)
		}
	})

	t.Run("function call", func(t *testing.T) {
		r, err := parseReply(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
					Name: ToolManageContact,
					Args: map[string]any{"tags": []any{"vip"}},
				}}},
			}}},
		})
		if err != nil {
			t.Fatalf("parseReply(): %v", err)
		}
		if r.Call == nil || r.Call.Name != ToolManageContact {
			t.Fatalf("reply = %+v", r)
		}
	})

	t.Run("empty response", func(t *testing.T) {
		if _, err := parseReply(&genai.GenerateContentResponse{}); err == nil {
			t.Fatal("expected error for empty response")
		}
	})
}
