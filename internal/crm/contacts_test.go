package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func TestManageContact_Composite(t *testing.T) {
	var calls []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/contacts/c1":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decoding update body: %v", err)
			}
			if body["companyName"] != "Beta Comercio" {
				t.Errorf("companyName = %v", body["companyName"])
			}
			if _, present := body["email"]; present {
				t.Error("empty fields must be omitted from the update body")
			}
			cf, ok := body["customFields"].([]any)
			if !ok || len(cf) != 1 {
				t.Fatalf("customFields = %v", body["customFields"])
			}
			first := cf[0].(map[string]any)
			if first["value"] != "vip" {
				t.Errorf("custom field payload key should be value, got %v", first)
			}
		case r.Method == http.MethodPost && r.URL.Path == "/contacts/c1/tags":
		case r.Method == http.MethodDelete && r.URL.Path == "/contacts/c1/tags":
		case r.Method == http.MethodPost && r.URL.Path == "/contacts/c1/notes":
		case r.Method == http.MethodPost && r.URL.Path == "/contacts/c1/workflow/wf-9":
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"succeded": true}`))
	}))

	results, err := client.ManageContact(context.Background(), "tok", ManageContactRequest{
		ContactID: "c1",
		Updates: &ContactUpdates{
			CompanyName:  "Beta Comercio",
			CustomFields: []CustomFieldUpdate{{ID: "f1", Value: "vip"}},
		},
		Tags:       []string{"cliente"},
		RemoveTags: []string{"lead"},
		Notes:      []string{"nota 1", "nota 2"},
		WorkflowID: "wf-9",
	})
	if err != nil {
		t.Fatalf("ManageContact(): %v", err)
	}

	want := []string{
		"PUT /contacts/c1",
		"POST /contacts/c1/tags",
		"DELETE /contacts/c1/tags",
		"POST /contacts/c1/notes",
		"POST /contacts/c1/notes",
		"POST /contacts/c1/workflow/wf-9",
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
	for _, key := range []string{"updateContact", "addTags", "removeTags", "notes", "workflow"} {
		if _, ok := results[key]; !ok {
			t.Errorf("results missing %q", key)
		}
	}
}

func TestManageContact_RequiresContactID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}))
	if _, err := client.ManageContact(context.Background(), "tok", ManageContactRequest{}); err == nil {
		t.Fatal("expected error without contactId")
	}
}

func TestGetCustomFields_DefaultsModel(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("model"); got != "contact" {
			t.Errorf("model = %q, want contact", got)
		}
		w.Write([]byte(`{"customFields": []}`))
	}))
	if _, err := client.GetCustomFields(context.Background(), "tok", "loc-1", ""); err != nil {
		t.Fatalf("GetCustomFields(): %v", err)
	}
}

func TestExtractCompanyName(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"top level", map[string]any{"companyName": "Acme Ltda"}, "Acme Ltda"},
		{"under contact", map[string]any{"contact": map[string]any{"businessName": "Beta"}}, "Beta"},
		{"under data", map[string]any{"data": map[string]any{"company": "Gama"}}, "Gama"},
		{"snake case", map[string]any{"company_name": "Delta"}, "Delta"},
		{"priority order", map[string]any{"companyName": "First", "company": "Second"}, "First"},
		{"blank skipped", map[string]any{"companyName": "  ", "businessName": "Real"}, "Real"},
		{"missing", map[string]any{"name": "João"}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCompanyName(tt.payload); got != tt.want {
				t.Fatalf("ExtractCompanyName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	payload := map[string]any{"contact": map[string]any{
		"address1":    "Rua das Flores, 100",
		"address2":    "Sala 3",
		"city":        "São Paulo",
		"state":       "SP",
		"postal_code": "01000-000",
		"country":     "BR",
	}}
	a := ExtractAddress(payload)
	if a.Street != "Rua das Flores, 100" || a.Address2 != "Sala 3" ||
		a.City != "São Paulo" || a.State != "SP" ||
		a.PostalCode != "01000-000" || a.Country != "BR" {
		t.Fatalf("ExtractAddress() = %+v", a)
	}
	if a.Empty() {
		t.Fatal("Empty() = true for a filled address")
	}
	if !(Address{}).Empty() {
		t.Fatal("Empty() = false for the zero address")
	}
}
