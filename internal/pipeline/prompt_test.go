package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/atendai/atendai/internal/crm"
	"github.com/atendai/atendai/internal/store"
)

func TestSystemPrompt(t *testing.T) {
	agent := &store.Agent{
		Personality: "Você é a Clara.",
		Objective:   "Ajudar o cliente.",
	}
	got := SystemPrompt(agent)
	if !strings.HasPrefix(got, "Você é a Clara.\nAjudar o cliente.\n\n") {
		t.Fatalf("prompt does not open with the persona: %q", got[:60])
	}
	if !strings.Contains(got, "CONTEXTO IMPORTANTE (GHL/CRM)") {
		t.Fatal("prompt missing the policy section")
	}
	if !strings.Contains(got, "NUNCA peça IDs internos") {
		t.Fatal("prompt missing the internal-id rule")
	}
}

func TestFormatHistory(t *testing.T) {
	at := time.Now()
	msgs := []crm.HistoryMessage{
		{Direction: "inbound", Body: "oi", At: at},
		{Direction: "outbound", Body: "olá, como posso ajudar?", At: at},
	}
	got := FormatHistory(msgs)
	want := "Usuário: oi\nAssistente: olá, como posso ajudar?"
	if got != want {
		t.Fatalf("FormatHistory() = %q, want %q", got, want)
	}
}

func TestFormatHistory_KeepsOnlyTrailingMessages(t *testing.T) {
	var msgs []crm.HistoryMessage
	for i := range HistoryLimit + 5 {
		msgs = append(msgs, crm.HistoryMessage{
			Direction: "inbound",
			Body:      fmt.Sprintf("msg-%d", i),
		})
	}
	got := FormatHistory(msgs)
	if strings.Contains(got, "msg-4\n") || strings.Contains(got, "msg-0") {
		t.Fatalf("history kept messages past the limit: %q", got)
	}
	if lines := strings.Count(got, "\n") + 1; lines != HistoryLimit {
		t.Fatalf("history lines = %d, want %d", lines, HistoryLimit)
	}
	if !strings.HasSuffix(got, fmt.Sprintf("msg-%d", HistoryLimit+4)) {
		t.Fatalf("history does not end with the newest message: %q", got)
	}
}

func TestBuildUserContent(t *testing.T) {
	in := promptInput{
		History: "Usuário: oi",
		Context: "Q: horário\nA: 18h às 23h",
		Texts:   "qual o horário de hoje?",
		Job: store.Job{
			LocationID:     "loc-1",
			ConversationID: "conv-1",
			ContactID:      "contact-1",
			MessageType:    "TYPE_WHATSAPP",
		},
	}
	got := buildUserContent(in)

	for _, section := range []string{
		"Histórico:\nUsuário: oi",
		"Contexto:\nQ: horário",
		"Mensagens:\nqual o horário de hoje?",
		"[Dados técnicos - não mencionar ao usuário]",
		"locationId=loc-1",
		"conversationId=conv-1",
		"contactId=contact-1",
		"messageType=TYPE_WHATSAPP",
	} {
		if !strings.Contains(got, section) {
			t.Fatalf("user content missing %q:\n%s", section, got)
		}
	}
	if strings.Contains(got, "[Derivado") || strings.Contains(got, "[Dados do contato") {
		t.Fatal("optional sections must be absent when empty")
	}
}

func TestBuildUserContent_OptionalSections(t *testing.T) {
	in := promptInput{
		Texts:             "qual empresa está no meu cadastro?",
		RegisteredCompany: "Acme Ltda",
		Snapshot:          `{"firstName":"Rui"}`,
	}
	got := buildUserContent(in)

	if !strings.Contains(got, "[Derivado - não mencionar ao usuário]\nempresa_cadastrada=Acme Ltda") {
		t.Fatalf("missing derived company section:\n%s", got)
	}
	if !strings.Contains(got, "[Dados do contato (sistema) - não mencionar ao usuário]\n{\"firstName\":\"Rui\"}") {
		t.Fatalf("missing snapshot section:\n%s", got)
	}
}

func TestToShortJSON(t *testing.T) {
	if got := ToShortJSON(map[string]any{"a": 1}); got != `{"a":1}` {
		t.Fatalf("ToShortJSON() = %q", got)
	}

	big := map[string]any{"blob": strings.Repeat("x", SnapshotMaxBytes*2)}
	got := ToShortJSON(big)
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Fatal("oversized value not truncated")
	}
	if len(got) != SnapshotMaxBytes+len("...(truncated)") {
		t.Fatalf("truncated length = %d", len(got))
	}

	if got := ToShortJSON(func() {}); got != "" {
		t.Fatalf("unmarshalable value = %q, want empty", got)
	}
}
