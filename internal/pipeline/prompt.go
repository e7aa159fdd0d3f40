package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atendai/atendai/internal/crm"
	"github.com/atendai/atendai/internal/store"
)

// promptPolicy is the fixed system prompt section appended after the
// agent's persona. It pins the operating context, the contact field
// dictionary, and the formatting rules.
const promptPolicy = `CONTEXTO IMPORTANTE (GHL/CRM):
- Você é um agente interno operando dentro do CRM GoHighLevel (GHL).
- O cliente NÃO tem acesso a IDs internos, tokens, payloads ou ao “cadastro bruto”.
- NUNCA peça IDs internos (contactId, conversationId, etc) e NUNCA mencione esses IDs.
- Se você não conseguir acessar um dado no CRM, diga que não conseguiu acessar a informação no momento.

CAMPOS NATIVOS (contato) — dicionário prático:
- Primeiro Nome: firstName
- Sobrenome: lastName
- Nome completo (Nome): name = firstName + lastName
- Email: email
- Telefone: phone
- Empresa: companyName OU businessName OU company
- Endereço (pense como um “objeto endereço” com campos):
  - street/address1: Rua
  - state: Estado
  - country: País
  - postalCode: CEP
  - city: Cidade
  - address2: Complemento

REGRAS:
- “Nome” normalmente é o nome completo (firstName + lastName), mas você pode atualizar Primeiro Nome e Sobrenome separadamente.

CAPACIDADES:
- Consultar o contato atual (GET CONTACT) para ver o cadastro.
- Atualizar dados do contato (MANAGE CONTACT) quando o usuário solicitar.
- Consultar campos personalizados disponíveis (GET CUSTOM FIELDS) se precisar entender IDs.

FORMATAÇÃO:
- Use *asteriscos* para negrito e _underscores_ para itálico.`

// SystemPrompt builds the system instruction from the agent's persona.
func SystemPrompt(agent *store.Agent) string {
	return fmt.Sprintf("%s\n%s\n\n%s", agent.Personality, agent.Objective, promptPolicy)
}

// FormatHistory renders the trailing HistoryLimit messages as dialogue
// lines for the prompt.
func FormatHistory(msgs []crm.HistoryMessage) string {
	if len(msgs) > HistoryLimit {
		msgs = msgs[len(msgs)-HistoryLimit:]
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		speaker := "Assistente"
		if m.Inbound() {
			speaker = "Usuário"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, m.Body))
	}
	return strings.Join(lines, "\n")
}

// promptInput collects everything that goes into the user turn.
type promptInput struct {
	History           string
	Context           string
	Texts             string
	Job               store.Job
	RegisteredCompany string
	Snapshot          string
}

// buildUserContent assembles the single user turn the model sees: visible
// history, retrieved context and messages, followed by hidden technical
// sections the model must not surface.
func buildUserContent(in promptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Histórico:\n%s\n\nContexto:\n%s\n\nMensagens:\n%s",
		in.History, in.Context, in.Texts)

	fmt.Fprintf(&b, "\n\n[Dados técnicos - não mencionar ao usuário]\nlocationId=%s\nconversationId=%s\ncontactId=%s\nmessageType=%s\nconversationProviderId=%s",
		in.Job.LocationID, in.Job.ConversationID, in.Job.ContactID,
		in.Job.MessageType, in.Job.ConversationProviderID)

	if in.RegisteredCompany != "" {
		fmt.Fprintf(&b, "\n\n[Derivado - não mencionar ao usuário]\nempresa_cadastrada=%s", in.RegisteredCompany)
	}
	if in.Snapshot != "" {
		fmt.Fprintf(&b, "\n\n[Dados do contato (sistema) - não mencionar ao usuário]\n%s", in.Snapshot)
	}
	return b.String()
}

// ToShortJSON serializes value, truncating past SnapshotMaxBytes so one
// oversized contact record cannot blow up the prompt.
func ToShortJSON(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	if len(raw) <= SnapshotMaxBytes {
		return string(raw)
	}
	return string(raw[:SnapshotMaxBytes]) + "...(truncated)"
}
