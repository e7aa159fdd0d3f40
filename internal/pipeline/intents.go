package pipeline

import (
	"regexp"
	"strings"
)

// Canned replies for the deterministic intent handlers. The LLM is not
// consulted when one of these fires.
const (
	replyFallback          = "Desculpe, tive um problema ao processar sua mensagem."
	replyNoAnswer          = "Desculpe, não consegui formular uma resposta."
	replyPrefetchFailed    = "No momento não consegui acessar as informações do seu cadastro. Por favor, tente novamente em alguns minutos."
	replyCompanyMissing    = "No momento não consegui acessar a empresa cadastrada no seu cadastro. Por favor, tente novamente em alguns minutos."
	replyAskCompanyName    = "Entendi. Para eu atualizar a empresa no seu cadastro, me diga o nome exato da empresa."
	replyUpdateFailed      = "No momento não consegui atualizar a empresa no seu cadastro. Por favor, tente novamente em alguns minutos."
	replyCorrectionUnclear = "Entendi. No momento não consegui identificar com segurança qual é a empresa correta para atualizar. Você pode me confirmar o nome completo da empresa?"
	replyAddressFailed     = "No momento não consegui acessar o endereço do seu cadastro. Por favor, tente novamente em alguns minutos."
	replyAddressEmpty      = "No momento não encontrei endereço cadastrado no seu cadastro."
	replyBlockedInternalID = "No momento não consegui acessar essa informação com segurança. Por favor, tente novamente em alguns minutos."
)

var (
	internalIDPattern = regexp.MustCompile(`(?i)(\bid\s+do(?:\s+\w+){0,3}\s+contato\b)|(\bc[oó]digo\s+do(?:\s+\w+){0,3}\s+contato\b)|(\bcontact\s*id\b)|(\bcontactid\b)`)
	updateTargetRe    = regexp.MustCompile(`(?i)\b(?:para|pra|p/)\s+(.+)$`)
	trailingPunctRe   = regexp.MustCompile(`[?!\s]+$`)
	leadingSepRe      = regexp.MustCompile(`^[.:\-\s]+`)
)

// BlocksInternalID reports whether text asks for or leaks an internal
// contact identifier. Replies matching this are replaced before dispatch.
func BlocksInternalID(text string) bool {
	return internalIDPattern.MatchString(text)
}

var snapshotKeywords = []string{
	"processo", "andamento", "status", "etapa", "funil", "pipeline", "proposta",
	"orçamento", "orcamento", "empresa", "cadastro", "cadastrada", "cadastrado",
	"valor", "valores", "preço", "preco", "fase",
	"meu cadastro", "meus dados", "dados", "informações", "informacoes",
	"email", "e-mail", "telefone", "celular", "endereço", "endereco", "nome",
}

// WantsContactSnapshot reports whether the message asks about registered
// data, which triggers a contact prefetch before generation.
func WantsContactSnapshot(text string) bool {
	return containsAny(strings.ToLower(text), snapshotKeywords)
}

// IsCompanyQuestion matches questions about the registered company.
func IsCompanyQuestion(text string) bool {
	t := strings.ToLower(text)
	if !strings.Contains(t, "empresa") {
		return false
	}
	return containsAny(t, []string{"cadastro", "cadastrad", "trabalho", "cadastr", "registr"})
}

// IsCompanyCorrection matches a contact stating the registered company is
// wrong and naming the right one.
func IsCompanyCorrection(text string) bool {
	t := strings.ToLower(text)
	if !strings.Contains(t, "não é") && !strings.Contains(t, "nao e") {
		return false
	}
	if !strings.Contains(t, " é ") && !strings.Contains(t, " e ") {
		return false
	}
	return containsAny(t, []string{"ltda", "s/a", "sa", "me", "eireli", "inc", "llc"}) ||
		strings.Contains(t, "empresa")
}

// IsCompanyUpdateRequest matches an explicit request to change the
// registered company.
func IsCompanyUpdateRequest(text string) bool {
	t := strings.ToLower(text)
	if !strings.Contains(t, "empresa") {
		return false
	}
	return containsAny(t, []string{"alter", "atualiz", "muda", "mudar", "troca", "trocar", "corrig", "coloc", "seta", "setar"})
}

// IsAddressQuestion matches questions about the registered address.
func IsAddressQuestion(text string) bool {
	return containsAny(strings.ToLower(text), []string{
		"endereço", "endereco", "rua", "cep", "bairro", "cidade", "estado", "uf", "país", "pais",
	})
}

// ExtractCompanyFromUpdateRequest pulls the target company name out of an
// update request ("troca a empresa para Beta Comercio" yields
// "Beta Comercio"). Empty when no target is named.
func ExtractCompanyFromUpdateRequest(text string) string {
	m := updateTargetRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(trailingPunctRe.ReplaceAllString(m[1], ""))
}

// ExtractCompanyFromCorrection pulls the corrected company name out of a
// correction ("a empresa não é X, é Y" yields "Y"). Empty when the name
// cannot be isolated.
func ExtractCompanyFromCorrection(text string) string {
	raw := strings.TrimSpace(text)
	lower := strings.ToLower(raw)

	idx, sep := -1, ""
	for _, candidate := range []string{" é ", " e "} {
		if i := strings.LastIndex(lower, candidate); i > idx {
			idx, sep = i, candidate
		}
	}
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(leadingSepRe.ReplaceAllString(raw[idx+len(sep):], ""))
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
