package llm

import "google.golang.org/genai"

// Tool names the model can call. The orchestrator autofills the id
// arguments the model leaves out.
const (
	ToolGetCustomFields = "ghl_get_custom_fields"
	ToolManageContact   = "ghl_manage_contact"
	ToolGetConversation = "ghl_get_conversation"
	ToolGetContact      = "ghl_get_contact"
)

// ToolDeclarations returns the CRM function declarations advertised to the
// model. Descriptions are in Portuguese to match the attendant's working
// language.
func ToolDeclarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        ToolGetCustomFields,
			Description: "Busca a lista de campos personalizados (custom fields) disponíveis na GoHighLevel para contatos ou oportunidades. Se locationId não for informado, o backend preencherá automaticamente.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"locationId": {Type: genai.TypeString, Description: "O ID da location na GHL"},
					"model": {
						Type:        genai.TypeString,
						Enum:        []string{"contact", "opportunity"},
						Description: "O modelo de dados para buscar os campos",
					},
				},
			},
		},
		{
			Name:        ToolManageContact,
			Description: "Ferramenta central para gerenciar contatos na GHL. Pode atualizar dados básicos, campos personalizados, adicionar/remover tags, criar notas e inserir em workflows, tudo em uma única chamada. Se locationId/contactId não forem informados, o backend preencherá automaticamente.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"locationId": {Type: genai.TypeString},
					"contactId":  {Type: genai.TypeString},
					"updates": {
						Type:        genai.TypeObject,
						Description: "Campos para atualizar (firstName, lastName, name, email, phone, businessName/companyName/company, customFields).",
						Properties: map[string]*genai.Schema{
							"firstName":    {Type: genai.TypeString},
							"lastName":     {Type: genai.TypeString},
							"name":         {Type: genai.TypeString},
							"email":        {Type: genai.TypeString},
							"phone":        {Type: genai.TypeString},
							"businessName": {Type: genai.TypeString},
							"companyName":  {Type: genai.TypeString},
							"company":      {Type: genai.TypeString},
							"customFields": {
								Type: genai.TypeArray,
								Items: &genai.Schema{
									Type: genai.TypeObject,
									Properties: map[string]*genai.Schema{
										"id":          {Type: genai.TypeString, Description: "O ID único do campo"},
										"field_value": {Type: genai.TypeString, Description: "O valor a ser gravado"},
									},
									Required: []string{"id", "field_value"},
								},
							},
						},
					},
					"tags":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"removeTags": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"notes":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"workflowId": {Type: genai.TypeString},
				},
			},
		},
		{
			Name:        ToolGetConversation,
			Description: "Obtém os detalhes técnicos de uma conversa específica (status, participantes, etc). Se locationId/conversationId não forem informados, o backend preencherá automaticamente.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"locationId":     {Type: genai.TypeString},
					"conversationId": {Type: genai.TypeString},
				},
			},
		},
		{
			Name:        ToolGetContact,
			Description: "Obtém os detalhes do contato na GoHighLevel (inclui campos e custom fields). Se locationId/contactId não forem informados, o backend preencherá automaticamente.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"locationId": {Type: genai.TypeString},
					"contactId":  {Type: genai.TypeString},
				},
			},
		},
	}
}
