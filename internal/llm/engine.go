package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// Engine generates replies with Gemini, advertising the CRM tool set on
// every call.
type Engine struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewEngine creates an Engine bound to the given model.
func NewEngine(client *genai.Client, model string, logger *slog.Logger) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{client: client, model: model, logger: logger}, nil
}

// Generate sends the conversation to the model and returns its reply.
func (e *Engine) Generate(ctx context.Context, system string, turns []Turn) (Reply, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		content, err := toContent(t)
		if err != nil {
			return Reply{}, err
		}
		contents = append(contents, content)
	}

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FunctionDeclarations: ToolDeclarations()}},
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(system)},
		}
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return Reply{}, fmt.Errorf("generating content: %w", err)
	}
	return parseReply(resp)
}

func toContent(t Turn) (*genai.Content, error) {
	switch {
	case t.Call != nil:
		return &genai.Content{
			Role: RoleModel,
			Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
				Name: t.Call.Name,
				Args: t.Call.Args,
			}}},
		}, nil
	case t.Result != nil:
		return &genai.Content{
			Role: RoleFunction,
			Parts: []*genai.Part{genai.NewPartFromFunctionResponse(
				t.Result.Name,
				map[string]any{"content": t.Result.Result},
			)},
		}, nil
	case t.Text != "":
		role := t.Role
		if role == "" {
			role = RoleUser
		}
		return &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(t.Text)},
		}, nil
	default:
		return nil, fmt.Errorf("empty turn")
	}
}

func parseReply(resp *genai.GenerateContentResponse) (Reply, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return Reply{}, fmt.Errorf("empty model response")
	}
	part := resp.Candidates[0].Content.Parts[0]
	if part.FunctionCall != nil {
		return Reply{Call: &ToolCall{
			Name: part.FunctionCall.Name,
			Args: part.FunctionCall.Args,
		}}, nil
	}
	return Reply{Text: part.Text}, nil
}
