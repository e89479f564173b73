package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
)

var _ ports.LLMService = (*OpenAIService)(nil)

// OpenAIService adaptador LLMService sobre la Responses API de OpenAI.
type OpenAIService struct {
	client       *openai.Client
	defaultModel string
	configured   bool
}

// NewOpenAIService construye el adaptador. Sin apiKey las llamadas fallan con prompt_not_configured.
func NewOpenAIService(apiKey, defaultModel string) *OpenAIService {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIService{client: &client, defaultModel: defaultModel, configured: apiKey != ""}
}

// Complete envía instrucciones + historial. Con req.Schema la respuesta es JSON conforme al schema.
func (s *OpenAIService) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if !s.configured {
		return "", domain.NewError(domain.ErrUpstream, domain.CodePromptNotConfigured, "OPENAI_API_KEY non configurée")
	}
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	input := make(responses.ResponseInputParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := responses.EasyInputMessageRoleUser
		if m.Role == ports.RoleAssistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		input = append(input, responses.ResponseInputItemParamOfMessage(m.Content, role))
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}
	if req.System != "" {
		params.Instructions = param.NewOpt(req.System)
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if req.Schema != nil {
		schema, err := schemaMap(req.Schema)
		if err != nil {
			return "", err
		}
		name := req.SchemaName
		if name == "" {
			name = "answer"
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:   constant.JSONSchema("json_schema"),
					Name:   name,
					Strict: param.NewOpt(true),
					Schema: schema,
				},
			},
		}
	}

	resp, err := s.client.Responses.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("AI: timeout o cancelación: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: openai: %v", domain.ErrUpstream, err)
	}
	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", fmt.Errorf("%w: openai: respuesta vacía", domain.ErrUpstream)
	}
	return out, nil
}
