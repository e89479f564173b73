package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
)

// Verificar en tiempo de compilación que AnthropicService implementa LLMService.
var _ ports.LLMService = (*AnthropicService)(nil)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 1024
)

// AnthropicService adaptador que implementa LLMService usando la API REST de Anthropic (Claude).
// Proveedor alternativo (LLM_PROVIDER=anthropic). Claude no tiene salida estructurada estricta:
// el schema viaja en las instrucciones y la respuesta se limpia con extractJSON.
type AnthropicService struct {
	apiKey       string
	defaultModel string
	endpoint     string
	httpClient   *http.Client
}

// NewAnthropicService construye el adaptador.
// Si apiKey está vacío las llamadas devuelven error descriptivo en lugar de panic.
func NewAnthropicService(apiKey, model string) *AnthropicService {
	return &AnthropicService{
		apiKey:       apiKey,
		defaultModel: model,
		endpoint:     anthropicMessagesURL,
		httpClient: &http.Client{
			// Timeout de red de 25 s; los use cases imponen además su propio context.WithTimeout.
			Timeout: 25 * time.Second,
		},
	}
}

// WithEndpoint cambia la URL de la API (tests con httptest).
func (s *AnthropicService) WithEndpoint(url string) *AnthropicService {
	s.endpoint = url
	return s
}

// ── Estructuras internas del protocolo Anthropic Messages API ─────────────────

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// jsonBlockRe extrae el primer objeto JSON del texto aunque Claude lo envuelva en markdown.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// ── Implementación del puerto ─────────────────────────────────────────────────

// Complete envía el historial a Claude y devuelve el texto de la primera respuesta.
func (s *AnthropicService) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if s.apiKey == "" {
		return "", domain.NewError(domain.ErrUpstream, domain.CodePromptNotConfigured, "ANTHROPIC_API_KEY non configurée")
	}

	system := req.System
	if req.Schema != nil {
		schema, err := schemaMap(req.Schema)
		if err != nil {
			return "", err
		}
		rawSchema, _ := json.Marshal(schema)
		system += "\n\nRéponds UNIQUEMENT avec un objet JSON valide (sans markdown) conforme à ce JSON Schema :\n" + string(rawSchema)
	}

	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    system,
	}
	if payload.Model == "" {
		payload.Model = s.defaultModel
	}
	if payload.MaxTokens <= 0 {
		payload.MaxTokens = anthropicMaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		payload.Temperature = &t
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("AI: serializar request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("AI: crear HTTP request: %w", err)
	}
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("AI: timeout o cancelación: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: AI: llamada HTTP fallida: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return "", fmt.Errorf("AI: leer respuesta: %w", err)
	}

	// Manejar errores HTTP de la API de Anthropic
	if resp.StatusCode != http.StatusOK {
		var errResp anthropicResponse
		if jsonErr := json.Unmarshal(rawBody, &errResp); jsonErr == nil && errResp.Error != nil {
			return "", fmt.Errorf("%w: Anthropic (%s): %s", domain.ErrUpstream, errResp.Error.Type, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: Anthropic HTTP %d", domain.ErrUpstream, resp.StatusCode)
	}

	var anthResp anthropicResponse
	if err := json.Unmarshal(rawBody, &anthResp); err != nil {
		return "", fmt.Errorf("AI: deserializar respuesta Anthropic: %w", err)
	}
	var text strings.Builder
	for _, c := range anthResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", fmt.Errorf("%w: Claude devolvió respuesta vacía", domain.ErrUpstream)
	}
	if req.Schema != nil {
		// Parseo seguro: extraer solo el bloque JSON aunque Claude añada texto adicional.
		if clean := extractJSON(out); clean != "" {
			return clean, nil
		}
	}
	return out, nil
}

// extractJSON extrae el primer objeto JSON bien formado de un texto libre.
// Estrategia en dos pasos:
//  1. Eliminar bloques de código markdown (```json … ``` o ``` … ```).
//  2. Usar regex para capturar el primer bloque { … }.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx != -1 {
		after := text[idx+3:]
		if nl := strings.Index(after, "\n"); nl != -1 {
			after = after[nl+1:]
		}
		if end := strings.LastIndex(after, "```"); end != -1 {
			after = after[:end]
		}
		text = strings.TrimSpace(after)
	}
	if strings.HasPrefix(text, "{") {
		return text
	}
	return strings.TrimSpace(jsonBlockRe.FindString(text))
}
