package ports

import "context"

// Roles de los mensajes del historial enviado al LLM.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage turno del historial.
type ChatMessage struct {
	Role    string
	Content string
}

// CompletionRequest petición de completado. Schema (opcional) es un valor Go cuyo JSON Schema
// se pide como salida estructurada; SchemaName lo identifica ante el proveedor.
type CompletionRequest struct {
	System      string
	Messages    []ChatMessage
	Model       string
	Temperature float64
	MaxTokens   int
	Schema      any
	SchemaName  string
}

// LLMService define el puerto de salida para los servicios de inteligencia artificial.
// Cualquier adaptador (OpenAI, Anthropic, mock) debe implementar esta interfaz.
// El contexto debe llevar un timeout para evitar bloqueos en llamadas externas.
type LLMService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
