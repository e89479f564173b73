// Package inbox contiene los casos de uso de la bandeja unificada: ingestión de mensajes,
// agrupación en conversaciones, clasificación en carpetas, respuesta automática,
// sincronización de integraciones y webhooks entrantes.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	domaininbox "github.com/jhoicas/lokario-api/internal/domain/inbox"
)

// Parámetros de la etapa LLM del clasificador.
const (
	ClassifyBatchSize   = 10
	classifyTemperature = 0.2
	classifyMaxTokens   = 800
	classifyTimeout     = 30 * time.Second
	classifySnippet     = 600
	noFolder            = "NONE"
)

// Classifier clasifica conversaciones en carpetas: reglas primero, LLM por lotes después.
type Classifier struct {
	llm   ports.LLMService
	model string
	log   zerolog.Logger
}

// NewClassifier construye el clasificador. llm nil desactiva la etapa LLM.
func NewClassifier(llm ports.LLMService, model string, log zerolog.Logger) *Classifier {
	return &Classifier{llm: llm, model: model, log: log}
}

// AIEnabled indica si hay proveedor LLM para la segunda etapa.
func (c *Classifier) AIEnabled() bool { return c != nil && c.llm != nil }

// Apply recalcula urgencia y estado tras añadir msg, y asigna carpeta por reglas si la
// conversación no tiene. needsAI indica que ninguna regla coincidió pero hay carpetas
// con autoClassify que el LLM puede evaluar.
func (c *Classifier) Apply(conv *entity.Conversation, msg *entity.InboxMessage, folders []entity.InboxFolder, now time.Time) (folder *entity.InboxFolder, needsAI bool) {
	if msg.IsFromClient {
		conv.IsUrgent = domaininbox.IsUrgent(msg.Subject, msg.Content)
	}
	conv.Status = domaininbox.DeriveStatus(conv.Status, conv.LastFromClient, conv.IsUrgent, conv.LastMessageAt, now)

	if conv.FolderID != "" {
		return folderByID(folders, conv.FolderID), false
	}
	if hit := domaininbox.MatchFolder(folders, domaininbox.FromInbox(msg, conv.Subject)); hit != nil {
		conv.FolderID = hit.ID
		return hit, false
	}
	candidates := domaininbox.AutoClassifyFolders(folders)
	return nil, len(candidates) > 0 && !conv.AIClassified && c.AIEnabled()
}

// ── Etapa LLM ──

// Candidate conversación pendiente de clasificar con el extracto de su último mensaje.
type Candidate struct {
	ConversationID string
	Subject        string
	FromEmail      string
	Content        string
}

type classificationItem struct {
	ConversationID string `json:"conversation_id" jsonschema:"description=Identifiant de la conversation analysée"`
	FolderID       string `json:"folder_id" jsonschema:"description=Identifiant du dossier choisi ou NONE"`
}

type classificationAnswer struct {
	Assignments []classificationItem `json:"assignments"`
}

// Suggest pide al LLM una carpeta por conversación (una llamada por lote).
// El resultado solo contiene asignaciones a carpetas candidatas; NONE se omite.
func (c *Classifier) Suggest(ctx context.Context, folders []entity.InboxFolder, batch []Candidate) (map[string]string, error) {
	if !c.AIEnabled() {
		return nil, domain.NewError(domain.ErrUpstream, domain.CodeGenerationFailed, "aucun fournisseur IA configuré")
	}
	candidates := domaininbox.AutoClassifyFolders(folders)
	if len(candidates) == 0 || len(batch) == 0 {
		return map[string]string{}, nil
	}
	if len(batch) > ClassifyBatchSize {
		batch = batch[:ClassifyBatchSize]
	}

	callCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()
	raw, err := c.llm.Complete(callCtx, ports.CompletionRequest{
		System:      classifySystemPrompt,
		Messages:    []ports.ChatMessage{{Role: ports.RoleUser, Content: classifyPrompt(candidates, batch)}},
		Model:       c.model,
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
		Schema:      classificationAnswer{},
		SchemaName:  "folder_classification",
	})
	if err != nil {
		return nil, fmt.Errorf("classification IA: %w", err)
	}

	var answer classificationAnswer
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &answer); err != nil {
		c.log.Warn().Err(err).Str("raw", truncate(raw, 300)).Msg("inbox: respuesta de clasificación no parseable")
		return nil, domain.NewError(domain.ErrUpstream, domain.CodeGenerationFailed, "réponse de classification illisible")
	}

	allowed := make(map[string]bool, len(candidates))
	for _, f := range candidates {
		allowed[f.ID] = true
	}
	inBatch := make(map[string]bool, len(batch))
	for _, b := range batch {
		inBatch[b.ConversationID] = true
	}
	out := make(map[string]string, len(answer.Assignments))
	for _, a := range answer.Assignments {
		if inBatch[a.ConversationID] && a.FolderID != noFolder && allowed[a.FolderID] {
			out[a.ConversationID] = a.FolderID
		}
	}
	return out, nil
}

const classifySystemPrompt = `Tu tries les messages entrants d'une petite entreprise française dans ses dossiers.
Pour chaque conversation, choisis l'identifiant du dossier le plus adapté d'après la description des dossiers, ou NONE si aucun ne convient.
Réponds uniquement avec un objet JSON {"assignments":[{"conversation_id":"...","folder_id":"..."}]}.`

func classifyPrompt(folders []entity.InboxFolder, batch []Candidate) string {
	var b strings.Builder
	b.WriteString("Dossiers :\n")
	for _, f := range folders {
		fmt.Fprintf(&b, "- id=%s nom=%q", f.ID, f.Name)
		if desc := strings.TrimSpace(f.AIRules.Context); desc != "" {
			fmt.Fprintf(&b, " description=%q", desc)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nConversations :\n")
	for _, m := range batch {
		fmt.Fprintf(&b, "- conversation_id=%s\n  de: %s\n  objet: %s\n  message: %s\n",
			m.ConversationID, m.FromEmail, m.Subject, truncate(strings.TrimSpace(m.Content), classifySnippet))
	}
	return b.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func folderByID(folders []entity.InboxFolder, id string) *entity.InboxFolder {
	for _, f := range folders {
		if f.ID == id {
			f := f
			return &f
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
