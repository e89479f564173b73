package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateFollowUpRequest body para POST /followups.
// Si Amount o SourceLabel faltan se toman de la factura o el devis de origen.
type CreateFollowUpRequest struct {
	ClientID           string           `json:"client_id" validate:"required"`
	Type               string           `json:"type" validate:"required,max=50"`
	SourceType         string           `json:"source_type" validate:"omitempty,oneof=quote invoice appointment project conversation manual"`
	SourceID           string           `json:"source_id" validate:"omitempty,max=64"`
	SourceLabel        string           `json:"source_label" validate:"omitempty,max=200"`
	DueDate            *time.Time       `json:"due_date"`
	Amount             *decimal.Decimal `json:"amount"`
	AutoEnabled        bool             `json:"auto_enabled"`
	AutoFrequencyDays  int              `json:"auto_frequency_days" validate:"min=0,max=365"`
	AutoStopOnResponse bool             `json:"auto_stop_on_response"`
	AutoStopOnPaid     bool             `json:"auto_stop_on_paid"`
	AutoStopOnRefused  bool             `json:"auto_stop_on_refused"`
}

// UpdateFollowUpRequest body para PATCH /followups/:id.
type UpdateFollowUpRequest struct {
	Type               *string          `json:"type" validate:"omitempty,max=50"`
	SourceLabel        *string          `json:"source_label" validate:"omitempty,max=200"`
	DueDate            *time.Time       `json:"due_date"`
	Status             *string          `json:"status" validate:"omitempty,oneof='À faire' 'Fait' 'En attente'"`
	Amount             *decimal.Decimal `json:"amount"`
	AutoEnabled        *bool            `json:"auto_enabled"`
	AutoFrequencyDays  *int             `json:"auto_frequency_days" validate:"omitempty,min=0,max=365"`
	AutoStopOnResponse *bool            `json:"auto_stop_on_response"`
	AutoStopOnPaid     *bool            `json:"auto_stop_on_paid"`
	AutoStopOnRefused  *bool            `json:"auto_stop_on_refused"`
}

// SendFollowUpRequest body para POST /followups/:id/send.
// Channel vacío = canal que toca según la configuración; "call" solo registra la llamada.
// Message vacío = plantilla del tipo.
type SendFollowUpRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=email sms whatsapp call"`
	Message string `json:"message" validate:"omitempty,max=5000"`
}

// FollowUpFilter query de GET /followups.
type FollowUpFilter struct {
	PageRequest
	Status     string     `query:"status"`
	ClientID   string     `query:"client_id"`
	SourceType string     `query:"source_type"`
	DueFrom    *time.Time `query:"due_from"`
	DueTo      *time.Time `query:"due_to"`
}

// FollowUpResponse relance en respuestas.
type FollowUpResponse struct {
	ID                 string          `json:"id"`
	ClientID           string          `json:"client_id"`
	ClientName         string          `json:"client_name,omitempty"`
	Type               string          `json:"type"`
	SourceType         string          `json:"source_type"`
	SourceID           string          `json:"source_id,omitempty"`
	SourceLabel        string          `json:"source_label"`
	DueDate            time.Time       `json:"due_date"`
	ActualDate         *time.Time      `json:"actual_date,omitempty"`
	Status             string          `json:"status"`
	Amount             decimal.Decimal `json:"amount"`
	AutoEnabled        bool            `json:"auto_enabled"`
	AutoFrequencyDays  int             `json:"auto_frequency_days"`
	AutoStopOnResponse bool            `json:"auto_stop_on_response"`
	AutoStopOnPaid     bool            `json:"auto_stop_on_paid"`
	AutoStopOnRefused  bool            `json:"auto_stop_on_refused"`
	SentCount          int             `json:"sent_count"`
	LastError          string          `json:"last_error,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// FollowUpListResponse lista paginada.
type FollowUpListResponse struct {
	Items []FollowUpResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// FollowUpHistoryResponse envío registrado.
type FollowUpHistoryResponse struct {
	ID             string    `json:"id"`
	Message        string    `json:"message"`
	Channel        string    `json:"channel"`
	Status         string    `json:"status"`
	SentBy         string    `json:"sent_by"`
	SentAt         time.Time `json:"sent_at"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// FollowUpDetailResponse relance con su historial.
type FollowUpDetailResponse struct {
	FollowUpResponse
	History []FollowUpHistoryResponse `json:"history"`
}

// FollowUpStatsResponse GET /followups/stats.
type FollowUpStatsResponse struct {
	Total         int             `json:"total"`
	ByStatus      map[string]int  `json:"by_status"`
	Overdue       int             `json:"overdue"`
	DueToday      int             `json:"due_today"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	SentThisMonth int             `json:"sent_this_month"`
}

// FollowUpDay relances previstas para un día.
type FollowUpDay struct {
	Date  string             `json:"date"` // YYYY-MM-DD
	Items []FollowUpResponse `json:"items"`
}

// FollowUpWeeklyResponse GET /followups/weekly: lunes a domingo de la semana en curso.
type FollowUpWeeklyResponse struct {
	WeekStart string        `json:"week_start"`
	Days      []FollowUpDay `json:"days"`
}

// SchedulerReport resultado de una pasada del planificador de relances.
type SchedulerReport struct {
	Due       int      `json:"due"`
	Sent      int      `json:"sent"`
	Stopped   int      `json:"stopped"`
	Failed    int      `json:"failed"`
	OverQuota int      `json:"over_quota"`
	Errors    []string `json:"errors,omitempty"`
}
