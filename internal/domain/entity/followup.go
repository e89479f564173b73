package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de relance (etiquetas opacas).
const (
	FollowUpToDo    = "À faire"
	FollowUpDone    = "Fait"
	FollowUpWaiting = "En attente"
)

// Tipos de origen.
const (
	FollowUpSourceQuote        = "quote"
	FollowUpSourceInvoice      = "invoice"
	FollowUpSourceAppointment  = "appointment"
	FollowUpSourceProject      = "project"
	FollowUpSourceConversation = "conversation"
	FollowUpSourceManual       = "manual"
)

// Estados de un envío.
const (
	HistorySent    = "envoyé"
	HistoryRead    = "lu"
	HistoryReplied = "répondu"
)

// FollowUp relance anclada a un origen. DueDate = próxima ejecución.
type FollowUp struct {
	ID                 string
	CompanyID          string
	ClientID           string
	Type               string
	SourceType         string
	SourceID           string
	SourceLabel        string
	DueDate            time.Time
	ActualDate         *time.Time
	Status             string
	Amount             decimal.Decimal
	AutoEnabled        bool
	AutoFrequencyDays  int
	AutoStopOnResponse bool
	AutoStopOnPaid     bool
	AutoStopOnRefused  bool
	FailureCount       int
	NextAttemptAt      *time.Time // backoff tras un fallo de transporte
	LastError          string
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Open indica si la relance sigue pendiente.
func (f *FollowUp) Open() bool {
	return f.Status == FollowUpToDo || f.Status == FollowUpWaiting
}

// FollowUpHistory envío registrado (append-only).
type FollowUpHistory struct {
	ID             string
	FollowUpID     string
	CompanyID      string
	Message        string
	Channel        string
	Status         string
	SentBy         string
	SentAt         time.Time
	ConversationID string
}
