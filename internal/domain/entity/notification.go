package entity

import "time"

// Tipos de notificación.
const (
	NotificationInvoiceOverdue      = "invoice_overdue"
	NotificationQuoteExpired        = "quote_expired"
	NotificationTaskOverdue         = "task_overdue"
	NotificationTaskCritical        = "task_critical"
	NotificationAppointmentReminder = "appointment_reminder"
	NotificationNewMessage          = "new_message"
	NotificationAutoReplyPending    = "auto_reply_pending"
	NotificationQuoteSigned         = "quote_signed"
	NotificationIntegrationError    = "integration_error"
)

// Notification aviso de un tenant. UserID vacío = visible para todos los usuarios del tenant.
// DedupeDay solo se informa en las notificaciones del cron.
type Notification struct {
	ID         string
	CompanyID  string
	UserID     string
	Type       string
	Title      string
	Message    string
	Link       string
	Read       bool
	ReadAt     *time.Time
	SourceType string
	SourceID   string
	DedupeDay  *time.Time
	CreatedAt  time.Time
}
