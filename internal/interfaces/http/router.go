package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/agenda"
	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/application/followup"
	"github.com/jhoicas/lokario-api/internal/application/inbox"
	"github.com/jhoicas/lokario-api/internal/application/limits"
	"github.com/jhoicas/lokario-api/internal/application/notification"
	"github.com/jhoicas/lokario-api/internal/application/usecase"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/plan"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC         *auth.AuthUseCase
	CompanyUC      *usecase.CompanyUseCase
	UserUC         *usecase.UserUseCase
	Limits         *limits.Service
	ClientUC       *billing.ClientUseCase
	QuoteUC        *billing.QuoteUseCase
	InvoiceUC      *billing.InvoiceUseCase
	PDFUC          *billing.PDFUseCase
	ExportUC       *billing.ExportUseCase
	SignatureUC    *billing.SignatureUseCase
	FolderUC       *inbox.FolderUseCase
	ConversationUC *inbox.ConversationUseCase
	IntegrationUC  *inbox.IntegrationUseCase
	WebhookUC      *inbox.WebhookUseCase
	FollowUpUC     *followup.UseCase
	TaskUC         *agenda.TaskUseCase
	AppointmentUC  *agenda.AppointmentUseCase
	NotificationUC *notification.UseCase
	Cron           cronRunner
	CronSecret     string
	// Files solo con almacenamiento local; nil en GCS (las URLs firmadas apuntan al bucket).
	Files signedFileStore
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Files != nil {
		app.Get("/files/*", NewFilesHandler(deps.Files).Serve)
	}

	api := app.Group("/api/v1")

	// Auth (público)
	authHandler := NewAuthHandler(deps.AuthUC)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	// Restauración: única ruta abierta a cuentas en periodo de gracia.
	api.Post("/auth/account/restore", AuthAllowPendingDeletion(deps.AuthUC), authHandler.Restore)

	// Firma de devis y vista pública (sin JWT). Se registran antes del grupo protegido.
	signatureHandler := NewSignatureHandler(deps.SignatureUC)
	api.Post("/quotes/:id/signature/request-otp", signatureHandler.RequestOTP)
	api.Post("/quotes/:id/signature/submit", signatureHandler.Submit)
	api.Get("/public/quotes/:id", signatureHandler.View)
	api.Get("/public/quotes/:id/signature/evidence", signatureHandler.Evidence)

	// Webhooks y cron (firma HMAC / secreto compartido)
	api.Post("/webhooks/inbox/:provider", NewWebhookHandler(deps.WebhookUC).Receive)
	cronHandler := NewCronHandler(deps.Cron, deps.CronSecret)
	api.Post("/cron/check-overdue-and-reminders", cronHandler.CheckOverdueAndReminders)
	api.Get("/cron/check-overdue-and-reminders", cronHandler.CheckOverdueAndReminders)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.AuthUC))

	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/auth/account/delete-request", RequireRole(entity.RoleOwner), authHandler.RequestDeletion)

	// Empresa y equipo
	companyHandler := NewCompanyHandler(deps.CompanyUC, deps.UserUC)
	protected.Get("/companies/me", companyHandler.Get)
	protected.Patch("/companies/me", RequireRole(entity.RoleOwner, entity.RoleSuperAdmin), companyHandler.Update)
	protected.Get("/companies/me/settings", companyHandler.Settings)
	protected.Patch("/companies/me/settings", RequireRole(entity.RoleOwner, entity.RoleSuperAdmin), companyHandler.UpdateSettings)

	users := protected.Group("/users", RequireRole(entity.RoleOwner, entity.RoleSuperAdmin))
	users.Get("/", companyHandler.ListUsers)
	users.Post("/", companyHandler.CreateUser)
	users.Patch("/:id", companyHandler.UpdateUser)
	users.Delete("/:id", companyHandler.DeleteUser)

	// Clients
	clients := protected.Group("/clients")
	clientHandler := NewClientHandler(deps.ClientUC)
	clients.Get("/", clientHandler.List)
	clients.Post("/", clientHandler.Create)
	clients.Get("/:id", clientHandler.Get)
	clients.Patch("/:id", clientHandler.Update)
	clients.Delete("/:id", clientHandler.Delete)

	// Devis
	quotes := protected.Group("/quotes")
	quoteHandler := NewQuoteHandler(deps.QuoteUC, deps.PDFUC, deps.SignatureUC)
	quotes.Get("/", quoteHandler.List)
	quotes.Post("/", quoteHandler.Create)
	quotes.Get("/:id", quoteHandler.Get)
	quotes.Patch("/:id", quoteHandler.Update)
	quotes.Delete("/:id", quoteHandler.Delete)
	quotes.Post("/:id/send", quoteHandler.Send)
	quotes.Post("/:id/accept", quoteHandler.Accept)
	quotes.Post("/:id/refuse", quoteHandler.Refuse)
	quotes.Get("/:id/pdf", quoteHandler.PDF)
	quotes.Post("/:id/pdf", quoteHandler.PDF)
	quotes.Get("/:id/signature/verify", quoteHandler.VerifySignature)
	quotes.Get("/:id/signature/events", quoteHandler.SignatureEvents)

	// Factures (export antes de /:id)
	invoices := protected.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.InvoiceUC, deps.PDFUC, deps.ExportUC)
	invoices.Get("/export", RequireFeature(plan.FeatureExcelExport, deps.Limits), invoiceHandler.Export)
	invoices.Get("/", invoiceHandler.List)
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/:id", invoiceHandler.Get)
	invoices.Patch("/:id", invoiceHandler.Update)
	invoices.Delete("/:id", invoiceHandler.Delete)
	invoices.Post("/:id/send", invoiceHandler.Send)
	invoices.Post("/:id/cancel", invoiceHandler.Cancel)
	invoices.Post("/:id/archive", invoiceHandler.Archive)
	invoices.Get("/:id/payments", invoiceHandler.ListPayments)
	invoices.Post("/:id/payments", invoiceHandler.RecordPayment)
	invoices.Post("/:id/credit-note", invoiceHandler.CreditNote)
	invoices.Get("/:id/pdf", invoiceHandler.PDF)
	invoices.Get("/:id/audit-logs", invoiceHandler.AuditLogs)

	// Bandeja unificada (plan con inbox)
	inboxHandler := NewInboxHandler(deps.FolderUC, deps.ConversationUC, deps.IntegrationUC)
	inboxGate := RequireFeature(plan.FeatureInbox, deps.Limits)

	conversations := protected.Group("/conversations", inboxGate)
	conversations.Get("/", inboxHandler.ListConversations)
	conversations.Get("/:id", inboxHandler.GetConversation)
	conversations.Patch("/:id", inboxHandler.UpdateConversation)
	conversations.Get("/:id/messages", inboxHandler.Messages)
	conversations.Post("/:id/messages", inboxHandler.Reply)
	conversations.Post("/:id/approve-auto-reply", inboxHandler.ApproveAutoReply)

	inboxGroup := protected.Group("/inbox", inboxGate)
	inboxGroup.Get("/folders", inboxHandler.ListFolders)
	inboxGroup.Post("/folders", inboxHandler.CreateFolder)
	inboxGroup.Patch("/folders/:id", inboxHandler.UpdateFolder)
	inboxGroup.Delete("/folders/:id", inboxHandler.DeleteFolder)
	inboxGroup.Get("/integrations", inboxHandler.ListIntegrations)
	inboxGroup.Post("/integrations", RequireRole(entity.RoleOwner, entity.RoleSuperAdmin), inboxHandler.CreateIntegration)
	inboxGroup.Patch("/integrations/:id", RequireRole(entity.RoleOwner, entity.RoleSuperAdmin), inboxHandler.UpdateIntegration)
	inboxGroup.Delete("/integrations/:id", RequireRole(entity.RoleOwner, entity.RoleSuperAdmin), inboxHandler.DeleteIntegration)
	inboxGroup.Post("/integrations/:id/sync", inboxHandler.SyncIntegration)

	// Relances (stats/weekly antes de /:id)
	followups := protected.Group("/followups")
	followUpHandler := NewFollowUpHandler(deps.FollowUpUC)
	followups.Get("/stats", followUpHandler.Stats)
	followups.Get("/weekly", followUpHandler.Weekly)
	followups.Get("/", followUpHandler.List)
	followups.Post("/", followUpHandler.Create)
	followups.Get("/:id", followUpHandler.Get)
	followups.Patch("/:id", followUpHandler.Update)
	followups.Delete("/:id", followUpHandler.Delete)
	followups.Post("/:id/send", followUpHandler.Send)

	// Agenda
	agendaHandler := NewAgendaHandler(deps.TaskUC, deps.AppointmentUC)
	protected.Get("/tasks", agendaHandler.ListTasks)
	protected.Post("/tasks", agendaHandler.CreateTask)
	protected.Patch("/tasks/:id", agendaHandler.UpdateTask)
	protected.Delete("/tasks/:id", agendaHandler.DeleteTask)

	appointments := protected.Group("/appointments", RequireFeature(plan.FeatureAppointments, deps.Limits))
	appointments.Get("/", agendaHandler.ListAppointments)
	appointments.Post("/", agendaHandler.CreateAppointment)
	appointments.Patch("/:id", agendaHandler.UpdateAppointment)
	appointments.Delete("/:id", agendaHandler.DeleteAppointment)

	// Notificaciones
	notifications := protected.Group("/notifications")
	notificationHandler := NewNotificationHandler(deps.NotificationUC)
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Post("/read-all", notificationHandler.MarkAllRead)
	notifications.Post("/:id/read", notificationHandler.MarkRead)
}
