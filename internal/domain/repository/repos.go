package repository

import "context"

// Repos agrupa los repositorios atados a una misma conexión o transacción.
type Repos struct {
	Companies     CompanyRepository
	Subscriptions SubscriptionRepository
	Users         UserRepository
	Clients       ClientRepository
	Quotes        QuoteRepository
	Signatures    SignatureRepository
	Invoices      InvoiceRepository
	Conversations ConversationRepository
	Folders       FolderRepository
	Integrations  IntegrationRepository
	FollowUps     FollowUpRepository
	Notifications NotificationRepository
	Tasks         TaskRepository
	Appointments  AppointmentRepository
}

// TxRunner unidad de trabajo: fn recibe repos atados a una transacción; commit si fn
// devuelve nil, rollback en otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(r Repos) error) error
}
