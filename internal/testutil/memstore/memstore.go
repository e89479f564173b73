// Package memstore implementa los repositorios en memoria para los tests de casos de uso.
// Run no revierte cambios: los tests que necesitan atomicidad real usan Postgres.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// Store almacén en memoria compartido por todos los repositorios.
type Store struct {
	mu sync.Mutex

	companies     map[string]entity.Company
	settings      map[string]entity.CompanySettings
	subscriptions map[string]entity.Subscription
	users         map[string]entity.User
	clients       map[string]entity.Client
	quotes        map[string]entity.Quote
	signatures    map[string]entity.QuoteSignature
	otps          []entity.QuoteOTP
	sigAudit      []entity.QuoteSignatureAuditLog
	invoices      map[string]entity.Invoice
	payments      []entity.Payment
	invAudit      []entity.InvoiceAuditLog
	conversations map[string]entity.Conversation
	messages      []entity.InboxMessage
	folders       map[string]entity.InboxFolder
	integrations  map[string]entity.InboxIntegration
	followUps     map[string]entity.FollowUp
	history       []entity.FollowUpHistory
	notifications []entity.Notification
	tasks         map[string]entity.Task
	appointments  map[string]entity.Appointment

	// FailNextCommit hace que el próximo Run devuelva este error después de fn.
	FailNextCommit error
}

// New crea un almacén vacío.
func New() *Store {
	return &Store{
		companies:     map[string]entity.Company{},
		settings:      map[string]entity.CompanySettings{},
		subscriptions: map[string]entity.Subscription{},
		users:         map[string]entity.User{},
		clients:       map[string]entity.Client{},
		quotes:        map[string]entity.Quote{},
		signatures:    map[string]entity.QuoteSignature{},
		invoices:      map[string]entity.Invoice{},
		conversations: map[string]entity.Conversation{},
		folders:       map[string]entity.InboxFolder{},
		integrations:  map[string]entity.InboxIntegration{},
		followUps:     map[string]entity.FollowUp{},
		tasks:         map[string]entity.Task{},
		appointments:  map[string]entity.Appointment{},
	}
}

var _ repository.TxRunner = (*Store)(nil)

// Repos devuelve todos los repositorios sobre este almacén.
func (s *Store) Repos() repository.Repos {
	return repository.Repos{
		Companies:     companyRepo{s},
		Subscriptions: subscriptionRepo{s},
		Users:         userRepo{s},
		Clients:       clientRepo{s},
		Quotes:        quoteRepo{s},
		Signatures:    signatureRepo{s},
		Invoices:      invoiceRepo{s},
		Conversations: conversationRepo{s},
		Folders:       folderRepo{s},
		Integrations:  integrationRepo{s},
		FollowUps:     followUpRepo{s},
		Notifications: notificationRepo{s},
		Tasks:         taskRepo{s},
		Appointments:  appointmentRepo{s},
	}
}

// Run ejecuta fn con los repositorios del almacén.
func (s *Store) Run(_ context.Context, fn func(r repository.Repos) error) error {
	if err := fn(s.Repos()); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.FailNextCommit
	s.FailNextCommit = nil
	s.mu.Unlock()
	return err
}

func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortByCreated[T any](items []*T, created func(*T) int64) {
	sort.SliceStable(items, func(i, j int) bool { return created(items[i]) > created(items[j]) })
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func copyLines(lines []entity.Line) []entity.Line {
	if lines == nil {
		return nil
	}
	out := make([]entity.Line, len(lines))
	copy(out, lines)
	return out
}

var (
	_ repository.CompanyRepository      = companyRepo{}
	_ repository.SubscriptionRepository = subscriptionRepo{}
	_ repository.UserRepository         = userRepo{}
	_ repository.ClientRepository       = clientRepo{}
	_ repository.QuoteRepository        = quoteRepo{}
	_ repository.SignatureRepository    = signatureRepo{}
	_ repository.InvoiceRepository      = invoiceRepo{}
	_ repository.ConversationRepository = conversationRepo{}
	_ repository.FolderRepository       = folderRepo{}
	_ repository.IntegrationRepository  = integrationRepo{}
	_ repository.FollowUpRepository     = followUpRepo{}
	_ repository.NotificationRepository = notificationRepo{}
	_ repository.TaskRepository         = taskRepo{}
	_ repository.AppointmentRepository  = appointmentRepo{}
)
