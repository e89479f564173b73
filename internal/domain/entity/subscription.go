package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Planes.
const (
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// Estados de suscripción.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"
	SubscriptionUnpaid   = "unpaid"
)

// Subscription una por tenant.
type Subscription struct {
	ID                 string
	CompanyID          string
	Plan               string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialEndsAt        *time.Time
	Amount             decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
