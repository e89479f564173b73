package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company representa una organización/tenant del sistema. Nunca se borra físicamente (IsActive).
type Company struct {
	ID                 string
	Code               string // código estable legible, único
	Name               string
	Sector             string
	Siren              string
	Siret              string
	VATNumber          string // TVA intracommunautaire
	RCS                string // ville d'immatriculation + numéro
	LegalForm          string // SARL, SAS, EI...
	Capital            decimal.Decimal
	Address            string
	PostalCode         string
	City               string
	Country            string
	Email              string
	Phone              string
	LogoPath           string // clave en el blob store o ruta local
	StampPath          string // tampon / signature du vendeur en PDF
	IsAutoEntrepreneur bool
	VATExempt          bool
	VATExemptionRef    string // ej. "TVA non applicable, art. 293 B du CGI"
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullAddress dirección en una línea para PDF y snapshots.
func (c *Company) FullAddress() string {
	return joinAddress(c.Address, c.PostalCode, c.City, c.Country)
}

// Snapshot congela los datos del vendedor en el momento de la emisión.
func (c *Company) Snapshot() PartySnapshot {
	return PartySnapshot{
		Name:      c.Name,
		Address:   c.FullAddress(),
		Email:     c.Email,
		Phone:     c.Phone,
		Siren:     c.Siren,
		Siret:     c.Siret,
		VATNumber: c.VATNumber,
		RCS:       c.RCS,
		LegalForm: c.LegalForm,
		Capital:   c.Capital.StringFixed(2),
	}
}
