package entity

import (
	"strings"
	"time"
)

// Tipos de cliente.
const (
	ClientTypeClient   = "Client"
	ClientTypeProspect = "Prospect"
)

// Client contacto de la empresa (facturación, bandeja, relances).
type Client struct {
	ID         string
	CompanyID  string
	Name       string
	Type       string
	Email      string // siempre en minúsculas
	Phone      string // E.164
	Address    string
	PostalCode string
	City       string
	Country    string
	Siren      string
	Sector     string
	Tags       []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullAddress dirección en una línea.
func (c *Client) FullAddress() string {
	return joinAddress(c.Address, c.PostalCode, c.City, c.Country)
}

// Snapshot congela los datos del cliente en el documento.
func (c *Client) Snapshot() PartySnapshot {
	return PartySnapshot{
		Name:    c.Name,
		Address: c.FullAddress(),
		Email:   c.Email,
		Phone:   c.Phone,
		Siren:   c.Siren,
	}
}

func joinAddress(street, postalCode, city, country string) string {
	var parts []string
	if s := strings.TrimSpace(street); s != "" {
		parts = append(parts, s)
	}
	if pc := strings.TrimSpace(strings.TrimSpace(postalCode) + " " + strings.TrimSpace(city)); pc != "" {
		parts = append(parts, pc)
	}
	if c := strings.TrimSpace(country); c != "" && !strings.EqualFold(c, "France") {
		parts = append(parts, c)
	}
	return strings.Join(parts, ", ")
}
