package dto

import "time"

// CreateClientRequest body para POST /clients.
type CreateClientRequest struct {
	Name       string   `json:"name" validate:"required,min=1,max=200"`
	Type       string   `json:"type" validate:"omitempty,oneof=Client Prospect"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Phone      string   `json:"phone" validate:"omitempty,max=30"`
	Address    string   `json:"address" validate:"omitempty,max=300"`
	PostalCode string   `json:"postal_code" validate:"omitempty,max=10"`
	City       string   `json:"city" validate:"omitempty,max=100"`
	Country    string   `json:"country" validate:"omitempty,max=100"`
	Siren      string   `json:"siren" validate:"omitempty,max=11"`
	Sector     string   `json:"sector" validate:"omitempty,max=100"`
	Tags       []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

// UpdateClientRequest body para PATCH /clients/:id (campos opcionales).
type UpdateClientRequest struct {
	Name       *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Type       *string  `json:"type" validate:"omitempty,oneof=Client Prospect"`
	Email      *string  `json:"email" validate:"omitempty,email"`
	Phone      *string  `json:"phone" validate:"omitempty,max=30"`
	Address    *string  `json:"address" validate:"omitempty,max=300"`
	PostalCode *string  `json:"postal_code" validate:"omitempty,max=10"`
	City       *string  `json:"city" validate:"omitempty,max=100"`
	Country    *string  `json:"country" validate:"omitempty,max=100"`
	Siren      *string  `json:"siren" validate:"omitempty,max=11"`
	Sector     *string  `json:"sector" validate:"omitempty,max=100"`
	Tags       []string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

// ClientResponse cliente en respuestas.
type ClientResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	City       string    `json:"city,omitempty"`
	Country    string    `json:"country,omitempty"`
	Siren      string    `json:"siren,omitempty"`
	Sector     string    `json:"sector,omitempty"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ClientListResponse lista paginada de clientes.
type ClientListResponse struct {
	Items []ClientResponse `json:"items"`
	Page  PageResponse     `json:"page"`
}
