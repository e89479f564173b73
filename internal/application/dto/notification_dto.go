package dto

import "time"

// NotificationResponse aviso visible para el usuario.
type NotificationResponse struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Link       string     `json:"link,omitempty"`
	Read       bool       `json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	SourceType string     `json:"source_type,omitempty"`
	SourceID   string     `json:"source_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NotificationListResponse listado paginado.
type NotificationListResponse struct {
	Items []NotificationResponse `json:"items"`
	Page  PageResponse           `json:"page"`
}

// UnreadCountResponse contador de no leídas.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
