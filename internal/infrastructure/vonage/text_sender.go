// Package vonage envío de SMS (SMS API) y WhatsApp (Messages API) por la API REST de Vonage.
package vonage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/pkg/config"
)

var _ ports.TextSender = (*TextSender)(nil)

const (
	defaultSMSURL      = "https://rest.nexmo.com/sms/json"
	defaultMessagesURL = "https://api.nexmo.com/v1/messages"
)

// TextSender usa las credenciales de la integración o, en su defecto, las del servidor.
type TextSender struct {
	apiKey      string
	apiSecret   string
	smsURL      string
	messagesURL string
	httpClient  *http.Client
}

func NewTextSender(cfg config.VonageConfig) *TextSender {
	return &TextSender{
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		smsURL:      defaultSMSURL,
		messagesURL: defaultMessagesURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL apunta ambos endpoints a base (tests con httptest).
func (s *TextSender) WithBaseURL(base string) *TextSender {
	base = strings.TrimRight(base, "/")
	s.smsURL = base + "/sms/json"
	s.messagesURL = base + "/v1/messages"
	return s
}

type smsResponse struct {
	Messages []struct {
		Status    string `json:"status"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

type whatsappRequest struct {
	MessageType string `json:"message_type"`
	Channel     string `json:"channel"`
	From        string `json:"from"`
	To          string `json:"to"`
	Text        string `json:"text"`
}

func (s *TextSender) Send(ctx context.Context, msg ports.TextMessage) error {
	key, secret := s.apiKey, s.apiSecret
	if msg.Account != nil && msg.Account.APIKey != "" {
		key, secret = msg.Account.APIKey, msg.Account.APISecret
	}
	if key == "" || secret == "" {
		return fmt.Errorf("vonage: identifiants manquants")
	}
	// Vonage espera números E.164 sin '+'.
	to := strings.TrimPrefix(msg.To, "+")
	from := strings.TrimPrefix(msg.From, "+")

	if msg.Channel == "whatsapp" {
		return s.sendWhatsApp(ctx, key, secret, whatsappRequest{
			MessageType: "text", Channel: "whatsapp", From: from, To: to, Text: msg.Text,
		})
	}
	return s.sendSMS(ctx, key, secret, from, to, msg.Text)
}

func (s *TextSender) sendSMS(ctx context.Context, key, secret, from, to, text string) error {
	form := url.Values{
		"api_key":    {key},
		"api_secret": {secret},
		"from":       {from},
		"to":         {to},
		"text":       {text},
		"type":       {"unicode"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.smsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, status, err := s.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("vonage sms: HTTP %d", status)
	}
	var resp smsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("vonage sms: réponse illisible: %w", err)
	}
	// status "0" = aceptado; cualquier otro valor es un rechazo por segmento.
	for _, m := range resp.Messages {
		if m.Status != "0" {
			return fmt.Errorf("vonage sms: statut %s: %s", m.Status, m.ErrorText)
		}
	}
	return nil
}

func (s *TextSender) sendWhatsApp(ctx context.Context, key, secret string, payload whatsappRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.messagesURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(key, secret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	raw, status, err := s.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusAccepted && status != http.StatusOK {
		return fmt.Errorf("vonage whatsapp: HTTP %d: %s", status, strings.TrimSpace(string(raw)))
	}
	return nil
}

func (s *TextSender) do(req *http.Request) ([]byte, int, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("vonage: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("vonage: lecture: %w", err)
	}
	return raw, resp.StatusCode, nil
}
