package vonage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/infrastructure/vonage"
	"github.com/jhoicas/lokario-api/pkg/config"
)

func TestSend_SMSFormulario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sms/json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "k", r.PostForm.Get("api_key"))
		assert.Equal(t, "33612345678", r.PostForm.Get("to"))
		assert.Equal(t, "Rappel : RDV demain", r.PostForm.Get("text"))
		_, _ = w.Write([]byte(`{"messages":[{"status":"0"}]}`))
	}))
	defer srv.Close()

	s := vonage.NewTextSender(config.VonageConfig{APIKey: "k", APISecret: "s"}).WithBaseURL(srv.URL)
	err := s.Send(context.Background(), ports.TextMessage{Channel: "sms", From: "Lokario", To: "+33612345678", Text: "Rappel : RDV demain"})
	require.NoError(t, err)
}

func TestSend_SMSRechazado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[{"status":"4","error-text":"Bad Credentials"}]}`))
	}))
	defer srv.Close()

	s := vonage.NewTextSender(config.VonageConfig{APIKey: "k", APISecret: "s"}).WithBaseURL(srv.URL)
	err := s.Send(context.Background(), ports.TextMessage{Channel: "sms", From: "X", To: "33600000000", Text: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad Credentials")
}

func TestSend_WhatsAppConCuentaDeIntegracion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "tenant-key", user)
		assert.Equal(t, "tenant-secret", pass)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "whatsapp", body["channel"])
		assert.Equal(t, "33611111111", body["to"])
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := vonage.NewTextSender(config.VonageConfig{}).WithBaseURL(srv.URL)
	err := s.Send(context.Background(), ports.TextMessage{
		Channel: "whatsapp", From: "+33700000000", To: "+33611111111", Text: "Bonjour",
		Account: &ports.ProviderAccount{APIKey: "tenant-key", APISecret: "tenant-secret"},
	})
	require.NoError(t, err)
}

func TestSend_SinCredenciales(t *testing.T) {
	err := vonage.NewTextSender(config.VonageConfig{}).Send(context.Background(), ports.TextMessage{Channel: "sms", To: "1"})
	assert.Error(t, err)
}
