package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/pkg/config"
)

func validProdConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: "production"},
		JWT:      config.JWTConfig{Secret: "a-real-secret", Algorithm: "HS256"},
		Security: config.SecurityConfig{CronSecret: "cron"},
	}
}

func TestValidate_ProduccionRechazaSecretoPorDefecto(t *testing.T) {
	cfg := validProdConfig()
	cfg.JWT.Secret = config.DefaultJWTSecret
	require.Error(t, cfg.Validate())
}

func TestValidate_ProduccionExigeCronSecret(t *testing.T) {
	cfg := validProdConfig()
	cfg.Security.CronSecret = ""
	require.Error(t, cfg.Validate())
}

func TestValidate_DesarrolloAceptaSecretoPorDefecto(t *testing.T) {
	cfg := validProdConfig()
	cfg.App.Env = "development"
	cfg.JWT.Secret = config.DefaultJWTSecret
	assert.NoError(t, cfg.Validate())
}

func TestValidate_AlgoritmoNoSoportado(t *testing.T) {
	cfg := validProdConfig()
	cfg.JWT.Algorithm = "RS256"
	assert.Error(t, cfg.Validate())
}

func TestLoad_ValoresPorDefecto(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "9090")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 60*24, cfg.JWT.Expiration)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}
