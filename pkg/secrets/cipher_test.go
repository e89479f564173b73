package secrets_test

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lokario-api/pkg/secrets"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := secrets.New("master-key", zerolog.Nop())
	require.NoError(t, err)
	require.True(t, c.Enabled())

	enc, err := c.Encrypt("imap-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(enc, "enc:v1:"))
	assert.NotContains(t, enc, "imap-password")
	assert.Equal(t, "imap-password", c.Decrypt(enc))
}

func TestCipher_SinClaveEsTransparente(t *testing.T) {
	c, err := secrets.New("", zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	enc, err := c.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", enc)
	assert.Equal(t, "plain", c.Decrypt("plain"))
}

func TestCipher_FilaAntiguaEnClaroSeDevuelveIgual(t *testing.T) {
	c, err := secrets.New("master-key", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "legacy-password", c.Decrypt("legacy-password"))
}

func TestCipher_OtraClaveNoDescifra(t *testing.T) {
	a, err := secrets.New("key-a", zerolog.Nop())
	require.NoError(t, err)
	b, err := secrets.New("key-b", zerolog.Nop())
	require.NoError(t, err)

	enc, err := a.Encrypt("secret")
	require.NoError(t, err)
	assert.Equal(t, enc, b.Decrypt(enc))
}
