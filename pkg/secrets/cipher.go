// Package secrets cifra las credenciales de integraciones (IMAP/SMTP/Vonage) antes de persistirlas.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	keyLength        = 32
	// Prefijo de versión; los valores sin prefijo se consideran filas antiguas en claro.
	envelopePrefix = "enc:v1:"
)

// salt fija: la clave es independiente del tenant y se deriva una sola vez al arrancar.
var salt = []byte("lokario-integration-credentials")

// Cipher AES-256-GCM con clave derivada por PBKDF2-HMAC-SHA256.
// Sin clave maestra funciona en modo transparente (solo desarrollo).
type Cipher struct {
	aead cipher.AEAD
	log  zerolog.Logger
}

// New deriva la clave a partir de masterKey. Si masterKey está vacío devuelve un cifrador transparente.
func New(masterKey string, log zerolog.Logger) (*Cipher, error) {
	c := &Cipher{log: log}
	if masterKey == "" {
		log.Warn().Msg("ENCRYPTION_MASTER_KEY no configurada: credenciales almacenadas en claro")
		return c, nil
	}
	key := pbkdf2.Key([]byte(masterKey), salt, pbkdf2Iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: aes: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: gcm: %w", err)
	}
	c.aead = aead
	return c, nil
}

// Enabled indica si hay clave maestra.
func (c *Cipher) Enabled() bool {
	return c.aead != nil
}

// Encrypt cifra plaintext. Cadena vacía se conserva vacía.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c.aead == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt descifra value. Ante cualquier fallo devuelve value sin cambios
// (filas antiguas guardadas en claro) y lo registra como warning.
func (c *Cipher) Decrypt(value string) string {
	if c.aead == nil || value == "" {
		return value
	}
	plain, err := c.open(value)
	if err != nil {
		c.log.Warn().Err(err).Msg("secrets: no se pudo descifrar, se usa el valor original")
		return value
	}
	return plain
}

func (c *Cipher) open(value string) (string, error) {
	if !strings.HasPrefix(value, envelopePrefix) {
		return "", errors.New("valor sin sobre de cifrado")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, envelopePrefix))
	if err != nil {
		return "", err
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("texto cifrado demasiado corto")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
