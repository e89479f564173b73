// Package storage implementaciones de ports.BlobStore: disco local (desarrollo) y Google Cloud Storage.
package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
)

var _ ports.BlobStore = (*LocalStore)(nil)

// LocalStore guarda los blobs bajo root. Las URLs firmadas apuntan a la ruta de descarga
// de la API (baseURL + "/files/<key>") con expiración y firma HMAC-SHA256.
type LocalStore struct {
	root    string
	baseURL string
	secret  []byte
	Clock   func() time.Time
}

func NewLocalStore(root, baseURL string, secret []byte) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("storage local: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), secret: secret, Clock: time.Now}, nil
}

// path ruta absoluta de key; rechaza claves que escapen de root.
func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) {
		return "", domain.Validation("key", "clé de fichier vide")
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, _ string) error {
	dest, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("storage local: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".up-*")
	if err != nil {
		return fmt.Errorf("storage local: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage local: écriture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage local: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	return f, err
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage local: %w", err)
	}
	return nil
}

func (s *LocalStore) SignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	exp := s.Clock().Add(ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.sign(key, exp))
	return fmt.Sprintf("%s/files/%s?%s", s.baseURL, strings.TrimLeft(key, "/"), q.Encode()), nil
}

// Verify comprueba la firma y la expiración de una URL emitida por SignURL.
func (s *LocalStore) Verify(key, exp, sig string) bool {
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil || s.Clock().Unix() > expUnix {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(s.sign(key, expUnix)))
}

func (s *LocalStore) sign(key string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.TrimLeft(key, "/")))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(exp, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
