package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jhoicas/lokario-api/internal/application/ports"
	"github.com/jhoicas/lokario-api/internal/domain"
)

var _ ports.BlobStore = (*GCSStore)(nil)

// GCSStore BlobStore sobre un bucket de Google Cloud Storage. Los objetos son privados:
// el acceso de los clientes pasa siempre por URLs firmadas V4.
type GCSStore struct {
	client    *gcs.Client
	bucket    string
	accessID  string
	signerKey []byte
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// NewGCSStore usa credentialsJSON si viene; si no, Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsJSON string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	var opts []option.ClientOption
	s := &GCSStore{bucket: bucket}
	if creds := strings.TrimSpace(credentialsJSON); creds != "" {
		var key serviceAccountJSON
		if err := json.Unmarshal([]byte(creds), &key); err != nil {
			return nil, fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
		}
		s.accessID = key.ClientEmail
		s.signerKey = []byte(strings.ReplaceAll(key.PrivateKey, "\\n", "\n"))
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	s.client = client
	return s, nil
}

// Close libera el cliente.
func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%w: gcs upload %s: %v", domain.ErrUpstream, key, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%w: gcs upload %s: %v", domain.ErrUpstream, key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: gcs read %s: %v", domain.ErrUpstream, key, err)
	}
	return rc, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: gcs delete %s: %v", domain.ErrUpstream, key, err)
	}
	return nil
}

// SignURL URL GET firmada V4. Sin clave explícita la librería firma con la cuenta de servicio del entorno.
func (s *GCSStore) SignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	opts := &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}
	if len(s.signerKey) > 0 {
		opts.GoogleAccessID = s.accessID
		opts.PrivateKey = s.signerKey
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("%w: gcs sign %s: %v", domain.ErrUpstream, key, err)
	}
	return u, nil
}
