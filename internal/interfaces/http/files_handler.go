package http

import (
	"context"
	"io"
	"mime"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/lokario-api/internal/application/dto"
)

// signedFileStore lo implementa *storage.LocalStore.
type signedFileStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Verify(key, exp, sig string) bool
}

// FilesHandler sirve las URLs firmadas del almacenamiento local (desarrollo).
type FilesHandler struct {
	store signedFileStore
}

// NewFilesHandler construye el handler.
func NewFilesHandler(store signedFileStore) *FilesHandler {
	return &FilesHandler{store: store}
}

// Serve GET /files/*?exp=&sig=
func (h *FilesHandler) Serve(c *fiber.Ctx) error {
	key := c.Params("*")
	if !h.store.Verify(key, c.Query("exp"), c.Query("sig")) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "invalid_signature", Message: "lien expiré ou invalide"})
	}
	rc, err := h.store.Get(c.UserContext(), key)
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, ct)
	return c.Send(data)
}
