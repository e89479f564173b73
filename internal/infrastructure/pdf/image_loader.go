package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/ports"
)

// ImageLoader resuelve logo y tampon a un fichero local para maroto.
// Orden: ruta local existente; si no, descarga desde el blob store a <tempDir>/<company>/.
// Cualquier fallo se registra y la imagen se omite.
type ImageLoader struct {
	blobs   ports.BlobStore
	tempDir string
	log     zerolog.Logger
}

// NewImageLoader construye el loader; blobs puede ser nil (solo rutas locales).
func NewImageLoader(blobs ports.BlobStore, tempDir string, log zerolog.Logger) *ImageLoader {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "lokario-pdf")
	}
	return &ImageLoader{blobs: blobs, tempDir: tempDir, log: log}
}

// Load implementa billing.ImageLoader.
func (l *ImageLoader) Load(ctx context.Context, companyID, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		return ref, true
	}
	if l.blobs == nil {
		l.log.Warn().Str("company_id", companyID).Str("ref", ref).Msg("pdf: imagen no encontrada en disco y sin blob store")
		return "", false
	}

	dir := filepath.Join(l.tempDir, safeSegment(companyID))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		l.log.Warn().Err(err).Str("dir", dir).Msg("pdf: no se pudo crear el directorio temporal")
		return "", false
	}
	sum := sha256.Sum256([]byte(ref))
	dest := filepath.Join(dir, hex.EncodeToString(sum[:8])+strings.ToLower(filepath.Ext(ref)))
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		return dest, true
	}

	rc, err := l.blobs.Get(ctx, ref)
	if err != nil {
		l.log.Warn().Err(err).Str("company_id", companyID).Str("ref", ref).Msg("pdf: descarga de imagen fallida")
		return "", false
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(dir, "dl-*")
	if err != nil {
		l.log.Warn().Err(err).Msg("pdf: fichero temporal")
		return "", false
	}
	_, copyErr := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		l.log.Warn().Err(firstErr(copyErr, closeErr)).Str("ref", ref).Msg("pdf: escritura de imagen fallida")
		return "", false
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		l.log.Warn().Err(err).Str("ref", ref).Msg("pdf: renombrar imagen fallida")
		return "", false
	}
	return dest, true
}

// SweepTemp borra las imágenes descargadas con más de maxAge. Devuelve cuántas se borraron.
func (l *ImageLoader) SweepTemp(maxAge time.Duration, now time.Time) int {
	removed := 0
	_ = filepath.WalkDir(l.tempDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) > maxAge {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if removed > 0 {
		l.log.Debug().Int("removed", removed).Msg("pdf: limpieza de imágenes temporales")
	}
	return removed
}

// RunSweeper limpia el directorio temporal cada interval hasta que ctx se cancele.
func (l *ImageLoader) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.SweepTemp(maxAge, now)
		}
	}
}

func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
