package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jhoicas/lokario-api/internal/application/auth"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/domain/repository"
)

// PDFAssets imágenes ya resueltas a ficheros locales; vacío = sin imagen.
type PDFAssets struct {
	LogoPath  string
	StampPath string
	// SignURL enlace público de firma (QR en los devis enviados o aceptados).
	SignURL string
}

// PDFRenderer genera la representación PDF de un documento validado.
type PDFRenderer interface {
	RenderInvoice(ctx context.Context, inv *entity.Invoice, assets PDFAssets) ([]byte, error)
	RenderQuote(ctx context.Context, q *entity.Quote, sig *entity.QuoteSignature, assets PDFAssets) ([]byte, error)
}

// ImageLoader resuelve una referencia de imagen (ruta local o clave del blob store) a un fichero local.
// ok=false si no se pudo; el PDF se genera sin la imagen.
type ImageLoader interface {
	Load(ctx context.Context, companyID, ref string) (path string, ok bool)
}

// PDFUseCase genera bajo demanda el PDF de facturas, avoirs y devis. Nada se persiste:
// la fila del documento es la fuente de verdad.
type PDFUseCase struct {
	repos     repository.Repos
	renderer  PDFRenderer
	images    ImageLoader
	publicURL string
	log       zerolog.Logger
}

// NewPDFUseCase construye el caso de uso.
func NewPDFUseCase(repos repository.Repos, renderer PDFRenderer, images ImageLoader, publicURL string, log zerolog.Logger) *PDFUseCase {
	return &PDFUseCase{repos: repos, renderer: renderer, images: images, publicURL: strings.TrimRight(publicURL, "/"), log: log}
}

// InvoicePDF devuelve el PDF y el nombre de fichero de una factura o avoir del tenant.
func (uc *PDFUseCase) InvoicePDF(ctx context.Context, actor *auth.Actor, invoiceID string) ([]byte, string, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, "", err
	}
	inv, err := loadInvoice(ctx, uc.repos, companyID, invoiceID, false)
	if err != nil {
		return nil, "", err
	}
	assets, err := uc.assets(ctx, companyID)
	if err != nil {
		return nil, "", err
	}
	out, err := uc.renderer.RenderInvoice(ctx, inv, assets)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	kind := "facture"
	if inv.IsCreditNote() {
		kind = "avoir"
	}
	return out, fmt.Sprintf("%s-%s.pdf", kind, inv.Number), nil
}

// QuotePDF devuelve el PDF de un devis del tenant; si está firmado incluye el bloque de firma.
func (uc *PDFUseCase) QuotePDF(ctx context.Context, actor *auth.Actor, quoteID string) ([]byte, string, error) {
	companyID, err := auth.RequireTenant(actor)
	if err != nil {
		return nil, "", err
	}
	q, err := loadQuote(ctx, uc.repos, companyID, quoteID)
	if err != nil {
		return nil, "", err
	}
	sig, err := uc.repos.Signatures.GetSignature(ctx, q.ID)
	if err != nil {
		return nil, "", err
	}
	assets, err := uc.assets(ctx, companyID)
	if err != nil {
		return nil, "", err
	}
	if uc.publicURL != "" && (q.Status == entity.QuoteStatusSent || q.Status == entity.QuoteStatusAccepted) {
		assets.SignURL = uc.publicURL + "/devis/" + q.ID + "/signature"
	}
	out, err := uc.renderer.RenderQuote(ctx, q, sig, assets)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	return out, fmt.Sprintf("devis-%s.pdf", q.Number), nil
}

func (uc *PDFUseCase) assets(ctx context.Context, companyID string) (PDFAssets, error) {
	company, err := uc.repos.Companies.GetByID(ctx, companyID)
	if err != nil {
		return PDFAssets{}, fmt.Errorf("pdf: leer empresa: %w", err)
	}
	var a PDFAssets
	if company == nil || uc.images == nil {
		return a, nil
	}
	if company.LogoPath != "" {
		if p, ok := uc.images.Load(ctx, companyID, company.LogoPath); ok {
			a.LogoPath = p
		}
	}
	if company.StampPath != "" {
		if p, ok := uc.images.Load(ctx, companyID, company.StampPath); ok {
			a.StampPath = p
		}
	}
	return a, nil
}
