// Package pdf genera los PDF de facturas, avoirs y devis con las mentions légales francesas.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Logo + Vendedor       │  FACTURE / AVOIR / DEVIS    │
//	│                                │  N° + fechas                │
//	│  ─────────────────────────────────────────────────────────  │
//	│  VENDEDOR: dirección, SIREN, SIRET, TVA, RCS, forma, capital │
//	│  CLIENTE (o "Crédité à"): nombre, dirección, SIREN, entrega  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Désignation | Qté | PU HT | TVA | Total TTC           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: HT / TVA / Remise / TTC (o Montant crédité)        │
//	│  MENCIONES: TVA sur les débits, exención, operación          │
//	│  PAGO: condiciones, penalidades, indemnización               │
//	│  NOTAS + sello                                               │
//	│  FOOTER: fecha de generación                                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	appbilling "github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/domain/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/pkg/legal"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 31, Green: 58, Blue: 95}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAccent  = &props.Color{Red: 200, Green: 40, Blue: 40}
)

// descCharsPerLine ancho aproximado de la columna de designación en caracteres (tamaño 8).
const descCharsPerLine = 60

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa billing.PDFRenderer usando Maroto v2.
type MarotoPDFGenerator struct {
	// Clock reloj del pie de página (tests).
	Clock func() time.Time
}

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{Clock: time.Now} }

var _ appbilling.PDFRenderer = (*MarotoPDFGenerator)(nil)

// document vista común de factura, avoir y devis.
type document struct {
	title      string
	number     string
	dates      []string
	seller     entity.PartySnapshot
	client     entity.PartySnapshot
	clientHead string
	totalLabel string
	lines      []entity.Line
	discount   *entity.Discount
	subtotalHT decimal.Decimal
	totalTax   decimal.Decimal
	totalTTC   decimal.Decimal
	mentions   []string
	payment    []string
	notes      string
}

// RenderInvoice genera el PDF de una factura o avoir.
func (g *MarotoPDFGenerator) RenderInvoice(_ context.Context, inv *entity.Invoice, assets appbilling.PDFAssets) ([]byte, error) {
	d := document{
		title:      "FACTURE",
		number:     inv.Number,
		seller:     inv.Seller,
		client:     inv.Client,
		clientHead: "CLIENT",
		totalLabel: "Total TTC",
		lines:      inv.Lines,
		discount:   inv.Discount,
		subtotalHT: inv.SubtotalHT,
		totalTax:   inv.TotalTax,
		totalTTC:   inv.TotalTTC,
		notes:      strings.TrimSpace(strings.Join(nonBlank(inv.Conditions, inv.Notes), "\n")),
	}
	d.dates = append(d.dates, "Date d'émission : "+formatDate(&inv.IssueDate))
	if inv.SaleDate != nil {
		d.dates = append(d.dates, "Date de vente : "+formatDate(inv.SaleDate))
	}
	if inv.DueDate != nil {
		d.dates = append(d.dates, "Échéance : "+formatDate(inv.DueDate))
	}
	if inv.IsCreditNote() {
		d.title = "AVOIR"
		d.clientHead = "CRÉDITÉ À"
		d.totalLabel = "Montant crédité"
	}

	if inv.VATOnDebits {
		d.mentions = append(d.mentions, "TVA sur les débits")
	}
	if inv.VATExemptionRef != "" {
		d.mentions = append(d.mentions, inv.VATExemptionRef)
	}
	if label, ok := legal.OperationLabels[inv.OperationCategory]; ok {
		d.mentions = append(d.mentions, "Catégorie de l'opération : "+label)
	}

	if !inv.IsCreditNote() {
		if inv.PaymentTerms != "" {
			d.payment = append(d.payment, "Conditions de paiement : "+inv.PaymentTerms)
		}
		d.payment = append(d.payment,
			"Taux des pénalités de retard : "+formatRate(inv.LatePenaltyRate)+" %",
			"Indemnité forfaitaire pour frais de recouvrement : "+billing.FormatEuro(inv.RecoveryFee),
			"Pas d'escompte pour paiement anticipé",
		)
	}
	return g.render(d, assets, nil)
}

// RenderQuote genera el PDF de un devis; sig (opcional) añade el bloque de firma electrónica.
func (g *MarotoPDFGenerator) RenderQuote(_ context.Context, q *entity.Quote, sig *entity.QuoteSignature, assets appbilling.PDFAssets) ([]byte, error) {
	d := document{
		title:      "DEVIS",
		number:     q.Number,
		seller:     q.Seller,
		client:     q.Client,
		clientHead: "CLIENT",
		totalLabel: "Total TTC",
		lines:      q.Lines,
		discount:   q.Discount,
		subtotalHT: q.SubtotalHT,
		totalTax:   q.TotalTax,
		totalTTC:   q.TotalTTC,
		notes:      strings.TrimSpace(strings.Join(nonBlank(q.Conditions, q.Notes), "\n")),
	}
	d.dates = append(d.dates, "Date d'émission : "+formatDate(&q.IssueDate))
	if q.ExpiryDate != nil {
		d.dates = append(d.dates, "Valable jusqu'au : "+formatDate(q.ExpiryDate))
	}

	var extra []core.Row
	if sig != nil {
		extra = append(extra, sectionTitle("SIGNATURE ÉLECTRONIQUE"))
		extra = append(extra, textRows([]string{
			fmt.Sprintf("Signé par %s (%s) le %s", sig.SignerName, sig.SignerEmail, sig.SignedAt.In(billing.Location).Format("02/01/2006 à 15:04")),
			"Empreinte du document : " + sig.DocumentHashBefore,
			"Empreinte de la signature : " + sig.SignatureHash,
		}, 7)...)
	} else {
		extra = append(extra, row.New(22).Add(
			col.New(6),
			col.New(6).Add(
				text.New("Bon pour accord", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Center, Top: 1}),
				text.New("Date et signature du client", props.Text{Size: 8, Align: align.Center, Top: 6, Color: colorGray}),
			),
		))
		if assets.SignURL != "" {
			extra = append(extra, row.New(32).Add(
				col.New(3).Add(code.NewQr(assets.SignURL, props.Rect{Percent: 90, Center: true})),
				col.New(9).Add(text.New("Signez ce devis en ligne en scannant le code QR ou via le lien :\n"+assets.SignURL,
					props.Text{Size: 8, Top: 10, Left: 3, Color: colorGray})),
			))
		}
	}
	return g.render(d, assets, extra)
}

func (g *MarotoPDFGenerator) render(d document, assets appbilling.PDFAssets, extra []core.Row) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(12).WithRightMargin(12).
		WithTopMargin(10).WithBottomMargin(12).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(d.title+" "+d.number, true).
		WithAuthor(d.seller.Name, true).
		Build()

	m := maroto.New(cfg)
	generated := "Document généré le " + g.Clock().In(billing.Location).Format("02/01/2006 à 15:04")
	if err := m.RegisterFooter(row.New(6).Add(col.New(12).Add(
		text.New(generated, props.Text{Size: 7, Align: align.Center, Color: colorGray}),
	))); err != nil {
		return nil, fmt.Errorf("pdf: pie de página: %w", err)
	}

	m.AddRows(headerRow(d, assets.LogoPath))
	m.AddRows(line.NewRow(2, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(partiesRow(d))
	m.AddRows(line.NewRow(2, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableLineRows(d.lines)...)
	m.AddRows(line.NewRow(2, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRows(d)...)

	if len(d.mentions) > 0 {
		m.AddRows(row.New(3))
		m.AddRows(textRows(d.mentions, 8)...)
	}
	if len(d.payment) > 0 {
		m.AddRows(sectionTitle("RÈGLEMENT"))
		m.AddRows(textRows(d.payment, 8)...)
	}
	if d.notes != "" {
		m.AddRows(sectionTitle("NOTES"))
		m.AddRows(textRows(strings.Split(d.notes, "\n"), 8)...)
	}
	if len(extra) > 0 {
		m.AddRows(row.New(3))
		m.AddRows(extra...)
	}
	if assets.StampPath != "" {
		m.AddRows(row.New(28).Add(
			col.New(8),
			col.New(4).Add(image.NewFromFile(assets.StampPath, props.Rect{Percent: 90, Center: true})),
		))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: logo y vendedor (izq), título, número y fechas (der).
func headerRow(d document, logoPath string) core.Row {
	left := col.New(7)
	if logoPath != "" {
		left = col.New(3).Add(image.NewFromFile(logoPath, props.Rect{Percent: 90, Center: true}))
	}
	right := col.New(5).Add(
		text.New(d.title, props.Text{Style: fontstyle.Bold, Size: 16, Align: align.Right, Color: colorPrimary, Top: 1}),
		text.New("N° "+d.number, props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 10}),
	)
	for i, s := range d.dates {
		right.Add(text.New(s, props.Text{Size: 8, Align: align.Right, Top: float64(17 + 4*i), Color: colorGray}))
	}
	height := float64(24 + 4*len(d.dates))
	if logoPath != "" {
		return row.New(height).Add(left, col.New(4).Add(sellerName(d.seller)), right)
	}
	return row.New(height).Add(left.Add(sellerName(d.seller)), right)
}

func sellerName(p entity.PartySnapshot) core.Component {
	return text.New(p.Name, props.Text{Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 2})
}

// partiesRow: bloque vendedor completo y bloque cliente.
func partiesRow(d document) core.Row {
	seller := nonBlank(
		d.seller.Address,
		labelled("SIREN", d.seller.Siren),
		labelled("SIRET", d.seller.Siret),
		labelled("N° TVA intracommunautaire", d.seller.VATNumber),
		labelled("RCS", d.seller.RCS),
		legalFormLine(d.seller),
		labelled("Tél.", d.seller.Phone),
		d.seller.Email,
	)
	client := nonBlank(
		d.client.Name,
		d.client.Address,
		labelled("SIREN", d.client.Siren),
		labelled("Adresse de livraison", d.client.DeliveryAddress),
		d.client.Email,
	)
	lines := max(len(seller), len(client))

	sellerCol := col.New(6).Add(text.New("ÉMETTEUR", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}))
	for i, s := range seller {
		sellerCol.Add(text.New(s, props.Text{Size: 8, Top: float64(6 + 4*i)}))
	}
	clientCol := col.New(6).Add(text.New(d.clientHead, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}))
	for i, s := range client {
		style := fontstyle.Normal
		if i == 0 {
			style = fontstyle.Bold
		}
		clientCol.Add(text.New(s, props.Text{Size: 8, Style: style, Top: float64(6 + 4*i)}))
	}
	return row.New(float64(8 + 4*lines)).Add(sellerCol, clientCol)
}

// tableHeaderRow: cabecera de la tabla de líneas.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Désignation", 6, align.Left),
		h("Qté", 1, align.Center),
		h("PU HT", 2, align.Right),
		h("TVA", 1, align.Center),
		h("Total TTC", 2, align.Right),
	)
}

// tableLineRows: una fila por línea; la altura crece con la descripción.
func tableLineRows(lines []entity.Line) []core.Row {
	out := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		desc := l.Description
		if l.Unit != "" {
			desc += " (" + l.Unit + ")"
		}
		out = append(out, row.New(wrapHeight(desc)).Add(
			col.New(6).Add(text.New(desc, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(1).Add(text.New(formatQuantity(l.Quantity), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(billing.FormatEuro(l.UnitPriceHT), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(formatRate(l.TaxRate)+" %", props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(billing.FormatEuro(l.TotalTTC), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return out
}

// totalsRows: bloque de totales alineado a la derecha.
func totalsRows(d document) []core.Row {
	pair := func(label, value string, strong bool) core.Row {
		p := props.Text{Size: 9, Align: align.Right, Right: 1}
		if strong {
			p = props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Right: 1, Color: colorPrimary}
		}
		return row.New(6).Add(
			col.New(6),
			col.New(3).Add(text.New(label, p)),
			col.New(3).Add(text.New(value, p)),
		)
	}
	rows := []core.Row{
		pair("Total HT", billing.FormatEuro(d.subtotalHT), false),
		pair("Total TVA", billing.FormatEuro(d.totalTax), false),
	}
	if d.discount != nil {
		before := d.subtotalHT.Add(d.totalTax)
		label := "Remise"
		if d.discount.Label != "" {
			label = "Remise (" + d.discount.Label + ")"
		}
		if d.discount.Type == entity.DiscountPercentage {
			label += " " + formatRate(d.discount.Value) + " %"
		}
		rows = append(rows, row.New(6).Add(
			col.New(6),
			col.New(3).Add(text.New(label, props.Text{Size: 9, Align: align.Right, Right: 1, Color: colorAccent})),
			col.New(3).Add(text.New("- "+billing.FormatEuro(billing.DiscountAmount(before, d.discount)),
				props.Text{Size: 9, Align: align.Right, Right: 1, Color: colorAccent})),
		))
	}
	return append(rows, pair(d.totalLabel, billing.FormatEuro(d.totalTTC), true))
}

func sectionTitle(s string) core.Row {
	return row.New(7).Add(col.New(12).Add(
		text.New(s, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2}),
	))
}

func textRows(lines []string, size float64) []core.Row {
	out := make([]core.Row, 0, len(lines))
	for _, s := range lines {
		out = append(out, row.New(wrapHeight(s)).Add(col.New(12).Add(
			text.New(s, props.Text{Size: size, Color: colorGray, Top: 0.5}),
		)))
	}
	return out
}

// ── helpers ───────────────────────────────────────────────────────────────────

// wrapHeight altura de fila para un texto que se parte en varias líneas.
func wrapHeight(s string) float64 {
	n := 0
	for _, part := range strings.Split(s, "\n") {
		n += 1 + len([]rune(part))/descCharsPerLine
	}
	return float64(2 + 4*n)
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func labelled(label, value string) string {
	if value == "" {
		return ""
	}
	return label + " : " + value
}

func legalFormLine(p entity.PartySnapshot) string {
	switch {
	case p.LegalForm != "" && p.Capital != "" && p.Capital != "0.00":
		capital, err := decimal.NewFromString(p.Capital)
		if err != nil {
			return p.LegalForm
		}
		return p.LegalForm + " au capital de " + billing.FormatEuro(capital)
	default:
		return p.LegalForm
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02/01/2006")
}

// formatRate 5.5 -> "5,5"; 20 -> "20".
func formatRate(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// formatQuantity hasta 3 decimales, sin ceros a la derecha.
func formatQuantity(d decimal.Decimal) string {
	return strings.Replace(d.Round(3).String(), ".", ",", 1)
}
