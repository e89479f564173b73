package billing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

// Namespace del documento de prueba de firma.
const NamespaceEvidence = "urn:lokario:signature-evidence:v1"

// CanonicalQuoteBytes serialización determinista del devis: XML construido con etree
// y canonicalizado (C14N) antes de hashear. Incluye todos los campos de contenido y las
// líneas ordenadas por posición; excluye estado y marcas de tiempo técnicas, que cambian al firmar.
func CanonicalQuoteBytes(q *entity.Quote) ([]byte, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("Devis")
	root.CreateAttr("xmlns", NamespaceEvidence)
	quoteElement(root, q)

	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("billing: serializar devis: %w", err)
	}
	return canonicalize(raw)
}

// DocumentHash sha256 hex de los bytes canónicos del devis.
func DocumentHash(q *entity.Quote) (string, error) {
	b, err := CanonicalQuoteBytes(q)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// SignatureTimestamp formato del instante de firma dentro del hash (UTC, microsegundos como en la base).
func SignatureTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format("2006-01-02T15:04:05.000000Z")
}

// SignatureHash sha256(document_hash || email || name || consent_text || timestamp) en hex.
func SignatureHash(documentHash, signerEmail, signerName, consentText string, signedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(documentHash))
	h.Write([]byte(signerEmail))
	h.Write([]byte(signerName))
	h.Write([]byte(consentText))
	h.Write([]byte(SignatureTimestamp(signedAt)))
	return hex.EncodeToString(h.Sum(nil))
}

// EvidenceXML fichero de prueba descargable: contenido canónico del devis, firma y eventos.
func EvidenceXML(q *entity.Quote, sig *entity.QuoteSignature, events []entity.QuoteSignatureAuditLog) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("PreuveSignature")
	root.CreateAttr("xmlns", NamespaceEvidence)

	devis := root.CreateElement("Devis")
	quoteElement(devis, q)

	if sig != nil {
		s := root.CreateElement("Signature")
		text(s, "Signataire", sig.SignerName)
		text(s, "Email", sig.SignerEmail)
		text(s, "SigneLe", SignatureTimestamp(sig.SignedAt))
		text(s, "EmpreinteDocument", sig.DocumentHashBefore)
		text(s, "EmpreinteSignature", sig.SignatureHash)
		text(s, "Consentement", strconv.FormatBool(sig.Consent))
		text(s, "TexteConsentement", sig.ConsentText)
		text(s, "AdresseIP", sig.IPAddress)
		text(s, "UserAgent", sig.UserAgent)
	}

	journal := root.CreateElement("Journal")
	for _, e := range events {
		ev := journal.CreateElement("Evenement")
		ev.CreateAttr("type", e.EventType)
		ev.CreateAttr("date", e.CreatedAt.UTC().Format(time.RFC3339))
		text(ev, "Description", e.Description)
		text(ev, "Email", e.UserEmail)
		text(ev, "AdresseIP", e.IPAddress)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func quoteElement(root *etree.Element, q *entity.Quote) {
	text(root, "Id", q.ID)
	text(root, "Entreprise", q.CompanyID)
	text(root, "Numero", q.Number)
	text(root, "Client", q.ClientID)
	text(root, "DateEmission", dateString(&q.IssueDate))
	text(root, "DateValidite", dateString(q.ExpiryDate))
	text(root, "Conditions", q.Conditions)
	text(root, "Notes", q.Notes)
	party(root.CreateElement("Vendeur"), q.Seller)
	party(root.CreateElement("Acheteur"), q.Client)

	if q.Discount != nil {
		d := root.CreateElement("Remise")
		d.CreateAttr("type", q.Discount.Type)
		text(d, "Valeur", q.Discount.Value.StringFixed(2))
		text(d, "Libelle", q.Discount.Label)
	}

	lines := make([]entity.Line, len(q.Lines))
	copy(lines, q.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })
	ls := root.CreateElement("Lignes")
	for _, l := range lines {
		e := ls.CreateElement("Ligne")
		e.CreateAttr("position", strconv.Itoa(l.Position))
		text(e, "Description", l.Description)
		text(e, "Unite", l.Unit)
		text(e, "Quantite", l.Quantity.StringFixed(3))
		text(e, "PrixUnitaireHT", l.UnitPriceHT.StringFixed(2))
		text(e, "TauxTVA", l.TaxRate.StringFixed(2))
		text(e, "TotalHT", l.SubtotalHT.StringFixed(2))
		text(e, "MontantTVA", l.TaxAmount.StringFixed(2))
		text(e, "TotalTTC", l.TotalTTC.StringFixed(2))
	}

	t := root.CreateElement("Totaux")
	text(t, "TotalHT", q.SubtotalHT.StringFixed(2))
	text(t, "TotalTVA", q.TotalTax.StringFixed(2))
	text(t, "TotalTTC", q.TotalTTC.StringFixed(2))
}

func party(e *etree.Element, p entity.PartySnapshot) {
	text(e, "Nom", p.Name)
	text(e, "Adresse", p.Address)
	text(e, "AdresseLivraison", p.DeliveryAddress)
	text(e, "Email", p.Email)
	text(e, "Telephone", p.Phone)
	text(e, "SIREN", p.Siren)
	text(e, "SIRET", p.Siret)
	text(e, "TVA", p.VATNumber)
	text(e, "RCS", p.RCS)
	text(e, "FormeJuridique", p.LegalForm)
	text(e, "Capital", p.Capital)
}

func text(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).SetText(xmlSafe(value))
}

func dateString(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// xmlSafe elimina los caracteres de control no admitidos por XML 1.0.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' || r >= 0x20 {
			return r
		}
		return -1
	}, s)
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	out, err := c14n.Canonicalize(dec)
	if err != nil {
		return nil, fmt.Errorf("billing: c14n: %w", err)
	}
	return out, nil
}
