// Package export genera las exportaciones xlsx con excelize.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	appbilling "github.com/jhoicas/lokario-api/internal/application/billing"
	"github.com/jhoicas/lokario-api/internal/domain/entity"
)

const invoiceSheet = "Factures"

var invoiceHeadings = []string{
	"Numéro", "Type", "Statut", "Client", "Date d'émission", "Échéance",
	"Total HT", "TVA", "Total TTC", "Payé", "Reste à payer", "Facture d'origine",
}

// ExcelWriter implementa billing.InvoiceSheetWriter.
type ExcelWriter struct{}

// NewExcelWriter construye el writer.
func NewExcelWriter() *ExcelWriter { return &ExcelWriter{} }

var _ appbilling.InvoiceSheetWriter = (*ExcelWriter)(nil)

// WriteInvoices una fila por factura o avoir; importes como números con 2 decimales.
func (w *ExcelWriter) WriteInvoices(invoices []*entity.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, err
	}

	headStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F3A5F"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}

	for i, h := range invoiceHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(invoiceSheet, cell, h); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(invoiceHeadings), 1)
	if err := f.SetCellStyle(invoiceSheet, "A1", last, headStyle); err != nil {
		return nil, err
	}

	numbers := make(map[string]string, len(invoices))
	for _, inv := range invoices {
		numbers[inv.ID] = inv.Number
	}

	for i, inv := range invoices {
		rowNo := i + 2
		due := ""
		if inv.DueDate != nil {
			due = inv.DueDate.Format("02/01/2006")
		}
		values := []any{
			inv.Number,
			inv.InvoiceType,
			inv.Status,
			inv.Client.Name,
			inv.IssueDate.Format("02/01/2006"),
			due,
			inv.SubtotalHT.InexactFloat64(),
			inv.TotalTax.InexactFloat64(),
			inv.TotalTTC.InexactFloat64(),
			inv.AmountPaid.InexactFloat64(),
			inv.Balance().InexactFloat64(),
			numbers[inv.OriginalInvoiceID],
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNo)
			if err := f.SetCellValue(invoiceSheet, cell, v); err != nil {
				return nil, fmt.Errorf("celda %s: %w", cell, err)
			}
		}
		from, _ := excelize.CoordinatesToCellName(7, rowNo)
		to, _ := excelize.CoordinatesToCellName(11, rowNo)
		if err := f.SetCellStyle(invoiceSheet, from, to, moneyStyle); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(invoiceSheet, "A", "A", 22)
	_ = f.SetColWidth(invoiceSheet, "D", "D", 30)
	_ = f.SetColWidth(invoiceSheet, "E", "L", 15)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
