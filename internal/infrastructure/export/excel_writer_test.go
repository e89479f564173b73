package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/lokario-api/internal/domain/entity"
	"github.com/jhoicas/lokario-api/internal/infrastructure/export"
)

func TestWriteInvoices(t *testing.T) {
	issue := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	invoices := []*entity.Invoice{
		{ID: "i1", Number: "FAC-2025-0001", InvoiceType: entity.InvoiceTypeInvoice, Status: entity.InvoiceStatusSent,
			Client: entity.PartySnapshot{Name: "Acme"}, IssueDate: issue, TotalTTC: decimal.RequireFromString("329.94")},
		{ID: "a1", Number: "AVO-2025-0001-AVOIR", InvoiceType: entity.InvoiceTypeCreditNote, Status: entity.InvoiceStatusSent,
			OriginalInvoiceID: "i1", IssueDate: issue, TotalTTC: decimal.NewFromInt(100)},
	}

	out, err := export.NewExcelWriter().WriteInvoices(invoices)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Factures")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Numéro", rows[0][0])
	assert.Equal(t, "FAC-2025-0001", rows[1][0])
	assert.Equal(t, "Acme", rows[1][3])
	assert.Equal(t, "FAC-2025-0001", rows[2][11])
}
