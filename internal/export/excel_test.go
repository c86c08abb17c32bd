package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type MockInvoiceLister struct {
	mock.Mock
}

func (m *MockInvoiceLister) ListInvoices(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	invoices, _ := args.Get(0).([]*models.Invoice)
	return invoices, args.Int(1), args.Error(2)
}

func sampleInvoice() *models.Invoice {
	date := models.NewDate(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	return &models.Invoice{
		ID:            "inv-1",
		InvoiceNumber: "INV-001",
		Date:          &date,
		Type:          models.DefaultInvoiceType,
		Status:        models.StatusCompleted,
		TotalAmount:   decimal.RequireFromString("121.50"),
		VATAmount:     decimal.RequireFromString("21.50"),
		Supplier:      &models.Supplier{Name: "Acme Ltd", TaxID: "GB123"},
		Customer:      &models.Customer{Name: "Globex"},
		FileName:      "1700000000000-a.pdf",
		Items: []models.LineItem{
			{Position: 0, ItemName: "Widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50), TotalPrice: decimal.NewFromInt(100)},
		},
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, []*models.Invoice{sampleInvoice()}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{invoiceSheet, itemSheet}, f.GetSheetList())

	rows, err := f.GetRows(invoiceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, invoiceHeaders, rows[0])
	assert.Equal(t, "INV-001", rows[1][1])
	assert.Equal(t, "2024-03-15", rows[1][2])
	assert.Equal(t, "Acme Ltd", rows[1][5])
	assert.Equal(t, "121.5", rows[1][8])

	items, err := f.GetRows(itemSheet)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Widget", items[1][2])
	assert.Equal(t, "1", items[1][1])
}

func TestExporter_ExportUser(t *testing.T) {
	lister := new(MockInvoiceLister)
	lister.On("ListInvoices", mock.Anything, "user-1", pageSize, 0).
		Return([]*models.Invoice{sampleInvoice()}, 1, nil)

	var buf bytes.Buffer
	require.NoError(t, NewExporter(lister, zap.NewNop()).ExportUser(context.Background(), "user-1", &buf))
	assert.NotZero(t, buf.Len())
	lister.AssertExpectations(t)
}
