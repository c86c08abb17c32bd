// Package export renders invoices as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	invoiceSheet = "Invoices"
	itemSheet    = "Items"
	pageSize     = 200
	dateLayout   = "2006-01-02"
)

var (
	invoiceHeaders = []string{
		"Invoice ID", "Invoice Number", "Date", "Type", "Status",
		"Supplier", "Supplier Tax ID", "Customer", "Total Amount", "VAT Amount", "File Name",
	}
	itemHeaders = []string{
		"Invoice Number", "Position", "Item Name", "Item Code", "Description",
		"Quantity", "Unit Price", "Total Price",
	}
)

// InvoiceLister pages through a user's invoices with relations loaded
type InvoiceLister interface {
	ListInvoices(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, int, error)
}

// Exporter writes a user's invoices to a workbook
type Exporter struct {
	invoices InvoiceLister
	logger   *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(invoices InvoiceLister, logger *zap.Logger) *Exporter {
	return &Exporter{invoices: invoices, logger: logger}
}

// ExportUser writes every invoice owned by userID to w
func (e *Exporter) ExportUser(ctx context.Context, userID string, w io.Writer) error {
	start := time.Now()

	var all []*models.Invoice
	for offset := 0; ; offset += pageSize {
		page, total, err := e.invoices.ListInvoices(ctx, userID, pageSize, offset)
		if err != nil {
			return err
		}
		all = append(all, page...)
		if len(page) < pageSize || len(all) >= total {
			break
		}
	}

	if err := WriteWorkbook(w, all); err != nil {
		return err
	}

	e.logger.Info("Invoices exported",
		zap.String("user_id", userID),
		zap.Int("rows", len(all)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// WriteWorkbook renders invoices and their line items as two sheets
func WriteWorkbook(w io.Writer, invoices []*models.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(itemSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := writeRow(f, invoiceSheet, 1, toCells(invoiceHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, itemSheet, 1, toCells(itemHeaders)); err != nil {
		return err
	}

	itemRow := 2
	for i, inv := range invoices {
		if err := writeRow(f, invoiceSheet, i+2, invoiceCells(inv)); err != nil {
			return err
		}
		for _, item := range inv.Items {
			cells := []any{
				inv.InvoiceNumber,
				item.Position + 1,
				item.ItemName,
				item.ItemCode,
				item.Description,
				item.Quantity.InexactFloat64(),
				item.UnitPrice.InexactFloat64(),
				item.TotalPrice.InexactFloat64(),
			}
			if err := writeRow(f, itemSheet, itemRow, cells); err != nil {
				return err
			}
			itemRow++
		}
	}

	_ = f.SetColWidth(invoiceSheet, "A", "A", 38)
	_ = f.SetColWidth(invoiceSheet, "B", "E", 16)
	_ = f.SetColWidth(invoiceSheet, "F", "H", 28)
	_ = f.SetColWidth(invoiceSheet, "I", "J", 14)
	_ = f.SetColWidth(invoiceSheet, "K", "K", 40)
	_ = f.SetColWidth(itemSheet, "C", "E", 30)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func invoiceCells(inv *models.Invoice) []any {
	date := ""
	if inv.Date != nil && !inv.Date.IsZero() {
		date = inv.Date.Format(dateLayout)
	}
	var supplier, taxID, customer string
	if inv.Supplier != nil {
		supplier, taxID = inv.Supplier.Name, inv.Supplier.TaxID
	}
	if inv.Customer != nil {
		customer = inv.Customer.Name
	}
	return []any{
		inv.ID,
		inv.InvoiceNumber,
		date,
		inv.Type,
		string(inv.Status),
		supplier,
		taxID,
		customer,
		inv.TotalAmount.InexactFloat64(),
		inv.VATAmount.InexactFloat64(),
		inv.FileName,
	}
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, start, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
