package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type invoiceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *database.DB, logger *zap.Logger) InvoiceRepository {
	return &invoiceRepository{db: db, logger: logger}
}

const invoiceColumns = `id, user_id, supplier_id, customer_id, file_name, status, invoice_number,
	invoice_date, type, total_amount, vat_amount, error_message, created_at, updated_at`

// Create inserts an invoice row, assigning its ID and timestamps
func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	invoice.ID = uuid.NewString()
	now := time.Now().UTC()
	invoice.CreatedAt, invoice.UpdatedAt = now, now
	if invoice.Status == "" {
		invoice.Status = models.StatusPending
	}
	if invoice.Type == "" {
		invoice.Type = models.DefaultInvoiceType
	}

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.UserID,
		invoice.SupplierID,
		invoice.CustomerID,
		invoice.FileName,
		invoice.Status,
		invoice.InvoiceNumber,
		dateValue(invoice.Date),
		invoice.Type,
		invoice.TotalAmount,
		invoice.VATAmount,
		invoice.ErrorMessage,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID returns the invoice row or nil when absent
func (r *invoiceRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := scanInvoice(r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// Update writes every mutable column of invoice
func (r *invoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()

	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE invoices SET
			supplier_id = ?, customer_id = ?, file_name = ?, status = ?, invoice_number = ?,
			invoice_date = ?, type = ?, total_amount = ?, vat_amount = ?, error_message = ?,
			updated_at = ?
		WHERE id = ?`,
		invoice.SupplierID,
		invoice.CustomerID,
		invoice.FileName,
		invoice.Status,
		invoice.InvoiceNumber,
		dateValue(invoice.Date),
		invoice.Type,
		invoice.TotalAmount,
		invoice.VATAmount,
		invoice.ErrorMessage,
		invoice.UpdatedAt,
		invoice.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.String("id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return requireRow(result, invoice.ID)
}

// UpdateStatus sets the status and error message of an invoice
func (r *invoiceRepository) UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus, errMsg string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE invoices SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return requireRow(result, id)
}

// ListByUser returns a user's invoices, newest first
func (r *invoiceRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*models.Invoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

// CountByUser counts a user's invoices
func (r *invoiceRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}

// ErrNoRowsAffected is returned by updates that matched nothing
var ErrNoRowsAffected = errors.New("no rows affected")

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invoice %s: %w", id, ErrNoRowsAffected)
	}
	return nil
}

func dateValue(d *models.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	var supplierID, customerID sql.NullString
	var date sql.NullTime

	err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&supplierID,
		&customerID,
		&inv.FileName,
		&inv.Status,
		&inv.InvoiceNumber,
		&date,
		&inv.Type,
		&inv.TotalAmount,
		&inv.VATAmount,
		&inv.ErrorMessage,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if supplierID.Valid {
		inv.SupplierID = &supplierID.String
	}
	if customerID.Valid {
		inv.CustomerID = &customerID.String
	}
	if date.Valid {
		d := models.NewDate(date.Time)
		inv.Date = &d
	}
	inv.Items = []models.LineItem{}
	return &inv, nil
}
