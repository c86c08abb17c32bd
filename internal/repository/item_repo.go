package repository

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type lineItemRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewLineItemRepository creates a new line item repository
func NewLineItemRepository(db *database.DB, logger *zap.Logger) LineItemRepository {
	return &lineItemRepository{db: db, logger: logger}
}

// CreateBatch inserts items in order, assigning IDs and positions
func (r *lineItemRepository) CreateBatch(ctx context.Context, invoiceID string, items []models.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	exec := r.db.Executor(ctx)

	for i := range items {
		item := &items[i]
		item.ID = uuid.NewString()
		item.InvoiceID = invoiceID
		item.Position = i

		_, err := exec.ExecContext(ctx, `
			INSERT INTO invoice_items (
				id, invoice_id, position, item_name, item_code, description,
				quantity, unit_price, total_price
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.InvoiceID, item.Position, item.ItemName, item.ItemCode, item.Description,
			item.Quantity, item.UnitPrice, item.TotalPrice,
		)
		if err != nil {
			r.logger.Error("Failed to create invoice item",
				zap.String("invoice_id", invoiceID),
				zap.Int("position", i),
				zap.Error(err))
			return fmt.Errorf("failed to create invoice item: %w", err)
		}
	}
	return nil
}

// ListByInvoice returns an invoice's items in document order
func (r *lineItemRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]models.LineItem, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, invoice_id, position, item_name, item_code, description, quantity, unit_price, total_price
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice items: %w", err)
	}
	defer rows.Close()

	items := []models.LineItem{}
	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(
			&item.ID, &item.InvoiceID, &item.Position, &item.ItemName, &item.ItemCode, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteByInvoice removes all items of an invoice
func (r *lineItemRepository) DeleteByInvoice(ctx context.Context, invoiceID string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx,
		`DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("failed to delete invoice items: %w", err)
	}
	return nil
}
