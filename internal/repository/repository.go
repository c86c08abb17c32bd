// Package repository persists users, invoices and their relations in SQLite.
// Every method runs on the transaction carried by ctx when there is one.
package repository

import (
	"context"
	"errors"

	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when a unique constraint rejects a write
var ErrDuplicate = errors.New("duplicate record")

// UserRepository stores accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// SupplierRepository stores suppliers shared across invoices
type SupplierRepository interface {
	ConnectOrCreate(ctx context.Context, party models.Party) (*models.Supplier, error)
	GetByID(ctx context.Context, id string) (*models.Supplier, error)
	List(ctx context.Context) ([]*models.Supplier, error)
}

// CustomerRepository stores per-invoice customers
type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	Delete(ctx context.Context, id string) error
}

// InvoiceRepository stores invoice rows without their relations
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	UpdateStatus(ctx context.Context, id string, status models.InvoiceStatus, errMsg string) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// LineItemRepository stores invoice lines
type LineItemRepository interface {
	CreateBatch(ctx context.Context, invoiceID string, items []models.LineItem) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]models.LineItem, error)
	DeleteByInvoice(ctx context.Context, invoiceID string) error
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
