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

type supplierRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *database.DB, logger *zap.Logger) SupplierRepository {
	return &supplierRepository{db: db, logger: logger}
}

const supplierColumns = `id, name, email, phone, address, tax_id, created_at`

// ConnectOrCreate returns the supplier with party's name, inserting it first if absent.
// An existing supplier keeps its stored contact details.
func (r *supplierRepository) ConnectOrCreate(ctx context.Context, party models.Party) (*models.Supplier, error) {
	exec := r.db.Executor(ctx)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, email, phone, address, tax_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		uuid.NewString(), party.Name, party.Email, party.Phone, party.Address, party.TaxID, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert supplier", zap.String("name", party.Name), zap.Error(err))
		return nil, fmt.Errorf("failed to upsert supplier: %w", err)
	}

	supplier, err := scanSupplier(exec.QueryRowContext(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE name = ?`, party.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier: %w", err)
	}
	return supplier, nil
}

// GetByID returns the supplier or nil when absent
func (r *supplierRepository) GetByID(ctx context.Context, id string) (*models.Supplier, error) {
	supplier, err := scanSupplier(r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	return supplier, nil
}

// List returns all suppliers ordered by name
func (r *supplierRepository) List(ctx context.Context) ([]*models.Supplier, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT `+supplierColumns+` FROM suppliers ORDER BY name ASC`)
	if err != nil {
		r.logger.Error("Failed to list suppliers", zap.Error(err))
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	suppliers := []*models.Supplier{}
	for rows.Next() {
		supplier, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, supplier)
	}
	return suppliers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSupplier(row rowScanner) (*models.Supplier, error) {
	var s models.Supplier
	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.Address, &s.TaxID, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
