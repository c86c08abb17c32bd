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

type customerRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *database.DB, logger *zap.Logger) CustomerRepository {
	return &customerRepository{db: db, logger: logger}
}

// Create always inserts a fresh customer row
func (r *customerRepository) Create(ctx context.Context, customer *models.Customer) error {
	customer.ID = uuid.NewString()
	customer.CreatedAt = time.Now().UTC()

	_, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		customer.ID, customer.Name, customer.Email, customer.Phone, customer.Address, customer.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create customer", zap.Error(err))
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetByID returns the customer or nil when absent
func (r *customerRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	err := r.db.Executor(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, created_at FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

// Delete removes a customer row
func (r *customerRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}
