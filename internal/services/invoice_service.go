package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/internal/repository"
	"github.com/garyjia/invoice-ai/pkg/database"
	"go.uber.org/zap"
)

// Repositories groups the stores the invoice service writes through
type Repositories struct {
	Users     repository.UserRepository
	Suppliers repository.SupplierRepository
	Customers repository.CustomerRepository
	Invoices  repository.InvoiceRepository
	Items     repository.LineItemRepository
}

// NewRepositories builds all SQLite repositories over db
func NewRepositories(db *database.DB, logger *zap.Logger) Repositories {
	return Repositories{
		Users:     repository.NewUserRepository(db, logger),
		Suppliers: repository.NewSupplierRepository(db, logger),
		Customers: repository.NewCustomerRepository(db, logger),
		Invoices:  repository.NewInvoiceRepository(db, logger),
		Items:     repository.NewLineItemRepository(db, logger),
	}
}

// InvoiceService persists structured invoice data with its supplier, customer and items
type InvoiceService struct {
	db     *database.DB
	repos  Repositories
	logger *zap.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(db *database.DB, repos Repositories, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{db: db, repos: repos, logger: logger}
}

// SaveInvoice validates data and creates the invoice with its relations in one transaction
func (s *InvoiceService) SaveInvoice(ctx context.Context, userID string, in *models.InvoiceInput) (*models.Invoice, error) {
	data, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	var id string
	err = s.db.WithTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.createInvoice(ctx, userID, data)
		if err != nil {
			return err
		}
		id = inv.ID
		return nil
	})
	if err != nil {
		return nil, apperror.Persistence("Failed to save invoice", err)
	}

	s.logger.Info("Invoice saved",
		zap.String("invoice_id", id),
		zap.String("user_id", userID),
		zap.String("invoice_number", data.InvoiceNumber))

	return s.GetStatus(ctx, id)
}

// SaveMultipleInvoices saves all invoices or none.
// Every record is validated before anything is written.
func (s *InvoiceService) SaveMultipleInvoices(ctx context.Context, userID string, inputs []*models.InvoiceInput) ([]*models.Invoice, error) {
	if len(inputs) == 0 {
		return nil, apperror.Validation("No invoices provided")
	}

	batch := make([]*models.StructuredInvoiceData, len(inputs))
	for i, in := range inputs {
		data, err := in.Normalize()
		if err != nil {
			return nil, apperror.Unprocessable(fmt.Sprintf("Invoice %d: %s", i+1, apperror.MessageOf(err)), err)
		}
		batch[i] = data
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(batch))
	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		for i, data := range batch {
			inv, err := s.createInvoice(ctx, userID, data)
			if err != nil {
				return fmt.Errorf("invoice %d: %w", i+1, err)
			}
			ids = append(ids, inv.ID)
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Persistence("Failed to save invoices", err)
	}

	s.logger.Info("Invoices saved", zap.String("user_id", userID), zap.Int("count", len(ids)))

	saved := make([]*models.Invoice, 0, len(ids))
	for _, id := range ids {
		inv, err := s.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		saved = append(saved, inv)
	}
	return saved, nil
}

// UpdateInvoice merges data into an existing invoice, marks it completed
// and rewrites its supplier, customer and items.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id string, in *models.InvoiceInput) (*models.Invoice, error) {
	data, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	if err := s.applyUpdate(ctx, id, data, false); err != nil {
		return nil, err
	}
	return s.GetStatus(ctx, id)
}

// GetStatus returns the invoice with its relations
func (s *InvoiceService) GetStatus(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.repos.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Persistence("Failed to load invoice", err)
	}
	if inv == nil {
		return nil, apperror.ErrInvoiceNotFound
	}
	if err := s.loadRelations(ctx, inv); err != nil {
		return nil, apperror.Persistence("Failed to load invoice", err)
	}
	return inv, nil
}

// ListInvoices returns a page of the user's invoices and the total count
func (s *InvoiceService) ListInvoices(ctx context.Context, userID string, limit, offset int) ([]*models.Invoice, int, error) {
	invoices, err := s.repos.Invoices.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperror.Persistence("Failed to list invoices", err)
	}
	total, err := s.repos.Invoices.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, apperror.Persistence("Failed to list invoices", err)
	}
	for _, inv := range invoices {
		if err := s.loadRelations(ctx, inv); err != nil {
			return nil, 0, apperror.Persistence("Failed to list invoices", err)
		}
	}
	return invoices, total, nil
}

// ListSuppliers returns every supplier ordered by name
func (s *InvoiceService) ListSuppliers(ctx context.Context) ([]*models.Supplier, error) {
	suppliers, err := s.repos.Suppliers.List(ctx)
	if err != nil {
		return nil, apperror.Persistence("Failed to list suppliers", err)
	}
	return suppliers, nil
}

// CreatePending records an uploaded file as a pending invoice owned by userID
func (s *InvoiceService) CreatePending(ctx context.Context, userID string, file models.UploadedFile) (*models.Invoice, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	inv := &models.Invoice{UserID: userID, FileName: file.FileName, Status: models.StatusPending}
	if err := s.repos.Invoices.Create(ctx, inv); err != nil {
		return nil, apperror.Persistence("Failed to create invoice", err)
	}
	return inv, nil
}

// MarkFailed moves an invoice to failed, keeping reason for inspection
func (s *InvoiceService) MarkFailed(ctx context.Context, id, reason string) error {
	err := s.repos.Invoices.UpdateStatus(ctx, id, models.StatusFailed, reason)
	if errors.Is(err, repository.ErrNoRowsAffected) {
		return apperror.ErrInvoiceNotFound
	}
	if err != nil {
		return apperror.Persistence("Failed to update invoice status", err)
	}
	return nil
}

func (s *InvoiceService) requireUser(ctx context.Context, userID string) error {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return apperror.Persistence("Failed to load user", err)
	}
	if user == nil {
		return apperror.ErrUserNotFound
	}
	return nil
}

// applyUpdate is shared by explicit updates and pipeline completion.
// Pipeline completion only applies to invoices still in flight.
func (s *InvoiceService) applyUpdate(ctx context.Context, id string, data *models.StructuredInvoiceData, fromPipeline bool) error {
	if err := data.Validate(); err != nil {
		return err
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.repos.Invoices.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if inv == nil {
			return apperror.ErrInvoiceNotFound
		}
		if fromPipeline && inv.Status.Terminal() {
			return apperror.Validation(fmt.Sprintf("Invoice is already %s", inv.Status))
		}

		oldCustomerID := inv.CustomerID
		mergeData(inv, data)
		inv.Status = models.StatusCompleted
		inv.ErrorMessage = ""

		if err := s.linkParties(ctx, inv, data); err != nil {
			return err
		}
		if err := s.repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		if oldCustomerID != nil {
			if err := s.repos.Customers.Delete(ctx, *oldCustomerID); err != nil {
				return err
			}
		}
		if err := s.repos.Items.DeleteByInvoice(ctx, inv.ID); err != nil {
			return err
		}
		return s.repos.Items.CreateBatch(ctx, inv.ID, toLineItems(data.Items))
	})

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if err != nil {
		return apperror.Persistence("Failed to update invoice", err)
	}

	s.logger.Info("Invoice updated", zap.String("invoice_id", id), zap.String("invoice_number", data.InvoiceNumber))
	return nil
}

func (s *InvoiceService) createInvoice(ctx context.Context, userID string, data *models.StructuredInvoiceData) (*models.Invoice, error) {
	inv := &models.Invoice{UserID: userID, FileName: data.FileName, Status: models.StatusCompleted}
	mergeData(inv, data)
	if data.Status != "" {
		inv.Status = data.Status
	}

	if err := s.linkParties(ctx, inv, data); err != nil {
		return nil, err
	}
	if err := s.repos.Invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.repos.Items.CreateBatch(ctx, inv.ID, toLineItems(data.Items)); err != nil {
		return nil, err
	}
	return inv, nil
}

// linkParties connects or creates the supplier and creates a fresh customer
func (s *InvoiceService) linkParties(ctx context.Context, inv *models.Invoice, data *models.StructuredInvoiceData) error {
	inv.SupplierID = nil
	if !data.Supplier.Empty() {
		supplier, err := s.repos.Suppliers.ConnectOrCreate(ctx, data.Supplier)
		if err != nil {
			return err
		}
		inv.SupplierID = &supplier.ID
	}

	inv.CustomerID = nil
	if data.Customer != (models.Party{}) {
		customer := &models.Customer{
			Name:    data.Customer.Name,
			Email:   data.Customer.Email,
			Phone:   data.Customer.Phone,
			Address: data.Customer.Address,
		}
		if err := s.repos.Customers.Create(ctx, customer); err != nil {
			return err
		}
		inv.CustomerID = &customer.ID
	}
	return nil
}

func (s *InvoiceService) loadRelations(ctx context.Context, inv *models.Invoice) error {
	if inv.SupplierID != nil {
		supplier, err := s.repos.Suppliers.GetByID(ctx, *inv.SupplierID)
		if err != nil {
			return err
		}
		inv.Supplier = supplier
	}
	if inv.CustomerID != nil {
		customer, err := s.repos.Customers.GetByID(ctx, *inv.CustomerID)
		if err != nil {
			return err
		}
		inv.Customer = customer
	}
	items, err := s.repos.Items.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	inv.Items = items
	return nil
}

func mergeData(inv *models.Invoice, data *models.StructuredInvoiceData) {
	date := data.Date
	inv.InvoiceNumber = data.InvoiceNumber
	inv.Date = &date
	inv.Type = data.Type
	inv.TotalAmount = data.TotalAmount
	inv.VATAmount = data.VATAmount
	if data.FileName != "" {
		inv.FileName = data.FileName
	}
}

func toLineItems(items []models.LineItemData) []models.LineItem {
	out := make([]models.LineItem, len(items))
	for i, item := range items {
		out[i] = models.LineItem{
			ItemName:    item.ItemName,
			ItemCode:    item.ItemCode,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.TotalPrice,
		}
	}
	return out
}
