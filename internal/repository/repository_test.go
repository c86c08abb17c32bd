package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "repo.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, zap.NewNop()).Run(context.Background()))
	return db
}

func createUser(t *testing.T, db *database.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "hash", Name: "Test"}
	require.NoError(t, NewUserRepository(db, zap.NewNop()).Create(context.Background(), user))
	return user
}

func TestUserRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	user := createUser(t, db, "alice@example.com")
	assert.NotEmpty(t, user.ID)

	t.Run("get by email and id", func(t *testing.T) {
		byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, user.ID, byEmail.ID)
		assert.Equal(t, "hash", byEmail.PasswordHash)

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", byID.Email)
	})

	t.Run("missing user is nil", func(t *testing.T) {
		missing, err := repo.GetByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Email: "alice@example.com", PasswordHash: "x", Name: "Other"})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestSupplierRepository_ConnectOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSupplierRepository(db, zap.NewNop())
	ctx := context.Background()

	first, err := repo.ConnectOrCreate(ctx, models.Party{Name: "Acme Ltd", Email: "a@acme.test"})
	require.NoError(t, err)

	second, err := repo.ConnectOrCreate(ctx, models.Party{Name: "Acme Ltd", Email: "other@acme.test"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a@acme.test", second.Email)

	_, err = repo.ConnectOrCreate(ctx, models.Party{Name: "Zeta Corp"})
	require.NoError(t, err)
	_, err = repo.ConnectOrCreate(ctx, models.Party{Name: "Beta Inc"})
	require.NoError(t, err)

	suppliers, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, suppliers, 3)
	assert.Equal(t, []string{"Acme Ltd", "Beta Inc", "Zeta Corp"},
		[]string{suppliers[0].Name, suppliers[1].Name, suppliers[2].Name})
}

func TestInvoiceRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "bob@example.com")
	invoices := NewInvoiceRepository(db, zap.NewNop())
	items := NewLineItemRepository(db, zap.NewNop())
	customers := NewCustomerRepository(db, zap.NewNop())

	inv := &models.Invoice{UserID: user.ID, FileName: "1-a.pdf"}
	require.NoError(t, invoices.Create(ctx, inv))
	assert.Equal(t, models.StatusPending, inv.Status)

	t.Run("round trip scalar fields", func(t *testing.T) {
		customer := &models.Customer{Name: "Globex"}
		require.NoError(t, customers.Create(ctx, customer))

		date := models.NewDate(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC))
		inv.Date = &date
		inv.InvoiceNumber = "INV-9"
		inv.TotalAmount = decimal.RequireFromString("1234.56")
		inv.VATAmount = decimal.RequireFromString("34.56")
		inv.Status = models.StatusCompleted
		inv.CustomerID = &customer.ID
		require.NoError(t, invoices.Update(ctx, inv))

		got, err := invoices.GetByID(ctx, inv.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "INV-9", got.InvoiceNumber)
		assert.Equal(t, "2024-05-17", got.Date.String())
		assert.True(t, decimal.RequireFromString("1234.56").Equal(got.TotalAmount))
		assert.Equal(t, models.StatusCompleted, got.Status)
		assert.Equal(t, customer.ID, *got.CustomerID)
		assert.Nil(t, got.SupplierID)
	})

	t.Run("status update", func(t *testing.T) {
		require.NoError(t, invoices.UpdateStatus(ctx, inv.ID, models.StatusFailed, "boom"))
		got, err := invoices.GetByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, got.Status)
		assert.Equal(t, "boom", got.ErrorMessage)
	})

	t.Run("missing invoice", func(t *testing.T) {
		got, err := invoices.GetByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, invoices.UpdateStatus(ctx, "missing", models.StatusFailed, ""), ErrNoRowsAffected)
	})

	t.Run("items keep document order", func(t *testing.T) {
		require.NoError(t, items.CreateBatch(ctx, inv.ID, []models.LineItem{
			{ItemName: "first", Quantity: decimal.NewFromInt(1)},
			{ItemName: "second", Quantity: decimal.NewFromInt(2)},
			{ItemName: "third", Quantity: decimal.NewFromInt(3)},
		}))

		list, err := items.ListByInvoice(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "first", list[0].ItemName)
		assert.Equal(t, "third", list[2].ItemName)
		assert.True(t, decimal.NewFromInt(2).Equal(list[1].Quantity))

		require.NoError(t, items.DeleteByInvoice(ctx, inv.ID))
		list, err = items.ListByInvoice(ctx, inv.ID)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("list by user", func(t *testing.T) {
		require.NoError(t, invoices.Create(ctx, &models.Invoice{UserID: user.ID, FileName: "2-b.pdf"}))

		list, err := invoices.ListByUser(ctx, user.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		n, err := invoices.CountByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		page, err := invoices.ListByUser(ctx, user.ID, 1, 1)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})
}

func TestInvoiceRepository_RejectsUnknownUser(t *testing.T) {
	db := setupTestDB(t)
	err := NewInvoiceRepository(db, zap.NewNop()).Create(context.Background(), &models.Invoice{UserID: "ghost"})
	assert.Error(t, err)
}
