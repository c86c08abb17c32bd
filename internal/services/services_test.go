package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/auth"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	db       *database.DB
	repos    Repositories
	invoices *InvoiceService
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "services.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Run(context.Background()))

	repos := NewRepositories(db, logger)
	authSvc, err := NewAuthService(repos.Users, auth.NewTokenIssuer("test-secret", time.Hour), logger)
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		repos:    repos,
		invoices: NewInvoiceService(db, repos, logger),
		auth:     authSvc,
	}
}

func (e *testEnv) createUser(t *testing.T, email string) string {
	t.Helper()
	res, err := e.auth.Register(context.Background(), email, "secret123", "Test User")
	require.NoError(t, err)
	return res.User.ID
}

func sampleInput(number, supplier string) *models.InvoiceInput {
	return &models.InvoiceInput{
		InvoiceNumber: number,
		Date:          "2024-03-15",
		TotalAmount:   models.NewAmount(decimal.RequireFromString("121.00")),
		VATAmount:     models.NewAmount(decimal.RequireFromString("21.00")),
		Supplier:      &models.Party{Name: supplier, Email: "billing@acme.test"},
		Customer:      &models.Party{Name: "Globex", Address: "1 Main St"},
		Items: []models.LineItemData{
			{ItemName: "Widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50), TotalPrice: decimal.NewFromInt(100)},
		},
	}
}

func requireKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperror.KindOf(err), "unexpected error: %v", err)
}
