package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/internal/pipeline"
)

const maxErrorMessageLength = 1000

// invoiceRecorder tracks pipeline outcomes as invoice rows owned by one user
type invoiceRecorder struct {
	svc    *InvoiceService
	userID string
}

// Recorder returns a pipeline recorder that persists each file as an invoice owned by userID
func (s *InvoiceService) Recorder(userID string) pipeline.Recorder {
	return &invoiceRecorder{svc: s, userID: userID}
}

func (r *invoiceRecorder) Begin(ctx context.Context, file models.UploadedFile) (string, error) {
	inv, err := r.svc.CreatePending(ctx, r.userID, file)
	if err != nil {
		return "", err
	}
	return inv.ID, nil
}

func (r *invoiceRecorder) Complete(ctx context.Context, invoiceID string, data *models.StructuredInvoiceData) error {
	return r.svc.applyUpdate(ctx, invoiceID, data, true)
}

func (r *invoiceRecorder) Fail(ctx context.Context, invoiceID string, cause error) error {
	inv, err := r.svc.repos.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return apperror.Persistence("Failed to load invoice", err)
	}
	if inv == nil {
		return apperror.ErrInvoiceNotFound
	}
	if inv.Status.Terminal() {
		return apperror.Validation(fmt.Sprintf("Invoice is already %s", inv.Status))
	}
	return r.svc.MarkFailed(ctx, invoiceID, truncateMessage(cause.Error()))
}

func truncateMessage(msg string) string {
	if len(msg) <= maxErrorMessageLength {
		return msg
	}
	cut := maxErrorMessageLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
