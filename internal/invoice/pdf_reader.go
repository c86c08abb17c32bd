package invoice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/internal/storage"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// pageSource is the subset of a parsed PDF document the reader needs
type pageSource interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	Close() error
}

// PDFReader extracts the text layer of stored PDF documents using MuPDF
type PDFReader struct {
	store  storage.Store
	open   func(r io.Reader) (pageSource, error)
	logger *zap.Logger
}

// NewPDFReader creates a reader over documents kept in store
func NewPDFReader(store storage.Store, logger *zap.Logger) *PDFReader {
	return &PDFReader{
		store:  store,
		open:   openFitz,
		logger: logger,
	}
}

func openFitz(r io.Reader) (pageSource, error) {
	doc, err := fitz.NewFromReader(r)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ExtractText returns the text of every page in document order.
// Words within a page are joined by single spaces; pages are separated by newlines.
func (r *PDFReader) ExtractText(ctx context.Context, name string) (string, error) {
	rc, err := r.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperror.Extraction("File not found: "+name, err)
		}
		return "", apperror.Extraction("Failed to open file: "+name, err)
	}
	defer rc.Close()

	doc, err := r.open(rc)
	if err != nil {
		r.logger.Warn("Failed to parse PDF", zap.String("file", name), zap.Error(err))
		return "", apperror.Extraction("Failed to parse PDF: "+name, err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return "", apperror.Extraction("Text extraction interrupted", err)
		}
		text, err := doc.Text(n)
		if err != nil {
			return "", apperror.Extraction(fmt.Sprintf("Failed to read page %d of %s", n+1, name), err)
		}
		pages = append(pages, joinWords(text))
	}

	r.logger.Debug("Extracted PDF text",
		zap.String("file", name),
		zap.Int("pages", len(pages)))

	return strings.Join(pages, "\n"), nil
}

// Extract returns the text of an uploaded file together with its provenance
func (r *PDFReader) Extract(ctx context.Context, file models.UploadedFile) (*models.ExtractionResult, error) {
	text, err := r.ExtractText(ctx, file.FileName)
	if err != nil {
		return nil, err
	}
	return &models.ExtractionResult{FileName: file.FileName, Text: text}, nil
}

func joinWords(pageText string) string {
	return strings.Join(strings.Fields(pageText), " ")
}
