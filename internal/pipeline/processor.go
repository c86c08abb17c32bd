// Package pipeline drives uploaded documents through text extraction and
// structured-data extraction in sequential, internally concurrent batches.
package pipeline

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-ai/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TextExtractor reads the text of a stored document
type TextExtractor interface {
	Extract(ctx context.Context, file models.UploadedFile) (*models.ExtractionResult, error)
}

// DataExtractor turns document text into structured invoice data
type DataExtractor interface {
	Extract(ctx context.Context, text string) (*models.StructuredInvoiceData, error)
}

// Recorder persists the lifecycle of each processed file.
// Begin runs before any extraction; exactly one of Complete or Fail follows it.
type Recorder interface {
	Begin(ctx context.Context, file models.UploadedFile) (string, error)
	Complete(ctx context.Context, invoiceID string, data *models.StructuredInvoiceData) error
	Fail(ctx context.Context, invoiceID string, cause error) error
}

// Config holds pipeline settings
type Config struct {
	BatchSize     int
	MaxConcurrent int
	Retry         RetryPolicy
}

// Processor runs batch pipelines
type Processor struct {
	text   TextExtractor
	data   DataExtractor
	cfg    Config
	logger *zap.Logger
}

// NewProcessor creates a processor; zero config values fall back to defaults.
// MaxConcurrent is raised to BatchSize when lower.
func NewProcessor(text TextExtractor, data DataExtractor, cfg Config, logger *zap.Logger) *Processor {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 2
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 4
	}
	if cfg.MaxConcurrent < cfg.BatchSize {
		cfg.MaxConcurrent = cfg.BatchSize
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Processor{text: text, data: data, cfg: cfg, logger: logger}
}

// BatchSize returns the configured batch size
func (p *Processor) BatchSize() int {
	return p.cfg.BatchSize
}

// Partition splits files into consecutive chunks of size, preserving order
func Partition(files []models.UploadedFile, size int) [][]models.UploadedFile {
	if size < 1 {
		size = 1
	}
	batches := make([][]models.UploadedFile, 0, (len(files)+size-1)/size)
	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))
		batches = append(batches, files[start:end])
	}
	return batches
}

// ProcessBatches extracts structured data from files without persisting anything.
// batchSize <= 0 uses the configured batch size. One result per file, in input order.
func (p *Processor) ProcessBatches(ctx context.Context, files []models.UploadedFile, batchSize int) []models.FileResult {
	return p.run(ctx, files, batchSize, nil)
}

// ProcessAndRecord is ProcessBatches with every file's outcome persisted through rec
func (p *Processor) ProcessAndRecord(ctx context.Context, files []models.UploadedFile, batchSize int, rec Recorder) []models.FileResult {
	return p.run(ctx, files, batchSize, rec)
}

func (p *Processor) run(ctx context.Context, files []models.UploadedFile, batchSize int, rec Recorder) []models.FileResult {
	if batchSize < 1 {
		batchSize = p.cfg.BatchSize
	}
	results := make([]models.FileResult, 0, len(files))
	batches := Partition(files, batchSize)

	for i, batch := range batches {
		p.logger.Info("Processing batch",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("files", len(batch)))

		out := make([]models.FileResult, len(batch))
		var g errgroup.Group
		g.SetLimit(min(len(batch), p.cfg.MaxConcurrent))
		for j, file := range batch {
			g.Go(func() error {
				out[j] = p.processFile(ctx, file, rec)
				return nil
			})
		}
		_ = g.Wait()

		results = append(results, out...)
	}

	return results
}

// processFile runs one file through the pipeline; it never returns an error,
// failures become the file's outcome.
func (p *Processor) processFile(ctx context.Context, file models.UploadedFile, rec Recorder) (res models.FileResult) {
	res = models.FileResult{FileName: file.FileName, OriginalName: file.OriginalName}
	log := p.logger.With(zap.String("file", file.FileName))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing file", zap.Any("panic", r))
			res = failed(res, fmt.Errorf("panic while processing %s: %v", file.FileName, r))
			p.recordFailure(ctx, rec, res.InvoiceID, res.Err, log)
		}
	}()

	if rec != nil {
		id, err := rec.Begin(ctx, file)
		if err != nil {
			log.Error("Failed to create pending invoice", zap.Error(err))
			return failed(res, err)
		}
		res.InvoiceID = id
	}

	var extracted *models.ExtractionResult
	var data *models.StructuredInvoiceData
	attempts, err := p.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		ex, err := p.text.Extract(ctx, file)
		if err == nil {
			var d *models.StructuredInvoiceData
			if d, err = p.data.Extract(ctx, ex.Text); err == nil {
				extracted, data = ex, d
				return nil
			}
			log.Warn("Structured extraction failed",
				zap.String("source", ex.FileName),
				zap.Int("text_length", len(ex.Text)),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", p.cfg.Retry.MaxAttempts),
				zap.Error(err))
			return err
		}
		log.Warn("Text extraction failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.Retry.MaxAttempts),
			zap.Error(err))
		return err
	})
	res.Attempts = attempts

	if err != nil {
		log.Error("File failed after retries", zap.Int("attempts", attempts), zap.Error(err))
		res = failed(res, err)
		p.recordFailure(ctx, rec, res.InvoiceID, err, log)
		return res
	}

	if data.FileName == "" {
		data.FileName = extracted.FileName
	}

	if rec != nil {
		if err := rec.Complete(ctx, res.InvoiceID, data); err != nil {
			log.Error("Failed to store extracted invoice", zap.Error(err))
			res = failed(res, err)
			p.recordFailure(ctx, rec, res.InvoiceID, err, log)
			return res
		}
	} else {
		res.Text = extracted.Text
	}

	res.Status = models.OutcomeCompleted
	res.Data = data
	log.Info("File processed", zap.Int("attempts", attempts))
	return res
}

func (p *Processor) recordFailure(ctx context.Context, rec Recorder, invoiceID string, cause error, log *zap.Logger) {
	if rec == nil || invoiceID == "" {
		return
	}
	if err := rec.Fail(ctx, invoiceID, cause); err != nil {
		log.Error("Failed to mark invoice as failed", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
}

func failed(res models.FileResult, err error) models.FileResult {
	res.Status = models.OutcomeFailed
	res.Err = err
	res.Error = err.Error()
	res.Data = nil
	return res
}
