// Package container wires the invoice services together and owns their lifecycle.
package container

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-ai/internal/config"
	"github.com/garyjia/invoice-ai/internal/invoice"
	"github.com/garyjia/invoice-ai/internal/pipeline"
	"github.com/garyjia/invoice-ai/internal/storage"
	"github.com/garyjia/invoice-ai/pkg/database"
	"go.uber.org/zap"
)

// ProvideDatabase opens SQLite and applies the embedded migrations
func ProvideDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// ProvideStorage selects the upload backend
func ProvideStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.StorageMinIO:
		return storage.NewMinIOStorage(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		}, logger)
	case config.StorageLocal, "":
		return storage.NewLocalFileStorage(cfg.UploadDir, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ProvideExtractor builds the language model extractor
func ProvideExtractor(cfg config.OpenAIConfig, logger *zap.Logger) (*invoice.Extractor, error) {
	prompts, err := invoice.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	client := invoice.NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout)
	return invoice.NewExtractor(client, invoice.ExtractorConfig{
		Model:       cfg.Model,
		Mode:        cfg.ExtractionMode,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Prompts:     prompts,
	}, logger)
}

// ProvideProcessor builds the batch pipeline from processing settings
func ProvideProcessor(text pipeline.TextExtractor, data pipeline.DataExtractor, cfg config.ProcessingConfig, logger *zap.Logger) *pipeline.Processor {
	return pipeline.NewProcessor(text, data, pipeline.Config{
		BatchSize:     cfg.BatchSize,
		MaxConcurrent: cfg.MaxConcurrent,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   cfg.RetryBaseDelay,
			Sleep:       pipeline.SleepContext,
		},
	}, logger)
}
