package container

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/garyjia/invoice-ai/internal/auth"
	"github.com/garyjia/invoice-ai/internal/config"
	"github.com/garyjia/invoice-ai/internal/export"
	"github.com/garyjia/invoice-ai/internal/invoice"
	httpapi "github.com/garyjia/invoice-ai/internal/interfaces/http"
	"github.com/garyjia/invoice-ai/internal/services"
	"github.com/garyjia/invoice-ai/internal/storage"
	"github.com/garyjia/invoice-ai/internal/worker"
	"github.com/garyjia/invoice-ai/pkg/database"
	"go.uber.org/zap"
)

// Container holds every component of the running service.
// Components are built in dependency order and torn down in reverse.
type Container struct {
	cfg    *config.Config
	logger *zap.Logger

	db      *database.DB
	store   storage.Store
	workers *worker.Manager
	server  *httpapi.Server

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a container; call Start to build components
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Container{cfg: cfg, logger: logger}, nil
}

// Start builds all components and starts background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("container has been closed")
	}
	if c.started {
		return fmt.Errorf("container already started")
	}

	if err := c.build(ctx); err != nil {
		_ = c.teardown()
		return err
	}
	if err := c.workers.StartAll(ctx); err != nil {
		_ = c.teardown()
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.started = true
	c.logger.Info("Container started")
	return nil
}

func (c *Container) build(ctx context.Context) error {
	db, err := ProvideDatabase(ctx, c.cfg.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db
	c.logger.Info("Database initialized", zap.String("path", c.cfg.Database.Path))

	store, err := ProvideStorage(ctx, c.cfg.Storage, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.store = store
	c.logger.Info("Storage initialized", zap.String("backend", c.cfg.Storage.Backend))

	extractor, err := ProvideExtractor(c.cfg.OpenAI, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}
	processor := ProvideProcessor(invoice.NewPDFReader(store, c.logger), extractor, c.cfg.Processing, c.logger)

	tokens := auth.NewTokenIssuer(c.cfg.Auth.JWTSecret, c.cfg.Auth.TokenTTL)
	repos := services.NewRepositories(db, c.logger)
	authSvc, err := services.NewAuthService(repos.Users, tokens, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}
	invoices := services.NewInvoiceService(db, repos, c.logger)
	c.logger.Info("Services initialized",
		zap.String("model", c.cfg.OpenAI.Model),
		zap.String("extraction_mode", c.cfg.OpenAI.ExtractionMode),
		zap.Int("batch_size", processor.BatchSize()))

	c.workers = worker.NewManager(c.logger)
	if c.cfg.Storage.Retention > 0 {
		c.workers.Register(worker.NewUploadJanitor(store, c.cfg.Storage.Retention, 0, c.logger))
	}

	c.server = httpapi.NewServer(httpapi.ServerConfig{
		Host:           c.cfg.Server.Host,
		Port:           c.cfg.Server.Port,
		ReadTimeout:    c.cfg.Server.ReadTimeout,
		WriteTimeout:   c.cfg.Server.WriteTimeout,
		AllowedOrigins: c.cfg.Server.AllowedOrigins,
	}, httpapi.Dependencies{
		Auth:     authSvc,
		Invoices: invoices,
		Uploads:  services.NewUploadService(store, c.cfg.Server.MaxUploadFiles, c.logger),
		Pipeline: processor,
		Exporter: export.NewExporter(invoices, c.logger),
		Tokens:   tokens,
		DB:       db,
	}, c.logger)

	return nil
}

// Server returns the HTTP server; valid after Start
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Close stops workers and closes the database
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("container already closed")
	}
	err := c.teardown()
	c.closed = true
	c.started = false
	return err
}

func (c *Container) teardown() error {
	var errs []error

	if c.workers != nil {
		c.workers.StopAll()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}

	return errors.Join(errs...)
}
