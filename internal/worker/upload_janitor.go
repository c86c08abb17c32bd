package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/invoice-ai/internal/storage"
	"go.uber.org/zap"
)

// UploadJanitor removes uploaded files once they outlive the retention window
type UploadJanitor struct {
	store     storage.Store
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewUploadJanitor creates a janitor sweeping every interval
func NewUploadJanitor(store storage.Store, retention, interval time.Duration, logger *zap.Logger) *UploadJanitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &UploadJanitor{
		store:     store,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
}

// Name implements Worker
func (j *UploadJanitor) Name() string {
	return "upload-janitor"
}

// Start sweeps once and then on every tick until stopped
func (j *UploadJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return fmt.Errorf("upload janitor is already running")
	}
	if j.retention <= 0 {
		return fmt.Errorf("upload janitor needs a positive retention, got %s", j.retention)
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	j.running = true

	j.logger.Info("UploadJanitor started",
		zap.Duration("retention", j.retention),
		zap.Duration("interval", j.interval))

	go j.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep
func (j *UploadJanitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	j.cancel()
	done := j.done
	j.mu.Unlock()

	<-done
}

func (j *UploadJanitor) loop(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			j.logger.Error("Upload sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep removes every stored file older than the retention window
func (j *UploadJanitor) Sweep(ctx context.Context) (int, error) {
	objects, err := j.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list uploads: %w", err)
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		if err := j.store.Remove(ctx, obj.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			j.logger.Warn("Failed to remove expired upload", zap.String("filename", obj.Name), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("Expired uploads removed", zap.Int("count", removed))
	}
	return removed, nil
}
