package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/invoice-ai/internal/apperror"
	"github.com/garyjia/invoice-ai/internal/models"
	"github.com/garyjia/invoice-ai/internal/storage"
	"github.com/garyjia/invoice-ai/pkg/utils"
	"go.uber.org/zap"
)

// UploadService stores client uploads under <epoch-millis>-<original-name>
type UploadService struct {
	store    storage.Store
	maxFiles int
	logger   *zap.Logger

	mu       sync.Mutex
	lastMark int64
	now      func() time.Time
}

// NewUploadService creates a new upload service
func NewUploadService(store storage.Store, maxFiles int, logger *zap.Logger) *UploadService {
	if maxFiles < 1 {
		maxFiles = 5
	}
	return &UploadService{store: store, maxFiles: maxFiles, logger: logger, now: time.Now}
}

// MaxFiles is the per-request upload limit
func (s *UploadService) MaxFiles() int {
	return s.maxFiles
}

// Store saves every file and returns references in request order.
// On failure the files already written by this call are removed.
func (s *UploadService) Store(ctx context.Context, files []*multipart.FileHeader) ([]models.UploadedFile, error) {
	if len(files) == 0 {
		return nil, apperror.Validation("No files uploaded")
	}
	if len(files) > s.maxFiles {
		return nil, apperror.Validation(fmt.Sprintf("Too many files: at most %d per request", s.maxFiles))
	}

	stored := make([]models.UploadedFile, 0, len(files))
	for _, fh := range files {
		file, err := s.storeOne(ctx, fh)
		if err != nil {
			s.Discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, file)
	}
	return stored, nil
}

func (s *UploadService) storeOne(ctx context.Context, fh *multipart.FileHeader) (models.UploadedFile, error) {
	original := utils.SanitizeFilename(fh.Filename)
	name := fmt.Sprintf("%d-%s", s.nextMark(), original)

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(original)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	src, err := fh.Open()
	if err != nil {
		return models.UploadedFile{}, apperror.Validation("Failed to read uploaded file")
	}
	defer src.Close()

	path, err := s.store.Save(ctx, name, src, fh.Size, contentType)
	if err != nil {
		return models.UploadedFile{}, apperror.Persistence("Failed to store uploaded file", err)
	}

	s.logger.Info("File uploaded",
		zap.String("filename", name),
		zap.String("original_name", original),
		zap.Int64("size", fh.Size))

	return models.UploadedFile{
		FileName:     name,
		OriginalName: original,
		Path:         path,
		Size:         fh.Size,
		MimeType:     contentType,
		UploadedAt:   s.now(),
	}, nil
}

// nextMark returns epoch millis, strictly increasing within the process
func (s *UploadService) nextMark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	mark := s.now().UnixMilli()
	if mark <= s.lastMark {
		mark = s.lastMark + 1
	}
	s.lastMark = mark
	return mark
}

// Resolve looks up previously uploaded files by their generated names
func (s *UploadService) Resolve(ctx context.Context, names []string) ([]models.UploadedFile, error) {
	if len(names) == 0 {
		return nil, apperror.Validation("No files provided")
	}

	files := make([]models.UploadedFile, 0, len(names))
	for _, name := range names {
		if name == "" || utils.SanitizeFilename(name) != name {
			return nil, apperror.Validation(fmt.Sprintf("Invalid file name: %s", name))
		}
		info, err := s.store.Stat(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("Uploaded file not found: %s", name))
		}
		if err != nil {
			return nil, apperror.Persistence("Failed to read uploaded file", err)
		}
		files = append(files, models.UploadedFile{
			FileName:     name,
			OriginalName: OriginalName(name),
			Path:         info.Path,
			Size:         info.Size,
			MimeType:     info.ContentType,
			UploadedAt:   info.ModTime,
		})
	}
	return files, nil
}

// Discard removes stored files, logging rather than returning failures
func (s *UploadService) Discard(ctx context.Context, files []models.UploadedFile) {
	for _, f := range files {
		if err := s.store.Remove(ctx, f.FileName); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to remove uploaded file", zap.String("filename", f.FileName), zap.Error(err))
		}
	}
}

// OriginalName strips the millisecond prefix from a generated name
func OriginalName(name string) string {
	prefix, rest, ok := strings.Cut(name, "-")
	if !ok || rest == "" {
		return name
	}
	if _, err := strconv.ParseInt(prefix, 10, 64); err != nil {
		return name
	}
	return rest
}
