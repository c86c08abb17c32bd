package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no stored file has the requested name
var ErrNotFound = errors.New("stored file not found")

// ObjectInfo describes one stored file
type ObjectInfo struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Store keeps uploaded documents addressed by their generated file name
type Store interface {
	// Save writes r under name and returns the location it was written to
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)

	// Open returns a reader for a stored file, or ErrNotFound
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Stat describes a stored file, or returns ErrNotFound
	Stat(ctx context.Context, name string) (ObjectInfo, error)

	// Remove deletes a stored file; removing a missing file is not an error
	Remove(ctx context.Context, name string) error

	// List returns every stored file
	List(ctx context.Context) ([]ObjectInfo, error)
}
