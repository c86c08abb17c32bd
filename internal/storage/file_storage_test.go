package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocal(t *testing.T) (*LocalFileStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalFileStorage(dir, zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func TestLocalFileStorage_SaveOpenRemove(t *testing.T) {
	s, dir := newLocal(t)
	ctx := context.Background()

	t.Run("saves file under base directory", func(t *testing.T) {
		path, err := s.Save(ctx, "1700000000000-invoice.pdf", strings.NewReader("%PDF-1.4"), 8, "application/pdf")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "1700000000000-invoice.pdf"), path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(content))
	})

	t.Run("opens and stats saved file", func(t *testing.T) {
		rc, err := s.Open(ctx, "1700000000000-invoice.pdf")
		require.NoError(t, err)
		defer rc.Close()
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(body))

		info, err := s.Stat(ctx, "1700000000000-invoice.pdf")
		require.NoError(t, err)
		assert.Equal(t, int64(8), info.Size)
		assert.Equal(t, "application/pdf", info.ContentType)
	})

	t.Run("lists files", func(t *testing.T) {
		objects, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, objects, 1)
		assert.Equal(t, "1700000000000-invoice.pdf", objects[0].Name)
	})

	t.Run("missing file is ErrNotFound", func(t *testing.T) {
		_, err := s.Open(ctx, "nope.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Stat(ctx, "nope.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "1700000000000-invoice.pdf"))
		require.NoError(t, s.Remove(ctx, "1700000000000-invoice.pdf"))
		_, err := s.Stat(ctx, "1700000000000-invoice.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLocalFileStorage_ValidatePath(t *testing.T) {
	s, dir := newLocal(t)

	t.Run("accepts valid path within base", func(t *testing.T) {
		assert.NoError(t, s.ValidatePath(filepath.Join(dir, "file.pdf")))
	})

	t.Run("rejects path outside base directory", func(t *testing.T) {
		err := s.ValidatePath("/etc/passwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes base directory")
	})

	t.Run("rejects traversal through names", func(t *testing.T) {
		_, err := s.Open(context.Background(), "../../etc/passwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes base directory")
	})

	t.Run("rejects base directory itself", func(t *testing.T) {
		_, err := s.Stat(context.Background(), "")
		assert.Error(t, err)
	})
}
