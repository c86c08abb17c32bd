package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/invoice-ai/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockWorker struct {
	mock.Mock
}

func (m *MockWorker) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockWorker) Stop() {
	m.Called()
}

func (m *MockWorker) Name() string {
	return m.Called().String(0)
}

func TestManager(t *testing.T) {
	t.Run("starts in order and stops in reverse", func(t *testing.T) {
		var order []string
		first, second := new(MockWorker), new(MockWorker)
		for name, w := range map[string]*MockWorker{"first": first, "second": second} {
			name := name
			w.On("Name").Return(name)
			w.On("Start", mock.Anything).Return(nil)
			w.On("Stop").Run(func(mock.Arguments) { order = append(order, name) })
		}

		m := NewManager(zap.NewNop())
		m.Register(first)
		m.Register(second)
		assert.Equal(t, 2, m.Count())

		require.NoError(t, m.StartAll(context.Background()))
		m.StopAll()
		assert.Equal(t, []string{"second", "first"}, order)

		m.StopAll()
		first.AssertNumberOfCalls(t, "Stop", 1)
	})

	t.Run("failed start stops running workers", func(t *testing.T) {
		ok, broken := new(MockWorker), new(MockWorker)
		ok.On("Name").Return("ok")
		ok.On("Start", mock.Anything).Return(nil)
		ok.On("Stop").Return()
		broken.On("Name").Return("broken")
		broken.On("Start", mock.Anything).Return(errors.New("boom"))

		m := NewManager(zap.NewNop())
		m.Register(ok)
		m.Register(broken)

		require.Error(t, m.StartAll(context.Background()))
		ok.AssertCalled(t, "Stop")
		broken.AssertNotCalled(t, "Stop")
	})
}

func TestUploadJanitor_Sweep(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := storage.NewLocalFileStorage(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	files := map[string]time.Time{
		"1-old.pdf":   now.Add(-48 * time.Hour),
		"2-edge.pdf":  now.Add(-23 * time.Hour),
		"3-fresh.pdf": now.Add(-time.Minute),
	}
	for name, mod := range files {
		_, err := store.Save(ctx, name, strings.NewReader("%PDF"), 4, "application/pdf")
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(filepath.Join(dir, name), mod, mod))
	}

	j := NewUploadJanitor(store, 24*time.Hour, time.Hour, zap.NewNop())
	j.now = func() time.Time { return now }

	removed, err := j.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Stat(ctx, "1-old.pdf")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Stat(ctx, "3-fresh.pdf")
	assert.NoError(t, err)
}

func TestUploadJanitor_Lifecycle(t *testing.T) {
	store, err := storage.NewLocalFileStorage(filepath.Join(t.TempDir(), "uploads"), zap.NewNop())
	require.NoError(t, err)

	j := NewUploadJanitor(store, time.Hour, 10*time.Millisecond, zap.NewNop())
	assert.Equal(t, "upload-janitor", j.Name())

	require.NoError(t, j.Start(context.Background()))
	assert.Error(t, j.Start(context.Background()))
	j.Stop()
	j.Stop()

	invalid := NewUploadJanitor(store, 0, time.Minute, zap.NewNop())
	assert.Error(t, invalid.Start(context.Background()))
}
