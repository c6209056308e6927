package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("queue")
	require.NoError(t, err)
	assert.Equal(t, CategoryQueue, c)

	_, err = ParseCategory("download")
	assert.Error(t, err)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()

	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogQueueEvent("download_added", zap.String("chapter", "1/2"))
	ml.LogError(CategoryQueue, "download_failed", zap.String("chapter", "1/2"))
	ml.General().Debug("not written at info level")
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	queue, err := reader.ReadLogs(CategoryQueue, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "download_added", queue[0].Message)
	assert.Equal(t, "info", queue[0].Level)
	assert.Equal(t, "1/2", queue[0].Fields["chapter"])

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "download_failed", errs[0].Message)

	general, err := reader.ReadLogs(CategoryGeneral, time.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, general)
}

func TestLogReader_LimitAndSearch(t *testing.T) {
	dir := t.TempDir()

	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	ml.LogQueueEvent("queue_started")
	ml.LogQueueEvent("download_added")
	ml.LogQueueEvent("download_finished")
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)

	last, err := reader.ReadLogs(CategoryQueue, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "download_added", last[0].Message)

	found, err := reader.SearchLogs(CategoryQueue, time.Now(), "DOWNLOAD", 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "download_finished", found[0].Message)
}

func TestLogReader_MissingFile(t *testing.T) {
	entries, err := NewLogReader(t.TempDir()).ReadLogs(CategoryAccess, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogReader_TailStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewLogReader(t.TempDir()).TailLogs(ctx, CategoryQueue, make(chan LogEntry))
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tail did not stop")
	}
}

func TestSingleLoggerAdapter(t *testing.T) {
	adapter := NewSingleLoggerAdapter(zap.NewNop())

	assert.NotNil(t, adapter.Queue())
	assert.Empty(t, adapter.LogsDir())
	adapter.LogError(CategoryQueue, "ignored")
}
