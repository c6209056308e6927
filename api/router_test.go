package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/app"
	"github.com/yourusername/chapterd/internal/domain"
	"github.com/yourusername/chapterd/internal/infrastructure"
	"github.com/yourusername/chapterd/pkg/dispatch"
	"github.com/yourusername/chapterd/pkg/logger"
)

var jpegPage = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00page")

// newGateway serves two pages for every chapter and two paragraphs for every
// novel chapter
func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/pages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]string{"/img/a.jpg", "/img/b.jpg"})
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegPage)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"paragraphs": {"One.", "Two."}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testServer struct {
	*httptest.Server
	downloads *app.DownloadManager
	novels    *app.NovelDownloadManager
}

func newTestServer(t *testing.T, logs *logger.LoggerAdapter) *testServer {
	t.Helper()
	dir := t.TempDir()
	gateway := newGateway(t)

	repo, err := infrastructure.NewSQLiteLibraryRepository(filepath.Join(dir, "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	sources, err := infrastructure.NewSourceRegistry(map[string]domain.SourceConfig{
		"gw": {BaseURL: gateway.URL},
	}, zap.NewNop())
	require.NoError(t, err)

	notifier := infrastructure.NewNotificationService(&domain.NotificationConfig{}, zap.NewNop())
	config := domain.DownloadConfig{MaxTries: domain.MaxTries, DequeuePolicy: domain.DequeueIgnore}

	downloads := app.NewDownloadManager(repo, sources, infrastructure.NewChapterStorage(dir, false), notifier, config, zap.NewNop())
	texts := infrastructure.NewTextFileStore(dir)
	novels := app.NewNovelDownloadManager(repo, sources, texts, notifier, config, zap.NewNop())
	t.Cleanup(func() {
		downloads.Stop()
		novels.Stop()
	})

	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(zap.NewNop())
	}

	router := SetupRouter(Dependencies{
		Downloads: downloads,
		Novels:    novels,
		Library:   repo,
		Exporter:  infrastructure.NewNovelEPubBuilder(texts),
		Ping:      repo.Ping,
		Logs:      logs,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, downloads: downloads, novels: novels}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (s *testServer) registerManga(t *testing.T, chapters int) domain.Manga {
	t.Helper()

	req := map[string]any{"sourceId": "gw", "url": "/manga/1", "title": "Test Manga"}
	var list []map[string]any
	for i := 0; i < chapters; i++ {
		list = append(list, map[string]any{"index": i, "url": fmt.Sprintf("/manga/1/%d", i), "name": fmt.Sprintf("Chapter %d", i+1)})
	}
	req["chapters"] = list

	code, body := s.do(t, http.MethodPost, "/api/v1/library/manga", req)
	require.Equal(t, http.StatusCreated, code, string(body))

	var manga domain.Manga
	require.NoError(t, json.Unmarshal(body, &manga))
	return manga
}

func (s *testServer) waitQueueEmpty(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		status := s.downloads.Status()
		return len(status.Queue) == 0 && !status.Running
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"status":"ok"`)

	code, _ = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDownloadChapterAndReadPages(t *testing.T) {
	s := newTestServer(t, nil)
	manga := s.registerManga(t, 1)

	code, body := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/download/%d/chapter/0", manga.ID), nil)
	require.Equal(t, http.StatusOK, code, string(body))
	s.waitQueueEmpty(t)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/manga/%d/chapter/0/page/1", s.URL, manga.ID))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, jpegPage, data)

	code, body = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/library/manga/%d", manga.ID), nil)
	require.Equal(t, http.StatusOK, code)
	var stored domain.Manga
	require.NoError(t, json.Unmarshal(body, &stored))
	require.Len(t, stored.Chapters, 1)
	assert.True(t, stored.Chapters[0].IsDownloaded)
	assert.Equal(t, 2, stored.Chapters[0].PageCount)

	code, _ = s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/manga/%d/chapter/0", manga.ID), map[string]int{"lastPageRead": 1})
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/manga/%d/chapter/0/download", manga.ID), nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/manga/%d/chapter/0/page/1", manga.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestQueueControl(t *testing.T) {
	s := newTestServer(t, nil)
	manga := s.registerManga(t, 3)

	code, _ := s.do(t, http.MethodGet, "/api/v1/downloads/stop", nil)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodGet, "/api/v1/download/999/chapter/0", nil)
	assert.Equal(t, http.StatusNotFound, code, string(body))

	code, body = s.do(t, http.MethodPost, "/api/v1/download/batch", map[string][]uint{
		"chapterIds": {12345},
	})
	assert.Equal(t, http.StatusNotFound, code, string(body))

	code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/download/%d/chapter/x", manga.ID), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/download/%d/chapter/0/reorder/-1", manga.ID), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/download/%d/chapter/7/reorder/0", manga.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/downloads/clear", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/downloads/status", nil)
	require.Equal(t, http.StatusOK, code)
	var status domain.DownloadStatus
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Empty(t, status.Queue)
	assert.Equal(t, domain.DownloaderStopped, status.Status)
}

func TestNovelDownloads(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, http.MethodPost, "/api/v1/library/novels", map[string]any{
		"sourceId": "gw",
		"url":      "/novel/1",
		"title":    "Test Novel",
		"chapters": []map[string]any{{"url": "/novel/1/1", "name": "Prologue"}},
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	var novel domain.Novel
	require.NoError(t, json.Unmarshal(body, &novel))
	require.Len(t, novel.Chapters, 1)
	chapterID := novel.Chapters[0].ID

	code, body = s.do(t, http.MethodPost, "/api/v1/novel-downloads/batch", map[string][]uint{"chapterIds": {chapterID}})
	require.Equal(t, http.StatusOK, code, string(body))

	contentPath := fmt.Sprintf("/api/v1/novel/%d/chapter/%d/content", novel.ID, chapterID)
	require.Eventually(t, func() bool {
		code, _ := s.do(t, http.MethodGet, contentPath, nil)
		return code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	code, body = s.do(t, http.MethodGet, contentPath, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "One.\n\nTwo.", string(body))

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/novel/%d/epub", s.URL, novel.ID))
	require.NoError(t, err)
	epub, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Test Novel.epub")
	assert.True(t, bytes.HasPrefix(epub, []byte("PK")))

	code, _ = s.do(t, http.MethodDelete, contentPath, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(t, http.MethodGet, contentPath, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/novel/%d/epub", novel.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDownloadStatusWebSocket(t *testing.T) {
	s := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/v1/downloads"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var status domain.DownloadStatus
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, domain.DownloaderStopped, status.Status)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("HELLO")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, dispatch.HelpText, string(msg))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("STATUS")))
	require.NoError(t, conn.ReadJSON(&status))
	assert.Empty(t, status.Queue)

	require.Eventually(t, func() bool { return s.downloads.Dispatcher().Len() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return s.downloads.Dispatcher().Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestLogRoutes(t *testing.T) {
	single := newTestServer(t, nil)
	code, _ := single.do(t, http.MethodGet, "/api/v1/logs/categories", nil)
	assert.Equal(t, http.StatusNotFound, code)

	ml, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { ml.Close() })

	s := newTestServer(t, logger.NewLoggerAdapter(ml, zap.NewNop()))
	ml.LogQueueEvent("download_added", zap.String("chapter", "1/0"))
	require.NoError(t, ml.Sync())

	code, body := s.do(t, http.MethodGet, "/api/v1/logs/categories", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "queue")

	code, body = s.do(t, http.MethodGet, "/api/v1/logs/queue?limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "download_added")

	code, _ = s.do(t, http.MethodGet, "/api/v1/logs/nope", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
