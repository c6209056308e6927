package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/chapterd/internal/app"
)

// Version is reported by the health endpoint
var Version = "dev"

// HealthHandler handles health check requests
type HealthHandler struct {
	downloadMgr *app.DownloadManager
	novelMgr    *app.NovelDownloadManager
	ping        func() error
}

// NewHealthHandler creates a new health handler. ping checks the database.
func NewHealthHandler(downloadMgr *app.DownloadManager, novelMgr *app.NovelDownloadManager, ping func() error) *HealthHandler {
	return &HealthHandler{
		downloadMgr: downloadMgr,
		novelMgr:    novelMgr,
		ping:        ping,
	}
}

// WorkerHealth summarises one download worker
type WorkerHealth struct {
	Running bool `json:"running"`
	Queued  int  `json:"queued"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Manga   WorkerHealth `json:"manga"`
	Novel   WorkerHealth `json:"novel"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	manga := h.downloadMgr.Status()
	novel := h.novelMgr.Status()

	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		Manga:   WorkerHealth{Running: manga.Running, Queued: len(manga.Queue)},
		Novel:   WorkerHealth{Running: novel.Running, Queued: len(novel.Queue)},
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
