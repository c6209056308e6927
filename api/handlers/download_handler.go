package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/app"
	"github.com/yourusername/chapterd/internal/domain"
)

// DownloadHandler handles manga download queue requests
type DownloadHandler struct {
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(downloadMgr *app.DownloadManager, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// Status handles GET /api/v1/downloads/status
func (h *DownloadHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.downloadMgr.Status())
}

// Start handles GET /api/v1/downloads/start
func (h *DownloadHandler) Start(c *gin.Context) {
	h.downloadMgr.Start()
	c.JSON(http.StatusOK, h.downloadMgr.Status())
}

// Stop handles GET /api/v1/downloads/stop
func (h *DownloadHandler) Stop(c *gin.Context) {
	h.downloadMgr.Stop()
	c.JSON(http.StatusOK, h.downloadMgr.Status())
}

// Clear handles GET /api/v1/downloads/clear
func (h *DownloadHandler) Clear(c *gin.Context) {
	h.downloadMgr.Clear()
	c.JSON(http.StatusOK, h.downloadMgr.Status())
}

// QueueChapter handles GET /api/v1/download/:mangaId/chapter/:chapterIndex
func (h *DownloadHandler) QueueChapter(c *gin.Context) {
	key, ok := chapterKey(c)
	if !ok {
		return
	}

	spec := domain.JobSpec{MangaID: key.MangaID, ChapterIndex: key.ChapterIndex}
	if _, err := h.downloadMgr.Enqueue(c.Request.Context(), []domain.JobSpec{spec}); err != nil {
		h.logger.Warn("Failed to queue chapter", zap.String("chapter", key.String()), zap.Error(err))
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.downloadMgr.Status())
}

// UnqueueChapter handles DELETE /api/v1/download/:mangaId/chapter/:chapterIndex
func (h *DownloadHandler) UnqueueChapter(c *gin.Context) {
	key, ok := chapterKey(c)
	if !ok {
		return
	}

	h.downloadMgr.Dequeue(key)
	c.JSON(http.StatusOK, h.downloadMgr.Status())
}

// Reorder handles PATCH /api/v1/download/:mangaId/chapter/:chapterIndex/reorder/:to
func (h *DownloadHandler) Reorder(c *gin.Context) {
	key, ok := chapterKey(c)
	if !ok {
		return
	}
	to, ok := intParam(c, "to")
	if !ok {
		return
	}

	if err := h.downloadMgr.Reorder(key, to); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.downloadMgr.Status())
}

// QueueBatch handles POST /api/v1/download/batch
func (h *DownloadHandler) QueueBatch(c *gin.Context) {
	var req ChapterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	specs := make([]domain.JobSpec, len(req.ChapterIDs))
	for i, id := range req.ChapterIDs {
		specs[i] = domain.JobSpec{ChapterID: id}
	}

	added, err := h.downloadMgr.Enqueue(c.Request.Context(), specs)
	response := gin.H{"queued": len(added), "status": h.downloadMgr.Status()}
	if err != nil {
		h.logger.Warn("Some chapters could not be queued", zap.Error(err))
		errs := multierr.Errors(err)
		messages := make([]string, len(errs))
		for i, e := range errs {
			messages[i] = e.Error()
		}
		response["errors"] = messages

		if len(added) == 0 && len(errs) == len(specs) {
			response["error"] = errs[0].Error()
			c.JSON(errorStatus(errs[0]), response)
			return
		}
	}

	c.JSON(http.StatusOK, response)
}

// UnqueueBatch handles DELETE /api/v1/download/batch
func (h *DownloadHandler) UnqueueBatch(c *gin.Context) {
	var req ChapterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	removed := h.downloadMgr.DequeueChapters(req.ChapterIDs...)
	c.JSON(http.StatusOK, gin.H{"removed": len(removed), "status": h.downloadMgr.Status()})
}
