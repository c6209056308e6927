package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/app"
)

// NovelHandler handles novel download queue and content requests
type NovelHandler struct {
	novelMgr *app.NovelDownloadManager
	logger   *zap.Logger
}

// NewNovelHandler creates a new novel handler
func NewNovelHandler(novelMgr *app.NovelDownloadManager, logger *zap.Logger) *NovelHandler {
	return &NovelHandler{novelMgr: novelMgr, logger: logger}
}

// Status handles GET /api/v1/novel-downloads/status
func (h *NovelHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.novelMgr.Status())
}

// Start handles GET /api/v1/novel-downloads/start
func (h *NovelHandler) Start(c *gin.Context) {
	h.novelMgr.Start()
	c.JSON(http.StatusOK, h.novelMgr.Status())
}

// Stop handles GET /api/v1/novel-downloads/stop
func (h *NovelHandler) Stop(c *gin.Context) {
	h.novelMgr.Stop()
	c.JSON(http.StatusOK, h.novelMgr.Status())
}

// Clear handles GET /api/v1/novel-downloads/clear
func (h *NovelHandler) Clear(c *gin.Context) {
	h.novelMgr.Clear()
	c.JSON(http.StatusOK, h.novelMgr.Status())
}

// QueueBatch handles POST /api/v1/novel-downloads/batch
func (h *NovelHandler) QueueBatch(c *gin.Context) {
	var req ChapterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.novelMgr.Enqueue(c.Request.Context(), req.ChapterIDs)
	if err != nil {
		h.logger.Warn("Some novel chapters could not be queued", zap.Error(err))
		if len(added) == 0 {
			abortWithError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.novelMgr.Status())
}

// UnqueueBatch handles DELETE /api/v1/novel-downloads/batch
func (h *NovelHandler) UnqueueBatch(c *gin.Context) {
	var req ChapterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.novelMgr.Dequeue(req.ChapterIDs...)
	c.JSON(http.StatusOK, h.novelMgr.Status())
}

// Content handles GET /api/v1/novel/:novelId/chapter/:chapterId/content
func (h *NovelHandler) Content(c *gin.Context) {
	novelID, ok := uintParam(c, "novelId")
	if !ok {
		return
	}
	chapterID, ok := uintParam(c, "chapterId")
	if !ok {
		return
	}

	content, err := h.novelMgr.Content(novelID, chapterID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.String(http.StatusOK, content)
}

// DeleteContent handles DELETE /api/v1/novel/:novelId/chapter/:chapterId/content
func (h *NovelHandler) DeleteContent(c *gin.Context) {
	novelID, ok := uintParam(c, "novelId")
	if !ok {
		return
	}
	chapterID, ok := uintParam(c, "chapterId")
	if !ok {
		return
	}

	if err := h.novelMgr.DeleteDownload(novelID, chapterID); err != nil {
		h.logger.Error("Failed to delete novel chapter", zap.Uint("chapter_id", chapterID), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteNovel handles DELETE /api/v1/novel/:novelId/content
func (h *NovelHandler) DeleteNovel(c *gin.Context) {
	novelID, ok := uintParam(c, "novelId")
	if !ok {
		return
	}

	if err := h.novelMgr.DeleteNovelDownloads(novelID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
