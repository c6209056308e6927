package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/app"
	"github.com/yourusername/chapterd/internal/domain"
)

// Library is the part of the library repository the HTTP layer needs
type Library interface {
	SaveManga(manga *domain.Manga) error
	FindManga(id uint) (*domain.Manga, error)
	ListMangas() ([]*domain.Manga, error)
	FindChapterByIndex(mangaID uint, index int) (*domain.Chapter, error)
	UpdateLastPageRead(chapterID uint, page int) error
	SaveNovel(novel *domain.Novel) error
	FindNovel(id uint) (*domain.Novel, error)
	ListNovels() ([]*domain.Novel, error)
}

// LibraryHandler registers library records and serves downloaded pages
type LibraryHandler struct {
	library     Library
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(library Library, downloadMgr *app.DownloadManager, logger *zap.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, downloadMgr: downloadMgr, logger: logger}
}

// RegisterChapterRequest is one chapter of a registered manga or novel
type RegisterChapterRequest struct {
	Index int    `json:"index"`
	URL   string `json:"url" binding:"required"`
	Name  string `json:"name"`
}

// RegisterRequest registers a manga or novel with its chapters
type RegisterRequest struct {
	SourceID string                   `json:"sourceId" binding:"required"`
	URL      string                   `json:"url" binding:"required"`
	Title    string                   `json:"title"`
	Chapters []RegisterChapterRequest `json:"chapters" binding:"dive"`
}

// AddManga handles POST /api/v1/library/manga
func (h *LibraryHandler) AddManga(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	manga := &domain.Manga{SourceID: req.SourceID, URL: req.URL, Title: req.Title}
	for _, ch := range req.Chapters {
		manga.Chapters = append(manga.Chapters, domain.Chapter{SourceOrder: ch.Index, URL: ch.URL, Name: ch.Name})
	}

	if err := h.library.SaveManga(manga); err != nil {
		h.logger.Error("Failed to save manga", zap.String("url", req.URL), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, manga)
}

// ListMangas handles GET /api/v1/library/manga
func (h *LibraryHandler) ListMangas(c *gin.Context) {
	mangas, err := h.library.ListMangas()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, mangas)
}

// GetManga handles GET /api/v1/library/manga/:mangaId
func (h *LibraryHandler) GetManga(c *gin.Context) {
	id, ok := uintParam(c, "mangaId")
	if !ok {
		return
	}

	manga, err := h.library.FindManga(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, manga)
}

// AddNovel handles POST /api/v1/library/novels
func (h *LibraryHandler) AddNovel(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	novel := &domain.Novel{SourceID: req.SourceID, URL: req.URL, Title: req.Title}
	for _, ch := range req.Chapters {
		novel.Chapters = append(novel.Chapters, domain.NovelChapter{URL: ch.URL, Name: ch.Name})
	}

	if err := h.library.SaveNovel(novel); err != nil {
		h.logger.Error("Failed to save novel", zap.String("url", req.URL), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, novel)
}

// ListNovels handles GET /api/v1/library/novels
func (h *LibraryHandler) ListNovels(c *gin.Context) {
	novels, err := h.library.ListNovels()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, novels)
}

// GetNovel handles GET /api/v1/library/novels/:novelId
func (h *LibraryHandler) GetNovel(c *gin.Context) {
	id, ok := uintParam(c, "novelId")
	if !ok {
		return
	}

	novel, err := h.library.FindNovel(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, novel)
}

// Page handles GET /api/v1/manga/:mangaId/chapter/:chapterIndex/page/:index
func (h *LibraryHandler) Page(c *gin.Context) {
	key, ok := chapterKey(c)
	if !ok {
		return
	}
	index, ok := intParam(c, "index")
	if !ok {
		return
	}

	rc, mimeType, err := h.downloadMgr.Page(key, index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "max-age=86400")
	c.DataFromReader(http.StatusOK, -1, mimeType, rc, nil)
}

// UpdateProgressRequest stores the reading position of a chapter
type UpdateProgressRequest struct {
	LastPageRead *int `json:"lastPageRead" binding:"required,min=0"`
}

// UpdateChapter handles PATCH /api/v1/manga/:mangaId/chapter/:chapterIndex
func (h *LibraryHandler) UpdateChapter(c *gin.Context) {
	key, ok := chapterKey(c)
	if !ok {
		return
	}

	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chapter, err := h.library.FindChapterByIndex(key.MangaID, key.ChapterIndex)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.library.UpdateLastPageRead(chapter.ID, *req.LastPageRead); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteDownload handles DELETE /api/v1/manga/:mangaId/chapter/:chapterIndex/download
func (h *LibraryHandler) DeleteDownload(c *gin.Context) {
	key, ok := chapterKey(c)
	if !ok {
		return
	}

	if err := h.downloadMgr.DeleteDownload(key); err != nil {
		h.logger.Warn("Failed to delete chapter download", zap.String("chapter", key.String()), zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
