package handlers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/domain"
)

// NovelExporter writes a novel as an EPUB file
type NovelExporter interface {
	Write(novel *domain.Novel, path string) error
}

// ExportHandler serves EPUB exports of downloaded novels
type ExportHandler struct {
	library  Library
	exporter NovelExporter
	logger   *zap.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(library Library, exporter NovelExporter, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{library: library, exporter: exporter, logger: logger}
}

// NovelEPub handles GET /api/v1/novel/:novelId/epub
func (h *ExportHandler) NovelEPub(c *gin.Context) {
	novelID, ok := uintParam(c, "novelId")
	if !ok {
		return
	}

	novel, err := h.library.FindNovel(novelID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	tmpDir, err := os.MkdirTemp("", "chapterd-epub-*")
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "novel.epub")
	if err := h.exporter.Write(novel, path); err != nil {
		h.logger.Warn("Failed to export novel", zap.Uint("novel_id", novelID), zap.Error(err))
		abortWithError(c, err)
		return
	}

	c.FileAttachment(path, epubFilename(novel.Title))
}

func epubFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, title)
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		name = "novel"
	}
	return name + ".epub"
}
