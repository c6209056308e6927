package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/chapterd/internal/domain"
)

// ChapterBatchRequest carries chapter ids for the batch endpoints
type ChapterBatchRequest struct {
	ChapterIDs []uint `json:"chapterIds" binding:"required"`
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// chapterKey reads the :mangaId and :chapterIndex path parameters
func chapterKey(c *gin.Context) (domain.ChapterKey, bool) {
	mangaID, ok := uintParam(c, "mangaId")
	if !ok {
		return domain.ChapterKey{}, false
	}
	index, ok := intParam(c, "chapterIndex")
	if !ok {
		return domain.ChapterKey{}, false
	}
	return domain.ChapterKey{MangaID: mangaID, ChapterIndex: index}, true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), gin.H{"error": err.Error()})
}
