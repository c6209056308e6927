//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/app"
	"github.com/yourusername/chapterd/internal/domain"
	"github.com/yourusername/chapterd/internal/infrastructure"
)

var pngPage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// gateway is a content source whose image handler can be held or made to
// fail
type gateway struct {
	*httptest.Server
	imageHits atomic.Int32
	failFirst atomic.Int32
	hold      chan struct{}
}

func newGateway(t *testing.T, pages int) *gateway {
	t.Helper()
	g := &gateway{}

	mux := http.NewServeMux()
	mux.HandleFunc("/pages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[")
		for i := 0; i < pages; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, "%q", fmt.Sprintf("/img/%s/%d.png", r.URL.Query().Get("chapter"), i))
		}
		fmt.Fprint(w, "]")
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		g.imageHits.Add(1)
		if hold := g.hold; hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if g.failFirst.Add(-1) >= 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngPage)
	})

	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Close)
	return g
}

type stack struct {
	repo      *infrastructure.SQLiteLibraryRepository
	downloads *app.DownloadManager
	dir       string
}

func newStack(t *testing.T, dir string, gw *gateway, config domain.DownloadConfig) *stack {
	t.Helper()

	repo, err := infrastructure.NewSQLiteLibraryRepository(filepath.Join(dir, "library.db"))
	require.NoError(t, err)

	sources, err := infrastructure.NewSourceRegistry(map[string]domain.SourceConfig{
		"gw": {BaseURL: gw.URL},
	}, zap.NewNop())
	require.NoError(t, err)

	notifier := infrastructure.NewNotificationService(&domain.NotificationConfig{}, zap.NewNop())
	storage := infrastructure.NewChapterStorage(dir, config.AsArchive)
	downloads := app.NewDownloadManager(repo, sources, storage, notifier, config, zap.NewNop())

	s := &stack{repo: repo, downloads: downloads, dir: dir}
	t.Cleanup(s.close)
	return s
}

func (s *stack) close() {
	s.downloads.Stop()
	s.repo.Close()
}

func (s *stack) addManga(t *testing.T, chapters int) *domain.Manga {
	t.Helper()
	manga := &domain.Manga{SourceID: "gw", URL: "/manga", Title: "Integration"}
	for i := 0; i < chapters; i++ {
		manga.Chapters = append(manga.Chapters, domain.Chapter{
			SourceOrder: i,
			URL:         fmt.Sprintf("/manga/%d", i),
			Name:        fmt.Sprintf("Chapter %d", i+1),
		})
	}
	require.NoError(t, s.repo.SaveManga(manga))
	return manga
}

func specs(mangaID uint, indexes ...int) []domain.JobSpec {
	out := make([]domain.JobSpec, len(indexes))
	for i, idx := range indexes {
		out[i] = domain.JobSpec{MangaID: mangaID, ChapterIndex: idx}
	}
	return out
}
