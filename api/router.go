package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/chapterd/api/handlers"
	"github.com/yourusername/chapterd/api/middleware"
	"github.com/yourusername/chapterd/internal/app"
	"github.com/yourusername/chapterd/pkg/logger"
)

// Dependencies are the services the HTTP layer is built on
type Dependencies struct {
	Downloads *app.DownloadManager
	Novels    *app.NovelDownloadManager
	Library   handlers.Library
	Exporter  handlers.NovelExporter
	Ping      func() error
	Logs      *logger.LoggerAdapter
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(deps.Logs))
	router.Use(middleware.Recovery(deps.Logs))
	router.Use(middleware.CORS())

	log := deps.Logs.General()

	healthHandler := handlers.NewHealthHandler(deps.Downloads, deps.Novels, deps.Ping)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(deps.Downloads, log)
		downloadFeed := handlers.NewFeedHandler(deps.Downloads.Dispatcher(), log)
		downloads := v1.Group("/downloads")
		{
			downloads.GET("", downloadFeed.Serve)
			downloads.GET("/status", downloadHandler.Status)
			downloads.GET("/start", downloadHandler.Start)
			downloads.GET("/stop", downloadHandler.Stop)
			downloads.GET("/clear", downloadHandler.Clear)
		}

		download := v1.Group("/download")
		{
			download.POST("/batch", downloadHandler.QueueBatch)
			download.DELETE("/batch", downloadHandler.UnqueueBatch)
			download.GET("/:mangaId/chapter/:chapterIndex", downloadHandler.QueueChapter)
			download.DELETE("/:mangaId/chapter/:chapterIndex", downloadHandler.UnqueueChapter)
			download.PATCH("/:mangaId/chapter/:chapterIndex/reorder/:to", downloadHandler.Reorder)
		}

		libraryHandler := handlers.NewLibraryHandler(deps.Library, deps.Downloads, log)
		library := v1.Group("/library")
		{
			library.POST("/manga", libraryHandler.AddManga)
			library.GET("/manga", libraryHandler.ListMangas)
			library.GET("/manga/:mangaId", libraryHandler.GetManga)
			library.POST("/novels", libraryHandler.AddNovel)
			library.GET("/novels", libraryHandler.ListNovels)
			library.GET("/novels/:novelId", libraryHandler.GetNovel)
		}

		manga := v1.Group("/manga/:mangaId/chapter/:chapterIndex")
		{
			manga.PATCH("", libraryHandler.UpdateChapter)
			manga.GET("/page/:index", libraryHandler.Page)
			manga.DELETE("/download", libraryHandler.DeleteDownload)
		}

		novelHandler := handlers.NewNovelHandler(deps.Novels, log)
		novelFeed := handlers.NewFeedHandler(deps.Novels.Dispatcher(), log)
		novelDownloads := v1.Group("/novel-downloads")
		{
			novelDownloads.GET("", novelFeed.Serve)
			novelDownloads.GET("/status", novelHandler.Status)
			novelDownloads.GET("/start", novelHandler.Start)
			novelDownloads.GET("/stop", novelHandler.Stop)
			novelDownloads.GET("/clear", novelHandler.Clear)
			novelDownloads.POST("/batch", novelHandler.QueueBatch)
			novelDownloads.DELETE("/batch", novelHandler.UnqueueBatch)
		}

		novel := v1.Group("/novel/:novelId")
		{
			novel.DELETE("/content", novelHandler.DeleteNovel)
			novel.GET("/chapter/:chapterId/content", novelHandler.Content)
			novel.DELETE("/chapter/:chapterId/content", novelHandler.DeleteContent)
			if deps.Exporter != nil {
				novel.GET("/epub", handlers.NewExportHandler(deps.Library, deps.Exporter, log).NovelEPub)
			}
		}

		if logsDir := deps.Logs.LogsDir(); logsDir != "" {
			logHandler := handlers.NewLogHandler(logsDir)
			logStream := handlers.NewLogWebSocketHandler(logsDir, log)
			logs := v1.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/stream", logStream.HandleWebSocket)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
