package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/chapterd/api"
	"github.com/yourusername/chapterd/api/handlers"
	"github.com/yourusername/chapterd/internal/app"
	"github.com/yourusername/chapterd/internal/infrastructure"
	"github.com/yourusername/chapterd/pkg/logger"
)

var (
	version    = "dev"
	configPath = flag.String("config", "", "Path to the config file")
	foreground = flag.Bool("foreground", false, "Run in the foreground instead of detaching")
)

func main() {
	flag.Parse()

	if !*foreground {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "chapterd-server: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	args := []string{"-foreground"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	if cwd, err := os.Getwd(); err == nil {
		cmd.Dir = cwd
	}
	cmd.Env = os.Environ()
	detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	processLog, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize file logs: %w", err)
	}
	defer multiLog.Close()

	logAdapter := logger.NewLoggerAdapter(multiLog, processLog)
	defer logAdapter.Sync()
	log := logAdapter.General()

	log.Info("Starting chapterd server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("base_dir", config.Download.BaseDir),
		zap.Bool("as_archive", config.Download.AsArchive),
		zap.String("dequeue_policy", string(config.Download.DequeuePolicy)))

	if err := os.MkdirAll(config.Download.BaseDir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	repo, err := infrastructure.NewSQLiteLibraryRepository(config.Queue.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	sources, err := infrastructure.NewSourceRegistry(config.Sources, log)
	if err != nil {
		return fmt.Errorf("failed to initialize sources: %w", err)
	}
	if len(sources.IDs()) == 0 {
		log.Warn("No sources configured, downloads will fail until one is added")
	}

	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	downloadMgr := app.NewDownloadManager(
		repo,
		sources,
		infrastructure.NewChapterStorage(config.Download.BaseDir, config.Download.AsArchive),
		notifier,
		config.Download,
		logAdapter.Queue(),
	)
	texts := infrastructure.NewTextFileStore(config.Download.BaseDir)
	novelMgr := app.NewNovelDownloadManager(
		repo,
		sources,
		texts,
		notifier,
		config.Download,
		logAdapter.Queue(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Queue.RestoreOnStart {
		if err := downloadMgr.Restore(ctx, config.Download.AutoStart); err != nil {
			logAdapter.LogError(logger.CategoryQueue, "Failed to restore download queue", zap.Error(err))
		}
	}

	handlers.Version = version
	router := api.SetupRouter(api.Dependencies{
		Downloads: downloadMgr,
		Novels:    novelMgr,
		Library:   repo,
		Exporter:  infrastructure.NewNovelEPubBuilder(texts),
		Ping:      repo.Ping,
		Logs:      logAdapter,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serveErr:
		logAdapter.LogError(logger.CategoryGeneral, "HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down server...")

	downloadMgr.Stop()
	novelMgr.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
