package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourusername/chapterd/internal/domain"
	"github.com/yourusername/chapterd/pkg/dispatch"
)

// Notifier tells the user about finished and failed downloads
type Notifier interface {
	NotifyChapterDownloaded(title, chapter string)
	NotifyChapterFailed(title, chapter string, err error)
	NotifyQueueEmpty()
}

// DownloadManager owns the manga download queue and its single worker
type DownloadManager struct {
	queue      *Queue[domain.ChapterKey, domain.DownloadChapter]
	repo       domain.LibraryRepository
	sources    domain.SourceResolver
	storage    domain.StorageFactory
	notifier   Notifier
	config     domain.DownloadConfig
	logger     *zap.Logger
	dispatcher *dispatch.Dispatcher[domain.DownloadStatus]
	progress   *rate.Sometimes
	worker     *workerSlot
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	repo domain.LibraryRepository,
	sources domain.SourceResolver,
	storage domain.StorageFactory,
	notifier Notifier,
	config domain.DownloadConfig,
	logger *zap.Logger,
) *DownloadManager {
	if config.MaxTries <= 0 {
		config.MaxTries = domain.MaxTries
	}
	if config.DequeuePolicy == "" {
		config.DequeuePolicy = domain.DequeueIgnore
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &DownloadManager{
		queue:    NewQueue(func(d *domain.DownloadChapter) domain.ChapterKey { return d.Key() }),
		repo:     repo,
		sources:  sources,
		storage:  storage,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
	if config.ProgressInterval > 0 {
		m.progress = &rate.Sometimes{First: 1, Interval: config.ProgressInterval}
	}
	m.dispatcher = dispatch.New("downloads", m.Status, logger)

	worker := &Downloader{mgr: m}
	m.worker = newWorkerSlot(worker.step, worker.hasWork, m.onWorkerExit)
	return m
}

// Dispatcher returns the status feed of the manager
func (m *DownloadManager) Dispatcher() *dispatch.Dispatcher[domain.DownloadStatus] {
	return m.dispatcher
}

// Enqueue resolves and queues chapters. Specs that cannot be resolved are
// reported in the returned error while the rest are still queued. A chapter
// already in the queue is left alone unless it failed, in which case it gets
// a fresh retry budget.
func (m *DownloadManager) Enqueue(ctx context.Context, specs []domain.JobSpec) ([]domain.DownloadChapter, error) {
	added, errs := m.enqueue(ctx, specs)
	if len(added) > 0 {
		m.Start()
	}
	return added, errs
}

func (m *DownloadManager) enqueue(ctx context.Context, specs []domain.JobSpec) ([]domain.DownloadChapter, error) {
	var errs error
	added := []domain.DownloadChapter{}

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return added, multierr.Append(errs, err)
		}

		manga, chapter, err := m.resolve(spec)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", spec, err))
			continue
		}

		job := domain.NewDownloadChapter(manga, chapter)
		if m.queue.Enqueue(job) {
			added = append(added, *job)
			m.logger.Info("download_added", zap.String("chapter", job.Key().String()), zap.Uint("chapter_id", job.ChapterID))
			continue
		}

		m.queue.Mutate(job.Key(), func(existing *domain.DownloadChapter) {
			if existing.State == domain.StateError {
				existing.Retry()
				added = append(added, *existing)
				m.logger.Info("download_retried", zap.String("chapter", existing.Key().String()))
			}
		})
	}

	if len(added) > 0 {
		m.persistQueue()
		m.notify(true)
	}
	return added, errs
}

func (m *DownloadManager) resolve(spec domain.JobSpec) (*domain.Manga, *domain.Chapter, error) {
	var (
		chapter *domain.Chapter
		err     error
	)
	if spec.ChapterID != 0 {
		chapter, err = m.repo.FindChapter(spec.ChapterID)
	} else {
		chapter, err = m.repo.FindChapterByIndex(spec.MangaID, spec.ChapterIndex)
	}
	if err != nil {
		return nil, nil, err
	}

	manga, err := m.repo.FindManga(chapter.MangaID)
	if err != nil {
		return nil, nil, err
	}
	return manga, chapter, nil
}

// Restore re-queues the order persisted by a previous run
func (m *DownloadManager) Restore(ctx context.Context, start bool) error {
	keys, err := m.repo.LoadQueue()
	if err != nil {
		return fmt.Errorf("failed to load download queue: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	specs := make([]domain.JobSpec, len(keys))
	for i, k := range keys {
		specs[i] = domain.JobSpec{MangaID: k.MangaID, ChapterIndex: k.ChapterIndex}
	}

	added, errs := m.enqueue(ctx, specs)
	m.logger.Info("queue_restored", zap.Int("restored", len(added)), zap.Int("persisted", len(keys)))
	if errs != nil {
		m.logger.Warn("Some queued chapters could not be restored", zap.Error(errs))
	}
	m.persistQueue()

	if start && len(added) > 0 {
		m.Start()
	}
	return nil
}

// Dequeue removes chapters from the queue. What happens to a chapter that is
// being downloaded depends on the dequeue policy.
func (m *DownloadManager) Dequeue(keys ...domain.ChapterKey) []domain.DownloadChapter {
	if m.config.DequeuePolicy == domain.DequeueIgnore {
		filtered := keys[:0:0]
		for _, k := range keys {
			if job, ok := m.queue.Get(k); ok && job.IsDownloading() {
				m.logger.Debug("Ignoring dequeue of running download", zap.String("chapter", k.String()))
				continue
			}
			filtered = append(filtered, k)
		}
		keys = filtered
	}

	removed := m.queue.Dequeue(keys...)
	if len(removed) > 0 {
		m.logger.Info("download_removed", zap.Int("count", len(removed)))
		m.persistQueue()
		m.notify(true)
	}
	return removed
}

// DequeueChapters removes chapters by chapter id
func (m *DownloadManager) DequeueChapters(chapterIDs ...uint) []domain.DownloadChapter {
	ids := make(map[uint]struct{}, len(chapterIDs))
	for _, id := range chapterIDs {
		ids[id] = struct{}{}
	}

	var keys []domain.ChapterKey
	for _, job := range m.queue.Snapshot() {
		if _, ok := ids[job.ChapterID]; ok {
			keys = append(keys, job.Key())
		}
	}
	return m.Dequeue(keys...)
}

// Reorder moves a queued chapter to a new position
func (m *DownloadManager) Reorder(key domain.ChapterKey, to int) error {
	if err := m.queue.Reorder(key, to); err != nil {
		return err
	}
	m.persistQueue()
	m.notify(true)
	return nil
}

// Get returns the queued download of a chapter
func (m *DownloadManager) Get(key domain.ChapterKey) (domain.DownloadChapter, bool) {
	return m.queue.Get(key)
}

// Start launches the worker when it is not running
func (m *DownloadManager) Start() {
	if m.worker.Start() {
		m.logger.Info("downloader_started", zap.Int("queued", m.queue.Len()))
	}
	m.notify(true)
}

// Stop asks the worker to stop at its next checkpoint and returns
// immediately. Running downloads go back to queued without losing a try.
func (m *DownloadManager) Stop() {
	m.worker.Stop()
	if n := m.queue.MutateWhere(isDownloading, func(j *domain.DownloadChapter) { j.ResetQueued() }); n > 0 {
		m.logger.Info("downloader_stopped", zap.Int("interrupted", n))
	}
	m.notify(true)
}

// Clear stops the worker and empties the queue
func (m *DownloadManager) Clear() {
	m.Stop()
	m.queue.Clear()
	m.persistQueue()
	m.logger.Info("queue_cleared")
	m.notify(true)
}

// Page opens a stored page of a chapter
func (m *DownloadManager) Page(key domain.ChapterKey, index int) (io.ReadCloser, string, error) {
	chapter, err := m.repo.FindChapterByIndex(key.MangaID, key.ChapterIndex)
	if err != nil {
		return nil, "", err
	}
	return m.storage.Provider(key.MangaID, chapter.ID).GetImage(index)
}

// DeleteDownload dequeues a chapter and removes its stored pages. A chapter
// the worker is still downloading under the ignore policy is left alone.
func (m *DownloadManager) DeleteDownload(key domain.ChapterKey) error {
	chapter, err := m.repo.FindChapterByIndex(key.MangaID, key.ChapterIndex)
	if err != nil {
		return err
	}

	m.Dequeue(key)
	if job, ok := m.queue.Get(key); ok && job.IsDownloading() {
		return fmt.Errorf("chapter %s: %w", key, domain.ErrBusy)
	}

	if err := m.storage.Provider(key.MangaID, chapter.ID).Delete(); err != nil {
		return fmt.Errorf("failed to delete chapter %s: %w", key, err)
	}
	if err := m.repo.MarkChapterDownloaded(chapter.ID, false); err != nil {
		return err
	}
	m.logger.Info("download_deleted", zap.String("chapter", key.String()))
	return nil
}

// IsRunning reports whether the worker is running
func (m *DownloadManager) IsRunning() bool {
	return m.worker.Running()
}

// Status returns a snapshot of the queue
func (m *DownloadManager) Status() domain.DownloadStatus {
	return domain.NewDownloadStatus(m.worker.Running(), m.queue.Snapshot())
}

func (m *DownloadManager) onWorkerExit(stopped bool) {
	if !stopped {
		m.logger.Info("downloader_idle", zap.Int("queued", m.queue.Len()))
		if m.notifier != nil && m.queue.Len() == 0 {
			m.notifier.NotifyQueueEmpty()
		}
	}
	m.notify(true)
}

// notify broadcasts the current status. Progress updates are coalesced; state
// changes always go out.
func (m *DownloadManager) notify(immediate bool) {
	if immediate || m.progress == nil {
		m.dispatcher.Broadcast()
		return
	}
	m.progress.Do(m.dispatcher.Broadcast)
}

func (m *DownloadManager) persistQueue() {
	if err := m.repo.SaveQueue(m.queue.Keys()); err != nil {
		m.logger.Error("Failed to persist download queue", zap.Error(err))
	}
}
