package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/domain"
	"github.com/yourusername/chapterd/pkg/dispatch"
)

// NovelDownloadManager downloads novel chapters as text files with a single
// worker
type NovelDownloadManager struct {
	queue      *Queue[uint, domain.NovelDownloadItem]
	repo       domain.NovelRepository
	sources    domain.SourceResolver
	store      domain.TextStore
	notifier   Notifier
	config     domain.DownloadConfig
	logger     *zap.Logger
	dispatcher *dispatch.Dispatcher[domain.NovelDownloadStatus]
	worker     *workerSlot
}

// NewNovelDownloadManager creates a new novel download manager
func NewNovelDownloadManager(
	repo domain.NovelRepository,
	sources domain.SourceResolver,
	store domain.TextStore,
	notifier Notifier,
	config domain.DownloadConfig,
	logger *zap.Logger,
) *NovelDownloadManager {
	if config.MaxTries <= 0 {
		config.MaxTries = domain.MaxTries
	}
	if config.DequeuePolicy == "" {
		config.DequeuePolicy = domain.DequeueIgnore
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &NovelDownloadManager{
		queue:    NewQueue(func(n *domain.NovelDownloadItem) uint { return n.Key() }),
		repo:     repo,
		sources:  sources,
		store:    store,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
	m.dispatcher = dispatch.New("novel-downloads", m.Status, logger)
	m.worker = newWorkerSlot(m.step, m.hasWork, func(bool) { m.dispatcher.Broadcast() })
	return m
}

// Dispatcher returns the status feed of the manager
func (m *NovelDownloadManager) Dispatcher() *dispatch.Dispatcher[domain.NovelDownloadStatus] {
	return m.dispatcher
}

// Enqueue queues novel chapters. Chapters already stored or already queued
// are skipped, except failed ones which get a fresh retry budget.
func (m *NovelDownloadManager) Enqueue(ctx context.Context, chapterIDs []uint) ([]domain.NovelDownloadItem, error) {
	var errs error
	added := []domain.NovelDownloadItem{}

	for _, id := range chapterIDs {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		chapter, err := m.repo.FindNovelChapter(id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("novel chapter %d: %w", id, err))
			continue
		}
		novel, err := m.repo.FindNovel(chapter.NovelID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("novel %d: %w", chapter.NovelID, err))
			continue
		}

		if m.store.Exists(novel.ID, chapter.ID) {
			continue
		}

		item := domain.NewNovelDownloadItem(novel, chapter)
		if m.queue.Enqueue(item) {
			added = append(added, *item)
			continue
		}
		m.queue.Mutate(id, func(existing *domain.NovelDownloadItem) {
			if existing.State == domain.StateError {
				existing.Tries = 0
				existing.ResetQueued()
				added = append(added, *existing)
			}
		})
	}

	if len(added) > 0 {
		m.logger.Info("novel_download_added", zap.Int("count", len(added)))
		m.worker.Start()
		m.dispatcher.Broadcast()
	}
	return added, errs
}

// Dequeue removes chapters from the queue. A running chapter is left alone
// under the ignore policy and abandoned at its next checkpoint under cancel.
func (m *NovelDownloadManager) Dequeue(chapterIDs ...uint) []domain.NovelDownloadItem {
	if m.config.DequeuePolicy == domain.DequeueIgnore {
		filtered := chapterIDs[:0:0]
		for _, id := range chapterIDs {
			if item, ok := m.queue.Get(id); ok && isNovelDownloading(&item) {
				m.logger.Debug("Ignoring dequeue of running novel download", zap.Uint("novel_chapter_id", id))
				continue
			}
			filtered = append(filtered, id)
		}
		chapterIDs = filtered
	}

	removed := m.queue.Dequeue(chapterIDs...)
	if len(removed) > 0 {
		m.dispatcher.Broadcast()
	}
	return removed
}

// Start launches the worker when it is not running
func (m *NovelDownloadManager) Start() {
	m.worker.Start()
	m.dispatcher.Broadcast()
}

// Stop asks the worker to stop and returns immediately
func (m *NovelDownloadManager) Stop() {
	m.worker.Stop()
	m.queue.MutateWhere(isNovelDownloading, func(n *domain.NovelDownloadItem) { n.ResetQueued() })
	m.dispatcher.Broadcast()
}

// Clear stops the worker and empties the queue
func (m *NovelDownloadManager) Clear() {
	m.worker.Stop()
	m.queue.Clear()
	m.dispatcher.Broadcast()
}

// Status returns a snapshot of the queue
func (m *NovelDownloadManager) Status() domain.NovelDownloadStatus {
	queue := m.queue.Snapshot()
	status := domain.NovelDownloadStatus{Running: m.worker.Running(), Queue: queue}
	for i := range queue {
		if queue[i].State == domain.StateDownloading {
			current := queue[i]
			status.Current = &current
			break
		}
	}
	return status
}

// Content returns the stored text of a chapter
func (m *NovelDownloadManager) Content(novelID, chapterID uint) (string, error) {
	return m.store.Read(novelID, chapterID)
}

// DeleteDownload dequeues a chapter and removes its stored text. A chapter
// the worker is still downloading is left alone.
func (m *NovelDownloadManager) DeleteDownload(novelID, chapterID uint) error {
	busy := fmt.Errorf("novel chapter %d: %w", chapterID, domain.ErrBusy)
	for _, item := range m.Dequeue(chapterID) {
		if isNovelDownloading(&item) {
			return busy
		}
	}
	if item, ok := m.queue.Get(chapterID); ok && isNovelDownloading(&item) {
		return busy
	}

	if err := m.store.Delete(novelID, chapterID); err != nil {
		return err
	}
	return m.repo.MarkNovelChapterDownloaded(chapterID, false)
}

// DeleteNovelDownloads removes every stored chapter of a novel
func (m *NovelDownloadManager) DeleteNovelDownloads(novelID uint) error {
	if err := m.store.DeleteNovel(novelID); err != nil {
		return err
	}
	return m.repo.MarkNovelDownloaded(novelID, false)
}

func (m *NovelDownloadManager) next() (domain.NovelDownloadItem, bool) {
	maxTries := m.config.MaxTries
	return m.queue.First(func(n *domain.NovelDownloadItem) bool { return n.CanAttempt(maxTries) })
}

func (m *NovelDownloadManager) hasWork() bool {
	_, ok := m.next()
	return ok
}

func (m *NovelDownloadManager) step(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	item, ok := m.next()
	if !ok {
		return false
	}

	logger := m.logger.With(zap.Uint("novel_chapter_id", item.ChapterID))
	err := m.safeDownload(ctx, item)

	switch {
	case err == nil:
		logger.Info("novel_download_finished")
		if m.notifier != nil {
			m.notifier.NotifyChapterDownloaded(item.NovelTitle, item.ChapterName)
		}
	case errors.Is(err, domain.ErrStopped) || ctx.Err() != nil:
		m.queue.MutateWhere(isNovelDownloading, func(n *domain.NovelDownloadItem) { n.ResetQueued() })
		m.dispatcher.Broadcast()
		return false
	case errors.Is(err, errJobDequeued), errors.Is(err, errJobGone):
		logger.Info("novel_download_dequeued")
	default:
		exhausted := false
		m.queue.Mutate(item.ChapterID, func(n *domain.NovelDownloadItem) {
			n.MarkError(err)
			exhausted = n.Tries >= m.config.MaxTries
		})
		logger.Error("novel_download_failed", zap.Error(err))
		if exhausted && m.notifier != nil {
			m.notifier.NotifyChapterFailed(item.NovelTitle, item.ChapterName, err)
		}
	}
	m.dispatcher.Broadcast()
	return true
}

func (m *NovelDownloadManager) safeDownload(ctx context.Context, item domain.NovelDownloadItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while downloading novel chapter %d: %v", item.ChapterID, r)
		}
	}()
	return m.download(ctx, item)
}

func (m *NovelDownloadManager) download(ctx context.Context, item domain.NovelDownloadItem) error {
	key := item.ChapterID

	if item.Tries > 0 && m.config.RetryDelay > 0 {
		timer := time.NewTimer(m.config.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.ErrStopped
		case <-timer.C:
		}
	}

	if !m.queue.Mutate(key, func(n *domain.NovelDownloadItem) { n.MarkDownloading() }) {
		return errJobGone
	}
	if err := m.checkpoint(ctx, key); err != nil {
		return err
	}

	novel, err := m.repo.FindNovel(item.NovelID)
	if err != nil {
		return fmt.Errorf("failed to load novel %d: %w", item.NovelID, err)
	}
	chapter, err := m.repo.FindNovelChapter(item.ChapterID)
	if err != nil {
		return fmt.Errorf("failed to load novel chapter %d: %w", item.ChapterID, err)
	}
	source, err := m.sources.NovelSource(novel.SourceID)
	if err != nil {
		return err
	}

	paragraphs, err := source.FetchChapterText(ctx, novel, chapter)
	if err != nil {
		return fmt.Errorf("failed to fetch chapter text: %w", err)
	}
	m.queue.Mutate(key, func(n *domain.NovelDownloadItem) { n.Progress = 0.5 })
	if err := m.checkpoint(ctx, key); err != nil {
		return err
	}

	content := strings.Join(paragraphs, "\n\n")
	if strings.TrimSpace(content) == "" {
		return domain.ErrEmptyContent
	}
	if err := m.store.Write(novel.ID, chapter.ID, content); err != nil {
		return fmt.Errorf("failed to store chapter text: %w", err)
	}

	m.queue.Mutate(key, func(n *domain.NovelDownloadItem) { n.MarkFinished() })
	m.dispatcher.Broadcast()

	if err := m.repo.MarkNovelChapterDownloaded(chapter.ID, true); err != nil {
		m.logger.Error("Failed to mark novel chapter downloaded", zap.Uint("novel_chapter_id", chapter.ID), zap.Error(err))
	}
	m.queue.Dequeue(key)
	return nil
}

func (m *NovelDownloadManager) checkpoint(ctx context.Context, key uint) error {
	m.dispatcher.Broadcast()
	if ctx.Err() != nil {
		return domain.ErrStopped
	}
	if item, ok := m.queue.Get(key); !ok || item.State != domain.StateDownloading {
		return errJobDequeued
	}
	return nil
}

func isNovelDownloading(n *domain.NovelDownloadItem) bool {
	return n.State == domain.StateDownloading
}
