package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/chapterd/internal/domain"
)

var (
	// errJobDequeued aborts a job that was removed from the queue while running
	errJobDequeued = errors.New("download removed from queue")
	// errJobGone skips a job removed after it was picked but before it started
	errJobGone = errors.New("download removed before start")
)

// Downloader is the worker of a DownloadManager. It takes the first eligible
// job, downloads it through the storage provider and repeats until the queue
// has nothing left to attempt.
type Downloader struct {
	mgr *DownloadManager
}

func (d *Downloader) next() (domain.DownloadChapter, bool) {
	maxTries := d.mgr.config.MaxTries
	return d.mgr.queue.First(func(j *domain.DownloadChapter) bool { return j.CanAttempt(maxTries) })
}

func (d *Downloader) hasWork() bool {
	_, ok := d.next()
	return ok
}

// step runs one job. It returns false when the queue is drained or the
// worker was stopped.
func (d *Downloader) step(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	job, ok := d.next()
	if !ok {
		return false
	}

	logger := d.mgr.logger.With(zap.String("chapter", job.Key().String()), zap.Uint("chapter_id", job.ChapterID))
	err := d.safeDownload(ctx, job)

	switch {
	case err == nil:
		return true

	case errors.Is(err, domain.ErrStopped) || ctx.Err() != nil:
		d.mgr.queue.MutateWhere(isDownloading, func(j *domain.DownloadChapter) { j.ResetQueued() })
		logger.Info("download_stopped")
		d.mgr.notify(true)
		return false

	case errors.Is(err, errJobGone):
		logger.Info("download_skipped")
		d.mgr.notify(true)
		return true

	case errors.Is(err, errJobDequeued):
		logger.Info("download_dequeued")
		if delErr := d.mgr.storage.Provider(job.MangaID, job.ChapterID).Delete(); delErr != nil {
			logger.Warn("Failed to delete partial download", zap.Error(delErr))
		}
		d.mgr.notify(true)
		return true

	default:
		var failed []domain.DownloadChapter
		d.mgr.queue.MutateWhere(isDownloading, func(j *domain.DownloadChapter) {
			j.MarkError()
			failed = append(failed, *j)
		})
		logger.Error("download_failed", zap.Int("tries", job.Tries+1), zap.Error(err))
		d.mgr.notify(true)

		for _, f := range failed {
			if f.IsExhausted(d.mgr.config.MaxTries) && d.mgr.notifier != nil {
				d.mgr.notifier.NotifyChapterFailed(f.MangaTitle, f.ChapterName, err)
			}
		}
		return true
	}
}

func (d *Downloader) safeDownload(ctx context.Context, job domain.DownloadChapter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while downloading chapter %s: %v", job.Key(), r)
		}
	}()
	return d.download(ctx, job)
}

func (d *Downloader) download(ctx context.Context, job domain.DownloadChapter) error {
	mgr := d.mgr
	key := job.Key()

	if job.Tries > 0 && mgr.config.RetryDelay > 0 {
		timer := time.NewTimer(mgr.config.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.ErrStopped
		case <-timer.C:
		}
	}

	if !mgr.queue.Mutate(key, func(j *domain.DownloadChapter) { j.MarkDownloading() }) {
		return errJobGone
	}
	mgr.logger.Info("download_started", zap.String("chapter", key.String()), zap.Int("tries", job.Tries))
	if err := d.checkpoint(ctx, key, true); err != nil {
		return err
	}

	manga, err := mgr.repo.FindManga(job.MangaID)
	if err != nil {
		return fmt.Errorf("failed to load manga %d: %w", job.MangaID, err)
	}
	chapter, err := mgr.repo.FindChapterByIndex(job.MangaID, job.ChapterIndex)
	if err != nil {
		return fmt.Errorf("failed to load chapter %s: %w", key, err)
	}
	source, err := mgr.sources.Source(manga.SourceID)
	if err != nil {
		return err
	}

	pages, err := source.FetchPageList(ctx, manga, chapter)
	if err != nil {
		return fmt.Errorf("failed to fetch page list: %w", err)
	}
	if len(pages) == 0 {
		return domain.ErrNoPages
	}
	if chapter.PageCount != len(pages) {
		if err := mgr.repo.UpdateChapterPageCount(chapter.ID, len(pages)); err != nil {
			return fmt.Errorf("failed to update page count: %w", err)
		}
	}
	mgr.queue.Mutate(key, func(j *domain.DownloadChapter) { j.PageCount = len(pages) })
	if err := d.checkpoint(ctx, key, false); err != nil {
		return err
	}

	provider := mgr.storage.Provider(manga.ID, chapter.ID)
	err = provider.Download(ctx, pages, source.FetchPage, func(stored, total int) error {
		mgr.queue.Mutate(key, func(j *domain.DownloadChapter) { j.SetProgress(float64(stored) / float64(total)) })
		return d.checkpoint(ctx, key, false)
	})
	if err != nil {
		return err
	}

	mgr.queue.Mutate(key, func(j *domain.DownloadChapter) { j.MarkFinished() })
	mgr.notify(true)

	if count, err := provider.ImageCount(); err == nil && count > 0 && count != len(pages) {
		if err := mgr.repo.UpdateChapterPageCount(chapter.ID, count); err != nil {
			mgr.logger.Warn("Failed to update page count", zap.Error(err))
		}
	}
	if err := mgr.repo.MarkChapterDownloaded(chapter.ID, true); err != nil {
		mgr.logger.Error("Failed to mark chapter downloaded", zap.Uint("chapter_id", chapter.ID), zap.Error(err))
	}

	mgr.queue.Dequeue(key)
	mgr.persistQueue()
	mgr.logger.Info("download_finished", zap.String("chapter", key.String()), zap.Int("pages", len(pages)))
	if mgr.notifier != nil {
		mgr.notifier.NotifyChapterDownloaded(manga.Title, chapter.Name)
	}
	mgr.notify(true)
	return nil
}

// checkpoint publishes progress and reports whether the job must stop
func (d *Downloader) checkpoint(ctx context.Context, key domain.ChapterKey, immediate bool) error {
	d.mgr.notify(immediate)

	if ctx.Err() != nil {
		return domain.ErrStopped
	}
	if d.mgr.config.DequeuePolicy == domain.DequeueCancel {
		job, ok := d.mgr.queue.Get(key)
		if !ok || !job.IsDownloading() {
			return errJobDequeued
		}
	}
	return nil
}

func isDownloading(j *domain.DownloadChapter) bool {
	return j.IsDownloading()
}
