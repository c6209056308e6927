package domain

import (
	"fmt"
	"time"
)

// DownloadState represents the current state of a queued chapter download
type DownloadState string

const (
	StateQueued      DownloadState = "queued"
	StateDownloading DownloadState = "downloading"
	StateFinished    DownloadState = "finished"
	StateError       DownloadState = "error"
)

// MaxTries is the default retry budget of a download
const MaxTries = 3

// ChapterKey identifies a chapter download inside the queue
type ChapterKey struct {
	MangaID      uint `json:"mangaId"`
	ChapterIndex int  `json:"chapterIndex"`
}

func (k ChapterKey) String() string {
	return fmt.Sprintf("%d/%d", k.MangaID, k.ChapterIndex)
}

// DownloadChapter represents one chapter queued for download
type DownloadChapter struct {
	MangaID      uint          `json:"mangaId"`
	ChapterIndex int           `json:"chapterIndex"`
	ChapterID    uint          `json:"chapterId"`
	SourceID     string        `json:"sourceId"`
	MangaTitle   string        `json:"mangaTitle"`
	ChapterName  string        `json:"chapterName"`
	State        DownloadState `json:"state"`
	Progress     float64       `json:"progress"`
	Tries        int           `json:"tries"`
	PageCount    int           `json:"pageCount"`
	EnqueuedAt   time.Time     `json:"enqueuedAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// NewDownloadChapter creates a queued download for a chapter of a manga
func NewDownloadChapter(manga *Manga, chapter *Chapter) *DownloadChapter {
	now := time.Now()
	return &DownloadChapter{
		MangaID:      manga.ID,
		ChapterIndex: chapter.SourceOrder,
		ChapterID:    chapter.ID,
		SourceID:     manga.SourceID,
		MangaTitle:   manga.Title,
		ChapterName:  chapter.Name,
		State:        StateQueued,
		PageCount:    chapter.PageCount,
		EnqueuedAt:   now,
		UpdatedAt:    now,
	}
}

// Key returns the queue key of the download
func (d *DownloadChapter) Key() ChapterKey {
	return ChapterKey{MangaID: d.MangaID, ChapterIndex: d.ChapterIndex}
}

// MarkDownloading starts a new attempt
func (d *DownloadChapter) MarkDownloading() {
	d.State = StateDownloading
	d.Progress = 0
	d.UpdatedAt = time.Now()
}

// SetProgress records progress of the running attempt. Progress never moves
// backwards within an attempt.
func (d *DownloadChapter) SetProgress(progress float64) {
	if progress > 1 {
		progress = 1
	}
	if progress < d.Progress {
		return
	}
	d.Progress = progress
	d.UpdatedAt = time.Now()
}

// MarkFinished marks the download as finished
func (d *DownloadChapter) MarkFinished() {
	d.State = StateFinished
	d.Progress = 1
	d.UpdatedAt = time.Now()
}

// MarkError marks the running attempt as failed and consumes one try
func (d *DownloadChapter) MarkError() {
	d.State = StateError
	d.Tries++
	d.UpdatedAt = time.Now()
}

// ResetQueued puts an interrupted download back into the queue without
// consuming a try
func (d *DownloadChapter) ResetQueued() {
	d.State = StateQueued
	d.UpdatedAt = time.Now()
}

// Retry resets a failed download so it gets a fresh retry budget
func (d *DownloadChapter) Retry() {
	d.State = StateQueued
	d.Progress = 0
	d.Tries = 0
	d.UpdatedAt = time.Now()
}

// CanAttempt reports whether the worker may pick the download
func (d *DownloadChapter) CanAttempt(maxTries int) bool {
	return d.State == StateQueued || (d.State == StateError && d.Tries < maxTries)
}

// IsDownloading checks if the download is currently running
func (d *DownloadChapter) IsDownloading() bool {
	return d.State == StateDownloading
}

// IsExhausted checks if the download failed and has no tries left
func (d *DownloadChapter) IsExhausted(maxTries int) bool {
	return d.State == StateError && d.Tries >= maxTries
}

// JobSpec names a chapter to enqueue, either by chapter id or by its
// (manga, index) pair
type JobSpec struct {
	ChapterID    uint `json:"chapterId,omitempty"`
	MangaID      uint `json:"mangaId,omitempty"`
	ChapterIndex int  `json:"chapterIndex,omitempty"`
}

func (s JobSpec) String() string {
	if s.ChapterID != 0 {
		return fmt.Sprintf("chapter %d", s.ChapterID)
	}
	return fmt.Sprintf("manga %d chapter index %d", s.MangaID, s.ChapterIndex)
}

// DownloaderStatus is the coarse state of a download worker
type DownloaderStatus string

const (
	DownloaderStarted DownloaderStatus = "Started"
	DownloaderStopped DownloaderStatus = "Stopped"
)

// DownloadStatus is a point-in-time snapshot of the manga download queue
type DownloadStatus struct {
	Status  DownloaderStatus  `json:"status"`
	Running bool              `json:"running"`
	Queue   []DownloadChapter `json:"queue"`
}

// NewDownloadStatus builds a snapshot from worker liveness and queue contents
func NewDownloadStatus(running bool, queue []DownloadChapter) DownloadStatus {
	status := DownloaderStopped
	if running {
		status = DownloaderStarted
	}
	if queue == nil {
		queue = []DownloadChapter{}
	}
	return DownloadStatus{Status: status, Running: running, Queue: queue}
}
