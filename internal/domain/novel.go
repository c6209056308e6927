package domain

import "time"

// Novel is a serialized work whose chapters are text
type Novel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SourceID  string    `json:"sourceId" gorm:"not null;index"`
	URL       string    `json:"url" gorm:"not null"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	Chapters []NovelChapter `json:"chapters,omitempty" gorm:"foreignKey:NovelID;constraint:OnDelete:CASCADE"`
}

// NovelChapter is one chapter of a novel
type NovelChapter struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	NovelID      uint      `json:"novelId" gorm:"not null;index"`
	URL          string    `json:"url" gorm:"not null"`
	Name         string    `json:"name"`
	IsDownloaded bool      `json:"downloaded" gorm:"default:false"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// NovelDownloadItem represents one novel chapter queued for download
type NovelDownloadItem struct {
	ChapterID   uint          `json:"chapterId"`
	NovelID     uint          `json:"novelId"`
	SourceID    string        `json:"sourceId"`
	ChapterURL  string        `json:"chapterUrl"`
	ChapterName string        `json:"chapterName"`
	NovelTitle  string        `json:"novelTitle"`
	State       DownloadState `json:"state"`
	Progress    float64       `json:"progress"`
	Tries       int           `json:"tries"`
	Error       string        `json:"error,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// NewNovelDownloadItem creates a queued download for a novel chapter
func NewNovelDownloadItem(novel *Novel, chapter *NovelChapter) *NovelDownloadItem {
	return &NovelDownloadItem{
		ChapterID:   chapter.ID,
		NovelID:     novel.ID,
		SourceID:    novel.SourceID,
		ChapterURL:  chapter.URL,
		ChapterName: chapter.Name,
		NovelTitle:  novel.Title,
		State:       StateQueued,
		UpdatedAt:   time.Now(),
	}
}

// Key returns the queue key of the item
func (n *NovelDownloadItem) Key() uint {
	return n.ChapterID
}

// MarkDownloading starts a new attempt
func (n *NovelDownloadItem) MarkDownloading() {
	n.State = StateDownloading
	n.Progress = 0
	n.Error = ""
	n.UpdatedAt = time.Now()
}

// MarkFinished marks the item as downloaded
func (n *NovelDownloadItem) MarkFinished() {
	n.State = StateFinished
	n.Progress = 1
	n.UpdatedAt = time.Now()
}

// MarkError records a failed attempt
func (n *NovelDownloadItem) MarkError(err error) {
	n.State = StateError
	n.Tries++
	n.Error = err.Error()
	n.UpdatedAt = time.Now()
}

// ResetQueued puts an interrupted item back into the queue
func (n *NovelDownloadItem) ResetQueued() {
	n.State = StateQueued
	n.UpdatedAt = time.Now()
}

// CanAttempt reports whether the worker may pick the item
func (n *NovelDownloadItem) CanAttempt(maxTries int) bool {
	return n.State == StateQueued || (n.State == StateError && n.Tries < maxTries)
}

// NovelDownloadStatus is a point-in-time snapshot of the novel download queue
type NovelDownloadStatus struct {
	Running bool                `json:"isRunning"`
	Queue   []NovelDownloadItem `json:"queue"`
	Current *NovelDownloadItem  `json:"currentDownload,omitempty"`
}
