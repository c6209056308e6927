package domain

import "time"

// Manga is a serialized work whose chapters are pages of images
type Manga struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SourceID  string    `json:"sourceId" gorm:"not null;index"`
	URL       string    `json:"url" gorm:"not null"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	Chapters []Chapter `json:"chapters,omitempty" gorm:"foreignKey:MangaID;constraint:OnDelete:CASCADE"`
}

// Chapter is one chapter of a manga. SourceOrder is the chapter index used
// by the download queue.
type Chapter struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	MangaID      uint      `json:"mangaId" gorm:"not null;uniqueIndex:idx_chapter_manga_order"`
	SourceOrder  int       `json:"index" gorm:"not null;uniqueIndex:idx_chapter_manga_order"`
	URL          string    `json:"url" gorm:"not null"`
	Name         string    `json:"name"`
	PageCount    int       `json:"pageCount" gorm:"default:0"`
	IsDownloaded bool      `json:"downloaded" gorm:"default:false;index"`
	LastPageRead int       `json:"lastPageRead" gorm:"default:0"`
	CreatedAt    time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// QueueEntry persists the order of the manga download queue across restarts
type QueueEntry struct {
	Position     int  `gorm:"primaryKey;autoIncrement:false"`
	MangaID      uint `gorm:"not null"`
	ChapterIndex int  `gorm:"not null"`
}

// Key returns the queue key the entry was saved from
func (e QueueEntry) Key() ChapterKey {
	return ChapterKey{MangaID: e.MangaID, ChapterIndex: e.ChapterIndex}
}
