package domain

import (
	"context"
	"io"
)

// ProgressFunc is called after every stored page. Returning an error aborts
// the download.
type ProgressFunc func(stored, total int) error

// StorageProvider owns the on-disk representation of one downloaded chapter
type StorageProvider interface {
	// Download fetches and stores every page of the chapter
	Download(ctx context.Context, pages []PageRef, fetch PageFetcher, progress ProgressFunc) error

	// GetImage opens the stored page at index together with its MIME type
	GetImage(index int) (io.ReadCloser, string, error)

	// ImageCount returns the number of stored pages
	ImageCount() (int, error)

	// Delete removes the stored chapter
	Delete() error
}

// StorageFactory returns the provider responsible for a chapter
type StorageFactory interface {
	Provider(mangaID, chapterID uint) StorageProvider
}

// TextStore stores downloaded novel chapters
type TextStore interface {
	Write(novelID, chapterID uint, content string) error
	Read(novelID, chapterID uint) (string, error)
	Exists(novelID, chapterID uint) bool
	Delete(novelID, chapterID uint) error
	DeleteNovel(novelID uint) error
}
