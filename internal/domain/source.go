package domain

import "context"

// PageRef points at one remote page image of a chapter
type PageRef struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// Page is the fetched content of a page
type Page struct {
	Data        []byte
	ContentType string
}

// PageFetcher fetches the bytes of one page
type PageFetcher func(ctx context.Context, ref PageRef) (Page, error)

// Source defines the interface of a content source that serves manga pages
type Source interface {
	// ID returns the source identifier chapters refer to
	ID() string

	// FetchPageList resolves the page list of a chapter
	FetchPageList(ctx context.Context, manga *Manga, chapter *Chapter) ([]PageRef, error)

	// FetchPage downloads a single page
	FetchPage(ctx context.Context, ref PageRef) (Page, error)
}

// NovelSource defines the interface of a source that serves novel text
type NovelSource interface {
	// FetchChapterText returns the paragraphs of a chapter
	FetchChapterText(ctx context.Context, novel *Novel, chapter *NovelChapter) ([]string, error)
}

// SourceResolver looks up sources by id
type SourceResolver interface {
	Source(id string) (Source, error)
	NovelSource(id string) (NovelSource, error)
}
