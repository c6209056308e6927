package domain

// LibraryRepository defines the interface for manga metadata persistence
type LibraryRepository interface {
	// SaveManga creates or updates a manga together with its chapters
	SaveManga(manga *Manga) error

	// FindManga finds a manga by ID
	FindManga(id uint) (*Manga, error)

	// FindChapter finds a chapter by ID
	FindChapter(id uint) (*Chapter, error)

	// FindChapterByIndex finds a chapter by its manga and source order
	FindChapterByIndex(mangaID uint, index int) (*Chapter, error)

	// MarkChapterDownloaded sets the downloaded flag of a chapter
	MarkChapterDownloaded(chapterID uint, downloaded bool) error

	// UpdateChapterPageCount stores the page count of a chapter
	UpdateChapterPageCount(chapterID uint, pageCount int) error

	// SaveQueue replaces the persisted download queue order
	SaveQueue(keys []ChapterKey) error

	// LoadQueue returns the persisted download queue order
	LoadQueue() ([]ChapterKey, error)
}

// NovelRepository defines the interface for novel metadata persistence
type NovelRepository interface {
	// SaveNovel creates or updates a novel together with its chapters
	SaveNovel(novel *Novel) error

	// FindNovel finds a novel by ID
	FindNovel(id uint) (*Novel, error)

	// FindNovelChapter finds a novel chapter by ID
	FindNovelChapter(id uint) (*NovelChapter, error)

	// MarkNovelChapterDownloaded sets the downloaded flag of one chapter
	MarkNovelChapterDownloaded(chapterID uint, downloaded bool) error

	// MarkNovelDownloaded sets the downloaded flag of every chapter of a novel
	MarkNovelDownloaded(novelID uint, downloaded bool) error
}
