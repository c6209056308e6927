package infrastructure

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/chapterd/internal/domain"
)

// SQLiteLibraryRepository implements LibraryRepository and NovelRepository using SQLite
type SQLiteLibraryRepository struct {
	db *gorm.DB
}

// NewSQLiteLibraryRepository opens the library database and migrates its schema
func NewSQLiteLibraryRepository(dbPath string) (*SQLiteLibraryRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database: %w", err)
	}
	// the worker and the API write concurrently; sqlite takes one writer
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&domain.Manga{},
		&domain.Chapter{},
		&domain.Novel{},
		&domain.NovelChapter{},
		&domain.QueueEntry{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteLibraryRepository{db: db}, nil
}

func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, domain.ErrNotFound)
	}
	return err
}

// SaveManga creates or updates a manga together with its chapters
func (r *SQLiteLibraryRepository) SaveManga(manga *domain.Manga) error {
	return r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(manga).Error
}

// FindManga finds a manga by ID
func (r *SQLiteLibraryRepository) FindManga(id uint) (*domain.Manga, error) {
	var manga domain.Manga
	err := r.db.Preload("Chapters", func(db *gorm.DB) *gorm.DB {
		return db.Order("source_order ASC")
	}).First(&manga, id).Error
	if err != nil {
		return nil, notFound(err, "manga", id)
	}
	return &manga, nil
}

// ListMangas returns every manga with its chapters ordered by source order
func (r *SQLiteLibraryRepository) ListMangas() ([]*domain.Manga, error) {
	var mangas []*domain.Manga
	err := r.db.Preload("Chapters", func(db *gorm.DB) *gorm.DB {
		return db.Order("source_order ASC")
	}).Order("id ASC").Find(&mangas).Error
	return mangas, err
}

// FindChapter finds a chapter by ID
func (r *SQLiteLibraryRepository) FindChapter(id uint) (*domain.Chapter, error) {
	var chapter domain.Chapter
	if err := r.db.First(&chapter, id).Error; err != nil {
		return nil, notFound(err, "chapter", id)
	}
	return &chapter, nil
}

// FindChapterByIndex finds a chapter by its manga and source order
func (r *SQLiteLibraryRepository) FindChapterByIndex(mangaID uint, index int) (*domain.Chapter, error) {
	var chapter domain.Chapter
	err := r.db.Where("manga_id = ? AND source_order = ?", mangaID, index).First(&chapter).Error
	if err != nil {
		return nil, notFound(err, "chapter", fmt.Sprintf("%d/%d", mangaID, index))
	}
	return &chapter, nil
}

// MarkChapterDownloaded sets the downloaded flag of a chapter
func (r *SQLiteLibraryRepository) MarkChapterDownloaded(chapterID uint, downloaded bool) error {
	return r.updateChapter(chapterID, "is_downloaded", downloaded)
}

// UpdateChapterPageCount stores the page count of a chapter
func (r *SQLiteLibraryRepository) UpdateChapterPageCount(chapterID uint, pageCount int) error {
	return r.updateChapter(chapterID, "page_count", pageCount)
}

// UpdateLastPageRead stores the reading position of a chapter
func (r *SQLiteLibraryRepository) UpdateLastPageRead(chapterID uint, page int) error {
	return r.updateChapter(chapterID, "last_page_read", page)
}

func (r *SQLiteLibraryRepository) updateChapter(chapterID uint, column string, value interface{}) error {
	result := r.db.Model(&domain.Chapter{}).Where("id = ?", chapterID).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("chapter %d: %w", chapterID, domain.ErrNotFound)
	}
	return nil
}

// SaveQueue replaces the persisted download queue order
func (r *SQLiteLibraryRepository) SaveQueue(keys []domain.ChapterKey) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.QueueEntry{}).Error; err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}

		entries := make([]domain.QueueEntry, len(keys))
		for i, k := range keys {
			entries[i] = domain.QueueEntry{Position: i + 1, MangaID: k.MangaID, ChapterIndex: k.ChapterIndex}
		}
		return tx.Create(&entries).Error
	})
}

// LoadQueue returns the persisted download queue order
func (r *SQLiteLibraryRepository) LoadQueue() ([]domain.ChapterKey, error) {
	var entries []domain.QueueEntry
	if err := r.db.Order("position ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	keys := make([]domain.ChapterKey, len(entries))
	for i, e := range entries {
		keys[i] = e.Key()
	}
	return keys, nil
}

// SaveNovel creates or updates a novel together with its chapters
func (r *SQLiteLibraryRepository) SaveNovel(novel *domain.Novel) error {
	return r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(novel).Error
}

// ListNovels returns every novel with its chapters
func (r *SQLiteLibraryRepository) ListNovels() ([]*domain.Novel, error) {
	var novels []*domain.Novel
	err := r.db.Preload("Chapters", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Order("id ASC").Find(&novels).Error
	return novels, err
}

// FindNovel finds a novel by ID
func (r *SQLiteLibraryRepository) FindNovel(id uint) (*domain.Novel, error) {
	var novel domain.Novel
	if err := r.db.Preload("Chapters").First(&novel, id).Error; err != nil {
		return nil, notFound(err, "novel", id)
	}
	return &novel, nil
}

// FindNovelChapter finds a novel chapter by ID
func (r *SQLiteLibraryRepository) FindNovelChapter(id uint) (*domain.NovelChapter, error) {
	var chapter domain.NovelChapter
	if err := r.db.First(&chapter, id).Error; err != nil {
		return nil, notFound(err, "novel chapter", id)
	}
	return &chapter, nil
}

// MarkNovelChapterDownloaded sets the downloaded flag of one novel chapter
func (r *SQLiteLibraryRepository) MarkNovelChapterDownloaded(chapterID uint, downloaded bool) error {
	result := r.db.Model(&domain.NovelChapter{}).Where("id = ?", chapterID).Update("is_downloaded", downloaded)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("novel chapter %d: %w", chapterID, domain.ErrNotFound)
	}
	return nil
}

// MarkNovelDownloaded sets the downloaded flag of every chapter of a novel
func (r *SQLiteLibraryRepository) MarkNovelDownloaded(novelID uint, downloaded bool) error {
	return r.db.Model(&domain.NovelChapter{}).Where("novel_id = ?", novelID).Update("is_downloaded", downloaded).Error
}

// Ping checks that the database is reachable
func (r *SQLiteLibraryRepository) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the database connection
func (r *SQLiteLibraryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
