package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yourusername/chapterd/internal/domain"
)

// TextFileStore stores novel chapters as text files under
// {downloads}/novels/{novelID}/{chapterID}.txt
type TextFileStore struct {
	root string
}

// NewTextFileStore creates a store rooted at {downloadsDir}/novels
func NewTextFileStore(downloadsDir string) *TextFileStore {
	return &TextFileStore{root: filepath.Join(downloadsDir, "novels")}
}

func (s *TextFileStore) novelDir(novelID uint) string {
	return filepath.Join(s.root, strconv.FormatUint(uint64(novelID), 10))
}

func (s *TextFileStore) path(novelID, chapterID uint) string {
	return filepath.Join(s.novelDir(novelID), strconv.FormatUint(uint64(chapterID), 10)+".txt")
}

// Write stores the content of a chapter, replacing any previous copy
func (s *TextFileStore) Write(novelID, chapterID uint, content string) error {
	if err := os.MkdirAll(s.novelDir(novelID), 0755); err != nil {
		return fmt.Errorf("failed to create novel directory: %w", err)
	}
	return writeFileAtomic(s.path(novelID, chapterID), []byte(content))
}

// Read returns the stored content of a chapter
func (s *TextFileStore) Read(novelID, chapterID uint) (string, error) {
	data, err := os.ReadFile(s.path(novelID, chapterID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("novel %d chapter %d: %w", novelID, chapterID, domain.ErrNotFound)
		}
		return "", err
	}
	return string(data), nil
}

// Exists reports whether a chapter is stored
func (s *TextFileStore) Exists(novelID, chapterID uint) bool {
	return fileExists(s.path(novelID, chapterID))
}

// Delete removes a stored chapter. Missing chapters are not an error.
func (s *TextFileStore) Delete(novelID, chapterID uint) error {
	if err := os.Remove(s.path(novelID, chapterID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	// drop the novel directory once it is empty
	_ = os.Remove(s.novelDir(novelID))
	return nil
}

// DeleteNovel removes every stored chapter of a novel
func (s *TextFileStore) DeleteNovel(novelID uint) error {
	return os.RemoveAll(s.novelDir(novelID))
}
