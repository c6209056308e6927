package infrastructure

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yourusername/chapterd/internal/domain"
)

const archiveExt = ".cbz"

// ChapterStorage decides where a chapter lives on disk and which provider
// owns it
type ChapterStorage struct {
	root      string
	asArchive bool
}

// NewChapterStorage creates storage rooted at {downloadsDir}/mangas
func NewChapterStorage(downloadsDir string, asArchive bool) *ChapterStorage {
	return &ChapterStorage{root: filepath.Join(downloadsDir, "mangas"), asArchive: asArchive}
}

func (s *ChapterStorage) chapterDir(mangaID, chapterID uint) string {
	return filepath.Join(s.root, strconv.FormatUint(uint64(mangaID), 10), strconv.FormatUint(uint64(chapterID), 10))
}

func (s *ChapterStorage) archivePath(mangaID, chapterID uint) string {
	return s.chapterDir(mangaID, chapterID) + archiveExt
}

// Provider returns the archive provider when the chapter already exists as an
// archive, or when it does not exist yet and archives are enabled. Otherwise
// the folder provider.
func (s *ChapterStorage) Provider(mangaID, chapterID uint) domain.StorageProvider {
	folder := NewFolderProvider(s.chapterDir(mangaID, chapterID), s.root)
	archive := s.archivePath(mangaID, chapterID)

	if fileExists(archive) {
		return NewArchiveProvider(archive, folder)
	}
	if s.asArchive && !dirExists(folder.dir) {
		return NewArchiveProvider(archive, folder)
	}
	return folder
}

// PageName returns the file name, without extension, of page index. Names are
// 1-based and zero padded so that lexical order is page order.
func PageName(index, pageCount int) string {
	width := len(strconv.Itoa(pageCount))
	if width < 3 {
		width = 3
	}
	return fmt.Sprintf("%0*d", width, index+1)
}

// pageExtension picks the file extension of a fetched page from its content
// type, sniffing the bytes when the source did not send a usable one
func pageExtension(page domain.Page) string {
	contentType := strings.TrimSpace(strings.Split(page.ContentType, ";")[0])
	if contentType != "" {
		if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
			return m.Extension()
		}
	}
	if ext := mimetype.Detect(page.Data).Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

// mimeTypeOf infers the MIME type of a stored page from its name
func mimeTypeOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if m := mime.TypeByExtension(ext); m != "" {
		return strings.Split(m, ";")[0]
	}
	return "application/octet-stream"
}

func isPageFile(name string) bool {
	return !strings.HasPrefix(name, ".")
}

func sortedPageNames(names []string) []string {
	out := names[:0:0]
	for _, n := range names {
		if isPageFile(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// writeFileAtomic writes data next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// removeEmptyParents removes empty directories above dir up to, not
// including, root
func removeEmptyParents(dir, root string) {
	root = filepath.Clean(root)
	for p := filepath.Dir(filepath.Clean(dir)); p != root && strings.HasPrefix(p, root+string(filepath.Separator)); p = filepath.Dir(p) {
		if err := os.Remove(p); err != nil {
			return
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
