package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yourusername/chapterd/internal/domain"
)

// FolderProvider stores a chapter as a directory of page images
type FolderProvider struct {
	dir  string
	root string
}

// NewFolderProvider creates a provider for dir. Empty parents up to root are
// removed on Delete.
func NewFolderProvider(dir, root string) *FolderProvider {
	return &FolderProvider{dir: dir, root: root}
}

// Dir returns the chapter directory
func (p *FolderProvider) Dir() string {
	return p.dir
}

// Download fetches every page and writes it into the chapter directory. Pages
// already on disk are fetched again.
func (p *FolderProvider) Download(ctx context.Context, pages []domain.PageRef, fetch domain.PageFetcher, progress domain.ProgressFunc) error {
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return fmt.Errorf("failed to create chapter directory: %w", err)
	}

	for i, ref := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := fetch(ctx, ref)
		if err != nil {
			var fetchErr *domain.FetchError
			if errors.As(err, &fetchErr) {
				return err
			}
			return &domain.FetchError{Page: i, Err: err}
		}

		name := PageName(i, len(pages))
		if err := p.removePage(name); err != nil {
			return err
		}
		if err := writeFileAtomic(filepath.Join(p.dir, name+pageExtension(page)), page.Data); err != nil {
			return fmt.Errorf("failed to write page %d: %w", i, err)
		}

		if err := progress(i+1, len(pages)); err != nil {
			return err
		}
	}
	return nil
}

// removePage deletes a previous copy of a page, whatever its extension
func (p *FolderProvider) removePage(name string) error {
	matches, err := filepath.Glob(filepath.Join(p.dir, name+".*"))
	if err != nil {
		return err
	}
	for _, m := range append(matches, filepath.Join(p.dir, name)) {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace page %s: %w", name, err)
		}
	}
	return nil
}

func (p *FolderProvider) pageFiles() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return sortedPageNames(names), nil
}

// GetImage opens page index in file name order
func (p *FolderProvider) GetImage(index int) (io.ReadCloser, string, error) {
	names, err := p.pageFiles()
	if err != nil {
		return nil, "", err
	}
	if index < 0 || index >= len(names) {
		return nil, "", fmt.Errorf("page %d of %s: %w", index, p.dir, domain.ErrNotFound)
	}

	f, err := os.Open(filepath.Join(p.dir, names[index]))
	if err != nil {
		return nil, "", err
	}
	return f, mimeTypeOf(names[index]), nil
}

// ImageCount returns the number of stored pages
func (p *FolderProvider) ImageCount() (int, error) {
	names, err := p.pageFiles()
	return len(names), err
}

// Delete removes the chapter directory
func (p *FolderProvider) Delete() error {
	if err := os.RemoveAll(p.dir); err != nil {
		return err
	}
	if p.root != "" {
		removeEmptyParents(p.dir, p.root)
	}
	return nil
}
