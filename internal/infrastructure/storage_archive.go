package infrastructure

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"

	"github.com/yourusername/chapterd/internal/domain"
)

// ArchiveProvider stores a chapter as a single zip archive. Downloads go
// through a FolderProvider working directory that is packed afterwards.
type ArchiveProvider struct {
	path   string
	folder *FolderProvider
}

// NewArchiveProvider creates a provider for the archive at path
func NewArchiveProvider(path string, folder *FolderProvider) *ArchiveProvider {
	return &ArchiveProvider{path: path, folder: folder}
}

// Path returns the archive file path
func (p *ArchiveProvider) Path() string {
	return p.path
}

// Download unpacks an existing archive into the working directory, lets the
// folder provider fetch every page, then packs the directory into the archive
// and removes it
func (p *ArchiveProvider) Download(ctx context.Context, pages []domain.PageRef, fetch domain.PageFetcher, progress domain.ProgressFunc) error {
	if fileExists(p.path) {
		if err := p.unpack(); err != nil {
			return fmt.Errorf("failed to unpack existing archive: %w", err)
		}
		if err := os.Remove(p.path); err != nil {
			return fmt.Errorf("failed to remove existing archive: %w", err)
		}
	}

	if err := p.folder.Download(ctx, pages, fetch, progress); err != nil {
		return err
	}

	if err := p.pack(); err != nil {
		return fmt.Errorf("failed to pack archive: %w", err)
	}
	return os.RemoveAll(p.folder.Dir())
}

func (p *ArchiveProvider) unpack() error {
	r, err := zip.OpenReader(p.path)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(p.folder.Dir(), 0755); err != nil {
		return err
	}

	for _, f := range r.File {
		name := filepath.Base(f.Name)
		if f.FileInfo().IsDir() || !isPageFile(name) {
			continue
		}
		if err := extractEntry(f, filepath.Join(p.folder.Dir(), name)); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return writeFileAtomic(dest, data)
}

func (p *ArchiveProvider) pack() error {
	names, err := p.folder.pageFiles()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), "."+filepath.Base(p.path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	for _, name := range names {
		if err := addEntry(zw, filepath.Join(p.folder.Dir(), name), name); err != nil {
			zw.Close()
			tmp.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

func addEntry(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	// page images are already compressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func (p *ArchiveProvider) entries() (*zip.ReadCloser, []*zip.File, error) {
	r, err := zip.OpenReader(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("archive %s: %w", p.path, domain.ErrNotFound)
		}
		return nil, nil, err
	}

	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && isPageFile(filepath.Base(f.Name)) {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return r, files, nil
}

type entryReader struct {
	io.ReadCloser
	archive io.Closer
}

func (e *entryReader) Close() error {
	err := e.ReadCloser.Close()
	if cerr := e.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

// GetImage opens entry index in name order
func (p *ArchiveProvider) GetImage(index int) (io.ReadCloser, string, error) {
	r, files, err := p.entries()
	if err != nil {
		return nil, "", err
	}
	if index < 0 || index >= len(files) {
		r.Close()
		return nil, "", fmt.Errorf("page %d of %s: %w", index, p.path, domain.ErrNotFound)
	}

	rc, err := files[index].Open()
	if err != nil {
		r.Close()
		return nil, "", err
	}
	return &entryReader{ReadCloser: rc, archive: r}, mimeTypeOf(files[index].Name), nil
}

// ImageCount returns the number of pages in the archive
func (p *ArchiveProvider) ImageCount() (int, error) {
	r, files, err := p.entries()
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return len(files), nil
}

// Delete removes the archive
func (p *ArchiveProvider) Delete() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.RemoveAll(p.folder.Dir()); err != nil {
		return err
	}
	removeEmptyParents(p.path, p.folder.root)
	return nil
}
