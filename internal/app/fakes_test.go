package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/chapterd/internal/domain"
)

// fakeLibrary implements LibraryRepository and NovelRepository in memory
type fakeLibrary struct {
	mu            sync.Mutex
	mangas        map[uint]domain.Manga
	chapters      map[uint]domain.Chapter
	novels        map[uint]domain.Novel
	novelChapters map[uint]domain.NovelChapter
	queue         []domain.ChapterKey
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{
		mangas:        make(map[uint]domain.Manga),
		chapters:      make(map[uint]domain.Chapter),
		novels:        make(map[uint]domain.Novel),
		novelChapters: make(map[uint]domain.NovelChapter),
	}
}

func (f *fakeLibrary) addManga(id uint, chapterPages ...int) []domain.Chapter {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mangas[id] = domain.Manga{ID: id, SourceID: "fake", Title: fmt.Sprintf("Manga %d", id)}
	var out []domain.Chapter
	for i := range chapterPages {
		c := domain.Chapter{ID: id*100 + uint(i), MangaID: id, SourceOrder: i, Name: fmt.Sprintf("Chapter %d", i)}
		f.chapters[c.ID] = c
		out = append(out, c)
	}
	return out
}

func (f *fakeLibrary) SaveManga(manga *domain.Manga) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mangas[manga.ID] = *manga
	return nil
}

func (f *fakeLibrary) FindManga(id uint) (*domain.Manga, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mangas[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (f *fakeLibrary) FindChapter(id uint) (*domain.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chapters[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeLibrary) FindChapterByIndex(mangaID uint, index int) (*domain.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.chapters {
		if c.MangaID == mangaID && c.SourceOrder == index {
			c := c
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLibrary) MarkChapterDownloaded(chapterID uint, downloaded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.chapters[chapterID]
	c.IsDownloaded = downloaded
	f.chapters[chapterID] = c
	return nil
}

func (f *fakeLibrary) UpdateChapterPageCount(chapterID uint, pageCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.chapters[chapterID]
	c.PageCount = pageCount
	f.chapters[chapterID] = c
	return nil
}

func (f *fakeLibrary) SaveQueue(keys []domain.ChapterKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append([]domain.ChapterKey(nil), keys...)
	return nil
}

func (f *fakeLibrary) LoadQueue() ([]domain.ChapterKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChapterKey(nil), f.queue...), nil
}

func (f *fakeLibrary) savedQueue() []domain.ChapterKey {
	keys, _ := f.LoadQueue()
	return keys
}

func (f *fakeLibrary) downloaded(chapterID uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chapters[chapterID].IsDownloaded
}

func (f *fakeLibrary) SaveNovel(novel *domain.Novel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.novels[novel.ID] = *novel
	for _, c := range novel.Chapters {
		f.novelChapters[c.ID] = c
	}
	return nil
}

func (f *fakeLibrary) FindNovel(id uint) (*domain.Novel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.novels[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (f *fakeLibrary) FindNovelChapter(id uint) (*domain.NovelChapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.novelChapters[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeLibrary) MarkNovelChapterDownloaded(chapterID uint, downloaded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.novelChapters[chapterID]
	c.IsDownloaded = downloaded
	f.novelChapters[chapterID] = c
	return nil
}

func (f *fakeLibrary) MarkNovelDownloaded(novelID uint, downloaded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.novelChapters {
		if c.NovelID == novelID {
			c.IsDownloaded = downloaded
			f.novelChapters[id] = c
		}
	}
	return nil
}

func (f *fakeLibrary) novelChapterDownloaded(id uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.novelChapters[id].IsDownloaded
}

// fakeSource serves synthetic pages and text. Page URLs are "chapterID/index".
type fakeSource struct {
	mu       sync.Mutex
	pages    map[uint]int
	failures map[string]int
	fetched  []string
	hook     func(ref domain.PageRef)
	texts    map[uint][]string
	textErr  error
	textHook func(chapterID uint)
	panicOn  uint
}

func newFakeSource() *fakeSource {
	return &fakeSource{pages: make(map[uint]int), failures: make(map[string]int), texts: make(map[uint][]string)}
}

func (s *fakeSource) ID() string { return "fake" }

func (s *fakeSource) Source(id string) (domain.Source, error) {
	if id != "fake" {
		return nil, fmt.Errorf("unknown source %s", id)
	}
	return s, nil
}

func (s *fakeSource) NovelSource(id string) (domain.NovelSource, error) {
	if id != "fake" {
		return nil, fmt.Errorf("unknown source %s", id)
	}
	return s, nil
}

func (s *fakeSource) setPages(chapterID uint, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[chapterID] = n
}

func (s *fakeSource) failPage(chapterID uint, index, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[fmt.Sprintf("%d/%d", chapterID, index)] = times
}

func (s *fakeSource) setHook(hook func(ref domain.PageRef)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *fakeSource) fetchLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

func (s *fakeSource) FetchPageList(ctx context.Context, manga *domain.Manga, chapter *domain.Chapter) ([]domain.PageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn != 0 && s.panicOn == chapter.ID {
		panic("source exploded")
	}
	refs := make([]domain.PageRef, s.pages[chapter.ID])
	for i := range refs {
		refs[i] = domain.PageRef{Index: i, URL: fmt.Sprintf("%d/%d", chapter.ID, i)}
	}
	return refs, nil
}

func (s *fakeSource) FetchPage(ctx context.Context, ref domain.PageRef) (domain.Page, error) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, ref.URL)
	if s.failures[ref.URL] > 0 {
		s.failures[ref.URL]--
		return domain.Page{}, &domain.FetchError{Page: ref.Index, Err: errors.New("connection reset")}
	}
	return domain.Page{Data: []byte("page " + ref.URL), ContentType: "image/png"}, nil
}

func (s *fakeSource) FetchChapterText(ctx context.Context, novel *domain.Novel, chapter *domain.NovelChapter) ([]string, error) {
	s.mu.Lock()
	hook := s.textHook
	s.mu.Unlock()
	if hook != nil {
		hook(chapter.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.textErr != nil {
		return nil, s.textErr
	}
	return s.texts[chapter.ID], nil
}

// memStorage keeps downloaded pages in memory per chapter id
type memStorage struct {
	mu       sync.Mutex
	chapters map[uint]map[int][]byte
	deleted  map[uint]int
}

func newMemStorage() *memStorage {
	return &memStorage{chapters: make(map[uint]map[int][]byte), deleted: make(map[uint]int)}
}

func (s *memStorage) Provider(mangaID, chapterID uint) domain.StorageProvider {
	return &memProvider{storage: s, chapterID: chapterID}
}

func (s *memStorage) pageCount(chapterID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chapters[chapterID])
}

func (s *memStorage) deletions(chapterID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[chapterID]
}

type memProvider struct {
	storage   *memStorage
	chapterID uint
}

func (p *memProvider) Download(ctx context.Context, pages []domain.PageRef, fetch domain.PageFetcher, progress domain.ProgressFunc) error {
	for i, ref := range pages {
		page, err := fetch(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to store page %d: %w", i, err)
		}

		p.storage.mu.Lock()
		if p.storage.chapters[p.chapterID] == nil {
			p.storage.chapters[p.chapterID] = make(map[int][]byte)
		}
		p.storage.chapters[p.chapterID][i] = page.Data
		p.storage.mu.Unlock()

		if err := progress(i+1, len(pages)); err != nil {
			return err
		}
	}
	return nil
}

func (p *memProvider) GetImage(index int) (io.ReadCloser, string, error) {
	p.storage.mu.Lock()
	defer p.storage.mu.Unlock()
	data, ok := p.storage.chapters[p.chapterID][index]
	if !ok {
		return nil, "", fmt.Errorf("page %d: %w", index, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (p *memProvider) ImageCount() (int, error) {
	return p.storage.pageCount(p.chapterID), nil
}

func (p *memProvider) Delete() error {
	p.storage.mu.Lock()
	defer p.storage.mu.Unlock()
	delete(p.storage.chapters, p.chapterID)
	p.storage.deleted[p.chapterID]++
	return nil
}

// memTextStore keeps novel chapters in memory
type memTextStore struct {
	mu    sync.Mutex
	texts map[[2]uint]string
}

func newMemTextStore() *memTextStore {
	return &memTextStore{texts: make(map[[2]uint]string)}
}

func (s *memTextStore) Write(novelID, chapterID uint, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[[2]uint{novelID, chapterID}] = content
	return nil
}

func (s *memTextStore) Read(novelID, chapterID uint) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.texts[[2]uint{novelID, chapterID}]
	if !ok {
		return "", domain.ErrNotFound
	}
	return text, nil
}

func (s *memTextStore) Exists(novelID, chapterID uint) bool {
	_, err := s.Read(novelID, chapterID)
	return err == nil
}

func (s *memTextStore) Delete(novelID, chapterID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.texts, [2]uint{novelID, chapterID})
	return nil
}

func (s *memTextStore) DeleteNovel(novelID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.texts {
		if k[0] == novelID {
			delete(s.texts, k)
		}
	}
	return nil
}

// statusRecorder is a dispatcher client that keeps every snapshot it receives
type statusRecorder struct {
	id       string
	mu       sync.Mutex
	statuses []domain.DownloadStatus
	novels   []domain.NovelDownloadStatus
}

func (r *statusRecorder) ID() string { return r.id }

func (r *statusRecorder) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch s := v.(type) {
	case domain.DownloadStatus:
		r.statuses = append(r.statuses, s)
	case domain.NovelDownloadStatus:
		r.novels = append(r.novels, s)
	}
	return nil
}

func (r *statusRecorder) history() []domain.DownloadStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DownloadStatus(nil), r.statuses...)
}

// jobHistory returns every state the recorder saw for one chapter
func (r *statusRecorder) jobHistory(key domain.ChapterKey) []domain.DownloadChapter {
	var out []domain.DownloadChapter
	for _, status := range r.history() {
		for _, job := range status.Queue {
			if job.Key() == key {
				out = append(out, job)
			}
		}
	}
	return out
}

type fakeNotifier struct {
	mu         sync.Mutex
	downloaded []string
	failed     []string
	empty      int
}

func (n *fakeNotifier) NotifyChapterDownloaded(title, chapter string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.downloaded = append(n.downloaded, title+" "+chapter)
}

func (n *fakeNotifier) NotifyChapterFailed(title, chapter string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, title+" "+chapter)
}

func (n *fakeNotifier) NotifyQueueEmpty() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.empty++
}

func (n *fakeNotifier) counts() (downloaded, failed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.downloaded), len(n.failed)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond, msg)
}
