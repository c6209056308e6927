package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yourusername/chapterd/internal/domain"
)

const defaultSourceTimeout = 30 * time.Second

// HTTPSource talks to a JSON source gateway serving page lists, page images
// and novel text
type HTTPSource struct {
	id      string
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	maxPage int64
	logger  *zap.Logger
}

// NewHTTPSource creates a source for the gateway at config.BaseURL. A zero
// RequestsPerSecond disables rate limiting.
func NewHTTPSource(id string, config domain.SourceConfig, logger *zap.Logger) (*HTTPSource, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url for source %s: %w", id, err)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}

	maxPage := config.MaxPageBytes
	if maxPage <= 0 {
		maxPage = domain.DefaultMaxPageBytes
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &HTTPSource{
		id:      id,
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		maxPage: maxPage,
		logger:  logger.With(zap.String("source", id)),
	}, nil
}

// ID returns the source identifier
func (s *HTTPSource) ID() string {
	return s.id
}

func (s *HTTPSource) endpoint(path string, params url.Values) string {
	u := *s.baseURL
	u.Path = u.Path + path
	u.RawQuery = params.Encode()
	return u.String()
}

func (s *HTTPSource) do(ctx context.Context, rawURL string, accept string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", rawURL, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	resp, err := s.do(ctx, s.endpoint(path, params), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// FetchPageList resolves the page URLs of a chapter. Relative URLs are
// resolved against the gateway.
func (s *HTTPSource) FetchPageList(ctx context.Context, manga *domain.Manga, chapter *domain.Chapter) ([]domain.PageRef, error) {
	params := url.Values{}
	params.Set("manga", manga.URL)
	params.Set("chapter", chapter.URL)

	var urls []string
	if err := s.getJSON(ctx, "/pages", params, &urls); err != nil {
		return nil, fmt.Errorf("failed to fetch page list: %w", err)
	}

	pages := make([]domain.PageRef, 0, len(urls))
	for i, raw := range urls {
		ref, err := s.baseURL.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid page url %q: %w", raw, err)
		}
		pages = append(pages, domain.PageRef{Index: i, URL: ref.String()})
	}

	s.logger.Debug("Fetched page list",
		zap.String("chapter", chapter.URL),
		zap.Int("pages", len(pages)))
	return pages, nil
}

// FetchPage downloads one page image. Bodies over the source's page size
// limit fail with ErrPageTooLarge.
func (s *HTTPSource) FetchPage(ctx context.Context, ref domain.PageRef) (domain.Page, error) {
	resp, err := s.do(ctx, ref.URL, "image/*")
	if err != nil {
		return domain.Page{}, &domain.FetchError{Page: ref.Index, Err: err}
	}
	defer resp.Body.Close()

	if resp.ContentLength > s.maxPage {
		return domain.Page{}, &domain.FetchError{Page: ref.Index, Err: domain.ErrPageTooLarge}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxPage+1))
	if err != nil {
		return domain.Page{}, &domain.FetchError{Page: ref.Index, Err: err}
	}
	if int64(len(data)) > s.maxPage {
		return domain.Page{}, &domain.FetchError{Page: ref.Index, Err: domain.ErrPageTooLarge}
	}
	return domain.Page{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// FetchChapterText returns the paragraphs of a novel chapter
func (s *HTTPSource) FetchChapterText(ctx context.Context, novel *domain.Novel, chapter *domain.NovelChapter) ([]string, error) {
	params := url.Values{}
	params.Set("chapter", chapter.URL)

	var body struct {
		Paragraphs []string `json:"paragraphs"`
	}
	if err := s.getJSON(ctx, "/text", params, &body); err != nil {
		return nil, fmt.Errorf("failed to fetch chapter text: %w", err)
	}
	return body.Paragraphs, nil
}

// SourceRegistry resolves configured sources by id
type SourceRegistry struct {
	sources map[string]*HTTPSource
}

// NewSourceRegistry builds an HTTPSource for every configured source
func NewSourceRegistry(configs map[string]domain.SourceConfig, logger *zap.Logger) (*SourceRegistry, error) {
	r := &SourceRegistry{sources: make(map[string]*HTTPSource, len(configs))}
	for id, cfg := range configs {
		src, err := NewHTTPSource(id, cfg, logger)
		if err != nil {
			return nil, err
		}
		r.sources[id] = src
	}
	return r, nil
}

// IDs returns the configured source ids, sorted
func (r *SourceRegistry) IDs() []string {
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *SourceRegistry) lookup(id string) (*HTTPSource, error) {
	src, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", id, domain.ErrNotFound)
	}
	return src, nil
}

// Source returns the manga source with the given id
func (r *SourceRegistry) Source(id string) (domain.Source, error) {
	return r.lookup(id)
}

// NovelSource returns the novel source with the given id
func (r *SourceRegistry) NovelSource(id string) (domain.NovelSource, error) {
	return r.lookup(id)
}
