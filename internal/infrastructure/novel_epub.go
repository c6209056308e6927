package infrastructure

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-shiori/go-epub"

	"github.com/yourusername/chapterd/internal/domain"
)

// NovelEPubBuilder compiles the downloaded chapters of a novel into an EPUB
type NovelEPubBuilder struct {
	texts domain.TextStore
}

// NewNovelEPubBuilder creates a builder reading chapter text from texts
func NewNovelEPubBuilder(texts domain.TextStore) *NovelEPubBuilder {
	return &NovelEPubBuilder{texts: texts}
}

// Write builds the EPUB of a novel at path. Chapters that are not downloaded
// are skipped; a novel without any downloaded chapter is ErrNotFound.
func (b *NovelEPubBuilder) Write(novel *domain.Novel, path string) error {
	e, err := epub.NewEpub(novel.Title)
	if err != nil {
		return fmt.Errorf("failed to create epub: %w", err)
	}
	e.SetAuthor(novel.SourceID)
	e.SetLang("en")

	sections := 0
	for _, chapter := range novel.Chapters {
		if !b.texts.Exists(novel.ID, chapter.ID) {
			continue
		}
		content, err := b.texts.Read(novel.ID, chapter.ID)
		if err != nil {
			return err
		}

		title := chapter.Name
		if title == "" {
			title = fmt.Sprintf("Chapter %d", sections+1)
		}
		if _, err := e.AddSection(chapterXHTML(title, content), title, "", ""); err != nil {
			return fmt.Errorf("failed to add chapter %d: %w", chapter.ID, err)
		}
		sections++
	}

	if sections == 0 {
		return fmt.Errorf("novel %d has no downloaded chapters: %w", novel.ID, domain.ErrNotFound)
	}

	if err := e.Write(path); err != nil {
		return fmt.Errorf("failed to write epub: %w", err)
	}
	return nil
}

func chapterXHTML(title, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(title))
	for _, paragraph := range strings.Split(content, "\n\n") {
		if paragraph = strings.TrimSpace(paragraph); paragraph == "" {
			continue
		}
		fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(paragraph))
	}
	return sb.String()
}
