// Package export renders the local mirror to files: one markdown document
// per book with YAML front matter, or a single JSON dump. Export reads the
// mirror as-is and never talks to the network.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/readstash/readstash/internal/filex"
	"github.com/readstash/readstash/internal/logging"
	"github.com/readstash/readstash/internal/query"
)

type Exporter struct {
	q   *query.Service
	log logging.Logger
	now func() time.Time
}

func New(q *query.Service, log logging.Logger) *Exporter {
	return &Exporter{q: q, log: log, now: time.Now}
}

// frontMatter is the YAML header of an exported book document.
type frontMatter struct {
	Title      string   `yaml:"title"`
	Author     string   `yaml:"author,omitempty"`
	Category   string   `yaml:"category,omitempty"`
	Source     string   `yaml:"source,omitempty"`
	URL        string   `yaml:"readwise_url,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	Highlights int      `yaml:"highlights"`
	ExportedAt string   `yaml:"exported_at"`
}

// Markdown writes one document per book into dir and returns how many files
// it wrote. Orphaned highlights, which have no book to belong to, go into a
// single extra document.
func (e *Exporter) Markdown(ctx context.Context, dir string) (int, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return 0, err
	}

	books, err := e.q.Books(ctx, query.BookFilter{})
	if err != nil {
		return 0, err
	}

	written := 0
	for _, b := range books {
		hs, err := e.q.Highlights(ctx, query.HighlightFilter{BookID: b.UserBookID})
		if err != nil {
			return written, err
		}
		if len(hs) == 0 {
			continue
		}
		doc, err := e.renderBook(b, hs)
		if err != nil {
			return written, err
		}
		name := fmt.Sprintf("%s-%d.md", filex.SafeName(b.Title), b.UserBookID)
		if err := filex.WriteAtomic(filepath.Join(abs, name), doc); err != nil {
			return written, err
		}
		written++
		e.log.Debug(ctx, "book exported", "book", b.UserBookID, "file", name, "highlights", len(hs))
	}

	orphans, err := e.q.Highlights(ctx, query.HighlightFilter{Orphaned: true})
	if err != nil {
		return written, err
	}
	if len(orphans) > 0 {
		doc, err := e.renderOrphans(orphans)
		if err != nil {
			return written, err
		}
		if err := filex.WriteAtomic(filepath.Join(abs, "orphaned-highlights.md"), doc); err != nil {
			return written, err
		}
		written++
	}

	e.log.Info(ctx, "markdown export finished", "dir", abs, "files", written)
	return written, nil
}

func (e *Exporter) renderBook(b query.BookRow, hs []query.HighlightRow) ([]byte, error) {
	var sb strings.Builder
	fm := frontMatter{
		Title:      b.Title,
		Author:     b.Author,
		Category:   b.Category,
		Source:     b.Source,
		URL:        b.ReadwiseURL,
		Tags:       b.Tags,
		Highlights: len(hs),
		ExportedAt: e.now().UTC().Format(time.RFC3339),
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("render front matter: %w", err)
	}
	sb.WriteString("---\n")
	sb.Write(head)
	sb.WriteString("---\n\n")

	title := b.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)

	// Oldest first reads naturally in a document.
	for i := len(hs) - 1; i >= 0; i-- {
		writeHighlight(&sb, hs[i])
	}
	return []byte(sb.String()), nil
}

func (e *Exporter) renderOrphans(hs []query.HighlightRow) ([]byte, error) {
	var sb strings.Builder
	fm := frontMatter{
		Title:      "Orphaned highlights",
		Highlights: len(hs),
		ExportedAt: e.now().UTC().Format(time.RFC3339),
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("render front matter: %w", err)
	}
	sb.WriteString("---\n")
	sb.Write(head)
	sb.WriteString("---\n\n# Orphaned highlights\n\n")
	sb.WriteString("Highlights whose book has not been synced yet.\n\n")
	for i := len(hs) - 1; i >= 0; i-- {
		writeHighlight(&sb, hs[i])
	}
	return []byte(sb.String()), nil
}

func writeHighlight(sb *strings.Builder, h query.HighlightRow) {
	for _, line := range strings.Split(strings.TrimSpace(h.Text), "\n") {
		fmt.Fprintf(sb, "> %s\n", line)
	}
	var meta []string
	if h.Location > 0 {
		meta = append(meta, fmt.Sprintf("%s %d", locationLabel(h.LocationType), h.Location))
	}
	if h.Color != "" {
		meta = append(meta, h.Color)
	}
	if !h.HighlightedAt.IsZero() {
		meta = append(meta, h.HighlightedAt.Format("2006-01-02"))
	}
	if len(meta) > 0 {
		fmt.Fprintf(sb, ">\n> — %s\n", strings.Join(meta, ", "))
	}
	sb.WriteString("\n")

	if h.Note != "" {
		fmt.Fprintf(sb, "**Note:** %s\n\n", h.Note)
	}
	if h.Local != nil {
		if h.Local.Note != "" {
			fmt.Fprintf(sb, "**Local note:** %s\n\n", h.Local.Note)
		}
		if len(h.Local.Tags) > 0 {
			fmt.Fprintf(sb, "Local tags: %s\n\n", hashTags(h.Local.Tags))
		}
	}
	if len(h.Tags) > 0 {
		fmt.Fprintf(sb, "Tags: %s\n\n", hashTags(h.Tags))
	}
}

func locationLabel(locationType string) string {
	switch locationType {
	case "page":
		return "page"
	case "time_offset":
		return "offset"
	case "order":
		return "position"
	default:
		return "location"
	}
}

func hashTags(tags []string) string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = "#" + strings.ReplaceAll(t, " ", "-")
	}
	return strings.Join(out, " ")
}
