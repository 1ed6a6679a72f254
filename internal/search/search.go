// Package search indexes published journal articles, storytellers and
// storyworlds. Meilisearch serves queries when it is reachable; PostgreSQL
// full-text search over the generated search_vector columns is the fallback.
package search

import (
	"html/template"
	"strings"

	"storyworlds/site/internal/richtext"
	"storyworlds/site/internal/store"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultJournal     ResultType = "journal"
	ResultStoryteller ResultType = "storyteller"
	ResultStoryworld  ResultType = "storyworld"
)

// ParseResultType maps a query parameter to a ResultType. Unknown values mean all types.
func ParseResultType(raw string) ResultType {
	switch ResultType(strings.ToLower(strings.TrimSpace(raw))) {
	case ResultJournal:
		return ResultJournal
	case ResultStoryteller:
		return ResultStoryteller
	case ResultStoryworld:
		return ResultStoryworld
	default:
		return ""
	}
}

// Highlight markers wrap matched terms in Result titles and snippets. Both
// backends emit the same pair around unescaped source text, so a caller
// must escape before it turns them into markup.
const (
	HighlightStart = "\ue000"
	HighlightEnd   = "\ue001"
)

// HighlightHTML escapes text and turns highlight markers into <mark>
// elements. Stray end markers are dropped and an unclosed mark is closed.
func HighlightHTML(text string) template.HTML {
	var b strings.Builder
	open := false
	for text != "" {
		i := strings.IndexAny(text, HighlightStart+HighlightEnd)
		if i < 0 {
			b.WriteString(template.HTMLEscapeString(text))
			break
		}
		b.WriteString(template.HTMLEscapeString(text[:i]))
		if strings.HasPrefix(text[i:], HighlightStart) {
			if !open {
				b.WriteString("<mark>")
				open = true
			}
			text = text[i+len(HighlightStart):]
			continue
		}
		if open {
			b.WriteString("</mark>")
			open = false
		}
		text = text[i+len(HighlightEnd):]
	}
	if open {
		b.WriteString("</mark>")
	}
	return template.HTML(b.String())
}

// StripHighlights removes highlight markers, leaving plain text.
func StripHighlights(text string) string {
	return strings.NewReplacer(HighlightStart, "", HighlightEnd, "").Replace(text)
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Slug    string     `json:"slug"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	URL     string     `json:"url"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Category   string     // journal only
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// JournalRecord is the data we index for a journal article.
type JournalRecord struct {
	ID       string   `json:"id"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Excerpt  string   `json:"excerpt"`
	Body     string   `json:"body"`
	Category string   `json:"category"`
	Author   string   `json:"author"`
	Tags     []string `json:"tags"`
}

// StorytellerRecord is the data we index for a storyteller.
type StorytellerRecord struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Bio         string   `json:"bio"`
	Location    string   `json:"location"`
	Experiences []string `json:"experiences"`
}

// StoryworldRecord is the data we index for a storyworld.
type StoryworldRecord struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	Region      string `json:"region"`
}

func NewJournalRecord(a store.JournalArticle) JournalRecord {
	return JournalRecord{
		ID:       a.ID,
		Slug:     a.Slug,
		Title:    a.Title,
		Excerpt:  a.Excerpt,
		Body:     richtext.PlainText(a.Content),
		Category: a.Category,
		Author:   a.Author,
		Tags:     nonNilStrings(a.Tags),
	}
}

func NewStorytellerRecord(s store.Storyteller) StorytellerRecord {
	return StorytellerRecord{
		ID:          s.ID,
		Slug:        s.Slug,
		Name:        s.Name,
		Role:        s.Role,
		Bio:         s.Bio,
		Location:    s.Location,
		Experiences: nonNilStrings(s.SignatureExperiences),
	}
}

func NewStoryworldRecord(w store.Storyworld) StoryworldRecord {
	return StoryworldRecord{
		ID:          w.ID,
		Slug:        w.Slug,
		Title:       w.Title,
		Subtitle:    w.Subtitle,
		Description: w.Description,
		Region:      w.Region,
	}
}

// URLFor returns the public page for a result.
func URLFor(t ResultType, slug string) string {
	switch t {
	case ResultJournal:
		return "/journal/" + slug
	case ResultStoryteller:
		return "/storytellers/" + slug
	case ResultStoryworld:
		return "/experiences/" + slug
	default:
		return "/"
	}
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
