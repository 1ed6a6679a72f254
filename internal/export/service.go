package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storyworlds/site/internal/richtext"
	"storyworlds/site/internal/store"
	"storyworlds/site/internal/util"
)

// PDFRenderer turns a complete HTML document into PDF bytes.
type PDFRenderer func(ctx context.Context, html string) ([]byte, error)

// Service provides press sheet export
type Service struct {
	siteName string
	baseURL  string
	pdf      PDFRenderer
	now      func() time.Time
}

// NewService creates an export service that renders PDFs with headless Chrome.
func NewService(siteName, baseURL string) *Service {
	return &Service{
		siteName: siteName,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pdf:      renderPDF,
		now:      time.Now,
	}
}

// JournalSheet builds the press sheet for an article.
func JournalSheet(a store.JournalArticle) Sheet {
	facts := []Fact{}
	if a.Category != "" {
		facts = append(facts, Fact{Label: "Category", Value: a.Category})
	}
	if minutes := richtext.ReadingMinutes(a.Content); minutes > 0 {
		facts = append(facts, Fact{Label: "Reading time", Value: fmt.Sprintf("%d min", minutes)})
	}
	return Sheet{
		Kind:     "Journal",
		Slug:     a.Slug,
		Title:    a.Title,
		Subtitle: a.Excerpt,
		Byline:   a.Author,
		Date:     a.PublishedAt,
		ImageURL: a.CoverImageURL,
		Body:     richtext.Trusted(a.Content),
		Tags:     a.Tags,
		Facts:    facts,
		URL:      "/journal/" + a.Slug,
	}
}

// StorytellerSheet builds the press sheet for a storyteller profile.
func StorytellerSheet(s store.Storyteller) Sheet {
	facts := []Fact{}
	if s.Location != "" {
		facts = append(facts, Fact{Label: "Based in", Value: s.Location})
	}
	return Sheet{
		Kind:     "Storyteller",
		Slug:     s.Slug,
		Title:    s.Name,
		Subtitle: s.Role,
		ImageURL: s.PortraitURL,
		Body:     richtext.Trusted(s.Bio),
		Tags:     s.SignatureExperiences,
		Facts:    facts,
		URL:      "/storytellers/" + s.Slug,
	}
}

// Export renders a sheet in the requested format
func (s *Service) Export(ctx context.Context, sheet Sheet, format Format) (*Result, error) {
	html, err := RenderSheetHTML(TemplateData{
		SiteName:    s.siteName,
		BaseURL:     s.baseURL,
		GeneratedAt: s.now(),
		Sheet:       sheet,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := util.Slugify(sheet.Title)
	if filename == "" {
		filename = "press-sheet"
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: filename + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		data, err := s.pdf(ctx, html)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: filename + ".pdf",
			MimeType: "application/pdf",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
