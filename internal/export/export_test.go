package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storyworlds/site/internal/store"
)

func newTestService() *Service {
	svc := NewService("Storyworlds", "https://storyworlds.example/")
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestJournalSheet(t *testing.T) {
	published := time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)
	sheet := JournalSheet(store.JournalArticle{
		Slug:        "salt-roads",
		Title:       "The Salt Roads",
		Excerpt:     "Following caravans across the Sahel",
		Author:      "Amira Haddad",
		Category:    "Journeys",
		Content:     "<p>Dawn <em>breaks</em>.</p><script>bad()</script>",
		Tags:        store.StringList{"Desert", "Caravan"},
		PublishedAt: &published,
	})

	if sheet.URL != "/journal/salt-roads" {
		t.Errorf("unexpected url %q", sheet.URL)
	}
	if strings.Contains(string(sheet.Body), "script") {
		t.Error("sheet body must be sanitised")
	}
	if len(sheet.Facts) != 2 || sheet.Facts[0].Value != "Journeys" || sheet.Facts[1].Value != "1 min" {
		t.Errorf("unexpected facts %+v", sheet.Facts)
	}
}

func TestExportHTML(t *testing.T) {
	svc := newTestService()
	published := time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)
	sheet := JournalSheet(store.JournalArticle{
		Slug:        "salt-roads",
		Title:       "The Salt Roads",
		Author:      "Amira Haddad",
		Content:     "<p>Dawn breaks.</p>",
		Tags:        store.StringList{"Desert"},
		PublishedAt: &published,
	})

	result, err := svc.Export(context.Background(), sheet, FormatHTML)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "the-salt-roads.html" {
		t.Errorf("unexpected filename %q", result.Filename)
	}
	html := string(result.Data)
	for _, want := range []string{
		"<h1>The Salt Roads</h1>",
		"<p>Dawn breaks.</p>",
		"STORYWORLDS",
		"12 April 2026",
		"https://storyworlds.example/journal/salt-roads",
		"<span>Desert</span>",
		"Generated 1 May 2026",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered sheet missing %q", want)
		}
	}
}

func TestExportStorytellerEscapesFields(t *testing.T) {
	svc := newTestService()
	sheet := StorytellerSheet(store.Storyteller{
		Slug:     "yusuf",
		Name:     "Yusuf <Guide>",
		Role:     "Falconer",
		Location: "Merzouga",
		Bio:      "<p>Third-generation falconer.</p>",
	})

	result, err := svc.Export(context.Background(), sheet, FormatHTML)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	html := string(result.Data)
	if strings.Contains(html, "<Guide>") {
		t.Error("title must be escaped")
	}
	if !strings.Contains(html, "Merzouga") || !strings.Contains(html, "Storyteller press sheet") {
		t.Error("expected storyteller facts in sheet")
	}
}

func TestExportPDFUsesRenderer(t *testing.T) {
	svc := newTestService()
	var gotHTML string
	svc.pdf = func(_ context.Context, html string) ([]byte, error) {
		gotHTML = html
		return []byte("%PDF-1.7"), nil
	}

	result, err := svc.Export(context.Background(), Sheet{Title: "Kyoto in Autumn"}, FormatPDF)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.MimeType != "application/pdf" || result.Filename != "kyoto-in-autumn.pdf" {
		t.Errorf("unexpected result %+v", result)
	}
	if !strings.Contains(gotHTML, "Kyoto in Autumn") {
		t.Error("renderer should receive the sheet html")
	}
}

func TestExportErrors(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Export(context.Background(), Sheet{Title: "x"}, Format("docx")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	svc.pdf = func(context.Context, string) ([]byte, error) { return nil, ErrPDFDependencyMissing }
	if _, err := svc.Export(context.Background(), Sheet{Title: "x"}, FormatPDF); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Errorf("expected ErrPDFDependencyMissing, got %v", err)
	}

	result, err := svc.Export(context.Background(), Sheet{Title: "!!!"}, FormatHTML)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "press-sheet.html" {
		t.Errorf("expected fallback filename, got %q", result.Filename)
	}
}
