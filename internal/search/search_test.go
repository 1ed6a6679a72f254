package search

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storyworlds/site/internal/store"
)

func TestParseResultType(t *testing.T) {
	assert.Equal(t, ResultJournal, ParseResultType("Journal"))
	assert.Equal(t, ResultStoryworld, ParseResultType(" storyworld "))
	assert.Equal(t, ResultType(""), ParseResultType("press"))
}

func TestNewJournalRecordStripsMarkup(t *testing.T) {
	r := NewJournalRecord(store.JournalArticle{
		ID:      "j1",
		Slug:    "desert-light",
		Title:   "Desert Light",
		Content: "<p>Amber <strong>dunes</strong></p><script>x()</script>",
	})
	assert.Equal(t, "Amber dunes", r.Body)
	assert.NotNil(t, r.Tags)
}

func TestURLFor(t *testing.T) {
	assert.Equal(t, "/journal/a", URLFor(ResultJournal, "a"))
	assert.Equal(t, "/storytellers/b", URLFor(ResultStoryteller, "b"))
	assert.Equal(t, "/experiences/c", URLFor(ResultStoryworld, "c"))
}

func TestBuildQueryOnlySearchesPublishedRows(t *testing.T) {
	countSQL, dataSQL, args := buildQuery(Query{Text: "desert"})
	require.NotEmpty(t, dataSQL)
	assert.Equal(t, []any{"desert"}, args)
	assert.Contains(t, countSQL, "count(*)")
	assert.Equal(t, 3, strings.Count(dataSQL, ".published AND"))
	assert.Contains(t, dataSQL, "LIMIT 20 OFFSET 0")
}

func TestBuildQueryCategoryNarrowsToJournal(t *testing.T) {
	_, dataSQL, args := buildQuery(Query{Text: "tea", Category: "Culinary", Limit: 5, Offset: -3})
	assert.Equal(t, []any{"tea", "Culinary"}, args)
	assert.Contains(t, dataSQL, "j.category = $2")
	assert.NotContains(t, dataSQL, "FROM storytellers")
	assert.NotContains(t, dataSQL, "FROM storyworlds")
	assert.Contains(t, dataSQL, "LIMIT 5 OFFSET 0")
}

func TestBuildQueryFilterType(t *testing.T) {
	_, dataSQL, _ := buildQuery(Query{Text: "guide", FilterType: ResultStoryteller})
	assert.Contains(t, dataSQL, "FROM storytellers")
	assert.NotContains(t, dataSQL, "FROM journal_articles")

	_, dataSQL, _ = buildQuery(Query{Text: "guide", FilterType: ResultStoryteller, Category: "x"})
	assert.Empty(t, dataSQL)
}

func TestBuildSearchRequests(t *testing.T) {
	all := buildSearchRequests(Query{Text: "dunes"})
	require.Len(t, all, 3)
	assert.Equal(t, "dunes", all[0].Query)
	assert.Equal(t, int64(20), all[0].Limit)

	journal := buildSearchRequests(Query{Text: "dunes", Category: "Travel"})
	require.Len(t, journal, 1)
	assert.Equal(t, idxJournal, journal[0].IndexUID)
	assert.Equal(t, []string{`category = "Travel"`}, journal[0].Filter)
}

func TestBackendsShareHighlightMarkers(t *testing.T) {
	requests := buildSearchRequests(Query{Text: "dunes"})
	require.NotEmpty(t, requests)
	for _, sr := range requests {
		assert.Equal(t, HighlightStart, sr.HighlightPreTag)
		assert.Equal(t, HighlightEnd, sr.HighlightPostTag)
	}

	_, dataSQL, _ := buildQuery(Query{Text: "dunes"})
	assert.Equal(t, 3, strings.Count(dataSQL, "StartSel="+HighlightStart+",StopSel="+HighlightEnd))
	assert.NotContains(t, dataSQL, "<b>")
}

func TestHighlightHTMLEscapesSourceText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Alps at dawn", "Alps at dawn"},
		{"marked", HighlightStart + "Alps" + HighlightEnd + " at dawn", "<mark>Alps</mark> at dawn"},
		{"markup in source", "<script>" + HighlightStart + "x" + HighlightEnd + " & y", "&lt;script&gt;<mark>x</mark> &amp; y"},
		{"unclosed", "the " + HighlightStart + "Alps", "the <mark>Alps</mark>"},
		{"stray end", "Alps" + HighlightEnd + " again", "Alps again"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, string(HighlightHTML(tc.in)))
		})
	}
}

func TestStripHighlights(t *testing.T) {
	assert.Equal(t, "Walking the Alps", StripHighlights("Walking the "+HighlightStart+"Alps"+HighlightEnd))
}

func TestHitToResultPrefersHighlightedFields(t *testing.T) {
	raw := func(v any) json.RawMessage {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return b
	}
	hit := meili.Hit{
		"id":         raw("s1"),
		"slug":       raw("amira"),
		"name":       raw("Amira"),
		"role":       raw("Desert guide"),
		"_formatted": raw(map[string]any{"name": HighlightStart + "Amira" + HighlightEnd, "experiences": []string{"x"}}),
	}
	spec, ok := specFor(idxStorytellers)
	require.True(t, ok)

	r := hitToResult(hit, spec)
	assert.Equal(t, ResultStoryteller, r.Type)
	assert.Equal(t, HighlightStart+"Amira"+HighlightEnd, r.Title)
	assert.Equal(t, "Desert guide", r.Snippet)
	assert.Equal(t, "/storytellers/amira", r.URL)
}

func TestServiceWithoutBackendsReturnsEmpty(t *testing.T) {
	svc := NewService(nil, nil)
	resp := svc.Search(context.Background(), Query{Text: "anything"})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "anything", resp.Query)

	// Sync calls are no-ops without Meilisearch.
	svc.SyncJournal(store.JournalArticle{ID: "j1", Published: true})
	svc.SyncStoryteller(store.Storyteller{ID: "s1"})

	_, err := svc.ReindexAllFromPG(context.Background())
	assert.Error(t, err)
	assert.ErrorIs(t, svc.ReindexAll(nil, nil, nil), errMeiliUnavailable)
}
