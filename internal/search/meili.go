package search

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxJournal      = "storyworlds_journal"
	idxStorytellers = "storyworlds_storytellers"
	idxStoryworlds  = "storyworlds_storyworlds"
)

type indexSpec struct {
	uid        string
	rtyp       ResultType
	filterable []string
	searchable []string
	titleKey   string
	snippetKey string
}

var indexSpecs = []indexSpec{
	{
		uid:        idxJournal,
		rtyp:       ResultJournal,
		filterable: []string{"category", "tags"},
		searchable: []string{"title", "excerpt", "tags", "body", "author"},
		titleKey:   "title",
		snippetKey: "excerpt",
	},
	{
		uid:        idxStorytellers,
		rtyp:       ResultStoryteller,
		filterable: []string{"location"},
		searchable: []string{"name", "role", "experiences", "bio", "location"},
		titleKey:   "name",
		snippetKey: "role",
	},
	{
		uid:        idxStoryworlds,
		rtyp:       ResultStoryworld,
		filterable: []string{"region"},
		searchable: []string{"title", "subtitle", "region", "description"},
		titleKey:   "title",
		snippetKey: "subtitle",
	},
}

// Meili implements search and indexing via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// The client is returned even when the first health check fails; the
// background loop picks it up once the server becomes reachable.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	for _, idx := range indexSpecs {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		searchable := idx.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the target indexes in one multi-search and concatenates the hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errMeiliUnavailable
	}

	queries := buildSearchRequests(q)
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		spec, ok := specFor(sr.IndexUID)
		if !ok {
			continue
		}
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, spec))
		}
	}

	return results, total, nil
}

func buildSearchRequests(q Query) []*meili.SearchRequest {
	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	for _, spec := range indexSpecs {
		if q.FilterType != "" && q.FilterType != spec.rtyp {
			continue
		}
		// A category only narrows journal results; other kinds have none.
		if q.Category != "" && spec.rtyp != ResultJournal {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              spec.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{spec.titleKey, spec.snippetKey},
			HighlightPreTag:       HighlightStart,
			HighlightPostTag:      HighlightEnd,
		}
		if q.Category != "" {
			sr.Filter = []string{fmt.Sprintf("category = %q", q.Category)}
		}
		queries = append(queries, sr)
	}
	return queries
}

func specFor(uid string) (indexSpec, bool) {
	for _, spec := range indexSpecs {
		if spec.uid == uid {
			return spec, true
		}
	}
	return indexSpec{}, false
}

func hitToResult(hit meili.Hit, spec indexSpec) Result {
	r := Result{Type: spec.rtyp}
	r.ID = decodeString(hit, "id")
	r.Slug = decodeString(hit, "slug")
	r.Title = firstNonBlank(decodeFormattedString(hit, spec.titleKey), decodeString(hit, spec.titleKey))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, spec.snippetKey), decodeString(hit, spec.snippetKey))
	r.URL = URLFor(spec.rtyp, r.Slug)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// add upserts records into an index. records must be a slice.
func (m *Meili) add(uid string, records any) error {
	if v := reflect.ValueOf(records); v.Kind() == reflect.Slice && v.Len() == 0 {
		return nil
	}
	_, err := m.client.Index(uid).AddDocuments(records, nil)
	return err
}

func (m *Meili) delete(uid, id string) error {
	_, err := m.client.Index(uid).DeleteDocument(id, nil)
	return err
}

// reset drops and recreates every index. Meilisearch runs tasks in order, so
// documents added afterwards land in the fresh indexes.
func (m *Meili) reset() error {
	for _, spec := range indexSpecs {
		if _, err := m.client.DeleteIndex(spec.uid); err != nil {
			return fmt.Errorf("delete index %s: %w", spec.uid, err)
		}
	}
	m.configureIndexes()
	return nil
}
