package search

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storyworlds/site/internal/store"
)

var (
	errMeiliUnavailable = errors.New("meilisearch is not available")
	errNoDatabase       = errors.New("search has no database")
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// SyncJournal indexes a published article or removes an unpublished one
// (fire-and-forget to Meilisearch). PG FTS needs no sync.
func (s *Service) SyncJournal(a store.JournalArticle) {
	if a.Published {
		s.async("index journal "+a.ID, func(m *Meili) error { return m.add(idxJournal, []JournalRecord{NewJournalRecord(a)}) })
		return
	}
	s.async("delete journal "+a.ID, func(m *Meili) error { return m.delete(idxJournal, a.ID) })
}

// SyncStoryteller indexes or removes a storyteller.
func (s *Service) SyncStoryteller(st store.Storyteller) {
	if st.Published {
		s.async("index storyteller "+st.ID, func(m *Meili) error {
			return m.add(idxStorytellers, []StorytellerRecord{NewStorytellerRecord(st)})
		})
		return
	}
	s.async("delete storyteller "+st.ID, func(m *Meili) error { return m.delete(idxStorytellers, st.ID) })
}

// SyncStoryworld indexes or removes a storyworld.
func (s *Service) SyncStoryworld(w store.Storyworld) {
	if w.Published {
		s.async("index storyworld "+w.ID, func(m *Meili) error {
			return m.add(idxStoryworlds, []StoryworldRecord{NewStoryworldRecord(w)})
		})
		return
	}
	s.async("delete storyworld "+w.ID, func(m *Meili) error { return m.delete(idxStoryworlds, w.ID) })
}

func (s *Service) async(what string, fn func(*Meili) error) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := fn(s.meili); err != nil {
			log.Printf("search: %s: %v", what, err)
		}
	}()
}

// ReindexAll replaces the contents of every Meilisearch index.
func (s *Service) ReindexAll(journal []JournalRecord, storytellers []StorytellerRecord, storyworlds []StoryworldRecord) error {
	if s.meili == nil || !s.meili.Healthy() {
		return errMeiliUnavailable
	}
	if err := s.meili.reset(); err != nil {
		return err
	}
	if err := s.meili.add(idxJournal, journal); err != nil {
		return fmt.Errorf("reindex journal: %w", err)
	}
	if err := s.meili.add(idxStorytellers, storytellers); err != nil {
		return fmt.Errorf("reindex storytellers: %w", err)
	}
	if err := s.meili.add(idxStoryworlds, storyworlds); err != nil {
		return fmt.Errorf("reindex storyworlds: %w", err)
	}
	return nil
}

// ReindexAllFromPG reindexes every published searchable row from PostgreSQL
// into Meilisearch and reports how many records were pushed.
func (s *Service) ReindexAllFromPG(ctx context.Context) (int, error) {
	if s.pgfts == nil {
		return 0, errNoDatabase
	}
	journal, storytellers, storyworlds, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.ReindexAll(journal, storytellers, storyworlds); err != nil {
		return 0, err
	}
	return len(journal) + len(storytellers) + len(storyworlds), nil
}

// Close stops background work.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
