package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storyworlds/site/internal/richtext"
	"storyworlds/site/internal/store"
)

// PgFTS searches the generated search_vector columns in PostgreSQL.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the whole site is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// headlineOptions makes ts_headline emit the shared highlight markers
// instead of its default <b> tags.
const headlineOptions = "MaxFragments=1,MaxWords=30,StartSel=" + HighlightStart + ",StopSel=" + HighlightEnd

// buildQuery returns the count and data statements for q. Only published
// rows are searched.
func buildQuery(q Query) (countSQL, dataSQL string, args []any) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(q.Offset, 0)

	tsQuery := "plainto_tsquery('english', $1)"
	args = []any{q.Text}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultJournal {
		where := "j.published AND j.search_vector @@ " + tsQuery
		if q.Category != "" {
			args = append(args, q.Category)
			where += fmt.Sprintf(" AND j.category = $%d", len(args))
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'journal'::text AS type, j.id, j.slug, j.title,
				ts_headline('english', coalesce(j.excerpt, ''), %s, '` + headlineOptions + `') AS snippet,
				ts_rank(j.search_vector, %s) AS rank
			FROM journal_articles j
			WHERE %s`, tsQuery, tsQuery, where))
	}

	// Storytellers and storyworlds have no category.
	if q.Category == "" && (q.FilterType == "" || q.FilterType == ResultStoryteller) {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'storyteller'::text AS type, s.id, s.slug, s.name AS title,
				ts_headline('english', coalesce(s.role, ''), %s, '` + headlineOptions + `') AS snippet,
				ts_rank(s.search_vector, %s) AS rank
			FROM storytellers s
			WHERE s.published AND s.search_vector @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.Category == "" && (q.FilterType == "" || q.FilterType == ResultStoryworld) {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'storyworld'::text AS type, w.id, w.slug, w.title,
				ts_headline('english', coalesce(w.subtitle, ''), %s, '` + headlineOptions + `') AS snippet,
				ts_rank(w.search_vector, %s) AS rank
			FROM storyworlds w
			WHERE w.published AND w.search_vector @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return "", "", nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL = fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL = fmt.Sprintf(`SELECT type, id, slug, title, snippet
		FROM (%s) sub
		ORDER BY rank DESC, title ASC
		LIMIT %d OFFSET %d`, union, limit, offset)
	return countSQL, dataSQL, args
}

// Search runs a UNION ALL query over the three searchable tables using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	countSQL, dataSQL, args := buildQuery(q)
	if dataSQL == "" {
		return nil, 0, nil
	}

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Slug, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		r.URL = URLFor(r.Type, r.Slug)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every published searchable row for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]JournalRecord, []StorytellerRecord, []StoryworldRecord, error) {
	journalRows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, title, excerpt, content, category, author, tags
		FROM journal_articles
		WHERE published
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load journal: %w", err)
	}
	defer journalRows.Close()

	journal := make([]JournalRecord, 0)
	for journalRows.Next() {
		var r JournalRecord
		var content string
		var tags store.StringList
		if err := journalRows.Scan(&r.ID, &r.Slug, &r.Title, &r.Excerpt, &content, &r.Category, &r.Author, &tags); err != nil {
			return nil, nil, nil, fmt.Errorf("scan journal: %w", err)
		}
		r.Body = richtext.PlainText(content)
		r.Tags = nonNilStrings(tags)
		journal = append(journal, r)
	}
	if err := journalRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate journal: %w", err)
	}

	tellerRows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, name, role, bio, location, signature_experiences
		FROM storytellers
		WHERE published
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load storytellers: %w", err)
	}
	defer tellerRows.Close()

	storytellers := make([]StorytellerRecord, 0)
	for tellerRows.Next() {
		var r StorytellerRecord
		var experiences store.StringList
		if err := tellerRows.Scan(&r.ID, &r.Slug, &r.Name, &r.Role, &r.Bio, &r.Location, &experiences); err != nil {
			return nil, nil, nil, fmt.Errorf("scan storyteller: %w", err)
		}
		r.Experiences = nonNilStrings(experiences)
		storytellers = append(storytellers, r)
	}
	if err := tellerRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate storytellers: %w", err)
	}

	worldRows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, title, subtitle, description, region
		FROM storyworlds
		WHERE published
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load storyworlds: %w", err)
	}
	defer worldRows.Close()

	storyworlds := make([]StoryworldRecord, 0)
	for worldRows.Next() {
		var r StoryworldRecord
		if err := worldRows.Scan(&r.ID, &r.Slug, &r.Title, &r.Subtitle, &r.Description, &r.Region); err != nil {
			return nil, nil, nil, fmt.Errorf("scan storyworld: %w", err)
		}
		storyworlds = append(storyworlds, r)
	}
	if err := worldRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate storyworlds: %w", err)
	}

	return journal, storytellers, storyworlds, nil
}
