package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuildPublishedListing(t *testing.T) {
	query, args, err := From("storytellers", "id", "slug").
		Where(Published()).
		OrderBy(Asc("display_order")).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, slug FROM storytellers WHERE published = $1 ORDER BY display_order ASC", query)
	assert.Equal(t, []any{true}, args)
}

func TestQueryBuildNotNullAndLimit(t *testing.T) {
	query, args, err := From("storyworlds", "id").
		Where(Published(), NotNull("latitude"), NotNull("longitude")).
		OrderBy(DescNullsLast("published_at")).
		Take(3).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM storyworlds WHERE published = $1 AND latitude IS NOT NULL AND longitude IS NOT NULL ORDER BY published_at DESC NULLS LAST LIMIT 3", query)
	assert.Equal(t, []any{true}, args)
}

func TestQueryBuildOrNumbersPlaceholders(t *testing.T) {
	query, args, err := From("page_meta").
		Where(Eq("published", true), Or(Eq("path", "/journal/a"), Eq("path", "/journal/*"))).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM page_meta WHERE published = $1 AND (path = $2 OR path = $3)", query)
	assert.Equal(t, []any{true, "/journal/a", "/journal/*"}, args)
}

func TestQueryBuildRejectsUnsafeIdentifiers(t *testing.T) {
	cases := []Query{
		From("themes; DROP TABLE themes"),
		From("themes", "id, password_hash"),
		From("themes").Where(Eq("slug = 'x' OR 1", 1)),
		From("themes").Where(NotNull("Latitude")),
		From("themes").OrderBy(Asc("display_order DESC")),
		From("themes").Where(Or()),
	}
	for _, q := range cases {
		_, _, err := q.Build()
		assert.Error(t, err)
	}
}

func TestQueryBuilderDoesNotShareFilterSlices(t *testing.T) {
	base := From("themes").Where(Published())
	a := base.Where(Eq("slug", "a"))
	b := base.Where(Eq("slug", "b"))

	_, argsA, err := a.Build()
	require.NoError(t, err)
	_, argsB, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []any{true, "a"}, argsA)
	assert.Equal(t, []any{true, "b"}, argsB)
}

func TestSectionWildcard(t *testing.T) {
	assert.Equal(t, "/journal/*", sectionWildcard("/journal/slow-travel"))
	assert.Equal(t, "", sectionWildcard("/journal"))
	assert.Equal(t, "", sectionWildcard("/"))
}
