package taglist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]string{"  Desert ", "", "desert", "Stargazing", "   ", "Private  Chef", "private chef"})
	assert.Equal(t, List{"Desert", "Stargazing", "Private Chef"}, got)
	assert.NotNil(t, Normalize(nil))
	assert.Empty(t, Normalize(nil))
}

func TestAdd(t *testing.T) {
	l := List{"Falconry"}

	l, changed := l.Add("Dune dinner")
	require.True(t, changed)
	assert.Equal(t, List{"Falconry", "Dune dinner"}, l)

	l, changed = l.Add(" falconry ")
	assert.False(t, changed, "duplicate must not be admitted")
	assert.Len(t, l, 2)

	l, changed = l.Add("   ")
	assert.False(t, changed, "empty tag must not be admitted")
	assert.Len(t, l, 2)
}

func TestRemoveAndContains(t *testing.T) {
	l := List{"Falconry", "Dune dinner"}
	assert.True(t, l.Contains("FALCONRY"))
	l = l.Remove("falconry")
	assert.Equal(t, List{"Dune dinner"}, l)
	assert.False(t, l.Contains("Falconry"))
}

func TestParse(t *testing.T) {
	got := Parse([]string{"Hot air balloon", "Camel trek, hot air balloon,, Sandboarding"})
	assert.Equal(t, List{"Hot air balloon", "Camel trek", "Sandboarding"}, got)
	assert.Equal(t, "Hot air balloon, Camel trek, Sandboarding", got.String())
}
