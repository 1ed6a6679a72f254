package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListRoundTripsThroughJSONB(t *testing.T) {
	value, err := StringList{"Sahara by night", "Falconry"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["Sahara by night","Falconry"]`, value)

	var scanned StringList
	require.NoError(t, scanned.Scan([]byte(`["Sahara by night","Falconry"]`)))
	assert.Equal(t, StringList{"Sahara by night", "Falconry"}, scanned)
}

func TestStringListNilValues(t *testing.T) {
	value, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	var scanned StringList
	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, StringList{}, scanned)

	require.NoError(t, scanned.Scan("null"))
	assert.Equal(t, StringList{}, scanned)
}

func TestStringListScanRejectsUnknownSource(t *testing.T) {
	var scanned StringList
	assert.Error(t, scanned.Scan(42))
}

func TestStoryArcComplete(t *testing.T) {
	arc := StoryArc{
		{Phase: PhaseArrival, Heading: "Dusk landing"},
		{Phase: PhaseImmersion, Heading: "Desert camp"},
		{Phase: PhaseClimax, Heading: "Dune summit"},
		{Phase: PhaseReflection, Heading: "Morning tea"},
	}
	assert.True(t, arc.Complete())

	arc[2].Heading = ""
	assert.False(t, arc.Complete())
	assert.False(t, StoryArc{{Phase: PhaseArrival, Heading: "Only"}}.Complete())
}

func TestStoryArcScan(t *testing.T) {
	var arc StoryArc
	require.NoError(t, arc.Scan(`[{"phase":"arrival","heading":"Dusk landing","body":"Met at the runway."}]`))
	require.Len(t, arc, 1)
	assert.Equal(t, "Met at the runway.", arc[0].Body)
}
