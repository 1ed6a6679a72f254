package mapview

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storyworlds/site/internal/store"
)

func coord(v float64) *float64 { return &v }

func TestPinsRequireBothCoordinates(t *testing.T) {
	worlds := []store.Storyworld{
		{Slug: "sahara", Title: "Sahara", Latitude: coord(31.1), Longitude: coord(-4.0)},
		{Slug: "kyoto", Title: "Kyoto", Latitude: coord(35.0)},
		{Slug: "patagonia", Title: "Patagonia", Longitude: coord(-72.9)},
		{Slug: "nowhere", Title: "Nowhere"},
		{Slug: "bad", Title: "Bad", Latitude: coord(120), Longitude: coord(10)},
		{Slug: "bali", Title: "Bali", Region: "Indonesia", Latitude: coord(-8.4), Longitude: coord(115.2)},
	}

	pins := Pins(worlds)
	require.Len(t, pins, 2)
	assert.Equal(t, "sahara", pins[0].Slug)
	assert.Equal(t, "/experiences/bali", pins[1].URL)
	assert.Equal(t, "Indonesia", pins[1].Region)
}

func TestPinsSkipNonFiniteCoordinates(t *testing.T) {
	worlds := []store.Storyworld{
		{Slug: "nan", Title: "NaN", Latitude: coord(math.NaN()), Longitude: coord(10)},
		{Slug: "inf", Title: "Inf", Latitude: coord(10), Longitude: coord(math.Inf(1))},
		{Slug: "oslo", Title: "Oslo", Latitude: coord(59.9), Longitude: coord(10.7)},
	}

	pins := Pins(worlds)

	require.Len(t, pins, 1)
	assert.Equal(t, "oslo", pins[0].Slug)
	assert.False(t, ValidLatitude(math.NaN()))
	assert.False(t, ValidLongitude(math.Inf(-1)))
	assert.True(t, ValidLongitude(-180))
}

func TestPinsEmpty(t *testing.T) {
	pins := Pins(nil)
	assert.NotNil(t, pins)
	assert.Empty(t, pins)
}

func TestPresetsFor(t *testing.T) {
	p := NewPresets("https://light/{z}/{x}/{y}.png", "https://dark/{z}/{x}/{y}.png")
	assert.Equal(t, p.Dark, p.For("dark"))
	assert.Equal(t, p.Dark, p.For(" DARK "))
	assert.Equal(t, p.Light, p.For("light"))
	assert.Equal(t, p.Light, p.For(""))
	assert.NotEqual(t, p.Light.PinColor, p.Dark.PinColor)
	assert.Equal(t, "https://dark/{z}/{x}/{y}.png", p.For("dark").TileURL)
}

func TestNewView(t *testing.T) {
	presets := NewPresets("l", "d")

	empty := NewView(nil, presets)
	assert.Empty(t, empty.Pins)
	assert.Equal(t, [2]float64{0, 0}, empty.Center)
	assert.Equal(t, 2, empty.Zoom)

	single := NewView([]store.Storyworld{{Slug: "a", Latitude: coord(10), Longitude: coord(20)}}, presets)
	assert.Equal(t, [2]float64{10, 20}, single.Center)
	assert.Equal(t, 5, single.Zoom)

	pair := NewView([]store.Storyworld{
		{Slug: "a", Latitude: coord(10), Longitude: coord(20)},
		{Slug: "b", Latitude: coord(30), Longitude: coord(40)},
	}, presets)
	assert.Equal(t, [2]float64{20, 30}, pair.Center)
	assert.Equal(t, presets, pair.Presets)
}
