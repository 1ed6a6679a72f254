// Package mapview builds the data behind the explore map: one pin per
// storyworld with coordinates and the tile/pin presets for each theme mode.
package mapview

import (
	"strings"

	"storyworlds/site/internal/store"
)

const (
	ModeLight = "light"
	ModeDark  = "dark"
)

// Pin is a single storyworld marker.
type Pin struct {
	Slug   string  `json:"slug"`
	Title  string  `json:"title"`
	Region string  `json:"region,omitempty"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	URL    string  `json:"url"`
}

// Style is the presentation preset for one theme mode.
type Style struct {
	TileURL     string `json:"tileUrl"`
	PinColor    string `json:"pinColor"`
	Attribution string `json:"attribution"`
}

// Presets holds the two styles the client switches between.
type Presets struct {
	Light Style `json:"light"`
	Dark  Style `json:"dark"`
}

const attribution = `&copy; OpenStreetMap contributors &copy; CARTO`

// NewPresets builds the presets from the configured tile URLs.
func NewPresets(lightTileURL, darkTileURL string) Presets {
	return Presets{
		Light: Style{TileURL: lightTileURL, PinColor: "#8a6d3b", Attribution: attribution},
		Dark:  Style{TileURL: darkTileURL, PinColor: "#d4af37", Attribution: attribution},
	}
}

// For returns the preset for mode. Anything other than dark is light.
func (p Presets) For(mode string) Style {
	if strings.EqualFold(strings.TrimSpace(mode), ModeDark) {
		return p.Dark
	}
	return p.Light
}

// View is the payload the map script renders.
type View struct {
	Pins    []Pin      `json:"pins"`
	Center  [2]float64 `json:"center"`
	Zoom    int        `json:"zoom"`
	Presets Presets    `json:"presets"`
}

// ValidLatitude reports whether lat is a finite value in [-90, 90]. NaN
// fails every comparison and is rejected.
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lng is a finite value in [-180, 180].
func ValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// Pins returns one pin per storyworld that has both latitude and longitude,
// in input order. Out-of-range and non-finite coordinates are skipped.
func Pins(worlds []store.Storyworld) []Pin {
	pins := make([]Pin, 0, len(worlds))
	for _, w := range worlds {
		if w.Latitude == nil || w.Longitude == nil {
			continue
		}
		lat, lng := *w.Latitude, *w.Longitude
		if !ValidLatitude(lat) || !ValidLongitude(lng) {
			continue
		}
		pins = append(pins, Pin{
			Slug:   w.Slug,
			Title:  w.Title,
			Region: w.Region,
			Lat:    lat,
			Lng:    lng,
			URL:    "/experiences/" + w.Slug,
		})
	}
	return pins
}

// NewView assembles the map payload. The map centres on the mean pin
// position, or shows the whole world when there are no pins.
func NewView(worlds []store.Storyworld, presets Presets) View {
	pins := Pins(worlds)
	view := View{Pins: pins, Zoom: 2, Presets: presets}
	if len(pins) == 0 {
		return view
	}
	var lat, lng float64
	for _, p := range pins {
		lat += p.Lat
		lng += p.Lng
	}
	view.Center = [2]float64{lat / float64(len(pins)), lng / float64(len(pins))}
	if len(pins) == 1 {
		view.Zoom = 5
	}
	return view
}
