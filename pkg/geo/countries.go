// Package geo provides the country reference-coordinate table and the
// randomized placement helpers shared by all event producers.
package geo

import (
	"math/rand"
	"sort"

	"github.com/attackmap-io/attackmap/pkg/models"
)

// DefaultCountry is used when a provider record carries an unknown country code.
const DefaultCountry = "US"

// JitterDegrees is the uniform jitter bound applied to reference coordinates
// for provider-derived and synthetic events.
const JitterDegrees = 2.0

// Coordinate is a country's reference point.
type Coordinate struct {
	Lat float64
	Lng float64
}

// CountryCoordinates maps ISO country codes to their reference coordinate.
var CountryCoordinates = map[string]Coordinate{
	"US": {37.7749, -95.7129},
	"CN": {35.9042, 104.1954},
	"RU": {61.5240, 105.3188},
	"IN": {20.5937, 78.9629},
	"BR": {-14.2350, -51.9253},
	"JP": {36.2048, 138.2529},
	"DE": {51.1657, 10.4515},
	"GB": {55.3781, -3.4360},
	"FR": {46.2276, 2.2137},
	"AU": {-25.2744, 133.7751},
	"CA": {56.1304, -106.3468},
	"KR": {35.9078, 127.7669},
	"IT": {41.8719, 12.5674},
	"ES": {40.4637, -3.7492},
	"MX": {23.6345, -102.5528},
	"NL": {52.1326, 5.2913},
	"SE": {60.1282, 18.6435},
	"PL": {51.9194, 19.1451},
	"TR": {38.9637, 35.2433},
	"UA": {48.3794, 31.1656},
}

// countryCodes is the sorted list of known codes, for deterministic draws.
var countryCodes []string

func init() {
	countryCodes = make([]string, 0, len(CountryCoordinates))
	for code := range CountryCoordinates {
		countryCodes = append(countryCodes, code)
	}
	sort.Strings(countryCodes)
}

// Known reports whether the country code has a reference coordinate.
func Known(code string) bool {
	_, ok := CountryCoordinates[code]
	return ok
}

// Normalize returns the code itself if known, DefaultCountry otherwise.
func Normalize(code string) string {
	if Known(code) {
		return code
	}
	return DefaultCountry
}

// RandomCountry picks a country code uniformly at random.
func RandomCountry(rnd *rand.Rand) string {
	return countryCodes[rnd.Intn(len(countryCodes))]
}

// RandomCountryExcluding picks a country code uniformly at random,
// never returning the excluded code.
func RandomCountryExcluding(rnd *rand.Rand, exclude string) string {
	for {
		code := countryCodes[rnd.Intn(len(countryCodes))]
		if code != exclude {
			return code
		}
	}
}

// JitteredLocation places a country's reference coordinate with independent
// uniform jitter within ±bound degrees on each axis.
func JitteredLocation(rnd *rand.Rand, code string, bound float64) models.Location {
	coord := CountryCoordinates[Normalize(code)]
	return models.Location{
		Country: Normalize(code),
		Lat:     coord.Lat + (rnd.Float64()*2-1)*bound,
		Lng:     coord.Lng + (rnd.Float64()*2-1)*bound,
	}
}
