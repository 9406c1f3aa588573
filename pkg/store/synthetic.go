package store

import (
	"math/rand"
	"time"

	"github.com/attackmap-io/attackmap/pkg/geo"
	"github.com/attackmap-io/attackmap/pkg/models"
)

// Synthetic event count bounds per date.
const (
	minSyntheticEvents = 30
	maxSyntheticEvents = 80
)

// SyntheticGenerator produces plausible random events for a date when no
// provider data is available. It has no failure mode.
type SyntheticGenerator struct {
	rnd *rand.Rand
}

// NewSyntheticGenerator creates a generator drawing from rnd.
func NewSyntheticGenerator(rnd *rand.Rand) *SyntheticGenerator {
	return &SyntheticGenerator{rnd: rnd}
}

// Generate returns between 30 and 80 random events timestamped at the
// date's UTC midnight, each with a distinct source/target country pair.
func (g *SyntheticGenerator) Generate(date time.Time) []models.AttackEvent {
	count := minSyntheticEvents + g.rnd.Intn(maxSyntheticEvents-minSyntheticEvents+1)
	y, m, d := date.UTC().Date()
	timestamp := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()

	events := make([]models.AttackEvent, 0, count)
	for i := 0; i < count; i++ {
		source := geo.RandomCountry(g.rnd)
		target := geo.RandomCountryExcluding(g.rnd, source)

		event, err := models.NewAttackEvent(
			geo.JitteredLocation(g.rnd, source, geo.JitterDegrees),
			geo.JitteredLocation(g.rnd, target, geo.JitterDegrees),
			models.AttackTypes[g.rnd.Intn(len(models.AttackTypes))],
			1+g.rnd.Intn(5),
			0.5+g.rnd.Float64()*0.5,
			timestamp,
		)
		if err != nil {
			// Distinct countries and in-range draws make this unreachable.
			continue
		}
		events = append(events, event)
	}
	return events
}
