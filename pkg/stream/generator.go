// Package stream provides the live demo event stream: a periodic random
// event generator and a websocket hub pushing events to clients.
//
// The stream shares the canonical event model and country table with the
// rest of the system but never touches the aggregation store.
package stream

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/attackmap-io/attackmap/pkg/geo"
	"github.com/attackmap-io/attackmap/pkg/metrics"
	"github.com/attackmap-io/attackmap/pkg/models"
)

// DefaultInterval is the pause between generated live events.
const DefaultInterval = 1500 * time.Millisecond

// liveJitterDegrees is the smaller jitter used for live demo events.
const liveJitterDegrees = 1.0

// NewRandomEvent generates one random attack event timestamped now.
// A raw 1-10 severity draw is normalized into the canonical 1-5 range.
func NewRandomEvent(rnd *rand.Rand) models.AttackEvent {
	source := geo.RandomCountry(rnd)
	target := geo.RandomCountryExcluding(rnd, source)

	rawSeverity := 1 + rnd.Intn(10)
	severity := (rawSeverity + 1) / 2
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}

	event, err := models.NewAttackEvent(
		geo.JitteredLocation(rnd, source, liveJitterDegrees),
		geo.JitteredLocation(rnd, target, liveJitterDegrees),
		models.AttackTypes[rnd.Intn(len(models.AttackTypes))],
		severity,
		0.5+rnd.Float64()*0.5,
		time.Now().UnixMilli(),
	)
	if err != nil {
		// Distinct countries and in-range draws make this unreachable.
		log.Error().Err(err).Msg("Live event construction failed")
	}
	return event
}

// Generator emits a random event on its channel at a fixed interval.
type Generator struct {
	rnd      *rand.Rand
	interval time.Duration
	events   chan models.AttackEvent
	done     chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool
}

// NewGenerator creates a live event generator. interval <= 0 uses
// DefaultInterval.
func NewGenerator(rnd *rand.Rand, interval time.Duration) *Generator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Generator{
		rnd:      rnd,
		interval: interval,
		events:   make(chan models.AttackEvent, 16),
		done:     make(chan struct{}),
	}
}

// Events returns the channel of generated events.
func (g *Generator) Events() <-chan models.AttackEvent {
	return g.events
}

// Start begins generating events in a goroutine.
func (g *Generator) Start() {
	if g.running.Swap(true) {
		return
	}

	g.wg.Add(1)
	go g.runLoop()
	log.Info().Dur("interval", g.interval).Msg("Live event generator started")
}

// Stop gracefully shuts down the generator and closes its channel.
func (g *Generator) Stop() {
	if !g.running.Swap(false) {
		return
	}
	close(g.done)
	g.wg.Wait()
	close(g.events)
	log.Info().Msg("Live event generator stopped")
}

func (g *Generator) runLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.LiveEvents.Inc()
			// Non-blocking send: a stalled hub drops events rather
			// than backing up the generator.
			select {
			case g.events <- NewRandomEvent(g.rnd):
			default:
			}
		case <-g.done:
			return
		}
	}
}
