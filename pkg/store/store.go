// Package store holds the date-keyed in-memory aggregation of attack events
// and orchestrates fetch-or-fallback per date.
package store

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/attackmap-io/attackmap/pkg/metrics"
	"github.com/attackmap-io/attackmap/pkg/models"
	"github.com/attackmap-io/attackmap/pkg/provider"
)

// DateKey is the calendar-date layout used as the store's map key.
const DateKey = "2006-01-02"

// EventSink receives every stored event, e.g. for archival. Implementations
// must not block.
type EventSink interface {
	Write(date string, event models.AttackEvent)
}

// Store maps calendar dates to the complete event list for that date.
//
// A date's entry is only ever replaced wholesale: a re-fetch overwrites the
// previous list, it never merges. Entries are never deleted, so the map
// grows with every distinct date fetched over the process lifetime.
// Concurrent fetches for the same date race; last write wins.
type Store struct {
	adapter provider.Adapter
	synth   *SyntheticGenerator
	sink    EventSink

	mu     sync.RWMutex
	byDate map[string][]models.AttackEvent
}

// New creates a store fetching through the given adapter (may be nil, in
// which case every date is populated synthetically). rnd feeds the
// synthetic generator.
func New(adapter provider.Adapter, rnd *rand.Rand) *Store {
	return &Store{
		adapter: adapter,
		synth:   NewSyntheticGenerator(rnd),
		byDate:  make(map[string][]models.AttackEvent),
	}
}

// SetSink attaches an optional event sink. Call before serving traffic.
func (s *Store) SetSink(sink EventSink) { s.sink = sink }

// FetchAndAggregate resolves the adapter fetch for the date and replaces
// the date's entry with the result, falling back to synthetic events when
// the provider yields nothing. It always leaves a non-empty entry.
//
// Callers are expected to pre-validate the date; no validation happens here.
func (s *Store) FetchAndAggregate(ctx context.Context, date time.Time) {
	key := date.UTC().Format(DateKey)
	log.Info().Str("date", key).Msg("Fetching historical data")

	var events []models.AttackEvent
	origin := "provider"
	if s.adapter != nil {
		events = s.adapter.Fetch(ctx, date)
	}
	if len(events) == 0 {
		log.Warn().Str("date", key).Msg("No provider data available, generating synthetic data")
		events = s.synth.Generate(date)
		origin = "synthetic"
		metrics.SyntheticFallbacks.Inc()
	}
	metrics.EventsStored.WithLabelValues(origin).Add(float64(len(events)))

	s.mu.Lock()
	s.byDate[key] = events
	s.mu.Unlock()

	if s.sink != nil {
		for _, event := range events {
			s.sink.Write(key, event)
		}
	}

	log.Info().Str("date", key).Int("events", len(events)).Str("origin", origin).Msg("Stored events")
}

// Has reports whether the store currently holds an entry for the date key.
func (s *Store) Has(date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byDate[date]
	return ok
}

// AvailableDates returns all date keys with a current entry, sorted
// descending.
func (s *Store) AvailableDates() []string {
	s.mu.RLock()
	dates := make([]string, 0, len(s.byDate))
	for date := range s.byDate {
		dates = append(dates, date)
	}
	s.mu.RUnlock()

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// EventsFor returns the stored events for a date key, or an empty slice.
// It never triggers a fetch. The returned slice is the stored snapshot and
// must not be mutated.
func (s *Store) EventsFor(date string) []models.AttackEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byDate[date]
}

// SummaryFor folds the date's events into a summary, or nil if no entry
// exists.
func (s *Store) SummaryFor(date string) *models.HistoricalSummary {
	events := s.EventsFor(date)
	if len(events) == 0 {
		return nil
	}

	byCountry := make(map[string]int)
	byType := make(map[string]int)
	totalSeverity := 0
	for _, event := range events {
		byCountry[event.Source.Country]++
		byType[event.Type]++
		totalSeverity += event.Severity
	}

	return &models.HistoricalSummary{
		Date:            date,
		TotalEvents:     len(events),
		EventsByCountry: byCountry,
		EventsByType:    byType,
		AvgSeverity:     float64(totalSeverity) / float64(len(events)),
	}
}

// CountryStats folds the date's events into per-source-country aggregates,
// sorted descending by event count. Count ties break by country code so the
// order is deterministic.
func (s *Store) CountryStats(date string) []models.CountryStats {
	events := s.EventsFor(date)
	if len(events) == 0 {
		return nil
	}

	type agg struct {
		count       int
		severitySum int
		types       map[string]int
	}
	byCountry := make(map[string]*agg)
	for _, event := range events {
		a := byCountry[event.Source.Country]
		if a == nil {
			a = &agg{types: make(map[string]int)}
			byCountry[event.Source.Country] = a
		}
		a.count++
		a.severitySum += event.Severity
		a.types[event.Type]++
	}

	stats := make([]models.CountryStats, 0, len(byCountry))
	for country, a := range byCountry {
		stats = append(stats, models.CountryStats{
			Country:     country,
			TotalEvents: a.count,
			AvgSeverity: float64(a.severitySum) / float64(a.count),
			AttackTypes: a.types,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalEvents != stats[j].TotalEvents {
			return stats[i].TotalEvents > stats[j].TotalEvents
		}
		return stats[i].Country < stats[j].Country
	})
	return stats
}
