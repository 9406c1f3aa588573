// Package models defines the canonical attack event and derived aggregates.
package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Location is a geographic origin or destination of an attack.
// Lat/Lng carry per-event jitter so co-located events do not overlap.
type Location struct {
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// AttackEvent is the normalized record every provider adapter and the
// synthetic generator must produce. Immutable once constructed.
type AttackEvent struct {
	ID         string   `json:"id"`
	Source     Location `json:"source"`
	Target     Location `json:"target"`
	Type       string   `json:"type"`
	Severity   int      `json:"severity"`   // 1=low .. 5=critical
	Confidence float64  `json:"confidence"` // 0.0 .. 1.0
	Timestamp  int64    `json:"timestamp"`  // milliseconds since epoch
}

// Attack types
const (
	TypeDDoS       = "ddos"
	TypeBot        = "bot"
	TypeBruteforce = "bruteforce"
)

// AttackTypes lists all valid attack type tags.
var AttackTypes = []string{TypeDDoS, TypeBot, TypeBruteforce}

// NewAttackEvent builds a validated attack event with a fresh ID.
// Construction fails on invariant violations: source and target must be
// distinct countries, severity must be 1-5 and confidence within [0,1].
func NewAttackEvent(source, target Location, attackType string, severity int, confidence float64, timestampMs int64) (AttackEvent, error) {
	if source.Country == target.Country {
		return AttackEvent{}, fmt.Errorf("source and target country must differ, both are %q", source.Country)
	}
	if severity < 1 || severity > 5 {
		return AttackEvent{}, fmt.Errorf("severity %d out of range [1,5]", severity)
	}
	if confidence < 0 || confidence > 1 {
		return AttackEvent{}, fmt.Errorf("confidence %v out of range [0,1]", confidence)
	}
	return AttackEvent{
		ID:         uuid.NewString(),
		Source:     source,
		Target:     target,
		Type:       attackType,
		Severity:   severity,
		Confidence: confidence,
		Timestamp:  timestampMs,
	}, nil
}

// HistoricalSummary is the per-date aggregate derived from stored events.
type HistoricalSummary struct {
	Date            string         `json:"date"` // YYYY-MM-DD
	TotalEvents     int            `json:"total_events"`
	EventsByCountry map[string]int `json:"events_by_country"`
	EventsByType    map[string]int `json:"events_by_type"`
	AvgSeverity     float64        `json:"avg_severity"`
}

// CountryStats aggregates events by source country for one date.
type CountryStats struct {
	Country     string         `json:"country"`
	TotalEvents int            `json:"total_events"`
	AvgSeverity float64        `json:"avg_severity"`
	AttackTypes map[string]int `json:"attack_types"`
}
