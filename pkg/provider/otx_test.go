package provider

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attackmap-io/attackmap/pkg/models"
)

func TestMapTags(t *testing.T) {
	tests := []struct {
		name     string
		tags     []string
		expected string
	}{
		{"exact ddos", []string{"DDoS"}, models.TypeDDoS},
		{"exact botnet", []string{"botnet"}, models.TypeBot},
		{"exact ssh", []string{"SSH"}, models.TypeBruteforce},
		{"exact beats substring", []string{"password-spray", "scan"}, models.TypeDDoS},
		{"substring flood", []string{"syn-flood-campaign"}, models.TypeDDoS},
		{"substring password", []string{"password-spray"}, models.TypeBruteforce},
		{"substring trojan", []string{"banking-trojan"}, models.TypeBot},
		{"ddos group outranks bot group", []string{"robotic-flood"}, models.TypeDDoS},
		{"no match defaults", []string{"phishing"}, models.TypeDDoS},
		{"empty defaults", nil, models.TypeDDoS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapTags(tt.tags); got != tt.expected {
				t.Errorf("MapTags(%v): expected %s, got %s", tt.tags, tt.expected, got)
			}
		})
	}
}

func pulseWithIndicators(tlp string, count int, tags ...string) Pulse {
	indicators := make([]Indicator, count)
	for i := range indicators {
		indicators[i] = Indicator{Type: "IPv4", Indicator: "192.0.2.1"}
	}
	return Pulse{ID: "p", TLP: tlp, Tags: tags, Indicators: indicators}
}

func TestPulseSeverity(t *testing.T) {
	tests := []struct {
		name     string
		pulse    Pulse
		expected int
	}{
		{"white low count", pulseWithIndicators("white", 10), 2},
		{"red capped at 5", pulseWithIndicators("red", 150, "apt"), 5},
		{"amber half boost truncates", pulseWithIndicators("amber", 60), 4}, // 4.5 -> 4
		{"green full boost", pulseWithIndicators("green", 150), 4},
		{"white critical tag", pulseWithIndicators("white", 10, "Targeted"), 3},
		{"unknown tlp", pulseWithIndicators("purple", 1), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PulseSeverity(tt.pulse); got != tt.expected {
				t.Errorf("PulseSeverity: expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestPulseConfidence(t *testing.T) {
	tests := []struct {
		name     string
		pulse    Pulse
		expected float64
	}{
		{"red high count capped", pulseWithIndicators("red", 60), 1.0},
		{"white sparse floored", pulseWithIndicators("white", 2), 0.5},
		{"green mid count", pulseWithIndicators("green", 20), 0.7},
		{"amber boosted", pulseWithIndicators("amber", 51), 0.9},
		{"unknown tlp sparse", pulseWithIndicators("", 1), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PulseConfidence(tt.pulse); got != tt.expected {
				t.Errorf("PulseConfidence: expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNormalizePulse(t *testing.T) {
	adapter := NewOTX("key", "", rand.New(rand.NewSource(1)), nil)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	pulse := Pulse{
		ID:      "pulse-1",
		TLP:     "amber",
		Created: "2024-01-14T08:30:00",
		Tags:    []string{"botnet"},
		Indicators: []Indicator{
			{Type: "IPv4", Indicator: "192.0.2.1"},
			{Type: "domain", Indicator: "bad.example"},
			{Type: "IPv6", Indicator: "2001:db8::1"},
		},
	}

	events := adapter.NormalizePulse(pulse, date)
	if len(events) != 2 {
		t.Fatalf("Expected one event per IP indicator (2), got %d", len(events))
	}

	wantTs := time.Date(2024, 1, 14, 8, 30, 0, 0, time.UTC).UnixMilli()
	for _, event := range events {
		if event.Type != models.TypeBot {
			t.Errorf("Expected bot, got %s", event.Type)
		}
		if event.Severity != 4 {
			t.Errorf("Expected severity 4, got %d", event.Severity)
		}
		if event.Source.Country == event.Target.Country {
			t.Error("Source and target must differ")
		}
		if event.Timestamp != wantTs {
			t.Errorf("Expected pulse creation timestamp %d, got %d", wantTs, event.Timestamp)
		}
	}
}

func TestNormalizePulse_Caps(t *testing.T) {
	adapter := NewOTX("key", "", rand.New(rand.NewSource(2)), nil)
	pulse := pulseWithIndicators("white", 20)

	events := adapter.NormalizePulse(pulse, time.Now())
	if len(events) != maxEventsPerPulse {
		t.Errorf("Expected cap of %d events, got %d", maxEventsPerPulse, len(events))
	}
}

func TestNormalizePulse_NoIPIndicators(t *testing.T) {
	adapter := NewOTX("key", "", rand.New(rand.NewSource(3)), nil)
	pulse := Pulse{
		ID:         "pulse-2",
		TLP:        "red",
		Indicators: []Indicator{{Type: "domain", Indicator: "bad.example"}},
	}

	if events := adapter.NormalizePulse(pulse, time.Now()); len(events) != 0 {
		t.Errorf("Expected no events without IP indicators, got %d", len(events))
	}
}

func TestNormalizePulse_BadCreatedFallsBack(t *testing.T) {
	adapter := NewOTX("key", "", rand.New(rand.NewSource(4)), nil)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	pulse := pulseWithIndicators("green", 1)
	pulse.Created = "not-a-timestamp"

	events := adapter.NormalizePulse(pulse, date)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp != date.UnixMilli() {
		t.Errorf("Expected fallback to requested date midnight, got %d", events[0].Timestamp)
	}
}

func TestOTXFetch_DedupAcrossCalls(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("X-OTX-API-KEY") != "secret" {
			t.Errorf("Expected API key header, got %q", r.Header.Get("X-OTX-API-KEY"))
		}
		w.Write([]byte(`{"results": [{
			"id": "pulse-dedup",
			"tlp": "green",
			"created": "2024-01-14T08:30:00",
			"tags": ["ddos"],
			"indicators": [{"type": "IPv4", "indicator": "192.0.2.1"}]
		}]}`))
	}))
	defer server.Close()

	adapter := NewOTX("secret", server.URL, rand.New(rand.NewSource(5)), nil)

	first := adapter.Fetch(context.Background(), time.Now())
	if len(first) != 1 {
		t.Fatalf("Expected 1 event on first fetch, got %d", len(first))
	}

	second := adapter.Fetch(context.Background(), time.Now())
	if len(second) != 0 {
		t.Errorf("Expected 0 events on second fetch of same pulse, got %d", len(second))
	}
	if calls != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", calls)
	}
}

func TestOTXFetch_ConsumesPulsesWithoutEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{
			"id": "pulse-no-ips",
			"tlp": "red",
			"indicators": [{"type": "domain", "indicator": "bad.example"}]
		}]}`))
	}))
	defer server.Close()

	adapter := NewOTX("secret", server.URL, rand.New(rand.NewSource(6)), nil)
	adapter.Fetch(context.Background(), time.Now())

	if !adapter.consumed.Contains("pulse-no-ips") {
		t.Error("Pulse without IP indicators must still be marked consumed")
	}
}

func TestOTXFetch_NoKey(t *testing.T) {
	adapter := NewOTX("", "", rand.New(rand.NewSource(7)), nil)
	if events := adapter.Fetch(context.Background(), time.Now()); len(events) != 0 {
		t.Errorf("Expected no events without an API key, got %d", len(events))
	}
}

func TestOTXPulseByID_Cached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path == "/pulses/subscribed" {
			w.Write([]byte(`{"results": [{"id": "pulse-c", "tlp": "white"}]}`))
			return
		}
		w.Write([]byte(`{"id": "pulse-c", "tlp": "white"}`))
	}))
	defer server.Close()

	adapter := NewOTX("secret", server.URL, rand.New(rand.NewSource(8)), nil)
	adapter.Fetch(context.Background(), time.Now())

	pulse := adapter.PulseByID(context.Background(), "pulse-c")
	if pulse == nil || pulse.ID != "pulse-c" {
		t.Fatalf("Expected cached pulse, got %+v", pulse)
	}
	if calls != 1 {
		t.Errorf("Expected cache hit to avoid a second upstream call, got %d calls", calls)
	}
}

func TestConsumedSet(t *testing.T) {
	set := NewConsumedSet("test", nil)

	if set.Contains("a") {
		t.Error("Fresh set should not contain anything")
	}
	set.Add("a")
	if !set.Contains("a") {
		t.Error("Expected membership after Add")
	}
	set.Add("a")
	if set.Len() != 1 {
		t.Errorf("Expected idempotent Add, len=%d", set.Len())
	}
}
