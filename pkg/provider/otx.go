package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/attackmap-io/attackmap/pkg/geo"
	"github.com/attackmap-io/attackmap/pkg/metrics"
	"github.com/attackmap-io/attackmap/pkg/models"
	"github.com/attackmap-io/attackmap/pkg/ttlcache"
)

// DefaultOTXBaseURL is the production AlienVault OTX API endpoint.
const DefaultOTXBaseURL = "https://otx.alienvault.com/api/v1"

const (
	pulseLimit    = 50
	pulseCacheTTL = time.Hour

	// maxEventsPerPulse caps how many events a single pulse may emit.
	maxEventsPerPulse = 5
)

// Indicator is one threat indicator inside a pulse.
type Indicator struct {
	Type      string `json:"type"` // IPv4, IPv6, domain, ...
	Indicator string `json:"indicator"`
}

// Pulse is a raw OTX record: a bundle of indicators with shared metadata.
type Pulse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	TLP        string      `json:"tlp"` // red, amber, green, white
	Created    string      `json:"created"`
	Tags       []string    `json:"tags"`
	Indicators []Indicator `json:"indicators"`
}

type pulseResponse struct {
	Results []Pulse `json:"results"`
}

// tagTypes maps exact (lowercased) pulse tags to attack types.
var tagTypes = map[string]string{
	"ddos":        models.TypeDDoS,
	"dos":         models.TypeDDoS,
	"botnet":      models.TypeBot,
	"bot":         models.TypeBot,
	"malware":     models.TypeBot,
	"bruteforce":  models.TypeBruteforce,
	"brute-force": models.TypeBruteforce,
	"ssh":         models.TypeBruteforce,
	"ftp":         models.TypeBruteforce,
	"rdp":         models.TypeBruteforce,
	"scan":        models.TypeDDoS,
	"exploit":     models.TypeBot,
}

// tagSubstringRules are the fallback heuristics, evaluated per tag in
// priority order after the exact table misses.
var tagSubstringRules = []struct {
	substrings []string
	attackType string
}{
	{[]string{"ddos", "flood", "amplification"}, models.TypeDDoS},
	{[]string{"brute", "password", "login"}, models.TypeBruteforce},
	{[]string{"bot", "trojan", "rat"}, models.TypeBot},
}

// criticalTags boost pulse severity when present.
var criticalTags = map[string]bool{
	"apt":      true,
	"critical": true,
	"high":     true,
	"severe":   true,
	"targeted": true,
}

// TLP base scores for severity and confidence derivation.
var (
	tlpSeverity = map[string]float64{
		"red":   5,
		"amber": 4,
		"green": 3,
		"white": 2,
	}
	tlpConfidence = map[string]float64{
		"red":   0.9,
		"amber": 0.8,
		"green": 0.7,
		"white": 0.6,
	}
)

// MapTags resolves pulse tags to an attack type: exact table first, then
// substring heuristics per tag, defaulting to ddos.
func MapTags(tags []string) string {
	if len(tags) == 0 {
		return models.TypeDDoS
	}

	for _, tag := range tags {
		if t, ok := tagTypes[strings.ToLower(tag)]; ok {
			return t
		}
	}

	for _, tag := range tags {
		lower := strings.ToLower(tag)
		for _, rule := range tagSubstringRules {
			for _, sub := range rule.substrings {
				if strings.Contains(lower, sub) {
					return rule.attackType
				}
			}
		}
	}

	return models.TypeDDoS
}

// PulseSeverity derives a 1-5 severity from TLP, indicator count and tags.
// Boosts are applied to a running float total capped at 5, then truncated.
func PulseSeverity(pulse Pulse) int {
	base, ok := tlpSeverity[strings.ToLower(pulse.TLP)]
	if !ok {
		base = 2
	}

	count := len(pulse.Indicators)
	if count > 100 {
		base = math.Min(5, base+1)
	} else if count > 50 {
		base = math.Min(5, base+0.5)
	}

	for _, tag := range pulse.Tags {
		if criticalTags[strings.ToLower(tag)] {
			base = math.Min(5, base+1)
			break
		}
	}

	severity := int(base)
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}
	return severity
}

// PulseConfidence derives a [0.5,1.0] confidence from TLP and indicator
// count, rounded to two decimals.
func PulseConfidence(pulse Pulse) float64 {
	confidence, ok := tlpConfidence[strings.ToLower(pulse.TLP)]
	if !ok {
		confidence = 0.6
	}

	count := len(pulse.Indicators)
	if count > 50 {
		confidence = math.Min(1.0, confidence+0.1)
	} else if count < 5 {
		confidence = math.Max(0.5, confidence-0.1)
	}

	return math.Round(confidence*100) / 100
}

// pulseTimestampLayouts are tried in order against a pulse's created time.
var pulseTimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func pulseTimestamp(created string, date time.Time) int64 {
	for _, layout := range pulseTimestampLayouts {
		if t, err := time.Parse(layout, created); err == nil {
			return t.UnixMilli()
		}
	}
	return midnightMillis(date)
}

// OTX fetches subscribed pulses from AlienVault OTX and normalizes them.
//
// Raw pulses are kept in a one-hour TTL cache keyed by pulse ID, and every
// processed pulse ID goes into a permanent consumed set so the same pulse
// never produces events twice in one process lifetime.
type OTX struct {
	apiKey  string
	baseURL string
	client  *http.Client
	rnd     *rand.Rand

	pulses   *ttlcache.Cache[string, Pulse]
	consumed *ConsumedSet
}

// NewOTX creates the pulse adapter. baseURL defaults to the production
// endpoint when empty; redisClient (optional) backs the consumed set.
func NewOTX(apiKey, baseURL string, rnd *rand.Rand, redisClient *redis.Client) *OTX {
	if baseURL == "" {
		baseURL = DefaultOTXBaseURL
	}
	return &OTX{
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   newHTTPClient(),
		rnd:      rnd,
		pulses:   ttlcache.New[string, Pulse](pulseCacheTTL),
		consumed: NewConsumedSet("otx", redisClient),
	}
}

// Name implements Adapter.
func (o *OTX) Name() string { return "otx" }

// Fetch implements Adapter. Each not-yet-consumed pulse with IP indicators
// emits up to maxEventsPerPulse events; every pulse seen here is marked
// consumed regardless of how many events it produced.
func (o *OTX) Fetch(ctx context.Context, date time.Time) []models.AttackEvent {
	if o.apiKey == "" {
		log.Warn().Msg("OTX API key not configured, returning no records")
		metrics.FetchesTotal.WithLabelValues(o.Name(), "empty").Inc()
		return nil
	}

	pulses, err := o.getPulses(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching OTX pulses")
		metrics.ProviderErrors.WithLabelValues(o.Name()).Inc()
		metrics.FetchesTotal.WithLabelValues(o.Name(), "error").Inc()
		return nil
	}

	var events []models.AttackEvent
	for _, pulse := range pulses {
		if pulse.ID == "" {
			continue
		}
		o.pulses.Put(pulse.ID, pulse)

		if o.consumed.Contains(pulse.ID) {
			continue
		}
		events = append(events, o.NormalizePulse(pulse, date)...)
		o.consumed.Add(pulse.ID)
	}

	outcome := "ok"
	if len(events) == 0 {
		outcome = "empty"
	}
	metrics.FetchesTotal.WithLabelValues(o.Name(), outcome).Inc()
	return events
}

// NormalizePulse classifies one pulse into canonical events, one per IP
// indicator up to the per-pulse cap. Pulses without IP indicators emit
// nothing.
func (o *OTX) NormalizePulse(pulse Pulse, date time.Time) []models.AttackEvent {
	ips := 0
	for _, ind := range pulse.Indicators {
		if ind.Type == "IPv4" || ind.Type == "IPv6" {
			ips++
		}
	}
	if ips == 0 {
		return nil
	}
	if ips > maxEventsPerPulse {
		ips = maxEventsPerPulse
	}

	attackType := MapTags(pulse.Tags)
	severity := PulseSeverity(pulse)
	confidence := PulseConfidence(pulse)
	timestamp := pulseTimestamp(pulse.Created, date)

	events := make([]models.AttackEvent, 0, ips)
	for i := 0; i < ips; i++ {
		source := geo.RandomCountry(o.rnd)
		target := geo.RandomCountryExcluding(o.rnd, source)

		event, err := models.NewAttackEvent(
			geo.JitteredLocation(o.rnd, source, geo.JitterDegrees),
			geo.JitteredLocation(o.rnd, target, geo.JitterDegrees),
			attackType,
			severity,
			confidence,
			timestamp,
		)
		if err != nil {
			log.Warn().Err(err).Str("pulse", pulse.ID).Msg("Skipping unnormalizable pulse event")
			continue
		}
		events = append(events, event)
	}
	return events
}

// PulseByID returns a pulse from the TTL cache, falling back to the API.
// A nil result means the pulse is unavailable.
func (o *OTX) PulseByID(ctx context.Context, id string) *Pulse {
	if pulse, ok := o.pulses.Get(id); ok {
		return &pulse
	}
	if o.apiKey == "" {
		log.Warn().Msg("OTX API key not configured")
		return nil
	}

	var pulse Pulse
	if err := o.getJSON(ctx, o.baseURL+"/pulses/"+id, &pulse); err != nil {
		log.Error().Err(err).Str("pulse", id).Msg("Error fetching OTX pulse")
		metrics.ProviderErrors.WithLabelValues(o.Name()).Inc()
		return nil
	}
	o.pulses.Put(pulse.ID, pulse)
	return &pulse
}

func (o *OTX) getPulses(ctx context.Context) ([]Pulse, error) {
	var payload pulseResponse
	url := o.baseURL + "/pulses/subscribed?limit=" + strconv.Itoa(pulseLimit)
	if err := o.getJSON(ctx, url, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (o *OTX) getJSON(ctx context.Context, url string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-OTX-API-KEY", o.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
