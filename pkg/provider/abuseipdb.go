package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/attackmap-io/attackmap/pkg/geo"
	"github.com/attackmap-io/attackmap/pkg/metrics"
	"github.com/attackmap-io/attackmap/pkg/models"
)

// DefaultAbuseIPDBBaseURL is the production AbuseIPDB API endpoint.
const DefaultAbuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2"

const (
	blacklistConfidenceMinimum = 50
	blacklistLimit             = 100
)

// BlacklistEntry is one raw "bad actor" record from the AbuseIPDB blacklist.
type BlacklistEntry struct {
	IPAddress            string `json:"ipAddress"`
	CountryCode          string `json:"countryCode"`
	AbuseConfidenceScore int    `json:"abuseConfidenceScore"` // 0-100
	TotalReports         int    `json:"totalReports"`
	Categories           []int  `json:"categories"`
}

type blacklistResponse struct {
	Data []BlacklistEntry `json:"data"`
}

// categoryTypes maps AbuseIPDB category codes to attack types.
// The first category in a record's list that appears here wins.
var categoryTypes = map[int]string{
	4:  models.TypeDDoS,       // DDoS Attack
	21: models.TypeBruteforce, // Brute-Force
	18: models.TypeBruteforce, // Brute-Force (SSH)
	22: models.TypeBruteforce, // Brute-Force (Web)
	5:  models.TypeBruteforce, // FTP Brute-Force
	19: models.TypeBot,        // Bad Web Bot
	10: models.TypeBot,        // Email Spam
	11: models.TypeBot,        // Email Spam (Mail)
	14: models.TypeDDoS,       // Port Scan
	15: models.TypeBot,        // Hacking
}

// MapCategories resolves a record's category list to an attack type.
// Categories are scanned in record order; the first mapped one wins,
// defaulting to ddos.
func MapCategories(categories []int) string {
	for _, cat := range categories {
		if t, ok := categoryTypes[cat]; ok {
			return t
		}
	}
	return models.TypeDDoS
}

// BlacklistSeverity derives a 1-5 severity from the abuse confidence score
// (0-100) and the report count. The report bonus is capped at 0.5.
func BlacklistSeverity(confidenceScore, totalReports int) int {
	combined := float64(confidenceScore)/100.0 + math.Min(float64(totalReports)/100.0, 0.5)
	switch {
	case combined >= 1.2:
		return 5
	case combined >= 0.9:
		return 4
	case combined >= 0.6:
		return 3
	case combined >= 0.3:
		return 2
	default:
		return 1
	}
}

// AbuseIPDB fetches the AbuseIPDB blacklist and normalizes its entries.
type AbuseIPDB struct {
	apiKey  string
	baseURL string
	client  *http.Client
	rnd     *rand.Rand
}

// NewAbuseIPDB creates the blacklist adapter. baseURL defaults to the
// production endpoint when empty. rnd supplies the target-country and
// jitter draws.
func NewAbuseIPDB(apiKey, baseURL string, rnd *rand.Rand) *AbuseIPDB {
	if baseURL == "" {
		baseURL = DefaultAbuseIPDBBaseURL
	}
	return &AbuseIPDB{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  newHTTPClient(),
		rnd:     rnd,
	}
}

// Name implements Adapter.
func (a *AbuseIPDB) Name() string { return "abuseipdb" }

// Fetch implements Adapter. Missing credentials and transport failures are
// logged and yield an empty result.
func (a *AbuseIPDB) Fetch(ctx context.Context, date time.Time) []models.AttackEvent {
	if a.apiKey == "" {
		log.Warn().Msg("AbuseIPDB API key not configured, returning no records")
		metrics.FetchesTotal.WithLabelValues(a.Name(), "empty").Inc()
		return nil
	}

	entries, err := a.getBlacklist(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching AbuseIPDB blacklist")
		metrics.ProviderErrors.WithLabelValues(a.Name()).Inc()
		metrics.FetchesTotal.WithLabelValues(a.Name(), "error").Inc()
		return nil
	}

	events := make([]models.AttackEvent, 0, len(entries))
	for _, entry := range entries {
		event, err := a.Normalize(entry, date)
		if err != nil {
			log.Warn().Err(err).Str("ip", entry.IPAddress).Msg("Skipping unnormalizable blacklist entry")
			continue
		}
		events = append(events, event)
	}

	outcome := "ok"
	if len(events) == 0 {
		outcome = "empty"
	}
	metrics.FetchesTotal.WithLabelValues(a.Name(), outcome).Inc()
	return events
}

// Normalize classifies one raw blacklist entry into a canonical event.
// The source country comes from the record (unknown codes fall back to the
// default country); the target is drawn uniformly from the remaining
// countries.
func (a *AbuseIPDB) Normalize(entry BlacklistEntry, date time.Time) (models.AttackEvent, error) {
	source := geo.Normalize(entry.CountryCode)
	target := geo.RandomCountryExcluding(a.rnd, source)

	return models.NewAttackEvent(
		geo.JitteredLocation(a.rnd, source, geo.JitterDegrees),
		geo.JitteredLocation(a.rnd, target, geo.JitterDegrees),
		MapCategories(entry.Categories),
		BlacklistSeverity(entry.AbuseConfidenceScore, entry.TotalReports),
		float64(entry.AbuseConfidenceScore)/100.0,
		midnightMillis(date),
	)
}

func (a *AbuseIPDB) getBlacklist(ctx context.Context) ([]BlacklistEntry, error) {
	params := url.Values{}
	params.Set("confidenceMinimum", strconv.Itoa(blacklistConfidenceMinimum))
	params.Set("limit", strconv.Itoa(blacklistLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/blacklist?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Key", a.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload blacklistResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Data, nil
}
