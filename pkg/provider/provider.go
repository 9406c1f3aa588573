// Package provider implements threat-intelligence provider adapters.
//
// Each adapter translates one external feed's schema into canonical attack
// events. Transport failures, timeouts and missing credentials are absorbed
// at this boundary: adapters log and return an empty slice, never an error,
// so callers only ever observe "no provider data".
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/attackmap-io/attackmap/pkg/models"
)

// requestTimeout bounds every outbound provider request.
const requestTimeout = 30 * time.Second

// Adapter is the capability interface the aggregation store fetches through.
type Adapter interface {
	// Name identifies the provider (e.g. "abuseipdb").
	Name() string

	// Fetch returns normalized attack events for the target date.
	// An empty result means the provider yielded nothing usable; it is
	// never an error condition.
	Fetch(ctx context.Context, date time.Time) []models.AttackEvent
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// midnightMillis returns the epoch-millisecond timestamp of the date's
// midnight in UTC.
func midnightMillis(date time.Time) int64 {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}
