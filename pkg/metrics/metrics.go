// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "attackmap"

var (
	// FetchesTotal counts provider fetch attempts by outcome (ok, empty, error).
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_fetches_total",
		Help:      "Provider fetch attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	// ProviderErrors counts absorbed provider transport/parse failures.
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_errors_total",
		Help:      "Provider transport and decode errors absorbed at the adapter boundary",
	}, []string{"provider"})

	// EventsStored counts events written into the aggregation store by origin.
	EventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_stored_total",
		Help:      "Events stored per aggregation, by origin (provider or synthetic)",
	}, []string{"origin"})

	// SyntheticFallbacks counts dates populated by the fallback generator.
	SyntheticFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "synthetic_fallbacks_total",
		Help:      "Aggregations that fell back to synthetic data",
	})

	// LiveClients tracks currently connected live-stream websocket clients.
	LiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_stream_clients",
		Help:      "Connected live-stream websocket clients",
	})

	// LiveEvents counts events pushed on the live demo stream.
	LiveEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_events_generated_total",
		Help:      "Random events generated for the live stream",
	})
)
