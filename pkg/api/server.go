// Package api exposes the HTTP route layer: historical queries, manual
// fetch, the live websocket stream, health and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/attackmap-io/attackmap/pkg/store"
	"github.com/attackmap-io/attackmap/pkg/stream"
)

const healthCheckTimeout = 5 * time.Second

// Server wires the aggregation store and live hub into HTTP routes.
// All date validation happens here; the store itself never validates.
type Server struct {
	router *gin.Engine
	store  *store.Store
	hub    *stream.Hub
	addr   string

	healthChecks map[string]func(ctx context.Context) error
}

// NewServer builds the route layer. hub may be nil to disable the live
// stream endpoint.
func NewServer(addr string, st *store.Store, hub *stream.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:       router,
		store:        st,
		hub:          hub,
		addr:         addr,
		healthChecks: make(map[string]func(ctx context.Context) error),
	}
	s.setupRoutes()
	return s
}

// AddHealthCheck registers a named dependency probe for /health.
func (s *Server) AddHealthCheck(name string, check func(ctx context.Context) error) {
	s.healthChecks[name] = check
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves HTTP on the configured address, blocking.
func (s *Server) Run() error {
	return s.router.Run(s.addr)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	history := s.router.Group("/history")
	history.GET("/dates", s.handleDates)
	history.GET("/summary", s.handleSummary)
	history.GET("/countries", s.handleCountryStats)
	history.GET("/events", s.handleEvents)
	history.POST("/fetch/:date", s.handleFetch)

	if s.hub != nil {
		s.router.GET("/events/stream", func(c *gin.Context) {
			s.hub.ServeWS(c.Writer, c.Request)
		})
	}
}

// parseDate validates the YYYY-MM-DD query parameter, replying 400 itself
// on failure.
func (s *Server) parseDate(c *gin.Context, raw string) (time.Time, bool) {
	date, err := time.Parse(store.DateKey, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

// ensureDate triggers a fetch when the queried date has no entry yet.
func (s *Server) ensureDate(c *gin.Context, key string, date time.Time) {
	if !s.store.Has(key) {
		s.store.FetchAndAggregate(c.Request.Context(), date)
	}
}

func (s *Server) handleDates(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.AvailableDates())
}

func (s *Server) handleSummary(c *gin.Context) {
	raw := c.Query("date")
	date, ok := s.parseDate(c, raw)
	if !ok {
		return
	}
	s.ensureDate(c, raw, date)

	summary := s.store.SummaryFor(raw)
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + raw})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCountryStats(c *gin.Context) {
	raw := c.Query("date")
	date, ok := s.parseDate(c, raw)
	if !ok {
		return
	}
	s.ensureDate(c, raw, date)

	stats := s.store.CountryStats(raw)
	if len(stats) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + raw})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleEvents(c *gin.Context) {
	raw := c.Query("date")
	date, ok := s.parseDate(c, raw)
	if !ok {
		return
	}
	s.ensureDate(c, raw, date)

	events := s.store.EventsFor(raw)
	if len(events) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available for " + raw})
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) handleFetch(c *gin.Context) {
	raw := c.Param("date")
	date, ok := s.parseDate(c, raw)
	if !ok {
		return
	}
	if date.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot fetch data for future dates"})
		return
	}

	s.store.FetchAndAggregate(c.Request.Context(), date)

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"date":           raw,
		"events_fetched": len(s.store.EventsFor(raw)),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	response := gin.H{"status": "ok"}

	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			response[name] = "failed"
			response["status"] = "error"
		} else {
			response[name] = "ok"
		}
	}

	c.JSON(status, response)
}
