// Package database provides a batched, write-only PostgreSQL archive of
// aggregated attack events.
package database

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/attackmap-io/attackmap/pkg/models"
)

const (
	batchSize     = 50
	batchInterval = 2 * time.Second
	queueSize     = 10000
)

type archivedEvent struct {
	date  string
	event models.AttackEvent
}

// Archiver batch-writes stored events to the attack_events table.
//
// The aggregation store never reads this data back; it exists purely as an
// audit sink. Events are dropped (and counted) when the queue is full.
type Archiver struct {
	db    *sql.DB
	queue chan archivedEvent
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	running bool

	eventsWritten  uint64
	eventsDropped  uint64
	batchesWritten uint64
}

// NewArchiver connects to PostgreSQL and prepares the archiver.
func NewArchiver(databaseURL string) (*Archiver, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &Archiver{
		db:    db,
		queue: make(chan archivedEvent, queueSize),
		done:  make(chan struct{}),
	}, nil
}

// Ping reports database connectivity.
func (a *Archiver) Ping() error { return a.db.Ping() }

// Start begins the background writer goroutine.
func (a *Archiver) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	a.wg.Add(1)
	go a.writerLoop()
	log.Info().Msg("Event archiver started")
}

// Stop gracefully shuts down the archiver, flushing remaining events.
func (a *Archiver) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
	a.db.Close()
	log.Info().
		Uint64("written", a.eventsWritten).
		Uint64("dropped", a.eventsDropped).
		Uint64("batches", a.batchesWritten).
		Msg("Event archiver stopped")
}

// Write queues an event for batch archival. Implements store.EventSink.
func (a *Archiver) Write(date string, event models.AttackEvent) {
	select {
	case a.queue <- archivedEvent{date: date, event: event}:
	default:
		a.eventsDropped++
		if a.eventsDropped%1000 == 0 {
			log.Warn().Uint64("dropped", a.eventsDropped).Msg("Archive queue full, dropping events")
		}
	}
}

func (a *Archiver) writerLoop() {
	defer a.wg.Done()

	batch := make([]archivedEvent, 0, batchSize)
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case item := <-a.queue:
			batch = append(batch, item)
			if len(batch) >= batchSize {
				a.writeBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				a.writeBatch(batch)
				batch = batch[:0]
			}

		case <-a.done:
			close(a.queue)
			for item := range a.queue {
				batch = append(batch, item)
				if len(batch) >= batchSize {
					a.writeBatch(batch)
					batch = batch[:0]
				}
			}
			if len(batch) > 0 {
				a.writeBatch(batch)
			}
			return
		}
	}
}

func (a *Archiver) writeBatch(batch []archivedEvent) {
	if len(batch) == 0 {
		return
	}

	tx, err := a.db.Begin()
	if err != nil {
		log.Error().Err(err).Msg("Failed to begin archive transaction")
		return
	}
	defer tx.Rollback()

	written := 0
	for _, item := range batch {
		_, err := tx.Exec(`
			INSERT INTO attack_events (
				id, event_date, attack_type, severity, confidence,
				source_country, source_lat, source_lng,
				target_country, target_lat, target_lng,
				event_time
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING
		`,
			item.event.ID,
			item.date,
			item.event.Type,
			item.event.Severity,
			item.event.Confidence,
			item.event.Source.Country,
			item.event.Source.Lat,
			item.event.Source.Lng,
			item.event.Target.Country,
			item.event.Target.Lat,
			item.event.Target.Lng,
			time.UnixMilli(item.event.Timestamp).UTC(),
		)
		if err != nil {
			log.Error().Err(err).Str("id", item.event.ID).Msg("Failed to archive event")
			continue
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("Failed to commit archive batch")
		return
	}

	a.eventsWritten += uint64(written)
	a.batchesWritten++
}
