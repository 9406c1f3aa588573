package provider

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ConsumedSet is the permanent record of already-processed raw record IDs.
//
// Entries are never evicted for the lifetime of the process: a record
// consumed while building one date stays consumed for every later fetch,
// even after that date's store entry is replaced. This unbounded growth is
// inherited from the upstream design and kept deliberately.
//
// When a Redis client is configured the set is mirrored there, so restarts
// (and sibling processes) share consumption state; with a nil client the
// set is purely in-memory.
type ConsumedSet struct {
	key   string
	redis *redis.Client
	ctx   context.Context

	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewConsumedSet creates a consumed-ID set scoped to one adapter.
// redisClient may be nil.
func NewConsumedSet(adapter string, redisClient *redis.Client) *ConsumedSet {
	return &ConsumedSet{
		key:   "attackmap:consumed:" + adapter,
		redis: redisClient,
		ctx:   context.Background(),
		seen:  make(map[string]struct{}),
	}
}

// Contains reports whether the ID was already consumed.
func (s *ConsumedSet) Contains(id string) bool {
	s.mu.RLock()
	_, ok := s.seen[id]
	s.mu.RUnlock()
	if ok {
		return true
	}

	if s.redis != nil && s.redis.SIsMember(s.ctx, s.key, id).Val() {
		s.mu.Lock()
		s.seen[id] = struct{}{}
		s.mu.Unlock()
		return true
	}
	return false
}

// Add marks the ID as consumed. No TTL: membership is permanent.
func (s *ConsumedSet) Add(id string) {
	s.mu.Lock()
	s.seen[id] = struct{}{}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.SAdd(s.ctx, s.key, id).Err(); err != nil {
			log.Warn().Err(err).Str("key", s.key).Msg("Redis SADD failed")
		}
	}
}

// Len returns the number of locally-known consumed IDs.
func (s *ConsumedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
