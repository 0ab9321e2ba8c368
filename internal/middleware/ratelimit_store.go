package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/tripbill/tripbill/internal/cache"
)

// RateStore coordinates fixed-window counters for rate limiting.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// MemoryRateStore keeps counters in process memory. Expired windows are
// dropped lazily once the map grows past sweepThreshold.
type MemoryRateStore struct {
	mu    sync.Mutex
	data  map[string]memoryCounter
	clock func() time.Time
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

const sweepThreshold = 4096

// NewMemoryRateStore constructs an in-memory rate store. A nil clock uses time.Now.
func NewMemoryRateStore(clock func() time.Time) *MemoryRateStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateStore{
		data:  make(map[string]memoryCounter),
		clock: clock,
	}
}

func (s *MemoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) >= sweepThreshold {
		for k, counter := range s.data {
			if !now.Before(counter.windowEnd) {
				delete(s.data, k)
			}
		}
	}

	counter, ok := s.data[key]
	if !ok || !now.Before(counter.windowEnd) {
		counter = memoryCounter{windowEnd: now.Add(window)}
	}
	counter.count++
	s.data[key] = counter

	return counter.count, counter.windowEnd.Sub(now), nil
}

// StoreRateStore counts in a shared cache.Store, so limits hold across replicas.
type StoreRateStore struct {
	store cache.Store
}

// NewStoreRateStore wraps a cache store. It returns nil for a nil store.
func NewStoreRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &StoreRateStore{store: store}
}

func (s *StoreRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
