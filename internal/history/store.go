package history

import (
	"hash/fnv"
	"sync"
	"time"
)

// DefaultCapacity bounds each series to one week of hourly samples.
const DefaultCapacity = 168

const shardCount = 32

// Key addresses one metric series.
type Key struct {
	TenantID string
	ScopeID  string
	Metric   string
}

// Sample is a single recorded observation. Immutable once recorded.
type Sample struct {
	Value     float64
	Timestamp time.Time
}

type shard struct {
	mu     sync.RWMutex
	series map[Key][]Sample
}

// Store keeps bounded, append-only metric series partitioned across shards so
// unrelated tenants never contend on one lock.
type Store struct {
	capacity int
	shards   [shardCount]*shard
}

// NewStore builds a Store. A non-positive capacity falls back to
// DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{capacity: capacity}
	for i := range s.shards {
		s.shards[i] = &shard{series: make(map[Key][]Sample)}
	}
	return s
}

func (s *Store) shardFor(key Key) *shard {
	h := fnv.New32a()
	h.Write([]byte(key.TenantID))
	h.Write([]byte{0})
	h.Write([]byte(key.ScopeID))
	h.Write([]byte{0})
	h.Write([]byte(key.Metric))
	return s.shards[h.Sum32()%shardCount]
}

// Record appends a sample to the series for key, creating the series lazily
// and evicting the oldest sample once capacity is exceeded. It never fails.
func (s *Store) Record(key Key, value float64, ts time.Time) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	series := append(sh.series[key], Sample{Value: value, Timestamp: ts})
	if len(series) > s.capacity {
		overflow := len(series) - s.capacity
		series = append(series[:0], series[overflow:]...)
	}
	sh.series[key] = series
}

// RecentValues returns values recorded within [now-lookback, now].
func (s *Store) RecentValues(key Key, lookback time.Duration, now time.Time) []float64 {
	return s.valuesBetween(key, now.Add(-lookback), now)
}

// BaselineValues returns values within [now-lookback-exclude, now-exclude].
// The exclusion window keeps the freshest samples out of their own baseline.
func (s *Store) BaselineValues(key Key, lookback, exclude time.Duration, now time.Time) []float64 {
	upper := now.Add(-exclude)
	return s.valuesBetween(key, upper.Add(-lookback), upper)
}

func (s *Store) valuesBetween(key Key, from, to time.Time) []float64 {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	series := sh.series[key]
	values := make([]float64, 0, len(series))
	for _, sample := range series {
		if sample.Timestamp.Before(from) || sample.Timestamp.After(to) {
			continue
		}
		values = append(values, sample.Value)
	}
	return values
}

// Len reports the number of samples currently retained for key.
func (s *Store) Len(key Key) int {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.series[key])
}
