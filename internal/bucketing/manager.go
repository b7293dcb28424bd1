package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

// DefaultEventBuckets is the bucket count used when none is configured.
const DefaultEventBuckets = 256

// Manager assigns stable partition buckets to audit events so one address always lands in
// the same ClickHouse/Elasticsearch partition.
type Manager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

func NewManager(eventBuckets int) *Manager {
	if eventBuckets <= 0 {
		eventBuckets = DefaultEventBuckets
	}
	return &Manager{
		eventBuckets: eventBuckets,
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// EventBucket returns a bucket in [0, buckets) for identifier.
func (m *Manager) EventBucket(identifier string) int {
	hasher := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write([]byte(identifier))
	return int(hasher.Sum64() % uint64(m.eventBuckets))
}

func (m *Manager) Buckets() int {
	return m.eventBuckets
}

// DateBucket is the UTC day an event belongs to.
func DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
