// Package devotp keeps the last issued code per address so developers can log in without an
// email provider. In production every operation is a no-op.
package devotp

import (
	"sync"
	"time"

	"creator-auth/internal/clock"
	"creator-auth/internal/util"
)

// DefaultWindow is how long an entry stays retrievable after it was recorded.
const DefaultWindow = 60 * time.Second

type Entry struct {
	Code       string    `json:"-"`
	PreviewURL string    `json:"preview_url"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSentAt time.Time `json:"last_sent_at"`
}

// Scheduler runs f once after d. time.AfterFunc is the production scheduler.
type Scheduler func(d time.Duration, f func())

type Options struct {
	Production bool
	Window     time.Duration
	Clock      clock.Clock
	Schedule   Scheduler
}

type record struct {
	entry      Entry
	recordedAt time.Time
	generation uint64
}

type Cache struct {
	production bool
	window     time.Duration
	clock      clock.Clock
	schedule   Scheduler

	mu         sync.Mutex
	entries    map[string]record
	generation uint64
}

func New(opts Options) *Cache {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Schedule == nil {
		opts.Schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return &Cache{
		production: opts.Production,
		window:     opts.Window,
		clock:      opts.Clock,
		schedule:   opts.Schedule,
		entries:    make(map[string]record),
	}
}

// Enabled is false in production.
func (c *Cache) Enabled() bool {
	return c != nil && !c.production
}

// Put records entry for email, replacing any previous one, and schedules its removal.
func (c *Cache) Put(email string, entry Entry) {
	if !c.Enabled() {
		return
	}
	key := util.NormalizeEmail(email)

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.entries[key] = record{entry: entry, recordedAt: c.clock.Now(), generation: gen}
	c.mu.Unlock()

	c.schedule(c.window, func() { c.evict(key, gen) })
}

// Get returns the live entry for email. Entries older than the window are never returned,
// even if the deferred cleanup has not run yet.
func (c *Cache) Get(email string) (Entry, bool) {
	if !c.Enabled() {
		return Entry{}, false
	}
	key := util.NormalizeEmail(email)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if !c.clock.Now().Before(rec.recordedAt.Add(c.window)) {
		delete(c.entries, key)
		return Entry{}, false
	}
	return rec.entry, true
}

// Delete drops the entry for email, e.g. after a successful login.
func (c *Cache) Delete(email string) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	delete(c.entries, util.NormalizeEmail(email))
	c.mu.Unlock()
}

// Len reports the number of stored entries, live or not yet cleaned up.
func (c *Cache) Len() int {
	if !c.Enabled() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evict(key string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.entries[key]; ok && rec.generation == gen {
		delete(c.entries, key)
	}
}
