package favour

import (
	"sync"
	"time"
)

// Correlator bridges the gap between "response parsed" and "response actually
// delivered". A parsed update is parked under its response ID and committed
// exactly once when the delivery path collects it; responses that are
// rewritten, replaced, or cancelled upstream simply never collect their entry.
//
// The map is bounded by capacity and TTL so abandoned responses cannot grow
// it without limit.
type Correlator struct {
	mu       sync.Mutex
	entries  map[string]PendingUpdate
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCorrelator creates a correlator holding at most capacity entries, each
// expiring ttl after parking. Non-positive arguments fall back to defaults.
func NewCorrelator(capacity int, ttl time.Duration) *Correlator {
	if capacity <= 0 {
		capacity = DefaultPendingCapacity
	}
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &Correlator{
		entries:  make(map[string]PendingUpdate),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Park stores the update under responseID, overwriting any prior entry for
// the same response: only the most recent parse of a response matters.
func (c *Correlator) Park(responseID string, update PendingUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	update.ParkedAt = now
	c.evictExpired(now)

	if _, exists := c.entries[responseID]; !exists && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[responseID] = update
}

// Take removes and returns the entry for responseID. The second return is
// false when nothing is parked, including when the entry was already taken:
// a finalize hook that fires twice finds nothing to do the second time.
func (c *Correlator) Take(responseID string) (PendingUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[responseID]
	if !ok {
		return PendingUpdate{}, false
	}
	delete(c.entries, responseID)
	if c.now().Sub(entry.ParkedAt) > c.ttl {
		return PendingUpdate{}, false
	}
	return entry, true
}

// Len returns the number of parked entries.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Correlator) evictExpired(now time.Time) {
	for id, e := range c.entries {
		if now.Sub(e.ParkedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
}

func (c *Correlator) evictOldest() {
	var oldestID string
	var oldestAt time.Time
	for id, e := range c.entries {
		if oldestID == "" || e.ParkedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = e.ParkedAt
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}
