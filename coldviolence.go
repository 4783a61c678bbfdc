package favour

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ColdViolence tracks per-key cooldown state: Inactive → Active(expires_at) →
// Inactive. A key enters Active when a decrease lands the value at or below
// the threshold; while Active, requests and affinity queries are answered
// with canned replies instead of reaching the model. Expiry is lazy: the
// first access past expires_at deletes the entry.
type ColdViolence struct {
	mu        sync.Mutex
	until     map[string]time.Time
	threshold int
	duration  time.Duration
	perScope  bool
	now       func() time.Time
	log       *zap.Logger
}

// NewColdViolence builds the tracker from configuration.
func NewColdViolence(cfg Config, log *zap.Logger) *ColdViolence {
	if log == nil {
		log = zap.NewNop()
	}
	return &ColdViolence{
		until:     make(map[string]time.Time),
		threshold: cfg.ColdViolenceThreshold,
		duration:  cfg.ColdViolenceDuration,
		perScope:  cfg.ColdViolencePerScope,
		now:       time.Now,
		log:       log,
	}
}

func (c *ColdViolence) key(userID, scopeID string) string {
	if c.perScope {
		return userID + "\x00" + scopeID
	}
	return userID
}

// Observe evaluates a completed reconciliation. It arms (or re-arms,
// resetting the expiry with no stacking) the cooldown when the update was a
// decrease and the persisted value sits at or below the threshold. Returns
// true when the cooldown was armed by this call.
func (c *ColdViolence) Observe(userID, scopeID string, delta, newValue int) bool {
	if delta >= 0 || newValue > c.threshold || c.duration <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	expires := c.now().Add(c.duration)
	c.until[c.key(userID, scopeID)] = expires
	c.log.Info("cold violence armed",
		zap.String("user", userID),
		zap.String("scope", scopeID),
		zap.Int("value", newValue),
		zap.Time("expires", expires))
	return true
}

// Remaining reports the live remaining duration for the key. An expired
// entry is deleted on access and reported as inactive.
func (c *ColdViolence) Remaining(userID, scopeID string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.key(userID, scopeID)
	expires, ok := c.until[key]
	if !ok {
		return 0, false
	}
	now := c.now()
	if !now.Before(expires) {
		delete(c.until, key)
		c.log.Info("cold violence ended", zap.String("user", userID), zap.String("scope", scopeID))
		return 0, false
	}
	return expires.Sub(now), true
}

// Clear forces the key back to Inactive regardless of expiry. Returns true
// when an active entry was removed.
func (c *ColdViolence) Clear(userID, scopeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.key(userID, scopeID)
	if _, ok := c.until[key]; !ok {
		return false
	}
	delete(c.until, key)
	return true
}

// FormatRemaining renders a duration as minutes and seconds for the canned
// cooldown replies, e.g. "49m30s" or "42s".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	return fmt.Sprintf("%dm%02ds", total/60, total%60)
}

// RenderReply substitutes the {remaining} placeholder in a canned reply.
func RenderReply(template string, remaining time.Duration) string {
	return strings.ReplaceAll(template, "{remaining}", FormatRemaining(remaining))
}
