package favour

import (
	"testing"
	"time"
)

func newTestColdViolence(perScope bool) (*ColdViolence, *time.Time) {
	cfg := DefaultConfig()
	cfg.ColdViolencePerScope = perScope
	c := NewColdViolence(cfg, nil)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestColdViolenceArming(t *testing.T) {
	tests := []struct {
		name     string
		delta    int
		newValue int
		want     bool
	}{
		{name: "decrease past threshold", delta: -5, newValue: -55, want: true},
		{name: "decrease landing exactly on threshold", delta: -5, newValue: -50, want: true},
		{name: "decrease above threshold", delta: -5, newValue: -49, want: false},
		{name: "increase below threshold", delta: 2, newValue: -60, want: false},
		{name: "zero delta below threshold", delta: 0, newValue: -60, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestColdViolence(false)
			if got := c.Observe("u1", "s1", tt.delta, tt.newValue); got != tt.want {
				t.Errorf("Observe = %v, want %v", got, tt.want)
			}
			if _, active := c.Remaining("u1", "s1"); active != tt.want {
				t.Errorf("Remaining active = %v, want %v", active, tt.want)
			}
		})
	}
}

func TestColdViolenceRemaining(t *testing.T) {
	c, now := newTestColdViolence(false)
	c.Observe("u1", "s1", -5, -55)

	*now = now.Add(10 * time.Minute)
	remaining, active := c.Remaining("u1", "s1")
	if !active {
		t.Fatal("cooldown inactive after 10 of 60 minutes")
	}
	if remaining != 50*time.Minute {
		t.Errorf("remaining = %v, want 50m", remaining)
	}
}

func TestColdViolenceLazyExpiry(t *testing.T) {
	c, now := newTestColdViolence(false)
	c.Observe("u1", "s1", -5, -55)

	*now = now.Add(61 * time.Minute)
	if _, active := c.Remaining("u1", "s1"); active {
		t.Error("cooldown still active past expiry")
	}
	// The expired entry is gone, not merely reported inactive.
	if len(c.until) != 0 {
		t.Errorf("until has %d entries, want 0", len(c.until))
	}
}

func TestColdViolenceRetriggerResetsExpiry(t *testing.T) {
	c, now := newTestColdViolence(false)
	c.Observe("u1", "s1", -5, -55)

	*now = now.Add(40 * time.Minute)
	c.Observe("u1", "s1", -3, -58)

	remaining, active := c.Remaining("u1", "s1")
	if !active {
		t.Fatal("cooldown inactive after re-trigger")
	}
	if remaining != 60*time.Minute {
		t.Errorf("remaining = %v, want full 60m after re-trigger", remaining)
	}
}

func TestColdViolenceClear(t *testing.T) {
	c, _ := newTestColdViolence(false)
	c.Observe("u1", "s1", -5, -55)

	if !c.Clear("u1", "s1") {
		t.Error("Clear returned false for an active cooldown")
	}
	if _, active := c.Remaining("u1", "s1"); active {
		t.Error("cooldown still active after Clear")
	}
	if c.Clear("u1", "s1") {
		t.Error("Clear returned true for an inactive key")
	}
}

func TestColdViolenceKeying(t *testing.T) {
	t.Run("per user", func(t *testing.T) {
		c, _ := newTestColdViolence(false)
		c.Observe("u1", "s1", -5, -55)
		if _, active := c.Remaining("u1", "s2"); !active {
			t.Error("per-user cooldown not visible from another scope")
		}
	})

	t.Run("per user and scope", func(t *testing.T) {
		c, _ := newTestColdViolence(true)
		c.Observe("u1", "s1", -5, -55)
		if _, active := c.Remaining("u1", "s2"); active {
			t.Error("per-scope cooldown leaked into another scope")
		}
		if _, active := c.Remaining("u1", "s1"); !active {
			t.Error("per-scope cooldown missing in its own scope")
		}
	})
}

func TestColdViolenceDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ColdViolenceDuration = 0
	c := NewColdViolence(cfg, nil)

	if c.Observe("u1", "s1", -5, -99) {
		t.Error("Observe armed with zero duration")
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{60 * time.Second, "1m00s"},
		{49*time.Minute + 30*time.Second, "49m30s"},
		{-5 * time.Second, "0s"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.d); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRenderReply(t *testing.T) {
	got := RenderReply("come back in {remaining}", 5*time.Minute)
	want := "come back in 5m00s"
	if got != want {
		t.Errorf("RenderReply = %q, want %q", got, want)
	}
}
