package favour

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// failingRenderer always errors, forcing the plain-text fallback.
type failingRenderer struct{}

func (failingRenderer) RenderTable(ctx context.Context, markdown string) ([]byte, error) {
	return nil, errors.New("headless host")
}

// okRenderer returns a fixed payload.
type okRenderer struct{}

func (okRenderer) RenderTable(ctx context.Context, markdown string) ([]byte, error) {
	return []byte("png"), nil
}

func newTestCommands(t *testing.T, roles RoleLookup, renderer Renderer) (*Commands, *Store) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Superusers = []string{"boss"}

	store, err := OpenStore(cfg, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	perms := NewPermissionResolver(cfg, roles, nil)
	cold := NewColdViolence(cfg, nil)
	return NewCommands(cfg, store, cold, perms, renderer, nil), store
}

var (
	adminEv  = Event{UserID: "admin1", ScopeID: "s1"}
	memberEv = Event{UserID: "member1", ScopeID: "s1"}
	bossEv   = Event{UserID: "boss", ScopeID: "s1"}
)

// adminRoles grants admin to admin1 and member to everyone else.
type adminRoles struct{}

func (adminRoles) GroupRole(ctx context.Context, scopeID, userID string) (string, int, error) {
	if userID == "admin1" {
		return "admin", 0, nil
	}
	return "member", 0, nil
}

func TestCommandPermissionFloors(t *testing.T) {
	c, _ := newTestCommands(t, adminRoles{}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(Event) Reply
	}{
		{"set-value", func(ev Event) Reply { return c.SetValue(ctx, ev, "u1", 10) }},
		{"set-relationship", func(ev Event) Reply { return c.SetRelationship(ctx, ev, "u1", "friend", false) }},
		{"clear-relationship", func(ev Event) Reply { return c.ClearRelationship(ctx, ev, "u1") }},
		{"delete-record", func(ev Event) Reply { return c.DeleteRecord(ctx, ev, "u1") }},
		{"list-scope", func(ev Event) Reply { return c.ListScope(ctx, ev) }},
		{"clear-cooldown", func(ev Event) Reply { return c.ClearCooldown(ctx, ev, "u1") }},
		{"clear-scope", func(ev Event) Reply { return c.ClearScope(ctx, ev, true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.run(memberEv); got.Text != msgPermissionDenied {
				t.Errorf("member reply = %q, want permission denied", got.Text)
			}
		})
	}

	// Superuser-only commands reject even group admins.
	for _, tt := range []struct {
		name string
		run  func(Event) Reply
	}{
		{"list-all", func(ev Event) Reply { return c.ListAll(ctx, ev) }},
		{"wipe", func(ev Event) Reply { return c.Wipe(ctx, ev, true) }},
		{"set-global-value", func(ev Event) Reply { return c.SetGlobalValue(ctx, ev, "u1", 10) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.run(adminEv); got.Text != msgPermissionDenied {
				t.Errorf("admin reply = %q, want permission denied", got.Text)
			}
		})
	}
}

func TestCommandEnvoyHasNoAdminAccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Envoys = []string{"envoy1"}

	store, err := OpenStore(cfg, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	perms := NewPermissionResolver(cfg, adminRoles{}, nil)
	c := NewCommands(cfg, store, NewColdViolence(cfg, nil), perms, nil, nil)
	ctx := context.Background()

	if _, err := store.SetValue("victim", "s1", 10); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	ev := Event{UserID: "envoy1", ScopeID: "s1"}
	if got := c.DeleteRecord(ctx, ev, "victim"); got.Text != msgPermissionDenied {
		t.Errorf("DeleteRecord reply = %q, want permission denied", got.Text)
	}
	if _, err := store.Get("victim", "s1"); err != nil {
		t.Errorf("record gone after denied delete: %v", err)
	}
	if got := c.SetValue(ctx, ev, "victim", 99); got.Text != msgPermissionDenied {
		t.Errorf("SetValue reply = %q, want permission denied", got.Text)
	}

	// Envoy standing still selects the elevated starting value.
	if got := c.QuerySelf(ctx, ev); !strings.Contains(got.Text, "50") {
		t.Errorf("QuerySelf reply = %q, want elevated default 50", got.Text)
	}
}

func TestCommandSetAndQuery(t *testing.T) {
	c, _ := newTestCommands(t, adminRoles{}, nil)
	ctx := context.Background()

	if got := c.SetValue(ctx, adminEv, "u1", 42); !strings.HasPrefix(got.Text, "✅") {
		t.Fatalf("SetValue reply = %q", got.Text)
	}
	if got := c.QueryPeer(ctx, memberEv, "u1"); !strings.Contains(got.Text, "42") {
		t.Errorf("QueryPeer reply = %q, want value 42", got.Text)
	}

	if got := c.SetRelationship(ctx, adminEv, "u1", "wife", true); !strings.Contains(got.Text, "exclusive") {
		t.Errorf("SetRelationship reply = %q, want exclusive marker", got.Text)
	}
	if got := c.QueryPeer(ctx, memberEv, "u1"); !strings.Contains(got.Text, "wife") {
		t.Errorf("QueryPeer reply = %q, want relationship", got.Text)
	}
}

func TestCommandQuerySelfNoRecord(t *testing.T) {
	c, _ := newTestCommands(t, adminRoles{}, nil)

	got := c.QuerySelf(context.Background(), memberEv)
	if !strings.Contains(got.Text, "0") {
		t.Errorf("reply = %q, want default initial 0", got.Text)
	}

	// Admins see the elevated default.
	got = c.QuerySelf(context.Background(), adminEv)
	if !strings.Contains(got.Text, "50") {
		t.Errorf("admin reply = %q, want elevated default 50", got.Text)
	}
}

func TestCommandQuerySelfDuringCooldown(t *testing.T) {
	c, _ := newTestCommands(t, adminRoles{}, nil)

	c.cold.Observe("member1", "s1", -5, -60)
	got := c.QuerySelf(context.Background(), memberEv)
	if !strings.Contains(got.Text, "Ask again in") {
		t.Errorf("reply = %q, want the cooldown query reply", got.Text)
	}
}

func TestCommandQueryPeerDuringCooldown(t *testing.T) {
	c, store := newTestCommands(t, adminRoles{}, nil)

	if _, err := store.SetValue("u1", "s1", 42); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	c.cold.Observe("member1", "s1", -5, -60)
	got := c.QueryPeer(context.Background(), memberEv, "u1")
	if !strings.Contains(got.Text, "Ask again in") {
		t.Errorf("reply = %q, want the cooldown query reply", got.Text)
	}
	if strings.Contains(got.Text, "42") {
		t.Errorf("reply = %q leaked peer data during cooldown", got.Text)
	}
}

func TestCommandFailureMessages(t *testing.T) {
	c, _ := newTestCommands(t, adminRoles{}, nil)
	ctx := context.Background()

	if got := c.QueryPeer(ctx, memberEv, "nobody"); got.Text != msgNotFound {
		t.Errorf("missing target reply = %q, want not-found", got.Text)
	}
	if got := c.SetValue(ctx, adminEv, "u1", 9999); !strings.Contains(got.Text, "between") {
		t.Errorf("out-of-range reply = %q, want bounds message", got.Text)
	}
	if got := c.SetValue(ctx, adminEv, "bad user!", 10); got.Text != msgInvalidUserID {
		t.Errorf("invalid ID reply = %q", got.Text)
	}
	if got := c.DeleteRecord(ctx, adminEv, "nobody"); got.Text != msgNotFound {
		t.Errorf("delete missing reply = %q, want not-found", got.Text)
	}
}

func TestCommandClearCooldown(t *testing.T) {
	c, _ := newTestCommands(t, adminRoles{}, nil)
	ctx := context.Background()

	if got := c.ClearCooldown(ctx, adminEv, "u1"); !strings.HasPrefix(got.Text, "❌") {
		t.Errorf("reply = %q, want no-cooldown notice", got.Text)
	}

	c.cold.Observe("u1", "s1", -5, -60)
	if got := c.ClearCooldown(ctx, adminEv, "u1"); !strings.HasPrefix(got.Text, "✅") {
		t.Errorf("reply = %q, want success", got.Text)
	}
	if _, active := c.cold.Remaining("u1", "s1"); active {
		t.Error("cooldown survived the override")
	}
}

func TestCommandListRendererFallback(t *testing.T) {
	c, store := newTestCommands(t, adminRoles{}, failingRenderer{})
	ctx := context.Background()

	if _, err := store.SetValue("u1", "s1", 10); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	got := c.ListScope(ctx, adminEv)
	if got.Image != nil {
		t.Error("Image set despite renderer failure")
	}
	if !strings.Contains(got.Text, "u1") {
		t.Errorf("fallback text %q missing the data", got.Text)
	}
}

func TestCommandListRendered(t *testing.T) {
	c, store := newTestCommands(t, adminRoles{}, okRenderer{})
	ctx := context.Background()

	if _, err := store.SetValue("u1", "s1", 10); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	got := c.ListScope(ctx, adminEv)
	if string(got.Image) != "png" {
		t.Errorf("Image = %q, want rendered payload", got.Image)
	}
}

func TestCommandListAllTruncates(t *testing.T) {
	c, store := newTestCommands(t, adminRoles{}, nil)
	c.cfg.ListPageSize = 2
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u3"} {
		if _, err := store.SetValue(u, "s1", 10); err != nil {
			t.Fatalf("SetValue: %v", err)
		}
	}

	got := c.ListAll(ctx, bossEv)
	if !strings.Contains(got.Text, "Showing 2 of 3") {
		t.Errorf("reply %q missing truncation marker", got.Text)
	}
}

func TestCommandClearScopeNeedsConfirmation(t *testing.T) {
	c, store := newTestCommands(t, adminRoles{}, nil)
	ctx := context.Background()

	if _, err := store.SetValue("u1", "s1", 10); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	if got := c.ClearScope(ctx, adminEv, false); !strings.HasPrefix(got.Text, "⚠️") {
		t.Errorf("reply = %q, want confirmation warning", got.Text)
	}
	if _, err := store.Get("u1", "s1"); err != nil {
		t.Fatal("record deleted without confirmation")
	}

	if got := c.ClearScope(ctx, adminEv, true); !strings.Contains(got.Text, "Cleared 1") {
		t.Errorf("reply = %q, want cleared count", got.Text)
	}
	if _, err := store.Get("u1", "s1"); !errors.Is(err, ErrNotFound) {
		t.Error("record survived a confirmed clear")
	}
}

func TestCommandWipe(t *testing.T) {
	c, store := newTestCommands(t, adminRoles{}, nil)
	ctx := context.Background()

	if _, err := store.SetValue("u1", "s1", 10); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if _, err := store.SetValue("u2", GlobalScope, 20); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	if got := c.Wipe(ctx, bossEv, true); !strings.Contains(got.Text, "Cleared 2") {
		t.Errorf("reply = %q, want cleared count 2", got.Text)
	}
}

func TestCommandSetGlobalValue(t *testing.T) {
	c, store := newTestCommands(t, adminRoles{}, nil)
	ctx := context.Background()

	if got := c.SetGlobalValue(ctx, bossEv, "u1", 77); !strings.HasPrefix(got.Text, "✅") {
		t.Fatalf("reply = %q", got.Text)
	}
	rec, err := store.Get("u1", GlobalScope)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Value != 77 {
		t.Errorf("global Value = %d, want 77", rec.Value)
	}
}
