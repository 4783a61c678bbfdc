package favour

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Renderer turns a Markdown table into an image for chat platforms that
// present tables poorly as text. Implementations live in the hosting
// adapter; any failure falls back to the plain-text table.
type Renderer interface {
	RenderTable(ctx context.Context, markdown string) ([]byte, error)
}

// Reply is the outcome of one command. Image is set when a table was
// rendered; Text always carries a human-readable response.
type Reply struct {
	Text  string
	Image []byte
}

// The three user-visible failure classes. Every command failure maps to
// exactly one of these so users can tell denial, absence and breakage apart.
const (
	msgPermissionDenied = "❌ You do not have permission to use this command."
	msgNotFound         = "❌ No affinity data found for that user."
	msgInternalFailure  = "❌ Something went wrong on my end. The details are in the logs."

	msgInvalidUserID = "❌ That user ID is not valid."
)

// Commands implements the chat command surface over the store, the
// cooldown tracker and the permission resolver.
type Commands struct {
	cfg      Config
	store    *Store
	cold     *ColdViolence
	perms    *PermissionResolver
	renderer Renderer
	log      *zap.Logger
}

// NewCommands builds the command surface. renderer may be nil; reports then
// always come back as plain text.
func NewCommands(cfg Config, store *Store, cold *ColdViolence, perms *PermissionResolver, renderer Renderer, log *zap.Logger) *Commands {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.WithDefaults()
	return &Commands{
		cfg:      cfg,
		store:    store,
		cold:     cold,
		perms:    perms,
		renderer: renderer,
		log:      log,
	}
}

func (c *Commands) scope(ev Event) string {
	if c.cfg.GlobalMode {
		return GlobalScope
	}
	return ev.ScopeID
}

// failure maps an error onto one of the user-visible failure messages.
func (c *Commands) failure(command string, err error) Reply {
	var perr *PermissionError
	switch {
	case errors.As(err, &perr):
		return Reply{Text: msgPermissionDenied}
	case errors.Is(err, ErrNotFound):
		return Reply{Text: msgNotFound}
	case errors.Is(err, ErrInvalidUserID):
		return Reply{Text: msgInvalidUserID}
	case errors.Is(err, ErrValueOutOfRange):
		return Reply{Text: fmt.Sprintf("❌ The value must be between %d and %d.", c.cfg.MinFavour, c.cfg.MaxFavour)}
	case errors.Is(err, ErrEmptyRelationship):
		return Reply{Text: "❌ The relationship name cannot be empty."}
	case errors.Is(err, ErrBackupFailed):
		return Reply{Text: "❌ The pre-clear backup failed, so nothing was deleted."}
	default:
		c.log.Error("command failed", zap.String("command", command), zap.Error(err))
		return Reply{Text: msgInternalFailure}
	}
}

// QuerySelf reports the caller's own affinity. During an active cooldown
// the canned query reply is returned instead of the real numbers.
func (c *Commands) QuerySelf(ctx context.Context, ev Event) Reply {
	scopeID := c.scope(ev)

	if remaining, active := c.cold.Remaining(ev.UserID, scopeID); active {
		return Reply{Text: RenderReply(c.cfg.Replies.OnQuery, remaining)}
	}

	rec, err := c.store.Get(ev.UserID, scopeID)
	if errors.Is(err, ErrNotFound) {
		perm := c.perms.Resolve(ctx, scopeID, ev.UserID)
		initial := c.cfg.DefaultFavour
		if perm >= PermAdmin || c.perms.IsEnvoy(ev.UserID) {
			initial = c.cfg.AdminDefaultFavour
		}
		return Reply{Text: fmt.Sprintf("💖 We haven't really talked yet. Your affinity starts at %d.", initial)}
	}
	if err != nil {
		return c.failure("query-self", err)
	}
	return Reply{Text: describeRecord("Your", rec)}
}

// QueryPeer reports another user's affinity. Open to every caller, but a
// caller under an active cooldown gets the canned query reply, same as
// QuerySelf: the cooldown gates every query the key makes, not just its own.
func (c *Commands) QueryPeer(ctx context.Context, ev Event, targetID string) Reply {
	scopeID := c.scope(ev)

	if remaining, active := c.cold.Remaining(ev.UserID, scopeID); active {
		return Reply{Text: RenderReply(c.cfg.Replies.OnQuery, remaining)}
	}

	rec, err := c.store.Get(strings.TrimSpace(targetID), scopeID)
	if err != nil {
		return c.failure("query-peer", err)
	}
	return Reply{Text: describeRecord(fmt.Sprintf("User %s's", rec.UserID), rec)}
}

func describeRecord(whose string, rec *AffinityRecord) string {
	if rec.HasRelationship() {
		suffix := ""
		if rec.IsUnique {
			suffix = ", exclusive"
		}
		return fmt.Sprintf("💖 %s current affinity: %d (relationship: %s%s)", whose, rec.Value, rec.Relationship, suffix)
	}
	return fmt.Sprintf("💖 %s current affinity: %d", whose, rec.Value)
}

// SetValue overwrites a user's affinity value. Admin floor.
func (c *Commands) SetValue(ctx context.Context, ev Event, targetID string, value int) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermAdmin); err != nil {
		return c.failure("set-value", err)
	}
	rec, err := c.store.SetValue(targetID, c.scope(ev), value)
	if err != nil {
		return c.failure("set-value", err)
	}
	return Reply{Text: fmt.Sprintf("✅ Set user %s's affinity to %d.", rec.UserID, rec.Value)}
}

// SetGlobalValue overwrites a user's affinity in the global scope regardless
// of where the command was issued. Superuser floor.
func (c *Commands) SetGlobalValue(ctx context.Context, ev Event, targetID string, value int) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermSuperuser); err != nil {
		return c.failure("set-global-value", err)
	}
	rec, err := c.store.SetValue(targetID, GlobalScope, value)
	if err != nil {
		return c.failure("set-global-value", err)
	}
	return Reply{Text: fmt.Sprintf("✅ Set user %s's global affinity to %d.", rec.UserID, rec.Value)}
}

// SetRelationship overwrites a user's relationship. Admin floor.
func (c *Commands) SetRelationship(ctx context.Context, ev Event, targetID, name string, unique bool) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermAdmin); err != nil {
		return c.failure("set-relationship", err)
	}
	rec, err := c.store.SetRelationship(targetID, c.scope(ev), name, unique)
	if err != nil {
		return c.failure("set-relationship", err)
	}
	label := ""
	if rec.IsUnique {
		label = " (exclusive)"
	}
	return Reply{Text: fmt.Sprintf("✅ Set user %s's relationship to %q%s.", rec.UserID, rec.Relationship, label)}
}

// ClearRelationship removes a user's relationship. Admin floor.
func (c *Commands) ClearRelationship(ctx context.Context, ev Event, targetID string) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermAdmin); err != nil {
		return c.failure("clear-relationship", err)
	}
	rec, err := c.store.ClearRelationship(targetID, c.scope(ev))
	if err != nil {
		return c.failure("clear-relationship", err)
	}
	return Reply{Text: fmt.Sprintf("✅ Cleared user %s's relationship.", rec.UserID)}
}

// DeleteRecord removes a user's record entirely. Admin floor.
func (c *Commands) DeleteRecord(ctx context.Context, ev Event, targetID string) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermAdmin); err != nil {
		return c.failure("delete-record", err)
	}
	targetID = strings.TrimSpace(targetID)
	if err := c.store.Delete(targetID, c.scope(ev)); err != nil {
		return c.failure("delete-record", err)
	}
	return Reply{Text: fmt.Sprintf("✅ Deleted user %s's affinity record.", targetID)}
}

// ClearCooldown lifts an active cold-violence cooldown. Admin floor.
func (c *Commands) ClearCooldown(ctx context.Context, ev Event, targetID string) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermAdmin); err != nil {
		return c.failure("clear-cooldown", err)
	}
	if !c.cold.Clear(strings.TrimSpace(targetID), c.scope(ev)) {
		return Reply{Text: "❌ That user has no active cooldown."}
	}
	return Reply{Text: "✅ Cooldown lifted."}
}

// ListScope reports every record in the current scope as a table.
// Admin floor.
func (c *Commands) ListScope(ctx context.Context, ev Event) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermAdmin); err != nil {
		return c.failure("list-scope", err)
	}
	records, err := c.store.List(c.scope(ev))
	if err != nil {
		return c.failure("list-scope", err)
	}
	if len(records) == 0 {
		return Reply{Text: "No affinity records in this conversation yet."}
	}
	return c.tableReply(ctx, buildTable(records, false))
}

// ListAll reports records across every scope, truncated at the configured
// page size. Superuser floor.
func (c *Commands) ListAll(ctx context.Context, ev Event) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermSuperuser); err != nil {
		return c.failure("list-all", err)
	}
	records, total, err := c.store.ListAll(c.cfg.ListPageSize)
	if err != nil {
		return c.failure("list-all", err)
	}
	if total == 0 {
		return Reply{Text: "No affinity records anywhere yet."}
	}
	md := buildTable(records, true)
	if total > len(records) {
		md += fmt.Sprintf("\nShowing %d of %d records.\n", len(records), total)
	}
	return c.tableReply(ctx, md)
}

// ClearScope deletes every record in the current scope. Admin floor; the
// caller must pass confirm to proceed.
func (c *Commands) ClearScope(ctx context.Context, ev Event, confirm bool) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermAdmin); err != nil {
		return c.failure("clear-scope", err)
	}
	if !confirm {
		return Reply{Text: "⚠️ This deletes every affinity record in this conversation. Repeat the command with confirmation to proceed."}
	}
	n, backup, err := c.store.ClearScope(c.scope(ev))
	if err != nil {
		return c.failure("clear-scope", err)
	}
	return clearedReply(n, backup)
}

// Wipe deletes every record in every scope. Superuser floor; the caller
// must pass confirm to proceed.
func (c *Commands) Wipe(ctx context.Context, ev Event, confirm bool) Reply {
	if err := c.perms.Require(ctx, ev.ScopeID, ev.UserID, PermSuperuser); err != nil {
		return c.failure("wipe", err)
	}
	if !confirm {
		return Reply{Text: "⚠️ This deletes ALL affinity data everywhere. Repeat the command with confirmation to proceed."}
	}
	n, backup, err := c.store.Wipe()
	if err != nil {
		return c.failure("wipe", err)
	}
	return clearedReply(n, backup)
}

func clearedReply(n int, backup string) Reply {
	if n == 0 {
		return Reply{Text: "Nothing to clear."}
	}
	if backup != "" {
		return Reply{Text: fmt.Sprintf("✅ Cleared %d records. Backup written to %s.", n, backup)}
	}
	return Reply{Text: fmt.Sprintf("✅ Cleared %d records (backups disabled).", n)}
}

// tableReply hands the Markdown table to the renderer when one is wired,
// falling back to the plain text on any failure. The report itself is never
// suppressed by a rendering problem.
func (c *Commands) tableReply(ctx context.Context, markdown string) Reply {
	if c.renderer == nil {
		return Reply{Text: markdown}
	}
	img, err := c.renderer.RenderTable(ctx, markdown)
	if err != nil {
		c.log.Warn("table rendering failed, falling back to text", zap.Error(err))
		return Reply{Text: markdown}
	}
	return Reply{Text: markdown, Image: img}
}

func buildTable(records []AffinityRecord, withScope bool) string {
	var sb strings.Builder
	if withScope {
		sb.WriteString("| Scope | User | Affinity | Relationship | Exclusive |\n")
		sb.WriteString("| --- | --- | --- | --- | --- |\n")
	} else {
		sb.WriteString("| User | Affinity | Relationship | Exclusive |\n")
		sb.WriteString("| --- | --- | --- | --- |\n")
	}
	for _, rec := range records {
		unique := ""
		if rec.IsUnique {
			unique = "yes"
		}
		if withScope {
			scope := rec.ScopeID
			if scope == GlobalScope {
				scope = "(global)"
			}
			fmt.Fprintf(&sb, "| %s | %s | %d | %s | %s |\n", scope, rec.UserID, rec.Value, rec.Relationship, unique)
		} else {
			fmt.Fprintf(&sb, "| %s | %d | %s | %s |\n", rec.UserID, rec.Value, rec.Relationship, unique)
		}
	}
	return sb.String()
}
