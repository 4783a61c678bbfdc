package favour

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Event identifies the conversation a message belongs to. ScopeID is empty
// for direct conversations.
type Event struct {
	UserID  string
	ScopeID string
}

// ModelRequest is the outbound request as seen by the hooks. The hosting
// adapter owns the struct; the pipeline only prepends to SystemPrompt.
type ModelRequest struct {
	SystemPrompt string
}

// ModelResponse is the model's reply as seen by the hooks. ID correlates a
// parsed response with its later delivery; adapters without a native
// response ID get one assigned on parse.
type ModelResponse struct {
	ID             string
	CompletionText string
}

// Pipeline wires the parser, correlator, cold-violence timer and store into
// the three hooks a chat adapter calls: OnRequest before the model,
// OnResponse when the reply arrives, OnDeliver when the reply is finalized
// for the user.
type Pipeline struct {
	cfg        Config
	parser     *Parser
	correlator *Correlator
	cold       *ColdViolence
	perms      *PermissionResolver
	store      *Store
	prompt     *PromptBuilder
	log        *zap.Logger
}

// NewPipeline assembles a pipeline from its configured parts.
func NewPipeline(cfg Config, store *Store, perms *PermissionResolver, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.WithDefaults()
	return &Pipeline{
		cfg:        cfg,
		parser:     NewParser(cfg),
		correlator: NewCorrelator(cfg.PendingCapacity, cfg.PendingTTL),
		cold:       NewColdViolence(cfg, log),
		perms:      perms,
		store:      store,
		prompt:     NewPromptBuilder(cfg),
		log:        log,
	}
}

// Store exposes the underlying store for the command surface.
func (p *Pipeline) Store() *Store { return p.store }

// ColdViolence exposes the cooldown tracker for the command surface.
func (p *Pipeline) ColdViolence() *ColdViolence { return p.cold }

// scope maps a conversation to its storage scope. In global mode every
// conversation shares one ledger.
func (p *Pipeline) scope(ev Event) string {
	if p.cfg.GlobalMode {
		return GlobalScope
	}
	return ev.ScopeID
}

// OnRequest runs before the model call. During an active cooldown it
// short-circuits: handled is true and reply carries the canned auto-reply,
// and the adapter must skip the model entirely. Otherwise it prepends the
// rendered affinity fragment to the request's system prompt.
func (p *Pipeline) OnRequest(ctx context.Context, ev Event, req *ModelRequest) (handled bool, reply string, err error) {
	scopeID := p.scope(ev)

	if remaining, active := p.cold.Remaining(ev.UserID, scopeID); active {
		p.log.Debug("cold violence active, skipping model call",
			zap.String("user", ev.UserID),
			zap.String("scope", scopeID))
		return true, RenderReply(p.cfg.Replies.OnMessage, remaining), nil
	}

	perm := p.perms.Resolve(ctx, scopeID, ev.UserID)

	value := 0
	relationship := ""
	rec, err := p.store.Get(ev.UserID, scopeID)
	switch {
	case err == nil:
		value = rec.Value
		relationship = rec.Relationship
	case err == ErrNotFound:
		value = p.initialValue(ctx, scopeID, ev.UserID, perm)
	default:
		return false, "", err
	}

	exclusive, err := p.store.ExclusiveRelationships(scopeID)
	if err != nil {
		return false, "", err
	}

	fragment := p.prompt.Render(PromptState{
		UserID:       ev.UserID,
		Perm:         perm,
		Value:        value,
		Relationship: relationship,
		Exclusive:    exclusive,
	})
	req.SystemPrompt = fragment + "\n" + req.SystemPrompt
	return false, "", nil
}

// OnResponse parses the model's reply, strips the tags from the visible
// text, and parks the computed update keyed by the response ID. Nothing is
// persisted yet; that happens at delivery. A reply carrying no recognizable
// tag at all parks nothing.
func (p *Pipeline) OnResponse(ctx context.Context, ev Event, resp *ModelResponse) {
	parsed := p.parser.Parse(resp.CompletionText)
	resp.CompletionText = p.parser.Strip(resp.CompletionText)

	if !parsed.HasAffinityTag && parsed.Relationship == nil {
		p.log.Debug("model reply carried no affinity tag",
			zap.String("user", ev.UserID))
		return
	}

	if resp.ID == "" {
		resp.ID = ulid.Make().String()
	}
	p.correlator.Park(resp.ID, PendingUpdate{
		Delta:        parsed.Delta,
		Relationship: parsed.Relationship,
	})
	p.log.Debug("parked affinity update",
		zap.String("response", resp.ID),
		zap.String("user", ev.UserID),
		zap.Int("delta", parsed.Delta))
}

// OnDeliver finalizes a reply for the user: it pops the parked update (once;
// a duplicate delivery finds nothing and only re-strips), applies it to the
// store, arms the cold-violence timer from the persisted outcome, and
// appends the revocation and cooldown-trigger notices when they fire.
func (p *Pipeline) OnDeliver(ctx context.Context, ev Event, resp *ModelResponse) error {
	// Defensive re-strip: some adapters rewrite the text between response
	// and delivery, which can reintroduce tags from history.
	resp.CompletionText = p.parser.Strip(resp.CompletionText)

	update, ok := p.correlator.Take(resp.ID)
	if !ok {
		return nil
	}
	scopeID := p.scope(ev)
	perm := p.perms.Resolve(ctx, scopeID, ev.UserID)

	result, err := p.store.Apply(ev.UserID, scopeID, update.Delta, update.Relationship, func(globalSeed *int) int {
		if globalSeed != nil {
			return *globalSeed
		}
		return p.defaultValue(ev.UserID, perm)
	})
	if err != nil {
		return err
	}

	var notices []string
	if result.Revoked != "" {
		notices = append(notices,
			strings.ReplaceAll(p.cfg.Replies.OnRevoke, "{relationship}", result.Revoked))
	}
	if p.cold.Observe(ev.UserID, scopeID, update.Delta, result.Record.Value) {
		notices = append(notices, p.cfg.Replies.OnTrigger)
	}
	for _, n := range notices {
		if n == "" {
			continue
		}
		resp.CompletionText = strings.TrimRight(resp.CompletionText, "\n") + "\n" + n
	}
	return nil
}

// initialValue resolves the display value for a user with no record yet:
// the global-scope value when one exists, else the tier default.
func (p *Pipeline) initialValue(ctx context.Context, scopeID, userID string, perm PermLevel) int {
	if scopeID != GlobalScope {
		if g, err := p.store.Get(userID, GlobalScope); err == nil {
			return g.Value
		}
	}
	return p.defaultValue(userID, perm)
}

// defaultValue picks the configured starting value. Admins, owners,
// superusers and envoys start from the elevated default; envoy standing
// grants the value without granting any command access.
func (p *Pipeline) defaultValue(userID string, perm PermLevel) int {
	if perm >= PermAdmin || p.perms.IsEnvoy(userID) {
		return p.cfg.AdminDefaultFavour
	}
	return p.cfg.DefaultFavour
}
