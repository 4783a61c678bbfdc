package favour

import (
	"context"

	"go.uber.org/zap"
)

// PermLevel orders the permission tiers used to gate commands.
type PermLevel int

const (
	// PermUnknown is assigned when the caller's standing cannot be
	// determined. It passes no permission check.
	PermUnknown PermLevel = -1

	PermMember    PermLevel = 0
	PermElevated  PermLevel = 1
	PermAdmin     PermLevel = 2
	PermOwner     PermLevel = 3
	PermSuperuser PermLevel = 4
)

func (p PermLevel) String() string {
	switch p {
	case PermUnknown:
		return "unknown"
	case PermMember:
		return "member"
	case PermElevated:
		return "elevated"
	case PermAdmin:
		return "admin"
	case PermOwner:
		return "owner"
	case PermSuperuser:
		return "superuser"
	default:
		return "invalid"
	}
}

// RoleLookup resolves a member's role within a scope from the hosting
// platform. Implementations talk to whatever chat platform the conversation
// lives on; role strings follow the common "owner"/"admin"/"member" naming,
// and level carries a platform-specific numeric tier for platforms that
// grade membership more finely.
type RoleLookup interface {
	GroupRole(ctx context.Context, scopeID, userID string) (role string, level int, err error)
}

// PermissionResolver decides the permission tier of a user inside a scope.
//
// Superuser standing comes from configuration and is global. Owner, admin
// and elevated standing come from the platform via RoleLookup and are
// per-scope. Envoy standing is not a tier at all: it only selects the
// elevated initial affinity value, never command access. Any lookup failure
// yields PermUnknown rather than a guess, so a flaky platform API can never
// grant access it should not.
type PermissionResolver struct {
	superusers map[string]struct{}
	envoys     map[string]struct{}
	threshold  int
	roles      RoleLookup
	log        *zap.Logger
}

// NewPermissionResolver builds a resolver from configuration. roles may be
// nil when no platform role source exists; platform tiers then never apply.
func NewPermissionResolver(cfg Config, roles RoleLookup, log *zap.Logger) *PermissionResolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &PermissionResolver{
		superusers: make(map[string]struct{}, len(cfg.Superusers)),
		envoys:     make(map[string]struct{}, len(cfg.Envoys)),
		threshold:  cfg.ElevatedLevelThreshold,
		roles:      roles,
		log:        log,
	}
	for _, id := range cfg.Superusers {
		r.superusers[id] = struct{}{}
	}
	for _, id := range cfg.Envoys {
		r.envoys[id] = struct{}{}
	}
	return r
}

// IsEnvoy reports whether userID holds envoy standing.
func (r *PermissionResolver) IsEnvoy(userID string) bool {
	_, ok := r.envoys[userID]
	return ok
}

// IsSuperuser reports whether userID holds superuser standing.
func (r *PermissionResolver) IsSuperuser(userID string) bool {
	_, ok := r.superusers[userID]
	return ok
}

// Resolve determines the caller's permission tier inside scopeID. An empty
// scopeID means a direct conversation, where platform roles do not exist.
func (r *PermissionResolver) Resolve(ctx context.Context, scopeID, userID string) PermLevel {
	if r.IsSuperuser(userID) {
		return PermSuperuser
	}
	if scopeID == GlobalScope || r.roles == nil {
		return PermMember
	}

	role, level, err := r.roles.GroupRole(ctx, scopeID, userID)
	if err != nil {
		r.log.Warn("role lookup failed, denying elevated standing",
			zap.String("scope", scopeID),
			zap.String("user", userID),
			zap.Error(err))
		return PermUnknown
	}
	switch role {
	case "owner":
		return PermOwner
	case "admin":
		return PermAdmin
	}
	if r.threshold > 0 && level >= r.threshold {
		return PermElevated
	}
	return PermMember
}

// Require resolves the caller's tier and checks it against need. PermUnknown
// fails every check, including need == PermMember.
func (r *PermissionResolver) Require(ctx context.Context, scopeID, userID string, need PermLevel) error {
	have := r.Resolve(ctx, scopeID, userID)
	if have == PermUnknown || have < need {
		return &PermissionError{Need: need, Have: have}
	}
	return nil
}
