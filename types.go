package favour

import "time"

// GlobalScope is the scope ID of the distinguished global bucket. In global
// mode every record lives here; in per-scope mode it only holds seed values
// imported from the legacy global layout or written by superuser commands.
const GlobalScope = ""

// AffinityRecord is the persisted affinity state for one user in one scope.
type AffinityRecord struct {
	UserID       string    `json:"user_id"`
	ScopeID      string    `json:"scope_id,omitempty"`
	Value        int       `json:"favour"`
	Relationship string    `json:"relationship,omitempty"`
	IsUnique     bool      `json:"is_unique,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRelationship reports whether the record holds a standing relationship.
func (r AffinityRecord) HasRelationship() bool {
	return r.Relationship != ""
}

// RelationshipEvent is a relationship-confirmation signal parsed from model
// output. It is only produced for granted, non-empty relationship names.
type RelationshipEvent struct {
	Name   string `json:"name"`
	Unique bool   `json:"unique"`
}

// PendingUpdate is a parsed-but-uncommitted state change awaiting delivery of
// its response. Never persisted.
type PendingUpdate struct {
	Delta        int
	Relationship *RelationshipEvent
	ParkedAt     time.Time
}

// ParseResult is the structured outcome of parsing one model response.
type ParseResult struct {
	Delta          int
	Relationship   *RelationshipEvent
	HasAffinityTag bool
}

// Bounds is an inclusive integer range.
type Bounds struct {
	Min int
	Max int
}

// Clamp saturates v into the range.
func (b Bounds) Clamp(v int) int {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Contains reports whether v lies inside the range.
func (b Bounds) Contains(v int) bool {
	return v >= b.Min && v <= b.Max
}

// ExclusivePair is one (relationship, holder) entry of the exclusivity
// advisory surfaced to the prompt builder.
type ExclusivePair struct {
	Relationship string `json:"relationship"`
	UserID       string `json:"user_id"`
}

// ReconcileResult describes the outcome of one reconciliation step.
type ReconcileResult struct {
	Record AffinityRecord
	// Changed is true when the record differs from the prior state and must
	// be persisted. Creation of a new record always counts as changed.
	Changed bool
	// Created is true when no prior record existed.
	Created bool
	// Revoked carries the relationship name dropped by the
	// negative-affinity revocation rule, or "" when nothing was revoked.
	Revoked string
}

// StoreStats contains statistics about the affinity store.
type StoreStats struct {
	Records       int    `json:"records"`
	Scopes        int    `json:"scopes"`
	Path          string `json:"path"`
	SchemaVersion string `json:"schema_version"`
}

// Default value bounds and magnitude ranges.
const (
	DefaultMinFavour = -100
	DefaultMaxFavour = 100

	DefaultIncreaseMin = 1
	DefaultIncreaseMax = 3
	DefaultDecreaseMin = 1
	DefaultDecreaseMax = 5

	DefaultFavourValue      = 0
	DefaultAdminFavourValue = 50
)

// Cold-violence defaults.
const (
	DefaultColdViolenceThreshold = -50
	DefaultColdViolenceDuration  = 60 * time.Minute
)

// Correlator defaults (parked entries for abandoned responses are garbage and
// must not accumulate).
const (
	DefaultPendingCapacity = 1024
	DefaultPendingTTL      = 10 * time.Minute
)

// DefaultListPageSize caps rows in cross-scope reports.
const DefaultListPageSize = 50
