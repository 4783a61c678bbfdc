package favour

// Reconcile computes the next affinity state from the prior record and the
// signals parsed out of one model response. It is pure: no I/O, no clock, no
// shared state. Callers persist the result only when Changed is true.
//
// When old is nil, a baseline record is synthesized with initial() as its
// value; initial is not invoked otherwise. The revocation rule runs last:
// a candidate value below zero never coexists with a relationship, even one
// granted by the same update.
func Reconcile(old *AffinityRecord, delta int, ev *RelationshipEvent, initial func() int, bounds Bounds) ReconcileResult {
	var prior AffinityRecord
	created := old == nil
	if created {
		prior = AffinityRecord{Value: bounds.Clamp(initial())}
	} else {
		prior = *old
	}

	next := prior
	next.Value = bounds.Clamp(prior.Value + delta)
	if ev != nil {
		next.Relationship = ev.Name
		next.IsUnique = ev.Unique
	}

	var revoked string
	if next.Value < 0 && next.Relationship != "" {
		if prior.Relationship != "" {
			revoked = prior.Relationship
		} else {
			revoked = next.Relationship
		}
		next.Relationship = ""
		next.IsUnique = false
	}

	changed := created ||
		next.Value != prior.Value ||
		next.Relationship != prior.Relationship ||
		next.IsUnique != prior.IsUnique

	return ReconcileResult{
		Record:  next,
		Changed: changed,
		Created: created,
		Revoked: revoked,
	}
}
