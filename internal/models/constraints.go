package models

// RoleRequirement names a required count of a given role within a match.
type RoleRequirement struct {
	Role     string
	Required int
}

// Constraints bounds which entries may be matched together within a queue.
type Constraints struct {
	// BaseDelta is the maximum rating delta allowed between two entries at
	// zero wait time.
	BaseDelta float64
	// ExpansionRate is rating-delta gained per second waited, widening the
	// effective delta the longer an entry has been queued.
	ExpansionRate float64
	// SameRegionRequired, when true, only allows entries with equal region
	// tags (or both untagged) to match.
	SameRegionRequired bool
	// RoleRequirements lists role/count pairs for a full match. None of the
	// matchers in internal/queue read it: matches are formed without regard
	// to role counts.
	RoleRequirements []RoleRequirement
	// MaxWaitSeconds is the wait-time ceiling; advisory for hosts deciding
	// when to widen constraints further or surface a UX warning. The core
	// matcher does not reject entries for exceeding it — expansion handles
	// widening automatically.
	MaxWaitSeconds float64
}

// EffectiveDelta returns the maximum rating delta this constraint set allows
// for an entry that has waited waitSeconds: base_delta plus the linear
// expansion term.
func (c Constraints) EffectiveDelta(waitSeconds float64) float64 {
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	return c.BaseDelta + c.ExpansionRate*waitSeconds
}
