package models

import (
	"time"

	"github.com/riftline/matchforge/internal/ident"
)

// Party is a pre-formed group of participants queueing together.
type Party struct {
	ID        ident.ID
	LeaderID  ident.ID
	MemberIDs []ident.ID
	MaxSize   int
	CreatedAt time.Time
}

// IsFull reports whether the party has reached MaxSize members.
func (p Party) IsFull() bool {
	return len(p.MemberIDs) >= p.MaxSize
}

// HasMember reports whether id is among the party's members.
func (p Party) HasMember(id ident.ID) bool {
	for _, m := range p.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
