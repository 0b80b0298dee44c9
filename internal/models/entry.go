package models

import (
	"time"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/rating"
)

// Metadata carries optional admission-time context: region tag, ordered role
// preferences, and an opaque custom key/value map.
type Metadata struct {
	Region          string
	RolePreferences []string
	Custom          map[string]string
}

// Entry is an admission record in exactly one queue: a solo player or a
// pre-formed party. Grounded on spec §3/§4.D.
type Entry struct {
	ID            ident.ID
	QueueName     string
	ParticipantIDs []ident.ID
	PartyID       *ident.ID
	Rating        rating.Rating
	JoinedAt      time.Time
	Metadata      Metadata
}

// WaitTime returns how long the entry has been queued as of now.
func (e Entry) WaitTime(now time.Time) time.Duration {
	d := now.Sub(e.JoinedAt)
	if d < 0 {
		return 0
	}
	return d
}

// PlayerCount returns the number of participants the entry represents.
func (e Entry) PlayerCount() int {
	return len(e.ParticipantIDs)
}

// HasParticipant reports whether id is among the entry's participants.
func (e Entry) HasParticipant(id ident.ID) bool {
	for _, p := range e.ParticipantIDs {
		if p == id {
			return true
		}
	}
	return false
}

// NewSoloEntry constructs a single-participant entry.
func NewSoloEntry(queue string, player ident.ID, r rating.Rating, meta Metadata, now time.Time) Entry {
	return Entry{
		ID:             ident.New(),
		QueueName:      queue,
		ParticipantIDs: []ident.ID{player},
		Rating:         r,
		JoinedAt:       now,
		Metadata:       meta,
	}
}

// NewPartyEntry constructs a multi-participant entry backed by a pre-formed
// party, carrying the party's pre-derived aggregate rating.
func NewPartyEntry(queue string, partyID ident.ID, members []ident.ID, aggregate rating.Rating, meta Metadata, now time.Time) Entry {
	id := partyID
	return Entry{
		ID:             ident.New(),
		QueueName:      queue,
		ParticipantIDs: append([]ident.ID(nil), members...),
		PartyID:        &id,
		Rating:         aggregate,
		JoinedAt:       now,
		Metadata:       meta,
	}
}
