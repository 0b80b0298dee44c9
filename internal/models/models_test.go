package models

import (
	"testing"
	"time"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/rating"
	"github.com/stretchr/testify/assert"
)

func TestFormatTotals(t *testing.T) {
	f := Format{Name: "5v5", TeamSizes: []int{5, 5}}
	assert.Equal(t, 10, f.TotalPlayers())
	assert.Equal(t, 2, f.TeamCount())
	assert.Equal(t, 5, f.MaxTeamSize())
}

func TestConstraintsEffectiveDelta(t *testing.T) {
	c := Constraints{BaseDelta: 50, ExpansionRate: 10}
	assert.Equal(t, 50.0, c.EffectiveDelta(0))
	assert.Equal(t, 110.0, c.EffectiveDelta(6))
	assert.Equal(t, 50.0, c.EffectiveDelta(-5), "negative wait clamps to zero")
}

func TestEntryWaitTimeAndPlayerCount(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p1 := ident.New()
	e := NewSoloEntry("q", p1, rating.Default(), Metadata{}, now.Add(-5*time.Second))
	assert.Equal(t, 5*time.Second, e.WaitTime(now))
	assert.Equal(t, 1, e.PlayerCount())
	assert.True(t, e.HasParticipant(p1))
	assert.False(t, e.HasParticipant(ident.New()))
}

func TestEntryWaitTimeNeverNegative(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewSoloEntry("q", ident.New(), rating.Default(), Metadata{}, now.Add(5*time.Second))
	assert.Equal(t, time.Duration(0), e.WaitTime(now))
}

func TestMatchTeamsAndParticipantCount(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p1, p2 := ident.New(), ident.New()
	e1 := NewSoloEntry("q", p1, rating.Default(), Metadata{}, now)
	e2 := NewSoloEntry("q", p2, rating.Default(), Metadata{}, now)
	m := Match{ID: ident.New(), Entries: []Entry{e1, e2}, TeamOf: []int{0, 1}}

	assert.Equal(t, 2, m.ParticipantCount())
	teams := m.Teams(2)
	assert.Len(t, teams[0], 1)
	assert.Len(t, teams[1], 1)
	assert.Equal(t, e1.ID, teams[0][0].ID)
}

func TestPartyHelpers(t *testing.T) {
	leader := ident.New()
	p := Party{ID: ident.New(), LeaderID: leader, MemberIDs: []ident.ID{leader}, MaxSize: 2}
	assert.False(t, p.IsFull())
	assert.True(t, p.HasMember(leader))
	p.MemberIDs = append(p.MemberIDs, ident.New())
	assert.True(t, p.IsFull())
}

func TestLobbyAllReadyAndTeamOf(t *testing.T) {
	a, b := ident.New(), ident.New()
	l := Lobby{
		ParticipantIDs: []ident.ID{a, b},
		Teams: []Team{
			{Index: 0, ParticipantIDs: []ident.ID{a}},
			{Index: 1, ParticipantIDs: []ident.ID{b}},
		},
		Ready: map[ident.ID]bool{a: true},
	}
	assert.False(t, l.AllReady())
	l.Ready[b] = true
	assert.True(t, l.AllReady())
	assert.Equal(t, 0, l.TeamOf(a))
	assert.Equal(t, 1, l.TeamOf(b))
	assert.Equal(t, -1, l.TeamOf(ident.New()))
}
