package models

import "github.com/riftline/matchforge/internal/ident"

// Match is the result of one successful matcher pass: the selected entries
// and the team index each entry was assigned to (parallel to Entries).
type Match struct {
	ID      ident.ID
	Entries []Entry
	// TeamOf maps each index in Entries to a team index in [0, TeamCount).
	TeamOf []int
}

// ParticipantCount is the sum of player counts across every selected entry.
func (m Match) ParticipantCount() int {
	total := 0
	for _, e := range m.Entries {
		total += e.PlayerCount()
	}
	return total
}

// Teams groups entries by their assigned team index, in team order.
func (m Match) Teams(teamCount int) [][]Entry {
	teams := make([][]Entry, teamCount)
	for i, e := range m.Entries {
		t := m.TeamOf[i]
		teams[t] = append(teams[t], e)
	}
	return teams
}
