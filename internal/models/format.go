// Package models holds the shared value types the matchmaking core passes
// between the queue, party, lobby, runner, and persistence packages: queue
// configuration, match format, constraints, entries, match results, parties,
// and lobbies. Grounded on the teacher's internal/models package layout
// (one small file per concept) with entirely new domain content.
package models

// Format names a match shape: an ordered team-size vector. [1,1] is a 1v1,
// [5,5] a 5v5, [1,1,1,1] a four-way free-for-all.
type Format struct {
	Name      string
	TeamSizes []int
}

// TotalPlayers is the sum of every team's size.
func (f Format) TotalPlayers() int {
	total := 0
	for _, s := range f.TeamSizes {
		total += s
	}
	return total
}

// TeamCount is the number of teams the format defines.
func (f Format) TeamCount() int {
	return len(f.TeamSizes)
}

// MaxTeamSize returns the largest single team size, used to reject party
// entries that could never fit on one team without being split.
func (f Format) MaxTeamSize() int {
	max := 0
	for _, s := range f.TeamSizes {
		if s > max {
			max = s
		}
	}
	return max
}
