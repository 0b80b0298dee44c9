// Package queue holds the matcher capability and the per-queue admission
// manager: the snapshot-sort-select-commit algorithm that turns a queue
// snapshot into disjoint matches, and the readers-writer-locked store that
// owns entries while they wait.
package queue

import (
	"sort"
	"time"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/models"
)

// Matcher is the "produce matches from a queue snapshot" capability. now is
// the instant wait times are measured against, supplied by the caller's
// clock so the algorithm never reads a process-global wall clock.
type Matcher interface {
	FindMatches(snapshot []models.Entry, format models.Format, constraints models.Constraints, now time.Time) []models.Match
}

// GreedyMatcher is the required baseline algorithm (§4.F): sort by join
// time, repeatedly grow a candidate set under pairwise compatibility and
// per-team capacity until it exactly fills the format, commit, repeat.
type GreedyMatcher struct{}

func canMatch(a, b models.Entry, c models.Constraints, now time.Time) bool {
	delta := a.Rating.Point - b.Rating.Point
	if delta < 0 {
		delta = -delta
	}
	allowed := c.EffectiveDelta(a.WaitTime(now).Seconds())
	if bAllowed := c.EffectiveDelta(b.WaitTime(now).Seconds()); bAllowed > allowed {
		allowed = bAllowed
	}
	if delta > allowed {
		return false
	}
	if c.SameRegionRequired {
		aHas, bHas := a.Metadata.Region != "", b.Metadata.Region != ""
		if aHas != bHas {
			return false
		}
		if aHas && bHas && a.Metadata.Region != b.Metadata.Region {
			return false
		}
	}
	return true
}

// sortedSnapshot returns a copy of entries ordered by join time ascending,
// breaking ties on entry id for determinism when timestamps collide.
func sortedSnapshot(entries []models.Entry) []models.Entry {
	out := append([]models.Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// teamFill tracks the incremental state of the team-index-order fill as
// candidates are selected, so an entry that would need to split across
// teams is rejected at selection time rather than discovered after commit.
type teamFill struct {
	sizes  []int
	team   int
	filled int
}

// tryPlace reports whether n players can be placed starting from the fill's
// current position, advancing past fully-filled teams first. It returns the
// team index the entry would land in and whether the placement is
// legal (does not split across teams).
func (f *teamFill) tryPlace(n int) (team int, ok bool) {
	team, filled := f.team, f.filled
	for team < len(f.sizes) && filled == f.sizes[team] {
		team++
		filled = 0
	}
	if team >= len(f.sizes) {
		return 0, false
	}
	if filled+n > f.sizes[team] {
		return 0, false
	}
	return team, true
}

func (f *teamFill) commit(team, n int) {
	if team != f.team {
		f.team = team
		f.filled = 0
	}
	f.filled += n
}

func (GreedyMatcher) FindMatches(snapshot []models.Entry, format models.Format, constraints models.Constraints, now time.Time) []models.Match {
	working := sortedSnapshot(snapshot)
	total := format.TotalPlayers()
	var matches []models.Match

	for {
		var candidates []models.Entry
		var teamOf []int
		count := 0
		fill := teamFill{sizes: format.TeamSizes}

		for _, e := range working {
			if count+e.PlayerCount() > total {
				continue
			}
			compatible := true
			for _, sel := range candidates {
				if !canMatch(sel, e, constraints, now) {
					compatible = false
					break
				}
			}
			if !compatible {
				continue
			}
			team, ok := fill.tryPlace(e.PlayerCount())
			if !ok {
				continue
			}
			fill.commit(team, e.PlayerCount())
			candidates = append(candidates, e)
			teamOf = append(teamOf, team)
			count += e.PlayerCount()
			if count == total {
				break
			}
		}

		if count != total {
			return matches
		}

		matches = append(matches, models.Match{
			ID:      ident.New(),
			Entries: candidates,
			TeamOf:  teamOf,
		})
		working = remainder(working, candidates)
	}
}

func remainder(working, committed []models.Entry) []models.Entry {
	committedIDs := make(map[ident.ID]bool, len(committed))
	for _, e := range committed {
		committedIDs[e.ID] = true
	}
	out := make([]models.Entry, 0, len(working)-len(committed))
	for _, e := range working {
		if !committedIDs[e.ID] {
			out = append(out, e)
		}
	}
	return out
}
