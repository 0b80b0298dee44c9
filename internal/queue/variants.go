package queue

import (
	"math/rand"
	"sort"
	"time"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/models"
)

// SwissMatcher buckets entries by rating band: each match is drawn only from
// entries rated within BucketWidth of an anchor entry (unused entries are
// tried as anchors in ascending rating order), with no fallback outside that
// band, and with optional rematch avoidance. Grounded on the
// score-bucketed pairing idea in the league-draft matchmaking service's
// MMR-threshold widening loop, generalized from a fixed 10-player lobby to
// an arbitrary format.
type SwissMatcher struct {
	BucketWidth     float64
	AvoidRematches  bool
	pastOpponents   map[ident.ID]map[ident.ID]bool
}

// NewSwissMatcher returns a SwissMatcher with the given rating bucket width.
func NewSwissMatcher(bucketWidth float64, avoidRematches bool) *SwissMatcher {
	return &SwissMatcher{
		BucketWidth:    bucketWidth,
		AvoidRematches: avoidRematches,
		pastOpponents:  make(map[ident.ID]map[ident.ID]bool),
	}
}

// RecordOpponents marks every pair of participants in the given entries as
// having played each other, so a future pass with AvoidRematches can skip
// re-pairing them.
func (m *SwissMatcher) RecordOpponents(entries []models.Entry) {
	if !m.AvoidRematches {
		return
	}
	for i, a := range entries {
		for _, ap := range a.ParticipantIDs {
			for j, b := range entries {
				if i == j {
					continue
				}
				for _, bp := range b.ParticipantIDs {
					m.mark(ap, bp)
				}
			}
		}
	}
}

func (m *SwissMatcher) mark(a, b ident.ID) {
	if m.pastOpponents[a] == nil {
		m.pastOpponents[a] = make(map[ident.ID]bool)
	}
	m.pastOpponents[a][b] = true
}

func (m *SwissMatcher) played(a, b models.Entry) bool {
	if !m.AvoidRematches {
		return false
	}
	for _, ap := range a.ParticipantIDs {
		for _, bp := range b.ParticipantIDs {
			if m.pastOpponents[ap][bp] {
				return true
			}
		}
	}
	return false
}

func (m *SwissMatcher) FindMatches(snapshot []models.Entry, format models.Format, constraints models.Constraints, now time.Time) []models.Match {
	sorted := sortedSnapshot(snapshot)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating.Point < sorted[j].Rating.Point
	})

	width := m.BucketWidth
	if width <= 0 {
		width = constraints.BaseDelta
	}

	var matches []models.Match
	used := make(map[ident.ID]bool)
	total := format.TotalPlayers()

	for i := range sorted {
		if used[sorted[i].ID] {
			continue
		}
		var candidates []models.Entry
		var teamOf []int
		fill := teamFill{sizes: format.TeamSizes}
		count := 0

		for j := i; j < len(sorted); j++ {
			e := sorted[j]
			if used[e.ID] || count+e.PlayerCount() > total {
				continue
			}
			if len(candidates) > 0 && sorted[j].Rating.Point-sorted[i].Rating.Point > width {
				break // sorted by rating; nothing further in range
			}
			compatible := true
			for _, sel := range candidates {
				if !canMatch(sel, e, constraints, now) || m.played(sel, e) {
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
			continue
		}
		for _, e := range candidates {
			used[e.ID] = true
		}
		matches = append(matches, models.Match{ID: ident.New(), Entries: candidates, TeamOf: teamOf})
	}
	return matches
}

// AdaptiveMatcher wraps GreedyMatcher but widens the effective constraints
// pass over pass when a pass finds nothing, rather than waiting for natural
// wait-time expansion. Equivalent in spirit to §4.E expansion but applied
// standalone, useful when a queue's configured expansion_rate is zero.
type AdaptiveMatcher struct {
	Inner        Matcher
	WidenFactor  float64 // multiplier applied to BaseDelta/ExpansionRate each empty pass
	MaxPasses    int
}

// NewAdaptiveMatcher returns an AdaptiveMatcher delegating to GreedyMatcher
// by default, widening by 50% per empty pass for up to 4 passes.
func NewAdaptiveMatcher() *AdaptiveMatcher {
	return &AdaptiveMatcher{Inner: GreedyMatcher{}, WidenFactor: 1.5, MaxPasses: 4}
}

func (m *AdaptiveMatcher) FindMatches(snapshot []models.Entry, format models.Format, constraints models.Constraints, now time.Time) []models.Match {
	widened := constraints
	for pass := 0; pass < m.MaxPasses; pass++ {
		matches := m.Inner.FindMatches(snapshot, format, widened, now)
		if len(matches) > 0 {
			return matches
		}
		widened.BaseDelta *= m.WidenFactor
		widened.ExpansionRate *= m.WidenFactor
	}
	return nil
}

// TeamBalancer produces one balanced split of a fixed entry group into a
// format's teams, rather than selecting which entries belong together. It
// is the standalone form of the team-assignment half of the matcher
// capability, useful when a host has already decided who is playing (e.g.
// a private lobby) and only needs teams drawn fairly.
type TeamBalancer struct {
	Mode string // "party_size" sorts by player count; any other value (including "hybrid") sorts by rating
}

// Balance splits entries into format.TeamCount() teams using a snake draft:
// entries sorted by the balancer's key descending are dealt
// 0,1,2,...,N-1,N-1,...,2,1,0,... so each team accumulates a comparable
// total. Grounded on the balanced-team-generation shape of the
// league-draft service's GenerateMatchOptions (blue/red MMR comparison),
// generalized from two fixed sides to an arbitrary team count.
func (b TeamBalancer) Balance(entries []models.Entry, format models.Format) models.Match {
	sorted := append([]models.Entry(nil), entries...)
	key := func(e models.Entry) float64 { return e.Rating.Point }
	if b.Mode == "party_size" {
		key = func(e models.Entry) float64 { return float64(e.PlayerCount()) }
	}
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) > key(sorted[j]) })

	teamCount := format.TeamCount()
	teamOf := make([]int, len(sorted))

	for i := range sorted {
		round, pos := i/teamCount, i%teamCount
		if round%2 == 1 {
			pos = teamCount - 1 - pos
		}
		teamOf[i] = pos
	}

	return models.Match{ID: ident.New(), Entries: sorted, TeamOf: teamOf}
}

// BracketGenerator seeds a flat participant list into a single-elimination
// first round or a round-robin schedule; it has no double-elimination or
// later-round bracket generation. Unlike Matcher, it operates on
// a fixed roster handed to it directly rather than a live queue snapshot.
type BracketGenerator struct {
	Seeding string // "rating", "external", "random", "supplied"
}

// SeedSingleElimination orders entries per Seeding and returns the first
// round's pairings as Matches against a 1v1-shaped format. An odd entry
// count gives the last-seeded entry a bye (omitted from the round).
func (g BracketGenerator) SeedSingleElimination(entries []models.Entry, externalScore map[ident.ID]float64) []models.Match {
	seeded := g.seed(entries, externalScore)
	n := len(seeded)
	if n%2 == 1 {
		n-- // the last-seeded entry sits out this round
	}
	var round []models.Match
	for i := 0; i < n/2; i++ {
		round = append(round, models.Match{
			ID:      ident.New(),
			Entries: []models.Entry{seeded[i], seeded[n-1-i]},
			TeamOf:  []int{0, 1},
		})
	}
	return round
}

func (g BracketGenerator) seed(entries []models.Entry, externalScore map[ident.ID]float64) []models.Entry {
	out := append([]models.Entry(nil), entries...)
	switch g.Seeding {
	case "rating":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating.Point > out[j].Rating.Point })
	case "external":
		sort.SliceStable(out, func(i, j int) bool {
			return externalScore[out[i].ID] > externalScore[out[j].ID]
		})
	case "random":
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	default: // "supplied": caller's order is authoritative
	}
	return out
}

// RoundRobinPairings returns every unordered pair of entries exactly once,
// the full round-robin schedule for a group.
func (g BracketGenerator) RoundRobinPairings(entries []models.Entry) []models.Match {
	var pairs []models.Match
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			pairs = append(pairs, models.Match{
				ID:      ident.New(),
				Entries: []models.Entry{entries[i], entries[j]},
				TeamOf:  []int{0, 1},
			})
		}
	}
	return pairs
}
