// Package party owns party lifecycle (create, add, remove, derived rating
// lookup) and the rating-aggregation capability parties use to derive one
// shared rating from their members.
package party

import (
	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/rating"
)

// MemberRating pairs a participant id with their individual rating, the
// input the aggregator capability folds into one derived party rating.
type MemberRating struct {
	Player ident.ID
	Rating rating.Rating
}

// Aggregator is the "derive one rating from many" capability (§4.H).
type Aggregator interface {
	Aggregate(members []MemberRating) rating.Rating
}

// AverageAggregator means point and mean deviation; volatility fixed at
// default. Ported from original_source/src/party/mmr_strategy.rs's
// AverageStrategy.
type AverageAggregator struct{}

func (AverageAggregator) Aggregate(members []MemberRating) rating.Rating {
	if len(members) == 0 {
		return rating.Default()
	}
	var sumPoint, sumDeviation float64
	for _, m := range members {
		sumPoint += m.Rating.Point
		sumDeviation += m.Rating.Deviation
	}
	n := float64(len(members))
	return rating.New(sumPoint/n, sumDeviation/n, rating.DefaultVolatility)
}

// MaxPointAggregator takes the member with the highest point, rating
// unchanged. Ported from mmr_strategy.rs's MaxStrategy.
type MaxPointAggregator struct{}

func (MaxPointAggregator) Aggregate(members []MemberRating) rating.Rating {
	if len(members) == 0 {
		return rating.Default()
	}
	best := members[0].Rating
	for _, m := range members[1:] {
		if m.Rating.Point > best.Point {
			best = m.Rating
		}
	}
	return best
}

// WeightedGapPenaltyAggregator means point plus gap_penalty times the spread
// between the highest and lowest member point, fixed deviation 200 and
// default volatility. Ported from mmr_strategy.rs's
// WeightedWithPenaltyStrategy; GapPenalty defaults to 0.1 when zero,
// matching the source's example configuration (no published default exists
// in the spec itself, so this Open Question is resolved by the original's
// own usage).
type WeightedGapPenaltyAggregator struct {
	GapPenalty float64
}

// DefaultGapPenalty is applied when WeightedGapPenaltyAggregator.GapPenalty
// is left at its zero value.
const DefaultGapPenalty = 0.1

func (a WeightedGapPenaltyAggregator) Aggregate(members []MemberRating) rating.Rating {
	if len(members) == 0 {
		return rating.Default()
	}
	penalty := a.GapPenalty
	if penalty == 0 {
		penalty = DefaultGapPenalty
	}

	sum, max, min := 0.0, members[0].Rating.Point, members[0].Rating.Point
	for _, m := range members {
		p := m.Rating.Point
		sum += p
		if p > max {
			max = p
		}
		if p < min {
			min = p
		}
	}
	avg := sum / float64(len(members))
	gap := max - min
	return rating.New(avg+gap*penalty, 200, rating.DefaultVolatility)
}
