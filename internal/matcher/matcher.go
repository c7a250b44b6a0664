// Package matcher implements spec §4.5's time-offset histogramming and
// confidence scoring: given a query's (hash, anchor-time) pairs, it
// aggregates index hits per (track, delta) and ranks the tracks whose
// postings agree on a common delta. The teacher's own FindMatches
// (core/shazoom.go) sketches the same idea but never finishes the
// histogram step; the delta-binning here is grounded instead on the
// floorDiv/bin-tolerance technique in the GoonHub matching reference.
package matcher

import (
	"context"
	"errors"
	"sort"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/fperrors"
	"github.com/soundmark/fpcore/internal/index"
)

// Candidate is spec §3's match candidate: a track, the time offset
// that aligns it with the query, and the number of (query hash,
// posting) pairs that agree on that offset.
type Candidate struct {
	TrackID uint32
	Delta   int
	Score   int
}

// Result is identify's terminal output. Confident reports spec §4.5's
// confidence rule: the top candidate's score clears both MinMatchCount
// and MatchAlpha times the runner-up's score. Partial is set when the
// orchestrator's wall-clock budget expired mid-match (spec §5); the
// ranking returned is the best computed so far, not an error.
type Result struct {
	Candidates []Candidate
	Confident  bool
	Partial    bool
}

// Match implements spec §4.5 steps 2-5 over queryPairs, which the
// caller has already produced via fingerprint.Pairs using the same
// Config as enroll. ctx is checked between processing each query hash
// (spec §5's "cancellable... between processing successive hashes"):
// a context.Canceled ctx aborts with an error and no partial result, a
// context.DeadlineExceeded ctx stops early and returns the best-so-far
// ranking with Partial set.
func Match(ctx context.Context, store index.Store, queryPairs []fingerprint.Pair, cfg config.Config, topK int) (Result, error) {
	// histogram[trackID][delta] = count of agreeing (query hash, posting) pairs.
	histogram := map[uint32]map[int]int{}
	partial := false

	for _, qp := range queryPairs {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return Result{}, fperrors.Cancelled("identify cancelled mid-match")
			}
			partial = true
			break
		}

		postings, err := store.Get(ctx, qp.Hash)
		if err != nil {
			// spec §4.4: get errors degrade this query hash to an empty
			// posting list rather than aborting the whole identify.
			continue
		}

		for _, p := range postings {
			delta := int(p.TAnchor) - qp.AnchorFrame
			byDelta := histogram[p.TrackID]
			if byDelta == nil {
				byDelta = map[int]int{}
				histogram[p.TrackID] = byDelta
			}
			byDelta[delta]++
		}
	}

	candidates := make([]Candidate, 0, len(histogram))
	for trackID, byDelta := range histogram {
		bestDelta, bestScore := smoothedArgmax(byDelta, cfg.MatchEpsilon)
		candidates = append(candidates, Candidate{TrackID: trackID, Delta: bestDelta, Score: bestScore})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TrackID < candidates[j].TrackID
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	confident := false
	if len(candidates) > 0 && candidates[0].Score >= cfg.MinMatchCount {
		second := 0
		if len(candidates) > 1 {
			second = candidates[1].Score
		}
		confident = float64(candidates[0].Score) >= cfg.MatchAlpha*float64(second)
	}

	return Result{Candidates: candidates, Confident: confident, Partial: partial}, nil
}

// smoothedArgmax implements spec §4.5 step 4: for each delta present in
// byDelta, sum the counts within [delta-epsilon, delta+epsilon] and
// return the delta (and sum) that maximizes it. With the default
// epsilon=0 this degenerates to a plain argmax over byDelta.
func smoothedArgmax(byDelta map[int]int, epsilon int) (bestDelta, bestScore int) {
	first := true
	for delta := range byDelta {
		sum := 0
		for d := delta - epsilon; d <= delta+epsilon; d++ {
			sum += byDelta[d]
		}
		if first || sum > bestScore || (sum == bestScore && delta < bestDelta) {
			bestDelta, bestScore, first = delta, sum, false
		}
	}
	return bestDelta, bestScore
}
