package matcher_test

import (
	"context"
	"testing"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/index"
	"github.com/soundmark/fpcore/internal/matcher"
)

func enroll(t *testing.T, store index.Store, trackID uint32, pairs []fingerprint.Pair) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutBulk(ctx, trackID, pairs); err != nil {
		t.Fatalf("put_bulk: %v", err)
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// sineSweepPairs fabricates a deterministic run of hashes standing in
// for a sine-sweep's fingerprint, offset by offsetFrames.
func sineSweepPairs(offsetFrames int) []fingerprint.Pair {
	var out []fingerprint.Pair
	for i := 0; i < 40; i++ {
		out = append(out, fingerprint.Pair{Hash: fingerprint.Hash(1000 + i), AnchorFrame: offsetFrames + i*5})
	}
	return out
}

func TestMatchSelfMatchAtZeroDelta(t *testing.T) {
	cfg := config.Default()
	cfg.MinMatchCount = 5
	cfg.MatchAlpha = 2.0
	store := index.NewMemoryStore(false)

	pairs := sineSweepPairs(0)
	enroll(t, store, 1, pairs)

	result, err := matcher.Match(context.Background(), store, pairs, cfg, 5)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected exactly 1 candidate, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Delta != 0 {
		t.Fatalf("expected delta 0 for identical query, got %d", result.Candidates[0].Delta)
	}
	if !result.Confident {
		t.Fatal("expected a confident self-match")
	}
}

func TestMatchPartialClipFindsOffset(t *testing.T) {
	cfg := config.Default()
	store := index.NewMemoryStore(false)

	enroll(t, store, 7, sineSweepPairs(0))

	// A clip starting 200 frames into the track: same hashes, but the
	// query's own clock is offset by -200 relative to the track's.
	query := sineSweepPairs(-200)

	result, err := matcher.Match(context.Background(), store, query, cfg, 5)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Candidates) != 1 || result.Candidates[0].TrackID != 7 {
		t.Fatalf("expected single candidate for track 7, got %+v", result.Candidates)
	}
	if result.Candidates[0].Delta != 200 {
		t.Fatalf("expected aligning delta 200, got %d", result.Candidates[0].Delta)
	}
}

func TestMatchTwoTracksScoreGap(t *testing.T) {
	cfg := config.Default()
	store := index.NewMemoryStore(false)

	enroll(t, store, 1, sineSweepPairs(0))
	// a second, unrelated track that shares only a couple of hashes by chance
	noisy := []fingerprint.Pair{
		{Hash: 1000, AnchorFrame: 0},
		{Hash: 9999, AnchorFrame: 5},
	}
	enroll(t, store, 2, noisy)

	result, err := matcher.Match(context.Background(), store, sineSweepPairs(0), cfg, 5)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Candidates) < 2 {
		t.Fatalf("expected at least 2 candidates, got %d", len(result.Candidates))
	}
	if result.Candidates[0].TrackID != 1 {
		t.Fatalf("expected track 1 to rank first, got %+v", result.Candidates[0])
	}
	if float64(result.Candidates[0].Score) < cfg.MatchAlpha*float64(result.Candidates[1].Score) {
		t.Fatalf("expected top score to clear the score-gap threshold: %+v vs %+v", result.Candidates[0], result.Candidates[1])
	}
	if !result.Confident {
		t.Fatal("expected a confident match given the score gap")
	}
}

func TestMatchEmptyCandidateListOnNoSharedHashes(t *testing.T) {
	cfg := config.Default()
	store := index.NewMemoryStore(false)

	enroll(t, store, 1, sineSweepPairs(0))

	disjoint := []fingerprint.Pair{{Hash: 424242, AnchorFrame: 0}}
	result, err := matcher.Match(context.Background(), store, disjoint, cfg, 5)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %+v", result.Candidates)
	}
	if result.Confident {
		t.Fatal("empty candidate list cannot be confident")
	}
}

func TestMatchCancelledContextAborts(t *testing.T) {
	cfg := config.Default()
	store := index.NewMemoryStore(false)
	enroll(t, store, 1, sineSweepPairs(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := matcher.Match(ctx, store, sineSweepPairs(0), cfg, 5)
	if err == nil {
		t.Fatal("expected an error for a pre-cancelled context")
	}
}
