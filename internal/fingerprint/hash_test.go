package fingerprint_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/fingerprint"
	"github.com/soundmark/fpcore/internal/peaks"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cfg := config.Default()

	h := fingerprint.Encode(123, 456, 17, cfg)
	anchor, target, delta := fingerprint.Decode(h, cfg)

	if anchor != 123 || target != 456 || delta != 17 {
		t.Fatalf("round trip mismatch: got (%d,%d,%d)", anchor, target, delta)
	}
}

func TestEncodeClipsDeltaAndFreq(t *testing.T) {
	cfg := config.Default()
	maxFreq := cfg.MaxFreqBin()

	h := fingerprint.Encode(maxFreq+500, 2, 1<<20, cfg)
	anchor, _, delta := fingerprint.Decode(h, cfg)

	if anchor != maxFreq {
		t.Fatalf("anchor bin not clipped: got %d want %d", anchor, maxFreq)
	}
	maxDelta := (1 << cfg.DeltaBits) - 1
	if delta != maxDelta {
		t.Fatalf("delta not clipped: got %d want %d", delta, maxDelta)
	}
}

func TestPairsRespectWindowsAndSkipDegenerate(t *testing.T) {
	cfg := config.Default()
	cfg.FanOut = 10
	cfg.HashTimeDeltaMin = 1
	cfg.HashTimeDeltaMax = 50
	cfg.FreqDeltaMax = 20

	constellation := []peaks.Peak{
		{Frame: 0, Bin: 10, Magnitude: 1},
		{Frame: 5, Bin: 15, Magnitude: 1},
		{Frame: 60, Bin: 12, Magnitude: 1}, // too far in time
		{Frame: 6, Bin: 200, Magnitude: 1}, // too far in frequency
	}

	pairs := fingerprint.Pairs(constellation, cfg)
	for _, p := range pairs {
		_, _, delta := fingerprint.Decode(p.Hash, cfg)
		if delta < cfg.HashTimeDeltaMin || delta > cfg.HashTimeDeltaMax {
			t.Fatalf("emitted pair with delta %d out of window", delta)
		}
	}

	if len(pairs) != 1 {
		t.Fatalf("expected exactly 1 eligible pair (anchor 0 -> target at frame 5), got %d", len(pairs))
	}
}

func TestPairsRespectsFanOut(t *testing.T) {
	cfg := config.Default()
	cfg.FanOut = 3
	cfg.HashTimeDeltaMax = 1000
	cfg.FreqDeltaMax = 1000

	var constellation []peaks.Peak
	for i := 0; i < 20; i++ {
		constellation = append(constellation, peaks.Peak{Frame: i, Bin: i, Magnitude: 1})
	}

	pairs := fingerprint.Pairs(constellation, cfg)
	countsByAnchor := map[int]int{}
	for _, p := range pairs {
		countsByAnchor[p.AnchorFrame]++
	}
	for anchor, n := range countsByAnchor {
		if n > cfg.FanOut {
			t.Fatalf("anchor %d emitted %d pairs, fan-out cap is %d", anchor, n, cfg.FanOut)
		}
	}
}

// TestDecodedHashInvariant is the direct translation of spec §8's
// "for all emitted pairs (hash, t_a), decoding hash yields (f_a, f_t,
// Δt) with 1 <= Δt <= HASH_TIME_DELTA_MAX and |f_a - f_t| <= FREQ_DELTA_MAX".
func TestDecodedHashInvariantProperty(t *testing.T) {
	cfg := config.Default()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 30).Draw(rt, "n")
		var constellation []peaks.Peak
		frame := 0
		for i := 0; i < n; i++ {
			frame += rapid.IntRange(0, 5).Draw(rt, "dframe")
			bin := rapid.IntRange(0, 1000).Draw(rt, "bin")
			constellation = append(constellation, peaks.Peak{Frame: frame, Bin: bin, Magnitude: 1})
		}

		pairs := fingerprint.Pairs(constellation, cfg)
		for _, p := range pairs {
			fa, ft, delta := fingerprint.Decode(p.Hash, cfg)
			if delta < 1 || delta > cfg.HashTimeDeltaMax {
				rt.Fatalf("delta %d out of [1,%d]", delta, cfg.HashTimeDeltaMax)
			}
			diff := fa - ft
			if diff < 0 {
				diff = -diff
			}
			if diff > cfg.FreqDeltaMax {
				rt.Fatalf("freq diff %d exceeds %d", diff, cfg.FreqDeltaMax)
			}
		}
	})
}
