// Package fingerprint implements the combinatorial pair hasher of spec
// §4.3: for each anchor peak, pair it with nearby targets inside a
// fan-out window and encode each pair as a fixed-width hash. The bit
// layout is the one spec §3 suggests (10/10/12 bits), grounded on the
// teacher's own createAddress (core/fingerprinting.go), generalized from
// its fixed 9/9/14 split to the Config-driven widths in SPEC_FULL.md.
package fingerprint

import (
	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/peaks"
)

// Hash is a fixed-width encoding of (f_anchor, f_target, Δt). 64 bits
// are allocated for headroom (spec §3); only the low
// AnchorFreqBits+TargetFreqBits+DeltaBits bits are ever set by Encode
// under the default Config.
type Hash uint64

// Pair is a single emitted (hash, anchor-time) fingerprint entry (spec §3).
type Pair struct {
	Hash      Hash
	AnchorFrame int
}

// Encode packs (anchorBin, targetBin, delta) per cfg's bit widths,
// clipping frequencies to the encodable range and delta to
// [1, 2^DeltaBits). It is the single build-time contract that MUST
// match between enroll and identify (spec §3).
func Encode(anchorBin, targetBin, delta int, cfg config.Config) Hash {
	maxFreq := (1 << cfg.AnchorFreqBits) - 1
	maxDelta := (1 << cfg.DeltaBits) - 1

	af := clip(anchorBin, 0, maxFreq)
	tf := clip(targetBin, 0, maxFreq)
	dt := clip(delta, 1, maxDelta)

	shiftTarget := cfg.DeltaBits
	shiftAnchor := cfg.DeltaBits + cfg.TargetFreqBits

	h := (uint64(af) << shiftAnchor) | (uint64(tf) << shiftTarget) | uint64(dt)
	return Hash(h)
}

// Decode is Encode's inverse, used by tests to check the §8 invariant
// that decoding an emitted hash recovers a valid (f_a, f_t, Δt) triple.
func Decode(h Hash, cfg config.Config) (anchorBin, targetBin, delta int) {
	deltaMask := uint64((1 << cfg.DeltaBits) - 1)
	freqMask := uint64((1 << cfg.AnchorFreqBits) - 1)

	shiftTarget := cfg.DeltaBits
	shiftAnchor := cfg.DeltaBits + cfg.TargetFreqBits

	v := uint64(h)
	delta = int(v & deltaMask)
	targetBin = int((v >> shiftTarget) & freqMask)
	anchorBin = int((v >> shiftAnchor) & freqMask)
	return
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Pairs implements spec §4.3: for each anchor in time order, scan
// forward for up to FanOut eligible targets within the time/frequency
// windows and emit one Pair per target.
func Pairs(constellation []peaks.Peak, cfg config.Config) []Pair {
	var out []Pair

	for i, anchor := range constellation {
		emitted := 0
		for j := i + 1; j < len(constellation) && emitted < cfg.FanOut; j++ {
			target := constellation[j]
			delta := target.Frame - anchor.Frame

			if delta > cfg.HashTimeDeltaMax {
				break // constellation is frame-ordered; no later j can be closer
			}
			if delta < cfg.HashTimeDeltaMin {
				continue
			}
			if abs(target.Bin-anchor.Bin) > cfg.FreqDeltaMax {
				continue
			}
			if anchor.Bin == target.Bin && delta == 0 {
				continue
			}

			h := Encode(anchor.Bin, target.Bin, delta, cfg)
			out = append(out, Pair{Hash: h, AnchorFrame: anchor.Frame})
			emitted++
		}
	}

	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
