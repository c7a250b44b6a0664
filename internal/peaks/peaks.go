// Package peaks implements the constellation peak picker of spec §4.2:
// a local-maximum filter over a (2*Dt+1) x (2*Df+1) neighborhood, an
// absolute magnitude floor, deterministic tie-breaking, and a rolling
// density cap that bounds index growth.
package peaks

import (
	"sort"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/signal"
)

// Peak is a constellation landmark: a local maximum in both time and
// frequency that clears the amplitude floor (spec §3).
type Peak struct {
	Frame     int
	Bin       int
	Magnitude float64
}

// Extract returns the deduplicated, density-capped constellation for a
// spectrogram, in non-decreasing Frame order (spec §5: "pairs are
// emitted in non-decreasing anchor-time order").
func Extract(s signal.Spectrogram, cfg config.Config) []Peak {
	if s.Frames == 0 || s.Bins == 0 {
		return nil
	}

	localMax := maxFilter2D(s, cfg.PeakDt, cfg.PeakDf)

	var out []Peak
	for t := 0; t < s.Frames; t++ {
		for f := 0; f < s.Bins; f++ {
			mag := float64(s.Data[t][f])
			if mag < cfg.AmpMin {
				continue
			}
			if mag != localMax[t][f] {
				continue
			}
			out = append(out, Peak{Frame: t, Bin: f, Magnitude: mag})
		}
	}

	// tie-break: when the neighborhood max filter reports equal
	// magnitudes at more than one cell, the loop above already visits
	// cells in increasing (t,f) order, so the first cell claims the
	// peak. No further dedup is needed: the filter plus the amplitude
	// floor never emits two peaks for the same cell.

	return densityCap(out, s, cfg)
}

// maxFilter2D computes, for every cell, the maximum magnitude within its
// (2*dt+1) x (2*df+1) neighborhood using a separable sliding-window
// maximum (monotonic deque) over rows then columns: O(T*F) instead of
// the O(T*F*dt*df) naive nested scan.
func maxFilter2D(s signal.Spectrogram, dt, df int) [][]float64 {
	t, f := s.Frames, s.Bins

	rowMax := make([][]float64, t)
	for i := 0; i < t; i++ {
		rowMax[i] = slidingMax(float32Row(s.Data[i]), df)
	}

	colMax := make([][]float64, t)
	for i := range colMax {
		colMax[i] = make([]float64, f)
	}
	col := make([]float64, t)
	for j := 0; j < f; j++ {
		for i := 0; i < t; i++ {
			col[i] = rowMax[i][j]
		}
		smoothed := slidingMax(col, dt)
		for i := 0; i < t; i++ {
			colMax[i][j] = smoothed[i]
		}
	}

	return colMax
}

func float32Row(row []float32) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v)
	}
	return out
}

// slidingMax returns, for every index i, the maximum of x[i-radius:i+radius+1]
// clipped to bounds, computed with a monotonic decreasing deque in O(n).
func slidingMax(x []float64, radius int) []float64 {
	n := len(x)
	out := make([]float64, n)
	// deque of indices, values decreasing
	idx := make([]int, 0, n)

	// We need, for output position i, the max over window [i-radius, i+radius].
	// Process with a deque over a virtual window that slides one step per i,
	// feeding in x[i+radius] before reading out[i] and evicting x[i-radius-1].
	push := func(i int) {
		for len(idx) > 0 && x[idx[len(idx)-1]] <= x[i] {
			idx = idx[:len(idx)-1]
		}
		idx = append(idx, i)
	}

	readAhead := 0
	for i := 0; i < n; i++ {
		for readAhead <= i+radius && readAhead < n {
			push(readAhead)
			readAhead++
		}
		for len(idx) > 0 && idx[0] < i-radius {
			idx = idx[1:]
		}
		out[i] = x[idx[0]]
	}
	return out
}

// densityCap enforces PEAKS_PER_SEC_MAX on a rolling one-second window
// (spec §4.2): within each window, the lowest-magnitude peaks are
// dropped until the cap holds.
func densityCap(in []Peak, s signal.Spectrogram, cfg config.Config) []Peak {
	if cfg.PeaksPerSecMax <= 0 {
		return in
	}

	framesPerSec := float64(cfg.SampleRate) / float64(cfg.Hop)
	if framesPerSec <= 0 {
		return in
	}

	buckets := map[int][]Peak{}
	for _, p := range in {
		b := int(float64(p.Frame) / framesPerSec)
		buckets[b] = append(buckets[b], p)
	}

	var out []Peak
	for _, bucket := range buckets {
		if len(bucket) > cfg.PeaksPerSecMax {
			sort.Slice(bucket, func(i, j int) bool {
				if bucket[i].Magnitude != bucket[j].Magnitude {
					return bucket[i].Magnitude > bucket[j].Magnitude
				}
				if bucket[i].Frame != bucket[j].Frame {
					return bucket[i].Frame < bucket[j].Frame
				}
				return bucket[i].Bin < bucket[j].Bin
			})
			bucket = bucket[:cfg.PeaksPerSecMax]
		}
		out = append(out, bucket...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		return out[i].Bin < out[j].Bin
	})
	return out
}
