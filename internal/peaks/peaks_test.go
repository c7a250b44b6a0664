package peaks_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/soundmark/fpcore/internal/config"
	"github.com/soundmark/fpcore/internal/peaks"
	"github.com/soundmark/fpcore/internal/signal"
)

func gridOf(t, f int, gen func(i, j int) float32) signal.Spectrogram {
	data := make([][]float32, t)
	for i := range data {
		data[i] = make([]float32, f)
		for j := range data[i] {
			data[i][j] = gen(i, j)
		}
	}
	return signal.Spectrogram{Frames: t, Bins: f, Data: data}
}

func TestExtractNoDuplicateCells(t *testing.T) {
	cfg := config.Default()
	cfg.PeakDt, cfg.PeakDf = 2, 2
	cfg.AmpMin = 0
	cfg.PeaksPerSecMax = 0

	spec := gridOf(40, 40, func(i, j int) float32 {
		return float32((i*7 + j*3) % 11)
	})

	got := peaks.Extract(spec, cfg)
	seen := map[[2]int]bool{}
	for _, p := range got {
		key := [2]int{p.Frame, p.Bin}
		if seen[key] {
			t.Fatalf("duplicate peak at %v", key)
		}
		seen[key] = true
	}
}

func TestExtractNeighborhoodInvariant(t *testing.T) {
	cfg := config.Default()
	cfg.PeakDt, cfg.PeakDf = 3, 3
	cfg.AmpMin = 0
	cfg.PeaksPerSecMax = 0

	spec := gridOf(30, 30, func(i, j int) float32 {
		return float32((i*13+j*17)%29) + float32(i%5)*0.1
	})

	got := peaks.Extract(spec, cfg)
	for _, p := range got {
		for dt := -cfg.PeakDt; dt <= cfg.PeakDt; dt++ {
			for df := -cfg.PeakDf; df <= cfg.PeakDf; df++ {
				ti, fi := p.Frame+dt, p.Bin+df
				if ti < 0 || ti >= spec.Frames || fi < 0 || fi >= spec.Bins {
					continue
				}
				if float64(spec.Data[ti][fi]) > p.Magnitude {
					t.Fatalf("peak %v has a larger neighbor at (%d,%d): %v > %v",
						p, ti, fi, spec.Data[ti][fi], p.Magnitude)
				}
			}
		}
	}
}

func TestExtractRespectsAmpMin(t *testing.T) {
	cfg := config.Default()
	cfg.PeakDt, cfg.PeakDf = 1, 1
	cfg.AmpMin = 5
	cfg.PeaksPerSecMax = 0

	spec := gridOf(10, 10, func(i, j int) float32 { return float32(i + j) })

	got := peaks.Extract(spec, cfg)
	for _, p := range got {
		if p.Magnitude < cfg.AmpMin {
			t.Fatalf("peak %v below AmpMin %v", p, cfg.AmpMin)
		}
	}
}

func TestExtractEmptySpectrogram(t *testing.T) {
	cfg := config.Default()
	got := peaks.Extract(signal.Spectrogram{}, cfg)
	if len(got) != 0 {
		t.Fatalf("expected no peaks for empty spectrogram, got %d", len(got))
	}
}

func TestExtractDensityCapHolds(t *testing.T) {
	cfg := config.Default()
	cfg.PeakDt, cfg.PeakDf = 1, 1
	cfg.AmpMin = 0
	cfg.PeaksPerSecMax = 3
	cfg.Hop = 512
	cfg.SampleRate = 22050

	// A spectrogram deliberately dense with single-cell local maxima
	// (checkerboard pattern) across many bins within one second of audio.
	framesPerSec := int(float64(cfg.SampleRate) / float64(cfg.Hop))
	spec := gridOf(framesPerSec, 50, func(i, j int) float32 {
		if (i+j)%2 == 0 {
			return 100
		}
		return 0
	})

	got := peaks.Extract(spec, cfg)
	perBucket := map[int]int{}
	for _, p := range got {
		b := p.Frame * cfg.Hop / cfg.SampleRate
		perBucket[b]++
	}
	for b, n := range perBucket {
		if n > cfg.PeaksPerSecMax {
			t.Fatalf("bucket %d has %d peaks, cap is %d", b, n, cfg.PeaksPerSecMax)
		}
	}
}

// TestExtractPropertyNeighborhoodInvariant uses rapid to generate random
// spectrogram grids and re-checks the neighborhood invariant that spec
// §8 quantifies over "all PCM inputs" (here, directly over all grids,
// which is the precise surface the peak picker controls).
func TestExtractPropertyNeighborhoodInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		frames := rapid.IntRange(1, 20).Draw(rt, "frames")
		bins := rapid.IntRange(1, 20).Draw(rt, "bins")

		cfg := config.Default()
		cfg.PeakDt = rapid.IntRange(0, 4).Draw(rt, "dt")
		cfg.PeakDf = rapid.IntRange(0, 4).Draw(rt, "df")
		cfg.AmpMin = 0
		cfg.PeaksPerSecMax = 0

		data := make([][]float32, frames)
		for i := range data {
			data[i] = make([]float32, bins)
			for j := range data[i] {
				data[i][j] = float32(rapid.IntRange(0, 50).Draw(rt, "mag"))
			}
		}
		spec := signal.Spectrogram{Frames: frames, Bins: bins, Data: data}

		got := peaks.Extract(spec, cfg)
		seen := map[[2]int]bool{}
		for _, p := range got {
			key := [2]int{p.Frame, p.Bin}
			if seen[key] {
				rt.Fatalf("duplicate peak at %v", key)
			}
			seen[key] = true

			for dt := -cfg.PeakDt; dt <= cfg.PeakDt; dt++ {
				for df := -cfg.PeakDf; df <= cfg.PeakDf; df++ {
					ti, fi := p.Frame+dt, p.Bin+df
					if ti < 0 || ti >= frames || fi < 0 || fi >= bins {
						continue
					}
					if float64(data[ti][fi]) > p.Magnitude {
						rt.Fatalf("peak %v has larger neighbor (%d,%d)=%v", p, ti, fi, data[ti][fi])
					}
				}
			}
		}
	})
}
