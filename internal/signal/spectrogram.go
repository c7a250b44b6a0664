// Package signal implements the signal frontend of spec §4.1: DC
// removal, peak normalization, and a Hann-windowed STFT magnitude
// spectrogram. The FFT itself is delegated to github.com/mjibson/go-dsp,
// the library the teacher's own go.mod transitively depends on for the
// same purpose (main/FFT.go) and that the rest of the retrieved pack
// (himanishpuri/AcousticDNA, DanielCarmel-media-luna) reaches for
// directly rather than hand-rolling a recursive FFT.
package signal

import (
	"math"

	"github.com/mjibson/go-dsp/fft"

	"github.com/soundmark/fpcore/internal/config"
)

// Spectrogram is a row-major T x F grid of non-negative magnitudes,
// T frames by F = N/2+1 frequency bins (spec §3).
type Spectrogram struct {
	Frames int
	Bins   int
	Data   [][]float32 // Data[t][f]
}

// At returns S[t,f].
func (s Spectrogram) At(t, f int) float32 { return s.Data[t][f] }

// Frontend computes the magnitude spectrogram of pcm per spec §4.1.
// pcm is assumed mono, real-valued, at cfg.SampleRate; resampling is an
// external collaborator's responsibility (spec §1).
func Frontend(pcm []float64, cfg config.Config) (Spectrogram, error) {
	n := cfg.FFTWindowSize
	if len(pcm) < n {
		return Spectrogram{}, nil
	}

	prepared := normalize(pcm)
	window := hann(n)

	hop := cfg.Hop
	frames := 1 + (len(prepared)-n)/hop

	data := make([][]float32, frames)
	windowed := make([]float64, n)

	for t := 0; t < frames; t++ {
		start := t * hop
		copy(windowed, prepared[start:start+n])
		for i, w := range window {
			windowed[i] *= w
		}

		spectrum := fft.FFTReal(windowed)
		bins := n/2 + 1
		row := make([]float32, bins)
		for f := 0; f < bins; f++ {
			mag := cmplxAbs(spectrum[f])
			if cfg.LogCompress {
				mag = math.Log1p(mag)
			}
			row[f] = float32(mag)
		}
		data[t] = row
	}

	return Spectrogram{Frames: frames, Bins: n/2 + 1, Data: data}, nil
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// normalize removes DC offset and peak-normalizes to max|x| = 1.0,
// per spec §4.1. A silent (all-zero) signal is returned unchanged.
func normalize(pcm []float64) []float64 {
	out := make([]float64, len(pcm))
	if len(pcm) == 0 {
		return out
	}

	var mean float64
	for _, x := range pcm {
		mean += x
	}
	mean /= float64(len(pcm))

	var peak float64
	for i, x := range pcm {
		v := x - mean
		out[i] = v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

// hann returns a Hann window of length n (spec §4.1: "Windowing is Hann").
func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}
