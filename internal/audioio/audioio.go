// Package audioio decodes audio into the mono float64 PCM the signal
// frontend expects (spec §4.1's input contract). It is grounded on the
// teacher's fileformat package: ReadWavInfo/WavBytesToSample for the
// WAV path, GetMetadata's ffprobe/exec.Command pattern for the generic
// ffmpeg fallback, and main/recording.go's portaudio capture loop for
// live input.
package audioio

import (
	"fmt"
)

// Decoded is mono PCM normalized to [-1, 1] at its native sample rate.
// Callers resample to Config.SampleRate themselves if needed; decoding
// and resampling are deliberately kept separate (spec's Non-goals
// exclude resampling policy from the fingerprint core itself).
type Decoded struct {
	PCM        []float64
	SampleRate int
}

// Source decodes one audio container into Decoded PCM. Each adapter
// (WAV, MP3, FLAC, ffmpeg fallback) implements this the same way the
// teacher's fileformat functions each took a path and returned samples.
type Source interface {
	Decode(path string) (Decoded, error)
}

// downmix averages interleaved multichannel samples into mono, the
// same channel-collapse ReadWavInfo's duration math assumes implicitly
// (NumChannels is known, not discarded).
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	n := len(interleaved) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// int16ToFloat64 is the same scale-to-[-1,1] conversion as the
// teacher's WavBytesToSample, lifted out so every PCM16 decoder
// (WAV, MP3, FLAC) shares it instead of reimplementing the /32768.0.
func int16ToFloat64(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// ErrUnsupportedFormat is returned by DetectAndDecode when no adapter
// recognizes the file's extension and the ffmpeg fallback is disabled.
type ErrUnsupportedFormat struct{ Ext string }

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("audioio: unsupported format %q", e.Ext)
}
