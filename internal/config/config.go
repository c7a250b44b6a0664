// Package config holds the immutable, build-time fingerprint parameters
// shared by the extractor, index store, and matcher. A Config's Digest
// is embedded in every index file so a reader can refuse to operate
// against postings built under different parameters (spec §6, §9).
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Config is the single source of truth for every tunable named in
// spec §6. Nothing below may be mutated after an index is opened against
// it; build a new Config and re-enroll instead.
type Config struct {
	SampleRate int // SR: input sample rate in Hz

	FFTWindowSize int // N: STFT window size in samples
	Hop           int // HOP: STFT hop in samples
	LogCompress   bool

	PeakDt int // half-width of the time axis of the peak neighborhood
	PeakDf int // half-width of the frequency axis of the peak neighborhood

	AmpMin           float64 // floor a peak's magnitude must clear
	AmpMinIsAbsolute bool    // true: AmpMin is an absolute log-magnitude floor (see SPEC_FULL Open Question)

	FanOut             int // max targets paired per anchor
	HashTimeDeltaMin   int // inclusive, frames
	HashTimeDeltaMax   int // inclusive, frames
	FreqDeltaMax       int // bins
	PeaksPerSecMax     int // density cap
	AnchorFreqBits     uint
	TargetFreqBits     uint
	DeltaBits          uint
	DedupPostings      bool // collapse duplicate (hash,track,t_anchor) triples on put_bulk

	MinMatchCount int     // confidence floor on score
	MatchAlpha    float64 // confident match requires score >= MatchAlpha * second-best
	MatchEpsilon  int      // delta-smoothing tolerance, frames
}

// Default returns the spec §6 default configuration table.
func Default() Config {
	return Config{
		SampleRate:       22050,
		FFTWindowSize:    2048,
		Hop:              1024,
		LogCompress:      true,
		PeakDt:           10,
		PeakDf:           10,
		AmpMin:           10,
		AmpMinIsAbsolute: true,
		FanOut:           15,
		HashTimeDeltaMin: 1,
		HashTimeDeltaMax: 200,
		FreqDeltaMax:     200,
		PeaksPerSecMax:   30,
		AnchorFreqBits:   10,
		TargetFreqBits:   10,
		DeltaBits:        12,
		DedupPostings:    false,
		MinMatchCount:    5,
		MatchAlpha:       2.0,
		MatchEpsilon:     0,
	}
}

// FreqBins returns F = N/2 + 1, the number of spectrogram frequency bins.
func (c Config) FreqBins() int {
	return c.FFTWindowSize/2 + 1
}

// MaxFreqBin returns the largest frequency bin index a hash can encode
// given AnchorFreqBits/TargetFreqBits.
func (c Config) MaxFreqBin() int {
	return (1 << c.AnchorFreqBits) - 1
}

// MaxDelta returns the largest Δt a hash can encode given DeltaBits.
// It is clamped to HashTimeDeltaMax, which MUST fit inside DeltaBits.
func (c Config) MaxDelta() int {
	max := (1 << c.DeltaBits) - 1
	if c.HashTimeDeltaMax < max {
		return c.HashTimeDeltaMax
	}
	return max
}

// Digest computes a SHA-256 digest over every tunable field in a fixed,
// deterministic order. Two Configs with the same Digest are
// interchangeable for the purposes of the index file contract; any
// field difference MUST change the digest.
func (c Config) Digest() [32]byte {
	var buf bytes.Buffer
	writeInt := func(v int64) { binary.Write(&buf, binary.LittleEndian, v) }
	writeUint := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }
	writeFloat := func(v float64) { binary.Write(&buf, binary.LittleEndian, v) }
	writeBool := func(v bool) {
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	writeInt(int64(c.SampleRate))
	writeInt(int64(c.FFTWindowSize))
	writeInt(int64(c.Hop))
	writeBool(c.LogCompress)
	writeInt(int64(c.PeakDt))
	writeInt(int64(c.PeakDf))
	writeFloat(c.AmpMin)
	writeBool(c.AmpMinIsAbsolute)
	writeInt(int64(c.FanOut))
	writeInt(int64(c.HashTimeDeltaMin))
	writeInt(int64(c.HashTimeDeltaMax))
	writeInt(int64(c.FreqDeltaMax))
	writeInt(int64(c.PeaksPerSecMax))
	writeUint(uint64(c.AnchorFreqBits))
	writeUint(uint64(c.TargetFreqBits))
	writeUint(uint64(c.DeltaBits))
	writeBool(c.DedupPostings)
	writeInt(int64(c.MinMatchCount))
	writeFloat(c.MatchAlpha)
	writeInt(int64(c.MatchEpsilon))

	return sha256.Sum256(buf.Bytes())
}
