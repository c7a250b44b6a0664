package audioio

import (
	"os"

	"github.com/go-audio/wav"

	"github.com/soundmark/fpcore/internal/fperrors"
)

// WAVSource decodes RIFF/WAVE files the same shape the teacher's
// ReadWavInfo/WavBytesToSample pair handled by hand, but via
// go-audio/wav instead of a hand-rolled 44-byte header parse.
type WAVSource struct{}

func (WAVSource) Decode(path string) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, fperrors.IoError("open wav file", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Decoded{}, fperrors.IoError("decode wav pcm", err)
	}
	if !dec.WasPCMAccessed() || buf.Format == nil {
		return Decoded{}, fperrors.CorruptIndex("wav file carried no PCM format chunk", nil)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	pcm := int16ToFloat64(samples)
	pcm = downmix(pcm, buf.Format.NumChannels)

	return Decoded{PCM: pcm, SampleRate: buf.Format.SampleRate}, nil
}

var _ Source = WAVSource{}
