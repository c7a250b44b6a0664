package audioio

import (
	"io"

	"github.com/mewkiz/flac"

	"github.com/soundmark/fpcore/internal/fperrors"
)

// FLACSource decodes free lossless audio via mewkiz/flac, frame by
// frame, folding each frame's per-channel int32 subframes to
// interleaved mono the same way the PCM16 adapters downmix.
type FLACSource struct{}

func (FLACSource) Decode(path string) (Decoded, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return Decoded{}, fperrors.IoError("open flac stream", err)
	}
	defer stream.Close()

	bitScale := float64(int64(1) << (stream.Info.BitsPerSample - 1))
	channels := int(stream.Info.NChannels)

	var pcm []float64
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Decoded{}, fperrors.CorruptIndex("parsing flac frame", err)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum float64
			for c := 0; c < channels; c++ {
				sum += float64(frame.Subframes[c].Samples[i]) / bitScale
			}
			pcm = append(pcm, sum/float64(channels))
		}
	}

	return Decoded{PCM: pcm, SampleRate: int(stream.Info.SampleRate)}, nil
}

var _ Source = FLACSource{}
