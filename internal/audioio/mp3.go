package audioio

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/soundmark/fpcore/internal/fperrors"
)

// MP3Source decodes MPEG audio via go-mp3, which always yields 16-bit
// stereo PCM regardless of the source's channel count; downmix folds
// that to mono the same way WAVSource does.
type MP3Source struct{}

func (MP3Source) Decode(path string) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, fperrors.IoError("open mp3 file", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return Decoded{}, fperrors.IoError("decode mp3 stream", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return Decoded{}, fperrors.IoError("read mp3 pcm", err)
	}
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}

	pcm := int16ToFloat64(samples)
	pcm = downmix(pcm, 2) // go-mp3 always decodes to stereo

	return Decoded{PCM: pcm, SampleRate: dec.SampleRate()}, nil
}

var _ Source = MP3Source{}
