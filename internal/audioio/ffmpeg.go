package audioio

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/soundmark/fpcore/internal/fperrors"
)

// FFmpegSource is the generic fallback for any container ffmpeg
// understands (m4a, ogg, aac, video-with-audio, ...). It shells out the
// same way the teacher's GetMetadata runs ffprobe, piping raw signed
// 16-bit little-endian mono PCM to stdout instead of parsing an on-disk
// intermediate file.
type FFmpegSource struct {
	// TargetSampleRate resamples during decode via ffmpeg's own -ar
	// flag. Zero keeps the source's native rate.
	TargetSampleRate int
}

func (s FFmpegSource) Decode(path string) (Decoded, error) {
	rate := s.TargetSampleRate
	args := []string{"-v", "quiet", "-i", path, "-f", "s16le", "-ac", "1"}
	if rate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", rate))
	}
	args = append(args, "-")

	cmd := exec.Command("ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Decoded{}, fperrors.IoError(fmt.Sprintf("ffmpeg decode failed: %s", stderr.String()), err)
	}

	raw := stdout.Bytes()
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}

	outRate := rate
	if outRate == 0 {
		meta, err := probeSampleRate(path)
		if err != nil {
			return Decoded{}, err
		}
		outRate = meta
	}

	return Decoded{PCM: int16ToFloat64(samples), SampleRate: outRate}, nil
}

// probeSampleRate shells out to ffprobe for the source's native sample
// rate, grounded directly on the teacher's GetMetadata.
func probeSampleRate(path string) (int, error) {
	cmd := exec.Command("ffprobe", "-v", "quiet", "-select_streams", "a:0",
		"-show_entries", "stream=sample_rate", "-of", "default=noprint_wrappers=1:nokey=1", path)

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fperrors.IoError("ffprobe sample rate", err)
	}

	var rate int
	if _, err := fmt.Sscanf(out.String(), "%d", &rate); err != nil {
		return 0, fperrors.IoError("parsing ffprobe sample rate", err)
	}
	return rate, nil
}

var _ Source = FFmpegSource{}
