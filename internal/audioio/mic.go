package audioio

import (
	"context"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/soundmark/fpcore/internal/fperrors"
)

// CaptureMicrophone records mono PCM from the default input device for
// the given duration, grounded directly on the teacher's
// main/recording.go RecordingWithInfo: portaudio.Initialize, a mono
// HighLatencyParameters stream with a 2048-frame buffer (matching the
// default FFT window), a read loop bounded by elapsed wall-clock time,
// and portaudio.Terminate on the way out. ctx lets the caller cancel
// mid-recording instead of the teacher's unconditional 5-second loop.
func CaptureMicrophone(ctx context.Context, duration time.Duration) (Decoded, error) {
	if err := portaudio.Initialize(); err != nil {
		return Decoded{}, fperrors.IoError("initialize portaudio", err)
	}
	defer portaudio.Terminate()

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Decoded{}, fperrors.IoError("get default input device", err)
	}

	sampleRate := device.DefaultSampleRate
	if sampleRate < 44100 {
		sampleRate = 44100
	}

	params := portaudio.HighLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = sampleRate
	params.FramesPerBuffer = 2048

	buffer := make([]int16, 2048)
	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return Decoded{}, fperrors.IoError("open portaudio stream", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return Decoded{}, fperrors.IoError("start portaudio stream", err)
	}
	defer stream.Stop()

	var samples []int16
	start := time.Now()
	for time.Since(start) < duration {
		select {
		case <-ctx.Done():
			return Decoded{}, fperrors.Cancelled("microphone capture cancelled")
		default:
		}
		if err := stream.Read(); err != nil {
			return Decoded{}, fperrors.IoError("read portaudio stream", err)
		}
		samples = append(samples, buffer...)
	}

	return Decoded{PCM: int16ToFloat64(samples), SampleRate: int(stream.Info().SampleRate)}, nil
}
