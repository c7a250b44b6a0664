package audioio

import "testing"

func TestDownmixAveragesChannels(t *testing.T) {
	stereo := []float64{1.0, -1.0, 0.5, 0.5}
	mono := downmix(stereo, 2)
	if len(mono) != 2 {
		t.Fatalf("expected 2 mono samples, got %d", len(mono))
	}
	if mono[0] != 0 {
		t.Fatalf("expected frame 0 to average to 0, got %v", mono[0])
	}
	if mono[1] != 0.5 {
		t.Fatalf("expected frame 1 to average to 0.5, got %v", mono[1])
	}
}

func TestDownmixMonoIsIdentity(t *testing.T) {
	mono := []float64{0.1, 0.2, 0.3}
	out := downmix(mono, 1)
	for i := range mono {
		if out[i] != mono[i] {
			t.Fatalf("mono passthrough changed sample %d", i)
		}
	}
}

func TestInt16ToFloat64Scales(t *testing.T) {
	out := int16ToFloat64([]int16{32767, -32768, 0})
	if out[2] != 0 {
		t.Fatalf("expected zero sample to stay zero, got %v", out[2])
	}
	if out[0] <= 0.99 || out[0] > 1.0 {
		t.Fatalf("expected max sample near 1.0, got %v", out[0])
	}
	if out[1] != -1.0 {
		t.Fatalf("expected min sample to be exactly -1.0, got %v", out[1])
	}
}

func TestErrUnsupportedFormatMessage(t *testing.T) {
	err := ErrUnsupportedFormat{Ext: "xyz"}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}
