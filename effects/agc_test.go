package effects

import "testing"

func TestAGCBoostsQuietSignalTowardTarget(t *testing.T) {
	a := NewAGC()
	a.SetTarget(50) // maps to 0.255, the midpoint of [0.01, 0.50]

	frame := make([]float32, 64)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 0.01
		} else {
			frame[i] = -0.01
		}
	}

	for i := 0; i < 500; i++ {
		f := make([]float32, len(frame))
		copy(f, frame)
		a.Process(f, 1)
	}

	if a.Gain(0) <= 1.0 {
		t.Fatalf("Gain(0) = %v, want > 1.0 after boosting a quiet signal", a.Gain(0))
	}
}

func TestAGCChannelsAreIndependent(t *testing.T) {
	a := NewAGC()
	channels := 2
	frame := []float32{0.01, 0.4, -0.01, 0.4} // ch0 quiet, ch1 already loud

	for i := 0; i < 200; i++ {
		f := make([]float32, len(frame))
		copy(f, frame)
		a.Process(f, channels)
	}

	if a.Gain(0) == a.Gain(1) {
		t.Fatalf("expected independent per-channel gains, got equal: %v", a.Gain(0))
	}
}

func TestAGCResetRestoresUnityGain(t *testing.T) {
	a := NewAGC()
	frame := []float32{0.01, 0.01}
	for i := 0; i < 50; i++ {
		f := make([]float32, len(frame))
		copy(f, frame)
		a.Process(f, 1)
	}
	a.Reset()
	if a.Gain(0) != 1.0 {
		t.Fatalf("Gain(0) after Reset = %v, want 1.0", a.Gain(0))
	}
}

func TestAGCOutputNeverClips(t *testing.T) {
	a := NewAGC()
	a.SetTarget(100)
	frame := make([]float32, 32)
	for i := range frame {
		frame[i] = 0.001
	}
	for i := 0; i < 1000; i++ {
		f := make([]float32, len(frame))
		copy(f, frame)
		a.Process(f, 1)
		for _, v := range f {
			if v > 1.0 || v < -1.0 {
				t.Fatalf("sample %v out of [-1,1] range", v)
			}
		}
	}
}
