package effects

import "testing"

func TestNoiseGateZeroesBelowThresholdAfterHold(t *testing.T) {
	g := NewNoiseGate()
	g.hold = 1 // shrink hold for a fast test

	loud := []float32{0.5, 0.5, 0.5, 0.5}
	quiet := []float32{0.0001, 0.0001, 0.0001, 0.0001}

	g.Process(loud, 2)
	if !g.IsOpen() {
		t.Fatal("gate should be open for a loud frame")
	}

	g.Process(quiet, 2) // still within hold
	if !g.IsOpen() {
		t.Fatal("gate should still be open during the hold period")
	}

	f := make([]float32, len(quiet))
	copy(f, quiet)
	g.Process(f, 2) // hold expired now
	if g.IsOpen() {
		t.Fatal("gate should be closed once hold period elapses")
	}
	for _, v := range f {
		if v != 0 {
			t.Fatalf("expected frame zeroed below threshold, got %v", f)
		}
	}
}

func TestNoiseGateDisabledIsNoOp(t *testing.T) {
	g := NewNoiseGate()
	g.SetEnabled(false)

	frame := []float32{0.0001, 0.0001}
	want := []float32{0.0001, 0.0001}
	g.Process(frame, 1)
	for i := range frame {
		if frame[i] != want[i] {
			t.Fatalf("disabled gate modified frame: got %v want %v", frame, want)
		}
	}
	if !g.IsOpen() {
		t.Fatal("disabled gate must report open")
	}
}

func TestNoiseGateSetThresholdRange(t *testing.T) {
	g := NewNoiseGate()
	g.SetThreshold(0)
	if g.Threshold() < 0.001 {
		t.Fatalf("Threshold() = %v, want >= 0.001", g.Threshold())
	}
	g.SetThreshold(100)
	if g.Threshold() > 0.10001 {
		t.Fatalf("Threshold() = %v, want <= 0.1", g.Threshold())
	}
}
