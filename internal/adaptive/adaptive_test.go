package adaptive

import "testing"

func TestTargetPrefetchDepthNoDropoutsReturnsDefault(t *testing.T) {
	if got := TargetPrefetchDepth(0); got != DefaultPrefetchDepth {
		t.Fatalf("TargetPrefetchDepth(0) = %d, want %d", got, DefaultPrefetchDepth)
	}
}

func TestTargetPrefetchDepthGrowsWithDropoutRate(t *testing.T) {
	low := TargetPrefetchDepth(0.01)
	high := TargetPrefetchDepth(0.5)
	if high <= low {
		t.Fatalf("expected depth to grow with dropout rate: low=%d high=%d", low, high)
	}
}

func TestTargetPrefetchDepthClampedToMax(t *testing.T) {
	if got := TargetPrefetchDepth(1.0); got > 16 {
		t.Fatalf("TargetPrefetchDepth(1.0) = %d, want <= 16", got)
	}
}

func TestSmoothDropoutRateConverges(t *testing.T) {
	smoothed := 0.0
	for i := 0; i < 100; i++ {
		smoothed = SmoothDropoutRate(smoothed, 1.0, DefaultSmoothingAlpha)
	}
	if smoothed < 0.99 {
		t.Fatalf("smoothed rate = %v, want close to 1.0 after many samples at 1.0", smoothed)
	}
}
