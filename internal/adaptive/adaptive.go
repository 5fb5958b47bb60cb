// Package adaptive tunes a source's SPSC prefetch depth from observed
// dropout behavior. Grounded on the teacher's client/internal/adapt
// package, which tuned Opus bitrate and network jitter-buffer depth from
// RTT/loss measurements; this engine has no network transport (spec
// Non-goals), so only the jitter-buffer-depth half of that idea survives,
// repurposed: "jitter" here means frames underrun at the producer side
// (the decoder couldn't keep the SPSC full in time), not network
// inter-arrival jitter, and "depth" means how many device-buffer-sized
// chunks ahead the producer thread tries to stay.
package adaptive

import "math"

const (
	// DefaultPrefetchDepth is the prefetch depth used before any dropout
	// measurement is available, in device-buffer units.
	DefaultPrefetchDepth = 2

	minDepth = 2
	maxDepth = 16
)

// TargetPrefetchDepth computes how many device-buffer-sized chunks ahead
// a source's producer thread should try to stay, given a smoothed
// dropout rate (0.0-1.0, fraction of recent reads that underran). Mirrors
// the teacher's TargetJitterDepth shape: more headroom the more often
// the source is starving the mixer, clamped to a sane range.
func TargetPrefetchDepth(dropoutRate float64) int {
	if dropoutRate <= 0 {
		return DefaultPrefetchDepth
	}
	depth := DefaultPrefetchDepth + int(math.Ceil(dropoutRate*20))
	if depth < minDepth {
		depth = minDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	return depth
}

// SmoothDropoutRate applies exponential smoothing to a raw dropout
// observation (0.0 or 1.0 per read, or any fractional rate over a
// window). alpha controls the weight of the new sample; the teacher used
// 0.3 for loss-rate smoothing and that default carries over unchanged.
func SmoothDropoutRate(smoothed, raw, alpha float64) float64 {
	return alpha*raw + (1-alpha)*smoothed
}

// DefaultSmoothingAlpha is the smoothing weight applied to new dropout
// observations when a caller doesn't override it.
const DefaultSmoothingAlpha = 0.3
