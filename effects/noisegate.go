package effects

import "github.com/bken-audio/engine/internal/dsputil"

const (
	// DefaultThreshold is the RMS level below which audio is gated
	// (~-40 dBFS).
	DefaultThreshold = float32(0.01)

	// DefaultHoldFrames is the number of Process calls to keep the gate
	// open after the signal drops below threshold.
	DefaultHoldFrames = 10
)

// NoiseGate zeroes frames whose RMS falls below a threshold, with a hold
// period that keeps the gate open briefly after the signal drops so short
// pauses aren't chopped. Grounded on the teacher's mono noisegate.Gate;
// generalized here to evaluate RMS across the whole interleaved frame
// (all channels considered together) rather than per channel, since a
// gate that could open on one channel and close on another would produce
// an audible channel-imbalance artifact.
type NoiseGate struct {
	threshold float32
	hold      int
	remaining int
	enabled   bool
	open      bool
}

// NewNoiseGate returns a Gate at DefaultThreshold/DefaultHoldFrames,
// enabled by default.
func NewNoiseGate() *NoiseGate {
	return &NoiseGate{
		threshold: DefaultThreshold,
		hold:      DefaultHoldFrames,
		enabled:   true,
	}
}

// SetEnabled enables or disables the gate. A disabled gate is a no-op.
func (g *NoiseGate) SetEnabled(enabled bool) {
	g.enabled = enabled
	if !enabled {
		g.remaining = 0
		g.open = false
	}
}

// Enabled reports whether the gate is currently enabled.
func (g *NoiseGate) Enabled() bool { return g.enabled }

// SetThreshold sets the RMS gate threshold. level is in [0, 100] and maps
// to an RMS range of [0.001, 0.10].
func (g *NoiseGate) SetThreshold(level int) {
	g.threshold = 0.001 + float32(clampLevel(level))/100.0*0.099
}

// Threshold returns the current RMS threshold (linear amplitude).
func (g *NoiseGate) Threshold() float32 { return g.threshold }

// IsOpen reports whether the gate most recently passed audio through.
func (g *NoiseGate) IsOpen() bool { return g.open }

// Process gates frame in place. channels is accepted to satisfy the
// Effect interface but the gate decision is made on the full-frame RMS,
// irrespective of channel layout.
func (g *NoiseGate) Process(frame []float32, channels int) {
	rms := dsputil.RMS(frame)

	if !g.enabled {
		g.open = true
		return
	}

	if rms >= g.threshold {
		g.remaining = g.hold
		g.open = true
		return
	}

	if g.remaining > 0 {
		g.remaining--
		g.open = true
		return
	}

	dsputil.Zero(frame)
	g.open = false
}

// Reset clears the hold counter without changing settings.
func (g *NoiseGate) Reset() {
	g.remaining = 0
	g.open = false
}
