package effects

import "sync/atomic"

const (
	// DefaultDelayFrames is the bulk delay, in frames, assumed between the
	// mixer's output and that output reappearing in a monitored source.
	DefaultDelayFrames = 1920
	// DefaultTaps is the NLMS filter length in frames.
	DefaultTaps = 480
	// DefaultStep is the NLMS step size mu (0 < mu < 2).
	DefaultStep = 0.1
)

// AEC is an NLMS-based canceller, grounded on the teacher's
// client/internal/aec acoustic echo canceller. The teacher used it to
// remove loudspeaker bleed picked up by a physical microphone; here it is
// repurposed as an optional per-source effect that cancels the mixer's
// own prior output from a source that is itself being fed back into the
// mix (e.g. a monitor bus or a recording tap layered alongside played-back
// tracks), using the same NLMS math against a caller-fed reference signal
// instead of a captured mic signal.
//
// One NLMS filter runs per channel, all referencing the same mono
// downmix of the far-end signal — the teacher's far-end reference was
// single-channel (a voice call), and a shared reference is still the
// right model here since the "echo" source is the engine's own mixed
// output, not a per-channel acoustic path.
//
// Process runs on the source pipeline's RT read path (spec §4.4 step 5)
// and must neither lock nor allocate in steady state. weights is held
// behind an atomic.Pointer, swapped wholesale by SetEnabled/Reset from
// the control thread — the same "construct new state, swap the whole
// pointer" idiom source.Pipeline uses for its stretch.Unit — rather than
// a mutex guarding in-place mutation Process also needs to perform every
// call.
type AEC struct {
	enabledState atomic.Bool

	taps int
	step float64

	weights atomic.Pointer[[][]float64] // per-channel adaptive filter coefficients

	farBuf    []float32 // mono circular reference buffer
	farHead   int
	bufLen    int
	delayLen  int
	frameSize int

	ref []float32 // preallocated NLMS reference scratch, frameSize+taps-1 long
}

// NewAEC creates an AEC sized for frameSize-frame blocks.
func NewAEC(frameSize int) *AEC {
	bufLen := frameSize + DefaultDelayFrames + DefaultTaps
	a := &AEC{
		taps:      DefaultTaps,
		step:      DefaultStep,
		farBuf:    make([]float32, bufLen),
		bufLen:    bufLen,
		delayLen:  DefaultDelayFrames,
		frameSize: frameSize,
		ref:       make([]float32, frameSize+DefaultTaps-1),
	}
	a.enabledState.Store(true)
	empty := [][]float64{}
	a.weights.Store(&empty)
	return a
}

// SetEnabled enables or disables cancellation. Enabling swaps in a fresh
// zeroed set of filter weights so adaptation starts cleanly.
func (a *AEC) SetEnabled(enabled bool) {
	a.enabledState.Store(enabled)
	if enabled {
		a.zeroWeights()
	}
}

// FeedFarEnd stores a mono downmix of the mixer's most recent output
// frame as the far-end reference. Call once per mixer render tick, from
// the same RT thread that calls Process — farBuf/farHead are owned by
// that thread and never touched by a control-thread call.
func (a *AEC) FeedFarEnd(mono []float32) {
	for _, s := range mono {
		a.farBuf[a.farHead] = s
		a.farHead = (a.farHead + 1) % a.bufLen
	}
}

// zeroWeights builds a fresh all-zero weight set matching the current
// channel count and publishes it atomically.
func (a *AEC) zeroWeights() {
	cur := *a.weights.Load()
	next := make([][]float64, len(cur))
	for i := range next {
		next[i] = make([]float64, a.taps)
	}
	a.weights.Store(&next)
}

// ensureChannels returns the current weight set, growing and publishing
// it (once, at channel-count warm-up — channels are fixed for a
// pipeline's lifetime per spec §3) if fewer channels are allocated than
// needed.
func (a *AEC) ensureChannels(n int) [][]float64 {
	cur := *a.weights.Load()
	if len(cur) >= n {
		return cur
	}
	next := make([][]float64, n)
	copy(next, cur)
	for i := len(cur); i < n; i++ {
		next[i] = make([]float64, a.taps)
	}
	a.weights.Store(&next)
	return next
}

// Process cancels the far-end reference out of frame in place, running
// one NLMS filter per channel against the shared mono reference. No lock
// and no allocation once channel count has warmed up: ref is the
// construction-time scratch buffer, weights is a single atomic load.
func (a *AEC) Process(frame []float32, channels int) {
	if !a.enabledState.Load() || channels <= 0 {
		return
	}
	weights := a.ensureChannels(channels)

	framesN := len(frame) / channels
	refLen := framesN + a.taps - 1
	ref := a.ref[:refLen]
	startIdx := a.farHead - framesN - a.delayLen - a.taps + 1
	for j := range ref {
		idx := ((startIdx+j)%a.bufLen + 3*a.bufLen) % a.bufLen
		ref[j] = a.farBuf[idx]
	}

	for ch := 0; ch < channels; ch++ {
		w := weights[ch]
		for i := 0; i < framesN; i++ {
			refBase := i + a.taps - 1

			var y, power float64
			for k := 0; k < a.taps; k++ {
				x := float64(ref[refBase-k])
				y += w[k] * x
				power += x * x
			}

			idx := i*channels + ch
			e := float64(frame[idx]) - y

			if power > 1e-10 {
				step := a.step * e / power
				for k := 0; k < a.taps; k++ {
					w[k] += step * float64(ref[refBase-k])
				}
			}
			frame[idx] = float32(e)
		}
	}
}

// Reset clears all per-channel filter weights without disabling the
// effect.
func (a *AEC) Reset() {
	a.zeroWeights()
}
