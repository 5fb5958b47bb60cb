package effects

import "github.com/bken-audio/engine/internal/dsputil"

const (
	// DefaultTarget is the desired per-channel RMS level (linear).
	DefaultTarget = 0.20

	// MinGain limits attenuation of loud signals to 20 dB.
	MinGain = 0.1
	// MaxGain allows up to +20 dB of amplification.
	MaxGain = 10.0

	// AttackCoeff controls how quickly gain is reduced when level exceeds
	// target; release is slower to avoid pumping artifacts.
	AttackCoeff = 0.80
	ReleaseCoeff = 0.02

	// minRMS suppresses gain updates on near-silent frames.
	minRMS = 0.001
)

// AGC is an automatic gain control processor. Unlike the teacher's
// mono-only version, it tracks one gain state per channel so a stereo or
// multi-channel source isn't forced through a single shared gain.
type AGC struct {
	target float64
	gains  []float64 // per-channel linear gain, lazily sized to channels
}

// NewAGC returns an AGC at DefaultTarget with unity gain on every
// channel.
func NewAGC() *AGC {
	return &AGC{target: DefaultTarget}
}

// SetTarget sets the desired RMS level. level is in [0, 100] and is
// mapped linearly to [0.01, 0.50].
func (a *AGC) SetTarget(level int) {
	a.target = 0.01 + float64(clampLevel(level))/100.0*0.49
}

// Gain returns the current linear gain multiplier for channel ch, or 1.0
// if that channel hasn't been processed yet.
func (a *AGC) Gain(ch int) float64 {
	if ch < 0 || ch >= len(a.gains) {
		return 1.0
	}
	return a.gains[ch]
}

func (a *AGC) ensureChannels(n int) {
	for len(a.gains) < n {
		a.gains = append(a.gains, 1.0)
	}
}

// Process applies per-channel gain to frame in place and updates the gain
// estimate for each channel independently, using the same attack/release
// asymmetric smoothing as the teacher's mono AGC.
func (a *AGC) Process(frame []float32, channels int) {
	if len(frame) == 0 || channels <= 0 {
		return
	}
	a.ensureChannels(channels)

	for ch := 0; ch < channels; ch++ {
		rms := float64(dsputil.ChannelRMS(frame, ch, channels))
		gain := a.gains[ch]

		for i := ch; i < len(frame); i += channels {
			v := frame[i] * float32(gain)
			frame[i] = dsputil.Clamp(v)
		}

		if rms < minRMS {
			continue
		}

		desired := a.target / rms
		if desired < MinGain {
			desired = MinGain
		} else if desired > MaxGain {
			desired = MaxGain
		}

		var coeff float64
		if desired < gain {
			coeff = AttackCoeff
		} else {
			coeff = ReleaseCoeff
		}
		a.gains[ch] = gain + coeff*(desired-gain)
	}
}

// Reset restores unity gain on every channel without changing the target.
func (a *AGC) Reset() {
	for i := range a.gains {
		a.gains[i] = 1.0
	}
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
