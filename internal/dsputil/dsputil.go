// Package dsputil holds the small sample-level helpers shared by the
// effects chain, the time-stretch unit, and the mixer's peak metering.
// Grounded on client/internal/vad.RMS and client/audio.go's clampFloat32
// from the teacher, generalized from mono-only to N interleaved channels.
package dsputil

import "math"

// RMS returns the root-mean-square of an interleaved multi-channel frame,
// treating every sample equally regardless of channel.
func RMS(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(frame))))
}

// ChannelRMS returns the root-mean-square of samples at stride positions
// channel, channel+channels, ... within frame — i.e. the RMS of a single
// channel within an interleaved multi-channel frame.
func ChannelRMS(frame []float32, channel, channels int) float32 {
	var sum float64
	var n int
	for i := channel; i < len(frame); i += channels {
		s := float64(frame[i])
		sum += s * s
		n++
	}
	if n == 0 {
		return 0
	}
	return float32(math.Sqrt(sum / float64(n)))
}

// ChannelPeak returns the maximum absolute sample value found at stride
// positions channel, channel+channels, channel+2*channels, ... within
// frame. Used by the mixer to compute per-channel peak levels (spec §4.7).
func ChannelPeak(frame []float32, channel, channels int) float32 {
	var peak float32
	for i := channel; i < len(frame); i += channels {
		v := frame[i]
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Clamp restricts v to [-1.0, 1.0].
func Clamp(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}

// ClampAll clamps every sample of frame in place to [-1.0, 1.0].
func ClampAll(frame []float32) {
	for i, v := range frame {
		frame[i] = Clamp(v)
	}
}

// Zero zeroes every sample of buf.
func Zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
