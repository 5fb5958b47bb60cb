package stretch

import "github.com/klauspost/cpuid/v2"

// resampler performs linear-interpolation resampling at a fixed ratio,
// used internally to decouple pitch from tempo: reading the source stream
// at ratio = 2^(semitones/12) shifts its pitch without changing the frame
// count the WSOLA stage sees per synthesis hop (spec §4.3, "pitch shifting
// implemented via resampling by 2^(semitones/12) combined with an inverse
// tempo adjustment").
//
// wideLoop reports whether lerpFrame should take its 4-wide unrolled
// path (lerpFrameWide) instead of the single-sample scalar loop
// (lerpFrameScalar). Both produce identical output; wideLoop only
// changes how many samples the compiler sees in flight per iteration.
var wideLoop = cpuid.CPU.Supports(cpuid.AVX2, cpuid.SSE4)

// channelResampler holds the fractional read-position state for one
// resample call sequence so that Process can be invoked repeatedly across
// block boundaries without phase discontinuities.
type channelResampler struct {
	channels int
	pos      float64 // fractional source-frame read position
}

func newChannelResampler(channels int) *channelResampler {
	return &channelResampler{channels: channels}
}

func (r *channelResampler) reset() { r.pos = 0 }

// resampleInto reads frames from src (a fixed-capacity frame source backed
// by f) at the given ratio, writing resampled frames into dst until dst is
// full or src runs out. It returns the number of frames written and the
// number of whole source frames consumed.
//
// ratio > 1 raises pitch (reads source faster, so fewer output frames span
// the same source material); ratio < 1 lowers it.
func (r *channelResampler) resampleInto(f *fifo, ratio float64, dst []float32) (written, consumed int) {
	ch := r.channels
	framesOut := len(dst) / ch
	avail := f.available()
	if avail < 2 {
		return 0, 0
	}

	for written < framesOut {
		i0 := int(r.pos)
		if i0 >= avail-1 {
			break
		}
		frac := float32(r.pos - float64(i0))
		a := f.frameAt(i0)
		b := f.frameAt(i0 + 1)
		out := dst[written*ch : (written+1)*ch]
		lerpFrame(a, b, frac, out)
		written++
		r.pos += ratio
	}

	consumed = int(r.pos)
	if consumed > avail {
		consumed = avail
	}
	r.pos -= float64(consumed)
	return written, consumed
}

// lerpFrame linearly interpolates between frames a and b (both ch samples
// wide) by fraction t, writing the result to out. On CPUs with wide SIMD
// registers (wideLoop) the loop is unrolled by 4 so the compiler can pack
// the interpolation into vector instructions; elsewhere it falls back to
// the scalar loop. Both produce bit-identical output — the unroll changes
// nothing but how many samples are in flight per iteration.
func lerpFrame(a, b []float32, t float32, out []float32) {
	if wideLoop {
		lerpFrameWide(a, b, t, out)
		return
	}
	lerpFrameScalar(a, b, t, out)
}

func lerpFrameScalar(a, b []float32, t float32, out []float32) {
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*t
	}
}

// lerpFrameWide is lerpFrameScalar unrolled by 4. a, b, out are always
// slices sliced from a larger frame backing array, so reads up to 3
// samples past len(out) would be safe in practice, but we still bound
// every loop on the true length: unrolling buys the compiler a
// vectorizable inner loop without changing the numeric result.
func lerpFrameWide(a, b []float32, t float32, out []float32) {
	n := len(out)
	i := 0
	for ; i+4 <= n; i += 4 {
		out[i] = a[i] + (b[i]-a[i])*t
		out[i+1] = a[i+1] + (b[i+1]-a[i+1])*t
		out[i+2] = a[i+2] + (b[i+2]-a[i+2])*t
		out[i+3] = a[i+3] + (b[i+3]-a[i+3])*t
	}
	for ; i < n; i++ {
		out[i] = a[i] + (b[i]-a[i])*t
	}
}
