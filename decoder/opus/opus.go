// Package opus implements engine.Decoder over gopkg.in/hraban/opus.v2,
// for sources fed by a sequenced stream of Opus packets (e.g. a network
// voice feed) rather than a seekable container file.
//
// Grounded on the teacher's client/audio.go playbackLoop: reorder inbound
// packets through a jitter buffer, then decode each popped frame. If the
// packet's own Opus data is present, DecodeNextFrame decodes it directly;
// a gap is concealed with PLC via a nil-data Decode call, letting libopus
// extrapolate a plausible waveform from its internal state.
// DecodeNextFrame does not attempt FEC recovery itself: DecodeFECFrame
// recovers a lost frame from the next packet's FEC payload (falling back
// to PLC) when the caller supplies that payload.
package opus

import (
	"github.com/bken-audio/engine"
	"github.com/bken-audio/engine/enginerr"
	"github.com/bken-audio/engine/internal/jitter"

	hropus "gopkg.in/hraban/opus.v2"
)

// Decoder decodes a sequenced Opus packet stream into float32 PCM.
type Decoder struct {
	dec        *hropus.Decoder
	jb         *jitter.Buffer
	sampleRate int
	channels   int
	frameSize  int // samples per channel per Opus frame (e.g. 960 @ 48kHz/20ms)

	pcm   []int16 // reused decode scratch
	out   []float32
	frame int64 // cumulative frames decoded, this decoder's PTS clock
}

// New constructs a Decoder for a mono/stereo Opus stream at sampleRate,
// reassembling packets through a jitter buffer of jitterDepth frames
// before decoding (spec §6, adapting the teacher's per-sender jitter
// buffer to this decoder's single incoming stream).
func New(sampleRate, channels, frameSize, jitterDepth int) (*Decoder, error) {
	dec, err := hropus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, enginerr.New(enginerr.DecodingError, "create opus decoder", err)
	}
	return &Decoder{
		dec:        dec,
		jb:         jitter.New(jitterDepth),
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
		pcm:        make([]int16, frameSize*channels),
		out:        make([]float32, frameSize*channels),
	}, nil
}

// PushPacket feeds one sequenced Opus packet into the jitter buffer. The
// caller (a network or file-demuxing layer outside this module's core)
// drives this; it is not itself part of the Decoder contract.
func (d *Decoder) PushPacket(seq uint16, opusData []byte) {
	d.jb.Push(seq, opusData)
}

// StreamInfo reports this decoder's format. TotalFrames is -1: a
// sequenced packet stream has no known bound (spec's DecoderInfo doc:
// "-1 if unknown/unbounded (e.g. a live feed)").
func (d *Decoder) StreamInfo() engine.DecoderInfo {
	return engine.DecoderInfo{
		SampleRate:  d.sampleRate,
		Channels:    d.channels,
		TotalFrames: -1,
	}
}

// DecodeNextFrame pops one reassembled packet (or a gap) from the jitter
// buffer and decodes it, concealing a gap with PLC. It does not try FEC;
// see DecodeFECFrame.
func (d *Decoder) DecodeNextFrame() (engine.DecodedFrame, error) {
	pkt, ok := d.jb.Pop()
	if !ok {
		// Still priming: no packet has been played yet, so there is
		// nothing for libopus to conceal from — emit silence rather than
		// invoking PLC against an unstarted decoder state.
		for i := range d.out {
			d.out[i] = 0
		}
		pts := d.frame
		d.frame += int64(d.frameSize)
		return engine.DecodedFrame{Samples: append([]float32(nil), d.out...), PTSFrames: pts}, nil
	}

	var n int
	var err error
	if pkt.Data != nil {
		n, err = d.dec.Decode(pkt.Data, d.pcm)
	} else {
		// A placeholder entry with no payload: packet loss concealment.
		n, err = d.dec.Decode(nil, d.pcm)
	}
	if err != nil {
		return engine.DecodedFrame{}, enginerr.New(enginerr.DecodingError, "opus decode", err)
	}

	samples := d.channels * n
	for i := 0; i < samples; i++ {
		d.out[i] = float32(d.pcm[i]) / 32768.0
	}

	pts := d.frame
	d.frame += int64(n)

	return engine.DecodedFrame{
		Samples:   append([]float32(nil), d.out[:samples]...),
		PTSFrames: pts,
	}, nil
}

// DecodeFECFrame decodes the FEC payload carried by the packet *after*
// the lost one, recovering the lost frame from forward error correction
// data rather than pure concealment. Falls back to PLC if FEC decode
// fails, matching the teacher's fallback order exactly.
func (d *Decoder) DecodeFECFrame(fecData []byte) (engine.DecodedFrame, error) {
	var n int
	if err := d.dec.DecodeFEC(fecData, d.pcm); err != nil {
		var plcErr error
		n, plcErr = d.dec.Decode(nil, d.pcm)
		if plcErr != nil {
			return engine.DecodedFrame{}, enginerr.New(enginerr.DecodingError, "opus FEC+PLC fallback", plcErr)
		}
	} else {
		n = d.frameSize
	}

	samples := d.channels * n
	for i := 0; i < samples; i++ {
		d.out[i] = float32(d.pcm[i]) / 32768.0
	}

	pts := d.frame
	d.frame += int64(n)

	return engine.DecodedFrame{
		Samples:   append([]float32(nil), d.out[:samples]...),
		PTSFrames: pts,
	}, nil
}

// Seek is unsupported: a sequenced packet stream has no addressable
// position to seek to (spec §6, TotalFrames == -1 streams reject Seek).
func (d *Decoder) Seek(frames int64) error {
	return enginerr.New(enginerr.SeekError, "cannot seek a live opus packet stream", nil)
}

// Dispose resets the jitter buffer. The underlying libopus decoder has
// no explicit handle to release; its memory is reclaimed by the garbage
// collector once this Decoder is unreferenced.
func (d *Decoder) Dispose() error {
	d.jb.Reset()
	return nil
}
