package opus

import (
	"testing"

	"github.com/bken-audio/engine/internal/jitter"
)

// These tests exercise the parts of Decoder that don't require an
// initialized libopus decoder handle: priming behavior, stream info, and
// the Seek/Dispose contract. The Decode/DecodeFEC paths themselves are
// thin wrappers over gopkg.in/hraban/opus.v2 and are exercised by that
// package's own test suite.

func newTestDecoder(t *testing.T, jitterDepth int) *Decoder {
	t.Helper()
	return &Decoder{
		jb:         jitter.New(jitterDepth),
		sampleRate: 48000,
		channels:   2,
		frameSize:  960,
		pcm:        make([]int16, 960*2),
		out:        make([]float32, 960*2),
	}
}

func TestDecodeNextFrameIsSilentWhilePriming(t *testing.T) {
	d := newTestDecoder(t, 3)
	frame, err := d.DecodeNextFrame()
	if err != nil {
		t.Fatalf("DecodeNextFrame: %v", err)
	}
	for i, v := range frame.Samples {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0 while priming", i, v)
		}
	}
}

func TestDecodeNextFrameAdvancesPTS(t *testing.T) {
	d := newTestDecoder(t, 1)
	first, _ := d.DecodeNextFrame()
	second, _ := d.DecodeNextFrame()
	if second.PTSFrames <= first.PTSFrames {
		t.Fatalf("PTSFrames did not advance: %d -> %d", first.PTSFrames, second.PTSFrames)
	}
}

func TestStreamInfoReportsUnboundedStream(t *testing.T) {
	d := newTestDecoder(t, 2)
	info := d.StreamInfo()
	if info.TotalFrames != -1 {
		t.Fatalf("TotalFrames = %d, want -1 for a live packet stream", info.TotalFrames)
	}
	if info.SampleRate != 48000 || info.Channels != 2 {
		t.Fatalf("StreamInfo() = %+v, want 48000/2", info)
	}
}

func TestSeekIsRejected(t *testing.T) {
	d := newTestDecoder(t, 2)
	if err := d.Seek(100); err == nil {
		t.Fatalf("expected Seek to be rejected for a live packet stream")
	}
}

func TestDisposeResetsJitterBuffer(t *testing.T) {
	d := newTestDecoder(t, 1)
	d.PushPacket(5, []byte{1, 2, 3})
	if err := d.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if d.jb.Primed() {
		t.Fatalf("expected jitter buffer to be reset (unprimed) after Dispose")
	}
}
