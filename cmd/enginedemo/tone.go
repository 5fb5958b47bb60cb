package main

import (
	"math"
	"sync"

	"github.com/bken-audio/engine"
)

// toneDecoder is a self-contained sine-wave Decoder used by this demo in
// place of a real file/network decoder, the same way the teacher's
// server supports a "-test-user" flag that emits a synthetic 440 Hz tone
// bot rather than real microphone input.
type toneDecoder struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	freqHz     float64
	amplitude  float32
	blockSize  int
	phase      float64
}

func newToneDecoder(sampleRate, channels int, freqHz float64, amplitude float32, blockSize int) *toneDecoder {
	return &toneDecoder{
		sampleRate: sampleRate,
		channels:   channels,
		freqHz:     freqHz,
		amplitude:  amplitude,
		blockSize:  blockSize,
	}
}

func (t *toneDecoder) StreamInfo() engine.DecoderInfo {
	return engine.DecoderInfo{SampleRate: t.sampleRate, Channels: t.channels, TotalFrames: -1}
}

func (t *toneDecoder) DecodeNextFrame() (engine.DecodedFrame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := make([]float32, t.blockSize*t.channels)
	step := 2 * math.Pi * t.freqHz / float64(t.sampleRate)
	for i := 0; i < t.blockSize; i++ {
		v := t.amplitude * float32(math.Sin(t.phase))
		for c := 0; c < t.channels; c++ {
			samples[i*t.channels+c] = v
		}
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return engine.DecodedFrame{Samples: samples}, nil
}

func (t *toneDecoder) Seek(frames int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = 0
	return nil
}

func (t *toneDecoder) Dispose() error { return nil }
