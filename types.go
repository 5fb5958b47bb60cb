// Package engine implements a cross-platform, real-time multi-track audio
// mixing and synchronization engine. It consumes decoded or live audio
// sources, time-stretches and pitch-shifts each independently, keeps them
// sample-accurate along a shared timeline, mixes them into an interleaved
// stereo stream, and hands that stream to a platform audio backend at a
// fixed sample rate and buffer size.
//
// This package holds the types and contracts shared across the engine's
// subpackages (source, clock, syncgroup, mixer, recorder, metrics,
// backend/*, decoder/*): AudioConfig, SourceID, SourceState, ReadResult, and
// the Backend/Decoder interfaces those external collaborators implement.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/bken-audio/engine/enginerr"
)

// SourceID opaquely identifies a Source. It is UUID-sized per spec.
type SourceID = uuid.UUID

// NewSourceID returns a new random SourceID.
func NewSourceID() SourceID { return uuid.New() }

// Sample-rate and channel bounds enforced at every contract boundary.
const (
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MinChannels   = 1
	MaxChannels   = 2

	// MaxSources is the capacity choice (spec §3) that keeps worst-case CPU
	// (25 sources, each at tempo 1.2 running through the WSOLA unit) bounded.
	MaxSources = 25

	MinVolume = 0.0
	MaxVolume = 1.0

	MinTempo = 0.8
	MaxTempo = 1.2

	MinPitchSemitones = -24.0
	MaxPitchSemitones = 24.0
)

// AudioConfig is immutable for the lifetime of the Mixer/engine it belongs
// to. Every render, ReadSamples and recorder-tap call site uses this single
// buffer size — see DESIGN.md's "mixer buffer size" Open Question resolution.
type AudioConfig struct {
	SampleRate       int
	Channels         int
	BufferSizeFrames int
}

// NewAudioConfig validates and returns an AudioConfig, or a
// enginerr.ConfigurationError if any field is out of range.
func NewAudioConfig(sampleRate, channels, bufferSizeFrames int) (AudioConfig, error) {
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return AudioConfig{}, enginerr.New(enginerr.ConfigurationError,
			"sample_rate out of range [8000,192000]", nil)
	}
	if channels != 1 && channels != 2 {
		return AudioConfig{}, enginerr.New(enginerr.ConfigurationError,
			"channels must be 1 or 2", nil)
	}
	if bufferSizeFrames <= 0 {
		return AudioConfig{}, enginerr.New(enginerr.ConfigurationError,
			"buffer_size_frames must be > 0", nil)
	}
	return AudioConfig{
		SampleRate:       sampleRate,
		Channels:         channels,
		BufferSizeFrames: bufferSizeFrames,
	}, nil
}

// FrameSamples returns the number of interleaved float32 samples that make
// up n frames at this config's channel count.
func (c AudioConfig) FrameSamples(n int) int { return n * c.Channels }

// SourceState is the playback state machine position of a Source.
//
//	Stopped --play--> Playing --pause--> Paused --play--> Playing
//	Playing --stop--> Stopped (current_frame := 0)
//	Playing --EOS--> EndOfStream (terminal until seek or stop)
//	*       --error--> Error (terminal until dispose)
type SourceState int32

const (
	Stopped SourceState = iota
	Playing
	Paused
	EndOfStream
	Error
)

func (s SourceState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case EndOfStream:
		return "EndOfStream"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ReadResult is returned by a source's ReadSamples/ReadSamplesAtTime. It
// never carries an error that escapes to the RT path (spec §7) — Err is
// only set for the non-RT metrics/event surface to inspect after the fact;
// the RT caller always receives a full dst buffer (silence-padded on
// failure) regardless of Err.
type ReadResult struct {
	FramesRead int
	Dropout    bool // true if fewer frames were available than requested
	Err        error
}

// Ok reports whether the read completed without decoder failure. A dropout
// (SPSC underrun) is not a failure per spec §4.4 — it is silence + a stat.
func (r ReadResult) Ok() bool { return r.Err == nil }

// DecoderInfo describes the stream a Decoder exposes.
type DecoderInfo struct {
	SampleRate  int
	Channels    int
	TotalFrames int64 // -1 if unknown/unbounded (e.g. a live feed)
	Duration    time.Duration
}

// DecodedFrame is one block of PCM handed back by Decoder.DecodeNextFrame.
type DecodedFrame struct {
	Samples   []float32 // interleaved, DecoderInfo.Channels channels
	PTSFrames int64
	EOF       bool
}

// Decoder is the external collaborator contract a source pipeline consumes.
// Concrete decoders (MP3/WAV/FLAC/FFmpeg/Opus/live feed) live outside this
// module's core (spec §1); the core only calls these three methods. The
// engine assumes decoders already deliver samples at the engine's
// (sample_rate, channels) — resampling/channel conversion is the decoder
// wrapper's job, not the core's.
type Decoder interface {
	StreamInfo() DecoderInfo
	DecodeNextFrame() (DecodedFrame, error)
	Seek(frames int64) error
	Dispose() error
}

// RenderFunc is the callback a Backend invokes once per device buffer. It
// must not allocate or block; the implementation (Mixer.Render) fills
// output in place and returns. output holds exactly
// frameCount*Backend.Config().Channels interleaved float32 samples.
type RenderFunc func(output []float32, frameCount int) error

// Backend is the external collaborator contract the Mixer consumes. Concrete
// backends (WASAPI/CoreAudio/PulseAudio/AAudio/miniaudio/PortAudio) live
// outside this module's core (spec §1).
type Backend interface {
	// Config reports the (sample_rate, channels) this backend negotiated.
	// Fixed for the session; the engine performs no further negotiation.
	Config() AudioConfig
	// Start begins calling render once per device buffer until Stop.
	Start(render RenderFunc) error
	Stop() error
	// OnDisconnect registers a side-channel callback invoked if the device
	// is lost. May be called at most once per Start/Stop cycle.
	OnDisconnect(func(error))
}
