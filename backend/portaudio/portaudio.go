// Package portaudio implements engine.Backend over
// github.com/gordonklaus/portaudio, the engine's reference output
// backend.
//
// Grounded on the teacher's client/audio.go Start/Stop/playbackLoop: open
// a buffer-bound output stream, run the blocking Write loop in a
// dedicated goroutine, and on Stop, stop the stream before joining the
// goroutine before closing the stream — PortAudio's Stop unblocks any
// in-flight Write, but the native stream object must outlive every
// goroutine that might still touch it.
package portaudio

import (
	"log"
	"sync"
	"sync/atomic"

	gopa "github.com/gordonklaus/portaudio"

	"github.com/bken-audio/engine"
	"github.com/bken-audio/engine/enginerr"
)

// Options configures which device and latency a Backend opens.
type Options struct {
	OutputDeviceID int // -1 selects the platform default
	LowLatency     bool
}

// Backend is a concrete engine.Backend driving one PortAudio output
// stream.
type Backend struct {
	cfg  engine.AudioConfig
	opts Options

	mu      sync.Mutex
	stream  *gopa.Stream
	buf     []float32
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	onDisconnect func(error)
}

// New initializes the PortAudio runtime and returns a Backend for cfg.
// Callers must call Terminate when entirely done with PortAudio.
func New(cfg engine.AudioConfig, opts Options) (*Backend, error) {
	if err := gopa.Initialize(); err != nil {
		return nil, enginerr.New(enginerr.BackendError, "initialize portaudio", err)
	}
	return &Backend{cfg: cfg, opts: opts}, nil
}

// Terminate shuts down the PortAudio runtime. Call once, after the last
// Backend using it has Stopped.
func Terminate() error { return gopa.Terminate() }

// Config reports the audio configuration this backend was built for.
func (b *Backend) Config() engine.AudioConfig { return b.cfg }

// OnDisconnect registers a callback invoked if the output stream fails
// mid-session (device unplugged, driver reset).
func (b *Backend) OnDisconnect(fn func(error)) { b.onDisconnect = fn }

// Start opens the output stream and begins calling render once per
// device buffer, until Stop.
func (b *Backend) Start(render engine.RenderFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running.Load() {
		return nil
	}

	devices, err := gopa.Devices()
	if err != nil {
		return enginerr.New(enginerr.BackendError, "enumerate devices", err)
	}
	outDev, err := resolveDevice(devices, b.opts.OutputDeviceID)
	if err != nil {
		return enginerr.New(enginerr.BackendError, "resolve output device", err)
	}

	latency := outDev.DefaultHighOutputLatency
	if b.opts.LowLatency {
		latency = outDev.DefaultLowOutputLatency
	}

	buf := make([]float32, b.cfg.BufferSizeFrames*b.cfg.Channels)
	params := gopa.StreamParameters{
		Output: gopa.StreamDeviceParameters{
			Device:   outDev,
			Channels: b.cfg.Channels,
			Latency:  latency,
		},
		SampleRate:      float64(b.cfg.SampleRate),
		FramesPerBuffer: b.cfg.BufferSizeFrames,
	}

	stream, err := gopa.OpenStream(params, buf)
	if err != nil {
		return enginerr.New(enginerr.BackendError, "open output stream", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return enginerr.New(enginerr.BackendError, "start output stream", err)
	}

	b.stream = stream
	b.buf = buf
	b.stopCh = make(chan struct{})
	b.running.Store(true)

	b.wg.Add(1)
	go b.playbackLoop(render)

	log.Printf("[backend:portaudio] started output=%s", outDev.Name)
	return nil
}

func resolveDevice(devices []*gopa.DeviceInfo, idx int) (*gopa.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return gopa.DefaultOutputDevice()
}

func (b *Backend) playbackLoop(render engine.RenderFunc) {
	defer b.wg.Done()

	for b.running.Load() {
		if err := render(b.buf, b.cfg.BufferSizeFrames); err != nil {
			log.Printf("[backend:portaudio] render: %v", err)
			return
		}
		if err := b.stream.Write(); err != nil {
			if b.running.Load() {
				log.Printf("[backend:portaudio] write: %v", err)
				if b.onDisconnect != nil {
					b.onDisconnect(err)
				}
			}
			return
		}
	}
}

// Stop halts playback. Sequence matters: the stream is stopped (which
// unblocks any in-flight Write) before the goroutine is joined, and only
// then is the stream closed — never free the native stream object while
// playbackLoop might still be touching it.
func (b *Backend) Stop() error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	close(b.stopCh)

	b.mu.Lock()
	if b.stream != nil {
		if err := b.stream.Stop(); err != nil {
			b.mu.Unlock()
			return enginerr.New(enginerr.BackendError, "stop output stream", err)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream != nil {
		err := b.stream.Close()
		b.stream = nil
		if err != nil {
			return enginerr.New(enginerr.BackendError, "close output stream", err)
		}
	}
	return nil
}

// ListOutputDevices returns the names of devices PortAudio reports as
// having output channels.
func ListOutputDevices() ([]string, error) {
	devices, err := gopa.Devices()
	if err != nil {
		return nil, enginerr.New(enginerr.BackendError, "enumerate devices", err)
	}
	var names []string
	for _, d := range devices {
		if d.MaxOutputChannels > 0 {
			names = append(names, d.Name)
		}
	}
	return names, nil
}
