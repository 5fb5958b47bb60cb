// Command enginedemo wires the engine's packages together end to end:
// two tone sources, a sync group, the mixer's RT render loop driven by a
// PortAudio backend, an optional WAV recording tap, and a metrics
// reporter — exercising two-track mixing of sources held in one sync
// group. The -tempo flag sets the sync group's clock tempo only; the tone
// sources' own playback speed is not changed by it.
//
// Grounded on the teacher's server/main.go: flag-parsed configuration,
// "[subsystem] " tagged log lines, and a signal.Notify(os.Interrupt)
// graceful-shutdown sequence.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/bken-audio/engine"
	"github.com/bken-audio/engine/backend/portaudio"
	"github.com/bken-audio/engine/effects"
	"github.com/bken-audio/engine/internal/engineconfig"
	"github.com/bken-audio/engine/metrics"
	"github.com/bken-audio/engine/mixer"
	"github.com/bken-audio/engine/source"
)

func main() {
	defaults := engineconfig.Load()

	sampleRate := flag.Int("sample-rate", defaults.SampleRate, "device sample rate")
	channels := flag.Int("channels", defaults.Channels, "device channel count (1 or 2)")
	bufferSize := flag.Int("buffer-size", defaults.BufferSizeFrames, "device buffer size in frames")
	outputDevice := flag.Int("output-device", defaults.OutputDeviceID, "output device index (-1 for platform default)")
	recordPath := flag.String("record", "", "if set, write a WAV recording of the mix to this path")
	tempo := flag.Float64("tempo", 1.0, "tempo set on the sync group's clock, clamped to [0.8, 1.2] (does not change the tones' playback speed)")
	runFor := flag.Duration("duration", 10*time.Second, "how long to run before exiting")
	saveConfig := flag.Bool("save-config", false, "persist the resolved audio settings as the new defaults on exit")
	flag.Parse()

	cfg, err := engine.NewAudioConfig(*sampleRate, *channels, *bufferSize)
	if err != nil {
		log.Fatalf("[enginedemo] %v", err)
	}

	m := mixer.New(cfg)

	chainA := effects.NewChain(effects.NewAGC(), effects.NewNoiseGate())
	aecMonitor := effects.NewAEC(cfg.BufferSizeFrames)
	chainB := effects.NewChain(effects.NewAGC(), aecMonitor)

	srcA := source.New(cfg, source.Options{
		Decoder:     newToneDecoder(cfg.SampleRate, cfg.Channels, 440.0, 0.5, cfg.BufferSizeFrames),
		Chain:       chainA,
		LoopEnabled: true,
	})
	srcB := source.New(cfg, source.Options{
		Decoder:     newToneDecoder(cfg.SampleRate, cfg.Channels, 554.37, 0.5, cfg.BufferSizeFrames),
		Chain:       chainB,
		LoopEnabled: true,
	})

	if err := m.AddPipelineSource(srcA); err != nil {
		log.Fatalf("[enginedemo] add source A: %v", err)
	}
	if err := m.AddPipelineSource(srcB); err != nil {
		log.Fatalf("[enginedemo] add source B: %v", err)
	}

	group := m.CreateSyncGroupForPipelines("demo", []*source.Pipeline{srcA, srcB})
	m.EnableAutoDriftCorrection(true)

	if err := srcA.Play(); err != nil {
		log.Fatalf("[enginedemo] play source A: %v", err)
	}
	if err := srcB.Play(); err != nil {
		log.Fatalf("[enginedemo] play source B: %v", err)
	}
	if err := m.SetSyncGroupTempo("demo", float32(*tempo)); err != nil {
		log.Fatalf("[enginedemo] set tempo: %v", err)
	}
	if err := m.StartSyncGroup("demo"); err != nil {
		log.Fatalf("[enginedemo] start sync group: %v", err)
	}

	if *recordPath != "" {
		if err := m.BeginRecording(*recordPath, 16); err != nil {
			log.Fatalf("[enginedemo] begin recording: %v", err)
		}
		log.Printf("[enginedemo] recording to %s", *recordPath)
	}

	backend, err := portaudio.New(cfg, portaudio.Options{OutputDeviceID: *outputDevice})
	if err != nil {
		log.Fatalf("[enginedemo] %v", err)
	}
	backend.OnDisconnect(func(err error) {
		log.Printf("[enginedemo] output device disconnected: %v", err)
	})

	// monoRef is reused across render ticks so feeding the AEC monitor's
	// far-end reference (the mixer's own output, downmixed) never
	// allocates on the render thread.
	monoRef := make([]float32, cfg.BufferSizeFrames)
	renderAndFeedback := func(output []float32, frameCount int) error {
		if err := m.Render(output, frameCount); err != nil {
			return err
		}
		mono := monoRef[:frameCount]
		for i := range mono {
			var sum float32
			for ch := 0; ch < cfg.Channels; ch++ {
				sum += output[i*cfg.Channels+ch]
			}
			mono[i] = sum / float32(cfg.Channels)
		}
		aecMonitor.FeedFarEnd(mono)
		return nil
	}
	if err := backend.Start(renderAndFeedback); err != nil {
		log.Fatalf("[enginedemo] start backend: %v", err)
	}

	reporter := metrics.NewReporter(m, func() []metrics.SourceStats {
		return []metrics.SourceStats{metrics.WrapPipeline(srcA), metrics.WrapPipeline(srcB)}
	})
	ctx, cancel := context.WithCancel(context.Background())
	go reporter.Run(ctx, time.Second)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	select {
	case <-sigCh:
		log.Printf("[enginedemo] interrupted, shutting down")
	case <-time.After(*runFor):
		log.Printf("[enginedemo] duration elapsed, shutting down")
	}

	cancel()
	if *saveConfig {
		persisted := defaults
		persisted.SampleRate = cfg.SampleRate
		persisted.Channels = cfg.Channels
		persisted.BufferSizeFrames = cfg.BufferSizeFrames
		persisted.OutputDeviceID = *outputDevice
		persisted.MasterVolume = float64(m.MasterVolume())
		if err := engineconfig.Save(persisted); err != nil {
			log.Printf("[enginedemo] save config: %v", err)
		}
	}
	if *recordPath != "" {
		if err := m.EndRecording(); err != nil {
			log.Printf("[enginedemo] end recording: %v", err)
		}
	}
	if err := backend.Stop(); err != nil {
		log.Printf("[enginedemo] stop backend: %v", err)
	}
	if err := m.Dispose(); err != nil {
		log.Printf("[enginedemo] dispose mixer: %v", err)
	}
	if err := portaudio.Terminate(); err != nil {
		log.Printf("[enginedemo] terminate portaudio: %v", err)
	}
	_ = group
}
