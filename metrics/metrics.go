// Package metrics implements the non-RT-readable performance counters
// spec §8 calls for: per-source buffer-fill percentage, dropout count,
// and a CPU-time estimate, plus the mixer's aggregate peak levels.
//
// Grounded on the teacher's server/metrics.go RunMetrics: a
// context-cancellable ticker loop that logs a one-line summary per
// interval, tagged "[metrics]" the way the rest of the teacher's
// subsystems tag their own log lines.
package metrics

import (
	"context"
	"log"
	"time"

	"github.com/bken-audio/engine/source"
)

// SourceStats is the subset of source.Pipeline's surface the reporter
// needs. Defined locally so the reporter depends only on the methods it
// reads; source is imported only by WrapPipeline's adapter.
type SourceStats interface {
	ID() interface{ String() string }
	BufferFillRatio() float64
	DroppedFrames() uint64
	CPUTimeEstimate() time.Duration
	ResetCPUTimeEstimate()
}

// pipelineStats adapts *source.Pipeline to SourceStats: Pipeline.ID
// returns the concrete engine.SourceID type, so it can't satisfy
// SourceStats' interface-typed ID method by embedding alone.
type pipelineStats struct {
	*source.Pipeline
}

func (p pipelineStats) ID() interface{ String() string } { return p.Pipeline.ID() }

// WrapPipeline adapts a *source.Pipeline into a SourceStats for use with
// NewReporter.
func WrapPipeline(p *source.Pipeline) SourceStats { return pipelineStats{p} }

// MixerStats is the subset of mixer.Mixer's surface the reporter needs.
type MixerStats interface {
	PeakLevels() (left, right float32)
	SourceCount() int
	DroppedFrameTotal() uint64
}

// Reporter periodically logs per-source and mixer-wide statistics.
type Reporter struct {
	mixer   MixerStats
	sources func() []SourceStats
}

// NewReporter creates a Reporter. sources is called once per tick so the
// reporter always sees the current source set rather than a snapshot
// taken at construction time.
func NewReporter(mixer MixerStats, sources func() []SourceStats) *Reporter {
	return &Reporter{mixer: mixer, sources: sources}
}

// Run logs a summary every interval until ctx is cancelled, mirroring the
// teacher's RunMetrics ticker loop.
func (r *Reporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logTick(interval)
		}
	}
}

func (r *Reporter) logTick(interval time.Duration) {
	left, right := r.mixer.PeakLevels()
	log.Printf("[metrics] sources=%d dropouts=%d peak_l=%.3f peak_r=%.3f",
		r.mixer.SourceCount(), r.mixer.DroppedFrameTotal(), left, right)

	for _, s := range r.sources() {
		cpu := s.CPUTimeEstimate()
		cpuPct := 100 * cpu.Seconds() / interval.Seconds()
		log.Printf("[metrics] source=%s fill=%.1f%% dropouts=%d cpu=%.2f%%",
			s.ID().String(), 100*s.BufferFillRatio(), s.DroppedFrames(), cpuPct)
		s.ResetCPUTimeEstimate()
	}
}
