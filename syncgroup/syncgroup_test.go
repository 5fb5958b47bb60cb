package syncgroup

import (
	"testing"

	"github.com/bken-audio/engine/clock"
)

type fakeSource struct {
	frame       int64
	startOffset int64
	seekCalls   []int64
}

func (f *fakeSource) CurrentFrame() int64                  { return f.frame }
func (f *fakeSource) SetStartOffsetFrames(frames int64)     { f.startOffset = frames }
func (f *fakeSource) Seek(frames int64) error {
	f.seekCalls = append(f.seekCalls, frames)
	f.frame = frames
	return nil
}

func TestDriftWithinToleranceDoesNothing(t *testing.T) {
	g := New("band", clock.New())
	g.SetAutoDriftCorrection(true)
	src := &fakeSource{frame: 1000}
	g.AddMember(src, 0)

	g.DetectDrift(1000 + 10) // well within DefaultToleranceFrames (480)
	g.ApplyScheduledCorrections()

	if len(src.seekCalls) != 0 {
		t.Fatalf("expected no correction within tolerance, got seeks %v", src.seekCalls)
	}
}

func TestDriftBeyondToleranceSchedulesCorrectionForNextTick(t *testing.T) {
	g := New("band", clock.New())
	g.SetAutoDriftCorrection(true)
	src := &fakeSource{frame: 1000}
	g.AddMember(src, 0)

	g.DetectDrift(2000) // drift = 1000, beyond 480 tolerance

	// Must not apply mid-tick.
	if len(src.seekCalls) != 0 {
		t.Fatalf("correction must not apply before the next tick's ApplyScheduledCorrections, got %v", src.seekCalls)
	}

	g.ApplyScheduledCorrections()
	if len(src.seekCalls) != 1 || src.seekCalls[0] != 2000 {
		t.Fatalf("seekCalls = %v, want a single seek to 2000", src.seekCalls)
	}
}

func TestAutoCorrectionDisabledNeverSchedules(t *testing.T) {
	g := New("band", clock.New())
	src := &fakeSource{frame: 1000}
	g.AddMember(src, 0)

	g.DetectDrift(5000)
	g.ApplyScheduledCorrections()

	if len(src.seekCalls) != 0 {
		t.Fatalf("expected no correction with auto-correction disabled, got %v", src.seekCalls)
	}
}

func TestStartOffsetShiftsExpectedPosition(t *testing.T) {
	g := New("band", clock.New())
	g.SetAutoDriftCorrection(true)
	src := &fakeSource{frame: 500}
	g.AddMember(src, 500) // this member's timeline starts 500 frames into the master clock

	g.DetectDrift(1000) // expected = 1000-500 = 500, matches actual exactly
	g.ApplyScheduledCorrections()

	if len(src.seekCalls) != 0 {
		t.Fatalf("expected no correction when actual matches offset-adjusted expectation, got %v", src.seekCalls)
	}
}

func TestRemoveMemberStopsTracking(t *testing.T) {
	g := New("band", clock.New())
	src := &fakeSource{frame: 1000}
	g.AddMember(src, 0)
	g.RemoveMember(src)
	if g.MemberCount() != 0 {
		t.Fatalf("MemberCount() = %d, want 0", g.MemberCount())
	}
}
