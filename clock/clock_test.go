package clock

import "testing"

type countingObserver struct{ calls int }

func (o *countingObserver) OnClockChanged(c *Clock) { o.calls++ }

func TestPlayNotifiesObserversSynchronously(t *testing.T) {
	c := New()
	obs := &countingObserver{}
	c.AddObserver(obs)

	c.Play()
	if obs.calls != 1 {
		t.Fatalf("calls = %d, want 1", obs.calls)
	}
	if c.State() != 1 { // engine.Playing
		t.Fatalf("State() = %v, want Playing", c.State())
	}
}

func TestStopResetsFramePosition(t *testing.T) {
	c := New()
	c.Seek(1000)
	if c.FramePosition() != 1000 {
		t.Fatalf("FramePosition() = %d, want 1000", c.FramePosition())
	}
	c.Stop()
	if c.FramePosition() != 0 {
		t.Fatalf("FramePosition() after Stop = %d, want 0", c.FramePosition())
	}
}

func TestAdvanceWrapsAtLoopEnd(t *testing.T) {
	c := New()
	c.SetLoop(100, 500, true)
	c.Seek(480)

	c.Advance(50) // 480+50=530 >= 500, wraps to 100+(530-500)=130
	if got := c.FramePosition(); got != 130 {
		t.Fatalf("FramePosition() after wrap = %d, want 130", got)
	}
}

func TestAdvanceWithoutLoopJustAdds(t *testing.T) {
	c := New()
	c.Seek(100)
	c.Advance(50)
	if got := c.FramePosition(); got != 150 {
		t.Fatalf("FramePosition() = %d, want 150", got)
	}
}

func TestSetTempoClampsToRange(t *testing.T) {
	c := New()
	c.SetTempo(99)
	if c.Tempo() > 1.2 {
		t.Fatalf("Tempo() = %v, want clamped to <= 1.2", c.Tempo())
	}
	c.SetTempo(-5)
	if c.Tempo() < 0.8 {
		t.Fatalf("Tempo() = %v, want clamped to >= 0.8", c.Tempo())
	}
}

func TestRemoveObserverStopsNotifications(t *testing.T) {
	c := New()
	obs := &countingObserver{}
	c.AddObserver(obs)
	c.RemoveObserver(obs)
	c.Play()
	if obs.calls != 0 {
		t.Fatalf("calls = %d, want 0 after RemoveObserver", obs.calls)
	}
}
