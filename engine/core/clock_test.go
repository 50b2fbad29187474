package core

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Errorf("Elapsed() = %f before Start, want 0", c.Elapsed())
	}

	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Update()
	running := c.Elapsed()
	if running < 0.01 {
		t.Errorf("Elapsed() = %f, want at least 0.01", running)
	}

	c.Stop()
	time.Sleep(5 * time.Millisecond)
	c.Update()
	if c.Elapsed() != running {
		t.Errorf("Elapsed() = %f after Stop, want %f", c.Elapsed(), running)
	}

	c.Start()
	if c.Elapsed() != 0 {
		t.Errorf("Elapsed() = %f after restart, want 0", c.Elapsed())
	}
}

func TestClockDeltaSkipsPause(t *testing.T) {
	c := NewClock()
	c.Start()

	time.Sleep(10 * time.Millisecond)
	if d := c.Delta(); d < 0.01 {
		t.Errorf("Delta() = %f, want at least 0.01", d)
	}

	// a suspended loop resyncs instead of taking a frame
	time.Sleep(50 * time.Millisecond)
	c.Resync()
	if d := c.Delta(); d >= 0.05 {
		t.Errorf("Delta() after Resync = %f, want the pause dropped", d)
	}
}
