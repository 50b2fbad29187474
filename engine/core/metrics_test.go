package core

import (
	"errors"
	"fmt"
	"math"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestFrameMetrics(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); math.Abs(got-10) > 1e-9 {
		t.Errorf("FrameTime() = %f, want 10", got)
	}
	if m.FPS() != 0 {
		t.Errorf("FPS() = %f before a full second, want 0", m.FPS())
	}

	for i := 0; i < 70; i++ {
		m.Update(0.010)
	}
	fps, ms := m.Frame()
	if fps != 100 {
		t.Errorf("fps = %f, want 100", fps)
	}
	if math.Abs(ms-10) > 1e-9 {
		t.Errorf("ms = %f, want 10", ms)
	}
}

func TestViolation(t *testing.T) {
	SetLogOutput(discard{})
	err := Violation("frame index %d out of range", 7)
	if !IsViolation(err) {
		t.Fatalf("IsViolation(%v) = false", err)
	}
	wrapped := pkgerrors.Wrap(err, "write globals")
	if !IsViolation(wrapped) || !errors.Is(wrapped, ErrContractViolation) {
		t.Errorf("wrapped violation not recognised: %v", wrapped)
	}
	if IsViolation(fmt.Errorf("plain")) {
		t.Error("IsViolation() = true for a plain error")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
