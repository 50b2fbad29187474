package frame

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type fixture struct {
	device  *drivertest.Device
	host    *drivertest.Host
	r       *renderer.Renderer
	globals *renderer.GlobalResources
	loop    *Loop
}

func newFixture(t *testing.T, objects scene.Map) *fixture {
	t.Helper()
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r, err := renderer.New(d, h)
	if err != nil {
		t.Fatalf("renderer.New() error = %v", err)
	}
	g, err := renderer.NewGlobalResources(d, r.FramesInFlight())
	if err != nil {
		t.Fatalf("NewGlobalResources() error = %v", err)
	}
	return &fixture{
		device:  d,
		host:    h,
		r:       r,
		globals: g,
		loop:    NewLoop(r, g, systems.NewSystemManager(), objects),
	}
}

func lightRing(n int) scene.Map {
	objects := scene.Map{}
	for i := 0; i < n; i++ {
		l := scene.NewPointLight(0.2, 0.1, mgl32.Vec3{1, 1, 1})
		l.Transform.Translation = mgl32.Vec3{float32(i), 0, 0}
		objects.Add(l)
	}
	return objects
}

func numLightsAt(t *testing.T, f *fixture, frameIndex int) int32 {
	t.Helper()
	data := f.device.BufferData(f.globals.Buffer())
	off := uint64(frameIndex)*f.globals.Stride() + 464
	return int32(binary.LittleEndian.Uint32(data[off : off+4]))
}

func TestStepRendersIntoFrameSlots(t *testing.T) {
	f := newFixture(t, lightRing(3))

	var seen []driver.DescriptorSet
	f.loop.Render = func(info *metadata.FrameInfo) error {
		seen = append(seen, info.GlobalDescriptorSet)
		if len(info.GameObjects) != 3 {
			t.Errorf("GameObjects = %d, want 3", len(info.GameObjects))
		}
		return nil
	}

	for i := 0; i < 2; i++ {
		ok, err := f.loop.Step(0.016)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if !ok {
			t.Fatalf("frame %d skipped", i)
		}
	}

	if len(seen) != 2 || seen[0] == seen[1] {
		t.Errorf("descriptor sets = %v, want one distinct set per slot", seen)
	}
	for i := 0; i < 2; i++ {
		if got := numLightsAt(t, f, i); got != 3 {
			t.Errorf("slot %d NumLights = %d, want 3", i, got)
		}
	}
	if len(f.device.RenderPassBegins) != 2 || f.device.RenderPassEnds != 2 {
		t.Errorf("render passes begun %d ended %d, want 2 each", len(f.device.RenderPassBegins), f.device.RenderPassEnds)
	}
	if got := f.loop.Ubo().NumLights; got != 3 {
		t.Errorf("Ubo().NumLights = %d, want 3", got)
	}
	if len(f.device.Violations) != 0 {
		t.Errorf("device violations: %v", f.device.Violations)
	}
}

func TestStepSkipsStaleFrame(t *testing.T) {
	f := newFixture(t, scene.Map{})
	f.device.ScriptAcquire(drivertest.Result{Status: driver.PresentOutOfDate})

	called := false
	f.loop.Render = func(*metadata.FrameInfo) error {
		called = true
		return nil
	}

	ok, err := f.loop.Step(0.016)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if ok {
		t.Error("Step() rendered a frame on a stale swapchain")
	}
	if called {
		t.Error("Render called for a skipped frame")
	}
	if len(f.device.Swapchains) != 2 {
		t.Errorf("swapchains created = %d, want 2", len(f.device.Swapchains))
	}

	ok, err = f.loop.Step(0.016)
	if err != nil || !ok {
		t.Fatalf("Step() after rebuild = %v, %v, want true, nil", ok, err)
	}
}

func TestStepEndsFrameAfterSystemFailure(t *testing.T) {
	f := newFixture(t, lightRing(metadata.MaxLights+1))

	ok, err := f.loop.Step(0.016)
	if ok {
		t.Error("Step() reported a rendered frame")
	}
	if !core.IsViolation(err) {
		t.Fatalf("Step() error = %v, want a contract violation", err)
	}
	if f.r.IsFrameInProgress() {
		t.Error("frame still in progress after a failed step")
	}
	if len(f.device.Submits) != 1 || len(f.device.Presents) != 1 {
		t.Errorf("submits = %d presents = %d, want 1 each", len(f.device.Submits), len(f.device.Presents))
	}
}

func TestStepReturnsRenderError(t *testing.T) {
	f := newFixture(t, scene.Map{})
	boom := errors.New("boom")
	f.loop.Render = func(*metadata.FrameInfo) error {
		return boom
	}

	_, err := f.loop.Step(0.016)
	if !errors.Is(err, boom) {
		t.Fatalf("Step() error = %v, want %v", err, boom)
	}
	if f.device.RenderPassEnds != 1 {
		t.Errorf("RenderPassEnds = %d, want 1", f.device.RenderPassEnds)
	}
	if f.r.IsFrameInProgress() {
		t.Error("frame still in progress after a render error")
	}
}

func TestApply(t *testing.T) {
	f := newFixture(t, scene.Map{})
	cfg := core.DefaultConfig()
	cfg.Renderer.ClearColor = [4]float32{0.2, 0.3, 0.4, 1}
	cfg.Lights.Ambient = [4]float32{1, 0.5, 0.5, 0.1}

	f.loop.Apply(cfg)
	if _, err := f.loop.Step(0.016); err != nil {
		t.Fatalf("Step() error = %v", err)
	}

	if got := f.r.ClearColor(); got != cfg.Renderer.ClearColor {
		t.Errorf("ClearColor() = %v, want %v", got, cfg.Renderer.ClearColor)
	}
	if got := f.device.RenderPassBegins[0].ClearColor; got != cfg.Renderer.ClearColor {
		t.Errorf("render pass clear colour = %v, want %v", got, cfg.Renderer.ClearColor)
	}
	if got := f.loop.Ubo().AmbientLightColor; got != (mgl32.Vec4{1, 0.5, 0.5, 0.1}) {
		t.Errorf("AmbientLightColor = %v, want %v", got, cfg.Lights.Ambient)
	}
}
