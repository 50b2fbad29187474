package renderer

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/descriptors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newRenderer(t *testing.T, d *drivertest.Device, h *drivertest.Host, opts ...Option) *Renderer {
	t.Helper()
	r, err := New(d, h, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

// drawFrame runs one full frame. It returns false when the frame was skipped.
func drawFrame(t *testing.T, r *Renderer) (*FrameSession, bool) {
	t.Helper()
	s, err := r.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if s == nil {
		return nil, false
	}
	if err := r.BeginSwapChainRenderPass(s.CommandBuffer()); err != nil {
		t.Fatalf("BeginSwapChainRenderPass() error = %v", err)
	}
	if err := r.EndSwapChainRenderPass(s.CommandBuffer()); err != nil {
		t.Fatalf("EndSwapChainRenderPass() error = %v", err)
	}
	if err := r.EndFrame(s); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	return s, true
}

func TestFiveFrames(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	wantIndices := []int{0, 1, 0, 1, 0}
	for i, want := range wantIndices {
		s, ok := drawFrame(t, r)
		if !ok {
			t.Fatalf("frame %d skipped", i)
		}
		if got := s.FrameIndex(); got != want {
			t.Errorf("frame %d FrameIndex() = %d, want %d", i, got, want)
		}
		if got := s.FrameNumber(); got != uint64(i+1) {
			t.Errorf("frame %d FrameNumber() = %d, want %d", i, got, i+1)
		}
		if len(d.Submits) != i+1 || len(d.Presents) != i+1 {
			t.Errorf("after frame %d: submits = %d presents = %d, want %d each", i, len(d.Submits), len(d.Presents), i+1)
		}
	}
	if d.MaxOutstanding > r.FramesInFlight() {
		t.Errorf("MaxOutstanding = %d, want <= %d", d.MaxOutstanding, r.FramesInFlight())
	}
	if len(d.Swapchains) != 1 {
		t.Errorf("swapchains created = %d, want 1", len(d.Swapchains))
	}
	if len(d.Violations) != 0 {
		t.Errorf("device violations: %v", d.Violations)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := d.LiveTotal(); got != 0 {
		t.Errorf("live objects after Close = %d, want 0", got)
	}
}

func TestBoundedOverlap(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		d := drivertest.NewDevice()
		d.Surface.Capabilities.MaxImageCount = 0
		d.Surface.Capabilities.MinImageCount = 3
		h := drivertest.NewHost(800, 600)
		r := newRenderer(t, d, h, WithFramesInFlight(n))
		for i := 0; i < 20; i++ {
			drawFrame(t, r)
			if got := d.Outstanding(); got > n {
				t.Fatalf("N=%d frame %d: %d frames outstanding", n, i, got)
			}
		}
		if d.MaxOutstanding != n {
			t.Errorf("N=%d: MaxOutstanding = %d, want %d", n, d.MaxOutstanding, n)
		}
		if len(d.Violations) != 0 {
			t.Errorf("N=%d: device violations: %v", n, d.Violations)
		}
	}
}

func TestRenderPassSetup(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h, WithClearColor([4]float32{0.1, 0.2, 0.3, 1}))
	drawFrame(t, r)

	if len(d.RenderPassBegins) != 1 || d.RenderPassEnds != 1 {
		t.Fatalf("render pass begins = %d ends = %d, want 1 each", len(d.RenderPassBegins), d.RenderPassEnds)
	}
	info := d.RenderPassBegins[0]
	if info.ClearColor != [4]float32{0.1, 0.2, 0.3, 1} {
		t.Errorf("ClearColor = %v", info.ClearColor)
	}
	if info.ClearDepth != 1.0 || info.ClearStencil != 0 {
		t.Errorf("depth clear = %v/%v, want 1/0", info.ClearDepth, info.ClearStencil)
	}
	if info.RenderArea.Extent != (driver.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("RenderArea = %v", info.RenderArea)
	}
	if info.RenderPass != r.SwapChainRenderPass() {
		t.Errorf("RenderPass = %d, want %d", info.RenderPass, r.SwapChainRenderPass())
	}
	vp := d.Viewports[0]
	if vp.Width != 800 || vp.Height != 600 || vp.MinDepth != 0 || vp.MaxDepth != 1 {
		t.Errorf("viewport = %+v", vp)
	}
	if d.Scissors[0].Extent != info.RenderArea.Extent {
		t.Errorf("scissor = %+v", d.Scissors[0])
	}
}

func TestStaleAcquireSkipsFrame(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	d.ScriptAcquire(drivertest.Result{Status: driver.PresentOutOfDate})
	s, err := r.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if s != nil {
		t.Fatalf("BeginFrame() session = %v, want nil", s)
	}
	if r.IsFrameInProgress() {
		t.Errorf("frame in progress after skipped frame")
	}
	if len(d.Swapchains) != 2 {
		t.Errorf("swapchains created = %d, want 2", len(d.Swapchains))
	}
	if len(d.Submits) != 0 {
		t.Errorf("submits = %d, want 0", len(d.Submits))
	}

	s, ok := drawFrame(t, r)
	if !ok {
		t.Fatal("frame after rebuild skipped")
	}
	if s.FrameIndex() != 0 {
		t.Errorf("FrameIndex() = %d, want 0 after a skipped frame", s.FrameIndex())
	}
}

func TestDegradedAcquireStillRenders(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	d.ScriptAcquire(drivertest.Result{Status: driver.PresentSuboptimal})
	if _, ok := drawFrame(t, r); !ok {
		t.Fatal("frame skipped on suboptimal acquire")
	}
	if len(d.Presents) != 1 {
		t.Errorf("presents = %d, want 1", len(d.Presents))
	}
	if len(d.Swapchains) != 2 {
		t.Errorf("swapchains created = %d, want a rebuild after present", len(d.Swapchains))
	}
}

func TestPresentStatusRebuilds(t *testing.T) {
	for _, st := range []driver.PresentStatus{driver.PresentSuboptimal, driver.PresentOutOfDate} {
		d := drivertest.NewDevice()
		h := drivertest.NewHost(800, 600)
		r := newRenderer(t, d, h)

		d.ScriptPresent(drivertest.Result{Status: st})
		s, _ := drawFrame(t, r)
		if s.FrameIndex() != 0 {
			t.Errorf("%v: FrameIndex() = %d, want 0", st, s.FrameIndex())
		}
		if len(d.Swapchains) != 2 {
			t.Errorf("%v: swapchains created = %d, want 2", st, len(d.Swapchains))
		}
		s, _ = drawFrame(t, r)
		if s.FrameIndex() != 1 {
			t.Errorf("%v: next FrameIndex() = %d, want 1", st, s.FrameIndex())
		}
	}
}

func TestResizeEventRebuilds(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	h.Resize(1024, 768)
	h.Resize(1280, 720)
	drawFrame(t, r)

	if len(d.Swapchains) != 2 {
		t.Fatalf("swapchains created = %d, want 2 for coalesced resize events", len(d.Swapchains))
	}
	if got := r.Extent(); got != (driver.Extent2D{Width: 1280, Height: 720}) {
		t.Errorf("Extent() = %v, want 1280x720", got)
	}
	if got := r.AspectRatio(); got != float32(1280)/float32(720) {
		t.Errorf("AspectRatio() = %v", got)
	}

	drawFrame(t, r)
	if len(d.Swapchains) != 2 {
		t.Errorf("swapchains created = %d, want no rebuild without a new event", len(d.Swapchains))
	}
}

func TestResizeEventExtentIsUsed(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	h.Resize(1024, 768)
	// a live size that disagrees with the event must not be picked up
	h.ScriptExtents(driver.Extent2D{Width: 640, Height: 480})
	calls := h.FramebufferExtentCalls
	drawFrame(t, r)

	if got := d.LastSwapchain().Extent; got != (driver.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("rebuilt extent = %v, want the event's 1024x768", got)
	}
	if h.FramebufferExtentCalls != calls {
		t.Errorf("FramebufferExtent calls = %d, want %d", h.FramebufferExtentCalls, calls)
	}
}

func TestZeroAreaStall(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	// minimized: the event carries a zero extent
	h.Resize(0, 0)
	h.ScriptExtents(
		driver.Extent2D{Width: 0, Height: 0},
		driver.Extent2D{Width: 640, Height: 0},
		driver.Extent2D{Width: 800, Height: 600},
	)
	drawFrame(t, r)

	if h.WaitEventsCalls != 2 {
		t.Errorf("WaitEvents calls = %d, want 2", h.WaitEventsCalls)
	}
	for i, sc := range d.Swapchains {
		if sc.Extent.HasZeroArea() {
			t.Errorf("swapchain %d created with zero extent %v", i, sc.Extent)
		}
	}
	if got := d.LastSwapchain().Extent; got != (driver.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("rebuilt extent = %v, want 800x600", got)
	}
}

func TestNewWaitsForNonZeroExtent(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(0, 0)
	h.ScriptExtents(driver.Extent2D{}, driver.Extent2D{Width: 320, Height: 240})
	r := newRenderer(t, d, h)
	if h.WaitEventsCalls != 1 {
		t.Errorf("WaitEvents calls = %d, want 1", h.WaitEventsCalls)
	}
	if got := r.Extent(); got != (driver.Extent2D{Width: 320, Height: 240}) {
		t.Errorf("Extent() = %v", got)
	}
}

func TestFormatDriftIsFatal(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	d.Surface.Formats = []driver.SurfaceFormat{{Format: driver.FormatR8G8B8A8Unorm}}
	d.ScriptAcquire(drivertest.Result{Status: driver.PresentOutOfDate})
	if _, err := r.BeginFrame(); !errors.Is(err, core.ErrFormatDrift) {
		t.Errorf("BeginFrame() error = %v, want %v", err, core.ErrFormatDrift)
	}
}

func TestStateMachineViolations(t *testing.T) {
	d := drivertest.NewDevice()
	h := drivertest.NewHost(800, 600)
	r := newRenderer(t, d, h)

	if err := r.EndFrame(&FrameSession{}); !core.IsViolation(err) {
		t.Errorf("EndFrame while idle error = %v, want contract violation", err)
	}
	if err := r.BeginSwapChainRenderPass(1); !core.IsViolation(err) {
		t.Errorf("BeginSwapChainRenderPass while idle error = %v, want contract violation", err)
	}
	if _, err := r.CurrentCommandBuffer(); !core.IsViolation(err) {
		t.Errorf("CurrentCommandBuffer while idle error = %v, want contract violation", err)
	}
	if _, err := r.FrameIndex(); !core.IsViolation(err) {
		t.Errorf("FrameIndex while idle error = %v, want contract violation", err)
	}

	s, err := r.BeginFrame()
	if err != nil || s == nil {
		t.Fatalf("BeginFrame() = %v, %v", s, err)
	}
	if _, err := r.BeginFrame(); !core.IsViolation(err) {
		t.Errorf("nested BeginFrame error = %v, want contract violation", err)
	}
	if err := r.EndSwapChainRenderPass(s.CommandBuffer()); !core.IsViolation(err) {
		t.Errorf("EndSwapChainRenderPass without begin error = %v, want contract violation", err)
	}
	if err := r.BeginSwapChainRenderPass(s.CommandBuffer() + 100); !core.IsViolation(err) {
		t.Errorf("BeginSwapChainRenderPass with foreign buffer error = %v, want contract violation", err)
	}
	if cb, err := r.CurrentCommandBuffer(); err != nil || cb != s.CommandBuffer() {
		t.Errorf("CurrentCommandBuffer() = %d, %v, want %d", cb, err, s.CommandBuffer())
	}
	if idx, err := r.FrameIndex(); err != nil || idx != 0 {
		t.Errorf("FrameIndex() = %d, %v, want 0", idx, err)
	}

	if err := r.BeginSwapChainRenderPass(s.CommandBuffer()); err != nil {
		t.Fatal(err)
	}
	if err := r.BeginSwapChainRenderPass(s.CommandBuffer()); !core.IsViolation(err) {
		t.Errorf("second BeginSwapChainRenderPass error = %v, want contract violation", err)
	}
	if err := r.EndFrame(s); !core.IsViolation(err) {
		t.Errorf("EndFrame inside render pass error = %v, want contract violation", err)
	}
	if err := r.EndSwapChainRenderPass(s.CommandBuffer()); err != nil {
		t.Fatal(err)
	}
	if err := r.EndFrame(&FrameSession{commandBuffer: s.CommandBuffer()}); !core.IsViolation(err) {
		t.Errorf("EndFrame with foreign session error = %v, want contract violation", err)
	}
	if err := r.EndFrame(s); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if err := r.EndFrame(s); !core.IsViolation(err) {
		t.Errorf("EndFrame with consumed session error = %v, want contract violation", err)
	}
	if len(d.Submits) != 1 {
		t.Errorf("submits = %d, want 1", len(d.Submits))
	}
}

func TestGlobalResources(t *testing.T) {
	d := drivertest.NewDevice()
	g, err := NewGlobalResources(d, 2)
	if err != nil {
		t.Fatalf("NewGlobalResources() error = %v", err)
	}
	if g.Stride() != 512 {
		t.Errorf("Stride() = %d, want 512", g.Stride())
	}
	if g.DescriptorSet(0) == g.DescriptorSet(1) {
		t.Errorf("frames share descriptor set %d", g.DescriptorSet(0))
	}
	if len(d.Writes) != 2 {
		t.Fatalf("descriptor writes = %d, want 2", len(d.Writes))
	}
	if off := d.Writes[1].BufferInfo.Offset; off != 512 {
		t.Errorf("frame 1 offset = %d, want 512", off)
	}

	ubo := metadata.NewGlobalUbo()
	_ = ubo.AddPointLight(metadata.PointLight{Position: mgl32.Vec4{1, 2, 3, 1}})
	if err := g.Write(1, &ubo); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data := d.BufferData(g.Buffer())
	if got := binary.LittleEndian.Uint32(data[512+464:]); got != 1 {
		t.Errorf("frame 1 numLights = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[464:]); got != 0 {
		t.Errorf("frame 0 region touched: numLights = %d", got)
	}
	if err := g.Write(2, &ubo); !core.IsViolation(err) {
		t.Errorf("Write(2) error = %v, want contract violation", err)
	}

	g.Destroy()
	if got := d.LiveTotal(); got != 0 {
		t.Errorf("live objects after Destroy = %d, want 0", got)
	}
}

func TestGlobalResourcesPoolTooSmall(t *testing.T) {
	d := drivertest.NewDevice()
	_, err := NewGlobalResources(d, 3, WithPoolCapacity(2, 2))
	if !errors.Is(err, descriptors.ErrPoolExhausted) {
		t.Fatalf("NewGlobalResources() error = %v, want %v", err, descriptors.ErrPoolExhausted)
	}
	if got := d.LiveTotal(); got != 0 {
		t.Errorf("live objects after failure = %d, want 0", got)
	}
}
