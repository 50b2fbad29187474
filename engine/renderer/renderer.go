package renderer

import (
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/swapchain"
	"github.com/spaghettifunk/prism/engine/scene"
)

// Host is the window the renderer presents into.
type Host interface {
	// FramebufferExtent returns the current framebuffer size in pixels.
	FramebufferExtent() driver.Extent2D
	// PollResize consumes the pending resize event, if any.
	PollResize() (driver.Extent2D, bool)
	// WaitEvents blocks until the window receives an event.
	WaitEvents()
}

type State uint8

const (
	StateIdle State = iota
	StateRecording
	StateInPass
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateInPass:
		return "in-pass"
	}
	return "unknown"
}

// FrameSession is handed out by BeginFrame and consumed by EndFrame. It is
// only valid in between.
type FrameSession struct {
	commandBuffer driver.CommandBuffer
	frameIndex    int
	imageIndex    uint32
	frameNumber   uint64
	// the acquire reported a suboptimal chain, rebuild once presented
	degraded      bool
}

func (s *FrameSession) CommandBuffer() driver.CommandBuffer {
	return s.commandBuffer
}

// FrameIndex returns the frame slot in [0, frames in flight).
func (s *FrameSession) FrameIndex() int {
	return s.frameIndex
}

// ImageIndex returns the index of the acquired surface image.
func (s *FrameSession) ImageIndex() uint32 {
	return s.imageIndex
}

// FrameNumber counts the frames begun since the renderer was created.
func (s *FrameSession) FrameNumber() uint64 {
	return s.frameNumber
}

// FrameInfo packages the session for render subsystems.
func (s *FrameSession) FrameInfo(frameTime float32, globalSet driver.DescriptorSet, objects scene.Map) metadata.FrameInfo {
	return metadata.FrameInfo{
		FrameIndex:          s.frameIndex,
		FrameTime:           frameTime,
		CommandBuffer:       s.commandBuffer,
		GlobalDescriptorSet: globalSet,
		GameObjects:         objects,
	}
}

type options struct {
	framesInFlight int
	clearColor     [4]float32
	presentMode    driver.PresentMode
}

type Option func(*options)

func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = n
	}
}

func WithClearColor(c [4]float32) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

func WithPresentMode(mode driver.PresentMode) Option {
	return func(o *options) {
		o.presentMode = mode
	}
}

// Renderer drives the per-frame cycle: acquire an image, record into the
// frame slot's command buffer, submit and present, and rebuild the swapchain
// when the surface changes.
type Renderer struct {
	device    driver.Device
	host      Host
	opts      options
	swapchain *swapchain.Swapchain

	// one primary command buffer per frame slot
	commandBuffers []driver.CommandBuffer

	state             State
	session           *FrameSession
	currentFrameIndex int
	frameNumber       uint64
}

// New blocks until the host has a non-zero framebuffer, then builds the
// swapchain and the per-slot command buffers.
func New(device driver.Device, host Host, opts ...Option) (*Renderer, error) {
	o := options{
		framesInFlight: swapchain.DefaultFramesInFlight,
		clearColor:     [4]float32{0.01, 0.01, 0.01, 1.0},
		presentMode:    driver.PresentModeMailbox,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		device: device,
		host:   host,
		opts:   o,
	}

	extent := r.waitForExtent()
	sc, err := swapchain.New(device, extent,
		swapchain.WithFramesInFlight(o.framesInFlight),
		swapchain.WithPresentMode(o.presentMode))
	if err != nil {
		return nil, err
	}
	r.swapchain = sc

	cbs, err := device.AllocateCommandBuffers(o.framesInFlight)
	if err != nil {
		sc.Destroy()
		return nil, errors.Wrap(err, "allocate command buffers")
	}
	r.commandBuffers = cbs

	// the swapchain already matches whatever resize happened before now
	host.PollResize()

	core.LogInfo("renderer ready: %d frames in flight, %d swapchain images", o.framesInFlight, sc.ImageCount())
	return r, nil
}

// waitForExtent blocks while the framebuffer has zero area, which happens
// while the window is minimized.
func (r *Renderer) waitForExtent() driver.Extent2D {
	extent := r.host.FramebufferExtent()
	for extent.HasZeroArea() {
		r.host.WaitEvents()
		extent = r.host.FramebufferExtent()
	}
	return extent
}

// recreateSwapchain rebuilds against extent, the size carried by a resize
// event, or against the live framebuffer size when extent has zero area. A
// zero area blocks until the window is drawable again.
func (r *Renderer) recreateSwapchain(extent driver.Extent2D) error {
	if extent.HasZeroArea() {
		extent = r.waitForExtent()
		// the live size already covers resizes raised while waiting
		r.host.PollResize()
	}
	if err := r.swapchain.Rebuild(extent); err != nil {
		return err
	}
	core.LogDebug("swapchain %s rebuilt at %s", r.swapchain.ID(), r.swapchain.Extent())
	return nil
}

// BeginFrame acquires the next image and starts recording the frame slot's
// command buffer. When the swapchain turned out to be stale it is rebuilt and
// BeginFrame returns a nil session: the caller skips the frame.
func (r *Renderer) BeginFrame() (*FrameSession, error) {
	if r.state != StateIdle {
		return nil, core.Violation("BeginFrame called while a frame is in progress (%s)", r.state)
	}

	imageIndex, status, err := r.swapchain.AcquireNextImage(r.currentFrameIndex)
	if err != nil {
		return nil, err
	}
	if status == swapchain.StatusStale {
		pending, _ := r.host.PollResize()
		if err := r.recreateSwapchain(pending); err != nil {
			return nil, err
		}
		return nil, nil
	}

	cb := r.commandBuffers[r.currentFrameIndex]
	if err := r.device.BeginCommandBuffer(cb, 0); err != nil {
		return nil, errors.Wrap(err, "begin recording command buffer")
	}

	r.frameNumber++
	r.state = StateRecording
	r.session = &FrameSession{
		commandBuffer: cb,
		frameIndex:    r.currentFrameIndex,
		imageIndex:    imageIndex,
		frameNumber:   r.frameNumber,
		degraded:      status == swapchain.StatusDegraded,
	}
	return r.session, nil
}

// EndFrame finishes recording, submits and presents the session's frame,
// then rebuilds the swapchain if the surface changed.
func (r *Renderer) EndFrame(s *FrameSession) error {
	if r.state == StateIdle {
		return core.Violation("EndFrame called while no frame is in progress")
	}
	if s == nil || s != r.session {
		return core.Violation("EndFrame called with a session that is not the active one")
	}
	if r.state == StateInPass {
		return core.Violation("EndFrame called while the swapchain render pass is still open")
	}

	r.state = StateIdle
	r.session = nil

	if err := r.device.EndCommandBuffer(s.commandBuffer); err != nil {
		return errors.Wrap(err, "record command buffer")
	}

	status, err := r.swapchain.Submit(s.frameIndex, s.commandBuffer, s.imageIndex)
	if err != nil {
		return err
	}

	pending, resized := r.host.PollResize()
	if status != swapchain.StatusOK || resized || s.degraded {
		if err := r.recreateSwapchain(pending); err != nil {
			return err
		}
	}

	r.currentFrameIndex = (r.currentFrameIndex + 1) % len(r.commandBuffers)
	return nil
}

// BeginSwapChainRenderPass clears the acquired image and sets a viewport and
// scissor covering the whole surface.
func (r *Renderer) BeginSwapChainRenderPass(cb driver.CommandBuffer) error {
	if r.state != StateRecording {
		return core.Violation("BeginSwapChainRenderPass called in state %s", r.state)
	}
	if cb != r.session.commandBuffer {
		return core.Violation("BeginSwapChainRenderPass called with command buffer %d from a different frame", cb)
	}

	extent := r.swapchain.Extent()
	r.device.CmdBeginRenderPass(cb, driver.RenderPassBeginInfo{
		RenderPass:  r.swapchain.RenderPass(),
		Framebuffer: r.swapchain.Framebuffer(r.session.imageIndex),
		RenderArea: driver.Rect2D{
			Offset: driver.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearColor:   r.opts.clearColor,
		ClearDepth:   1.0,
		ClearStencil: 0,
	})
	r.device.CmdSetViewport(cb, driver.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	r.device.CmdSetScissor(cb, driver.Rect2D{Extent: extent})
	r.state = StateInPass
	return nil
}

func (r *Renderer) EndSwapChainRenderPass(cb driver.CommandBuffer) error {
	if r.state != StateInPass {
		return core.Violation("EndSwapChainRenderPass called in state %s", r.state)
	}
	if cb != r.session.commandBuffer {
		return core.Violation("EndSwapChainRenderPass called with command buffer %d from a different frame", cb)
	}
	r.device.CmdEndRenderPass(cb)
	r.state = StateRecording
	return nil
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.state != StateIdle
}

func (r *Renderer) State() State {
	return r.state
}

// CurrentCommandBuffer is only valid while a frame is in progress.
func (r *Renderer) CurrentCommandBuffer() (driver.CommandBuffer, error) {
	if r.state == StateIdle {
		return 0, core.Violation("no command buffer outside of a frame")
	}
	return r.session.commandBuffer, nil
}

// FrameIndex is only valid while a frame is in progress.
func (r *Renderer) FrameIndex() (int, error) {
	if r.state == StateIdle {
		return 0, core.Violation("no frame index outside of a frame")
	}
	return r.currentFrameIndex, nil
}

func (r *Renderer) SwapChainRenderPass() driver.RenderPass {
	return r.swapchain.RenderPass()
}

func (r *Renderer) AspectRatio() float32 {
	return r.swapchain.ExtentAspectRatio()
}

func (r *Renderer) Extent() driver.Extent2D {
	return r.swapchain.Extent()
}

func (r *Renderer) FramesInFlight() int {
	return len(r.commandBuffers)
}

func (r *Renderer) SetClearColor(c [4]float32) {
	r.opts.clearColor = c
}

func (r *Renderer) ClearColor() [4]float32 {
	return r.opts.clearColor
}

// Close waits for the device and releases the command buffers and the
// swapchain.
func (r *Renderer) Close() error {
	if r.state != StateIdle {
		core.LogWarn("renderer closed in the middle of a frame")
	}
	if err := r.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before close")
	}
	r.device.FreeCommandBuffers(r.commandBuffers)
	r.commandBuffers = nil
	r.swapchain.Destroy()
	r.state = StateIdle
	r.session = nil
	return nil
}
