package swapchain

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Status reports how usable the swapchain still is after acquire or submit.
type Status uint8

const (
	StatusOK Status = iota
	// StatusDegraded means presentation works but the swapchain should be rebuilt.
	StatusDegraded
	// StatusStale means the swapchain must be rebuilt before it can be used again.
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	case StatusStale:
		return "stale"
	}
	return "unknown"
}

func statusFrom(p driver.PresentStatus) Status {
	switch p {
	case driver.PresentSuboptimal:
		return StatusDegraded
	case driver.PresentOutOfDate:
		return StatusStale
	}
	return StatusOK
}

const DefaultFramesInFlight = 2

// undefinedExtent in the surface's current extent lets the swapchain pick
// its own size.
const undefinedExtent uint32 = 0xFFFFFFFF

type options struct {
	framesInFlight int
	presentMode    driver.PresentMode
	previous       *Swapchain
}

type Option func(*options)

func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = n
	}
}

// WithPresentMode sets the preferred present mode. FIFO is used when the
// surface does not support it.
func WithPresentMode(mode driver.PresentMode) Option {
	return func(o *options) {
		o.presentMode = mode
	}
}

// WithPrevious hands the images of old over to the new swapchain. The new
// swapchain must keep the formats of old. The caller still destroys old.
func WithPrevious(old *Swapchain) Option {
	return func(o *options) {
		o.previous = old
	}
}

type frameSlot struct {
	imageAvailable driver.Semaphore
	renderFinished driver.Semaphore
	inFlight       driver.Fence
}

// chain holds everything tied to one generation of the surface images.
type chain struct {
	id            uuid.UUID
	handle        driver.Swapchain
	surfaceFormat driver.SurfaceFormat
	presentMode   driver.PresentMode
	depthFormat   driver.Format
	extent        driver.Extent2D
	images        []driver.Image
	views         []driver.ImageView
	depthImage    driver.Image
	depthView     driver.ImageView
	renderPass    driver.RenderPass
	framebuffers  []driver.Framebuffer
}

// Swapchain owns the presentable images of the surface, the per-frame
// synchronization objects and the render pass targeting those images.
type Swapchain struct {
	device driver.Device
	opts   options

	chain *chain
	// frames are created once and survive rebuilds.
	frames []frameSlot
	// imagesInFlight[i] is the fence of the frame last submitted against image i.
	imagesInFlight []driver.Fence
}

// New creates a swapchain sized for extent, which must have non-zero area.
func New(device driver.Device, extent driver.Extent2D, opts ...Option) (*Swapchain, error) {
	o := options{
		framesInFlight: DefaultFramesInFlight,
		presentMode:    driver.PresentModeMailbox,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.framesInFlight < core.MinFramesInFlight || o.framesInFlight > core.MaxFramesInFlight {
		return nil, core.Violation("frames in flight must be in [%d,%d], got %d", core.MinFramesInFlight, core.MaxFramesInFlight, o.framesInFlight)
	}
	if extent.HasZeroArea() {
		return nil, core.Violation("swapchain requested with zero-area extent %s", extent)
	}

	s := &Swapchain{device: device, opts: o}
	if err := s.createFrames(); err != nil {
		s.destroyFrames()
		return nil, err
	}

	var old *chain
	if o.previous != nil {
		old = o.previous.chain
	}
	c, err := s.createChain(extent, old)
	if err != nil {
		s.destroyFrames()
		return nil, err
	}
	s.chain = c
	s.imagesInFlight = make([]driver.Fence, len(c.images))
	if old != nil && !sameFormats(old, c) {
		return s, formatDrift(old, c)
	}
	return s, nil
}

func (s *Swapchain) createFrames() error {
	s.frames = make([]frameSlot, s.opts.framesInFlight)
	for i := range s.frames {
		var err error
		f := &s.frames[i]
		if f.imageAvailable, err = s.device.CreateSemaphore(); err != nil {
			return errors.Wrap(err, "create image available semaphore")
		}
		if f.renderFinished, err = s.device.CreateSemaphore(); err != nil {
			return errors.Wrap(err, "create render finished semaphore")
		}
		// signaled so that the first wait on every slot returns immediately
		if f.inFlight, err = s.device.CreateFence(true); err != nil {
			return errors.Wrap(err, "create in flight fence")
		}
	}
	return nil
}

func (s *Swapchain) destroyFrames() {
	for _, f := range s.frames {
		if f.imageAvailable != 0 {
			s.device.DestroySemaphore(f.imageAvailable)
		}
		if f.renderFinished != 0 {
			s.device.DestroySemaphore(f.renderFinished)
		}
		if f.inFlight != 0 {
			s.device.DestroyFence(f.inFlight)
		}
	}
	s.frames = nil
}

func (s *Swapchain) createChain(requested driver.Extent2D, old *chain) (*chain, error) {
	support, err := s.device.SurfaceSupport()
	if err != nil {
		return nil, errors.Wrap(err, "query surface support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, errors.New("surface reports no formats or present modes")
	}

	c := &chain{
		id:            uuid.New(),
		surfaceFormat: chooseSurfaceFormat(support.Formats),
		presentMode:   choosePresentMode(support.PresentModes, s.opts.presentMode),
		extent:        chooseExtent(support.Capabilities, requested),
	}
	desc := driver.SwapchainDescriptor{
		ImageCount:   chooseImageCount(support.Capabilities),
		Format:       c.surfaceFormat,
		Extent:       c.extent,
		PresentMode:  c.presentMode,
		PreTransform: support.Capabilities.CurrentTransform,
	}
	if old != nil {
		desc.OldSwapchain = old.handle
	}
	if c.handle, c.images, err = s.device.CreateSwapchain(desc); err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	if err := s.createAttachments(c); err != nil {
		s.releaseChain(c)
		return nil, err
	}

	core.LogInfo("swapchain %s created: %d images, %s, %s, %s", c.id, len(c.images), c.extent, c.surfaceFormat.Format, c.presentMode)
	return c, nil
}

func (s *Swapchain) createAttachments(c *chain) error {
	var err error
	c.views = make([]driver.ImageView, 0, len(c.images))
	for _, img := range c.images {
		view, err := s.device.CreateImageView(driver.ImageViewDescriptor{
			Image:  img,
			Format: c.surfaceFormat.Format,
			Aspect: driver.ImageAspectColor,
		})
		if err != nil {
			return errors.Wrap(err, "create swapchain image view")
		}
		c.views = append(c.views, view)
	}

	if c.depthFormat, err = s.device.DepthFormat(); err != nil {
		return errors.Wrap(err, "find depth format")
	}
	if c.depthImage, err = s.device.CreateImage(driver.ImageDescriptor{
		Extent: c.extent,
		Format: c.depthFormat,
		Usage:  driver.ImageUsageDepthStencilAttachment,
	}); err != nil {
		return errors.Wrap(err, "create depth image")
	}
	if c.depthView, err = s.device.CreateImageView(driver.ImageViewDescriptor{
		Image:  c.depthImage,
		Format: c.depthFormat,
		Aspect: driver.ImageAspectDepth,
	}); err != nil {
		return errors.Wrap(err, "create depth image view")
	}

	if c.renderPass, err = s.device.CreateRenderPass(driver.RenderPassDescriptor{
		ColorFormat: c.surfaceFormat.Format,
		DepthFormat: c.depthFormat,
	}); err != nil {
		return errors.Wrap(err, "create render pass")
	}

	c.framebuffers = make([]driver.Framebuffer, 0, len(c.views))
	for _, view := range c.views {
		fb, err := s.device.CreateFramebuffer(driver.FramebufferDescriptor{
			RenderPass:  c.renderPass,
			Attachments: []driver.ImageView{view, c.depthView},
			Extent:      c.extent,
		})
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}
		c.framebuffers = append(c.framebuffers, fb)
	}
	return nil
}

// releaseChain destroys everything in c. Images are owned by the swapchain
// handle and go away with it.
func (s *Swapchain) releaseChain(c *chain) {
	if c == nil {
		return
	}
	for _, fb := range c.framebuffers {
		s.device.DestroyFramebuffer(fb)
	}
	c.framebuffers = nil
	if c.renderPass != 0 {
		s.device.DestroyRenderPass(c.renderPass)
		c.renderPass = 0
	}
	if c.depthView != 0 {
		s.device.DestroyImageView(c.depthView)
		c.depthView = 0
	}
	if c.depthImage != 0 {
		s.device.DestroyImage(c.depthImage)
		c.depthImage = 0
	}
	for _, v := range c.views {
		s.device.DestroyImageView(v)
	}
	c.views = nil
	if c.handle != 0 {
		s.device.DestroySwapchain(c.handle)
		c.handle = 0
	}
}

// Rebuild replaces the surface images with a new generation sized for
// extent. It waits for the device to go idle first. The frame slots are
// kept. A change of colour or depth format is fatal and reported as
// core.ErrFormatDrift.
func (s *Swapchain) Rebuild(extent driver.Extent2D) error {
	if extent.HasZeroArea() {
		return core.Violation("swapchain rebuilt with zero-area extent %s", extent)
	}
	if err := s.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before rebuild")
	}

	old := s.chain
	c, err := s.createChain(extent, old)
	if err != nil {
		return err
	}
	s.releaseChain(old)
	s.chain = c
	s.imagesInFlight = make([]driver.Fence, len(c.images))

	if !sameFormats(old, c) {
		return formatDrift(old, c)
	}
	return nil
}

// AcquireNextImage waits until frame slot is free and acquires the next
// surface image for it.
func (s *Swapchain) AcquireNextImage(slot int) (uint32, Status, error) {
	if slot < 0 || slot >= len(s.frames) {
		return 0, StatusOK, core.Violation("frame slot %d out of range [0,%d)", slot, len(s.frames))
	}
	f := s.frames[slot]
	if err := s.device.WaitForFence(f.inFlight, driver.InfiniteTimeout); err != nil {
		return 0, StatusOK, errors.Wrap(err, "wait for frame fence")
	}

	index, ps, err := s.device.AcquireNextImage(s.chain.handle, driver.InfiniteTimeout, f.imageAvailable)
	if err != nil {
		return 0, StatusOK, errors.Wrap(err, "acquire swapchain image")
	}
	status := statusFrom(ps)
	if status == StatusDegraded {
		core.LogDebug("swapchain %s is suboptimal on acquire", s.chain.id)
	}
	return index, status, nil
}

// Submit queues cb for the image acquired in slot and presents it.
func (s *Swapchain) Submit(slot int, cb driver.CommandBuffer, imageIndex uint32) (Status, error) {
	if slot < 0 || slot >= len(s.frames) {
		return StatusOK, core.Violation("frame slot %d out of range [0,%d)", slot, len(s.frames))
	}
	if int(imageIndex) >= len(s.chain.images) {
		return StatusOK, core.Violation("image index %d out of range [0,%d)", imageIndex, len(s.chain.images))
	}
	f := s.frames[slot]

	// another frame may still be rendering into this image
	if prev := s.imagesInFlight[imageIndex]; prev != 0 && prev != f.inFlight {
		if err := s.device.WaitForFence(prev, driver.InfiniteTimeout); err != nil {
			return StatusOK, errors.Wrap(err, "wait for image fence")
		}
	}
	s.imagesInFlight[imageIndex] = f.inFlight

	if err := s.device.ResetFence(f.inFlight); err != nil {
		return StatusOK, errors.Wrap(err, "reset frame fence")
	}
	if err := s.device.QueueSubmit(driver.SubmitInfo{
		WaitSemaphores:   []driver.Semaphore{f.imageAvailable},
		WaitStages:       []driver.PipelineStageFlags{driver.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []driver.CommandBuffer{cb},
		SignalSemaphores: []driver.Semaphore{f.renderFinished},
	}, f.inFlight); err != nil {
		return StatusOK, errors.Wrap(err, "submit draw command buffer")
	}

	ps, err := s.device.QueuePresent(driver.PresentInfo{
		WaitSemaphores: []driver.Semaphore{f.renderFinished},
		Swapchain:      s.chain.handle,
		ImageIndex:     imageIndex,
	})
	if err != nil {
		return StatusOK, errors.Wrap(err, "present swapchain image")
	}
	return statusFrom(ps), nil
}

// Destroy releases the chain and frame slots once the device is idle.
func (s *Swapchain) Destroy() {
	if err := s.device.WaitIdle(); err != nil {
		core.LogError("wait idle before swapchain destroy: %s", err)
	}
	s.releaseChain(s.chain)
	s.chain = nil
	s.destroyFrames()
	s.imagesInFlight = nil
}

// CompareFormats reports whether other uses the same colour and depth formats.
func (s *Swapchain) CompareFormats(other *Swapchain) bool {
	if other == nil || other.chain == nil || s.chain == nil {
		return false
	}
	return sameFormats(s.chain, other.chain)
}

func (s *Swapchain) ID() uuid.UUID {
	return s.chain.id
}

func (s *Swapchain) RenderPass() driver.RenderPass {
	return s.chain.renderPass
}

func (s *Swapchain) Framebuffer(imageIndex uint32) driver.Framebuffer {
	return s.chain.framebuffers[imageIndex]
}

func (s *Swapchain) ImageView(imageIndex uint32) driver.ImageView {
	return s.chain.views[imageIndex]
}

func (s *Swapchain) ImageCount() int {
	return len(s.chain.images)
}

func (s *Swapchain) FramesInFlight() int {
	return len(s.frames)
}

func (s *Swapchain) Extent() driver.Extent2D {
	return s.chain.extent
}

func (s *Swapchain) ExtentAspectRatio() float32 {
	return s.chain.extent.AspectRatio()
}

func (s *Swapchain) ImageFormat() driver.Format {
	return s.chain.surfaceFormat.Format
}

func (s *Swapchain) DepthFormat() driver.Format {
	return s.chain.depthFormat
}

func (s *Swapchain) PresentMode() driver.PresentMode {
	return s.chain.presentMode
}

func sameFormats(a, b *chain) bool {
	return a.surfaceFormat.Format == b.surfaceFormat.Format && a.depthFormat == b.depthFormat
}

func formatDrift(old, c *chain) error {
	err := errors.Wrapf(core.ErrFormatDrift, "image %s -> %s, depth %s -> %s",
		old.surfaceFormat.Format, c.surfaceFormat.Format, old.depthFormat, c.depthFormat)
	core.LogError(err.Error())
	return err
}

func chooseSurfaceFormat(formats []driver.SurfaceFormat) driver.SurfaceFormat {
	for _, f := range formats {
		if f.Format == driver.FormatB8G8R8A8Srgb && f.ColorSpace == driver.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

func choosePresentMode(modes []driver.PresentMode, preferred driver.PresentMode) driver.PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return driver.PresentModeFifo
}

func chooseExtent(caps driver.SurfaceCapabilities, requested driver.Extent2D) driver.Extent2D {
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}
	return driver.Extent2D{
		Width:  math.Clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps driver.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}
