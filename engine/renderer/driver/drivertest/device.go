// Package drivertest provides an in-memory driver.Device and renderer host
// with scripted swapchain results, for testing frame orchestration without a
// GPU.
package drivertest

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Kind names a class of device object for leak accounting.
type Kind string

const (
	KindSemaphore     Kind = "semaphore"
	KindFence         Kind = "fence"
	KindCommandBuffer Kind = "command-buffer"
	KindSwapchain     Kind = "swapchain"
	KindImage         Kind = "image"
	KindImageView     Kind = "image-view"
	KindRenderPass    Kind = "render-pass"
	KindFramebuffer   Kind = "framebuffer"
	KindBuffer        Kind = "buffer"
	KindSetLayout     Kind = "descriptor-set-layout"
	KindPool          Kind = "descriptor-pool"
)

// Result scripts the outcome of one acquire or present call.
type Result struct {
	Status driver.PresentStatus
	Err    error
}

type fenceState struct {
	signaled bool
	pending  []driver.CommandBuffer
}

type swapchainState struct {
	desc   driver.SwapchainDescriptor
	images []driver.Image
	next   uint32
}

type poolState struct {
	desc      driver.DescriptorPoolDescriptor
	allocated map[driver.DescriptorSet]struct{}
}

// Device is a driver.Device that executes nothing. Submitted work retires
// when its fence is waited on or when the device is waited idle.
type Device struct {
	Surface    driver.SurfaceSupport
	SurfaceErr error
	Depth      driver.Format
	Props      driver.DeviceProperties

	// FailAllocations makes every descriptor set allocation fail.
	FailAllocations bool

	Submits          []driver.SubmitInfo
	SubmitFences     []driver.Fence
	Presents         []driver.PresentInfo
	Acquires         int
	WaitIdles        int
	UpdateCalls      int
	Writes           []driver.WriteDescriptorSet
	RenderPassBegins []driver.RenderPassBeginInfo
	RenderPassEnds   int
	Viewports        []driver.Viewport
	Scissors         []driver.Rect2D
	Swapchains       []driver.SwapchainDescriptor
	// MaxOutstanding is the highest number of fences that had submitted,
	// unretired work at the same time.
	MaxOutstanding int
	// Violations lists every misuse the device noticed.
	Violations []string

	nextHandle    uint64
	live          map[Kind]map[uint64]struct{}
	fences        map[driver.Fence]*fenceState
	recording     map[driver.CommandBuffer]bool
	inFlight      map[driver.CommandBuffer]driver.Fence
	swapchains    map[driver.Swapchain]*swapchainState
	buffers       map[driver.Buffer][]byte
	layouts       map[driver.DescriptorSetLayout][]driver.DescriptorSetLayoutBinding
	pools         map[driver.DescriptorPool]*poolState
	sets          map[driver.DescriptorSet]driver.DescriptorPool
	acquireScript []Result
	presentScript []Result
}

var _ driver.Device = (*Device)(nil)

// NewDevice returns a device whose surface lets the swapchain pick its size
// and supports at most two images.
func NewDevice() *Device {
	return &Device{
		Surface: driver.SurfaceSupport{
			Capabilities: driver.SurfaceCapabilities{
				MinImageCount:  1,
				MaxImageCount:  2,
				CurrentExtent:  driver.Extent2D{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF},
				MinImageExtent: driver.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: driver.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []driver.SurfaceFormat{
				{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox},
		},
		Depth: driver.FormatD32Sfloat,
		Props: driver.DeviceProperties{
			DeviceName:                      "drivertest",
			MinUniformBufferOffsetAlignment: 256,
		},
		live:       make(map[Kind]map[uint64]struct{}),
		fences:     make(map[driver.Fence]*fenceState),
		recording:  make(map[driver.CommandBuffer]bool),
		inFlight:   make(map[driver.CommandBuffer]driver.Fence),
		swapchains: make(map[driver.Swapchain]*swapchainState),
		buffers:    make(map[driver.Buffer][]byte),
		layouts:    make(map[driver.DescriptorSetLayout][]driver.DescriptorSetLayoutBinding),
		pools:      make(map[driver.DescriptorPool]*poolState),
		sets:       make(map[driver.DescriptorSet]driver.DescriptorPool),
	}
}

// ScriptAcquire queues results for upcoming AcquireNextImage calls. Once the
// script is exhausted acquires succeed.
func (d *Device) ScriptAcquire(results ...Result) {
	d.acquireScript = append(d.acquireScript, results...)
}

// ScriptPresent queues results for upcoming QueuePresent calls.
func (d *Device) ScriptPresent(results ...Result) {
	d.presentScript = append(d.presentScript, results...)
}

// Live returns the number of objects of kind k that are not destroyed.
func (d *Device) Live(k Kind) int {
	return len(d.live[k])
}

// LiveTotal returns the number of live objects of every kind.
func (d *Device) LiveTotal() int {
	n := 0
	for _, m := range d.live {
		n += len(m)
	}
	return n
}

// Outstanding returns the number of fences with submitted, unretired work.
func (d *Device) Outstanding() int {
	n := 0
	for _, f := range d.fences {
		if len(f.pending) > 0 {
			n++
		}
	}
	return n
}

// BufferData returns a copy of the contents of b.
func (d *Device) BufferData(b driver.Buffer) []byte {
	data, ok := d.buffers[b]
	if !ok {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// AllocatedSets returns the number of sets currently allocated from p.
func (d *Device) AllocatedSets(p driver.DescriptorPool) int {
	if ps, ok := d.pools[p]; ok {
		return len(ps.allocated)
	}
	return 0
}

// LastSwapchain returns the descriptor of the most recently created swapchain.
func (d *Device) LastSwapchain() driver.SwapchainDescriptor {
	if len(d.Swapchains) == 0 {
		return driver.SwapchainDescriptor{}
	}
	return d.Swapchains[len(d.Swapchains)-1]
}

func (d *Device) violation(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) create(k Kind) uint64 {
	d.nextHandle++
	if d.live[k] == nil {
		d.live[k] = make(map[uint64]struct{})
	}
	d.live[k][d.nextHandle] = struct{}{}
	return d.nextHandle
}

func (d *Device) destroy(k Kind, h uint64) {
	if h == 0 {
		return
	}
	if _, ok := d.live[k][h]; !ok {
		d.violation("destroy of unknown %s %d", k, h)
		return
	}
	delete(d.live[k], h)
}

func (d *Device) isLive(k Kind, h uint64) bool {
	_, ok := d.live[k][h]
	return ok
}

func (d *Device) retire(f *fenceState) {
	for _, cb := range f.pending {
		delete(d.inFlight, cb)
	}
	f.pending = nil
	f.signaled = true
}

func (d *Device) Properties() driver.DeviceProperties {
	return d.Props
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	return driver.Semaphore(d.create(KindSemaphore)), nil
}

func (d *Device) DestroySemaphore(s driver.Semaphore) {
	d.destroy(KindSemaphore, uint64(s))
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	f := driver.Fence(d.create(KindFence))
	d.fences[f] = &fenceState{signaled: signaled}
	return f, nil
}

func (d *Device) DestroyFence(f driver.Fence) {
	if fs, ok := d.fences[f]; ok && len(fs.pending) > 0 {
		d.violation("fence %d destroyed with pending work", f)
	}
	delete(d.fences, f)
	d.destroy(KindFence, uint64(f))
}

func (d *Device) WaitForFence(f driver.Fence, timeoutNs uint64) error {
	fs, ok := d.fences[f]
	if !ok {
		return driver.ErrInvalidHandle
	}
	if fs.signaled {
		return nil
	}
	if len(fs.pending) == 0 {
		d.violation("wait on fence %d that was never submitted", f)
		return driver.ErrTimeout
	}
	d.retire(fs)
	return nil
}

func (d *Device) ResetFence(f driver.Fence) error {
	fs, ok := d.fences[f]
	if !ok {
		return driver.ErrInvalidHandle
	}
	if len(fs.pending) > 0 {
		d.violation("reset of fence %d with pending work", f)
	}
	fs.signaled = false
	return nil
}

func (d *Device) WaitIdle() error {
	d.WaitIdles++
	for _, fs := range d.fences {
		if len(fs.pending) > 0 {
			d.retire(fs)
		}
	}
	return nil
}

func (d *Device) AllocateCommandBuffers(count int) ([]driver.CommandBuffer, error) {
	cbs := make([]driver.CommandBuffer, count)
	for i := range cbs {
		cbs[i] = driver.CommandBuffer(d.create(KindCommandBuffer))
	}
	return cbs, nil
}

func (d *Device) FreeCommandBuffers(cbs []driver.CommandBuffer) {
	for _, cb := range cbs {
		if _, busy := d.inFlight[cb]; busy {
			d.violation("command buffer %d freed while in flight", cb)
		}
		delete(d.recording, cb)
		d.destroy(KindCommandBuffer, uint64(cb))
	}
}

func (d *Device) BeginCommandBuffer(cb driver.CommandBuffer, flags driver.CommandBufferUsageFlags) error {
	if !d.isLive(KindCommandBuffer, uint64(cb)) {
		return driver.ErrInvalidHandle
	}
	if _, busy := d.inFlight[cb]; busy {
		d.violation("command buffer %d re-recorded while in flight", cb)
	}
	if d.recording[cb] {
		d.violation("command buffer %d begun twice", cb)
	}
	d.recording[cb] = true
	return nil
}

func (d *Device) EndCommandBuffer(cb driver.CommandBuffer) error {
	if !d.recording[cb] {
		d.violation("command buffer %d ended while not recording", cb)
	}
	d.recording[cb] = false
	return nil
}

func (d *Device) CmdBeginRenderPass(cb driver.CommandBuffer, info driver.RenderPassBeginInfo) {
	if !d.recording[cb] {
		d.violation("render pass begun on command buffer %d that is not recording", cb)
	}
	d.RenderPassBegins = append(d.RenderPassBegins, info)
}

func (d *Device) CmdEndRenderPass(cb driver.CommandBuffer) {
	if !d.recording[cb] {
		d.violation("render pass ended on command buffer %d that is not recording", cb)
	}
	d.RenderPassEnds++
}

func (d *Device) CmdSetViewport(cb driver.CommandBuffer, viewport driver.Viewport) {
	d.Viewports = append(d.Viewports, viewport)
}

func (d *Device) CmdSetScissor(cb driver.CommandBuffer, scissor driver.Rect2D) {
	d.Scissors = append(d.Scissors, scissor)
}

func (d *Device) SurfaceSupport() (driver.SurfaceSupport, error) {
	if d.SurfaceErr != nil {
		return driver.SurfaceSupport{}, d.SurfaceErr
	}
	return d.Surface, nil
}

func (d *Device) DepthFormat() (driver.Format, error) {
	return d.Depth, nil
}

func (d *Device) CreateSwapchain(desc driver.SwapchainDescriptor) (driver.Swapchain, []driver.Image, error) {
	if desc.Extent.HasZeroArea() {
		d.violation("swapchain created with zero-area extent %s", desc.Extent)
	}
	if desc.OldSwapchain != 0 && !d.isLive(KindSwapchain, uint64(desc.OldSwapchain)) {
		d.violation("old swapchain %d is not live", desc.OldSwapchain)
	}
	sc := driver.Swapchain(d.create(KindSwapchain))
	images := make([]driver.Image, desc.ImageCount)
	for i := range images {
		// swapchain images belong to the swapchain and are never destroyed
		d.nextHandle++
		images[i] = driver.Image(d.nextHandle)
	}
	d.swapchains[sc] = &swapchainState{desc: desc, images: images}
	d.Swapchains = append(d.Swapchains, desc)
	return sc, images, nil
}

func (d *Device) DestroySwapchain(sc driver.Swapchain) {
	delete(d.swapchains, sc)
	d.destroy(KindSwapchain, uint64(sc))
}

func (d *Device) AcquireNextImage(sc driver.Swapchain, timeoutNs uint64, sem driver.Semaphore) (uint32, driver.PresentStatus, error) {
	d.Acquires++
	st, ok := d.swapchains[sc]
	if !ok {
		return 0, driver.PresentOK, driver.ErrInvalidHandle
	}
	if !d.isLive(KindSemaphore, uint64(sem)) {
		d.violation("acquire with unknown semaphore %d", sem)
	}
	status := driver.PresentOK
	if len(d.acquireScript) > 0 {
		r := d.acquireScript[0]
		d.acquireScript = d.acquireScript[1:]
		if r.Err != nil {
			return 0, driver.PresentOK, r.Err
		}
		status = r.Status
	}
	if status == driver.PresentOutOfDate {
		return 0, status, nil
	}
	idx := st.next
	st.next = (st.next + 1) % uint32(len(st.images))
	return idx, status, nil
}

func (d *Device) QueueSubmit(info driver.SubmitInfo, fence driver.Fence) error {
	var fs *fenceState
	if fence != 0 {
		var ok bool
		if fs, ok = d.fences[fence]; !ok {
			return driver.ErrInvalidHandle
		}
		if fs.signaled {
			d.violation("submit with signaled fence %d", fence)
		}
		if len(fs.pending) > 0 {
			d.violation("submit with fence %d that already has pending work", fence)
		}
	}
	for _, cb := range info.CommandBuffers {
		if d.recording[cb] {
			d.violation("command buffer %d submitted while recording", cb)
		}
		if _, busy := d.inFlight[cb]; busy {
			d.violation("command buffer %d submitted while in flight", cb)
		}
		d.inFlight[cb] = fence
	}
	if fs != nil {
		fs.pending = append([]driver.CommandBuffer(nil), info.CommandBuffers...)
	}
	d.Submits = append(d.Submits, info)
	d.SubmitFences = append(d.SubmitFences, fence)
	if n := d.Outstanding(); n > d.MaxOutstanding {
		d.MaxOutstanding = n
	}
	return nil
}

func (d *Device) QueuePresent(info driver.PresentInfo) (driver.PresentStatus, error) {
	d.Presents = append(d.Presents, info)
	if _, ok := d.swapchains[info.Swapchain]; !ok {
		return driver.PresentOK, driver.ErrInvalidHandle
	}
	if len(d.presentScript) > 0 {
		r := d.presentScript[0]
		d.presentScript = d.presentScript[1:]
		return r.Status, r.Err
	}
	return driver.PresentOK, nil
}

func (d *Device) CreateImage(desc driver.ImageDescriptor) (driver.Image, error) {
	return driver.Image(d.create(KindImage)), nil
}

func (d *Device) DestroyImage(img driver.Image) {
	d.destroy(KindImage, uint64(img))
}

func (d *Device) CreateImageView(desc driver.ImageViewDescriptor) (driver.ImageView, error) {
	if desc.Image == 0 {
		return 0, driver.ErrInvalidHandle
	}
	return driver.ImageView(d.create(KindImageView)), nil
}

func (d *Device) DestroyImageView(view driver.ImageView) {
	d.destroy(KindImageView, uint64(view))
}

func (d *Device) CreateRenderPass(desc driver.RenderPassDescriptor) (driver.RenderPass, error) {
	return driver.RenderPass(d.create(KindRenderPass)), nil
}

func (d *Device) DestroyRenderPass(rp driver.RenderPass) {
	d.destroy(KindRenderPass, uint64(rp))
}

func (d *Device) CreateFramebuffer(desc driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	if !d.isLive(KindRenderPass, uint64(desc.RenderPass)) {
		d.violation("framebuffer created for unknown render pass %d", desc.RenderPass)
	}
	return driver.Framebuffer(d.create(KindFramebuffer)), nil
}

func (d *Device) DestroyFramebuffer(fb driver.Framebuffer) {
	d.destroy(KindFramebuffer, uint64(fb))
}

func (d *Device) CreateBuffer(desc driver.BufferDescriptor) (driver.Buffer, error) {
	b := driver.Buffer(d.create(KindBuffer))
	d.buffers[b] = make([]byte, desc.Size)
	return b, nil
}

func (d *Device) DestroyBuffer(b driver.Buffer) {
	delete(d.buffers, b)
	d.destroy(KindBuffer, uint64(b))
}

func (d *Device) WriteBuffer(b driver.Buffer, offset uint64, data []byte) error {
	mem, ok := d.buffers[b]
	if !ok {
		return driver.ErrInvalidHandle
	}
	if offset+uint64(len(data)) > uint64(len(mem)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorSetLayoutBinding) (driver.DescriptorSetLayout, error) {
	l := driver.DescriptorSetLayout(d.create(KindSetLayout))
	d.layouts[l] = append([]driver.DescriptorSetLayoutBinding(nil), bindings...)
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	delete(d.layouts, l)
	d.destroy(KindSetLayout, uint64(l))
}

func (d *Device) CreateDescriptorPool(desc driver.DescriptorPoolDescriptor) (driver.DescriptorPool, error) {
	p := driver.DescriptorPool(d.create(KindPool))
	d.pools[p] = &poolState{desc: desc, allocated: make(map[driver.DescriptorSet]struct{})}
	return p, nil
}

func (d *Device) DestroyDescriptorPool(p driver.DescriptorPool) {
	if ps, ok := d.pools[p]; ok {
		for s := range ps.allocated {
			delete(d.sets, s)
		}
	}
	delete(d.pools, p)
	d.destroy(KindPool, uint64(p))
}

func (d *Device) AllocateDescriptorSet(p driver.DescriptorPool, l driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	ps, ok := d.pools[p]
	if !ok {
		return 0, driver.ErrInvalidHandle
	}
	if _, ok := d.layouts[l]; !ok {
		return 0, driver.ErrInvalidHandle
	}
	if d.FailAllocations || uint32(len(ps.allocated)) >= ps.desc.MaxSets {
		return 0, driver.ErrOutOfPoolMemory
	}
	d.nextHandle++
	s := driver.DescriptorSet(d.nextHandle)
	ps.allocated[s] = struct{}{}
	d.sets[s] = p
	return s, nil
}

func (d *Device) FreeDescriptorSets(p driver.DescriptorPool, sets []driver.DescriptorSet) error {
	ps, ok := d.pools[p]
	if !ok {
		return driver.ErrInvalidHandle
	}
	if ps.desc.Flags&driver.DescriptorPoolFreeDescriptorSet == 0 {
		d.violation("free from descriptor pool %d created without the free flag", p)
	}
	for _, s := range sets {
		delete(ps.allocated, s)
		delete(d.sets, s)
	}
	return nil
}

func (d *Device) ResetDescriptorPool(p driver.DescriptorPool) error {
	ps, ok := d.pools[p]
	if !ok {
		return driver.ErrInvalidHandle
	}
	for s := range ps.allocated {
		delete(d.sets, s)
	}
	ps.allocated = make(map[driver.DescriptorSet]struct{})
	return nil
}

func (d *Device) UpdateDescriptorSets(writes []driver.WriteDescriptorSet) {
	d.UpdateCalls++
	for _, w := range writes {
		if _, ok := d.sets[w.DstSet]; !ok {
			d.violation("descriptor write to unknown set %d", w.DstSet)
		}
		d.Writes = append(d.Writes, w)
	}
}
