package driver

import "errors"

var (
	// ErrOutOfPoolMemory is returned by AllocateDescriptorSet when the pool
	// cannot serve the allocation. It is recoverable.
	ErrOutOfPoolMemory = errors.New("descriptor pool out of memory")
	ErrTimeout         = errors.New("wait timed out")
	ErrInvalidHandle   = errors.New("invalid handle")
)

// Device is the GPU context shared by every renderer component. There is a
// single instance per process; components borrow it and never destroy it.
//
// All calls are made from the control thread.
type Device interface {
	Properties() DeviceProperties

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	// WaitForFence blocks until f is signaled or timeoutNs elapses, in which
	// case ErrTimeout is returned.
	WaitForFence(f Fence, timeoutNs uint64) error
	ResetFence(f Fence) error
	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(cbs []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, flags CommandBufferUsageFlags) error
	EndCommandBuffer(cb CommandBuffer) error
	CmdBeginRenderPass(cb CommandBuffer, info RenderPassBeginInfo)
	CmdEndRenderPass(cb CommandBuffer)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, scissor Rect2D)

	SurfaceSupport() (SurfaceSupport, error)
	// DepthFormat returns the first supported depth attachment format.
	DepthFormat() (Format, error)
	CreateSwapchain(desc SwapchainDescriptor) (Swapchain, []Image, error)
	DestroySwapchain(sc Swapchain)
	// AcquireNextImage signals sem once the returned image is ready. Out of
	// date and suboptimal swapchains are reported through the status.
	AcquireNextImage(sc Swapchain, timeoutNs uint64, sem Semaphore) (uint32, PresentStatus, error)
	QueueSubmit(info SubmitInfo, fence Fence) error
	QueuePresent(info PresentInfo) (PresentStatus, error)

	CreateImage(desc ImageDescriptor) (Image, error)
	DestroyImage(img Image)
	CreateImageView(desc ImageViewDescriptor) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateRenderPass(desc RenderPassDescriptor) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	DestroyBuffer(b Buffer)
	// WriteBuffer copies data into the mapped memory of b at offset.
	WriteBuffer(b Buffer, offset uint64, data []byte) error

	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(desc DescriptorPoolDescriptor) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSet(p DescriptorPool, l DescriptorSetLayout) (DescriptorSet, error)
	FreeDescriptorSets(p DescriptorPool, sets []DescriptorSet) error
	ResetDescriptorPool(p DescriptorPool) error
	UpdateDescriptorSets(writes []WriteDescriptorSet)
}
