package driver

import "fmt"

// Handles are opaque identifiers owned by a Device. Zero is the null handle.
type (
	CommandBuffer       uint64
	Semaphore           uint64
	Fence               uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	Framebuffer         uint64
	RenderPass          uint64
	Swapchain           uint64
	Buffer              uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
)

// InfiniteTimeout blocks until the waited object is signaled.
const InfiniteTimeout = ^uint64(0)

type Extent2D struct {
	Width  uint32
	Height uint32
}

// HasZeroArea reports whether either dimension is zero, as happens while the
// window is minimized.
func (e Extent2D) HasZeroArea() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent2D) AspectRatio() float32 {
	if e.Height == 0 {
		return 0
	}
	return float32(e.Width) / float32(e.Height)
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

type Offset2D struct {
	X int32
	Y int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// Format values match VkFormat.
type Format uint32

const (
	FormatUndefined       Format = 0
	FormatR8G8B8A8Unorm   Format = 37
	FormatR8G8B8A8Srgb    Format = 43
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8Srgb    Format = 50
	FormatD32Sfloat       Format = 126
	FormatD24UnormS8Uint  Format = 129
	FormatD32SfloatS8Uint Format = 130
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "UNDEFINED"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// HasStencil reports whether a depth format carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32SfloatS8Uint
}

// ColorSpace values match VkColorSpaceKHR.
type ColorSpace uint32

const ColorSpaceSrgbNonlinear ColorSpace = 0

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode values match VkPresentModeKHR.
type PresentMode uint32

const (
	PresentModeImmediate PresentMode = 0
	PresentModeMailbox   PresentMode = 1
	PresentModeFifo      PresentMode = 2
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	}
	return fmt.Sprintf("PresentMode(%d)", uint32(p))
}

// ParsePresentMode maps a configuration string to a present mode. Unknown
// strings map to FIFO, which every device supports.
func ParsePresentMode(s string) PresentMode {
	switch s {
	case "immediate":
		return PresentModeImmediate
	case "mailbox":
		return PresentModeMailbox
	}
	return PresentModeFifo
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount is zero when the surface imposes no limit.
	MaxImageCount uint32
	// CurrentExtent is {0xFFFFFFFF, 0xFFFFFFFF} when the surface lets the
	// swapchain pick its size.
	CurrentExtent    Extent2D
	MinImageExtent   Extent2D
	MaxImageExtent   Extent2D
	CurrentTransform uint32
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// PresentStatus is the outcome of acquire and present calls that did not fail.
type PresentStatus uint8

const (
	PresentOK PresentStatus = iota
	// PresentSuboptimal means the image is still usable but the swapchain no
	// longer matches the surface exactly.
	PresentSuboptimal
	// PresentOutOfDate means the swapchain can no longer be used.
	PresentOutOfDate
)

func (s PresentStatus) String() string {
	switch s {
	case PresentOK:
		return "ok"
	case PresentSuboptimal:
		return "suboptimal"
	case PresentOutOfDate:
		return "out-of-date"
	}
	return "unknown"
}

type SwapchainDescriptor struct {
	ImageCount   uint32
	Format       SurfaceFormat
	Extent       Extent2D
	PresentMode  PresentMode
	PreTransform uint32
	OldSwapchain Swapchain
}

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc            ImageUsageFlags = 0x01
	ImageUsageTransferDst            ImageUsageFlags = 0x02
	ImageUsageSampled                ImageUsageFlags = 0x04
	ImageUsageColorAttachment        ImageUsageFlags = 0x10
	ImageUsageDepthStencilAttachment ImageUsageFlags = 0x20
)

type ImageAspectFlags uint32

const (
	ImageAspectColor   ImageAspectFlags = 0x1
	ImageAspectDepth   ImageAspectFlags = 0x2
	ImageAspectStencil ImageAspectFlags = 0x4
)

// ImageLayout values match VkImageLayout.
type ImageLayout uint32

const (
	ImageLayoutUndefined             ImageLayout = 0
	ImageLayoutShaderReadOnlyOptimal ImageLayout = 5
)

// ImageDescriptor describes a 2D device-local image with bound memory.
type ImageDescriptor struct {
	Extent Extent2D
	Format Format
	Usage  ImageUsageFlags
}

type ImageViewDescriptor struct {
	Image  Image
	Format Format
	Aspect ImageAspectFlags
}

// RenderPassDescriptor describes the single-subpass pass used for
// presentation: one colour attachment ending in present layout and one
// depth attachment.
type RenderPassDescriptor struct {
	ColorFormat Format
	DepthFormat Format
}

type FramebufferDescriptor struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

type RenderPassBeginInfo struct {
	RenderPass   RenderPass
	Framebuffer  Framebuffer
	RenderArea   Rect2D
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}

type CommandBufferUsageFlags uint32

const (
	CommandBufferUsageOneTimeSubmit   CommandBufferUsageFlags = 0x1
	CommandBufferUsageSimultaneousUse CommandBufferUsageFlags = 0x4
)

type PipelineStageFlags uint32

const PipelineStageColorAttachmentOutput PipelineStageFlags = 0x400

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStageFlags
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc   BufferUsageFlags = 0x01
	BufferUsageTransferDst   BufferUsageFlags = 0x02
	BufferUsageUniformBuffer BufferUsageFlags = 0x10
	BufferUsageStorageBuffer BufferUsageFlags = 0x20
)

// BufferDescriptor describes a host-visible, host-coherent buffer.
type BufferDescriptor struct {
	Size  uint64
	Usage BufferUsageFlags
}

type DeviceProperties struct {
	DeviceName                      string
	MinUniformBufferOffsetAlignment uint64
}

// DescriptorType values match VkDescriptorType.
type DescriptorType uint32

const (
	DescriptorTypeSampler              DescriptorType = 0
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeSampledImage         DescriptorType = 2
	DescriptorTypeStorageImage         DescriptorType = 3
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
	DescriptorTypeUniformBufferDynamic DescriptorType = 8
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorTypeSampler:
		return "sampler"
	case DescriptorTypeCombinedImageSampler:
		return "combined-image-sampler"
	case DescriptorTypeSampledImage:
		return "sampled-image"
	case DescriptorTypeStorageImage:
		return "storage-image"
	case DescriptorTypeUniformBuffer:
		return "uniform-buffer"
	case DescriptorTypeStorageBuffer:
		return "storage-buffer"
	case DescriptorTypeUniformBufferDynamic:
		return "uniform-buffer-dynamic"
	}
	return fmt.Sprintf("DescriptorType(%d)", uint32(t))
}

// IsImage reports whether descriptors of this type reference image views.
func (t DescriptorType) IsImage() bool {
	switch t {
	case DescriptorTypeSampler, DescriptorTypeCombinedImageSampler, DescriptorTypeSampledImage, DescriptorTypeStorageImage:
		return true
	}
	return false
}

// ShaderStageFlags values match VkShaderStageFlagBits.
type ShaderStageFlags uint32

const (
	ShaderStageVertex      ShaderStageFlags = 0x01
	ShaderStageFragment    ShaderStageFlags = 0x10
	ShaderStageCompute     ShaderStageFlags = 0x20
	ShaderStageAllGraphics ShaderStageFlags = 0x1F
)

type DescriptorPoolFlags uint32

const DescriptorPoolFreeDescriptorSet DescriptorPoolFlags = 0x1

type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolDescriptor struct {
	MaxSets uint32
	Flags   DescriptorPoolFlags
	Sizes   []DescriptorPoolSize
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

type DescriptorImageInfo struct {
	Sampler   Sampler
	ImageView ImageView
	Layout    ImageLayout
}

// WriteDescriptorSet updates a single descriptor. Exactly one of BufferInfo
// and ImageInfo is set, depending on Type.
type WriteDescriptorSet struct {
	DstSet     DescriptorSet
	DstBinding uint32
	Type       DescriptorType
	BufferInfo *DescriptorBufferInfo
	ImageInfo  *DescriptorImageInfo
}
