package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Config selects the instance level features of the device.
type Config struct {
	ApplicationName string
	// Validation enables VK_LAYER_KHRONOS_validation and routes its reports
	// to the engine log.
	Validation bool
}

// SurfaceSource is the window the device presents into.
type SurfaceSource interface {
	// RequiredInstanceExtensions lists the instance extensions the window
	// system needs to create a surface.
	RequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error)
}

type image struct {
	handle vk.Image
	// memory is null for images owned by a swapchain.
	memory vk.DeviceMemory
}

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	mapped unsafe.Pointer
}

type descriptorSet struct {
	handle vk.DescriptorSet
	pool   driver.DescriptorPool
}

// Device implements driver.Device on top of Vulkan. Native objects never
// leave the package: the renderer only sees opaque handles.
type Device struct {
	config    Config
	allocator *vk.AllocationCallbacks

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface

	physicalDevice vk.PhysicalDevice
	logicalDevice  vk.Device
	properties     vk.PhysicalDeviceProperties
	memory         vk.PhysicalDeviceMemoryProperties
	depthFormat    vk.Format

	graphicsQueueIndex uint32
	presentQueueIndex  uint32
	graphicsQueue      vk.Queue
	presentQueue       vk.Queue
	commandPool        vk.CommandPool
	queues             *queueLocks

	semaphores      *table[driver.Semaphore, vk.Semaphore]
	fences          *table[driver.Fence, vk.Fence]
	commandBuffers  *table[driver.CommandBuffer, vk.CommandBuffer]
	swapchains      *table[driver.Swapchain, vk.Swapchain]
	swapchainImages map[driver.Swapchain][]driver.Image
	images          *table[driver.Image, image]
	imageViews      *table[driver.ImageView, vk.ImageView]
	renderPasses    *table[driver.RenderPass, vk.RenderPass]
	framebuffers    *table[driver.Framebuffer, vk.Framebuffer]
	buffers         *table[driver.Buffer, buffer]
	setLayouts      *table[driver.DescriptorSetLayout, vk.DescriptorSetLayout]
	descriptorPools *table[driver.DescriptorPool, vk.DescriptorPool]
	descriptorSets  *table[driver.DescriptorSet, descriptorSet]
}

func newDevice(config Config) *Device {
	return &Device{
		config:          config,
		queues:          newQueueLocks(),
		semaphores:      newTable[driver.Semaphore, vk.Semaphore](),
		fences:          newTable[driver.Fence, vk.Fence](),
		commandBuffers:  newTable[driver.CommandBuffer, vk.CommandBuffer](),
		swapchains:      newTable[driver.Swapchain, vk.Swapchain](),
		swapchainImages: make(map[driver.Swapchain][]driver.Image),
		images:          newTable[driver.Image, image](),
		imageViews:      newTable[driver.ImageView, vk.ImageView](),
		renderPasses:    newTable[driver.RenderPass, vk.RenderPass](),
		framebuffers:    newTable[driver.Framebuffer, vk.Framebuffer](),
		buffers:         newTable[driver.Buffer, buffer](),
		setLayouts:      newTable[driver.DescriptorSetLayout, vk.DescriptorSetLayout](),
		descriptorPools: newTable[driver.DescriptorPool, vk.DescriptorPool](),
		descriptorSets:  newTable[driver.DescriptorSet, descriptorSet](),
	}
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has all of propertyFlags.
func (d *Device) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, errors.Errorf("no memory type matches filter %#x with properties %#x", typeFilter, propertyFlags)
}

func (d *Device) Properties() driver.DeviceProperties {
	return driver.DeviceProperties{
		DeviceName:                      cString(d.properties.DeviceName[:]),
		MinUniformBufferOffsetAlignment: uint64(d.properties.Limits.MinUniformBufferOffsetAlignment),
	}
}

func (d *Device) WaitIdle() error {
	return d.queues.call(d.graphicsQueueIndex, func() error {
		return check(vk.DeviceWaitIdle(d.logicalDevice), "vkDeviceWaitIdle")
	})
}

var _ driver.Device = (*Device)(nil)
