package vulkan

import (
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

type queueFamilies struct {
	graphics int
	present  int
}

func (q queueFamilies) complete() bool {
	return q.graphics >= 0 && q.present >= 0
}

// selectPhysicalDevice picks the first device that can render and present to
// the surface, preferring discrete GPUs.
func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, devices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	best := -1
	var bestFamilies queueFamilies
	for i, pd := range devices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		name := cString(props.DeviceName[:])

		families, ok := d.deviceSuitable(pd, name)
		if !ok {
			continue
		}
		if best < 0 || (props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu && runtime.GOOS != "darwin") {
			best = i
			bestFamilies = families
		}
	}
	if best < 0 {
		return errors.New("no physical devices were found which meet the requirements")
	}

	d.physicalDevice = devices[best]
	d.graphicsQueueIndex = uint32(bestFamilies.graphics)
	d.presentQueueIndex = uint32(bestFamilies.present)

	vk.GetPhysicalDeviceProperties(d.physicalDevice, &d.properties)
	d.properties.Deref()
	d.properties.Limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &d.memory)
	d.memory.Deref()

	core.LogInfo("Selected device: '%s'.", cString(d.properties.DeviceName[:]))
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version.Major(vk.Version(d.properties.ApiVersion)),
		vk.Version.Minor(vk.Version(d.properties.ApiVersion)),
		vk.Version.Patch(vk.Version(d.properties.ApiVersion)),
	)
	core.LogDebug("Graphics Family Index: %d", d.graphicsQueueIndex)
	core.LogDebug("Present Family Index:  %d", d.presentQueueIndex)
	return nil
}

func (d *Device) deviceSuitable(pd vk.PhysicalDevice, name string) (queueFamilies, bool) {
	families := queueFamilies{graphics: -1, present: -1}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, props)

	for i := range props {
		props[i].Deref()
		if families.graphics < 0 && vk.QueueFlagBits(props[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			families.graphics = i
		}
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), d.surface, &present)
		// prefer a family that does both
		if present == vk.True && (families.present < 0 || i == families.graphics) {
			families.present = i
		}
	}
	if !families.complete() {
		core.LogInfo("Device '%s' lacks a graphics or present queue, skipping.", name)
		return families, false
	}

	if !hasDeviceExtension(pd, vk.KhrSwapchainExtensionName) {
		core.LogInfo("Device '%s' does not support %s, skipping.", name, vk.KhrSwapchainExtensionName)
		return families, false
	}

	var formatCount, modeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, d.surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(pd, d.surface, &modeCount, nil)
	if formatCount == 0 || modeCount == 0 {
		core.LogInfo("Required swapchain support not present on '%s', skipping.", name)
		return families, false
	}
	return families, true
}

func hasDeviceExtension(pd vk.PhysicalDevice, name string) bool {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vk.Success {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, available) != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Device) createLogicalDevice() error {
	core.LogInfo("Creating logical device...")

	indices := []uint32{d.graphicsQueueIndex}
	if d.presentQueueIndex != d.graphicsQueueIndex {
		indices = append(indices, d.presentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(d.physicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if err := check(vk.CreateDevice(d.physicalDevice, &deviceCreateInfo, d.allocator, &d.logicalDevice), "vkCreateDevice"); err != nil {
		return err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.logicalDevice, d.graphicsQueueIndex, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.logicalDevice, d.presentQueueIndex, 0, &d.presentQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.graphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := check(vk.CreateCommandPool(d.logicalDevice, &poolCreateInfo, d.allocator, &d.commandPool), "vkCreateCommandPool"); err != nil {
		return err
	}
	core.LogInfo("Graphics command pool created.")
	return nil
}

// depth format candidates in order of preference
var depthCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

func (d *Device) detectDepthFormat() error {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range depthCandidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physicalDevice, candidate, &props)
		props.Deref()
		if props.OptimalTilingFeatures&flags == flags {
			d.depthFormat = candidate
			return nil
		}
	}
	d.depthFormat = vk.FormatUndefined
	return errors.New("failed to find a supported depth format")
}

func (d *Device) DepthFormat() (driver.Format, error) {
	if d.depthFormat == vk.FormatUndefined {
		return driver.FormatUndefined, errors.New("device has no depth attachment format")
	}
	return driver.Format(d.depthFormat), nil
}

// SurfaceSupport queries the surface again on every call; the capabilities
// change when the window is resized.
func (d *Device) SurfaceSupport() (driver.SurfaceSupport, error) {
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, d.surface, &caps), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return driver.SurfaceSupport{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return driver.SurfaceSupport{}, err
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, d.surface, &formatCount, formats), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return driver.SurfaceSupport{}, err
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return driver.SurfaceSupport{}, err
	}
	modes := make([]vk.PresentMode, modeCount)
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.physicalDevice, d.surface, &modeCount, modes), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return driver.SurfaceSupport{}, err
	}

	support := driver.SurfaceSupport{
		Capabilities: driver.SurfaceCapabilities{
			MinImageCount:    caps.MinImageCount,
			MaxImageCount:    caps.MaxImageCount,
			CurrentExtent:    extentFrom(caps.CurrentExtent),
			MinImageExtent:   extentFrom(caps.MinImageExtent),
			MaxImageExtent:   extentFrom(caps.MaxImageExtent),
			CurrentTransform: uint32(caps.CurrentTransform),
		},
		Formats:      make([]driver.SurfaceFormat, len(formats)),
		PresentModes: make([]driver.PresentMode, len(modes)),
	}
	for i := range formats {
		formats[i].Deref()
		support.Formats[i] = driver.SurfaceFormat{
			Format:     driver.Format(formats[i].Format),
			ColorSpace: driver.ColorSpace(formats[i].ColorSpace),
		}
	}
	for i, mode := range modes {
		support.PresentModes[i] = driver.PresentMode(mode)
	}
	return support, nil
}

func extentFrom(e vk.Extent2D) driver.Extent2D {
	return driver.Extent2D{Width: e.Width, Height: e.Height}
}

func extentTo(e driver.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}
