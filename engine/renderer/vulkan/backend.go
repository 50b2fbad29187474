package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// New creates the instance, the surface of src, and a logical device able to
// render and present to it.
func New(config Config, src SurfaceSource) (*Device, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize vulkan loader")
	}

	d := newDevice(config)
	if err := d.createInstance(src.RequiredInstanceExtensions()); err != nil {
		return nil, err
	}

	if config.Validation {
		if err := d.createDebugCallback(); err != nil {
			d.Close()
			return nil, err
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := src.CreateWindowSurface(d.instance, nil)
	if err != nil {
		d.Close()
		return nil, errors.Wrap(err, "create window surface")
	}
	d.surface = vk.SurfaceFromPointer(surface)

	if err := d.selectPhysicalDevice(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.detectDepthFormat(); err != nil {
		d.Close()
		return nil, err
	}

	core.LogInfo("Vulkan device initialized successfully.")
	return d, nil
}

func (d *Device) createInstance(windowExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(d.config.ApplicationName),
		PEngineName:        safeString("Prism"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{"VK_KHR_surface"}, windowExtensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if d.config.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}
	for _, ext := range extensions {
		core.LogDebug("Required instance extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)

	var layers []string
	if d.config.Validation {
		if err := requireLayer(validationLayer); err != nil {
			return err
		}
		layers = []string{validationLayer}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	if err := check(vk.CreateInstance(&createInfo, d.allocator, &d.instance), "vkCreateInstance"); err != nil {
		return err
	}
	if err := vk.InitInstance(d.instance); err != nil {
		return errors.Wrap(err, "load instance functions")
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func requireLayer(name string) error {
	var count uint32
	if err := check(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	available := make([]vk.LayerProperties, count)
	if err := check(vk.EnumerateInstanceLayerProperties(&count, available), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			core.LogInfo("Validation layer %s found.", name)
			return nil
		}
	}
	return errors.Errorf("required validation layer is missing: %s", name)
}

func (d *Device) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	info := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	var cb vk.DebugReportCallback
	if err := check(vk.CreateDebugReportCallback(d.instance, &info, d.allocator, &cb), "vkCreateDebugReportCallback"); err != nil {
		return err
	}
	d.debugCallback = cb
	return nil
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// Close destroys the device, the surface and the instance. Every object
// created through the device must have been destroyed before.
func (d *Device) Close() {
	if d.logicalDevice != nil {
		vk.DeviceWaitIdle(d.logicalDevice)
		d.reportLeaks()

		core.LogDebug("Destroying command pool...")
		vk.DestroyCommandPool(d.logicalDevice, d.commandPool, d.allocator)
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(d.logicalDevice, d.allocator)
		d.logicalDevice = nil
	}
	d.graphicsQueue = nil
	d.presentQueue = nil
	d.physicalDevice = nil

	if d.surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(d.instance, d.surface, d.allocator)
		d.surface = vk.NullSurface
	}
	if d.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debugCallback, d.allocator)
		d.debugCallback = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(d.instance, d.allocator)
		d.instance = nil
	}
}

func (d *Device) reportLeaks() {
	for _, line := range leaks(d.liveObjects()) {
		core.LogWarn("%s", line)
	}
}
