package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.Suboptimal:                "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:    "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func resultName(res vk.Result) string {
	if name, ok := resultNames[res]; ok {
		return name
	}
	return "VK_RESULT_UNRECOGNIZED"
}

// check turns a failed result into an error. Results the renderer reacts to
// are mapped onto the sentinel errors of the driver and core packages.
func check(res vk.Result, op string) error {
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout:
		return errors.Wrap(driver.ErrTimeout, op)
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		return errors.Wrap(driver.ErrOutOfPoolMemory, op)
	case vk.ErrorDeviceLost:
		return errors.Wrap(core.ErrDeviceLost, op)
	}
	return errors.Wrapf(vk.Error(res), "%s failed with %s", op, resultName(res))
}

// presentStatus splits acquire and present results into the statuses the
// swapchain recovers from and real failures.
func presentStatus(res vk.Result, op string) (driver.PresentStatus, error) {
	switch res {
	case vk.Success:
		return driver.PresentOK, nil
	case vk.Suboptimal:
		return driver.PresentSuboptimal, nil
	case vk.ErrorOutOfDate:
		return driver.PresentOutOfDate, nil
	}
	return driver.PresentOK, check(res, op)
}

var end = "\x00"
var endChar byte = '\x00'

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// cString reads a fixed size, zero terminated name field.
func cString(arr []byte) string {
	for i, b := range arr {
		if b == 0 {
			return string(arr[:i])
		}
	}
	return string(arr)
}
