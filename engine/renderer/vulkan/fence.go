package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if err := check(vk.CreateSemaphore(d.logicalDevice, &info, d.allocator, &sem), "vkCreateSemaphore"); err != nil {
		return 0, err
	}
	return d.semaphores.put(sem), nil
}

func (d *Device) DestroySemaphore(s driver.Semaphore) {
	if sem, ok := d.semaphores.remove(s); ok {
		vk.DestroySemaphore(d.logicalDevice, sem, d.allocator)
	}
}

// CreateFence creates a fence, optionally already signaled so that the first
// wait on it returns immediately.
func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check(vk.CreateFence(d.logicalDevice, &info, d.allocator, &fence), "vkCreateFence"); err != nil {
		return 0, err
	}
	return d.fences.put(fence), nil
}

func (d *Device) DestroyFence(f driver.Fence) {
	if fence, ok := d.fences.remove(f); ok {
		vk.DestroyFence(d.logicalDevice, fence, d.allocator)
	}
}

func (d *Device) WaitForFence(f driver.Fence, timeoutNs uint64) error {
	fence, ok := d.fences.get(f)
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "wait for fence %d", f)
	}
	return check(vk.WaitForFences(d.logicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNs), "vkWaitForFences")
}

func (d *Device) ResetFence(f driver.Fence) error {
	fence, ok := d.fences.get(f)
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "reset fence %d", f)
	}
	return check(vk.ResetFences(d.logicalDevice, 1, []vk.Fence{fence}), "vkResetFences")
}
