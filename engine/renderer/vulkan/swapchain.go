package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// CreateSwapchain creates a swapchain with the images it owns. Passing the
// previous swapchain lets the driver hand over resources; the caller still
// destroys the old one.
func (d *Device) CreateSwapchain(desc driver.SwapchainDescriptor) (driver.Swapchain, []driver.Image, error) {
	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      vk.Format(desc.Format.Format),
		ImageColorSpace:  vk.ColorSpace(desc.Format.ColorSpace),
		ImageExtent:      extentTo(desc.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformFlagBits(desc.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(desc.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if d.graphicsQueueIndex != d.presentQueueIndex {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{d.graphicsQueueIndex, d.presentQueueIndex}
	} else {
		info.ImageSharingMode = vk.SharingModeExclusive
	}

	if desc.OldSwapchain != 0 {
		old, ok := d.swapchains.get(desc.OldSwapchain)
		if !ok {
			return 0, nil, errors.Wrapf(driver.ErrInvalidHandle, "old swapchain %d", desc.OldSwapchain)
		}
		info.OldSwapchain = old
	}

	var sc vk.Swapchain
	if err := check(vk.CreateSwapchain(d.logicalDevice, &info, d.allocator, &sc), "vkCreateSwapchain"); err != nil {
		return 0, nil, err
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(d.logicalDevice, sc, &count, nil), "vkGetSwapchainImages"); err != nil {
		vk.DestroySwapchain(d.logicalDevice, sc, d.allocator)
		return 0, nil, err
	}
	native := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(d.logicalDevice, sc, &count, native), "vkGetSwapchainImages"); err != nil {
		vk.DestroySwapchain(d.logicalDevice, sc, d.allocator)
		return 0, nil, err
	}

	handle := d.swapchains.put(sc)
	images := make([]driver.Image, count)
	for i, img := range native {
		images[i] = d.images.put(image{handle: img, memory: vk.NullDeviceMemory})
	}
	d.swapchainImages[handle] = images

	core.LogDebug("Swapchain created with %d images at %s.", count, desc.Extent)
	return handle, images, nil
}

// DestroySwapchain destroys sc. Its images go with it.
func (d *Device) DestroySwapchain(s driver.Swapchain) {
	sc, ok := d.swapchains.remove(s)
	if !ok {
		return
	}
	for _, img := range d.swapchainImages[s] {
		d.images.remove(img)
	}
	delete(d.swapchainImages, s)
	vk.DestroySwapchain(d.logicalDevice, sc, d.allocator)
}

func (d *Device) AcquireNextImage(s driver.Swapchain, timeoutNs uint64, sem driver.Semaphore) (uint32, driver.PresentStatus, error) {
	sc, ok := d.swapchains.get(s)
	if !ok {
		return 0, driver.PresentOK, errors.Wrapf(driver.ErrInvalidHandle, "acquire from swapchain %d", s)
	}
	semaphore, ok := d.semaphores.get(sem)
	if !ok {
		return 0, driver.PresentOK, errors.Wrapf(driver.ErrInvalidHandle, "acquire semaphore %d", sem)
	}

	var imageIndex uint32
	res := vk.AcquireNextImage(d.logicalDevice, sc, timeoutNs, semaphore, vk.NullFence, &imageIndex)
	status, err := presentStatus(res, "vkAcquireNextImageKHR")
	return imageIndex, status, err
}

func (d *Device) QueuePresent(info driver.PresentInfo) (driver.PresentStatus, error) {
	sc, ok := d.swapchains.get(info.Swapchain)
	if !ok {
		return driver.PresentOK, errors.Wrapf(driver.ErrInvalidHandle, "present to swapchain %d", info.Swapchain)
	}
	waits := make([]vk.Semaphore, 0, len(info.WaitSemaphores))
	for _, s := range info.WaitSemaphores {
		sem, ok := d.semaphores.get(s)
		if !ok {
			return driver.PresentOK, errors.Wrapf(driver.ErrInvalidHandle, "present wait semaphore %d", s)
		}
		waits = append(waits, sem)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc},
		PImageIndices:      []uint32{info.ImageIndex},
	}

	var status driver.PresentStatus
	err := d.queues.call(d.presentQueueIndex, func() error {
		var err error
		status, err = presentStatus(vk.QueuePresent(d.presentQueue, &presentInfo), "vkQueuePresentKHR")
		return err
	})
	return status, err
}
