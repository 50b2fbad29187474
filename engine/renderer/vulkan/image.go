package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// CreateImage creates a 2D, single mip, device-local image with its own
// memory allocation.
func (d *Device) CreateImage(desc driver.ImageDescriptor) (driver.Image, error) {
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vk.Format(desc.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var img vk.Image
	if err := check(vk.CreateImage(d.logicalDevice, &info, d.allocator, &img), "vkCreateImage"); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logicalDevice, img, &reqs)
	reqs.Deref()

	index, err := d.findMemoryIndex(reqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.logicalDevice, img, d.allocator)
		return 0, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var mem vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.logicalDevice, &allocInfo, d.allocator, &mem), "vkAllocateMemory"); err != nil {
		vk.DestroyImage(d.logicalDevice, img, d.allocator)
		return 0, err
	}
	if err := check(vk.BindImageMemory(d.logicalDevice, img, mem, 0), "vkBindImageMemory"); err != nil {
		vk.FreeMemory(d.logicalDevice, mem, d.allocator)
		vk.DestroyImage(d.logicalDevice, img, d.allocator)
		return 0, err
	}
	return d.images.put(image{handle: img, memory: mem}), nil
}

// DestroyImage releases an image created by CreateImage. Swapchain images are
// released with their swapchain.
func (d *Device) DestroyImage(i driver.Image) {
	img, ok := d.images.get(i)
	if !ok || img.memory == vk.NullDeviceMemory {
		return
	}
	d.images.remove(i)
	vk.DestroyImage(d.logicalDevice, img.handle, d.allocator)
	vk.FreeMemory(d.logicalDevice, img.memory, d.allocator)
}

func (d *Device) CreateImageView(desc driver.ImageViewDescriptor) (driver.ImageView, error) {
	img, ok := d.images.get(desc.Image)
	if !ok {
		return 0, errors.Wrapf(driver.ErrInvalidHandle, "image view of image %d", desc.Image)
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(desc.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(desc.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(d.logicalDevice, &info, d.allocator, &view), "vkCreateImageView"); err != nil {
		return 0, err
	}
	return d.imageViews.put(view), nil
}

func (d *Device) DestroyImageView(v driver.ImageView) {
	if view, ok := d.imageViews.remove(v); ok {
		vk.DestroyImageView(d.logicalDevice, view, d.allocator)
	}
}
