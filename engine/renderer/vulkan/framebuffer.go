package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

func (d *Device) CreateFramebuffer(desc driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	rp, ok := d.renderPasses.get(desc.RenderPass)
	if !ok {
		return 0, errors.Wrapf(driver.ErrInvalidHandle, "framebuffer render pass %d", desc.RenderPass)
	}
	attachments := make([]vk.ImageView, len(desc.Attachments))
	for i, a := range desc.Attachments {
		view, ok := d.imageViews.get(a)
		if !ok {
			return 0, errors.Wrapf(driver.ErrInvalidHandle, "framebuffer attachment %d", a)
		}
		attachments[i] = view
	}

	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           desc.Extent.Width,
		Height:          desc.Extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := check(vk.CreateFramebuffer(d.logicalDevice, &info, d.allocator, &fb), "vkCreateFramebuffer"); err != nil {
		return 0, err
	}
	return d.framebuffers.put(fb), nil
}

func (d *Device) DestroyFramebuffer(f driver.Framebuffer) {
	if fb, ok := d.framebuffers.remove(f); ok {
		vk.DestroyFramebuffer(d.logicalDevice, fb, d.allocator)
	}
}
