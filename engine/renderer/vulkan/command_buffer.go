package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// AllocateCommandBuffers allocates primary command buffers from the graphics
// pool. The pool is created resettable, so beginning a buffer implicitly
// resets it.
func (d *Device) AllocateCommandBuffers(count int) ([]driver.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	handles := make([]vk.CommandBuffer, count)
	if err := check(vk.AllocateCommandBuffers(d.logicalDevice, &info, handles), "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	out := make([]driver.CommandBuffer, count)
	for i, h := range handles {
		out[i] = d.commandBuffers.put(h)
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(cbs []driver.CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		if h, ok := d.commandBuffers.remove(cb); ok {
			handles = append(handles, h)
		}
	}
	if len(handles) > 0 {
		vk.FreeCommandBuffers(d.logicalDevice, d.commandPool, uint32(len(handles)), handles)
	}
}

func (d *Device) commandBuffer(cb driver.CommandBuffer) (vk.CommandBuffer, error) {
	h, ok := d.commandBuffers.get(cb)
	if !ok {
		return nil, errors.Wrapf(driver.ErrInvalidHandle, "command buffer %d", cb)
	}
	return h, nil
}

func (d *Device) BeginCommandBuffer(cb driver.CommandBuffer, flags driver.CommandBufferUsageFlags) error {
	h, err := d.commandBuffer(cb)
	if err != nil {
		return err
	}
	if err := check(vk.ResetCommandBuffer(h, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(flags),
	}
	return check(vk.BeginCommandBuffer(h, &info), "vkBeginCommandBuffer")
}

func (d *Device) EndCommandBuffer(cb driver.CommandBuffer) error {
	h, err := d.commandBuffer(cb)
	if err != nil {
		return err
	}
	return check(vk.EndCommandBuffer(h), "vkEndCommandBuffer")
}

func (d *Device) QueueSubmit(info driver.SubmitInfo, f driver.Fence) error {
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(info.WaitSemaphores)),
		CommandBufferCount:   uint32(len(info.CommandBuffers)),
		SignalSemaphoreCount: uint32(len(info.SignalSemaphores)),
	}
	for _, s := range info.WaitSemaphores {
		sem, ok := d.semaphores.get(s)
		if !ok {
			return errors.Wrapf(driver.ErrInvalidHandle, "submit wait semaphore %d", s)
		}
		submit.PWaitSemaphores = append(submit.PWaitSemaphores, sem)
	}
	for _, stage := range info.WaitStages {
		submit.PWaitDstStageMask = append(submit.PWaitDstStageMask, vk.PipelineStageFlags(stage))
	}
	for _, cb := range info.CommandBuffers {
		h, err := d.commandBuffer(cb)
		if err != nil {
			return err
		}
		submit.PCommandBuffers = append(submit.PCommandBuffers, h)
	}
	for _, s := range info.SignalSemaphores {
		sem, ok := d.semaphores.get(s)
		if !ok {
			return errors.Wrapf(driver.ErrInvalidHandle, "submit signal semaphore %d", s)
		}
		submit.PSignalSemaphores = append(submit.PSignalSemaphores, sem)
	}

	fence := vk.NullFence
	if f != 0 {
		var ok bool
		if fence, ok = d.fences.get(f); !ok {
			return errors.Wrapf(driver.ErrInvalidHandle, "submit fence %d", f)
		}
	}

	return d.queues.call(d.graphicsQueueIndex, func() error {
		return check(vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submit}, fence), "vkQueueSubmit")
	})
}

// The Cmd* calls record into a buffer that is known to be valid: the renderer
// only records into the buffer of the active frame.

func (d *Device) CmdBeginRenderPass(cb driver.CommandBuffer, info driver.RenderPassBeginInfo) {
	h, _ := d.commandBuffers.get(cb)
	rp, _ := d.renderPasses.get(info.RenderPass)
	fb, _ := d.framebuffers.get(info.Framebuffer)

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(info.ClearColor[:])
	clearValues[1].SetDepthStencil(info.ClearDepth, info.ClearStencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: info.RenderArea.Offset.X, Y: info.RenderArea.Offset.Y},
			Extent: extentTo(info.RenderArea.Extent),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(h, &beginInfo, vk.SubpassContentsInline)
}

func (d *Device) CmdEndRenderPass(cb driver.CommandBuffer) {
	h, _ := d.commandBuffers.get(cb)
	vk.CmdEndRenderPass(h)
}

func (d *Device) CmdSetViewport(cb driver.CommandBuffer, viewport driver.Viewport) {
	h, _ := d.commandBuffers.get(cb)
	vk.CmdSetViewport(h, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (d *Device) CmdSetScissor(cb driver.CommandBuffer, scissor driver.Rect2D) {
	h, _ := d.commandBuffers.get(cb)
	vk.CmdSetScissor(h, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.Offset.X, Y: scissor.Offset.Y},
		Extent: extentTo(scissor.Extent),
	}})
}
