package vulkan

import "fmt"

type liveCount struct {
	kind string
	n    int
}

// liveObjects counts the objects of every kind still registered, in
// creation order of a typical frame setup.
func (d *Device) liveObjects() []liveCount {
	return []liveCount{
		{"semaphore", d.semaphores.len()},
		{"fence", d.fences.len()},
		{"command buffer", d.commandBuffers.len()},
		{"swapchain", d.swapchains.len()},
		{"image", d.images.len()},
		{"image view", d.imageViews.len()},
		{"render pass", d.renderPasses.len()},
		{"framebuffer", d.framebuffers.len()},
		{"buffer", d.buffers.len()},
		{"descriptor set layout", d.setLayouts.len()},
		{"descriptor pool", d.descriptorPools.len()},
		{"descriptor set", d.descriptorSets.len()},
	}
}

// leaks formats one line per kind that still has live objects.
func leaks(live []liveCount) []string {
	var out []string
	for _, c := range live {
		if c.n > 0 {
			out = append(out, fmt.Sprintf("%d %s objects still alive at device shutdown", c.n, c.kind))
		}
	}
	return out
}
