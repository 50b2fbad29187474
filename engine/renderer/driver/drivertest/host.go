package drivertest

import (
	"github.com/spaghettifunk/prism/engine/containers"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// Host is a scripted window. Scripted extents are handed out one per
// FramebufferExtent call; the last one handed out stays current.
type Host struct {
	WaitEventsCalls        int
	FramebufferExtentCalls int
	// OnWaitEvents, when set, runs on every WaitEvents call.
	OnWaitEvents func()

	current  driver.Extent2D
	scripted []driver.Extent2D
	resize   *containers.RingQueue[driver.Extent2D]
}

func NewHost(width, height uint32) *Host {
	return &Host{
		current: driver.Extent2D{Width: width, Height: height},
		resize:  containers.NewRingQueue[driver.Extent2D](1),
	}
}

// ScriptExtents queues the extents returned by the next FramebufferExtent calls.
func (h *Host) ScriptExtents(extents ...driver.Extent2D) {
	h.scripted = append(h.scripted, extents...)
}

// Resize changes the framebuffer size and raises a resize event.
func (h *Host) Resize(width, height uint32) {
	h.current = driver.Extent2D{Width: width, Height: height}
	h.resize.Replace(h.current)
}

func (h *Host) FramebufferExtent() driver.Extent2D {
	h.FramebufferExtentCalls++
	if len(h.scripted) > 0 {
		h.current = h.scripted[0]
		h.scripted = h.scripted[1:]
	}
	return h.current
}

func (h *Host) PollResize() (driver.Extent2D, bool) {
	e, err := h.resize.Dequeue()
	if err != nil {
		return driver.Extent2D{}, false
	}
	return e, true
}

func (h *Host) WaitEvents() {
	h.WaitEventsCalls++
	if h.OnWaitEvents != nil {
		h.OnWaitEvents()
	}
}
