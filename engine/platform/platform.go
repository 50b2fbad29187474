package platform

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/containers"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window. It satisfies renderer.Host and
// vulkan.SurfaceSource.
type Platform struct {
	Window *glfw.Window

	// resize holds at most one pending event; a newer one replaces it.
	resize *containers.RingQueue[driver.Extent2D]
}

func New() *Platform {
	return &Platform{
		resize: containers.NewRingQueue[driver.Extent2D](1),
	}
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "initialize glfw")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "create window")
	}
	p.Window = window

	p.Window.SetKeyCallback(keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	core.LogInfo("window '%s' created at %dx%d", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
}

// PumpMessages processes pending window events and reports whether the
// window is still open.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

func (p *Platform) FramebufferExtent() driver.Extent2D {
	w, h := p.Window.GetFramebufferSize()
	return driver.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (p *Platform) PollResize() (driver.Extent2D, bool) {
	e, err := p.resize.Dequeue()
	if err != nil {
		return driver.Extent2D{}, false
	}
	return e, true
}

func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, allocator)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resize.Replace(driver.Extent2D{Width: uint32(width), Height: uint32(height)})

	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(width)
	ctx.Data.U32[1] = uint32(height)
	core.EventFire(core.EVENT_CODE_RESIZED, p, ctx)
}

func keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape {
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, w, core.EventContext{})
		return
	}
	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(key)
	core.EventFire(core.EVENT_CODE_KEY_PRESSED, w, ctx)
}

// GetAbsoluteTime returns the seconds elapsed since glfw was initialized.
func GetAbsoluteTime() float64 {
	return glfw.GetTime()
}
