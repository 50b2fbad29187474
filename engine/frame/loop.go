package frame

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

// RenderFn records draw commands for the frame inside the swapchain render
// pass.
type RenderFn func(info *metadata.FrameInfo) error

// Loop runs one frame at a time: begin, update the systems, upload the global
// uniform block of the frame slot, record, end.
type Loop struct {
	renderer *renderer.Renderer
	globals  *renderer.GlobalResources
	systems  *systems.SystemManager
	objects  scene.Map
	ubo      metadata.GlobalUbo
	ambient  mgl32.Vec4

	// Render is optional.
	Render RenderFn
}

func NewLoop(r *renderer.Renderer, g *renderer.GlobalResources, sm *systems.SystemManager, objects scene.Map) *Loop {
	return &Loop{
		renderer: r,
		globals:  g,
		systems:  sm,
		objects:  objects,
		ubo:      metadata.NewGlobalUbo(),
		ambient:  mgl32.Vec4{1, 1, 1, 0.02},
	}
}

// Step renders a single frame and reports whether it was rendered. A frame
// skipped because the swapchain was rebuilt is not an error.
//
// Once a frame has begun it is always ended, even when a system fails, so the
// frame slot stays usable; the first error is returned.
func (l *Loop) Step(frameTime float32) (bool, error) {
	session, err := l.renderer.BeginFrame()
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	recordErr := l.record(session, frameTime)
	if err := l.renderer.EndFrame(session); err != nil {
		if recordErr != nil {
			core.LogError("ending frame %d after a failure: %s", session.FrameNumber(), err)
			return false, recordErr
		}
		return false, err
	}
	return recordErr == nil, recordErr
}

func (l *Loop) record(session *renderer.FrameSession, frameTime float32) error {
	idx := session.FrameIndex()
	info := session.FrameInfo(frameTime, l.globals.DescriptorSet(idx), l.objects)

	if err := l.systems.Update(&info, l.renderer.AspectRatio(), l.ambient, &l.ubo); err != nil {
		return err
	}
	if err := l.globals.Write(idx, &l.ubo); err != nil {
		return err
	}

	if err := l.renderer.BeginSwapChainRenderPass(info.CommandBuffer); err != nil {
		return err
	}
	var renderErr error
	if l.Render != nil {
		renderErr = l.Render(&info)
	}
	if err := l.renderer.EndSwapChainRenderPass(info.CommandBuffer); err != nil {
		return err
	}
	return renderErr
}

// Apply copies the live-reloadable settings of cfg: log level, clear colour
// and ambient light.
func (l *Loop) Apply(cfg *core.Config) {
	core.SetLogLevel(cfg.Log.Level)
	l.renderer.SetClearColor(cfg.Renderer.ClearColor)
	l.ambient = mgl32.Vec4(cfg.Lights.Ambient)
}

// Ubo returns the uniform block uploaded by the last frame.
func (l *Loop) Ubo() *metadata.GlobalUbo {
	return &l.ubo
}

func (l *Loop) Objects() scene.Map {
	return l.objects
}
