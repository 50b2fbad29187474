package engine

import (
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/scene"
)

// Game is the application driven by the engine. Every hook is optional.
type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize populates the scene before the first frame.
type Initialize func(objects scene.Map) error

// Update runs once per iteration of the main loop, before the frame is begun.
type Update func(deltaTime float64) error

// Render records draw commands inside the swapchain render pass.
type Render func(info *metadata.FrameInfo) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
