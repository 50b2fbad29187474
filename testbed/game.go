package testbed

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/scene"
)

var lightColors = []mgl32.Vec3{
	{1, 0.1, 0.1},
	{0.1, 0.1, 1},
	{0.1, 1, 0.1},
	{1, 1, 0.1},
	{0.1, 1, 1},
	{1, 1, 1},
}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	framesRendered uint64
	lights         []*scene.GameObject
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

// Initialize places one light per colour on a ring around the y axis.
func (g *TestGame) Initialize(objects scene.Map) error {
	core.LogInfo("initializing testbed...")
	st := g.state()
	for i, color := range lightColors {
		light := scene.NewPointLight(0.2, 0.1, color)
		angle := float32(i) * 2 * math.Pi / float32(len(lightColors))
		rotate := mgl32.HomogRotate3D(angle, mgl32.Vec3{0, -1, 0})
		light.Transform.Translation = rotate.Mul4x1(mgl32.Vec4{-1, -1, -1, 1}).Vec3()
		objects.Add(light)
		st.lights = append(st.lights, light)
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	return nil
}

func (g *TestGame) Render(info *metadata.FrameInfo) error {
	st := g.state()
	st.framesRendered++
	if st.framesRendered == 1 {
		core.LogDebug("first frame recorded in slot %d with %d objects", info.FrameIndex, len(info.GameObjects))
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	st := g.state()
	st.width = width
	st.height = height
	core.LogDebug("testbed resized to %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed rendered %d frames", g.state().framesRendered)
	return nil
}
