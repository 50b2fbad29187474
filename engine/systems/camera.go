package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/** @brief Vertical field of view in degrees. */
	FovY float32
	Near float32
	Far  float32
}

// CameraSystem owns the viewer and fills the projection and view matrices of
// the global uniform block.
type CameraSystem struct {
	Config   *CameraSystemConfig
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

func NewCameraSystem(config *CameraSystemConfig) *CameraSystem {
	if config == nil {
		config = &CameraSystemConfig{FovY: 50, Near: 0.1, Far: 100}
	}
	return &CameraSystem{
		Config:   config,
		Position: mgl32.Vec3{0, -1.5, -4},
		Target:   mgl32.Vec3{0, 0, 0},
		// Vulkan clip space has y pointing down
		Up: mgl32.Vec3{0, -1, 0},
	}
}

// Update writes the matrices for a surface with the given aspect ratio.
func (c *CameraSystem) Update(aspect float32, ubo *metadata.GlobalUbo) {
	proj := mgl32.Perspective(mgl32.DegToRad(c.Config.FovY), aspect, c.Config.Near, c.Config.Far)
	// map OpenGL depth [-1,1] to Vulkan [0,1]
	clip := mgl32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	ubo.Projection = clip.Mul4(proj)
	ubo.View = mgl32.LookAtV(c.Position, c.Target, c.Up)
}
