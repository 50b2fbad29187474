package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type SystemManager struct {
	CameraSystem     *CameraSystem
	PointLightSystem *PointLightSystem
}

func NewSystemManager() *SystemManager {
	return &SystemManager{
		CameraSystem:     NewCameraSystem(nil),
		PointLightSystem: NewPointLightSystem(nil),
	}
}

// Update runs every system for the frame described by info and leaves the
// result in ubo.
func (sm *SystemManager) Update(info *metadata.FrameInfo, aspect float32, ambient mgl32.Vec4, ubo *metadata.GlobalUbo) error {
	sm.CameraSystem.Update(aspect, ubo)
	ubo.AmbientLightColor = ambient
	return sm.PointLightSystem.Update(info, ubo)
}
