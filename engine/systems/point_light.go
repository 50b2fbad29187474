package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/** @brief The point light system configuration. */
type PointLightSystemConfig struct {
	/** @brief Radians per second the lights orbit around the vertical axis. */
	RotationSpeed float32
}

// PointLightSystem moves the scene's point lights and copies them into the
// global uniform block every frame.
type PointLightSystem struct {
	Config *PointLightSystemConfig
}

func NewPointLightSystem(config *PointLightSystemConfig) *PointLightSystem {
	if config == nil {
		config = &PointLightSystemConfig{RotationSpeed: 1.0}
	}
	return &PointLightSystem{Config: config}
}

// Update rotates every light by the frame time and writes them to ubo. More
// lights than metadata.MaxLights is a contract violation; neither the scene
// nor ubo is modified in that case.
func (s *PointLightSystem) Update(info *metadata.FrameInfo, ubo *metadata.GlobalUbo) error {
	lights := info.GameObjects.PointLights()
	if len(lights) > metadata.MaxLights {
		return core.Violation("scene holds %d point lights, the maximum is %d", len(lights), metadata.MaxLights)
	}

	rotate := mgl32.HomogRotate3D(info.FrameTime*s.Config.RotationSpeed, mgl32.Vec3{0, -1, 0})
	ubo.ClearPointLights()
	for _, obj := range lights {
		obj.Transform.Translation = rotate.Mul4x1(obj.Transform.Translation.Vec4(1)).Vec3()
		if err := ubo.AddPointLight(metadata.PointLight{
			Position: obj.Transform.Translation.Vec4(1),
			Color:    obj.Color.Vec4(obj.PointLight.LightIntensity),
		}); err != nil {
			return err
		}
	}
	return nil
}
