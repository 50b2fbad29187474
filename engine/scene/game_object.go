package scene

import (
	"cmp"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slices"
)

type ID uint32

var nextID atomic.Uint32

// TransformComponent places an object in world space. Rotation holds Tait-Bryan
// angles in radians applied in Y, X, Z order.
type TransformComponent struct {
	Translation mgl32.Vec3
	Scale       mgl32.Vec3
	Rotation    mgl32.Vec3
}

// Mat4 returns translate * Ry * Rx * Rz * scale.
func (t TransformComponent) Mat4() mgl32.Mat4 {
	c3, s3 := cosSin(t.Rotation.Z())
	c2, s2 := cosSin(t.Rotation.X())
	c1, s1 := cosSin(t.Rotation.Y())
	sx, sy, sz := t.Scale.Elem()
	return mgl32.Mat4{
		sx * (c1*c3 + s1*s2*s3), sx * (c2 * s3), sx * (c1*s2*s3 - c3*s1), 0,
		sy * (c3*s1*s2 - c1*s3), sy * (c2 * c3), sy * (c1*c3*s2 + s1*s3), 0,
		sz * (c2 * s1), sz * (-s2), sz * (c1 * c2), 0,
		t.Translation.X(), t.Translation.Y(), t.Translation.Z(), 1,
	}
}

// NormalMatrix returns the rotation with inverse scale, for transforming normals.
func (t TransformComponent) NormalMatrix() mgl32.Mat3 {
	c3, s3 := cosSin(t.Rotation.Z())
	c2, s2 := cosSin(t.Rotation.X())
	c1, s1 := cosSin(t.Rotation.Y())
	ix, iy, iz := 1/t.Scale.X(), 1/t.Scale.Y(), 1/t.Scale.Z()
	return mgl32.Mat3{
		ix * (c1*c3 + s1*s2*s3), ix * (c2 * s3), ix * (c1*s2*s3 - c3*s1),
		iy * (c3*s1*s2 - c1*s3), iy * (c2 * c3), iy * (c1*c3*s2 + s1*s3),
		iz * (c2 * s1), iz * (-s2), iz * (c1 * c2),
	}
}

func cosSin(a float32) (float32, float32) {
	s, c := math.Sincos(float64(a))
	return float32(c), float32(s)
}

type PointLightComponent struct {
	LightIntensity float32
}

// GameObject is anything the render systems draw or read from.
type GameObject struct {
	id         ID
	Color      mgl32.Vec3
	Transform  TransformComponent
	PointLight *PointLightComponent
}

// NewGameObject returns an object with a fresh id and unit scale.
func NewGameObject() *GameObject {
	return &GameObject{
		id:        ID(nextID.Add(1) - 1),
		Transform: TransformComponent{Scale: mgl32.Vec3{1, 1, 1}},
	}
}

// NewPointLight returns a light object. The radius is stored in the x scale.
func NewPointLight(intensity, radius float32, color mgl32.Vec3) *GameObject {
	obj := NewGameObject()
	obj.Color = color
	obj.Transform.Scale[0] = radius
	obj.PointLight = &PointLightComponent{LightIntensity: intensity}
	return obj
}

func (g *GameObject) ID() ID {
	return g.id
}

// Map indexes game objects by id.
type Map map[ID]*GameObject

func (m Map) Add(obj *GameObject) {
	m[obj.ID()] = obj
}

// PointLights returns the objects carrying a light, ordered by id.
func (m Map) PointLights() []*GameObject {
	lights := make([]*GameObject, 0)
	for _, obj := range m {
		if obj.PointLight != nil {
			lights = append(lights, obj)
		}
	}
	slices.SortFunc(lights, func(a, b *GameObject) int {
		return cmp.Compare(a.id, b.id)
	})
	return lights
}
