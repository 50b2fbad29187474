package metadata

import (
	"bytes"
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/core"
)

/** @brief The maximum number of point lights in a GlobalUbo. */
const MaxLights = 10

/**
 * @brief The size in bytes of an encoded GlobalUbo: two mat4, one vec4,
 * MaxLights lights of two vec4 each and an int, rounded up to the 16 byte
 * struct alignment of std140.
 */
const GlobalUboSize = 480

type PointLight struct {
	/** @brief World position, w is ignored. */
	Position mgl32.Vec4
	/** @brief Colour in rgb, intensity in w. */
	Color mgl32.Vec4
}

/**
 * @brief The per-frame parameters shared by every shader, laid out as the
 * std140 uniform block at set 0, binding 0.
 */
type GlobalUbo struct {
	Projection        mgl32.Mat4
	View              mgl32.Mat4
	AmbientLightColor mgl32.Vec4
	PointLights       [MaxLights]PointLight
	NumLights         int32
}

func NewGlobalUbo() GlobalUbo {
	return GlobalUbo{
		Projection:        mgl32.Ident4(),
		View:              mgl32.Ident4(),
		AmbientLightColor: mgl32.Vec4{1, 1, 1, 0.02},
	}
}

// SetPointLights replaces the lights. More than MaxLights is rejected and the
// block is left untouched.
func (u *GlobalUbo) SetPointLights(lights []PointLight) error {
	if len(lights) > MaxLights {
		return core.Violation("%d point lights exceed the maximum of %d", len(lights), MaxLights)
	}
	u.PointLights = [MaxLights]PointLight{}
	copy(u.PointLights[:], lights)
	u.NumLights = int32(len(lights))
	return nil
}

func (u *GlobalUbo) AddPointLight(light PointLight) error {
	if u.NumLights >= MaxLights {
		return core.Violation("point light %d exceeds the maximum of %d", u.NumLights+1, MaxLights)
	}
	u.PointLights[u.NumLights] = light
	u.NumLights++
	return nil
}

func (u *GlobalUbo) ClearPointLights() {
	u.PointLights = [MaxLights]PointLight{}
	u.NumLights = 0
}

// Bytes encodes the block little-endian in std140 layout.
func (u *GlobalUbo) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, GlobalUboSize))
	// every member is a fixed-size array of float32 or an int32, so the
	// encoding cannot fail
	_ = binary.Write(buf, binary.LittleEndian, u)
	// pad to the struct alignment
	buf.Write(make([]byte, GlobalUboSize-buf.Len()))
	return buf.Bytes()
}
