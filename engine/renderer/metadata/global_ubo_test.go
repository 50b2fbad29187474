package metadata

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/prism/engine/core"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func light(i int) PointLight {
	return PointLight{
		Position: mgl32.Vec4{float32(i), 0, 0, 1},
		Color:    mgl32.Vec4{1, 1, 1, 0.5},
	}
}

func TestSetPointLights(t *testing.T) {
	u := NewGlobalUbo()
	lights := make([]PointLight, MaxLights)
	for i := range lights {
		lights[i] = light(i)
	}
	if err := u.SetPointLights(lights); err != nil {
		t.Fatalf("SetPointLights(%d) error = %v", MaxLights, err)
	}
	if u.NumLights != MaxLights {
		t.Errorf("NumLights = %d, want %d", u.NumLights, MaxLights)
	}

	overflow := append(lights, light(MaxLights))
	if err := u.SetPointLights(overflow); !core.IsViolation(err) {
		t.Fatalf("SetPointLights(%d) error = %v, want contract violation", len(overflow), err)
	}
	if u.NumLights != MaxLights {
		t.Errorf("NumLights after rejected set = %d, want %d", u.NumLights, MaxLights)
	}

	if err := u.SetPointLights(lights[:3]); err != nil {
		t.Fatal(err)
	}
	if u.PointLights[3] != (PointLight{}) {
		t.Errorf("stale light left at index 3: %v", u.PointLights[3])
	}
}

func TestAddPointLight(t *testing.T) {
	u := NewGlobalUbo()
	for i := 0; i < MaxLights; i++ {
		if err := u.AddPointLight(light(i)); err != nil {
			t.Fatalf("AddPointLight #%d error = %v", i, err)
		}
	}
	if err := u.AddPointLight(light(MaxLights)); !core.IsViolation(err) {
		t.Errorf("AddPointLight #%d error = %v, want contract violation", MaxLights, err)
	}
	u.ClearPointLights()
	if u.NumLights != 0 {
		t.Errorf("NumLights after clear = %d, want 0", u.NumLights)
	}
}

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestGlobalUboLayout(t *testing.T) {
	u := NewGlobalUbo()
	u.Projection = mgl32.Perspective(mgl32.DegToRad(50), 1.5, 0.1, 100)
	u.View = mgl32.Translate3D(1, 2, 3)
	_ = u.AddPointLight(PointLight{Position: mgl32.Vec4{4, 5, 6, 1}, Color: mgl32.Vec4{0.1, 0.2, 0.3, 0.4}})
	_ = u.AddPointLight(PointLight{Position: mgl32.Vec4{7, 8, 9, 1}, Color: mgl32.Vec4{1, 1, 1, 2}})

	b := u.Bytes()
	if len(b) != GlobalUboSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(b), GlobalUboSize)
	}

	tests := []struct {
		name   string
		offset int
		want   float32
	}{
		{"projection[0]", 0, u.Projection[0]},
		{"view translation x", 64 + 12*4, 1},
		{"view translation z", 64 + 14*4, 3},
		{"ambient w", 128 + 12, 0.02},
		{"light0 position x", 144, 4},
		{"light0 intensity", 144 + 16 + 12, 0.4},
		{"light1 position y", 144 + 32 + 4, 8},
		{"light1 intensity", 144 + 32 + 16 + 12, 2},
	}
	for _, tt := range tests {
		if got := f32At(b, tt.offset); got != tt.want {
			t.Errorf("%s at %d = %v, want %v", tt.name, tt.offset, got, tt.want)
		}
	}
	if got := int32(binary.LittleEndian.Uint32(b[464:])); got != 2 {
		t.Errorf("numLights at 464 = %d, want 2", got)
	}
	for i := 468; i < GlobalUboSize; i++ {
		if b[i] != 0 {
			t.Fatalf("padding byte %d = %d, want 0", i, b[i])
		}
	}
}
