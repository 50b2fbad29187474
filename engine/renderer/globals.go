package renderer

import (
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
	"github.com/spaghettifunk/prism/engine/renderer/descriptors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// GlobalResources holds one GlobalUbo region and one descriptor set per frame
// slot, so the CPU writes slot i while the GPU may still read slot j.
type GlobalResources struct {
	device driver.Device
	layout *descriptors.SetLayout
	pool   *descriptors.Pool
	buffer driver.Buffer
	stride uint64
	sets   []driver.DescriptorSet
}

type globalsOptions struct {
	maxSets        uint32
	uniformBuffers uint32
}

type GlobalsOption func(*globalsOptions)

// WithPoolCapacity sizes the descriptor pool. Both values must cover at least
// one set per frame in flight.
func WithPoolCapacity(maxSets, uniformBuffers uint32) GlobalsOption {
	return func(o *globalsOptions) {
		o.maxSets = maxSets
		o.uniformBuffers = uniformBuffers
	}
}

func NewGlobalResources(device driver.Device, framesInFlight int, opts ...GlobalsOption) (*GlobalResources, error) {
	if framesInFlight < 1 {
		return nil, core.Violation("global resources need at least one frame, got %d", framesInFlight)
	}
	o := globalsOptions{
		maxSets:        uint32(framesInFlight),
		uniformBuffers: uint32(framesInFlight),
	}
	for _, opt := range opts {
		opt(&o)
	}

	g := &GlobalResources{device: device}
	var err error
	g.layout, err = descriptors.NewSetLayoutBuilder(device).
		AddBinding(0, driver.DescriptorTypeUniformBuffer, driver.ShaderStageAllGraphics, 1).
		Build()
	if err != nil {
		return nil, err
	}
	g.pool, err = descriptors.NewPoolBuilder(device).
		SetMaxSets(o.maxSets).
		AddPoolSize(driver.DescriptorTypeUniformBuffer, o.uniformBuffers).
		Build()
	if err != nil {
		g.Destroy()
		return nil, err
	}

	g.stride = math.AlignUp(uint64(metadata.GlobalUboSize), device.Properties().MinUniformBufferOffsetAlignment)
	g.buffer, err = device.CreateBuffer(driver.BufferDescriptor{
		Size:  g.stride * uint64(framesInFlight),
		Usage: driver.BufferUsageUniformBuffer,
	})
	if err != nil {
		g.Destroy()
		return nil, errors.Wrap(err, "create global uniform buffer")
	}

	g.sets = make([]driver.DescriptorSet, framesInFlight)
	for i := range g.sets {
		set, err := descriptors.NewWriter(g.layout, g.pool).
			WriteBuffer(0, driver.DescriptorBufferInfo{
				Buffer: g.buffer,
				Offset: uint64(i) * g.stride,
				Range:  metadata.GlobalUboSize,
			}).
			Build()
		if err != nil {
			g.Destroy()
			return nil, errors.Wrapf(err, "build global descriptor set %d", i)
		}
		g.sets[i] = set
	}
	return g, nil
}

// Write uploads ubo into the region of frame slot frameIndex.
func (g *GlobalResources) Write(frameIndex int, ubo *metadata.GlobalUbo) error {
	if frameIndex < 0 || frameIndex >= len(g.sets) {
		return core.Violation("frame index %d out of range [0,%d)", frameIndex, len(g.sets))
	}
	return g.device.WriteBuffer(g.buffer, uint64(frameIndex)*g.stride, ubo.Bytes())
}

func (g *GlobalResources) DescriptorSet(frameIndex int) driver.DescriptorSet {
	return g.sets[frameIndex]
}

func (g *GlobalResources) Layout() *descriptors.SetLayout {
	return g.layout
}

func (g *GlobalResources) Buffer() driver.Buffer {
	return g.buffer
}

// Stride is the distance in bytes between two frame regions.
func (g *GlobalResources) Stride() uint64 {
	return g.stride
}

// Destroy releases the buffer, pool and layout. The device must be idle.
func (g *GlobalResources) Destroy() {
	if g.buffer != 0 {
		g.device.DestroyBuffer(g.buffer)
		g.buffer = 0
	}
	if g.pool != nil {
		g.pool.Destroy()
		g.pool = nil
	}
	if g.layout != nil {
		g.layout.Destroy()
		g.layout = nil
	}
	g.sets = nil
}
