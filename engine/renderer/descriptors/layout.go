package descriptors

import (
	"cmp"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"golang.org/x/exp/slices"
)

// SetLayout is an immutable description of the bindings of a descriptor set.
type SetLayout struct {
	device   driver.Device
	handle   driver.DescriptorSetLayout
	bindings map[uint32]driver.DescriptorSetLayoutBinding
}

// SetLayoutBuilder accumulates bindings for a SetLayout. The first misuse is
// remembered and returned by Build.
type SetLayoutBuilder struct {
	device   driver.Device
	bindings map[uint32]driver.DescriptorSetLayoutBinding
	err      error
}

func NewSetLayoutBuilder(device driver.Device) *SetLayoutBuilder {
	return &SetLayoutBuilder{
		device:   device,
		bindings: make(map[uint32]driver.DescriptorSetLayoutBinding),
	}
}

// AddBinding declares binding with count descriptors of kind visible to
// stages. A count of zero is treated as one. Declaring the same binding
// twice is a contract violation.
func (b *SetLayoutBuilder) AddBinding(binding uint32, kind driver.DescriptorType, stages driver.ShaderStageFlags, count uint32) *SetLayoutBuilder {
	if b.err != nil {
		return b
	}
	if _, exists := b.bindings[binding]; exists {
		b.err = core.Violation("descriptor binding %d already in use", binding)
		return b
	}
	if count == 0 {
		count = 1
	}
	b.bindings[binding] = driver.DescriptorSetLayoutBinding{
		Binding: binding,
		Type:    kind,
		Count:   count,
		Stages:  stages,
	}
	return b
}

func (b *SetLayoutBuilder) Build() (*SetLayout, error) {
	if b.err != nil {
		return nil, b.err
	}
	bindings := make(map[uint32]driver.DescriptorSetLayoutBinding, len(b.bindings))
	for k, v := range b.bindings {
		bindings[k] = v
	}
	l := &SetLayout{device: b.device, bindings: bindings}
	handle, err := b.device.CreateDescriptorSetLayout(l.Bindings())
	if err != nil {
		core.LogError("failed to create descriptor set layout: %s", err)
		return nil, err
	}
	l.handle = handle
	return l, nil
}

func (l *SetLayout) Handle() driver.DescriptorSetLayout {
	return l.handle
}

// Binding returns the declaration of binding i, if any.
func (l *SetLayout) Binding(i uint32) (driver.DescriptorSetLayoutBinding, bool) {
	b, ok := l.bindings[i]
	return b, ok
}

// Bindings returns the declarations sorted by binding index.
func (l *SetLayout) Bindings() []driver.DescriptorSetLayoutBinding {
	out := make([]driver.DescriptorSetLayoutBinding, 0, len(l.bindings))
	for _, b := range l.bindings {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b driver.DescriptorSetLayoutBinding) int {
		return cmp.Compare(a.Binding, b.Binding)
	})
	return out
}

func (l *SetLayout) Destroy() {
	if l.handle != 0 {
		l.device.DestroyDescriptorSetLayout(l.handle)
		l.handle = 0
	}
}
