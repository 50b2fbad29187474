package descriptors

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/driver/drivertest"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func uboLayout(t *testing.T, d driver.Device) *SetLayout {
	t.Helper()
	l, err := NewSetLayoutBuilder(d).
		AddBinding(0, driver.DescriptorTypeUniformBuffer, driver.ShaderStageAllGraphics, 1).
		AddBinding(1, driver.DescriptorTypeCombinedImageSampler, driver.ShaderStageFragment, 1).
		AddBinding(2, driver.DescriptorTypeUniformBuffer, driver.ShaderStageVertex, 4).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return l
}

func TestSetLayoutBuilderDuplicateBinding(t *testing.T) {
	d := drivertest.NewDevice()
	_, err := NewSetLayoutBuilder(d).
		AddBinding(0, driver.DescriptorTypeUniformBuffer, driver.ShaderStageVertex, 1).
		AddBinding(0, driver.DescriptorTypeStorageBuffer, driver.ShaderStageFragment, 1).
		Build()
	if !errors.Is(err, core.ErrContractViolation) {
		t.Fatalf("Build() error = %v, want contract violation", err)
	}
	if got := d.Live(drivertest.KindSetLayout); got != 0 {
		t.Errorf("live layouts = %d, want 0", got)
	}
}

func TestSetLayoutBindings(t *testing.T) {
	d := drivertest.NewDevice()
	l, err := NewSetLayoutBuilder(d).
		AddBinding(3, driver.DescriptorTypeStorageBuffer, driver.ShaderStageCompute, 0).
		AddBinding(1, driver.DescriptorTypeUniformBuffer, driver.ShaderStageVertex, 2).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got := l.Bindings()
	if len(got) != 2 || got[0].Binding != 1 || got[1].Binding != 3 {
		t.Fatalf("Bindings() = %+v, want bindings 1 and 3 in order", got)
	}
	if got[1].Count != 1 {
		t.Errorf("zero count normalised to %d, want 1", got[1].Count)
	}
	if _, ok := l.Binding(2); ok {
		t.Errorf("Binding(2) found, want missing")
	}
	l.Destroy()
	l.Destroy()
	if n := d.Live(drivertest.KindSetLayout); n != 0 {
		t.Errorf("live layouts after Destroy = %d, want 0", n)
	}
}

func TestPoolNeverGrows(t *testing.T) {
	d := drivertest.NewDevice()
	l, err := NewSetLayoutBuilder(d).
		AddBinding(0, driver.DescriptorTypeUniformBuffer, driver.ShaderStageAllGraphics, 1).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPoolBuilder(d).
		SetMaxSets(2).
		AddPoolSize(driver.DescriptorTypeUniformBuffer, 2).
		Build()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if _, ok := p.Allocate(l); !ok {
			t.Fatalf("Allocate #%d failed", i)
		}
	}
	if _, ok := p.Allocate(l); ok {
		t.Fatalf("third Allocate succeeded, want exhaustion")
	}
	if got := p.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
	if got := d.Live(drivertest.KindPool); got != 1 {
		t.Errorf("live pools = %d, want 1", got)
	}

	if err := p.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, ok := p.Allocate(l); !ok {
		t.Errorf("Allocate after Reset failed")
	}
}

func TestPoolPerKindCapacity(t *testing.T) {
	d := drivertest.NewDevice()
	l := uboLayout(t, d)
	p, err := NewPoolBuilder(d).
		SetMaxSets(10).
		AddPoolSize(driver.DescriptorTypeUniformBuffer, 5).
		AddPoolSize(driver.DescriptorTypeCombinedImageSampler, 10).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.Allocate(l); !ok {
		t.Fatalf("first Allocate failed")
	}
	// each set needs 5 uniform buffers
	if _, ok := p.Allocate(l); ok {
		t.Errorf("second Allocate succeeded, want per-kind exhaustion")
	}
	if got := d.AllocatedSets(p.Handle()); got != 1 {
		t.Errorf("device sets = %d, want 1", got)
	}
}

func TestPoolFree(t *testing.T) {
	d := drivertest.NewDevice()
	l, _ := NewSetLayoutBuilder(d).
		AddBinding(0, driver.DescriptorTypeUniformBuffer, driver.ShaderStageVertex, 1).
		Build()

	fixed, _ := NewPoolBuilder(d).SetMaxSets(1).AddPoolSize(driver.DescriptorTypeUniformBuffer, 1).Build()
	s, ok := fixed.Allocate(l)
	if !ok {
		t.Fatal("Allocate failed")
	}
	if err := fixed.Free(s); !core.IsViolation(err) {
		t.Errorf("Free without flag error = %v, want contract violation", err)
	}

	freeable, _ := NewPoolBuilder(d).
		SetMaxSets(1).
		SetPoolFlags(driver.DescriptorPoolFreeDescriptorSet).
		AddPoolSize(driver.DescriptorTypeUniformBuffer, 1).
		Build()
	s, ok = freeable.Allocate(l)
	if !ok {
		t.Fatal("Allocate failed")
	}
	if err := freeable.Free(s); err != nil {
		t.Fatalf("Free() error = %v", err)
	}
	if _, ok := freeable.Allocate(l); !ok {
		t.Errorf("Allocate after Free failed")
	}
	if len(d.Violations) != 0 {
		t.Errorf("device violations = %v", d.Violations)
	}
}

func TestWriterBuild(t *testing.T) {
	d := drivertest.NewDevice()
	l := uboLayout(t, d)
	p, _ := NewPoolBuilder(d).
		SetMaxSets(1).
		AddPoolSize(driver.DescriptorTypeUniformBuffer, 5).
		AddPoolSize(driver.DescriptorTypeCombinedImageSampler, 1).
		Build()

	set, err := NewWriter(l, p).
		WriteBuffer(0, driver.DescriptorBufferInfo{Buffer: 7, Offset: 256, Range: 480}).
		WriteImage(1, driver.DescriptorImageInfo{Sampler: 3, ImageView: 4, Layout: driver.ImageLayoutShaderReadOnlyOptimal}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if d.UpdateCalls != 1 {
		t.Errorf("UpdateCalls = %d, want 1", d.UpdateCalls)
	}
	if len(d.Writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(d.Writes))
	}
	for _, w := range d.Writes {
		if w.DstSet != set {
			t.Errorf("write DstSet = %d, want %d", w.DstSet, set)
		}
	}
	if w := d.Writes[0]; w.BufferInfo == nil || w.BufferInfo.Offset != 256 || w.Type != driver.DescriptorTypeUniformBuffer {
		t.Errorf("buffer write = %+v", w)
	}
}

func TestWriterBuildExhaustedAppliesNothing(t *testing.T) {
	d := drivertest.NewDevice()
	l, _ := NewSetLayoutBuilder(d).
		AddBinding(0, driver.DescriptorTypeUniformBuffer, driver.ShaderStageVertex, 1).
		Build()
	p, _ := NewPoolBuilder(d).SetMaxSets(4).AddPoolSize(driver.DescriptorTypeUniformBuffer, 4).Build()
	d.FailAllocations = true

	_, err := NewWriter(l, p).
		WriteBuffer(0, driver.DescriptorBufferInfo{Buffer: 1, Range: 64}).
		Build()
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Build() error = %v, want %v", err, ErrPoolExhausted)
	}
	if d.UpdateCalls != 0 || len(d.Writes) != 0 {
		t.Errorf("writes applied on failed build: calls=%d writes=%d", d.UpdateCalls, len(d.Writes))
	}
	if got := p.Remaining(); got != 4 {
		t.Errorf("Remaining() = %d, want 4", got)
	}
}

func TestWriterContractViolations(t *testing.T) {
	d := drivertest.NewDevice()
	l := uboLayout(t, d)
	p, _ := NewPoolBuilder(d).
		AddPoolSize(driver.DescriptorTypeUniformBuffer, 50).
		AddPoolSize(driver.DescriptorTypeCombinedImageSampler, 10).
		Build()

	tests := []struct {
		name  string
		write func(w *Writer) *Writer
	}{
		{"missing binding", func(w *Writer) *Writer {
			return w.WriteBuffer(9, driver.DescriptorBufferInfo{Buffer: 1})
		}},
		{"array binding", func(w *Writer) *Writer {
			return w.WriteBuffer(2, driver.DescriptorBufferInfo{Buffer: 1})
		}},
		{"image into buffer binding", func(w *Writer) *Writer {
			return w.WriteImage(0, driver.DescriptorImageInfo{ImageView: 1})
		}},
		{"buffer into image binding", func(w *Writer) *Writer {
			return w.WriteBuffer(1, driver.DescriptorBufferInfo{Buffer: 1})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining := p.Remaining()
			_, err := tt.write(NewWriter(l, p)).Build()
			if !core.IsViolation(err) {
				t.Errorf("Build() error = %v, want contract violation", err)
			}
			if p.Remaining() != remaining {
				t.Errorf("set allocated despite violation")
			}
		})
	}
}

func TestWriterOverwrite(t *testing.T) {
	d := drivertest.NewDevice()
	l := uboLayout(t, d)
	p, _ := NewPoolBuilder(d).
		AddPoolSize(driver.DescriptorTypeUniformBuffer, 5).
		AddPoolSize(driver.DescriptorTypeCombinedImageSampler, 1).
		Build()
	set, err := NewWriter(l, p).WriteBuffer(0, driver.DescriptorBufferInfo{Buffer: 1, Range: 16}).Build()
	if err != nil {
		t.Fatal(err)
	}
	if err := NewWriter(l, p).WriteBuffer(0, driver.DescriptorBufferInfo{Buffer: 2, Range: 16}).Overwrite(set); err != nil {
		t.Fatalf("Overwrite() error = %v", err)
	}
	last := d.Writes[len(d.Writes)-1]
	if last.DstSet != set || last.BufferInfo.Buffer != 2 {
		t.Errorf("last write = %+v, want buffer 2 into set %d", last, set)
	}
	if got := d.AllocatedSets(p.Handle()); got != 1 {
		t.Errorf("allocated sets = %d, want 1", got)
	}
}
