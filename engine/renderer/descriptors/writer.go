package descriptors

import (
	"errors"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// ErrPoolExhausted is returned by Writer.Build when no set could be
// allocated. No write has been applied when it is returned.
var ErrPoolExhausted = errors.New("descriptor pool exhausted")

// Writer batches descriptor writes against one layout and applies them in a
// single device update.
type Writer struct {
	layout *SetLayout
	pool   *Pool
	writes []driver.WriteDescriptorSet
	err    error
}

func NewWriter(layout *SetLayout, pool *Pool) *Writer {
	return &Writer{layout: layout, pool: pool}
}

func (w *Writer) check(binding uint32, image bool) bool {
	if w.err != nil {
		return false
	}
	b, ok := w.layout.Binding(binding)
	if !ok {
		w.err = core.Violation("layout does not contain binding %d", binding)
		return false
	}
	if b.Count != 1 {
		w.err = core.Violation("binding %d expects %d descriptors, single writes only", binding, b.Count)
		return false
	}
	if b.Type.IsImage() != image {
		w.err = core.Violation("binding %d holds %s descriptors", binding, b.Type)
		return false
	}
	return true
}

// WriteBuffer queues a buffer descriptor for binding.
func (w *Writer) WriteBuffer(binding uint32, info driver.DescriptorBufferInfo) *Writer {
	if !w.check(binding, false) {
		return w
	}
	b, _ := w.layout.Binding(binding)
	bi := info
	w.writes = append(w.writes, driver.WriteDescriptorSet{
		DstBinding: binding,
		Type:       b.Type,
		BufferInfo: &bi,
	})
	return w
}

// WriteImage queues an image descriptor for binding.
func (w *Writer) WriteImage(binding uint32, info driver.DescriptorImageInfo) *Writer {
	if !w.check(binding, true) {
		return w
	}
	b, _ := w.layout.Binding(binding)
	ii := info
	w.writes = append(w.writes, driver.WriteDescriptorSet{
		DstBinding: binding,
		Type:       b.Type,
		ImageInfo:  &ii,
	})
	return w
}

// Build allocates a set and applies every queued write to it. Either the
// allocation and all writes happen, or nothing does.
func (w *Writer) Build() (driver.DescriptorSet, error) {
	if w.err != nil {
		return 0, w.err
	}
	set, ok := w.pool.Allocate(w.layout)
	if !ok {
		return 0, ErrPoolExhausted
	}
	if err := w.Overwrite(set); err != nil {
		return 0, err
	}
	return set, nil
}

// Overwrite applies the queued writes to an existing set.
func (w *Writer) Overwrite(set driver.DescriptorSet) error {
	if w.err != nil {
		return w.err
	}
	if len(w.writes) == 0 {
		return nil
	}
	writes := make([]driver.WriteDescriptorSet, len(w.writes))
	for i, wr := range w.writes {
		wr.DstSet = set
		writes[i] = wr
	}
	w.pool.device.UpdateDescriptorSets(writes)
	return nil
}
