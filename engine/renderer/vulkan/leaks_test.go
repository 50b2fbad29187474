package vulkan

import "testing"

func TestLeaksReportsEveryKind(t *testing.T) {
	d := newDevice(Config{})
	if got := leaks(d.liveObjects()); len(got) != 0 {
		t.Fatalf("leaks() on a fresh device = %v, want none", got)
	}

	// a depth image and a set whose pool was never destroyed
	d.images.put(image{})
	d.descriptorSets.put(descriptorSet{})
	d.descriptorSets.put(descriptorSet{})

	got := leaks(d.liveObjects())
	want := []string{
		"1 image objects still alive at device shutdown",
		"2 descriptor set objects still alive at device shutdown",
	}
	if len(got) != len(want) {
		t.Fatalf("leaks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("leaks()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// register adds a zero-valued entry, enough for the bookkeeping.
func register[K ~uint64, V any](t *table[K, V]) {
	var v V
	t.put(v)
}

func TestLiveObjectsCoversEveryTable(t *testing.T) {
	d := newDevice(Config{})
	register(d.semaphores)
	register(d.fences)
	register(d.commandBuffers)
	register(d.swapchains)
	register(d.images)
	register(d.imageViews)
	register(d.renderPasses)
	register(d.framebuffers)
	register(d.buffers)
	register(d.setLayouts)
	register(d.descriptorPools)
	register(d.descriptorSets)

	for _, c := range d.liveObjects() {
		if c.n != 1 {
			t.Errorf("%s count = %d, want 1", c.kind, c.n)
		}
	}
	if got := len(leaks(d.liveObjects())); got != 12 {
		t.Errorf("leaks() = %d lines, want 12", got)
	}
}
