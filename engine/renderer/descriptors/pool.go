package descriptors

import (
	"errors"

	"github.com/google/uuid"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// DefaultMaxSets is the set capacity of pools built without SetMaxSets.
const DefaultMaxSets uint32 = 1000

type PoolBuilder struct {
	device  driver.Device
	sizes   []driver.DescriptorPoolSize
	flags   driver.DescriptorPoolFlags
	maxSets uint32
}

func NewPoolBuilder(device driver.Device) *PoolBuilder {
	return &PoolBuilder{
		device:  device,
		maxSets: DefaultMaxSets,
	}
}

// AddPoolSize reserves count descriptors of kind.
func (b *PoolBuilder) AddPoolSize(kind driver.DescriptorType, count uint32) *PoolBuilder {
	b.sizes = append(b.sizes, driver.DescriptorPoolSize{Type: kind, Count: count})
	return b
}

func (b *PoolBuilder) SetPoolFlags(flags driver.DescriptorPoolFlags) *PoolBuilder {
	b.flags = flags
	return b
}

func (b *PoolBuilder) SetMaxSets(count uint32) *PoolBuilder {
	b.maxSets = count
	return b
}

func (b *PoolBuilder) Build() (*Pool, error) {
	handle, err := b.device.CreateDescriptorPool(driver.DescriptorPoolDescriptor{
		MaxSets: b.maxSets,
		Flags:   b.flags,
		Sizes:   append([]driver.DescriptorPoolSize(nil), b.sizes...),
	})
	if err != nil {
		core.LogError("failed to create descriptor pool: %s", err)
		return nil, err
	}
	p := &Pool{
		id:        uuid.New(),
		device:    b.device,
		handle:    handle,
		flags:     b.flags,
		maxSets:   b.maxSets,
		capacity:  make(map[driver.DescriptorType]uint32),
		used:      make(map[driver.DescriptorType]uint32),
		allocated: make(map[driver.DescriptorSet][]driver.DescriptorPoolSize),
	}
	for _, s := range b.sizes {
		p.capacity[s.Type] += s.Count
	}
	core.LogDebug("descriptor pool %s created: %d sets", p.id, p.maxSets)
	return p, nil
}

// Pool hands out descriptor sets from fixed capacities. It never grows.
type Pool struct {
	id      uuid.UUID
	device  driver.Device
	handle  driver.DescriptorPool
	flags   driver.DescriptorPoolFlags
	maxSets uint32

	capacity  map[driver.DescriptorType]uint32
	used      map[driver.DescriptorType]uint32
	allocated map[driver.DescriptorSet][]driver.DescriptorPoolSize
}

func (p *Pool) ID() uuid.UUID {
	return p.id
}

func (p *Pool) Handle() driver.DescriptorPool {
	return p.handle
}

// Remaining returns how many more sets the pool can hand out, ignoring
// per-kind limits.
func (p *Pool) Remaining() uint32 {
	return p.maxSets - uint32(len(p.allocated))
}

// Allocate returns a set for layout, or false when the pool is exhausted.
// Exhaustion is not an error; the caller decides how to recover.
func (p *Pool) Allocate(layout *SetLayout) (driver.DescriptorSet, bool) {
	if p.handle == 0 {
		core.LogError("descriptor pool %s used after destroy", p.id)
		return 0, false
	}
	if uint32(len(p.allocated)) >= p.maxSets {
		core.LogWarn("descriptor pool %s exhausted: %d sets in use", p.id, len(p.allocated))
		return 0, false
	}
	need := make(map[driver.DescriptorType]uint32)
	for _, b := range layout.Bindings() {
		need[b.Type] += b.Count
	}
	for kind, n := range need {
		if p.used[kind]+n > p.capacity[kind] {
			core.LogWarn("descriptor pool %s exhausted: no room for %d %s descriptors", p.id, n, kind)
			return 0, false
		}
	}

	set, err := p.device.AllocateDescriptorSet(p.handle, layout.Handle())
	if err != nil {
		if !errors.Is(err, driver.ErrOutOfPoolMemory) {
			core.LogError("descriptor set allocation failed: %s", err)
		}
		return 0, false
	}
	consumed := make([]driver.DescriptorPoolSize, 0, len(need))
	for kind, n := range need {
		p.used[kind] += n
		consumed = append(consumed, driver.DescriptorPoolSize{Type: kind, Count: n})
	}
	p.allocated[set] = consumed
	return set, true
}

// Free returns sets to the pool. The pool must have been built with the
// free-descriptor-set flag.
func (p *Pool) Free(sets ...driver.DescriptorSet) error {
	if p.flags&driver.DescriptorPoolFreeDescriptorSet == 0 {
		return core.Violation("descriptor pool %s does not allow freeing individual sets", p.id)
	}
	for _, s := range sets {
		if _, ok := p.allocated[s]; !ok {
			return core.Violation("descriptor set %d was not allocated from pool %s", s, p.id)
		}
	}
	if err := p.device.FreeDescriptorSets(p.handle, sets); err != nil {
		return err
	}
	for _, s := range sets {
		p.release(s)
	}
	return nil
}

// Reset returns every set to the pool at once.
func (p *Pool) Reset() error {
	if err := p.device.ResetDescriptorPool(p.handle); err != nil {
		return err
	}
	for s := range p.allocated {
		p.release(s)
	}
	return nil
}

func (p *Pool) release(s driver.DescriptorSet) {
	for _, c := range p.allocated[s] {
		p.used[c.Type] -= c.Count
	}
	delete(p.allocated, s)
}

func (p *Pool) Destroy() {
	if p.handle != 0 {
		p.device.DestroyDescriptorPool(p.handle)
		p.handle = 0
		p.allocated = make(map[driver.DescriptorSet][]driver.DescriptorPoolSize)
		p.used = make(map[driver.DescriptorType]uint32)
	}
}
