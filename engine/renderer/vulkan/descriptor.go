package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorSetLayoutBinding) (driver.DescriptorSetLayout, error) {
	native := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		native[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(native)),
		PBindings:    native,
	}
	var layout vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(d.logicalDevice, &info, d.allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return d.setLayouts.put(layout), nil
}

func (d *Device) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	if layout, ok := d.setLayouts.remove(l); ok {
		vk.DestroyDescriptorSetLayout(d.logicalDevice, layout, d.allocator)
	}
}

func (d *Device) CreateDescriptorPool(desc driver.DescriptorPoolDescriptor) (driver.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(desc.Flags),
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(d.logicalDevice, &info, d.allocator, &pool), "vkCreateDescriptorPool"); err != nil {
		return 0, err
	}
	return d.descriptorPools.put(pool), nil
}

// DestroyDescriptorPool destroys p and every set allocated from it.
func (d *Device) DestroyDescriptorPool(p driver.DescriptorPool) {
	pool, ok := d.descriptorPools.remove(p)
	if !ok {
		return
	}
	d.forgetSets(p)
	vk.DestroyDescriptorPool(d.logicalDevice, pool, d.allocator)
}

func (d *Device) forgetSets(p driver.DescriptorPool) {
	for h, set := range d.descriptorSets.items {
		if set.pool == p {
			delete(d.descriptorSets.items, h)
		}
	}
}

// AllocateDescriptorSet returns driver.ErrOutOfPoolMemory, wrapped, when the
// pool cannot serve the layout.
func (d *Device) AllocateDescriptorSet(p driver.DescriptorPool, l driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	pool, ok := d.descriptorPools.get(p)
	if !ok {
		return 0, errors.Wrapf(driver.ErrInvalidHandle, "allocate from pool %d", p)
	}
	layout, ok := d.setLayouts.get(l)
	if !ok {
		return 0, errors.Wrapf(driver.ErrInvalidHandle, "allocate with layout %d", l)
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := check(vk.AllocateDescriptorSets(d.logicalDevice, &info, &set), "vkAllocateDescriptorSets"); err != nil {
		return 0, err
	}
	return d.descriptorSets.put(descriptorSet{handle: set, pool: p}), nil
}

func (d *Device) FreeDescriptorSets(p driver.DescriptorPool, sets []driver.DescriptorSet) error {
	pool, ok := d.descriptorPools.get(p)
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "free into pool %d", p)
	}
	native := make([]vk.DescriptorSet, 0, len(sets))
	for _, s := range sets {
		set, ok := d.descriptorSets.get(s)
		if !ok || set.pool != p {
			return errors.Wrapf(driver.ErrInvalidHandle, "descriptor set %d does not belong to pool %d", s, p)
		}
		native = append(native, set.handle)
	}
	if len(native) == 0 {
		return nil
	}
	if err := check(vk.FreeDescriptorSets(d.logicalDevice, pool, uint32(len(native)), &native[0]), "vkFreeDescriptorSets"); err != nil {
		return err
	}
	for _, s := range sets {
		d.descriptorSets.remove(s)
	}
	return nil
}

func (d *Device) ResetDescriptorPool(p driver.DescriptorPool) error {
	pool, ok := d.descriptorPools.get(p)
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "reset pool %d", p)
	}
	if err := check(vk.ResetDescriptorPool(d.logicalDevice, pool, 0), "vkResetDescriptorPool"); err != nil {
		return err
	}
	d.forgetSets(p)
	return nil
}

// UpdateDescriptorSets applies every write in one call. Writes referring to
// unknown handles are skipped.
func (d *Device) UpdateDescriptorSets(writes []driver.WriteDescriptorSet) {
	native := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := d.descriptorSets.get(w.DstSet)
		if !ok {
			continue
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.handle,
			DstBinding:      w.DstBinding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		switch {
		case w.BufferInfo != nil:
			buf, ok := d.buffers.get(w.BufferInfo.Buffer)
			if !ok {
				continue
			}
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buf.handle,
				Offset: vk.DeviceSize(w.BufferInfo.Offset),
				Range:  vk.DeviceSize(w.BufferInfo.Range),
			}}
		case w.ImageInfo != nil:
			view, _ := d.imageViews.get(w.ImageInfo.ImageView)
			write.PImageInfo = []vk.DescriptorImageInfo{{
				// samplers are not created through this device yet
				Sampler:     vk.NullSampler,
				ImageView:   view,
				ImageLayout: vk.ImageLayout(w.ImageInfo.Layout),
			}}
		default:
			continue
		}
		native = append(native, write)
	}
	if len(native) > 0 {
		vk.UpdateDescriptorSets(d.logicalDevice, uint32(len(native)), native, 0, nil)
	}
}
