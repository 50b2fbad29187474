package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

// CreateBuffer creates a host-visible, coherent buffer that stays mapped for
// its whole life.
func (d *Device) CreateBuffer(desc driver.BufferDescriptor) (driver.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vk.BufferUsageFlags(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if err := check(vk.CreateBuffer(d.logicalDevice, &info, d.allocator, &buf), "vkCreateBuffer"); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logicalDevice, buf, &reqs)
	reqs.Deref()

	index, err := d.findMemoryIndex(reqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(d.logicalDevice, buf, d.allocator)
		return 0, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var mem vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.logicalDevice, &allocInfo, d.allocator, &mem), "vkAllocateMemory"); err != nil {
		vk.DestroyBuffer(d.logicalDevice, buf, d.allocator)
		return 0, err
	}
	if err := check(vk.BindBufferMemory(d.logicalDevice, buf, mem, 0), "vkBindBufferMemory"); err != nil {
		vk.FreeMemory(d.logicalDevice, mem, d.allocator)
		vk.DestroyBuffer(d.logicalDevice, buf, d.allocator)
		return 0, err
	}

	var mapped unsafe.Pointer
	if err := check(vk.MapMemory(d.logicalDevice, mem, 0, vk.DeviceSize(desc.Size), 0, &mapped), "vkMapMemory"); err != nil {
		vk.FreeMemory(d.logicalDevice, mem, d.allocator)
		vk.DestroyBuffer(d.logicalDevice, buf, d.allocator)
		return 0, err
	}

	return d.buffers.put(buffer{
		handle: buf,
		memory: mem,
		size:   desc.Size,
		mapped: mapped,
	}), nil
}

func (d *Device) DestroyBuffer(b driver.Buffer) {
	buf, ok := d.buffers.remove(b)
	if !ok {
		return
	}
	vk.UnmapMemory(d.logicalDevice, buf.memory)
	vk.DestroyBuffer(d.logicalDevice, buf.handle, d.allocator)
	vk.FreeMemory(d.logicalDevice, buf.memory, d.allocator)
}

func (d *Device) WriteBuffer(b driver.Buffer, offset uint64, data []byte) error {
	buf, ok := d.buffers.get(b)
	if !ok {
		return errors.Wrapf(driver.ErrInvalidHandle, "write buffer %d", b)
	}
	if offset+uint64(len(data)) > buf.size {
		return core.Violation("write of %d bytes at offset %d overflows buffer of %d bytes", len(data), offset, buf.size)
	}
	vk.Memcopy(unsafe.Add(buf.mapped, offset), data)
	return nil
}
