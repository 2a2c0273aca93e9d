package vulkan

import (
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/textures/hal"
)

type allocation struct {
	memory   core1_0.DeviceMemory
	size     int
	coherent bool
}

// Device implements hal.Device over a vkngwrapper device driver. Every object
// the core receives is an index into one of the handle tables below.
type Device struct {
	driver  core1_0.DeviceDriver
	adapter *Adapter
	logger  *slog.Logger

	images   handleTable[core1_0.Image]
	buffers  handleTable[core1_0.Buffer]
	memories handleTable[allocation]
	views    handleTable[core1_0.ImageView]
	samplers handleTable[core1_0.Sampler]
	fences   handleTable[core1_0.Fence]
	sets     handleTable[core1_0.DescriptorSet]
}

var _ hal.Device = (*Device)(nil)

func NewDevice(logger *slog.Logger, driver core1_0.DeviceDriver, adapter *Adapter) *Device {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Device{driver: driver, adapter: adapter, logger: logger}
}

func (d *Device) Driver() core1_0.DeviceDriver { return d.driver }

// LiveObjects is the number of objects created through this device that have
// not been destroyed.
func (d *Device) LiveObjects() int {
	return d.images.len() + d.buffers.len() + d.memories.len() + d.views.len() +
		d.samplers.len() + d.fences.len() + d.sets.len()
}

func (d *Device) CreateImage(info hal.ImageCreateInfo) (hal.Image, error) {
	image, _, err := d.driver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  info.Extent.Depth,
		},
		MipLevels:     info.MipLevels,
		ArrayLayers:   info.ArrayLayers,
		Format:        format(info.Format),
		Tiling:        tiling(info.Tiling),
		InitialLayout: imageLayout(info.InitialLayout),
		Usage:         imageUsage(info.Usage),
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return 0, err
	}
	return hal.Image(d.images.add(image)), nil
}

func (d *Device) DestroyImage(image hal.Image) {
	vkImage, ok := d.images.remove(uint64(image))
	if !ok {
		d.logger.Warn("destroy of unknown image", slog.Uint64("Handle", uint64(image)))
		return
	}
	d.driver.DestroyImage(vkImage, nil)
}

func (d *Device) ImageMemoryRequirements(image hal.Image) hal.MemoryRequirements {
	vkImage, ok := d.images.get(uint64(image))
	if !ok {
		return hal.MemoryRequirements{}
	}
	memReqs := d.driver.GetImageMemoryRequirements(vkImage)
	return hal.MemoryRequirements{
		Size:           memReqs.Size,
		Alignment:      memReqs.Alignment,
		MemoryTypeBits: memReqs.MemoryTypeBits,
	}
}

func (d *Device) BindImageMemory(image hal.Image, memory hal.DeviceMemory, offset int) error {
	vkImage, ok := d.images.get(uint64(image))
	if !ok {
		return errors.Newf("bind unknown image %d", image)
	}
	alloc, ok := d.memories.get(uint64(memory))
	if !ok {
		return errors.Newf("bind unknown memory %d", memory)
	}
	_, err := d.driver.BindImageMemory(vkImage, alloc.memory, offset)
	return err
}

func (d *Device) CreateBuffer(info hal.BufferCreateInfo) (hal.Buffer, error) {
	buffer, _, err := d.driver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        info.Size,
		Usage:       bufferUsage(info.Usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return 0, err
	}
	return hal.Buffer(d.buffers.add(buffer)), nil
}

func (d *Device) DestroyBuffer(buffer hal.Buffer) {
	vkBuffer, ok := d.buffers.remove(uint64(buffer))
	if !ok {
		d.logger.Warn("destroy of unknown buffer", slog.Uint64("Handle", uint64(buffer)))
		return
	}
	d.driver.DestroyBuffer(vkBuffer, nil)
}

func (d *Device) BufferMemoryRequirements(buffer hal.Buffer) hal.MemoryRequirements {
	vkBuffer, ok := d.buffers.get(uint64(buffer))
	if !ok {
		return hal.MemoryRequirements{}
	}
	memReqs := d.driver.GetBufferMemoryRequirements(vkBuffer)
	return hal.MemoryRequirements{
		Size:           memReqs.Size,
		Alignment:      memReqs.Alignment,
		MemoryTypeBits: memReqs.MemoryTypeBits,
	}
}

func (d *Device) BindBufferMemory(buffer hal.Buffer, memory hal.DeviceMemory, offset int) error {
	vkBuffer, ok := d.buffers.get(uint64(buffer))
	if !ok {
		return errors.Newf("bind unknown buffer %d", buffer)
	}
	alloc, ok := d.memories.get(uint64(memory))
	if !ok {
		return errors.Newf("bind unknown memory %d", memory)
	}
	_, err := d.driver.BindBufferMemory(vkBuffer, alloc.memory, offset)
	return err
}

func (d *Device) AllocateMemory(info hal.MemoryAllocateInfo) (hal.DeviceMemory, error) {
	memory, _, err := d.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  info.AllocationSize,
		MemoryTypeIndex: info.MemoryTypeIndex,
	})
	if err != nil {
		return 0, err
	}
	return hal.DeviceMemory(d.memories.add(allocation{
		memory:   memory,
		size:     info.AllocationSize,
		coherent: d.adapter.coherent(info.MemoryTypeIndex),
	})), nil
}

func (d *Device) FreeMemory(memory hal.DeviceMemory) {
	alloc, ok := d.memories.remove(uint64(memory))
	if !ok {
		d.logger.Warn("free of unknown memory", slog.Uint64("Handle", uint64(memory)))
		return
	}
	d.driver.FreeMemory(alloc.memory, nil)
}

func (d *Device) MapMemory(memory hal.DeviceMemory, offset, size int) ([]byte, error) {
	alloc, ok := d.memories.get(uint64(memory))
	if !ok {
		return nil, errors.Newf("map unknown memory %d", memory)
	}
	memoryPtr, _, err := d.driver.MapMemory(alloc.memory, offset, size, 0)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(memoryPtr), size), nil
}

// FlushMappedMemory is a no-op for host-coherent memory. Otherwise the range is
// widened to the device's non-coherent atom size.
func (d *Device) FlushMappedMemory(memory hal.DeviceMemory, offset, size int) error {
	alloc, ok := d.memories.get(uint64(memory))
	if !ok {
		return errors.Newf("flush unknown memory %d", memory)
	}
	if alloc.coherent {
		return nil
	}

	atom := d.adapter.nonCoherentAtomSize
	if atom > 1 {
		end := offset + size
		offset -= offset % atom
		size = alignUp(end-offset, atom)
	}
	if offset+size > alloc.size {
		size = alloc.size - offset
	}

	_, err := d.driver.FlushMappedMemoryRanges(core1_0.MappedMemoryRange{
		Memory: alloc.memory,
		Offset: offset,
		Size:   size,
	})
	return err
}

func (d *Device) UnmapMemory(memory hal.DeviceMemory) {
	alloc, ok := d.memories.get(uint64(memory))
	if !ok {
		return
	}
	d.driver.UnmapMemory(alloc.memory)
}

func (d *Device) CreateImageView(info hal.ImageViewCreateInfo) (hal.ImageView, error) {
	vkImage, ok := d.images.get(uint64(info.Image))
	if !ok {
		return 0, errors.Newf("view of unknown image %d", info.Image)
	}
	imageView, _, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:            vkImage,
		ViewType:         core1_0.ImageViewType2D,
		Format:           format(info.Format),
		SubresourceRange: subresourceRange(info.SubresourceRange),
	})
	if err != nil {
		return 0, err
	}
	return hal.ImageView(d.views.add(imageView)), nil
}

func (d *Device) DestroyImageView(view hal.ImageView) {
	imageView, ok := d.views.remove(uint64(view))
	if !ok {
		d.logger.Warn("destroy of unknown image view", slog.Uint64("Handle", uint64(view)))
		return
	}
	d.driver.DestroyImageView(imageView, nil)
}

func (d *Device) CreateSampler(info hal.SamplerCreateInfo) (hal.Sampler, error) {
	sampler, _, err := d.driver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    filter(info.MagFilter),
		MinFilter:    filter(info.MinFilter),
		AddressModeU: addressMode(info.AddressModeU),
		AddressModeV: addressMode(info.AddressModeV),
		AddressModeW: addressMode(info.AddressModeW),

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeNearest,
		MinLod:     0,
		MaxLod:     0,
	})
	if err != nil {
		return 0, err
	}
	return hal.Sampler(d.samplers.add(sampler)), nil
}

func (d *Device) DestroySampler(sampler hal.Sampler) {
	vkSampler, ok := d.samplers.remove(uint64(sampler))
	if !ok {
		d.logger.Warn("destroy of unknown sampler", slog.Uint64("Handle", uint64(sampler)))
		return
	}
	d.driver.DestroySampler(vkSampler, nil)
}

func (d *Device) CreateFence(signaled bool) (hal.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}
	fence, _, err := d.driver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: flags,
	})
	if err != nil {
		return 0, err
	}
	return hal.Fence(d.fences.add(fence)), nil
}

func (d *Device) WaitForFence(fence hal.Fence) error {
	vkFence, ok := d.fences.get(uint64(fence))
	if !ok {
		return errors.Newf("wait on unknown fence %d", fence)
	}
	_, err := d.driver.WaitForFences(true, common.NoTimeout, vkFence)
	return err
}

func (d *Device) DestroyFence(fence hal.Fence) {
	vkFence, ok := d.fences.remove(uint64(fence))
	if !ok {
		d.logger.Warn("destroy of unknown fence", slog.Uint64("Handle", uint64(fence)))
		return
	}
	d.driver.DestroyFence(vkFence, nil)
}

// UpdateTextureDescriptor writes the view and sampler either as one combined
// image sampler or as a sampled image and a separate sampler.
func (d *Device) UpdateTextureDescriptor(write hal.TextureDescriptorWrite) error {
	set, ok := d.sets.get(uint64(write.Set))
	if !ok {
		return errors.Newf("write to unknown descriptor set %d", write.Set)
	}
	view, ok := d.views.get(uint64(write.View))
	if !ok {
		return errors.Newf("write of unknown image view %d", write.View)
	}
	sampler, ok := d.samplers.get(uint64(write.Sampler))
	if !ok {
		return errors.Newf("write of unknown sampler %d", write.Sampler)
	}

	return d.driver.UpdateDescriptorSets(textureWrites(set, write.Bindings, view, sampler, imageLayout(write.ImageLayout)), nil)
}

func textureWrites(set core1_0.DescriptorSet, bindings hal.TextureBindings, view core1_0.ImageView, sampler core1_0.Sampler, layout core1_0.ImageLayout) []core1_0.WriteDescriptorSet {
	if bindings.Combined {
		return []core1_0.WriteDescriptorSet{
			{
				DstSet:          set,
				DstBinding:      bindings.ImageBinding,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   view,
						Sampler:     sampler,
						ImageLayout: layout,
					},
				},
			},
		}
	}

	return []core1_0.WriteDescriptorSet{
		{
			DstSet:          set,
			DstBinding:      bindings.ImageBinding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeSampledImage,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   view,
					ImageLayout: layout,
				},
			},
		},
		{
			DstSet:          set,
			DstBinding:      bindings.SamplerBinding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					Sampler: sampler,
				},
			},
		},
	}
}

func alignUp(value, alignment int) int {
	if value%alignment != 0 {
		return value + alignment - (value % alignment)
	}
	return value
}
