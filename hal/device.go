// Package hal is the device abstraction the texture core records against.
//
// It mirrors the subset of Vulkan 1.0 needed to allocate images and buffers,
// record a one-shot transfer and wait on a fence. The production implementation
// lives in hal/vulkan; hal/haltest provides an instrumented fake.
package hal

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/vkngwrapper/textures/hal Adapter,DescriptorAllocator

// Adapter exposes the physical device properties the core needs.
type Adapter interface {
	MemoryTypes() []MemoryType
	Limits() Limits
}

// Device is the logical device. Every Create/Allocate call must be paired with
// the matching Destroy/Free by the owner; nothing is reclaimed implicitly.
type Device interface {
	CreateImage(info ImageCreateInfo) (Image, error)
	DestroyImage(image Image)
	ImageMemoryRequirements(image Image) MemoryRequirements
	BindImageMemory(image Image, memory DeviceMemory, offset int) error

	CreateBuffer(info BufferCreateInfo) (Buffer, error)
	DestroyBuffer(buffer Buffer)
	BufferMemoryRequirements(buffer Buffer) MemoryRequirements
	BindBufferMemory(buffer Buffer, memory DeviceMemory, offset int) error

	AllocateMemory(info MemoryAllocateInfo) (DeviceMemory, error)
	FreeMemory(memory DeviceMemory)
	MapMemory(memory DeviceMemory, offset, size int) ([]byte, error)
	FlushMappedMemory(memory DeviceMemory, offset, size int) error
	UnmapMemory(memory DeviceMemory)

	CreateImageView(info ImageViewCreateInfo) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(info SamplerCreateInfo) (Sampler, error)
	DestroySampler(sampler Sampler)

	CreateFence(signaled bool) (Fence, error)
	// WaitForFence blocks until the fence is signaled. There is no timeout.
	WaitForFence(fence Fence) error
	DestroyFence(fence Fence)

	UpdateTextureDescriptor(write TextureDescriptorWrite) error
}

// CommandPool is borrowed exclusively for the duration of one upload.
type CommandPool interface {
	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(buffer CommandBuffer)
}

type CommandBuffer interface {
	// Begin starts one-time-submit recording.
	Begin() error
	PipelineBarrier(srcStage, dstStage PipelineStageFlags, barriers ...ImageMemoryBarrier) error
	CopyBufferToImage(src Buffer, dst Image, dstLayout ImageLayout, regions ...BufferImageCopy) error
	CopyImageToBuffer(src Image, srcLayout ImageLayout, dst Buffer, regions ...BufferImageCopy) error
	End() error
}

type Queue interface {
	// Submit queues the command buffers with no semaphore dependencies and
	// signals fence when they complete.
	Submit(fence Fence, buffers ...CommandBuffer) error
}

// DescriptorAllocator hands out single descriptor sets from a pool owned by the
// pipeline. The core never creates or destroys the pool itself.
type DescriptorAllocator interface {
	AllocateDescriptorSet() (DescriptorSet, error)
	FreeDescriptorSet(set DescriptorSet) error
	Bindings() TextureBindings
}
