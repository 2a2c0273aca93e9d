package hal

import "fmt"

// Handles are opaque to the core. Backends issue them and the zero value is never a live object.
type (
	Image         uint64
	Buffer        uint64
	DeviceMemory  uint64
	ImageView     uint64
	Sampler       uint64
	Fence         uint64
	DescriptorSet uint64
)

func (h Image) Initialized() bool         { return h != 0 }
func (h Buffer) Initialized() bool        { return h != 0 }
func (h DeviceMemory) Initialized() bool  { return h != 0 }
func (h ImageView) Initialized() bool     { return h != 0 }
func (h Sampler) Initialized() bool       { return h != 0 }
func (h Fence) Initialized() bool         { return h != 0 }
func (h DescriptorSet) Initialized() bool { return h != 0 }

type Format int

const (
	FormatUndefined Format = iota
	// FormatR8G8B8A8SRGB is 8 bits per channel RGBA, gamma-encoded.
	FormatR8G8B8A8SRGB
)

func (f Format) String() string {
	switch f {
	case FormatR8G8B8A8SRGB:
		return "R8G8B8A8SRGB"
	}
	return "Undefined"
}

type ImageLayout int

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutTransferSrcOptimal
	ImageLayoutTransferDstOptimal
	ImageLayoutShaderReadOnlyOptimal
)

var layoutNames = map[ImageLayout]string{
	ImageLayoutUndefined:             "Undefined",
	ImageLayoutTransferSrcOptimal:    "TransferSrcOptimal",
	ImageLayoutTransferDstOptimal:    "TransferDstOptimal",
	ImageLayoutShaderReadOnlyOptimal: "ShaderReadOnlyOptimal",
}

func (l ImageLayout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("ImageLayout(%d)", int(l))
}

type ImageTiling int

const (
	ImageTilingOptimal ImageTiling = iota
	ImageTilingLinear
)

type ImageAspectFlags uint32

const ImageAspectColor ImageAspectFlags = 1

type AccessFlags uint32

const (
	AccessTransferRead AccessFlags = 1 << iota
	AccessTransferWrite
	AccessShaderRead
	AccessHostRead
	AccessHostWrite
)

type PipelineStageFlags uint32

const (
	PipelineStageTopOfPipe PipelineStageFlags = 1 << iota
	PipelineStageTransfer
	PipelineStageFragmentShader
	PipelineStageHost
)

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
	MemoryPropertyHostCached
)

func (f MemoryPropertyFlags) String() string {
	if f == 0 {
		return "None"
	}
	var s string
	for _, p := range []struct {
		bit  MemoryPropertyFlags
		name string
	}{
		{MemoryPropertyDeviceLocal, "DeviceLocal"},
		{MemoryPropertyHostVisible, "HostVisible"},
		{MemoryPropertyHostCoherent, "HostCoherent"},
		{MemoryPropertyHostCached, "HostCached"},
	} {
		if f&p.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += p.name
	}
	return s
}

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc ImageUsageFlags = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
)

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc BufferUsageFlags = 1 << iota
	BufferUsageTransferDst
)

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
)

func (f Filter) String() string {
	if f == FilterLinear {
		return "Linear"
	}
	return "Nearest"
}

type SamplerAddressMode int

const (
	SamplerAddressModeClampToEdge SamplerAddressMode = iota
	SamplerAddressModeRepeat
)

type ImageViewType int

const ImageViewType2D ImageViewType = 0

type Extent3D struct {
	Width  int
	Height int
	Depth  int
}

type Offset3D struct {
	X, Y, Z int
}

type ImageSubresourceRange struct {
	AspectMask     ImageAspectFlags
	BaseMipLevel   int
	LevelCount     int
	BaseArrayLayer int
	LayerCount     int
}

type ImageSubresourceLayers struct {
	AspectMask     ImageAspectFlags
	MipLevel       int
	BaseArrayLayer int
	LayerCount     int
}

type ImageCreateInfo struct {
	Extent        Extent3D
	MipLevels     int
	ArrayLayers   int
	Format        Format
	Tiling        ImageTiling
	Usage         ImageUsageFlags
	InitialLayout ImageLayout
}

type BufferCreateInfo struct {
	Size  int
	Usage BufferUsageFlags
}

type MemoryRequirements struct {
	Size           int
	Alignment      int
	MemoryTypeBits uint32
}

type MemoryAllocateInfo struct {
	AllocationSize  int
	MemoryTypeIndex int
}

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     int
}

type ImageViewCreateInfo struct {
	Image            Image
	ViewType         ImageViewType
	Format           Format
	SubresourceRange ImageSubresourceRange
}

type SamplerCreateInfo struct {
	MagFilter    Filter
	MinFilter    Filter
	AddressModeU SamplerAddressMode
	AddressModeV SamplerAddressMode
	AddressModeW SamplerAddressMode
}

type ImageMemoryBarrier struct {
	SrcAccessMask    AccessFlags
	DstAccessMask    AccessFlags
	OldLayout        ImageLayout
	NewLayout        ImageLayout
	Image            Image
	SubresourceRange ImageSubresourceRange
}

// BufferImageCopy describes one buffer<->image copy region. BufferRowLength and
// BufferImageHeight are in texels; zero means tightly packed to ImageExtent.
type BufferImageCopy struct {
	BufferOffset      int
	BufferRowLength   int
	BufferImageHeight int
	ImageSubresource  ImageSubresourceLayers
	ImageOffset       Offset3D
	ImageExtent       Extent3D
}

type Limits struct {
	OptimalBufferCopyRowPitchAlignment int
}

// TextureBindings describes where a texture's view and sampler live in the
// descriptor set layout the allocator hands out sets for.
type TextureBindings struct {
	ImageBinding   int
	SamplerBinding int
	// Combined writes a single combined image sampler at ImageBinding.
	Combined       bool
}

type TextureDescriptorWrite struct {
	Set         DescriptorSet
	Bindings    TextureBindings
	View        ImageView
	Sampler     Sampler
	ImageLayout ImageLayout
}
