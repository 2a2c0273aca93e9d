package vulkan

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/textures/hal"
)

type flagPair[H ~uint32, V any] struct {
	hal H
	vk  V
}

var accessFlagPairs = []flagPair[hal.AccessFlags, core1_0.AccessFlags]{
	{hal.AccessTransferRead, core1_0.AccessTransferRead},
	{hal.AccessTransferWrite, core1_0.AccessTransferWrite},
	{hal.AccessShaderRead, core1_0.AccessShaderRead},
	{hal.AccessHostRead, core1_0.AccessHostRead},
	{hal.AccessHostWrite, core1_0.AccessHostWrite},
}

var pipelineStagePairs = []flagPair[hal.PipelineStageFlags, core1_0.PipelineStageFlags]{
	{hal.PipelineStageTopOfPipe, core1_0.PipelineStageTopOfPipe},
	{hal.PipelineStageTransfer, core1_0.PipelineStageTransfer},
	{hal.PipelineStageFragmentShader, core1_0.PipelineStageFragmentShader},
	{hal.PipelineStageHost, core1_0.PipelineStageHost},
}

var memoryPropertyPairs = []flagPair[hal.MemoryPropertyFlags, core1_0.MemoryPropertyFlags]{
	{hal.MemoryPropertyDeviceLocal, core1_0.MemoryPropertyDeviceLocal},
	{hal.MemoryPropertyHostVisible, core1_0.MemoryPropertyHostVisible},
	{hal.MemoryPropertyHostCoherent, core1_0.MemoryPropertyHostCoherent},
	{hal.MemoryPropertyHostCached, core1_0.MemoryPropertyHostCached},
}

var imageUsagePairs = []flagPair[hal.ImageUsageFlags, core1_0.ImageUsageFlags]{
	{hal.ImageUsageTransferSrc, core1_0.ImageUsageTransferSrc},
	{hal.ImageUsageTransferDst, core1_0.ImageUsageTransferDst},
	{hal.ImageUsageSampled, core1_0.ImageUsageSampled},
}

var bufferUsagePairs = []flagPair[hal.BufferUsageFlags, core1_0.BufferUsageFlags]{
	{hal.BufferUsageTransferSrc, core1_0.BufferUsageTransferSrc},
	{hal.BufferUsageTransferDst, core1_0.BufferUsageTransferDst},
}

func accessFlags(flags hal.AccessFlags) core1_0.AccessFlags {
	var out core1_0.AccessFlags
	for _, p := range accessFlagPairs {
		if flags&p.hal != 0 {
			out |= p.vk
		}
	}
	return out
}

func pipelineStages(flags hal.PipelineStageFlags) core1_0.PipelineStageFlags {
	var out core1_0.PipelineStageFlags
	for _, p := range pipelineStagePairs {
		if flags&p.hal != 0 {
			out |= p.vk
		}
	}
	return out
}

// memoryProperties goes the other way: the adapter reports Vulkan flags and
// the core only understands the hal subset.
func memoryProperties(flags core1_0.MemoryPropertyFlags) hal.MemoryPropertyFlags {
	var out hal.MemoryPropertyFlags
	for _, p := range memoryPropertyPairs {
		if flags&p.vk != 0 {
			out |= p.hal
		}
	}
	return out
}

func imageUsage(flags hal.ImageUsageFlags) core1_0.ImageUsageFlags {
	var out core1_0.ImageUsageFlags
	for _, p := range imageUsagePairs {
		if flags&p.hal != 0 {
			out |= p.vk
		}
	}
	return out
}

func bufferUsage(flags hal.BufferUsageFlags) core1_0.BufferUsageFlags {
	var out core1_0.BufferUsageFlags
	for _, p := range bufferUsagePairs {
		if flags&p.hal != 0 {
			out |= p.vk
		}
	}
	return out
}

func imageLayout(layout hal.ImageLayout) core1_0.ImageLayout {
	switch layout {
	case hal.ImageLayoutTransferSrcOptimal:
		return core1_0.ImageLayoutTransferSrcOptimal
	case hal.ImageLayoutTransferDstOptimal:
		return core1_0.ImageLayoutTransferDstOptimal
	case hal.ImageLayoutShaderReadOnlyOptimal:
		return core1_0.ImageLayoutShaderReadOnlyOptimal
	}
	return core1_0.ImageLayoutUndefined
}

func format(f hal.Format) core1_0.Format {
	if f == hal.FormatR8G8B8A8SRGB {
		return core1_0.FormatR8G8B8A8SRGB
	}
	return core1_0.FormatUndefined
}

func tiling(t hal.ImageTiling) core1_0.ImageTiling {
	if t == hal.ImageTilingLinear {
		return core1_0.ImageTilingLinear
	}
	return core1_0.ImageTilingOptimal
}

func filter(f hal.Filter) core1_0.Filter {
	if f == hal.FilterLinear {
		return core1_0.FilterLinear
	}
	return core1_0.FilterNearest
}

func addressMode(m hal.SamplerAddressMode) core1_0.SamplerAddressMode {
	if m == hal.SamplerAddressModeRepeat {
		return core1_0.SamplerAddressModeRepeat
	}
	return core1_0.SamplerAddressModeClampToEdge
}

func aspect(flags hal.ImageAspectFlags) core1_0.ImageAspectFlags {
	if flags&hal.ImageAspectColor != 0 {
		return core1_0.ImageAspectColor
	}
	return 0
}

func subresourceRange(r hal.ImageSubresourceRange) core1_0.ImageSubresourceRange {
	return core1_0.ImageSubresourceRange{
		AspectMask:     aspect(r.AspectMask),
		BaseMipLevel:   r.BaseMipLevel,
		LevelCount:     r.LevelCount,
		BaseArrayLayer: r.BaseArrayLayer,
		LayerCount:     r.LayerCount,
	}
}

func bufferImageCopy(region hal.BufferImageCopy) core1_0.BufferImageCopy {
	return core1_0.BufferImageCopy{
		BufferOffset:      region.BufferOffset,
		BufferRowLength:   region.BufferRowLength,
		BufferImageHeight: region.BufferImageHeight,

		ImageSubresource: core1_0.ImageSubresourceLayers{
			AspectMask:     aspect(region.ImageSubresource.AspectMask),
			MipLevel:       region.ImageSubresource.MipLevel,
			BaseArrayLayer: region.ImageSubresource.BaseArrayLayer,
			LayerCount:     region.ImageSubresource.LayerCount,
		},
		ImageOffset: core1_0.Offset3D{
			X: region.ImageOffset.X,
			Y: region.ImageOffset.Y,
			Z: region.ImageOffset.Z,
		},
		ImageExtent: core1_0.Extent3D{
			Width:  region.ImageExtent.Width,
			Height: region.ImageExtent.Height,
			Depth:  region.ImageExtent.Depth,
		},
	}
}

func bufferImageCopies(regions []hal.BufferImageCopy) []core1_0.BufferImageCopy {
	out := make([]core1_0.BufferImageCopy, 0, len(regions))
	for _, region := range regions {
		out = append(out, bufferImageCopy(region))
	}
	return out
}
