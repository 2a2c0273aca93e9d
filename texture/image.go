package texture

import (
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"github.com/vkngwrapper/textures/hal"
)

// GpuImage is a device-local RGBA8 sRGB image together with its view, its
// sampler and the descriptor set they are bound into.
//
// A GpuImage owns device objects that nothing reclaims implicitly: the owner
// must call Release exactly once, on the device that created it.
type GpuImage struct {
	ID uuid.UUID

	width  int
	height int
	filter hal.Filter

	image         Owned[hal.Image]
	memory        Owned[hal.DeviceMemory]
	requirements  hal.MemoryRequirements
	view          Owned[hal.ImageView]
	sampler       Owned[hal.Sampler]
	descriptorSet Owned[hal.DescriptorSet]

	// device is a back-link used only to check Release is called on the
	// device the image belongs to.
	device      hal.Device
	descriptors hal.DescriptorAllocator
	logger      *slog.Logger
	released    bool
}

var colorSubresourceRange = hal.ImageSubresourceRange{
	AspectMask:     hal.ImageAspectColor,
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

// NewGpuImage creates an empty width x height image in device-local memory,
// a view over its single mip level and layer, a clamp-to-edge sampler using
// filter, and acquires one descriptor set for them.
//
// Construction is all-or-nothing: if any step fails, every object created by
// earlier steps is destroyed before the error is returned.
func NewGpuImage(res Resources, width, height int, filter hal.Filter) (_ *GpuImage, err error) {
	err = res.validate()
	if err != nil {
		return nil, err
	}
	err = checkDimensions(width, height)
	if err != nil {
		return nil, err
	}

	logger := res.logger()
	device := res.Device

	img := &GpuImage{
		ID:          uuid.New(),
		width:       width,
		height:      height,
		filter:      filter,
		device:      device,
		descriptors: res.Descriptors,
	}
	img.logger = logger.With(slog.String("texture", img.ID.String()))

	defer func() {
		if err != nil {
			img.releaseHeld()
		}
	}()

	image, err := device.CreateImage(hal.ImageCreateInfo{
		Extent: hal.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        hal.FormatR8G8B8A8SRGB,
		Tiling:        hal.ImageTilingOptimal,
		Usage:         hal.ImageUsageTransferDst | hal.ImageUsageTransferSrc | hal.ImageUsageSampled,
		InitialLayout: hal.ImageLayoutUndefined,
	})
	if err != nil {
		return nil, creationFailed(StageImage, err)
	}
	img.image = Own(image)

	img.requirements = device.ImageMemoryRequirements(image)
	memoryTypeIndex, err := SelectMemoryType(res.Adapter.MemoryTypes(), img.requirements.MemoryTypeBits, hal.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	memory, err := allocateAndBind(img.logger, device, memoryTypeIndex, img.requirements, func(memory hal.DeviceMemory) error {
		return device.BindImageMemory(image, memory, 0)
	})
	if err != nil {
		return nil, err
	}
	img.memory = Own(memory)

	view, err := device.CreateImageView(hal.ImageViewCreateInfo{
		Image:            image,
		ViewType:         hal.ImageViewType2D,
		Format:           hal.FormatR8G8B8A8SRGB,
		SubresourceRange: colorSubresourceRange,
	})
	if err != nil {
		return nil, creationFailed(StageImageView, err)
	}
	img.view = Own(view)

	sampler, err := device.CreateSampler(hal.SamplerCreateInfo{
		MagFilter:    filter,
		MinFilter:    filter,
		AddressModeU: hal.SamplerAddressModeClampToEdge,
		AddressModeV: hal.SamplerAddressModeClampToEdge,
		AddressModeW: hal.SamplerAddressModeClampToEdge,
	})
	if err != nil {
		return nil, creationFailed(StageSampler, err)
	}
	img.sampler = Own(sampler)

	set, err := res.Descriptors.AllocateDescriptorSet()
	if err != nil {
		return nil, markf(err, ErrDescriptorAllocationFailed, "allocate descriptor set")
	}
	img.descriptorSet = Own(set)

	if res.LeakCheck {
		runtime.SetFinalizer(img, func(img *GpuImage) {
			img.logger.Error("gpu image was garbage collected without Release",
				slog.Int("Width", img.width), slog.Int("Height", img.height))
		})
	}

	img.logger.Debug("created gpu image",
		slog.Int("Width", width),
		slog.Int("Height", height),
		slog.Int("MemorySize", img.requirements.Size),
		slog.String("Filter", filter.String()))
	return img, nil
}

func (img *GpuImage) Width() int                                 { return img.width }
func (img *GpuImage) Height() int                                { return img.height }
func (img *GpuImage) Filter() hal.Filter                         { return img.filter }
func (img *GpuImage) Image() hal.Image                           { return img.image.Peek() }
func (img *GpuImage) View() hal.ImageView                        { return img.view.Peek() }
func (img *GpuImage) Sampler() hal.Sampler                       { return img.sampler.Peek() }
func (img *GpuImage) DescriptorSet() hal.DescriptorSet           { return img.descriptorSet.Peek() }
func (img *GpuImage) MemoryRequirements() hal.MemoryRequirements { return img.requirements }
func (img *GpuImage) Released() bool                             { return img.released }

// Release destroys the descriptor set, sampler, view and image, then frees the
// image memory. Calling it twice, or with a device other than the one the
// image was created on, panics.
func (img *GpuImage) Release(device hal.Device) {
	if img.released {
		panic("texture: gpu image released twice")
	}
	if device != img.device {
		panic("texture: gpu image released on a different device")
	}

	runtime.SetFinalizer(img, nil)
	img.releaseHeld()
	img.logger.Debug("released gpu image")
}

// releaseHeld destroys whatever the image currently owns. Memory is freed last
// so it is never released while the image or view still reference it.
func (img *GpuImage) releaseHeld() {
	img.released = true

	if img.descriptorSet.Held() {
		err := img.descriptors.FreeDescriptorSet(Take(&img.descriptorSet))
		if err != nil {
			img.logger.Warn("failed to free descriptor set", slog.Any("error", err))
		}
	}
	if img.sampler.Held() {
		img.device.DestroySampler(Take(&img.sampler))
	}
	if img.view.Held() {
		img.device.DestroyImageView(Take(&img.view))
	}
	if img.image.Held() {
		img.device.DestroyImage(Take(&img.image))
	}
	if img.memory.Held() {
		img.device.FreeMemory(Take(&img.memory))
	}
}
