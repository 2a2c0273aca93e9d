// Package texture uploads RGBA8 pixel data into device-local GPU images.
//
// An upload allocates a host-visible staging buffer, writes the pixel rows into
// it at the device's copy pitch, records a barrier/copy/barrier sequence into a
// one-time command buffer, submits it with a fence and blocks until the fence
// signals. Only then is the staging buffer destroyed and the image handed to
// the caller.
//
// Nothing in this package reclaims device objects implicitly. Every GpuImage
// must be released explicitly, either directly or through Registry.Release.
package texture

import (
	"image"
	"log/slog"
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/textures/hal"
)

// Resources are the collaborators an upload borrows. The command pool and
// queue are used exclusively for the duration of a call; callers uploading
// from several goroutines must serialize access to them.
type Resources struct {
	Adapter     hal.Adapter
	Device      hal.Device
	CommandPool hal.CommandPool
	Queue       hal.Queue
	Descriptors hal.DescriptorAllocator

	// Logger overrides the package logger when set.
	Logger *slog.Logger

	// LeakCheck logs an error for any GpuImage collected without Release.
	LeakCheck bool

	// ObserveTransfer, when set, is called on every transfer state change.
	ObserveTransfer func(TransferState)
}

func (r Resources) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return Logger()
}

func (r Resources) validate() error {
	if r.Adapter == nil || r.Device == nil || r.CommandPool == nil || r.Queue == nil || r.Descriptors == nil {
		return errors.AssertionFailedf("texture resources are incomplete: %+v", r)
	}
	return nil
}

// CreateTexture uploads width x height RGBA8 sRGB pixels into a new GpuImage
// sampled with filter. pixels must hold exactly width*height*4 bytes.
//
// On success the image is in ShaderReadOnlyOptimal layout and its descriptor
// set references its view and sampler. On failure no device object created by
// the call is left alive.
func CreateTexture(res Resources, pixels []byte, width, height int, filter hal.Filter) (*GpuImage, error) {
	err := checkDimensions(width, height)
	if err != nil {
		return nil, err
	}
	if !pixelLengthMatches(len(pixels), width, height) {
		return nil, errors.Mark(
			errors.Newf("got %d pixel bytes for a %dx%d texture, want width*height*%d", len(pixels), width, height, BytesPerTexel),
			ErrInvalidPixelBufferLength)
	}
	err = res.validate()
	if err != nil {
		return nil, err
	}

	logger := res.logger()
	layout := NewRowLayout(width, height, res.Adapter.Limits().OptimalBufferCopyRowPitchAlignment)

	staging, err := NewStagingBuffer(logger, res.Adapter, res.Device, layout.RequiredBytes(), hal.BufferUsageTransferSrc)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}
	// Released on every path, including a failed fence wait. In that case the
	// device may still be reading the buffer; the device is treated as lost.
	defer staging.Release(res.Device)

	err = staging.WriteRows(pixels, layout)
	if err != nil {
		return nil, err
	}

	img, err := NewGpuImage(res, width, height, filter)
	if err != nil {
		return nil, errors.Wrapf(err, "create %dx%d image", width, height)
	}

	duration, err := uploadStaging(res, staging, img.Image(), layout)
	if err != nil {
		img.Release(res.Device)
		return nil, errors.Wrapf(err, "upload %dx%d image", width, height)
	}

	err = res.Device.UpdateTextureDescriptor(hal.TextureDescriptorWrite{
		Set:         img.DescriptorSet(),
		Bindings:    res.Descriptors.Bindings(),
		View:        img.View(),
		Sampler:     img.Sampler(),
		ImageLayout: hal.ImageLayoutShaderReadOnlyOptimal,
	})
	if err != nil {
		img.Release(res.Device)
		return nil, creationFailed(StageDescriptorWrite, err)
	}

	img.logger.Info("uploaded texture",
		slog.Int("Width", width),
		slog.Int("Height", height),
		slog.Int("RowPitch", layout.RowPitch),
		slog.Duration("Duration", duration))
	return img, nil
}

// checkDimensions rejects extents a device cannot represent. Vulkan extents
// are uint32.
func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 || uint64(width) > math.MaxUint32 || uint64(height) > math.MaxUint32 {
		return errors.Mark(errors.Newf("invalid texture size %dx%d", width, height), ErrInvalidDimensions)
	}
	return nil
}

// pixelLengthMatches reports whether n == width*height*BytesPerTexel without
// overflowing. Both dimensions must already have passed checkDimensions.
func pixelLengthMatches(n, width, height int) bool {
	hi, lo := bits.Mul64(uint64(width), uint64(height)*BytesPerTexel)
	return hi == 0 && lo == uint64(n)
}

// Renderer owns a texture registry on top of a set of borrowed resources.
type Renderer struct {
	Resources

	// Filter is used by RegisterTexture. The zero value is FilterNearest.
	Filter hal.Filter

	registry Registry
}

func NewRenderer(res Resources) *Renderer {
	return &Renderer{Resources: res, Filter: hal.FilterNearest}
}

// RegisterTexture uploads pixels with the renderer's filter and returns the
// handle of the new texture.
func (r *Renderer) RegisterTexture(pixels []byte, width, height int) (Handle, error) {
	return r.RegisterTextureWithFilter(pixels, width, height, r.Filter)
}

func (r *Renderer) RegisterTextureWithFilter(pixels []byte, width, height int, filter hal.Filter) (Handle, error) {
	img, err := CreateTexture(r.Resources, pixels, width, height, filter)
	if err != nil {
		return -1, err
	}
	return r.registry.Register(img), nil
}

// RegisterRGBA registers a Go image. Sub-images whose stride is wider than
// their bounds are packed first.
func (r *Renderer) RegisterRGBA(img *image.RGBA) (Handle, error) {
	size := img.Rect.Size()
	return r.RegisterTexture(packRGBA(img), size.X, size.Y)
}

func (r *Renderer) Texture(h Handle) (*GpuImage, bool) {
	return r.registry.Get(h)
}

func (r *Renderer) TextureCount() int {
	return r.registry.Len()
}

// Destroy releases every registered texture. The borrowed resources are left
// to their owner.
func (r *Renderer) Destroy() {
	r.registry.Release(r.Device)
}

func packRGBA(img *image.RGBA) []byte {
	size := img.Rect.Size()
	rowSize := size.X * BytesPerTexel
	if img.Stride == rowSize && len(img.Pix) == rowSize*size.Y {
		return img.Pix
	}

	pixels := make([]byte, rowSize*size.Y)
	for y := 0; y < size.Y; y++ {
		start := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(pixels[y*rowSize:(y+1)*rowSize], img.Pix[start:start+rowSize])
	}
	return pixels
}
