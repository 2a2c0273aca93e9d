package texture

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/textures/hal"
	"github.com/vkngwrapper/textures/hal/haltest"
)

func TestCreateTextureRoundTrip(t *testing.T) {
	testCases := []struct {
		width, height, alignment int
	}{
		{width: 2, height: 2, alignment: 256},
		{width: 1, height: 1, alignment: 256},
		{width: 3, height: 5, alignment: 256},
		{width: 64, height: 2, alignment: 256},
		{width: 65, height: 7, alignment: 256},
		{width: 7, height: 3, alignment: 1},
		{width: 5, height: 4, alignment: 6},
		{width: 33, height: 9, alignment: 128},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%dx%d@%d", tc.width, tc.height, tc.alignment), func(t *testing.T) {
			dev := haltest.New()
			dev.SetAlignment(tc.alignment)
			res := fakeResources(dev)
			pixels := gradient(tc.width, tc.height)

			img, err := CreateTexture(res, pixels, tc.width, tc.height, hal.FilterNearest)
			require.NoError(t, err)
			require.Equal(t, pixels, dev.ImageTexels(img.Image()))

			read, err := ReadPixels(res, img)
			require.NoError(t, err)
			require.Equal(t, pixels, read)

			layout, _ := dev.ImageLayout(img.Image())
			require.Equal(t, hal.ImageLayoutShaderReadOnlyOptimal, layout)

			img.Release(dev)
			requireClean(t, dev)
		})
	}
}

func TestCreateTextureWritesDescriptor(t *testing.T) {
	dev := haltest.New()
	img, err := CreateTexture(fakeResources(dev), gradient(2, 2), 2, 2, hal.FilterLinear)
	require.NoError(t, err)

	write, ok := dev.Descriptor(img.DescriptorSet())
	require.True(t, ok)
	require.Equal(t, hal.TextureDescriptorWrite{
		Set:         img.DescriptorSet(),
		Bindings:    hal.TextureBindings{ImageBinding: 0, SamplerBinding: 1},
		View:        img.View(),
		Sampler:     img.Sampler(),
		ImageLayout: hal.ImageLayoutShaderReadOnlyOptimal,
	}, write)

	img.Release(dev)
	requireClean(t, dev)
}

func TestCreateTextureDescriptorWriteFailure(t *testing.T) {
	dev := haltest.New()
	dev.FailOn("UpdateTextureDescriptor", errors.New("invalid descriptor"))

	img, err := CreateTexture(fakeResources(dev), gradient(2, 2), 2, 2, hal.FilterNearest)
	require.Nil(t, img)
	require.True(t, errors.Is(err, ErrResourceCreationFailed))

	var creationErr *CreationError
	require.True(t, errors.As(err, &creationErr))
	require.Equal(t, StageDescriptorWrite, creationErr.Stage)
	requireClean(t, dev)
}

func TestCreateTextureRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name          string
		pixels        int
		width, height int
		kind          error
	}{
		{name: "ShortBuffer", pixels: 15, width: 2, height: 2, kind: ErrInvalidPixelBufferLength},
		{name: "LongBuffer", pixels: 17, width: 2, height: 2, kind: ErrInvalidPixelBufferLength},
		{name: "Empty", pixels: 0, width: 1, height: 1, kind: ErrInvalidPixelBufferLength},
		{name: "ZeroWidth", pixels: 0, width: 0, height: 4, kind: ErrInvalidDimensions},
		{name: "ZeroHeight", pixels: 0, width: 4, height: 0, kind: ErrInvalidDimensions},
		{name: "Negative", pixels: 16, width: -2, height: -2, kind: ErrInvalidDimensions},
		// width*height*4 wraps to 16 in int arithmetic.
		{name: "WidthBeyondExtent", pixels: 16, width: 1<<62 + 2, height: 2, kind: ErrInvalidDimensions},
		{name: "HeightBeyondExtent", pixels: 16, width: 2, height: 1 << 32, kind: ErrInvalidDimensions},
		// 2^31 * 2^31 * 4 wraps to 0 in int arithmetic.
		{name: "ProductOverflowsEmpty", pixels: 0, width: 1 << 31, height: 1 << 31, kind: ErrInvalidPixelBufferLength},
		{name: "ProductOverflowsShort", pixels: 16, width: 1 << 31, height: 1 << 31, kind: ErrInvalidPixelBufferLength},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dev := haltest.New()
			img, err := CreateTexture(fakeResources(dev), make([]byte, tc.pixels), tc.width, tc.height, hal.FilterNearest)
			require.Nil(t, img)
			require.True(t, errors.Is(err, tc.kind), "got %v", err)
			require.Empty(t, dev.Trace())
		})
	}
}

func TestPixelLengthMatches(t *testing.T) {
	require.True(t, pixelLengthMatches(16, 2, 2))
	require.False(t, pixelLengthMatches(15, 2, 2))
	require.True(t, pixelLengthMatches(4*math.MaxUint32, math.MaxUint32, 1))
	require.False(t, pixelLengthMatches(0, math.MaxUint32, math.MaxUint32))
}

func TestCreateTextureIncompleteResources(t *testing.T) {
	dev := haltest.New()
	res := fakeResources(dev)
	res.Queue = nil

	_, err := CreateTexture(res, gradient(1, 1), 1, 1, hal.FilterNearest)
	require.Error(t, err)
	require.Empty(t, dev.Trace())
}

func TestCreateTextureStagingFailure(t *testing.T) {
	dev := haltest.New()
	dev.FailOn("MapMemory", errors.New("map failed"))

	_, err := CreateTexture(fakeResources(dev), gradient(2, 2), 2, 2, hal.FilterNearest)
	require.True(t, errors.Is(err, ErrMapFailure))
	require.Zero(t, dev.Count("CreateImage"))
	requireClean(t, dev)
}

func TestCreateTextureReleasesStagingAfterFailedWait(t *testing.T) {
	dev := haltest.New()
	dev.FailOn("WaitForFence", errors.New("device lost"))

	_, err := CreateTexture(fakeResources(dev), gradient(2, 2), 2, 2, hal.FilterNearest)
	require.True(t, errors.Is(err, ErrFenceWaitFailed))

	var staging uint64
	for _, e := range dev.Trace() {
		if e.Op == "CreateBuffer" {
			staging = e.Handle
			break
		}
	}
	require.NotZero(t, staging)

	// Failed waits are not traced; the buffer goes after the submit it backed.
	submit := dev.Index("Submit", 0)
	release := dev.Index("DestroyBuffer", staging)
	require.NotEqual(t, -1, submit)
	require.Less(t, submit, release)
	require.Zero(t, dev.Count("WaitForFence"))
	requireClean(t, dev)
}

func TestReadPixelsOfReleasedImage(t *testing.T) {
	dev := haltest.New()
	res := fakeResources(dev)
	img, err := CreateTexture(res, gradient(2, 2), 2, 2, hal.FilterNearest)
	require.NoError(t, err)
	img.Release(dev)

	_, err = ReadPixels(res, img)
	require.Error(t, err)
	requireClean(t, dev)
}

func TestReadPixelsFailureKeepsImage(t *testing.T) {
	dev := haltest.New()
	res := fakeResources(dev)
	img, err := CreateTexture(res, gradient(2, 2), 2, 2, hal.FilterNearest)
	require.NoError(t, err)

	dev.FailOn("CopyImageToBuffer", errors.New("lost"))
	_, err = ReadPixels(res, img)
	require.True(t, errors.Is(err, ErrRecordingFailed))
	require.False(t, img.Released())
	require.Equal(t, 1, dev.Live(haltest.KindImage))
	require.Zero(t, dev.Live(haltest.KindBuffer))

	img.Release(dev)
	requireClean(t, dev)
}

func TestRendererHandleStability(t *testing.T) {
	dev := haltest.New()
	renderer := NewRenderer(fakeResources(dev))

	var images []*GpuImage
	for i := 0; i < 4; i++ {
		h, err := renderer.RegisterTexture(gradient(i+1, 2), i+1, 2)
		require.NoError(t, err)
		require.Equal(t, Handle(i), h)

		img, ok := renderer.Texture(h)
		require.True(t, ok)
		images = append(images, img)
	}
	require.Equal(t, 4, renderer.TextureCount())

	for i, want := range images {
		got, ok := renderer.Texture(Handle(i))
		require.True(t, ok)
		require.Same(t, want, got)
		require.Equal(t, i+1, got.Width())
	}

	_, ok := renderer.Texture(4)
	require.False(t, ok)
	_, ok = renderer.Texture(-1)
	require.False(t, ok)

	renderer.Destroy()
	require.Zero(t, renderer.TextureCount())
	requireClean(t, dev)
}

func TestRendererFailedRegistrationUsesNoHandle(t *testing.T) {
	dev := haltest.New()
	renderer := NewRenderer(fakeResources(dev))

	h, err := renderer.RegisterTexture(gradient(1, 1), 1, 1)
	require.NoError(t, err)
	require.Equal(t, Handle(0), h)

	h, err = renderer.RegisterTexture(make([]byte, 3), 1, 1)
	require.Error(t, err)
	require.Equal(t, Handle(-1), h)

	h, err = renderer.RegisterTexture(gradient(1, 1), 1, 1)
	require.NoError(t, err)
	require.Equal(t, Handle(1), h)

	renderer.Destroy()
	requireClean(t, dev)
}

func TestRendererFilters(t *testing.T) {
	dev := haltest.New()
	renderer := NewRenderer(fakeResources(dev))
	require.Equal(t, hal.FilterNearest, renderer.Filter)

	nearest, err := renderer.RegisterTexture(gradient(2, 2), 2, 2)
	require.NoError(t, err)
	linear, err := renderer.RegisterTextureWithFilter(gradient(2, 2), 2, 2, hal.FilterLinear)
	require.NoError(t, err)

	img, _ := renderer.Texture(nearest)
	info, _ := dev.Sampler(img.Sampler())
	require.Equal(t, hal.FilterNearest, info.MagFilter)

	img, _ = renderer.Texture(linear)
	info, _ = dev.Sampler(img.Sampler())
	require.Equal(t, hal.FilterLinear, info.MagFilter)
	require.Equal(t, hal.FilterLinear, info.MinFilter)

	renderer.Destroy()
	requireClean(t, dev)
}

func TestRendererRegisterRGBASubImage(t *testing.T) {
	dev := haltest.New()
	renderer := NewRenderer(fakeResources(dev))

	full := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			full.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	sub := full.SubImage(image.Rect(1, 1, 3, 4)).(*image.RGBA)

	h, err := renderer.RegisterRGBA(sub)
	require.NoError(t, err)

	img, ok := renderer.Texture(h)
	require.True(t, ok)
	require.Equal(t, 2, img.Width())
	require.Equal(t, 3, img.Height())

	read, err := ReadPixels(renderer.Resources, img)
	require.NoError(t, err)

	var want []byte
	for y := 1; y < 4; y++ {
		for x := 1; x < 3; x++ {
			want = append(want, uint8(x), uint8(y), 0x80, 0xff)
		}
	}
	require.Equal(t, want, read)

	renderer.Destroy()
	requireClean(t, dev)
}

func TestPackRGBAReusesTightBuffer(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	packed := packRGBA(img)
	require.Len(t, packed, 3*2*4)
	require.Same(t, &img.Pix[0], &packed[0])
}
