package texture

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/textures/hal"
	"github.com/vkngwrapper/textures/hal/haltest"
)

func newStaging(t *testing.T, dev *haltest.Device, layout RowLayout) *StagingBuffer {
	t.Helper()
	staging, err := NewStagingBuffer(nil, dev, dev, layout.RequiredBytes(), hal.BufferUsageTransferSrc)
	require.NoError(t, err)
	return staging
}

func TestStagingWriteRowsPadding(t *testing.T) {
	dev := haltest.New()
	layout := NewRowLayout(2, 2, 256)
	staging := newStaging(t, dev, layout)
	require.Equal(t, 512, staging.Size())

	pixels := []byte{
		1, 2, 3, 4, 5, 6, 7, 8,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	require.NoError(t, staging.WriteRows(pixels, layout))
	require.False(t, staging.Mapped())

	contents := dev.BufferContents(staging.Buffer())
	require.Len(t, contents, 512)
	require.Equal(t, pixels[:8], contents[0:8])
	require.Equal(t, pixels[8:], contents[256:264])
	for i, b := range contents {
		if (i >= 8 && i < 256) || i >= 264 {
			require.Equal(t, haltest.Sentinel, b, "padding byte %d was written", i)
		}
	}

	require.Equal(t, 1, dev.Count("MapMemory"))
	require.Equal(t, 1, dev.Count("FlushMappedMemory"))
	require.Equal(t, 1, dev.Count("UnmapMemory"))

	staging.Release(dev)
	require.True(t, staging.Released())
	requireClean(t, dev)
}

func TestStagingWriteRowsUnpadded(t *testing.T) {
	dev := haltest.New()
	dev.SetAlignment(4)
	layout := NewRowLayout(3, 2, 4)
	staging := newStaging(t, dev, layout)

	pixels := gradient(3, 2)
	require.NoError(t, staging.WriteRows(pixels, layout))
	require.Equal(t, pixels, dev.BufferContents(staging.Buffer()))

	staging.Release(dev)
	requireClean(t, dev)
}

func TestStagingReadRows(t *testing.T) {
	dev := haltest.New()
	layout := NewRowLayout(5, 3, 64)
	staging := newStaging(t, dev, layout)

	pixels := gradient(5, 3)
	require.NoError(t, staging.WriteRows(pixels, layout))

	read, err := staging.ReadRows(layout)
	require.NoError(t, err)
	require.Equal(t, pixels, read)
	require.False(t, staging.Mapped())

	staging.Release(dev)
	requireClean(t, dev)
}

func TestStagingWriteRowsShortPixels(t *testing.T) {
	dev := haltest.New()
	layout := NewRowLayout(2, 2, 256)
	staging := newStaging(t, dev, layout)

	err := staging.WriteRows(make([]byte, 15), layout)
	require.True(t, errors.Is(err, ErrInvalidPixelBufferLength))
	require.Zero(t, dev.Count("MapMemory"))

	staging.Release(dev)
	requireClean(t, dev)
}

func TestStagingWriteRowsMapFailure(t *testing.T) {
	dev := haltest.New()
	layout := NewRowLayout(2, 2, 256)
	staging := newStaging(t, dev, layout)
	dev.FailOn("MapMemory", errors.New("memory map failed"))

	err := staging.WriteRows(gradient(2, 2), layout)
	require.True(t, errors.Is(err, ErrMapFailure))
	require.False(t, staging.Mapped())

	staging.Release(dev)
	requireClean(t, dev)
}

func TestStagingWriteRowsFlushFailureStillUnmaps(t *testing.T) {
	dev := haltest.New()
	layout := NewRowLayout(2, 2, 256)
	staging := newStaging(t, dev, layout)
	dev.FailOn("FlushMappedMemory", errors.New("device lost"))

	err := staging.WriteRows(gradient(2, 2), layout)
	require.True(t, errors.Is(err, ErrUnmapFailure))
	require.False(t, staging.Mapped())
	require.Equal(t, 1, dev.Count("UnmapMemory"))

	staging.Release(dev)
	requireClean(t, dev)
}

func TestStagingCreateBufferFailure(t *testing.T) {
	dev := haltest.New()
	dev.FailOn("CreateBuffer", errors.New("out of host memory"))

	staging, err := NewStagingBuffer(nil, dev, dev, 512, hal.BufferUsageTransferSrc)
	require.Nil(t, staging)
	require.True(t, errors.Is(err, ErrResourceCreationFailed))

	var creationErr *CreationError
	require.True(t, errors.As(err, &creationErr))
	require.Equal(t, StageBuffer, creationErr.Stage)
	requireClean(t, dev)
}

func TestStagingBindFailure(t *testing.T) {
	dev := haltest.New()
	dev.FailOn("BindBufferMemory", errors.New("bind failed"))

	_, err := NewStagingBuffer(nil, dev, dev, 512, hal.BufferUsageTransferSrc)
	require.True(t, errors.Is(err, ErrBindFailed))
	require.Equal(t, 1, dev.Count("FreeMemory"))
	require.Equal(t, 1, dev.Count("DestroyBuffer"))
	requireClean(t, dev)
}

func TestStagingReleaseOnForeignDevicePanics(t *testing.T) {
	dev := haltest.New()
	staging := newStaging(t, dev, NewRowLayout(1, 1, 4))

	require.Panics(t, func() {
		staging.Release(haltest.New())
	})

	staging.Release(dev)
	require.Panics(t, func() {
		staging.Release(dev)
	})
	requireClean(t, dev)
}
