package texture

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/textures/hal"
)

// ReadPixels copies img back into host memory and returns its texels tightly
// packed, width*height*4 bytes. The image is returned to ShaderReadOnlyOptimal
// before the call completes.
func ReadPixels(res Resources, img *GpuImage) ([]byte, error) {
	if img.Released() {
		return nil, errors.AssertionFailedf("read back a released image")
	}
	err := res.validate()
	if err != nil {
		return nil, err
	}

	layout := NewRowLayout(img.Width(), img.Height(), res.Adapter.Limits().OptimalBufferCopyRowPitchAlignment)
	staging, err := NewStagingBuffer(res.logger(), res.Adapter, res.Device, layout.RequiredBytes(), hal.BufferUsageTransferDst)
	if err != nil {
		return nil, errors.Wrap(err, "create readback buffer")
	}
	defer staging.Release(res.Device)

	pre, err := transition(hal.ImageLayoutShaderReadOnlyOptimal, hal.ImageLayoutTransferSrcOptimal)
	if err != nil {
		return nil, err
	}
	post, err := transition(hal.ImageLayoutTransferSrcOptimal, hal.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return nil, err
	}

	image := img.Image()
	t := &transfer{
		logger:  img.logger,
		device:  res.Device,
		pool:    res.CommandPool,
		queue:   res.Queue,
		image:   image,
		pre:     pre,
		post:    post,
		observe: res.ObserveTransfer,
		copy: func(cmd hal.CommandBuffer) error {
			return cmd.CopyImageToBuffer(image, pre.newLayout, staging.Buffer(), copyRegion(layout))
		},
	}

	err = t.run()
	if err != nil {
		return nil, errors.Wrap(err, "read back image")
	}

	return staging.ReadRows(layout)
}
