package texture

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/textures/hal"
)

// TransferState is the position of a one-shot transfer in its linear
// lifecycle. A transfer only ever moves to the next state or fails.
type TransferState int

const (
	TransferInitial TransferState = iota
	TransferRecording
	TransferPreCopyBarrier
	TransferCopied
	TransferPostCopyBarrier
	TransferFinished
	TransferSubmitted
	TransferCompleted
	TransferReclaimed
)

var transferStateNames = [...]string{
	TransferInitial:         "Initial",
	TransferRecording:       "Recording",
	TransferPreCopyBarrier:  "PreCopyBarrier",
	TransferCopied:          "Copied",
	TransferPostCopyBarrier: "PostCopyBarrier",
	TransferFinished:        "Finished",
	TransferSubmitted:       "Submitted",
	TransferCompleted:       "Completed",
	TransferReclaimed:       "Reclaimed",
}

func (s TransferState) String() string {
	if int(s) < len(transferStateNames) {
		return transferStateNames[s]
	}
	return fmt.Sprintf("TransferState(%d)", int(s))
}

// layoutTransition is one image layout change together with the access masks
// and pipeline stages that order it against surrounding work.
type layoutTransition struct {
	oldLayout, newLayout hal.ImageLayout
	srcAccess, dstAccess hal.AccessFlags
	srcStage, dstStage   hal.PipelineStageFlags
}

func transition(oldLayout, newLayout hal.ImageLayout) (layoutTransition, error) {
	t := layoutTransition{oldLayout: oldLayout, newLayout: newLayout}

	switch {
	case oldLayout == hal.ImageLayoutUndefined && newLayout == hal.ImageLayoutTransferDstOptimal:
		t.srcAccess = 0
		t.dstAccess = hal.AccessTransferWrite
		t.srcStage = hal.PipelineStageTopOfPipe
		t.dstStage = hal.PipelineStageTransfer
	case oldLayout == hal.ImageLayoutTransferDstOptimal && newLayout == hal.ImageLayoutShaderReadOnlyOptimal:
		t.srcAccess = hal.AccessTransferWrite
		t.dstAccess = hal.AccessShaderRead
		t.srcStage = hal.PipelineStageTransfer
		t.dstStage = hal.PipelineStageFragmentShader
	case oldLayout == hal.ImageLayoutShaderReadOnlyOptimal && newLayout == hal.ImageLayoutTransferSrcOptimal:
		t.srcAccess = hal.AccessShaderRead
		t.dstAccess = hal.AccessTransferRead
		t.srcStage = hal.PipelineStageFragmentShader
		t.dstStage = hal.PipelineStageTransfer
	case oldLayout == hal.ImageLayoutTransferSrcOptimal && newLayout == hal.ImageLayoutShaderReadOnlyOptimal:
		t.srcAccess = hal.AccessTransferRead
		t.dstAccess = hal.AccessShaderRead
		t.srcStage = hal.PipelineStageTransfer
		t.dstStage = hal.PipelineStageFragmentShader
	default:
		return t, errors.AssertionFailedf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	return t, nil
}

func (t layoutTransition) barrier(image hal.Image) hal.ImageMemoryBarrier {
	return hal.ImageMemoryBarrier{
		SrcAccessMask:    t.srcAccess,
		DstAccessMask:    t.dstAccess,
		OldLayout:        t.oldLayout,
		NewLayout:        t.newLayout,
		Image:            image,
		SubresourceRange: colorSubresourceRange,
	}
}

// transfer records barrier, copy, barrier into a single one-time command
// buffer, submits it with a fresh fence and blocks until the fence signals.
type transfer struct {
	logger  *slog.Logger
	device  hal.Device
	pool    hal.CommandPool
	queue   hal.Queue
	image   hal.Image
	pre     layoutTransition
	post    layoutTransition
	copy    func(cmd hal.CommandBuffer) error
	observe func(TransferState)

	state    TransferState
	cmd      hal.CommandBuffer
	fence    Owned[hal.Fence]
	duration time.Duration
}

func (t *transfer) advance(next TransferState) {
	if next != t.state+1 {
		panic(fmt.Sprintf("texture: illegal transfer transition %s -> %s", t.state, next))
	}
	t.state = next
	t.logger.Debug("transfer state", slog.String("State", next.String()))
	if t.observe != nil {
		t.observe(next)
	}
}

// run drives the transfer to TransferReclaimed. On failure the command buffer
// and any fence it created are still returned to the pool or destroyed; the
// caller's objects are never touched.
func (t *transfer) run() (err error) {
	defer func() {
		if err != nil {
			t.reclaim()
		}
	}()

	t.cmd, err = t.pool.AllocateCommandBuffer()
	if err != nil {
		return creationFailed(StageCommandBuffer, err)
	}

	err = t.cmd.Begin()
	if err != nil {
		return markf(err, ErrRecordingFailed, "begin command buffer")
	}
	t.advance(TransferRecording)

	err = t.cmd.PipelineBarrier(t.pre.srcStage, t.pre.dstStage, t.pre.barrier(t.image))
	if err != nil {
		return markf(err, ErrRecordingFailed, "record %s -> %s barrier", t.pre.oldLayout, t.pre.newLayout)
	}
	t.advance(TransferPreCopyBarrier)

	err = t.copy(t.cmd)
	if err != nil {
		return markf(err, ErrRecordingFailed, "record copy")
	}
	t.advance(TransferCopied)

	err = t.cmd.PipelineBarrier(t.post.srcStage, t.post.dstStage, t.post.barrier(t.image))
	if err != nil {
		return markf(err, ErrRecordingFailed, "record %s -> %s barrier", t.post.oldLayout, t.post.newLayout)
	}
	t.advance(TransferPostCopyBarrier)

	err = t.cmd.End()
	if err != nil {
		return markf(err, ErrRecordingFailed, "end command buffer")
	}
	t.advance(TransferFinished)

	fence, err := t.device.CreateFence(false)
	if err != nil {
		return creationFailed(StageFence, err)
	}
	t.fence = Own(fence)

	start := hrtime.Now()
	err = t.queue.Submit(fence, t.cmd)
	if err != nil {
		return markf(err, ErrSubmissionFailed, "submit transfer")
	}
	t.advance(TransferSubmitted)

	err = t.device.WaitForFence(fence)
	if err != nil {
		return markf(err, ErrFenceWaitFailed, "wait for transfer fence")
	}
	t.duration = hrtime.Since(start)
	t.advance(TransferCompleted)

	t.reclaim()
	t.advance(TransferReclaimed)
	return nil
}

func (t *transfer) reclaim() {
	if t.fence.Held() {
		t.device.DestroyFence(Take(&t.fence))
	}
	if t.cmd != nil {
		t.pool.FreeCommandBuffer(t.cmd)
		t.cmd = nil
	}
}

// uploadStaging copies the staging rows into image and leaves the image in
// ShaderReadOnlyOptimal. It returns only after the device has finished the
// copy, so the staging buffer may be released as soon as it returns.
func uploadStaging(res Resources, staging *StagingBuffer, image hal.Image, layout RowLayout) (time.Duration, error) {
	pre, err := transition(hal.ImageLayoutUndefined, hal.ImageLayoutTransferDstOptimal)
	if err != nil {
		return 0, err
	}
	post, err := transition(hal.ImageLayoutTransferDstOptimal, hal.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return 0, err
	}

	t := &transfer{
		logger:  res.logger(),
		device:  res.Device,
		pool:    res.CommandPool,
		queue:   res.Queue,
		image:   image,
		pre:     pre,
		post:    post,
		observe: res.ObserveTransfer,
		copy: func(cmd hal.CommandBuffer) error {
			return cmd.CopyBufferToImage(staging.Buffer(), image, pre.newLayout, copyRegion(layout))
		},
	}

	err = t.run()
	return t.duration, err
}

// copyRegion describes the whole image. BufferRowLength carries the padded
// pitch in texels while ImageExtent stays at the logical size, so padding
// bytes are never read as pixels. Padding never applies vertically.
func copyRegion(layout RowLayout) hal.BufferImageCopy {
	return hal.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   layout.BufferWidth,
		BufferImageHeight: layout.Height,
		ImageSubresource: hal.ImageSubresourceLayers{
			AspectMask:     hal.ImageAspectColor,
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: hal.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: hal.Extent3D{Width: layout.Width, Height: layout.Height, Depth: 1},
	}
}
