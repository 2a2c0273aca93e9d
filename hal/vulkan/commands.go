package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/textures/hal"
)

type CommandPool struct {
	device *Device
	pool   core1_0.CommandPool
}

var _ hal.CommandPool = (*CommandPool)(nil)

func NewCommandPool(device *Device, pool core1_0.CommandPool) *CommandPool {
	return &CommandPool{device: device, pool: pool}
}

func (p *CommandPool) AllocateCommandBuffer() (hal.CommandBuffer, error) {
	buffers, _, err := p.device.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{device: p.device, buffer: buffers[0]}, nil
}

func (p *CommandPool) FreeCommandBuffer(buffer hal.CommandBuffer) {
	cmd, ok := buffer.(*CommandBuffer)
	if !ok {
		return
	}
	p.device.driver.FreeCommandBuffers(cmd.buffer)
}

// CommandBuffer records into a primary command buffer. Handles passed to it
// must belong to the same Device.
type CommandBuffer struct {
	device *Device
	buffer core1_0.CommandBuffer
}

var _ hal.CommandBuffer = (*CommandBuffer)(nil)

func (c *CommandBuffer) Begin() error {
	_, err := c.device.driver.BeginCommandBuffer(c.buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return err
}

func (c *CommandBuffer) PipelineBarrier(srcStage, dstStage hal.PipelineStageFlags, barriers ...hal.ImageMemoryBarrier) error {
	imageBarriers := make([]core1_0.ImageMemoryBarrier, 0, len(barriers))
	for _, barrier := range barriers {
		image, ok := c.device.images.get(uint64(barrier.Image))
		if !ok {
			return errors.Newf("barrier on unknown image %d", barrier.Image)
		}
		imageBarriers = append(imageBarriers, core1_0.ImageMemoryBarrier{
			OldLayout:           imageLayout(barrier.OldLayout),
			NewLayout:           imageLayout(barrier.NewLayout),
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange:    subresourceRange(barrier.SubresourceRange),
			SrcAccessMask:       accessFlags(barrier.SrcAccessMask),
			DstAccessMask:       accessFlags(barrier.DstAccessMask),
		})
	}

	return c.device.driver.CmdPipelineBarrier(c.buffer, pipelineStages(srcStage), pipelineStages(dstStage), 0, nil, nil, imageBarriers)
}

func (c *CommandBuffer) CopyBufferToImage(src hal.Buffer, dst hal.Image, dstLayout hal.ImageLayout, regions ...hal.BufferImageCopy) error {
	buffer, ok := c.device.buffers.get(uint64(src))
	if !ok {
		return errors.Newf("copy from unknown buffer %d", src)
	}
	image, ok := c.device.images.get(uint64(dst))
	if !ok {
		return errors.Newf("copy to unknown image %d", dst)
	}
	return c.device.driver.CmdCopyBufferToImage(c.buffer, buffer, image, imageLayout(dstLayout), bufferImageCopies(regions)...)
}

func (c *CommandBuffer) CopyImageToBuffer(src hal.Image, srcLayout hal.ImageLayout, dst hal.Buffer, regions ...hal.BufferImageCopy) error {
	image, ok := c.device.images.get(uint64(src))
	if !ok {
		return errors.Newf("copy from unknown image %d", src)
	}
	buffer, ok := c.device.buffers.get(uint64(dst))
	if !ok {
		return errors.Newf("copy to unknown buffer %d", dst)
	}
	return c.device.driver.CmdCopyImageToBuffer(c.buffer, image, imageLayout(srcLayout), buffer, bufferImageCopies(regions)...)
}

func (c *CommandBuffer) End() error {
	_, err := c.device.driver.EndCommandBuffer(c.buffer)
	return err
}

type Queue struct {
	device *Device
	queue  core1_0.Queue
}

var _ hal.Queue = (*Queue)(nil)

func NewQueue(device *Device, queue core1_0.Queue) *Queue {
	return &Queue{device: device, queue: queue}
}

func (q *Queue) Submit(fence hal.Fence, buffers ...hal.CommandBuffer) error {
	var vkFence *core1_0.Fence
	if fence.Initialized() {
		f, ok := q.device.fences.get(uint64(fence))
		if !ok {
			return errors.Newf("submit with unknown fence %d", fence)
		}
		vkFence = &f
	}

	commandBuffers := make([]core1_0.CommandBuffer, 0, len(buffers))
	for _, buffer := range buffers {
		cmd, ok := buffer.(*CommandBuffer)
		if !ok {
			return errors.Newf("submit of foreign command buffer %T", buffer)
		}
		commandBuffers = append(commandBuffers, cmd.buffer)
	}

	_, err := q.device.driver.QueueSubmit(q.queue, vkFence,
		core1_0.SubmitInfo{
			CommandBuffers: commandBuffers,
		},
	)
	return err
}
