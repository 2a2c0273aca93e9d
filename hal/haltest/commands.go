package haltest

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/textures/hal"
)

type commandBufferState int

const (
	commandBufferInitial commandBufferState = iota
	commandBufferRecording
	commandBufferExecutable
	commandBufferSubmitted
)

// CommandBuffer records commands and replays them against its device's
// simulated memory when submitted.
type CommandBuffer struct {
	device   *Device
	handle   uint64
	state    commandBufferState
	commands []func() error
}

var _ hal.CommandBuffer = (*CommandBuffer)(nil)

func (c *CommandBuffer) Handle() uint64 { return c.handle }

func (d *Device) AllocateCommandBuffer() (hal.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	buf := &CommandBuffer{device: d, handle: d.handle()}
	d.commandBuffers[buf.handle] = buf
	d.record("AllocateCommandBuffer", buf.handle)
	return buf, nil
}

func (d *Device) FreeCommandBuffer(buffer hal.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := buffer.(*CommandBuffer)
	if !ok || d.commandBuffers[buf.handle] != buf {
		d.violate("free unknown command buffer %v", buffer)
		return
	}
	delete(d.commandBuffers, buf.handle)
	d.record("FreeCommandBuffer", buf.handle)
}

func (c *CommandBuffer) begin(op string) error {
	d := c.device
	d.mu.Lock()
	if err := d.fail(op); err != nil {
		d.mu.Unlock()
		return err
	}
	if c.state != commandBufferRecording {
		d.violate("%s on command buffer %d outside recording", op, c.handle)
		d.mu.Unlock()
		return errors.Newf("haltest: command buffer %d is not recording", c.handle)
	}
	d.record(op, c.handle)
	d.mu.Unlock()
	return nil
}

func (c *CommandBuffer) Begin() error {
	d := c.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("Begin"); err != nil {
		return err
	}
	if c.state != commandBufferInitial {
		d.violate("begin command buffer %d twice", c.handle)
		return errors.Newf("haltest: command buffer %d already begun", c.handle)
	}
	c.state = commandBufferRecording
	d.record("Begin", c.handle)
	return nil
}

func (c *CommandBuffer) PipelineBarrier(srcStage, dstStage hal.PipelineStageFlags, barriers ...hal.ImageMemoryBarrier) error {
	err := c.begin("PipelineBarrier")
	if err != nil {
		return err
	}
	c.commands = append(c.commands, func() error {
		return c.device.executeBarriers(srcStage, dstStage, barriers)
	})
	return nil
}

func (c *CommandBuffer) CopyBufferToImage(src hal.Buffer, dst hal.Image, dstLayout hal.ImageLayout, regions ...hal.BufferImageCopy) error {
	err := c.begin("CopyBufferToImage")
	if err != nil {
		return err
	}
	c.commands = append(c.commands, func() error {
		return c.device.executeCopy(src, dst, dstLayout, regions, true)
	})
	return nil
}

func (c *CommandBuffer) CopyImageToBuffer(src hal.Image, srcLayout hal.ImageLayout, dst hal.Buffer, regions ...hal.BufferImageCopy) error {
	err := c.begin("CopyImageToBuffer")
	if err != nil {
		return err
	}
	c.commands = append(c.commands, func() error {
		return c.device.executeCopy(dst, src, srcLayout, regions, false)
	})
	return nil
}

func (c *CommandBuffer) End() error {
	err := c.begin("End")
	if err != nil {
		return err
	}
	c.device.mu.Lock()
	c.state = commandBufferExecutable
	c.device.mu.Unlock()
	return nil
}

// Submit runs every command synchronously and signals fence afterwards.
func (d *Device) Submit(fence hal.Fence, buffers ...hal.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("Submit"); err != nil {
		return err
	}

	for _, buffer := range buffers {
		buf, ok := buffer.(*CommandBuffer)
		if !ok || d.commandBuffers[buf.handle] != buf {
			return errors.Newf("haltest: submit unknown command buffer %v", buffer)
		}
		if buf.state != commandBufferExecutable {
			d.violate("submit command buffer %d that is not executable", buf.handle)
			return errors.Newf("haltest: command buffer %d is not executable", buf.handle)
		}
	}
	if fence.Initialized() {
		signaled, ok := d.fences[fence]
		if !ok {
			return errors.Newf("haltest: submit with unknown fence %d", fence)
		}
		if signaled {
			d.violate("submit with fence %d already signaled", fence)
		}
	}

	for _, buffer := range buffers {
		buf := buffer.(*CommandBuffer)
		buf.state = commandBufferSubmitted
		d.record("Submit", buf.handle)
		for _, command := range buf.commands {
			err := command()
			if err != nil {
				d.violate("%v", err)
				return err
			}
		}
	}

	if fence.Initialized() {
		d.fences[fence] = true
	}
	return nil
}

func (d *Device) executeBarriers(srcStage, dstStage hal.PipelineStageFlags, barriers []hal.ImageMemoryBarrier) error {
	for _, barrier := range barriers {
		img, ok := d.images[barrier.Image]
		if !ok {
			return errors.Newf("haltest: barrier on unknown image %d", barrier.Image)
		}
		if !img.memory.Initialized() {
			return errors.Newf("haltest: barrier on unbound image %d", barrier.Image)
		}
		if barrier.OldLayout == hal.ImageLayoutUndefined {
			fill(img.texels)
		} else if barrier.OldLayout != img.layout {
			return errors.Newf("haltest: barrier expects image %d in %s but it is in %s", barrier.Image, barrier.OldLayout, img.layout)
		}
		if barrier.SubresourceRange.LevelCount < 1 || barrier.SubresourceRange.LayerCount < 1 {
			return errors.Newf("haltest: barrier on image %d covers no subresources", barrier.Image)
		}
		if srcStage == 0 || dstStage == 0 {
			return errors.Newf("haltest: barrier on image %d has an empty stage mask", barrier.Image)
		}
		img.layout = barrier.NewLayout
	}
	return nil
}

// executeCopy moves texels between a buffer and an image. toImage selects the
// direction. Buffer rows are BufferRowLength texels apart.
func (d *Device) executeCopy(buf hal.Buffer, img hal.Image, layout hal.ImageLayout, regions []hal.BufferImageCopy, toImage bool) error {
	b, ok := d.buffers[buf]
	if !ok || !b.memory.Initialized() {
		return errors.Newf("haltest: copy with unknown or unbound buffer %d", buf)
	}
	i, ok := d.images[img]
	if !ok || !i.memory.Initialized() {
		return errors.Newf("haltest: copy with unknown or unbound image %d", img)
	}
	if i.layout != layout {
		return errors.Newf("haltest: copy says image %d is in %s but it is in %s", img, layout, i.layout)
	}

	if toImage {
		if layout != hal.ImageLayoutTransferDstOptimal {
			return errors.Newf("haltest: copy into image %d in %s", img, layout)
		}
		if b.usage&hal.BufferUsageTransferSrc == 0 || i.info.Usage&hal.ImageUsageTransferDst == 0 {
			return errors.Newf("haltest: copy buffer %d to image %d without transfer usage", buf, img)
		}
	} else {
		if layout != hal.ImageLayoutTransferSrcOptimal {
			return errors.Newf("haltest: copy out of image %d in %s", img, layout)
		}
		if b.usage&hal.BufferUsageTransferDst == 0 || i.info.Usage&hal.ImageUsageTransferSrc == 0 {
			return errors.Newf("haltest: copy image %d to buffer %d without transfer usage", img, buf)
		}
	}

	data := d.memories[b.memory].data[b.offset : b.offset+b.size]
	imageWidth := i.info.Extent.Width
	imageHeight := i.info.Extent.Height

	for _, region := range regions {
		extent := region.ImageExtent
		rowLength := region.BufferRowLength
		if rowLength == 0 {
			rowLength = extent.Width
		}
		if rowLength < extent.Width {
			return errors.Newf("haltest: buffer row length %d shorter than extent width %d", rowLength, extent.Width)
		}
		if region.ImageOffset.X+extent.Width > imageWidth || region.ImageOffset.Y+extent.Height > imageHeight {
			return errors.Newf("haltest: region %+v outside image %d", region, img)
		}
		last := region.BufferOffset + ((extent.Height-1)*rowLength+extent.Width)*4
		if extent.Height > 0 && last > len(data) {
			return errors.Newf("haltest: region reads %d bytes of buffer %d holding %d", last, buf, len(data))
		}

		rowBytes := extent.Width * 4
		for y := 0; y < extent.Height; y++ {
			bufStart := region.BufferOffset + y*rowLength*4
			imgStart := ((region.ImageOffset.Y+y)*imageWidth + region.ImageOffset.X) * 4
			if toImage {
				copy(i.texels[imgStart:imgStart+rowBytes], data[bufStart:bufStart+rowBytes])
			} else {
				copy(data[bufStart:bufStart+rowBytes], i.texels[imgStart:imgStart+rowBytes])
			}
		}
	}
	return nil
}
