package vulkan

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/mocks"
	"github.com/vkngwrapper/textures/hal"
	"go.uber.org/mock/gomock"
)

var colorRange = hal.ImageSubresourceRange{
	AspectMask: hal.ImageAspectColor,
	LevelCount: 1,
	LayerCount: 1,
}

var vkColorRange = core1_0.ImageSubresourceRange{
	AspectMask: core1_0.ImageAspectColor,
	LevelCount: 1,
	LayerCount: 1,
}

func paddedRegion() hal.BufferImageCopy {
	return hal.BufferImageCopy{
		BufferRowLength: 64,
		ImageSubresource: hal.ImageSubresourceLayers{
			AspectMask: hal.ImageAspectColor,
			LayerCount: 1,
		},
		ImageExtent: hal.Extent3D{Width: 2, Height: 2, Depth: 1},
	}
}

func vkPaddedRegion() core1_0.BufferImageCopy {
	return core1_0.BufferImageCopy{
		BufferRowLength: 64,
		ImageSubresource: core1_0.ImageSubresourceLayers{
			AspectMask: core1_0.ImageAspectColor,
			LayerCount: 1,
		},
		ImageExtent: core1_0.Extent3D{Width: 2, Height: 2, Depth: 1},
	}
}

func TestOneShotUpload(t *testing.T) {
	driver, device, d := readyDevice(t, 1)

	mockImage := mocks.NewDummyImage(device)
	mockBuffer := mocks.NewDummyBuffer(device)
	image := hal.Image(d.images.add(mockImage))
	staging := hal.Buffer(d.buffers.add(mockBuffer))

	var vkPool core1_0.CommandPool
	var vkQueue core1_0.Queue
	var vkCmd core1_0.CommandBuffer
	var vkFence core1_0.Fence

	gomock.InOrder(
		driver.EXPECT().AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
			CommandPool:        vkPool,
			Level:              core1_0.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		}).Return([]core1_0.CommandBuffer{vkCmd}, core1_0.VKSuccess, nil),
		driver.EXPECT().BeginCommandBuffer(vkCmd, core1_0.CommandBufferBeginInfo{
			Flags: core1_0.CommandBufferUsageOneTimeSubmit,
		}).Return(core1_0.VKSuccess, nil),
		driver.EXPECT().CmdPipelineBarrier(vkCmd,
			core1_0.PipelineStageTopOfPipe, core1_0.PipelineStageTransfer,
			gomock.Any(), nil, nil,
			[]core1_0.ImageMemoryBarrier{
				{
					OldLayout:           core1_0.ImageLayoutUndefined,
					NewLayout:           core1_0.ImageLayoutTransferDstOptimal,
					SrcQueueFamilyIndex: -1,
					DstQueueFamilyIndex: -1,
					Image:               mockImage,
					SubresourceRange:    vkColorRange,
					DstAccessMask:       core1_0.AccessTransferWrite,
				},
			},
		).Return(nil),
		driver.EXPECT().CmdCopyBufferToImage(vkCmd, mockBuffer, mockImage, core1_0.ImageLayoutTransferDstOptimal, vkPaddedRegion()).Return(nil),
		driver.EXPECT().CmdPipelineBarrier(vkCmd,
			core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader,
			gomock.Any(), nil, nil,
			[]core1_0.ImageMemoryBarrier{
				{
					OldLayout:           core1_0.ImageLayoutTransferDstOptimal,
					NewLayout:           core1_0.ImageLayoutShaderReadOnlyOptimal,
					SrcQueueFamilyIndex: -1,
					DstQueueFamilyIndex: -1,
					Image:               mockImage,
					SubresourceRange:    vkColorRange,
					SrcAccessMask:       core1_0.AccessTransferWrite,
					DstAccessMask:       core1_0.AccessShaderRead,
				},
			},
		).Return(nil),
		driver.EXPECT().EndCommandBuffer(vkCmd).Return(core1_0.VKSuccess, nil),
		driver.EXPECT().CreateFence(gomock.Any(), core1_0.FenceCreateInfo{}).Return(vkFence, core1_0.VKSuccess, nil),
		driver.EXPECT().QueueSubmit(vkQueue, gomock.Any(), gomock.Any()).DoAndReturn(
			func(queue core1_0.Queue, fence *core1_0.Fence, submits ...core1_0.SubmitInfo) (common.VkResult, error) {
				require.NotNil(t, fence)
				require.Equal(t, vkFence, *fence)
				require.Len(t, submits, 1)
				require.Empty(t, submits[0].WaitSemaphores)
				require.Empty(t, submits[0].SignalSemaphores)
				require.Equal(t, []core1_0.CommandBuffer{vkCmd}, submits[0].CommandBuffers)
				return core1_0.VKSuccess, nil
			}),
		driver.EXPECT().WaitForFences(true, common.NoTimeout, vkFence).Return(core1_0.VKSuccess, nil),
		driver.EXPECT().DestroyFence(vkFence, nil),
		driver.EXPECT().FreeCommandBuffers(vkCmd),
	)

	pool := NewCommandPool(d, vkPool)
	queue := NewQueue(d, vkQueue)

	cmd, err := pool.AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.Begin())
	require.NoError(t, cmd.PipelineBarrier(hal.PipelineStageTopOfPipe, hal.PipelineStageTransfer, hal.ImageMemoryBarrier{
		DstAccessMask:    hal.AccessTransferWrite,
		OldLayout:        hal.ImageLayoutUndefined,
		NewLayout:        hal.ImageLayoutTransferDstOptimal,
		Image:            image,
		SubresourceRange: colorRange,
	}))
	require.NoError(t, cmd.CopyBufferToImage(staging, image, hal.ImageLayoutTransferDstOptimal, paddedRegion()))
	require.NoError(t, cmd.PipelineBarrier(hal.PipelineStageTransfer, hal.PipelineStageFragmentShader, hal.ImageMemoryBarrier{
		SrcAccessMask:    hal.AccessTransferWrite,
		DstAccessMask:    hal.AccessShaderRead,
		OldLayout:        hal.ImageLayoutTransferDstOptimal,
		NewLayout:        hal.ImageLayoutShaderReadOnlyOptimal,
		Image:            image,
		SubresourceRange: colorRange,
	}))
	require.NoError(t, cmd.End())

	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	require.NoError(t, queue.Submit(fence, cmd))
	require.NoError(t, d.WaitForFence(fence))
	d.DestroyFence(fence)
	pool.FreeCommandBuffer(cmd)

	// Only the image and buffer registered above remain.
	require.Equal(t, 2, d.LiveObjects())
}

func TestReadbackCopy(t *testing.T) {
	driver, device, d := readyDevice(t, 1)

	mockImage := mocks.NewDummyImage(device)
	mockBuffer := mocks.NewDummyBuffer(device)
	image := hal.Image(d.images.add(mockImage))
	readback := hal.Buffer(d.buffers.add(mockBuffer))

	var vkCmd core1_0.CommandBuffer
	driver.EXPECT().AllocateCommandBuffers(gomock.Any()).Return([]core1_0.CommandBuffer{vkCmd}, core1_0.VKSuccess, nil)
	driver.EXPECT().CmdCopyImageToBuffer(vkCmd, mockImage, core1_0.ImageLayoutTransferSrcOptimal, mockBuffer, vkPaddedRegion()).Return(nil)

	cmd, err := NewCommandPool(d, core1_0.CommandPool{}).AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.CopyImageToBuffer(image, hal.ImageLayoutTransferSrcOptimal, readback, paddedRegion()))
}

func TestCommandsRejectUnknownHandles(t *testing.T) {
	driver, _, d := readyDevice(t, 1)

	var vkCmd core1_0.CommandBuffer
	driver.EXPECT().AllocateCommandBuffers(gomock.Any()).Return([]core1_0.CommandBuffer{vkCmd}, core1_0.VKSuccess, nil)

	cmd, err := NewCommandPool(d, core1_0.CommandPool{}).AllocateCommandBuffer()
	require.NoError(t, err)

	err = cmd.PipelineBarrier(hal.PipelineStageTopOfPipe, hal.PipelineStageTransfer, hal.ImageMemoryBarrier{Image: hal.Image(5)})
	require.ErrorContains(t, err, "unknown image")

	err = cmd.CopyBufferToImage(hal.Buffer(5), hal.Image(5), hal.ImageLayoutTransferDstOptimal, paddedRegion())
	require.ErrorContains(t, err, "unknown buffer")

	err = cmd.CopyImageToBuffer(hal.Image(5), hal.ImageLayoutTransferSrcOptimal, hal.Buffer(5), paddedRegion())
	require.ErrorContains(t, err, "unknown image")

	err = NewQueue(d, core1_0.Queue{}).Submit(hal.Fence(5), cmd)
	require.ErrorContains(t, err, "unknown fence")
	require.ErrorContains(t, d.WaitForFence(hal.Fence(5)), "unknown fence")
}

func TestSubmitWithoutFence(t *testing.T) {
	driver, _, d := readyDevice(t, 1)

	var vkCmd core1_0.CommandBuffer
	driver.EXPECT().AllocateCommandBuffers(gomock.Any()).Return([]core1_0.CommandBuffer{vkCmd}, core1_0.VKSuccess, nil)
	driver.EXPECT().QueueSubmit(core1_0.Queue{}, nil, core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{vkCmd},
	}).Return(core1_0.VKSuccess, nil)

	cmd, err := NewCommandPool(d, core1_0.CommandPool{}).AllocateCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, NewQueue(d, core1_0.Queue{}).Submit(hal.Fence(0), cmd))
}

func TestDescriptorSetLifecycle(t *testing.T) {
	driver, _, d := readyDevice(t, 1)

	var vkPool core1_0.DescriptorPool
	var vkLayout core1_0.DescriptorSetLayout
	var vkSet core1_0.DescriptorSet
	var vkView core1_0.ImageView
	var vkSampler core1_0.Sampler
	bindings := hal.TextureBindings{ImageBinding: 0, Combined: true}

	driver.EXPECT().AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: vkPool,
		SetLayouts:     []core1_0.DescriptorSetLayout{vkLayout},
	}).Return([]core1_0.DescriptorSet{vkSet}, core1_0.VKSuccess, nil)
	driver.EXPECT().UpdateDescriptorSets(
		textureWrites(vkSet, bindings, vkView, vkSampler, core1_0.ImageLayoutShaderReadOnlyOptimal), nil,
	).Return(nil)
	driver.EXPECT().FreeDescriptorSets(vkSet).Return(core1_0.VKSuccess, nil)

	allocator := NewDescriptorAllocator(d, vkPool, vkLayout, bindings)
	set, err := allocator.AllocateDescriptorSet()
	require.NoError(t, err)
	require.True(t, set.Initialized())

	view := hal.ImageView(d.views.add(vkView))
	sampler := hal.Sampler(d.samplers.add(vkSampler))
	require.NoError(t, d.UpdateTextureDescriptor(hal.TextureDescriptorWrite{
		Set:         set,
		View:        view,
		Sampler:     sampler,
		Bindings:    bindings,
		ImageLayout: hal.ImageLayoutShaderReadOnlyOptimal,
	}))

	require.NoError(t, allocator.FreeDescriptorSet(set))
	require.ErrorContains(t, allocator.FreeDescriptorSet(set), "unknown descriptor set")
}
