package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/textures/hal"
)

// DescriptorAllocator hands out one set per texture from a pool created with
// the free-descriptor-set flag, so sets can be returned individually.
type DescriptorAllocator struct {
	device   *Device
	pool     core1_0.DescriptorPool
	layout   core1_0.DescriptorSetLayout
	bindings hal.TextureBindings
}

var _ hal.DescriptorAllocator = (*DescriptorAllocator)(nil)

func NewDescriptorAllocator(device *Device, pool core1_0.DescriptorPool, layout core1_0.DescriptorSetLayout, bindings hal.TextureBindings) *DescriptorAllocator {
	return &DescriptorAllocator{device: device, pool: pool, layout: layout, bindings: bindings}
}

func (a *DescriptorAllocator) AllocateDescriptorSet() (hal.DescriptorSet, error) {
	sets, _, err := a.device.driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: a.pool,
		SetLayouts:     []core1_0.DescriptorSetLayout{a.layout},
	})
	if err != nil {
		return 0, err
	}
	return hal.DescriptorSet(a.device.sets.add(sets[0])), nil
}

func (a *DescriptorAllocator) FreeDescriptorSet(set hal.DescriptorSet) error {
	vkSet, ok := a.device.sets.remove(uint64(set))
	if !ok {
		return errors.Newf("free unknown descriptor set %d", set)
	}
	_, err := a.device.driver.FreeDescriptorSets(vkSet)
	return err
}

func (a *DescriptorAllocator) Bindings() hal.TextureBindings {
	return a.bindings
}

// textureSetLayoutBindings is the layout a texture set is written against:
// either one combined image sampler, or a sampled image and a sampler.
func textureSetLayoutBindings(bindings hal.TextureBindings) []core1_0.DescriptorSetLayoutBinding {
	if bindings.Combined {
		return []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         bindings.ImageBinding,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,

				StageFlags: core1_0.StageFragment,
			},
		}
	}

	return []core1_0.DescriptorSetLayoutBinding{
		{
			Binding:         bindings.ImageBinding,
			DescriptorType:  core1_0.DescriptorTypeSampledImage,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		},
		{
			Binding:         bindings.SamplerBinding,
			DescriptorType:  core1_0.DescriptorTypeSampler,
			DescriptorCount: 1,

			StageFlags: core1_0.StageFragment,
		},
	}
}

func texturePoolSizes(bindings hal.TextureBindings, maxSets int) []core1_0.DescriptorPoolSize {
	if bindings.Combined {
		return []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: maxSets,
			},
		}
	}

	return []core1_0.DescriptorPoolSize{
		{
			Type:            core1_0.DescriptorTypeSampledImage,
			DescriptorCount: maxSets,
		},
		{
			Type:            core1_0.DescriptorTypeSampler,
			DescriptorCount: maxSets,
		},
	}
}
