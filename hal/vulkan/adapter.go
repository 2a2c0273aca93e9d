package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/textures/hal"
)

// Adapter is a snapshot of the physical device properties the texture core
// reads. Memory topology and limits do not change for the life of a device.
type Adapter struct {
	physicalDevice core1_0.PhysicalDevice
	name           string

	memoryTypes         []hal.MemoryType
	vkMemoryTypes       []core1_0.MemoryType
	limits              hal.Limits
	nonCoherentAtomSize int
}

var _ hal.Adapter = (*Adapter)(nil)

func NewAdapter(instanceDriver core1_0.CoreInstanceDriver, physicalDevice core1_0.PhysicalDevice) (*Adapter, error) {
	properties, err := instanceDriver.GetPhysicalDeviceProperties(physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "get physical device properties")
	}
	memoryProps := instanceDriver.GetPhysicalDeviceMemoryProperties(physicalDevice)

	adapter := &Adapter{
		physicalDevice: physicalDevice,
		name:           properties.DeviceName,
		vkMemoryTypes:  memoryProps.MemoryTypes,
		limits: hal.Limits{
			OptimalBufferCopyRowPitchAlignment: properties.Limits.OptimalBufferCopyRowPitchAlignment,
		},
		nonCoherentAtomSize: properties.Limits.NonCoherentAtomSize,
	}
	for _, memoryType := range memoryProps.MemoryTypes {
		adapter.memoryTypes = append(adapter.memoryTypes, hal.MemoryType{
			PropertyFlags: memoryProperties(memoryType.PropertyFlags),
			HeapIndex:     memoryType.HeapIndex,
		})
	}
	return adapter, nil
}

func (a *Adapter) PhysicalDevice() core1_0.PhysicalDevice { return a.physicalDevice }

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) MemoryTypes() []hal.MemoryType { return a.memoryTypes }

func (a *Adapter) Limits() hal.Limits { return a.limits }

func (a *Adapter) coherent(memoryTypeIndex int) bool {
	if memoryTypeIndex < 0 || memoryTypeIndex >= len(a.vkMemoryTypes) {
		return false
	}
	return a.vkMemoryTypes[memoryTypeIndex].PropertyFlags&core1_0.MemoryPropertyHostCoherent != 0
}
