package texture

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/textures/hal"
)

// SelectMemoryType returns the first memory type index that is allowed by
// typeBits and has every property in required. Memory topology is fixed for
// the life of the device, so a miss is final.
func SelectMemoryType(types []hal.MemoryType, typeBits uint32, required hal.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range types {
		if i >= 32 {
			break
		}
		typeBit := uint32(1) << i

		if (typeBits&typeBit) != 0 && (memoryType.PropertyFlags&required) == required {
			return i, nil
		}
	}

	return 0, errors.Mark(
		errors.Newf("no memory type in mask %#x has properties %s", typeBits, required),
		ErrNoCompatibleMemoryType)
}

// allocateAndBind allocates memory of the given type sized to requirements and
// binds it through bind. If the bind fails the allocation is freed before the
// error is returned.
func allocateAndBind(
	logger *slog.Logger,
	device hal.Device,
	memoryTypeIndex int,
	requirements hal.MemoryRequirements,
	bind func(memory hal.DeviceMemory) error,
) (hal.DeviceMemory, error) {
	memory, err := device.AllocateMemory(hal.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return 0, markf(err, ErrAllocationFailed, "allocate %d bytes from memory type %d", requirements.Size, memoryTypeIndex)
	}

	err = bind(memory)
	if err != nil {
		device.FreeMemory(memory)
		return 0, markf(err, ErrBindFailed, "bind memory type %d", memoryTypeIndex)
	}

	logger.Debug("allocated device memory",
		slog.Int("MemoryTypeIndex", memoryTypeIndex),
		slog.Int("Size", requirements.Size))
	return memory, nil
}
