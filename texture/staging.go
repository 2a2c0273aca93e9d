package texture

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/textures/hal"
)

// StagingBuffer is a host-visible, host-coherent buffer holding one image's
// worth of padded rows. It is consumed by exactly one copy and released right
// after the fence for that copy has signaled.
type StagingBuffer struct {
	buffer       Owned[hal.Buffer]
	memory       Owned[hal.DeviceMemory]
	requirements hal.MemoryRequirements
	size         int

	// mapped is only non-nil between MapMemory and UnmapMemory.
	mapped []byte
	device hal.Device
	logger *slog.Logger
}

// NewStagingBuffer creates a buffer of at least requiredBytes with the given
// usage and backs it with host-visible, host-coherent memory.
func NewStagingBuffer(logger *slog.Logger, adapter hal.Adapter, device hal.Device, requiredBytes int, usage hal.BufferUsageFlags) (*StagingBuffer, error) {
	if logger == nil {
		logger = Logger()
	}

	buffer, err := device.CreateBuffer(hal.BufferCreateInfo{
		Size:  requiredBytes,
		Usage: usage,
	})
	if err != nil {
		return nil, creationFailed(StageBuffer, err)
	}

	requirements := device.BufferMemoryRequirements(buffer)
	memoryTypeIndex, err := SelectMemoryType(adapter.MemoryTypes(), requirements.MemoryTypeBits,
		hal.MemoryPropertyHostVisible|hal.MemoryPropertyHostCoherent)
	if err != nil {
		device.DestroyBuffer(buffer)
		return nil, err
	}

	memory, err := allocateAndBind(logger, device, memoryTypeIndex, requirements, func(memory hal.DeviceMemory) error {
		return device.BindBufferMemory(buffer, memory, 0)
	})
	if err != nil {
		device.DestroyBuffer(buffer)
		return nil, err
	}

	logger.Debug("created staging buffer", slog.Int("Size", requiredBytes), slog.Int("AllocationSize", requirements.Size))

	return &StagingBuffer{
		buffer:       Own(buffer),
		memory:       Own(memory),
		requirements: requirements,
		size:         requiredBytes,
		device:       device,
		logger:       logger,
	}, nil
}

func (s *StagingBuffer) Buffer() hal.Buffer { return s.buffer.Peek() }

// Size is the requested buffer size in bytes.
func (s *StagingBuffer) Size() int { return s.size }

func (s *StagingBuffer) Mapped() bool { return s.mapped != nil }

func (s *StagingBuffer) Released() bool { return !s.buffer.Held() }

// WriteRows copies tightly packed rows from pixels into the buffer at
// layout.RowPitch intervals. Bytes between RowSize and RowPitch in each row are
// left as they were.
func (s *StagingBuffer) WriteRows(pixels []byte, layout RowLayout) error {
	if len(pixels) < layout.PixelBytes() {
		return errors.Mark(
			errors.Newf("have %d pixel bytes, layout needs %d", len(pixels), layout.PixelBytes()),
			ErrInvalidPixelBufferLength)
	}
	if layout.RequiredBytes() > s.size {
		return errors.AssertionFailedf("staging buffer holds %d bytes, layout needs %d", s.size, layout.RequiredBytes())
	}

	err := s.mapWhole()
	if err != nil {
		return err
	}

	for y := 0; y < layout.Height; y++ {
		row := pixels[y*layout.RowSize : (y+1)*layout.RowSize]
		destBase := y * layout.RowPitch
		copy(s.mapped[destBase:destBase+len(row)], row)
	}

	return s.flushAndUnmap()
}

// ReadRows maps the buffer and returns its rows tightly packed, dropping the
// padding between RowSize and RowPitch.
func (s *StagingBuffer) ReadRows(layout RowLayout) ([]byte, error) {
	if layout.RequiredBytes() > s.size {
		return nil, errors.AssertionFailedf("staging buffer holds %d bytes, layout needs %d", s.size, layout.RequiredBytes())
	}

	err := s.mapWhole()
	if err != nil {
		return nil, err
	}
	defer s.unmap()

	pixels := make([]byte, layout.PixelBytes())
	for y := 0; y < layout.Height; y++ {
		srcBase := y * layout.RowPitch
		copy(pixels[y*layout.RowSize:(y+1)*layout.RowSize], s.mapped[srcBase:srcBase+layout.RowSize])
	}
	return pixels, nil
}

func (s *StagingBuffer) mapWhole() error {
	mapped, err := s.device.MapMemory(s.memory.Peek(), 0, s.requirements.Size)
	if err != nil {
		return markf(err, ErrMapFailure, "map %d bytes of staging memory", s.requirements.Size)
	}
	s.mapped = mapped
	return nil
}

func (s *StagingBuffer) flushAndUnmap() error {
	err := s.device.FlushMappedMemory(s.memory.Peek(), 0, s.requirements.Size)
	s.unmap()
	if err != nil {
		return markf(err, ErrUnmapFailure, "flush staging memory")
	}
	return nil
}

func (s *StagingBuffer) unmap() {
	s.device.UnmapMemory(s.memory.Peek())
	s.mapped = nil
}

// Release destroys the buffer and frees its memory. It must be called exactly
// once, on the device that created the buffer, after any copy reading from it
// has completed.
func (s *StagingBuffer) Release(device hal.Device) {
	if device != s.device {
		panic("texture: staging buffer released on a different device")
	}
	if s.mapped != nil {
		s.unmap()
	}

	device.DestroyBuffer(Take(&s.buffer))
	device.FreeMemory(Take(&s.memory))
	s.logger.Debug("released staging buffer", slog.Int("Size", s.size))
}
