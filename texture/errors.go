package texture

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrResourceCreationFailed     = errors.New("resource creation failed")
	ErrNoCompatibleMemoryType     = errors.New("no compatible memory type")
	ErrAllocationFailed           = errors.New("memory allocation failed")
	ErrBindFailed                 = errors.New("memory bind failed")
	ErrMapFailure                 = errors.New("could not map staging memory")
	ErrUnmapFailure               = errors.New("could not flush staging memory")
	ErrRecordingFailed            = errors.New("command recording failed")
	ErrSubmissionFailed           = errors.New("queue submission failed")
	ErrFenceWaitFailed            = errors.New("fence wait failed")
	ErrDescriptorAllocationFailed = errors.New("descriptor set allocation failed")
	ErrInvalidPixelBufferLength   = errors.New("pixel buffer length does not match width*height*4")
	ErrInvalidDimensions          = errors.New("texture dimensions must be positive")
)

// Stage identifies which device object failed to be created.
type Stage int

const (
	StageImage Stage = iota
	StageBuffer
	StageImageView
	StageSampler
	StageFence
	StageCommandBuffer
	StageDescriptorWrite
)

var stageNames = [...]string{
	StageImage:           "image",
	StageBuffer:          "buffer",
	StageImageView:       "image view",
	StageSampler:         "sampler",
	StageFence:           "fence",
	StageCommandBuffer:   "command buffer",
	StageDescriptorWrite: "descriptor write",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// CreationError reports that the device rejected creation of an object.
// It matches ErrResourceCreationFailed under errors.Is.
type CreationError struct {
	Stage Stage
	Err   error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s: %v", e.Stage, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

func (e *CreationError) Is(target error) bool { return target == ErrResourceCreationFailed }

func creationFailed(stage Stage, err error) error {
	return errors.WithStack(errors.Mark(&CreationError{Stage: stage, Err: err}, ErrResourceCreationFailed))
}

// markf wraps err with a message and tags it with kind so errors.Is(err, kind) holds.
func markf(err error, kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), kind)
}
