package texture

import "github.com/vkngwrapper/textures/hal"

// Handle identifies a registered texture. Handles are issued in order starting
// at 0 and stay valid until the registry is released.
type Handle int

// Registry is an append-only table of uploaded textures. Textures live until
// the owner releases the whole registry at shutdown.
type Registry struct {
	images []*GpuImage
}

func (r *Registry) Register(img *GpuImage) Handle {
	r.images = append(r.images, img)
	return Handle(len(r.images) - 1)
}

func (r *Registry) Get(h Handle) (*GpuImage, bool) {
	if h < 0 || int(h) >= len(r.images) {
		return nil, false
	}
	return r.images[h], true
}

func (r *Registry) Len() int {
	return len(r.images)
}

// Release releases every registered image in handle order and empties the
// registry. Handles issued before the call are no longer valid.
func (r *Registry) Release(device hal.Device) {
	for _, img := range r.images {
		img.Release(device)
	}
	r.images = nil
}
