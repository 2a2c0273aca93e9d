// Package haltest provides an in-memory hal backend for tests.
//
// A Device implements every hal collaborator at once. It keeps a trace of the
// calls made against it, counts the objects still alive, simulates device
// memory and image contents, and validates that barriers and copies are issued
// against images in the right layout. Failures can be injected per operation.
package haltest

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/textures/hal"
)

// Sentinel is the byte freshly allocated memory and discarded image contents
// are filled with.
const Sentinel byte = 0xCD

// Kind names a class of device object for live counts.
type Kind string

const (
	KindImage         Kind = "Image"
	KindBuffer        Kind = "Buffer"
	KindDeviceMemory  Kind = "DeviceMemory"
	KindImageView     Kind = "ImageView"
	KindSampler       Kind = "Sampler"
	KindFence         Kind = "Fence"
	KindDescriptorSet Kind = "DescriptorSet"
	KindCommandBuffer Kind = "CommandBuffer"
)

// Event is one successful call made against the device.
type Event struct {
	Op     string
	Handle uint64
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%d)", e.Op, e.Handle)
}

type failure struct {
	skip int
	err  error
}

type memory struct {
	data      []byte
	typeIndex int
	mapped    bool
	boundTo   uint64
}

type buffer struct {
	size   int
	usage  hal.BufferUsageFlags
	memory hal.DeviceMemory
	offset int
}

type image struct {
	info   hal.ImageCreateInfo
	memory hal.DeviceMemory
	layout hal.ImageLayout
	texels []byte
}

// Device is a fake adapter, device, command pool, queue and descriptor
// allocator sharing one object table. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	types     []hal.MemoryType
	alignment int
	bindings  hal.TextureBindings

	nextHandle uint64
	trace      []Event
	failures   map[string]failure
	violations []string

	memories       map[hal.DeviceMemory]*memory
	buffers        map[hal.Buffer]*buffer
	images         map[hal.Image]*image
	views          map[hal.ImageView]hal.Image
	samplers       map[hal.Sampler]hal.SamplerCreateInfo
	fences         map[hal.Fence]bool
	sets           map[hal.DescriptorSet]*hal.TextureDescriptorWrite
	commandBuffers map[uint64]*CommandBuffer
}

var (
	_ hal.Adapter             = (*Device)(nil)
	_ hal.Device              = (*Device)(nil)
	_ hal.CommandPool         = (*Device)(nil)
	_ hal.Queue               = (*Device)(nil)
	_ hal.DescriptorAllocator = (*Device)(nil)
)

// DefaultMemoryTypes are a device-local type, a host-visible coherent type and
// a type that is both.
func DefaultMemoryTypes() []hal.MemoryType {
	return []hal.MemoryType{
		{PropertyFlags: hal.MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: hal.MemoryPropertyHostVisible | hal.MemoryPropertyHostCoherent, HeapIndex: 1},
		{PropertyFlags: hal.MemoryPropertyDeviceLocal | hal.MemoryPropertyHostVisible | hal.MemoryPropertyHostCoherent, HeapIndex: 0},
	}
}

const (
	// Images may live in types 0 and 2, buffers in types 1 and 2.
	imageMemoryTypeBits  uint32 = 0b101
	bufferMemoryTypeBits uint32 = 0b110

	imageMemoryAlignment  = 256
	bufferMemoryAlignment = 16
)

// New returns a device with DefaultMemoryTypes, a copy row pitch alignment of
// 256 and separate image and sampler bindings at 0 and 1.
func New() *Device {
	return &Device{
		types:          DefaultMemoryTypes(),
		alignment:      256,
		bindings:       hal.TextureBindings{ImageBinding: 0, SamplerBinding: 1},
		failures:       make(map[string]failure),
		memories:       make(map[hal.DeviceMemory]*memory),
		buffers:        make(map[hal.Buffer]*buffer),
		images:         make(map[hal.Image]*image),
		views:          make(map[hal.ImageView]hal.Image),
		samplers:       make(map[hal.Sampler]hal.SamplerCreateInfo),
		fences:         make(map[hal.Fence]bool),
		sets:           make(map[hal.DescriptorSet]*hal.TextureDescriptorWrite),
		commandBuffers: make(map[uint64]*CommandBuffer),
	}
}

func (d *Device) SetMemoryTypes(types []hal.MemoryType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.types = types
}

func (d *Device) SetAlignment(alignment int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alignment = alignment
}

func (d *Device) SetBindings(bindings hal.TextureBindings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bindings = bindings
}

// FailOn makes every following call to op fail with err. op is the method
// name, e.g. "CreateSampler" or "Submit".
func (d *Device) FailOn(op string, err error) {
	d.FailAfter(op, 0, err)
}

// FailAfter lets the next n calls to op succeed and fails every call after.
func (d *Device) FailAfter(op string, n int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = failure{skip: n, err: err}
}

func (d *Device) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = make(map[string]failure)
}

func (d *Device) fail(op string) error {
	f, ok := d.failures[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		d.failures[op] = f
		return nil
	}
	return errors.Wrapf(f.err, "haltest: %s", op)
}

func (d *Device) record(op string, handle uint64) {
	d.trace = append(d.trace, Event{Op: op, Handle: handle})
}

func (d *Device) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) handle() uint64 {
	d.nextHandle++
	return d.nextHandle
}

// Trace returns a copy of every successful call so far.
func (d *Device) Trace() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.trace...)
}

// Index returns the position in the trace of the first call to op on handle,
// or -1. A zero handle matches any handle.
func (d *Device) Index(op string, handle uint64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.trace {
		if e.Op == op && (handle == 0 || e.Handle == handle) {
			return i
		}
	}
	return -1
}

// Count returns how many successful calls to op were made.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.trace {
		if e.Op == op {
			n++
		}
	}
	return n
}

// Violations lists every misuse the device detected, such as freeing bound
// memory or copying into an image in the wrong layout.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

func (d *Device) Live(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live(kind)
}

func (d *Device) live(kind Kind) int {
	switch kind {
	case KindImage:
		return len(d.images)
	case KindBuffer:
		return len(d.buffers)
	case KindDeviceMemory:
		return len(d.memories)
	case KindImageView:
		return len(d.views)
	case KindSampler:
		return len(d.samplers)
	case KindFence:
		return len(d.fences)
	case KindDescriptorSet:
		return len(d.sets)
	case KindCommandBuffer:
		return len(d.commandBuffers)
	}
	return 0
}

// LiveCounts returns the number of live objects for every kind that has any.
func (d *Device) LiveCounts() map[Kind]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	counts := make(map[Kind]int)
	for _, kind := range []Kind{KindImage, KindBuffer, KindDeviceMemory, KindImageView, KindSampler, KindFence, KindDescriptorSet, KindCommandBuffer} {
		if n := d.live(kind); n > 0 {
			counts[kind] = n
		}
	}
	return counts
}

// ImageLayout returns the layout img was left in by the last executed barrier.
func (d *Device) ImageLayout(img hal.Image) (hal.ImageLayout, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.images[img]
	if !ok {
		return hal.ImageLayoutUndefined, false
	}
	return i.layout, true
}

// ImageTexels returns a copy of img's tightly packed contents.
func (d *Device) ImageTexels(img hal.Image) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.images[img]
	if !ok {
		return nil
	}
	return append([]byte(nil), i.texels...)
}

// BufferContents returns a copy of the memory bound to buf.
func (d *Device) BufferContents(buf hal.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	if !ok || !b.memory.Initialized() {
		return nil
	}
	mem := d.memories[b.memory]
	return append([]byte(nil), mem.data[b.offset:b.offset+b.size]...)
}

// Descriptor returns the last write made to set.
func (d *Device) Descriptor(set hal.DescriptorSet) (hal.TextureDescriptorWrite, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.sets[set]
	if w == nil {
		return hal.TextureDescriptorWrite{}, false
	}
	return *w, true
}

// Sampler returns the create info of a live sampler.
func (d *Device) Sampler(sampler hal.Sampler) (hal.SamplerCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.samplers[sampler]
	return info, ok
}

func (d *Device) MemoryTypes() []hal.MemoryType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]hal.MemoryType(nil), d.types...)
}

func (d *Device) Limits() hal.Limits {
	d.mu.Lock()
	defer d.mu.Unlock()
	return hal.Limits{OptimalBufferCopyRowPitchAlignment: d.alignment}
}

func (d *Device) CreateImage(info hal.ImageCreateInfo) (hal.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImage"); err != nil {
		return 0, err
	}
	if info.Extent.Width <= 0 || info.Extent.Height <= 0 || info.Extent.Depth != 1 {
		return 0, errors.Newf("haltest: invalid image extent %+v", info.Extent)
	}
	if info.InitialLayout != hal.ImageLayoutUndefined {
		d.violate("image created in layout %s", info.InitialLayout)
	}

	h := hal.Image(d.handle())
	texels := make([]byte, info.Extent.Width*info.Extent.Height*4)
	fill(texels)
	d.images[h] = &image{info: info, layout: info.InitialLayout, texels: texels}
	d.record("CreateImage", uint64(h))
	return h, nil
}

func (d *Device) DestroyImage(img hal.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[img]; !ok {
		d.violate("destroy unknown image %d", img)
		return
	}
	for view, target := range d.views {
		if target == img {
			d.violate("destroy image %d while view %d is alive", img, view)
		}
	}
	delete(d.images, img)
	d.record("DestroyImage", uint64(img))
}

func (d *Device) ImageMemoryRequirements(img hal.Image) hal.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.images[img]
	if !ok {
		d.violate("memory requirements of unknown image %d", img)
		return hal.MemoryRequirements{}
	}
	return hal.MemoryRequirements{
		Size:           alignUp(len(i.texels), imageMemoryAlignment),
		Alignment:      imageMemoryAlignment,
		MemoryTypeBits: imageMemoryTypeBits,
	}
}

func (d *Device) BindImageMemory(img hal.Image, mem hal.DeviceMemory, offset int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("BindImageMemory"); err != nil {
		return err
	}
	i, ok := d.images[img]
	if !ok {
		return errors.Newf("haltest: bind unknown image %d", img)
	}
	m, ok := d.memories[mem]
	if !ok {
		return errors.Newf("haltest: bind unknown memory %d", mem)
	}
	if i.memory.Initialized() {
		return errors.Newf("haltest: image %d already bound", img)
	}
	if imageMemoryTypeBits&(1<<m.typeIndex) == 0 {
		d.violate("image %d bound to incompatible memory type %d", img, m.typeIndex)
	}
	if offset+alignUp(len(i.texels), imageMemoryAlignment) > len(m.data) {
		return errors.Newf("haltest: memory %d too small for image %d", mem, img)
	}
	i.memory = mem
	m.boundTo = uint64(img)
	d.record("BindImageMemory", uint64(img))
	return nil
}

func (d *Device) CreateBuffer(info hal.BufferCreateInfo) (hal.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateBuffer"); err != nil {
		return 0, err
	}
	if info.Size <= 0 {
		return 0, errors.Newf("haltest: invalid buffer size %d", info.Size)
	}
	h := hal.Buffer(d.handle())
	d.buffers[h] = &buffer{size: info.Size, usage: info.Usage}
	d.record("CreateBuffer", uint64(h))
	return h, nil
}

func (d *Device) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buf]; !ok {
		d.violate("destroy unknown buffer %d", buf)
		return
	}
	delete(d.buffers, buf)
	d.record("DestroyBuffer", uint64(buf))
}

func (d *Device) BufferMemoryRequirements(buf hal.Buffer) hal.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	if !ok {
		d.violate("memory requirements of unknown buffer %d", buf)
		return hal.MemoryRequirements{}
	}
	return hal.MemoryRequirements{
		Size:           alignUp(b.size, bufferMemoryAlignment),
		Alignment:      bufferMemoryAlignment,
		MemoryTypeBits: bufferMemoryTypeBits,
	}
}

func (d *Device) BindBufferMemory(buf hal.Buffer, mem hal.DeviceMemory, offset int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("BindBufferMemory"); err != nil {
		return err
	}
	b, ok := d.buffers[buf]
	if !ok {
		return errors.Newf("haltest: bind unknown buffer %d", buf)
	}
	m, ok := d.memories[mem]
	if !ok {
		return errors.Newf("haltest: bind unknown memory %d", mem)
	}
	if b.memory.Initialized() {
		return errors.Newf("haltest: buffer %d already bound", buf)
	}
	if bufferMemoryTypeBits&(1<<m.typeIndex) == 0 {
		d.violate("buffer %d bound to incompatible memory type %d", buf, m.typeIndex)
	}
	if offset+b.size > len(m.data) {
		return errors.Newf("haltest: memory %d too small for buffer %d", mem, buf)
	}
	b.memory = mem
	b.offset = offset
	m.boundTo = uint64(buf)
	d.record("BindBufferMemory", uint64(buf))
	return nil
}

func (d *Device) AllocateMemory(info hal.MemoryAllocateInfo) (hal.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateMemory"); err != nil {
		return 0, err
	}
	if info.MemoryTypeIndex < 0 || info.MemoryTypeIndex >= len(d.types) {
		return 0, errors.Newf("haltest: memory type %d out of range", info.MemoryTypeIndex)
	}
	if info.AllocationSize <= 0 {
		return 0, errors.Newf("haltest: invalid allocation size %d", info.AllocationSize)
	}
	h := hal.DeviceMemory(d.handle())
	data := make([]byte, info.AllocationSize)
	fill(data)
	d.memories[h] = &memory{data: data, typeIndex: info.MemoryTypeIndex}
	d.record("AllocateMemory", uint64(h))
	return h, nil
}

func (d *Device) FreeMemory(mem hal.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memories[mem]
	if !ok {
		d.violate("free unknown memory %d", mem)
		return
	}
	if _, ok := d.images[hal.Image(m.boundTo)]; ok {
		d.violate("free memory %d while image %d is alive", mem, m.boundTo)
	}
	if _, ok := d.buffers[hal.Buffer(m.boundTo)]; ok {
		d.violate("free memory %d while buffer %d is alive", mem, m.boundTo)
	}
	delete(d.memories, mem)
	d.record("FreeMemory", uint64(mem))
}

func (d *Device) MapMemory(mem hal.DeviceMemory, offset, size int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("MapMemory"); err != nil {
		return nil, err
	}
	m, ok := d.memories[mem]
	if !ok {
		return nil, errors.Newf("haltest: map unknown memory %d", mem)
	}
	if d.types[m.typeIndex].PropertyFlags&hal.MemoryPropertyHostVisible == 0 {
		return nil, errors.Newf("haltest: memory %d is not host visible", mem)
	}
	if m.mapped {
		return nil, errors.Newf("haltest: memory %d is already mapped", mem)
	}
	if offset < 0 || size <= 0 || offset+size > len(m.data) {
		return nil, errors.Newf("haltest: map range [%d, %d) outside memory %d of %d bytes", offset, offset+size, mem, len(m.data))
	}
	m.mapped = true
	d.record("MapMemory", uint64(mem))
	return m.data[offset : offset+size : offset+size], nil
}

func (d *Device) FlushMappedMemory(mem hal.DeviceMemory, offset, size int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("FlushMappedMemory"); err != nil {
		return err
	}
	m, ok := d.memories[mem]
	if !ok || !m.mapped {
		d.violate("flush memory %d that is not mapped", mem)
		return errors.Newf("haltest: memory %d is not mapped", mem)
	}
	d.record("FlushMappedMemory", uint64(mem))
	return nil
}

func (d *Device) UnmapMemory(mem hal.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memories[mem]
	if !ok || !m.mapped {
		d.violate("unmap memory %d that is not mapped", mem)
		return
	}
	m.mapped = false
	d.record("UnmapMemory", uint64(mem))
}

func (d *Device) CreateImageView(info hal.ImageViewCreateInfo) (hal.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateImageView"); err != nil {
		return 0, err
	}
	i, ok := d.images[info.Image]
	if !ok {
		return 0, errors.Newf("haltest: view of unknown image %d", info.Image)
	}
	if !i.memory.Initialized() {
		d.violate("view created over unbound image %d", info.Image)
	}
	if info.Format != i.info.Format {
		d.violate("view format %s does not match image format %s", info.Format, i.info.Format)
	}
	h := hal.ImageView(d.handle())
	d.views[h] = info.Image
	d.record("CreateImageView", uint64(h))
	return h, nil
}

func (d *Device) DestroyImageView(view hal.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.views[view]; !ok {
		d.violate("destroy unknown image view %d", view)
		return
	}
	delete(d.views, view)
	d.record("DestroyImageView", uint64(view))
}

func (d *Device) CreateSampler(info hal.SamplerCreateInfo) (hal.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateSampler"); err != nil {
		return 0, err
	}
	h := hal.Sampler(d.handle())
	d.samplers[h] = info
	d.record("CreateSampler", uint64(h))
	return h, nil
}

func (d *Device) DestroySampler(sampler hal.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.samplers[sampler]; !ok {
		d.violate("destroy unknown sampler %d", sampler)
		return
	}
	delete(d.samplers, sampler)
	d.record("DestroySampler", uint64(sampler))
}

func (d *Device) CreateFence(signaled bool) (hal.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("CreateFence"); err != nil {
		return 0, err
	}
	h := hal.Fence(d.handle())
	d.fences[h] = signaled
	d.record("CreateFence", uint64(h))
	return h, nil
}

// WaitForFence fails instead of blocking when the fence can never signal.
func (d *Device) WaitForFence(fence hal.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("WaitForFence"); err != nil {
		return err
	}
	signaled, ok := d.fences[fence]
	if !ok {
		return errors.Newf("haltest: wait on unknown fence %d", fence)
	}
	if !signaled {
		d.violate("wait on fence %d that was never submitted", fence)
		return errors.Newf("haltest: fence %d would never signal", fence)
	}
	d.record("WaitForFence", uint64(fence))
	return nil
}

func (d *Device) DestroyFence(fence hal.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[fence]; !ok {
		d.violate("destroy unknown fence %d", fence)
		return
	}
	delete(d.fences, fence)
	d.record("DestroyFence", uint64(fence))
}

func (d *Device) UpdateTextureDescriptor(write hal.TextureDescriptorWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("UpdateTextureDescriptor"); err != nil {
		return err
	}
	if _, ok := d.sets[write.Set]; !ok {
		return errors.Newf("haltest: write to unknown descriptor set %d", write.Set)
	}
	img, ok := d.views[write.View]
	if !ok {
		return errors.Newf("haltest: write of unknown image view %d", write.View)
	}
	if _, ok := d.samplers[write.Sampler]; !ok {
		return errors.Newf("haltest: write of unknown sampler %d", write.Sampler)
	}
	if layout := d.images[img].layout; layout != write.ImageLayout {
		d.violate("descriptor says image %d is in %s but it is in %s", img, write.ImageLayout, layout)
	}
	d.sets[write.Set] = &write
	d.record("UpdateTextureDescriptor", uint64(write.Set))
	return nil
}

func (d *Device) AllocateDescriptorSet() (hal.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail("AllocateDescriptorSet"); err != nil {
		return 0, err
	}
	h := hal.DescriptorSet(d.handle())
	d.sets[h] = nil
	d.record("AllocateDescriptorSet", uint64(h))
	return h, nil
}

func (d *Device) FreeDescriptorSet(set hal.DescriptorSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sets[set]; !ok {
		d.violate("free unknown descriptor set %d", set)
		return errors.Newf("haltest: free unknown descriptor set %d", set)
	}
	// The set is gone even when the free reports an error.
	delete(d.sets, set)
	if err := d.fail("FreeDescriptorSet"); err != nil {
		return err
	}
	d.record("FreeDescriptorSet", uint64(set))
	return nil
}

func (d *Device) Bindings() hal.TextureBindings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bindings
}

func fill(data []byte) {
	for i := range data {
		data[i] = Sentinel
	}
}

func alignUp(value, alignment int) int {
	if value%alignment != 0 {
		return value + alignment - (value % alignment)
	}
	return value
}
