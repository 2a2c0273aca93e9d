package texture

// BytesPerTexel is the size of one R8G8B8A8 texel.
const BytesPerTexel = 4

// RowLayout describes how an image's rows sit in a linear staging buffer.
//
// RowSize is the logical byte length of one row. RowPitch is the byte stride
// between rows once padded to the device copy alignment. BufferWidth is the
// stride expressed in texels, which is what the copy command is told about;
// it differs from Width whenever padding occurs.
type RowLayout struct {
	Width       int
	Height      int
	RowSize     int
	RowPitch    int
	BufferWidth int
}

// NewRowLayout computes the staging layout for a width x height RGBA8 image
// given the device's optimal buffer copy row pitch alignment.
func NewRowLayout(width, height, alignment int) RowLayout {
	rowSize := width * BytesPerTexel
	rowPitch := alignUp(rowSize, copyPitchAlignment(alignment))

	return RowLayout{
		Width:       width,
		Height:      height,
		RowSize:     rowSize,
		RowPitch:    rowPitch,
		BufferWidth: rowPitch / BytesPerTexel,
	}
}

// RequiredBytes is the staging buffer size that holds every padded row.
func (l RowLayout) RequiredBytes() int {
	return l.RowPitch * l.Height
}

// Padded reports whether rows carry alignment padding.
func (l RowLayout) Padded() bool {
	return l.RowPitch > l.RowSize
}

// PixelBytes is the tightly packed size of the image.
func (l RowLayout) PixelBytes() int {
	return l.RowSize * l.Height
}

// copyPitchAlignment keeps the pitch a whole number of texels, so a device
// alignment that is not a multiple of the texel size is widened to one.
func copyPitchAlignment(alignment int) int {
	if alignment <= 0 {
		alignment = 1
	}
	return alignment / gcd(alignment, BytesPerTexel) * BytesPerTexel
}

func alignUp(value, alignment int) int {
	if value%alignment != 0 {
		return value + alignment - (value % alignment)
	}
	return value
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
