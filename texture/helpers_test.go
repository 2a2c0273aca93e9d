package texture

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/textures/hal/haltest"
)

func fakeResources(dev *haltest.Device) Resources {
	return Resources{
		Adapter:     dev,
		Device:      dev,
		CommandPool: dev,
		Queue:       dev,
		Descriptors: dev,
	}
}

// gradient returns width*height distinct-ish RGBA texels.
func gradient(width, height int) []byte {
	pixels := make([]byte, width*height*BytesPerTexel)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * BytesPerTexel
			pixels[i] = byte(x)
			pixels[i+1] = byte(y)
			pixels[i+2] = byte(x*7 + y*13)
			pixels[i+3] = 0xff
		}
	}
	return pixels
}

func requireClean(t *testing.T, dev *haltest.Device) {
	t.Helper()
	require.Empty(t, dev.LiveCounts())
	require.Empty(t, dev.Violations())
}
