package texture

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/textures/hal"
)

func TestTake(t *testing.T) {
	owned := Own(hal.Image(7))
	require.True(t, owned.Held())
	require.Equal(t, hal.Image(7), owned.Peek())

	require.Equal(t, hal.Image(7), Take(&owned))
	require.False(t, owned.Held())
	require.False(t, owned.Peek().Initialized())

	require.PanicsWithValue(t, "texture: handle taken twice", func() {
		Take(&owned)
	})
}

func TestTakeZeroValue(t *testing.T) {
	var owned Owned[hal.Sampler]
	require.False(t, owned.Held())
	require.Panics(t, func() {
		Take(&owned)
	})
}
