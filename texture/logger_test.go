package texture

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/textures/hal"
	"github.com/vkngwrapper/textures/hal/haltest"
)

func TestLoggerDefaultsToDisabled(t *testing.T) {
	require.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	dev := haltest.New()
	img, err := CreateTexture(fakeResources(dev), gradient(2, 2), 2, 2, hal.FilterNearest)
	require.NoError(t, err)
	img.Release(dev)

	out := buf.String()
	require.Contains(t, out, "uploaded texture")
	require.Contains(t, out, "RowPitch=256")
	require.Contains(t, out, "texture="+img.ID.String())
	require.Contains(t, out, "State=Reclaimed")

	SetLogger(nil)
	require.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}

func TestResourcesLoggerOverride(t *testing.T) {
	var buf bytes.Buffer
	dev := haltest.New()
	res := fakeResources(dev)
	res.Logger = slog.New(slog.NewJSONHandler(&buf, nil))

	img, err := CreateTexture(res, gradient(1, 1), 1, 1, hal.FilterNearest)
	require.NoError(t, err)
	img.Release(dev)

	require.Equal(t, 1, strings.Count(buf.String(), `"msg":"uploaded texture"`))
	require.NotContains(t, buf.String(), "transfer state")
}
