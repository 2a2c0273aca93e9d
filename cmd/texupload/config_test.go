package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/textures/hal"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "textures.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
validation = true
output_dir = "out"
verify = true

[[texture]]
path = "images/a.png"

[[texture]]
path = "/abs/b.webp"
filter = "Linear"
max_size = 256
`)

	manifest, err := loadManifest(path)
	require.NoError(t, err)

	require.True(t, manifest.Validation)
	require.True(t, manifest.Verify)
	require.Equal(t, "out", manifest.OutputDir)
	require.Len(t, manifest.Textures, 2)

	require.Equal(t, filepath.Join(filepath.Dir(path), "images", "a.png"), manifest.Textures[0].Path)
	require.Equal(t, hal.FilterNearest, hal.Filter(manifest.Textures[0].Filter))
	require.Zero(t, manifest.Textures[0].MaxSize)

	require.Equal(t, "/abs/b.webp", manifest.Textures[1].Path)
	require.Equal(t, hal.FilterLinear, hal.Filter(manifest.Textures[1].Filter))
	require.Equal(t, 256, manifest.Textures[1].MaxSize)
}

func TestLoadManifestErrors(t *testing.T) {
	testCases := []struct {
		name     string
		contents string
		message  string
	}{
		{
			name:     "no textures",
			contents: `verify = true`,
			message:  "lists no textures",
		},
		{
			name: "unknown filter",
			contents: `
[[texture]]
path = "a.png"
filter = "trilinear"
`,
			message: "unknown filter",
		},
		{
			name: "missing path",
			contents: `
[[texture]]
filter = "linear"
`,
			message: "has no path",
		},
		{
			name: "negative max size",
			contents: `
[[texture]]
path = "a.png"
max_size = -1
`,
			message: "max_size",
		},
		{
			name: "unknown field",
			contents: `
[[texture]]
path = "a.png"
mipmaps = true
`,
			message: "decode manifest",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadManifest(writeManifest(t, tc.contents))
			require.ErrorContains(t, err, tc.message)
		})
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := loadManifest(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, err, "read manifest")
}
