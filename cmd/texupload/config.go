package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/vkngwrapper/textures/hal"
)

// Manifest is the TOML file listing the images to upload.
//
//	validation = true
//	output_dir = "out"
//	verify = true
//
//	[[texture]]
//	path = "images/a.png"
//	filter = "linear"
type Manifest struct {
	Validation bool           `toml:"validation"`
	OutputDir  string         `toml:"output_dir"`
	Verify     bool           `toml:"verify"`
	Textures   []TextureEntry `toml:"texture"`
}

type TextureEntry struct {
	Path   string `toml:"path"`
	Filter Filter `toml:"filter"`

	// MaxSize downscales images whose larger side exceeds it. Zero keeps the
	// source size.
	MaxSize int `toml:"max_size"`
}

// Filter is a sampler filter spelled "nearest" or "linear" in the manifest.
type Filter hal.Filter

func (f *Filter) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "nearest":
		*f = Filter(hal.FilterNearest)
	case "linear":
		*f = Filter(hal.FilterLinear)
	default:
		return errors.Newf("unknown filter %q", text)
	}
	return nil
}

func (f Filter) String() string { return hal.Filter(f).String() }

// loadManifest reads and validates a manifest. Relative texture paths are
// resolved against the manifest's directory.
func loadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "read manifest")
	}

	var manifest Manifest
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, errors.Wrapf(err, "decode manifest %s", path)
	}

	if len(manifest.Textures) == 0 {
		return Manifest{}, errors.Newf("manifest %s lists no textures", path)
	}

	base := filepath.Dir(path)
	for i := range manifest.Textures {
		entry := &manifest.Textures[i]
		if entry.Path == "" {
			return Manifest{}, errors.Newf("texture %d has no path", i)
		}
		if entry.MaxSize < 0 {
			return Manifest{}, errors.Newf("texture %s: max_size must not be negative", entry.Path)
		}
		if !filepath.IsAbs(entry.Path) {
			entry.Path = filepath.Join(base, entry.Path)
		}
	}

	return manifest, nil
}
