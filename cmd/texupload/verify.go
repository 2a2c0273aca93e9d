package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// comparePixels reports the first texel at which got differs from want.
func comparePixels(want, got []byte, width int) error {
	if len(want) != len(got) {
		return errors.Newf("read back %d bytes, uploaded %d", len(got), len(want))
	}

	for i := range want {
		if want[i] != got[i] {
			texel := i / 4
			return errors.Newf("texel (%d, %d) differs: uploaded %v, read back %v",
				texel%width, texel/width, want[texel*4:texel*4+4], got[texel*4:texel*4+4])
		}
	}
	return nil
}

// writePNG writes tightly packed RGBA pixels to dir, named after the source
// file and the registry index so repeated sources do not collide.
func writePNG(dir string, index int, source string, width, height int, pixels []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	filename := filepath.Join(dir, fmt.Sprintf("%03d_%s.png", index, base))

	outImg := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	writeFile, err := os.Create(filename)
	if err != nil {
		return "", err
	}

	if err := png.Encode(writeFile, outImg); err != nil {
		writeFile.Close()
		return "", errors.Wrapf(err, "encode %s", filename)
	}
	return filename, writeFile.Close()
}
