package main

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

type decoded struct {
	Entry TextureEntry
	Image *image.RGBA
}

// decodeAll decodes every entry into a tightly packed RGBA image, at most
// limit files at a time. Results keep manifest order.
func decodeAll(ctx context.Context, entries []TextureEntry, limit int) ([]decoded, error) {
	results := make([]decoded, len(entries))

	group, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for i, entry := range entries {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			img, err := decodeFile(entry.Path, entry.MaxSize)
			if err != nil {
				return err
			}
			results[i] = decoded{Entry: entry, Image: img}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeFile(path string, maxSize int) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer file.Close()

	src, format, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, errors.Newf("%s (%s) is empty", path, format)
	}

	return toRGBA(src, maxSize), nil
}

// toRGBA converts src to an RGBA image anchored at the origin, scaling it
// down when its larger side exceeds maxSize.
func toRGBA(src image.Image, maxSize int) *image.RGBA {
	bounds := src.Bounds()
	width, height := scaledSize(bounds.Dx(), bounds.Dy(), maxSize)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
		return dst
	}

	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}

func scaledSize(width, height, maxSize int) (int, int) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height
	}

	if width >= height {
		return maxSize, max(1, height*maxSize/width)
	}
	return max(1, width*maxSize/height), maxSize
}
