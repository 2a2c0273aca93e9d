// Command texupload uploads the images listed in a TOML manifest to a
// headless Vulkan device and optionally reads them back to verify the round
// trip.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/textures/hal"
	"github.com/vkngwrapper/textures/hal/vulkan"
	"github.com/vkngwrapper/textures/texture"
)

type options struct {
	configPath string
	verify     bool
	outputDir  string
	debug      bool
}

func main() {
	runtime.LockOSThread()

	var opts options
	flag.StringVar(&opts.configPath, "config", "textures.toml", "path to the texture manifest")
	flag.BoolVar(&opts.verify, "verify", false, "read every texture back and compare it with its source")
	flag.StringVar(&opts.outputDir, "out", "", "write read-back textures as PNG files to this directory")
	flag.BoolVar(&opts.debug, "debug", false, "log every device call")
	flag.Parse()

	err := run(opts)
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run(opts options) error {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	texture.SetLogger(logger)

	manifest, err := loadManifest(opts.configPath)
	if err != nil {
		return err
	}
	if opts.verify {
		manifest.Verify = true
	}
	if opts.outputDir != "" {
		manifest.OutputDir = opts.outputDir
	}

	images, err := decodeAll(context.Background(), manifest.Textures, runtime.NumCPU())
	if err != nil {
		return err
	}

	globalDriver, err := loadVulkan()
	if err != nil {
		return err
	}
	defer sdl.Quit()
	defer sdl.VulkanUnloadLibrary()

	vkctx, err := vulkan.Open(globalDriver, vulkan.Options{
		ApplicationName: "texupload",
		Validation:      manifest.Validation,
		Logger:          logger,
		MaxTextures:     len(images),
		Bindings: hal.TextureBindings{
			ImageBinding:   0,
			SamplerBinding: 1,
		},
	})
	if err != nil {
		return err
	}
	defer vkctx.Close()

	res := texture.Resources{
		Adapter:     vkctx.Adapter,
		Device:      vkctx.Device,
		CommandPool: vkctx.CommandPool,
		Queue:       vkctx.Queue,
		Descriptors: vkctx.Descriptors,
		LeakCheck:   true,
	}
	renderer := texture.NewRenderer(res)
	defer renderer.Destroy()

	handles := make([]texture.Handle, 0, len(images))
	start := hrtime.Now()
	for _, img := range images {
		bounds := img.Image.Bounds()
		handle, err := renderer.RegisterTextureWithFilter(img.Image.Pix, bounds.Dx(), bounds.Dy(), hal.Filter(img.Entry.Filter))
		if err != nil {
			return errors.Wrapf(err, "register %s", img.Entry.Path)
		}
		handles = append(handles, handle)

		logger.Debug("registered texture",
			slog.String("Path", img.Entry.Path),
			slog.Int("Handle", int(handle)),
			slog.String("Filter", img.Entry.Filter.String()),
		)
	}
	logger.Info("uploaded textures",
		slog.Int("Count", renderer.TextureCount()),
		slog.Duration("Elapsed", hrtime.Since(start)),
	)

	if !manifest.Verify && manifest.OutputDir == "" {
		return nil
	}

	for i, handle := range handles {
		gpuImage, ok := renderer.Texture(handle)
		if !ok {
			return errors.AssertionFailedf("handle %d missing from registry", handle)
		}

		pixels, err := texture.ReadPixels(res, gpuImage)
		if err != nil {
			return errors.Wrapf(err, "read back %s", images[i].Entry.Path)
		}

		if manifest.Verify {
			if err := comparePixels(images[i].Image.Pix, pixels, gpuImage.Width()); err != nil {
				return errors.Wrapf(err, "verify %s", images[i].Entry.Path)
			}
		}

		if manifest.OutputDir != "" {
			filename, err := writePNG(manifest.OutputDir, int(handle), images[i].Entry.Path, gpuImage.Width(), gpuImage.Height(), pixels)
			if err != nil {
				return err
			}
			logger.Info("wrote texture", slog.String("File", filename))
		}
	}

	if manifest.Verify {
		logger.Info("verified textures", slog.Int("Count", len(handles)))
	}
	return nil
}

// loadVulkan loads the system Vulkan loader through SDL. No window is created.
func loadVulkan() (core1_0.GlobalDriver, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl")
	}

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "load vulkan library")
	}

	globalDriver, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, err
	}
	return globalDriver, nil
}
