// Command imdemo renders a few frames of a small GUI on the CPU backend
// and saves the font atlas and the last frame as PNG files.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/imrender"
	"github.com/gogpu/imrender/backend"
	"github.com/gogpu/imrender/backend/soft"
	"github.com/gogpu/imrender/gfx"
	"github.com/gogpu/imrender/ui"
)

func main() {
	var (
		width    = flag.Int("width", 640, "image width")
		height   = flag.Int("height", 360, "image height")
		frames   = flag.Int("frames", 3, "frames to render")
		inFlight = flag.Int("frames-in-flight", 2, "frame buffer ring size")
		output   = flag.String("output", "imdemo.png", "rendered frame file")
		atlas    = flag.String("atlas", "", "font atlas file (skipped when empty)")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	imrender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*width, *height, *frames, *inFlight, *output, *atlas); err != nil {
		log.Fatalf("imdemo: %v", err)
	}
	log.Printf("Frame saved to %s (%dx%d)\n", *output, *width, *height)
}

func run(width, height, frames, inFlight int, output, atlasPath string) error {
	if width <= 0 || height <= 0 || frames <= 0 {
		return fmt.Errorf("invalid size %dx%d or frame count %d", width, height, frames)
	}
	gd, err := backend.Open(backend.BackendSoft, backend.Config{})
	if err != nil {
		return err
	}
	dev, ok := gd.(*soft.Device)
	if !ok {
		return fmt.Errorf("backend %q returned %T", backend.BackendSoft, gd)
	}

	heap, err := dev.CreateDescriptorHeap(&gfx.DescriptorHeapDesc{
		Type:           gfx.DescriptorHeapTypeCBVSRVUAV,
		NumDescriptors: 1,
		Flags:          gfx.DescriptorHeapFlagShaderVisible,
	})
	if err != nil {
		return err
	}
	defer heap.Release()

	ctx := ui.NewContext()
	ctx.DisplaySize = ui.Vec2{X: float32(width), Y: float32(height)}
	r, err := imrender.New(ctx, dev, inFlight, gfx.FormatR8G8B8A8Unorm, heap.CPUStart(), heap.GPUStart())
	if err != nil {
		return err
	}
	defer r.Close()

	queue, err := dev.CreateCommandQueue(gfx.CommandListTypeDirect)
	if err != nil {
		return err
	}
	defer queue.Release()
	alloc, err := dev.CreateCommandAllocator(gfx.CommandListTypeDirect)
	if err != nil {
		return err
	}
	defer alloc.Release()
	gl, err := dev.CreateCommandList(gfx.CommandListTypeDirect, alloc, nil)
	if err != nil {
		return err
	}
	defer gl.Release()
	list := gl.(*soft.CommandList)
	target := image.NewRGBA(image.Rect(0, 0, width, height))
	list.SetRenderTarget(target)

	for frame := range frames {
		if frame > 0 {
			if err := list.Reset(alloc, nil); err != nil {
				return err
			}
		}
		if err := r.NewFrame(); err != nil {
			return err
		}
		if err := ctx.NewFrame(); err != nil {
			return err
		}
		drawWindow(ctx, frame)
		list.ClearRenderTarget([4]uint8{28, 30, 36, 255})
		if err := r.RenderDrawData(ctx.Render(), list); err != nil {
			return err
		}
		if err := list.Close(); err != nil {
			return err
		}
		if err := queue.ExecuteCommandLists([]gfx.GraphicsCommandList{list}); err != nil {
			return err
		}
	}
	slog.Info("imdemo: rendered", "renderer", r.Stats(), "device", dev.Stats())

	if atlasPath != "" {
		img, err := ctx.Fonts.Image()
		if err != nil {
			return err
		}
		if err := savePNG(atlasPath, img); err != nil {
			return err
		}
	}
	return savePNG(output, target)
}

// drawWindow draws a fake window whose progress bar advances per frame.
func drawWindow(ctx *ui.Context, frame int) {
	size := ctx.DisplaySize
	ctx.BackgroundDrawList().AddRectFilled(ui.Vec2{}, size, ui.Color(20, 22, 28, 255))

	dl := ctx.NewDrawList()
	x0, y0 := size.X*0.1, size.Y*0.1
	x1, y1 := size.X*0.9, size.Y*0.9

	dl.AddRectFilled(ui.Vec2{X: x0, Y: y0}, ui.Vec2{X: x1, Y: y1}, ui.Color(45, 50, 62, 240))
	dl.AddRectFilled(ui.Vec2{X: x0, Y: y0}, ui.Vec2{X: x1, Y: y0 + 22}, ui.Color(41, 74, 122, 255))
	dl.AddText(ui.Vec2{X: x0 + 8, Y: y0 + 4}, ui.ColorWhite, "Hello, world!")

	dl.PushClipRect(ui.Vec2{X: x0, Y: y0 + 22}, ui.Vec2{X: x1, Y: y1}, true)
	dl.AddText(ui.Vec2{X: x0 + 8, Y: y0 + 34}, ui.Color(200, 200, 200, 255),
		fmt.Sprintf("Frame %d rendered by %s", frame, ctx.BackendRendererName))
	barW := (x1 - x0 - 16) * float32(frame+1) / 8
	dl.AddRectFilled(ui.Vec2{X: x0 + 8, Y: y0 + 60}, ui.Vec2{X: x0 + 8 + barW, Y: y0 + 76}, ui.Color(66, 150, 250, 255))
	dl.PopClipRect()

	ctx.ForegroundDrawList().AddRectFilled(ui.Vec2{X: x1 - 24, Y: y1 - 24}, ui.Vec2{X: x1 - 8, Y: y1 - 8}, ui.Color(230, 90, 70, 255))
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
