// Command composedemo runs the compose engine against the software
// hardware-composer backend and records composited frames as PNGs.
//
// A gradient wallpaper layer sits behind an animated panel layer; each
// vsync the panel moves and the engine recomposites only the damaged
// area. The presented target of every frame is saved to
// <output>-NNN.png.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/compose"
	"github.com/gogpu/compose/display"
	"github.com/gogpu/compose/hwc"
	"github.com/gogpu/compose/scene"
)

func main() {
	var (
		width   = flag.Int("width", 800, "display width")
		height  = flag.Int("height", 600, "display height")
		frames  = flag.Int("frames", 60, "number of frames to record")
		output  = flag.String("output", "frame", "output PNG prefix")
		cfgPath = flag.String("config", "", "optional TOML config file")
		useGPU  = flag.Bool("gpu", false, "composite on the GPU when available")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *verbose {
		compose.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := compose.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = compose.LoadConfig(*cfgPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	comp := hwc.NewSoftware()
	engine := compose.New(cfg, comp, newRenderer(*useGPU))
	engine.Start()
	defer engine.Stop()

	comp.Plug(1, []display.Config{{
		Width:         *width,
		Height:        *height,
		RefreshPeriod: cfg.NominalRefreshPeriod,
	}})

	token := waitForDisplay(engine)
	if err := engine.SetPowerMode(token, display.PowerModeOn); err != nil {
		log.Fatalf("Failed to power on display: %v", err)
	}

	wallpaper, err := engine.CreateLayer("wallpaper", *width, *height, scene.InvalidHandle)
	if err != nil {
		log.Fatalf("Failed to create wallpaper: %v", err)
	}
	if err := engine.QueueFrame(wallpaper, gradient(*width, *height), image.Rectangle{}); err != nil {
		log.Fatalf("Failed to queue wallpaper: %v", err)
	}

	const panelW, panelH = 160, 120
	panel, err := engine.CreateLayer("panel", panelW, panelH, scene.InvalidHandle)
	if err != nil {
		log.Fatalf("Failed to create panel: %v", err)
	}
	if err := engine.QueueFrame(panel, panelContent(panelW, panelH), image.Rectangle{}); err != nil {
		log.Fatalf("Failed to queue panel: %v", err)
	}

	// Opaque wallpaper at the back, translucent panel in front.
	err = engine.SubmitTransaction(compose.Transaction{
		Layers: []compose.LayerChange{
			{Handle: wallpaper, What: compose.ChangeOpaque | compose.ChangeZ, Opaque: true, Z: 0},
			{Handle: panel, What: compose.ChangeZ | compose.ChangeAlpha, Z: 1, Alpha: 0.9},
		},
		Flags: compose.TransactionSynchronous,
	})
	if err != nil {
		log.Fatalf("Failed to submit setup transaction: %v", err)
	}

	saved := 0
	x, y := 0, 0
	dx, dy := 6, 4
	for i := 0; i < *frames; i++ {
		x += dx
		y += dy
		if x < 0 || x+panelW > *width {
			dx, x = -dx, x-dx
		}
		if y < 0 || y+panelH > *height {
			dy, y = -dy, y-dy
		}
		err := engine.SubmitTransaction(compose.Transaction{
			Layers: []compose.LayerChange{{
				Handle:    panel,
				What:      compose.ChangeTransform,
				Transform: scene.Transform{SX: 1, SY: 1, TX: float32(x), TY: float32(y)},
			}},
			Flags: compose.TransactionSynchronous | compose.TransactionAnimation,
		})
		if err != nil {
			log.Fatalf("Failed to move panel: %v", err)
		}
		time.Sleep(cfg.NominalRefreshPeriod)

		if target := comp.LastTarget(1); target != nil {
			if err := savePNG(*output, saved, target); err != nil {
				log.Fatalf("Failed to save frame: %v", err)
			}
			saved++
		}
	}

	stats, err := engine.GetDisplayStats(token)
	if err != nil {
		log.Fatalf("Failed to read display stats: %v", err)
	}
	log.Printf("Recorded %d frames (%d composited, %d missed) to %s-*.png\n",
		saved, stats.Frames, stats.Missed, *output)
}

func waitForDisplay(engine *compose.Engine) display.Token {
	deadline := time.Now().Add(2 * time.Second)
	for {
		if token := engine.DefaultDisplay(); token != display.InvalidToken {
			return token
		}
		if time.Now().After(deadline) {
			log.Fatal("Display never connected")
		}
		time.Sleep(time.Millisecond)
	}
}

// gradient fills a vertical blue-to-teal ramp.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		t := float64(y) / float64(h)
		c := color.RGBA{
			R: uint8(25 + t*100),
			G: uint8(50 + t*75),
			B: uint8(100 + t*50),
			A: 255,
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// panelContent draws an amber panel with a darker border.
func panelContent(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{R: 255, G: 200, B: 0, A: 255}
	border := color.RGBA{R: 128, G: 90, B: 0, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := fill
			if x < 4 || y < 4 || x >= w-4 || y >= h-4 {
				c = border
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// savePNG writes a copy of the presented target. The engine reuses the
// target buffer, so the pixels are snapshotted before encoding.
func savePNG(prefix string, n int, target *image.RGBA) error {
	snap := image.NewRGBA(target.Bounds())
	copy(snap.Pix, target.Pix)

	f, err := os.Create(fmt.Sprintf("%s-%03d.png", prefix, n))
	if err != nil {
		return err
	}
	if err := png.Encode(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
