package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gdamore/tcell/v2"

	"blockmarch.dev/internal/sim/layout"
	"blockmarch.dev/internal/sim/tuning"
	"blockmarch.dev/internal/sim/world"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		layoutPath = flag.String("layout", "./configs/layouts/demo.json", "layout file (empty for a blank grid)")
		width      = flag.Int("width", 0, "grid width override (blank grid only)")
		height     = flag.Int("height", 0, "grid height override (blank grid only)")
	)
	flag.Parse()

	w, err := buildWorld(*tuningPath, *layoutPath, *width, *height)
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
		os.Exit(1)
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	newViewer(w, screen).run()
}

func buildWorld(tuningPath, layoutPath string, width, height int) (*world.World, error) {
	tune, err := tuning.Load(tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		tune = tuning.Defaults()
	}
	var lay *layout.Layout
	if layoutPath != "" {
		l, err := layout.Load(layoutPath)
		if err != nil {
			return nil, err
		}
		lay = &l
		tune.Width, tune.Height = l.Width, l.Height
	} else {
		if width > 0 {
			tune.Width = width
		}
		if height > 0 {
			tune.Height = height
		}
	}
	w, err := world.New(world.ConfigFromTuning("viewer", tune))
	if err != nil {
		return nil, err
	}
	// The terminal belongs to tcell.
	w.SetLogger(log.New(io.Discard, "", 0))
	if lay != nil {
		if err := lay.Apply(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}
