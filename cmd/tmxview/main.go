package main

import (
	"flag"
	"fmt"
	"image"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/talvor/tmxmap"
	"github.com/talvor/tmxmap/renderer"
)

const scrollSpeed = 4

type game struct {
	m          *tmxmap.Map
	draw       func(*renderer.DrawOptions) error
	camX, camY int
	w, h       int
}

func (g *game) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		g.camX += scrollSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		g.camX -= scrollSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		g.camY += scrollSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		g.camY -= scrollSpeed
	}
	g.camX = min(max(g.camX, 0), max(g.m.PixelWidth()-g.w, 0))
	g.camY = min(max(g.camY, 0), max(g.m.PixelHeight()-g.h, 0))
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	err := g.draw(&renderer.DrawOptions{
		Screen: screen,
		Region: image.Rect(g.camX, g.camY, g.camX+g.w, g.camY+g.h),
	})
	if err != nil {
		log.Error().Err(err).Msg("draw failed")
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.w, g.h
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <map.tmx>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [options] -config maps.yaml <map name>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Open a Tiled map in a window; arrow keys scroll\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	width := flag.Int("width", 640, "Viewport width in pixels")
	height := flag.Int("height", 480, "Viewport height in pixels")
	scale := flag.Int("scale", 1, "Window scale factor")
	configPath := flag.String("config", "", "Resolve the map by name through a YAML manager config")
	layer := flag.String("layer", "", "Draw only the named layer")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	name := flag.Arg(0)
	images := tmxmap.WithImageLoader(renderer.ImageLoader{})

	var mm *tmxmap.MapManager
	if *configPath != "" {
		cfg, err := tmxmap.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("config", *configPath).Msg("failed to load config")
		}
		mm = tmxmap.NewMapManagerFromConfig(cfg, images)
	} else {
		m, err := tmxmap.LoadFile(name, images)
		if err != nil {
			log.Fatal().Err(err).Str("map", name).Msg("failed to load map")
		}
		mm = &tmxmap.MapManager{Maps: map[string]*tmxmap.Map{name: m}, IsLoaded: true}
	}

	m, err := mm.GetMapByName(name)
	if err != nil {
		log.Fatal().Err(err).Str("map", name).Msg("map not available")
	}

	r := renderer.NewRenderer(mm)
	draw := func(opts *renderer.DrawOptions) error {
		return r.DrawMap(name, opts)
	}
	if *layer != "" {
		draw = func(opts *renderer.DrawOptions) error {
			return r.DrawMapLayer(name, *layer, opts)
		}
	}

	g := &game{
		m:    m,
		draw: draw,
		w:    max(min(*width, m.PixelWidth()), 1),
		h:    max(min(*height, m.PixelHeight()), 1),
	}

	ebiten.SetWindowSize(g.w*(*scale), g.h*(*scale))
	ebiten.SetWindowTitle(name)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal().Err(err).Msg("viewer stopped")
	}
}
