package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/talvor/tmxmap"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <map.tmx>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Load Tiled maps and print a summary of each\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "", "Load every map described by a YAML manager config")
	verbose := flag.Bool("v", false, "Verbose output (list tilesets, objects and every diagnostic)")
	strict := flag.Bool("strict", false, "Exit non-zero when any map has diagnostics")
	flag.Parse()

	level := zerolog.ErrorLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	if *configPath == "" && flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	failed := false
	if *configPath != "" {
		failed = runConfig(os.Stdout, *configPath, *verbose, logger) || failed
	}
	for _, path := range flag.Args() {
		failed = runFile(os.Stdout, path, *verbose, *strict, logger) || failed
	}

	if failed {
		os.Exit(1)
	}
}

func runFile(w io.Writer, path string, verbose, strict bool, logger zerolog.Logger) bool {
	res, err := tmxmap.Load(path, tmxmap.WithLogger(logger))
	if err != nil {
		log.Error().Err(err).Str("map", path).Msg("failed to load map")
		return true
	}

	printMap(w, path, res.Map, verbose)
	printDiagnostics(w, res.Diagnostics, verbose)
	return strict && len(res.Diagnostics) > 0
}

func runConfig(w io.Writer, path string, verbose bool, logger zerolog.Logger) bool {
	cfg, err := tmxmap.LoadConfig(path)
	if err != nil {
		log.Error().Err(err).Str("config", path).Msg("failed to load config")
		return true
	}

	mm := tmxmap.NewMapManagerFromConfig(cfg, tmxmap.WithLogger(logger))
	for _, name := range mm.Names() {
		m, _ := mm.GetMapByName(name)
		printMap(w, name, m, verbose)
		printDiagnostics(w, mm.Diagnostics[name], verbose)
	}
	for name, err := range mm.Errors {
		log.Error().Err(err).Str("map", name).Msg("failed to load map")
	}
	return len(mm.Errors) > 0
}

func printMap(w io.Writer, name string, m *tmxmap.Map, verbose bool) {
	fmt.Fprintf(w, "%s: %dx%d tiles of %dx%d px, %d tilesets, %d layers, %d tiles indexed\n",
		name, m.Width, m.Height, m.TileWidth, m.TileHeight, len(m.Tilesets), len(m.Layers), m.TileCount())

	if verbose {
		for _, ts := range m.Tilesets {
			status := "ok"
			if ts.Image == nil {
				status = "missing image"
			}
			fmt.Fprintf(w, "  tileset %q firstgid=%d image=%s (%dx%d, %s)\n",
				ts.Name, ts.FirstGID, ts.ImageSource, ts.ImageWidth, ts.ImageHeight, status)
		}
	}

	for _, l := range m.Layers {
		switch l.Kind {
		case tmxmap.TileLayer:
			fmt.Fprintf(w, "  %s %q %dx%d visible=%t opacity=%.2f empty=%t\n",
				l.Kind, l.Name, l.Width, l.Height, l.Visible, l.Opacity, l.Empty)
		case tmxmap.ObjectLayer:
			fmt.Fprintf(w, "  %s %q %d objects visible=%t opacity=%.2f\n",
				l.Kind, l.Name, len(l.Objects), l.Visible, l.Opacity)
			if verbose {
				for _, o := range l.Objects {
					fmt.Fprintf(w, "    object %q type=%q at (%g, %g) gid=%d\n", o.Name, o.Type, o.X, o.Y, o.GID)
				}
			}
		}
	}
}

func printDiagnostics(w io.Writer, diags []tmxmap.Diagnostic, verbose bool) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "  %d diagnostics\n", len(diags))
	if !verbose {
		return
	}
	for _, d := range diags {
		fmt.Fprintf(w, "    %v\n", d)
	}
}
