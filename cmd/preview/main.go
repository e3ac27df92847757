package main

import (
	"bytes"
	"io"
	"os"

	"github.com/woozymasta/fencedraw/internal/config"
	"github.com/woozymasta/fencedraw/internal/feature"
	"github.com/woozymasta/fencedraw/internal/logger"
	"github.com/woozymasta/fencedraw/internal/reconciler"
	"github.com/woozymasta/fencedraw/internal/render"
	"github.com/woozymasta/fencedraw/internal/store"

	"github.com/jessevdk/go-flags"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile   string  `short:"c" long:"config"  env:"CONFIG_FILE" description:"Path to configuration file"`
	Input        string  `short:"i" long:"in"      description:"GeoJSON FeatureCollection path. Reads from stdin if empty"`
	Output       string  `short:"o" long:"out"     description:"Output file path. Writes to stdout if empty"`
	Format       string  `short:"f" long:"format"  description:"Output format" choice:"svg" choice:"webp" default:"svg"`
	Width        int     `short:"W" long:"width"   description:"Canvas width, overrides config"`
	Height       int     `short:"H" long:"height"  description:"Canvas height, overrides config"`
	Radius       float64 `short:"r" long:"radius"  description:"Circle radius in meters, overrides config"`
	HidePolygons bool    `long:"hide-polygons"     description:"Do not draw polygons"`
	HideCircles  bool    `long:"hide-circles"      description:"Do not draw circles"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.Width > 0 {
		cfg.Preview.Width = opts.Width
	}
	if opts.Height > 0 {
		cfg.Preview.Height = opts.Height
	}
	if opts.Radius > 0 {
		cfg.Editor.Radius = opts.Radius
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid preview options")
	}

	var data []byte
	if opts.Input != "" {
		data, err = os.ReadFile(opts.Input)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", opts.Input).Msg("Failed to read input")
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse GeoJSON")
	}

	settings := cfg.Settings()
	settings.ShowPolygons = settings.ShowPolygons && !opts.HidePolygons
	settings.ShowCircles = settings.ShowCircles && !opts.HideCircles

	st := store.New(cfg.Editor.Radius, settings)
	st.SetCollection(feature.FromGeoJSON(fc, ""))
	rec := reconciler.New(st, reconciler.Options{Label: cfg.Label()})
	defer rec.Close()

	layers := rec.Layers()
	log.Info().
		Int("features", st.Collection().Len()).
		Int("layers", len(layers)).
		Str("format", opts.Format).
		Msg("Layers rebuilt, rendering preview")

	var out bytes.Buffer
	previewOpts := cfg.PreviewOptions(settings)
	if opts.Format == "webp" {
		err = render.WebP(&out, layers, previewOpts)
	} else {
		var svg []byte
		svg, err = render.SVG(layers, previewOpts)
		out.Write(svg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render preview")
	}

	if opts.Output == "" {
		_, _ = os.Stdout.Write(out.Bytes())
		return
	}
	if err := os.WriteFile(opts.Output, out.Bytes(), 0644); err != nil {
		log.Fatal().Err(err).Str("path", opts.Output).Msg("Failed to write preview")
	}

	log.Info().Str("path", opts.Output).Int("bytes", out.Len()).Msg("Preview written")
}
