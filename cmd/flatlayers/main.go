// Package main splits an RGB image into flat color layer masks.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	fl "github.com/setanarut/flatlayers"
	"github.com/setanarut/flatlayers/utils"
)

const (
	flagInput      = "input"
	flagOut        = "out"
	flagClusters   = "clusters"
	flagWidth      = "width"
	flagHeight     = "height"
	flagSamples    = "samples"
	flagIterations = "iterations"
	flagMinRegion  = "min-region"
	flagRadius     = "radius"
	flagSeed       = "seed"
	flagPalette    = "palette"
	flagSort       = "sort"
	flagSVG        = "svg"
	flagSwatch     = "swatch"
	flagRecon      = "recon"
	flagDebug      = "debug"
)

func main() {
	// -h is the height flag; help stays on --help.
	cli.HelpFlag = &cli.BoolFlag{Name: "help", Usage: "show help"}

	app := &cli.App{
		Name:      "flatlayers",
		Usage:     "decompose an image into flat color layer masks",
		UsageText: "flatlayers [-k clusters] [-w width] [-h height] [options]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagInput, Aliases: []string{"i"}, Value: "input.png", Usage: "source image `FILE`"},
			&cli.StringFlag{Name: flagOut, Aliases: []string{"o"}, Value: ".", Usage: "output `DIR`"},
			&cli.IntFlag{Name: flagClusters, Aliases: []string{"k"}, Value: fl.DefaultClusters, Usage: "number of layers"},
			&cli.IntFlag{Name: flagWidth, Aliases: []string{"w"}, Value: fl.DefaultWidth, Usage: "expected image width"},
			&cli.IntFlag{Name: flagHeight, Aliases: []string{"h"}, Value: fl.DefaultHeight, Usage: "expected image height"},
			&cli.IntFlag{Name: flagSamples, Value: fl.DefaultSamples, Usage: "k-means sample size"},
			&cli.IntFlag{Name: flagIterations, Value: fl.DefaultIterations, Usage: "k-means iterations, 0 for the default"},
			&cli.IntFlag{Name: flagMinRegion, Value: fl.DefaultMinRegion, Usage: "repaint regions smaller than this"},
			&cli.IntFlag{Name: flagRadius, Value: fl.DefaultRadius, Usage: "mask opening radius"},
			&cli.Uint64Flag{Name: flagSeed, Usage: "random seed, 0 for time based"},
			&cli.StringFlag{Name: flagPalette, Value: utils.PaletteMethodKMeans.String(), Usage: "palette method: kmeans, dominantcolor or clusters"},
			&cli.BoolFlag{Name: flagSort, Usage: "sort palette from dark to bright"},
			&cli.BoolFlag{Name: flagSVG, Usage: "also trace every mask to SVG"},
			&cli.BoolFlag{Name: flagSwatch, Usage: "write palette.png"},
			&cli.BoolFlag{Name: flagRecon, Usage: "write recon.png"},
			&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	if debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return l.Sugar(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.Bool(flagDebug))
	if err != nil {
		return errors.Wrap(err, "logger")
	}
	defer func() { _ = logger.Sync() }()

	w, h := c.Int(flagWidth), c.Int(flagHeight)
	if err := fl.ValidateSize(w, h); err != nil {
		return err
	}
	method, err := utils.ParsePaletteMethod(c.String(flagPalette))
	if err != nil {
		return err
	}

	opt := fl.DefaultOptions()
	opt.Clusters = c.Int(flagClusters)
	opt.Samples = c.Int(flagSamples)
	opt.Iterations = c.Int(flagIterations)
	opt.MinRegion = c.Int(flagMinRegion)
	opt.Radius = c.Int(flagRadius)
	opt.Seed = c.Uint64(flagSeed)
	opt.SortByBrightness = c.Bool(flagSort)
	opt.Palette = method.PaletteFunc()
	opt.Logger = logger
	if err := opt.Validate(); err != nil {
		return err
	}

	input := c.String(flagInput)
	raster, err := utils.ReadRaster(input, w, h)
	if err != nil {
		return err
	}
	logger.Infow("loaded image", "path", input, "width", w, "height", h)

	out := c.String(flagOut)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return &fl.OutputError{Artifact: out, Err: err}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	lb := fl.NewLayerBuilder(raster, opt)
	if err := lb.Build(ctx); err != nil {
		return err
	}
	sink := &utils.DirSink{Dir: out, SVG: c.Bool(flagSVG)}
	if err := lb.Emit(ctx, sink); err != nil {
		return err
	}

	if c.Bool(flagSwatch) {
		name := filepath.Join(out, "palette.png")
		if err := utils.SavePalette(lb.Palette, 64, name); err != nil {
			return &fl.OutputError{Artifact: name, Err: err}
		}
		sink.Written = append(sink.Written, name)
	}
	if c.Bool(flagRecon) {
		name := filepath.Join(out, "recon.png")
		if err := utils.SaveImage(lb.Reconstruct(), name); err != nil {
			return &fl.OutputError{Artifact: name, Err: err}
		}
		sink.Written = append(sink.Written, name)
	}

	st := lb.Stats()
	for k, cov := range st.Coverage {
		logger.Debugw("layer coverage", "layer", k, "color", lb.Palette[k].Hex(), "fraction", cov)
	}
	var total uint64
	for _, name := range sink.Written {
		if fi, err := os.Stat(name); err == nil {
			total += uint64(fi.Size())
		}
	}
	fmt.Fprintf(c.App.Writer, "%d layers, %d regions (%d repainted), rmse %.2f, %d files (%s)\n",
		len(lb.Palette), st.Regions, st.Repainted, st.RMSE, len(sink.Written), humanize.Bytes(total))
	return nil
}
