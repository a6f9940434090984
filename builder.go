package flatlayers

import (
	"context"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Layer is one palette color with its binary mask.
type Layer struct {
	Index int
	Color RGB
	Mask  *image.Gray
	// False when smoothing was skipped after an allocation failure.
	Smoothed bool
}

func (l Layer) FileBase() string { return LayerFileBase(l.Index, l.Color) }

// LayerSink receives the output of LayerBuilder.Emit. WriteLayer is called in
// ascending index order, WritePalette once after the last layer.
type LayerSink interface {
	WriteLayer(l Layer) error
	WritePalette(p Palette) error
}

// Stats summarizes a built decomposition.
type Stats struct {
	// Fraction of pixels per layer after cleanup.
	Coverage []float64
	// Root mean square per-channel error of Reconstruct against the input.
	RMSE float64
	// Regions found by the flood fill and how many were repainted.
	Regions   int
	Repainted int
}

type LayerBuilder struct {
	Input   Raster
	Options Options
	Palette Palette
	// Cleaned palette index per pixel. Valid after Build.
	Index IndexBuffer

	log       *zap.SugaredLogger
	rng       *rand.Rand
	regions   int
	repainted int
}

// NewLayerBuilder prepares a pipeline run over input. Options are normalized;
// the builder owns input for the duration of the run.
func NewLayerBuilder(input Raster, opt Options) *LayerBuilder {
	opt = opt.Normalize()
	seed := opt.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &LayerBuilder{
		Input:   input,
		Options: opt,
		log:     opt.Logger,
		rng:     newRand(seed),
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Build runs palette discovery, quantization, labeling and cleanup. The
// context is only checked between stages.
func (lb *LayerBuilder) Build(ctx context.Context) error {
	if err := lb.Options.Validate(); err != nil {
		return err
	}
	if err := ValidateSize(lb.Input.W, lb.Input.H); err != nil {
		return err
	}
	opt := lb.Options

	if err := lb.discoverPalette(); err != nil {
		return err
	}
	if opt.SortByBrightness {
		lb.Palette.SortByBrightness()
	}
	for k, c := range lb.Palette {
		lb.log.Debugw("palette entry", "layer", k, "color", c.Hex())
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lb.Index = Quantize(lb.Input, lb.Palette)
	lb.log.Infow("quantized", "pixels", len(lb.Index.Data), "layers", len(lb.Palette))
	if err := ctx.Err(); err != nil {
		return err
	}

	lab := LabelRegions(lb.Index)
	lb.regions = len(lab.Regions)
	lb.log.Infow("labeled regions", "regions", lb.regions)
	if err := ctx.Err(); err != nil {
		return err
	}

	lb.repainted = CleanRegions(lb.Index, lab, len(lb.Palette), opt.MinRegion)
	lb.log.Infow("cleaned regions", "repainted", lb.repainted, "min_region", opt.MinRegion)
	return nil
}

func (lb *LayerBuilder) discoverPalette() error {
	opt := lb.Options
	if opt.Palette != nil {
		p, err := opt.Palette(lb.Input, opt.Clusters)
		if err != nil {
			return errors.Wrap(err, "palette")
		}
		if len(p) != opt.Clusters {
			return errors.Errorf("palette: got %d colors, want %d", len(p), opt.Clusters)
		}
		lb.Palette = p
		return nil
	}
	samples := SampleColors(lb.Input, opt.Samples, lb.rng)
	lb.log.Infow("sampled colors", "samples", len(samples))
	lb.Palette = ClusterPalette(samples, opt.Clusters, opt.Iterations, lb.rng)
	lb.log.Infow("clustered palette", "k", opt.Clusters, "iterations", opt.Iterations)
	return nil
}

// ============ EMIT ============

// Layer builds and smooths the mask of palette index k.
func (lb *LayerBuilder) Layer(k int) Layer {
	mask := LayerMask(lb.Index, k)
	l := Layer{Index: k, Color: lb.Palette[k], Mask: mask, Smoothed: true}
	if err := SmoothMask(mask, lb.Options.Radius); err != nil {
		lb.log.Warnw("emitting unsmoothed mask", "layer", k, "error", err)
		l.Smoothed = false
	}
	return l
}

// Emit delivers every layer in ascending index order, then the palette. A
// sink error stops emission; layers already delivered stay delivered.
func (lb *LayerBuilder) Emit(ctx context.Context, sink LayerSink) error {
	if lb.Index.Data == nil {
		return errors.New("emit called before build")
	}
	for k := range lb.Palette {
		if err := ctx.Err(); err != nil {
			return err
		}
		l := lb.Layer(k)
		if err := sink.WriteLayer(l); err != nil {
			return &OutputError{Artifact: l.FileBase(), Err: err}
		}
		lb.log.Debugw("wrote layer", "layer", k, "color", l.Color.Hex())
	}
	if err := sink.WritePalette(lb.Palette); err != nil {
		return &OutputError{Artifact: "palette", Err: err}
	}
	return nil
}

// Layers returns every layer in memory.
func (lb *LayerBuilder) Layers() []Layer {
	out := make([]Layer, len(lb.Palette))
	for k := range lb.Palette {
		out[k] = lb.Layer(k)
	}
	return out
}

// ============ RECONSTRUCT ============

// Reconstruct paints every pixel with its cleaned palette color.
func (lb *LayerBuilder) Reconstruct() *image.RGBA {
	w, h := lb.Index.W, lb.Index.H
	recon := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := lb.Palette[lb.Index.Data[y*w+x]]
			recon.SetRGBA(x, y, color.RGBA{c.R, c.G, c.B, 255})
		}
	}
	return recon
}

// Stats reports layer coverage and reconstruction error.
func (lb *LayerBuilder) Stats() Stats {
	n := len(lb.Index.Data)
	st := Stats{
		Coverage:  make([]float64, len(lb.Palette)),
		Regions:   lb.regions,
		Repainted: lb.repainted,
	}
	if n == 0 {
		return st
	}
	src := make([]float64, 0, n*3)
	dst := make([]float64, 0, n*3)
	for i, k := range lb.Index.Data {
		st.Coverage[k]++
		s, c := lb.Input.Data[i], lb.Palette[k]
		src = append(src, float64(s.R), float64(s.G), float64(s.B))
		dst = append(dst, float64(c.R), float64(c.G), float64(c.B))
	}
	floats.Scale(1/float64(n), st.Coverage)
	st.RMSE = floats.Distance(src, dst, 2) / math.Sqrt(float64(len(src)))
	return st
}
