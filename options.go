package flatlayers

import (
	"image"

	"go.uber.org/zap"
)

const (
	DefaultClusters   = 5
	DefaultWidth      = 512
	DefaultHeight     = 512
	DefaultSamples    = 50000
	DefaultIterations = 10
	DefaultMinRegion  = 20
	DefaultRadius     = 1
)

// PaletteFunc replaces k-means palette discovery. It must return exactly k
// colors.
type PaletteFunc func(r Raster, k int) (Palette, error)

type Options struct {
	// Number of layers. Values below 1 are clamped to 1.
	Clusters int
	// Upper bound on the k-means sample size; the actual size is
	// min(Samples, W*H).
	Samples int
	// Fixed number of Lloyd iterations. There is no convergence check.
	// 0 means DefaultIterations.
	Iterations int
	// Regions with fewer pixels are repainted to their majority neighbor.
	// 0 disables cleanup.
	MinRegion int
	// Half-width of the square opening kernel. 0 leaves masks untouched.
	Radius int
	// Seed for sampling and centroid init. 0 picks a time based seed.
	Seed uint64
	// Sort the palette dark to bright before quantizing.
	SortByBrightness bool
	// Optional palette source. nil means k-means over sampled colors.
	Palette PaletteFunc
	// nil means no logging.
	Logger *zap.SugaredLogger
}

func DefaultOptions() Options {
	return Options{
		Clusters:   DefaultClusters,
		Samples:    DefaultSamples,
		Iterations: DefaultIterations,
		MinRegion:  DefaultMinRegion,
		Radius:     DefaultRadius,
	}
}

// OptionsFromSize scales the minimum region size with the image area, using
// 20 pixels at 512x512 as the reference.
func OptionsFromSize(size image.Point) Options {
	opt := DefaultOptions()
	if size.X <= 0 || size.Y <= 0 {
		return opt
	}
	pixels := size.X * size.Y
	minRegion := int(float64(DefaultMinRegion) * float64(pixels) / float64(DefaultWidth*DefaultHeight))
	opt.MinRegion = max(4, min(400, minRegion))
	return opt
}

// Normalize clamps Clusters to at least 1 and fills in zero Samples,
// Iterations and Logger. Negative Iterations are left for Validate.
func (o Options) Normalize() Options {
	if o.Clusters < 1 {
		o.Clusters = 1
	}
	if o.Samples <= 0 {
		o.Samples = DefaultSamples
	}
	if o.Iterations == 0 {
		o.Iterations = DefaultIterations
	}
	if o.Radius < 0 {
		o.Radius = 0
	}
	if o.MinRegion < 0 {
		o.MinRegion = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

// Validate reports options that cannot be clamped.
func (o Options) Validate() error {
	if o.Iterations < 0 {
		return &ConfigError{Field: "iterations", Value: o.Iterations}
	}
	return nil
}

// ValidateSize checks raster dimensions from configuration.
func ValidateSize(w, h int) error {
	if w < 1 {
		return &ConfigError{Field: "width", Value: w}
	}
	if h < 1 {
		return &ConfigError{Field: "height", Value: h}
	}
	return nil
}
