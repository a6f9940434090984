package flatlayers

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

type memorySink struct {
	layers      []Layer
	palette     Palette
	failAt      int // WriteLayer call that fails, -1 for never
	failPalette bool
}

func newMemorySink() *memorySink { return &memorySink{failAt: -1} }

func (s *memorySink) WriteLayer(l Layer) error {
	if len(s.layers) == s.failAt {
		return errors.New("disk full")
	}
	s.layers = append(s.layers, l)
	return nil
}

func (s *memorySink) WritePalette(p Palette) error {
	if s.failPalette {
		return errors.New("read-only")
	}
	s.palette = p
	return nil
}

// seedSamplingBoth returns a seed whose first sample of r contains both red
// and blue, so that k-means can find both colors.
func seedSamplingBoth(t *testing.T, r Raster) uint64 {
	t.Helper()
	for seed := uint64(1); seed < 1000; seed++ {
		var hasRed, hasBlue bool
		for _, c := range SampleColors(r, DefaultSamples, newRand(seed)) {
			hasRed = hasRed || c == red
			hasBlue = hasBlue || c == blue
		}
		if hasRed && hasBlue {
			return seed
		}
	}
	t.Fatal("no seed samples both colors")
	return 0
}

func TestBuildRedBlueBlocks(t *testing.T) {
	r := blockRaster()
	opt := DefaultOptions()
	opt.Clusters = 2
	opt.MinRegion = 1
	opt.Radius = 0
	opt.Seed = seedSamplingBoth(t, r)

	lb := NewLayerBuilder(r, opt)
	test.That(t, lb.Build(context.Background()), test.ShouldBeNil)
	test.That(t, lb.Palette, test.ShouldHaveLength, 2)
	test.That(t, lb.Palette[0] != lb.Palette[1], test.ShouldBeTrue)

	sink := newMemorySink()
	test.That(t, lb.Emit(context.Background(), sink), test.ShouldBeNil)
	test.That(t, sink.layers, test.ShouldHaveLength, 2)
	test.That(t, sink.palette, test.ShouldResemble, lb.Palette)

	for k, l := range sink.layers {
		test.That(t, l.Index, test.ShouldEqual, k)
		test.That(t, l.Smoothed, test.ShouldBeTrue)
		c := lb.Palette[k]
		test.That(t, c == red || c == blue, test.ShouldBeTrue)
		for y := range 4 {
			for x := range 4 {
				want := uint8(0)
				if r.At(x, y) == c {
					want = 255
				}
				test.That(t, l.Mask.GrayAt(x, y).Y, test.ShouldEqual, want)
			}
		}
	}

	st := lb.Stats()
	test.That(t, st.RMSE, test.ShouldEqual, 0.0)
	test.That(t, st.Regions, test.ShouldEqual, 2)
	test.That(t, st.Repainted, test.ShouldEqual, 0)
	test.That(t, st.Coverage[0]+st.Coverage[1], test.ShouldAlmostEqual, 1.0, 1e-9)

	recon := lb.Reconstruct()
	for y := range 4 {
		for x := range 4 {
			got := recon.RGBAAt(x, y)
			test.That(t, RGB{got.R, got.G, got.B}, test.ShouldResemble, r.At(x, y))
		}
	}
}

func TestBuildSingleLayer(t *testing.T) {
	r := uniformRaster(100, 100, black)
	for y := range 100 {
		for x := 50; x < 100; x++ {
			r.Set(x, y, RGB{100, 100, 100})
		}
	}
	opt := DefaultOptions()
	opt.Clusters = 1
	opt.Seed = 17

	lb := NewLayerBuilder(r, opt)
	test.That(t, lb.Build(context.Background()), test.ShouldBeNil)
	test.That(t, lb.Palette, test.ShouldHaveLength, 1)
	c := lb.Palette[0]
	for _, ch := range []uint8{c.R, c.G, c.B} {
		test.That(t, float64(ch), test.ShouldAlmostEqual, 50.0, 3.0)
	}

	layers := lb.Layers()
	test.That(t, layers, test.ShouldHaveLength, 1)
	for _, v := range layers[0].Mask.Pix {
		test.That(t, v, test.ShouldEqual, uint8(255))
	}
	cov := lb.Stats().Coverage
	test.That(t, cov, test.ShouldHaveLength, 1)
	test.That(t, cov[0], test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestBuildClampsClusters(t *testing.T) {
	opt := DefaultOptions()
	opt.Clusters = -4
	opt.Seed = 1
	lb := NewLayerBuilder(blockRaster(), opt)
	test.That(t, lb.Build(context.Background()), test.ShouldBeNil)
	test.That(t, lb.Palette, test.ShouldHaveLength, 1)
}

func TestBuildDeterministicWithSeed(t *testing.T) {
	rng := newRand(21)
	r := NewGrid[RGB](32, 24)
	for i := range r.Data {
		r.Data[i] = RGB{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256))}
	}
	opt := DefaultOptions()
	opt.Seed = 99

	a := NewLayerBuilder(r, opt)
	b := NewLayerBuilder(r, opt)
	test.That(t, a.Build(context.Background()), test.ShouldBeNil)
	test.That(t, b.Build(context.Background()), test.ShouldBeNil)
	test.That(t, a.Palette, test.ShouldResemble, b.Palette)
	test.That(t, a.Index.Data, test.ShouldResemble, b.Index.Data)
}

func TestBuildErrors(t *testing.T) {
	t.Run("negative iterations", func(t *testing.T) {
		opt := DefaultOptions()
		opt.Iterations = -1
		err := NewLayerBuilder(blockRaster(), opt).Build(context.Background())
		var cfgErr *ConfigError
		test.That(t, errors.As(err, &cfgErr), test.ShouldBeTrue)
		test.That(t, cfgErr.Field, test.ShouldEqual, "iterations")
	})
	t.Run("empty raster", func(t *testing.T) {
		err := NewLayerBuilder(Raster{}, DefaultOptions()).Build(context.Background())
		var cfgErr *ConfigError
		test.That(t, errors.As(err, &cfgErr), test.ShouldBeTrue)
	})
	t.Run("palette func with wrong size", func(t *testing.T) {
		opt := DefaultOptions()
		opt.Clusters = 3
		opt.Palette = func(Raster, int) (Palette, error) { return Palette{red}, nil }
		err := NewLayerBuilder(blockRaster(), opt).Build(context.Background())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "want 3")
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		opt := DefaultOptions()
		opt.Seed = 1
		err := NewLayerBuilder(blockRaster(), opt).Build(ctx)
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	})
}

func TestBuildWithPaletteFunc(t *testing.T) {
	opt := DefaultOptions()
	opt.Clusters = 2
	opt.MinRegion = 0
	opt.Radius = 0
	opt.SortByBrightness = true
	opt.Palette = func(r Raster, k int) (Palette, error) {
		return Palette{red, blue}, nil
	}
	lb := NewLayerBuilder(blockRaster(), opt)
	test.That(t, lb.Build(context.Background()), test.ShouldBeNil)
	// Blue is darker than red in linear luminance.
	test.That(t, lb.Palette, test.ShouldResemble, Palette{blue, red})
	test.That(t, lb.Index.At(0, 0), test.ShouldEqual, 1)
	test.That(t, lb.Index.At(3, 3), test.ShouldEqual, 0)
}

func TestEmitErrors(t *testing.T) {
	opt := DefaultOptions()
	opt.Clusters = 3
	opt.Seed = 4

	t.Run("before build", func(t *testing.T) {
		err := NewLayerBuilder(blockRaster(), opt).Emit(context.Background(), newMemorySink())
		test.That(t, err, test.ShouldNotBeNil)
	})

	lb := NewLayerBuilder(blockRaster(), opt)
	test.That(t, lb.Build(context.Background()), test.ShouldBeNil)

	t.Run("layer write fails", func(t *testing.T) {
		sink := newMemorySink()
		sink.failAt = 1
		err := lb.Emit(context.Background(), sink)
		var outErr *OutputError
		test.That(t, errors.As(err, &outErr), test.ShouldBeTrue)
		test.That(t, outErr.Artifact, test.ShouldEqual, LayerFileBase(1, lb.Palette[1]))
		// The first layer stays delivered.
		test.That(t, sink.layers, test.ShouldHaveLength, 1)
		test.That(t, sink.palette, test.ShouldBeNil)
	})
	t.Run("palette write fails", func(t *testing.T) {
		sink := newMemorySink()
		sink.failPalette = true
		err := lb.Emit(context.Background(), sink)
		var outErr *OutputError
		test.That(t, errors.As(err, &outErr), test.ShouldBeTrue)
		test.That(t, outErr.Artifact, test.ShouldEqual, "palette")
		test.That(t, sink.layers, test.ShouldHaveLength, 3)
	})
}

func TestOptionsFromSize(t *testing.T) {
	test.That(t, OptionsFromSize(image.Pt(512, 512)).MinRegion, test.ShouldEqual, DefaultMinRegion)
	test.That(t, OptionsFromSize(image.Pt(16, 16)).MinRegion, test.ShouldEqual, 4)
	test.That(t, OptionsFromSize(image.Pt(0, 10)), test.ShouldResemble, DefaultOptions())
}

func TestValidateSize(t *testing.T) {
	test.That(t, ValidateSize(1, 1), test.ShouldBeNil)
	err := ValidateSize(0, 512)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "invalid width: 0")
	test.That(t, ValidateSize(512, -1).Error(), test.ShouldEqual, "invalid height: -1")
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	opt := Options{}.Normalize()
	test.That(t, opt.Clusters, test.ShouldEqual, 1)
	test.That(t, opt.Samples, test.ShouldEqual, DefaultSamples)
	test.That(t, opt.Iterations, test.ShouldEqual, DefaultIterations)
	test.That(t, opt.Logger, test.ShouldNotBeNil)

	opt = Options{Iterations: -2}.Normalize()
	test.That(t, opt.Iterations, test.ShouldEqual, -2)
	test.That(t, opt.Validate(), test.ShouldNotBeNil)
}

func TestBuildZeroValueOptionsClusters(t *testing.T) {
	r := uniformRaster(10, 10, black)
	for y := range 10 {
		for x := range 5 {
			r.Set(x, y, RGB{200, 0, 0})
		}
	}
	const seed = 3
	lb := NewLayerBuilder(r, Options{Clusters: 1, Seed: seed})
	test.That(t, lb.Build(context.Background()), test.ShouldBeNil)

	// Same draws as the builder: sampling is the first use of the source.
	rng := newRand(seed)
	want := ClusterPalette(SampleColors(r, DefaultSamples, rng), 1, DefaultIterations, rng)
	test.That(t, lb.Palette, test.ShouldResemble, want)
	// The sample mean, not a raw pixel.
	test.That(t, int(lb.Palette[0].R), test.ShouldBeBetween, 0, 200)
}
