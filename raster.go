package flatlayers

import (
	"fmt"
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// RGB is an 8-bit color without alpha.
type RGB struct {
	R, G, B uint8
}

// Colorful returns c as a go-colorful color with channels in [0,1].
func (c RGB) Colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// Hex returns the "#rrggbb" form of c.
func (c RGB) Hex() string {
	return c.Colorful().Hex()
}

// FromColorful converts a go-colorful color, clamping out of gamut values.
func FromColorful(c colorful.Color) RGB {
	r, g, b := c.Clamped().RGB255()
	return RGB{r, g, b}
}

func distSq(a, b RGB) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

// Grid is a row-major W×H buffer.
type Grid[T any] struct {
	W, H int
	Data []T // len = W*H
}

func NewGrid[T any](w, h int) Grid[T] {
	return Grid[T]{W: w, H: h, Data: make([]T, w*h)}
}

func (g Grid[T]) Inside(x, y int) bool {
	return x >= 0 && x < g.W && y >= 0 && y < g.H
}

func (g Grid[T]) Offset(x, y int) int {
	if !g.Inside(x, y) {
		panic(fmt.Sprintf("flatlayers: (%d,%d) outside %dx%d grid", x, y, g.W, g.H))
	}
	return y*g.W + x
}

func (g Grid[T]) At(x, y int) T {
	return g.Data[g.Offset(x, y)]
}

func (g Grid[T]) Set(x, y int, v T) {
	g.Data[g.Offset(x, y)] = v
}

// Clone returns a deep copy of g.
func (g Grid[T]) Clone() Grid[T] {
	out := Grid[T]{W: g.W, H: g.H, Data: make([]T, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// Raster is the read-only source image.
type Raster = Grid[RGB]

// IndexBuffer holds one palette index per pixel.
type IndexBuffer = Grid[int]

// NewRaster builds a raster from row-major pixels. It returns an error when
// len(pix) does not match w*h.
func NewRaster(w, h int, pix []RGB) (Raster, error) {
	if w < 1 || h < 1 {
		return Raster{}, errors.Errorf("invalid raster dimensions %dx%d", w, h)
	}
	if len(pix) != w*h {
		return Raster{}, errors.Errorf("raster %dx%d needs %d pixels, got %d", w, h, w*h, len(pix))
	}
	return Raster{W: w, H: h, Data: pix}, nil
}

// CheckDimensions returns a LoadError when the raster is not w×h.
func CheckDimensions(path string, r Raster, w, h int) error {
	if r.W != w || r.H != h {
		return &LoadError{
			Path: path,
			Err:  errors.Errorf("got %dx%d, want %dx%d", r.W, r.H, w, h),
		}
	}
	return nil
}

// RasterFromImage copies img into a raster, dropping alpha.
func RasterFromImage(img image.Image) Raster {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	r := NewGrid[RGB](w, h)
	for y := range h {
		for x := range w {
			cr, cg, cb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r.Data[y*w+x] = RGB{uint8(cr >> 8), uint8(cg >> 8), uint8(cb >> 8)}
		}
	}
	return r
}

// ToImage copies r into an opaque RGBA image.
func ToImage(r Raster) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.W, r.H))
	for i, c := range r.Data {
		copy(img.Pix[i*4:i*4+4], []uint8{c.R, c.G, c.B, 255})
	}
	return img
}
