package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gotranspile/gotrace"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	fl "github.com/setanarut/flatlayers"
)

// ReadRaster decodes path and checks it is w×h.
func ReadRaster(path string, w, h int) (fl.Raster, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return fl.Raster{}, &fl.LoadError{Path: path, Err: err}
	}
	r := fl.RasterFromImage(img)
	if err := fl.CheckDimensions(path, r, w, h); err != nil {
		return fl.Raster{}, err
	}
	return r, nil
}

// SaveImage encodes img with the format implied by the file extension.
func SaveImage(img image.Image, filename string) error {
	return imaging.Save(img, filename)
}

func SavePalette(palette fl.Palette, tileSize int, filename string) error {
	if len(palette) == 0 {
		return errors.New("empty palette")
	}
	if tileSize <= 0 {
		tileSize = 64
	}

	w := tileSize * len(palette)
	h := tileSize
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for i, c := range palette {
		x0 := i * tileSize
		x1 := x0 + tileSize
		for y := range h {
			for x := x0; x < x1; x++ {
				img.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
			}
		}
	}

	return SaveImage(img, filename)
}

// MarshalPalette renders the palette document: one "layer_<k>": [r,g,b]
// entry per line in index order.
func MarshalPalette(palette fl.Palette) []byte {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for k, c := range palette {
		sep := ","
		if k == len(palette)-1 {
			sep = ""
		}
		fmt.Fprintf(&buf, "  %q: [%d,%d,%d]%s\n", fl.LayerName(k), c.R, c.G, c.B, sep)
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

// TraceSVG vectorizes the solid (255) area of mask.
func TraceSVG(mask *image.Gray) ([]byte, error) {
	// gotrace fills dark pixels, so trace the inverse.
	inv := image.NewGray(mask.Bounds())
	for i, v := range mask.Pix {
		inv.Pix[i] = 255 - v
	}
	bm := gotrace.BitmapFromGray(inv, nil)
	paths, err := gotrace.Trace(bm, nil)
	if err != nil {
		return nil, errors.Wrap(err, "trace")
	}
	var buf bytes.Buffer
	sz := mask.Bounds().Size()
	if err := gotrace.Render("svg", nil, &buf, paths, sz.X, sz.Y); err != nil {
		return nil, errors.Wrap(err, "render svg")
	}
	return buf.Bytes(), nil
}

// WriteFile writes data to filename, reporting close errors too.
func WriteFile(filename string, data []byte) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	_, err = f.Write(data)
	return err
}

// DirSink writes layer masks and palette.json into Dir.
type DirSink struct {
	Dir string
	// Also write a traced SVG next to every mask.
	SVG bool
	// Paths of every file written, in order.
	Written []string
}

func (s *DirSink) WriteLayer(l fl.Layer) error {
	base := filepath.Join(s.Dir, l.FileBase())
	if err := SaveImage(l.Mask, base+".png"); err != nil {
		return err
	}
	s.Written = append(s.Written, base+".png")
	if !s.SVG {
		return nil
	}
	svg, err := TraceSVG(l.Mask)
	if err != nil {
		return err
	}
	if err := WriteFile(base+".svg", svg); err != nil {
		return err
	}
	s.Written = append(s.Written, base+".svg")
	return nil
}

func (s *DirSink) WritePalette(p fl.Palette) error {
	name := filepath.Join(s.Dir, "palette.json")
	if err := WriteFile(name, MarshalPalette(p)); err != nil {
		return err
	}
	s.Written = append(s.Written, name)
	return nil
}
