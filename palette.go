package flatlayers

import (
	"fmt"
	"slices"
)

// Palette is the ordered set of layer colors. Indices are layer ids.
type Palette []RGB

// LayerName is the key of layer k in the palette document.
func LayerName(k int) string {
	return fmt.Sprintf("layer_%d", k)
}

// LayerFileBase is the file name of layer k with color c, without extension.
func LayerFileBase(k int, c RGB) string {
	return fmt.Sprintf("layer_%d_r%d_g%d_b%d", k, c.R, c.G, c.B)
}

// SortByBrightness orders colors from darkest to brightest by linear
// luminance. The sort is stable so equal colors keep their cluster order.
func (p Palette) SortByBrightness() {
	slices.SortStableFunc(p, func(a, b RGB) int {
		ya, yb := luminance(a), luminance(b)
		if ya < yb {
			return -1
		}
		if ya > yb {
			return 1
		}
		return 0
	})
}

func luminance(c RGB) float64 {
	r, g, b := c.Colorful().LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}
