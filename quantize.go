package flatlayers

// Quantize maps every pixel to its nearest palette entry. Ties go to the lower
// index. The returned buffer is owned by the caller.
func Quantize(r Raster, palette Palette) IndexBuffer {
	index := NewGrid[int](r.W, r.H)
	for i, p := range r.Data {
		index.Data[i] = nearestIndex(palette, p)
	}
	return index
}

func nearestIndex(palette Palette, p RGB) int {
	best := 0
	bestD := -1
	for k, c := range palette {
		d := distSq(p, c)
		if bestD < 0 || d < bestD {
			bestD = d
			best = k
		}
	}
	return best
}
