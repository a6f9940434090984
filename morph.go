package flatlayers

import "image"

// MaxScratchPixels bounds the scratch buffer SmoothMask may allocate.
const MaxScratchPixels = 1 << 28

// ============ MASKS ============

// LayerMask returns a mask that is 255 where index == k and 0 elsewhere.
func LayerMask(index IndexBuffer, k int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, index.W, index.H))
	for y := range index.H {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+index.W]
		for x := range index.W {
			if index.Data[y*index.W+x] == k {
				row[x] = 255
			}
		}
	}
	return mask
}

// ============ OPENING ============

// SmoothMask applies a binary opening with a (2r+1)x(2r+1) square in place:
// erosion, then dilation of the eroded result. Both passes only cover pixels
// at least r away from every edge; the outer r-pixel frame keeps the value it
// had before smoothing. Any non-zero pixel counts as solid.
//
// It returns ErrAllocation and leaves mask unchanged when the scratch buffer
// cannot be allocated.
func SmoothMask(mask *image.Gray, radius int) error {
	return smoothMask(mask, radius, MaxScratchPixels)
}

func smoothMask(mask *image.Gray, radius, maxScratch int) error {
	if radius <= 0 {
		return nil
	}
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}
	if h > maxScratch/w {
		return ErrAllocation
	}
	tmp := make([]uint8, w*h)
	stride := mask.Stride

	// Erode
	for y := radius; y < h-radius; y++ {
		for x := radius; x < w-radius; x++ {
			solid := true
			for dy := -radius; dy <= radius && solid; dy++ {
				row := (y + dy) * stride
				for dx := -radius; dx <= radius; dx++ {
					if mask.Pix[row+x+dx] == 0 {
						solid = false
						break
					}
				}
			}
			if solid {
				tmp[y*w+x] = 255
			}
		}
	}

	// Dilate
	for y := radius; y < h-radius; y++ {
		for x := radius; x < w-radius; x++ {
			hit := false
			for dy := -radius; dy <= radius && !hit; dy++ {
				row := (y + dy) * w
				for dx := -radius; dx <= radius; dx++ {
					if tmp[row+x+dx] == 255 {
						hit = true
						break
					}
				}
			}
			var v uint8
			if hit {
				v = 255
			}
			mask.Pix[y*stride+x] = v
		}
	}
	return nil
}
