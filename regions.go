package flatlayers

import "image"

// Region is a maximal 4-connected set of pixels sharing one palette index.
type Region struct {
	ID     int // label in Labeling.Labels, starting at 1
	Index  int // palette index of every member at labeling time
	Pixels []image.Point
}

func (r Region) Size() int { return len(r.Pixels) }

// Labeling is the result of one flood fill pass. Regions[i].ID == i+1.
type Labeling struct {
	Labels  Grid[int] // 0 = unlabeled
	Regions []Region
}

var (
	dx4 = [4]int{1, -1, 0, 0}
	dy4 = [4]int{0, 0, 1, -1}
)

// ============ FLOOD FILL ============

// LabelRegions assigns every pixel to exactly one 4-connected region of equal
// index values. Seeds are taken in row-major order and grown breadth first.
func LabelRegions(index IndexBuffer) Labeling {
	w, h := index.W, index.H
	labels := NewGrid[int](w, h)
	var regions []Region
	label := 1
	for y := range h {
		for x := range w {
			start := y*w + x
			if labels.Data[start] != 0 {
				continue
			}
			col := index.Data[start]
			labels.Data[start] = label
			elems := make([]image.Point, 1, 64)
			elems[0] = image.Point{X: x, Y: y}
			for c := 0; c < len(elems); c++ {
				cur := elems[c]
				for d := range 4 {
					nx, ny := cur.X+dx4[d], cur.Y+dy4[d]
					if !labels.Inside(nx, ny) {
						continue
					}
					nIdx := ny*w + nx
					if labels.Data[nIdx] != 0 || index.Data[nIdx] != col {
						continue
					}
					labels.Data[nIdx] = label
					elems = append(elems, image.Point{X: nx, Y: ny})
				}
			}
			regions = append(regions, Region{ID: label, Index: col, Pixels: elems})
			label++
		}
	}
	return Labeling{Labels: labels, Regions: regions}
}

// ============ AUTO-HEAL ============

// CleanRegions repaints every region smaller than minRegion with the index
// most frequent in the 8-neighborhoods of its members, counting only pixels
// outside the region. Ties go to the lower index; an empty histogram picks 0.
//
// Regions are visited in label order and index is mutated in place, so a
// repaint is visible to the regions after it. It returns the number of
// repainted regions.
func CleanRegions(index IndexBuffer, lab Labeling, k, minRegion int) int {
	hist := make([]int, k)
	repainted := 0
	for _, region := range lab.Regions {
		if region.Size() >= minRegion {
			continue
		}
		clear(hist)
		for _, p := range region.Pixels {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					sx, sy := p.X+dx, p.Y+dy
					if !index.Inside(sx, sy) {
						continue
					}
					sp := sy*index.W + sx
					if lab.Labels.Data[sp] != region.ID {
						hist[index.Data[sp]]++
					}
				}
			}
		}
		dom, mc := 0, 0
		for c, n := range hist {
			if n > mc {
				mc = n
				dom = c
			}
		}
		for _, p := range region.Pixels {
			index.Data[p.Y*index.W+p.X] = dom
		}
		repainted++
	}
	return repainted
}
