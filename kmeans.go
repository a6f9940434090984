package flatlayers

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ============ SAMPLING ============

// SampleColors draws min(n, W*H) pixel colors uniformly with replacement.
func SampleColors(r Raster, n int, rng *rand.Rand) []RGB {
	pixels := len(r.Data)
	n = min(n, pixels)
	if n <= 0 {
		return nil
	}
	out := make([]RGB, n)
	for i := range out {
		out[i] = r.Data[rng.IntN(pixels)]
	}
	return out
}

// ============ K-MEANS ============

// ClusterPalette runs iters rounds of Lloyd's k-means over samples and rounds
// the centroids to a palette of k colors. Initial centroids are k samples
// drawn with replacement, so duplicates are possible. A centroid that loses
// all its samples keeps its previous value.
func ClusterPalette(samples []RGB, k, iters int, rng *rand.Rand) Palette {
	k = max(k, 1)
	palette := make(Palette, k)
	if len(samples) == 0 {
		return palette
	}

	centroids := mat.NewDense(k, 3, nil)
	for c := range k {
		s := samples[rng.IntN(len(samples))]
		centroids.SetRow(c, []float64{float64(s.R), float64(s.G), float64(s.B)})
	}

	sums := mat.NewDense(k, 3, nil)
	counts := make([]int, k)
	for range iters {
		sums.Zero()
		clear(counts)
		for _, s := range samples {
			best := nearestCentroid(centroids, s)
			acc := sums.RawRowView(best)
			acc[0] += float64(s.R)
			acc[1] += float64(s.G)
			acc[2] += float64(s.B)
			counts[best]++
		}
		for c := range k {
			if counts[c] == 0 {
				continue
			}
			n := float64(counts[c])
			acc := sums.RawRowView(c)
			centroids.SetRow(c, []float64{acc[0] / n, acc[1] / n, acc[2] / n})
		}
	}

	for c := range k {
		palette[c] = RGB{
			roundChannel(centroids.At(c, 0)),
			roundChannel(centroids.At(c, 1)),
			roundChannel(centroids.At(c, 2)),
		}
	}
	return palette
}

// nearestCentroid returns the lowest index among the closest centroids.
func nearestCentroid(centroids *mat.Dense, s RGB) int {
	k, _ := centroids.Dims()
	best := 0
	bestD := math.MaxFloat64
	for c := range k {
		cent := centroids.RawRowView(c)
		dr := float64(s.R) - cent[0]
		dg := float64(s.G) - cent[1]
		db := float64(s.B) - cent[2]
		d := dr*dr + dg*dg + db*db
		if d < bestD {
			bestD = d
			best = c
		}
	}
	return best
}

func roundChannel(v float64) uint8 {
	return uint8(max(0, min(255, math.Floor(v+0.5))))
}
