// Package fluxband clusters flux timing deltas into timing bands and finds
// sync patterns independent of absolute clock rate. All functions operate on
// the caller-supplied window and allocate proportionally to it.
package fluxband

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Interval is a closed timing range owned by one band.
type Interval struct {
	Min float64
	Max float64
}

// ClusterModel describes K timing bands: centers, non-overlapping intervals,
// and the residual sum of the assignment that produced it. Valid is true iff
// the intervals strictly increase without overlap.
type ClusterModel struct {
	Centers   []float64
	Intervals []Interval
	Residual  float64
	Valid     bool
}

// Stats returns the mean and standard deviation of the deltas after trimming
// values beyond the 1st/99th percentile, which keeps dropout gaps and noise
// spikes from skewing the cell-time estimate.
func Stats(flux []int32) (mean, stddev float64) {
	if len(flux) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(flux))
	for i, d := range flux {
		xs[i] = float64(d)
	}
	sort.Float64s(xs)
	lo := stat.Quantile(0.01, stat.Empirical, xs, nil)
	hi := stat.Quantile(0.99, stat.Empirical, xs, nil)
	trimmed := xs[:0]
	for _, x := range xs {
		if x >= lo && x <= hi {
			trimmed = append(trimmed, x)
		}
	}
	if len(trimmed) == 0 {
		trimmed = xs
	}
	return stat.MeanStdDev(trimmed, nil)
}

// KMedian clusters the deltas into k bands, returning the k centers that
// minimize the summed absolute deviation. The result is exact (dynamic
// programming over the sorted distinct values) and deterministic for
// identical input ordering. Fewer than 2 samples, or k<=0, yields nil.
func KMedian(flux []int32, k int) []float64 {
	if len(flux) < 2 || k <= 0 {
		return nil
	}

	vals, weights := compress(flux)
	d := len(vals)
	if d <= k {
		out := make([]float64, d)
		copy(out, vals)
		return out
	}

	// Prefix sums over the weighted distinct values.
	cumW := make([]float64, d+1)
	cumS := make([]float64, d+1)
	for i := 0; i < d; i++ {
		cumW[i+1] = cumW[i] + weights[i]
		cumS[i+1] = cumS[i] + weights[i]*vals[i]
	}

	// cost of serving vals[i..j] with their weighted median.
	cost := func(i, j int) float64 {
		half := (cumW[j+1] - cumW[i]) / 2
		m := sort.Search(j-i+1, func(n int) bool {
			return cumW[i+n+1]-cumW[i] >= half
		}) + i
		med := vals[m]
		left := med*(cumW[m+1]-cumW[i]) - (cumS[m+1] - cumS[i])
		right := (cumS[j+1] - cumS[m+1]) - med*(cumW[j+1]-cumW[m+1])
		return left + right
	}

	const inf = math.MaxFloat64
	prev := make([]float64, d)
	cur := make([]float64, d)
	split := make([][]int, k)
	for m := range split {
		split[m] = make([]int, d)
	}
	for j := 0; j < d; j++ {
		prev[j] = cost(0, j)
	}
	for m := 1; m < k; m++ {
		for j := 0; j < d; j++ {
			cur[j] = inf
			for i := m; i <= j; i++ {
				c := prev[i-1] + cost(i, j)
				if c < cur[j] {
					cur[j] = c
					split[m][j] = i
				}
			}
		}
		prev, cur = cur, prev
	}

	// Reconstruct segment boundaries, then report each segment's median.
	bounds := make([]int, k+1)
	bounds[k] = d
	j := d - 1
	for m := k - 1; m >= 1; m-- {
		i := split[m][j]
		bounds[m] = i
		j = i - 1
	}
	centers := make([]float64, k)
	for m := 0; m < k; m++ {
		i, jj := bounds[m], bounds[m+1]-1
		half := (cumW[jj+1] - cumW[i]) / 2
		mi := sort.Search(jj-i+1, func(n int) bool {
			return cumW[i+n+1]-cumW[i] >= half
		}) + i
		centers[m] = vals[mi]
	}
	return centers
}

// KCenter finds up to k centers such that every delta lies within maxRadius
// of its nearest center. ok is false when k centers cannot cover the data;
// the achieved radius is the realized maximum distance when ok.
func KCenter(flux []int32, k int, maxRadius float64) (centers []float64, achieved float64, ok bool) {
	if len(flux) < 2 || k <= 0 || maxRadius < 0 {
		return nil, 0, len(flux) < 2
	}
	vals, _ := compress(flux)

	// Greedy sweep: each center covers [v, v+2*maxRadius] of sorted values.
	for i := 0; i < len(vals); {
		if len(centers) == k {
			return nil, 0, false
		}
		c := vals[i] + maxRadius
		centers = append(centers, c)
		for i < len(vals) && vals[i] <= c+maxRadius {
			if r := math.Abs(vals[i] - c); r > achieved {
				achieved = r
			}
			i++
		}
	}
	return centers, achieved, true
}

// Assign maps each delta to its nearest center and retains the signed
// residual for weak/anomaly scoring. Centers must be sorted ascending.
func Assign(flux []int32, centers []float64) (bands []int, residuals []float64) {
	if len(flux) == 0 || len(centers) == 0 {
		return nil, nil
	}
	bands = make([]int, len(flux))
	residuals = make([]float64, len(flux))
	for i, d := range flux {
		v := float64(d)
		best := 0
		bestDist := math.Abs(v - centers[0])
		for c := 1; c < len(centers); c++ {
			if dist := math.Abs(v - centers[c]); dist < bestDist {
				best, bestDist = c, dist
			}
		}
		bands[i] = best
		residuals[i] = v - centers[best]
	}
	return bands, residuals
}

// ClassifyBands computes the minimal [min,max] interval per band over the
// window starting at matchPos, using the supplied assignments. The model is
// invalid when any pair of adjacent band intervals overlaps.
func ClassifyBands(flux []int32, matchPos int, bands []int) ClusterModel {
	var model ClusterModel
	if matchPos < 0 || matchPos >= len(flux) || len(bands) == 0 {
		return model
	}
	n := len(flux) - matchPos
	if n > len(bands) {
		n = len(bands)
	}

	k := 0
	for _, b := range bands[:n] {
		if b+1 > k {
			k = b + 1
		}
	}
	intervals := make([]Interval, k)
	seen := make([]bool, k)
	sums := make([]float64, k)
	counts := make([]float64, k)
	for i := 0; i < n; i++ {
		b := bands[i]
		if b < 0 || b >= k {
			continue
		}
		v := float64(flux[matchPos+i])
		if !seen[b] {
			intervals[b] = Interval{Min: v, Max: v}
			seen[b] = true
		} else {
			if v < intervals[b].Min {
				intervals[b].Min = v
			}
			if v > intervals[b].Max {
				intervals[b].Max = v
			}
		}
		sums[b] += v
		counts[b]++
	}

	model.Intervals = intervals
	model.Centers = make([]float64, k)
	for b := 0; b < k; b++ {
		if counts[b] > 0 {
			model.Centers[b] = sums[b] / counts[b]
		}
	}
	model.Valid = true
	for b := 0; b+1 < k; b++ {
		if !seen[b] || !seen[b+1] || intervals[b].Max >= intervals[b+1].Min {
			model.Valid = false
			break
		}
	}
	for i := 0; i < n; i++ {
		b := bands[i]
		if b >= 0 && b < k && counts[b] > 0 {
			model.Residual += math.Abs(float64(flux[matchPos+i]) - model.Centers[b])
		}
	}
	return model
}

func compress(flux []int32) (vals, weights []float64) {
	sorted := make([]int32, len(flux))
	copy(sorted, flux)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		vals = append(vals, float64(sorted[i]))
		weights = append(weights, float64(j-i))
		i = j
	}
	return vals, weights
}
