package impute

import (
	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// ImputeColumn re-estimates the missing cells of one encoded column from the
// proximity matrix and returns the new value per missing row. Only observed
// rows contribute; the caller applies the returned values.
//
// Numerical columns get a proximity-weighted average of the observed values.
// Categorical columns get the category with the largest summed proximity; ties
// go to the globally more frequent category, then to the one observed first.
// A missing row with zero proximity to every observed row falls back to the
// column mean (numerical) or mode (categorical).
func ImputeColumn(values []float64, missing, observed []int, prox [][]float64, vt ff.VarType) map[int]float64 {
	if vt == ff.Numerical {
		return imputeNumerical(values, missing, observed, prox)
	}
	return imputeCategorical(values, missing, observed, prox)
}

func imputeNumerical(values []float64, missing, observed []int, prox [][]float64) map[int]float64 {
	mean := 0.0
	for _, o := range observed {
		mean += values[o]
	}
	if len(observed) > 0 {
		mean /= float64(len(observed))
	}

	out := make(map[int]float64, len(missing))
	for _, r := range missing {
		num, den := 0.0, 0.0
		for _, o := range observed {
			num += prox[r][o] * values[o]
			den += prox[r][o]
		}
		if den == 0 {
			out[r] = mean
			continue
		}
		out[r] = num / den
	}
	return out
}

func imputeCategorical(values []float64, missing, observed []int, prox [][]float64) map[int]float64 {
	freq := map[float64]int{}
	firstSeen := map[float64]int{}
	for k, o := range observed {
		v := values[o]
		freq[v]++
		if _, seen := firstSeen[v]; !seen {
			firstSeen[v] = k
		}
	}
	mode, _ := SeedValue(values, missingSet(missing), ff.Categorical)

	out := make(map[int]float64, len(missing))
	for _, r := range missing {
		weights := map[float64]float64{}
		total := 0.0
		for _, o := range observed {
			weights[values[o]] += prox[r][o]
			total += prox[r][o]
		}
		if total == 0 {
			out[r] = mode
			continue
		}
		best, picked := 0.0, false
		for v, w := range weights {
			if !picked || better(v, w, best, weights[best], freq, firstSeen) {
				best, picked = v, true
			}
		}
		out[r] = best
	}
	return out
}

// better orders candidate categories by summed proximity, then global
// frequency, then first-encountered position.
func better(v float64, w float64, best float64, bestW float64, freq map[float64]int, firstSeen map[float64]int) bool {
	if w != bestW {
		return w > bestW
	}
	if freq[v] != freq[best] {
		return freq[v] > freq[best]
	}
	return firstSeen[v] < firstSeen[best]
}

func missingSet(missing []int) map[int]bool {
	m := make(map[int]bool, len(missing))
	for _, r := range missing {
		m[r] = true
	}
	return m
}
