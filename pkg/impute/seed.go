package impute

import (
	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// SeedValue computes the initial fill value for one encoded column: the mean
// of observed values for numerical columns, the most frequent observed value
// for categorical ones. Ties between equally frequent categories go to the one
// encountered first in row order. ok is false when the column has no observed
// values at all.
func SeedValue(values []float64, missing map[int]bool, vt ff.VarType) (seed float64, ok bool) {
	if vt == ff.Numerical {
		sum, n := 0.0, 0
		for i, v := range values {
			if missing[i] {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			return 0, false
		}
		return sum / float64(n), true
	}

	counts := map[float64]int{}
	firstSeen := map[float64]int{}
	best, bestCount := 0.0, 0
	for i, v := range values {
		if missing[i] {
			continue
		}
		counts[v]++
		if _, seen := firstSeen[v]; !seen {
			firstSeen[v] = i
		}
		if counts[v] > bestCount || (counts[v] == bestCount && firstSeen[v] < firstSeen[best]) {
			best, bestCount = v, counts[v]
		}
	}
	if bestCount == 0 {
		return 0, false
	}
	return best, true
}
