package impute

import (
	"runtime"
	"sync"
)

// Proximity computes the pairwise sample proximity under a fitted forest: the
// fraction of trees in which two samples land in the same leaf. The returned
// matrix is symmetric with unit diagonal and entries in [0, 1].
//
// Per-tree leaf partitions carry no cross-tree dependency, so trees are
// scattered over workers goroutines; each worker accumulates co-occurrence
// counts into its own partial matrix and the partials are summed at the end.
func Proximity(f Forest, x [][]float64, workers int) [][]float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	trees := f.NumTrees()

	// leaves[i][t] is the leaf sample i falls into in tree t.
	leaves := make([][]int, n)
	for i := range x {
		leaves[i] = f.Apply(x[i])
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > trees {
		workers = trees
	}

	partials := make([][][]float64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			counts := newMatrix(n)
			for t := w; t < trees; t += workers {
				byLeaf := map[int][]int{}
				for i := 0; i < n; i++ {
					leaf := leaves[i][t]
					byLeaf[leaf] = append(byLeaf[leaf], i)
				}
				for _, members := range byLeaf {
					for a := 0; a < len(members); a++ {
						for b := a + 1; b < len(members); b++ {
							counts[members[a]][members[b]]++
						}
					}
				}
			}
			partials[w] = counts
		}(w)
	}
	wg.Wait()

	prox := newMatrix(n)
	for _, p := range partials {
		for i := range p {
			for j := i + 1; j < n; j++ {
				prox[i][j] += p[i][j]
			}
		}
	}
	for i := 0; i < n; i++ {
		prox[i][i] = 1
		for j := i + 1; j < n; j++ {
			prox[i][j] /= float64(trees)
			prox[j][i] = prox[i][j]
		}
	}
	return prox
}

// Distance derives the elementwise 1 - proximity matrix. The diagonal is zero.
func Distance(prox [][]float64) [][]float64 {
	dist := newMatrix(len(prox))
	for i := range prox {
		for j := range prox[i] {
			dist[i][j] = 1 - prox[i][j]
		}
	}
	return dist
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
