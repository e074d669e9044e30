// Package mds projects a distance matrix into low-dimensional coordinates via
// classical multidimensional scaling, for visualizing the sample structure the
// forest learned. Purely diagnostic; the imputation core consumes nothing from
// it.
package mds

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Scale performs classical (Torgerson) MDS on a symmetric distance matrix and
// returns n x k coordinates. Double-centers the squared distances, takes the
// top k eigenpairs, and scales eigenvectors by sqrt(eigenvalue). Dimensions
// with non-positive eigenvalues collapse to zero.
func Scale(dist [][]float64, k int) ([][]float64, error) {
	n := len(dist)
	if n == 0 {
		return nil, fmt.Errorf("mds: empty distance matrix")
	}
	if k <= 0 || k > n {
		return nil, fmt.Errorf("mds: dimension %d out of range for %d samples", k, n)
	}
	for i := range dist {
		if len(dist[i]) != n {
			return nil, fmt.Errorf("mds: distance matrix is not square")
		}
	}

	// B = -1/2 * J * D^2 * J with J = I - 11'/n.
	b := mat.NewSymDense(n, nil)
	rowMean := make([]float64, n)
	grand := 0.0
	sq := make([][]float64, n)
	for i := range dist {
		sq[i] = make([]float64, n)
		for j := range dist[i] {
			d2 := dist[i][j] * dist[i][j]
			sq[i][j] = d2
			rowMean[i] += d2
			grand += d2
		}
		rowMean[i] /= float64(n)
	}
	grand /= float64(n * n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, -0.5*(sq[i][j]-rowMean[i]-rowMean[j]+grand))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(b, true); !ok {
		return nil, fmt.Errorf("mds: eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come back ascending; take the k largest.
	coords := make([][]float64, n)
	for i := range coords {
		coords[i] = make([]float64, k)
	}
	for d := 0; d < k; d++ {
		ei := n - 1 - d
		if vals[ei] <= 0 {
			continue
		}
		scale := math.Sqrt(vals[ei])
		for i := 0; i < n; i++ {
			coords[i][d] = vecs.At(i, ei) * scale
		}
	}
	return coords, nil
}
