// Package forest implements a random forest regressor and classifier over a
// plain float matrix. Unlike most Go forest libraries it exposes per-tree leaf
// assignment (Apply), which proximity-based imputation needs.
package forest

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
)

// Kind selects the tree objective.
type Kind int

const (
	Regression Kind = iota
	Classification
)

// Params are the forest hyperparameters. Zero values select the defaults
// noted per field.
type Params struct {
	Trees       int     // number of trees; default 30
	MaxDepth    int     // -1 or 0 grows full trees
	MinSplit    int     // min node size to attempt a split; default 2
	MinLeaf     int     // min samples in a child; default 1
	MaxFeatures int     // features tried per split; default sqrt(nFeatures)
	SampleRatio float64 // bootstrap sample size as a ratio of n; default 1.0
	Workers     int     // tree-fitting goroutines; default GOMAXPROCS
	Seed        int64   // RNG seed; trees use Seed+treeIndex so fits are reproducible
}

func (p Params) withDefaults(nFeatures int) Params {
	if p.Trees <= 0 {
		p.Trees = 30
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = -1
	}
	if p.MinSplit <= 0 {
		p.MinSplit = 2
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 1
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > nFeatures {
		p.MaxFeatures = defaultMaxFeatures(nFeatures)
	}
	if p.SampleRatio <= 0 || p.SampleRatio > 1 {
		p.SampleRatio = 1
	}
	if p.Workers <= 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	return p
}

// Forest is a fitted ensemble.
type Forest struct {
	kind      Kind
	trees     []*Tree
	nFeatures int
	classes   []float64
}

// Fit trains a forest of p.Trees bootstrap trees on X and y. For
// Classification, y must hold integer class codes. Fitting is distributed over
// p.Workers goroutines; tree i is seeded with p.Seed+i so results do not
// depend on scheduling.
func Fit(ctx context.Context, kind Kind, X [][]float64, y []float64, p Params) (*Forest, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("forest: need matching non-empty X and y, got %d x %d", len(X), len(y))
	}
	p = p.withDefaults(len(X[0]))

	var classes []float64
	classIdx := map[float64]int{}
	if kind == Classification {
		for _, v := range y {
			if _, ok := classIdx[v]; !ok {
				classIdx[v] = 0
				classes = append(classes, v)
			}
		}
		sort.Float64s(classes)
		for i, c := range classes {
			classIdx[c] = i
		}
	}

	f := &Forest{kind: kind, trees: make([]*Tree, p.Trees), nFeatures: len(X[0]), classes: classes}

	in := make(chan int)
	done := make(chan error, p.Workers)
	for w := 0; w < p.Workers; w++ {
		go func() {
			for ti := range in {
				rng := rand.New(rand.NewSource(p.Seed + int64(ti)))
				idx := bootstrap(len(X), p.SampleRatio, rng)
				g := &grower{x: X, y: y, kind: kind, p: p, rng: rng, classes: classes, classIdx: classIdx}
				f.trees[ti] = g.fit(idx)
			}
			done <- nil
		}()
	}

	var err error
feed:
	for ti := 0; ti < p.Trees; ti++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case in <- ti:
		}
	}
	close(in)
	for w := 0; w < p.Workers; w++ {
		<-done
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NumTrees reports the ensemble size.
func (f *Forest) NumTrees() int { return len(f.trees) }

// Apply returns, per tree, the identifier of the leaf x falls into.
func (f *Forest) Apply(x []float64) []int {
	leaves := make([]int, len(f.trees))
	for i, t := range f.trees {
		leaves[i] = t.Apply(x)
	}
	return leaves
}

// Predict returns the ensemble prediction for x: the mean of tree outputs for
// regression, the majority class vote for classification (ties to the lower
// class code).
func (f *Forest) Predict(x []float64) float64 {
	if f.kind == Regression {
		sum := 0.0
		for _, t := range f.trees {
			sum += t.Predict(x)
		}
		return sum / float64(len(f.trees))
	}
	votes := make(map[float64]int, len(f.classes))
	for _, t := range f.trees {
		votes[t.Predict(x)]++
	}
	best, bestN := 0.0, -1
	for _, c := range f.classes {
		if n := votes[c]; n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

func bootstrap(n int, ratio float64, rng *rand.Rand) []int {
	m := int(float64(n) * ratio)
	if m < 1 {
		m = 1
	}
	idx := make([]int, m)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}
