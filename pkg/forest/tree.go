package forest

import (
	"math"
	"math/rand"
	"sort"
)

// node is a single split or leaf. Children are indices into Tree.nodes; a node
// with left == -1 is a leaf.
type node struct {
	left, right int
	splitVar    int
	splitVal    float64
	value       float64
}

// Tree is a fitted decision tree. Nodes are stored flat so leaf identity is a
// stable small integer, which the proximity computation depends on.
type Tree struct {
	nodes []node
}

// Apply returns the index of the leaf node x falls into.
func (t *Tree) Apply(x []float64) int {
	i := 0
	for t.nodes[i].left != -1 {
		if x[t.nodes[i].splitVar] <= t.nodes[i].splitVal {
			i = t.nodes[i].left
		} else {
			i = t.nodes[i].right
		}
	}
	return i
}

// Predict returns the value stored at the leaf x falls into: the training mean
// for regression, the majority class code for classification.
func (t *Tree) Predict(x []float64) float64 {
	return t.nodes[t.Apply(x)].value
}

// Leaves reports how many leaf nodes the tree has.
func (t *Tree) Leaves() int {
	n := 0
	for _, nd := range t.nodes {
		if nd.left == -1 {
			n++
		}
	}
	return n
}

type grower struct {
	x        [][]float64
	y        []float64
	kind     Kind
	p        Params
	rng      *rand.Rand
	classes  []float64
	classIdx map[float64]int
	nodes    []node
}

func (g *grower) fit(idx []int) *Tree {
	g.grow(idx, 0)
	return &Tree{nodes: g.nodes}
}

// grow appends the subtree for idx and returns its root's node index.
func (g *grower) grow(idx []int, depth int) int {
	me := len(g.nodes)
	g.nodes = append(g.nodes, node{left: -1, right: -1, value: g.leafValue(idx)})

	if len(idx) < g.p.MinSplit || (g.p.MaxDepth >= 0 && depth >= g.p.MaxDepth) || g.pure(idx) {
		return me
	}
	splitVar, splitVal, ok := g.bestSplit(idx)
	if !ok {
		return me
	}
	var left, right []int
	for _, i := range idx {
		if g.x[i][splitVar] <= splitVal {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < g.p.MinLeaf || len(right) < g.p.MinLeaf {
		return me
	}
	g.nodes[me].splitVar = splitVar
	g.nodes[me].splitVal = splitVal
	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[me].left = l
	g.nodes[me].right = r
	return me
}

func (g *grower) pure(idx []int) bool {
	for _, i := range idx[1:] {
		if g.y[i] != g.y[idx[0]] {
			return false
		}
	}
	return true
}

func (g *grower) leafValue(idx []int) float64 {
	if g.kind == Regression {
		sum := 0.0
		for _, i := range idx {
			sum += g.y[i]
		}
		return sum / float64(len(idx))
	}
	counts := make([]int, len(g.classes))
	for _, i := range idx {
		counts[g.classIdx[g.y[i]]]++
	}
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return g.classes[best]
}

// bestSplit scans a random subset of features for the threshold with the
// largest impurity decrease: variance for regression, Gini for classification.
func (g *grower) bestSplit(idx []int) (int, float64, bool) {
	nFeat := len(g.x[0])
	feats := g.rng.Perm(nFeat)
	if g.p.MaxFeatures < nFeat {
		feats = feats[:g.p.MaxFeatures]
	}

	bestGain := 0.0
	bestVar, bestVal := -1, 0.0
	for _, fv := range feats {
		val, gain, ok := g.scanFeature(idx, fv)
		if ok && gain > bestGain {
			bestGain, bestVar, bestVal = gain, fv, val
		}
	}
	return bestVar, bestVal, bestVar >= 0
}

func (g *grower) scanFeature(idx []int, fv int) (float64, float64, bool) {
	order := make([]int, len(idx))
	copy(order, idx)
	sort.Slice(order, func(a, b int) bool { return g.x[order[a]][fv] < g.x[order[b]][fv] })

	if g.kind == Regression {
		return g.scanRegression(order, fv)
	}
	return g.scanClassification(order, fv)
}

func (g *grower) scanRegression(order []int, fv int) (float64, float64, bool) {
	n := float64(len(order))
	var total, totalSq float64
	for _, i := range order {
		total += g.y[i]
		totalSq += g.y[i] * g.y[i]
	}
	parent := totalSq/n - (total/n)*(total/n)

	bestGain, bestVal, found := 0.0, 0.0, false
	var lSum, lSq float64
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		lSum += g.y[i]
		lSq += g.y[i] * g.y[i]
		if g.x[i][fv] == g.x[order[k+1]][fv] {
			continue
		}
		nl := float64(k + 1)
		nr := n - nl
		lVar := lSq/nl - (lSum/nl)*(lSum/nl)
		rSum := total - lSum
		rSq := totalSq - lSq
		rVar := rSq/nr - (rSum/nr)*(rSum/nr)
		gain := parent - (nl/n)*lVar - (nr/n)*rVar
		if gain > bestGain {
			bestGain = gain
			bestVal = (g.x[i][fv] + g.x[order[k+1]][fv]) / 2
			found = true
		}
	}
	return bestVal, bestGain, found
}

func (g *grower) scanClassification(order []int, fv int) (float64, float64, bool) {
	n := float64(len(order))
	totals := make([]int, len(g.classes))
	for _, i := range order {
		totals[g.classIdx[g.y[i]]]++
	}
	parent := gini(totals, len(order))

	bestGain, bestVal, found := 0.0, 0.0, false
	lCounts := make([]int, len(g.classes))
	rCounts := make([]int, len(g.classes))
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		lCounts[g.classIdx[g.y[i]]]++
		if g.x[i][fv] == g.x[order[k+1]][fv] {
			continue
		}
		nl := k + 1
		nr := len(order) - nl
		for c := range rCounts {
			rCounts[c] = totals[c] - lCounts[c]
		}
		gain := parent - (float64(nl)/n)*gini(lCounts, nl) - (float64(nr)/n)*gini(rCounts, nr)
		if gain > bestGain {
			bestGain = gain
			bestVal = (g.x[i][fv] + g.x[order[k+1]][fv]) / 2
			found = true
		}
	}
	return bestVal, bestGain, found
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func defaultMaxFeatures(nFeatures int) int {
	m := int(math.Sqrt(float64(nFeatures)))
	if m < 1 {
		m = 1
	}
	return m
}
