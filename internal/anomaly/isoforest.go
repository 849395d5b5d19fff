// Package anomaly implements the unsupervised outlier model used to score
// flows: an isolation forest fit per scenario, with all randomized sampling
// driven by a caller-provided seed so results are reproducible.
package anomaly

import (
	"math"
	"math/rand"
)

// treeNode is one node of an isolation tree, stored in a flat slice.
// Leaves carry the sample count that terminated there.
type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	size      int
	leaf      bool
}

type isoTree struct {
	nodes []treeNode
}

// isolationForest isolates points by random axis-aligned splits. Points that
// separate from the rest in few splits are anomalous.
type isolationForest struct {
	trees      []isoTree
	sampleSize int
}

// fitForest builds numTrees isolation trees over random subsamples of data.
// All randomness comes from rng; given the same data and rng state the
// forest is identical.
func fitForest(data [][]float64, numTrees, sampleSize int, rng *rand.Rand) *isolationForest {
	if sampleSize > len(data) {
		sampleSize = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize)))) + 1

	forest := &isolationForest{
		trees:      make([]isoTree, numTrees),
		sampleSize: sampleSize,
	}

	indexes := make([]int, len(data))
	for i := range indexes {
		indexes[i] = i
	}

	for t := 0; t < numTrees; t++ {
		// Partial Fisher-Yates: the first sampleSize entries become the
		// subsample for this tree.
		for i := 0; i < sampleSize; i++ {
			j := i + rng.Intn(len(indexes)-i)
			indexes[i], indexes[j] = indexes[j], indexes[i]
		}
		sample := make([]int, sampleSize)
		copy(sample, indexes[:sampleSize])

		tree := isoTree{}
		buildNode(&tree, data, sample, 0, maxDepth, rng)
		forest.trees[t] = tree
	}

	return forest
}

// buildNode grows a subtree over the given sample rows and returns its node
// index within the tree's flat slice.
func buildNode(tree *isoTree, data [][]float64, sample []int, depth, maxDepth int, rng *rand.Rand) int {
	idx := len(tree.nodes)
	tree.nodes = append(tree.nodes, treeNode{})

	if depth >= maxDepth || len(sample) <= 1 || allIdentical(data, sample) {
		tree.nodes[idx] = treeNode{leaf: true, size: len(sample)}
		return idx
	}

	numFeatures := len(data[sample[0]])

	// Pick a split feature with spread; up to numFeatures attempts keeps
	// the tree build bounded when most features are constant.
	var feature int
	var lo, hi float64
	found := false
	for attempt := 0; attempt < numFeatures; attempt++ {
		feature = rng.Intn(numFeatures)
		lo, hi = featureRange(data, sample, feature)
		if hi > lo {
			found = true
			break
		}
	}
	if !found {
		tree.nodes[idx] = treeNode{leaf: true, size: len(sample)}
		return idx
	}

	threshold := lo + rng.Float64()*(hi-lo)

	var leftSample, rightSample []int
	for _, row := range sample {
		if data[row][feature] < threshold {
			leftSample = append(leftSample, row)
		} else {
			rightSample = append(rightSample, row)
		}
	}
	if len(leftSample) == 0 || len(rightSample) == 0 {
		tree.nodes[idx] = treeNode{leaf: true, size: len(sample)}
		return idx
	}

	left := buildNode(tree, data, leftSample, depth+1, maxDepth, rng)
	right := buildNode(tree, data, rightSample, depth+1, maxDepth, rng)
	tree.nodes[idx] = treeNode{
		feature:   feature,
		threshold: threshold,
		left:      left,
		right:     right,
		size:      len(sample),
	}
	return idx
}

func allIdentical(data [][]float64, sample []int) bool {
	first := data[sample[0]]
	for _, row := range sample[1:] {
		for f, v := range data[row] {
			if v != first[f] {
				return false
			}
		}
	}
	return true
}

func featureRange(data [][]float64, sample []int, feature int) (lo, hi float64) {
	lo = data[sample[0]][feature]
	hi = lo
	for _, row := range sample[1:] {
		v := data[row][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// pathLength returns the depth at which x terminates in the tree, plus the
// standard adjustment c(size) for the unexpanded subtree at the leaf.
func (t *isoTree) pathLength(x []float64) float64 {
	depth := 0.0
	idx := 0
	for {
		node := t.nodes[idx]
		if node.leaf {
			return depth + avgPathLength(node.size)
		}
		if x[node.feature] < node.threshold {
			idx = node.left
		} else {
			idx = node.right
		}
		depth++
	}
}

// score returns the standard isolation forest anomaly score in (0, 1):
// s(x) = 2^(-E[h(x)] / c(n)). Higher means more anomalous.
func (f *isolationForest) score(x []float64) float64 {
	total := 0.0
	for i := range f.trees {
		total += f.trees[i].pathLength(x)
	}
	mean := total / float64(len(f.trees))
	return math.Pow(2, -mean/avgPathLength(f.sampleSize))
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search over n points: 2*H(n-1) - 2*(n-1)/n.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}
