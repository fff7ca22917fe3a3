// Package ml holds the model families the service scores with: an isolation forest for
// log anomalies and a character n-gram naive Bayes pipeline for URLs. Both fit and score
// without external runtimes and serialise to plain JSON.
package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const eulerGamma = 0.5772156649015329

// AutoOffset is the decision offset used when contamination is "auto".
const AutoOffset = -0.5

// Node is one node of an isolation tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Size      int     `json:"size,omitempty"`
}

// Tree is a flattened isolation tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// IsolationForest scores samples by how quickly random partitions isolate them.
type IsolationForest struct {
	NumFeatures int     `json:"n_features"`
	MaxSamples  int     `json:"max_samples"`
	Offset      float64 `json:"offset"`
	Trees       []Tree  `json:"trees"`
}

// ForestOptions configures IsolationForest training.
type ForestOptions struct {
	Trees      int
	MaxSamples int
	// Contamination <= 0 selects the "auto" offset.
	Contamination float64
	Seed          int64
}

// DefaultForestOptions mirrors the usual 100 trees / 256 samples / auto setup.
func DefaultForestOptions() ForestOptions {
	return ForestOptions{Trees: 100, MaxSamples: 256, Seed: 42}
}

// FitIsolationForest trains a forest on the rows of x.
func FitIsolationForest(x [][]float64, opts ForestOptions) (*IsolationForest, error) {
	if len(x) == 0 {
		return nil, errors.New("no training samples")
	}
	width := len(x[0])
	if width == 0 {
		return nil, errors.New("training samples have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), width)
		}
	}
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.Contamination > 0.5 {
		return nil, fmt.Errorf("contamination %.3f must be in (0, 0.5]", opts.Contamination)
	}

	samples := opts.MaxSamples
	if samples <= 0 || samples > len(x) {
		samples = len(x)
	}
	if opts.MaxSamples <= 0 && samples > 256 {
		samples = 256
	}
	if samples < 2 {
		return nil, fmt.Errorf("max_samples %d is too small, need at least 2 samples per tree", samples)
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(samples), 2))))

	rng := rand.New(rand.NewSource(opts.Seed))
	forest := &IsolationForest{NumFeatures: width, MaxSamples: samples, Offset: AutoOffset}
	for t := 0; t < opts.Trees; t++ {
		idx := rng.Perm(len(x))[:samples]
		b := treeBuilder{x: x, rng: rng, maxDepth: maxDepth}
		b.build(idx, 0)
		forest.Trees = append(forest.Trees, Tree{Nodes: b.nodes})
	}

	if opts.Contamination > 0 {
		scores := make([]float64, len(x))
		for i, row := range x {
			scores[i] = forest.scoreSample(row)
		}
		forest.Offset = percentile(scores, 100*opts.Contamination)
	}
	return forest, nil
}

type treeBuilder struct {
	x        [][]float64
	rng      *rand.Rand
	maxDepth int
	nodes    []Node
}

func (b *treeBuilder) build(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Size: len(idx)})
	if depth >= b.maxDepth || len(idx) <= 1 {
		return at
	}

	width := len(b.x[idx[0]])
	lows := make([]float64, width)
	highs := make([]float64, width)
	copy(lows, b.x[idx[0]])
	copy(highs, b.x[idx[0]])
	for _, i := range idx[1:] {
		for f, v := range b.x[i] {
			lows[f] = math.Min(lows[f], v)
			highs[f] = math.Max(highs[f], v)
		}
	}
	candidates := make([]int, 0, width)
	for f := range lows {
		if highs[f] > lows[f] {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return at
	}

	feature := candidates[b.rng.Intn(len(candidates))]
	threshold := lows[feature] + b.rng.Float64()*(highs[feature]-lows[feature])
	if threshold >= highs[feature] {
		threshold = lows[feature]
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[at] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return at
}

// Validate checks the structural integrity of a deserialised forest.
func (f *IsolationForest) Validate() error {
	if f.NumFeatures <= 0 {
		return errors.New("forest has no features")
	}
	if f.MaxSamples < 2 {
		return fmt.Errorf("forest max_samples %d must be at least 2", f.MaxSamples)
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for n, node := range tree.Nodes {
			if node.Feature < 0 {
				continue
			}
			if node.Feature >= f.NumFeatures {
				return fmt.Errorf("tree %d node %d splits on feature %d of %d", t, n, node.Feature, f.NumFeatures)
			}
			if node.Left <= n || node.Right <= n || node.Left >= len(tree.Nodes) || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children", t, n)
			}
		}
	}
	return nil
}

// ScoreSamples returns the raw isolation score in [-1, 0]; lower is more anomalous.
func (f *IsolationForest) ScoreSamples(features []float64) (float64, error) {
	if len(features) != f.NumFeatures {
		return 0, fmt.Errorf("got %d features, model expects %d", len(features), f.NumFeatures)
	}
	return f.scoreSample(features), nil
}

// Score returns the predicted label (-1 anomalous, 1 normal) and the decision value.
// Negative decision values are anomalies.
func (f *IsolationForest) Score(features []float64) (int, float64, error) {
	raw, err := f.ScoreSamples(features)
	if err != nil {
		return 0, 0, err
	}
	decision := raw - f.Offset
	if decision < 0 {
		return -1, decision, nil
	}
	return 1, decision, nil
}

func (f *IsolationForest) scoreSample(features []float64) float64 {
	total := 0.0
	for _, tree := range f.Trees {
		total += tree.pathLength(features)
	}
	mean := total / float64(len(f.Trees))
	return -math.Pow(2, -mean/averagePathLength(f.MaxSamples))
}

func (t Tree) pathLength(features []float64) float64 {
	depth := 0
	at := 0
	for {
		node := t.Nodes[at]
		if node.Feature < 0 {
			return float64(depth) + averagePathLength(node.Size)
		}
		if features[node.Feature] <= node.Threshold {
			at = node.Left
		} else {
			at = node.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

// percentile uses linear interpolation between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
