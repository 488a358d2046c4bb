package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ForestConfig holds random forest hyperparameters
type ForestConfig struct {
	NEstimators     int    // Number of trees
	MaxDepth        int    // 0 grows trees until leaves are pure
	MinSamplesSplit int    // Minimum samples required to split a node
	MaxFeatures     int    // Features drawn per split; 0 uses floor(sqrt(n_features))
	Seed            uint64 // Base seed; tree i draws from PCG(seed, i)
	Workers         int    // Trees fitted concurrently
}

// DefaultForestConfig returns the hyperparameters used for emotion training
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NEstimators:     100,
		MinSamplesSplit: 2,
		Seed:            42,
		Workers:         4,
	}
}

// Node is one node of a decision tree. Leaves have Feature -1 and carry the class
// distribution of the training samples that reached them.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
	Samples   int       `json:"samples"`
}

// Tree is a CART decision tree stored as a flat node slice rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// RandomForest is a bagged ensemble of Gini decision trees
type RandomForest struct {
	NEstimators     int       `json:"n_estimators"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MaxFeatures     int       `json:"max_features"`
	Seed            uint64    `json:"random_state"`
	ClassNames      []string  `json:"classes"`
	NFeaturesIn     int       `json:"n_features_in"`
	Trees           []Tree    `json:"estimators"`
	Importances     []float64 `json:"feature_importances"`

	workers int
}

// NewRandomForest creates an unfitted forest
func NewRandomForest(config ForestConfig) *RandomForest {
	if config.NEstimators <= 0 {
		config.NEstimators = DefaultForestConfig().NEstimators
	}
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = 2
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &RandomForest{
		NEstimators:     config.NEstimators,
		MaxDepth:        config.MaxDepth,
		MinSamplesSplit: config.MinSamplesSplit,
		MaxFeatures:     config.MaxFeatures,
		Seed:            config.Seed,
		workers:         config.Workers,
	}
}

// Classes returns the class names in probability order (sorted)
func (rf *RandomForest) Classes() []string {
	out := make([]string, len(rf.ClassNames))
	copy(out, rf.ClassNames)
	return out
}

// NFeatures returns the vector length the forest was fitted on
func (rf *RandomForest) NFeatures() int {
	return rf.NFeaturesIn
}

// FeatureImportances returns the mean decrease in impurity per feature, summing to 1
func (rf *RandomForest) FeatureImportances() []float64 {
	out := make([]float64, len(rf.Importances))
	copy(out, rf.Importances)
	return out
}

// Fit grows the forest on X with labels y. The result depends only on the data and the seed,
// not on the number of workers.
func (rf *RandomForest) Fit(X [][]float64, y []string) error {
	if len(X) == 0 {
		return fmt.Errorf("cannot fit forest on an empty matrix")
	}
	if len(X) != len(y) {
		return fmt.Errorf("have %d rows but %d labels", len(X), len(y))
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return fmt.Errorf("cannot fit forest on zero-width rows")
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}

	classes := uniqueSorted(y)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		encoded[i] = index[label]
	}

	mtry := rf.MaxFeatures
	if mtry <= 0 {
		mtry = int(math.Floor(math.Sqrt(float64(nFeatures))))
	}
	mtry = max(1, min(mtry, nFeatures))

	trees := make([]Tree, rf.NEstimators)
	importances := make([][]float64, rf.NEstimators)

	workers := rf.workers
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("tree %d panicked: %v", i, r)
				}
			}()

			b := &treeBuilder{
				X:               X,
				y:               encoded,
				nClasses:        len(classes),
				nFeatures:       nFeatures,
				mtry:            mtry,
				maxDepth:        rf.MaxDepth,
				minSamplesSplit: rf.MinSamplesSplit,
				rng:             rand.New(rand.NewPCG(rf.Seed, uint64(i))),
				importance:      make([]float64, nFeatures),
			}
			trees[i] = b.build(b.bootstrap(len(X)))
			importances[i] = b.importance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.ClassNames = classes
	rf.NFeaturesIn = nFeatures
	rf.Trees = trees
	rf.Importances = averageImportances(importances, nFeatures)
	return nil
}

// PredictProba averages the leaf class distributions of every tree
func (rf *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("forest is not fitted")
	}
	if len(x) != rf.NFeaturesIn {
		return nil, fmt.Errorf("vector has %d features, forest expects %d", len(x), rf.NFeaturesIn)
	}

	proba := make([]float64, len(rf.ClassNames))
	for _, tree := range rf.Trees {
		leaf := tree.leaf(x)
		for c, p := range leaf.Value {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(rf.Trees))
	}
	return proba, nil
}

// Predict returns the most probable class; ties go to the first class in sorted order
func (rf *RandomForest) Predict(x []float64) (string, error) {
	proba, err := rf.PredictProba(x)
	if err != nil {
		return "", err
	}
	best := 0
	for c, p := range proba {
		if p > proba[best] {
			best = c
		}
	}
	return rf.ClassNames[best], nil
}

// Validate checks that a deserialised forest is structurally sound
func (rf *RandomForest) Validate() error {
	if len(rf.ClassNames) == 0 {
		return fmt.Errorf("forest has no classes")
	}
	if rf.NFeaturesIn <= 0 {
		return fmt.Errorf("forest has no features")
	}
	if len(rf.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for t, tree := range rf.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for n, node := range tree.Nodes {
			if node.Feature < 0 {
				if len(node.Value) != len(rf.ClassNames) {
					return fmt.Errorf("tree %d leaf %d has %d values for %d classes", t, n, len(node.Value), len(rf.ClassNames))
				}
				continue
			}
			if node.Feature >= rf.NFeaturesIn {
				return fmt.Errorf("tree %d node %d splits on feature %d of %d", t, n, node.Feature, rf.NFeaturesIn)
			}
			// children are always appended after their parent
			if node.Left <= n || node.Right <= n || node.Left >= len(tree.Nodes) || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children", t, n)
			}
		}
	}
	return nil
}

func (t *Tree) leaf(x []float64) *Node {
	i := 0
	for {
		node := &t.Nodes[i]
		if node.Feature < 0 {
			return node
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

type treeBuilder struct {
	X               [][]float64
	y               []int
	nClasses        int
	nFeatures       int
	mtry            int
	maxDepth        int
	minSamplesSplit int
	rng             *rand.Rand
	importance      []float64
	nodes           []Node
}

func (b *treeBuilder) bootstrap(n int) []int {
	samples := make([]int, n)
	for i := range samples {
		samples[i] = b.rng.IntN(n)
	}
	return samples
}

func (b *treeBuilder) build(samples []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(samples, 0)

	total := 0.0
	for _, v := range b.importance {
		total += v
	}
	if total > 0 {
		for j := range b.importance {
			b.importance[j] /= total
		}
	}
	return Tree{Nodes: b.nodes}
}

type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted child impurity
}

// grow appends the subtree for samples and returns its root index
func (b *treeBuilder) grow(samples []int, depth int) int {
	counts := b.classCounts(samples)
	impurity := gini(counts, len(samples))

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Samples: len(samples)})

	if len(samples) < b.minSamplesSplit || impurity == 0 || (b.maxDepth > 0 && depth >= b.maxDepth) {
		b.nodes[idx].Value = distribution(counts, len(samples))
		return idx
	}

	best, ok := b.bestSplit(samples)
	if !ok {
		b.nodes[idx].Value = distribution(counts, len(samples))
		return idx
	}

	var left, right []int
	for _, s := range samples {
		if b.X[s][best.feature] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	b.importance[best.feature] += float64(len(samples))*impurity - best.impurity

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx].Feature = best.feature
	b.nodes[idx].Threshold = best.threshold
	b.nodes[idx].Left = l
	b.nodes[idx].Right = r
	return idx
}

// bestSplit draws features in random order and evaluates the first mtry of them. When none of
// those can separate the samples it keeps drawing until one can or the features run out.
func (b *treeBuilder) bestSplit(samples []int) (split, bool) {
	order := b.rng.Perm(b.nFeatures)

	best := split{impurity: math.Inf(1)}
	found := false
	for visited, feature := range order {
		if visited >= b.mtry && found {
			break
		}
		if s, ok := b.evaluate(samples, feature); ok && s.impurity < best.impurity {
			best, found = s, true
		}
	}
	return best, found
}

// evaluate finds the threshold on feature that minimises the weighted Gini impurity of the
// children. Constant features cannot split.
func (b *treeBuilder) evaluate(samples []int, feature int) (split, bool) {
	sorted := make([]int, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return b.X[sorted[i]][feature] < b.X[sorted[j]][feature]
	})

	n := len(sorted)
	right := b.classCounts(sorted)
	left := make([]int, b.nClasses)

	best := split{feature: feature, impurity: math.Inf(1)}
	found := false
	for i := 0; i < n-1; i++ {
		c := b.y[sorted[i]]
		left[c]++
		right[c]--

		lo, hi := b.X[sorted[i]][feature], b.X[sorted[i+1]][feature]
		if lo >= hi {
			continue
		}
		nl, nr := i+1, n-i-1
		weighted := float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)
		if weighted < best.impurity {
			threshold := lo + (hi-lo)/2
			if threshold >= hi {
				threshold = lo
			}
			best.threshold = threshold
			best.impurity = weighted
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) classCounts(samples []int) []int {
	counts := make([]int, b.nClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	return counts
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for c, k := range counts {
		out[c] = float64(k) / float64(n)
	}
	return out
}

// averageImportances averages per-tree importances over the trees that split at all and
// renormalises the result
func averageImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		for j, v := range imp {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
