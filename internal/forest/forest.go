// Package forest реализует регрессию случайным лесом из деревьев CART.
//
// Каждое дерево обучается на бутстреп-выборке, в каждом узле рассматриваются все признаки,
// разбиение выбирается по минимуму суммы квадратов отклонений, лист предсказывает среднее.
// Генератор случайных чисел инициализируется Config.Seed, поэтому обучение воспроизводимо:
// сиды деревьев вынимаются последовательно из общего генератора до параллельного построения.
package forest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ErrEmptyTrainingSet возвращается при обучении на пустой выборке.
var ErrEmptyTrainingSet = errors.New("empty training set")

// Config содержит гиперпараметры леса.
type Config struct {
	Trees           int   // Число деревьев
	Seed            int64 // Сид генератора
	MaxDepth        int   // 0 - без ограничения
	MinSamplesSplit int   // Минимум наблюдений для разбиения узла
	Workers         int   // Число деревьев, строящихся одновременно
}

// DefaultConfig возвращает 100 деревьев, сид 42 и неограниченную глубину.
func DefaultConfig() Config {
	return Config{Trees: 100, Seed: 42, MinSamplesSplit: 2, Workers: 1}
}

// Node - узел дерева. У листа Left и Right равны -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int32   `json:"l"`
	Right     int32   `json:"r"`
	Value     float64 `json:"v"`
}

func (n *Node) isLeaf() bool { return n.Left < 0 }

// Tree хранит узлы в прямом порядке обхода, корень имеет индекс 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict возвращает предсказание дерева для строки признаков.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.isLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = int(n.Left)
		} else {
			i = int(n.Right)
		}
	}
}

// Forest - обученный ансамбль. Только читается после Fit и безопасен для конкурентного Predict.
type Forest struct {
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

// Fit обучает лес на строках X и целевых значениях y.
func Fit(ctx context.Context, X [][]float64, y []float64, cfg Config) (*Forest, error) {
	if len(X) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("features and target length mismatch: %d vs %d", len(X), len(y))
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return nil, fmt.Errorf("no features")
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), nFeatures)
		}
	}

	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	master := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // воспроизводимость важнее криптостойкости
	seeds := make([]int64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]Tree, cfg.Trees)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i])) //nolint:gosec
			trees[i] = growTree(X, y, bootstrap(rng, len(X)), cfg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{NFeatures: nFeatures, Trees: trees}, nil
}

// Predict возвращает среднее предсказание деревьев.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictBatch возвращает предсказания для каждой строки X.
func (f *Forest) PredictBatch(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		if len(x) != f.NFeatures {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(x), f.NFeatures)
		}
		out[i] = f.Predict(x)
	}
	return out, nil
}

// Validate проверяет структуру загруженной модели: дочерние узлы идут после родителя,
// индексы признаков в допустимом диапазоне.
func (f *Forest) Validate() error {
	if f.NFeatures <= 0 {
		return fmt.Errorf("invalid feature count %d", f.NFeatures)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.isLeaf() {
				continue
			}
			if int(n.Left) <= ni || int(n.Right) <= ni || int(n.Left) >= len(t.Nodes) || int(n.Right) >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children (%d, %d)", ti, ni, n.Left, n.Right)
			}
			if n.Feature < 0 || n.Feature >= f.NFeatures {
				return fmt.Errorf("tree %d node %d has invalid feature %d", ti, ni, n.Feature)
			}
		}
	}
	return nil
}

func bootstrap(rng *rand.Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

type builder struct {
	X        [][]float64
	y        []float64
	maxDepth int
	minSplit int
	nodes    []Node
	scratch  []int
}

func growTree(X [][]float64, y []float64, sample []int, cfg Config) Tree {
	b := &builder{
		X:        X,
		y:        y,
		maxDepth: cfg.MaxDepth,
		minSplit: cfg.MinSamplesSplit,
		scratch:  make([]int, len(sample)),
	}
	b.grow(sample, 0)
	return Tree{Nodes: b.nodes}
}

func (b *builder) grow(idx []int, depth int) int32 {
	id := int32(len(b.nodes))

	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: sum / float64(len(idx))})

	if len(idx) < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) || b.pure(idx) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx, sum)
	if !ok {
		return id
	}

	l := b.partition(idx, feature, threshold)
	left := b.grow(idx[:l], depth+1)
	right := b.grow(idx[l:], depth+1)

	n := &b.nodes[id]
	n.Feature = feature
	n.Threshold = threshold
	n.Left = left
	n.Right = right
	return id
}

func (b *builder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// bestSplit перебирает все признаки и все границы между различными значениями.
// Максимизация sumL²/nL + sumR²/nR эквивалентна минимизации суммы квадратов отклонений.
// При равенстве выигрывает первое найденное разбиение.
func (b *builder) bestSplit(idx []int, total float64) (int, float64, bool) {
	n := len(idx)
	bestScore := 0.0
	bestFeature := -1
	var bestThreshold float64

	for f := 0; f < len(b.X[idx[0]]); f++ {
		slices.SortFunc(idx, func(a, c int) int {
			return cmp.Compare(b.X[a][f], b.X[c][f])
		})

		var left float64
		for k := 1; k < n; k++ {
			left += b.y[idx[k-1]]

			lo, hi := b.X[idx[k-1]][f], b.X[idx[k]][f]
			if hi <= lo {
				continue
			}

			right := total - left
			score := left*left/float64(k) + right*right/float64(n-k)
			if bestFeature < 0 || score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// partition переставляет idx так, что наблюдения с x[feature] <= threshold идут первыми,
// сохраняя относительный порядок, и возвращает их число.
func (b *builder) partition(idx []int, feature int, threshold float64) int {
	buf := b.scratch[:len(idx)]
	l := 0
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			buf[l] = i
			l++
		}
	}
	r := l
	for _, i := range idx {
		if b.X[i][feature] > threshold {
			buf[r] = i
			r++
		}
	}
	copy(idx, buf)
	return l
}
