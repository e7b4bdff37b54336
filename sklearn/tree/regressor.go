// Package tree は二乗誤差基準のCART回帰木を提供する。
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/metrics"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// 特徴量サンプリング規則
const (
	MaxFeaturesAll  = ""
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

const (
	leafMarker = -1

	// Values closer than this are treated as equal when placing thresholds.
	featureThreshold = 1e-7
)

// Node は木のノード。葉では Left == Right == -1。
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	NSamples  int
	Impurity  float64
}

// IsLeaf はノードが葉かどうかを返す
func (n Node) IsLeaf() bool {
	return n.Left == leafMarker
}

// DecisionTreeRegressor はscikit-learn互換の回帰木。
// ノードはフラットな配列に格納されるため gob でそのまま保存できる。
type DecisionTreeRegressor struct {
	State *model.StateManager

	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	RandomState     int64

	Nodes       []Node
	Importances []float64
}

// NewDecisionTreeRegressor は新しいDecisionTreeRegressorを作成する
//
// 使用例:
//
//	dt := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(10), tree.WithMaxFeatures("sqrt"))
//	err := dt.Fit(X, y)
//	pred, err := dt.Predict(X)
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Data は学習用の行優先の特徴量行列と目的変数。
// RandomForestRegressor は1つの Data を全ての木で共有する。
type Data struct {
	X         []float64
	Y         []float64
	NSamples  int
	NFeatures int
}

// NewData は X (n×p) と y (n×1) を検証して Data に変換する。
// 木は欠損値を扱えないため NaN を含む入力は ValueError になる。
func NewData(X, y mat.Matrix) (*Data, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != r {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Fit", r, yr, 0)
	}
	if yc != 1 {
		return nil, errors.NewValueError("DecisionTreeRegressor.Fit", "y must be a column vector (n×1 matrix)")
	}

	d := &Data{
		X:         make([]float64, r*c),
		Y:         make([]float64, r),
		NSamples:  r,
		NFeatures: c,
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.X[i*c+j] = X.At(i, j)
		}
		d.Y[i] = y.At(i, 0)
	}
	if floats.HasNaN(d.X) || floats.HasNaN(d.Y) {
		return nil, errors.NewValueError("DecisionTreeRegressor.Fit", "input contains NaN")
	}
	return d, nil
}

func (d *Data) at(i, j int) float64 {
	return d.X[i*d.NFeatures+j]
}

// Fit は訓練データで木を構築する
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	d, err := NewData(X, y)
	if err != nil {
		return err
	}
	samples := make([]int, d.NSamples)
	for i := range samples {
		samples[i] = i
	}
	return t.FitData(d, samples)
}

// FitData は samples で指定した行（重複可）だけを使って木を構築する
func (t *DecisionTreeRegressor) FitData(d *Data, samples []int) error {
	if len(samples) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := t.validate(); err != nil {
		return err
	}
	if t.State == nil {
		t.State = model.NewStateManager()
	}
	t.State.Reset()

	b := &builder{
		tree:        t,
		data:        d,
		maxFeatures: resolveMaxFeatures(t.MaxFeatures, d.NFeatures),
		rng:         rand.New(rand.NewPCG(uint64(t.RandomState), 0x9e3779b97f4a7c15)),
		importances: make([]float64, d.NFeatures),
	}
	t.Nodes = t.Nodes[:0]
	b.build(append([]int(nil), samples...), 0)

	if total := floats.Sum(b.importances); total > 0 {
		floats.Scale(1/total, b.importances)
	}
	t.Importances = b.importances

	t.State.SetDimensions(d.NFeatures, len(samples))
	t.State.SetFitted()
	return nil
}

func (t *DecisionTreeRegressor) validate() error {
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", t.MinSamplesLeaf)
	}
	switch t.MaxFeatures {
	case MaxFeaturesAll, MaxFeaturesSqrt, MaxFeaturesLog2:
	default:
		return errors.NewValidationError("max_features", "must be sqrt, log2 or empty", t.MaxFeatures)
	}
	return nil
}

func resolveMaxFeatures(rule string, p int) int {
	var k int
	switch rule {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(p)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(p)))
	default:
		k = p
	}
	if k < 1 {
		k = 1
	}
	if k > p {
		k = p
	}
	return k
}

type builder struct {
	tree        *DecisionTreeRegressor
	data        *Data
	maxFeatures int
	rng         *rand.Rand
	importances []float64
}

type split struct {
	feature   int
	threshold float64
	proxy     float64
	nLeft     int
}

// build appends the subtree for samples and returns its root index.
func (b *builder) build(samples []int, depth int) int {
	t := b.tree
	n := len(samples)

	var sum, sumSq float64
	for _, s := range samples {
		v := b.data.Y[s]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	impurity := math.Max(sumSq/float64(n)-mean*mean, 0)

	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		Feature:  leafMarker,
		Left:     leafMarker,
		Right:    leafMarker,
		Value:    mean,
		NSamples: n,
		Impurity: impurity,
	})

	if (t.MaxDepth > 0 && depth >= t.MaxDepth) ||
		n < t.MinSamplesSplit ||
		n < 2*t.MinSamplesLeaf ||
		impurity <= 1e-12 {
		return id
	}

	best, ok := b.bestSplit(samples, sum)
	if !ok {
		return id
	}
	b.importances[best.feature] += best.proxy - sum*sum/float64(n)

	left := make([]int, 0, best.nLeft)
	right := make([]int, 0, n-best.nLeft)
	for _, s := range samples {
		if b.data.at(s, best.feature) <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	leftID := b.build(left, depth+1)
	rightID := b.build(right, depth+1)

	t.Nodes[id].Feature = best.feature
	t.Nodes[id].Threshold = best.threshold
	t.Nodes[id].Left = leftID
	t.Nodes[id].Right = rightID
	return id
}

// bestSplit draws features in random order until maxFeatures non-constant
// ones have been evaluated, and maximizes sumL²/nL + sumR²/nR.
func (b *builder) bestSplit(samples []int, sum float64) (split, bool) {
	n := len(samples)
	minLeaf := b.tree.MinSamplesLeaf
	best := split{proxy: math.Inf(-1)}
	found := false

	sorted := make([]int, n)
	visited := 0
	for _, f := range b.rng.Perm(b.data.NFeatures) {
		if visited >= b.maxFeatures {
			break
		}
		copy(sorted, samples)
		sort.Slice(sorted, func(i, j int) bool {
			return b.data.at(sorted[i], f) < b.data.at(sorted[j], f)
		})
		if b.data.at(sorted[n-1], f) <= b.data.at(sorted[0], f)+featureThreshold {
			continue
		}
		visited++

		var sumLeft float64
		for i := 0; i < n-1; i++ {
			sumLeft += b.data.Y[sorted[i]]
			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			xi := b.data.at(sorted[i], f)
			xNext := b.data.at(sorted[i+1], f)
			if xNext <= xi+featureThreshold {
				continue
			}

			sumRight := sum - sumLeft
			proxy := sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight)
			if proxy > best.proxy {
				threshold := xi/2 + xNext/2
				if threshold >= xNext || math.IsInf(threshold, 0) {
					threshold = xi
				}
				best = split{feature: f, threshold: threshold, proxy: proxy, nLeft: nLeft}
				found = true
			}
		}
	}
	return best, found
}

// Predict は各行について葉の平均値を返す (n×1)
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := t.State.RequireFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(r, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.SetVec(i, t.PredictRow(row))
	}
	return out, nil
}

// PredictRow は1行分の予測値を返す。学習済みであることは呼び出し側が保証する。
func (t *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	node := t.Nodes[0]
	for !node.IsLeaf() {
		if x[node.Feature] <= node.Threshold {
			node = t.Nodes[node.Left]
		} else {
			node = t.Nodes[node.Right]
		}
	}
	return node.Value
}

// Score は決定係数R²を返す
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// IsFitted はモデルが学習済みかどうかを返す
func (t *DecisionTreeRegressor) IsFitted() bool {
	return t.State != nil && t.State.IsFitted()
}

// FeatureImportances は不純度減少に基づく正規化済みの特徴量重要度を返す
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := t.State.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return append([]float64(nil), t.Importances...), nil
}

// Depth は木の深さを返す。根だけの木は0。
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(id int) int
	walk = func(id int) int {
		node := t.Nodes[id]
		if node.IsLeaf() {
			return 0
		}
		return 1 + max(walk(node.Left), walk(node.Right))
	}
	return walk(0)
}

// NLeaves は葉の数を返す
func (t *DecisionTreeRegressor) NLeaves() int {
	leaves := 0
	for _, node := range t.Nodes {
		if node.IsLeaf() {
			leaves++
		}
	}
	return leaves
}

// GetParams はハイパーパラメータを返す
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         model.OptionalInt(t.MaxDepth),
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      int(t.RandomState),
	}
}

// SetParams はハイパーパラメータを設定する
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "max_depth":
			t.MaxDepth, err = model.OptionalIntParam(key, value)
		case "min_samples_split":
			t.MinSamplesSplit, err = model.IntParam(key, value)
		case "min_samples_leaf":
			t.MinSamplesLeaf, err = model.IntParam(key, value)
		case "max_features":
			t.MaxFeatures, err = model.StringParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			t.RandomState = int64(seed)
		default:
			err = errors.NewValidationError(key, "unknown parameter for DecisionTreeRegressor", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
