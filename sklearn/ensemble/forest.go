// Package ensemble はブートストラップ集約による回帰森を提供する。
package ensemble

import (
	"math/rand/v2"

	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/core/parallel"
	"github.com/petrophysics/sonicdt/metrics"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultRandomState is the seed used when none is configured.
const DefaultRandomState = 42

// RandomForestRegressor はscikit-learn互換のランダムフォレスト回帰。
// 各木はブートストラップ標本で学習し、分割ごとに特徴量をサンプリングする。
// 予測は全ての木の平均。
type RandomForestRegressor struct {
	State *model.StateManager

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string
	Bootstrap       bool
	RandomState     int64
	NJobs           int

	Trees []*tree.DecisionTreeRegressor
}

// Option は RandomForestRegressor の設定オプション
type Option func(*RandomForestRegressor)

// WithNEstimators は木の本数を設定する
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) { f.NEstimators = n }
}

// WithMaxDepth は各木の最大深さを設定する。0 は制限なし。
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) { f.MaxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定する
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) { f.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉に必要な最小サンプル数を設定する
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) { f.MinSamplesLeaf = n }
}

// WithMaxFeatures は分割ごとの特徴量サンプリング規則を設定する
func WithMaxFeatures(rule string) Option {
	return func(f *RandomForestRegressor) { f.MaxFeatures = rule }
}

// WithBootstrap はブートストラップ標本を使うかどうかを設定する
func WithBootstrap(b bool) Option {
	return func(f *RandomForestRegressor) { f.Bootstrap = b }
}

// WithRandomState は乱数シードを設定する
func WithRandomState(seed int64) Option {
	return func(f *RandomForestRegressor) { f.RandomState = seed }
}

// WithNJobs は並列度を設定する。-1 は全CPU。
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) { f.NJobs = n }
}

// NewRandomForestRegressor は新しいRandomForestRegressorを作成する
//
// 使用例:
//
//	rf := ensemble.NewRandomForestRegressor(
//	    ensemble.WithNEstimators(200),
//	    ensemble.WithMaxFeatures("sqrt"),
//	)
//	err := rf.Fit(XTrain, yTrain)
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		State:           model.NewStateManager(),
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     DefaultRandomState,
		NJobs:           -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit は森を学習する。木 i のシードは RandomState+i なので、
// 結果はスケジューリングに依存しない。
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	data, err := tree.NewData(X, y)
	if err != nil {
		return errors.Wrap(err, "RandomForestRegressor.Fit")
	}
	if f.State == nil {
		f.State = model.NewStateManager()
	}
	f.State.Reset()

	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)
	parallel.ParallelizeN(f.NEstimators, parallel.Workers(f.NJobs), func(start, end int) {
		for i := start; i < end; i++ {
			trees[i], errs[i] = f.fitTree(data, i)
		}
	})
	for _, err := range errs {
		if err != nil {
			return errors.NewModelError("RandomForestRegressor.Fit", "tree", err)
		}
	}

	f.Trees = trees
	f.State.SetDimensions(data.NFeatures, data.NSamples)
	f.State.SetFitted()
	return nil
}

func (f *RandomForestRegressor) fitTree(data *tree.Data, index int) (*tree.DecisionTreeRegressor, error) {
	seed := f.RandomState + int64(index)
	t := tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(f.MaxDepth),
		tree.WithMinSamplesSplit(f.MinSamplesSplit),
		tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
		tree.WithMaxFeatures(f.MaxFeatures),
		tree.WithRandomState(seed),
	)

	n := data.NSamples
	samples := make([]int, n)
	if f.Bootstrap {
		rng := rand.New(rand.NewPCG(uint64(seed), 0xda3e39cb94b95bdb))
		for i := range samples {
			samples[i] = rng.IntN(n)
		}
	} else {
		for i := range samples {
			samples[i] = i
		}
	}

	if err := t.FitData(data, samples); err != nil {
		return nil, err
	}
	return t, nil
}

// Predict は全ての木の予測平均を返す (n×1)
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := f.State.RequireFeatures("RandomForestRegressor.Predict", c); err != nil {
		return nil, err
	}

	out := make([]float64, r)
	parallel.ParallelizeN(r, parallel.Workers(f.NJobs), func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			var sum float64
			for _, t := range f.Trees {
				sum += t.PredictRow(row)
			}
			out[i] = sum / float64(len(f.Trees))
		}
	})
	return mat.NewVecDense(r, out), nil
}

// Score は決定係数R²を返す
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// IsFitted はモデルが学習済みかどうかを返す
func (f *RandomForestRegressor) IsFitted() bool {
	return f.State != nil && f.State.IsFitted()
}

// FeatureImportances は木ごとの重要度の平均を正規化して返す
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := f.State.GetDimensions()
	total := make([]float64, nFeatures)
	for _, t := range f.Trees {
		floats.Add(total, t.Importances)
	}
	if sum := floats.Sum(total); sum > 0 {
		floats.Scale(1/sum, total)
	}
	return total, nil
}

// GetParams はハイパーパラメータを返す。max_depth の 0 は nil (制限なし) として返す。
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"max_depth":         model.OptionalInt(f.MaxDepth),
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"random_state":      int(f.RandomState),
		"n_jobs":            f.NJobs,
	}
}

// SetParams はハイパーパラメータを設定する。未知のキーは ValidationError。
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			f.NEstimators, err = model.IntParam(key, value)
		case "max_depth":
			f.MaxDepth, err = model.OptionalIntParam(key, value)
		case "min_samples_split":
			f.MinSamplesSplit, err = model.IntParam(key, value)
		case "min_samples_leaf":
			f.MinSamplesLeaf, err = model.IntParam(key, value)
		case "max_features":
			f.MaxFeatures, err = model.StringParam(key, value)
		case "bootstrap":
			f.Bootstrap, err = model.BoolParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			f.RandomState = int64(seed)
		case "n_jobs":
			f.NJobs, err = model.IntParam(key, value)
		default:
			err = errors.NewValidationError(key, "unknown parameter for RandomForestRegressor", value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のインスタンスを返す
func (f *RandomForestRegressor) Clone() model.Tunable {
	return &RandomForestRegressor{
		State:           model.NewStateManager(),
		NEstimators:     f.NEstimators,
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		MinSamplesLeaf:  f.MinSamplesLeaf,
		MaxFeatures:     f.MaxFeatures,
		Bootstrap:       f.Bootstrap,
		RandomState:     f.RandomState,
		NJobs:           f.NJobs,
	}
}

var _ model.Tunable = (*RandomForestRegressor)(nil)
