// Package preprocessing はモデル入力の前処理（欠損値補完）を提供する。
package preprocessing

import (
	"math"
	"sort"

	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// 欠損値の補完戦略
const (
	StrategyMedian   = "median"
	StrategyMean     = "mean"
	StrategyConstant = "constant"
)

// SimpleImputer はscikit-learn互換の欠損値補完器。
// NaN を列ごとの統計量（中央値・平均値・定数）で置き換える。
// 統計量は Fit 時にのみ学習され、Transform では再計算しない。
type SimpleImputer struct {
	State *model.StateManager

	// Strategy は補完戦略 (デフォルト: "median")
	Strategy string

	// FillValue は Strategy が "constant" のときに使う値
	FillValue float64

	// Stats は各特徴量について学習された補完値
	Stats []float64
}

// ImputerOption は SimpleImputer の設定オプション
type ImputerOption func(*SimpleImputer)

// WithStrategy は補完戦略を設定する
func WithStrategy(strategy string) ImputerOption {
	return func(s *SimpleImputer) {
		s.Strategy = strategy
	}
}

// WithFillValue は "constant" 戦略で使う値を設定する
func WithFillValue(v float64) ImputerOption {
	return func(s *SimpleImputer) {
		s.FillValue = v
	}
}

// NewSimpleImputer は新しいSimpleImputerを作成する
//
// 使用例:
//
//	imputer := preprocessing.NewSimpleImputer(preprocessing.WithStrategy("median"))
//	XFilled, err := imputer.FitTransform(XTrain)
func NewSimpleImputer(opts ...ImputerOption) *SimpleImputer {
	s := &SimpleImputer{
		State:    model.NewStateManager(),
		Strategy: StrategyMedian,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsFitted はモデルが学習済みかどうかを返す
func (s *SimpleImputer) IsFitted() bool {
	return s.State != nil && s.State.IsFitted()
}

// Fit は訓練データから列ごとの補完値を学習する。NaN は無視する。
// すべての値が NaN の列は ValueError になる。
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	if s.State == nil {
		s.State = model.NewStateManager()
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	switch s.Strategy {
	case StrategyMedian, StrategyMean, StrategyConstant:
	default:
		return errors.NewValidationError("strategy", "must be median, mean or constant", s.Strategy)
	}

	stats := make([]float64, c)
	for j := 0; j < c; j++ {
		if s.Strategy == StrategyConstant {
			stats[j] = s.FillValue
			continue
		}
		observed := NonMissing(mat.Col(nil, j, X))
		if len(observed) == 0 {
			return errors.NewValueError("SimpleImputer.Fit", "column has no observed values")
		}
		if s.Strategy == StrategyMean {
			stats[j] = stat.Mean(observed, nil)
		} else {
			stats[j] = medianOfSorted(sorted(observed))
		}
	}

	s.Stats = stats
	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

// Transform は学習済みの補完値で NaN を置き換えた新しい行列を返す
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.RequireFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}

	result := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(result.At(i, j)) {
				result.Set(i, j, s.Stats[j])
			}
		}
	}
	return result, nil
}

// FitTransform はFitとTransformを同時に実行する
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// Statistics は学習された補完値のコピーを返す
func (s *SimpleImputer) Statistics() ([]float64, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Statistics"); err != nil {
		return nil, err
	}
	return append([]float64(nil), s.Stats...), nil
}

// HasNaN は行列に NaN が含まれるかどうかを返す
func HasNaN(X mat.Matrix) bool {
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(X.At(i, j)) {
				return true
			}
		}
	}
	return false
}

// NonMissing は NaN を除いた値を返す
func NonMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Median は NaN を無視した中央値を返す。偶数個の場合は中央2値の平均。
// 観測値が無い場合は NaN を返す。
func Median(values []float64) float64 {
	observed := NonMissing(values)
	if len(observed) == 0 {
		return math.NaN()
	}
	return medianOfSorted(sorted(observed))
}

func sorted(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

// x must be sorted and non-empty.
func medianOfSorted(x []float64) float64 {
	n := len(x)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, x, nil)
	}
	return (x[n/2-1] + x[n/2]) / 2
}
