// Package linear は最小二乗法による線形回帰を提供する。
// 学習パイプラインではランダムフォレストと比較するベースラインとして使う。
package linear

import (
	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/core/parallel"
	"github.com/petrophysics/sonicdt/metrics"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	State        *model.StateManager
	FitIntercept bool
	Coef         []float64 // 係数
	Intercept    float64   // 切片
}

// Option は LinearRegression の設定オプション
type Option func(*LinearRegression)

// WithFitIntercept は切片を推定するかどうかを設定する (デフォルト: true)
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) { lr.FitIntercept = fit }
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{State: model.NewStateManager(), FitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// IsFitted implements model.Estimator.
func (lr *LinearRegression) IsFitted() bool {
	return lr.State != nil && lr.State.IsFitted()
}

// Fit は QR 分解による最小二乗解で係数を求める。
// ランク落ちした計画行列は ModelError になる。
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	yr, yc := y.Dims()
	if yr != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, yr, 0)
	}
	if yc != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector (n×1 matrix)")
	}

	offset := 0
	if lr.FitIntercept {
		offset = 1
	}
	if r < c+offset {
		return errors.NewValueError("LinearRegression.Fit", "fewer samples than coefficients")
	}

	// 切片項のために X の先頭に 1 の列を追加
	design := mat.NewDense(r, c+offset, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if offset == 1 {
				design.Set(i, 0, 1)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})
	if floats.HasNaN(design.RawMatrix().Data) {
		return errors.NewValueError("LinearRegression.Fit", "input contains NaN")
	}

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", err)
	}

	coef := mat.Col(nil, 0, &beta)
	if err := errors.CheckNumericalStability("LinearRegression.Fit", coef, 0); err != nil {
		return err
	}
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.Intercept = 0
	if offset == 1 {
		lr.Intercept = coef[0]
	}
	lr.Coef = coef[offset:]
	lr.State.SetDimensions(c, r)
	lr.State.SetFitted()
	return nil
}

// Predict は n×1 の予測値を返す
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := lr.State.RequireFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	out := mat.NewVecDense(r, nil)
	w := mat.NewVecDense(c, lr.Coef)
	out.MulVec(X, w)
	for i := 0; i < r; i++ {
		out.SetVec(i, out.AtVec(i)+lr.Intercept)
	}
	return out, nil
}

// Score は決定係数 R² を返す
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Coefficients は係数のコピーを返す
func (lr *LinearRegression) Coefficients() []float64 {
	return append([]float64(nil), lr.Coef...)
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": lr.FitIntercept}
}

// SetParams はハイパーパラメータを設定する
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "fit_intercept":
			b, err := model.BoolParam(k, v)
			if err != nil {
				return err
			}
			lr.FitIntercept = b
		default:
			return errors.NewValidationError(k, "unknown parameter for LinearRegression", v)
		}
	}
	return nil
}

// Clone は同じ設定の未学習モデルを返す
func (lr *LinearRegression) Clone() model.Tunable {
	return NewLinearRegression(WithFitIntercept(lr.FitIntercept))
}

var _ model.Tunable = (*LinearRegression)(nil)
