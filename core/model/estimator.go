// Package model は推定器（estimator）が満たすべき契約と、学習状態・永続化の
// 共通部品を提供します。
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer はスコアを計算できるモデルのインターフェース
type Scorer interface {
	// Score は予測の決定係数R²を返す
	Score(X, y mat.Matrix) (float64, error)
}

// Estimator は学習と予測を行う教師ありモデル
type Estimator interface {
	Fitter
	Predictor
	IsFitted() bool
}

// Regressor は回帰モデル
type Regressor interface {
	Estimator
	Scorer
}

// ParameterGetter はハイパーパラメータを公開するモデル
type ParameterGetter interface {
	// GetParams はハイパーパラメータを返す
	GetParams() map[string]interface{}
}

// ParameterSetter はハイパーパラメータを変更できるモデル
type ParameterSetter interface {
	// SetParams はハイパーパラメータを設定する。未知のキーはエラー。
	SetParams(params map[string]interface{}) error
}

// Tunable はグリッドサーチで探索できる回帰モデル。
// Clone は同じハイパーパラメータを持つ未学習のインスタンスを返す。
type Tunable interface {
	Regressor
	ParameterGetter
	ParameterSetter
	Clone() Tunable
}

// FeatureImportancer は特徴量重要度を持つモデル
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}
