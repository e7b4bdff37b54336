package model_selection

import (
	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/metrics"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// スコアリング名。いずれも大きいほど良い。
const (
	ScoringR2     = "r2"
	ScoringNegMSE = "neg_mean_squared_error"
	ScoringNegMAE = "neg_mean_absolute_error"
)

// Scorer は学習済みモデルを評価する
type Scorer func(est model.Predictor, X, y mat.Matrix) (float64, error)

// GetScorer はスコアリング名に対応する Scorer を返す
func GetScorer(name string) (Scorer, error) {
	var metric func(yTrue, yPred mat.Matrix) (float64, error)
	sign := 1.0
	switch name {
	case ScoringR2, "":
		metric = metrics.R2ScoreMatrix
	case ScoringNegMSE:
		metric, sign = metrics.MSEMatrix, -1
	case ScoringNegMAE:
		metric, sign = metrics.MAEMatrix, -1
	default:
		return nil, errors.NewValidationError("scoring", "must be r2, neg_mean_squared_error or neg_mean_absolute_error", name)
	}

	return func(est model.Predictor, X, y mat.Matrix) (float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		score, err := metric(y, pred)
		if err != nil {
			return 0, err
		}
		return sign * score, nil
	}, nil
}
