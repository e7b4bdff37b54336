package pipeline

import (
	"github.com/petrophysics/sonicdt/config"
	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/dataset"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
	"github.com/petrophysics/sonicdt/preprocessing"
	"github.com/petrophysics/sonicdt/sklearn/ensemble"
	"gonum.org/v1/gonum/mat"
)

// Predictor turns a frame of well logs into one prediction per row.
type Predictor interface {
	Predict(frame *dataset.Frame) ([]float64, error)
}

// PredictPipeline applies the saved imputer and model to new data. It holds
// no state beyond the loaded artifacts, so one instance may serve concurrent
// requests.
type PredictPipeline struct {
	features []string
	model    model.Predictor
	imputer  model.Transformer
	logger   log.Logger
}

// NewPredictPipeline loads the model and imputer from the artifacts directory.
// A missing artifact is reported here, not on the first request.
func NewPredictPipeline(cfg config.DataConfig, logger log.Logger) (*PredictPipeline, error) {
	if logger == nil {
		logger = log.Nop()
	}
	var forest ensemble.RandomForestRegressor
	if err := model.LoadModel(&forest, cfg.ModelPath()); err != nil {
		return nil, err
	}
	var imputer preprocessing.SimpleImputer
	if err := model.LoadModel(&imputer, cfg.PreprocessorPath()); err != nil {
		return nil, err
	}
	return NewPredictPipelineFrom(cfg.FeatureColumns, &forest, &imputer, logger), nil
}

// NewPredictPipelineFrom builds a pipeline from already loaded components.
func NewPredictPipelineFrom(features []string, m model.Predictor, imputer model.Transformer, logger log.Logger) *PredictPipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &PredictPipeline{
		features: append([]string(nil), features...),
		model:    m,
		imputer:  imputer,
		logger:   logger.With(log.ComponentKey, "predict", log.PhaseKey, log.PhaseInference),
	}
}

// Features returns the model input columns in training order.
func (p *PredictPipeline) Features() []string {
	return append([]string(nil), p.features...)
}

// Predict selects the feature columns, imputes them only when a value is
// missing, and returns the model output.
func (p *PredictPipeline) Predict(frame *dataset.Frame) ([]float64, error) {
	if err := frame.RequireColumns("predict", p.features...); err != nil {
		return nil, err
	}
	X, err := frame.Matrix(p.features...)
	if err != nil {
		return nil, err
	}

	var input mat.Matrix = X
	if preprocessing.HasNaN(X) {
		if input, err = p.imputer.Transform(X); err != nil {
			return nil, errors.Wrap(err, "impute features")
		}
		p.logger.Debug("missing feature values imputed")
	}

	pred, err := p.model.Predict(input)
	if err != nil {
		return nil, errors.NewModelError("PredictPipeline.Predict", "predict", err)
	}
	out := mat.Col(nil, 0, pred)
	p.logger.Info("prediction finished", log.OperationKey, log.OperationPredict, log.PredsKey, len(out))
	return out, nil
}
