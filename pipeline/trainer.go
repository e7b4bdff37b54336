package pipeline

import (
	"context"
	"time"

	"github.com/petrophysics/sonicdt/config"
	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/linear"
	"github.com/petrophysics/sonicdt/metrics"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
	"github.com/petrophysics/sonicdt/sklearn/ensemble"
	"github.com/petrophysics/sonicdt/sklearn/model_selection"
	"gonum.org/v1/gonum/mat"
)

// BestModelName is reported for the searched estimator.
const BestModelName = "Random Forest"

// Report summarizes a training run.
type Report struct {
	BestModel          string                 `json:"best_model"`
	BestParams         map[string]interface{} `json:"best_params"`
	CVScore            float64                `json:"cv_score"`
	Validation         metrics.Scores         `json:"validation"`
	Test               metrics.Scores         `json:"test"`
	FeatureImportances map[string]float64     `json:"feature_importances"`
	ModelPath          string                 `json:"model_path"`
	Candidates         int                    `json:"candidates"`
	Baseline           *Baseline              `json:"baseline,omitempty"`
	DurationMs         int64                  `json:"duration_ms"`
}

// Baseline holds the scores of a linear fit on the same arrays. It is only
// reported for comparison.
type Baseline struct {
	Model      string         `json:"model"`
	Validation metrics.Scores `json:"validation"`
	Test       metrics.Scores `json:"test"`
}

// ModelTrainer grid-searches a random forest, gates it on the validation
// score and saves it.
type ModelTrainer struct {
	data     config.DataConfig
	training config.TrainingConfig
	logger   log.Logger
}

// NewModelTrainer creates the training stage.
func NewModelTrainer(data config.DataConfig, training config.TrainingConfig, logger log.Logger) *ModelTrainer {
	if logger == nil {
		logger = log.Nop()
	}
	return &ModelTrainer{data: data, training: training, logger: logger.With(log.ComponentKey, "trainer", log.PhaseKey, log.PhaseTraining)}
}

// ParamGrid converts the configured grid into search candidates. A depth of
// 0 becomes nil, the unlimited depth.
func ParamGrid(g config.GridConfig) model_selection.ParamGrid {
	grid := model_selection.ParamGrid{}
	grid["n_estimators"] = ints(g.NEstimators)
	grid["min_samples_split"] = ints(g.MinSamplesSplit)
	grid["min_samples_leaf"] = ints(g.MinSamplesLeaf)

	depths := make([]interface{}, len(g.MaxDepth))
	for i, d := range g.MaxDepth {
		depths[i] = model.OptionalInt(d)
	}
	grid["max_depth"] = depths

	features := make([]interface{}, len(g.MaxFeatures))
	for i, f := range g.MaxFeatures {
		features[i] = f
	}
	grid["max_features"] = features
	return grid
}

func ints(values []int) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// CheckThreshold fails when score is strictly below threshold.
func CheckThreshold(split string, score, threshold float64) error {
	if score < threshold {
		return errors.NewScoreThresholdError(split, "r2", score, threshold)
	}
	return nil
}

// Initiate runs the search on the training array, evaluates the best model on
// validation and test, and saves it only if the validation R² reaches the
// threshold.
func (m *ModelTrainer) Initiate(ctx context.Context, arrays *Arrays) (*Report, error) {
	start := time.Now()
	m.logger.Info("splitting train, validation and test arrays")
	XTrain, yTrain := SplitXY(arrays.Train)
	XVal, yVal := SplitXY(arrays.Validation)
	XTest, yTest := SplitXY(arrays.Test)

	base := ensemble.NewRandomForestRegressor(
		ensemble.WithRandomState(m.training.RandomState),
		ensemble.WithNJobs(m.training.NJobs),
	)
	grid := ParamGrid(m.training.Grid)
	search := model_selection.NewGridSearchCV(base, grid,
		model_selection.WithCV(model_selection.NewKFold(m.training.Folds, false, 0)),
		model_selection.WithScoring(m.training.Scoring),
		model_selection.WithNJobs(m.training.NJobs),
		model_selection.WithLogger(m.logger),
	)

	m.logger.Info("starting grid search for random forest", log.RandomSeedKey, m.training.RandomState)
	if err := search.Fit(ctx, XTrain, yTrain); err != nil {
		return nil, errors.Wrap(err, "grid search")
	}
	best, err := search.BestEstimator()
	if err != nil {
		return nil, err
	}
	bestParams, _ := search.BestParams()
	cvScore, _ := search.BestScore()
	m.logger.Info("best random forest params", log.ModelNameKey, BestModelName, log.HyperParamsKey, bestParams)

	valScores, err := evaluate(best, XVal, yVal)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate validation split")
	}
	m.logger.Info("validation score",
		log.PhaseKey, log.PhaseValidation,
		log.OperationKey, log.OperationScore,
		log.SplitKey, "validation",
		log.R2ScoreKey, valScores.R2,
	)

	if err := CheckThreshold("validation", valScores.R2, m.training.Threshold); err != nil {
		m.logger.Error("model rejected", err, log.ErrorCodeKey, log.ErrorLowScore)
		return nil, err
	}

	if err := model.SaveModel(best, m.data.ModelPath()); err != nil {
		return nil, err
	}
	m.logger.Info("best random forest model saved", log.PathKey, m.data.ModelPath())

	testScores, err := evaluate(best, XTest, yTest)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate test split")
	}
	m.logger.Info("test score",
		log.PhaseKey, log.PhaseTesting,
		log.OperationKey, log.OperationScore,
		log.SplitKey, "test",
		log.R2ScoreKey, testScores.R2,
		log.MSEKey, testScores.MSE,
		log.MAEKey, testScores.MAE,
	)

	report := &Report{
		BestModel:  BestModelName,
		BestParams: bestParams,
		CVScore:    cvScore,
		Validation: valScores,
		Test:       testScores,
		ModelPath:  m.data.ModelPath(),
		Candidates: grid.Len(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if baseline, err := fitBaseline(XTrain, yTrain, XVal, yVal, XTest, yTest); err != nil {
		m.logger.Warn("linear baseline skipped", "reason", err.Error())
	} else {
		report.Baseline = baseline
		m.logger.Info("linear baseline",
			log.SplitKey, "validation",
			log.R2ScoreKey, baseline.Validation.R2,
		)
	}

	if fi, ok := best.(model.FeatureImportancer); ok {
		imp, err := fi.FeatureImportances()
		if err != nil {
			return nil, err
		}
		report.FeatureImportances = make(map[string]float64, len(imp))
		for i, v := range imp {
			if i < len(m.data.FeatureColumns) {
				report.FeatureImportances[m.data.FeatureColumns[i]] = v
			}
		}
	}
	return report, nil
}

func fitBaseline(XTrain, yTrain, XVal, yVal, XTest, yTest mat.Matrix) (*Baseline, error) {
	lr := linear.NewLinearRegression()
	if err := lr.Fit(XTrain, yTrain); err != nil {
		return nil, err
	}
	val, err := evaluate(lr, XVal, yVal)
	if err != nil {
		return nil, err
	}
	test, err := evaluate(lr, XTest, yTest)
	if err != nil {
		return nil, err
	}
	return &Baseline{Model: "Linear Regression", Validation: val, Test: test}, nil
}

func evaluate(est model.Predictor, X, y mat.Matrix) (metrics.Scores, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return metrics.Scores{}, err
	}
	yTrue, err := metrics.ColumnVector("evaluate", y)
	if err != nil {
		return metrics.Scores{}, err
	}
	yPred, err := metrics.ColumnVector("evaluate", pred)
	if err != nil {
		return metrics.Scores{}, err
	}
	return metrics.Evaluate(yTrue, yPred)
}

// Run chains ingestion, transformation and training with one configuration.
func Run(ctx context.Context, cfg *config.Config, logger log.Logger) (*Report, error) {
	if logger == nil {
		logger = log.Nop()
	}
	paths, err := NewDataIngestion(cfg.Data, logger).Initiate(ctx)
	if err != nil {
		return nil, err
	}
	arrays, _, err := NewDataTransformation(cfg.Data, logger).Initiate(ctx, paths)
	if err != nil {
		return nil, err
	}
	return NewModelTrainer(cfg.Data, cfg.Training, logger).Initiate(ctx, arrays)
}
