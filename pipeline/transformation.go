package pipeline

import (
	"context"

	"github.com/petrophysics/sonicdt/config"
	"github.com/petrophysics/sonicdt/core/model"
	"github.com/petrophysics/sonicdt/dataset"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
	"github.com/petrophysics/sonicdt/preprocessing"
	"gonum.org/v1/gonum/mat"
)

// Arrays hold the imputed features with the target appended as the last
// column, one matrix per split.
type Arrays struct {
	Train      *mat.Dense
	Validation *mat.Dense
	Test       *mat.Dense
}

// SplitXY returns views of the feature columns and the target column.
func SplitXY(arr *mat.Dense) (X, y *mat.Dense) {
	r, c := arr.Dims()
	return arr.Slice(0, r, 0, c-1).(*mat.Dense), arr.Slice(0, r, c-1, c).(*mat.Dense)
}

// DataTransformation fits the median imputer on the training features and
// applies it to every split. Features are not scaled.
type DataTransformation struct {
	cfg    config.DataConfig
	logger log.Logger
}

// NewDataTransformation creates the transformation stage.
func NewDataTransformation(cfg config.DataConfig, logger log.Logger) *DataTransformation {
	if logger == nil {
		logger = log.Nop()
	}
	return &DataTransformation{cfg: cfg, logger: logger.With(log.ComponentKey, "transformation", log.PhaseKey, log.PhasePreprocessing)}
}

// Preprocessor returns the unfitted imputer used by the stage.
func (t *DataTransformation) Preprocessor() *preprocessing.SimpleImputer {
	return preprocessing.NewSimpleImputer(preprocessing.WithStrategy(preprocessing.StrategyMedian))
}

// Initiate reads the three splits, imputes them and saves the fitted imputer.
// It returns the arrays and the preprocessor path.
func (t *DataTransformation) Initiate(ctx context.Context, paths SplitPaths) (*Arrays, string, error) {
	features := t.cfg.FeatureColumns

	type part struct {
		name string
		path string
		X    *mat.Dense
		y    *mat.Dense
	}
	parts := []*part{
		{name: "train", path: paths.Train},
		{name: "validation", path: paths.Validation},
		{name: "test", path: paths.Test},
	}
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		frame, err := dataset.ReadFile(p.path)
		if err != nil {
			return nil, "", errors.Wrapf(err, "read %s split", p.name)
		}
		if err := frame.RequireColumns("data transformation", append(append([]string(nil), features...), t.cfg.TargetColumn)...); err != nil {
			return nil, "", err
		}
		if p.X, err = frame.Matrix(features...); err != nil {
			return nil, "", errors.Wrapf(err, "%s features", p.name)
		}
		if p.y, err = frame.Matrix(t.cfg.TargetColumn); err != nil {
			return nil, "", errors.Wrapf(err, "%s target", p.name)
		}
	}
	t.logger.Info("read train, validation and test data")

	imputer := t.Preprocessor()
	arrays := make([]*mat.Dense, len(parts))
	for i, p := range parts {
		var (
			filled mat.Matrix
			err    error
		)
		if i == 0 {
			filled, err = imputer.FitTransform(p.X)
		} else {
			filled, err = imputer.Transform(p.X)
		}
		if err != nil {
			return nil, "", errors.Wrapf(err, "impute %s split", p.name)
		}
		// 補完後に残る Inf はそのまま学習に流さない
		if err := errors.CheckMatrix("DataTransformation."+p.name, filled); err != nil {
			return nil, "", errors.Wrapf(err, "%s features", p.name)
		}
		arr := &mat.Dense{}
		arr.Augment(filled, p.y)
		arrays[i] = arr

		op := log.OperationTransform
		if i == 0 {
			op = log.OperationFitTransform
		}
		r, c := p.X.Dims()
		t.logger.Debug("split transformed", log.SplitKey, p.name, log.OperationKey, op, log.SamplesKey, r, log.FeaturesKey, c)
	}

	if err := model.SaveModel(imputer, t.cfg.PreprocessorPath()); err != nil {
		return nil, "", err
	}
	t.logger.Info("saved preprocessing object", log.PathKey, t.cfg.PreprocessorPath())

	return &Arrays{Train: arrays[0], Validation: arrays[1], Test: arrays[2]}, t.cfg.PreprocessorPath(), nil
}
