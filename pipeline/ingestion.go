// Package pipeline chains the training stages (ingestion, transformation,
// model training) and serves predictions from the saved artifacts.
package pipeline

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/petrophysics/sonicdt/config"
	"github.com/petrophysics/sonicdt/dataset"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
)

// SplitPaths are the CSV files written by DataIngestion.
type SplitPaths struct {
	Train      string `json:"train"`
	Validation string `json:"validation"`
	Test       string `json:"test"`
}

// DataIngestion reads the raw well dataset, fills missing targets and splits
// the rows by well.
type DataIngestion struct {
	cfg    config.DataConfig
	logger log.Logger
}

// NewDataIngestion creates the ingestion stage.
func NewDataIngestion(cfg config.DataConfig, logger log.Logger) *DataIngestion {
	if logger == nil {
		logger = log.Nop()
	}
	return &DataIngestion{cfg: cfg, logger: logger.With(log.ComponentKey, "ingestion", log.PhaseKey, log.PhasePreprocessing)}
}

// Initiate runs the stage and returns the paths of the three splits. Training
// rows never include a validation well, even if it is also listed as a
// training well.
func (d *DataIngestion) Initiate(ctx context.Context) (SplitPaths, error) {
	start := time.Now()
	d.logger.Info("entered the data ingestion stage", log.PathKey, d.cfg.SourcePath)

	if err := d.cfg.Validate(); err != nil {
		return SplitPaths{}, err
	}

	frame, err := dataset.ReadFile(d.cfg.SourcePath)
	if err != nil {
		return SplitPaths{}, errors.Wrap(err, "data ingestion")
	}
	if err := frame.RequireColumns("data ingestion", d.cfg.TargetColumn, d.cfg.WellColumn); err != nil {
		return SplitPaths{}, err
	}
	d.logger.Info("dataset read", log.SamplesKey, frame.Len())

	if err := d.imputeTarget(frame); err != nil {
		return SplitPaths{}, err
	}
	if err := ctx.Err(); err != nil {
		return SplitPaths{}, err
	}

	if err := os.MkdirAll(d.cfg.ArtifactsDir, 0o755); err != nil {
		return SplitPaths{}, errors.NewDataError("create artifacts dir", d.cfg.ArtifactsDir, err)
	}
	if err := frame.WriteCSVFile(d.cfg.RawPath()); err != nil {
		return SplitPaths{}, err
	}
	d.logger.Info("raw data saved", log.PathKey, d.cfg.RawPath())

	wells, err := frame.Strings(d.cfg.WellColumn)
	if err != nil {
		return SplitPaths{}, err
	}
	train := set(d.cfg.TrainWells)
	val := set(d.cfg.ValidationWells)
	test := set(d.cfg.TestWells)

	splits := []struct {
		name  string
		path  string
		wells []string
		keep  func(well string) bool
	}{
		{"train", d.cfg.TrainPath(), d.cfg.TrainWells, func(w string) bool { return train[w] && !val[w] }},
		{"validation", d.cfg.ValidationPath(), d.cfg.ValidationWells, func(w string) bool { return val[w] }},
		{"test", d.cfg.TestPath(), d.cfg.TestWells, func(w string) bool { return test[w] }},
	}
	for _, s := range splits {
		if err := ctx.Err(); err != nil {
			return SplitPaths{}, err
		}
		part := frame.Filter(func(i int) bool { return s.keep(wells[i]) })
		if err := part.WriteCSVFile(s.path); err != nil {
			return SplitPaths{}, err
		}
		if part.Len() == 0 {
			d.logger.Warn("split has no rows", log.SplitKey, s.name, log.WellsKey, s.wells, log.ErrorCodeKey, log.ErrorEmptyData)
		}
		d.logger.Info("split written",
			log.SplitKey, s.name,
			log.SamplesKey, part.Len(),
			log.PathKey, s.path,
		)
	}

	d.logger.Info("data ingestion completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return SplitPaths{
		Train:      d.cfg.TrainPath(),
		Validation: d.cfg.ValidationPath(),
		Test:       d.cfg.TestPath(),
	}, nil
}

// imputeTarget fills missing targets with the median of the whole dataset.
func (d *DataIngestion) imputeTarget(frame *dataset.Frame) error {
	missing, err := frame.CountNaN(d.cfg.TargetColumn)
	if err != nil || missing == 0 {
		return err
	}
	median, err := frame.Median(d.cfg.TargetColumn)
	if err != nil {
		return errors.Wrap(err, "impute target")
	}
	values, err := frame.Float(d.cfg.TargetColumn)
	if err != nil {
		return err
	}
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = median
		}
	}
	if err := frame.SetFloat(d.cfg.TargetColumn, values); err != nil {
		return err
	}
	d.logger.Info("missing target values imputed with the median",
		log.MissingKey, missing,
		"median", median,
	)
	return nil
}

func set(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
