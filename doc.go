// Package sonicdt predicts the compressional sonic log (DT) of a well from
// density (RHOB), gamma ray (GR), neutron porosity (NPHI) and photoelectric
// factor (PEF) logs.
//
// # Layout
//
// Training runs offline as a chain of stages in package pipeline:
//
//   - DataIngestion reads the raw well dataset, fills missing DT with the
//     dataset median and writes train, validation and test CSVs split by well.
//   - DataTransformation fits a median imputer (package preprocessing) on the
//     training features and saves it.
//   - ModelTrainer grid-searches a random forest (sklearn/ensemble,
//     sklearn/model_selection), rejects it if the validation R² is below the
//     configured threshold and otherwise saves it.
//
// Serving is online: PredictPipeline loads both artifacts once and package
// web exposes an upload form that returns a table and a multi-track log plot.
//
// # Quick Start
//
//	cfg, err := config.Load("sonicdt.yaml")
//	if err != nil {
//	    return err
//	}
//	report, err := pipeline.Run(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("validation R2 = %.3f\n", report.Validation.R2)
//
// The same steps are available from the command line:
//
//	sonicdt train --config sonicdt.yaml
//	sonicdt serve --addr :5000
//
// # Error Handling
//
// Errors are created by pkg/errors and carry stack traces. Callers branch on
// type with errors.As; user input problems (DataError, MissingColumnsError)
// are reported by errors.IsUserError.
package sonicdt
