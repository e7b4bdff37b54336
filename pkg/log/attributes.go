// Package log defines standard attribute keys for training and serving.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that log lines from ingestion, training and the web
// front end can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "RandomForestRegressor", "SimpleImputer"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	// Examples: "ingestion", "transformation", "trainer", "web"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey is the number of rows processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// PathKey is a file system path read or written.
	PathKey = "data.path"

	// WellsKey lists well identifiers taking part in a split.
	WellsKey = "data.wells"

	// SplitKey names a dataset partition: "train", "validation", "test".
	SplitKey = "data.split"

	// MissingKey counts missing values found in a column or matrix.
	MissingKey = "data.missing"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// MSEKey records mean squared error.
	MSEKey = "metrics.mse"

	// MAEKey records mean absolute error.
	MAEKey = "metrics.mae"

	// CandidatesKey is the number of hyperparameter combinations searched.
	CandidatesKey = "search.candidates"

	// FoldsKey is the number of cross-validation folds.
	FoldsKey = "search.folds"
)

// Prediction and request context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// RequestIDKey correlates log lines of one HTTP request.
	RequestIDKey = "http.request_id"

	// MethodKey is the HTTP method.
	MethodKey = "http.method"

	// RouteKey is the request path.
	RouteKey = "http.path"

	// StatusKey is the HTTP response status.
	StatusKey = "http.status"

	// FileNameKey is the name of an uploaded file.
	FileNameKey = "http.file_name"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorEmptyData = "EMPTY_DATA"
	ErrorLowScore  = "LOW_SCORE"
)
