// Package config loads sonicdt settings from defaults, an optional config file
// and SONICDT_* environment variables, in increasing order of precedence.
package config

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/petrophysics/sonicdt/pkg/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SONICDT_SERVER_ADDR.
const EnvPrefix = "SONICDT"

// Config is the root configuration.
type Config struct {
	Log      log.Config     `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Training TrainingConfig `mapstructure:"training"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DataConfig describes the raw dataset, the split and where artifacts go.
type DataConfig struct {
	SourcePath      string   `mapstructure:"source_path"`
	ArtifactsDir    string   `mapstructure:"artifacts_dir"`
	TargetColumn    string   `mapstructure:"target_column"`
	WellColumn      string   `mapstructure:"well_column"`
	DepthColumn     string   `mapstructure:"depth_column"`
	FeatureColumns  []string `mapstructure:"feature_columns"`
	TrainWells      []string `mapstructure:"train_wells"`
	ValidationWells []string `mapstructure:"validation_wells"`
	TestWells       []string `mapstructure:"test_wells"`
}

// RawPath is the full dataset after target imputation.
func (d DataConfig) RawPath() string { return filepath.Join(d.ArtifactsDir, "data.csv") }

// TrainPath is the training split.
func (d DataConfig) TrainPath() string { return filepath.Join(d.ArtifactsDir, "train.csv") }

// ValidationPath is the validation split.
func (d DataConfig) ValidationPath() string { return filepath.Join(d.ArtifactsDir, "val.csv") }

// TestPath is the test split.
func (d DataConfig) TestPath() string { return filepath.Join(d.ArtifactsDir, "test.csv") }

// PreprocessorPath is the fitted imputer.
func (d DataConfig) PreprocessorPath() string {
	return filepath.Join(d.ArtifactsDir, "preprocessor.pkl")
}

// ModelPath is the fitted forest.
func (d DataConfig) ModelPath() string { return filepath.Join(d.ArtifactsDir, "model.pkl") }

// TrainingConfig controls the hyperparameter search and the acceptance gate.
type TrainingConfig struct {
	Folds       int        `mapstructure:"folds"`
	Scoring     string     `mapstructure:"scoring"`
	Threshold   float64    `mapstructure:"threshold"`
	RandomState int64      `mapstructure:"random_state"`
	NJobs       int        `mapstructure:"n_jobs"`
	Grid        GridConfig `mapstructure:"grid"`
}

// GridConfig lists the candidate values per hyperparameter. A MaxDepth of 0
// means unlimited depth.
type GridConfig struct {
	NEstimators     []int    `mapstructure:"n_estimators"`
	MaxDepth        []int    `mapstructure:"max_depth"`
	MinSamplesSplit []int    `mapstructure:"min_samples_split"`
	MinSamplesLeaf  []int    `mapstructure:"min_samples_leaf"`
	MaxFeatures     []string `mapstructure:"max_features"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.console", true)

	v.SetDefault("data.source_path", filepath.Join("notebook", "data", "volve_wells.csv"))
	v.SetDefault("data.artifacts_dir", "artifacts")
	v.SetDefault("data.target_column", "DT")
	v.SetDefault("data.well_column", "WELL")
	v.SetDefault("data.depth_column", "DEPTH")
	v.SetDefault("data.feature_columns", []string{"RHOB", "GR", "NPHI", "PEF"})
	v.SetDefault("data.train_wells", []string{"15/9-F-11 B", "15/9-F-11 A"})
	v.SetDefault("data.validation_wells", []string{"15/9-F-1 A"})
	v.SetDefault("data.test_wells", []string{"15/9-F-1 B"})

	v.SetDefault("training.folds", 3)
	v.SetDefault("training.scoring", "r2")
	v.SetDefault("training.threshold", 0.6)
	v.SetDefault("training.random_state", 42)
	v.SetDefault("training.n_jobs", -1)
	v.SetDefault("training.grid.n_estimators", []int{50, 100, 200})
	v.SetDefault("training.grid.max_depth", []int{0, 10, 20, 30})
	v.SetDefault("training.grid.min_samples_split", []int{2, 5, 10})
	v.SetDefault("training.grid.min_samples_leaf", []int{1, 2, 4})
	v.SetDefault("training.grid.max_features", []string{"sqrt", "log2"})

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(32<<20))
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults always validate; reaching this is a programming error.
		panic(err)
	}
	return cfg
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply. The file format follows the
// extension (yaml, toml, json).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewDataError("read config", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewDataError("decode config", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if err := c.Data.Validate(); err != nil {
		return err
	}

	t := c.Training
	if t.Folds < 2 {
		return errors.NewValidationError("training.folds", "must be >= 2", t.Folds)
	}
	if math.IsNaN(t.Threshold) || t.Threshold > 1 {
		return errors.NewValidationError("training.threshold", "must be a number <= 1", t.Threshold)
	}
	g := t.Grid
	if len(g.NEstimators) == 0 || len(g.MaxDepth) == 0 || len(g.MinSamplesSplit) == 0 ||
		len(g.MinSamplesLeaf) == 0 || len(g.MaxFeatures) == 0 {
		return errors.NewValidationError("training.grid", "every hyperparameter needs at least one candidate", g)
	}
	for _, d := range g.MaxDepth {
		if d < 0 {
			return errors.NewValidationError("training.grid.max_depth", "must be >= 0 (0 means unlimited)", d)
		}
	}
	for _, mf := range g.MaxFeatures {
		if mf != "sqrt" && mf != "log2" && mf != "" {
			return errors.NewValidationError("training.grid.max_features", "must be sqrt, log2 or empty", mf)
		}
	}

	if c.Server.Addr == "" {
		return errors.NewValidationError("server.addr", "must not be empty", c.Server.Addr)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.NewValidationError("server.max_upload_bytes", "must be positive", c.Server.MaxUploadBytes)
	}
	return nil
}

type wellList struct {
	name  string
	wells []string
}

// Validate checks column names and that every well belongs to one split only.
func (d DataConfig) Validate() error {
	if d.TargetColumn == "" || d.WellColumn == "" || d.DepthColumn == "" {
		return errors.NewValidationError("data", "target, well and depth column names are required", d)
	}
	if len(d.FeatureColumns) == 0 {
		return errors.NewValidationError("data.feature_columns", "must not be empty", d.FeatureColumns)
	}
	if len(d.TrainWells) == 0 || len(d.ValidationWells) == 0 || len(d.TestWells) == 0 {
		return errors.NewValidationError("data", "train, validation and test well lists must not be empty", nil)
	}
	return disjoint(
		wellList{"train_wells", d.TrainWells},
		wellList{"validation_wells", d.ValidationWells},
		wellList{"test_wells", d.TestWells},
	)
}

// disjoint rejects a well that appears in two lists.
func disjoint(lists ...wellList) error {
	seen := make(map[string]string)
	for _, l := range lists {
		for _, well := range l.wells {
			if prev, ok := seen[well]; ok && prev != l.name {
				return errors.NewValidationError("data."+l.name, "well "+well+" is already listed in data."+prev, well)
			}
			seen[well] = l.name
		}
	}
	return nil
}
