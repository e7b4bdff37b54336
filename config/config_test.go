package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "DT", cfg.Data.TargetColumn)
	assert.Equal(t, []string{"RHOB", "GR", "NPHI", "PEF"}, cfg.Data.FeatureColumns)
	assert.Equal(t, []string{"15/9-F-11 B", "15/9-F-11 A"}, cfg.Data.TrainWells)
	assert.Equal(t, []string{"15/9-F-1 A"}, cfg.Data.ValidationWells)
	assert.Equal(t, []string{"15/9-F-1 B"}, cfg.Data.TestWells)
	assert.Equal(t, filepath.Join("artifacts", "model.pkl"), cfg.Data.ModelPath())
	assert.Equal(t, filepath.Join("artifacts", "preprocessor.pkl"), cfg.Data.PreprocessorPath())

	assert.Equal(t, 3, cfg.Training.Folds)
	assert.Equal(t, 0.6, cfg.Training.Threshold)
	assert.Equal(t, int64(42), cfg.Training.RandomState)
	assert.Equal(t, []int{50, 100, 200}, cfg.Training.Grid.NEstimators)
	assert.Equal(t, []int{0, 10, 20, 30}, cfg.Training.Grid.MaxDepth)
	assert.Equal(t, []string{"sqrt", "log2"}, cfg.Training.Grid.MaxFeatures)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonicdt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  artifacts_dir: /tmp/sonicdt-artifacts
training:
  folds: 5
  grid:
    n_estimators: [10]
    max_features: [sqrt]
server:
  addr: ":8080"
`), 0o644))
	t.Setenv("SONICDT_SERVER_ADDR", ":9090")
	t.Setenv("SONICDT_TRAINING_THRESHOLD", "0.7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/sonicdt-artifacts", cfg.Data.ArtifactsDir)
	assert.Equal(t, 5, cfg.Training.Folds)
	assert.Equal(t, []int{10}, cfg.Training.Grid.NEstimators)
	assert.Equal(t, []int{2, 5, 10}, cfg.Training.Grid.MinSamplesSplit, "unset keys keep defaults")
	assert.Equal(t, ":9090", cfg.Server.Addr, "environment wins over the file")
	assert.Equal(t, 0.7, cfg.Training.Threshold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	var dataErr *errors.DataError
	assert.True(t, errors.As(err, &dataErr))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		param  string
	}{
		{"one fold", func(c *Config) { c.Training.Folds = 1 }, "training.folds"},
		{"threshold above one", func(c *Config) { c.Training.Threshold = 1.5 }, "training.threshold"},
		{"overlapping wells", func(c *Config) {
			c.Data.TestWells = append(c.Data.TestWells, "15/9-F-1 A")
		}, "data.test_wells"},
		{"empty grid", func(c *Config) { c.Training.Grid.NEstimators = nil }, "training.grid"},
		{"bad max_features", func(c *Config) { c.Training.Grid.MaxFeatures = []string{"auto"} }, "training.grid.max_features"},
		{"negative depth", func(c *Config) { c.Training.Grid.MaxDepth = []int{-1} }, "training.grid.max_depth"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"no features", func(c *Config) { c.Data.FeatureColumns = nil }, "data.feature_columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}

	threshold := Default()
	threshold.Training.Threshold = -3
	assert.NoError(t, threshold.Validate(), "any threshold up to 1 is accepted")
}
