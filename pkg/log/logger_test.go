package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTestLoggerLevels tests that every level is captured
func TestTestLoggerLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorCodeKey, ErrorEmptyData)

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("info message"))
	assert.True(t, testLogger.ContainsMessage("warning message"))
	assert.True(t, testLogger.ContainsMessage("error message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "test error"))
	assert.True(t, testLogger.ContainsField(ErrorCodeKey, ErrorEmptyData))
}

// TestTestLoggerWith tests context-aware logging
func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		ModelNameKey, "RandomForestRegressor",
		ComponentKey, "trainer",
	)
	contextLogger.Info("grid search finished", R2ScoreKey, 0.83)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "RandomForestRegressor"))
	assert.True(t, testLogger.ContainsField(ComponentKey, "trainer"))
	assert.True(t, testLogger.ContainsField(R2ScoreKey, 0.83))
}

// TestTestLoggerEnabled tests the Enabled method
func TestTestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")
	assert.False(t, testLogger.ContainsMessage("this should not appear"))
	assert.True(t, testLogger.ContainsMessage("this should appear"))
}

// TestConcurrentLogging tests thread safety of TestLogger
func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	child := testLogger.With(ComponentKey, "web")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				child.Info("request served", "goroutine_id", id, "message_id", j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestZerologLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(LevelInfo, &buf)
	logger := provider.GetLoggerWithName("ingestion")

	logger.Debug("hidden")
	logger.Info("split written", SplitKey, "train", SamplesKey, 12)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "split written", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ingestion", entry[ComponentKey])
	assert.Equal(t, "train", entry[SplitKey])
	assert.Equal(t, 12.0, entry[SamplesKey])
}

func TestZerologLoggerErrorStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologProvider(LevelDebug, &buf).GetLogger()

	err := errors.NewDataError("read csv", "train.csv", os.ErrNotExist)
	logger.Error("ingestion failed", err, OperationKey, OperationTransform)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry[ErrAttrKey], "train.csv")
	assert.Contains(t, entry[StacktraceKey], "logger_test.go")
	assert.Equal(t, OperationTransform, entry[OperationKey])
}

func TestZerologLoggerEnabled(t *testing.T) {
	provider := NewZerologProvider(LevelWarn, &bytes.Buffer{})
	logger := provider.GetLogger()

	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))

	provider.SetLevel(LevelDebug)
	assert.True(t, provider.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestInstallWarningHandler(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(LevelInfo, &buf)
	provider.InstallWarningHandler()
	defer errors.SetZerologWarnFunc(nil)

	errors.Warn(errors.NewDataConversionWarning("GR", "abc", "not a number"))

	assert.Contains(t, buf.String(), "DataConversionWarning")
	assert.Contains(t, buf.String(), `"column":"GR"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupCreatesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	provider, closer, err := Setup(Config{Level: "info", Dir: dir})
	require.NoError(t, err)
	defer errors.SetZerologWarnFunc(nil)

	provider.GetLogger().Info("logging has started")
	require.NoError(t, closer.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name(), ".log"))

	content, err := os.ReadFile(dir + "/" + files[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(content), "logging has started")
}

func BenchmarkLogging(b *testing.B) {
	testLogger, _ := NewTestLogger(LevelInfo)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		testLogger.Info("benchmark message",
			"iteration", i,
			OperationKey, OperationPredict,
			SamplesKey, 1000,
		)
	}
}
