package log

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petrophysics/sonicdt/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey = "error"

	logFileLayout = "01_02_2006_15_04_05"
)

// Config controls where log records go.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Dir receives one timestamped JSON log file per process. Empty disables
	// the file sink.
	Dir string `mapstructure:"dir"`
	// Console enables a human readable writer on stderr.
	Console bool `mapstructure:"console"`
}

// Setup builds the process logger: a JSON file under cfg.Dir named after the
// start time plus an optional console writer. The returned closer releases
// the log file.
func Setup(cfg Config) (*ZerologProvider, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, errors.NewDataError("create log dir", cfg.Dir, err)
		}
		path := filepath.Join(cfg.Dir, time.Now().Format(logFileLayout)+".log")
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, errors.NewDataError("create log file", path, err)
		}
		writers = append(writers, f)
		closer = f
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	provider := NewZerologProvider(level, zerolog.MultiLevelWriter(writers...))
	provider.InstallWarningHandler()
	return provider, closer, nil
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log.level", "must be debug, info, warn or error", level)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
