package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	logger  zerolog.Logger
	logFile *os.File
	isSetup bool
)

func init() {
	// Until SetupLogger runs, everything below warning level is dropped.
	logger = zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
}

// SetupLogger initializes the debug logger. When logFilePath is non-empty the
// log is appended there; otherwise events go to stderr. Debug mode lowers the
// level so DebugLog output is kept.
func SetupLogger(logFilePath string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	var out io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = f
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	logger.Info().Str("started_at", time.Now().Format(time.RFC3339)).Msg("debug log started")

	isSetup = true
	return nil
}

// CloseLogger closes the log file if one was opened.
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logger.Info().Msg("debug log closed")
		logFile.Close()
		logFile = nil
		isSetup = false
	}
}

// DebugLog logs a message if debug mode is enabled.
func DebugLog(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	logger.Debug().Msgf(format, args...)
}

// LogInfo logs an information message.
func LogInfo(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	logger.Info().Msgf(format, args...)
}

// LogWarning logs a warning message.
func LogWarning(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	logger.Warn().Msgf(format, args...)
}

// LogError logs an error message.
func LogError(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	logger.Error().Msgf(format, args...)
}

// LogImageProcessed logs the outcome of processing one image.
func LogImageProcessed(path string, success bool, errMsg string) {
	mu.Lock()
	defer mu.Unlock()
	if success {
		logger.Debug().Str("path", path).Msg("processed")
	} else {
		logger.Warn().Str("path", path).Str("error", errMsg).Msg("failed")
	}
}
