// Package log writes the diagnostic log. The terminal belongs to the UI, so
// everything goes to a file under the state directory.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const fileName = "narr.log"

var (
	logger  = zerolog.Nop()
	logFile *os.File
	logMu   sync.Mutex
	dir     string
)

// ResolveDir picks the log directory: flag, then NARR_LOG_PATH, then
// XDG_STATE_HOME/narr (or ~/.local/state/narr).
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := os.Getenv("NARR_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "narr"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "narr"), nil
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	logMu.Lock()
	dir = d
	logMu.Unlock()
}

func Dir() string {
	logMu.Lock()
	defer logMu.Unlock()
	return dir
}

// Init opens the log file in Dir and sets the level.
func Init(debug bool) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	logFile = f

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger = newLogger(f).Level(level)
	return nil
}

func newLogger(w io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(consoleWriter).With().Timestamp().Int("pid", os.Getpid()).Logger()
}

// Close flushes and closes the log file. Logging afterwards is discarded.
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = zerolog.Nop()
}

// Logger returns the shared logger for components that take one.
func Logger() *zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	l := logger
	return &l
}

func Info(msg string) {
	Logger().Info().Msg(msg)
}

func Warn(msg string) {
	Logger().Warn().Msg(msg)
}

func Errorf(format string, args ...any) {
	Logger().Error().Msg(fmt.Sprintf(format, args...))
}
