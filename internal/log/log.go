// Package log wires a single btclog backend across every InstantSend
// subsystem and manages the on-disk log rotator.
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"

	"github.com/btcsuite/btclog"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if LogRotator != nil {
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write to the backend. Loggers must not
// be used before the log rotator has been initialized with InitLogRotator.
var (
	backendLog = btclog.NewBackend(logWriter{})

	// LogRotator is the rotating file output. It should be closed on
	// application shutdown.
	LogRotator *rotator.Rotator

	// ISDB is the lock-store subsystem logger.
	ISDB = backendLog.Logger("ISDB")
	// ISTR is the tracker subsystem logger.
	ISTR = backendLog.Logger("ISTR")
	// ISMN is the lock-manager subsystem logger.
	ISMN = backendLog.Logger("ISMN")
	// ISRS is the conflict-resolver subsystem logger.
	ISRS = backendLog.Logger("ISRS")
	// ISWR is the worker-loop subsystem logger.
	ISWR = backendLog.Logger("ISWR")
)

// SubsystemLoggers maps each subsystem identifier to its associated logger.
var SubsystemLoggers = map[string]btclog.Logger{
	"ISDB": ISDB,
	"ISTR": ISTR,
	"ISMN": ISMN,
	"ISRS": ISRS,
	"ISWR": ISWR,
}

// InitLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory. It must be called before the
// package-global loggers are used for file output.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	LogRotator = r
	return nil
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored. Uninitialized subsystems are ignored as well.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := SubsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		return
	}
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystems. Invalid log levels
// are ignored.
func SetLogLevels(logLevel string) {
	for subsystemID := range SubsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}
