package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

const timeFormat = "15:04:05.000"

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	logger  = log.NewWithOptions(io.Discard, log.Options{})
)

// Enable starts debug logging to ~/.config/go-midihub/debug.log
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	homeDir, _ := os.UserHomeDir()
	dir := filepath.Join(homeDir, ".config", "go-midihub")

	// Ensure directory exists
	os.MkdirAll(dir, 0755)

	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enable(f)
	logger.Debug("=== Debug logging started ===", "cat", "debug")
	return nil
}

// EnableWriter sends debug logging to w instead of the log file
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	enable(w)
}

func enable(w io.Writer) {
	logger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           log.DebugLevel,
	})
	enabled = true
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	closeFile()
	logger = log.NewWithOptions(io.Discard, log.Options{})
	enabled = false
}

func closeFile() {
	if file != nil {
		file.Close()
		file = nil
	}
}

// Enabled reports whether logging is active
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Log writes a debug message under a category
func Log(category, format string, args ...any) {
	For(category).Debugf(format, args...)
}

// Warn writes a warning under a category. Send failures and other
// recoverable faults go here.
func Warn(category, format string, args ...any) {
	For(category).Warnf(format, args...)
}

// For returns a logger tagged with category
func For(category string) *log.Logger {
	return current().With("cat", category)
}

func current() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
