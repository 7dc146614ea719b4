// Package debug provides the verbose diagnostics logger used across mailflow.
//
// When enabled via --debug (or MAILFLOW_DEBUG=1), every significant event is
// appended to a single .log file under ~/.mailflow/debug/: controller state
// transitions, API requests, backend handler timings, IMAP fetches. Each line
// carries a timestamp, the elapsed time since Init, the goroutine ID, the
// component tag and the caller location.
//
// When disabled (the default), all logging functions are no-ops.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/agusx1211/mailflow/internal/hexid"
)

const (
	// EnvEnabled toggles debug logging without the --debug flag.
	EnvEnabled = "MAILFLOW_DEBUG"
	// EnvLogPath forces logs into a specific file.
	EnvLogPath = "MAILFLOW_DEBUG_LOG"
)

var (
	logger   *Logger
	loggerMu sync.RWMutex
)

// Logger writes structured debug lines to a file.
type Logger struct {
	mu        sync.Mutex
	w         io.WriteCloser
	path      string
	startedAt time.Time
	pid       int
}

// Init opens the global debug log and returns its path. Subsequent calls
// return the already open path. dir overrides the default ~/.mailflow/debug
// directory when non-empty.
func Init(dir string) (string, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil {
		return logger.path, nil
	}

	path, err := resolveLogPath(dir)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("debug: open log %s: %w", path, err)
	}

	now := time.Now()
	l := &Logger{w: f, path: path, startedAt: now, pid: os.Getpid()}
	fmt.Fprintf(f, "=== MAILFLOW DEBUG LOG ===\nStarted: %s\nPID: %d\nArgs: %s\n===\n\n",
		now.Format(time.RFC3339Nano), l.pid, strings.Join(os.Args, " "))
	logger = l
	return path, nil
}

// Close writes the trailer and closes the log. Safe to call when not initialized.
func Close() {
	loggerMu.Lock()
	l := logger
	logger = nil
	loggerMu.Unlock()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "\n=== DEBUG LOG CLOSED === (pid=%d duration=%s)\n", l.pid, time.Since(l.startedAt))
	l.w.Close()
}

// Enabled reports whether the debug logger is active.
func Enabled() bool {
	return current() != nil
}

// Path returns the log file path, or "" if not enabled.
func Path() string {
	if l := current(); l != nil {
		return l.path
	}
	return ""
}

// ShouldEnableFromEnv reports whether the environment asks for debug logging.
func ShouldEnableFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvEnabled))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return strings.TrimSpace(os.Getenv(EnvLogPath)) != ""
}

// Log writes a debug line. No-op when debug is disabled.
func Log(component, msg string) {
	if l := current(); l != nil {
		l.write(component, msg)
	}
}

// Logf writes a formatted debug line. No-op when debug is disabled.
func Logf(component, format string, args ...any) {
	if l := current(); l != nil {
		l.write(component, fmt.Sprintf(format, args...))
	}
}

// LogKV writes a debug line followed by key=value pairs.
//
//	debug.LogKV("agentrun", "poll applied", "run_id", id, "status", st)
func LogKV(component, msg string, kvs ...any) {
	l := current()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kvs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kvs[i], kvs[i+1])
	}
	if len(kvs)%2 == 1 {
		fmt.Fprintf(&b, " %v=?", kvs[len(kvs)-1])
	}
	l.write(component, b.String())
}

func current() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func (l *Logger) write(component, msg string) {
	now := time.Now()

	caller := "??:0"
	if _, file, line, ok := runtime.Caller(2); ok {
		if idx := strings.LastIndex(file, "/internal/"); idx >= 0 {
			file = file[idx+1:]
		} else if idx := strings.LastIndex(file, "/cmd/"); idx >= 0 {
			file = file[idx+1:]
		} else {
			file = filepath.Base(file)
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	// TIMESTAMP +ELAPSED [GID] [COMPONENT] CALLER | MESSAGE
	out := fmt.Sprintf("%s +%12s [G%-6d] [%-10s] %-36s | %s\n",
		now.Format("15:04:05.000000"),
		now.Sub(l.startedAt).Truncate(time.Microsecond),
		goroutineID(),
		component,
		caller,
		msg,
	)

	l.mu.Lock()
	io.WriteString(l.w, out)
	l.mu.Unlock()
}

func resolveLogPath(dir string) (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvLogPath)); p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return "", fmt.Errorf("debug: create dir for %s: %w", p, err)
		}
		return p, nil
	}
	if strings.TrimSpace(dir) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("debug: user home dir: %w", err)
		}
		dir = filepath.Join(home, ".mailflow", "debug")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("debug: create dir %s: %w", dir, err)
	}
	name := fmt.Sprintf("%s_%s.log", time.Now().Format("20060102T150405"), hexid.New())
	return filepath.Join(dir, name), nil
}

// goroutineID parses the ID out of the "goroutine 123 [..." stack header.
func goroutineID() int64 {
	var buf [64]byte
	s := string(buf[:runtime.Stack(buf[:], false)])
	s = strings.TrimPrefix(s, "goroutine ")
	var id int64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
