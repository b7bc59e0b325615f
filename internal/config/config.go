// Package config reads graph compiler settings from the environment.
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Var returns an environment variable with surrounding spaces and quotes removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel returns the log level selected by GRAPHC_DEBUG: a boolean enables debug
// logging, 2 enables trace logging.
func LogLevel() logrus.Level {
	level := logrus.InfoLevel
	if s := Var("GRAPHC_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			if b {
				level = logrus.DebugLevel
			}
		} else if i, _ := strconv.ParseInt(s, 10, 64); i >= 2 {
			level = logrus.TraceLevel
		}
	}
	return level
}

// Int returns a function reading a non-negative integer with a default value.
func Int(key string, defaultValue int) func() int {
	return func() int {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 32); err != nil {
				logrus.WithFields(logrus.Fields{"key": key, "value": s, "default": defaultValue}).
					Warn("invalid environment variable, using default")
			} else {
				return int(n)
			}
		}
		return defaultValue
	}
}

// Int64 returns a function reading a non-negative 64-bit integer with a default value.
func Int64(key string, defaultValue int64) func() int64 {
	return func() int64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err != nil || n < 0 {
				logrus.WithFields(logrus.Fields{"key": key, "value": s, "default": defaultValue}).
					Warn("invalid environment variable, using default")
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// List returns a function reading a comma-separated list.
func List(key string) func() []string {
	return func() []string {
		var out []string
		for _, item := range strings.Split(Var(key), ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
}

var (
	// CompileWorkers bounds parallel kernel compilation. Configurable via
	// GRAPHC_COMPILE_WORKERS; defaults to the number of CPUs.
	CompileWorkers = Int("GRAPHC_COMPILE_WORKERS", runtime.NumCPU())
	// ExecWorkers bounds concurrently dispatched nodes. Configurable via
	// GRAPHC_EXEC_WORKERS; defaults to the number of CPUs.
	ExecWorkers = Int("GRAPHC_EXEC_WORKERS", runtime.NumCPU())
	// DisabledPasses lists pass names to skip. Configurable via GRAPHC_DISABLE_PASSES.
	DisabledPasses = List("GRAPHC_DISABLE_PASSES")
	// MemoryLimit caps host engine allocations in bytes; 0 means unlimited.
	// Configurable via GRAPHC_MEMORY_LIMIT.
	MemoryLimit = Int64("GRAPHC_MEMORY_LIMIT", 0)
)

// EnvVar describes one recognized environment variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every recognized variable with its effective value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"GRAPHC_DEBUG":           {"GRAPHC_DEBUG", LogLevel(), "Show additional debug information (e.g. GRAPHC_DEBUG=1)"},
		"GRAPHC_COMPILE_WORKERS": {"GRAPHC_COMPILE_WORKERS", CompileWorkers(), "Maximum parallel kernel compilations"},
		"GRAPHC_EXEC_WORKERS":    {"GRAPHC_EXEC_WORKERS", ExecWorkers(), "Maximum concurrently executing nodes"},
		"GRAPHC_DISABLE_PASSES":  {"GRAPHC_DISABLE_PASSES", DisabledPasses(), "Comma-separated optimization passes to skip"},
		"GRAPHC_MEMORY_LIMIT":    {"GRAPHC_MEMORY_LIMIT", MemoryLimit(), "Host engine memory limit in bytes (0 = unlimited)"},
	}
}
