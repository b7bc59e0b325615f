package config

import (
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":      logrus.InfoLevel,
		"false": logrus.InfoLevel,
		"1":     logrus.DebugLevel,
		"true":  logrus.DebugLevel,
		"2":     logrus.TraceLevel,
		"junk":  logrus.InfoLevel,
	}
	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("GRAPHC_DEBUG", value)
			assert.Equal(t, want, LogLevel())
		})
	}
}

func TestWorkers(t *testing.T) {
	t.Setenv("GRAPHC_COMPILE_WORKERS", "")
	assert.Equal(t, runtime.NumCPU(), CompileWorkers())

	t.Setenv("GRAPHC_COMPILE_WORKERS", "3")
	assert.Equal(t, 3, CompileWorkers())

	t.Setenv("GRAPHC_EXEC_WORKERS", "-2")
	assert.Equal(t, runtime.NumCPU(), ExecWorkers())
}

func TestDisabledPasses(t *testing.T) {
	t.Setenv("GRAPHC_DISABLE_PASSES", " trim_to_outputs, ,propagate_constants ")
	assert.Equal(t, []string{"trim_to_outputs", "propagate_constants"}, DisabledPasses())

	t.Setenv("GRAPHC_DISABLE_PASSES", "")
	assert.Empty(t, DisabledPasses())
}

func TestMemoryLimit(t *testing.T) {
	t.Setenv("GRAPHC_MEMORY_LIMIT", "'4096'")
	assert.Equal(t, int64(4096), MemoryLimit())

	t.Setenv("GRAPHC_MEMORY_LIMIT", "lots")
	assert.Equal(t, int64(0), MemoryLimit())
}
