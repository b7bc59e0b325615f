// Package parallel splits data-parallel kernel loops across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how a kernel loop is split.
type Config struct {
	Enabled      bool // Whether loops may run on several goroutines.
	NumWorkers   int  // Upper bound on goroutines per loop.
	MinChunkSize int  // Minimum iterations per goroutine.
}

// DefaultConfig returns defaults based on the CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Sequential returns a configuration that never spawns goroutines.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// WithWorkers returns a copy of cfg limited to n workers. n <= 1 disables splitting.
func (cfg Config) WithWorkers(n int) Config {
	cfg.NumWorkers = n
	cfg.Enabled = cfg.Enabled && n > 1
	return cfg
}

// For runs f(i) for every i in [0, n). Loops shorter than MinChunkSize, or any loop
// when the configuration is disabled, run on the calling goroutine.
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForRange runs f over contiguous chunks covering [0, n).
func ForRange(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}
