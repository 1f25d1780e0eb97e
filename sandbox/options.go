package sandbox

import (
	"log/slog"
	"time"
)

// DefaultMemoryLimitPages caps guest memory at 64 MiB (65536-byte pages).
const DefaultMemoryLimitPages = 1024

// Option configures a Runtime.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	memoryLimitPages uint32
	interpreter      bool
	wasi             bool
	logger           *slog.Logger
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		memoryLimitPages: DefaultMemoryLimitPages,
		logger:           slog.Default(),
	}
}

// WithMemoryLimitPages caps the linear memory of every instance. Modules
// declaring more fail to compile.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *runtimeConfig) {
		if pages > 0 {
			c.memoryLimitPages = pages
		}
	}
}

// WithInterpreter selects the interpreter engine instead of the compiler.
func WithInterpreter() Option {
	return func(c *runtimeConfig) {
		c.interpreter = true
	}
}

// WithWASI grants modules the wasi_snapshot_preview1 imports. Without it a
// module importing WASI fails contract verification.
func WithWASI() Option {
	return func(c *runtimeConfig) {
		c.wasi = true
	}
}

// WithLogger sets the logger used for runtime lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runtimeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// InstanceOption configures a single Instance.
type InstanceOption func(*instanceConfig)

type instanceConfig struct {
	budget time.Duration
}

// WithBudget bounds the wall-clock time of every call into the instance.
// A call exceeding it is aborted and the instance destroyed. Zero means no
// bound beyond the caller's context.
func WithBudget(d time.Duration) InstanceOption {
	return func(c *instanceConfig) {
		c.budget = d
	}
}
