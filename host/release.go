package host

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/miampf/schnuffel/metrics"
	"github.com/miampf/schnuffel/sandbox"
)

// sandboxRefs is what a host holds in the sandbox. It must not point back at
// the host, or the host would never become unreachable.
type sandboxRefs struct {
	instance *sandbox.Instance
	module   *sandbox.Module
	runtime  *sandbox.Runtime
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// releaseLeaked runs after a host became unreachable without Close.
func releaseLeaked(refs sandboxRefs) {
	ctx := context.Background()
	if refs.instance != nil {
		_ = refs.instance.Close(ctx)
		refs.metrics.RecordStop()
	}
	if refs.module != nil {
		_ = refs.module.Close(ctx)
	}
	_ = refs.runtime.Close(ctx)
	refs.logger.Warn("host released without Close")
}

func (r *Running) releaseIfLeaked() {
	r.cleanup = runtime.AddCleanup(r, releaseLeaked, sandboxRefs{
		instance: r.instance,
		runtime:  r.runtime,
		metrics:  r.opts.metrics,
		logger:   r.logger,
	})
}

func (c *Configured) releaseIfLeaked() {
	c.cleanup = runtime.AddCleanup(c, releaseLeaked, sandboxRefs{
		module:  c.module,
		runtime: c.runtime,
		metrics: c.opts.metrics,
		logger:  c.opts.logger.With("source", c.manifest.Source),
	})
}
