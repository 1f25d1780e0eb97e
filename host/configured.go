package host

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miampf/schnuffel/hosterr"
	"github.com/miampf/schnuffel/sandbox"
	"github.com/miampf/schnuffel/wire"
)

// Configured is a loaded host whose configuration may still change. It can be
// started any number of times; every Running host gets its own instance and a
// copy of the configuration as it was at Start.
//
// Like Running, a Configured host must be closed. One dropped without Close
// has its module and runtime reference released by the garbage collector.
type Configured struct {
	manifest Manifest
	opts     options
	runtime  *sandbox.Runtime
	module   *sandbox.Module
	cleanup  runtime.Cleanup

	mu     sync.Mutex
	config wire.Config
	closed bool
}

// Manifest returns what the host was loaded from.
func (c *Configured) Manifest() Manifest {
	return c.manifest
}

// ConfigFields returns the declared field names in declaration order.
func (c *Configured) ConfigFields() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Names()
}

// ConfigValue returns the current value of a declared field.
func (c *Configured) ConfigValue(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Get(name)
}

// Config returns a copy of the current configuration.
func (c *Configured) Config() wire.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Clone()
}

// SetConfigField overwrites a field declared by default_config. Unknown names
// fail with an unknown_field error and leave the configuration unchanged.
func (c *Configured) SetConfigField(name, value string) error {
	c.mu.Lock()
	ok := c.config.Set(name, value)
	fields := c.config.Names()
	c.mu.Unlock()

	if !ok {
		err := hosterr.Newf("host.SetConfigField", hosterr.KindUnknownField, "",
			"module declares no configuration field %q", name).
			WithModule(c.manifest.Source).
			WithDetails(map[string]any{"field": name, "declared": fields})
		c.opts.metrics.RecordConfigChange(err)
		return err
	}

	c.opts.metrics.RecordConfigChange(nil)
	c.opts.logger.Debug("configuration field set", "field", name)
	return nil
}

// Start instantiates a fresh sandbox instance and freezes a copy of the
// configuration into the returned Running host. A failed start is not
// retried and leaves c usable.
func (c *Configured) Start(ctx context.Context) (*Running, error) {
	ctx, span := c.opts.tracer.Start(ctx, "host.Start", trace.WithAttributes(
		attribute.String("plugin.name", c.manifest.Name),
		attribute.String("plugin.source", c.manifest.Source),
	))
	defer span.End()

	r, err := c.start(ctx)
	c.opts.metrics.RecordStart(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.opts.logger.Warn("plugin start failed", "source", c.manifest.Source, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("host.id", r.id),
		attribute.String("instance.id", r.instance.ID()),
	)
	r.logger.Info("plugin started")
	return r, nil
}

func (c *Configured) start(ctx context.Context) (*Running, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, c.startError(hosterr.CodeClosed, "host is closed", nil)
	}
	if err := c.runtime.Acquire(); err != nil {
		return nil, c.startError(hosterr.CodeClosed, "sandbox runtime is closed", err)
	}

	inst, err := c.module.Instantiate(ctx, sandbox.WithBudget(c.opts.budget))
	if err != nil {
		_ = c.runtime.Close(ctx)
		return nil, c.startError("", "instantiate module", err)
	}

	id := uuid.NewString()
	r := &Running{
		id:       id,
		manifest: c.manifest,
		opts:     c.opts,
		runtime:  c.runtime,
		instance: inst,
		config:   c.config.Clone(),
		logger: c.opts.logger.With(
			"source", c.manifest.Source,
			"host", id,
			"instance", inst.ID(),
		),
	}
	r.releaseIfLeaked()
	return r, nil
}

func (c *Configured) startError(code, msg string, cause error) error {
	err := hosterr.New("host.Start", hosterr.KindInstantiation, code, msg).
		WithModule(c.manifest.Source)
	if cause != nil {
		err.WithCause(cause)
	}
	return err
}

// Close releases the compiled module and this host's runtime reference.
// Running hosts started from c keep working until they are closed. Closing
// twice is a no-op.
func (c *Configured) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cleanup.Stop()

	err := c.module.Close(ctx)
	if rerr := c.runtime.Close(ctx); err == nil {
		err = rerr
	}
	return err
}
