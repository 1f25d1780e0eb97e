package host

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miampf/schnuffel/contract"
	"github.com/miampf/schnuffel/hosterr"
	"github.com/miampf/schnuffel/internal/ctxlog"
	"github.com/miampf/schnuffel/sandbox"
	"github.com/miampf/schnuffel/source"
	"github.com/miampf/schnuffel/wire"
)

// Unloaded is a host that knows its module source but has not read it yet.
type Unloaded struct {
	ref  source.Ref
	opts options
}

// New parses src and returns an Unloaded host. Nothing is fetched until Load.
func New(src string, opts ...Option) (*Unloaded, error) {
	ref, err := source.Parse(src)
	if err != nil {
		return nil, err
	}
	return NewFromRef(ref, opts...), nil
}

// NewFromRef returns an Unloaded host for an already parsed source.
func NewFromRef(ref source.Ref, opts ...Option) *Unloaded {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = ref.Name()
	}
	if o.fetcher == nil {
		o.fetcher = source.NewFetcher(append([]source.FetchOption{source.WithLogger(o.logger)}, o.fetchOpts...)...)
	}
	o.logger = o.logger.With("plugin", o.name)
	return &Unloaded{ref: ref, opts: o}
}

// Source returns the module source.
func (u *Unloaded) Source() source.Ref {
	return u.ref
}

// Load fetches, verifies and compiles the module, checks it against the
// plugin contract and asks it for its default configuration. Configuration
// overrides given as options are applied afterwards.
//
// Every failure is a *hosterr.Error of kind load (or unknown_field for a bad
// override); nothing is retried.
func (u *Unloaded) Load(ctx context.Context) (*Configured, error) {
	ctx, span := u.opts.tracer.Start(ctx, "host.Load", trace.WithAttributes(
		attribute.String("plugin.name", u.opts.name),
		attribute.String("plugin.source", u.ref.String()),
	))
	defer span.End()

	start := time.Now()
	c, err := u.load(ctx)
	u.opts.metrics.RecordLoad(err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		u.opts.logger.Warn("plugin load failed",
			"source", u.ref.String(),
			"code", hosterr.CodeOf(err),
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("plugin.digest", c.manifest.Digest),
		attribute.StringSlice("plugin.config_fields", c.config.Names()),
	)
	u.opts.logger.Info("plugin loaded",
		"source", u.ref.String(),
		"digest", c.manifest.Digest,
		"config_fields", c.config.Names(),
	)
	return c, nil
}

func (u *Unloaded) load(ctx context.Context) (*Configured, error) {
	src := u.ref.String()

	b, err := u.opts.fetcher.FetchPinned(ctx, u.ref, u.opts.pin)
	switch {
	case hosterr.CodeOf(err) == hosterr.CodeIntegrityMismatch:
		return nil, loadError(src, hosterr.CodeIntegrityMismatch, "verify module digest", err)
	case err != nil:
		return nil, loadError(src, hosterr.CodeSourceUnreachable, "fetch module", err)
	}

	rt, err := u.runtime(ctx)
	if err != nil {
		return nil, loadError(src, "", "prepare sandbox runtime", err)
	}

	mod, err := rt.Compile(ctx, b)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, loadError(src, hosterr.CodeInvalidModule, "compile module", err)
	}

	release := func() {
		_ = mod.Close(ctx)
		_ = rt.Close(ctx)
	}

	if err := mod.Verify(); err != nil {
		release()
		return nil, loadError(src, hosterr.CodeContractMismatch, "verify plugin contract", err)
	}

	cfg, err := u.defaultConfig(ctx, mod)
	if err != nil {
		release()
		return nil, err
	}

	c := &Configured{
		manifest: Manifest{
			Name:   u.opts.name,
			Source: src,
			Digest: source.Digest(b),
			Pin:    u.opts.pin,
		},
		opts:    u.opts,
		runtime: rt,
		module:  mod,
		config:  cfg,
	}
	c.releaseIfLeaked()

	for _, name := range slices.Sorted(maps.Keys(u.opts.overrides)) {
		if err := c.SetConfigField(name, u.opts.overrides[name]); err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
	}
	return c, nil
}

// runtime returns the shared runtime with a reference taken, or a new one.
func (u *Unloaded) runtime(ctx context.Context) (*sandbox.Runtime, error) {
	if u.opts.runtime != nil {
		if err := u.opts.runtime.Acquire(); err != nil {
			return nil, err
		}
		return u.opts.runtime, nil
	}
	opts := append([]sandbox.Option{sandbox.WithLogger(u.opts.logger)}, u.opts.sandboxOpts...)
	return sandbox.NewRuntime(ctx, opts...)
}

// defaultConfig calls default_config in a transient instance that is
// destroyed before returning.
func (u *Unloaded) defaultConfig(ctx context.Context, mod *sandbox.Module) (wire.Config, error) {
	src := u.ref.String()

	inst, err := mod.Instantiate(ctx, sandbox.WithBudget(u.opts.budget))
	if err != nil {
		return wire.Config{}, loadError(src, hosterr.CodeDefaultConfigFailed, "instantiate module", err)
	}
	defer func() { _ = inst.Close(ctx) }()

	callCtx := ctxlog.WithLogger(ctx, u.opts.logger.With(slog.String("instance", inst.ID())))
	cfg, err := contract.NewClient(inst).DefaultConfig(callCtx)
	switch {
	case err == nil:
		return cfg, nil
	case hosterr.CodeOf(err) == hosterr.CodeResponseDecode:
		return wire.Config{}, loadError(src, hosterr.CodeContractMismatch, "default_config returned an undecodable configuration", err)
	default:
		return wire.Config{}, loadError(src, hosterr.CodeDefaultConfigFailed, "default_config failed", err)
	}
}

// loadError wraps cause as a load failure, keeping the details of a wrapped
// host error (the contract problems, the digests) at the top.
func loadError(src, code, msg string, cause error) error {
	err := hosterr.New("host.Load", hosterr.KindLoad, code, msg).
		WithModule(src).
		WithCause(cause)
	var he *hosterr.Error
	if errors.As(cause, &he) && he.Details != nil {
		err.WithDetails(he.Details)
	}
	return err
}
