package host

import (
	"log/slog"
	"maps"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/miampf/schnuffel/metrics"
	"github.com/miampf/schnuffel/sandbox"
	"github.com/miampf/schnuffel/source"
)

// DefaultExecutionBudget bounds each call into a module unless
// WithExecutionBudget says otherwise.
const DefaultExecutionBudget = 30 * time.Second

// Option configures a host.
type Option func(*options)

// options is shared, unchanged, by every phase of one host.
type options struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *metrics.Registry
	fetcher     *source.Fetcher
	fetchOpts   []source.FetchOption
	runtime     *sandbox.Runtime
	sandboxOpts []sandbox.Option
	budget      time.Duration
	pin         string
	name        string
	overrides   map[string]string
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("schnuffel/host"),
		budget: DefaultExecutionBudget,
	}
}

// WithLogger sets a custom logger for the host.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets an OpenTelemetry tracer. Load, Start and every execution
// produce a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMetrics records host operations in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = reg
	}
}

// WithFetcher sets the fetcher used to read module bytes.
func WithFetcher(f *source.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithFetchOptions configures the default fetcher. Ignored when WithFetcher
// is given.
func WithFetchOptions(opts ...source.FetchOption) Option {
	return func(o *options) {
		o.fetchOpts = append(o.fetchOpts, opts...)
	}
}

// WithRuntime shares an existing sandbox runtime. The host takes its own
// reference, so the caller still closes rt when done with it.
func WithRuntime(rt *sandbox.Runtime) Option {
	return func(o *options) {
		o.runtime = rt
	}
}

// WithSandboxOptions configures the runtime the host creates for itself.
// Ignored when WithRuntime is given.
func WithSandboxOptions(opts ...sandbox.Option) Option {
	return func(o *options) {
		o.sandboxOpts = append(o.sandboxOpts, opts...)
	}
}

// WithExecutionBudget bounds the wall-clock time of every call into the
// module, default_config included. A call that overruns it destroys the
// sandbox instance.
func WithExecutionBudget(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.budget = d
		}
	}
}

// WithSHA256 pins the module bytes to a hex SHA-256 digest.
func WithSHA256(digest string) Option {
	return func(o *options) {
		o.pin = digest
	}
}

// WithName sets the display name used in logs. Defaults to the source's file
// name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithConfigOverrides sets configuration fields right after default_config
// during Load. Every name must be declared by the module.
func WithConfigOverrides(values map[string]string) Option {
	return func(o *options) {
		if o.overrides == nil {
			o.overrides = make(map[string]string, len(values))
		}
		maps.Copy(o.overrides, values)
	}
}
