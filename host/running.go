package host

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miampf/schnuffel/contract"
	"github.com/miampf/schnuffel/graph"
	"github.com/miampf/schnuffel/hosterr"
	"github.com/miampf/schnuffel/internal/ctxlog"
	"github.com/miampf/schnuffel/sandbox"
	"github.com/miampf/schnuffel/wire"
)

// Running is a host with a live sandbox instance. Its configuration is the
// copy taken at Start. Calls are serialized; it is safe to share between
// goroutines.
//
// Callers must Close a Running host. One that becomes unreachable first has
// its instance and runtime reference released by the garbage collector, at
// an unspecified later time.
type Running struct {
	id       string
	manifest Manifest
	opts     options
	runtime  *sandbox.Runtime
	instance *sandbox.Instance
	config   wire.Config
	logger   *slog.Logger
	cleanup  runtime.Cleanup

	mu     sync.Mutex
	closed bool
}

// ID returns the unique id of this running host.
func (r *Running) ID() string {
	return r.id
}

// InstanceID returns the name of the sandbox instance.
func (r *Running) InstanceID() string {
	return r.instance.ID()
}

// Manifest returns what the host was loaded from.
func (r *Running) Manifest() Manifest {
	return r.manifest
}

// Config returns a copy of the configuration sent with every call.
func (r *Running) Config() wire.Config {
	return r.config.Clone()
}

// ExecuteNode asks the module to expand a single node into a graph fragment.
func (r *Running) ExecuteNode(ctx context.Context, n graph.Node) (*graph.Graph, error) {
	var kind string
	if n != nil {
		kind = string(n.Kind())
	}
	return r.execute(ctx, contract.ExecOnNode,
		[]attribute.KeyValue{attribute.String("node.kind", kind)},
		func(ctx context.Context, c *contract.Client) (*graph.Graph, error) {
			return c.ExecOnNode(ctx, r.config, n)
		})
}

// ExecuteGraph asks the module to derive a graph fragment from g.
func (r *Running) ExecuteGraph(ctx context.Context, g *graph.Graph) (*graph.Graph, error) {
	var attrs []attribute.KeyValue
	if g != nil {
		attrs = append(attrs,
			attribute.Int("graph.nodes", g.NodeCount()),
			attribute.Int("graph.edges", g.EdgeCount()),
		)
	}
	return r.execute(ctx, contract.ExecOnGraph, attrs,
		func(ctx context.Context, c *contract.Client) (*graph.Graph, error) {
			return c.ExecOnGraph(ctx, r.config, g)
		})
}

func (r *Running) execute(
	ctx context.Context,
	entry string,
	attrs []attribute.KeyValue,
	call func(context.Context, *contract.Client) (*graph.Graph, error),
) (*graph.Graph, error) {
	ctx, span := r.opts.tracer.Start(ctx, "host.Execute", trace.WithAttributes(append(attrs,
		attribute.String("plugin.entry", entry),
		attribute.String("host.id", r.id),
	)...))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	var (
		g   *graph.Graph
		err error
	)
	if r.closed {
		err = hosterr.New("host.Execute", hosterr.KindExecution, hosterr.CodeClosed, "host is closed").
			WithDetails(map[string]any{"host": r.id, "entry": entry})
	} else {
		callCtx := ctxlog.WithLogger(ctx, r.logger.With("entry", entry))
		g, err = call(callCtx, contract.NewClient(r.instance))
	}

	code := hosterr.CodeOf(err)
	r.opts.metrics.RecordExecution(entry, err, time.Since(start))

	if err != nil {
		var he *hosterr.Error
		if errors.As(err, &he) && he.Module == "" {
			he.Module = r.manifest.Source
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("plugin execution failed",
			"entry", entry,
			"code", code,
			"instance_closed", r.instance.IsClosed(),
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("fragment.nodes", g.NodeCount()),
		attribute.Int("fragment.edges", g.EdgeCount()),
	)
	r.logger.Debug("plugin execution finished",
		"entry", entry,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration", time.Since(start),
	)
	return g, nil
}

// Status reports whether the sandbox instance still accepts calls. An
// instance destroyed by a budget overrun or a canceled call is unhealthy.
func (r *Running) Status(ctx context.Context) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	details := map[string]any{
		"host":     r.id,
		"instance": r.instance.ID(),
		"source":   r.manifest.Source,
	}
	switch {
	case r.closed:
		return unhealthy("host is closed", details)
	case r.instance.IsClosed():
		return unhealthy("sandbox instance was destroyed", details)
	default:
		return healthy("sandbox instance is running", details)
	}
}

// Close destroys the instance and drops this host's runtime reference. Later
// calls fail with CLOSED. Closing twice is a no-op.
func (r *Running) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.cleanup.Stop()
	r.opts.metrics.RecordStop()

	err := r.instance.Close(ctx)
	if rerr := r.runtime.Close(ctx); err == nil {
		err = rerr
	}
	r.logger.Info("plugin stopped")
	return err
}
