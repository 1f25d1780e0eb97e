package host

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/miampf/schnuffel/contract"
	"github.com/miampf/schnuffel/graph"
	"github.com/miampf/schnuffel/hosterr"
	"github.com/miampf/schnuffel/manifest"
	"github.com/miampf/schnuffel/metrics"
	"github.com/miampf/schnuffel/sandbox"
	"github.com/miampf/schnuffel/sandbox/sandboxtest"
	"github.com/miampf/schnuffel/source"
	"github.com/miampf/schnuffel/wire"
)

func emptyGraph() []byte {
	return sandboxtest.Response(graph.New())
}

// emptyPlugin returns a module whose entry points all return an empty graph.
func emptyPlugin(cfg wire.Config) []byte {
	return sandboxtest.Plugin(cfg).
		Returning(contract.ExecOnNode, emptyGraph()).
		Returning(contract.ExecOnGraph, emptyGraph()).
		Bytes()
}

func writeModule(t *testing.T, wasm []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.wasm")
	require.NoError(t, os.WriteFile(path, wasm, 0o644))
	return path
}

func load(t *testing.T, wasm []byte, opts ...Option) *Configured {
	t.Helper()
	u, err := New(writeModule(t, wasm), opts...)
	require.NoError(t, err)

	c, err := u.Load(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func start(t *testing.T, c *Configured) *Running {
	t.Helper()
	r, err := c.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

// recorder keeps every log record, including those of derived loggers.
type recorder struct {
	mu      *sync.Mutex
	records *[]slog.Record
}

func newRecorder() recorder {
	return recorder{mu: &sync.Mutex{}, records: &[]slog.Record{}}
}

func (h recorder) Enabled(context.Context, slog.Level) bool { return true }

func (h recorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, r.Clone())
	return nil
}

func (h recorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h recorder) WithGroup(string) slog.Handler      { return h }

// requests returns the requests the module echoed through schnuffel.log.
func (h recorder) requests() []wire.Request[graph.Node] {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []wire.Request[graph.Node]
	for _, r := range *h.records {
		if req, err := wire.DecodeRequest[graph.Node]([]byte(r.Message)); err == nil {
			out = append(out, req)
		}
	}
	return out
}

func (h recorder) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range *h.records {
		out = append(out, r.Message)
	}
	return out
}

func TestEmptyConfigEmptyGraph(t *testing.T) {
	c := load(t, emptyPlugin(wire.Config{}))
	assert.Empty(t, c.ConfigFields())

	r := start(t, c)
	g, err := r.ExecuteNode(context.Background(), graph.Person("John Doe"))
	require.NoError(t, err)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestLoad_DeclaredConfig(t *testing.T) {
	wasm := emptyPlugin(wire.NewConfig("api_key", "", "endpoint", "https://api.example.com", "depth", "2"))
	c := load(t, wasm)

	assert.Equal(t, []string{"api_key", "endpoint", "depth"}, c.ConfigFields())
	v, ok := c.ConfigValue("endpoint")
	assert.True(t, ok)
	assert.Equal(t, "https://api.example.com", v)
	_, ok = c.ConfigValue("missing")
	assert.False(t, ok)

	m := c.Manifest()
	assert.Equal(t, "plugin.wasm", m.Name)
	assert.Equal(t, source.Digest(wasm), m.Digest)
	assert.Empty(t, m.Pin)
}

func TestSetConfigField(t *testing.T) {
	c := load(t, emptyPlugin(wire.NewConfig("api_key", "")))

	require.NoError(t, c.SetConfigField("api_key", "secret"))
	v, _ := c.ConfigValue("api_key")
	assert.Equal(t, "secret", v)

	before := c.Config()
	err := c.SetConfigField("nonexistent", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrUnknownField))
	assert.True(t, before.Equal(c.Config()))
	assert.Equal(t, []string{"api_key"}, c.ConfigFields())
}

func TestConfigCopies(t *testing.T) {
	c := load(t, emptyPlugin(wire.NewConfig("api_key", "a")))

	cfg := c.Config()
	cfg.Set("api_key", "b")
	v, _ := c.ConfigValue("api_key")
	assert.Equal(t, "a", v)
}

func TestConfigFrozenAtStart(t *testing.T) {
	rec := newRecorder()
	wasm := sandboxtest.Plugin(wire.NewConfig("api_key", "first")).
		Logging(contract.ExecOnNode, 1, emptyGraph()).
		Returning(contract.ExecOnGraph, emptyGraph()).
		Bytes()
	c := load(t, wasm, WithLogger(slog.New(rec)))

	r := start(t, c)
	require.NoError(t, c.SetConfigField("api_key", "second"))

	_, err := r.ExecuteNode(context.Background(), graph.Domain("example.com"))
	require.NoError(t, err)

	r2 := start(t, c)
	_, err = r2.ExecuteNode(context.Background(), graph.Domain("example.org"))
	require.NoError(t, err)

	reqs := rec.requests()
	require.Len(t, reqs, 2)

	v, _ := reqs[0].Config.Get("api_key")
	assert.Equal(t, "first", v)
	assert.Equal(t, graph.Domain("example.com"), reqs[0].Data)

	v, _ = reqs[1].Config.Get("api_key")
	assert.Equal(t, "second", v)

	v, _ = r.Config().Get("api_key")
	assert.Equal(t, "first", v)
}

func TestTrapDoesNotPoisonHost(t *testing.T) {
	wasm := sandboxtest.Plugin(wire.Config{}).
		Trapping(contract.ExecOnNode).
		Returning(contract.ExecOnGraph, emptyGraph()).
		Bytes()
	r := start(t, load(t, wasm))
	ctx := context.Background()

	_, err := r.ExecuteNode(ctx, graph.NewIP(netip.MustParseAddr("93.184.216.34")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrExecution))
	assert.Equal(t, hosterr.CodeTrap, hosterr.CodeOf(err))

	var he *hosterr.Error
	require.True(t, errors.As(err, &he))
	assert.Equal(t, r.Manifest().Source, he.Module)

	g, err := r.ExecuteGraph(ctx, graph.New())
	require.NoError(t, err)
	assert.Equal(t, 0, g.NodeCount())
	assert.True(t, r.Status(ctx).IsHealthy())
}

func TestExecute_ReturnsFragment(t *testing.T) {
	fragment := graph.New()
	p := fragment.AddNode(graph.Person("John Doe"))
	e := fragment.AddNode(graph.EmailAddress("john@example.com"))
	_, err := fragment.AddEdge(p, e, "uses")
	require.NoError(t, err)

	wasm := sandboxtest.Plugin(wire.Config{}).
		Returning(contract.ExecOnNode, sandboxtest.Response(fragment)).
		Returning(contract.ExecOnGraph, sandboxtest.Response(fragment)).
		Bytes()
	r := start(t, load(t, wasm))

	g, err := r.ExecuteNode(context.Background(), graph.Person("John Doe"))
	require.NoError(t, err)
	assert.True(t, fragment.Equal(g))

	g, err = r.ExecuteGraph(context.Background(), fragment)
	require.NoError(t, err)
	assert.True(t, fragment.Equal(g))
}

func TestExecute_UndecodableResponse(t *testing.T) {
	wasm := sandboxtest.Plugin(wire.Config{}).
		Returning(contract.ExecOnNode, []byte("not msgpack at all")).
		Returning(contract.ExecOnGraph, sandboxtest.Response("a string, not a graph")).
		Bytes()
	r := start(t, load(t, wasm))
	ctx := context.Background()

	_, err := r.ExecuteNode(ctx, graph.Domain("example.com"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrExecution))
	assert.True(t, errors.Is(err, hosterr.ErrDecode))
	assert.Equal(t, hosterr.CodeResponseDecode, hosterr.CodeOf(err))

	_, err = r.ExecuteGraph(ctx, graph.New())
	require.Error(t, err)
	assert.Equal(t, hosterr.CodeResponseDecode, hosterr.CodeOf(err))
}

func TestExecute_BudgetDestroysInstance(t *testing.T) {
	wasm := sandboxtest.Plugin(wire.Config{}).
		Spinning(contract.ExecOnNode).
		Returning(contract.ExecOnGraph, emptyGraph()).
		Bytes()
	r := start(t, load(t, wasm, WithExecutionBudget(50*time.Millisecond)))
	ctx := context.Background()

	_, err := r.ExecuteNode(ctx, graph.Domain("example.com"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrTimeout))

	status := r.Status(ctx)
	assert.False(t, status.IsHealthy())
	assert.Equal(t, r.InstanceID(), status.Details["instance"])

	_, err = r.ExecuteGraph(ctx, graph.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrClosed))
}

func TestRunning_Close(t *testing.T) {
	c := load(t, emptyPlugin(wire.Config{}))
	r, err := c.Start(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	assert.NotEmpty(t, r.ID())
	assert.NotEqual(t, r.ID(), r.InstanceID())

	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))

	_, err = r.ExecuteNode(ctx, graph.Domain("example.com"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrClosed))
	assert.False(t, r.Status(ctx).IsHealthy())

	r2 := start(t, c)
	_, err = r2.ExecuteNode(ctx, graph.Domain("example.com"))
	assert.NoError(t, err)
}

func TestConfigured_Close(t *testing.T) {
	c := load(t, emptyPlugin(wire.Config{}))
	ctx := context.Background()
	r := start(t, c)

	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))

	_, err := c.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrInstantiation))
	assert.Equal(t, hosterr.CodeClosed, hosterr.CodeOf(err))

	_, err = r.ExecuteNode(ctx, graph.Domain("example.com"))
	assert.NoError(t, err)
}

func TestSharedRuntime(t *testing.T) {
	ctx := context.Background()
	rt, err := sandbox.NewRuntime(ctx)
	require.NoError(t, err)

	u, err := New(writeModule(t, emptyPlugin(wire.Config{})), WithRuntime(rt))
	require.NoError(t, err)
	c, err := u.Load(ctx)
	require.NoError(t, err)
	r, err := c.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, rt.Close(ctx))
	require.NoError(t, c.Close(ctx))

	_, err = r.ExecuteNode(ctx, graph.Domain("example.com"))
	require.NoError(t, err)

	require.NoError(t, r.Close(ctx))
	err = rt.Acquire()
	require.Error(t, err)
	assert.Equal(t, hosterr.CodeClosed, hosterr.CodeOf(err))
}

func TestUnclosedHostsReleasedWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	rt, err := sandbox.NewRuntime(ctx)
	require.NoError(t, err)
	reg := metrics.NewRegistry()
	path := writeModule(t, emptyPlugin(wire.Config{}))

	// Start a host and drop both phases without closing them.
	func() {
		u, err := New(path, WithRuntime(rt), WithMetrics(reg))
		require.NoError(t, err)
		c, err := u.Load(ctx)
		require.NoError(t, err)
		r, err := c.Start(ctx)
		require.NoError(t, err)
		_, err = r.ExecuteNode(ctx, graph.Domain("example.com"))
		require.NoError(t, err)
	}()
	assert.Equal(t, 1.0, metricValue(t, reg.RunningInstances))

	require.NoError(t, rt.Close(ctx))
	assert.False(t, rt.IsClosed(), "the dropped hosts still hold references")

	assert.Eventually(t, func() bool {
		runtime.GC()
		return rt.IsClosed()
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, metricValue(t, reg.RunningInstances))
}

func TestClose_StopsRelease(t *testing.T) {
	ctx := context.Background()
	rt, err := sandbox.NewRuntime(ctx)
	require.NoError(t, err)
	defer rt.Close(ctx)
	reg := metrics.NewRegistry()

	func() {
		u, err := New(writeModule(t, emptyPlugin(wire.Config{})), WithRuntime(rt), WithMetrics(reg))
		require.NoError(t, err)
		c, err := u.Load(ctx)
		require.NoError(t, err)
		r, err := c.Start(ctx)
		require.NoError(t, err)
		require.NoError(t, r.Close(ctx))
		require.NoError(t, c.Close(ctx))
	}()

	for range 3 {
		runtime.GC()
	}
	assert.False(t, rt.IsClosed(), "closed hosts must not drop the caller's reference")
	assert.Equal(t, 0.0, metricValue(t, reg.RunningInstances))
}

func TestLoad_Errors(t *testing.T) {
	validEntries := func(b *sandboxtest.Builder) *sandboxtest.Builder {
		return b.Returning(contract.ExecOnNode, emptyGraph()).Returning(contract.ExecOnGraph, emptyGraph())
	}

	tests := []struct {
		name string
		wasm []byte
		code string
	}{
		{
			name: "invalid bytes",
			wasm: []byte("\x00asm but not really"),
			code: hosterr.CodeInvalidModule,
		},
		{
			name: "missing exec_on_graph",
			wasm: sandboxtest.Plugin(wire.Config{}).Returning(contract.ExecOnNode, emptyGraph()).Bytes(),
			code: hosterr.CodeContractMismatch,
		},
		{
			name: "mistyped exec_on_node",
			wasm: sandboxtest.Plugin(wire.Config{}).
				Func(contract.ExecOnNode, []byte{sandboxtest.I32}, []byte{sandboxtest.I64}, []byte{0x42, 0x00, 0x0b}).
				Returning(contract.ExecOnGraph, emptyGraph()).
				Bytes(),
			code: hosterr.CodeContractMismatch,
		},
		{
			name: "foreign import",
			wasm: validEntries(sandboxtest.New().
				Import("env", "abort", []byte{sandboxtest.I32}, nil).
				Alloc().
				Returning(contract.DefaultConfig, sandboxtest.Response(wire.Config{}))).
				Bytes(),
			code: hosterr.CodeContractMismatch,
		},
		{
			name: "default_config traps",
			wasm: validEntries(sandboxtest.New().Alloc().Trapping(contract.DefaultConfig)).Bytes(),
			code: hosterr.CodeDefaultConfigFailed,
		},
		{
			name: "default_config returns garbage",
			wasm: validEntries(sandboxtest.New().Alloc().Returning(contract.DefaultConfig, []byte{0xc1})).Bytes(),
			code: hosterr.CodeContractMismatch,
		},
		{
			name: "default_config returns a graph",
			wasm: validEntries(sandboxtest.New().Alloc().Returning(contract.DefaultConfig, emptyGraph())).Bytes(),
			code: hosterr.CodeContractMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := New(writeModule(t, tt.wasm))
			require.NoError(t, err)

			_, err = u.Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, hosterr.ErrLoad))
			assert.Equal(t, tt.code, hosterr.CodeOf(err))

			var he *hosterr.Error
			require.True(t, errors.As(err, &he))
			assert.Equal(t, "host.Load", he.Op)
			assert.Equal(t, u.Source().String(), he.Module)
		})
	}
}

func TestLoad_ContractProblemsListed(t *testing.T) {
	wasm := sandboxtest.New().Alloc().Bytes()
	u, err := New(writeModule(t, wasm))
	require.NoError(t, err)

	_, err = u.Load(context.Background())
	require.Error(t, err)

	var he *hosterr.Error
	require.True(t, errors.As(err, &he))
	problems, ok := he.Details["problems"].([]string)
	require.True(t, ok)
	assert.Len(t, problems, 3)
}

func TestLoad_Unreachable(t *testing.T) {
	u, err := New(filepath.Join(t.TempDir(), "missing.wasm"))
	require.NoError(t, err)

	_, err = u.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrSourceUnreachable))
}

func TestLoad_HTTP(t *testing.T) {
	wasm := emptyPlugin(wire.NewConfig("api_key", ""))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(wasm)
	}))
	defer srv.Close()

	u, err := New(srv.URL + "/plugins/whois.wasm")
	require.NoError(t, err)
	c, err := u.Load(context.Background())
	require.NoError(t, err)
	defer c.Close(context.Background())

	assert.Equal(t, "whois.wasm", c.Manifest().Name)
	assert.Equal(t, []string{"api_key"}, c.ConfigFields())
}

func TestLoad_Pin(t *testing.T) {
	wasm := emptyPlugin(wire.Config{})
	path := writeModule(t, wasm)

	u, err := New(path, WithSHA256(source.Digest(wasm)))
	require.NoError(t, err)
	c, err := u.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, source.Digest(wasm), c.Manifest().Pin)
	require.NoError(t, c.Close(context.Background()))

	u, err = New(path, WithSHA256(source.Digest([]byte("something else"))))
	require.NoError(t, err)
	_, err = u.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, hosterr.CodeIntegrityMismatch, hosterr.CodeOf(err))
}

func TestLoad_Overrides(t *testing.T) {
	wasm := emptyPlugin(wire.NewConfig("api_key", "", "depth", "1"))

	c := load(t, wasm, WithConfigOverrides(map[string]string{"depth": "3"}))
	v, _ := c.ConfigValue("depth")
	assert.Equal(t, "3", v)
	assert.Equal(t, []string{"api_key", "depth"}, c.ConfigFields())

	u, err := New(writeModule(t, wasm), WithConfigOverrides(map[string]string{"proxy": "socks5://localhost"}))
	require.NoError(t, err)
	_, err = u.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrUnknownField))
}

func TestFromManifest(t *testing.T) {
	wasm := emptyPlugin(wire.NewConfig("api_key", "", "depth", "1"))
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whois.wasm"), wasm, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(`
name: whois
source: whois.wasm
sha256: `+source.Digest(wasm)+`
budget: 2s
config:
  api_key: secret
sandbox:
  memory_limit_pages: 16
`), 0o644))

	m, err := manifest.Load(dir)
	require.NoError(t, err)

	u, err := FromManifest(m)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, u.opts.budget)

	c, err := u.Load(context.Background())
	require.NoError(t, err)
	defer c.Close(context.Background())

	assert.Equal(t, "whois", c.Manifest().Name)
	v, _ := c.ConfigValue("api_key")
	assert.Equal(t, "secret", v)
}

func TestNew_InvalidSource(t *testing.T) {
	_, err := New("ftp://example.com/plugin.wasm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, hosterr.ErrSourceUnreachable))
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	wasm := sandboxtest.Plugin(wire.Config{}).
		Trapping(contract.ExecOnNode).
		Returning(contract.ExecOnGraph, emptyGraph()).
		Bytes()

	r := start(t, load(t, wasm, WithTracer(tp.Tracer("test"))))
	_, err := r.ExecuteNode(context.Background(), graph.Person("John Doe"))
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "host.Load", spans[0].Name())
	assert.Equal(t, "host.Start", spans[1].Name())
	assert.Equal(t, "host.Execute", spans[2].Name())
	assert.Equal(t, codes.Error, spans[2].Status().Code)

	attrs := map[string]string{}
	for _, kv := range spans[2].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, contract.ExecOnNode, attrs["plugin.entry"])
	assert.Equal(t, "Person", attrs["node.kind"])
}

func metricValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if g := out.GetGauge(); g != nil {
		return g.GetValue()
	}
	return out.GetCounter().GetValue()
}

func TestMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	wasm := sandboxtest.Plugin(wire.NewConfig("api_key", "")).
		Trapping(contract.ExecOnNode).
		Returning(contract.ExecOnGraph, emptyGraph()).
		Bytes()
	ctx := context.Background()

	c := load(t, wasm, WithMetrics(reg))
	_ = c.SetConfigField("api_key", "x")
	_ = c.SetConfigField("nope", "x")

	r, err := c.Start(ctx)
	require.NoError(t, err)
	_, _ = r.ExecuteNode(ctx, graph.Person("John Doe"))
	_, _ = r.ExecuteGraph(ctx, graph.New())

	assert.Equal(t, 1.0, metricValue(t, reg.LoadsTotal.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, 1.0, metricValue(t, reg.ConfigChanges.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, 1.0, metricValue(t, reg.ConfigChanges.WithLabelValues(metrics.ResultError)))
	assert.Equal(t, 1.0, metricValue(t, reg.RunningInstances))
	assert.Equal(t, 1.0, metricValue(t, reg.ExecutionsTotal.WithLabelValues(contract.ExecOnNode, hosterr.CodeTrap)))
	assert.Equal(t, 1.0, metricValue(t, reg.ExecutionsTotal.WithLabelValues(contract.ExecOnGraph, metrics.ResultOK)))

	require.NoError(t, r.Close(ctx))
	assert.Equal(t, 0.0, metricValue(t, reg.RunningInstances))
}

func TestMetrics_FailedLoadWithoutCode(t *testing.T) {
	reg := metrics.NewRegistry()
	u, err := New(writeModule(t, emptyPlugin(wire.Config{})),
		WithMetrics(reg),
		WithConfigOverrides(map[string]string{"nope": "x"}),
	)
	require.NoError(t, err)

	_, err = u.Load(context.Background())
	require.Error(t, err)
	assert.Empty(t, hosterr.CodeOf(err))

	assert.Equal(t, 0.0, metricValue(t, reg.LoadsTotal.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, 1.0, metricValue(t, reg.LoadsTotal.WithLabelValues(string(hosterr.KindUnknownField))))
}

func TestLoad_PinMismatchNotCached(t *testing.T) {
	wasm := emptyPlugin(wire.Config{})
	var tampered atomic.Bool
	tampered.Store(true)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if tampered.Load() {
			_, _ = w.Write(wasm[:len(wasm)-1])
			return
		}
		_, _ = w.Write(wasm)
	}))
	defer ts.Close()

	cache := source.NewMemoryCache()
	fetcher := source.NewFetcher(source.WithCache(cache))
	newHost := func() *Unloaded {
		u, err := New(ts.URL+"/plugin.wasm", WithFetcher(fetcher), WithSHA256(source.Digest(wasm)))
		require.NoError(t, err)
		return u
	}

	_, err := newHost().Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, hosterr.CodeIntegrityMismatch, hosterr.CodeOf(err))
	assert.Equal(t, 0, cache.Len())

	tampered.Store(false)
	c, err := newHost().Load(context.Background())
	require.NoError(t, err)
	defer c.Close(context.Background())
	assert.Equal(t, 1, cache.Len())
}

func TestLogging(t *testing.T) {
	rec := newRecorder()
	c := load(t, emptyPlugin(wire.Config{}), WithLogger(slog.New(rec)))
	r := start(t, c)
	require.NoError(t, r.Close(context.Background()))

	assert.Contains(t, rec.messages(), "plugin loaded")
	assert.Contains(t, rec.messages(), "plugin started")
	assert.Contains(t, rec.messages(), "plugin stopped")
}
