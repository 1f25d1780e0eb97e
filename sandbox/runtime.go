package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/miampf/schnuffel/contract"
	"github.com/miampf/schnuffel/hosterr"
	"github.com/miampf/schnuffel/internal/ctxlog"
)

// Runtime owns a wazero runtime with the host capabilities registered. It is
// reference counted: NewRuntime returns it holding one reference, Acquire adds
// one and Close drops one. The underlying runtime, and every module and
// instance created from it, is closed with the last reference.
type Runtime struct {
	rt     wazero.Runtime
	cfg    runtimeConfig
	logger *slog.Logger

	mu   sync.Mutex
	refs int
}

// NewRuntime creates a runtime that aborts calls when their context is done
// and caps guest memory.
func NewRuntime(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := wazero.NewRuntimeConfig()
	if cfg.interpreter {
		rc = wazero.NewRuntimeConfigInterpreter()
	}
	rc = rc.WithCloseOnContextDone(true).WithMemoryLimitPages(cfg.memoryLimitPages)

	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	_, err := rt.NewHostModuleBuilder(contract.HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(hostLog), contract.LogSignature.Params, contract.LogSignature.Results).
		WithParameterNames("level", "ptr", "len").
		Export(contract.HostLog).
		Instantiate(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("register host module %s: %w", contract.HostModule, err)
	}

	if cfg.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("register WASI: %w", err)
		}
	}

	cfg.logger.Debug("sandbox runtime created",
		"interpreter", cfg.interpreter,
		"wasi", cfg.wasi,
		"memory_limit_pages", cfg.memoryLimitPages,
	)

	return &Runtime{rt: rt, cfg: cfg, logger: cfg.logger, refs: 1}, nil
}

// WASI reports whether modules may import WASI.
func (r *Runtime) WASI() bool {
	return r.cfg.wasi
}

// Acquire adds a reference. It fails once the runtime has been closed.
func (r *Runtime) Acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs == 0 {
		return hosterr.New("sandbox.Acquire", hosterr.KindInstantiation, hosterr.CodeClosed, "runtime is closed")
	}
	r.refs++
	return nil
}

// IsClosed reports whether the last reference has been dropped.
func (r *Runtime) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs == 0
}

// Close drops a reference and closes the runtime when none remain. Extra
// calls are no-ops.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.refs == 0 {
		r.mu.Unlock()
		return nil
	}
	r.refs--
	last := r.refs == 0
	r.mu.Unlock()

	if !last {
		return nil
	}
	r.logger.Debug("sandbox runtime closed")
	return r.rt.Close(ctx)
}

// Compile validates and compiles module bytes. Invalid bytes fail with
// INVALID_MODULE.
func (r *Runtime) Compile(ctx context.Context, wasm []byte) (*Module, error) {
	cm, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, hosterr.New("sandbox.Compile", hosterr.KindLoad, hosterr.CodeInvalidModule,
			"compile module").WithCause(err)
	}
	return &Module{runtime: r, cm: cm}, nil
}

// hostLog implements schnuffel.log(level, ptr, len). The message is written to
// the logger carried by the call context.
func hostLog(ctx context.Context, m api.Module, stack []uint64) {
	level := logLevel(api.DecodeI32(stack[0]))
	ptr, n := api.DecodeU32(stack[1]), api.DecodeU32(stack[2])

	msg, ok := m.Memory().Read(ptr, n)
	if !ok {
		ctxlog.FromContext(ctx).Warn("plugin log message out of bounds",
			"instance", m.Name(), "ptr", ptr, "len", n)
		return
	}
	ctxlog.FromContext(ctx).Log(ctx, level, string(msg), "instance", m.Name())
}

// logLevel maps the guest's level (0 debug, 1 info, 2 warn, 3 error).
func logLevel(level int32) slog.Level {
	switch level {
	case 0:
		return slog.LevelDebug
	case 2:
		return slog.LevelWarn
	case 3:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
