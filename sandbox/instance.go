package sandbox

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/miampf/schnuffel/hosterr"
)

// Instance is one live sandbox with its own linear memory. It is not safe for
// concurrent calls; callers serialize access.
type Instance struct {
	id      string
	mod     api.Module
	mem     api.Memory
	alloc   api.Function
	dealloc api.Function
	budget  time.Duration
	logger  *slog.Logger
}

// ID returns the unique instance name.
func (i *Instance) ID() string {
	return i.id
}

// IsClosed reports whether the instance has been destroyed, either by Close or
// by an aborted call.
func (i *Instance) IsClosed() bool {
	return i.mod.IsClosed()
}

// Close destroys the instance. Closing twice is a no-op.
func (i *Instance) Close(ctx context.Context) error {
	if i.mod.IsClosed() {
		return nil
	}
	return i.mod.Close(ctx)
}

// Call copies request into guest memory via alloc, invokes entry with its
// (ptr, len) and copies the response the packed result points to back out.
//
// A trap leaves the instance usable. A call aborted by the budget or by the
// caller's context destroys the instance and later calls fail with CLOSED.
func (i *Instance) Call(ctx context.Context, entry string, request []byte) ([]byte, error) {
	const op = "sandbox.Call"

	if i.mod.IsClosed() {
		return nil, hosterr.New(op, hosterr.KindExecution, hosterr.CodeClosed, "instance destroyed").
			WithDetails(map[string]any{"instance": i.id, "entry": entry})
	}

	fn := i.mod.ExportedFunction(entry)
	if fn == nil {
		return nil, hosterr.Newf(op, hosterr.KindInternal, "", "instance has no export %s", entry)
	}

	if i.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.budget)
		defer cancel()
	}

	size := uint32(len(request))
	res, err := i.alloc.Call(ctx, api.EncodeU32(size))
	if err != nil {
		return nil, i.classify(op, "alloc", err)
	}
	ptr := api.DecodeU32(res[0])
	if !i.mem.Write(ptr, request) {
		return nil, hosterr.Newf(op, hosterr.KindExecution, hosterr.CodeBadPointer,
			"alloc returned %#x, outside memory for %d bytes", ptr, size)
	}

	res, err = fn.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(size))
	if err != nil {
		return nil, i.classify(op, entry, err)
	}

	outPtr, outLen := uint32(res[0]>>32), uint32(res[0])
	view, ok := i.mem.Read(outPtr, outLen)
	if !ok {
		return nil, hosterr.Newf(op, hosterr.KindExecution, hosterr.CodeBadPointer,
			"%s returned %#x+%d, outside memory", entry, outPtr, outLen)
	}
	out := bytes.Clone(view)

	if i.dealloc != nil {
		if _, err := i.dealloc.Call(ctx, api.EncodeU32(ptr), api.EncodeU32(size)); err != nil {
			return nil, i.classify(op, "dealloc", err)
		}
		if _, err := i.dealloc.Call(ctx, api.EncodeU32(outPtr), api.EncodeU32(outLen)); err != nil {
			return nil, i.classify(op, "dealloc", err)
		}
	}
	return out, nil
}

// classify maps a failed guest call onto an execution error code.
func (i *Instance) classify(op, fn string, err error) error {
	code := hosterr.CodeTrap
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		switch exit.ExitCode() {
		case sys.ExitCodeDeadlineExceeded:
			code = hosterr.CodeTimeout
		case sys.ExitCodeContextCanceled:
			code = hosterr.CodeCanceled
		}
	}

	i.logger.Debug("sandbox call failed",
		"instance", i.id,
		"function", fn,
		"code", code,
		"closed", i.mod.IsClosed(),
		"error", err,
	)

	return hosterr.Newf(op, hosterr.KindExecution, code, "%s failed", fn).
		WithCause(err).
		WithDetails(map[string]any{"instance": i.id, "function": fn})
}
