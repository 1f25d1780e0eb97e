package schnuffel

import (
	"context"
	"log/slog"
)

// Closer is implemented by the host phases and the sandbox runtime.
type Closer interface {
	Close(ctx context.Context) error
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer schnuffel.CloseWithLog(ctx, running, logger, "whois instance")
func CloseWithLog(ctx context.Context, closer Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(ctx); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
