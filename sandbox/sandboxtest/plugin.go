package sandboxtest

import (
	"github.com/miampf/schnuffel/contract"
	"github.com/miampf/schnuffel/wire"
)

// Response encodes a response envelope and panics on failure.
func Response[T any](data T) []byte {
	b, err := wire.EncodeResponse(wire.Response[T]{Data: data})
	if err != nil {
		panic(err)
	}
	return b
}

// Plugin returns a builder with memory, alloc and dealloc whose default_config
// returns cfg. Entry points are added by the caller.
func Plugin(cfg wire.Config) *Builder {
	return New().Alloc().Dealloc().Returning(contract.DefaultConfig, Response(cfg))
}
