// Package hosterr provides the structured error taxonomy of the plugin host.
//
// # Overview
//
// Every boundary-crossing operation (load, start, execute, configuration
// changes and wire decoding) reports failures as *Error values. An Error
// carries the failing operation, a Kind naming the lifecycle step, an optional
// Code refining the kind, the module source and the underlying cause.
//
// # Kinds
//
//   - KindLoad: source unreachable, malformed module, contract mismatch
//   - KindUnknownField: configuration field not declared by the module
//   - KindInstantiation: sandbox instance could not be created
//   - KindExecution: trap, timeout, destroyed instance, undecodable response
//   - KindDecode: malformed wire bytes
//   - KindInternal: a violated host invariant
//
// # Usage
//
//	err := hosterr.New("host.Start", hosterr.KindInstantiation, "",
//	    "instantiate module").
//	    WithCause(cause).
//	    WithModule("https://example.com/whois.wasm")
//
// Check for categories with the package sentinels:
//
//	if errors.Is(err, hosterr.ErrContractMismatch) {
//	    // the module is missing an entry point
//	}
//
// Module misbehaviour never panics the host; it surfaces as a load or
// execution error and leaves the host in its last good state.
package hosterr
