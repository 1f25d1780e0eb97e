// Package wire is the binary codec shared by the plugin host and its plugins.
//
// Values are encoded as MessagePack. Nodes are single-entry maps keyed by
// their kind, graphs use the petgraph serialization layout and configuration
// is an ordered string map. Every entry point exchanges an envelope:
//
//	request:  {"version": 1, "config": {...}, "data": <payload>}
//	response: {"version": 1, "data": <payload>}
//
// Unknown map keys are skipped so either side may add entries without breaking
// the other. An envelope with a missing or different version is rejected with
// hosterr.CodeVersionMismatch; any other malformed input is rejected with
// hosterr.CodeMalformed. Decoding never panics and never returns a partially
// populated value.
package wire
