// Package contract defines the typed boundary between the host and a plugin
// module.
//
// A plugin exports three entry points, each taking the (pointer, length) of a
// request envelope in its linear memory and returning the response envelope
// packed as pointer<<32 | length:
//
//	default_config(request{config: {}, data: ""})  -> {data: Config}
//	exec_on_node(request{config, data: Node})      -> {data: Graph}
//	exec_on_graph(request{config, data: Graph})    -> {data: Graph}
//
// It also exports its memory and alloc(size) -> pointer so the host can place
// requests, and may export dealloc(pointer, length). The only host import it
// may use is schnuffel.log(level, pointer, length); WASI imports are accepted
// when the host enables WASI.
//
// Verify checks all of this once when a module is loaded, so a module missing
// an entry point never reaches the running state. Client wraps an Invoker with
// typed calls.
package contract
