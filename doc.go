// Package schnuffel hosts sandboxed plugin modules that enrich an OSINT graph.
//
// A plugin is a WebAssembly module that declares its configuration fields and
// turns a node, or a whole graph, into a graph fragment. The host loads the
// module from a URL or a path, checks it exports the plugin contract, runs it
// in a wazero sandbox with a wall-clock budget and decodes what it returns.
// Fragments are merged into the caller's working graph.
//
// # Getting Started
//
//	c, err := schnuffel.Load(ctx, "https://plugins.example.com/whois.wasm",
//	    host.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer schnuffel.CloseWithLog(ctx, c, logger, "whois plugin")
//
//	if err := c.SetConfigField("api_key", key); err != nil {
//	    return err
//	}
//	r, err := c.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer schnuffel.CloseWithLog(ctx, r, logger, "whois instance")
//
//	g := graph.New()
//	root := g.AddNode(graph.Domain("example.com"))
//	added, err := schnuffel.Enrich(ctx, r, g, root)
//
// # Packages
//
//   - graph: the node variants and the directed labelled graph
//   - wire: the msgpack encoding exchanged with modules
//   - contract: the exports a module must provide and a typed client for them
//   - sandbox: the wazero runtime, compiled modules and instances
//   - host: the Unloaded, Configured and Running host phases
//   - source: module references, bounded fetching, pinning and caching
//   - manifest: plugin.yaml files
//   - hosterr: the error taxonomy shared by all of the above
//
// # Errors
//
// Every failure is a *hosterr.Error. Match categories with errors.Is:
//
//	if errors.Is(err, hosterr.ErrTimeout) {
//	    // the module overran its budget; its instance is gone
//	}
package schnuffel
