// Package host runs one plugin module through its lifecycle.
//
// A host moves through three phases, each its own type, so a call that is
// illegal in a phase does not compile:
//
//	u, err := host.New("https://plugins.example.com/whois.wasm",
//	    host.WithExecutionBudget(5*time.Second))
//	c, err := u.Load(ctx)              // fetch, verify, compile, default_config
//	err = c.SetConfigField("api_key", key)
//	r, err := c.Start(ctx)             // fresh sandbox instance
//	fragment, err := r.ExecuteNode(ctx, graph.Domain("example.com"))
//
// Load and Start never retry. A failed Execute leaves the Running host in
// place: after a trap it keeps accepting calls, after a budget overrun or a
// canceled call its instance is gone and every later call fails with CLOSED.
// Status reports which of the two applies.
//
// The configuration is copied into the Running host at Start. Changing the
// Configured host afterwards only affects hosts started later.
package host
