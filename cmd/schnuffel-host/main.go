// Command schnuffel-host loads a plugin module and runs it once, for plugin
// authors checking their module outside the graph tool.
//
//	schnuffel-host config ./whois.wasm
//	schnuffel-host exec ./whois.wasm --node Domain=example.com --set api_key=secret
//	schnuffel-host exec --manifest ./plugins/whois
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
