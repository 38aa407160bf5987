// Command dxc compiles WGSL shaders with DXC-style arguments, browses
// compile results interactively and runs WebAssembly guests against the
// dxc host module.
package main

import (
	"fmt"
	"os"
)

func main() {
	gs := newGlobalState()
	if err := newRootCommand(gs).Execute(); err != nil {
		fmt.Fprintf(gs.stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
