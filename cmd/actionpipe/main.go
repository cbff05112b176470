// Command actionpipe loads a pipeline definition from TOML, dispatches
// payloads through it, and reports execution statistics.
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
