// Command egraph drives the slotted e-graph kernel to saturation over a
// small built-in arithmetic language, as a runnable demonstration of the
// packages under internal/ — it is not itself part of the engine.
package main

import (
	"fmt"
	"os"

	"github.com/perf-analysis/cmd/egraph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
