// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"runtime"

	"spectrad/cmd"
	"spectrad/pkg/build"
)

// main is the entry point for the spectrad binary.
//
// Startup is deliberately thin: resolve build metadata, cap the scheduler
// for the acquisition-dominated workload, then hand off to the CLI. The
// pipeline itself is a single logical task; one extra thread covers the
// storage completion goroutine and any publishers.
func main() {
	build.Initialize()

	runtime.GOMAXPROCS(2)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
