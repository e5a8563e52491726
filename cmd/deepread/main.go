// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command deepread is the Deep Code Reader CLI: dependency graphs, cycle
// detection, coupling metrics, flow tracing and diagrams for a codebase,
// straight from the terminal.
package main

import (
	"errors"
	"os"
)

// Exit codes: 0 success, 1 operation failure, 2 usage or config error.
func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
