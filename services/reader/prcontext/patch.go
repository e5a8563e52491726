// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prcontext

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ParsePatchStats parses one file's unified diff fragment, as served by
// the pull request files endpoint, into hunk and line counts. The
// fragment carries hunks only, no file header.
func ParsePatchStats(patch string) (*PatchStats, error) {
	if patch == "" {
		return nil, nil
	}

	hunks, err := diff.ParseHunks([]byte(patch))
	if err != nil {
		return nil, fmt.Errorf("parsing patch fragment: %w", err)
	}

	stats := &PatchStats{Hunks: len(hunks)}
	for _, hunk := range hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
				stats.Additions++
			case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
				stats.Deletions++
			}
		}
	}
	return stats, nil
}
