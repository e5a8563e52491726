// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import "errors"

// Sentinel errors for discovery configuration failures.
//
// All of these are raised before any traversal happens; an unreadable
// subtree during the walk is logged and skipped, never an error.
var (
	// ErrEmptyRoot indicates the analysis root path is empty or whitespace.
	ErrEmptyRoot = errors.New("empty analysis root")

	// ErrRootNotFound indicates the analysis root does not exist.
	ErrRootNotFound = errors.New("analysis root not found")

	// ErrNotDirectory indicates the analysis root exists but is a file.
	ErrNotDirectory = errors.New("analysis root is not a directory")
)
