// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import "errors"

var (
	// ErrNilResult indicates Generate was called without an analysis
	// document.
	ErrNilResult = errors.New("analysis result is nil")

	// ErrUnknownKind indicates an unrecognized diagram kind.
	ErrUnknownKind = errors.New("unknown diagram kind")

	// ErrUnsupportedFormat indicates the kind cannot be rendered in the
	// requested format.
	ErrUnsupportedFormat = errors.New("unsupported diagram format")
)
