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

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist on the
	// API, or the token cannot see it.
	ErrNotFound = errors.New("github resource not found")

	// ErrInvalidRef indicates a pull request reference that does not
	// match the owner/repo#number form.
	ErrInvalidRef = errors.New("invalid pull request reference")
)
