// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "errors"

// Sentinel errors for parse failure conditions.
//
// These can be checked with errors.Is() to determine the category of
// failure without inspecting error messages.
var (
	// ErrUnsupportedLanguage indicates that no parser is registered for the
	// requested language or file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrFileTooLarge indicates the content exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content cannot be processed at all.
	//
	// Common causes:
	//   - Non-UTF-8 encoding
	//   - Binary file content
	ErrInvalidContent = errors.New("invalid content")

	// ErrParseFailed indicates parsing failed completely and no usable
	// result could be produced. Partial failures are reported in
	// ParseResult.Errors instead.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidResult indicates a ParseResult violated a structural
	// invariant after extraction.
	ErrInvalidResult = errors.New("invalid parse result")
)
