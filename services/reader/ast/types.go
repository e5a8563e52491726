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

import (
	"fmt"
	"strings"
)

// Size and traversal limits shared by all parsers.
const (
	// DefaultMaxFileSize is the maximum file size accepted by a parser
	// unless overridden via an option.
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize is the threshold above which a warning is logged
	// before parsing proceeds.
	WarnFileSize = 1 * 1024 * 1024

	// MaxTraversalDepth bounds recursive AST walks. Deeper nodes are skipped.
	MaxTraversalDepth = 50

	// MaxCallsPerFunction caps the number of callee names recorded for a
	// single function body.
	MaxCallsPerFunction = 1000
)

// Location identifies a region in a source file.
//
// Lines are 1-indexed, columns 0-indexed, matching tree-sitter points.
type Location struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartCol  int    `json:"start_col"`
	EndCol    int    `json:"end_col"`
}

// Import describes a single import statement.
//
// Description:
//
//	Path is the module path in dotted form regardless of source language:
//	JavaScript/TypeScript slash paths are normalized ("pkg/sub" becomes
//	"pkg.sub") and relative prefixes ("./", "../", leading dots) are stripped
//	with IsRelative set. A relative import whose path is empty after
//	stripping ("from . import x", "import './'") keeps Path == "".
type Import struct {
	// Path is the dotted module path without relative prefixes.
	Path string `json:"path"`

	// Alias is the local binding name ("import numpy as np" -> "np",
	// default imports in JS). Empty when none.
	Alias string `json:"alias,omitempty"`

	// Names lists the imported members for from-imports and named imports.
	Names []string `json:"names,omitempty"`

	// IsWildcard marks "from x import *" style imports.
	IsWildcard bool `json:"is_wildcard,omitempty"`

	// IsRelative marks imports whose original path was relative.
	IsRelative bool `json:"is_relative,omitempty"`

	Location Location `json:"location"`
}

// Function describes a function or method declaration.
//
// Description:
//
//	Functions are identified by bare name only. Methods and nested functions
//	are recorded as ordinary functions; the declaring class or parent is not
//	part of the identity. Calls lists the callee names referenced from the
//	function body in lexical order with duplicates preserved. Direct calls
//	record the function name, attribute calls record the attribute name
//	("client.fetch()" records "fetch"). Calls inside nested function
//	declarations belong to the nested function, not the enclosing one.
type Function struct {
	Name       string   `json:"name"`
	Params     []string `json:"params"`
	Returns    string   `json:"returns,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	IsAsync    bool     `json:"is_async,omitempty"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Calls      []string `json:"calls"`
}

// ParseResult holds everything extracted from a single source file.
type ParseResult struct {
	// FilePath is the path the file was parsed under, relative to the
	// analysis root, forward slashes.
	FilePath string `json:"file_path"`

	// Language is the canonical parser language name.
	Language string `json:"language"`

	// Hash is the hex-encoded SHA-256 of the file content.
	Hash string `json:"hash"`

	// ParsedAtMilli is the extraction timestamp in Unix milliseconds.
	ParsedAtMilli int64 `json:"parsed_at_milli"`

	// Imports lists the file's import statements in source order.
	Imports []Import `json:"imports"`

	// Functions lists the file's function declarations in source order,
	// including methods and nested functions.
	Functions []Function `json:"functions"`

	// Errors lists non-fatal problems encountered during extraction.
	// A non-empty list still means the result is usable.
	Errors []string `json:"errors,omitempty"`
}

// Validate checks structural invariants of the result.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return fmt.Errorf("%w: empty file path", ErrInvalidResult)
	}
	if r.Language == "" {
		return fmt.Errorf("%w: empty language", ErrInvalidResult)
	}
	return nil
}

// normalizeModulePath converts a raw import path into the dotted form used
// throughout the graph.
//
// Description:
//
//	Strips leading relative segments ("./", "../" in slash paths, leading
//	dots in Python paths), drops a trailing source extension, and converts
//	remaining slashes to dots. Returns the normalized path and whether the
//	original was relative.
//
// Examples:
//
//	"./utils"          -> "utils", true
//	"../lib/helpers"   -> "lib.helpers", true
//	"@scope/pkg"       -> "@scope.pkg", false
//	".sibling"         -> "sibling", true
//	"requests.models"  -> "requests.models", false
func normalizeModulePath(raw string) (string, bool) {
	path := raw
	relative := false

	for {
		switch {
		case strings.HasPrefix(path, "./"):
			path = path[2:]
			relative = true
		case strings.HasPrefix(path, "../"):
			path = path[3:]
			relative = true
		case strings.HasPrefix(path, "."):
			path = path[1:]
			relative = true
		default:
			goto stripped
		}
	}
stripped:

	for _, ext := range []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"} {
		if strings.HasSuffix(path, ext) {
			path = path[:len(path)-len(ext)]
			break
		}
	}

	path = strings.Trim(strings.ReplaceAll(path, "/", "."), ".")
	return path, relative
}
