// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts import and call information from source files.
//
// Description:
//
//	The package wraps tree-sitter grammars behind a common Parser interface.
//	Each parser reads a single file and reports the module-level imports and
//	the functions it declares, together with the callee names referenced from
//	each function body. No cross-file resolution happens here; that is the
//	graph builder's job.
package ast

import (
	"context"
	"sync"
)

// Parser defines the contract for language-specific symbol extraction.
//
// Description:
//
//	Parser implementations extract imports and function declarations from
//	source code. Each implementation handles one language but produces output
//	in the common ParseResult format defined in types.go.
//
//	The interface is designed to be:
//	- Context-aware: supports cancellation via context.Context
//	- Language-agnostic: common output format regardless of source language
//	- Error-tolerant: partial results are returned even when parse errors occur
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use. Each Parse call creates
//	its own tree-sitter parser instance internally.
type Parser interface {
	// Parse extracts imports and functions from source code.
	//
	// Parameters:
	//   - ctx: Context for cancellation. Long-running parses should check ctx.Done().
	//   - content: Raw source code bytes (must be valid UTF-8).
	//   - filePath: Path to the file, relative to the analysis root, forward slashes.
	//
	// Returns:
	//   - *ParseResult: Extracted imports and functions. Never nil on success.
	//   - error: Non-nil only for complete parse failures (e.g. invalid UTF-8,
	//     oversized file). Syntax errors are reported in ParseResult.Errors.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical lowercase name of the language this
	// parser handles ("python", "javascript", "typescript").
	Language() string

	// Extensions returns the file extensions this parser claims, including
	// the leading dot. Extensions are lowercase and case-sensitive.
	Extensions() []string
}

// ParserRegistry manages parser instances by language and file extension.
//
// Thread Safety:
//
//	ParserRegistry is fully thread-safe. Registration uses write locks,
//	lookups use read locks.
type ParserRegistry struct {
	mu sync.RWMutex

	// byLanguage maps language names to parser instances.
	byLanguage map[string]Parser

	// byExtension maps file extensions to parser instances.
	byExtension map[string]Parser
}

// NewParserRegistry creates a new empty ParserRegistry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// NewDefaultRegistry creates a registry with all built-in parsers registered.
//
// The default set covers Python, JavaScript and TypeScript sources.
func NewDefaultRegistry() *ParserRegistry {
	r := NewParserRegistry()
	r.Register(NewPythonParser())
	r.Register(NewJavaScriptParser())
	r.Register(NewTypeScriptParser())
	return r
}

// Register adds a parser to the registry.
//
// The parser is registered under its Language() name and all its Extensions().
// Already-registered languages or extensions are overwritten.
//
// Thread Safety: safe for concurrent use.
func (r *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser

	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// GetByLanguage returns the parser for the given language name.
//
// Thread Safety: safe for concurrent use.
func (r *ParserRegistry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byLanguage[language]
	return parser, ok
}

// GetByExtension returns the parser for the given file extension.
//
// Parameters:
//   - ext: The file extension including the dot (e.g. ".py"). Case-sensitive.
//
// Thread Safety: safe for concurrent use.
func (r *ParserRegistry) GetByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, ok := r.byExtension[ext]
	return parser, ok
}

// Languages returns a list of all registered language names.
//
// Thread Safety: safe for concurrent use.
func (r *ParserRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.byLanguage))
	for lang := range r.byLanguage {
		languages = append(languages, lang)
	}
	return languages
}

// Extensions returns a list of all registered file extensions.
//
// Thread Safety: safe for concurrent use.
func (r *ParserRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		extensions = append(extensions, ext)
	}
	return extensions
}
