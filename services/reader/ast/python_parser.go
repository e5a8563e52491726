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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Must be positive.
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser implements the Parser interface for Python source code.
//
// Description:
//
//	PythonParser uses tree-sitter to parse Python source files and extract
//	import statements and function declarations. Imports are collected from
//	the entire tree, including inline imports inside function bodies, since
//	Python code commonly defers imports to avoid circular dependencies.
//	Functions are collected from every scope: module level, class bodies
//	(methods) and nested definitions all produce entries under their bare
//	names.
//
// Thread Safety:
//
//	PythonParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser instance internally.
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a new PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Language returns the canonical language name for this parser.
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string {
	return []string{".py", ".pyi"}
}

// Parse extracts imports and functions from Python source code.
//
// Description:
//
//	Parse uses tree-sitter to parse the provided Python source and extract
//	imports and function declarations into a ParseResult. The parser is
//	error-tolerant and returns partial results for syntactically invalid
//	code, recording the problem in ParseResult.Errors.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw Python source bytes. Must be valid UTF-8.
//   - filePath: Path to the file, relative to the analysis root.
//
// Outputs:
//   - *ParseResult: Extracted imports and functions. Never nil on success.
//   - error: Non-nil for complete failures:
//   - ErrFileTooLarge: content exceeds the size limit
//   - ErrInvalidContent: content is not valid UTF-8
//   - context errors: the context was canceled
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), nil, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		recordParseMetrics(ctx, "python", time.Since(start), nil, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, "python", time.Since(start), nil, false)
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), nil, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), nil, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "python",
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Imports:       make([]Import, 0),
		Functions:     make([]Function, 0),
		Errors:        make([]string, 0),
	}

	rootNode := tree.RootNode()
	if rootNode == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}

	if rootNode.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.extractImports(rootNode, content, filePath, result, 0)
	p.collectFunctions(ctx, rootNode, content, filePath, result, 0)

	if err := result.Validate(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), nil, false)
		return nil, fmt.Errorf("result validation failed: %w", err)
	}

	setParseSpanResult(span, result)
	recordParseMetrics(ctx, "python", time.Since(start), result, true)

	return result, nil
}

// extractImports walks the entire tree and extracts all import statements.
//
// The walk covers function bodies and conditional blocks, not just the
// top level, so that inline imports are visible to classification.
func (p *PythonParser) extractImports(node *sitter.Node, content []byte, filePath string, result *ParseResult, depth int) {
	if node == nil || depth > MaxTraversalDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case pyNodeImportStatement:
			p.processImportStatement(child, content, filePath, result)
		case pyNodeImportFromStatement:
			p.processImportFromStatement(child, content, filePath, result)
		default:
			p.extractImports(child, content, filePath, result, depth+1)
		}
	}
}

// processImportStatement handles 'import foo' or 'import foo as bar' imports.
func (p *PythonParser) processImportStatement(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case pyNodeDottedName:
			path := string(content[child.StartByte():child.EndByte()])
			p.addImport(node, path, "", nil, false, filePath, result)
		case pyNodeAliasedImport:
			var path, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case pyNodeDottedName:
					path = string(content[grandchild.StartByte():grandchild.EndByte()])
				case pyNodeIdentifier:
					alias = string(content[grandchild.StartByte():grandchild.EndByte()])
				}
			}
			if path != "" {
				p.addImport(node, path, alias, nil, false, filePath, result)
			}
		}
	}
}

// processImportFromStatement handles 'from x import y' style imports,
// including relative forms like 'from .sibling import helper'.
func (p *PythonParser) processImportFromStatement(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	var modulePath string
	var names []string
	var isWildcard bool
	var isRelative bool
	var sawImport bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case pyNodeRelativeImport:
			isRelative = true
			// relative_import holds import_prefix (dots) and optionally a dotted_name
			var prefix, name string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case pyNodeImportPrefix:
					prefix = string(content[grandchild.StartByte():grandchild.EndByte()])
				case pyNodeDottedName:
					name = string(content[grandchild.StartByte():grandchild.EndByte()])
				}
			}
			modulePath = prefix + name
		case pyNodeDottedName:
			nameStr := string(content[child.StartByte():child.EndByte()])
			if !sawImport {
				modulePath = nameStr
			} else {
				names = append(names, nameStr)
			}
		case pyNodeWildcardImport:
			isWildcard = true
		case pyNodeAliasedImport:
			var importName string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				if grandchild.Type() == pyNodeIdentifier || grandchild.Type() == pyNodeDottedName {
					importName = string(content[grandchild.StartByte():grandchild.EndByte()])
					break
				}
			}
			if importName != "" {
				names = append(names, importName)
			}
		case pyNodeIdentifier:
			if sawImport {
				names = append(names, string(content[child.StartByte():child.EndByte()]))
			}
		}
	}

	if modulePath != "" || isRelative {
		p.addImport(node, modulePath, "", names, isWildcard, filePath, result)
	}
}

// addImport normalizes the raw path and appends an Import to the result.
func (p *PythonParser) addImport(node *sitter.Node, rawPath, alias string, names []string, isWildcard bool, filePath string, result *ParseResult) {
	path, relative := normalizeModulePath(rawPath)

	result.Imports = append(result.Imports, Import{
		Path:       path,
		Alias:      alias,
		Names:      names,
		IsWildcard: isWildcard,
		IsRelative: relative,
		Location: Location{
			FilePath:  filePath,
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			StartCol:  int(node.StartPoint().Column),
			EndCol:    int(node.EndPoint().Column),
		},
	})
}

// collectFunctions walks the tree and records every function definition.
//
// Methods inside classes and nested functions are collected the same way
// as module-level functions; only lambdas are skipped (no name).
func (p *PythonParser) collectFunctions(ctx context.Context, node *sitter.Node, content []byte, filePath string, result *ParseResult, depth int) {
	if node == nil || depth > MaxTraversalDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case pyNodeFunctionDefinition:
			if fn := p.processFunction(ctx, child, content, filePath, nil); fn != nil {
				result.Functions = append(result.Functions, *fn)
			}
			// Pick up nested definitions inside the body.
			p.collectFunctions(ctx, child, content, filePath, result, depth+1)
		case pyNodeDecoratedDefinition:
			decorators := p.extractDecorators(child, content)
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				if grandchild.Type() == pyNodeFunctionDefinition {
					if fn := p.processFunction(ctx, grandchild, content, filePath, decorators); fn != nil {
						result.Functions = append(result.Functions, *fn)
					}
					p.collectFunctions(ctx, grandchild, content, filePath, result, depth+1)
				} else if grandchild.Type() == pyNodeClassDefinition {
					p.collectFunctions(ctx, grandchild, content, filePath, result, depth+1)
				}
			}
		default:
			p.collectFunctions(ctx, child, content, filePath, result, depth+1)
		}
	}
}

// processFunction extracts a single function definition.
func (p *PythonParser) processFunction(ctx context.Context, node *sitter.Node, content []byte, filePath string, decorators []string) *Function {
	var name string
	var params []string
	var returns string
	var isAsync bool
	var bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case pyNodeAsync:
			isAsync = true
		case pyNodeIdentifier:
			if name == "" {
				name = string(content[child.StartByte():child.EndByte()])
			}
		case pyNodeParameters:
			params = p.extractParamNames(child, content)
		case pyNodeType:
			returns = string(content[child.StartByte():child.EndByte()])
		case pyNodeBlock:
			bodyNode = child
		}
	}

	if name == "" {
		return nil
	}

	fn := &Function{
		Name:       name,
		Params:     params,
		Returns:    returns,
		Decorators: decorators,
		IsAsync:    isAsync,
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Calls:      []string{},
	}

	if bodyNode != nil {
		fn.Calls = p.extractCallNames(ctx, bodyNode, content, filePath)
	}

	return fn
}

// extractParamNames extracts bare parameter names from a parameters node.
func (p *PythonParser) extractParamNames(node *sitter.Node, content []byte) []string {
	params := make([]string, 0, node.ChildCount())
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case pyNodeIdentifier:
			params = append(params, string(content[child.StartByte():child.EndByte()]))
		case pyNodeTypedParameter, pyNodeDefaultParameter, pyNodeTypedDefaultParameter:
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				if grandchild.Type() == pyNodeIdentifier {
					params = append(params, string(content[grandchild.StartByte():grandchild.EndByte()]))
					break
				}
			}
		case pyNodeListSplatPattern, pyNodeDictSplatPattern:
			params = append(params, string(content[child.StartByte():child.EndByte()]))
		}
	}
	return params
}

// extractDecorators extracts decorator names from a decorated_definition.
func (p *PythonParser) extractDecorators(node *sitter.Node, content []byte) []string {
	decorators := make([]string, 0)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != pyNodeDecorator {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			grandchild := child.Child(j)
			switch grandchild.Type() {
			case pyNodeIdentifier, pyNodeAttribute:
				decorators = append(decorators, string(content[grandchild.StartByte():grandchild.EndByte()]))
			case pyNodeCall:
				// Decorator with arguments: @foo(x)
				for k := 0; k < int(grandchild.ChildCount()); k++ {
					ggchild := grandchild.Child(k)
					if ggchild.Type() == pyNodeIdentifier || ggchild.Type() == pyNodeAttribute {
						decorators = append(decorators, string(content[ggchild.StartByte():ggchild.EndByte()]))
						break
					}
				}
			}
		}
	}

	return decorators
}

// extractCallNames extracts callee names from a function body in lexical
// order, duplicates preserved.
//
// Description:
//
//	Traverses the body iteratively. Direct calls ("fetch(x)") record the
//	function name; attribute calls ("client.fetch(x)") record the attribute
//	name. Subtrees of nested function definitions are skipped; their calls
//	belong to the nested function.
//
// Thread Safety: safe for concurrent use.
func (p *PythonParser) extractCallNames(ctx context.Context, bodyNode *sitter.Node, content []byte, filePath string) []string {
	if bodyNode == nil {
		return []string{}
	}

	calls := make([]string, 0, 16)

	type stackEntry struct {
		node  *sitter.Node
		depth int
	}

	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: bodyNode, depth: 0})

	nodeCount := 0
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := entry.node
		if node == nil {
			continue
		}

		if entry.depth > MaxTraversalDepth {
			continue
		}

		nodeCount++
		if nodeCount%100 == 0 && ctx.Err() != nil {
			slog.Debug("context canceled during call extraction",
				slog.String("file", filePath),
				slog.Int("calls_found", len(calls)))
			return calls
		}

		if len(calls) >= MaxCallsPerFunction {
			slog.Warn("max calls per function reached",
				slog.String("file", filePath),
				slog.Int("limit", MaxCallsPerFunction))
			return calls
		}

		if node.Type() == pyNodeCall {
			if name := p.callTargetName(node, content); name != "" {
				calls = append(calls, name)
			}
		}

		// Push children in reverse so processing stays left-to-right.
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			child := node.Child(i)
			if child == nil {
				continue
			}
			// Nested definitions own their calls.
			if child.Type() == pyNodeFunctionDefinition || child.Type() == pyNodeDecoratedDefinition {
				continue
			}
			stack = append(stack, stackEntry{node: child, depth: entry.depth + 1})
		}
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("ast.calls_found", len(calls)),
		attribute.Int("ast.nodes_traversed", nodeCount),
	)

	return calls
}

// callTargetName resolves the callee name from a Python call node.
func (p *PythonParser) callTargetName(node *sitter.Node, content []byte) string {
	funcNode := node.ChildByFieldName(pyFieldFunction)
	if funcNode == nil && node.ChildCount() > 0 {
		funcNode = node.Child(0)
	}
	if funcNode == nil {
		return ""
	}

	switch funcNode.Type() {
	case pyNodeIdentifier:
		return string(content[funcNode.StartByte():funcNode.EndByte()])
	case pyNodeAttribute:
		attrNode := funcNode.ChildByFieldName(pyFieldAttribute)
		if attrNode != nil {
			return string(content[attrNode.StartByte():attrNode.EndByte()])
		}
	}
	return ""
}
