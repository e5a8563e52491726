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
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ecmaExtractor implements the extraction walk shared by the JavaScript
// and TypeScript parsers. The TypeScript grammar is a superset of the
// JavaScript grammar, so one walk serves both; TypeScript-only node kinds
// simply never appear in JavaScript trees.
type ecmaExtractor struct{}

// extractImports walks the tree and records ES module imports, re-exports
// with a source, and CommonJS require() bindings.
func (e ecmaExtractor) extractImports(node *sitter.Node, content []byte, filePath string, result *ParseResult, depth int) {
	if node == nil || depth > MaxTraversalDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case jsNodeImportStatement:
			e.processImportStatement(child, content, filePath, result)
		case jsNodeExportStatement:
			// export { x } from "mod" re-exports reference the module too.
			if src := e.sourceString(child, content); src != "" {
				e.addImport(child, src, "", nil, false, filePath, result)
			}
			e.extractImports(child, content, filePath, result, depth+1)
		case jsNodeVariableDeclarator:
			if path, alias, ok := e.requireBinding(child, content); ok {
				e.addImport(child, path, alias, nil, false, filePath, result)
			}
			e.extractImports(child, content, filePath, result, depth+1)
		default:
			e.extractImports(child, content, filePath, result, depth+1)
		}
	}
}

// processImportStatement handles 'import x from "mod"' and its variants.
func (e ecmaExtractor) processImportStatement(node *sitter.Node, content []byte, filePath string, result *ParseResult) {
	var path, alias string
	var names []string
	var isWildcard bool

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case jsNodeString:
			path = e.stringContent(child, content)
		case jsNodeImportClause:
			for j := 0; j < int(child.ChildCount()); j++ {
				clause := child.Child(j)
				switch clause.Type() {
				case jsNodeIdentifier:
					// Default import binding
					alias = string(content[clause.StartByte():clause.EndByte()])
				case jsNodeNamespaceImport:
					// import * as foo
					isWildcard = true
					for k := 0; k < int(clause.ChildCount()); k++ {
						gc := clause.Child(k)
						if gc.Type() == jsNodeIdentifier {
							alias = string(content[gc.StartByte():gc.EndByte()])
						}
					}
				case jsNodeNamedImports:
					for k := 0; k < int(clause.ChildCount()); k++ {
						gc := clause.Child(k)
						if gc.Type() == jsNodeImportSpecifier {
							if name := e.specifierName(gc, content); name != "" {
								names = append(names, name)
							}
						}
					}
				}
			}
		}
	}

	if path != "" {
		e.addImportWithDetails(node, path, alias, names, isWildcard, filePath, result)
	}
}

// requireBinding recognizes 'const foo = require("bar")' declarators.
func (e ecmaExtractor) requireBinding(node *sitter.Node, content []byte) (path, alias string, ok bool) {
	nameNode := node.ChildByFieldName(jsFieldName)
	valueNode := node.ChildByFieldName(jsFieldValue)
	if nameNode == nil || valueNode == nil || valueNode.Type() != jsNodeCallExpression {
		return "", "", false
	}

	fnNode := valueNode.ChildByFieldName(jsFieldFunction)
	if fnNode == nil || fnNode.Type() != jsNodeIdentifier {
		return "", "", false
	}
	if string(content[fnNode.StartByte():fnNode.EndByte()]) != "require" {
		return "", "", false
	}

	for i := 0; i < int(valueNode.ChildCount()); i++ {
		child := valueNode.Child(i)
		if child.Type() != jsNodeArguments {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			arg := child.Child(j)
			if arg.Type() == jsNodeString {
				path = e.stringContent(arg, content)
			}
		}
	}
	if path == "" {
		return "", "", false
	}

	if nameNode.Type() == jsNodeIdentifier {
		alias = string(content[nameNode.StartByte():nameNode.EndByte()])
	}
	return path, alias, true
}

// sourceString returns the module string of an export-from statement, or "".
func (e ecmaExtractor) sourceString(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == jsNodeString {
			return e.stringContent(child, content)
		}
	}
	return ""
}

// specifierName extracts the original name from an import specifier.
func (e ecmaExtractor) specifierName(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == jsNodeIdentifier {
			return string(content[child.StartByte():child.EndByte()])
		}
	}
	return ""
}

// stringContent extracts string content without quotes.
func (e ecmaExtractor) stringContent(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == jsNodeStringFragment {
			return string(content[child.StartByte():child.EndByte()])
		}
	}
	text := string(content[node.StartByte():node.EndByte()])
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}

func (e ecmaExtractor) addImport(node *sitter.Node, rawPath, alias string, names []string, isWildcard bool, filePath string, result *ParseResult) {
	e.addImportWithDetails(node, rawPath, alias, names, isWildcard, filePath, result)
}

func (e ecmaExtractor) addImportWithDetails(node *sitter.Node, rawPath, alias string, names []string, isWildcard bool, filePath string, result *ParseResult) {
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

// collectFunctions walks the tree and records every named function:
// declarations, generator declarations, class methods, and arrow or
// function expressions bound to a declarator name.
func (e ecmaExtractor) collectFunctions(ctx context.Context, node *sitter.Node, content []byte, filePath string, result *ParseResult, depth int) {
	if node == nil || depth > MaxTraversalDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case jsNodeFunctionDeclaration, jsNodeGeneratorFunctionDecl:
			if fn := e.processNamedFunction(ctx, child, content, filePath); fn != nil {
				result.Functions = append(result.Functions, *fn)
			}
			e.collectFunctions(ctx, child, content, filePath, result, depth+1)
		case jsNodeMethodDefinition:
			if fn := e.processMethod(ctx, child, content, filePath); fn != nil {
				result.Functions = append(result.Functions, *fn)
			}
			e.collectFunctions(ctx, child, content, filePath, result, depth+1)
		case jsNodeVariableDeclarator:
			if fn := e.processDeclaratorFunction(ctx, child, content, filePath); fn != nil {
				result.Functions = append(result.Functions, *fn)
			}
			e.collectFunctions(ctx, child, content, filePath, result, depth+1)
		default:
			e.collectFunctions(ctx, child, content, filePath, result, depth+1)
		}
	}
}

// processNamedFunction extracts function and generator declarations.
func (e ecmaExtractor) processNamedFunction(ctx context.Context, node *sitter.Node, content []byte, filePath string) *Function {
	nameNode := node.ChildByFieldName(jsFieldName)
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	return e.buildFunction(ctx, node, node, name, content, filePath)
}

// processMethod extracts a class method definition.
func (e ecmaExtractor) processMethod(ctx context.Context, node *sitter.Node, content []byte, filePath string) *Function {
	nameNode := node.ChildByFieldName(jsFieldName)
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if name == "" {
		return nil
	}
	return e.buildFunction(ctx, node, node, name, content, filePath)
}

// processDeclaratorFunction extracts 'const f = () => {}' style bindings.
func (e ecmaExtractor) processDeclaratorFunction(ctx context.Context, node *sitter.Node, content []byte, filePath string) *Function {
	nameNode := node.ChildByFieldName(jsFieldName)
	valueNode := node.ChildByFieldName(jsFieldValue)
	if nameNode == nil || valueNode == nil || nameNode.Type() != jsNodeIdentifier {
		return nil
	}

	switch valueNode.Type() {
	case jsNodeArrowFunction, jsNodeFunctionExpression, jsNodeFunction, jsNodeGeneratorFunction:
		name := string(content[nameNode.StartByte():nameNode.EndByte()])
		return e.buildFunction(ctx, node, valueNode, name, content, filePath)
	}
	return nil
}

// buildFunction assembles a Function from a signature-bearing node.
//
// declNode provides the source span, fnNode carries parameters and body.
func (e ecmaExtractor) buildFunction(ctx context.Context, declNode, fnNode *sitter.Node, name string, content []byte, filePath string) *Function {
	fn := &Function{
		Name:      name,
		Params:    []string{},
		StartLine: int(declNode.StartPoint().Row) + 1,
		EndLine:   int(declNode.EndPoint().Row) + 1,
		Calls:     []string{},
	}

	var bodyNode *sitter.Node
	for i := 0; i < int(fnNode.ChildCount()); i++ {
		child := fnNode.Child(i)
		switch child.Type() {
		case jsNodeAsync:
			fn.IsAsync = true
		case jsNodeFormalParameters:
			fn.Params = e.extractParams(child, content)
		case jsNodeIdentifier:
			// Single-parameter arrow without parens: x => x + 1
			if fnNode.Type() == jsNodeArrowFunction {
				fn.Params = append(fn.Params, string(content[child.StartByte():child.EndByte()]))
			}
		case tsNodeTypeAnnotation:
			fn.Returns = strings.TrimSpace(strings.TrimPrefix(
				string(content[child.StartByte():child.EndByte()]), ":"))
		case "statement_block":
			bodyNode = child
		}
	}

	// Arrow functions may have an expression body instead of a block.
	if bodyNode == nil && fnNode.Type() == jsNodeArrowFunction {
		if body := fnNode.ChildByFieldName("body"); body != nil {
			bodyNode = body
		}
	}

	if bodyNode != nil {
		fn.Calls = e.extractCallNames(ctx, bodyNode, content, filePath)
	}

	return fn
}

// extractParams extracts parameter names from formal_parameters.
//
// TypeScript wraps each entry in required_parameter/optional_parameter
// nodes; JavaScript trees carry the patterns directly.
func (e ecmaExtractor) extractParams(node *sitter.Node, content []byte) []string {
	params := make([]string, 0, node.ChildCount())

	var add func(child *sitter.Node)
	add = func(child *sitter.Node) {
		switch child.Type() {
		case jsNodeIdentifier:
			params = append(params, string(content[child.StartByte():child.EndByte()]))
		case jsNodeRestPattern:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == jsNodeIdentifier {
					params = append(params, "..."+string(content[gc.StartByte():gc.EndByte()]))
				}
			}
		case jsNodeAssignmentPattern:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == jsNodeIdentifier {
					params = append(params, string(content[gc.StartByte():gc.EndByte()]))
					break
				}
			}
		case jsNodeObjectPattern, jsNodeArrayPattern:
			params = append(params, string(content[child.StartByte():child.EndByte()]))
		case tsNodeRequiredParameter, tsNodeOptionalParameter:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == tsNodeTypeAnnotation {
					continue
				}
				add(gc)
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		add(node.Child(i))
	}
	return params
}

// extractCallNames extracts callee names from a function body in lexical
// order, duplicates preserved. Subtrees of nested functions are skipped;
// their calls belong to the nested function.
func (e ecmaExtractor) extractCallNames(ctx context.Context, bodyNode *sitter.Node, content []byte, filePath string) []string {
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
		if node == nil || entry.depth > MaxTraversalDepth {
			continue
		}

		nodeCount++
		if nodeCount%100 == 0 && ctx.Err() != nil {
			return calls
		}

		if len(calls) >= MaxCallsPerFunction {
			slog.Warn("max calls per function reached",
				slog.String("file", filePath),
				slog.Int("limit", MaxCallsPerFunction))
			return calls
		}

		if node.Type() == jsNodeCallExpression {
			if name := e.callTargetName(node, content); name != "" {
				calls = append(calls, name)
			}
		}

		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case jsNodeFunctionDeclaration, jsNodeGeneratorFunctionDecl,
				jsNodeFunctionExpression, jsNodeFunction,
				jsNodeGeneratorFunction, jsNodeArrowFunction,
				jsNodeMethodDefinition:
				// Nested functions own their calls.
				continue
			}
			stack = append(stack, stackEntry{node: child, depth: entry.depth + 1})
		}
	}

	return calls
}

// callTargetName resolves the callee name from a call_expression node.
func (e ecmaExtractor) callTargetName(node *sitter.Node, content []byte) string {
	fnNode := node.ChildByFieldName(jsFieldFunction)
	if fnNode == nil && node.ChildCount() > 0 {
		fnNode = node.Child(0)
	}
	if fnNode == nil {
		return ""
	}

	switch fnNode.Type() {
	case jsNodeIdentifier:
		name := string(content[fnNode.StartByte():fnNode.EndByte()])
		if name == "require" {
			// require() bindings are reported as imports, not calls.
			return ""
		}
		return name
	case jsNodeMemberExpression:
		propNode := fnNode.ChildByFieldName(jsFieldProperty)
		if propNode != nil {
			return string(content[propNode.StartByte():propNode.EndByte()])
		}
	}
	return ""
}
