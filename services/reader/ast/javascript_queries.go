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

// JavaScript / TypeScript Tree-sitter Node Types
//
// Shared between JavaScriptParser and TypeScriptParser; the TypeScript
// grammar is a superset of the JavaScript one, so the extraction core in
// ecma.go works against both trees.
//
// References:
//   https://github.com/tree-sitter/tree-sitter-javascript
//   https://github.com/tree-sitter/tree-sitter-typescript

// Node type constants for JavaScript/TypeScript AST traversal.
const (
	// Import and export nodes
	jsNodeImportStatement = "import_statement"
	jsNodeImportClause    = "import_clause"
	jsNodeNamespaceImport = "namespace_import"
	jsNodeNamedImports    = "named_imports"
	jsNodeImportSpecifier = "import_specifier"
	jsNodeExportStatement = "export_statement"
	jsNodeString          = "string"
	jsNodeStringFragment  = "string_fragment"

	// Declaration nodes
	jsNodeFunctionDeclaration   = "function_declaration"
	jsNodeGeneratorFunctionDecl = "generator_function_declaration"
	jsNodeFunctionExpression    = "function_expression"
	jsNodeFunction              = "function"
	jsNodeGeneratorFunction     = "generator_function"
	jsNodeArrowFunction         = "arrow_function"
	jsNodeMethodDefinition      = "method_definition"
	jsNodeVariableDeclarator    = "variable_declarator"

	// Function signature nodes
	jsNodeFormalParameters  = "formal_parameters"
	jsNodeAssignmentPattern = "assignment_pattern"
	jsNodeRestPattern       = "rest_pattern"
	jsNodeObjectPattern     = "object_pattern"
	jsNodeArrayPattern      = "array_pattern"

	// TypeScript-only signature nodes
	tsNodeRequiredParameter = "required_parameter"
	tsNodeOptionalParameter = "optional_parameter"
	tsNodeTypeAnnotation    = "type_annotation"

	// Expression nodes
	jsNodeIdentifier         = "identifier"
	jsNodePropertyIdentifier = "property_identifier"
	jsNodeCallExpression     = "call_expression"
	jsNodeMemberExpression   = "member_expression"
	jsNodeArguments          = "arguments"
	jsNodeAsync              = "async"
)

// Field names used with ChildByFieldName for JavaScript/TypeScript nodes.
const (
	jsFieldFunction = "function"
	jsFieldProperty = "property"
	jsFieldName     = "name"
	jsFieldValue    = "value"
)
