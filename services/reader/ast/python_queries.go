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

// Python Tree-sitter Node Types
//
// This file documents the tree-sitter node types used by PythonParser.
// The parser uses direct node traversal rather than tree-sitter's query
// language for more precise control over extraction.
//
// Reference: https://github.com/tree-sitter/tree-sitter-python

// Node type constants for Python AST traversal.
const (
	// Import-related nodes
	pyNodeImportStatement     = "import_statement"
	pyNodeImportFromStatement = "import_from_statement"
	pyNodeDottedName          = "dotted_name"
	pyNodeAliasedImport       = "aliased_import"
	pyNodeRelativeImport      = "relative_import"
	pyNodeImportPrefix        = "import_prefix"
	pyNodeWildcardImport      = "wildcard_import"

	// Declaration nodes
	pyNodeFunctionDefinition  = "function_definition"
	pyNodeClassDefinition     = "class_definition"
	pyNodeDecoratedDefinition = "decorated_definition"
	pyNodeDecorator           = "decorator"
	pyNodeBlock               = "block"

	// Function signature nodes
	pyNodeParameters            = "parameters"
	pyNodeTypedParameter        = "typed_parameter"
	pyNodeDefaultParameter      = "default_parameter"
	pyNodeTypedDefaultParameter = "typed_default_parameter"
	pyNodeListSplatPattern      = "list_splat_pattern"
	pyNodeDictSplatPattern      = "dictionary_splat_pattern"
	pyNodeType                  = "type"

	// Expression nodes
	pyNodeIdentifier = "identifier"
	pyNodeAttribute  = "attribute"
	pyNodeCall       = "call"
	pyNodeAsync      = "async"
)

// Field names used with ChildByFieldName for Python nodes.
const (
	pyFieldFunction  = "function"
	pyFieldAttribute = "attribute"
	pyFieldName      = "name"
)
