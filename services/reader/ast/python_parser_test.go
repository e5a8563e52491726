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
	"errors"
	"sync"
	"testing"
)

const pythonImportSource = `import os
import numpy as np
from collections import OrderedDict
from requests.models import Response
from . import sibling
from .models import User
from ..shared.utils import helper
`

func findImport(t *testing.T, result *ParseResult, path string) *Import {
	t.Helper()
	for i := range result.Imports {
		if result.Imports[i].Path == path {
			return &result.Imports[i]
		}
	}
	return nil
}

func findFunction(t *testing.T, result *ParseResult, name string) *Function {
	t.Helper()
	for i := range result.Functions {
		if result.Functions[i].Name == name {
			return &result.Functions[i]
		}
	}
	return nil
}

func TestPythonParser_Parse_EmptyFile(t *testing.T) {
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(""), "empty.py")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.Language != "python" {
		t.Errorf("expected language 'python', got %q", result.Language)
	}
	if len(result.Imports) != 0 {
		t.Errorf("expected no imports, got %d", len(result.Imports))
	}
	if len(result.Functions) != 0 {
		t.Errorf("expected no functions, got %d", len(result.Functions))
	}
}

func TestPythonParser_Parse_Imports(t *testing.T) {
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(pythonImportSource), "app/main.py")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if imp := findImport(t, result, "os"); imp == nil {
		t.Error("expected import 'os'")
	}

	np := findImport(t, result, "numpy")
	if np == nil {
		t.Fatal("expected import 'numpy'")
	}
	if np.Alias != "np" {
		t.Errorf("expected alias 'np', got %q", np.Alias)
	}

	collections := findImport(t, result, "collections")
	if collections == nil {
		t.Fatal("expected import 'collections'")
	}
	if len(collections.Names) != 1 || collections.Names[0] != "OrderedDict" {
		t.Errorf("expected names [OrderedDict], got %v", collections.Names)
	}

	// Dotted module path stays dotted.
	if imp := findImport(t, result, "requests.models"); imp == nil {
		t.Error("expected import 'requests.models'")
	}

	// Relative imports keep the name after the dots and set IsRelative.
	models := findImport(t, result, "models")
	if models == nil {
		t.Fatal("expected relative import 'models'")
	}
	if !models.IsRelative {
		t.Error("expected IsRelative for 'from .models import User'")
	}

	shared := findImport(t, result, "shared.utils")
	if shared == nil {
		t.Fatal("expected relative import 'shared.utils'")
	}
	if !shared.IsRelative {
		t.Error("expected IsRelative for 'from ..shared.utils import helper'")
	}

	// 'from . import sibling' has an empty path after stripping the dot.
	var bare *Import
	for i := range result.Imports {
		if result.Imports[i].Path == "" && result.Imports[i].IsRelative {
			bare = &result.Imports[i]
			break
		}
	}
	if bare == nil {
		t.Fatal("expected bare relative import for 'from . import sibling'")
	}
	if len(bare.Names) != 1 || bare.Names[0] != "sibling" {
		t.Errorf("expected names [sibling], got %v", bare.Names)
	}
}

func TestPythonParser_Parse_InlineImports(t *testing.T) {
	source := `def lazy():
    import json
    return json.dumps({})
`
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(source), "lazy.py")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imp := findImport(t, result, "json"); imp == nil {
		t.Error("expected inline import 'json' to be extracted")
	}
}

func TestPythonParser_Parse_FunctionCallsOrderAndDuplicates(t *testing.T) {
	source := `def process(data):
    clean = sanitize(data)
    validate(clean)
    emit(clean)
    emit(clean)
`
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(source), "pipeline.py")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn := findFunction(t, result, "process")
	if fn == nil {
		t.Fatal("expected function 'process'")
	}
	if len(fn.Params) != 1 || fn.Params[0] != "data" {
		t.Errorf("expected params [data], got %v", fn.Params)
	}

	want := []string{"sanitize", "validate", "emit", "emit"}
	if len(fn.Calls) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(fn.Calls), fn.Calls)
	}
	for i, name := range want {
		if fn.Calls[i] != name {
			t.Errorf("call %d: expected %q, got %q", i, name, fn.Calls[i])
		}
	}
}

func TestPythonParser_Parse_AttributeCallsRecordAttributeName(t *testing.T) {
	source := `def persist(self):
    self.flush()
    client.fetch_data()
`
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(source), "store.py")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn := findFunction(t, result, "persist")
	if fn == nil {
		t.Fatal("expected function 'persist'")
	}
	want := []string{"flush", "fetch_data"}
	if len(fn.Calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, fn.Calls)
	}
	for i, name := range want {
		if fn.Calls[i] != name {
			t.Errorf("call %d: expected %q, got %q", i, name, fn.Calls[i])
		}
	}
}

func TestPythonParser_Parse_MethodsAndNestedFunctions(t *testing.T) {
	source := `class Repo:
    def save(self):
        self.flush()

def outer():
    def inner():
        deep_call()
    inner()
`
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(source), "repo.py")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	save := findFunction(t, result, "save")
	if save == nil {
		t.Fatal("expected method 'save' recorded as a function")
	}
	if len(save.Calls) != 1 || save.Calls[0] != "flush" {
		t.Errorf("expected save calls [flush], got %v", save.Calls)
	}

	outer := findFunction(t, result, "outer")
	if outer == nil {
		t.Fatal("expected function 'outer'")
	}
	// Calls inside the nested definition belong to the nested function.
	if len(outer.Calls) != 1 || outer.Calls[0] != "inner" {
		t.Errorf("expected outer calls [inner], got %v", outer.Calls)
	}

	inner := findFunction(t, result, "inner")
	if inner == nil {
		t.Fatal("expected nested function 'inner'")
	}
	if len(inner.Calls) != 1 || inner.Calls[0] != "deep_call" {
		t.Errorf("expected inner calls [deep_call], got %v", inner.Calls)
	}
}

func TestPythonParser_Parse_SignatureDetails(t *testing.T) {
	source := `@app.route
@staticmethod
def handler(request, timeout=30, *args, **kwargs) -> bool:
    return True

async def fetch(url):
    pass
`
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(source), "api.py")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := findFunction(t, result, "handler")
	if handler == nil {
		t.Fatal("expected function 'handler'")
	}
	wantParams := []string{"request", "timeout", "*args", "**kwargs"}
	if len(handler.Params) != len(wantParams) {
		t.Fatalf("expected params %v, got %v", wantParams, handler.Params)
	}
	for i, p := range wantParams {
		if handler.Params[i] != p {
			t.Errorf("param %d: expected %q, got %q", i, p, handler.Params[i])
		}
	}
	if handler.Returns != "bool" {
		t.Errorf("expected return annotation 'bool', got %q", handler.Returns)
	}
	if len(handler.Decorators) != 2 {
		t.Fatalf("expected 2 decorators, got %v", handler.Decorators)
	}
	if handler.Decorators[0] != "app.route" || handler.Decorators[1] != "staticmethod" {
		t.Errorf("unexpected decorators: %v", handler.Decorators)
	}

	fetch := findFunction(t, result, "fetch")
	if fetch == nil {
		t.Fatal("expected function 'fetch'")
	}
	if !fetch.IsAsync {
		t.Error("expected fetch to be async")
	}
}

func TestPythonParser_Parse_SyntaxErrorsProducePartialResult(t *testing.T) {
	source := `def broken(:
    pass

def intact():
    helper()
`
	parser := NewPythonParser()
	result, err := parser.Parse(context.Background(), []byte(source), "broken.py")

	if err != nil {
		t.Fatalf("expected partial result, got error: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Error("expected syntax errors to be recorded")
	}
}

func TestPythonParser_Parse_InvalidUTF8(t *testing.T) {
	parser := NewPythonParser()
	_, err := parser.Parse(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bad.py")

	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestPythonParser_Parse_FileTooLarge(t *testing.T) {
	parser := NewPythonParser(WithPythonMaxFileSize(8))
	_, err := parser.Parse(context.Background(), []byte("import os\n"), "big.py")

	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestPythonParser_Parse_Concurrent(t *testing.T) {
	parser := NewPythonParser()
	source := []byte(pythonImportSource)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := parser.Parse(context.Background(), source, "concurrent.py")
			if err != nil {
				t.Errorf("concurrent parse failed: %v", err)
				return
			}
			if len(result.Imports) == 0 {
				t.Error("concurrent parse returned no imports")
			}
		}()
	}
	wg.Wait()
}
