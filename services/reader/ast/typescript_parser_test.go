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
	"testing"
)

func TestTypeScriptParser_Parse_TypedSignature(t *testing.T) {
	source := `import { Request, Response } from 'express';

function greet(name: string, times?: number): string {
  log(name);
  return name.repeat(times ?? 1);
}
`
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(source), "src/greet.ts")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	express := findImport(t, result, "express")
	if express == nil {
		t.Fatal("expected import 'express'")
	}
	if len(express.Names) != 2 {
		t.Errorf("expected 2 named imports, got %v", express.Names)
	}

	greet := findFunction(t, result, "greet")
	if greet == nil {
		t.Fatal("expected function 'greet'")
	}
	wantParams := []string{"name", "times"}
	if len(greet.Params) != len(wantParams) {
		t.Fatalf("expected params %v, got %v", wantParams, greet.Params)
	}
	for i, p := range wantParams {
		if greet.Params[i] != p {
			t.Errorf("param %d: expected %q, got %q", i, p, greet.Params[i])
		}
	}
	if greet.Returns != "string" {
		t.Errorf("expected return type 'string', got %q", greet.Returns)
	}
	if len(greet.Calls) == 0 || greet.Calls[0] != "log" {
		t.Errorf("expected first call 'log', got %v", greet.Calls)
	}
}

func TestTypeScriptParser_Parse_AsyncArrow(t *testing.T) {
	source := `const fetchUsers = async (): Promise<User[]> => {
  const res = await client.get('/users');
  return res.data;
};
`
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(source), "src/users.ts")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn := findFunction(t, result, "fetchUsers")
	if fn == nil {
		t.Fatal("expected arrow function binding 'fetchUsers'")
	}
	if !fn.IsAsync {
		t.Error("expected fetchUsers to be async")
	}
	if len(fn.Calls) != 1 || fn.Calls[0] != "get" {
		t.Errorf("expected calls [get], got %v", fn.Calls)
	}
}

func TestTypeScriptParser_Parse_RelativeImportNormalization(t *testing.T) {
	source := `import { helper } from '../lib/helpers';
import type { Config } from './config';
`
	parser := NewTypeScriptParser()
	result, err := parser.Parse(context.Background(), []byte(source), "src/deep/mod.ts")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lib := findImport(t, result, "lib.helpers")
	if lib == nil {
		t.Fatal("expected import 'lib.helpers'")
	}
	if !lib.IsRelative {
		t.Error("expected IsRelative for '../lib/helpers'")
	}
}
