// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// writeTree materializes a map of relative paths to file contents under dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func relPaths(files []SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestWalker_Discover_EmptyRoot(t *testing.T) {
	w := NewWalker("   ")
	_, err := w.Discover(context.Background())
	if !errors.Is(err, ErrEmptyRoot) {
		t.Errorf("expected ErrEmptyRoot, got %v", err)
	}
}

func TestWalker_Discover_RootNotFound(t *testing.T) {
	w := NewWalker(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := w.Discover(context.Background())
	if !errors.Is(err, ErrRootNotFound) {
		t.Errorf("expected ErrRootNotFound, got %v", err)
	}
}

func TestWalker_Discover_RootIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.py")
	if err := os.WriteFile(file, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWalker(file)
	_, err := w.Discover(context.Background())
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("expected ErrNotDirectory, got %v", err)
	}
}

func TestWalker_Discover_EmptyDirectoryIsNotAnError(t *testing.T) {
	w := NewWalker(t.TempDir())
	files, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files, got %v", relPaths(files))
	}
}

func TestWalker_Discover_ClaimsKnownExtensionsOnly(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"app/main.py":     "import os\n",
		"web/index.js":    "const x = 1;\n",
		"web/app.ts":      "const y = 2;\n",
		"README.md":       "# readme\n",
		"data/config.yml": "a: 1\n",
	})

	w := NewWalker(dir)
	files, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	got := relPaths(files)
	want := []string{"app/main.py", "web/app.ts", "web/index.js"}
	if len(got) != len(want) {
		t.Fatalf("discovered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalker_Discover_LexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"zeta.py":    "",
		"alpha.py":   "",
		"mid/b.py":   "",
		"mid/a.py":   "",
		"beta/c.py":  "",
		"beta/aa.py": "",
	})

	w := NewWalker(dir)
	files, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	got := relPaths(files)
	if !sort.StringsAreSorted(got) {
		t.Errorf("expected lexical order, got %v", got)
	}
	if len(got) != 6 {
		t.Errorf("expected 6 files, got %d", len(got))
	}
}

func TestWalker_Discover_PrunesExcludedDirsAtAnyDepth(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"app/main.py":                         "",
		"app/node_modules/lib/index.js":       "",
		"venv/lib/site-packages/requests.py":  "",
		"src/nested/__pycache__/cached.py":    "",
		"src/nested/keep.py":                  "",
		".git/hooks/pre-commit.py":            "",
		"dist/bundle.js":                      "",
		"build/out.js":                        "",
		"coverage/report.js":                  "",
		"deep/.pytest_cache/v/cache/stale.py": "",
	})

	w := NewWalker(dir)
	files, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	got := relPaths(files)
	want := []string{"app/main.py", "src/nested/keep.py"}
	if len(got) != len(want) {
		t.Fatalf("discovered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalker_Discover_WithExcludeDirsReplacesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"node_modules/lib.js": "",
		"src/app.py":          "",
	})

	// Empty exclude set disables pruning, so node_modules is discovered.
	w := NewWalker(dir, WithExcludeDirs([]string{}))
	files, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files with pruning disabled, got %v", relPaths(files))
	}
}

func TestWalker_Discover_WithAdditionalExcludes(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"generated/schema.py": "",
		"src/app.py":          "",
	})

	w := NewWalker(dir, WithAdditionalExcludes("generated"))
	files, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	got := relPaths(files)
	if len(got) != 1 || got[0] != "src/app.py" {
		t.Errorf("expected only src/app.py, got %v", got)
	}
}

func TestWalker_Discover_LanguageTag(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.py":  "",
		"b.js":  "",
		"c.tsx": "",
	})

	w := NewWalker(dir)
	files, err := w.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	byRel := make(map[string]string, len(files))
	for _, f := range files {
		byRel[f.RelPath] = f.Language
	}
	if byRel["a.py"] != "python" {
		t.Errorf("a.py language = %q, want python", byRel["a.py"])
	}
	if byRel["b.js"] != "javascript" {
		t.Errorf("b.js language = %q, want javascript", byRel["b.js"])
	}
	if byRel["c.tsx"] != "typescript" {
		t.Errorf("c.tsx language = %q, want typescript", byRel["c.tsx"])
	}
}

func TestWalker_Discover_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.py": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewWalker(dir)
	_, err := w.Discover(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
