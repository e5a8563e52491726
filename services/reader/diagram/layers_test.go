// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDetectLayers_RecognizedDirectories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"services", "api", "utils", "random"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	// A file with a layer name must not count as a layer.
	if err := os.WriteFile(filepath.Join(root, "models"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write models: %v", err)
	}

	got := DetectLayers(root)
	want := []Layer{
		{Name: "Service Layer", Dirs: []string{"services"}},
		{Name: "API Layer", Dirs: []string{"api"}},
		{Name: "Utilities", Dirs: []string{"utils"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DetectLayers = %+v, want %+v", got, want)
	}
}

func TestDetectLayers_UnstructuredRoot(t *testing.T) {
	if got := DetectLayers(t.TempDir()); len(got) != 0 {
		t.Errorf("DetectLayers = %+v, want empty", got)
	}
}

func TestGenerator_Architecture_BoxesAndFlow(t *testing.T) {
	layers := []Layer{
		{Name: "Service Layer", Dirs: []string{"services"}},
		{Name: "API Layer", Dirs: []string{"api"}},
		{Name: "Utilities", Dirs: []string{"utils"}},
	}

	got := NewGenerator(nil).Architecture(layers)
	want := "graph TB\n" +
		"    %% Architecture Overview\n" +
		"\n" +
		"    Service_Layer[Service Layer]\n" +
		"    API_Layer[API Layer]\n" +
		"    Utilities[Utilities]\n" +
		"    API_Layer --> Service_Layer\n"
	if got != want {
		t.Errorf("Architecture:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerator_Architecture_FullStackOrder(t *testing.T) {
	layers := []Layer{
		{Name: "Data Access Layer", Dirs: []string{"repositories"}},
		{Name: "Presentation Layer", Dirs: []string{"presentation"}},
		{Name: "Service Layer", Dirs: []string{"services"}},
	}

	got := NewGenerator(nil).Architecture(layers)
	// Connections follow the conventional request path, not the input order.
	want := "graph TB\n" +
		"    %% Architecture Overview\n" +
		"\n" +
		"    Data_Access_Layer[Data Access Layer]\n" +
		"    Presentation_Layer[Presentation Layer]\n" +
		"    Service_Layer[Service Layer]\n" +
		"    Presentation_Layer --> Service_Layer\n" +
		"    Service_Layer --> Data_Access_Layer\n"
	if got != want {
		t.Errorf("Architecture:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerator_Architecture_NoLayers(t *testing.T) {
	got := NewGenerator(nil).Architecture(nil)
	want := "graph TB\n" +
		"    %% Architecture Overview\n" +
		"\n"
	if got != want {
		t.Errorf("Architecture(nil) = %q, want %q", got, want)
	}
}
