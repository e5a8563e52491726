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
)

// Layer is an architectural layer inferred from well-known directory
// names under the project root.
type Layer struct {
	Name string   `json:"name"`
	Dirs []string `json:"dirs"`
}

// layerPatterns maps conventional directory names to layer display
// names. Order fixes the box order in the rendered diagram.
var layerPatterns = []struct {
	dir  string
	name string
}{
	{"controllers", "Controller Layer"},
	{"models", "Model Layer"},
	{"views", "View Layer"},
	{"services", "Service Layer"},
	{"repositories", "Data Access Layer"},
	{"api", "API Layer"},
	{"domain", "Domain Layer"},
	{"infrastructure", "Infrastructure Layer"},
	{"presentation", "Presentation Layer"},
	{"middleware", "Middleware"},
	{"utils", "Utilities"},
	{"helpers", "Helpers"},
}

// layerFlow is the conventional request path through the layers that
// have a natural order. Layers missing from this list render as
// unconnected boxes.
var layerFlow = []string{
	"Presentation Layer",
	"API Layer",
	"Controller Layer",
	"Service Layer",
	"Domain Layer",
	"Data Access Layer",
	"Infrastructure Layer",
}

// DetectLayers inspects the root's immediate directories for well-known
// architectural names. A root with no recognizable structure yields an
// empty list, not an error.
func DetectLayers(root string) []Layer {
	var layers []Layer
	for _, pattern := range layerPatterns {
		info, err := os.Stat(filepath.Join(root, pattern.dir))
		if err != nil || !info.IsDir() {
			continue
		}
		layers = append(layers, Layer{Name: pattern.name, Dirs: []string{pattern.dir}})
	}
	return layers
}

// layerConnections chains the detected layers along layerFlow, producing
// one edge per consecutive pair that is present.
func layerConnections(layers []Layer) [][2]string {
	present := make(map[string]bool, len(layers))
	for _, layer := range layers {
		present[layer.Name] = true
	}

	var ordered []string
	for _, name := range layerFlow {
		if present[name] {
			ordered = append(ordered, name)
		}
	}

	connections := make([][2]string, 0, len(ordered))
	for i := 0; i+1 < len(ordered); i++ {
		connections = append(connections, [2]string{ordered[i], ordered[i+1]})
	}
	return connections
}
