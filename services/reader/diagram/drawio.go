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
	"encoding/xml"
	"fmt"
	"time"
)

const (
	drawIOHost    = "app.diagrams.net"
	drawIOAgent   = "deep-code-reader"
	drawIOVersion = "1.0"

	layerBoxStyle = "rounded=1;whiteSpace=wrap;html=1;fillColor=#dae8fc;strokeColor=#6c8ebf;"
)

// The mx* types mirror the subset of the draw.io file format the
// architecture export needs.

type mxFile struct {
	XMLName  xml.Name  `xml:"mxfile"`
	Host     string    `xml:"host,attr"`
	Modified string    `xml:"modified,attr"`
	Agent    string    `xml:"agent,attr"`
	Version  string    `xml:"version,attr"`
	Diagram  mxDiagram `xml:"diagram"`
}

type mxDiagram struct {
	ID    string       `xml:"id,attr"`
	Name  string       `xml:"name,attr"`
	Model mxGraphModel `xml:"mxGraphModel"`
}

type mxGraphModel struct {
	Dx       string `xml:"dx,attr"`
	Dy       string `xml:"dy,attr"`
	Grid     string `xml:"grid,attr"`
	GridSize string `xml:"gridSize,attr"`
	Guides   string `xml:"guides,attr"`
	Root     mxRoot `xml:"root"`
}

type mxRoot struct {
	Cells []mxCell `xml:"mxCell"`
}

type mxCell struct {
	ID       string      `xml:"id,attr"`
	Value    string      `xml:"value,attr,omitempty"`
	Style    string      `xml:"style,attr,omitempty"`
	Vertex   string      `xml:"vertex,attr,omitempty"`
	Parent   string      `xml:"parent,attr,omitempty"`
	Geometry *mxGeometry `xml:"mxGeometry,omitempty"`
}

type mxGeometry struct {
	X      int    `xml:"x,attr"`
	Y      int    `xml:"y,attr"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
	As     string `xml:"as,attr"`
}

// ArchitectureDrawIO renders the detected layers as a draw.io file with
// one editable box per layer.
func (g *Generator) ArchitectureDrawIO(layers []Layer) (string, error) {
	cells := []mxCell{
		{ID: "0"},
		{ID: "1", Parent: "0"},
	}

	y := 50
	for i, layer := range layers {
		cells = append(cells, mxCell{
			ID:     fmt.Sprintf("cell_%d", i+1),
			Value:  layer.Name,
			Style:  layerBoxStyle,
			Vertex: "1",
			Parent: "1",
			Geometry: &mxGeometry{
				X:      100,
				Y:      y,
				Width:  200,
				Height: 80,
				As:     "geometry",
			},
		})
		y += 120
	}

	file := mxFile{
		Host:     drawIOHost,
		Modified: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Agent:    drawIOAgent,
		Version:  drawIOVersion,
		Diagram: mxDiagram{
			ID:   "architecture",
			Name: "Architecture Overview",
			Model: mxGraphModel{
				Dx:       "1422",
				Dy:       "794",
				Grid:     "1",
				GridSize: "10",
				Guides:   "1",
				Root:     mxRoot{Cells: cells},
			},
		},
	}

	out, err := xml.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal drawio file: %w", err)
	}
	return string(out), nil
}
