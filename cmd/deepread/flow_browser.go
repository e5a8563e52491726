// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Kuroakira/deep-code-reader/services/reader/flow"
)

// flowChromeHeight is the header plus footer height around the viewport.
const flowChromeHeight = 4

// flowRow is one visible line of the tree: a node and its indent depth.
type flowRow struct {
	node  *flow.FlowNode
	depth int
}

// flowBrowser is the terminal UI over one traced call tree. Collapsing a
// node hides its subtree without re-tracing; the rows slice is rebuilt
// from the tree and the collapsed set after every fold change.
type flowBrowser struct {
	u         *ui
	start     string
	root      *flow.FlowNode
	collapsed map[*flow.FlowNode]bool
	rows      []flowRow
	cursor    int
	vp        viewport.Model
	ready     bool
}

func newFlowBrowser(u *ui, start string, root *flow.FlowNode) flowBrowser {
	b := flowBrowser{
		u:         u,
		start:     start,
		root:      root,
		collapsed: make(map[*flow.FlowNode]bool),
	}
	b.rebuildRows()
	return b
}

func (m flowBrowser) Init() tea.Cmd {
	return nil
}

func (m flowBrowser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.vp = viewport.New(msg.Width, msg.Height-flowChromeHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = msg.Height - flowChromeHeight
		}
		m.syncViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.syncViewport()
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
			m.syncViewport()
		case "left", "h":
			node := m.rows[m.cursor].node
			if len(node.Calls) > 0 && !m.collapsed[node] {
				m.collapsed[node] = true
				m.rebuildRows()
				m.syncViewport()
			}
		case "right", "l", "enter":
			node := m.rows[m.cursor].node
			if len(node.Calls) > 0 && m.collapsed[node] {
				delete(m.collapsed, node)
				m.rebuildRows()
				m.syncViewport()
			}
		}
	}
	return m, nil
}

func (m flowBrowser) View() string {
	if !m.ready {
		return "loading..."
	}
	header := m.u.render(m.u.title, "Call flow: "+m.start) + "\n" +
		m.u.render(m.u.muted, fmt.Sprintf("%d visible nodes", len(m.rows))) + "\n"
	footer := "\n" + m.u.render(m.u.muted, "↑/↓ move  ←/→ fold  q quit")
	return header + m.vp.View() + footer
}

// rebuildRows flattens the tree into visible rows, skipping collapsed
// subtrees, and clamps the cursor to the new row count.
func (m *flowBrowser) rebuildRows() {
	m.rows = m.rows[:0]
	var walk func(node *flow.FlowNode, depth int)
	walk = func(node *flow.FlowNode, depth int) {
		m.rows = append(m.rows, flowRow{node: node, depth: depth})
		if m.collapsed[node] {
			return
		}
		for _, child := range node.Calls {
			walk(child, depth+1)
		}
	}
	walk(m.root, 0)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
}

// syncViewport re-renders the rows and keeps the cursor line in view.
func (m *flowBrowser) syncViewport() {
	if !m.ready {
		return
	}
	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		lines[i] = m.renderRow(r, i == m.cursor)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.cursor < m.vp.YOffset {
		m.vp.SetYOffset(m.cursor)
	}
	if m.cursor >= m.vp.YOffset+m.vp.Height {
		m.vp.SetYOffset(m.cursor - m.vp.Height + 1)
	}
}

func (m *flowBrowser) renderRow(r flowRow, selected bool) string {
	marker := "·"
	if len(r.node.Calls) > 0 {
		if m.collapsed[r.node] {
			marker = "▸"
		} else {
			marker = "▾"
		}
	}
	line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", r.depth), marker, r.node.Function)
	if selected {
		return m.u.render(m.u.title, "> "+line)
	}
	return "  " + line
}
