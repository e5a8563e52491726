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
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Deep Code Reader palette.
var (
	colorAccent  = lipgloss.Color("#82AAFF") // periwinkle - titles, highlights
	colorPrimary = lipgloss.Color("#5C7CFA") // indigo - borders, success
	colorWarning = lipgloss.Color("#F4D03F") // amber - cycles, degraded paths
	colorError   = lipgloss.Color("#E74C3C") // red - failures
	colorMuted   = lipgloss.Color("#56627A") // slate - labels, hints
)

// ui bundles the terminal styles for one command invocation. In plain mode
// (--no-color, or stdout is not a terminal) every render is a pass-through,
// so piped output stays free of escape codes.
type ui struct {
	plain bool

	title    lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	success  lipgloss.Style
	warning  lipgloss.Style
	errStyle lipgloss.Style
	muted    lipgloss.Style
	box      lipgloss.Style
}

func newUI(noColor bool) *ui {
	plain := noColor ||
		(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))
	return &ui{
		plain:    plain,
		title:    lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		label:    lipgloss.NewStyle().Foreground(colorMuted),
		value:    lipgloss.NewStyle().Bold(true),
		success:  lipgloss.NewStyle().Foreground(colorPrimary),
		warning:  lipgloss.NewStyle().Foreground(colorWarning),
		errStyle: lipgloss.NewStyle().Foreground(colorError),
		muted:    lipgloss.NewStyle().Foreground(colorMuted),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1),
	}
}

func (u *ui) render(style lipgloss.Style, text string) string {
	if u.plain {
		return text
	}
	return style.Render(text)
}

// row is one label/value line of a summary table. A nil style renders the
// value bold; warnings (cycle counts, skipped files) pass u.warning.
type row struct {
	label string
	value string
	style *lipgloss.Style
}

// table renders label-aligned rows, boxed when styling is on. Labels are
// padded before styling so the escape codes do not break the alignment.
func (u *ui) table(title string, rows []row) string {
	width := 0
	for _, r := range rows {
		if len(r.label) > width {
			width = len(r.label)
		}
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		padded := fmt.Sprintf("%-*s", width, r.label)
		value := r.value
		if r.style != nil {
			value = u.render(*r.style, value)
		} else {
			value = u.render(u.value, value)
		}
		b.WriteString(u.render(u.label, padded))
		b.WriteString("  ")
		b.WriteString(value)
	}
	content := b.String()
	if title != "" {
		content = u.render(u.title, title) + "\n" + content
	}
	if u.plain {
		return content
	}
	return u.box.Render(content)
}

func (u *ui) successf(format string, args ...any) {
	fmt.Printf("%s %s\n", u.render(u.success, "✓"), fmt.Sprintf(format, args...))
}

// warnf writes to stderr so warnings never corrupt piped stdout output.
func (u *ui) warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", u.render(u.warning, "⚠"), fmt.Sprintf(format, args...))
}

func (u *ui) errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", u.render(u.errStyle, "✗"), fmt.Sprintf(format, args...))
}

func (u *ui) hintf(format string, args ...any) {
	fmt.Println(u.render(u.muted, fmt.Sprintf(format, args...)))
}
