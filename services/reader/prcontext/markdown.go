// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package prcontext

import (
	"fmt"
	"strings"
)

// maxRenderedComments caps the review comment section of the report.
const maxRenderedComments = 10

// quoteLimit caps quoted review and comment bodies.
const quoteLimit = 100

var statusMarkers = map[string]string{
	"added":    "✨",
	"modified": "📝",
	"removed":  "🗑️",
}

var reviewMarkers = map[string]string{
	"APPROVED":          "✅",
	"CHANGES_REQUESTED": "❌",
	"COMMENTED":         "💬",
}

// FormatMarkdown renders the context as a readable markdown report.
func FormatMarkdown(prContext *PRContext) string {
	if prContext == nil || prContext.PR == nil {
		return ""
	}
	pr := prContext.PR

	var sb strings.Builder
	fmt.Fprintf(&sb, "# PR #%d: %s\n\n", pr.Number, pr.Title)
	fmt.Fprintf(&sb, "**Author:** %s\n", pr.User)
	fmt.Fprintf(&sb, "**State:** %s\n", pr.State)
	fmt.Fprintf(&sb, "**Branch:** %s → %s\n", pr.HeadBranch, pr.BaseBranch)
	fmt.Fprintf(&sb, "**Created:** %s\n", pr.CreatedAt)
	if pr.MergedAt != "" {
		fmt.Fprintf(&sb, "**Merged:** %s\n", pr.MergedAt)
	}
	fmt.Fprintf(&sb, "**URL:** %s\n", pr.URL)

	if len(pr.Labels) > 0 {
		fmt.Fprintf(&sb, "\n**Labels:** %s\n", strings.Join(pr.Labels, ", "))
	}

	if pr.Body != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(pr.Body)
		sb.WriteString("\n")
	}

	if len(prContext.LinkedIssues) > 0 {
		fmt.Fprintf(&sb, "\n## Linked Issues\n\n")
		for _, issue := range prContext.LinkedIssues {
			fmt.Fprintf(&sb, "- #%d (from %s)\n", issue.Number, issue.Source)
		}
	}

	if len(prContext.Commits) > 0 {
		fmt.Fprintf(&sb, "\n## Commits (%d)\n\n", len(prContext.Commits))
		for _, commit := range prContext.Commits {
			fmt.Fprintf(&sb, "- `%s` %s\n", shortSHA(commit.SHA), firstLine(commit.Message))
		}
	}

	if len(prContext.Files) > 0 {
		fmt.Fprintf(&sb, "\n## Changed Files (%d)\n\n", len(prContext.Files))
		for _, file := range prContext.Files {
			marker, ok := statusMarkers[file.Status]
			if !ok {
				marker = "📄"
			}
			fmt.Fprintf(&sb, "- %s `%s` (+%d -%d)\n",
				marker, file.Filename, file.Additions, file.Deletions)
		}
	}

	if len(prContext.Reviews) > 0 {
		fmt.Fprintf(&sb, "\n## Reviews (%d)\n\n", len(prContext.Reviews))
		for _, review := range prContext.Reviews {
			marker, ok := reviewMarkers[review.State]
			if !ok {
				marker = "📝"
			}
			fmt.Fprintf(&sb, "- %s **%s** (%s)\n", marker, review.User, review.State)
			if review.Body != "" {
				fmt.Fprintf(&sb, "  > %s\n", quote(review.Body))
			}
		}
	}

	if len(prContext.Comments) > 0 {
		fmt.Fprintf(&sb, "\n## Review Comments (%d)\n\n", len(prContext.Comments))
		for i, comment := range prContext.Comments {
			if i >= maxRenderedComments {
				break
			}
			fmt.Fprintf(&sb, "- **%s** on `%s:%d`\n", comment.User, comment.Path, comment.Line)
			fmt.Fprintf(&sb, "  > %s\n", quote(comment.Body))
		}
	}

	return sb.String()
}

// shortSHA abbreviates a commit hash to seven characters.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// firstLine returns the subject line of a commit message.
func firstLine(message string) string {
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		return strings.TrimSpace(message[:idx])
	}
	return message
}

// quote flattens a body into a single truncated quote line.
func quote(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	runes := []rune(flat)
	if len(runes) <= quoteLimit {
		return flat
	}
	return string(runes[:quoteLimit]) + "..."
}
