// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gitmeta

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// historyFormat keeps the free-text subject last so embedded pipes
// cannot shift the fixed fields.
const historyFormat = "%H|%h|%an|%ae|%aI|%s"

// historyFields is the field count of historyFormat.
const historyFields = 6

// CommitRecord is one structured history entry.
type CommitRecord struct {
	SHA         string `json:"sha"`
	ShortSHA    string `json:"short_sha"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`

	// Date is the strict ISO-8601 author date.
	Date string `json:"date"`

	Subject string `json:"subject"`

	// FilesChanged counts the paths the commit touched; zero when the
	// count cannot be derived.
	FilesChanged int `json:"files_changed"`
}

// History returns the commits numbered start..end, 1-indexed with the
// oldest commit first.
//
// Description:
//
//	An end past the last commit is clamped with a warning. Records the
//	formatter mangled are skipped with a warning rather than failing
//	the whole window.
//
// Outputs:
//   - []CommitRecord: the requested window, oldest first.
//   - error: ErrInvalidRange or a git failure.
func (c *Client) History(ctx context.Context, repoPath string, start, end int) ([]CommitRecord, error) {
	if start < 1 || end < start {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidRange, start, end)
	}

	countOut, err := c.run(ctx, repoPath, "rev-list", "--count", "HEAD")
	if err != nil {
		return nil, err
	}
	total, err := strconv.Atoi(strings.TrimSpace(countOut))
	if err != nil {
		return nil, fmt.Errorf("parsing commit count %q: %w", strings.TrimSpace(countOut), err)
	}
	if total == 0 || start > total {
		return nil, nil
	}
	if end > total {
		slog.Warn("history window clamped to repository size",
			slog.String("repo", repoPath),
			slog.Int("requested_end", end),
			slog.Int("total", total))
		end = total
	}

	skip := total - end
	take := end - start + 1

	out, err := c.run(ctx, repoPath, "log", "--reverse",
		fmt.Sprintf("--skip=%d", skip),
		fmt.Sprintf("-%d", take),
		"--format="+historyFormat)
	if err != nil {
		return nil, err
	}

	records := make([]CommitRecord, 0, take)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", historyFields)
		if len(parts) < historyFields {
			slog.Warn("skipping malformed history record",
				slog.String("repo", repoPath),
				slog.String("line", line))
			continue
		}
		record := CommitRecord{
			SHA:         parts[0],
			ShortSHA:    parts[1],
			AuthorName:  parts[2],
			AuthorEmail: parts[3],
			Date:        parts[4],
			Subject:     parts[5],
		}
		record.FilesChanged = c.filesChanged(ctx, repoPath, record.SHA)
		records = append(records, record)
	}
	return records, nil
}

// filesChanged counts the paths one commit touched. Best-effort: a
// diff-tree failure logs and reports zero.
func (c *Client) filesChanged(ctx context.Context, repoPath, sha string) int {
	out, err := c.run(ctx, repoPath, "diff-tree", "--no-commit-id", "--name-only", "-r", sha)
	if err != nil {
		slog.Warn("cannot count changed files",
			slog.String("repo", repoPath),
			slog.String("sha", sha),
			slog.String("error", err.Error()))
		return 0
	}

	count := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
