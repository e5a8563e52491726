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
	"os"
	"strconv"
	"strings"
)

// cloneOptions collects Clone settings.
type cloneOptions struct {
	commit string
	depth  int
}

// CloneOption configures Clone.
type CloneOption func(*cloneOptions)

// WithCommit checks out a specific commit after cloning. "HEAD" (any
// case) and the empty string keep the clone's default head.
func WithCommit(commit string) CloneOption {
	return func(o *cloneOptions) {
		o.commit = strings.TrimSpace(commit)
	}
}

// WithDepth overrides the clone depth. Zero or negative clones the full
// history.
func WithDepth(depth int) CloneOption {
	return func(o *cloneOptions) {
		o.depth = depth
	}
}

// Clone clones a repository for analysis.
//
// Description:
//
//	Clones shallowly (depth 1 unless overridden) into targetDir, or into
//	a fresh temporary directory when targetDir is empty. With a commit
//	requested, the commit is fetched at depth 1 and checked out. A
//	temporary directory the clone created is removed again on failure;
//	a caller-supplied targetDir is left as-is.
//
// Outputs:
//   - string: the clone directory.
//   - error: ErrNoURL or the failing git command's error.
func (c *Client) Clone(ctx context.Context, repoURL, targetDir string, opts ...CloneOption) (string, error) {
	if strings.TrimSpace(repoURL) == "" {
		return "", ErrNoURL
	}

	o := cloneOptions{depth: 1}
	for _, opt := range opts {
		opt(&o)
	}

	dir := targetDir
	ownsDir := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "deepread-clone-")
		if err != nil {
			return "", fmt.Errorf("creating clone directory: %w", err)
		}
		dir = tmp
		ownsDir = true
	}

	cleanup := func() {
		if ownsDir {
			if err := os.RemoveAll(dir); err != nil {
				slog.Warn("cannot remove failed clone",
					slog.String("dir", dir),
					slog.String("error", err.Error()))
			}
		}
	}

	args := []string{"clone"}
	if o.depth > 0 {
		args = append(args, "--depth", strconv.Itoa(o.depth))
	}
	args = append(args, repoURL, dir)
	if _, err := c.run(ctx, "", args...); err != nil {
		cleanup()
		return "", err
	}

	if o.commit != "" && !strings.EqualFold(o.commit, "HEAD") {
		if _, err := c.run(ctx, dir, "fetch", "--depth", "1", "origin", o.commit); err != nil {
			cleanup()
			return "", err
		}
		if _, err := c.run(ctx, dir, "checkout", o.commit); err != nil {
			cleanup()
			return "", err
		}
	}

	slog.Info("repository cloned",
		slog.String("url", repoURL),
		slog.String("dir", dir),
		slog.String("commit", o.commit))
	return dir, nil
}
