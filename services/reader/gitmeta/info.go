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
	"log/slog"
	"strings"
)

// RepoInfo identifies the checked-out state of a repository.
type RepoInfo struct {
	// Path is the repository directory.
	Path string `json:"path"`

	// CommitHash is the full HEAD hash.
	CommitHash string `json:"commit_hash"`

	// Subject is the HEAD commit's subject line.
	Subject string `json:"subject"`

	// Branch is the current branch name, "HEAD" for a detached head, or
	// "detached" when the branch cannot be resolved at all.
	Branch string `json:"branch"`

	// RemoteURL is origin's URL; empty when no origin is configured.
	RemoteURL string `json:"remote_url"`
}

// Info describes the repository at repoPath.
//
// Description:
//
//	Resolving HEAD is required and fails the call; subject, branch and
//	remote are best-effort and degrade to warnings, so a minimal or
//	remoteless repository still yields usable info.
func (c *Client) Info(ctx context.Context, repoPath string) (*RepoInfo, error) {
	head, err := c.run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}

	info := &RepoInfo{
		Path:       repoPath,
		CommitHash: strings.TrimSpace(head),
	}

	if subject, err := c.run(ctx, repoPath, "log", "-1", "--pretty=%s"); err != nil {
		slog.Warn("cannot read HEAD subject",
			slog.String("repo", repoPath),
			slog.String("error", err.Error()))
	} else {
		info.Subject = strings.TrimSpace(subject)
	}

	if branch, err := c.run(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD"); err != nil {
		info.Branch = "detached"
	} else {
		info.Branch = strings.TrimSpace(branch)
	}

	if remote, err := c.run(ctx, repoPath, "config", "--get", "remote.origin.url"); err != nil {
		slog.Debug("no origin remote configured", slog.String("repo", repoPath))
	} else {
		info.RemoteURL = strings.TrimSpace(remote)
	}

	return info, nil
}
