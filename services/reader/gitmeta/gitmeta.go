// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gitmeta shells out to git for the repository operations the
// analyzer needs: shallow clones, repo identity and commit history.
//
// # Description
//
// Everything runs through a substitutable Runner so tests can script git
// without a real repository. The package never parses .git internals; it
// only structures the output of porcelain commands.
//
// # Thread Safety
//
// Client is stateless after construction and safe for concurrent use.
package gitmeta

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes one git invocation in dir and returns its stdout.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// execRunner is the real Runner; it invokes the git binary.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the git executor. Used by tests.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.runner = r
		}
	}
}

// Client runs git operations.
type Client struct {
	runner Runner
}

// NewClient creates a Client backed by the git binary.
func NewClient(opts ...Option) *Client {
	c := &Client{runner: execRunner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run executes one git command and records it.
func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := c.runner.Run(ctx, dir, args...)
	recordCommand(ctx, args[0], err == nil)
	return out, err
}
