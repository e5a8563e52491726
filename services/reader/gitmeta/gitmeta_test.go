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
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	dir  string
	args []string
}

// scriptRunner records every invocation and answers through fn.
type scriptRunner struct {
	calls []call
	fn    func(dir string, args []string) (string, error)
}

func (s *scriptRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	s.calls = append(s.calls, call{dir: dir, args: args})
	return s.fn(dir, args)
}

func okRunner() *scriptRunner {
	return &scriptRunner{fn: func(dir string, args []string) (string, error) {
		return "", nil
	}}
}

func TestClone_ShallowWithCommit(t *testing.T) {
	runner := okRunner()
	client := NewClient(WithRunner(runner))
	target := t.TempDir()

	dir, err := client.Clone(context.Background(),
		"https://example.com/acme/widgets.git", target, WithCommit("abc123"))
	require.NoError(t, err)
	assert.Equal(t, target, dir)

	require.Len(t, runner.calls, 3)
	assert.Equal(t,
		[]string{"clone", "--depth", "1", "https://example.com/acme/widgets.git", target},
		runner.calls[0].args)
	assert.Equal(t, "", runner.calls[0].dir)
	assert.Equal(t, []string{"fetch", "--depth", "1", "origin", "abc123"}, runner.calls[1].args)
	assert.Equal(t, target, runner.calls[1].dir)
	assert.Equal(t, []string{"checkout", "abc123"}, runner.calls[2].args)
}

// Test that HEAD needs no checkout and depth zero means a full clone
func TestClone_HeadAndFullDepth(t *testing.T) {
	runner := okRunner()
	client := NewClient(WithRunner(runner))
	target := t.TempDir()

	_, err := client.Clone(context.Background(),
		"https://example.com/acme/widgets.git", target,
		WithCommit("HEAD"), WithDepth(0))
	require.NoError(t, err)

	require.Len(t, runner.calls, 1)
	assert.Equal(t,
		[]string{"clone", "https://example.com/acme/widgets.git", target},
		runner.calls[0].args)
}

func TestClone_TempDirRemovedOnFailure(t *testing.T) {
	runner := &scriptRunner{fn: func(dir string, args []string) (string, error) {
		return "", errors.New("remote unreachable")
	}}
	client := NewClient(WithRunner(runner))

	_, err := client.Clone(context.Background(), "https://example.com/acme/widgets.git", "")
	require.Error(t, err)

	require.Len(t, runner.calls, 1)
	cloneArgs := runner.calls[0].args
	tempDir := cloneArgs[len(cloneArgs)-1]
	assert.Contains(t, tempDir, "deepread-clone-")
	_, statErr := os.Stat(tempDir)
	assert.True(t, os.IsNotExist(statErr), "failed clone dir must be removed")
}

func TestClone_NoURL(t *testing.T) {
	client := NewClient(WithRunner(okRunner()))

	_, err := client.Clone(context.Background(), "   ", "")
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestInfo(t *testing.T) {
	runner := &scriptRunner{fn: func(dir string, args []string) (string, error) {
		switch strings.Join(args, " ") {
		case "rev-parse HEAD":
			return "abc123def456\n", nil
		case "log -1 --pretty=%s":
			return "Fix the flux capacitor\n", nil
		case "rev-parse --abbrev-ref HEAD":
			return "main\n", nil
		case "config --get remote.origin.url":
			return "https://example.com/acme/widgets.git\n", nil
		}
		return "", fmt.Errorf("unscripted git call: %v", args)
	}}
	client := NewClient(WithRunner(runner))

	info, err := client.Info(context.Background(), "/repo")
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "/repo", info.Path)
	assert.Equal(t, "abc123def456", info.CommitHash)
	assert.Equal(t, "Fix the flux capacitor", info.Subject)
	assert.Equal(t, "main", info.Branch)
	assert.Equal(t, "https://example.com/acme/widgets.git", info.RemoteURL)
	assert.Equal(t, "/repo", runner.calls[0].dir)
}

// Test that only HEAD resolution is fatal
func TestInfo_DegradesGracefully(t *testing.T) {
	runner := &scriptRunner{fn: func(dir string, args []string) (string, error) {
		if strings.Join(args, " ") == "rev-parse HEAD" {
			return "abc123\n", nil
		}
		return "", errors.New("not available")
	}}
	client := NewClient(WithRunner(runner))

	info, err := client.Info(context.Background(), "/repo")
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.CommitHash)
	assert.Equal(t, "", info.Subject)
	assert.Equal(t, "detached", info.Branch)
	assert.Equal(t, "", info.RemoteURL)

	runner = &scriptRunner{fn: func(dir string, args []string) (string, error) {
		return "", errors.New("not a git repository")
	}}
	client = NewClient(WithRunner(runner))
	_, err = client.Info(context.Background(), "/tmp/plain-dir")
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	logKey := "log --reverse --skip=1 -2 --format=" + historyFormat
	runner := &scriptRunner{fn: func(dir string, args []string) (string, error) {
		switch strings.Join(args, " ") {
		case "rev-list --count HEAD":
			return "5\n", nil
		case logKey:
			return "aaa|a1|Alice|alice@example.com|2025-05-01T10:00:00+00:00|Add parser\n" +
				"bbb|b2|Bob|bob@example.com|2025-05-02T11:00:00+00:00|Fix edge | case\n", nil
		case "diff-tree --no-commit-id --name-only -r aaa":
			return "a.py\nb.py\n", nil
		case "diff-tree --no-commit-id --name-only -r bbb":
			return "c.py\n", nil
		}
		return "", fmt.Errorf("unscripted git call: %v", args)
	}}
	client := NewClient(WithRunner(runner))

	records, err := client.History(context.Background(), "/repo", 3, 4)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, CommitRecord{
		SHA:          "aaa",
		ShortSHA:     "a1",
		AuthorName:   "Alice",
		AuthorEmail:  "alice@example.com",
		Date:         "2025-05-01T10:00:00+00:00",
		Subject:      "Add parser",
		FilesChanged: 2,
	}, records[0])

	// A pipe inside the subject must not shift the fixed fields.
	assert.Equal(t, "Fix edge | case", records[1].Subject)
	assert.Equal(t, 1, records[1].FilesChanged)
}

func TestHistory_ClampsAndSkipsMalformed(t *testing.T) {
	logKey := "log --reverse --skip=0 -3 --format=" + historyFormat
	runner := &scriptRunner{fn: func(dir string, args []string) (string, error) {
		switch strings.Join(args, " ") {
		case "rev-list --count HEAD":
			return "3\n", nil
		case logKey:
			return "aaa|a1|Alice|alice@example.com|2025-05-01T10:00:00+00:00|First\n" +
				"not-a-record\n" +
				"ccc|c3|Cara|cara@example.com|2025-05-03T12:00:00+00:00|Third\n", nil
		case "diff-tree --no-commit-id --name-only -r aaa":
			return "", nil
		case "diff-tree --no-commit-id --name-only -r ccc":
			return "", errors.New("object not found")
		}
		return "", fmt.Errorf("unscripted git call: %v", args)
	}}
	client := NewClient(WithRunner(runner))

	records, err := client.History(context.Background(), "/repo", 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "aaa", records[0].SHA)
	assert.Equal(t, "ccc", records[1].SHA)
	assert.Equal(t, 0, records[0].FilesChanged)
	assert.Equal(t, 0, records[1].FilesChanged)
}

func TestHistory_InvalidRange(t *testing.T) {
	client := NewClient(WithRunner(okRunner()))

	_, err := client.History(context.Background(), "/repo", 0, 5)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = client.History(context.Background(), "/repo", 3, 2)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestHistory_EmptyRepo(t *testing.T) {
	runner := &scriptRunner{fn: func(dir string, args []string) (string, error) {
		return "0\n", nil
	}}
	client := NewClient(WithRunner(runner))

	records, err := client.History(context.Background(), "/repo", 1, 5)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Len(t, runner.calls, 1, "no log call for an empty repository")
}
