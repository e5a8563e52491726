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
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeDetails = `{
	"number": 7,
	"title": "Add retry logic",
	"body": "Fixes #12 and touches #34",
	"state": "open",
	"user": {"login": "octocat"},
	"created_at": "2025-06-01T10:00:00Z",
	"updated_at": "2025-06-02T10:00:00Z",
	"merged_at": null,
	"base": {"ref": "main"},
	"head": {"ref": "feature/retry"},
	"labels": [{"name": "bug"}, {"name": "backend"}],
	"milestone": {"title": "v2.0"},
	"html_url": "https://github.com/acme/widgets/pull/7"
}`

const fakeCommits = `[{
	"sha": "0123456789abcdef0123456789abcdef01234567",
	"commit": {
		"message": "Add retry helper\n\nWith backoff.",
		"author": {"name": "Octo Cat", "date": "2025-06-01T09:00:00Z"}
	},
	"html_url": "https://github.com/acme/widgets/commit/0123456"
}]`

const fakeFiles = `[{
	"filename": "app/retry.py",
	"status": "added",
	"additions": 10,
	"deletions": 2,
	"changes": 12,
	"patch": "@@ -1,2 +1,3 @@\n context\n-old\n+new\n+more"
}]`

const fakeComments = `[{
	"id": 101,
	"user": {"login": "reviewer"},
	"body": "See #34 please",
	"path": "app/retry.py",
	"line": 3,
	"created_at": "2025-06-01T11:00:00Z",
	"html_url": "https://github.com/acme/widgets/pull/7#discussion_r101"
}]`

const fakeReviews = `[{
	"id": 201,
	"user": {"login": "reviewer"},
	"state": "APPROVED",
	"body": "LGTM",
	"submitted_at": "2025-06-02T09:00:00Z",
	"html_url": "https://github.com/acme/widgets/pull/7#pullrequestreview-201"
}]`

const fakeTimeline = `[{
	"event": "labeled",
	"actor": {"login": "octocat"},
	"label": {"name": "bug"},
	"created_at": "2025-06-01T10:05:00Z"
}]`

// headerRecorder captures the request headers the fake API saw, keyed by
// path. Handlers run on server goroutines, so access is locked.
type headerRecorder struct {
	mu      sync.Mutex
	headers map[string]http.Header
}

func (hr *headerRecorder) record(r *http.Request) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.headers[r.URL.Path] = r.Header.Clone()
}

func (hr *headerRecorder) get(path string) http.Header {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	return hr.headers[path]
}

// newFakeGitHub serves canned responses for acme/widgets#7. Unknown paths
// return 404 with GitHub's error shape.
func newFakeGitHub(t *testing.T, timelineStatus int) (*httptest.Server, *headerRecorder) {
	t.Helper()

	recorder := &headerRecorder{headers: make(map[string]http.Header)}
	payloads := map[string]string{
		"/repos/acme/widgets/pulls/7":           fakeDetails,
		"/repos/acme/widgets/pulls/7/commits":   fakeCommits,
		"/repos/acme/widgets/pulls/7/files":     fakeFiles,
		"/repos/acme/widgets/pulls/7/comments":  fakeComments,
		"/repos/acme/widgets/pulls/7/reviews":   fakeReviews,
		"/repos/acme/widgets/issues/7/timeline": fakeTimeline,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder.record(r)
		if r.URL.Path == "/repos/acme/widgets/issues/7/timeline" && timelineStatus != http.StatusOK {
			w.WriteHeader(timelineStatus)
			return
		}
		payload, ok := payloads[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "Not Found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, recorder
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(
		WithBaseURL(srv.URL),
		WithToken("test-token"),
		WithRateLimit(1000, 1000),
	)
}

func TestFetchContext(t *testing.T) {
	srv, _ := newFakeGitHub(t, http.StatusOK)
	client := newTestClient(srv)

	prContext, err := client.FetchContext(context.Background(), "acme", "widgets", 7)
	require.NoError(t, err)
	require.NotNil(t, prContext)

	pr := prContext.PR
	require.NotNil(t, pr)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "Add retry logic", pr.Title)
	assert.Equal(t, "octocat", pr.User)
	assert.Equal(t, "main", pr.BaseBranch)
	assert.Equal(t, "feature/retry", pr.HeadBranch)
	assert.Equal(t, []string{"bug", "backend"}, pr.Labels)
	assert.Equal(t, "v2.0", pr.Milestone)
	assert.Empty(t, pr.MergedAt)

	require.Len(t, prContext.Commits, 1)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", prContext.Commits[0].SHA)
	assert.Equal(t, "Octo Cat", prContext.Commits[0].Author)

	require.Len(t, prContext.Files, 1)
	file := prContext.Files[0]
	assert.Equal(t, "app/retry.py", file.Filename)
	assert.Equal(t, "added", file.Status)
	require.NotNil(t, file.PatchStats)
	assert.Equal(t, 1, file.PatchStats.Hunks)
	assert.Equal(t, 2, file.PatchStats.Additions)
	assert.Equal(t, 1, file.PatchStats.Deletions)

	require.Len(t, prContext.Comments, 1)
	assert.Equal(t, "reviewer", prContext.Comments[0].User)

	require.Len(t, prContext.Reviews, 1)
	assert.Equal(t, "APPROVED", prContext.Reviews[0].State)

	// #12 and #34 come from the body; the comment's #34 is a duplicate.
	require.Len(t, prContext.LinkedIssues, 2)
	assert.Equal(t, 12, prContext.LinkedIssues[0].Number)
	assert.Equal(t, "pr_body", prContext.LinkedIssues[0].Source)
	assert.Equal(t, 34, prContext.LinkedIssues[1].Number)

	require.Len(t, prContext.Timeline, 1)
	assert.Equal(t, "labeled", prContext.Timeline[0].Event)
	assert.Equal(t, "octocat", prContext.Timeline[0].Actor)
	assert.Equal(t, "bug", prContext.Timeline[0].Label)
}

func TestFetchContext_RequestHeaders(t *testing.T) {
	srv, recorder := newFakeGitHub(t, http.StatusOK)
	client := newTestClient(srv)

	_, err := client.FetchContext(context.Background(), "acme", "widgets", 7)
	require.NoError(t, err)

	details := recorder.get("/repos/acme/widgets/pulls/7")
	require.NotNil(t, details)
	assert.Equal(t, "token test-token", details.Get("Authorization"))
	assert.Equal(t, acceptJSON, details.Get("Accept"))

	timeline := recorder.get("/repos/acme/widgets/issues/7/timeline")
	require.NotNil(t, timeline)
	assert.Equal(t, acceptTimeline, timeline.Get("Accept"))
}

func TestFetchContext_NotFound(t *testing.T) {
	srv, _ := newFakeGitHub(t, http.StatusOK)
	client := newTestClient(srv)

	_, err := client.FetchContext(context.Background(), "acme", "widgets", 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchContext_TimelineBestEffort(t *testing.T) {
	srv, recorder := newFakeGitHub(t, http.StatusInternalServerError)
	client := newTestClient(srv)

	prContext, err := client.FetchContext(context.Background(), "acme", "widgets", 7)
	require.NoError(t, err)
	require.NotNil(t, recorder.get("/repos/acme/widgets/issues/7/timeline"),
		"timeline endpoint was never hit")
	assert.Empty(t, prContext.Timeline)
}

func TestFetchContext_InvalidInput(t *testing.T) {
	client := NewClient(WithBaseURL("http://127.0.0.1:0"), WithToken("x"))

	_, err := client.FetchContext(context.Background(), "", "widgets", 7)
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = client.FetchContext(context.Background(), "acme", "widgets", 0)
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestParseRef(t *testing.T) {
	owner, repo, number, err := ParseRef("acme/widgets#7")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)
	assert.Equal(t, 7, number)

	owner, repo, number, err = ParseRef("  acme/widgets#12  ")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)
	assert.Equal(t, 12, number)

	for _, ref := range []string{"", "acme/widgets", "acme#7", "a/b/c#7", "acme/widgets#0"} {
		_, _, _, err := ParseRef(ref)
		assert.ErrorIs(t, err, ErrInvalidRef, "ref=%q", ref)
	}
}

func TestNewClient_TokenHandling(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	assert.False(t, NewClient().Authenticated())

	t.Setenv("GITHUB_TOKEN", "env-token")
	assert.True(t, NewClient().Authenticated())

	t.Setenv("GITHUB_TOKEN", "")
	assert.True(t, NewClient(WithToken("explicit")).Authenticated())
}
