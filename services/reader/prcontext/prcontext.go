// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package prcontext assembles review context for GitHub pull requests.
//
// # Description
//
// The package fetches a pull request's details, commits, changed files,
// review comments, reviews and timeline from the GitHub REST API, extracts
// linked issue references, re-derives per-file diff statistics and renders
// the whole bundle as a markdown report.
//
// # Lifecycle
//
// Construct a Client once (NewClient), then call FetchContext per pull
// request. All requests pass through a shared rate limiter. The API token
// is sealed in a memguard enclave at construction and opened only for the
// duration of signing a single request.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package prcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// defaultBaseURL is the public GitHub REST endpoint.
	defaultBaseURL = "https://api.github.com"

	// acceptJSON is the standard v3 media type.
	acceptJSON = "application/vnd.github.v3+json"

	// acceptTimeline is the preview media type the timeline endpoint
	// requires.
	acceptTimeline = "application/vnd.github.mockingbird-preview+json"

	// defaultRequestsPerSecond and defaultBurst bound the request rate.
	// Authenticated GitHub allows 5000 requests/hour; staying around two
	// per second keeps bursts of context fetches well inside that.
	defaultRequestsPerSecond = 2
	defaultBurst             = 5

	defaultHTTPTimeout = 30 * time.Second
)

// refPattern matches owner/repo#number pull request references.
var refPattern = regexp.MustCompile(`^([^/\s#]+)/([^/\s#]+)#(\d+)$`)

// ParseRef splits an owner/repo#number reference.
func ParseRef(ref string) (owner, repo string, number int, err error) {
	m := refPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return "", "", 0, fmt.Errorf("%w: %q (want owner/repo#number)", ErrInvalidRef, ref)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("%w: %q (want owner/repo#number)", ErrInvalidRef, ref)
	}
	return m[1], m[2], number, nil
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit overrides the request rate bound.
func WithRateLimit(requestsPerSecond float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithToken seals an explicit API token instead of reading GITHUB_TOKEN.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		if token != "" {
			c.token = memguard.NewEnclave([]byte(token))
		}
	}
}

// Client talks to the GitHub REST API.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter

	// token holds the sealed API token; nil means unauthenticated.
	token *memguard.Enclave
}

// NewClient creates a Client. Without WithToken, the token is read once
// from GITHUB_TOKEN; an absent token means unauthenticated requests with
// GitHub's restrictive anonymous rate limits.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.token == nil {
		if env := os.Getenv("GITHUB_TOKEN"); env != "" {
			c.token = memguard.NewEnclave([]byte(env))
		} else {
			slog.Warn("no GitHub token configured, anonymous rate limits apply")
		}
	}
	return c
}

// Authenticated reports whether the client carries an API token.
func (c *Client) Authenticated() bool {
	return c.token != nil
}

// FetchContext assembles the full review context for one pull request.
//
// Description:
//
//	Fetches details, commits, files, comments and reviews; each failure
//	aborts with the endpoint wrapped into the error. The timeline is
//	best-effort: a timeline failure logs a warning and leaves the list
//	empty. Linked issues are extracted from the PR body and the review
//	comments, and per-file diff statistics are parsed from the patch
//	fragments where present.
//
// Outputs:
//   - *PRContext: the assembled context. Nil only when error is non-nil.
//   - error: ErrNotFound for a missing PR, or a wrapped endpoint failure.
func (c *Client) FetchContext(ctx context.Context, owner, repo string, number int) (*PRContext, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Client.FetchContext")
	defer span.End()

	if owner == "" || repo == "" || number <= 0 {
		return nil, fmt.Errorf("%w: %s/%s#%d", ErrInvalidRef, owner, repo, number)
	}

	details, err := c.fetchDetails(ctx, owner, repo, number)
	if err != nil {
		recordFetch(ctx, time.Since(start), false)
		return nil, err
	}
	commits, err := c.fetchCommits(ctx, owner, repo, number)
	if err != nil {
		recordFetch(ctx, time.Since(start), false)
		return nil, err
	}
	files, err := c.fetchFiles(ctx, owner, repo, number)
	if err != nil {
		recordFetch(ctx, time.Since(start), false)
		return nil, err
	}
	comments, err := c.fetchComments(ctx, owner, repo, number)
	if err != nil {
		recordFetch(ctx, time.Since(start), false)
		return nil, err
	}
	reviews, err := c.fetchReviews(ctx, owner, repo, number)
	if err != nil {
		recordFetch(ctx, time.Since(start), false)
		return nil, err
	}

	timeline, err := c.fetchTimeline(ctx, owner, repo, number)
	if err != nil {
		slog.Warn("timeline fetch failed, continuing without it",
			slog.String("pr", fmt.Sprintf("%s/%s#%d", owner, repo, number)),
			slog.String("error", err.Error()))
		timeline = nil
	}

	prContext := &PRContext{
		PR:           details,
		Commits:      commits,
		Files:        files,
		Comments:     comments,
		Reviews:      reviews,
		LinkedIssues: ExtractLinkedIssues(details, comments),
		Timeline:     timeline,
	}

	span.SetAttributes(
		attribute.Int("pr.number", number),
		attribute.Int("pr.commits", len(commits)),
		attribute.Int("pr.files", len(files)),
	)
	recordFetch(ctx, time.Since(start), true)

	slog.Info("pull request context assembled",
		slog.String("pr", fmt.Sprintf("%s/%s#%d", owner, repo, number)),
		slog.Int("commits", len(commits)),
		slog.Int("files", len(files)),
		slog.Int("linked_issues", len(prContext.LinkedIssues)))

	return prContext, nil
}

func (c *Client) fetchDetails(ctx context.Context, owner, repo string, number int) (*PRDetails, error) {
	var wire struct {
		Number    int    `json:"number"`
		Title     string `json:"title"`
		Body      string `json:"body"`
		State     string `json:"state"`
		User      struct {
			Login string `json:"login"`
		} `json:"user"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
		MergedAt  string `json:"merged_at"`
		Base      struct {
			Ref string `json:"ref"`
		} `json:"base"`
		Head struct {
			Ref string `json:"ref"`
		} `json:"head"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
		Milestone *struct {
			Title string `json:"title"`
		} `json:"milestone"`
		HTMLURL string `json:"html_url"`
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	if err := c.getJSON(ctx, path, acceptJSON, &wire); err != nil {
		return nil, err
	}

	details := &PRDetails{
		Number:     wire.Number,
		Title:      wire.Title,
		Body:       wire.Body,
		State:      wire.State,
		User:       wire.User.Login,
		CreatedAt:  wire.CreatedAt,
		UpdatedAt:  wire.UpdatedAt,
		MergedAt:   wire.MergedAt,
		BaseBranch: wire.Base.Ref,
		HeadBranch: wire.Head.Ref,
		URL:        wire.HTMLURL,
	}
	for _, label := range wire.Labels {
		details.Labels = append(details.Labels, label.Name)
	}
	if wire.Milestone != nil {
		details.Milestone = wire.Milestone.Title
	}
	return details, nil
}

func (c *Client) fetchCommits(ctx context.Context, owner, repo string, number int) ([]Commit, error) {
	var wire []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string `json:"name"`
				Date string `json:"date"`
			} `json:"author"`
		} `json:"commit"`
		HTMLURL string `json:"html_url"`
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/commits", owner, repo, number)
	if err := c.getJSON(ctx, path, acceptJSON, &wire); err != nil {
		return nil, err
	}

	commits := make([]Commit, 0, len(wire))
	for _, entry := range wire {
		commits = append(commits, Commit{
			SHA:     entry.SHA,
			Message: entry.Commit.Message,
			Author:  entry.Commit.Author.Name,
			Date:    entry.Commit.Author.Date,
			URL:     entry.HTMLURL,
		})
	}
	return commits, nil
}

func (c *Client) fetchFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	var wire []struct {
		Filename  string `json:"filename"`
		Status    string `json:"status"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
		Changes   int    `json:"changes"`
		Patch     string `json:"patch"`
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, number)
	if err := c.getJSON(ctx, path, acceptJSON, &wire); err != nil {
		return nil, err
	}

	files := make([]ChangedFile, 0, len(wire))
	for _, entry := range wire {
		file := ChangedFile{
			Filename:  entry.Filename,
			Status:    entry.Status,
			Additions: entry.Additions,
			Deletions: entry.Deletions,
			Changes:   entry.Changes,
			Patch:     entry.Patch,
		}
		if entry.Patch != "" {
			stats, err := ParsePatchStats(entry.Patch)
			if err != nil {
				slog.Warn("cannot parse patch fragment",
					slog.String("file", entry.Filename),
					slog.String("error", err.Error()))
			} else {
				file.PatchStats = stats
			}
		}
		files = append(files, file)
	}
	return files, nil
}

func (c *Client) fetchComments(ctx context.Context, owner, repo string, number int) ([]ReviewComment, error) {
	var wire []struct {
		ID   int64 `json:"id"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
		Body      string `json:"body"`
		Path      string `json:"path"`
		Line      int    `json:"line"`
		CreatedAt string `json:"created_at"`
		HTMLURL   string `json:"html_url"`
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", owner, repo, number)
	if err := c.getJSON(ctx, path, acceptJSON, &wire); err != nil {
		return nil, err
	}

	comments := make([]ReviewComment, 0, len(wire))
	for _, entry := range wire {
		comments = append(comments, ReviewComment{
			ID:        entry.ID,
			User:      entry.User.Login,
			Body:      entry.Body,
			Path:      entry.Path,
			Line:      entry.Line,
			CreatedAt: entry.CreatedAt,
			URL:       entry.HTMLURL,
		})
	}
	return comments, nil
}

func (c *Client) fetchReviews(ctx context.Context, owner, repo string, number int) ([]Review, error) {
	var wire []struct {
		ID   int64 `json:"id"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
		State       string `json:"state"`
		Body        string `json:"body"`
		SubmittedAt string `json:"submitted_at"`
		HTMLURL     string `json:"html_url"`
	}

	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repo, number)
	if err := c.getJSON(ctx, path, acceptJSON, &wire); err != nil {
		return nil, err
	}

	reviews := make([]Review, 0, len(wire))
	for _, entry := range wire {
		reviews = append(reviews, Review{
			ID:          entry.ID,
			User:        entry.User.Login,
			State:       entry.State,
			Body:        entry.Body,
			SubmittedAt: entry.SubmittedAt,
			URL:         entry.HTMLURL,
		})
	}
	return reviews, nil
}

func (c *Client) fetchTimeline(ctx context.Context, owner, repo string, number int) ([]TimelineEvent, error) {
	var wire []struct {
		Event string `json:"event"`
		Actor *struct {
			Login string `json:"login"`
		} `json:"actor"`
		Label *struct {
			Name string `json:"name"`
		} `json:"label"`
		Milestone *struct {
			Title string `json:"title"`
		} `json:"milestone"`
		CreatedAt string `json:"created_at"`
	}

	// The timeline lives under the issues API and needs its preview
	// media type.
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/timeline", owner, repo, number)
	if err := c.getJSON(ctx, path, acceptTimeline, &wire); err != nil {
		return nil, err
	}

	timeline := make([]TimelineEvent, 0, len(wire))
	for _, entry := range wire {
		event := TimelineEvent{
			Event:     entry.Event,
			CreatedAt: entry.CreatedAt,
		}
		if entry.Actor != nil {
			event.Actor = entry.Actor.Login
		}
		if entry.Label != nil {
			event.Label = entry.Label.Name
		}
		if entry.Milestone != nil {
			event.Milestone = entry.Milestone.Title
		}
		timeline = append(timeline, event)
	}
	return timeline, nil
}

// getJSON performs one rate-limited GET against the API and decodes the
// response body.
func (c *Client) getJSON(ctx context.Context, path, accept string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", accept)
	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordRequest(ctx, path, false)
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		recordRequest(ctx, path, false)
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		recordRequest(ctx, path, false)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s",
			path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		recordRequest(ctx, path, false)
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	recordRequest(ctx, path, true)
	return nil
}

// authorize signs one request. The token enclave is opened only for the
// duration of this call.
func (c *Client) authorize(req *http.Request) error {
	if c.token == nil {
		return nil
	}
	buf, err := c.token.Open()
	if err != nil {
		return fmt.Errorf("opening token enclave: %w", err)
	}
	defer buf.Destroy()

	req.Header.Set("Authorization", "token "+buf.String())
	return nil
}
