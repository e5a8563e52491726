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

// PRContext is the assembled review context for one pull request.
type PRContext struct {
	PR           *PRDetails      `json:"pr"`
	Commits      []Commit        `json:"commits"`
	Files        []ChangedFile   `json:"files"`
	Comments     []ReviewComment `json:"comments"`
	Reviews      []Review        `json:"reviews"`
	LinkedIssues []LinkedIssue   `json:"linked_issues"`
	Timeline     []TimelineEvent `json:"timeline"`
}

// PRDetails is the flattened pull request header.
type PRDetails struct {
	Number     int      `json:"number"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	State      string   `json:"state"`
	User       string   `json:"user"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
	MergedAt   string   `json:"merged_at,omitempty"`
	BaseBranch string   `json:"base_branch"`
	HeadBranch string   `json:"head_branch"`
	Labels     []string `json:"labels"`
	Milestone  string   `json:"milestone,omitempty"`
	URL        string   `json:"url"`
}

// Commit is one commit on the pull request branch.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author"`
	Date    string `json:"date"`
	URL     string `json:"url"`
}

// ChangedFile is one file touched by the pull request. Additions,
// Deletions and Changes come from the API; PatchStats is re-derived from
// the unified diff fragment when one is present and parseable.
type ChangedFile struct {
	Filename   string      `json:"filename"`
	Status     string      `json:"status"` // added, modified, removed
	Additions  int         `json:"additions"`
	Deletions  int         `json:"deletions"`
	Changes    int         `json:"changes"`
	Patch      string      `json:"patch,omitempty"`
	PatchStats *PatchStats `json:"patch_stats,omitempty"`
}

// PatchStats summarizes one file's diff fragment.
type PatchStats struct {
	Hunks     int `json:"hunks"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// ReviewComment is one inline code comment.
type ReviewComment struct {
	ID        int64  `json:"id"`
	User      string `json:"user"`
	Body      string `json:"body"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	CreatedAt string `json:"created_at"`
	URL       string `json:"url"`
}

// Review is one submitted review.
type Review struct {
	ID          int64  `json:"id"`
	User        string `json:"user"`
	State       string `json:"state"` // APPROVED, CHANGES_REQUESTED, COMMENTED
	Body        string `json:"body,omitempty"`
	SubmittedAt string `json:"submitted_at"`
	URL         string `json:"url"`
}

// TimelineEvent is one event on the issue timeline.
type TimelineEvent struct {
	Event     string `json:"event"`
	CreatedAt string `json:"created_at,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Label     string `json:"label,omitempty"`
	Milestone string `json:"milestone,omitempty"`
}

// LinkedIssue is one #N reference found in the PR body or a comment.
// The first mention of a number wins; later duplicates are dropped.
type LinkedIssue struct {
	Number    int    `json:"number"`
	Source    string `json:"source"` // "pr_body" or "comment"
	CommentID int64  `json:"comment_id,omitempty"`
}
