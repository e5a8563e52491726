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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test extraction order and deduplication across body and comments
func TestExtractLinkedIssues(t *testing.T) {
	pr := &PRDetails{Body: "Fixes #12, see #34 and #12 again"}
	comments := []ReviewComment{
		{ID: 9, Body: "dup #34 and new #56"},
	}

	issues := ExtractLinkedIssues(pr, comments)
	require.Len(t, issues, 3)

	assert.Equal(t, LinkedIssue{Number: 12, Source: "pr_body"}, issues[0])
	assert.Equal(t, LinkedIssue{Number: 34, Source: "pr_body"}, issues[1])
	assert.Equal(t, LinkedIssue{Number: 56, Source: "comment", CommentID: 9}, issues[2])
}

// Test that the first mentioning comment wins for duplicates
func TestExtractLinkedIssues_FirstMentionWins(t *testing.T) {
	comments := []ReviewComment{
		{ID: 1, Body: "relates to #7"},
		{ID: 2, Body: "also #7, plus #8"},
	}

	issues := ExtractLinkedIssues(nil, comments)
	require.Len(t, issues, 2)

	assert.Equal(t, LinkedIssue{Number: 7, Source: "comment", CommentID: 1}, issues[0])
	assert.Equal(t, LinkedIssue{Number: 8, Source: "comment", CommentID: 2}, issues[1])
}

func TestExtractLinkedIssues_NoReferences(t *testing.T) {
	pr := &PRDetails{Body: "no issue references here"}
	comments := []ReviewComment{{ID: 3, Body: "just a note"}}

	assert.Empty(t, ExtractLinkedIssues(pr, comments))
	assert.Empty(t, ExtractLinkedIssues(nil, nil))
}
