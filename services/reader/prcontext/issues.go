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
	"regexp"
	"strconv"
)

// issuePattern matches #N issue references in free text.
var issuePattern = regexp.MustCompile(`#(\d+)`)

// ExtractLinkedIssues collects #N references from the PR body first, then
// from the review comments. Each issue number is reported once, at its
// first mention.
func ExtractLinkedIssues(pr *PRDetails, comments []ReviewComment) []LinkedIssue {
	var issues []LinkedIssue
	seen := make(map[int]struct{})

	add := func(number int, source string, commentID int64) {
		if _, ok := seen[number]; ok {
			return
		}
		seen[number] = struct{}{}
		issues = append(issues, LinkedIssue{
			Number:    number,
			Source:    source,
			CommentID: commentID,
		})
	}

	if pr != nil {
		for _, match := range issuePattern.FindAllStringSubmatch(pr.Body, -1) {
			if number, err := strconv.Atoi(match[1]); err == nil {
				add(number, "pr_body", 0)
			}
		}
	}
	for _, comment := range comments {
		for _, match := range issuePattern.FindAllStringSubmatch(comment.Body, -1) {
			if number, err := strconv.Atoi(match[1]); err == nil {
				add(number, "comment", comment.ID)
			}
		}
	}
	return issues
}
