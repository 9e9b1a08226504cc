// Package vcs opens code reviews carrying generated fixes and searches the
// hosted repository for files related to a bug.
package vcs

import (
	"context"
	"strings"
)

// ReviewRequest describes the review to open for a bug.
type ReviewRequest struct {
	BugKey  string
	Summary string
	// Fix maps file paths to their new content.
	Fix map[string]string
}

// ReviewHost is a version control host that accepts reviews.
type ReviewHost interface {
	// SearchCode returns repository paths matching any of keywords.
	SearchCode(ctx context.Context, keywords []string) ([]string, error)
	// CreateReview opens a review for the fix and returns its URL.
	CreateReview(ctx context.Context, req ReviewRequest) (string, error)
}

// BranchName returns the review branch for a bug key.
func BranchName(bugKey string) string {
	return strings.ReplaceAll(strings.ToLower("bugfix-"+bugKey), " ", "-")
}
