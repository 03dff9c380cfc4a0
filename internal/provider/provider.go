// Package provider defines the review-platform abstraction the
// orchestration loop runs against.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned when a backend doesn't support a given operation.
var ErrUnsupported = errors.New("operation not supported by this backend")

// ReviewBackend is the interface for review-thread operations on a hosted
// platform. Implementations handle provider-specific API calls; the loop
// only sees threads, replies, and resolutions.
type ReviewBackend interface {
	// Name returns the short identifier for this backend (e.g., "github").
	Name() string

	// GetPR retrieves pull request metadata by number or URL.
	GetPR(ctx context.Context, id string) (*PRInfo, error)

	// ListOpenThreads returns the unresolved review threads on a pull
	// request, in platform order. Each thread carries its full comment
	// sequence; the first comment body is always populated.
	ListOpenThreads(ctx context.Context, pr *PRInfo) ([]ReviewThread, error)

	// ReplyToThread posts a reply on a review thread and returns a
	// reference (URL or id) for the created reply.
	ReplyToThread(ctx context.Context, pr *PRInfo, threadID, body string) (string, error)

	// ResolveThreads marks the given threads resolved. Batch-safe and
	// idempotent: resolving an already-resolved thread is a no-op.
	ResolveThreads(ctx context.Context, pr *PRInfo, threadIDs []string) error
}

// PRInfo contains metadata about a pull request.
type PRInfo struct {
	// Number is the pull request number.
	Number int
	// Title is the pull request title.
	Title string
	// Status is the current PR status: "active", "completed", or "abandoned".
	Status string
	// SourceBranch is the branch being merged from.
	SourceBranch string
	// TargetBranch is the branch being merged into.
	TargetBranch string
	// Author is the login of the PR author.
	Author string
	// URL is the web URL to view the pull request.
	URL string
	// Owner is the repository owner used for API routing.
	Owner string
	// Repo is the repository name used for API routing.
	Repo string
}

// ReviewThread is one discussion anchored to a file/line on a pull request.
// Resolution state is authoritative on the remote platform and never cached
// beyond one loop iteration.
type ReviewThread struct {
	// ID is the platform's opaque thread identifier, stable across fetches
	// within a single pull request.
	ID string
	// Path is the file the thread is anchored to.
	Path string
	// Line is the line number the thread is anchored to (0 when outdated).
	Line int
	// IsResolved indicates whether the thread has been resolved.
	IsResolved bool
	// IsOutdated indicates the anchored diff hunk no longer exists.
	IsOutdated bool
	// Comments is the ordered message sequence. The first comment is the
	// classification input; later replies are informational only.
	Comments []Comment
}

// FirstComment returns the thread's root comment, or a zero Comment for an
// empty thread.
func (t ReviewThread) FirstComment() Comment {
	if len(t.Comments) == 0 {
		return Comment{}
	}
	return t.Comments[0]
}

// Comment is one message within a review thread.
type Comment struct {
	// Author is the login of the comment author.
	Author string
	// Body is the comment text content.
	Body string
	// CreatedAt is the timestamp when the comment was created.
	CreatedAt time.Time
	// URL is the web URL of the comment.
	URL string
}
