// Package github implements provider.ReviewBackend against the GitHub API.
// PR metadata comes from the REST API; review threads require GraphQL;
// REST cannot list thread resolution state or resolve threads.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/revloop/revloop/internal/provider"
)

// Backend implements provider.ReviewBackend for GitHub.
type Backend struct {
	client    *gh.Client
	gqlOnce   sync.Once
	gqlClient *githubv4.Client
	owner     string
	repo      string
	token     string
	baseURL   string // override for testing
}

// NewBackend creates a GitHub backend for the given owner/repo.
// Uses go-github-ratelimit middleware for automatic rate limit handling.
func NewBackend(owner, repo, token string) *Backend {
	rateLimiter := github_ratelimit.NewClient(nil)
	client := gh.NewClient(rateLimiter).WithAuthToken(token)
	return &Backend{
		client: client,
		owner:  owner,
		repo:   repo,
		token:  token,
	}
}

// Name returns "github".
func (b *Backend) Name() string {
	return "github"
}

// GetPR retrieves pull request metadata by number, "owner/repo#number",
// or full URL.
func (b *Backend) GetPR(ctx context.Context, id string) (*provider.PRInfo, error) {
	parsed, err := b.parsePRIdentifier(id)
	if err != nil {
		return nil, fmt.Errorf("could not parse PR identifier %q: %w", id, err)
	}

	pr, _, err := b.client.PullRequests.Get(ctx, parsed.Owner, parsed.Repo, parsed.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to get PR: %w", err)
	}

	return b.mapPR(pr, parsed.Owner, parsed.Repo), nil
}

// reviewThreadNode mirrors the GraphQL reviewThread shape. Comments are
// capped at 50 per thread: the classifier only needs the first comment and
// later replies are informational.
type reviewThreadNode struct {
	ID         githubv4.ID
	IsResolved githubv4.Boolean
	IsOutdated githubv4.Boolean
	Path       githubv4.String
	Line       *githubv4.Int
	Comments   struct {
		Nodes []struct {
			Author struct {
				Login githubv4.String
			}
			Body      githubv4.String
			CreatedAt githubv4.DateTime
			URL       githubv4.URI
		}
	} `graphql:"comments(first: 50)"`
}

// ListOpenThreads returns the unresolved review threads on a pull request.
// Resolved threads are filtered client-side; the reviewThreads connection
// has no server-side resolution filter.
func (b *Backend) ListOpenThreads(ctx context.Context, pr *provider.PRInfo) ([]provider.ReviewThread, error) {
	owner, repo := b.resolveOwnerRepo(pr)
	gql := b.getGraphQLClient(ctx)

	var threads []provider.ReviewThread
	var cursor *githubv4.String

	for {
		var query struct {
			Repository struct {
				PullRequest struct {
					ReviewThreads struct {
						Nodes    []reviewThreadNode
						PageInfo struct {
							HasNextPage githubv4.Boolean
							EndCursor   githubv4.String
						}
					} `graphql:"reviewThreads(first: 100, after: $cursor)"`
				} `graphql:"pullRequest(number: $number)"`
			} `graphql:"repository(owner: $owner, name: $name)"`
		}

		vars := map[string]any{
			"owner":  githubv4.String(owner),
			"name":   githubv4.String(repo),
			"number": githubv4.Int(pr.Number),
			"cursor": cursor,
		}

		if err := gql.Query(ctx, &query, vars); err != nil {
			return nil, fmt.Errorf("failed to list review threads: %w", err)
		}

		conn := query.Repository.PullRequest.ReviewThreads
		for _, node := range conn.Nodes {
			if bool(node.IsResolved) {
				continue
			}
			threads = append(threads, mapThread(node))
		}

		if !conn.PageInfo.HasNextPage {
			break
		}
		next := conn.PageInfo.EndCursor
		cursor = &next
	}

	return threads, nil
}

// ReplyToThread posts a reply on a review thread via the
// addPullRequestReviewThreadReply mutation and returns the reply URL.
func (b *Backend) ReplyToThread(ctx context.Context, pr *provider.PRInfo, threadID, body string) (string, error) {
	gql := b.getGraphQLClient(ctx)

	var mutation struct {
		AddPullRequestReviewThreadReply struct {
			Comment struct {
				URL githubv4.URI
			}
		} `graphql:"addPullRequestReviewThreadReply(input: $input)"`
	}

	input := githubv4.AddPullRequestReviewThreadReplyInput{
		PullRequestReviewThreadID: githubv4.ID(threadID),
		Body:                      githubv4.String(body),
	}

	if err := gql.Mutate(ctx, &mutation, input, nil); err != nil {
		return "", fmt.Errorf("failed to reply to thread %s: %w", threadID, err)
	}

	if mutation.AddPullRequestReviewThreadReply.Comment.URL.URL != nil {
		return mutation.AddPullRequestReviewThreadReply.Comment.URL.String(), nil
	}
	return threadID, nil
}

// ResolveThreads resolves review threads one mutation at a time; the
// GraphQL API has no batch form. Resolving an already-resolved thread is a
// platform no-op, so repeated calls are safe.
func (b *Backend) ResolveThreads(ctx context.Context, pr *provider.PRInfo, threadIDs []string) error {
	gql := b.getGraphQLClient(ctx)

	for _, id := range threadIDs {
		var mutation struct {
			ResolveReviewThread struct {
				Thread struct {
					IsResolved bool
				}
			} `graphql:"resolveReviewThread(input: $input)"`
		}

		input := githubv4.ResolveReviewThreadInput{
			ThreadID: githubv4.ID(id),
		}

		if err := gql.Mutate(ctx, &mutation, input, nil); err != nil {
			return fmt.Errorf("failed to resolve review thread %s: %w", id, err)
		}
	}

	return nil
}

// --- Internal helpers ---

// mapThread converts a GraphQL reviewThread node to the provider type.
func mapThread(node reviewThreadNode) provider.ReviewThread {
	t := provider.ReviewThread{
		ID:         fmt.Sprintf("%v", node.ID),
		Path:       string(node.Path),
		IsResolved: bool(node.IsResolved),
		IsOutdated: bool(node.IsOutdated),
	}
	if node.Line != nil {
		t.Line = int(*node.Line)
	}
	for _, c := range node.Comments.Nodes {
		comment := provider.Comment{
			Author:    string(c.Author.Login),
			Body:      string(c.Body),
			CreatedAt: c.CreatedAt.Time,
		}
		if c.URL.URL != nil {
			comment.URL = c.URL.String()
		}
		t.Comments = append(t.Comments, comment)
	}
	return t
}

// parsePRIdentifier extracts owner, repo, and PR number from a string.
// Accepts bare numbers, "owner/repo#number", or full GitHub URLs.
func (b *Backend) parsePRIdentifier(id string) (*prIdentifier, error) {
	// Bare number: use backend defaults.
	if num, err := strconv.Atoi(id); err == nil {
		return &prIdentifier{Owner: b.owner, Repo: b.repo, Number: num}, nil
	}

	// Try "owner/repo#number" format.
	if parts := strings.SplitN(id, "#", 2); len(parts) == 2 {
		ownerRepo := strings.SplitN(parts[0], "/", 2)
		if len(ownerRepo) == 2 {
			num, err := strconv.Atoi(parts[1])
			if err == nil {
				return &prIdentifier{Owner: ownerRepo[0], Repo: ownerRepo[1], Number: num}, nil
			}
		}
	}

	// Try URL: https://github.com/{owner}/{repo}/pull/{number}
	u, err := url.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid PR identifier: %s", id)
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Pattern: {owner}/{repo}/pull/{number}
	if len(pathParts) >= 4 && pathParts[2] == "pull" {
		num, err := strconv.Atoi(pathParts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid PR number in URL: %s", pathParts[3])
		}
		return &prIdentifier{Owner: pathParts[0], Repo: pathParts[1], Number: num}, nil
	}

	return nil, fmt.Errorf("could not parse PR identifier: %s", id)
}

// mapPR converts a GitHub PullRequest to provider.PRInfo.
func (b *Backend) mapPR(pr *gh.PullRequest, owner, repo string) *provider.PRInfo {
	status := "active"
	if pr.GetMerged() {
		status = "completed"
	} else if pr.GetState() == "closed" {
		status = "abandoned"
	}

	return &provider.PRInfo{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Status:       status,
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Author:       pr.GetUser().GetLogin(),
		URL:          pr.GetHTMLURL(),
		Owner:        owner,
		Repo:         repo,
	}
}

// resolveOwnerRepo returns the owner and repo for API calls, preferring
// values from the PRInfo if available.
func (b *Backend) resolveOwnerRepo(pr *provider.PRInfo) (string, string) {
	owner := b.owner
	repo := b.repo
	if pr.Owner != "" {
		owner = pr.Owner
	}
	if pr.Repo != "" {
		repo = pr.Repo
	}
	return owner, repo
}

// getGraphQLClient returns (and lazily creates) the GitHub GraphQL client.
// Thread-safe via sync.Once.
func (b *Backend) getGraphQLClient(ctx context.Context) *githubv4.Client {
	b.gqlOnce.Do(func() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.token})
		httpClient := oauth2.NewClient(ctx, ts)
		if b.baseURL != "" {
			b.gqlClient = githubv4.NewEnterpriseClient(b.baseURL+"/graphql", httpClient)
		} else {
			b.gqlClient = githubv4.NewClient(httpClient)
		}
	})
	return b.gqlClient
}

// setTestClients swaps in plain HTTP clients pointed at a test server.
func (b *Backend) setTestClients(baseURL string, httpClient *http.Client) {
	b.baseURL = baseURL
	b.gqlOnce.Do(func() {})
	b.gqlClient = githubv4.NewEnterpriseClient(baseURL+"/graphql", httpClient)
}

// Verify Backend implements ReviewBackend at compile time.
var _ provider.ReviewBackend = (*Backend)(nil)
