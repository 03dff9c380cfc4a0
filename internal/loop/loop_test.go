package loop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revloop/revloop/internal/classify"
	"github.com/revloop/revloop/internal/gitops"
	"github.com/revloop/revloop/internal/provider"
)

func mustScope(t *testing.T, s string) classify.Scope {
	t.Helper()
	sc, err := classify.ParseScope(s)
	require.NoError(t, err)
	return sc
}

// fetchStep is one scripted ListOpenThreads response. When the script is
// exhausted the last step repeats.
type fetchStep struct {
	threads []provider.ReviewThread
	err     error
}

type replyCall struct {
	threadID string
	body     string
}

type fakeBackend struct {
	mu         sync.Mutex
	fetches    []fetchStep
	fetchCalls int
	replies    []replyCall
	replyErr   error
	resolved   [][]string
	resolveErr error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) GetPR(ctx context.Context, id string) (*provider.PRInfo, error) {
	return nil, provider.ErrUnsupported
}

func (f *fakeBackend) ListOpenThreads(ctx context.Context, pr *provider.PRInfo) ([]provider.ReviewThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.fetchCalls
	if i >= len(f.fetches) {
		i = len(f.fetches) - 1
	}
	f.fetchCalls++
	step := f.fetches[i]
	return step.threads, step.err
}

func (f *fakeBackend) ReplyToThread(ctx context.Context, pr *provider.PRInfo, threadID, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return "", f.replyErr
	}
	f.replies = append(f.replies, replyCall{threadID: threadID, body: body})
	return "reply-" + threadID, nil
}

func (f *fakeBackend) ResolveThreads(ctx context.Context, pr *provider.PRInfo, threadIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolved = append(f.resolved, threadIDs)
	return nil
}

type fakeTree struct {
	changes    []gitops.PathChange
	publishRef string
	publishErr error

	branches []string
	messages []string
}

func (f *fakeTree) Status(ctx context.Context) []gitops.PathChange { return f.changes }

func (f *fakeTree) Publish(ctx context.Context, branch, message string) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.branches = append(f.branches, branch)
	f.messages = append(f.messages, message)
	return f.publishRef, nil
}

func thread(id, author, body string) provider.ReviewThread {
	return provider.ReviewThread{
		ID:   id,
		Path: "internal/api/handler.go",
		Line: 42,
		Comments: []provider.Comment{
			{Author: author, Body: body},
		},
	}
}

func testPR() *provider.PRInfo {
	return &provider.PRInfo{
		Number:       7,
		Title:        "Add pagination",
		Status:       "active",
		SourceBranch: "feature/pagination",
		TargetBranch: "main",
		Owner:        "acme",
		Repo:         "widgets",
	}
}

// newTestOrch wires an orchestrator with the sleep hook stubbed out so
// review waits and retry backoffs do not slow the tests down.
func newTestOrch(backend *fakeBackend, tree *fakeTree, opts Options) *Orchestrator {
	o := New(backend, tree, nil, nil, opts)
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return o
}

func TestRunCleanOnNoThreads(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{{threads: nil}}}
	tree := &fakeTree{}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.TotalFixed)
	assert.Equal(t, 0, res.TotalSkipped)
	assert.Equal(t, 0, res.Remaining)
	assert.Empty(t, res.PublishRefs)
	assert.NoError(t, res.Err)
	assert.Empty(t, backend.replies)
}

func TestRunNoChangesResolvesWithoutPublish(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{thread("T1", "alice", "This breaks the retry logic")}},
		{threads: nil},
	}}
	tree := &fakeTree{} // clean working tree
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 1, res.TotalFixed)
	assert.Empty(t, res.PublishRefs)
	assert.Empty(t, tree.messages)

	require.Len(t, backend.replies, 1)
	assert.Equal(t, "T1", backend.replies[0].threadID)
	assert.Contains(t, backend.replies[0].body, "No changes needed")
	require.Len(t, backend.resolved, 1)
	assert.Equal(t, []string{"T1"}, backend.resolved[0])
}

func TestRunPublishesAndRepliesWithRef(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{
			thread("T1", "alice", "This breaks the retry logic"),
			thread("T2", "bob", "You might want to cache this lookup"),
		}},
		{threads: nil},
	}}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "internal/api/handler.go"}},
		publishRef: "abc12345",
	}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)
	assert.Equal(t, 2, res.TotalFixed)
	assert.Equal(t, []string{"abc12345"}, res.PublishRefs)

	require.Len(t, tree.messages, 1)
	assert.Equal(t, "address review feedback - iteration 1 (2 threads addressed)", tree.messages[0])
	assert.Equal(t, []string{"feature/pagination"}, tree.branches)

	require.Len(t, backend.replies, 2)
	for _, r := range backend.replies {
		assert.Equal(t, "Addressed in abc12345.", r.body)
	}
	require.Len(t, backend.resolved, 1)
	assert.ElementsMatch(t, []string{"T1", "T2"}, backend.resolved[0])
}

func TestRunPartialWhenNothingFixable(t *testing.T) {
	threads := []provider.ReviewThread{
		thread("T1", "alice", "Why is this exported?"),
		thread("T2", "bob", "Nice cleanup, thanks!"),
	}
	backend := &fakeBackend{fetches: []fetchStep{{threads: threads}}}
	tree := &fakeTree{}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.TotalFixed)
	assert.Equal(t, 2, res.TotalSkipped)
	assert.Equal(t, 2, res.Remaining)
	assert.Empty(t, backend.replies)
	assert.Empty(t, backend.resolved)
}

func TestRunPartialOnIterationBudget(t *testing.T) {
	// The same blocking thread survives every iteration.
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{thread("T1", "alice", "This breaks the build")}},
	}}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishRef: "def45678",
	}
	o := newTestOrch(backend, tree, Options{MaxIterations: 3})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, res.TotalFixed)
	assert.Equal(t, 1, res.Remaining)
	assert.Len(t, res.PublishRefs, 3)
	assert.Len(t, tree.messages, 3)
	assert.Equal(t, "address review feedback - iteration 3 (1 threads addressed)", tree.messages[2])
}

func TestRunFailsWhenFetchRetryExhausted(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{{err: errors.New("503 service unavailable")}}}
	tree := &fakeTree{}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Iterations)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "retry exhausted")
	// Initial attempt, retry, and the best-effort final re-fetch.
	assert.Equal(t, 3, backend.fetchCalls)
}

func TestRunRecoversOnFetchRetry(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{err: errors.New("502 bad gateway")},
		{threads: nil},
	}}
	tree := &fakeTree{}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)
	assert.NoError(t, res.Err)
}

func TestRunFailsOnPublishError(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{thread("T1", "alice", "This breaks the build")}},
	}}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishErr: errors.New("remote rejected push"),
	}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "publishing")
	assert.Equal(t, 0, res.TotalFixed)
	assert.Empty(t, backend.resolved)
}

func TestRunReplyFailureIsNonFatal(t *testing.T) {
	backend := &fakeBackend{
		fetches: []fetchStep{
			{threads: []provider.ReviewThread{thread("T1", "alice", "This breaks the build")}},
			{threads: nil},
		},
		replyErr: errors.New("403 forbidden"),
	}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishRef: "abc12345",
	}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)
	assert.Equal(t, 1, res.TotalFixed)
	require.Len(t, backend.resolved, 1)
}

func TestRunResolveFailureStillCountsFixed(t *testing.T) {
	backend := &fakeBackend{
		fetches: []fetchStep{
			{threads: []provider.ReviewThread{thread("T1", "alice", "This breaks the build")}},
			{threads: nil},
		},
		resolveErr: errors.New("thread locked"),
	}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishRef: "abc12345",
	}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)
	assert.Equal(t, 1, res.TotalFixed)
	assert.NoError(t, res.Err)
}

func TestRunScopeBugsOnlySkipsSuggestions(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{
			thread("T1", "alice", "This breaks the build"),
			thread("T2", "bob", "You might want to cache this lookup"),
		}},
		{threads: nil},
	}}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishRef: "abc12345",
	}
	o := newTestOrch(backend, tree, Options{Scope: mustScope(t, "bugs")})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, 1, res.TotalFixed)
	assert.Equal(t, 1, res.TotalSkipped)
	require.Len(t, backend.resolved, 1)
	assert.Equal(t, []string{"T1"}, backend.resolved[0])
}

func TestRunDryRunSuppressesMutations(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{thread("T1", "alice", "This breaks the build")}},
	}}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishRef: "real-would-be",
	}
	o := newTestOrch(backend, tree, Options{MaxIterations: 1, DryRun: true})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.TotalFixed)
	assert.Equal(t, []string{"dryrun-1"}, res.PublishRefs)
	assert.Empty(t, tree.messages, "dry run must not commit or push")
	assert.Empty(t, backend.replies, "dry run must not post replies")
	assert.Empty(t, backend.resolved, "dry run must not resolve threads")
}

func TestRunRepliesOnDeletedPath(t *testing.T) {
	th := thread("T1", "alice", "This breaks the build")
	th.Path = "legacy/old.go"
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{th}},
		{threads: nil},
	}}
	tree := &fakeTree{
		changes: []gitops.PathChange{
			{Kind: gitops.ChangeDeleted, Path: "legacy/old.go"},
			{Kind: gitops.ChangeAdded, Path: "internal/new.go"},
		},
		publishRef: "abc12345",
	}
	o := newTestOrch(backend, tree, Options{})

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)

	var removedReply, refReply bool
	for _, r := range backend.replies {
		if strings.Contains(r.body, "legacy/old.go") && strings.Contains(r.body, "removed") {
			removedReply = true
		}
		if r.body == "Addressed in abc12345." {
			refReply = true
		}
	}
	assert.True(t, removedReply, "expected a file-removed reply")
	assert.True(t, refReply, "expected the commit-reference reply")
}

func TestRunCancelledDuringWaitIsPartial(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{thread("T1", "alice", "This breaks the build")}},
	}}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishRef: "abc12345",
	}
	o := New(backend, tree, nil, nil, Options{ReviewWait: time.Minute})
	o.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 1, res.TotalFixed)
	assert.NoError(t, res.Err)
}

func TestRunAgentHookReceivesFixable(t *testing.T) {
	backend := &fakeBackend{fetches: []fetchStep{
		{threads: []provider.ReviewThread{
			thread("T1", "alice", "This breaks the build"),
			thread("T2", "bob", "Why is this exported?"),
		}},
		{threads: nil},
	}}
	tree := &fakeTree{
		changes:    []gitops.PathChange{{Kind: gitops.ChangeModified, Path: "main.go"}},
		publishRef: "abc12345",
	}

	var got []Classification
	wait := func(ctx context.Context, fixable []Classification) error {
		got = fixable
		return nil
	}
	o := New(backend, tree, nil, wait, Options{})
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	res := o.Run(context.Background(), testPR())

	assert.Equal(t, StatusClean, res.Status)
	require.Len(t, got, 1)
	assert.Equal(t, "T1", got[0].ThreadID)
	assert.True(t, got[0].Fixable)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultMaxIterations, o.MaxIterations)
	assert.Equal(t, DefaultReviewWait, o.ReviewWait)
	assert.Equal(t, DefaultFixLabel, o.FixLabel)

	o = Options{MaxIterations: 2, ReviewWait: time.Second, FixLabel: "fixup"}.withDefaults()
	assert.Equal(t, 2, o.MaxIterations)
	assert.Equal(t, time.Second, o.ReviewWait)
	assert.Equal(t, "fixup", o.FixLabel)
}
