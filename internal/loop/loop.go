// Package loop implements the review-fix-resolve orchestration state
// machine: fetch threads, classify, wait for the change-producing agent,
// detect changes, publish, reply, resolve, repeat until the thread set is
// empty, exhausted, or irrecoverable.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/revloop/revloop/internal/classify"
	"github.com/revloop/revloop/internal/gitops"
	"github.com/revloop/revloop/internal/provider"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxIterations = 5
	DefaultReviewWait    = 90 * time.Second
	DefaultFixLabel      = "address review feedback"

	// fetchRetryBackoff is the fixed pause before the single fetch retry.
	fetchRetryBackoff = 3 * time.Second

	// maxParallelReplies bounds the reply fan-out. Replies are idempotent
	// and order-independent relative to each other; resolves always wait
	// for every reply first.
	maxParallelReplies = 4
)

// GitTree is the loop's view of the local working tree.
type GitTree interface {
	Status(ctx context.Context) []gitops.PathChange
	Publish(ctx context.Context, branch, message string) (string, error)
}

// AgentWaiter is the suspension hook invoked after classification and
// before change detection, giving an external change-producing agent the
// chance to act. In automated runs it is nil (changes are expected to
// already exist from prior pipeline stages).
type AgentWaiter func(ctx context.Context, fixable []Classification) error

// Options configures an orchestration run.
type Options struct {
	MaxIterations int
	ReviewWait    time.Duration
	DryRun        bool
	Scope         classify.Scope
	FixLabel      string
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.ReviewWait <= 0 {
		o.ReviewWait = DefaultReviewWait
	}
	if o.FixLabel == "" {
		o.FixLabel = DefaultFixLabel
	}
	return o
}

// Orchestrator drives the loop for one pull request. A single instance
// owns its local clone for the duration of the run.
type Orchestrator struct {
	backend    provider.ReviewBackend
	tree       GitTree
	classifier classify.Classifier
	agentWait  AgentWaiter
	opts       Options

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator. classifier may be nil, selecting the
// bot-aware default.
func New(backend provider.ReviewBackend, tree GitTree, classifier classify.Classifier, agentWait AgentWaiter, opts Options) *Orchestrator {
	if classifier == nil {
		classifier = classify.NewBotAware()
	}
	return &Orchestrator{
		backend:    backend,
		tree:       tree,
		classifier: classifier,
		agentWait:  agentWait,
		opts:       opts.withDefaults(),
		sleep:      sleepCtx,
	}
}

// accumulator is the fold state threaded through iterations, keeping the
// per-iteration function pure and independently testable.
type accumulator struct {
	totalFixed    int
	totalSkipped  int
	refs          []string
	lastRemaining int
}

// Run executes the orchestration loop against the given pull request and
// returns the final RunResult. The result's Err field is set when Status
// is StatusFailed; everything else degrades gracefully.
func (o *Orchestrator) Run(ctx context.Context, pr *provider.PRInfo) *RunResult {
	var acc accumulator
	iterations := 0
	status := StatusPartial
	var fatal error

	slog.Info("starting review loop",
		"pr", pr.Number,
		"branch", pr.SourceBranch,
		"maxIterations", o.opts.MaxIterations,
		"scope", o.opts.Scope.String(),
		"dryRun", o.opts.DryRun)

	for iter := 1; iter <= o.opts.MaxIterations; iter++ {
		iterations = iter

		res, done, err := o.iterate(ctx, pr, iter, &acc)
		if err != nil {
			status = StatusFailed
			fatal = err
			break
		}
		if done {
			status = res
			break
		}

		if iter == o.opts.MaxIterations {
			slog.Info("iteration budget exhausted", "iterations", iter)
			status = StatusPartial
			break
		}

		// Real suspension: give remote reviewers time to react before the
		// next fetch. Skipped in dry-run.
		if !o.opts.DryRun {
			slog.Info("waiting for reviewers", "wait", o.opts.ReviewWait)
			if err := o.sleep(ctx, o.opts.ReviewWait); err != nil {
				slog.Warn("review wait interrupted, stopping", "error", err)
				status = StatusPartial
				break
			}
		}
	}

	remaining := o.refetchRemaining(ctx, pr, acc.lastRemaining)

	result := &RunResult{
		Status:       status,
		Iterations:   iterations,
		TotalFixed:   acc.totalFixed,
		TotalSkipped: acc.totalSkipped,
		Remaining:    remaining,
		PublishRefs:  acc.refs,
		Err:          fatal,
	}

	slog.Info("review loop finished",
		"status", result.Status.String(),
		"iterations", result.Iterations,
		"fixed", result.TotalFixed,
		"skipped", result.TotalSkipped,
		"remaining", result.Remaining)

	return result
}

// iterate runs one loop pass. It returns (terminalStatus, true, nil) when
// the run should stop cleanly, (_, false, nil) to continue, or a non-nil
// error for the two fatal conditions (fetch exhaustion, publish failure).
func (o *Orchestrator) iterate(ctx context.Context, pr *provider.PRInfo, iter int, acc *accumulator) (Status, bool, error) {
	threads, err := o.fetchWithRetry(ctx, pr)
	if err != nil {
		return 0, false, fmt.Errorf("iteration %d: fetching threads: %w", iter, err)
	}

	if len(threads) == 0 {
		slog.Info("no open threads, review is clean", "iteration", iter)
		acc.lastRemaining = 0
		return StatusClean, true, nil
	}

	fixable, skipped := o.partition(threads)
	slog.Info("classified threads",
		"iteration", iter,
		"open", len(threads),
		"fixable", len(fixable),
		"skipped", len(skipped))

	if len(fixable) == 0 {
		// Nothing automatable: surface the rest for human attention.
		acc.totalSkipped += len(skipped)
		acc.lastRemaining = len(skipped)
		return StatusPartial, true, nil
	}

	if o.agentWait != nil {
		if err := o.agentWait(ctx, fixable); err != nil {
			slog.Warn("agent hook failed, continuing with current tree", "error", err)
		}
	}

	changes := o.tree.Status(ctx)
	itRes := IterationResult{Iteration: iter, Fixable: len(fixable), Skipped: len(skipped)}

	if len(changes) == 0 {
		// The tree is untouched: the comments need no code change. Reply
		// and resolve in batch, then continue without publishing.
		slog.Info("no local changes, resolving without publish", "iteration", iter, "threads", len(fixable))
		itRes.Replies = o.replyAll(ctx, pr, fixable, noChangesReply)
		itRes.ResolveErr = o.resolveAll(ctx, pr, fixable)
	} else {
		deleted := gitops.DeletedPaths(changes)
		o.replyDeleted(ctx, pr, fixable, deleted)

		ref, err := o.publish(ctx, pr, iter, len(fixable))
		if err != nil {
			return 0, false, fmt.Errorf("iteration %d: publishing: %w", iter, err)
		}
		itRes.PublishRef = ref
		acc.refs = append(acc.refs, ref)

		itRes.Replies = o.replyAll(ctx, pr, fixable, func(Classification) string {
			return fmt.Sprintf("Addressed in %s.", ref)
		})
		itRes.ResolveErr = o.resolveAll(ctx, pr, fixable)
	}

	for _, r := range itRes.Replies {
		if r.Err != nil {
			slog.Warn("reply failed, skipping thread reply", "threadID", r.ThreadID, "error", r.Err)
		}
	}

	// Resolve failures still count the threads as fixed: the remote is the
	// source of truth and may already have applied the resolution.
	acc.totalFixed += len(fixable)
	acc.totalSkipped += len(skipped)
	acc.lastRemaining = len(skipped)
	return 0, false, nil
}

// fetchWithRetry lists open threads with a single retry on failure after a
// fixed backoff. Exhausting the retry is fatal for the run.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, pr *provider.PRInfo) ([]provider.ReviewThread, error) {
	threads, err := o.backend.ListOpenThreads(ctx, pr)
	if err == nil {
		return threads, nil
	}
	slog.Warn("thread fetch failed, retrying once", "error", err, "backoff", fetchRetryBackoff)
	if serr := o.sleep(ctx, fetchRetryBackoff); serr != nil {
		return nil, err
	}
	threads, err = o.backend.ListOpenThreads(ctx, pr)
	if err != nil {
		return nil, fmt.Errorf("retry exhausted: %w", err)
	}
	return threads, nil
}

// partition classifies every thread's first comment and splits the set by
// fixability under the configured scope.
func (o *Orchestrator) partition(threads []provider.ReviewThread) (fixable, skipped []Classification) {
	for _, t := range threads {
		first := t.FirstComment()
		sev := o.classifier.Classify(first.Author, first.Body)
		c := Classification{
			ThreadID: t.ID,
			Severity: sev,
			Fixable:  o.opts.Scope.Fixable(sev),
			Path:     t.Path,
			Line:     t.Line,
		}
		slog.Debug("classified thread",
			"threadID", c.ThreadID,
			"severity", c.Severity.String(),
			"fixable", c.Fixable,
			"path", c.Path,
			"line", c.Line)
		if c.Fixable {
			fixable = append(fixable, c)
		} else {
			skipped = append(skipped, c)
		}
	}
	return fixable, skipped
}

// publish stages, commits, and pushes; in dry-run it synthesizes a
// placeholder reference instead.
func (o *Orchestrator) publish(ctx context.Context, pr *provider.PRInfo, iter, addressed int) (string, error) {
	message := fmt.Sprintf("%s - iteration %d (%d threads addressed)", o.opts.FixLabel, iter, addressed)
	if o.opts.DryRun {
		ref := fmt.Sprintf("dryrun-%d", iter)
		slog.Info("dry run: skipping stage/commit/push", "message", message, "ref", ref)
		return ref, nil
	}
	ref, err := o.tree.Publish(ctx, pr.SourceBranch, message)
	if err != nil {
		return "", err
	}
	slog.Info("published changes", "iteration", iter, "ref", ref, "branch", pr.SourceBranch)
	return ref, nil
}

// refetchRemaining re-fetches the open-thread count for the final report.
// Best effort: on failure the last-known count stands.
func (o *Orchestrator) refetchRemaining(ctx context.Context, pr *provider.PRInfo, lastKnown int) int {
	threads, err := o.backend.ListOpenThreads(ctx, pr)
	if err != nil {
		slog.Warn("final thread re-fetch failed, using last-known count", "error", err, "lastKnown", lastKnown)
		return lastKnown
	}
	return len(threads)
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
