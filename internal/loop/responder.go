package loop

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/revloop/revloop/internal/provider"
)

// noChangesReply is the batch reply body for threads that needed no code
// change.
func noChangesReply(Classification) string {
	return "No changes needed; the current implementation already addresses this."
}

// replyAll posts a reply on every fixable thread. Replies are idempotent
// and independent, so they fan out through a bounded errgroup; each outcome
// is recorded rather than aborting the batch. In dry-run mode the calls
// are suppressed and references synthesized.
func (o *Orchestrator) replyAll(ctx context.Context, pr *provider.PRInfo, fixable []Classification, body func(Classification) string) []ReplyOutcome {
	outcomes := make([]ReplyOutcome, len(fixable))

	if o.opts.DryRun {
		for i, c := range fixable {
			outcomes[i] = ReplyOutcome{ThreadID: c.ThreadID, Ref: fmt.Sprintf("dryrun-reply-%s", c.ThreadID)}
		}
		return outcomes
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReplies)

	for i, c := range fixable {
		g.Go(func() error {
			ref, err := o.backend.ReplyToThread(gctx, pr, c.ThreadID, body(c))
			// Each goroutine owns its slot; reply failures are per-thread
			// and non-fatal.
			outcomes[i] = ReplyOutcome{ThreadID: c.ThreadID, Ref: ref, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// replyDeleted sends the distinct "file removed" reply to fixable threads
// anchored to a path that was deleted, before the generic flow continues.
func (o *Orchestrator) replyDeleted(ctx context.Context, pr *provider.PRInfo, fixable []Classification, deleted map[string]bool) {
	if len(deleted) == 0 {
		return
	}
	for _, c := range fixable {
		if c.Path == "" || !deleted[c.Path] {
			continue
		}
		body := fmt.Sprintf("The file `%s` was removed; this comment no longer applies.", c.Path)
		if o.opts.DryRun {
			slog.Info("dry run: skipping file-removed reply", "threadID", c.ThreadID, "path", c.Path)
			continue
		}
		if _, err := o.backend.ReplyToThread(ctx, pr, c.ThreadID, body); err != nil {
			slog.Warn("file-removed reply failed", "threadID", c.ThreadID, "path", c.Path, "error", err)
		}
	}
}

// resolveAll batch-resolves the fixable threads after all replies have
// landed, preserving the reply-then-resolve order a human reviewer sees.
// Failures are logged and non-fatal; the threads still count as fixed
// because the remote state is authoritative and may already be resolved.
func (o *Orchestrator) resolveAll(ctx context.Context, pr *provider.PRInfo, fixable []Classification) error {
	if o.opts.DryRun {
		slog.Info("dry run: skipping thread resolution", "threads", len(fixable))
		return nil
	}
	ids := make([]string, 0, len(fixable))
	for _, c := range fixable {
		ids = append(ids, c.ThreadID)
	}
	if err := o.backend.ResolveThreads(ctx, pr, ids); err != nil {
		slog.Warn("batch resolve failed, threads still counted as fixed", "threads", len(ids), "error", err)
		return err
	}
	return nil
}
