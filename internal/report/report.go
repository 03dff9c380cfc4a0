package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/revloop/revloop/internal/loop"
)

// Run is one persisted run report.
type Run struct {
	ID           string   // {owner}__{repo}__{pr}__{timestamp}
	Owner        string   `yaml:"owner"`
	Repo         string   `yaml:"repo"`
	PR           int      `yaml:"pr"`
	Status       string   `yaml:"status"`
	Iterations   int      `yaml:"iterations"`
	TotalFixed   int      `yaml:"total_fixed"`
	TotalSkipped int      `yaml:"total_skipped"`
	Remaining    int      `yaml:"remaining"`
	PublishRefs  []string `yaml:"publish_refs"`
	DryRun       bool     `yaml:"dry_run"`
	FinishedAt   string   `yaml:"finished_at"`
	Body         string   `yaml:"-"`
}

// Dir returns the run-report storage directory.
func Dir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			slog.Error("cannot determine home directory; set $HOME or $XDG_DATA_HOME", "error", err)
			os.Exit(1)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "revloop", "runs")
}

func runPath(id string) string {
	return filepath.Join(Dir(), id+".md")
}

// NewRun builds a report from a finished RunResult.
func NewRun(owner, repo string, pr int, dryRun bool, result *loop.RunResult) *Run {
	now := time.Now().UTC()
	r := &Run{
		ID:           fmt.Sprintf("%s__%s__%d__%s", owner, repo, pr, now.Format("20060102T150405Z")),
		Owner:        owner,
		Repo:         repo,
		PR:           pr,
		Status:       result.Status.String(),
		Iterations:   result.Iterations,
		TotalFixed:   result.TotalFixed,
		TotalSkipped: result.TotalSkipped,
		Remaining:    result.Remaining,
		PublishRefs:  result.PublishRefs,
		DryRun:       dryRun,
		FinishedAt:   now.Format(time.RFC3339),
	}
	r.Body = renderBody(r, result)
	return r
}

// Save writes the report under the runs directory, guarded by a file lock.
func Save(r *Run) error {
	fm := map[string]any{
		"owner":         r.Owner,
		"repo":          r.Repo,
		"pr":            r.PR,
		"status":        r.Status,
		"iterations":    r.Iterations,
		"total_fixed":   r.TotalFixed,
		"total_skipped": r.TotalSkipped,
		"remaining":     r.Remaining,
		"publish_refs":  r.PublishRefs,
		"dry_run":       r.DryRun,
		"finished_at":   r.FinishedAt,
	}
	doc := &document{Frontmatter: fm, Body: r.Body}

	path := runPath(r.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating runs directory: %w", err)
	}
	return withLock(path, defaultLockTimeout, func() error {
		return writeDocument(path, doc)
	})
}

// Load reads one report by ID.
func Load(id string) (*Run, error) {
	doc, err := readDocument(runPath(id))
	if err != nil {
		return nil, err
	}
	r := &Run{ID: id, Body: doc.Body}
	r.Owner = getString(doc.Frontmatter, "owner")
	r.Repo = getString(doc.Frontmatter, "repo")
	r.PR = getInt(doc.Frontmatter, "pr")
	r.Status = getString(doc.Frontmatter, "status")
	r.Iterations = getInt(doc.Frontmatter, "iterations")
	r.TotalFixed = getInt(doc.Frontmatter, "total_fixed")
	r.TotalSkipped = getInt(doc.Frontmatter, "total_skipped")
	r.Remaining = getInt(doc.Frontmatter, "remaining")
	r.PublishRefs = getStringSlice(doc.Frontmatter, "publish_refs")
	r.DryRun = doc.Frontmatter["dry_run"] == true
	r.FinishedAt = getString(doc.Frontmatter, "finished_at")
	return r, nil
}

// List returns all run reports, newest first.
func List() ([]*Run, error) {
	entries, err := os.ReadDir(Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var runs []*Run
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".md")
		r, err := Load(id)
		if err != nil {
			slog.Warn("failed to load run report", "file", entry.Name(), "error", err)
			continue
		}
		runs = append(runs, r)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].FinishedAt > runs[j].FinishedAt
	})
	return runs, nil
}

// renderBody produces the human-readable report body.
func renderBody(r *Run, result *loop.RunResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Run report: %s/%s#%d\n\n", r.Owner, r.Repo, r.PR))
	sb.WriteString(fmt.Sprintf("- **Status**: %s\n", r.Status))
	sb.WriteString(fmt.Sprintf("- **Iterations**: %d\n", r.Iterations))
	sb.WriteString(fmt.Sprintf("- **Fixed**: %d\n", r.TotalFixed))
	sb.WriteString(fmt.Sprintf("- **Skipped**: %d\n", r.TotalSkipped))
	sb.WriteString(fmt.Sprintf("- **Remaining open threads**: %d\n", r.Remaining))
	if len(r.PublishRefs) > 0 {
		sb.WriteString(fmt.Sprintf("- **Commits**: %s\n", strings.Join(r.PublishRefs, ", ")))
	}
	if result.Err != nil {
		sb.WriteString(fmt.Sprintf("- **Failure**: %v\n", result.Err))
	}
	if r.DryRun {
		sb.WriteString("\nDry run: no commits, replies, or resolutions were actually issued.\n")
	}
	return sb.String()
}
