package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBlocking(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name string
		body string
	}{
		{"security term", "This introduces a SQL injection vulnerability"},
		{"blocker word", "This is a blocker for the release"},
		{"must fix", "Must fix before merge"},
		{"breakage", "This breaks the login flow"},
		{"bug", "There's a bug in the retry logic"},
		{"crash", "This causes a crash when the list is empty"},
		{"failure", "The integration test fails with this change"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, SeverityBlocking, h.Classify("alice", tt.body))
		})
	}
}

func TestClassifyHedgeGuard(t *testing.T) {
	h := NewHeuristic()

	// A hedging verb followed by a risk word is advice, not a defect
	// report, and must never classify as blocking.
	tests := []struct {
		body string
		want Severity
	}{
		{"Consider adding error handling here", SeveritySuggestion},
		{"You could add a test for the failure case", SeveritySuggestion},
		{"I'd suggest guarding against this bug class", SeveritySuggestion},
		{"Maybe we should log the error instead?", SeverityQuestion},
		{"You should guard this call,\notherwise it fails on nil input.", SeveritySuggestion},
		{"Consider caching here.\nOtherwise every request hits the bug path.", SeveritySuggestion},
		{"I'd recommend a smaller lock scope.\n\nThe current one can fail under load.", SeveritySuggestion},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got := h.Classify("alice", tt.body)
			assert.NotEqual(t, SeverityBlocking, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyQuestion(t *testing.T) {
	h := NewHeuristic()

	tests := []string{
		"What happens when the token expires?",
		"why is this exported",
		"Could you explain the retry semantics",
		"Please clarify the ownership model",
	}

	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			assert.Equal(t, SeverityQuestion, h.Classify("alice", body))
		})
	}
}

func TestClassifyPraise(t *testing.T) {
	h := NewHeuristic()

	tests := []string{
		"Nice catch on the edge case handling",
		"lgtm",
		"Thanks for cleaning this up",
		"🎉",
	}

	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			assert.Equal(t, SeverityPraise, h.Classify("alice", body))
		})
	}
}

func TestClassifyNitpick(t *testing.T) {
	h := NewHeuristic()

	tests := []string{
		"nit: trailing whitespace",
		"Minor: inconsistent spacing in the struct literal",
		"typo in the doc comment",
		"optional: alphabetize imports",
	}

	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			assert.Equal(t, SeverityNitpick, h.Classify("alice", body))
		})
	}
}

func TestClassifySuggestionAndDefault(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name string
		body string
	}{
		{"advisory verb", "You might want to cache this lookup"},
		{"improvement word", "Refactor this into a helper"},
		{"no rule matches", "The widget frobnicates the bazzle"},
		{"empty body", ""},
		{"whitespace only", "   \n\t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, SeveritySuggestion, h.Classify("alice", tt.body))
		})
	}
}

// Priority is blocking > question > praise > nitpick > suggestion and is
// held invariant: a question mark plus a blocking keyword is blocking.
func TestClassifyPriorityOrder(t *testing.T) {
	h := NewHeuristic()

	tests := []struct {
		name string
		body string
		want Severity
	}{
		{"blocking beats question", "Doesn't this break the pagination?", SeverityBlocking},
		{"blocking beats praise", "Nice work, but this breaks the build", SeverityBlocking},
		{"blocking beats nitpick", "nit: this typo causes a crash in the parser", SeverityBlocking},
		{"question beats praise", "Great, but why is this synchronous?", SeverityQuestion},
		{"question beats nitpick", "Is this typo intentional?", SeverityQuestion},
		{"praise beats nitpick", "Nice fix for the typo", SeverityPraise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Classify("alice", tt.body))
		})
	}
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "blocking", SeverityBlocking.String())
	assert.Equal(t, "suggestion", SeveritySuggestion.String())
	assert.Equal(t, "nitpick", SeverityNitpick.String())
	assert.Equal(t, "question", SeverityQuestion.String())
	assert.Equal(t, "praise", SeverityPraise.String())
	assert.Equal(t, "unknown", SeverityUnknown.String())
}

func TestScopeFixable(t *testing.T) {
	tests := []struct {
		scope Scope
		sev   Severity
		want  bool
	}{
		{ScopeAll, SeverityBlocking, true},
		{ScopeAll, SeveritySuggestion, true},
		{ScopeAll, SeverityNitpick, false},
		{ScopeAll, SeverityQuestion, false},
		{ScopeAll, SeverityPraise, false},
		{ScopeBugsOnly, SeverityBlocking, true},
		{ScopeBugsOnly, SeveritySuggestion, false},
		{ScopeBugsOnly, SeverityQuestion, false},
	}

	for _, tt := range tests {
		t.Run(tt.scope.String()+"/"+tt.sev.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Fixable(tt.sev))
		})
	}
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("all")
	assert.NoError(t, err)
	assert.Equal(t, ScopeAll, s)

	s, err = ParseScope("")
	assert.NoError(t, err)
	assert.Equal(t, ScopeAll, s)

	s, err = ParseScope("bugs")
	assert.NoError(t, err)
	assert.Equal(t, ScopeBugsOnly, s)

	_, err = ParseScope("everything")
	assert.Error(t, err)
}
