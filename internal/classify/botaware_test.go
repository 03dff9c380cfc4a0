package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotAwareBadges(t *testing.T) {
	c := NewBotAware()

	tests := []struct {
		name   string
		author string
		body   string
		want   Severity
	}{
		{"P0 badge", "coderabbitai[bot]", "P0: nil dereference in handler", SeverityBlocking},
		{"P1 badge", "coderabbitai", "⚠️ P1 potential data race", SeverityBlocking},
		{"P2 badge", "sonarqubecloud[bot]", "P2: duplicated literal", SeverityNitpick},
		{"red circle", "github-actions[bot]", "🔴 coverage dropped below threshold", SeverityBlocking},
		{"yellow circle", "coderabbitai[bot]", "🟡 long method, consider splitting", SeverityNitpick},
		{"orange circle", "coderabbitai[bot]", "🟠 magic number", SeverityNitpick},
		{"case-insensitive author", "CodeRabbitAI[bot]", "P1 unchecked error", SeverityBlocking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.author, tt.body))
		})
	}
}

// A badge from a human author carries no weight; text rules decide.
func TestBotAwareHumanAuthorIgnoresBadges(t *testing.T) {
	c := NewBotAware()

	assert.Equal(t, SeveritySuggestion, c.Classify("alice", "P1 is my preferred parking level"))
	assert.Equal(t, SeverityQuestion, c.Classify("alice", "🔴 why is this red?"))
}

func TestBotAwareUnbadgedBotFallsThrough(t *testing.T) {
	c := NewBotAware()

	assert.Equal(t, SeverityBlocking, c.Classify("coderabbitai[bot]", "This breaks the pagination logic"))
	assert.Equal(t, SeverityNitpick, c.Classify("coderabbitai[bot]", "nit: trailing whitespace"))
}

func TestBotAwareCustomAuthors(t *testing.T) {
	c := NewBotAware("reviewdog")

	// Custom list replaces the defaults entirely.
	assert.Equal(t, SeverityBlocking, c.Classify("reviewdog", "🔴 lint failure"))
	assert.Equal(t, SeveritySuggestion, c.Classify("coderabbitai[bot]", "P1 rename this field"))
}
