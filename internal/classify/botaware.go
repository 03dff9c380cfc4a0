package classify

import (
	"regexp"
	"strings"
)

// BotAware wraps the text heuristic with a badge path for known automated
// reviewers. Bot badges are fixed tokens (P0/P1/P2, colored-circle markers)
// and take priority over every text rule.
type BotAware struct {
	text *Heuristic
	// bots holds lowercase author logins treated as automated reviewers.
	bots map[string]bool
}

// DefaultBotAuthors are the reviewer-bot logins recognized out of the box.
var DefaultBotAuthors = []string{
	"coderabbitai", "coderabbitai[bot]",
	"sonarqubecloud", "sonarqubecloud[bot]",
	"github-actions[bot]",
}

// NewBotAware returns a classifier that short-circuits on bot badges for
// the given author logins before falling back to the text heuristic.
// With no authors, DefaultBotAuthors is used.
func NewBotAware(botAuthors ...string) *BotAware {
	if len(botAuthors) == 0 {
		botAuthors = DefaultBotAuthors
	}
	bots := make(map[string]bool, len(botAuthors))
	for _, a := range botAuthors {
		bots[strings.ToLower(a)] = true
	}
	return &BotAware{text: NewHeuristic(), bots: bots}
}

var priorityBadgePattern = regexp.MustCompile(`\bP([012])\b`)

// Circle markers used by reviewer bots to badge finding severity.
const (
	redCircle    = "\U0001F534" // 🔴
	yellowCircle = "\U0001F7E1" // 🟡
	orangeCircle = "\U0001F7E0" // 🟠
)

// Classify implements Classifier. For bot authors the badge decides:
// P0/P1 or a red circle is blocking, P2 or a yellow/orange circle is a
// nitpick. Unbadged bot comments and human comments go through the text
// rules.
func (b *BotAware) Classify(author, body string) Severity {
	if b.bots[strings.ToLower(author)] {
		if sev, ok := badgeSeverity(body); ok {
			return sev
		}
	}
	return b.text.Classify(author, body)
}

func badgeSeverity(body string) (Severity, bool) {
	if m := priorityBadgePattern.FindStringSubmatch(body); m != nil {
		switch m[1] {
		case "0", "1":
			return SeverityBlocking, true
		case "2":
			return SeverityNitpick, true
		}
	}
	if strings.Contains(body, redCircle) {
		return SeverityBlocking, true
	}
	if strings.Contains(body, yellowCircle) || strings.Contains(body, orangeCircle) {
		return SeverityNitpick, true
	}
	return SeverityUnknown, false
}
