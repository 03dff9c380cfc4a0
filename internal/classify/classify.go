// Package classify maps review comment text to a severity label used to
// decide whether a thread qualifies for automated remediation.
package classify

import (
	"regexp"
	"strings"
)

// Severity is the classifier's output label for a review comment.
type Severity int

const (
	// SeverityUnknown is the zero value, invalid, must not be used.
	SeverityUnknown Severity = iota
	// SeverityBlocking marks defect reports that must be fixed before merge.
	SeverityBlocking
	// SeveritySuggestion marks actionable improvement requests.
	SeveritySuggestion
	// SeverityNitpick marks minor style/typo remarks.
	SeverityNitpick
	// SeverityQuestion marks comments asking for clarification.
	SeverityQuestion
	// SeverityPraise marks positive, non-actionable comments.
	SeverityPraise
)

// String returns the lowercase label for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityBlocking:
		return "blocking"
	case SeveritySuggestion:
		return "suggestion"
	case SeverityNitpick:
		return "nitpick"
	case SeverityQuestion:
		return "question"
	case SeverityPraise:
		return "praise"
	default:
		return "unknown"
	}
}

// DefaultSeverity is the bucket for empty or unmatched comment bodies.
// Every comment is actionable unless proven otherwise, so unmatched input
// lands in the default suggestion bucket rather than being dropped.
const DefaultSeverity = SeveritySuggestion

// Classifier decides the severity of a review comment. Implementations
// must be pure: deterministic for a given input, no side effects.
type Classifier interface {
	// Classify returns the severity for a comment body. The author login
	// lets bot-aware implementations short-circuit on reviewer-bot badges;
	// text-only implementations ignore it.
	Classify(author, body string) Severity
}

// Rule evaluation order. First match wins; the order encodes intent:
// a comment that both asks a question and names a defect is a defect report.
var (
	// Hedging verb followed anywhere later by a risk word, across line
	// breaks. "Consider adding error handling" is advice, not a defect
	// report, so the blocking rule is suppressed when this matches.
	hedgedRiskPattern = regexp.MustCompile(`(?is)\b(consider|suggest|recommend|could|should|would|might)\b.*\b(error|bug|fail)`)

	securityPattern = regexp.MustCompile(`(?i)\b(security|vulnerabilit(y|ies)|exploit|injection)\b`)
	blockerPattern  = regexp.MustCompile(`(?i)\b(critical|blocker|blocking|must fix|required|mandatory)\b`)
	breakagePattern = regexp.MustCompile(`(?i)\b(breaks?|broken|bug|causes? (a )?(crash|error))\b`)
	failurePattern  = regexp.MustCompile(`(?i)\b(fails?|failed|failure)\b`)

	interrogativePattern = regexp.MustCompile(`(?i)^\s*(why|how|what|when|where|which)\b`)
	politeAskPattern     = regexp.MustCompile(`(?i)\b(could|can|would) you\b`)
	clarifyPattern       = regexp.MustCompile(`(?i)\b(explain|clarify)\b`)

	positivePattern = regexp.MustCompile(`(?i)\b(nice|good|great|excellent|love|awesome)\b`)
	ackPattern      = regexp.MustCompile(`(?i)\b(thanks?|lgtm|looks good|well done|good job)\b`)

	minimizerPattern = regexp.MustCompile(`(?i)\b(nit|nitpick|minor|small|tiny)\b`)
	stylePattern     = regexp.MustCompile(`(?i)\b(style|formatting|whitespace|spacing|typo|spelling|optional)\b`)

	advisoryPattern    = regexp.MustCompile(`(?i)\b(suggest|recommend|could|should|would|might)\b`)
	improvementPattern = regexp.MustCompile(`(?i)\b(improve|better|consider|instead|refactor|simplify|optimize)\b`)
)

// positiveEmoji is the fixed set recognized by the praise rule.
var positiveEmoji = []string{"👍", "🎉", "❤️", "🚀", "💯", "✨"}

// Heuristic is the default Classifier: ordered keyword/regex rules over
// the comment body. Author identity is ignored.
type Heuristic struct{}

// NewHeuristic returns the default text-only classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Classify implements Classifier.
func (h *Heuristic) Classify(_, body string) Severity {
	return classifyText(body)
}

// classifyText runs the ordered text rules. Priority is held invariant:
// blocking > question > praise > nitpick > suggestion.
func classifyText(body string) Severity {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return DefaultSeverity
	}

	hedged := hedgedRiskPattern.MatchString(trimmed)
	if !hedged && isBlocking(trimmed) {
		return SeverityBlocking
	}
	if isQuestion(trimmed) {
		return SeverityQuestion
	}
	if isPraise(trimmed) {
		return SeverityPraise
	}
	if isNitpick(trimmed) {
		return SeverityNitpick
	}
	if advisoryPattern.MatchString(trimmed) || improvementPattern.MatchString(trimmed) {
		return SeveritySuggestion
	}
	return DefaultSeverity
}

func isBlocking(body string) bool {
	return securityPattern.MatchString(body) ||
		blockerPattern.MatchString(body) ||
		breakagePattern.MatchString(body) ||
		failurePattern.MatchString(body)
}

func isQuestion(body string) bool {
	return strings.Contains(body, "?") ||
		interrogativePattern.MatchString(body) ||
		politeAskPattern.MatchString(body) ||
		clarifyPattern.MatchString(body)
}

func isPraise(body string) bool {
	if positivePattern.MatchString(body) || ackPattern.MatchString(body) {
		return true
	}
	for _, e := range positiveEmoji {
		if strings.Contains(body, e) {
			return true
		}
	}
	return false
}

func isNitpick(body string) bool {
	return minimizerPattern.MatchString(body) || stylePattern.MatchString(body)
}
