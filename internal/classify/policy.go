package classify

import "fmt"

// Scope selects which severities qualify for automated remediation.
type Scope int

const (
	// ScopeAll auto-fixes blocking issues and suggestions.
	ScopeAll Scope = iota
	// ScopeBugsOnly auto-fixes blocking issues only.
	ScopeBugsOnly
)

// ParseScope maps a CLI/config string to a Scope.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "all", "":
		return ScopeAll, nil
	case "bugs", "bugs-only":
		return ScopeBugsOnly, nil
	default:
		return ScopeAll, fmt.Errorf("unknown auto-fix scope %q (want \"all\" or \"bugs\")", s)
	}
}

func (s Scope) String() string {
	if s == ScopeBugsOnly {
		return "bugs"
	}
	return "all"
}

// Fixable reports whether a thread with the given severity qualifies for
// automated remediation under the scope. Questions and praise are never
// auto-fixable: they are surfaced for human attention.
func (s Scope) Fixable(sev Severity) bool {
	switch sev {
	case SeverityBlocking:
		return true
	case SeveritySuggestion:
		return s == ScopeAll
	default:
		return false
	}
}
