package config

import "time"

// Config is the top-level revloop configuration.
type Config struct {
	GitHub GitHubConfig `json:"github"`
	Loop   LoopConfig   `json:"loop"`
}

// GitHubConfig holds GitHub API settings.
type GitHubConfig struct {
	Token string `json:"token"`
	// Bots lists author logins treated as automated reviewers whose badge
	// tokens (P0/P1/P2, colored circles) override the text classifier.
	Bots []string `json:"bots"`
}

// LoopConfig holds orchestration loop settings.
type LoopConfig struct {
	MaxIterations int    `json:"max_iterations"`
	ReviewWait    string `json:"review_wait"`
	Scope         string `json:"scope"` // "all" or "bugs"
	FixLabel      string `json:"fix_label"`
}

// ParseReviewWait returns the reviewer wait as a time.Duration.
func (l LoopConfig) ParseReviewWait() time.Duration {
	d, err := time.ParseDuration(l.ReviewWait)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Loop: LoopConfig{
			MaxIterations: 5,
			ReviewWait:    "90s",
			Scope:         "all",
			FixLabel:      "address review feedback",
		},
	}
}
