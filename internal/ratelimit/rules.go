package ratelimit

import (
	"errors"
	"time"

	"github.com/Nickdtt/ia-crm/pkg/config"
)

// Rules resolves configured limits for chat traffic.
type Rules struct {
	config config.LimitsConfig
}

// NewRules constructs rate limiting rules from configuration.
func NewRules(cfg config.LimitsConfig) *Rules {
	return &Rules{config: cfg}
}

// IsWhitelisted reports whether the session bypasses rate limits.
func (r *Rules) IsWhitelisted(sessionID string) bool {
	for _, id := range r.config.Whitelist {
		if id == sessionID {
			return true
		}
	}
	return false
}

// PerSessionLimit returns the message budget for one session.
func (r *Rules) PerSessionLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerSession)
}

// GlobalLimit returns the budget shared by all sessions.
func (r *Rules) GlobalLimit() (int, time.Duration, error) {
	return parseRule(r.config.Global)
}

func parseRule(rule config.RateRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
