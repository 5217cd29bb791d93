// Package ratelimit enforces fixed-window request limits per client key.
package ratelimit

import "time"

// Limit defines the request budget for one window.
// Zero values mean no limit.
type Limit struct {
	MaxRequests int           `yaml:"max_requests" mapstructure:"max_requests"`
	Window      time.Duration `yaml:"window" mapstructure:"window"`
}

// Enabled reports whether the limit is configured.
func (l Limit) Enabled() bool {
	return l.MaxRequests > 0 && l.Window > 0
}
