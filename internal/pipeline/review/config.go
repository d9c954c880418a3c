// internal/pipeline/review/config.go
package review

import (
	"time"

	"lead-radar/internal/common/config"
)

// Config holds settings for the review queue.
type Config struct {
	RelevanceThreshold float64
	MaxRetries         int
	RetryDelay         time.Duration
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		RelevanceThreshold: cfg.Pipeline.RelevanceThreshold,
		MaxRetries:         cfg.Pipeline.MaxRetries,
		RetryDelay:         config.GetSeconds(cfg.Pipeline.RetryDelay),
	}
}
