// internal/pipeline/score/config.go
package score

import (
	"time"

	"lead-radar/internal/common/config"
)

// Config holds settings for the external scoring/embedding API.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	MaxRetries int
	RetryDelay time.Duration

	VectorDimension    int
	RelevanceThreshold float64

	Workers      int
	RateLimitRPS float64
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		BaseURL:            cfg.Scorer.BaseURL,
		APIKey:             cfg.Scorer.APIKey,
		Timeout:            config.GetDuration(cfg.Scorer.Timeout),
		MaxRetries:         cfg.Pipeline.MaxRetries,
		RetryDelay:         config.GetSeconds(cfg.Pipeline.RetryDelay),
		VectorDimension:    cfg.Pipeline.VectorDimension,
		RelevanceThreshold: cfg.Pipeline.RelevanceThreshold,
		Workers:            cfg.Pipeline.MaxConcurrentRequests,
		RateLimitRPS:       float64(cfg.Pipeline.MaxConcurrentRequests),
	}
}
