// internal/pipeline/ingest/config.go
package ingest

import (
	"time"

	"lead-radar/internal/common/config"
)

const defaultFeedBaseURL = "https://news.google.com"

// Config holds settings for the news feed scraper.
type Config struct {
	FeedBaseURL      string
	MaxLeadsPerQuery int
	DefaultTimeRange string
	Timeout          time.Duration
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		FeedBaseURL:      defaultFeedBaseURL,
		MaxLeadsPerQuery: cfg.Pipeline.MaxLeadsPerQuery,
		DefaultTimeRange: cfg.Pipeline.DefaultTimeRange,
		Timeout:          10 * time.Second,
	}
}
