// internal/pipeline/dedup/config.go
package dedup

import (
	"time"

	"lead-radar/internal/common/config"
)

// Config holds settings for duplicate detection.
type Config struct {
	SimilarityThreshold float64
	SeenTTL             time.Duration
	Index               string
	VectorDimension     int
}

func NewConfig(cfg *config.Config) *Config {
	return &Config{
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
		SeenTTL:             config.GetSeconds(cfg.Database.Redis.SeenTTL),
		Index:               cfg.Database.Elasticsearch.LeadIndex,
		VectorDimension:     cfg.Pipeline.VectorDimension,
	}
}
