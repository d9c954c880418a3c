// internal/pipeline/dedup/filter.go
package dedup

import (
	"context"

	"lead-radar/internal/common/database"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/common/metrics"
	"lead-radar/internal/models"
)

// Tier names which dedup layer caught a duplicate.
const (
	TierExact   = "exact"
	TierSimilar = "similar"
)

// Searcher is the vector similarity backend.
type Searcher interface {
	MaxSimilarity(ctx context.Context, company string, embedding []float32) (float64, string, error)
	IndexEmbedding(ctx context.Context, lead *models.Lead) error
	DeleteEmbedding(ctx context.Context, id string) error
}

// Embedder produces the vector for a piece of lead text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LeadChecker answers whether a lead ID is already persisted.
type LeadChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Verdict is the outcome of a duplicate check.
type Verdict struct {
	Duplicate  bool
	Tier       string
	MatchID    string
	Similarity float64
	// Degraded marks a verdict reached while a dedup backend was down.
	// A degraded "not duplicate" may admit a near-duplicate, never the
	// other way around.
	Degraded bool
}

// Filter runs the two-tier duplicate check: exact identity first, then
// embedding similarity. The exact tier always wins over the similar tier.
type Filter struct {
	config *Config
	redis  *database.RedisClient
	store  LeadChecker
	search Searcher
	embed  Embedder
	logger logger.Logger
}

func NewFilter(cfg *Config, redis *database.RedisClient, store LeadChecker, search Searcher, embed Embedder, log logger.Logger) *Filter {
	return &Filter{
		config: cfg,
		redis:  redis,
		store:  store,
		search: search,
		embed:  embed,
		logger: log.WithFields(map[string]interface{}{"component": "dedup"}),
	}
}

// Check classifies a lead and, when it is new, claims its identity and
// indexes its embedding so later occurrences are caught. Within a batch the
// first occurrence wins: the Redis claim is atomic, so a second identical
// lead in the same cycle comes back as an exact duplicate.
func (f *Filter) Check(ctx context.Context, lead *models.Lead) (*Verdict, error) {
	verdict := &Verdict{}

	// Tier 1a: seen-key cache
	if f.redis != nil {
		claimed, err := f.redis.SetNX(ctx, lead.DedupKey(), 1, f.config.SeenTTL)
		if err != nil {
			f.logger.Warn("seen cache unavailable, falling through to store", map[string]interface{}{
				"leadId": lead.ID,
				"error":  err.Error(),
			})
			verdict.Degraded = true
		} else if !claimed {
			verdict.Duplicate = true
			verdict.Tier = TierExact
			verdict.MatchID = lead.ID
			metrics.LeadsDeduplicated.WithLabelValues(TierExact).Inc()
			return verdict, nil
		}
	}

	// Tier 1b: persisted identity
	if f.store != nil {
		exists, err := f.store.Exists(ctx, lead.ID)
		if err != nil {
			f.logger.Warn("store identity check unavailable", map[string]interface{}{
				"leadId": lead.ID,
				"error":  err.Error(),
			})
			verdict.Degraded = true
		} else if exists {
			verdict.Duplicate = true
			verdict.Tier = TierExact
			verdict.MatchID = lead.ID
			metrics.LeadsDeduplicated.WithLabelValues(TierExact).Inc()
			return verdict, nil
		}
	}

	// Tier 2: embedding similarity
	if f.search != nil && f.embed != nil {
		dup, err := f.checkSimilar(ctx, lead, verdict)
		if err != nil {
			f.logger.Warn("similarity check unavailable, admitting lead", map[string]interface{}{
				"leadId": lead.ID,
				"error":  err.Error(),
			})
			verdict.Degraded = true
			return verdict, nil
		}
		if dup {
			metrics.LeadsDeduplicated.WithLabelValues(TierSimilar).Inc()
			return verdict, nil
		}
	}

	return verdict, nil
}

// Discard removes the similarity-index entry for a lead that cleared the
// duplicate check but was dropped before review. The seen-key stays so the
// exact same article does not return on the next cycle; only reviewed leads
// should anchor similarity matches.
func (f *Filter) Discard(ctx context.Context, lead *models.Lead) {
	if f.search == nil {
		return
	}
	if err := f.search.DeleteEmbedding(ctx, lead.ID); err != nil {
		f.logger.Warn("failed to remove embedding for dropped lead", map[string]interface{}{
			"leadId": lead.ID,
			"error":  err.Error(),
		})
	}
}

func (f *Filter) checkSimilar(ctx context.Context, lead *models.Lead, verdict *Verdict) (bool, error) {
	if lead.Embedding == nil {
		text := lead.Company + " " + lead.Title + " " + lead.Description
		embedding, err := f.embed.Embed(ctx, text)
		if err != nil {
			return false, err
		}
		lead.Embedding = embedding
	}

	similarity, matchID, err := f.search.MaxSimilarity(ctx, lead.Company, lead.Embedding)
	if err != nil {
		return false, err
	}

	if similarity > f.config.SimilarityThreshold {
		verdict.Duplicate = true
		verdict.Tier = TierSimilar
		verdict.MatchID = matchID
		verdict.Similarity = similarity
		return true, nil
	}

	if err := f.search.IndexEmbedding(ctx, lead); err != nil {
		f.logger.Warn("failed to index embedding for new lead", map[string]interface{}{
			"leadId": lead.ID,
			"error":  err.Error(),
		})
		verdict.Degraded = true
	}
	return false, nil
}
