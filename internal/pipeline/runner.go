// internal/pipeline/runner.go
package pipeline

import (
	"context"
	"time"

	"lead-radar/internal/common/config"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/common/metrics"
	"lead-radar/internal/common/observability"
	"lead-radar/internal/models"
	"lead-radar/internal/pipeline/dedup"
	"lead-radar/internal/pipeline/ingest"
	"lead-radar/internal/pipeline/score"
)

// Ingester fetches raw articles for a set of companies.
type Ingester interface {
	FetchPortfolio(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error)
}

// BatchScorer evaluates a batch of articles.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, articles []ingest.Article) []score.Result
}

// Deduper classifies a lead as new or duplicate.
type Deduper interface {
	Check(ctx context.Context, lead *models.Lead) (*dedup.Verdict, error)
	Discard(ctx context.Context, lead *models.Lead)
}

// Enqueuer admits scored leads into review.
type Enqueuer interface {
	Enqueue(ctx context.Context, lead *models.Lead) (bool, error)
}

// Summary reports what one scrape cycle did.
type Summary struct {
	Portfolio       string        `json:"portfolio"`
	Companies       int           `json:"companies"`
	Fetched         int           `json:"fetched"`
	FailedFeeds     int           `json:"failed_feeds"`
	ScoringFailures int           `json:"scoring_failures"`
	BelowThreshold  int           `json:"below_threshold"`
	Duplicates      int           `json:"duplicates"`
	Enqueued        int           `json:"enqueued"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

// Runner drives the scrape, score, dedup, enqueue cycle.
type Runner struct {
	portfolios map[string][]string
	interval   time.Duration
	timeRange  string

	ingester Ingester
	scorer   BatchScorer
	filter   Deduper
	queue    Enqueuer

	obs    *observability.Observability
	logger logger.Logger
}

func NewRunner(cfg *config.Config, ingester Ingester, scorer BatchScorer, filter Deduper, queue Enqueuer, obs *observability.Observability, log logger.Logger) *Runner {
	return &Runner{
		portfolios: cfg.Portfolios,
		interval:   config.GetSeconds(cfg.Pipeline.ScrapingInterval),
		timeRange:  cfg.Pipeline.DefaultTimeRange,
		ingester:   ingester,
		scorer:     scorer,
		filter:     filter,
		queue:      queue,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "runner"}),
	}
}

// Run executes one full cycle for a portfolio. Failures at the article level
// are counted, never fatal; the cycle only errors when nothing can proceed.
func (r *Runner) Run(ctx context.Context, portfolio string, companies []string, timeRange string) (*Summary, error) {
	if timeRange == "" {
		timeRange = r.timeRange
	}

	summary := &Summary{
		Portfolio: portfolio,
		Companies: len(companies),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt)
		metrics.PipelineRunDuration.WithLabelValues(portfolio).Observe(summary.Duration.Seconds())
		if r.obs != nil {
			r.obs.RecordRunDuration(ctx, summary.Duration, portfolio)
		}
	}()

	fetched, err := r.ingester.FetchPortfolio(ctx, companies, timeRange)
	if err != nil {
		return summary, err
	}
	summary.Fetched = len(fetched.Articles)
	summary.FailedFeeds = len(fetched.Failed)

	results := r.scorer.ScoreBatch(ctx, fetched.Articles)

	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if res.Err != nil {
			summary.ScoringFailures++
			continue
		}
		if !res.Evaluation.Relevant {
			summary.BelowThreshold++
			continue
		}

		lead := buildLead(portfolio, res.Article, res.Evaluation)

		if r.filter != nil {
			verdict, err := r.filter.Check(ctx, lead)
			if err != nil {
				summary.ScoringFailures++
				continue
			}
			if verdict.Duplicate {
				summary.Duplicates++
				r.recordLead(ctx, "duplicate")
				continue
			}
		}

		admitted, err := r.queue.Enqueue(ctx, lead)
		if err != nil {
			r.logger.Warn("enqueue persisted with errors", map[string]interface{}{
				"leadId": lead.ID,
				"error":  err.Error(),
			})
		}
		if admitted {
			summary.Enqueued++
			r.recordLead(ctx, "enqueued")
		} else {
			summary.BelowThreshold++
			r.recordLead(ctx, "dropped")
			if r.filter != nil {
				r.filter.Discard(ctx, lead)
			}
		}
	}

	r.logger.Info("scrape cycle finished", map[string]interface{}{
		"portfolio":   portfolio,
		"fetched":     summary.Fetched,
		"failedFeeds": summary.FailedFeeds,
		"duplicates":  summary.Duplicates,
		"enqueued":    summary.Enqueued,
	})
	return summary, nil
}

// RunAll executes one cycle per configured portfolio.
func (r *Runner) RunAll(ctx context.Context, timeRange string) ([]*Summary, error) {
	summaries := make([]*Summary, 0, len(r.portfolios))
	for portfolio, companies := range r.portfolios {
		summary, err := r.Run(ctx, portfolio, companies, timeRange)
		summaries = append(summaries, summary)
		if err != nil {
			if ctx.Err() != nil {
				return summaries, err
			}
			r.logger.Error("portfolio cycle failed", map[string]interface{}{
				"portfolio": portfolio,
				"error":     err.Error(),
			})
		}
	}
	return summaries, nil
}

// Start runs cycles on the configured interval until ctx is cancelled.
// The first cycle starts immediately.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.RunAll(ctx, ""); err != nil {
		r.logger.Error("initial cycle aborted", map[string]interface{}{"error": err.Error()})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunAll(ctx, ""); err != nil {
				r.logger.Error("scheduled cycle aborted", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (r *Runner) recordLead(ctx context.Context, status string) {
	if r.obs != nil {
		r.obs.RecordLeadProcessed(ctx, status)
	}
}

func buildLead(portfolio string, article ingest.Article, eval *score.Evaluation) *models.Lead {
	valueTypes := make([]models.ValueType, 0, len(eval.ValueTypes))
	for _, vt := range eval.ValueTypes {
		if vt == string(models.ValueNone) {
			continue
		}
		valueTypes = append(valueTypes, models.ValueType(vt))
	}

	return &models.Lead{
		ID:                   models.NewLeadID(article.URL, article.Company),
		Company:              article.Company,
		Portfolio:            portfolio,
		Title:                article.Title,
		Description:          article.Description,
		URL:                  article.URL,
		Source:               article.Source,
		PublishedAt:          article.PublishedAt,
		RelevanceScore:       eval.Score,
		RelevanceExplanation: eval.Explanation,
		IsValuable:           eval.Valuable,
		ValueTypes:           valueTypes,
		ActionItems:          eval.ActionItems,
		ValueExplanation:     eval.ValueExplanation,
		Status:               models.StatusPending,
		CreatedAt:            time.Now().UTC(),
	}
}
