// internal/pipeline/score/pool.go
package score

import (
	"context"
	"sync"

	"lead-radar/internal/common/metrics"
	"lead-radar/internal/pipeline/ingest"

	"golang.org/x/time/rate"
)

// ScoreBatch evaluates a batch of articles on a bounded worker pool. The
// returned slice is index-aligned with the input regardless of completion
// order, so a batch is reproducible run to run. A failed article carries its
// error in Result.Err and never blocks the rest of the batch.
func (s *Scorer) ScoreBatch(ctx context.Context, articles []ingest.Article) []Result {
	workers := s.config.Workers
	if workers <= 0 {
		workers = 3
	}
	if workers > len(articles) {
		workers = len(articles)
	}

	out := make([]Result, len(articles))
	if len(articles) == 0 {
		return out
	}

	var limiter *rate.Limiter
	if s.config.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.config.RateLimitRPS), 1)
	}

	type job struct {
		idx     int
		article ingest.Article
	}

	jobs := make(chan job)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				out[j.idx] = s.scoreOne(ctx, j.article, limiter)
			}
		}()
	}

	for i, article := range articles {
		select {
		case jobs <- job{idx: i, article: article}:
		case <-ctx.Done():
			// Unscheduled slots become context errors
			for k := i; k < len(articles); k++ {
				out[k] = Result{Article: articles[k], Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return out
		}
	}
	close(jobs)
	wg.Wait()

	for _, res := range out {
		outcome := "scored"
		if res.Err != nil {
			outcome = "failed"
		}
		metrics.LeadsScored.WithLabelValues(outcome).Inc()
	}

	return out
}

func (s *Scorer) scoreOne(ctx context.Context, article ingest.Article, limiter *rate.Limiter) Result {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return Result{Article: article, Err: err}
		}
	}

	eval, err := s.Score(ctx, article)
	return Result{Article: article, Evaluation: eval, Err: err}
}
