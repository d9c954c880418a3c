// internal/pipeline/runner_test.go
package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lead-radar/internal/common/config"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/models"
	"lead-radar/internal/pipeline/dedup"
	"lead-radar/internal/pipeline/ingest"
	"lead-radar/internal/pipeline/score"
)

// ==========================
// Mocks
// ==========================

type MockIngester struct {
	FetchPortfolioFunc func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error)
	Calls              int
}

func (m *MockIngester) FetchPortfolio(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
	m.Calls++
	return m.FetchPortfolioFunc(ctx, companies, timeRange)
}

type MockScorer struct {
	ScoreBatchFunc func(ctx context.Context, articles []ingest.Article) []score.Result
}

func (m *MockScorer) ScoreBatch(ctx context.Context, articles []ingest.Article) []score.Result {
	return m.ScoreBatchFunc(ctx, articles)
}

type MockDeduper struct {
	CheckFunc func(ctx context.Context, lead *models.Lead) (*dedup.Verdict, error)
	Discarded []string
}

func (m *MockDeduper) Check(ctx context.Context, lead *models.Lead) (*dedup.Verdict, error) {
	return m.CheckFunc(ctx, lead)
}

func (m *MockDeduper) Discard(ctx context.Context, lead *models.Lead) {
	m.Discarded = append(m.Discarded, lead.ID)
}

type MockEnqueuer struct {
	EnqueueFunc func(ctx context.Context, lead *models.Lead) (bool, error)
	Enqueued    []*models.Lead
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, lead *models.Lead) (bool, error) {
	admitted, err := m.EnqueueFunc(ctx, lead)
	if admitted {
		m.Enqueued = append(m.Enqueued, lead)
	}
	return admitted, err
}

// ==========================
// Helpers
// ==========================

func testLogger() logger.Logger {
	return logger.NewZapAdapter(zap.NewNop())
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.ScrapingInterval = 3600
	cfg.Pipeline.DefaultTimeRange = "7d"
	cfg.Portfolios = map[string][]string{
		"growth": {"Acme", "Globex"},
	}
	return cfg
}

func article(company, title string) ingest.Article {
	return ingest.Article{
		Company:     company,
		Title:       title,
		Description: title + " details",
		URL:         "https://news.example.com/" + title,
		Source:      "Example Wire",
		PublishedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func relevant(a ingest.Article, scoreVal float64) score.Result {
	return score.Result{
		Article: a,
		Evaluation: &score.Evaluation{
			Relevant:    true,
			Score:       scoreVal,
			Valuable:    true,
			ValueTypes:  []string{"funding_round"},
			ActionItems: []string{"reach out"},
		},
	}
}

func newTestRunner(ing Ingester, sc BatchScorer, ded Deduper, q Enqueuer) *Runner {
	return NewRunner(testConfig(), ing, sc, ded, q, nil, testLogger())
}

// ==========================
// Tests
// ==========================

func TestRun_HappyPath(t *testing.T) {
	a1 := article("Acme", "acme-raises-series-b")
	a2 := article("Globex", "globex-new-cto")

	ingester := &MockIngester{
		FetchPortfolioFunc: func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
			assert.Equal(t, "7d", timeRange)
			return &ingest.Result{Articles: []ingest.Article{a1, a2}}, nil
		},
	}
	scorer := &MockScorer{
		ScoreBatchFunc: func(ctx context.Context, articles []ingest.Article) []score.Result {
			return []score.Result{relevant(a1, 0.9), relevant(a2, 0.7)}
		},
	}
	deduper := &MockDeduper{
		CheckFunc: func(ctx context.Context, lead *models.Lead) (*dedup.Verdict, error) {
			return &dedup.Verdict{}, nil
		},
	}
	queue := &MockEnqueuer{
		EnqueueFunc: func(ctx context.Context, lead *models.Lead) (bool, error) {
			return true, nil
		},
	}

	runner := newTestRunner(ingester, scorer, deduper, queue)
	summary, err := runner.Run(context.Background(), "growth", []string{"Acme", "Globex"}, "")

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 2, summary.Enqueued)
	assert.Equal(t, 0, summary.Duplicates)
	require.Len(t, queue.Enqueued, 2)

	lead := queue.Enqueued[0]
	assert.Equal(t, models.NewLeadID(a1.URL, a1.Company), lead.ID)
	assert.Equal(t, "growth", lead.Portfolio)
	assert.Equal(t, models.StatusPending, lead.Status)
	assert.Equal(t, []models.ValueType{models.ValueType("funding_round")}, lead.ValueTypes)
}

func TestRun_SkipsIrrelevantWithoutDedup(t *testing.T) {
	a := article("Acme", "acme-office-party")

	ingester := &MockIngester{
		FetchPortfolioFunc: func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
			return &ingest.Result{Articles: []ingest.Article{a}}, nil
		},
	}
	scorer := &MockScorer{
		ScoreBatchFunc: func(ctx context.Context, articles []ingest.Article) []score.Result {
			return []score.Result{{Article: a, Evaluation: &score.Evaluation{Relevant: false}}}
		},
	}
	dedupCalls := 0
	deduper := &MockDeduper{
		CheckFunc: func(ctx context.Context, lead *models.Lead) (*dedup.Verdict, error) {
			dedupCalls++
			return &dedup.Verdict{}, nil
		},
	}
	queue := &MockEnqueuer{
		EnqueueFunc: func(ctx context.Context, lead *models.Lead) (bool, error) { return true, nil },
	}

	runner := newTestRunner(ingester, scorer, deduper, queue)
	summary, err := runner.Run(context.Background(), "growth", []string{"Acme"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, summary.BelowThreshold)
	assert.Equal(t, 0, summary.Enqueued)
	assert.Equal(t, 0, dedupCalls)
}

func TestRun_CountsDuplicates(t *testing.T) {
	a := article("Acme", "acme-raises-series-b")

	ingester := &MockIngester{
		FetchPortfolioFunc: func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
			return &ingest.Result{Articles: []ingest.Article{a, a}}, nil
		},
	}
	scorer := &MockScorer{
		ScoreBatchFunc: func(ctx context.Context, articles []ingest.Article) []score.Result {
			return []score.Result{relevant(a, 0.9), relevant(a, 0.9)}
		},
	}
	seen := map[string]bool{}
	deduper := &MockDeduper{
		CheckFunc: func(ctx context.Context, lead *models.Lead) (*dedup.Verdict, error) {
			if seen[lead.ID] {
				return &dedup.Verdict{Duplicate: true, Tier: dedup.TierExact, MatchID: lead.ID}, nil
			}
			seen[lead.ID] = true
			return &dedup.Verdict{}, nil
		},
	}
	queue := &MockEnqueuer{
		EnqueueFunc: func(ctx context.Context, lead *models.Lead) (bool, error) { return true, nil },
	}

	runner := newTestRunner(ingester, scorer, deduper, queue)
	summary, err := runner.Run(context.Background(), "growth", []string{"Acme"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Enqueued)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestRun_ScoringFailuresDoNotAbortCycle(t *testing.T) {
	a1 := article("Acme", "acme-raises-series-b")
	a2 := article("Globex", "globex-new-cto")

	ingester := &MockIngester{
		FetchPortfolioFunc: func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
			return &ingest.Result{Articles: []ingest.Article{a1, a2}}, nil
		},
	}
	scorer := &MockScorer{
		ScoreBatchFunc: func(ctx context.Context, articles []ingest.Article) []score.Result {
			return []score.Result{
				{Article: a1, Err: errors.New("scorer unavailable")},
				relevant(a2, 0.8),
			}
		},
	}
	queue := &MockEnqueuer{
		EnqueueFunc: func(ctx context.Context, lead *models.Lead) (bool, error) { return true, nil },
	}

	runner := newTestRunner(ingester, scorer, nil, queue)
	summary, err := runner.Run(context.Background(), "growth", []string{"Acme", "Globex"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ScoringFailures)
	assert.Equal(t, 1, summary.Enqueued)
}

func TestRun_FetchErrorIsFatal(t *testing.T) {
	ingester := &MockIngester{
		FetchPortfolioFunc: func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
			return nil, errors.New("dns failure")
		},
	}
	runner := newTestRunner(ingester, &MockScorer{}, nil, &MockEnqueuer{})

	_, err := runner.Run(context.Background(), "growth", []string{"Acme"}, "")
	require.Error(t, err)
}

func TestRun_RejectedByQueueCountsAsBelowThreshold(t *testing.T) {
	a := article("Acme", "acme-minor-mention")

	ingester := &MockIngester{
		FetchPortfolioFunc: func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
			return &ingest.Result{Articles: []ingest.Article{a}}, nil
		},
	}
	scorer := &MockScorer{
		ScoreBatchFunc: func(ctx context.Context, articles []ingest.Article) []score.Result {
			return []score.Result{relevant(a, 0.3)}
		},
	}
	queue := &MockEnqueuer{
		EnqueueFunc: func(ctx context.Context, lead *models.Lead) (bool, error) { return false, nil },
	}
	deduper := &MockDeduper{
		CheckFunc: func(ctx context.Context, lead *models.Lead) (*dedup.Verdict, error) {
			return &dedup.Verdict{}, nil
		},
	}

	runner := newTestRunner(ingester, scorer, deduper, queue)
	summary, err := runner.Run(context.Background(), "growth", []string{"Acme"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, summary.BelowThreshold)
	assert.Equal(t, 0, summary.Enqueued)

	// The dropped lead's embedding leaves the similarity index.
	require.Len(t, deduper.Discarded, 1)
	assert.Equal(t, models.NewLeadID(a.URL, a.Company), deduper.Discarded[0])
}

func TestRunAll_CoversEveryPortfolio(t *testing.T) {
	ingester := &MockIngester{
		FetchPortfolioFunc: func(ctx context.Context, companies []string, timeRange string) (*ingest.Result, error) {
			return &ingest.Result{}, nil
		},
	}
	scorer := &MockScorer{
		ScoreBatchFunc: func(ctx context.Context, articles []ingest.Article) []score.Result { return nil },
	}
	runner := newTestRunner(ingester, scorer, nil, &MockEnqueuer{
		EnqueueFunc: func(ctx context.Context, lead *models.Lead) (bool, error) { return true, nil },
	})

	summaries, err := runner.RunAll(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, 1, ingester.Calls)
}

func TestBuildLead_StripsNoneValueType(t *testing.T) {
	a := article("Acme", "acme-raises-series-b")
	lead := buildLead("growth", a, &score.Evaluation{
		Relevant:   true,
		Score:      0.9,
		Valuable:   true,
		ValueTypes: []string{"funding_round", "none"},
	})

	assert.Equal(t, []models.ValueType{models.ValueType("funding_round")}, lead.ValueTypes)
}
