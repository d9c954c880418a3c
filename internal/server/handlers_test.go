// internal/server/handlers_test.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lead-radar/internal/common/config"
	"lead-radar/internal/common/errors"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/models"
	"lead-radar/internal/pipeline"
	"lead-radar/internal/pipeline/review"
)

// ==========================
// Mocks
// ==========================

type MockQueue struct {
	PendingFunc            func(ctx context.Context) []*models.Lead
	GetFunc                func(ctx context.Context, id string) (*models.Lead, error)
	DecideFunc             func(ctx context.Context, id string, decision review.Decision) (*review.Outcome, error)
	ResendNotificationFunc func(ctx context.Context, id string) (*review.Outcome, error)
	Limited                bool
}

func (m *MockQueue) Pending(ctx context.Context) []*models.Lead {
	if m.PendingFunc == nil {
		return nil
	}
	return m.PendingFunc(ctx)
}

func (m *MockQueue) Get(ctx context.Context, id string) (*models.Lead, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockQueue) Decide(ctx context.Context, id string, decision review.Decision) (*review.Outcome, error) {
	return m.DecideFunc(ctx, id, decision)
}

func (m *MockQueue) ResendNotification(ctx context.Context, id string) (*review.Outcome, error) {
	return m.ResendNotificationFunc(ctx, id)
}

func (m *MockQueue) LimitedMode() bool { return m.Limited }

type MockScraper struct {
	RunFunc    func(ctx context.Context, portfolio string, companies []string, timeRange string) (*pipeline.Summary, error)
	RunAllFunc func(ctx context.Context, timeRange string) ([]*pipeline.Summary, error)
}

func (m *MockScraper) Run(ctx context.Context, portfolio string, companies []string, timeRange string) (*pipeline.Summary, error) {
	return m.RunFunc(ctx, portfolio, companies, timeRange)
}

func (m *MockScraper) RunAll(ctx context.Context, timeRange string) ([]*pipeline.Summary, error) {
	return m.RunAllFunc(ctx, timeRange)
}

type MockRecent struct {
	RecentFunc func(ctx context.Context, company string, limit int) ([]*models.Lead, error)
}

func (m *MockRecent) Recent(ctx context.Context, company string, limit int) ([]*models.Lead, error) {
	return m.RecentFunc(ctx, company, limit)
}

// ==========================
// Helpers
// ==========================

func testLogger() logger.Logger {
	return logger.NewZapAdapter(zap.NewNop())
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Portfolios = map[string][]string{
		"growth": {"Acme", "Globex"},
	}
	return cfg
}

func testLead(id string) *models.Lead {
	return &models.Lead{
		ID:             id,
		Company:        "Acme",
		Title:          "Acme raises Series B",
		URL:            "https://news.example.com/acme",
		RelevanceScore: 0.9,
		Status:         models.StatusPending,
		CreatedAt:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(queue ReviewQueue, scraper Scraper, recent RecentLister) *Server {
	return New(testConfig(), queue, scraper, recent, testLogger())
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

// ==========================
// Tests
// ==========================

func TestHandlePending(t *testing.T) {
	queue := &MockQueue{
		PendingFunc: func(ctx context.Context) []*models.Lead {
			return []*models.Lead{testLead("lead-1"), testLead("lead-2")}
		},
	}
	s := newTestServer(queue, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/leads/pending", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Leads []*models.Lead `json:"leads"`
		Count int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "lead-1", resp.Leads[0].ID)
}

func TestHandleGetLead_NotFound(t *testing.T) {
	queue := &MockQueue{
		GetFunc: func(ctx context.Context, id string) (*models.Lead, error) {
			return nil, errors.NewLeadNotFoundError(id)
		},
	}
	s := newTestServer(queue, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/leads/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "LEAD_NOT_FOUND")
}

func TestHandleDecision_Approve(t *testing.T) {
	queue := &MockQueue{
		DecideFunc: func(ctx context.Context, id string, decision review.Decision) (*review.Outcome, error) {
			assert.Equal(t, "lead-1", id)
			assert.Equal(t, review.DecisionApprove, decision)
			lead := testLead(id)
			lead.Status = models.StatusApproved
			return &review.Outcome{Lead: lead, Decision: decision, Notified: true, Persisted: true}, nil
		},
	}
	s := newTestServer(queue, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/leads/lead-1/decision", `{"decision":"approve"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp outcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Notified)
	assert.Empty(t, resp.NotifyError)
}

func TestHandleDecision_InvalidDecision(t *testing.T) {
	s := newTestServer(&MockQueue{}, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/leads/lead-1/decision", `{"decision":"maybe"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDecision_AlreadyDecided(t *testing.T) {
	queue := &MockQueue{
		DecideFunc: func(ctx context.Context, id string, decision review.Decision) (*review.Outcome, error) {
			return nil, errors.NewLeadAlreadyDecidedError(id, string(models.StatusApproved))
		},
	}
	s := newTestServer(queue, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/leads/lead-1/decision", `{"decision":"reject"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "LEAD_ALREADY_DECIDED")
}

func TestHandleDecision_NotifyFailureReturnsAccepted(t *testing.T) {
	queue := &MockQueue{
		DecideFunc: func(ctx context.Context, id string, decision review.Decision) (*review.Outcome, error) {
			lead := testLead(id)
			lead.Status = models.StatusApproved
			return &review.Outcome{
				Lead:      lead,
				Decision:  decision,
				Notified:  false,
				Persisted: true,
				NotifyErr: errors.NewNotificationSendFailedError("slack", assert.AnError),
			}, nil
		},
	}
	s := newTestServer(queue, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/leads/lead-1/decision", `{"decision":"approve"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp outcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Notified)
	assert.NotEmpty(t, resp.NotifyError)
}

func TestHandleResend(t *testing.T) {
	queue := &MockQueue{
		ResendNotificationFunc: func(ctx context.Context, id string) (*review.Outcome, error) {
			lead := testLead(id)
			lead.Status = models.StatusApproved
			lead.NotificationSent = true
			return &review.Outcome{Lead: lead, Decision: review.DecisionApprove, Notified: true, Persisted: true}, nil
		},
	}
	s := newTestServer(queue, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/leads/lead-1/resend", "")

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleScrape_SinglePortfolio(t *testing.T) {
	scraper := &MockScraper{
		RunFunc: func(ctx context.Context, portfolio string, companies []string, timeRange string) (*pipeline.Summary, error) {
			assert.Equal(t, "growth", portfolio)
			assert.Equal(t, []string{"Acme", "Globex"}, companies)
			assert.Equal(t, "3d", timeRange)
			return &pipeline.Summary{Portfolio: portfolio, Enqueued: 2}, nil
		},
	}
	s := newTestServer(&MockQueue{}, scraper, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/scrape", `{"portfolio":"growth","time_range":"3d"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enqueued":2`)
}

func TestHandleScrape_UnknownPortfolio(t *testing.T) {
	s := newTestServer(&MockQueue{}, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/scrape", `{"portfolio":"nope"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleScrape_InvalidTimeRange(t *testing.T) {
	s := newTestServer(&MockQueue{}, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/scrape", `{"time_range":"90d"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TIME_RANGE")
}

func TestHandleScrape_EmptyBodyRunsAll(t *testing.T) {
	called := false
	scraper := &MockScraper{
		RunAllFunc: func(ctx context.Context, timeRange string) ([]*pipeline.Summary, error) {
			called = true
			return []*pipeline.Summary{{Portfolio: "growth"}}, nil
		},
	}
	s := newTestServer(&MockQueue{}, scraper, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/scrape", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestHandleRecent_LimitedMode(t *testing.T) {
	s := newTestServer(&MockQueue{Limited: true}, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/leads/recent", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleRecent_PassesLimit(t *testing.T) {
	recent := &MockRecent{
		RecentFunc: func(ctx context.Context, company string, limit int) ([]*models.Lead, error) {
			assert.Equal(t, "Acme", company)
			assert.Equal(t, 10, limit)
			return []*models.Lead{testLead("lead-1")}, nil
		},
	}
	s := newTestServer(&MockQueue{}, &MockScraper{}, recent)

	rec := doRequest(t, s, http.MethodGet, "/api/leads/recent?company=Acme&limit=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRecent_RejectsBadLimit(t *testing.T) {
	recent := &MockRecent{
		RecentFunc: func(ctx context.Context, company string, limit int) ([]*models.Lead, error) {
			return nil, nil
		},
	}
	s := newTestServer(&MockQueue{}, &MockScraper{}, recent)

	rec := doRequest(t, s, http.MethodGet, "/api/leads/recent?limit=zero", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompanies(t *testing.T) {
	s := newTestServer(&MockQueue{}, &MockScraper{}, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/companies", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "growth")
	assert.Contains(t, rec.Body.String(), "Acme")
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&MockQueue{}, &MockScraper{}, nil)
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	limited := newTestServer(&MockQueue{Limited: true}, &MockScraper{}, nil)
	rec = doRequest(t, limited, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "limited")
}
