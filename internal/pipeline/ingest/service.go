// internal/pipeline/ingest/service.go
package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"lead-radar/internal/common/errors"
	commonhttp "lead-radar/internal/common/http"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/common/metrics"
)

// validTimeRanges are the search windows the feed query accepts.
var validTimeRanges = map[string]bool{
	"1d":  true,
	"2d":  true,
	"3d":  true,
	"5d":  true,
	"7d":  true,
	"14d": true,
	"30d": true,
}

// ValidateTimeRange checks a search window value before it reaches the feed.
func ValidateTimeRange(timeRange string) error {
	if !validTimeRanges[timeRange] {
		return errors.NewInvalidTimeRangeError(timeRange)
	}
	return nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Service fetches company news from the Google News RSS feed.
type Service struct {
	config     *Config
	httpClient *commonhttp.Client
	logger     logger.Logger
}

func NewService(cfg *Config, log logger.Logger) *Service {
	return &Service{
		config:     cfg,
		httpClient: commonhttp.NewClient(cfg.Timeout),
		logger:     log.WithFields(map[string]interface{}{"component": "ingest"}),
	}
}

// FetchCompany pulls recent articles for one company, capped at
// MaxLeadsPerQuery entries.
func (s *Service) FetchCompany(ctx context.Context, company, timeRange string) ([]Article, error) {
	if timeRange == "" {
		timeRange = s.config.DefaultTimeRange
	}
	if err := ValidateTimeRange(timeRange); err != nil {
		return nil, err
	}

	feedURL := s.buildFeedURL(company, timeRange)

	req, err := http.NewRequest(http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, errors.NewFeedFetchFailedError(company, err)
	}

	resp, err := s.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.NewFeedFetchFailedError(company, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewFeedFetchFailedError(company, fmt.Errorf("feed returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewFeedFetchFailedError(company, err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, errors.NewFeedFetchFailedError(company, err)
	}

	articles := make([]Article, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if len(articles) >= s.config.MaxLeadsPerQuery {
			break
		}
		article := s.toArticle(company, item)
		if article.Title == "" || article.URL == "" {
			continue
		}
		articles = append(articles, article)
	}

	metrics.LeadsIngested.WithLabelValues(company).Add(float64(len(articles)))

	s.logger.Info("fetched company feed", map[string]interface{}{
		"company":   company,
		"timeRange": timeRange,
		"articles":  len(articles),
	})

	return articles, nil
}

// FetchPortfolio pulls articles for every company in the list. A failed
// company is recorded in Result.Failed and the rest of the fetch continues.
func (s *Service) FetchPortfolio(ctx context.Context, companies []string, timeRange string) (*Result, error) {
	if timeRange == "" {
		timeRange = s.config.DefaultTimeRange
	}
	if err := ValidateTimeRange(timeRange); err != nil {
		return nil, err
	}

	result := &Result{Failed: make(map[string]error)}
	for _, company := range companies {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		articles, err := s.FetchCompany(ctx, company, timeRange)
		if err != nil {
			s.logger.Warn("company feed failed, continuing", map[string]interface{}{
				"company": company,
				"error":   err.Error(),
			})
			result.Failed[company] = err
			continue
		}
		result.Articles = append(result.Articles, articles...)
	}

	return result, nil
}

func (s *Service) buildFeedURL(company, timeRange string) string {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s when:%s", company, timeRange))
	return fmt.Sprintf("%s/rss/search?%s", strings.TrimRight(s.config.FeedBaseURL, "/"), q.Encode())
}

func (s *Service) toArticle(company string, item rssItem) Article {
	source := strings.TrimSpace(item.Source.Name)
	if source == "" {
		source = "Google News"
	}

	return Article{
		Company:     company,
		Title:       html.UnescapeString(strings.TrimSpace(item.Title)),
		Description: cleanDescription(item.Description),
		URL:         strings.TrimSpace(item.Link),
		Source:      source,
		PublishedAt: parsePubDate(item.PubDate),
	}
}

// cleanDescription strips markup from a feed snippet and unescapes entities.
func cleanDescription(raw string) string {
	text := tagPattern.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

func parsePubDate(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
