// internal/pipeline/score/scorer.go
package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lead-radar/internal/common/errors"
	commonhttp "lead-radar/internal/common/http"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/common/metrics"
	"lead-radar/internal/common/retry"
	"lead-radar/internal/pipeline/ingest"

	"github.com/xeipuuv/gojsonschema"
)

// Scorer calls the external relevance/value scoring API.
type Scorer struct {
	config     *Config
	httpClient *commonhttp.Client
	logger     logger.Logger
}

func NewScorer(cfg *Config, log logger.Logger) *Scorer {
	return &Scorer{
		config:     cfg,
		httpClient: commonhttp.NewClient(cfg.Timeout),
		logger:     log.WithFields(map[string]interface{}{"component": "scorer"}),
	}
}

// Score evaluates one article. Transient API failures are retried up to the
// configured budget; a malformed response fails immediately.
func (s *Scorer) Score(ctx context.Context, article ingest.Article) (*Evaluation, error) {
	start := time.Now()
	defer func() {
		metrics.ScoringDuration.WithLabelValues("score").Observe(time.Since(start).Seconds())
	}()

	var eval *Evaluation
	err := retry.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		eval, attemptErr = s.scoreOnce(ctx, article)
		return attemptErr
	}, retry.Options{
		MaxAttempts: s.config.MaxRetries,
		Delay:       s.config.RetryDelay,
		RetryIf:     errors.IsRetryable,
	})
	if err != nil {
		return nil, err
	}
	return eval, nil
}

func (s *Scorer) scoreOnce(ctx context.Context, article ingest.Article) (*Evaluation, error) {
	payload := scoreRequest{
		Company:     article.Company,
		Title:       article.Title,
		Description: article.Description,
	}

	body, err := s.post(ctx, "/v1/score", payload)
	if err != nil {
		return nil, errors.NewScoringFailedError(err)
	}

	if err := validateScoreResponse(body); err != nil {
		return nil, err
	}

	var resp scoreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.NewScoringResponseInvalidError(err.Error())
	}

	return &Evaluation{
		Relevant:         resp.Relevance.IsRelevant,
		Score:            float64(resp.Relevance.RelevanceScore) / 100,
		Explanation:      resp.Relevance.Explanation,
		Valuable:         resp.Value.IsValuable && !onlyNone(resp.Value.ValueType),
		ValueTypes:       resp.Value.ValueType,
		ActionItems:      resp.Value.ActionItems,
		ValueExplanation: resp.Value.Explanation,
	}, nil
}

// Embed returns the embedding vector for a piece of lead text.
func (s *Scorer) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	defer func() {
		metrics.ScoringDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	}()

	var vector []float32
	err := retry.Do(ctx, func(ctx context.Context) error {
		body, err := s.post(ctx, "/v1/embed", embedRequest{Input: text})
		if err != nil {
			return errors.NewEmbeddingFailedError(err)
		}

		var resp embedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return errors.NewEmbeddingFailedError(err)
		}
		if len(resp.Embedding) != s.config.VectorDimension {
			return &errors.StandardError{
				Code:      errors.ErrCodeEmbeddingFailed,
				Message:   "Embedding dimension mismatch",
				Details:   fmt.Sprintf("expected %d, got %d", s.config.VectorDimension, len(resp.Embedding)),
				Retryable: false,
				Timestamp: time.Now().UTC(),
			}
		}

		vector = resp.Embedding
		return nil
	}, retry.Options{
		MaxAttempts: s.config.MaxRetries,
		Delay:       s.config.RetryDelay,
		RetryIf:     errors.IsRetryable,
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// LeadText builds the text the embedding is computed over. The same article
// must always yield the same text so similarity checks stay stable.
func LeadText(article ingest.Article) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", article.Company, article.Title, article.Description))
}

func (s *Scorer) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(s.config.BaseURL, "/") + path
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scorer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func validateScoreResponse(body []byte) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return errors.NewScoringResponseInvalidError(err.Error())
	}

	schemaLoader := gojsonschema.NewGoLoader(scoreResponseSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.NewScoringResponseInvalidError(err.Error())
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return errors.NewScoringResponseInvalidError(fmt.Sprintf("%v", errs))
	}

	return nil
}

// onlyNone reports whether the value types carry no signal at all.
func onlyNone(valueTypes []string) bool {
	if len(valueTypes) == 0 {
		return true
	}
	for _, vt := range valueTypes {
		if vt != "none" {
			return false
		}
	}
	return true
}
