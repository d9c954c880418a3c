// internal/pipeline/dedup/similarity.go
package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"lead-radar/internal/common/database"
	"lead-radar/internal/common/errors"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/models"
)

// SimilarityClient runs vector similarity checks against Elasticsearch.
// Embeddings are stored with cosine similarity, so an ES score of s maps
// back to cosine 2s-1.
type SimilarityClient struct {
	es     *database.ElasticsearchClient
	config *Config
	logger logger.Logger
}

func NewSimilarityClient(es *database.ElasticsearchClient, cfg *Config, log logger.Logger) *SimilarityClient {
	return &SimilarityClient{
		es:     es,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "similarity"}),
	}
}

// EnsureIndex creates the lead embedding index if it does not exist.
func (c *SimilarityClient) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Client.Indices.Exists(
		[]string{c.config.Index},
		c.es.Client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return errors.NewCollaboratorUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"lead_id": map[string]interface{}{"type": "keyword"},
				"company": map[string]interface{}{"type": "keyword"},
				"embedding": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       c.config.VectorDimension,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	createRes, err := c.es.Client.Indices.Create(
		c.config.Index,
		c.es.Client.Indices.Create.WithContext(ctx),
		c.es.Client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return errors.NewCollaboratorUnavailableError("elasticsearch", err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return errors.NewSimilarityQueryFailedError(fmt.Errorf("create index: %s", createRes.Status()))
	}

	c.logger.Info("created lead embedding index", map[string]interface{}{
		"index": c.config.Index,
	})
	return nil
}

// IndexEmbedding stores a lead's embedding for future similarity checks.
func (c *SimilarityClient) IndexEmbedding(ctx context.Context, lead *models.Lead) error {
	doc := map[string]interface{}{
		"lead_id":   lead.ID,
		"company":   lead.Company,
		"embedding": lead.Embedding,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := c.es.Client.Index(
		c.config.Index,
		bytes.NewReader(body),
		c.es.Client.Index.WithDocumentID(lead.ID),
		c.es.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return errors.NewCollaboratorUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewSimilarityQueryFailedError(fmt.Errorf("index embedding: %s", res.Status()))
	}
	return nil
}

// DeleteEmbedding removes a lead's vector. Missing documents are fine: the
// caller may be discarding a lead that was never indexed.
func (c *SimilarityClient) DeleteEmbedding(ctx context.Context, leadID string) error {
	res, err := c.es.Client.Delete(
		c.config.Index,
		leadID,
		c.es.Client.Delete.WithContext(ctx),
	)
	if err != nil {
		return errors.NewCollaboratorUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return errors.NewSimilarityQueryFailedError(fmt.Errorf("delete embedding: %s", res.Status()))
	}
	return nil
}

// MaxSimilarity returns the highest cosine similarity between the query
// embedding and stored leads for the same company, with the matching lead ID.
// No stored neighbors yields -1.
func (c *SimilarityClient) MaxSimilarity(ctx context.Context, company string, embedding []float32) (float64, string, error) {
	query := map[string]interface{}{
		"size": 1,
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   embedding,
			"k":              1,
			"num_candidates": 50,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"company": company},
			},
		},
		"_source": []string{"lead_id"},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return 0, "", err
	}

	res, err := c.es.Client.Search(
		c.es.Client.Search.WithContext(ctx),
		c.es.Client.Search.WithIndex(c.config.Index),
		c.es.Client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return 0, "", errors.NewCollaboratorUnavailableError("elasticsearch", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, "", errors.NewSimilarityQueryFailedError(err)
	}
	if res.IsError() {
		// A missing index just means nothing has been seen yet
		if res.StatusCode == 404 || strings.Contains(string(raw), "index_not_found_exception") {
			return -1, "", nil
		}
		return 0, "", errors.NewSimilarityQueryFailedError(fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					LeadID string `json:"lead_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, "", errors.NewSimilarityQueryFailedError(err)
	}

	if len(parsed.Hits.Hits) == 0 {
		return -1, "", nil
	}

	hit := parsed.Hits.Hits[0]
	cosine := 2*hit.Score - 1
	return cosine, hit.Source.LeadID, nil
}
