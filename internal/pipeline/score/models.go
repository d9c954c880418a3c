// internal/pipeline/score/models.go
package score

import "lead-radar/internal/pipeline/ingest"

// scoreRequest is the wire request for the scoring endpoint.
type scoreRequest struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// scoreResponse is the wire response from the scoring endpoint. The
// relevance score arrives on a 0-100 scale.
type scoreResponse struct {
	Relevance struct {
		IsRelevant     bool   `json:"is_relevant"`
		RelevanceScore int    `json:"relevance_score"`
		Explanation    string `json:"explanation"`
	} `json:"relevance"`
	Value struct {
		IsValuable  bool     `json:"is_valuable"`
		ValueType   []string `json:"value_type"`
		ActionItems []string `json:"action_items"`
		Explanation string   `json:"explanation"`
	} `json:"value"`
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Evaluation is the normalized scoring verdict for one article. Score is
// scaled to [0, 1].
type Evaluation struct {
	Relevant         bool
	Score            float64
	Explanation      string
	Valuable         bool
	ValueTypes       []string
	ActionItems      []string
	ValueExplanation string
}

// Result pairs an article with its evaluation inside a batch.
type Result struct {
	Article    ingest.Article
	Evaluation *Evaluation
	Err        error
}

// scoreResponseSchema validates the scorer payload before it is trusted.
var scoreResponseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"relevance": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"is_relevant":     map[string]interface{}{"type": "boolean"},
				"relevance_score": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
				"explanation":     map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"is_relevant", "relevance_score"},
		},
		"value": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"is_valuable":  map[string]interface{}{"type": "boolean"},
				"value_type":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"action_items": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"explanation":  map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"is_valuable", "value_type"},
		},
	},
	"required": []interface{}{"relevance", "value"},
}
