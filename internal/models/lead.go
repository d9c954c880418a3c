// internal/models/lead.go
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the review state of a lead.
type LeadStatus string

const (
	StatusPending  LeadStatus = "pending"
	StatusApproved LeadStatus = "approved"
	StatusRejected LeadStatus = "rejected"
)

// IsTerminal reports whether the status is a final review decision.
func (s LeadStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ValueType classifies why an article matters to a customer success manager.
type ValueType string

const (
	ValueFundingRound         ValueType = "funding_round"
	ValueFinancialHealth      ValueType = "financial_health"
	ValueMergerAcquisition    ValueType = "merger_acquisition"
	ValueStrategicPartnership ValueType = "strategic_partnership"
	ValueHiringTrends         ValueType = "hiring_trends"
	ValueLeadershipChange     ValueType = "leadership_change"
	ValueMarketExpansion      ValueType = "market_expansion"
	ValueProductLaunch        ValueType = "product_launch"
	ValueIndustryTrend        ValueType = "industry_trend"
	ValueCompetitiveInsight   ValueType = "competitive_insight"
	ValuePublicSentiment      ValueType = "public_sentiment"
	ValueDigitalPresence      ValueType = "digital_presence"
	ValueAwardRecognition     ValueType = "award_recognition"
	ValueChallengeOpportunity ValueType = "challenge_opportunity"
	ValueNone                 ValueType = "none"
)

// Lead is a scored news article tied to a portfolio company.
type Lead struct {
	ID        string `json:"id"`
	Company   string `json:"company"`
	Portfolio string `json:"portfolio"`

	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`

	RelevanceScore       float64 `json:"relevance_score"`
	RelevanceExplanation string  `json:"relevance_explanation"`

	IsValuable       bool        `json:"is_valuable"`
	ValueTypes       []ValueType `json:"value_types"`
	ActionItems      []string    `json:"action_items"`
	ValueExplanation string      `json:"value_explanation"`

	Embedding []float32 `json:"-"`

	Status           LeadStatus `json:"status"`
	NotificationSent bool       `json:"notification_sent"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewLeadID derives a stable lead identifier from the article URL and the
// company it was scraped for. The same article seen twice for the same
// company always yields the same ID.
func NewLeadID(articleURL, company string) string {
	name := fmt.Sprintf("%s|%s", strings.TrimSpace(articleURL), strings.ToLower(strings.TrimSpace(company)))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// DedupKey is the exact-match identity used by the first dedup tier.
func (l *Lead) DedupKey() string {
	return fmt.Sprintf("lead:seen:%s", l.ID)
}

// Urgent reports whether the lead should trigger the escalation channel.
func (l *Lead) Urgent(threshold float64) bool {
	return l.RelevanceScore >= threshold
}

// ValueTypeStrings returns the value types as plain strings for storage.
func (l *Lead) ValueTypeStrings() []string {
	out := make([]string, len(l.ValueTypes))
	for i, vt := range l.ValueTypes {
		out[i] = string(vt)
	}
	return out
}
