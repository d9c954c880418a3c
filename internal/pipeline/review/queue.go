// internal/pipeline/review/queue.go
package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"lead-radar/internal/common/errors"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/common/metrics"
	"lead-radar/internal/common/retry"
	"lead-radar/internal/models"
)

// Decision is a reviewer verdict on a pending lead.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Notifier delivers an approved lead to the outbound channels.
type Notifier interface {
	Notify(ctx context.Context, lead *models.Lead) error
}

// Store is the persistence surface the queue writes through. It may be nil,
// in which case the queue runs in limited mode: decisions still work but
// nothing survives a restart.
type Store interface {
	Save(ctx context.Context, lead *models.Lead) error
	Get(ctx context.Context, id string) (*models.Lead, error)
	Pending(ctx context.Context) ([]*models.Lead, error)
	UpdateDecision(ctx context.Context, id string, status models.LeadStatus, decidedAt time.Time, notificationSent bool) error
	MarkNotified(ctx context.Context, id string) error
}

// Outcome reports what actually happened during a decision. In limited mode
// Persisted is false and Skipped names the step that could not run.
type Outcome struct {
	Lead      *models.Lead `json:"lead"`
	Decision  Decision     `json:"decision"`
	Notified  bool         `json:"notified"`
	Persisted bool         `json:"persisted"`
	Skipped   []string     `json:"skipped,omitempty"`
	// NotifyErr carries a delivery failure for an approval that stands.
	// The lead stays approved with the notification pending a resend.
	NotifyErr error `json:"-"`
}

// Queue owns the review lifecycle: pending leads enter once, receive exactly
// one terminal decision, and approved leads are notified before the decision
// is persisted.
type Queue struct {
	mu     sync.Mutex
	leads  map[string]*models.Lead
	config *Config

	store    Store
	notifier Notifier
	logger   logger.Logger
}

func NewQueue(cfg *Config, store Store, notifier Notifier, log logger.Logger) *Queue {
	return &Queue{
		leads:    make(map[string]*models.Lead),
		config:   cfg,
		store:    store,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "review-queue"}),
	}
}

// LimitedMode reports whether the queue is operating without persistence.
func (q *Queue) LimitedMode() bool {
	return q.store == nil
}

// Hydrate loads persisted pending leads into the working set, typically at
// startup. A nil store is a no-op.
func (q *Queue) Hydrate(ctx context.Context) error {
	if q.store == nil {
		return nil
	}

	pending, err := q.store.Pending(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, lead := range pending {
		if _, ok := q.leads[lead.ID]; !ok {
			q.leads[lead.ID] = lead
		}
	}

	q.logger.Info("hydrated pending leads", map[string]interface{}{
		"count": len(pending),
	})
	return nil
}

// Enqueue admits a scored lead into the review queue. Leads under the
// relevance threshold or without CSM value never enter. Returns whether the
// lead was admitted. Re-enqueueing a known ID is a no-op.
func (q *Queue) Enqueue(ctx context.Context, lead *models.Lead) (bool, error) {
	if lead.RelevanceScore < q.config.RelevanceThreshold || !lead.IsValuable {
		q.logger.Debug("lead below review bar, dropping", map[string]interface{}{
			"leadId":   lead.ID,
			"score":    lead.RelevanceScore,
			"valuable": lead.IsValuable,
		})
		return false, nil
	}

	q.mu.Lock()
	if _, ok := q.leads[lead.ID]; ok {
		q.mu.Unlock()
		return false, nil
	}
	lead.Status = models.StatusPending
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	q.leads[lead.ID] = lead
	q.mu.Unlock()

	if q.store != nil {
		if err := q.store.Save(ctx, lead); err != nil {
			q.logger.Error("failed to persist enqueued lead", map[string]interface{}{
				"leadId": lead.ID,
				"error":  err.Error(),
			})
			return true, err
		}
	}

	return true, nil
}

// Pending returns the current review queue, oldest first.
func (q *Queue) Pending(ctx context.Context) []*models.Lead {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []*models.Lead
	for _, lead := range q.leads {
		if lead.Status == models.StatusPending {
			pending = append(pending, lead)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// Get returns one lead from the working set, falling back to the store.
func (q *Queue) Get(ctx context.Context, id string) (*models.Lead, error) {
	q.mu.Lock()
	lead, ok := q.leads[id]
	q.mu.Unlock()
	if ok {
		return lead, nil
	}

	if q.store == nil {
		return nil, errors.NewLeadNotFoundError(id)
	}

	stored, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.leads[id]; ok {
		return existing, nil
	}
	q.leads[id] = stored
	return stored, nil
}

// Decide applies a terminal decision to a pending lead, exactly once. A
// second decision on the same lead fails with LEAD_ALREADY_DECIDED no matter
// how quickly it follows the first. Approvals notify before persisting; a
// delivery failure leaves the lead approved with the notification pending.
func (q *Queue) Decide(ctx context.Context, id string, decision Decision) (*Outcome, error) {
	lead, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := models.StatusRejected
	if decision == DecisionApprove {
		target = models.StatusApproved
	}

	// The status flip under the lock is the exactly-once gate. Everything
	// after it runs on a claimed lead.
	q.mu.Lock()
	if lead.Status.IsTerminal() {
		current := lead.Status
		q.mu.Unlock()
		return nil, errors.NewLeadAlreadyDecidedError(id, string(current))
	}
	now := time.Now().UTC()
	lead.Status = target
	lead.DecidedAt = &now
	q.mu.Unlock()

	metrics.LeadDecisions.WithLabelValues(string(decision)).Inc()

	outcome := &Outcome{Lead: lead, Decision: decision}

	if decision == DecisionApprove {
		if err := q.deliver(ctx, lead); err != nil {
			q.logger.Error("approval notification failed, decision stands", map[string]interface{}{
				"leadId": id,
				"error":  err.Error(),
			})
			outcome.NotifyErr = err
		} else {
			outcome.Notified = true
			lead.NotificationSent = true
		}
	}

	q.persistDecision(ctx, lead, outcome)
	return outcome, nil
}

// ResendNotification retries delivery for an approved lead whose
// notification never went out.
func (q *Queue) ResendNotification(ctx context.Context, id string) (*Outcome, error) {
	lead, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if lead.Status != models.StatusApproved {
		current := lead.Status
		q.mu.Unlock()
		if current == models.StatusPending {
			return nil, errors.NewLeadNotFoundError(id)
		}
		return nil, errors.NewLeadAlreadyDecidedError(id, string(current))
	}
	alreadySent := lead.NotificationSent
	q.mu.Unlock()

	outcome := &Outcome{Lead: lead, Decision: DecisionApprove, Persisted: !q.LimitedMode()}
	if alreadySent {
		outcome.Notified = true
		return outcome, nil
	}

	if err := q.deliver(ctx, lead); err != nil {
		outcome.NotifyErr = err
		return outcome, err
	}

	q.mu.Lock()
	lead.NotificationSent = true
	q.mu.Unlock()
	outcome.Notified = true

	if q.store != nil {
		if err := q.store.MarkNotified(ctx, id); err != nil {
			q.logger.Error("failed to persist notification flag", map[string]interface{}{
				"leadId": id,
				"error":  err.Error(),
			})
			outcome.Persisted = false
		}
	} else {
		outcome.Skipped = append(outcome.Skipped, "persist")
	}

	return outcome, nil
}

func (q *Queue) deliver(ctx context.Context, lead *models.Lead) error {
	if q.notifier == nil {
		return nil
	}

	return retry.Do(ctx, func(ctx context.Context) error {
		return q.notifier.Notify(ctx, lead)
	}, retry.Options{
		MaxAttempts: q.config.MaxRetries,
		Delay:       q.config.RetryDelay,
		RetryIf:     errors.IsRetryable,
	})
}

func (q *Queue) persistDecision(ctx context.Context, lead *models.Lead, outcome *Outcome) {
	if q.store == nil {
		outcome.Skipped = append(outcome.Skipped, "persist")
		return
	}

	err := q.store.UpdateDecision(ctx, lead.ID, lead.Status, *lead.DecidedAt, lead.NotificationSent)
	if err != nil {
		q.logger.Error("failed to persist decision", map[string]interface{}{
			"leadId": lead.ID,
			"status": string(lead.Status),
			"error":  err.Error(),
		})
		return
	}
	outcome.Persisted = true
}
