// internal/store/leads.go
package store

import (
	"context"
	"database/sql"
	"time"

	"lead-radar/internal/common/errors"
	"lead-radar/internal/common/logger"
	"lead-radar/internal/models"

	"github.com/lib/pq"
)

// LeadStore persists leads in PostgreSQL.
type LeadStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewLeadStore(db *sql.DB, log logger.Logger) *LeadStore {
	return &LeadStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "lead-store"}),
	}
}

const leadColumns = `id, company, portfolio, title, description, url, source, published_at,
		relevance_score, relevance_explanation, is_valuable, value_types, action_items,
		value_explanation, status, notification_sent, decided_at, created_at`

// Save inserts a lead if it is not already present. Re-ingesting the same
// lead ID is a no-op so replayed articles never clobber an existing decision.
func (s *LeadStore) Save(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		lead.ID, lead.Company, lead.Portfolio, lead.Title, lead.Description,
		lead.URL, lead.Source, lead.PublishedAt,
		lead.RelevanceScore, lead.RelevanceExplanation,
		lead.IsValuable, pq.Array(lead.ValueTypeStrings()), pq.Array(lead.ActionItems),
		lead.ValueExplanation, string(lead.Status), lead.NotificationSent,
		lead.DecidedAt, lead.CreatedAt,
	)
	if err != nil {
		return errors.NewLeadSaveFailedError(err)
	}
	return nil
}

// Exists reports whether a lead ID is already persisted.
func (s *LeadStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM leads WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, errors.NewCollaboratorUnavailableError("postgres", err)
	}
	return exists, nil
}

// Get returns a single lead by ID.
func (s *LeadStore) Get(ctx context.Context, id string) (*models.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)

	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewLeadNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError("postgres", err)
	}
	return lead, nil
}

// Pending returns all leads awaiting a review decision, oldest first.
func (s *LeadStore) Pending(ctx context.Context) ([]*models.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE status = $1 ORDER BY created_at ASC`,
		string(models.StatusPending))
}

// Recent returns the most recently created leads up to limit, any status.
// An empty company matches every company.
func (s *LeadStore) Recent(ctx context.Context, company string, limit int) ([]*models.Lead, error) {
	if company == "" {
		return s.queryLeads(ctx,
			`SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT $1`,
			limit)
	}
	return s.queryLeads(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE company = $1 ORDER BY created_at DESC LIMIT $2`,
		company, limit)
}

// UpdateDecision records a terminal decision. The WHERE clause only matches
// pending rows, so a second decision on the same lead updates nothing.
func (s *LeadStore) UpdateDecision(ctx context.Context, id string, status models.LeadStatus, decidedAt time.Time, notificationSent bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = $2, decided_at = $3, notification_sent = $4
		 WHERE id = $1 AND status = $5`,
		id, string(status), decidedAt, notificationSent, string(models.StatusPending),
	)
	if err != nil {
		return errors.NewLeadSaveFailedError(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewLeadSaveFailedError(err)
	}
	if affected == 0 {
		var current string
		if err := s.db.QueryRowContext(ctx, `SELECT status FROM leads WHERE id = $1`, id).Scan(&current); err != nil {
			if err == sql.ErrNoRows {
				return errors.NewLeadNotFoundError(id)
			}
			return errors.NewCollaboratorUnavailableError("postgres", err)
		}
		return errors.NewLeadAlreadyDecidedError(id, current)
	}
	return nil
}

// MarkNotified flips the notification flag once a pending delivery succeeds.
func (s *LeadStore) MarkNotified(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET notification_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return errors.NewLeadSaveFailedError(err)
	}
	return nil
}

func (s *LeadStore) queryLeads(ctx context.Context, query string, args ...interface{}) ([]*models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError("postgres", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, errors.NewCollaboratorUnavailableError("postgres", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewCollaboratorUnavailableError("postgres", err)
	}
	return leads, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		lead       models.Lead
		status     string
		valueTypes []string
		decidedAt  sql.NullTime
	)

	err := row.Scan(
		&lead.ID, &lead.Company, &lead.Portfolio, &lead.Title, &lead.Description,
		&lead.URL, &lead.Source, &lead.PublishedAt,
		&lead.RelevanceScore, &lead.RelevanceExplanation,
		&lead.IsValuable, pq.Array(&valueTypes), pq.Array(&lead.ActionItems),
		&lead.ValueExplanation, &status, &lead.NotificationSent,
		&decidedAt, &lead.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Status = models.LeadStatus(status)
	lead.ValueTypes = make([]models.ValueType, len(valueTypes))
	for i, vt := range valueTypes {
		lead.ValueTypes[i] = models.ValueType(vt)
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		lead.DecidedAt = &t
	}
	return &lead, nil
}
