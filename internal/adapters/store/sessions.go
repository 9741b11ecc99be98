package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// CountScores returns how many session scores reference a criterion.
func (s *Store) CountScores(ctx context.Context, criterionID string) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM session_scores WHERE criterion_id = ?`, criterionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting scores: %w", err)
	}
	return n, nil
}

// CountOpenSessions returns pending and in-progress sessions of a template.
func (s *Store) CountOpenSessions(ctx context.Context, templateID string) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM scoring_sessions
		WHERE template_id = ? AND status IN (?, ?)`,
		templateID, string(core.SessionPending), string(core.SessionInProgress)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting open sessions: %w", err)
	}
	return n, nil
}

// CreateSession records a scoring session. The session tables belong to
// the external scorer; this writer exists for imports and fixtures.
func (s *Store) CreateSession(ctx context.Context, sess *core.ScoringSession) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = core.SessionPending
	}
	_, err := s.exec(ctx, `INSERT INTO scoring_sessions
		(id, organization_id, template_id, template_version, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OrganizationID, sess.TemplateID, sess.TemplateVersion, string(sess.Status),
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// UpdateSessionStatus moves a session to a new status.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status core.SessionStatus) error {
	res, err := s.exec(ctx, `UPDATE scoring_sessions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	return checkAffected(res, "session", id)
}

// AddScore records one criterion score in a session.
func (s *Store) AddScore(ctx context.Context, score *core.SessionScore) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, `INSERT INTO session_scores (id, session_id, criterion_id, score, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		score.ID, score.SessionID, score.CriterionID, score.Score, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting score: %w", err)
	}
	return nil
}
