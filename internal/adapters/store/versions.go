package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

const versionColumns = `id, organization_id, template_id, version_number, snapshot,
	change_summary, created_by, created_at`

// CreateVersion inserts a version. A duplicate (template_id, version_number)
// returns a retryable Conflict.
func (s *Store) CreateVersion(ctx context.Context, v *core.TemplateVersion) error {
	_, err := s.exec(ctx, `INSERT INTO template_versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.OrganizationID, v.TemplateID, v.VersionNumber, string(v.Snapshot),
		v.ChangeSummary, v.CreatedBy, v.CreatedAt,
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return core.ErrConflict(core.CodeVersionConflict,
				fmt.Sprintf("version %d of template %s was published concurrently", v.VersionNumber, v.TemplateID)).
				WithCause(err).
				WithDetail("version_number", v.VersionNumber)
		}
		return fmt.Errorf("inserting version: %w", err)
	}
	return nil
}

// MaxVersionNumber returns the highest version number, or 0.
func (s *Store) MaxVersionNumber(ctx context.Context, templateID string) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COALESCE(MAX(version_number), 0) FROM template_versions
		WHERE template_id = ?`, templateID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading max version: %w", err)
	}
	return n, nil
}

// GetVersion loads one version by number.
func (s *Store) GetVersion(ctx context.Context, templateID string, number int) (*core.TemplateVersion, error) {
	row := s.queryRow(ctx, `SELECT `+versionColumns+` FROM template_versions
		WHERE template_id = ? AND version_number = ?`, templateID, number)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("version", strconv.Itoa(number))
	}
	if err != nil {
		return nil, fmt.Errorf("loading version %d: %w", number, err)
	}
	return v, nil
}

// ListVersions returns a page of versions newest first and the total count.
func (s *Store) ListVersions(ctx context.Context, templateID string, page core.Page) ([]*core.TemplateVersion, int, error) {
	page = page.Normalize()

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM template_versions WHERE template_id = ?`, templateID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting versions: %w", err)
	}

	rows, err := s.query(ctx, `SELECT `+versionColumns+` FROM template_versions
		WHERE template_id = ? ORDER BY version_number DESC LIMIT ? OFFSET ?`,
		templateID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	out := []*core.TemplateVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning version: %w", err)
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func scanVersion(row rowScanner) (*core.TemplateVersion, error) {
	var (
		v        core.TemplateVersion
		snapshot string
	)
	err := row.Scan(&v.ID, &v.OrganizationID, &v.TemplateID, &v.VersionNumber, &snapshot,
		&v.ChangeSummary, &v.CreatedBy, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Snapshot = json.RawMessage(snapshot)
	return &v, nil
}
