package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

const templateColumns = `id, organization_id, name, description, scoring_method, use_case,
	pass_threshold, max_total_score, custom_formula, settings, status, version, is_default,
	created_by, created_at, updated_at, activated_at, archived_at`

// CreateTemplate inserts a template.
func (s *Store) CreateTemplate(ctx context.Context, t *core.Template) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	_, err = s.exec(ctx, `INSERT INTO templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrganizationID, t.Name, t.Description, string(t.ScoringMethod), t.UseCase,
		t.PassThreshold, t.MaxTotalScore, t.CustomFormula, string(settings), string(t.Status),
		t.Version, t.IsDefault, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		nullableTime(t.ActivatedAt), nullableTime(t.ArchivedAt),
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return core.ErrConflict(core.CodeDuplicate, "template conflicts with an existing record").WithCause(err)
		}
		return fmt.Errorf("inserting template: %w", err)
	}
	return nil
}

// GetTemplate loads a template scoped to its organization.
func (s *Store) GetTemplate(ctx context.Context, orgID, id string) (*core.Template, error) {
	return s.getTemplate(ctx, orgID, id, "")
}

// LockTemplate loads a template and locks its row on Postgres. SQLite
// serializes writers through its single connection.
func (s *Store) LockTemplate(ctx context.Context, orgID, id string) (*core.Template, error) {
	return s.getTemplate(ctx, orgID, id, s.d.forUpdate)
}

func (s *Store) getTemplate(ctx context.Context, orgID, id, suffix string) (*core.Template, error) {
	row := s.queryRow(ctx, `SELECT `+templateColumns+` FROM templates
		WHERE organization_id = ? AND id = ?`+suffix, orgID, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("template", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", id, err)
	}
	return t, nil
}

// ListTemplates returns the organization's templates, default first.
func (s *Store) ListTemplates(ctx context.Context, orgID string, filter core.TemplateFilter) ([]*core.Template, error) {
	var (
		where = []string{"organization_id = ?"}
		args  = []any{orgID}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.UseCase != "" {
		where = append(where, "use_case = ?")
		args = append(args, filter.UseCase)
	}

	rows, err := s.query(ctx, `SELECT `+templateColumns+` FROM templates
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY is_default DESC, updated_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var out []*core.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTemplate overwrites every mutable column.
func (s *Store) UpdateTemplate(ctx context.Context, t *core.Template) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	res, err := s.exec(ctx, `UPDATE templates SET
			name = ?, description = ?, scoring_method = ?, use_case = ?, pass_threshold = ?,
			max_total_score = ?, custom_formula = ?, settings = ?, status = ?, version = ?,
			is_default = ?, updated_at = ?, activated_at = ?, archived_at = ?
		WHERE organization_id = ? AND id = ?`,
		t.Name, t.Description, string(t.ScoringMethod), t.UseCase, t.PassThreshold,
		t.MaxTotalScore, t.CustomFormula, string(settings), string(t.Status), t.Version,
		t.IsDefault, t.UpdatedAt, nullableTime(t.ActivatedAt), nullableTime(t.ArchivedAt),
		t.OrganizationID, t.ID,
	)
	if err != nil {
		if s.d.isUniqueViolation(err) {
			return core.ErrConflict(core.CodeDuplicate,
				"another template of this organization is already default").WithCause(err)
		}
		return fmt.Errorf("updating template %s: %w", t.ID, err)
	}
	return checkAffected(res, "template", t.ID)
}

// DeleteTemplate removes a template; groups and criteria cascade.
func (s *Store) DeleteTemplate(ctx context.Context, orgID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM templates WHERE organization_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	return checkAffected(res, "template", id)
}

// LockDefaults serializes default changes within an organization until the
// transaction ends. Postgres takes an advisory lock; SQLite already runs one
// writer at a time.
func (s *Store) LockDefaults(ctx context.Context, orgID string) error {
	if s.d.orgLock == "" {
		return nil
	}
	if _, err := s.exec(ctx, s.d.orgLock, "scorecard:default:"+orgID); err != nil {
		return fmt.Errorf("locking default template of %s: %w", orgID, err)
	}
	return nil
}

// ClearDefault unsets the default flag on the organization's other templates.
func (s *Store) ClearDefault(ctx context.Context, orgID, keepID string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE templates SET is_default = ?
		WHERE organization_id = ? AND is_default = ? AND id <> ?`,
		false, orgID, true, keepID)
	if err != nil {
		return 0, fmt.Errorf("clearing default template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*core.Template, error) {
	var (
		t                 core.Template
		method, status    string
		settings          string
		actived, archived sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.Name, &t.Description, &method, &t.UseCase,
		&t.PassThreshold, &t.MaxTotalScore, &t.CustomFormula, &settings, &status, &t.Version,
		&t.IsDefault, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt, &actived, &archived,
	)
	if err != nil {
		return nil, err
	}
	t.ScoringMethod = core.ScoringMethod(method)
	t.Status = core.TemplateStatus(status)
	t.ActivatedAt = timePtr(actived)
	t.ArchivedAt = timePtr(archived)
	if settings != "" {
		if err := json.Unmarshal([]byte(settings), &t.Settings); err != nil {
			return nil, fmt.Errorf("decoding settings: %w", err)
		}
	}
	return &t, nil
}
