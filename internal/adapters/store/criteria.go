package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

const criterionColumns = `id, template_id, group_id, name, description, criteria_type, config,
	weight, max_score, sort_order, is_required, is_auto_fail, auto_fail_threshold,
	scoring_guide, keywords, created_at, updated_at`

// CreateCriterion inserts a criterion.
func (s *Store) CreateCriterion(ctx context.Context, c *core.Criterion) error {
	config, keywords, err := encodeCriterion(c)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO criteria (`+criterionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TemplateID, nullableString(c.GroupID), c.Name, c.Description, string(c.Type), config,
		c.Weight, c.MaxScore, c.SortOrder, c.IsRequired, c.IsAutoFail, nullableFloat(c.AutoFailThreshold),
		c.ScoringGuide, keywords, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting criterion: %w", err)
	}
	return nil
}

// GetCriterion loads a criterion of the given template.
func (s *Store) GetCriterion(ctx context.Context, templateID, id string) (*core.Criterion, error) {
	row := s.queryRow(ctx, `SELECT `+criterionColumns+` FROM criteria
		WHERE template_id = ? AND id = ?`, templateID, id)
	c, err := scanCriterion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("criterion", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading criterion %s: %w", id, err)
	}
	return c, nil
}

// ListCriteria returns a template's criteria in display order.
func (s *Store) ListCriteria(ctx context.Context, templateID string) ([]*core.Criterion, error) {
	rows, err := s.query(ctx, `SELECT `+criterionColumns+` FROM criteria
		WHERE template_id = ? ORDER BY sort_order, created_at, id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("listing criteria: %w", err)
	}
	defer rows.Close()

	out := []*core.Criterion{}
	for rows.Next() {
		c, err := scanCriterion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning criterion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCriterion overwrites a criterion's mutable columns.
func (s *Store) UpdateCriterion(ctx context.Context, c *core.Criterion) error {
	config, keywords, err := encodeCriterion(c)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE criteria SET
			group_id = ?, name = ?, description = ?, criteria_type = ?, config = ?, weight = ?,
			max_score = ?, sort_order = ?, is_required = ?, is_auto_fail = ?, auto_fail_threshold = ?,
			scoring_guide = ?, keywords = ?, updated_at = ?
		WHERE template_id = ? AND id = ?`,
		nullableString(c.GroupID), c.Name, c.Description, string(c.Type), config, c.Weight,
		c.MaxScore, c.SortOrder, c.IsRequired, c.IsAutoFail, nullableFloat(c.AutoFailThreshold),
		c.ScoringGuide, keywords, c.UpdatedAt, c.TemplateID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating criterion %s: %w", c.ID, err)
	}
	return checkAffected(res, "criterion", c.ID)
}

// DeleteCriterion removes a criterion.
func (s *Store) DeleteCriterion(ctx context.Context, templateID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM criteria WHERE template_id = ? AND id = ?`, templateID, id)
	if err != nil {
		return fmt.Errorf("deleting criterion %s: %w", id, err)
	}
	return checkAffected(res, "criterion", id)
}

// MaxCriterionSortOrder returns the highest sort order within a group, or
// among ungrouped criteria when groupID is nil.
func (s *Store) MaxCriterionSortOrder(ctx context.Context, templateID string, groupID *string) (int, bool, error) {
	var (
		top sql.NullInt64
		err error
	)
	if groupID == nil {
		err = s.queryRow(ctx, `SELECT MAX(sort_order) FROM criteria
			WHERE template_id = ? AND group_id IS NULL`, templateID).Scan(&top)
	} else {
		err = s.queryRow(ctx, `SELECT MAX(sort_order) FROM criteria
			WHERE template_id = ? AND group_id = ?`, templateID, *groupID).Scan(&top)
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading criterion sort order: %w", err)
	}
	return int(top.Int64), top.Valid, nil
}

// UngroupCriteria clears the group reference of every criterion in a group.
func (s *Store) UngroupCriteria(ctx context.Context, templateID, groupID string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE criteria SET group_id = NULL
		WHERE template_id = ? AND group_id = ?`, templateID, groupID)
	if err != nil {
		return 0, fmt.Errorf("ungrouping criteria: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

func encodeCriterion(c *core.Criterion) (string, string, error) {
	config, err := json.Marshal(c.Config)
	if err != nil {
		return "", "", fmt.Errorf("marshaling criterion config: %w", err)
	}
	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	kw, err := json.Marshal(keywords)
	if err != nil {
		return "", "", fmt.Errorf("marshaling keywords: %w", err)
	}
	return string(config), string(kw), nil
}

func scanCriterion(row rowScanner) (*core.Criterion, error) {
	var (
		c                core.Criterion
		groupID          sql.NullString
		typ              string
		config, keywords string
		threshold        sql.NullFloat64
	)
	err := row.Scan(
		&c.ID, &c.TemplateID, &groupID, &c.Name, &c.Description, &typ, &config,
		&c.Weight, &c.MaxScore, &c.SortOrder, &c.IsRequired, &c.IsAutoFail, &threshold,
		&c.ScoringGuide, &keywords, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.GroupID = stringPtr(groupID)
	c.Type = core.CriteriaType(typ)
	c.AutoFailThreshold = floatPtr(threshold)
	cfg, err := core.DecodeConfig(c.Type, []byte(config))
	if err != nil {
		return nil, fmt.Errorf("decoding config of criterion %s: %w", c.ID, err)
	}
	c.Config = cfg
	if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords of criterion %s: %w", c.ID, err)
	}
	return &c, nil
}
