package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

const groupColumns = `id, template_id, name, description, sort_order, weight, is_required,
	collapsed_by_default, created_at, updated_at`

// CreateGroup inserts a criteria group.
func (s *Store) CreateGroup(ctx context.Context, g *core.CriteriaGroup) error {
	_, err := s.exec(ctx, `INSERT INTO criteria_groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.TemplateID, g.Name, g.Description, g.SortOrder, g.Weight, g.IsRequired,
		g.CollapsedByDefault, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}

// GetGroup loads a group of the given template.
func (s *Store) GetGroup(ctx context.Context, templateID, id string) (*core.CriteriaGroup, error) {
	row := s.queryRow(ctx, `SELECT `+groupColumns+` FROM criteria_groups
		WHERE template_id = ? AND id = ?`, templateID, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("group", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading group %s: %w", id, err)
	}
	return g, nil
}

// ListGroups returns a template's groups in display order.
func (s *Store) ListGroups(ctx context.Context, templateID string) ([]*core.CriteriaGroup, error) {
	rows, err := s.query(ctx, `SELECT `+groupColumns+` FROM criteria_groups
		WHERE template_id = ? ORDER BY sort_order, created_at, id`, templateID)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	out := []*core.CriteriaGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateGroup overwrites a group's mutable columns.
func (s *Store) UpdateGroup(ctx context.Context, g *core.CriteriaGroup) error {
	res, err := s.exec(ctx, `UPDATE criteria_groups SET
			name = ?, description = ?, sort_order = ?, weight = ?, is_required = ?,
			collapsed_by_default = ?, updated_at = ?
		WHERE template_id = ? AND id = ?`,
		g.Name, g.Description, g.SortOrder, g.Weight, g.IsRequired,
		g.CollapsedByDefault, g.UpdatedAt, g.TemplateID, g.ID,
	)
	if err != nil {
		return fmt.Errorf("updating group %s: %w", g.ID, err)
	}
	return checkAffected(res, "group", g.ID)
}

// DeleteGroup removes a group. Callers ungroup its criteria first.
func (s *Store) DeleteGroup(ctx context.Context, templateID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM criteria_groups WHERE template_id = ? AND id = ?`, templateID, id)
	if err != nil {
		return fmt.Errorf("deleting group %s: %w", id, err)
	}
	return checkAffected(res, "group", id)
}

// MaxGroupSortOrder returns the highest group sort order of a template.
func (s *Store) MaxGroupSortOrder(ctx context.Context, templateID string) (int, bool, error) {
	var top sql.NullInt64
	err := s.queryRow(ctx, `SELECT MAX(sort_order) FROM criteria_groups WHERE template_id = ?`, templateID).Scan(&top)
	if err != nil {
		return 0, false, fmt.Errorf("reading group sort order: %w", err)
	}
	return int(top.Int64), top.Valid, nil
}

func scanGroup(row rowScanner) (*core.CriteriaGroup, error) {
	var g core.CriteriaGroup
	err := row.Scan(
		&g.ID, &g.TemplateID, &g.Name, &g.Description, &g.SortOrder, &g.Weight, &g.IsRequired,
		&g.CollapsedByDefault, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
