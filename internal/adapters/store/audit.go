package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// AppendAudit inserts an audit entry. Entries are never updated.
func (s *Store) AppendAudit(ctx context.Context, e *core.AuditLogEntry) error {
	_, err := s.exec(ctx, `INSERT INTO audit_log
		(id, organization_id, user_id, action, entity_type, entity_id, before_state, after_state,
		 request_id, remote_addr, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrganizationID, e.UserID, string(e.Action), string(e.EntityType), e.EntityID,
		nullableBytes(e.Before), nullableBytes(e.After),
		e.Context.RequestID, e.Context.RemoteAddr, e.Context.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// ListAudit returns an organization's audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, orgID string, filter core.AuditFilter) ([]*core.AuditLogEntry, error) {
	page := filter.Page.Normalize()
	var (
		where = []string{"organization_id = ?"}
		args  = []any{orgID}
	)
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	args = append(args, page.Limit, page.Offset)

	rows, err := s.query(ctx, `SELECT id, organization_id, user_id, action, entity_type, entity_id,
			before_state, after_state, request_id, remote_addr, user_agent, created_at
		FROM audit_log WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	out := []*core.AuditLogEntry{}
	for rows.Next() {
		var (
			e              core.AuditLogEntry
			action, entity string
			before, after  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.UserID, &action, &entity, &e.EntityID,
			&before, &after, &e.Context.RequestID, &e.Context.RemoteAddr, &e.Context.UserAgent,
			&e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = core.AuditAction(action)
		e.EntityType = core.EntityType(entity)
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
