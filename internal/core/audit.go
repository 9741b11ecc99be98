package core

import (
	"context"
	"encoding/json"
	"time"
)

// AuditAction names the kind of mutation recorded.
type AuditAction string

const (
	AuditCreate  AuditAction = "create"
	AuditUpdate  AuditAction = "update"
	AuditDelete  AuditAction = "delete"
	AuditPublish AuditAction = "publish"
)

// EntityType names the audited record kind.
type EntityType string

const (
	EntityTemplate  EntityType = "template"
	EntityGroup     EntityType = "group"
	EntityCriterion EntityType = "criterion"
	EntityVersion   EntityType = "version"
)

// RequestContext carries the inbound request metadata attached to audit entries.
type RequestContext struct {
	RequestID  string `json:"request_id,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// AuditLogEntry is an append-only record of one mutation.
type AuditLogEntry struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	UserID         string          `json:"user_id"`
	Action         AuditAction     `json:"action"`
	EntityType     EntityType      `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Before         json.RawMessage `json:"before,omitempty"`
	After          json.RawMessage `json:"after,omitempty"`
	Context        RequestContext  `json:"context"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AuditFilter narrows an audit listing.
type AuditFilter struct {
	EntityType EntityType
	EntityID   string
	Page       Page
}

type requestContextKey struct{}

// WithRequestContext attaches request metadata to ctx.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the request metadata stored in ctx, if any.
func RequestContextFrom(ctx context.Context) RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	return rc
}
