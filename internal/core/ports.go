package core

import "context"

// TemplateFilter narrows a template listing.
type TemplateFilter struct {
	Status  TemplateStatus
	UseCase string
}

// ReorderItem moves one record to a new position, optionally regrouping it.
type ReorderItem struct {
	ID        string  `json:"id"`
	SortOrder int     `json:"sort_order"`
	GroupID   *string `json:"group_id,omitempty"`
	// Regroup distinguishes "move to ungrouped" from "keep group" when
	// GroupID is nil.
	Regroup bool `json:"-"`
}

// SessionStatus is the state of a scoring session owned by the external scorer.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// ScoringSession is a scoring run against one template version.
type ScoringSession struct {
	ID              string
	OrganizationID  string
	TemplateID      string
	TemplateVersion int
	Status          SessionStatus
}

// SessionScore is one criterion score produced in a session.
type SessionScore struct {
	ID          string
	SessionID   string
	CriterionID string
	Score       float64
}

// TemplateRepository persists templates.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, orgID, id string) (*Template, error)
	// LockTemplate loads a template for update, holding a row lock where
	// the backend supports one.
	LockTemplate(ctx context.Context, orgID, id string) (*Template, error)
	ListTemplates(ctx context.Context, orgID string, filter TemplateFilter) ([]*Template, error)
	UpdateTemplate(ctx context.Context, t *Template) error
	DeleteTemplate(ctx context.Context, orgID, id string) error
	// LockDefaults blocks other transactions changing the organization's
	// default until this one ends. Call it before locking any template row.
	LockDefaults(ctx context.Context, orgID string) error
	// ClearDefault unsets is_default on every template of the organization
	// except keepID and returns the number of rows changed.
	ClearDefault(ctx context.Context, orgID, keepID string) (int64, error)
}

// GroupRepository persists criteria groups.
type GroupRepository interface {
	CreateGroup(ctx context.Context, g *CriteriaGroup) error
	GetGroup(ctx context.Context, templateID, id string) (*CriteriaGroup, error)
	ListGroups(ctx context.Context, templateID string) ([]*CriteriaGroup, error)
	UpdateGroup(ctx context.Context, g *CriteriaGroup) error
	DeleteGroup(ctx context.Context, templateID, id string) error
	// MaxGroupSortOrder returns the highest sort order and whether any group exists.
	MaxGroupSortOrder(ctx context.Context, templateID string) (int, bool, error)
}

// CriterionRepository persists criteria.
type CriterionRepository interface {
	CreateCriterion(ctx context.Context, c *Criterion) error
	GetCriterion(ctx context.Context, templateID, id string) (*Criterion, error)
	ListCriteria(ctx context.Context, templateID string) ([]*Criterion, error)
	UpdateCriterion(ctx context.Context, c *Criterion) error
	DeleteCriterion(ctx context.Context, templateID, id string) error
	// MaxCriterionSortOrder scopes to groupID, or to ungrouped criteria when nil.
	MaxCriterionSortOrder(ctx context.Context, templateID string, groupID *string) (int, bool, error)
	UngroupCriteria(ctx context.Context, templateID, groupID string) (int64, error)
}

// VersionRepository persists published snapshots.
type VersionRepository interface {
	CreateVersion(ctx context.Context, v *TemplateVersion) error
	MaxVersionNumber(ctx context.Context, templateID string) (int, error)
	GetVersion(ctx context.Context, templateID string, number int) (*TemplateVersion, error)
	ListVersions(ctx context.Context, templateID string, page Page) ([]*TemplateVersion, int, error)
}

// SessionRepository reads the scorer-owned session tables.
type SessionRepository interface {
	CountScores(ctx context.Context, criterionID string) (int, error)
	CountOpenSessions(ctx context.Context, templateID string) (int, error)
}

// AuditRepository appends and lists audit entries.
type AuditRepository interface {
	AppendAudit(ctx context.Context, e *AuditLogEntry) error
	ListAudit(ctx context.Context, orgID string, filter AuditFilter) ([]*AuditLogEntry, error)
}

// Repository is the full persistence surface bound to one connection or
// transaction.
type Repository interface {
	TemplateRepository
	GroupRepository
	CriterionRepository
	VersionRepository
	SessionRepository
	AuditRepository
}

// Store is a Repository that can open transactions.
type Store interface {
	Repository
	// RunInTx runs fn inside one transaction. Returning an error rolls back.
	RunInTx(ctx context.Context, fn func(Repository) error) error
	Close() error
}
