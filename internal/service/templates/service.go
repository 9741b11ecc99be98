// Package templates implements grading template management: the criteria
// graph, the template lifecycle, and the publish workflow that freezes a
// template into numbered immutable versions.
package templates

import (
	"context"
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/scorecard/internal/archive"
	"github.com/hugo-lorenzo-mato/scorecard/internal/audit"
	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/logging"
	"github.com/hugo-lorenzo-mato/scorecard/internal/metrics"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service"
)

// Service is stateless between calls; all coordination happens in the store.
type Service struct {
	store     core.Store
	validator *scoring.Validator
	recorder  *audit.Recorder
	archiver  archive.Archiver
	metrics   *metrics.Metrics
	logger    *logging.Logger
	retry     *service.RetryPolicy
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder replaces the default audit recorder.
func WithRecorder(r *audit.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithArchiver mirrors published versions to external storage.
func WithArchiver(a archive.Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithMetrics records publish and evaluation counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithWeightTolerance sets the allowed deviation of weighted sums from 100.
func WithWeightTolerance(tol float64) Option {
	return func(s *Service) { s.validator = scoring.NewValidator(tol) }
}

// WithConflictRetries sets how many times a publish is retried after a
// version number collision.
func WithConflictRetries(n int) Option {
	return func(s *Service) { s.retry = service.PublishRetryPolicy(n) }
}

// WithRetryPolicy sets the publish retry policy directly.
func WithRetryPolicy(p *service.RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service over store.
func New(store core.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: scoring.NewValidator(scoring.DefaultTolerance),
		archiver:  archive.Nop{},
		logger:    logging.NewNop(),
		retry:     service.PublishRetryPolicy(2),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recorder == nil {
		s.recorder = audit.NewRecorder(store, audit.WithLogger(s.logger), audit.WithMetrics(s.metrics))
	}
	return s
}

// timestamp returns the current time at the precision every backend keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) record(ctx context.Context, caller core.Caller, action core.AuditAction, entity core.EntityType, id string, before, after any) {
	s.recorder.Record(ctx, caller, audit.Change{
		Action:     action,
		EntityType: entity,
		EntityID:   id,
		Before:     before,
		After:      after,
	})
}

// canRead checks that the caller has an identity.
func canRead(caller core.Caller) error {
	return caller.Validate()
}

// canEdit checks that the caller may change templates.
func canEdit(caller core.Caller, action string) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	if !caller.CanEdit() {
		return core.ErrForbidden(fmt.Sprintf("role %s may not %s", caller.Role, action))
	}
	return nil
}

// mutate loads the caller's template under lock inside a transaction and
// rejects archived templates before fn runs any write.
func (s *Service) mutate(ctx context.Context, caller core.Caller, templateID string, fn func(repo core.Repository, t *core.Template) error) error {
	return s.store.RunInTx(ctx, func(repo core.Repository) error {
		t, err := repo.LockTemplate(ctx, caller.OrganizationID, templateID)
		if err != nil {
			return err
		}
		if err := t.EnsureMutable(); err != nil {
			return err
		}
		return fn(repo, t)
	})
}

// ListAudit returns audit entries of the caller's organization.
func (s *Service) ListAudit(ctx context.Context, caller core.Caller, filter core.AuditFilter) ([]*core.AuditLogEntry, error) {
	if err := caller.Require("read the audit log", core.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, caller.OrganizationID, filter)
}
