// Package audit records template mutations after they commit.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/logging"
	"github.com/hugo-lorenzo-mato/scorecard/internal/metrics"
)

// Change describes one committed mutation.
type Change struct {
	Action     core.AuditAction
	EntityType core.EntityType
	EntityID   string
	Before     any
	After      any
}

// Recorder writes audit entries. Failures are logged and counted but never
// returned, so a committed mutation is never reported as failed.
type Recorder struct {
	repo      core.AuditRepository
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	onFailure func(Change, error)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for write failures.
func WithLogger(l *logging.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics counts write failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// OnFailure registers a hook called after a failed write.
func OnFailure(fn func(Change, error)) Option {
	return func(r *Recorder) { r.onFailure = fn }
}

// NewRecorder creates a recorder backed by repo.
func NewRecorder(repo core.AuditRepository, opts ...Option) *Recorder {
	r := &Recorder{
		repo:   repo,
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists one change made by caller. The write runs detached from
// ctx cancellation because the mutation it describes has already committed.
func (r *Recorder) Record(ctx context.Context, caller core.Caller, ch Change) {
	if r == nil || r.repo == nil {
		return
	}
	entry, err := r.entry(ctx, caller, ch)
	if err == nil {
		err = r.repo.AppendAudit(context.WithoutCancel(ctx), entry)
	}
	if err != nil {
		r.fail(ctx, ch, err)
	}
}

func (r *Recorder) entry(ctx context.Context, caller core.Caller, ch Change) (*core.AuditLogEntry, error) {
	before, err := encodeState(ch.Before)
	if err != nil {
		return nil, fmt.Errorf("encoding before state: %w", err)
	}
	after, err := encodeState(ch.After)
	if err != nil {
		return nil, fmt.Errorf("encoding after state: %w", err)
	}
	return &core.AuditLogEntry{
		ID:             uuid.NewString(),
		OrganizationID: caller.OrganizationID,
		UserID:         caller.UserID,
		Action:         ch.Action,
		EntityType:     ch.EntityType,
		EntityID:       ch.EntityID,
		Before:         before,
		After:          after,
		Context:        core.RequestContextFrom(ctx),
		CreatedAt:      r.now(),
	}, nil
}

func (r *Recorder) fail(ctx context.Context, ch Change, err error) {
	r.logger.WithContext(ctx).Error("audit write failed",
		"action", string(ch.Action),
		"entity_type", string(ch.EntityType),
		"entity_id", ch.EntityID,
		"error", err,
	)
	r.metrics.AuditFailure()
	if r.onFailure != nil {
		r.onFailure(ch, err)
	}
}

func encodeState(v any) (json.RawMessage, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return s, nil
	}
	return json.Marshal(v)
}
