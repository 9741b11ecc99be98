package templates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/logging"
	"github.com/hugo-lorenzo-mato/scorecard/internal/metrics"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service"
)

// Publish validates a template and freezes it into the next version.
// Validation runs before any write. The version insert and the template
// update share one transaction; a version number collision retries the
// whole transaction and, once retries run out, returns a Conflict.
func (s *Service) Publish(ctx context.Context, caller core.Caller, templateID string, in PublishInput) (*PublishResult, error) {
	if err := canEdit(caller, "publish templates"); err != nil {
		return nil, err
	}
	logger := s.logger.WithContext(ctx).WithOrg(caller.OrganizationID).WithTemplate(templateID)

	var (
		before core.Template
		result *PublishResult
	)
	err := s.retry.ExecuteWithNotify(ctx, func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(repo core.Repository) error {
			var err error
			result, before, err = s.publishTx(ctx, repo, caller, templateID, in)
			return err
		})
	}, func(attempt int, err error, delay time.Duration) {
		s.metrics.PublishRetry()
		logger.Warn("publish collided with a concurrent publish, retrying",
			"attempt", attempt, "delay", delay, "error", err)
	})

	var exhausted *service.RetryExhaustedError
	if errors.As(err, &exhausted) {
		err = exhausted.LastErr
	}
	switch {
	case err == nil:
		s.metrics.Publish(metrics.OutcomePublished)
	case core.IsCategory(err, core.ErrCatConflict):
		s.metrics.Publish(metrics.OutcomeConflict)
		return nil, err
	case core.IsCategory(err, core.ErrCatValidation):
		s.metrics.Publish(metrics.OutcomeRejected)
		return nil, err
	default:
		s.metrics.Publish(metrics.OutcomeError)
		return nil, err
	}

	v := result.Version
	logger.WithVersion(v.VersionNumber).Info("template published", "set_default", in.SetAsDefault)
	s.record(ctx, caller, core.AuditPublish, core.EntityTemplate, templateID, before, map[string]any{
		"template":       result.Template,
		"version_id":     v.ID,
		"version_number": v.VersionNumber,
		"change_summary": v.ChangeSummary,
	})
	s.archive(ctx, logger, v)
	return result, nil
}

func (s *Service) publishTx(ctx context.Context, repo core.Repository, caller core.Caller, templateID string, in PublishInput) (*PublishResult, core.Template, error) {
	if in.SetAsDefault {
		if err := repo.LockDefaults(ctx, caller.OrganizationID); err != nil {
			return nil, core.Template{}, err
		}
	}
	t, err := repo.LockTemplate(ctx, caller.OrganizationID, templateID)
	if err != nil {
		return nil, core.Template{}, err
	}
	before := *t
	if err := t.EnsureMutable(); err != nil {
		return nil, before, err
	}
	groups, err := repo.ListGroups(ctx, t.ID)
	if err != nil {
		return nil, before, err
	}
	criteria, err := repo.ListCriteria(ctx, t.ID)
	if err != nil {
		return nil, before, err
	}
	if res := s.validator.Validate(t, criteria); !res.Valid {
		return nil, before, res.Err()
	}

	latest, err := repo.MaxVersionNumber(ctx, t.ID)
	if err != nil {
		return nil, before, err
	}
	next := latest + 1

	now := s.timestamp()
	if t.Status == core.TemplateStatusDraft {
		if err := t.TransitionTo(core.TemplateStatusActive, now); err != nil {
			return nil, before, err
		}
	} else {
		t.ActivatedAt = &now
	}
	t.Version = next
	t.UpdatedAt = now
	if in.SetAsDefault {
		if err := makeDefault(ctx, repo, t); err != nil {
			return nil, before, err
		}
	}

	snapshot, err := core.EncodeSnapshot(t, groups, criteria)
	if err != nil {
		return nil, before, err
	}
	v := &core.TemplateVersion{
		ID:             uuid.NewString(),
		OrganizationID: t.OrganizationID,
		TemplateID:     t.ID,
		VersionNumber:  next,
		Snapshot:       snapshot,
		ChangeSummary:  in.ChangeSummary,
		CreatedBy:      caller.UserID,
		CreatedAt:      now,
	}
	if err := repo.CreateVersion(ctx, v); err != nil {
		return nil, before, err
	}
	if err := repo.UpdateTemplate(ctx, t); err != nil {
		return nil, before, err
	}
	return &PublishResult{Template: t, Version: v}, before, nil
}

// archive mirrors a committed version. Failures are logged and counted;
// the version is already durable in the database.
func (s *Service) archive(ctx context.Context, logger *logging.Logger, v *core.TemplateVersion) {
	if err := s.archiver.Put(context.WithoutCancel(ctx), v); err != nil {
		s.metrics.ArchiveFailure(s.archiver.Driver())
		logger.Error("archiving published version failed",
			"driver", s.archiver.Driver(), "version", v.VersionNumber, "error", err)
	}
}

// ListVersions returns a page of a template's versions, newest first.
func (s *Service) ListVersions(ctx context.Context, caller core.Caller, templateID string, page core.Page) (*VersionPage, error) {
	if err := canRead(caller); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTemplate(ctx, caller.OrganizationID, templateID); err != nil {
		return nil, err
	}
	page = page.Normalize()
	versions, total, err := s.store.ListVersions(ctx, templateID, page)
	if err != nil {
		return nil, err
	}
	return &VersionPage{Versions: versions, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// GetVersion returns one published version. Versions outlive their
// template, so ownership is checked on the version itself.
func (s *Service) GetVersion(ctx context.Context, caller core.Caller, templateID string, number int) (*core.TemplateVersion, error) {
	if err := canRead(caller); err != nil {
		return nil, err
	}
	v, err := s.store.GetVersion(ctx, templateID, number)
	if err != nil {
		return nil, err
	}
	if v.OrganizationID != caller.OrganizationID {
		return nil, core.ErrNotFound("version", fmt.Sprint(number))
	}
	return v, nil
}

// LatestVersion returns the highest published version of a template.
func (s *Service) LatestVersion(ctx context.Context, caller core.Caller, templateID string) (*core.TemplateVersion, error) {
	if err := canRead(caller); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, caller.OrganizationID, templateID)
	if err != nil {
		return nil, err
	}
	if t.Version == 0 {
		return nil, core.ErrValidation(core.CodeNoPublishedVersion,
			fmt.Sprintf("template %s has never been published", t.ID))
	}
	return s.GetVersion(ctx, caller, templateID, t.Version)
}

// Evaluate reduces a score set against a published version's snapshot.
// number 0 selects the latest version.
func (s *Service) Evaluate(ctx context.Context, caller core.Caller, templateID string, number int, scores []scoring.Score) (*scoring.Outcome, error) {
	var (
		v   *core.TemplateVersion
		err error
	)
	if number == 0 {
		v, err = s.LatestVersion(ctx, caller, templateID)
	} else {
		v, err = s.GetVersion(ctx, caller, templateID, number)
	}
	if err != nil {
		return nil, err
	}

	snap, err := core.DecodeSnapshot(v.Snapshot)
	if err != nil {
		return nil, core.ErrInternal("stored snapshot is unreadable", err)
	}
	out, err := scoring.Reduce(&snap.Template, snap.CriteriaPointers(), scores)
	if err != nil {
		return nil, err
	}
	if !out.Delegated {
		s.metrics.Evaluation(string(out.Method), out.Passed)
	}
	return out, nil
}
