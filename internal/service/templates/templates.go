package templates

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
)

// ListTemplates returns the caller's templates, default first. A Query
// reorders the result by fuzzy match score and drops non-matches.
func (s *Service) ListTemplates(ctx context.Context, caller core.Caller, filter ListFilter) ([]*core.Template, error) {
	if err := canRead(caller); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("unknown status %q", filter.Status))
	}
	list, err := s.store.ListTemplates(ctx, caller.OrganizationID, core.TemplateFilter{
		Status:  filter.Status,
		UseCase: filter.UseCase,
	})
	if err != nil {
		return nil, err
	}
	if filter.Query == "" {
		return list, nil
	}

	names := make([]string, len(list))
	for i, t := range list {
		names[i] = t.Name
	}
	matches := fuzzy.Find(filter.Query, names)
	out := make([]*core.Template, 0, len(matches))
	for _, m := range matches {
		out = append(out, list[m.Index])
	}
	return out, nil
}

// GetTemplate returns a template with its groups and criteria.
func (s *Service) GetTemplate(ctx context.Context, caller core.Caller, id string) (*Detail, error) {
	if err := canRead(caller); err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, caller.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	d := &Detail{Template: t}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		groups, err := s.store.ListGroups(gctx, t.ID)
		d.Groups = groups
		return err
	})
	g.Go(func() error {
		criteria, err := s.store.ListCriteria(gctx, t.ID)
		d.Criteria = criteria
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateTemplate creates a draft template.
func (s *Service) CreateTemplate(ctx context.Context, caller core.Caller, in TemplateInput) (*core.Template, error) {
	if err := canEdit(caller, "create templates"); err != nil {
		return nil, err
	}
	if in.Status != nil && *in.Status != core.TemplateStatusDraft {
		return nil, core.ErrValidation(core.CodeInvalidInput, "templates are created as draft; publish to activate")
	}
	if in.IsDefault != nil && *in.IsDefault {
		return nil, core.ErrValidation(core.CodeDefaultNotActive, "only an active template can be the default")
	}

	method := core.ScoringWeighted
	if in.ScoringMethod != nil {
		method = *in.ScoringMethod
	}
	now := s.timestamp()
	t := core.NewTemplate(caller.OrganizationID, "", method)
	in.apply(t)
	t.ID = uuid.NewString()
	t.CreatedBy = caller.UserID
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.record(ctx, caller, core.AuditCreate, core.EntityTemplate, t.ID, nil, t)
	return t, nil
}

// UpdateTemplate edits fields, moves the status, or toggles the default
// flag. Archived templates accept only a restore to draft; field edits
// ride along only with that restore.
func (s *Service) UpdateTemplate(ctx context.Context, caller core.Caller, id string, in TemplateInput) (*core.Template, error) {
	if err := canEdit(caller, "update templates"); err != nil {
		return nil, err
	}

	var before, after core.Template
	err := s.store.RunInTx(ctx, func(repo core.Repository) error {
		if in.IsDefault != nil && *in.IsDefault {
			if err := repo.LockDefaults(ctx, caller.OrganizationID); err != nil {
				return err
			}
		}
		t, err := repo.LockTemplate(ctx, caller.OrganizationID, id)
		if err != nil {
			return err
		}
		before = *t
		now := s.timestamp()

		if in.Status != nil && *in.Status != t.Status {
			if err := t.TransitionTo(*in.Status, now); err != nil {
				return err
			}
		}
		if in.hasFields() || in.IsDefault != nil {
			if err := t.EnsureMutable(); err != nil {
				return err
			}
		}
		if in.hasFields() {
			in.apply(t)
			if err := t.Validate(); err != nil {
				return err
			}
		}
		if in.IsDefault != nil && *in.IsDefault != t.IsDefault {
			if *in.IsDefault {
				if err := makeDefault(ctx, repo, t); err != nil {
					return err
				}
			} else {
				t.IsDefault = false
			}
		}
		t.UpdatedAt = now
		if err := repo.UpdateTemplate(ctx, t); err != nil {
			return err
		}
		after = *t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditUpdate, core.EntityTemplate, id, before, after)
	return &after, nil
}

// DeleteTemplate removes a template and its groups and criteria. Published
// versions are kept. Templates with pending or in-progress sessions are
// rejected.
func (s *Service) DeleteTemplate(ctx context.Context, caller core.Caller, id string) error {
	if err := caller.Require("delete templates", core.RoleAdmin); err != nil {
		return err
	}

	var before *core.Template
	err := s.store.RunInTx(ctx, func(repo core.Repository) error {
		t, err := repo.LockTemplate(ctx, caller.OrganizationID, id)
		if err != nil {
			return err
		}
		open, err := repo.CountOpenSessions(ctx, t.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return core.ErrValidation(core.CodeTemplateInUse,
				fmt.Sprintf("template has %d pending or in-progress scoring sessions; archive it instead", open)).
				WithDetail("open_sessions", open)
		}
		before = t
		return repo.DeleteTemplate(ctx, caller.OrganizationID, t.ID)
	})
	if err != nil {
		return err
	}

	s.record(ctx, caller, core.AuditDelete, core.EntityTemplate, id, before, nil)
	return nil
}

// SetDefault makes an active template the organization default, clearing
// the flag on every other template in the same transaction.
func (s *Service) SetDefault(ctx context.Context, caller core.Caller, id string) (*core.Template, error) {
	if err := canEdit(caller, "change the default template"); err != nil {
		return nil, err
	}

	var before, after core.Template
	err := s.store.RunInTx(ctx, func(repo core.Repository) error {
		if err := repo.LockDefaults(ctx, caller.OrganizationID); err != nil {
			return err
		}
		t, err := repo.LockTemplate(ctx, caller.OrganizationID, id)
		if err != nil {
			return err
		}
		before = *t
		if err := makeDefault(ctx, repo, t); err != nil {
			return err
		}
		t.UpdatedAt = s.timestamp()
		if err := repo.UpdateTemplate(ctx, t); err != nil {
			return err
		}
		after = *t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditUpdate, core.EntityTemplate, id, before, after)
	return &after, nil
}

// makeDefault clears the other defaults of t's organization and flags t.
// The caller holds LockDefaults and persists t within the same transaction.
func makeDefault(ctx context.Context, repo core.Repository, t *core.Template) error {
	if t.Status != core.TemplateStatusActive {
		return core.ErrValidation(core.CodeDefaultNotActive,
			fmt.Sprintf("template is %s; only an active template can be the default", t.Status))
	}
	if _, err := repo.ClearDefault(ctx, t.OrganizationID, t.ID); err != nil {
		return err
	}
	t.IsDefault = true
	return nil
}

// DuplicateTemplate copies a template with its groups and criteria into a
// new draft. An empty name derives one from the source.
func (s *Service) DuplicateTemplate(ctx context.Context, caller core.Caller, id, name string) (*Detail, error) {
	if err := canEdit(caller, "create templates"); err != nil {
		return nil, err
	}

	d := &Detail{}
	err := s.store.RunInTx(ctx, func(repo core.Repository) error {
		src, err := repo.GetTemplate(ctx, caller.OrganizationID, id)
		if err != nil {
			return err
		}
		groups, err := repo.ListGroups(ctx, src.ID)
		if err != nil {
			return err
		}
		criteria, err := repo.ListCriteria(ctx, src.ID)
		if err != nil {
			return err
		}

		now := s.timestamp()
		t := *src
		t.ID = uuid.NewString()
		t.Name = name
		if t.Name == "" {
			t.Name = src.Name + " (copy)"
		}
		t.Status = core.TemplateStatusDraft
		t.Version = 0
		t.IsDefault = false
		t.ActivatedAt = nil
		t.ArchivedAt = nil
		t.CreatedBy = caller.UserID
		t.CreatedAt = now
		t.UpdatedAt = now
		if err := t.Validate(); err != nil {
			return err
		}
		if err := repo.CreateTemplate(ctx, &t); err != nil {
			return err
		}
		d.Template = &t

		ids := make(map[string]string, len(groups))
		for _, g := range groups {
			cp := *g
			cp.ID = uuid.NewString()
			cp.TemplateID = t.ID
			cp.CreatedAt, cp.UpdatedAt = now, now
			if err := repo.CreateGroup(ctx, &cp); err != nil {
				return err
			}
			ids[g.ID] = cp.ID
			d.Groups = append(d.Groups, &cp)
		}
		for _, c := range criteria {
			cp := *c
			cp.ID = uuid.NewString()
			cp.TemplateID = t.ID
			if c.GroupID != nil {
				gid := ids[*c.GroupID]
				cp.GroupID = &gid
			}
			cp.Keywords = append([]string(nil), c.Keywords...)
			cp.CreatedAt, cp.UpdatedAt = now, now
			if err := repo.CreateCriterion(ctx, &cp); err != nil {
				return err
			}
			d.Criteria = append(d.Criteria, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditCreate, core.EntityTemplate, d.Template.ID, nil, map[string]any{
		"template":        d.Template,
		"duplicated_from": id,
		"groups":          len(d.Groups),
		"criteria":        len(d.Criteria),
	})
	return d, nil
}

// ValidateTemplate runs the publish checks without changing anything.
func (s *Service) ValidateTemplate(ctx context.Context, caller core.Caller, id string) (scoring.Result, error) {
	if err := canRead(caller); err != nil {
		return scoring.Result{}, err
	}
	t, err := s.store.GetTemplate(ctx, caller.OrganizationID, id)
	if err != nil {
		return scoring.Result{}, err
	}
	criteria, err := s.store.ListCriteria(ctx, t.ID)
	if err != nil {
		return scoring.Result{}, err
	}
	return s.validator.Validate(t, criteria), nil
}
