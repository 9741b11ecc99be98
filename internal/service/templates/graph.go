package templates

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// ListGroups returns a template's groups in display order.
func (s *Service) ListGroups(ctx context.Context, caller core.Caller, templateID string) ([]*core.CriteriaGroup, error) {
	if err := canRead(caller); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTemplate(ctx, caller.OrganizationID, templateID); err != nil {
		return nil, err
	}
	return s.store.ListGroups(ctx, templateID)
}

// CreateGroup appends a group to a template. A missing sort order places
// it after the last group.
func (s *Service) CreateGroup(ctx context.Context, caller core.Caller, templateID string, in GroupInput) (*core.CriteriaGroup, error) {
	if err := canEdit(caller, "edit criteria groups"); err != nil {
		return nil, err
	}

	var g core.CriteriaGroup
	err := s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		now := s.timestamp()
		g = core.CriteriaGroup{ID: uuid.NewString(), TemplateID: t.ID, CreatedAt: now, UpdatedAt: now}
		in.apply(&g)
		if in.SortOrder == nil {
			top, ok, err := repo.MaxGroupSortOrder(ctx, t.ID)
			if err != nil {
				return err
			}
			g.SortOrder = nextSortOrder(top, ok)
		}
		if err := g.Validate(); err != nil {
			return err
		}
		return repo.CreateGroup(ctx, &g)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditCreate, core.EntityGroup, g.ID, nil, g)
	return &g, nil
}

// UpdateGroup edits a group.
func (s *Service) UpdateGroup(ctx context.Context, caller core.Caller, templateID, groupID string, in GroupInput) (*core.CriteriaGroup, error) {
	if err := canEdit(caller, "edit criteria groups"); err != nil {
		return nil, err
	}

	var before, after core.CriteriaGroup
	err := s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		g, err := repo.GetGroup(ctx, t.ID, groupID)
		if err != nil {
			return err
		}
		before = *g
		in.apply(g)
		g.UpdatedAt = s.timestamp()
		if err := g.Validate(); err != nil {
			return err
		}
		if err := repo.UpdateGroup(ctx, g); err != nil {
			return err
		}
		after = *g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditUpdate, core.EntityGroup, groupID, before, after)
	return &after, nil
}

// DeleteGroup removes a group and ungroups its criteria. It returns how
// many criteria were ungrouped.
func (s *Service) DeleteGroup(ctx context.Context, caller core.Caller, templateID, groupID string) (int64, error) {
	if err := canEdit(caller, "edit criteria groups"); err != nil {
		return 0, err
	}

	var (
		before    *core.CriteriaGroup
		ungrouped int64
	)
	err := s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		g, err := repo.GetGroup(ctx, t.ID, groupID)
		if err != nil {
			return err
		}
		before = g
		if ungrouped, err = repo.UngroupCriteria(ctx, t.ID, g.ID); err != nil {
			return err
		}
		return repo.DeleteGroup(ctx, t.ID, g.ID)
	})
	if err != nil {
		return 0, err
	}

	s.record(ctx, caller, core.AuditDelete, core.EntityGroup, groupID, before, map[string]int64{"ungrouped_criteria": ungrouped})
	return ungrouped, nil
}

// ReorderGroups applies new sort orders. Siblings are not renumbered; the
// caller supplies the full ordering.
func (s *Service) ReorderGroups(ctx context.Context, caller core.Caller, templateID string, items []core.ReorderItem) ([]*core.CriteriaGroup, error) {
	if err := canEdit(caller, "reorder criteria groups"); err != nil {
		return nil, err
	}
	if err := checkReorder(items); err != nil {
		return nil, err
	}

	var groups []*core.CriteriaGroup
	err := s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		existing, err := repo.ListGroups(ctx, t.ID)
		if err != nil {
			return err
		}
		if len(items) != len(existing) {
			return core.ErrValidation(core.CodeInvalidInput,
				fmt.Sprintf("reorder must list all %d groups of the template, got %d", len(existing), len(items))).
				WithDetail("groups", len(existing))
		}
		now := s.timestamp()
		for _, item := range items {
			g, err := repo.GetGroup(ctx, t.ID, item.ID)
			if err != nil {
				return err
			}
			g.SortOrder = item.SortOrder
			g.UpdatedAt = now
			if err := repo.UpdateGroup(ctx, g); err != nil {
				return err
			}
		}
		groups, err = repo.ListGroups(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditUpdate, core.EntityGroup, templateID, nil, map[string]any{"reorder": items})
	return groups, nil
}

// ListCriteria returns a template's criteria in display order.
func (s *Service) ListCriteria(ctx context.Context, caller core.Caller, templateID string) ([]*core.Criterion, error) {
	if err := canRead(caller); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTemplate(ctx, caller.OrganizationID, templateID); err != nil {
		return nil, err
	}
	return s.store.ListCriteria(ctx, templateID)
}

// CreateCriterion adds a criterion. The type's default config applies
// when none is given; a missing max score comes from the config and a
// missing sort order appends to the criterion's group, or to the
// ungrouped criteria.
func (s *Service) CreateCriterion(ctx context.Context, caller core.Caller, templateID string, in CriterionInput) (*core.Criterion, error) {
	if err := canEdit(caller, "edit criteria"); err != nil {
		return nil, err
	}
	if in.Type == nil {
		return nil, core.ErrValidation(core.CodeInvalidInput, "criteria_type is required")
	}
	if !in.Type.Valid() {
		return nil, unknownType(*in.Type)
	}
	cfg, err := decodeConfig(*in.Type, in.Config)
	if err != nil {
		return nil, err
	}

	var c core.Criterion
	err = s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		now := s.timestamp()
		c = core.Criterion{
			ID:         uuid.NewString(),
			TemplateID: t.ID,
			Type:       *in.Type,
			Config:     cfg,
			MaxScore:   cfg.MaxScore(),
			Keywords:   []string{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		in.apply(&c)
		if in.GroupID != nil {
			if err := checkGroup(ctx, repo, t.ID, *in.GroupID); err != nil {
				return err
			}
			c.GroupID = in.GroupID
		}
		if in.SortOrder == nil {
			top, ok, err := repo.MaxCriterionSortOrder(ctx, t.ID, c.GroupID)
			if err != nil {
				return err
			}
			c.SortOrder = nextSortOrder(top, ok)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		return repo.CreateCriterion(ctx, &c)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditCreate, core.EntityCriterion, c.ID, nil, c)
	return &c, nil
}

// UpdateCriterion edits a criterion. Changing the type resets the config
// and max score to the new type's defaults unless the input sets them.
func (s *Service) UpdateCriterion(ctx context.Context, caller core.Caller, templateID, criterionID string, in CriterionInput) (*core.Criterion, error) {
	if err := canEdit(caller, "edit criteria"); err != nil {
		return nil, err
	}
	if in.Type != nil && !in.Type.Valid() {
		return nil, unknownType(*in.Type)
	}

	var before, after core.Criterion
	err := s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		c, err := repo.GetCriterion(ctx, t.ID, criterionID)
		if err != nil {
			return err
		}
		before = *c

		if in.Type != nil && *in.Type != c.Type {
			c.Type = *in.Type
			c.Config = core.DefaultConfig(c.Type)
			c.MaxScore = c.Config.MaxScore()
		}
		if len(in.Config) > 0 {
			cfg, err := decodeConfig(c.Type, in.Config)
			if err != nil {
				return err
			}
			c.Config = cfg
		}
		in.apply(c)
		if in.GroupID != nil || in.Regroup {
			if in.GroupID != nil && !c.InGroup(in.GroupID) {
				if err := checkGroup(ctx, repo, t.ID, *in.GroupID); err != nil {
					return err
				}
			}
			c.GroupID = in.GroupID
		}
		c.UpdatedAt = s.timestamp()
		if err := c.Validate(); err != nil {
			return err
		}
		if err := repo.UpdateCriterion(ctx, c); err != nil {
			return err
		}
		after = *c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditUpdate, core.EntityCriterion, criterionID, before, after)
	return &after, nil
}

// DeleteCriterion removes a criterion that no score references.
func (s *Service) DeleteCriterion(ctx context.Context, caller core.Caller, templateID, criterionID string) error {
	if err := canEdit(caller, "edit criteria"); err != nil {
		return err
	}

	var before *core.Criterion
	err := s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		c, err := repo.GetCriterion(ctx, t.ID, criterionID)
		if err != nil {
			return err
		}
		scores, err := repo.CountScores(ctx, c.ID)
		if err != nil {
			return err
		}
		if scores > 0 {
			return core.ErrValidation(core.CodeCriterionInUse,
				fmt.Sprintf("criterion has %d recorded scores and cannot be deleted; archive the template instead", scores)).
				WithDetail("scores", scores)
		}
		before = c
		return repo.DeleteCriterion(ctx, t.ID, c.ID)
	})
	if err != nil {
		return err
	}

	s.record(ctx, caller, core.AuditDelete, core.EntityCriterion, criterionID, before, nil)
	return nil
}

// ReorderCriteria applies new sort orders and, for items flagged Regroup,
// new group assignments. Every item is applied or none is.
func (s *Service) ReorderCriteria(ctx context.Context, caller core.Caller, templateID string, items []core.ReorderItem) ([]*core.Criterion, error) {
	if err := canEdit(caller, "reorder criteria"); err != nil {
		return nil, err
	}
	if err := checkReorder(items); err != nil {
		return nil, err
	}

	var criteria []*core.Criterion
	err := s.mutate(ctx, caller, templateID, func(repo core.Repository, t *core.Template) error {
		now := s.timestamp()
		for _, item := range items {
			c, err := repo.GetCriterion(ctx, t.ID, item.ID)
			if err != nil {
				return err
			}
			c.SortOrder = item.SortOrder
			if item.Regroup {
				if item.GroupID != nil {
					if err := checkGroup(ctx, repo, t.ID, *item.GroupID); err != nil {
						return err
					}
				}
				c.GroupID = item.GroupID
			}
			c.UpdatedAt = now
			if err := repo.UpdateCriterion(ctx, c); err != nil {
				return err
			}
		}
		var err error
		criteria, err = repo.ListCriteria(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, core.AuditUpdate, core.EntityCriterion, templateID, nil, map[string]any{"reorder": items})
	return criteria, nil
}

func nextSortOrder(top int, ok bool) int {
	if !ok {
		return 0
	}
	return top + 1
}

func checkReorder(items []core.ReorderItem) error {
	if len(items) == 0 {
		return core.ErrValidation(core.CodeInvalidInput, "reorder requires at least one item")
	}
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" {
			return core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("items[%d].id is required", i))
		}
		if item.SortOrder < 0 {
			return core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("items[%d].sort_order must not be negative", i))
		}
		if seen[item.ID] {
			return core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("items[%d] repeats id %s", i, item.ID))
		}
		seen[item.ID] = true
	}
	return nil
}

// checkGroup verifies that groupID belongs to the template.
func checkGroup(ctx context.Context, repo core.Repository, templateID, groupID string) error {
	_, err := repo.GetGroup(ctx, templateID, groupID)
	if core.IsCategory(err, core.ErrCatNotFound) {
		return core.ErrValidation(core.CodeGroupMismatch,
			fmt.Sprintf("group %s does not belong to this template", groupID))
	}
	return err
}

func decodeConfig(t core.CriteriaType, raw []byte) (core.CriterionConfig, error) {
	if len(raw) == 0 {
		return core.DefaultConfig(t), nil
	}
	cfg, err := core.DecodeConfig(t, raw)
	if err != nil {
		return core.CriterionConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return core.CriterionConfig{}, err
	}
	return cfg, nil
}

func unknownType(t core.CriteriaType) error {
	return core.ErrValidation(core.CodeUnknownType, fmt.Sprintf("unknown criteria type %q", t)).
		WithDetail("known_types", core.CriteriaTypes())
}
