package templates

import (
	"encoding/json"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// TemplateInput carries template fields. Nil fields are left unchanged on
// update and defaulted on create.
type TemplateInput struct {
	Name          *string              `json:"name"`
	Description   *string              `json:"description"`
	ScoringMethod *core.ScoringMethod  `json:"scoring_method"`
	UseCase       *string              `json:"use_case"`
	PassThreshold *float64             `json:"pass_threshold"`
	MaxTotalScore *float64             `json:"max_total_score"`
	CustomFormula *string              `json:"custom_formula"`
	Settings      *core.Settings       `json:"settings"`
	Status        *core.TemplateStatus `json:"status"`
	IsDefault     *bool                `json:"is_default"`
}

// hasFields reports whether the input edits anything besides status and
// default flag.
func (in TemplateInput) hasFields() bool {
	return in.Name != nil || in.Description != nil || in.ScoringMethod != nil ||
		in.UseCase != nil || in.PassThreshold != nil || in.MaxTotalScore != nil ||
		in.CustomFormula != nil || in.Settings != nil
}

func (in TemplateInput) apply(t *core.Template) {
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.ScoringMethod != nil {
		t.ScoringMethod = *in.ScoringMethod
	}
	if in.UseCase != nil {
		t.UseCase = *in.UseCase
	}
	if in.PassThreshold != nil {
		t.PassThreshold = *in.PassThreshold
	}
	if in.MaxTotalScore != nil {
		t.MaxTotalScore = *in.MaxTotalScore
	}
	if in.CustomFormula != nil {
		t.CustomFormula = *in.CustomFormula
	}
	if in.Settings != nil {
		t.Settings = *in.Settings
	}
}

// GroupInput carries group fields.
type GroupInput struct {
	Name               *string  `json:"name"`
	Description        *string  `json:"description"`
	SortOrder          *int     `json:"sort_order"`
	Weight             *float64 `json:"weight"`
	IsRequired         *bool    `json:"is_required"`
	CollapsedByDefault *bool    `json:"collapsed_by_default"`
}

func (in GroupInput) apply(g *core.CriteriaGroup) {
	if in.Name != nil {
		g.Name = *in.Name
	}
	if in.Description != nil {
		g.Description = *in.Description
	}
	if in.SortOrder != nil {
		g.SortOrder = *in.SortOrder
	}
	if in.Weight != nil {
		g.Weight = *in.Weight
	}
	if in.IsRequired != nil {
		g.IsRequired = *in.IsRequired
	}
	if in.CollapsedByDefault != nil {
		g.CollapsedByDefault = *in.CollapsedByDefault
	}
}

// CriterionInput carries criterion fields. Config is decoded against the
// criterion's type; an empty Config keeps the current one, or the type's
// default when the type changes.
type CriterionInput struct {
	Name              *string            `json:"name"`
	Description       *string            `json:"description"`
	Type              *core.CriteriaType `json:"criteria_type"`
	Config            json.RawMessage    `json:"config"`
	GroupID           *string            `json:"group_id"`
	Weight            *float64           `json:"weight"`
	MaxScore          *float64           `json:"max_score"`
	SortOrder         *int               `json:"sort_order"`
	IsRequired        *bool              `json:"is_required"`
	IsAutoFail        *bool              `json:"is_auto_fail"`
	AutoFailThreshold *float64           `json:"auto_fail_threshold"`
	ScoringGuide      *string            `json:"scoring_guide"`
	Keywords          []string           `json:"keywords"`

	// Regroup applies GroupID even when it is nil, moving the criterion
	// out of its group.
	Regroup bool `json:"-"`
}

func (in CriterionInput) apply(c *core.Criterion) {
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Weight != nil {
		c.Weight = *in.Weight
	}
	if in.MaxScore != nil {
		c.MaxScore = *in.MaxScore
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	}
	if in.IsRequired != nil {
		c.IsRequired = *in.IsRequired
	}
	if in.IsAutoFail != nil {
		c.IsAutoFail = *in.IsAutoFail
	}
	if in.AutoFailThreshold != nil {
		c.AutoFailThreshold = in.AutoFailThreshold
	}
	if in.ScoringGuide != nil {
		c.ScoringGuide = *in.ScoringGuide
	}
	if in.Keywords != nil {
		c.Keywords = in.Keywords
	}
}

// PublishInput carries the publish options. Both snake_case and camelCase
// keys are accepted on decode.
type PublishInput struct {
	ChangeSummary string `json:"change_summary"`
	SetAsDefault  bool   `json:"set_as_default"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *PublishInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		ChangeSummary      *string `json:"change_summary"`
		SetAsDefault       *bool   `json:"set_as_default"`
		ChangeSummaryCamel *string `json:"changeSummary"`
		SetAsDefaultCamel  *bool   `json:"setAsDefault"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*in = PublishInput{}
	switch {
	case raw.ChangeSummaryCamel != nil:
		in.ChangeSummary = *raw.ChangeSummaryCamel
	case raw.ChangeSummary != nil:
		in.ChangeSummary = *raw.ChangeSummary
	}
	switch {
	case raw.SetAsDefaultCamel != nil:
		in.SetAsDefault = *raw.SetAsDefaultCamel
	case raw.SetAsDefault != nil:
		in.SetAsDefault = *raw.SetAsDefault
	}
	return nil
}

// ListFilter narrows a template listing. Query fuzzy-matches names.
type ListFilter struct {
	Status  core.TemplateStatus
	UseCase string
	Query   string
}

// Detail is a template with its groups and criteria.
type Detail struct {
	Template *core.Template        `json:"template"`
	Groups   []*core.CriteriaGroup `json:"groups"`
	Criteria []*core.Criterion     `json:"criteria"`
}

// PublishResult is the outcome of a successful publish.
type PublishResult struct {
	Template *core.Template        `json:"template"`
	Version  *core.TemplateVersion `json:"version"`
}

// VersionPage is one page of a version listing.
type VersionPage struct {
	Versions []*core.TemplateVersion `json:"versions"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}
