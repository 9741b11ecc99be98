package core

import (
	"fmt"
	"strings"
	"time"
)

// ScoringMethod selects how per-criterion scores reduce to an overall result.
type ScoringMethod string

const (
	ScoringWeighted      ScoringMethod = "weighted"
	ScoringSimpleAverage ScoringMethod = "simple_average"
	ScoringPassFail      ScoringMethod = "pass_fail"
	ScoringPoints        ScoringMethod = "points"
	ScoringCustomFormula ScoringMethod = "custom_formula"
)

// Valid reports whether m is a known scoring method.
func (m ScoringMethod) Valid() bool {
	switch m {
	case ScoringWeighted, ScoringSimpleAverage, ScoringPassFail, ScoringPoints, ScoringCustomFormula:
		return true
	}
	return false
}

// TemplateStatus represents the lifecycle state of a template.
type TemplateStatus string

const (
	TemplateStatusDraft    TemplateStatus = "draft"
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusArchived TemplateStatus = "archived"
)

// Valid reports whether s is a known status.
func (s TemplateStatus) Valid() bool {
	switch s {
	case TemplateStatusDraft, TemplateStatusActive, TemplateStatusArchived:
		return true
	}
	return false
}

var templateTransitions = map[TemplateStatus][]TemplateStatus{
	TemplateStatusDraft:    {TemplateStatusActive, TemplateStatusArchived},
	TemplateStatusActive:   {TemplateStatusArchived},
	TemplateStatusArchived: {TemplateStatusDraft},
}

// Settings holds per-template scoring options.
type Settings struct {
	AllowNA              bool    `json:"allow_na" yaml:"allow_na"`
	RequireCommentsBelow float64 `json:"require_comments_below" yaml:"require_comments_below"`
	AutoCalculate        bool    `json:"auto_calculate" yaml:"auto_calculate"`
	ShowWeights          bool    `json:"show_weights" yaml:"show_weights"`
	AllowPartial         bool    `json:"allow_partial" yaml:"allow_partial"`
}

// DefaultSettings returns the settings applied to new templates.
func DefaultSettings() Settings {
	return Settings{
		AutoCalculate: true,
		ShowWeights:   true,
	}
}

// Template is a versionable rubric owned by one organization.
type Template struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	ScoringMethod  ScoringMethod  `json:"scoring_method"`
	UseCase        string         `json:"use_case"`
	PassThreshold  float64        `json:"pass_threshold"`
	MaxTotalScore  float64        `json:"max_total_score"`
	CustomFormula  string         `json:"custom_formula,omitempty"`
	Settings       Settings       `json:"settings"`
	Status         TemplateStatus `json:"status"`
	Version        int            `json:"version"`
	IsDefault      bool           `json:"is_default"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ActivatedAt    *time.Time     `json:"activated_at,omitempty"`
	ArchivedAt     *time.Time     `json:"archived_at,omitempty"`
}

// NewTemplate creates a draft template with default settings.
func NewTemplate(orgID, name string, method ScoringMethod) *Template {
	return &Template{
		OrganizationID: orgID,
		Name:           name,
		ScoringMethod:  method,
		PassThreshold:  70,
		Settings:       DefaultSettings(),
		Status:         TemplateStatusDraft,
	}
}

// IsArchived reports whether the template rejects mutation.
func (t *Template) IsArchived() bool {
	return t.Status == TemplateStatusArchived
}

// EnsureMutable returns a validation error for archived templates.
func (t *Template) EnsureMutable() error {
	if t.IsArchived() {
		return ErrValidation(CodeTemplateArchived, fmt.Sprintf("template %s is archived; restore it to draft before editing", t.ID))
	}
	return nil
}

// CanTransition reports whether the template may move to the target status.
func (t *Template) CanTransition(to TemplateStatus) bool {
	for _, allowed := range templateTransitions[t.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the template to a new status and stamps the
// lifecycle timestamps. Archiving clears the default flag.
func (t *Template) TransitionTo(to TemplateStatus, now time.Time) error {
	if !to.Valid() {
		return ErrValidation(CodeInvalidInput, fmt.Sprintf("unknown status %q", to))
	}
	if !t.CanTransition(to) {
		return ErrValidation(CodeInvalidTransition,
			fmt.Sprintf("cannot transition template from %s to %s", t.Status, to))
	}

	t.Status = to
	switch to {
	case TemplateStatusActive:
		t.ActivatedAt = &now
	case TemplateStatusArchived:
		t.ArchivedAt = &now
		t.IsDefault = false
	case TemplateStatusDraft:
		t.ArchivedAt = nil
	}
	t.UpdatedAt = now
	return nil
}

// Validate checks the template's own fields.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrValidation(CodeInvalidInput, "template name is required")
	}
	if len(t.Name) > 200 {
		return ErrValidation(CodeInvalidInput, "template name exceeds 200 characters")
	}
	if !t.ScoringMethod.Valid() {
		return ErrValidation(CodeInvalidInput, fmt.Sprintf("unknown scoring method %q", t.ScoringMethod))
	}
	if t.PassThreshold < 0 || t.PassThreshold > 100 {
		return ErrValidation(CodeInvalidInput, "pass_threshold must be between 0 and 100").
			WithDetail("pass_threshold", t.PassThreshold)
	}
	if t.MaxTotalScore < 0 {
		return ErrValidation(CodeInvalidInput, "max_total_score must not be negative")
	}
	if t.Settings.RequireCommentsBelow < 0 || t.Settings.RequireCommentsBelow > 100 {
		return ErrValidation(CodeInvalidInput, "settings.require_comments_below must be between 0 and 100")
	}
	return nil
}
