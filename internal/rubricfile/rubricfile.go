// Package rubricfile reads grading templates from YAML rubric files and
// creates them through the template service.
package rubricfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// Rubric is the file form of a template.
type Rubric struct {
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description"`
	ScoringMethod core.ScoringMethod `yaml:"scoring_method"`
	UseCase       string             `yaml:"use_case"`
	PassThreshold *float64           `yaml:"pass_threshold"`
	MaxTotalScore *float64           `yaml:"max_total_score"`
	CustomFormula string             `yaml:"custom_formula"`
	Settings      *core.Settings     `yaml:"settings"`
	Groups        []Group            `yaml:"groups"`
	Criteria      []Criterion        `yaml:"criteria"`
}

// Group is a section with its criteria nested underneath.
type Group struct {
	Name               string      `yaml:"name"`
	Description        string      `yaml:"description"`
	Weight             float64     `yaml:"weight"`
	IsRequired         bool        `yaml:"is_required"`
	CollapsedByDefault bool        `yaml:"collapsed_by_default"`
	Criteria           []Criterion `yaml:"criteria"`
}

// Criterion is one line item. Config is decoded against Type.
type Criterion struct {
	Name              string                 `yaml:"name"`
	Description       string                 `yaml:"description"`
	Type              core.CriteriaType      `yaml:"type"`
	Config            map[string]interface{} `yaml:"config"`
	Weight            float64                `yaml:"weight"`
	MaxScore          *float64               `yaml:"max_score"`
	IsRequired        bool                   `yaml:"is_required"`
	IsAutoFail        bool                   `yaml:"is_auto_fail"`
	AutoFailThreshold *float64               `yaml:"auto_fail_threshold"`
	ScoringGuide      string                 `yaml:"scoring_guide"`
	Keywords          []string               `yaml:"keywords"`
}

// ParseFile reads and checks a rubric file.
func ParseFile(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rubric: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a rubric and checks it. Unknown keys are rejected.
func Parse(r io.Reader) (*Rubric, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rb Rubric
	if err := dec.Decode(&rb); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.ErrValidation(core.CodeInvalidInput, "rubric file is empty")
		}
		return nil, core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("invalid rubric YAML: %v", err))
	}
	if err := rb.Check(); err != nil {
		return nil, err
	}
	return &rb, nil
}

// Check verifies what can be verified without a database: known types
// and well-formed configs.
func (rb *Rubric) Check() error {
	if rb.Name == "" {
		return core.ErrValidation(core.CodeInvalidInput, "rubric name is required")
	}
	if rb.ScoringMethod != "" && !rb.ScoringMethod.Valid() {
		return core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("unknown scoring method %q", rb.ScoringMethod))
	}
	for gi, g := range rb.Groups {
		if g.Name == "" {
			return core.ErrValidation(core.CodeInvalidInput, fmt.Sprintf("groups[%d].name is required", gi))
		}
		for ci, c := range g.Criteria {
			if _, err := c.config(); err != nil {
				return fmt.Errorf("groups[%d].criteria[%d]: %w", gi, ci, err)
			}
		}
	}
	for ci, c := range rb.Criteria {
		if _, err := c.config(); err != nil {
			return fmt.Errorf("criteria[%d]: %w", ci, err)
		}
	}
	return nil
}

// CriteriaCount returns the number of criteria, grouped or not.
func (rb *Rubric) CriteriaCount() int {
	n := len(rb.Criteria)
	for _, g := range rb.Groups {
		n += len(g.Criteria)
	}
	return n
}

// Preview runs the publish checks against the rubric as it would be
// imported, without touching a database. Rubric.Check must pass first.
func (rb *Rubric) Preview(v *scoring.Validator) (scoring.Result, error) {
	method := rb.ScoringMethod
	if method == "" {
		method = core.ScoringWeighted
	}
	t := core.NewTemplate("", rb.Name, method)
	t.CustomFormula = rb.CustomFormula

	var criteria []*core.Criterion
	add := func(c Criterion) error {
		raw, err := c.config()
		if err != nil {
			return err
		}
		cfg, err := core.DecodeConfig(c.Type, raw)
		if err != nil {
			return err
		}
		draft := &core.Criterion{
			Name:     c.Name,
			Type:     c.Type,
			Config:   cfg,
			Weight:   c.Weight,
			MaxScore: cfg.MaxScore(),
		}
		if c.MaxScore != nil {
			draft.MaxScore = *c.MaxScore
		}
		criteria = append(criteria, draft)
		return nil
	}
	for _, g := range rb.Groups {
		for _, c := range g.Criteria {
			if err := add(c); err != nil {
				return scoring.Result{}, err
			}
		}
	}
	for _, c := range rb.Criteria {
		if err := add(c); err != nil {
			return scoring.Result{}, err
		}
	}
	return v.Validate(t, criteria), nil
}

// config returns the JSON form of the criterion config after checking it
// against the type.
func (c Criterion) config() (json.RawMessage, error) {
	if !c.Type.Valid() {
		return nil, core.ErrValidation(core.CodeUnknownType, fmt.Sprintf("unknown criteria type %q", c.Type))
	}
	if len(c.Config) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(c.Config)
	if err != nil {
		return nil, core.ErrValidation(core.CodeInvalidConfig, fmt.Sprintf("config is not representable as JSON: %v", err))
	}
	cfg, err := core.DecodeConfig(c.Type, raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c Criterion) input(groupID *string) (templates.CriterionInput, error) {
	raw, err := c.config()
	if err != nil {
		return templates.CriterionInput{}, err
	}
	in := templates.CriterionInput{
		Name:              &c.Name,
		Description:       &c.Description,
		Type:              &c.Type,
		Config:            raw,
		GroupID:           groupID,
		Weight:            &c.Weight,
		MaxScore:          c.MaxScore,
		IsRequired:        &c.IsRequired,
		IsAutoFail:        &c.IsAutoFail,
		AutoFailThreshold: c.AutoFailThreshold,
		ScoringGuide:      &c.ScoringGuide,
		Keywords:          c.Keywords,
	}
	return in, nil
}

// Options control an import.
type Options struct {
	// Publish publishes the template after creating it.
	Publish bool
	// SetDefault makes the published template the organization default.
	SetDefault    bool
	ChangeSummary string
}

// Result reports what an import created.
type Result struct {
	Detail    *templates.Detail
	Published *templates.PublishResult
}

// Import creates a draft template from rb. If a later step fails the
// draft is removed when the caller may delete templates, and left in place
// otherwise. A failed publish leaves the draft in place for editing.
func Import(ctx context.Context, svc *templates.Service, caller core.Caller, rb *Rubric, opts Options) (*Result, error) {
	in := templates.TemplateInput{
		Name:          &rb.Name,
		Description:   &rb.Description,
		UseCase:       &rb.UseCase,
		PassThreshold: rb.PassThreshold,
		MaxTotalScore: rb.MaxTotalScore,
		Settings:      rb.Settings,
	}
	if rb.ScoringMethod != "" {
		in.ScoringMethod = &rb.ScoringMethod
	}
	if rb.CustomFormula != "" {
		in.CustomFormula = &rb.CustomFormula
	}

	t, err := svc.CreateTemplate(ctx, caller, in)
	if err != nil {
		return nil, err
	}
	if err := populate(ctx, svc, caller, t.ID, rb); err != nil {
		if caller.Role == core.RoleAdmin {
			if derr := svc.DeleteTemplate(ctx, caller, t.ID); derr != nil {
				return nil, errors.Join(err, fmt.Errorf("removing draft %s: %w", t.ID, derr))
			}
			return nil, err
		}
		return nil, fmt.Errorf("importing into draft %s: %w", t.ID, err)
	}

	detail, err := svc.GetTemplate(ctx, caller, t.ID)
	if err != nil {
		return nil, err
	}
	res := &Result{Detail: detail}
	if !opts.Publish {
		return res, nil
	}

	summary := opts.ChangeSummary
	if summary == "" {
		summary = "imported from rubric file"
	}
	published, err := svc.Publish(ctx, caller, t.ID, templates.PublishInput{
		ChangeSummary: summary,
		SetAsDefault:  opts.SetDefault,
	})
	if err != nil {
		return res, fmt.Errorf("draft %s created but not published: %w", t.ID, err)
	}
	res.Published = published
	res.Detail.Template = published.Template
	return res, nil
}

func populate(ctx context.Context, svc *templates.Service, caller core.Caller, templateID string, rb *Rubric) error {
	for gi := range rb.Groups {
		g := rb.Groups[gi]
		group, err := svc.CreateGroup(ctx, caller, templateID, templates.GroupInput{
			Name:               &g.Name,
			Description:        &g.Description,
			Weight:             &g.Weight,
			IsRequired:         &g.IsRequired,
			CollapsedByDefault: &g.CollapsedByDefault,
		})
		if err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		for _, c := range g.Criteria {
			if err := createCriterion(ctx, svc, caller, templateID, c, &group.ID); err != nil {
				return err
			}
		}
	}
	for _, c := range rb.Criteria {
		if err := createCriterion(ctx, svc, caller, templateID, c, nil); err != nil {
			return err
		}
	}
	return nil
}

func createCriterion(ctx context.Context, svc *templates.Service, caller core.Caller, templateID string, c Criterion, groupID *string) error {
	in, err := c.input(groupID)
	if err != nil {
		return fmt.Errorf("criterion %q: %w", c.Name, err)
	}
	if _, err := svc.CreateCriterion(ctx, caller, templateID, in); err != nil {
		return fmt.Errorf("criterion %q: %w", c.Name, err)
	}
	return nil
}
