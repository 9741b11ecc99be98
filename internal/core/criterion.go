package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// CriteriaGroup is an ordered section within a template.
type CriteriaGroup struct {
	ID                 string    `json:"id"`
	TemplateID         string    `json:"template_id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	SortOrder          int       `json:"sort_order"`
	Weight             float64   `json:"weight"`
	IsRequired         bool      `json:"is_required"`
	CollapsedByDefault bool      `json:"collapsed_by_default"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Validate checks the group's own fields.
func (g *CriteriaGroup) Validate() error {
	if g.Name == "" {
		return ErrValidation(CodeInvalidInput, "group name is required")
	}
	if g.Weight < 0 || g.Weight > 100 {
		return ErrValidation(CodeInvalidInput, "group weight must be between 0 and 100")
	}
	if g.SortOrder < 0 {
		return ErrValidation(CodeInvalidInput, "sort_order must not be negative")
	}
	return nil
}

// Criterion is a single scored line item.
type Criterion struct {
	ID                string          `json:"id"`
	TemplateID        string          `json:"template_id"`
	GroupID           *string         `json:"group_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Type              CriteriaType    `json:"criteria_type"`
	Config            CriterionConfig `json:"config"`
	Weight            float64         `json:"weight"`
	MaxScore          float64         `json:"max_score"`
	SortOrder         int             `json:"sort_order"`
	IsRequired        bool            `json:"is_required"`
	IsAutoFail        bool            `json:"is_auto_fail"`
	AutoFailThreshold *float64        `json:"auto_fail_threshold"`
	ScoringGuide      string          `json:"scoring_guide"`
	Keywords          []string        `json:"keywords"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// UnmarshalJSON decodes the config according to the criteria_type tag.
func (c *Criterion) UnmarshalJSON(data []byte) error {
	type plain Criterion
	aux := struct {
		*plain
		Config json.RawMessage `json:"config"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	cfg, err := DecodeConfig(c.Type, aux.Config)
	if err != nil {
		return err
	}
	c.Config = cfg
	return nil
}

// InGroup reports whether the criterion belongs to the given group. A nil
// group id matches ungrouped criteria.
func (c *Criterion) InGroup(groupID *string) bool {
	if c.GroupID == nil || groupID == nil {
		return c.GroupID == nil && groupID == nil
	}
	return *c.GroupID == *groupID
}

// Validate checks the criterion's own fields. Names may be blank while a
// template is a draft; publish validation rejects them.
func (c *Criterion) Validate() error {
	if !c.Type.Valid() {
		return ErrValidation(CodeUnknownType, fmt.Sprintf("unknown criteria type %q", c.Type))
	}
	if c.Weight < 0 || c.Weight > 100 {
		return ErrValidation(CodeInvalidInput, "weight must be between 0 and 100").
			WithDetail("weight", c.Weight)
	}
	if c.MaxScore < 0 {
		return ErrValidation(CodeInvalidInput, "max_score must not be negative")
	}
	if c.SortOrder < 0 {
		return ErrValidation(CodeInvalidInput, "sort_order must not be negative")
	}
	if c.IsAutoFail && c.AutoFailThreshold == nil {
		return ErrValidation(CodeInvalidInput, "auto_fail_threshold is required when is_auto_fail is set")
	}
	if c.AutoFailThreshold != nil && (*c.AutoFailThreshold < 0 || *c.AutoFailThreshold > c.MaxScore) {
		return ErrValidation(CodeInvalidInput, "auto_fail_threshold must be between 0 and max_score")
	}
	if !c.Config.IsEmpty() && c.Config.Type() != c.Type {
		return ErrValidation(CodeInvalidConfig,
			fmt.Sprintf("config shape %s does not match criteria type %s", c.Config.Type(), c.Type))
	}
	return nil
}
