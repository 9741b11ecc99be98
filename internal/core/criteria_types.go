package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CriteriaType tags the shape of a criterion's configuration.
type CriteriaType string

const (
	CriteriaScale       CriteriaType = "scale"
	CriteriaPassFail    CriteriaType = "pass_fail"
	CriteriaChecklist   CriteriaType = "checklist"
	CriteriaDropdown    CriteriaType = "dropdown"
	CriteriaMultiSelect CriteriaType = "multi_select"
	CriteriaRating      CriteriaType = "rating"
	CriteriaPercentage  CriteriaType = "percentage"
	CriteriaFreeText    CriteriaType = "free_text"
)

// CriteriaTypes returns every registered type tag in display order.
func CriteriaTypes() []CriteriaType {
	return []CriteriaType{
		CriteriaScale,
		CriteriaPassFail,
		CriteriaChecklist,
		CriteriaDropdown,
		CriteriaMultiSelect,
		CriteriaRating,
		CriteriaPercentage,
		CriteriaFreeText,
	}
}

// Valid reports whether t is a registered type.
func (t CriteriaType) Valid() bool {
	_, ok := registry[t]
	return ok
}

// TypeConfig is the type-specific configuration of a criterion.
type TypeConfig interface {
	// Type returns the tag this configuration belongs to.
	Type() CriteriaType
	// Validate checks the configuration's shape.
	Validate() error
	// MaxScore is the highest raw score the configuration can produce.
	MaxScore() float64
}

var registry = map[CriteriaType]func() TypeConfig{
	CriteriaScale: func() TypeConfig {
		return &ScaleConfig{Min: 1, Max: 5, Step: 1, Labels: map[string]string{
			"1": "Poor",
			"3": "Meets expectations",
			"5": "Excellent",
		}}
	},
	CriteriaPassFail: func() TypeConfig {
		return &PassFailConfig{PassLabel: "Pass", FailLabel: "Fail"}
	},
	CriteriaChecklist: func() TypeConfig {
		return &ChecklistConfig{Items: []string{}}
	},
	CriteriaDropdown: func() TypeConfig {
		return &DropdownConfig{Options: []Option{}}
	},
	CriteriaMultiSelect: func() TypeConfig {
		return &MultiSelectConfig{Options: []Option{}}
	},
	CriteriaRating: func() TypeConfig {
		return &RatingConfig{Max: 5, Icon: "star"}
	},
	CriteriaPercentage: func() TypeConfig {
		return &PercentageConfig{Step: 1}
	},
	CriteriaFreeText: func() TypeConfig {
		return &FreeTextConfig{MaxLength: 2000}
	},
}

// CriterionConfig is a tagged union over the registered configuration
// shapes. The zero value is the empty configuration.
type CriterionConfig struct {
	Value TypeConfig
}

// DefaultConfig returns the canonical configuration for a type. Unknown
// types yield the empty configuration.
func DefaultConfig(t CriteriaType) CriterionConfig {
	factory, ok := registry[t]
	if !ok {
		return CriterionConfig{}
	}
	return CriterionConfig{Value: factory()}
}

// DecodeConfig decodes raw JSON into the shape selected by the tag. Unknown
// tags decode to the empty configuration; empty input yields the default.
func DecodeConfig(t CriteriaType, raw []byte) (CriterionConfig, error) {
	factory, ok := registry[t]
	if !ok {
		return CriterionConfig{}, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return DefaultConfig(t), nil
	}
	value := factory()
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return CriterionConfig{}, ErrValidation(CodeInvalidConfig,
			fmt.Sprintf("invalid %s config: %v", t, err))
	}
	return CriterionConfig{Value: value}, nil
}

// Type returns the tag of the held configuration, or "" when empty.
func (c CriterionConfig) Type() CriteriaType {
	if c.Value == nil {
		return ""
	}
	return c.Value.Type()
}

// IsEmpty reports whether no configuration is held.
func (c CriterionConfig) IsEmpty() bool {
	return c.Value == nil
}

// Validate dispatches to the held configuration.
func (c CriterionConfig) Validate() error {
	if c.Value == nil {
		return nil
	}
	return c.Value.Validate()
}

// MaxScore returns the held configuration's natural max score.
func (c CriterionConfig) MaxScore() float64 {
	if c.Value == nil {
		return 0
	}
	return c.Value.MaxScore()
}

// MarshalJSON encodes the held configuration without the tag; the tag
// travels on the owning criterion.
func (c CriterionConfig) MarshalJSON() ([]byte, error) {
	if c.Value == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.Value)
}

// ScaleConfig is a numeric scale between Min and Max.
type ScaleConfig struct {
	Min    float64           `json:"min"`
	Max    float64           `json:"max"`
	Step   float64           `json:"step"`
	Labels map[string]string `json:"labels,omitempty"`
}

func (c *ScaleConfig) Type() CriteriaType { return CriteriaScale }
func (c *ScaleConfig) MaxScore() float64  { return c.Max }

func (c *ScaleConfig) Validate() error {
	if c.Min >= c.Max {
		return configError(CriteriaScale, "min must be less than max")
	}
	if c.Step <= 0 {
		return configError(CriteriaScale, "step must be positive")
	}
	if c.Step > c.Max-c.Min {
		return configError(CriteriaScale, "step exceeds the scale range")
	}
	return nil
}

// PassFailConfig is a binary criterion scored 1 for pass and 0 for fail.
type PassFailConfig struct {
	PassLabel string `json:"pass_label"`
	FailLabel string `json:"fail_label"`
}

func (c *PassFailConfig) Type() CriteriaType { return CriteriaPassFail }
func (c *PassFailConfig) MaxScore() float64  { return 1 }

func (c *PassFailConfig) Validate() error {
	if strings.TrimSpace(c.PassLabel) == "" || strings.TrimSpace(c.FailLabel) == "" {
		return configError(CriteriaPassFail, "pass_label and fail_label are required")
	}
	return nil
}

// ChecklistConfig scores one point per checked item.
type ChecklistConfig struct {
	Items []string `json:"items"`
}

func (c *ChecklistConfig) Type() CriteriaType { return CriteriaChecklist }
func (c *ChecklistConfig) MaxScore() float64  { return float64(len(c.Items)) }

func (c *ChecklistConfig) Validate() error {
	if len(c.Items) == 0 {
		return configError(CriteriaChecklist, "at least one item is required")
	}
	seen := make(map[string]bool, len(c.Items))
	for i, item := range c.Items {
		label := strings.TrimSpace(item)
		if label == "" {
			return configError(CriteriaChecklist, fmt.Sprintf("items[%d] is empty", i))
		}
		if seen[label] {
			return configError(CriteriaChecklist, fmt.Sprintf("duplicate item %q", label))
		}
		seen[label] = true
	}
	return nil
}

// Option is a selectable choice carrying a score value.
type Option struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

func validateOptions(t CriteriaType, options []Option) error {
	if len(options) == 0 {
		return configError(t, "at least one option is required")
	}
	seen := make(map[string]bool, len(options))
	for i, opt := range options {
		label := strings.TrimSpace(opt.Label)
		if label == "" {
			return configError(t, fmt.Sprintf("options[%d] has an empty label", i))
		}
		if seen[label] {
			return configError(t, fmt.Sprintf("duplicate option %q", label))
		}
		if opt.Value < 0 {
			return configError(t, fmt.Sprintf("option %q has a negative value", label))
		}
		seen[label] = true
	}
	return nil
}

// DropdownConfig selects exactly one option.
type DropdownConfig struct {
	Options []Option `json:"options"`
}

func (c *DropdownConfig) Type() CriteriaType { return CriteriaDropdown }
func (c *DropdownConfig) Validate() error    { return validateOptions(CriteriaDropdown, c.Options) }

func (c *DropdownConfig) MaxScore() float64 {
	var best float64
	for _, opt := range c.Options {
		if opt.Value > best {
			best = opt.Value
		}
	}
	return best
}

// MultiSelectConfig selects up to MaxSelections options; the score is
// the sum of the selected values. MaxSelections 0 means unlimited.
type MultiSelectConfig struct {
	Options       []Option `json:"options"`
	MaxSelections int      `json:"max_selections,omitempty"`
}

func (c *MultiSelectConfig) Type() CriteriaType { return CriteriaMultiSelect }

func (c *MultiSelectConfig) Validate() error {
	if err := validateOptions(CriteriaMultiSelect, c.Options); err != nil {
		return err
	}
	if c.MaxSelections < 0 || c.MaxSelections > len(c.Options) {
		return configError(CriteriaMultiSelect, "max_selections must be between 0 and the number of options")
	}
	return nil
}

func (c *MultiSelectConfig) MaxScore() float64 {
	values := make([]float64, 0, len(c.Options))
	for _, opt := range c.Options {
		values = append(values, opt.Value)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	limit := len(values)
	if c.MaxSelections > 0 && c.MaxSelections < limit {
		limit = c.MaxSelections
	}
	var total float64
	for _, v := range values[:limit] {
		total += v
	}
	return total
}

// RatingConfig is an icon rating from 1 to Max.
type RatingConfig struct {
	Max  int    `json:"max"`
	Icon string `json:"icon,omitempty"`
}

func (c *RatingConfig) Type() CriteriaType { return CriteriaRating }
func (c *RatingConfig) MaxScore() float64  { return float64(c.Max) }

func (c *RatingConfig) Validate() error {
	if c.Max < 1 || c.Max > 10 {
		return configError(CriteriaRating, "max must be between 1 and 10")
	}
	return nil
}

// PercentageConfig is a 0-100 score.
type PercentageConfig struct {
	Step float64 `json:"step"`
}

func (c *PercentageConfig) Type() CriteriaType { return CriteriaPercentage }
func (c *PercentageConfig) MaxScore() float64  { return 100 }

func (c *PercentageConfig) Validate() error {
	if c.Step <= 0 || c.Step > 100 {
		return configError(CriteriaPercentage, "step must be in (0, 100]")
	}
	return nil
}

// FreeTextConfig captures commentary only and never contributes a score.
type FreeTextConfig struct {
	Placeholder string `json:"placeholder,omitempty"`
	MaxLength   int    `json:"max_length"`
}

func (c *FreeTextConfig) Type() CriteriaType { return CriteriaFreeText }
func (c *FreeTextConfig) MaxScore() float64  { return 0 }

func (c *FreeTextConfig) Validate() error {
	if c.MaxLength < 0 {
		return configError(CriteriaFreeText, "max_length must not be negative")
	}
	return nil
}

func configError(t CriteriaType, msg string) *DomainError {
	return ErrValidation(CodeInvalidConfig, fmt.Sprintf("%s config: %s", t, msg)).
		WithDetail("criteria_type", string(t))
}
