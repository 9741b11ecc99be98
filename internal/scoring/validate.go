// Package scoring validates rubric configurations for publish and reduces
// per-criterion scores to an overall result.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// DefaultTolerance is the allowed deviation of the weighted sum from 100.
const DefaultTolerance = 0.01

// Issue codes reported by the validator.
const (
	IssueNoCriteria        = "NO_CRITERIA"
	IssueNameRequired      = "NAME_REQUIRED"
	IssueWeightNotPositive = "WEIGHT_NOT_POSITIVE"
	IssueWeightSum         = "WEIGHT_SUM"
	IssueConfigInvalid     = "CONFIG_INVALID"
	IssueMaxScoreInvalid   = "MAX_SCORE_INVALID"
	IssueFormulaRequired   = "FORMULA_REQUIRED"
)

// Issue is one publish blocker.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of validating a template for publish.
type Result struct {
	Valid       bool    `json:"valid"`
	TotalWeight float64 `json:"total_weight"`
	Errors      []Issue `json:"errors"`
}

// Err converts an invalid result into a validation error carrying the issues.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		msgs = append(msgs, issue.Message)
	}
	return core.ErrValidation(core.CodeNotPublishable, strings.Join(msgs, "; ")).
		WithDetail("issues", r.Errors).
		WithDetail("total_weight", r.TotalWeight)
}

// Validator checks whether a template configuration can be published.
type Validator struct {
	tolerance float64
}

// NewValidator creates a validator. A non-positive tolerance selects the default.
func NewValidator(tolerance float64) *Validator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Validator{tolerance: tolerance}
}

// Validate runs the publish rules against a template and its criteria.
// Weight sums only block publish under the weighted method.
func (v *Validator) Validate(t *core.Template, criteria []*core.Criterion) Result {
	res := Result{Errors: []Issue{}}

	if len(criteria) == 0 {
		res.add("criteria", IssueNoCriteria, "template has no criteria; add at least one before publishing")
	}
	if t.ScoringMethod == core.ScoringCustomFormula && strings.TrimSpace(t.CustomFormula) == "" {
		res.add("custom_formula", IssueFormulaRequired, "custom_formula scoring requires a formula")
	}

	weighted := t.ScoringMethod == core.ScoringWeighted
	for i, c := range criteria {
		res.TotalWeight += c.Weight
		path := fmt.Sprintf("criteria[%d]", i)

		if strings.TrimSpace(c.Name) == "" {
			res.add(path+".name", IssueNameRequired, fmt.Sprintf("criterion %d is missing a name", i+1))
		}
		label := criterionLabel(c, i)
		if weighted && c.Weight <= 0 {
			res.add(path+".weight", IssueWeightNotPositive,
				fmt.Sprintf("%s must have a positive weight", label))
		}
		if err := c.Config.Validate(); err != nil {
			res.add(path+".config", IssueConfigInvalid, fmt.Sprintf("%s: %s", label, errMessage(err)))
		}
		if c.Type != core.CriteriaFreeText && c.MaxScore <= 0 {
			res.add(path+".max_score", IssueMaxScoreInvalid,
				fmt.Sprintf("%s must have a positive max_score", label))
		}
	}
	res.TotalWeight = round2(res.TotalWeight)

	if weighted && len(criteria) > 0 && math.Abs(res.TotalWeight-100) > v.tolerance+1e-9 {
		res.add("criteria.weight", IssueWeightSum,
			fmt.Sprintf("criteria weights total %s, must equal 100", formatNumber(res.TotalWeight)))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func (r *Result) add(path, code, msg string) {
	r.Errors = append(r.Errors, Issue{Path: path, Code: code, Message: msg})
}

func criterionLabel(c *core.Criterion, i int) string {
	if strings.TrimSpace(c.Name) != "" {
		return fmt.Sprintf("criterion %q", c.Name)
	}
	return fmt.Sprintf("criterion %d", i+1)
}

func errMessage(err error) string {
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		return domErr.Message
	}
	return err.Error()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
