package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// Score is one raw criterion score submitted by a scorer.
type Score struct {
	CriterionID   string   `json:"criterion_id"`
	Value         *float64 `json:"score"`
	NotApplicable bool     `json:"not_applicable,omitempty"`
	Comment       string   `json:"comment,omitempty"`
}

// CriterionResult is the per-criterion breakdown of an outcome. Unscored
// marks an optional criterion left blank under allow_partial: it scores zero
// and keeps its weight.
type CriterionResult struct {
	CriterionID   string  `json:"criterion_id"`
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"max_score"`
	Normalized    float64 `json:"normalized"`
	Weight        float64 `json:"weight"`
	Contribution  float64 `json:"contribution"`
	NotApplicable bool    `json:"not_applicable,omitempty"`
	Skipped       bool    `json:"skipped,omitempty"`
	Unscored      bool    `json:"unscored,omitempty"`
	AutoFailed    bool    `json:"auto_failed,omitempty"`
}

// Outcome is the reduced result of a score set.
type Outcome struct {
	Method     core.ScoringMethod `json:"method"`
	Percentage float64            `json:"percentage"`
	Passed     bool               `json:"passed"`
	AutoFailed bool               `json:"auto_failed"`
	// Delegated is set for custom_formula templates; Percentage and Passed
	// are left for the external evaluator.
	Delegated bool              `json:"delegated"`
	Formula   string            `json:"formula,omitempty"`
	Criteria  []CriterionResult `json:"criteria"`
}

// Reduce combines raw scores into an outcome using the template's method.
// Scores are clamped to [0, max] before use.
func Reduce(t *core.Template, criteria []*core.Criterion, scores []Score) (*Outcome, error) {
	byID := make(map[string]Score, len(scores))
	for _, s := range scores {
		if _, dup := byID[s.CriterionID]; dup {
			return nil, invalidScores(fmt.Sprintf("duplicate score for criterion %s", s.CriterionID))
		}
		byID[s.CriterionID] = s
	}

	known := make(map[string]bool, len(criteria))
	for _, c := range criteria {
		known[c.ID] = true
	}
	for id := range byID {
		if !known[id] {
			return nil, invalidScores(fmt.Sprintf("score references unknown criterion %s", id))
		}
	}

	out := &Outcome{Method: t.ScoringMethod, Criteria: make([]CriterionResult, 0, len(criteria))}
	var missing, needComment []string

	for _, c := range criteria {
		res := CriterionResult{CriterionID: c.ID, Name: c.Name, MaxScore: c.MaxScore, Weight: c.Weight}
		s, ok := byID[c.ID]

		switch {
		case c.MaxScore <= 0:
			res.Skipped = true
		case ok && s.NotApplicable:
			if !t.Settings.AllowNA {
				return nil, invalidScores(fmt.Sprintf("criterion %q cannot be marked not applicable", c.Name))
			}
			res.NotApplicable = true
		case !ok || s.Value == nil:
			if c.IsRequired || !t.Settings.AllowPartial {
				missing = append(missing, c.Name)
			}
			res.Unscored = true
		default:
			if math.IsNaN(*s.Value) || math.IsInf(*s.Value, 0) {
				return nil, invalidScores(fmt.Sprintf("criterion %q has a non-finite score", c.Name))
			}
			res.Score = clamp(*s.Value, 0, c.MaxScore)
			res.Normalized = res.Score / c.MaxScore
			if c.IsAutoFail && c.AutoFailThreshold != nil && *s.Value < *c.AutoFailThreshold {
				res.AutoFailed = true
				out.AutoFailed = true
			}
			limit := t.Settings.RequireCommentsBelow
			if limit > 0 && res.Normalized*100 < limit && strings.TrimSpace(s.Comment) == "" {
				needComment = append(needComment, c.Name)
			}
		}
		out.Criteria = append(out.Criteria, res)
	}

	if len(missing) > 0 {
		return nil, invalidScores("missing scores for: " + strings.Join(missing, ", ")).
			WithDetail("missing", missing)
	}
	if len(needComment) > 0 {
		return nil, invalidScores(fmt.Sprintf("comments are required for scores below %s%%: %s",
			formatNumber(t.Settings.RequireCommentsBelow), strings.Join(needComment, ", "))).
			WithDetail("comments_required", needComment)
	}

	switch t.ScoringMethod {
	case core.ScoringWeighted:
		out.Percentage = weighted(out.Criteria)
	case core.ScoringSimpleAverage, core.ScoringPassFail:
		out.Percentage = average(out.Criteria)
	case core.ScoringPoints:
		out.Percentage = points(out.Criteria, t.MaxTotalScore)
	case core.ScoringCustomFormula:
		out.Delegated = true
		out.Formula = t.CustomFormula
		return out, nil
	default:
		return nil, core.ErrValidation(core.CodeInvalidInput,
			fmt.Sprintf("unknown scoring method %q", t.ScoringMethod))
	}

	out.Percentage = round2(out.Percentage)
	out.Passed = !out.AutoFailed && out.Percentage >= t.PassThreshold
	return out, nil
}

// weighted sums normalized scores times weight. Not-applicable criteria are
// excluded and the remaining weights rescaled to 100. Unscored criteria keep
// their weight and contribute zero.
func weighted(results []CriterionResult) float64 {
	var sum, totalWeight float64
	for i := range results {
		r := &results[i]
		if !counts(r) {
			continue
		}
		r.Contribution = r.Normalized * r.Weight
		sum += r.Contribution
		totalWeight += r.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return clamp(sum/totalWeight*100, 0, 100)
}

func average(results []CriterionResult) float64 {
	var sum float64
	var n int
	for i := range results {
		r := &results[i]
		if !counts(r) {
			continue
		}
		r.Contribution = r.Normalized * 100
		sum += r.Contribution
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// points compares raw totals against maxTotal, falling back to the sum of
// the scored criteria's max scores when the template sets none.
func points(results []CriterionResult, maxTotal float64) float64 {
	var sum, fallback float64
	for i := range results {
		r := &results[i]
		if !counts(r) {
			continue
		}
		r.Contribution = r.Score
		sum += r.Score
		fallback += r.MaxScore
	}
	if maxTotal <= 0 {
		maxTotal = fallback
	}
	if maxTotal == 0 {
		return 0
	}
	return clamp(sum/maxTotal*100, 0, 100)
}

func counts(r *CriterionResult) bool {
	return !r.Skipped && !r.NotApplicable
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func invalidScores(msg string) *core.DomainError {
	return core.ErrValidation(core.CodeInvalidScores, msg)
}
