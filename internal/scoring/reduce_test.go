package scoring

import (
	"testing"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

func val(v float64) *float64 { return &v }

func scoresOf(pairs ...interface{}) []Score {
	out := make([]Score, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, Score{CriterionID: pairs[i].(string), Value: val(pairs[i+1].(float64))})
	}
	return out
}

func TestReduce_Weighted(t *testing.T) {
	criteria := criteriaWithWeights(60, 30, 10) // A, B, C, max 5 each
	tpl := weightedTemplate()

	out, err := Reduce(tpl, criteria, scoresOf("A", 5.0, "B", 2.5, "C", 0.0))
	if err != nil {
		t.Fatal(err)
	}
	// 1*60 + 0.5*30 + 0*10 = 75
	if out.Percentage != 75 {
		t.Fatalf("Percentage = %v", out.Percentage)
	}
	if !out.Passed {
		t.Fatal("75 should pass the default threshold of 70")
	}
	if out.Criteria[1].Contribution != 15 {
		t.Fatalf("B contribution = %v", out.Criteria[1].Contribution)
	}
}

func TestReduce_ClampsScores(t *testing.T) {
	criteria := criteriaWithWeights(50, 50)
	out, err := Reduce(weightedTemplate(), criteria, scoresOf("A", 9.0, "B", -3.0))
	if err != nil {
		t.Fatal(err)
	}
	if out.Percentage != 50 {
		t.Fatalf("Percentage = %v, want 50", out.Percentage)
	}
	if out.Criteria[0].Score != 5 || out.Criteria[1].Score != 0 {
		t.Fatalf("scores not clamped: %+v", out.Criteria)
	}
}

func TestReduce_SimpleAverage(t *testing.T) {
	tpl := core.NewTemplate("org", "QA", core.ScoringSimpleAverage)
	criteria := criteriaWithWeights(0, 0)
	out, err := Reduce(tpl, criteria, scoresOf("A", 5.0, "B", 2.0))
	if err != nil {
		t.Fatal(err)
	}
	if out.Percentage != 70 {
		t.Fatalf("Percentage = %v", out.Percentage)
	}
}

func TestReduce_PassFail(t *testing.T) {
	threshold := 3.0
	build := func() ([]*core.Criterion, *core.Template) {
		criteria := criteriaWithWeights(0, 0)
		criteria[0].IsAutoFail = true
		criteria[0].AutoFailThreshold = &threshold
		tpl := core.NewTemplate("org", "Compliance", core.ScoringPassFail)
		tpl.PassThreshold = 50
		return criteria, tpl
	}

	t.Run("auto fail overrides aggregate", func(t *testing.T) {
		criteria, tpl := build()
		out, err := Reduce(tpl, criteria, scoresOf("A", 2.0, "B", 5.0))
		if err != nil {
			t.Fatal(err)
		}
		if !out.AutoFailed || out.Passed {
			t.Fatalf("outcome = %+v", out)
		}
		if out.Percentage != 70 {
			t.Fatalf("Percentage = %v", out.Percentage)
		}
	})

	t.Run("passes on threshold", func(t *testing.T) {
		criteria, tpl := build()
		out, err := Reduce(tpl, criteria, scoresOf("A", 3.0, "B", 2.0))
		if err != nil {
			t.Fatal(err)
		}
		if out.AutoFailed || !out.Passed {
			t.Fatalf("outcome = %+v", out)
		}
	})

	t.Run("fails below threshold", func(t *testing.T) {
		criteria, tpl := build()
		out, err := Reduce(tpl, criteria, scoresOf("A", 3.0, "B", 0.0))
		if err != nil {
			t.Fatal(err)
		}
		if out.Passed {
			t.Fatalf("30%% should fail: %+v", out)
		}
	})
}

func TestReduce_Points(t *testing.T) {
	tpl := core.NewTemplate("org", "Points", core.ScoringPoints)
	tpl.MaxTotalScore = 20
	criteria := criteriaWithWeights(0, 0)
	out, err := Reduce(tpl, criteria, scoresOf("A", 4.0, "B", 4.0))
	if err != nil {
		t.Fatal(err)
	}
	if out.Percentage != 40 {
		t.Fatalf("Percentage = %v", out.Percentage)
	}

	tpl.MaxTotalScore = 0
	out, err = Reduce(tpl, criteria, scoresOf("A", 4.0, "B", 4.0))
	if err != nil {
		t.Fatal(err)
	}
	if out.Percentage != 80 {
		t.Fatalf("fallback Percentage = %v", out.Percentage)
	}
}

func TestReduce_CustomFormulaIsDelegated(t *testing.T) {
	tpl := core.NewTemplate("org", "Custom", core.ScoringCustomFormula)
	tpl.CustomFormula = "A*0.7 + B*0.3"
	out, err := Reduce(tpl, criteriaWithWeights(0, 0), scoresOf("A", 5.0, "B", 1.0))
	if err != nil {
		t.Fatal(err)
	}
	if !out.Delegated || out.Formula != tpl.CustomFormula {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Criteria[1].Normalized != 0.2 {
		t.Fatalf("inputs not normalized: %+v", out.Criteria)
	}
	if out.Percentage != 0 || out.Passed {
		t.Fatal("delegated outcome must not claim a result")
	}
}

func TestReduce_NotApplicable(t *testing.T) {
	criteria := criteriaWithWeights(50, 50)
	scores := []Score{
		{CriterionID: "A", Value: val(4)},
		{CriterionID: "B", NotApplicable: true},
	}

	tpl := weightedTemplate()
	if _, err := Reduce(tpl, criteria, scores); !core.IsCategory(err, core.ErrCatValidation) {
		t.Fatalf("N/A without allow_na should fail, got %v", err)
	}

	tpl.Settings.AllowNA = true
	out, err := Reduce(tpl, criteria, scores)
	if err != nil {
		t.Fatal(err)
	}
	if out.Percentage != 80 {
		t.Fatalf("Percentage = %v, want weights rescaled to 80", out.Percentage)
	}
}

func TestReduce_MissingScores(t *testing.T) {
	criteria := criteriaWithWeights(50, 50)
	tpl := weightedTemplate()

	if _, err := Reduce(tpl, criteria, scoresOf("A", 5.0)); !core.IsCategory(err, core.ErrCatValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	tpl.Settings.AllowPartial = true
	out, err := Reduce(tpl, criteria, scoresOf("A", 5.0))
	if err != nil {
		t.Fatal(err)
	}
	// B keeps its weight and scores zero: 1*50 + 0*50.
	if out.Percentage != 50 || out.Passed {
		t.Fatalf("outcome = %+v, want 50%% failing", out)
	}
	if !out.Criteria[1].Unscored || out.Criteria[1].Skipped {
		t.Fatalf("B = %+v, want unscored", out.Criteria[1])
	}

	avg := core.NewTemplate("org", "QA", core.ScoringSimpleAverage)
	avg.Settings.AllowPartial = true
	out, err = Reduce(avg, criteriaWithWeights(0, 0, 0, 0), scoresOf("A", 5.0, "B", 5.0))
	if err != nil {
		t.Fatal(err)
	}
	if out.Percentage != 50 {
		t.Fatalf("simple average Percentage = %v, want 50", out.Percentage)
	}

	criteria[1].IsRequired = true
	if _, err := Reduce(tpl, criteria, scoresOf("A", 5.0)); err == nil {
		t.Fatal("required criterion must be scored even with allow_partial")
	}
}

func TestReduce_RejectsBadInput(t *testing.T) {
	criteria := criteriaWithWeights(100)
	tpl := weightedTemplate()

	if _, err := Reduce(tpl, criteria, scoresOf("A", 1.0, "A", 2.0)); err == nil {
		t.Error("duplicate score should fail")
	}
	if _, err := Reduce(tpl, criteria, scoresOf("A", 1.0, "Z", 2.0)); err == nil {
		t.Error("unknown criterion should fail")
	}
}

func TestReduce_RequiresComments(t *testing.T) {
	criteria := criteriaWithWeights(50, 50)
	tpl := weightedTemplate()
	tpl.Settings.RequireCommentsBelow = 50

	_, err := Reduce(tpl, criteria, scoresOf("A", 5.0, "B", 1.0))
	if !core.IsCategory(err, core.ErrCatValidation) {
		t.Fatalf("expected comment requirement, got %v", err)
	}

	scores := scoresOf("A", 5.0, "B", 1.0)
	scores[1].Comment = "missed the close"
	if _, err := Reduce(tpl, criteria, scores); err != nil {
		t.Fatalf("commented low score should pass: %v", err)
	}
}

func TestReduce_SkipsFreeText(t *testing.T) {
	tpl := core.NewTemplate("org", "QA", core.ScoringSimpleAverage)
	criteria := append(criteriaWithWeights(0),
		&core.Criterion{ID: "N", Name: "Notes", Type: core.CriteriaFreeText})
	out, err := Reduce(tpl, criteria, scoresOf("A", 5.0))
	if err != nil {
		t.Fatal(err)
	}
	if out.Percentage != 100 || !out.Criteria[1].Skipped {
		t.Fatalf("outcome = %+v", out)
	}
}
