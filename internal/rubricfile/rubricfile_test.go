package rubricfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/scorecard/internal/adapters/store"
	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

var (
	admin   = core.Caller{UserID: "u-admin", OrganizationID: "org-1", Role: core.RoleAdmin}
	manager = core.Caller{UserID: "u-manager", OrganizationID: "org-1", Role: core.RoleManager}
)

const salesRubric = `
name: Sales call QA
description: Outbound discovery calls
scoring_method: weighted
use_case: sales
pass_threshold: 70
settings:
  allow_na: true
  auto_calculate: true
groups:
  - name: Opening
    weight: 40
    criteria:
      - name: Greeting
        type: scale
        weight: 15
        config:
          min: 0
          max: 10
          step: 1
      - name: Agenda set
        type: pass_fail
        weight: 25
  - name: Discovery
    criteria:
      - name: Needs uncovered
        type: checklist
        weight: 40
        config:
          items: [budget, timeline, authority]
criteria:
  - name: Overall tone
    type: rating
    weight: 20
    keywords: [tone, empathy]
`

func newService(t *testing.T) *templates.Service {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{Path: filepath.Join(t.TempDir(), "scorecard.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return templates.New(st)
}

func TestParse(t *testing.T) {
	rb, err := Parse(strings.NewReader(salesRubric))
	require.NoError(t, err)

	assert.Equal(t, "Sales call QA", rb.Name)
	assert.Equal(t, core.ScoringWeighted, rb.ScoringMethod)
	require.NotNil(t, rb.PassThreshold)
	assert.Equal(t, 70.0, *rb.PassThreshold)
	require.NotNil(t, rb.Settings)
	assert.True(t, rb.Settings.AllowNA)
	assert.Len(t, rb.Groups, 2)
	assert.Equal(t, 4, rb.CriteriaCount())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{"empty", "", core.CodeInvalidInput},
		{"unknown key", "name: x\ncolour: blue\n", core.CodeInvalidInput},
		{"missing name", "description: nameless\n", core.CodeInvalidInput},
		{"bad method", "name: x\nscoring_method: vibes\n", core.CodeInvalidInput},
		{"unnamed group", "name: x\ngroups:\n  - weight: 10\n", core.CodeInvalidInput},
		{"unknown type", "name: x\ncriteria:\n  - name: c\n    type: slider\n", core.CodeUnknownType},
		{"bad config", "name: x\ncriteria:\n  - name: c\n    type: scale\n    config:\n      min: 10\n      max: 1\n", core.CodeInvalidConfig},
		{"unknown config key", "name: x\ncriteria:\n  - name: c\n    type: rating\n    config:\n      stars: 5\n", core.CodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			var derr *core.DomainError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.wantCode, derr.Code)
		})
	}
}

func TestPreview(t *testing.T) {
	v := scoring.NewValidator(scoring.DefaultTolerance)

	rb, err := Parse(strings.NewReader(salesRubric))
	require.NoError(t, err)
	res, err := rb.Preview(v)
	require.NoError(t, err)
	assert.True(t, res.Valid, "issues: %+v", res.Errors)
	assert.Equal(t, 100.0, res.TotalWeight)

	rb, err = Parse(strings.NewReader(strings.Replace(salesRubric, "weight: 20", "weight: 10", 1)))
	require.NoError(t, err)
	res, err = rb.Preview(v)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, 90.0, res.TotalWeight)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, scoring.IssueWeightSum, res.Errors[len(res.Errors)-1].Code)

	empty := &Rubric{Name: "Empty"}
	res, err = empty.Preview(v)
	require.NoError(t, err)
	assert.Equal(t, scoring.IssueNoCriteria, res.Errors[0].Code)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.yaml")
	require.NoError(t, os.WriteFile(path, []byte(salesRubric), 0o600))

	rb, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sales", rb.UseCase)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestImport_Publish(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	rb, err := Parse(strings.NewReader(salesRubric))
	require.NoError(t, err)

	res, err := Import(ctx, svc, manager, rb, Options{Publish: true, SetDefault: true})
	require.NoError(t, err)
	require.NotNil(t, res.Published)

	assert.Equal(t, 1, res.Published.Version.VersionNumber)
	assert.Equal(t, core.TemplateStatusActive, res.Detail.Template.Status)
	assert.True(t, res.Detail.Template.IsDefault)
	assert.Len(t, res.Detail.Groups, 2)
	require.Len(t, res.Detail.Criteria, 4)

	byName := map[string]*core.Criterion{}
	for _, c := range res.Detail.Criteria {
		byName[c.Name] = c
	}
	assert.Equal(t, 10.0, byName["Greeting"].MaxScore)
	assert.Equal(t, 3.0, byName["Needs uncovered"].MaxScore)
	assert.Equal(t, 5.0, byName["Overall tone"].MaxScore)
	assert.Nil(t, byName["Overall tone"].GroupID)
	require.NotNil(t, byName["Agenda set"].GroupID)
	assert.Equal(t, *byName["Greeting"].GroupID, *byName["Agenda set"].GroupID)
}

func TestImport_DraftOnly(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	rb, err := Parse(strings.NewReader(salesRubric))
	require.NoError(t, err)

	res, err := Import(ctx, svc, manager, rb, Options{})
	require.NoError(t, err)
	assert.Nil(t, res.Published)
	assert.Equal(t, core.TemplateStatusDraft, res.Detail.Template.Status)
}

func TestImport_UnpublishableKeepsDraft(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	rb, err := Parse(strings.NewReader(strings.Replace(salesRubric, "weight: 20", "weight: 10", 1)))
	require.NoError(t, err)

	res, err := Import(ctx, svc, manager, rb, Options{Publish: true})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
	require.NotNil(t, res)
	assert.Nil(t, res.Published)

	list, err := svc.ListTemplates(ctx, manager, templates.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.TemplateStatusDraft, list[0].Status)
}

func TestImport_CleansUpOnFailure(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	// Passes the offline check but the service rejects the negative weight.
	rb := &Rubric{
		Name: "Broken",
		Criteria: []Criterion{
			{Name: "ok", Type: core.CriteriaScale, Weight: 50},
			{Name: "bad", Type: core.CriteriaScale, Weight: -5},
		},
	}
	require.NoError(t, rb.Check())

	_, err := Import(ctx, svc, admin, rb, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `criterion "bad"`)

	list, err := svc.ListTemplates(ctx, admin, templates.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

// busyStore reports an open scoring session for every template, so
// deletes are refused.
type busyStore struct {
	core.Store
}

func (b busyStore) RunInTx(ctx context.Context, fn func(core.Repository) error) error {
	return b.Store.RunInTx(ctx, func(repo core.Repository) error {
		return fn(busyRepo{Repository: repo})
	})
}

type busyRepo struct {
	core.Repository
}

func (busyRepo) CountOpenSessions(context.Context, string) (int, error) {
	return 1, nil
}

func TestImport_ReportsFailedCleanup(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{Path: filepath.Join(t.TempDir(), "scorecard.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	svc := templates.New(busyStore{Store: st})

	rb := &Rubric{
		Name:     "Broken",
		Criteria: []Criterion{{Name: "bad", Type: core.CriteriaScale, Weight: -5}},
	}
	_, err = Import(ctx, svc, admin, rb, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `criterion "bad"`)
	assert.Contains(t, err.Error(), "removing draft")
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	list, err := svc.ListTemplates(ctx, admin, templates.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestImport_MemberForbidden(t *testing.T) {
	svc := newService(t)
	rb, err := Parse(strings.NewReader(salesRubric))
	require.NoError(t, err)

	member := core.Caller{UserID: "u-member", OrganizationID: "org-1", Role: core.RoleMember}
	_, err = Import(context.Background(), svc, member, rb, Options{})
	assert.True(t, core.IsCategory(err, core.ErrCatForbidden))
}
