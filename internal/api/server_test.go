package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/scorecard/internal/adapters/store"
	apimw "github.com/hugo-lorenzo-mato/scorecard/internal/api/middleware"
	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/metrics"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *store.Store
}

func newTestServer(t *testing.T, opts ...ServerOption) *testServer {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	srv := NewServer(templates.New(st), opts...)
	return &testServer{t: t, handler: srv.Handler(), store: st}
}

type envelope struct {
	Data    json.RawMessage        `json:"data"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details"`
}

func (ts *testServer) do(role core.Role, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	ts.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			ts.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(apimw.HeaderUserID, "u-"+string(role))
		req.Header.Set(apimw.HeaderOrgID, "org-1")
		req.Header.Set(apimw.HeaderRole, string(role))
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			ts.t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func (ts *testServer) mustDo(role core.Role, method, path string, body interface{}, wantStatus int, out interface{}) envelope {
	ts.t.Helper()
	rec, env := ts.do(role, method, path, body)
	if rec.Code != wantStatus {
		ts.t.Fatalf("%s %s status = %d, want %d; body = %s", method, path, rec.Code, wantStatus, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			ts.t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := newTestServer(t)
		rec, _ := ts.do("", http.MethodGet, "/health", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("failing health check", func(t *testing.T) {
		ts := newTestServer(t, WithHealthCheck(func(context.Context) error { return errors.New("db down") }))
		rec, _ := ts.do("", http.MethodGet, "/health", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestMissingIdentity(t *testing.T) {
	ts := newTestServer(t)
	rec, env := ts.do("", http.MethodGet, "/api/v1/templates", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if env.Code != "UNAUTHENTICATED" {
		t.Errorf("code = %q", env.Code)
	}
}

func TestTemplateWorkflow(t *testing.T) {
	ts := newTestServer(t)

	var tpl core.Template
	ts.mustDo(core.RoleManager, http.MethodPost, "/api/v1/templates",
		map[string]interface{}{"name": "Support QA", "scoring_method": "weighted"}, http.StatusCreated, &tpl)
	if tpl.Status != core.TemplateStatusDraft {
		t.Fatalf("status = %s, want draft", tpl.Status)
	}
	base := "/api/v1/templates/" + tpl.ID

	var group core.CriteriaGroup
	ts.mustDo(core.RoleManager, http.MethodPost, base+"/groups", map[string]string{"name": "Opening"}, http.StatusCreated, &group)

	var a, b core.Criterion
	ts.mustDo(core.RoleManager, http.MethodPost, base+"/criteria", map[string]interface{}{
		"name": "Greeting", "criteria_type": "scale", "weight": 60, "group_id": group.ID,
	}, http.StatusCreated, &a)
	ts.mustDo(core.RoleManager, http.MethodPost, base+"/criteria", map[string]interface{}{
		"name": "Resolution", "criteria_type": "pass_fail", "weight": 30,
	}, http.StatusCreated, &b)

	env := ts.mustDo(core.RoleManager, http.MethodPost, base+"/publish", nil, http.StatusUnprocessableEntity, nil)
	if env.Code != core.CodeNotPublishable {
		t.Errorf("code = %q, want %s", env.Code, core.CodeNotPublishable)
	}
	if !strings.Contains(env.Error, "90") {
		t.Errorf("error %q does not cite the weight total", env.Error)
	}
	if env.Details["issues"] == nil {
		t.Error("details.issues missing")
	}

	var validation struct {
		Valid       bool    `json:"valid"`
		TotalWeight float64 `json:"total_weight"`
	}
	ts.mustDo(core.RoleMember, http.MethodGet, base+"/validation", nil, http.StatusOK, &validation)
	if validation.Valid || validation.TotalWeight != 90 {
		t.Errorf("validation = %+v", validation)
	}

	ts.mustDo(core.RoleManager, http.MethodPut, base+"/criteria/"+b.ID, map[string]interface{}{"weight": 40}, http.StatusOK, &b)

	var published templates.PublishResult
	ts.mustDo(core.RoleManager, http.MethodPost, base+"/publish",
		map[string]interface{}{"change_summary": "launch", "set_as_default": true}, http.StatusCreated, &published)
	if published.Version.VersionNumber != 1 || !published.Template.IsDefault {
		t.Fatalf("publish result = %+v", published)
	}

	var latest core.TemplateVersion
	ts.mustDo(core.RoleMember, http.MethodGet, base+"/versions/latest", nil, http.StatusOK, &latest)
	if latest.VersionNumber != 1 || latest.ChangeSummary != "launch" {
		t.Errorf("latest = %+v", latest)
	}

	var outcome struct {
		Percentage float64 `json:"percentage"`
		Passed     bool    `json:"passed"`
	}
	ts.mustDo(core.RoleMember, http.MethodPost, base+"/versions/1/evaluate", map[string]interface{}{
		"scores": []map[string]interface{}{
			{"criterion_id": a.ID, "score": 5},
			{"criterion_id": b.ID, "score": 0},
		},
	}, http.StatusOK, &outcome)
	if outcome.Percentage != 60 || outcome.Passed {
		t.Errorf("outcome = %+v, want 60%% failing", outcome)
	}

	var page templates.VersionPage
	ts.mustDo(core.RoleMember, http.MethodGet, base+"/versions?limit=5", nil, http.StatusOK, &page)
	if page.Total != 1 || page.Limit != 5 {
		t.Errorf("page = %+v", page)
	}

	ts.mustDo(core.RoleMember, http.MethodGet, base+"/versions/2", nil, http.StatusNotFound, nil)
	ts.mustDo(core.RoleMember, http.MethodGet, base+"/versions/zero", nil, http.StatusBadRequest, nil)
}

func TestUpdateCriterion_GroupPresence(t *testing.T) {
	ts := newTestServer(t)
	var tpl core.Template
	ts.mustDo(core.RoleAdmin, http.MethodPost, "/api/v1/templates", map[string]string{"name": "T"}, http.StatusCreated, &tpl)
	base := "/api/v1/templates/" + tpl.ID

	var g core.CriteriaGroup
	ts.mustDo(core.RoleAdmin, http.MethodPost, base+"/groups", map[string]string{"name": "G"}, http.StatusCreated, &g)
	var c core.Criterion
	ts.mustDo(core.RoleAdmin, http.MethodPost, base+"/criteria",
		map[string]interface{}{"criteria_type": "rating", "group_id": g.ID}, http.StatusCreated, &c)

	ts.mustDo(core.RoleAdmin, http.MethodPut, base+"/criteria/"+c.ID, `{"name":"renamed"}`, http.StatusOK, &c)
	if c.GroupID == nil || *c.GroupID != g.ID {
		t.Fatalf("group changed without group_id in body: %v", c.GroupID)
	}

	ts.mustDo(core.RoleAdmin, http.MethodPut, base+"/criteria/"+c.ID, `{"group_id":null}`, http.StatusOK, &c)
	if c.GroupID != nil {
		t.Fatalf("explicit null did not ungroup: %v", *c.GroupID)
	}

	var list []core.Criterion
	ts.mustDo(core.RoleAdmin, http.MethodPut, base+"/criteria",
		`{"items":[{"id":"`+c.ID+`","sort_order":4,"group_id":"`+g.ID+`"}]}`, http.StatusOK, &list)
	if len(list) != 1 || list[0].GroupID == nil || list[0].SortOrder != 4 {
		t.Fatalf("reorder result = %+v", list)
	}

	var deleted DeleteGroupResponse
	ts.mustDo(core.RoleAdmin, http.MethodDelete, base+"/groups/"+g.ID, nil, http.StatusOK, &deleted)
	if deleted.UngroupedCriteria != 1 {
		t.Errorf("ungrouped = %d, want 1", deleted.UngroupedCriteria)
	}
}

func TestPublish_CamelCaseBody(t *testing.T) {
	ts := newTestServer(t)
	var tpl core.Template
	ts.mustDo(core.RoleManager, http.MethodPost, "/api/v1/templates", map[string]string{"name": "T"}, http.StatusCreated, &tpl)
	base := "/api/v1/templates/" + tpl.ID
	ts.mustDo(core.RoleManager, http.MethodPost, base+"/criteria",
		map[string]interface{}{"name": "Only", "criteria_type": "scale", "weight": 100}, http.StatusCreated, nil)

	var published templates.PublishResult
	ts.mustDo(core.RoleManager, http.MethodPost, base+"/publish",
		`{"changeSummary":"first","setAsDefault":true}`, http.StatusCreated, &published)
	if !published.Template.IsDefault {
		t.Error("setAsDefault was ignored")
	}
	if published.Version.ChangeSummary != "first" {
		t.Errorf("change summary = %q, want %q", published.Version.ChangeSummary, "first")
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	var tpl core.Template
	ts.mustDo(core.RoleAdmin, http.MethodPost, "/api/v1/templates", map[string]string{"name": "T"}, http.StatusCreated, &tpl)
	base := "/api/v1/templates/" + tpl.ID

	tests := []struct {
		name       string
		role       core.Role
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"malformed json", core.RoleAdmin, http.MethodPost, "/api/v1/templates", `{"name":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"empty body", core.RoleAdmin, http.MethodPost, "/api/v1/templates", nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"member cannot create", core.RoleMember, http.MethodPost, "/api/v1/templates", map[string]string{"name": "x"}, http.StatusForbidden, core.CodeForbidden},
		{"manager cannot delete", core.RoleManager, http.MethodDelete, base, nil, http.StatusForbidden, core.CodeForbidden},
		{"unknown template", core.RoleMember, http.MethodGet, "/api/v1/templates/missing", nil, http.StatusNotFound, core.CodeNotFound},
		{"default needs active", core.RoleAdmin, http.MethodPost, base + "/default", nil, http.StatusUnprocessableEntity, core.CodeDefaultNotActive},
		{"unknown type", core.RoleAdmin, http.MethodPost, base + "/criteria", map[string]string{"criteria_type": "slider"}, http.StatusUnprocessableEntity, core.CodeUnknownType},
		{"unknown status", core.RoleAdmin, http.MethodPut, base, map[string]string{"status": "bogus"}, http.StatusUnprocessableEntity, core.CodeInvalidInput},
		{"audit requires admin", core.RoleManager, http.MethodGet, "/api/v1/audit", nil, http.StatusForbidden, core.CodeForbidden},
		{"bad limit", core.RoleAdmin, http.MethodGet, "/api/v1/audit?limit=-1", nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"never published", core.RoleMember, http.MethodGet, base + "/versions/latest", nil, http.StatusUnprocessableEntity, core.CodeNoPublishedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := ts.do(tt.role, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if env.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", env.Code, tt.wantCode)
			}
		})
	}
}

func TestDuplicateAndDelete(t *testing.T) {
	ts := newTestServer(t)
	var tpl core.Template
	ts.mustDo(core.RoleAdmin, http.MethodPost, "/api/v1/templates", map[string]string{"name": "Source"}, http.StatusCreated, &tpl)

	var dup templates.Detail
	ts.mustDo(core.RoleManager, http.MethodPost, "/api/v1/templates/"+tpl.ID+"/duplicate", nil, http.StatusCreated, &dup)
	if dup.Template.Name != "Source (copy)" {
		t.Errorf("name = %q", dup.Template.Name)
	}

	rec, _ := ts.do(core.RoleAdmin, http.MethodDelete, "/api/v1/templates/"+dup.Template.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	var list []core.Template
	ts.mustDo(core.RoleMember, http.MethodGet, "/api/v1/templates?q=src", nil, http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != tpl.ID {
		t.Errorf("list = %+v", list)
	}

	var entries []core.AuditLogEntry
	ts.mustDo(core.RoleAdmin, http.MethodGet, "/api/v1/audit?entity_type=template", nil, http.StatusOK, &entries)
	if len(entries) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(entries))
	}
	if entries[0].Action != core.AuditDelete {
		t.Errorf("newest action = %s, want delete", entries[0].Action)
	}
	if entries[0].Context.RequestID == "" {
		t.Error("audit entry has no request id")
	}
}

func TestCriteriaTypes(t *testing.T) {
	ts := newTestServer(t)
	var types []struct {
		Type          string          `json:"type"`
		DefaultConfig json.RawMessage `json:"default_config"`
		MaxScore      float64         `json:"max_score"`
	}
	ts.mustDo(core.RoleMember, http.MethodGet, "/api/v1/criteria-types", nil, http.StatusOK, &types)
	if len(types) != len(core.CriteriaTypes()) {
		t.Fatalf("types = %d, want %d", len(types), len(core.CriteriaTypes()))
	}
	if types[0].Type != "scale" || types[0].MaxScore != 5 {
		t.Errorf("first type = %+v", types[0])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	ts := newTestServer(t, WithMetrics(m))
	ts.do(core.RoleMember, http.MethodGet, "/api/v1/templates", nil)

	rec, _ := ts.do("", http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/v1/templates`) {
		t.Errorf("metrics output lacks the route pattern:\n%s", rec.Body.String())
	}
}

func TestHttpStatusForDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantOK     bool
	}{
		{"validation", core.ErrValidation("BAD_INPUT", "bad"), http.StatusUnprocessableEntity, true},
		{"not found", core.ErrNotFound("item", "x"), http.StatusNotFound, true},
		{"forbidden", core.ErrForbidden("no"), http.StatusForbidden, true},
		{"auth", core.ErrAuth("missing identity"), http.StatusUnauthorized, true},
		{"conflict", core.ErrConflict(core.CodeVersionConflict, "taken"), http.StatusConflict, true},
		{"internal", core.ErrInternal("boom", nil), http.StatusInternalServerError, true},
		{"non-domain error", errors.New("plain"), 0, false},
		{"nil error", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := httpStatusForDomainError(tt.err)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}
