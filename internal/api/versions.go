package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apimw "github.com/hugo-lorenzo-mato/scorecard/internal/api/middleware"
	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// EvaluateRequest is the body of an evaluate call.
type EvaluateRequest struct {
	Scores []scoring.Score `json:"scores"`
}

// CriteriaTypeResponse describes one registered criterion type.
type CriteriaTypeResponse struct {
	Type          core.CriteriaType    `json:"type"`
	DefaultConfig core.CriterionConfig `json:"default_config"`
	MaxScore      float64              `json:"max_score"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var in templates.PublishInput
	if err := decodeJSON(w, r, &in, true); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.templates.Publish(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, res)
}

// handleListVersions returns a page of versions, newest first.
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.templates.ListVersions(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, res)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	number, err := versionParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	caller := apimw.CallerFrom(r.Context())
	templateID := chi.URLParam(r, "templateID")

	var v *core.TemplateVersion
	if number == 0 {
		v, err = s.templates.LatestVersion(r.Context(), caller, templateID)
	} else {
		v, err = s.templates.GetVersion(r.Context(), caller, templateID, number)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, v)
}

// handleEvaluate reduces a score set against a published version.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	number, err := versionParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	out, err := s.templates.Evaluate(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), number, req.Scores)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, out)
}

// handleListCriteriaTypes returns the criterion type registry with each
// type's default configuration.
func (s *Server) handleListCriteriaTypes(w http.ResponseWriter, _ *http.Request) {
	types := core.CriteriaTypes()
	out := make([]CriteriaTypeResponse, 0, len(types))
	for _, t := range types {
		cfg := core.DefaultConfig(t)
		out = append(out, CriteriaTypeResponse{Type: t, DefaultConfig: cfg, MaxScore: cfg.MaxScore()})
	}
	s.respondData(w, http.StatusOK, out)
}

// handleListAudit returns the organization's audit log, newest first.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	entries, err := s.templates.ListAudit(r.Context(), apimw.CallerFrom(r.Context()), core.AuditFilter{
		EntityType: core.EntityType(q.Get("entity_type")),
		EntityID:   q.Get("entity_id"),
		Page:       page.Normalize(),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, entries)
}
