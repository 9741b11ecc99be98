package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apimw "github.com/hugo-lorenzo-mato/scorecard/internal/api/middleware"
	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// DuplicateRequest is the optional body of a duplicate call.
type DuplicateRequest struct {
	Name string `json:"name"`
}

// handleListTemplates returns the caller's templates.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.templates.ListTemplates(r.Context(), apimw.CallerFrom(r.Context()), templates.ListFilter{
		Status:  core.TemplateStatus(q.Get("status")),
		UseCase: q.Get("use_case"),
		Query:   q.Get("q"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, list)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in templates.TemplateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	t, err := s.templates.CreateTemplate(r.Context(), apimw.CallerFrom(r.Context()), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, t)
}

// handleGetTemplate returns a template with its groups and criteria.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	d, err := s.templates.GetTemplate(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, d)
}

// handleUpdateTemplate edits fields, moves the status or toggles the
// default flag.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var in templates.TemplateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	t, err := s.templates.UpdateTemplate(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.DeleteTemplate(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDuplicateTemplate(w http.ResponseWriter, r *http.Request) {
	var req DuplicateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}
	d, err := s.templates.DuplicateTemplate(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, d)
}

func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	t, err := s.templates.SetDefault(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, t)
}

// handleValidateTemplate runs the publish checks without publishing.
func (s *Server) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	res, err := s.templates.ValidateTemplate(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, res)
}
