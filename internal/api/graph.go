package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apimw "github.com/hugo-lorenzo-mato/scorecard/internal/api/middleware"
	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// ReorderRequest is the body of a reorder call. An item that names
// group_id, even as null, moves the criterion to that group.
type ReorderRequest struct {
	Items []json.RawMessage `json:"items"`
}

func (req ReorderRequest) items() ([]core.ReorderItem, error) {
	out := make([]core.ReorderItem, 0, len(req.Items))
	for i, raw := range req.Items {
		var item core.ReorderItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, badRequest(fmt.Sprintf("items[%d]: %v", i, err))
		}
		keys, err := presentKeys(raw)
		if err != nil {
			return nil, err
		}
		item.Regroup = keys["group_id"]
		out = append(out, item)
	}
	return out, nil
}

// DeleteGroupResponse reports how many criteria lost their group.
type DeleteGroupResponse struct {
	UngroupedCriteria int64 `json:"ungrouped_criteria"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.templates.ListGroups(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, groups)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in templates.GroupInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	g, err := s.templates.CreateGroup(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var in templates.GroupInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	g, err := s.templates.UpdateGroup(r.Context(), apimw.CallerFrom(r.Context()),
		chi.URLParam(r, "templateID"), chi.URLParam(r, "groupID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	n, err := s.templates.DeleteGroup(r.Context(), apimw.CallerFrom(r.Context()),
		chi.URLParam(r, "templateID"), chi.URLParam(r, "groupID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, DeleteGroupResponse{UngroupedCriteria: n})
}

func (s *Server) handleReorderGroups(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	items, err := req.items()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	groups, err := s.templates.ReorderGroups(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), items)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, groups)
}

func (s *Server) handleListCriteria(w http.ResponseWriter, r *http.Request) {
	criteria, err := s.templates.ListCriteria(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, criteria)
}

func (s *Server) handleCreateCriterion(w http.ResponseWriter, r *http.Request) {
	var in templates.CriterionInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	c, err := s.templates.CreateCriterion(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, c)
}

// handleUpdateCriterion edits a criterion. Sending "group_id": null moves
// it out of its group; omitting group_id leaves the group alone.
func (s *Server) handleUpdateCriterion(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	var in templates.CriterionInput
	if err := json.Unmarshal(raw, &in); err != nil {
		s.respondError(w, r, badRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	keys, err := presentKeys(raw)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	in.Regroup = keys["group_id"]

	c, err := s.templates.UpdateCriterion(r.Context(), apimw.CallerFrom(r.Context()),
		chi.URLParam(r, "templateID"), chi.URLParam(r, "criterionID"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCriterion(w http.ResponseWriter, r *http.Request) {
	err := s.templates.DeleteCriterion(r.Context(), apimw.CallerFrom(r.Context()),
		chi.URLParam(r, "templateID"), chi.URLParam(r, "criterionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderCriteria(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	items, err := req.items()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	criteria, err := s.templates.ReorderCriteria(r.Context(), apimw.CallerFrom(r.Context()), chi.URLParam(r, "templateID"), items)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, criteria)
}
