package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// errBadRequest marks a request that could not be decoded.
type errBadRequest struct {
	msg string
}

func (e *errBadRequest) Error() string { return e.msg }

func badRequest(msg string) error {
	return &errBadRequest{msg: msg}
}

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		return http.StatusUnprocessableEntity, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatForbidden:
		return http.StatusForbidden, true
	case core.ErrCatConflict:
		return http.StatusConflict, true
	case core.ErrCatAuth:
		return http.StatusUnauthorized, true
	default:
		return http.StatusInternalServerError, true
	}
}

// errorBody is the failure envelope.
type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError maps err onto a status and failure envelope. Internal
// causes are logged, never returned.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *errBadRequest
	if errors.As(err, &bad) {
		s.respondJSON(w, http.StatusBadRequest, errorBody{Error: bad.msg, Code: "BAD_REQUEST"})
		return
	}

	status, ok := httpStatusForDomainError(err)
	if !ok || status == http.StatusInternalServerError {
		s.logger.WithContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
		return
	}

	var domErr *core.DomainError
	errors.As(err, &domErr)
	s.respondJSON(w, status, errorBody{
		Error:   domErr.Message,
		Code:    domErr.Code,
		Details: domErr.Details,
	})
}
