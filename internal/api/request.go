package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v. An empty body is an error
// unless allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return badRequest("request body is required")
		}
		return badRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest(fmt.Sprintf("%s must be a non-negative integer", key))
	}
	return n, nil
}

func queryPage(r *http.Request) (core.Page, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return core.Page{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return core.Page{}, err
	}
	return core.Page{Limit: limit, Offset: offset}, nil
}

// versionParam parses {number}. "latest" selects the newest version and
// is reported as 0.
func versionParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "number")
	if raw == "latest" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, badRequest(fmt.Sprintf("version number must be a positive integer or \"latest\", got %q", raw))
	}
	return n, nil
}

// presentKeys returns the top-level keys of a JSON object.
func presentKeys(raw json.RawMessage) (map[string]bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, badRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	keys := make(map[string]bool, len(fields))
	for k := range fields {
		keys[k] = true
	}
	return keys, nil
}
