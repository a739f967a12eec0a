package server

import (
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"library-service/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorBody is the body of every failed request.
type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a library error kind to its HTTP status.
func statusFor(err error) int {
	kind, ok := library.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case library.KindNotFound:
		return http.StatusNotFound
	case library.KindConflict:
		return http.StatusConflict
	case library.KindAlreadyExists, library.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeErr renders err with its mapped status. Library errors keep their
// message verbatim; anything else is logged and hidden behind a generic one.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", RequestID(r.Context()), "err", err)
		msg = "internal server error"
	}
	writeJSON(w, code, errorBody{Message: msg})
}

// ---------------------------------------------------------------------------
// Request parsing
// ---------------------------------------------------------------------------

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return library.InvalidInputf("invalid request body: %v", err)
	}
	return nil
}

// requireID checks a body id is present and positive.
func requireID(field string, v *int64) (int64, error) {
	if v == nil {
		return 0, library.InvalidInputf("%s is required", field)
	}
	if *v <= 0 {
		return 0, library.InvalidInputf("invalid %s: %d, must be a positive integer", field, *v)
	}
	return *v, nil
}

// pathID parses a positive integer path segment.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, library.InvalidInputf("invalid %s: %s, must be a positive integer", name, raw)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, library.InvalidInputf("invalid %s: %s, must be an integer", name, raw)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, library.InvalidInputf("invalid %s: %s, must be true or false", name, raw)
	}
	return &b, nil
}
