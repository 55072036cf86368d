package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"cardledger/internal/core"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrInvalidDate) {
			return &core.ValidationError{Field: "body", Err: err}
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// monthQuery parses the optional monthReference parameter. A malformed value
// is a validation error.
func monthQuery(r *http.Request) (*core.MonthRef, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("monthReference"))
	if raw == "" {
		return nil, nil
	}
	m, err := core.ParseMonthRef(raw)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// boolQuery parses an optional boolean parameter.
func boolQuery(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &core.ValidationError{Field: name, Err: fmt.Errorf("invalid boolean %q", raw)}
	}
	return &v, nil
}

// reference returns the instant whose invoice period a summary reports on.
func (s *Server) reference(m *core.MonthRef) time.Time {
	if m == nil {
		return s.now()
	}
	return m.First().Time
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
