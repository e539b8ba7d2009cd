package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is a non-2xx response from the remote service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// NotFound reports whether the service answered 404.
func (e *StatusError) NotFound() bool { return e.Code == http.StatusNotFound }

func newStatusError(method, path string, code int, body []byte) *StatusError {
	return &StatusError{Method: method, Path: path, Code: code, Detail: detailFromBody(body)}
}

// maxDetailRunes bounds a raw (non-JSON) response body used as a detail.
const maxDetailRunes = 200

// detailFromBody extracts the service's {"detail": ...} field. Validation
// errors carry a list of objects there; those are flattened to their "msg".
func detailFromBody(body []byte) string {
	var w wireError
	if err := json.Unmarshal(body, &w); err != nil || w.Detail == nil {
		s := strings.TrimSpace(string(body))
		if rs := []rune(s); len(rs) > maxDetailRunes {
			s = string(rs[:maxDetailRunes])
		}
		return s
	}
	switch d := w.Detail.(type) {
	case string:
		return d
	case []any:
		var msgs []string
		for _, x := range d {
			if m, ok := x.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					msgs = append(msgs, msg)
				}
			}
		}
		return strings.Join(msgs, "; ")
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}
