package session

import (
	"errors"
	"fmt"

	"secure-agent-cli/internal/api"
)

var (
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrSuperseded      = errors.New("superseded by a newer query")
	ErrClosed          = errors.New("session closed")
)

// LoadError is a failed catalog or permission fetch. The session keeps
// running on empty or stale data.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Op, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// QueryError is a failed submission.
type QueryError struct {
	IdentityID string
	Err        error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query as %s: %v", e.IdentityID, e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// alertText is the user-facing message for a failed query.
func alertText(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		if se.Detail != "" {
			return "Query failed: " + se.Detail
		}
		return fmt.Sprintf("Query failed: HTTP %d", se.Code)
	}
	return "Query failed: " + err.Error()
}
