package render

import (
	"fmt"
	"time"

	"secure-agent-cli/internal/model"
)

// StaggerStep is the per-index reveal delay of result items.
const StaggerStep = 200 * time.Millisecond

const (
	MarkerAllowed = "allowed"
	MarkerDenied  = "denied"
)

type ResultItem struct {
	Index    int           `json:"index"`
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Category string        `json:"category"`
	Text     string        `json:"text,omitempty"`
	Score    float64       `json:"score"`
	Allowed  bool          `json:"allowed"`
	Marker   string        `json:"marker"`
	Error    string        `json:"error,omitempty"`
	Delay    time.Duration `json:"-"`
}

// ResultView is everything needed to paint one query result.
type ResultView struct {
	Answer         string       `json:"answer"`
	Summary        string       `json:"summary"`
	AllowedCount   int          `json:"allowedCount"`
	TotalCount     int          `json:"totalCount"`
	Items          []ResultItem `json:"documents"`
	ScrollIntoView bool         `json:"-"`
}

// Result projects a query result into a view. Items keep the order the
// service returned them in.
func Result(r model.QueryResult) ResultView {
	items := make([]ResultItem, 0, len(r.Documents))
	for i, d := range r.Documents {
		marker := MarkerDenied
		if d.Allowed {
			marker = MarkerAllowed
		}
		items = append(items, ResultItem{
			Index:    i,
			ID:       d.ID,
			Title:    d.Title,
			Category: d.Category,
			Text:     d.Text,
			Score:    d.Score,
			Allowed:  d.Allowed,
			Marker:   marker,
			Error:    d.Error,
			Delay:    StaggerStep * time.Duration(i),
		})
	}
	return ResultView{
		Answer:         r.Answer,
		Summary:        Summary(r.AllowedCount, r.TotalCount),
		AllowedCount:   r.AllowedCount,
		TotalCount:     r.TotalCount,
		Items:          items,
		ScrollIntoView: true,
	}
}

func Summary(allowed, total int) string {
	return fmt.Sprintf("%d / %d", allowed, total)
}

// Denied counts items carrying the denied marker.
func (v ResultView) Denied() int {
	n := 0
	for _, it := range v.Items {
		if it.Marker == MarkerDenied {
			n++
		}
	}
	return n
}
