package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Texter is implemented by values with a human-readable rendering.
type Texter interface {
	Text() string
}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - text
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "text":
		return WriteText(w, v)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
//
// NOTE: We intentionally keep output strict JSON only. If you need to
// communicate how to fetch more data, use a `meta` object or `_hints` fields.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteText prints the Text() of v, or of the "data" field of an envelope
// map. Anything else falls back to indented JSON. Hints go last, one per line.
func WriteText(w io.Writer, v any) error {
	body, hints := textOf(v)
	if body == "" {
		return WriteJSON(w, v, true)
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(body, "\n")); err != nil {
		return err
	}
	for _, h := range hints {
		if _, err := fmt.Fprintf(w, "hint: %s\n", h); err != nil {
			return err
		}
	}
	return nil
}

func textOf(v any) (string, []string) {
	switch x := v.(type) {
	case Texter:
		return x.Text(), nil
	case string:
		return x, nil
	case map[string]any:
		var hints []string
		if hs, ok := x["_hints"].([]string); ok {
			hints = hs
		}
		if t, ok := x["data"].(Texter); ok {
			return t.Text(), hints
		}
		if s, ok := x["data"].(string); ok {
			return s, hints
		}
	}
	return "", nil
}
