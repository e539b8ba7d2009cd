package cli

import (
	"strings"

	"secure-agent-cli/internal/model"

	"github.com/agnivade/levenshtein"
)

// resolveIdentity accepts an identity id ("user:alan"), the bare part after
// the prefix ("alan"), or a display name, all case-insensitively. Unknown
// input gets the closest id as a suggestion when one is near enough.
func resolveIdentity(ids []model.Identity, arg string) (model.Identity, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return model.Identity{}, errUnknownIdentity(arg, "")
	}
	for _, id := range ids {
		if id.ID == arg {
			return id, nil
		}
	}

	key := strings.ToLower(arg)
	var matches []model.Identity
	for _, id := range ids {
		if strings.ToLower(id.ID) == key || strings.ToLower(bareID(id.ID)) == key || strings.ToLower(strings.TrimSpace(id.Name)) == key {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
	default:
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, m.ID)
		}
		return model.Identity{}, errAmbiguousIdentity(arg, out)
	}

	return model.Identity{}, errUnknownIdentity(arg, suggestIdentity(ids, key))
}

func bareID(id string) string {
	if i := strings.Index(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// suggestIdentity returns the id whose bare id or name is closest to key,
// or "" when nothing is within a third of the input's length (at least 2).
func suggestIdentity(ids []model.Identity, key string) string {
	key = bareID(key)
	limit := len([]rune(key)) / 3
	if limit < 2 {
		limit = 2
	}
	best, bestDist := "", limit+1
	for _, id := range ids {
		for _, cand := range []string{strings.ToLower(bareID(id.ID)), strings.ToLower(id.Name)} {
			if cand == "" {
				continue
			}
			if d := levenshtein.ComputeDistance(key, cand); d < bestDist {
				best, bestDist = id.ID, d
			}
		}
	}
	return best
}
