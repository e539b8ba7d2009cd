package render

import (
	"strings"

	"secure-agent-cli/internal/model"
)

type PanelDoc struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Accessible bool   `json:"accessible"`
}

type FolderGroup struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Docs  []PanelDoc `json:"documents"`
}

// Accessible counts accessible documents in the group.
func (g FolderGroup) Accessible() int {
	n := 0
	for _, d := range g.Docs {
		if d.Accessible {
			n++
		}
	}
	return n
}

type PanelView struct {
	IdentityID string        `json:"identityId"`
	Groups     []FolderGroup `json:"folders"`
	// HasSnapshot is false when no permissions were ever fetched for the
	// identity; every document then renders inaccessible.
	HasSnapshot bool `json:"hasSnapshot"`
}

// PermissionPanel groups the whole catalog by the fixed folder table and
// marks each document by membership in the snapshot.
//
// Documents without a folder go to "general". Documents whose folder is not
// in the table are left out of the panel entirely, even when accessible.
func PermissionPanel(identityID string, snap *model.PermissionSnapshot, docs []model.Document) PanelView {
	groups := make([]FolderGroup, len(model.Folders))
	index := make(map[string]int, len(model.Folders))
	for i, f := range model.Folders {
		groups[i] = FolderGroup{Key: f.Key, Label: f.Label, Docs: []PanelDoc{}}
		index[f.Key] = i
	}

	for _, d := range docs {
		key := d.FolderKey()
		if strings.TrimSpace(key) == "" {
			key = model.FolderGeneral
		}
		gi, ok := index[key]
		if !ok {
			continue
		}
		groups[gi].Docs = append(groups[gi].Docs, PanelDoc{
			ID:         d.ID,
			Title:      d.Title,
			Accessible: snap != nil && snap.CanAccess(d.ID),
		})
	}
	return PanelView{IdentityID: identityID, Groups: groups, HasSnapshot: snap != nil}
}

// Group returns the group for key, if present.
func (v PanelView) Group(key string) (FolderGroup, bool) {
	for _, g := range v.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return FolderGroup{}, false
}
