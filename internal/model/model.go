package model

import "strings"

// Identity is a selectable principal on whose behalf a question is asked.
type Identity struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
}

type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Folder   string `json:"folder,omitempty"`
	Category string `json:"category,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// FolderKey returns the folder the document is filed under.
// Services that only report a category (e.g. "Engineering") get the
// lower-cased category as the folder key. This differs from the web page,
// which ignores category and files every folder-less document under general.
func (d Document) FolderKey() string {
	if f := strings.TrimSpace(d.Folder); f != "" {
		return strings.ToLower(f)
	}
	return strings.ToLower(strings.TrimSpace(d.Category))
}

// AccessEntry is one element of a permission response.
type AccessEntry struct {
	ID     string `json:"id"`
	Folder string `json:"folder"`
	Title  string `json:"title"`
}

// PermissionSnapshot is the set of documents an identity may access, as
// reported by the remote service. Ids are weak references into the catalog.
type PermissionSnapshot struct {
	IdentityID string        `json:"userId"`
	Entries    []AccessEntry `json:"accessibleDocuments"`
	Groups     []string      `json:"groups,omitempty"`

	accessible map[string]struct{}
}

func NewPermissionSnapshot(identityID string, entries []AccessEntry, groups []string) PermissionSnapshot {
	s := PermissionSnapshot{
		IdentityID: identityID,
		Entries:    entries,
		Groups:     groups,
		accessible: make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		s.accessible[e.ID] = struct{}{}
	}
	return s
}

// CanAccess reports membership of docID in the accessible set.
func (s PermissionSnapshot) CanAccess(docID string) bool {
	if s.accessible == nil {
		for _, e := range s.Entries {
			if e.ID == docID {
				return true
			}
		}
		return false
	}
	_, ok := s.accessible[docID]
	return ok
}

type ResultDocument struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Text     string  `json:"text,omitempty"`
	Score    float64 `json:"score"`
	Allowed  bool    `json:"allowed"`
	Error    string  `json:"error,omitempty"`
}

// QueryResult is superseded wholesale by the next successful query.
type QueryResult struct {
	Answer       string           `json:"answer"`
	AllowedCount int              `json:"allowedCount"`
	TotalCount   int              `json:"totalCount"`
	Documents    []ResultDocument `json:"documents"`
}

type Folder struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

const FolderGeneral = "general"

// Folders is the fixed, ordered folder table used by the permission panel.
var Folders = []Folder{
	{Key: "engineering", Label: "Engineering"},
	{Key: "se", Label: "SE"},
	{Key: "sales", Label: "Sales"},
	{Key: "product", Label: "Product"},
	{Key: "corporate", Label: "Corporate"},
	{Key: "scpm", Label: "SC/PM"},
	{Key: FolderGeneral, Label: "General"},
	{Key: "executive", Label: "Executive"},
}

func FolderLabel(key string) (string, bool) {
	for _, f := range Folders {
		if f.Key == key {
			return f.Label, true
		}
	}
	return "", false
}
