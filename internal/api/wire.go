package api

import "secure-agent-cli/internal/model"

// Wire shapes of the remote service. The service speaks snake_case; the rest
// of the client works with internal/model types.

type wireIdentity struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
}

type wireDocument struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Folder   string `json:"folder,omitempty"`
	Category string `json:"category,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

type wireAccessEntry struct {
	ID     string `json:"id"`
	Folder string `json:"folder"`
	Title  string `json:"title"`
}

type wirePermissions struct {
	UserID              string            `json:"user_id"`
	AccessibleDocuments []wireAccessEntry `json:"accessible_documents"`
	Groups              []string          `json:"groups"`
}

type wireQueryRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

type wireResultDocument struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Text     string  `json:"text,omitempty"`
	Score    float64 `json:"score"`
	Allowed  bool    `json:"allowed"`
	Error    string  `json:"error,omitempty"`
}

type wireQueryResponse struct {
	Answer       string               `json:"answer"`
	AllowedCount int                  `json:"allowed_count"`
	TotalCount   int                  `json:"total_count"`
	Documents    []wireResultDocument `json:"documents"`
}

type wireError struct {
	Detail any `json:"detail"`
}

func (w wireIdentity) toModel() model.Identity {
	groups := w.Groups
	if groups == nil {
		groups = []string{}
	}
	return model.Identity{ID: w.ID, Name: w.Name, Role: w.Role, Groups: groups}
}

func (w wireDocument) toModel() model.Document {
	return model.Document{ID: w.ID, Title: w.Title, Folder: w.Folder, Category: w.Category, Lang: w.Lang}
}

func (w wirePermissions) toModel(identityID string) model.PermissionSnapshot {
	entries := make([]model.AccessEntry, 0, len(w.AccessibleDocuments))
	for _, e := range w.AccessibleDocuments {
		entries = append(entries, model.AccessEntry{ID: e.ID, Folder: e.Folder, Title: e.Title})
	}
	// Key by the id we asked for; older services omit user_id.
	return model.NewPermissionSnapshot(identityID, entries, w.Groups)
}

func (w wireQueryResponse) toModel() model.QueryResult {
	docs := make([]model.ResultDocument, 0, len(w.Documents))
	for _, d := range w.Documents {
		docs = append(docs, model.ResultDocument{
			ID:       d.ID,
			Title:    d.Title,
			Category: d.Category,
			Text:     d.Text,
			Score:    d.Score,
			Allowed:  d.Allowed,
			Error:    d.Error,
		})
	}
	return model.QueryResult{
		Answer:       w.Answer,
		AllowedCount: w.AllowedCount,
		TotalCount:   w.TotalCount,
		Documents:    docs,
	}
}

// Server-side helpers so the demo service encodes exactly what the client decodes.

func IdentityWire(id model.Identity) any {
	return wireIdentity{ID: id.ID, Name: id.Name, Role: id.Role, Groups: id.Groups}
}

func DocumentWire(d model.Document) any {
	return wireDocument{ID: d.ID, Title: d.Title, Folder: d.Folder, Category: d.Category, Lang: d.Lang}
}

func PermissionsWire(s model.PermissionSnapshot) any {
	out := wirePermissions{UserID: s.IdentityID, AccessibleDocuments: []wireAccessEntry{}, Groups: s.Groups}
	for _, e := range s.Entries {
		out.AccessibleDocuments = append(out.AccessibleDocuments, wireAccessEntry{ID: e.ID, Folder: e.Folder, Title: e.Title})
	}
	if out.Groups == nil {
		out.Groups = []string{}
	}
	return out
}

func QueryResultWire(r model.QueryResult) any {
	out := wireQueryResponse{
		Answer:       r.Answer,
		AllowedCount: r.AllowedCount,
		TotalCount:   r.TotalCount,
		Documents:    []wireResultDocument{},
	}
	for _, d := range r.Documents {
		out.Documents = append(out.Documents, wireResultDocument{
			ID:       d.ID,
			Title:    d.Title,
			Category: d.Category,
			Text:     d.Text,
			Score:    d.Score,
			Allowed:  d.Allowed,
			Error:    d.Error,
		})
	}
	return out
}

// QueryRequest is the decoded body of POST /api/query.
type QueryRequest struct {
	UserID   string
	Question string
}

func DecodeQueryRequest(b []byte) (QueryRequest, error) {
	var w wireQueryRequest
	if err := unmarshalStrict(b, &w); err != nil {
		return QueryRequest{}, err
	}
	return QueryRequest{UserID: w.UserID, Question: w.Question}, nil
}

func ErrorWire(detail string) any {
	return wireError{Detail: detail}
}
