package demo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"secure-agent-cli/internal/api"
	"secure-agent-cli/internal/model"

	"go.uber.org/zap"
)

// Service answers questions over the demo store, filtering retrieved
// documents by what the asking user may view.
type Service struct {
	store *Store
	log   *zap.Logger
}

func NewService(store *Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log.With(zap.String("module", "demo"))}
}

// Query retrieves the TopK documents for question and checks each against
// userID's grants. A failed check denies that document and records why.
// Unknown users are not an error: every document is simply denied.
func (s *Service) Query(ctx context.Context, userID, question string) (model.QueryResult, error) {
	docs, err := s.store.Documents(ctx)
	if err != nil {
		return model.QueryResult{}, err
	}
	hits := retrieve(question, docs, TopK)

	res := model.QueryResult{Documents: make([]model.ResultDocument, 0, len(hits))}
	var allowed []StoredDocument
	for _, h := range hits {
		rd := model.ResultDocument{
			ID:       h.doc.ID,
			Title:    h.doc.Title,
			Category: h.doc.Category,
			Score:    h.score,
		}
		ok, err := s.store.CanView(ctx, userID, h.doc.ID)
		if err != nil {
			if ctx.Err() != nil {
				return model.QueryResult{}, ctx.Err()
			}
			s.log.Warn("access check failed", zap.String("identity", userID), zap.String("document", h.doc.ID), zap.Error(err))
			rd.Error = err.Error()
		} else {
			rd.Allowed = ok
			rd.Text = snippet(h.doc.Text)
			if ok {
				allowed = append(allowed, h.doc)
			}
		}
		res.Documents = append(res.Documents, rd)
	}
	res.AllowedCount = len(allowed)
	res.TotalCount = len(res.Documents)
	res.Answer = synthesize(allowed)
	return res, nil
}

// synthesize writes a markdown answer from the documents the user may see.
func synthesize(docs []StoredDocument) string {
	if len(docs) == 0 {
		return "I could not find any information you are allowed to access that answers this question."
	}
	var b strings.Builder
	b.WriteString("Based on the documents you can access:\n")
	for _, d := range docs {
		b.WriteString("\n- **")
		b.WriteString(d.Title)
		b.WriteString("**: ")
		b.WriteString(firstSentence(d.Text))
	}
	return b.String()
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, ": "); i > 0 && i < 80 {
		text = text[i+2:]
	}
	for _, sep := range []string{". ", "。"} {
		if i := strings.Index(text, sep); i >= 0 {
			return text[:i+len(strings.TrimSpace(sep))]
		}
	}
	return snippet(text)
}

// Server exposes a Service over the HTTP contract the client consumes.
type Server struct {
	svc   *Service
	store *Store
	log   *zap.Logger
}

func NewServer(store *Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("module", "demo"))
	return &Server{svc: NewService(store, log), store: store, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/users", s.handleUsers)
	mux.HandleFunc("GET /api/documents", s.handleDocuments)
	mux.HandleFunc("GET /api/permissions/{userId}", s.handlePermissions)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	return s.logRequests(mux)
}

// Serve answers on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.code),
			zap.String("request_id", r.Header.Get("X-Request-Id")),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.Users(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]any, 0, len(users))
	for _, u := range users {
		out = append(out, api.IdentityWire(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.Documents(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, api.DocumentWire(d.Document))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	user, err := s.store.User(r.Context(), userID)
	if errors.Is(err, ErrUnknownUser) {
		writeJSON(w, http.StatusNotFound, api.ErrorWire("User not found"))
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	entries, err := s.store.Accessible(r.Context(), userID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, api.PermissionsWire(model.NewPermissionSnapshot(userID, entries, user.Groups)))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	req, err := api.DecodeQueryRequest(b)
	if err == nil && strings.TrimSpace(req.UserID) == "" {
		err = errors.New("user_id: field required")
	}
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body"}, "msg": err.Error(), "type": "value_error"}},
		})
		return
	}
	res, err := s.svc.Query(r.Context(), req.UserID, req.Question)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, api.QueryResultWire(res))
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	s.log.Warn("request failed", zap.Int("status", code), zap.Error(err))
	writeJSON(w, code, api.ErrorWire(err.Error()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
