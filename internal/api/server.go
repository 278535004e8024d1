package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/replybot/internal/classifier"
	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/store"
)

// Store is the part of the database the admin API edits
type Store interface {
	Ping(ctx context.Context) error
	Tags(ctx context.Context) ([]domain.Tag, error)
	AddTag(ctx context.Context, text string, strategy domain.MatchStrategy, scope domain.Scope) (*domain.Tag, error)
	RemoveTag(ctx context.Context, id int64) error
	ListMedia(ctx context.Context) ([]domain.Media, error)
}

// Invalidator drops cached catalog data after an edit
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Server handles HTTP requests for the admin API
type Server struct {
	store      Store
	cache      Invalidator
	recognizer *classifier.Recognizer
	threshold  float64
	addr       string
	logger     *slog.Logger
}

// New creates a new API server. cache may be nil.
func New(s Store, cache Invalidator, threshold float64, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:      s,
		cache:      cache,
		recognizer: classifier.New(classifier.WithLogger(logger)),
		threshold:  threshold,
		addr:       addr,
		logger:     logger,
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Tags
	mux.HandleFunc("GET /tags", s.listTags)
	mux.HandleFunc("POST /tags", s.addTag)
	mux.HandleFunc("DELETE /tags/{id}", s.removeTag)

	// Media
	mux.HandleFunc("GET /media", s.listMedia)

	// Recognition dry run
	mux.HandleFunc("POST /recognize", s.recognize)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("admin api listening", slog.String("addr", s.addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// withCORS adds CORS headers for browser tooling
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddTagRequest is the request body for adding a tag
type AddTagRequest struct {
	Text     string `json:"text"`
	Strategy string `json:"strategy,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

func (s *Server) addTag(w http.ResponseWriter, r *http.Request) {
	var req AddTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	strategy, scope := domain.StrategyFuzzy, domain.ScopePerToken
	var err error
	if req.Strategy != "" {
		if strategy, err = domain.ParseStrategy(req.Strategy); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Scope != "" {
		if scope, err = domain.ParseScope(req.Scope); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	tag, err := s.store.AddTag(r.Context(), req.Text, strategy, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidate(r.Context())

	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) removeTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	err = s.store.RemoveTag(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tag not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidate(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.store.Tags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tags": nonNil(tags),
	})
}

func (s *Server) listMedia(w http.ResponseWriter, r *http.Request) {
	media, err := s.store.ListMedia(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"media": nonNil(media),
	})
}

// RecognizeRequest is the request body for a recognition dry run.
// URLs are excluded from tokenization, as url entities of a chat message are.
type RecognizeRequest struct {
	Text string   `json:"text"`
	URLs []string `json:"urls,omitempty"`
}

// RecognizeResponse reports what the bot would match for a text
type RecognizeResponse struct {
	Tag     string   `json:"tag,omitempty"`
	Matched bool     `json:"matched"`
	Tokens  []string `json:"tokens"`
}

func (s *Server) recognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tags, err := s.store.Tags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tokens := classifier.Tokenize(req.Text, req.URLs)
	tag, ok := s.recognizer.Recognize(classifier.Excise(req.Text, req.URLs), tokens, tags, s.threshold)

	writeJSON(w, http.StatusOK, RecognizeResponse{Tag: tag, Matched: ok, Tokens: nonNil(tokens)})
}

func (s *Server) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
