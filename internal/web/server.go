package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conorfennell/revision/internal/domain"
	"github.com/conorfennell/revision/internal/generate"
	"github.com/conorfennell/revision/internal/knol"
	"github.com/conorfennell/revision/internal/parser"
	"github.com/conorfennell/revision/internal/review"
	"github.com/conorfennell/revision/internal/sync"
)

//go:embed all:templates
var templateFiles embed.FS

// maxUpload caps the size of an imported deck file.
const maxUpload = 8 << 20

// Options holds the optional collaborators of a Server.
type Options struct {
	// Generator enables POST /generate when set.
	Generator generate.Generator
	Questions generate.Options
	// Sources enables POST /sync when not empty.
	Sources  []string
	ReposDir string
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	session   *review.Session
	opts      Options
	router    chi.Router
	templates *template.Template
}

// NewServer creates and configures a new server.
func NewServer(session *review.Session, opts Options) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		session:   session,
		opts:      opts,
		router:    chi.NewRouter(),
		templates: tpl,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleIndex)
	s.router.Get("/deck", s.handleGetDeck)
	s.router.Get("/manage", s.handleGetManage)

	s.router.Route("/review", func(r chi.Router) {
		r.Get("/next", s.handleGetNextReview)
		r.Get("/{id}/answer", s.handleShowAnswer)
		r.Post("/{id}", s.handlePostReview)
	})

	s.router.Get("/export", s.handleExport)
	s.router.Post("/import", s.handleImport)
	s.router.Post("/sync", s.handlePostSync)
	s.router.Post("/generate", s.handlePostGenerate)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// render buffers the template so a failed execution can still send a 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Error rendering template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index", nil)
}

// handleGetDeck renders the due-card summary.
func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	due := len(s.session.Due())
	s.render(w, http.StatusOK, "deck", map[string]any{
		"DueCount":    due,
		"HasDueCards": due > 0,
	})
}

func (s *Server) handleGetManage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "manage", map[string]any{
		"SyncEnabled":       len(s.opts.Sources) > 0,
		"GenerationEnabled": s.opts.Generator != nil,
	})
}

// handleGetNextReview shows the front of the first due card, or the deck
// summary when nothing is due.
func (s *Server) handleGetNextReview(w http.ResponseWriter, r *http.Request) {
	due := s.session.Due()
	if len(due) == 0 {
		s.handleGetDeck(w, r)
		return
	}
	s.render(w, http.StatusOK, "card_front", map[string]any{
		"Card":     due[0],
		"DueCount": len(due),
	})
}

func (s *Server) handleShowAnswer(w http.ResponseWriter, r *http.Request) {
	card, ok := s.session.Card(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Card not found", http.StatusNotFound)
		return
	}
	s.render(w, http.StatusOK, "card_back", map[string]any{
		"Card":   card,
		"Grades": domain.Grades(),
	})
}

// handlePostReview grades a card and moves on to the next due one.
func (s *Server) handlePostReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	grade, err := domain.ParseGrade(r.PostFormValue("grade"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, err = s.session.Grade(r.Context(), id, grade)
	switch {
	case err == nil:
	case errors.Is(err, review.ErrUnknownCard):
		http.Error(w, "Card not found", http.StatusNotFound)
		return
	case review.IsCollaborator(err):
		slog.Error("Review not persisted", "id", knol.ShortID(id), "error", err)
		s.render(w, http.StatusServiceUnavailable, "save_failed", err.Error())
		return
	default:
		slog.Error("Error grading card", "id", knol.ShortID(id), "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.handleGetNextReview(w, r)
}

// handleExport downloads the serialized progress.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.session.Export(r.Context())
	if err != nil {
		slog.Error("Error exporting progress", "error", err)
		http.Error(w, "Failed to export progress", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="user_progress.json"`)
	w.Write(data)
}

// handleImport adds the cards of an uploaded deck file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("deck")
	if err != nil {
		http.Error(w, "Deck file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	cards, parseErr := parser.Parse(file)
	if len(cards) == 0 && parseErr != nil {
		http.Error(w, "Failed to parse deck: "+parseErr.Error(), http.StatusBadRequest)
		return
	}

	added, err := s.session.Import(r.Context(), cards)
	if err != nil {
		slog.Error("Error importing cards", "error", err)
		http.Error(w, "Failed to save imported cards", http.StatusServiceUnavailable)
		return
	}
	slog.Info("Imported cards", "added", added)

	data := map[string]any{"Added": added, "Problem": ""}
	if parseErr != nil {
		data["Problem"] = parseErr.Error()
	}
	s.render(w, http.StatusOK, "import_result", data)
}

// handlePostSync triggers a manual sync in the foreground.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	if len(s.opts.Sources) == 0 {
		http.Error(w, "No deck sources configured", http.StatusNotFound)
		return
	}
	report, err := sync.Run(r.Context(), s.session, s.opts.Sources, s.opts.ReposDir)
	if err != nil {
		slog.Error("Error storing synced cards", "error", err)
		http.Error(w, "Failed to save synced cards", http.StatusServiceUnavailable)
		return
	}
	s.render(w, http.StatusOK, "sync_result", report)
}

// handlePostGenerate lists questions generated from a note. Questions gathered
// before a failure are still shown.
func (s *Server) handlePostGenerate(w http.ResponseWriter, r *http.Request) {
	if s.opts.Generator == nil {
		http.Error(w, "Question generation is not configured", http.StatusServiceUnavailable)
		return
	}
	questions, err := generate.Questions(r.Context(), s.opts.Generator, r.PostFormValue("note"), s.opts.Questions)
	if errors.Is(err, generate.ErrEmptyNote) {
		http.Error(w, "Note is required", http.StatusBadRequest)
		return
	}
	data := map[string]any{"Questions": questions, "Error": ""}
	if err != nil {
		slog.Warn("Question generation stopped early", "generated", len(questions), "error", err)
		data["Error"] = err.Error()
	}
	s.render(w, http.StatusOK, "generated", data)
}
