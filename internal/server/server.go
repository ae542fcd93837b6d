// Package server exposes a Session over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maax3v3/beadboard/internal/aggregation"
	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/config"
	"github.com/maax3v3/beadboard/internal/palette"
	"github.com/maax3v3/beadboard/internal/project"
	"github.com/maax3v3/beadboard/internal/renderer"
	"github.com/maax3v3/beadboard/internal/session"
)

var errBadRequest = errors.New("bad request")

// Server serves one Session.
type Server struct {
	sess   *session.Session
	cfg    *config.Config
	font   renderer.FontRenderer
	logger *slog.Logger
	router *chi.Mux
}

// New builds the router for sess. A nil cfg uses config.Default and a nil
// logger uses slog.Default.
func New(sess *session.Session, cfg *config.Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sess:   sess,
		cfg:    cfg,
		font:   renderer.NewBitmapFont(),
		logger: logger.With("component", "server"),
	}

	sess.On(session.EventProcessing, func(ev session.Event) {
		s.logger.Debug("processing", "active", ev.Processing)
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Route("/api", s.RegisterHTTP)
	s.router = r
	return s
}

// RegisterHTTP mounts the API endpoints on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/state", s.handleState)

	r.Post("/cells", s.handleSetCell)
	r.Post("/fill", s.handleFill)
	r.Post("/paint", s.handlePaint)
	r.Post("/resize", s.handleResize)
	r.Post("/lock", s.handleLock)
	r.Post("/edges/{direction}", s.handleInsertEdge)
	r.Delete("/edges/{direction}", s.handleRemoveEdge)
	r.Post("/undo", s.handleUndo)
	r.Post("/redo", s.handleRedo)

	r.Get("/stats", s.handleStats)
	r.Post("/merge", s.handleMerge)

	r.Get("/palette", s.handleGetPalette)
	r.Put("/palette", s.handlePutPalette)
	r.Post("/palette/colors", s.handleAddColor)
	r.Delete("/palette/colors/{id}", s.handleRemoveColor)
	r.Post("/palette/reset", s.handleResetPalette)
	r.Post("/select", s.handleSelect)

	r.Post("/image", s.handleImage)
	r.Post("/reprocess", s.handleReprocess)

	r.Get("/project", s.handleExportProject)
	r.Put("/project", s.handleImportProject)

	r.Get("/export.png", s.handleExport("png"))
	r.Get("/export.qoi", s.handleExport("qoi"))
	r.Get("/legend.png", s.handleLegend)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on the configured address until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("server started", "addr", s.cfg.Server.Addr)

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// --- Responses ---

type historyInfo struct {
	Cursor  int  `json:"cursor"`
	Length  int  `json:"length"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

type stateResponse struct {
	Grid          board.Grid      `json:"grid"`
	Settings      board.Settings  `json:"settings"`
	HasImage      bool            `json:"hasImage"`
	Processing    bool            `json:"processing"`
	History       historyInfo     `json:"history"`
	Palette       palette.Palette `json:"palette"`
	SelectedColor color.Hex       `json:"selectedColor"`
	Tool          session.Tool    `json:"tool"`
}

func (s *Server) snapshot() stateResponse {
	st := s.sess.State()
	cursor, length := s.sess.HistoryPosition()
	selected, tool := s.sess.Selection()
	return stateResponse{
		Grid:       st.Grid,
		Settings:   st.Settings,
		HasImage:   st.Source != nil,
		Processing: s.sess.Processing(),
		History: historyInfo{
			Cursor:  cursor,
			Length:  length,
			CanUndo: cursor > 0,
			CanRedo: cursor < length-1,
		},
		Palette:       s.sess.Palette(),
		SelectedColor: selected,
		Tool:          tool,
	}
}

// respondChanged writes the new state, or 204 when nothing changed.
func (s *Server) respondChanged(w http.ResponseWriter, changed bool) {
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r),
			"error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		verr     *board.ValidationError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr),
		errors.Is(err, project.ErrInvalidFormat),
		errors.Is(err, palette.ErrInvalidColor),
		errors.Is(err, palette.ErrDuplicateColor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, project.ErrMalformed),
		errors.Is(err, board.ErrUnknownEdge),
		errors.Is(err, session.ErrUnknownTool):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrNoSourceImage),
		errors.Is(err, aggregation.ErrNothingToMerge),
		errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
}
