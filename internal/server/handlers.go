package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/imaging"
	"github.com/maax3v3/beadboard/internal/palette"
	"github.com/maax3v3/beadboard/internal/renderer"
	"github.com/maax3v3/beadboard/internal/session"
)

type cellRequest struct {
	X   int       `json:"x"`
	Y   int       `json:"y"`
	Hex color.Hex `json:"hex"`
}

func (req cellRequest) validate() error {
	if !req.Hex.Valid() {
		return fmt.Errorf("%w: %q", palette.ErrInvalidColor, req.Hex)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// POST /api/cells
func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondChanged(w, s.sess.SetCell(req.X, req.Y, req.Hex))
}

// POST /api/fill
func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondChanged(w, s.sess.FloodFill(req.X, req.Y, req.Hex))
}

// POST /api/paint
func (s *Server) handlePaint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondChanged(w, s.sess.Paint(req.X, req.Y))
}

// POST /api/resize
// Width alone follows the aspect lock; height alone keeps the width.
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width  *int `json:"width"`
		Height *int `json:"height"`
	}
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	var changed bool
	switch {
	case req.Width != nil && req.Height != nil:
		changed = s.sess.Resize(*req.Width, *req.Height)
	case req.Width != nil:
		changed = s.sess.SetWidth(*req.Width)
	case req.Height != nil:
		changed = s.sess.SetHeight(*req.Height)
	default:
		s.writeError(w, r, fmt.Errorf("%w: width or height required", errBadRequest))
		return
	}
	s.respondChanged(w, changed)
}

// POST /api/lock
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lock bool `json:"lock"`
	}
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sess.SetLockAspectRatio(req.Lock)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleInsertEdge(w http.ResponseWriter, r *http.Request) {
	s.edge(w, r, s.sess.InsertEdge)
}

func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	s.edge(w, r, s.sess.RemoveEdge)
}

func (s *Server) edge(w http.ResponseWriter, r *http.Request, op func(board.Direction) error) {
	d, err := board.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := op(d); err != nil {
		var verr *board.ValidationError
		if errors.As(err, &verr) && verr.Silent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.respondChanged(w, s.sess.Undo())
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.respondChanged(w, s.sess.Redo())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Stats())
}

// POST /api/merge
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Threshold float64 `json:"threshold"`
	}{Threshold: s.cfg.Merge.Threshold}
	if err := decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Threshold <= 0 || req.Threshold >= 1 {
		s.writeError(w, r, fmt.Errorf("%w: threshold must be in (0, 1)", errBadRequest))
		return
	}

	plan, err := s.sess.MergeRare(req.Threshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":  plan,
		"state": s.snapshot(),
	})
}

func (s *Server) handleGetPalette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Palette())
}

// PUT /api/palette
func (s *Server) handlePutPalette(w http.ResponseWriter, r *http.Request) {
	var p palette.Palette
	if err := decode(r, &p, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := palette.Canonical(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sess.SetPalette(p)
	writeJSON(w, http.StatusOK, s.sess.Palette())
}

// POST /api/palette/colors
func (s *Server) handleAddColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hex  color.Hex `json:"hex"`
		Name string    `json:"name"`
	}
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.sess.AddColor(req.Hex, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// DELETE /api/palette/colors/{id}
func (s *Server) handleRemoveColor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sess.RemoveColor(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no palette entry " + id})
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Palette())
}

func (s *Server) handleResetPalette(w http.ResponseWriter, r *http.Request) {
	s.sess.ResetPalette()
	writeJSON(w, http.StatusOK, s.sess.Palette())
}

// POST /api/select
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hex  *color.Hex    `json:"hex"`
		Tool *session.Tool `json:"tool"`
	}
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Hex != nil {
		if err := s.sess.SelectColor(*req.Hex); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Tool != nil {
		if err := s.sess.SelectTool(*req.Tool); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// POST /api/image
// The body is the raw image file.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	img, err := imaging.Decode(body)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	s.logger.Info("image received",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"request_id", requestID(r))

	if err := s.sess.LoadImage(r.Context(), img); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Reprocess(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

// GET /api/project[?compress=zstd]
func (s *Server) handleExportProject(w http.ResponseWriter, r *http.Request) {
	compress := strings.EqualFold(r.URL.Query().Get("compress"), "zstd")
	name := "beadboard-" + time.Now().UTC().Format("20060102-150405") + ".json"
	if compress {
		w.Header().Set("Content-Type", "application/zstd")
		name += ".zst"
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := s.sess.ExportProject(w, compress); err != nil {
		s.logger.Error("project export failed", "error", err, "request_id", requestID(r))
	}
}

// PUT /api/project
func (s *Server) handleImportProject(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := s.sess.ImportProject(body); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleExport(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img := renderer.RenderGrid(s.sess.State().Grid, s.cfg.Renderer())
		w.Header().Set("Content-Type", "image/"+format)
		if err := imaging.Encode(w, img, format); err != nil {
			s.logger.Error("export failed", "format", format, "error", err, "request_id", requestID(r))
		}
	}
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	img := renderer.RenderLegend(s.sess.Stats(), s.font, s.cfg.Renderer())
	w.Header().Set("Content-Type", "image/png")
	if err := imaging.Encode(w, img, "png"); err != nil {
		s.logger.Error("legend export failed", "error", err, "request_id", requestID(r))
	}
}
