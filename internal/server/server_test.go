package server

import (
	"bytes"
	"encoding/json"
	"image"
	stdcolor "image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maax3v3/beadboard/internal/aggregation"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/imaging"
	"github.com/maax3v3/beadboard/internal/palette"
	"github.com/maax3v3/beadboard/internal/session"
)

func newTestServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := session.DefaultOptions()
	opts.Palette = palette.Palette{
		{ID: "r", Hex: "#FF0000", Name: "R"},
		{ID: "b", Hex: "#0000FF", Name: "B"},
		{ID: "w", Hex: "#FFFFFF", Name: "W"},
	}
	opts.Logger = logger
	sess := session.New(opts)
	return New(sess, nil, logger), sess
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var st stateResponse
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decoding state: %v (body %q)", err, w.Body.String())
	}
	return st
}

func TestState(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, "GET", "/api/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	st := decodeState(t, w)
	if st.Settings.Width != 15 || len(st.Grid) != 15 || st.HasImage || st.Tool != session.ToolPen {
		t.Errorf("unexpected state: %+v", st.Settings)
	}
	if st.History.Length != 1 || st.History.CanUndo {
		t.Errorf("history: %+v", st.History)
	}
}

func TestEditing(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"set cell", "POST", "/api/cells", `{"x":1,"y":1,"hex":"#ff0000"}`, http.StatusOK},
		{"set same cell is a no-op", "POST", "/api/cells", `{"x":1,"y":1,"hex":"#FF0000"}`, http.StatusNoContent},
		{"out of bounds", "POST", "/api/cells", `{"x":99,"y":1,"hex":"#FF0000"}`, http.StatusNoContent},
		{"invalid color", "POST", "/api/cells", `{"x":1,"y":1,"hex":"red"}`, http.StatusUnprocessableEntity},
		{"malformed body", "POST", "/api/cells", `{"x":`, http.StatusBadRequest},
		{"fill", "POST", "/api/fill", `{"x":0,"y":0,"hex":"#0000FF"}`, http.StatusOK},
		{"paint", "POST", "/api/paint", `{"x":2,"y":2}`, http.StatusOK},
		{"paint same color", "POST", "/api/paint", `{"x":1,"y":1}`, http.StatusNoContent},
		{"undo", "POST", "/api/undo", "", http.StatusOK},
		{"redo", "POST", "/api/redo", "", http.StatusOK},
		{"redo at end", "POST", "/api/redo", "", http.StatusNoContent},
		{"resize", "POST", "/api/resize", `{"width":20,"height":10}`, http.StatusOK},
		{"resize same", "POST", "/api/resize", `{"width":20,"height":10}`, http.StatusNoContent},
		{"resize empty", "POST", "/api/resize", `{}`, http.StatusBadRequest},
		{"lock", "POST", "/api/lock", `{"lock":false}`, http.StatusOK},
		{"insert edge", "POST", "/api/edges/top", "", http.StatusOK},
		{"remove edge", "DELETE", "/api/edges/left", "", http.StatusOK},
		{"unknown edge", "POST", "/api/edges/middle", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d (body %q)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}

	st := decodeState(t, do(t, s, "GET", "/api/state", ""))
	if st.Settings.Width != 19 || st.Settings.Height != 11 {
		t.Errorf("final size: got %dx%d, want 19x11", st.Settings.Width, st.Settings.Height)
	}
}

func TestEdges_Limits(t *testing.T) {
	s, sess := newTestServer(t)

	sess.Resize(100, 100)
	if w := do(t, s, "POST", "/api/edges/right", ""); w.Code != http.StatusNoContent {
		t.Errorf("insert at max: got %d, want 204", w.Code)
	}

	sess.Resize(5, 5)
	w := do(t, s, "DELETE", "/api/edges/bottom", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("remove at min: got %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cannot reduce grid smaller than 5x5") {
		t.Errorf("error body: %s", w.Body.String())
	}
}

func TestStatsAndMerge(t *testing.T) {
	s, sess := newTestServer(t)

	if w := do(t, s, "POST", "/api/merge", ""); w.Code != http.StatusConflict {
		t.Errorf("merge on uniform grid: got %d, want 409", w.Code)
	}

	sess.SetCell(0, 0, "#FE0000")
	w := do(t, s, "GET", "/api/stats", "")
	var stats aggregation.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 225 || len(stats.Entries) != 2 || stats.Entries[0].Name != "W" {
		t.Errorf("stats: %+v", stats)
	}

	if w := do(t, s, "POST", "/api/merge", `{"threshold": 2}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad threshold: got %d, want 400", w.Code)
	}
	if w := do(t, s, "POST", "/api/merge", ""); w.Code != http.StatusOK {
		t.Fatalf("merge: got %d (%s)", w.Code, w.Body.String())
	}
	if sess.State().Grid[0][0] != color.White {
		t.Error("rare color not merged")
	}
}

func TestPalette(t *testing.T) {
	s, sess := newTestServer(t)

	w := do(t, s, "POST", "/api/palette/colors", `{"hex":"#00ff00","name":"G"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d", w.Code)
	}
	var e palette.Entry
	json.NewDecoder(w.Body).Decode(&e)
	if e.Hex != "#00FF00" || e.ID == "" {
		t.Errorf("entry: %+v", e)
	}

	if w := do(t, s, "POST", "/api/palette/colors", `{"hex":"#00FF00"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate: got %d, want 422", w.Code)
	}
	if w := do(t, s, "DELETE", "/api/palette/colors/"+e.ID, ""); w.Code != http.StatusOK {
		t.Errorf("remove: got %d", w.Code)
	}
	if w := do(t, s, "DELETE", "/api/palette/colors/"+e.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("remove missing: got %d, want 404", w.Code)
	}

	if w := do(t, s, "PUT", "/api/palette", `[{"hex":"#123456"},{"hex":"nope"}]`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid palette: got %d, want 422", w.Code)
	}
	if w := do(t, s, "PUT", "/api/palette", `[{"hex":"#123456","name":"X"}]`); w.Code != http.StatusOK {
		t.Errorf("put palette: got %d", w.Code)
	}
	if p := sess.Palette(); len(p) != 1 || p[0].ID == "" {
		t.Errorf("palette: %+v", p)
	}
	if c, _ := sess.Selection(); c != "#123456" {
		t.Errorf("selection should fall back to the first entry, got %s", c)
	}

	if w := do(t, s, "POST", "/api/palette/reset", ""); w.Code != http.StatusOK {
		t.Errorf("reset: got %d", w.Code)
	}
	if len(sess.Palette()) != len(palette.Default()) {
		t.Error("reset did not restore the default palette")
	}

	w = do(t, s, "POST", "/api/select", `{"hex":"#0000FF","tool":"bucket"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("select: got %d", w.Code)
	}
	if st := decodeState(t, w); st.SelectedColor != "#0000FF" || st.Tool != session.ToolBucket {
		t.Errorf("selection: %s/%s", st.SelectedColor, st.Tool)
	}
	if w := do(t, s, "POST", "/api/select", `{"tool":"spray"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown tool: got %d, want 400", w.Code)
	}
}

func pngBody(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, stdcolor.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestImage(t *testing.T) {
	s, _ := newTestServer(t)

	if w := do(t, s, "POST", "/api/reprocess", ""); w.Code != http.StatusConflict {
		t.Errorf("reprocess without image: got %d, want 409", w.Code)
	}
	if w := do(t, s, "POST", "/api/image", "not an image"); w.Code != http.StatusBadRequest {
		t.Errorf("garbage upload: got %d, want 400", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/image", pngBody(t, 30, 60))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload: got %d (%s)", w.Code, w.Body.String())
	}
	st := decodeState(t, w)
	if !st.HasImage || st.Settings.Width != 15 || st.Settings.Height != 30 {
		t.Errorf("state after upload: %+v hasImage=%v", st.Settings, st.HasImage)
	}
	if st.Grid[10][10] != "#0000FF" {
		t.Errorf("cell: got %s", st.Grid[10][10])
	}

	if w := do(t, s, "POST", "/api/reprocess", ""); w.Code != http.StatusOK {
		t.Errorf("reprocess: got %d", w.Code)
	}
}

func TestProject(t *testing.T) {
	s, sess := newTestServer(t)
	sess.SetCell(2, 3, "#0000FF")

	for _, query := range []string{"", "?compress=zstd"} {
		t.Run("export"+query, func(t *testing.T) {
			w := do(t, s, "GET", "/api/project"+query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("export: got %d", w.Code)
			}
			if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
				t.Error("missing Content-Disposition")
			}

			other, otherSess := newTestServer(t)
			req := httptest.NewRequest("PUT", "/api/project", bytes.NewReader(w.Body.Bytes()))
			rw := httptest.NewRecorder()
			other.Handler().ServeHTTP(rw, req)
			if rw.Code != http.StatusOK {
				t.Fatalf("import: got %d (%s)", rw.Code, rw.Body.String())
			}
			if otherSess.State().Grid[3][2] != "#0000FF" {
				t.Error("project did not round-trip")
			}
		})
	}

	if w := do(t, s, "PUT", "/api/project", `{"palette": []}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing settings: got %d, want 422", w.Code)
	}
	if w := do(t, s, "PUT", "/api/project", `{nope`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed: got %d, want 400", w.Code)
	}
}

func TestImportProject_BodyTooLarge(t *testing.T) {
	s, sess := newTestServer(t)
	s.cfg.Server.MaxUploadBytes = 64
	sess.SetCell(0, 0, "#0000FF")

	var buf bytes.Buffer
	if err := sess.ExportProject(&buf, false); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("PUT", "/api/project", &buf)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("got %d, want 413", w.Code)
	}
	if sess.State().Grid[0][0] != "#0000FF" {
		t.Error("rejected import changed the board")
	}
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/api/export.png", "/api/export.qoi", "/api/legend.png"} {
		t.Run(path, func(t *testing.T) {
			w := do(t, s, "GET", path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d", w.Code)
			}
			img, err := imaging.Decode(w.Body)
			if err != nil {
				t.Fatalf("decoding export: %v", err)
			}
			if path != "/api/legend.png" && (img.Bounds().Dx() != 300 || img.Bounds().Dy() != 300) {
				t.Errorf("export size: got %v, want 300x300", img.Bounds())
			}
		})
	}
}
