// Package session owns the editable bead board: the current state, its
// undo history, the active palette and the drawing selection. A Session is
// safe for concurrent use; mutations serialize on an internal mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/maax3v3/beadboard/internal/aggregation"
	"github.com/maax3v3/beadboard/internal/board"
	"github.com/maax3v3/beadboard/internal/color"
	"github.com/maax3v3/beadboard/internal/history"
	"github.com/maax3v3/beadboard/internal/palette"
	"github.com/maax3v3/beadboard/internal/project"
	"github.com/maax3v3/beadboard/internal/sampler"
)

// Tool is the drawing tool applied by Paint.
type Tool string

const (
	ToolPen    Tool = "pen"    // paints one cell
	ToolBucket Tool = "bucket" // replaces every cell of the picked color
)

var (
	ErrUnknownTool = errors.New("unknown tool")
	// ErrSuperseded is returned by a sampling request whose result was
	// dropped because a newer request was issued while it ran.
	ErrSuperseded = errors.New("sampling request superseded")
)

// EventType identifies what changed.
type EventType int

const (
	EventChanged        EventType = iota // grid, settings or history moved
	EventProcessing                      // sampling started or finished
	EventPaletteChanged                  // palette or selection changed
)

// Event is delivered to listeners after the session lock is released.
type Event struct {
	Type       EventType
	Processing bool
}

// Options configures a new Session.
type Options struct {
	Width           int
	Height          int
	LockAspectRatio bool
	HistoryCapacity int
	Palette         palette.Palette
	Logger          *slog.Logger
}

// DefaultOptions returns a 15x15 aspect-locked board with the default
// palette and 30 history entries.
func DefaultOptions() Options {
	return Options{
		Width:           15,
		Height:          15,
		LockAspectRatio: true,
		HistoryCapacity: history.DefaultCapacity,
		Palette:         palette.Default(),
	}
}

// Session is the single writer of a bead board.
type Session struct {
	mu         sync.Mutex
	state      board.State
	hist       *history.Log
	pal        palette.Palette
	selected   color.Hex
	tool       Tool
	reqID      uint64
	processing int

	lmu       sync.RWMutex
	listeners map[EventType][]func(Event)

	log *slog.Logger
}

// New creates a session holding an all-white board and one initial
// history entry.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		state: board.NewState(board.Settings{
			Width:           opts.Width,
			Height:          opts.Height,
			LockAspectRatio: opts.LockAspectRatio,
		}),
		hist:      history.New(opts.HistoryCapacity),
		pal:       opts.Palette.Clone(),
		tool:      ToolPen,
		listeners: make(map[EventType][]func(Event)),
		log:       logger.With("component", "session"),
	}
	if len(s.pal) > 0 {
		s.selected = s.pal[0].Hex
	} else {
		s.selected = color.White
	}
	s.hist.Push(history.NewSnapshot(s.state))
	return s
}

// On registers fn for events of type t. Listeners run synchronously on the
// goroutine that caused the event, never while the session is locked.
func (s *Session) On(t EventType, fn func(Event)) {
	s.lmu.Lock()
	s.listeners[t] = append(s.listeners[t], fn)
	s.lmu.Unlock()
}

func (s *Session) emit(events ...Event) {
	for _, ev := range events {
		s.lmu.RLock()
		fns := append([]func(Event){}, s.listeners[ev.Type]...)
		s.lmu.RUnlock()
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// commitLocked installs next and records it in history. s.mu must be held.
func (s *Session) commitLocked(next board.State) {
	s.state = next
	s.hist.Push(history.NewSnapshot(next))
}

// apply runs a pure board operation against the current state and commits
// the result if it changed anything.
func (s *Session) apply(op func(board.State) (board.State, bool)) bool {
	s.mu.Lock()
	next, changed := op(s.state)
	if changed {
		s.commitLocked(next)
	}
	s.mu.Unlock()
	if changed {
		s.emit(Event{Type: EventChanged})
	}
	return changed
}

func (s *Session) applyErr(op func(board.State) (board.State, error)) error {
	s.mu.Lock()
	next, err := op(s.state)
	if err == nil {
		s.commitLocked(next)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.emit(Event{Type: EventChanged})
	return nil
}

// SetCell paints (x, y) with c. It reports whether the grid changed; an
// undecodable color changes nothing.
func (s *Session) SetCell(x, y int, c color.Hex) bool {
	if !c.Valid() {
		return false
	}
	c = color.Normalize(c)
	return s.apply(func(st board.State) (board.State, bool) {
		return board.SetCell(st, x, y, c)
	})
}

// FloodFill replaces every cell sharing the color at (x, y) with c. An
// undecodable color changes nothing.
func (s *Session) FloodFill(x, y int, c color.Hex) bool {
	if !c.Valid() {
		return false
	}
	c = color.Normalize(c)
	return s.apply(func(st board.State) (board.State, bool) {
		return board.FloodFill(st, x, y, c)
	})
}

// Paint applies the selected color at (x, y) with the selected tool.
func (s *Session) Paint(x, y int) bool {
	c, tool := s.Selection()
	if tool == ToolBucket {
		return s.FloodFill(x, y, c)
	}
	return s.SetCell(x, y, c)
}

// Resize sets both dimensions, clamped to the board limits. A bound source
// image is re-sampled at the new size with the active palette, as a
// sampling request that supersedes any still in flight. Resizing to the
// current dimensions is a no-op.
func (s *Session) Resize(w, h int) bool {
	w, h = board.Clamp(w), board.Clamp(h)
	s.mu.Lock()
	settings := s.state.Settings
	if w == settings.Width && h == settings.Height {
		s.mu.Unlock()
		return false
	}
	if src := s.state.Source; src != nil {
		s.mu.Unlock()
		settings.Width, settings.Height = w, h
		return s.sample(context.Background(), src, settings) == nil
	}
	s.commitLocked(board.Resize(s.state, w, h, nil))
	s.mu.Unlock()

	s.log.Debug("resized", "width", w, "height", h)
	s.emit(Event{Type: EventChanged})
	return true
}

// SetWidth changes the width. With the aspect ratio locked and an image
// bound, the height follows the image's aspect ratio.
func (s *Session) SetWidth(w int) bool {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	h := st.Settings.Height
	if st.Settings.LockAspectRatio && st.Source != nil {
		h = sampler.DeriveHeight(board.Clamp(w), st.Source.Bounds())
	}
	return s.Resize(w, h)
}

// SetHeight changes the height only.
func (s *Session) SetHeight(h int) bool {
	s.mu.Lock()
	w := s.state.Settings.Width
	s.mu.Unlock()
	return s.Resize(w, h)
}

// SetLockAspectRatio toggles the aspect lock. It does not create a history
// entry.
func (s *Session) SetLockAspectRatio(lock bool) {
	s.mu.Lock()
	changed := s.state.Settings.LockAspectRatio != lock
	s.state.Settings.LockAspectRatio = lock
	s.mu.Unlock()
	if changed {
		s.emit(Event{Type: EventChanged})
	}
}

// InsertEdge adds a white row or column. At the maximum size it returns a
// *board.ValidationError with Silent set.
func (s *Session) InsertEdge(d board.Direction) error {
	return s.applyErr(func(st board.State) (board.State, error) {
		return board.InsertEdge(st, d)
	})
}

// RemoveEdge drops a row or column. At the minimum size it returns a
// *board.ValidationError.
func (s *Session) RemoveEdge(d board.Direction) error {
	return s.applyErr(func(st board.State) (board.State, error) {
		return board.RemoveEdge(st, d)
	})
}

// MergeRare folds colors used by less than threshold of the cells into
// their nearest common color. A threshold <= 0 uses
// aggregation.DefaultThreshold.
func (s *Session) MergeRare(threshold float64) (aggregation.Plan, error) {
	if threshold <= 0 {
		threshold = aggregation.DefaultThreshold
	}
	s.mu.Lock()
	plan, err := aggregation.PlanMerge(s.state.Grid, s.pal, threshold)
	if err != nil {
		s.mu.Unlock()
		return plan, err
	}
	next, changed := plan.Apply(s.state)
	if changed {
		s.commitLocked(next)
	}
	s.mu.Unlock()

	if changed {
		s.log.Info("merged rare colors", "rare", len(plan.Rare), "threshold", threshold)
		s.emit(Event{Type: EventChanged})
	}
	return plan, nil
}

// Undo restores the previous snapshot. It reports false at the start of
// history.
func (s *Session) Undo() bool {
	return s.step((*history.Log).Undo)
}

// Redo re-applies the next snapshot. It reports false at the end of
// history.
func (s *Session) Redo() bool {
	return s.step((*history.Log).Redo)
}

func (s *Session) step(move func(*history.Log) (history.Snapshot, bool)) bool {
	s.mu.Lock()
	snap, ok := move(s.hist)
	if ok {
		s.state = snap.State()
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Type: EventChanged})
	}
	return ok
}

// LoadImage binds img as the source image and samples it at the current
// width. With the aspect ratio locked the height is derived from img.
func (s *Session) LoadImage(ctx context.Context, img image.Image) error {
	if img == nil {
		return board.ErrNoSourceImage
	}
	s.mu.Lock()
	settings := s.state.Settings
	s.mu.Unlock()

	if settings.LockAspectRatio {
		settings.Height = sampler.DeriveHeight(settings.Width, img.Bounds())
	}
	return s.sample(ctx, img, settings)
}

// LoadImageAsync runs LoadImage on a new goroutine. The returned channel
// receives exactly one result.
func (s *Session) LoadImageAsync(ctx context.Context, img image.Image) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.LoadImage(ctx, img)
	}()
	return done
}

// Reprocess re-samples the bound image at the current size and palette.
func (s *Session) Reprocess(ctx context.Context) error {
	s.mu.Lock()
	src, settings := s.state.Source, s.state.Settings
	s.mu.Unlock()
	if src == nil {
		return board.ErrNoSourceImage
	}
	return s.sample(ctx, src, settings)
}

// sample quantizes img outside the lock. Only the most recent request is
// committed; older ones return ErrSuperseded. A context cancelled before
// the commit discards the result.
func (s *Session) sample(ctx context.Context, img image.Image, settings board.Settings) error {
	settings.Width = board.Clamp(settings.Width)
	settings.Height = board.Clamp(settings.Height)

	s.mu.Lock()
	s.reqID++
	id := s.reqID
	s.processing++
	p := s.pal.Clone()
	s.mu.Unlock()
	s.emit(Event{Type: EventProcessing, Processing: true})

	start := time.Now()
	grid := sampler.Generate(img, settings.Width, settings.Height, p)

	var err error
	s.mu.Lock()
	s.processing--
	busy := s.processing > 0
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case id != s.reqID:
		err = ErrSuperseded
	default:
		s.commitLocked(board.State{Grid: grid, Settings: settings, Source: img})
	}
	s.mu.Unlock()

	s.log.Debug("sampled image",
		"request", id,
		"width", settings.Width,
		"height", settings.Height,
		"elapsed", time.Since(start),
		"err", err,
	)

	var events []Event
	if !busy {
		events = append(events, Event{Type: EventProcessing, Processing: false})
	}
	if err == nil {
		events = append(events, Event{Type: EventChanged})
	}
	s.emit(events...)
	return err
}

// Processing reports whether a sampling request is in flight.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing > 0
}

// Palette returns a copy of the active palette.
func (s *Session) Palette() palette.Palette {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pal.Clone()
}

// SetPalette replaces the palette wholesale. The grid is left alone; call
// Reprocess to re-quantize a bound image.
func (s *Session) SetPalette(p palette.Palette) {
	s.mu.Lock()
	s.pal = p.Clone()
	s.reselectLocked()
	s.mu.Unlock()
	s.emit(Event{Type: EventPaletteChanged})
}

// AddColor appends a color to the palette.
func (s *Session) AddColor(hex color.Hex, name string) (palette.Entry, error) {
	s.mu.Lock()
	next, entry, err := palette.Add(s.pal, hex, name)
	if err == nil {
		s.pal = next
	}
	s.mu.Unlock()
	if err != nil {
		return entry, err
	}
	s.emit(Event{Type: EventPaletteChanged})
	return entry, nil
}

// RemoveColor deletes the entry with the given id. If the selected color
// leaves the palette, the selection falls back to the first entry.
func (s *Session) RemoveColor(id string) bool {
	s.mu.Lock()
	next, ok := palette.Remove(s.pal, id)
	if ok {
		s.pal = next
		s.reselectLocked()
	}
	s.mu.Unlock()
	if ok {
		s.emit(Event{Type: EventPaletteChanged})
	}
	return ok
}

// ResetPalette restores the default palette.
func (s *Session) ResetPalette() {
	s.SetPalette(palette.Default())
}

func (s *Session) reselectLocked() {
	if !s.pal.Contains(s.selected) && len(s.pal) > 0 {
		s.selected = s.pal[0].Hex
	}
}

// SelectColor sets the color used by Paint.
func (s *Session) SelectColor(c color.Hex) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", palette.ErrInvalidColor, c)
	}
	s.mu.Lock()
	s.selected = color.Normalize(c)
	s.mu.Unlock()
	s.emit(Event{Type: EventPaletteChanged})
	return nil
}

// SelectTool sets the tool used by Paint.
func (s *Session) SelectTool(t Tool) error {
	if t != ToolPen && t != ToolBucket {
		return fmt.Errorf("%w: %q", ErrUnknownTool, t)
	}
	s.mu.Lock()
	s.tool = t
	s.mu.Unlock()
	s.emit(Event{Type: EventPaletteChanged})
	return nil
}

// Selection returns the selected color and tool.
func (s *Session) Selection() (color.Hex, Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.tool
}

// ImportProject replaces the board and palette with the project read from
// r. The source image is detached. Nothing changes unless r parses fully.
func (s *Session) ImportProject(r io.Reader) error {
	f, err := project.Decode(r)
	if err != nil {
		return err
	}
	st := f.State()
	p := f.Colors()

	s.mu.Lock()
	s.pal = p
	s.reselectLocked()
	s.commitLocked(st)
	s.mu.Unlock()

	s.log.Info("imported project",
		"version", f.Version,
		"width", st.Settings.Width,
		"height", st.Settings.Height,
		"colors", len(p),
	)
	s.emit(Event{Type: EventChanged}, Event{Type: EventPaletteChanged})
	return nil
}

// ExportProject writes the current board and palette as a project file,
// zstd-compressed when compress is set.
func (s *Session) ExportProject(w io.Writer, compress bool) error {
	s.mu.Lock()
	f := project.New(s.state, s.pal, time.Now())
	s.mu.Unlock()
	return project.Encode(w, f, compress)
}

// State returns a deep copy of the current board state.
func (s *Session) State() board.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Stats computes color usage for the current grid.
func (s *Session) Stats() aggregation.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aggregation.Compute(s.state.Grid, s.pal)
}

// HistoryPosition returns the history cursor and the number of entries.
func (s *Session) HistoryPosition() (cursor, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Cursor(), s.hist.Len()
}
