// Package history is a bounded linear undo/redo log of board snapshots.
package history

import (
	"image"

	"github.com/maax3v3/beadboard/internal/board"
)

// DefaultCapacity is the number of snapshots kept before the oldest is evicted.
const DefaultCapacity = 30

// Snapshot is an immutable copy of a board state. The source image is
// shared, never copied.
type Snapshot struct {
	grid     board.Grid
	settings board.Settings
	source   image.Image
}

// NewSnapshot deep-copies s.
func NewSnapshot(s board.State) Snapshot {
	return Snapshot{grid: s.Grid.Clone(), settings: s.Settings, source: s.Source}
}

// State returns an independent copy of the snapshot's board state.
func (s Snapshot) State() board.State {
	return board.State{Grid: s.grid.Clone(), Settings: s.settings, Source: s.source}
}

// Log is a linear history with a cursor. The zero value is not usable;
// create one with New.
type Log struct {
	entries  []Snapshot
	cursor   int
	capacity int
}

// New returns an empty log holding at most capacity snapshots.
// A capacity below 1 uses DefaultCapacity.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Log{cursor: -1, capacity: capacity}
}

// Push drops everything after the cursor, appends snap and moves the
// cursor to it. The oldest entry is evicted once the log is over capacity.
func (l *Log) Push(snap Snapshot) {
	l.entries = append(l.entries[:l.cursor+1], snap)
	if len(l.entries) > l.capacity {
		l.entries = append(l.entries[:0:0], l.entries[len(l.entries)-l.capacity:]...)
	}
	l.cursor = len(l.entries) - 1
}

// Undo moves the cursor back one step and returns the snapshot under it.
// It reports false at the start of the log.
func (l *Log) Undo() (Snapshot, bool) {
	if l.cursor <= 0 {
		return Snapshot{}, false
	}
	l.cursor--
	return l.entries[l.cursor], true
}

// Redo moves the cursor forward one step and returns the snapshot under it.
// It reports false at the end of the log.
func (l *Log) Redo() (Snapshot, bool) {
	if l.cursor >= len(l.entries)-1 {
		return Snapshot{}, false
	}
	l.cursor++
	return l.entries[l.cursor], true
}

// Current returns the snapshot under the cursor.
func (l *Log) Current() (Snapshot, bool) {
	if l.cursor < 0 {
		return Snapshot{}, false
	}
	return l.entries[l.cursor], true
}

func (l *Log) Len() int      { return len(l.entries) }
func (l *Log) Cursor() int   { return l.cursor }
func (l *Log) Capacity() int { return l.capacity }
func (l *Log) CanUndo() bool { return l.cursor > 0 }
func (l *Log) CanRedo() bool { return l.cursor < len(l.entries)-1 }
