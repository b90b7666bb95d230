package tui

import (
	"sync"

	"github.com/shihongDev/simple-todo-note/internal/app"
)

// Terminal cells are mapped to window pixels at a fixed ratio so persisted
// geometry stays comparable across shells.
const (
	cellWidth  = 8
	cellHeight = 16

	minColumns = 24
	minRows    = 8
)

// Frame is the panel's logical window. It implements app.Window: the panel
// service drives it and the model reads it to lay out the view.
type Frame struct {
	mu          sync.Mutex
	width       float64
	height      float64
	x           float64
	y           float64
	alwaysOnTop bool
}

// NewFrame starts at the default mini geometry until prefs are restored.
func NewFrame() *Frame {
	prefs := app.DefaultWindowPrefs()
	return &Frame{
		width:       prefs.Width,
		height:      prefs.Height,
		x:           prefs.X,
		y:           prefs.Y,
		alwaysOnTop: prefs.AlwaysOnTop,
	}
}

func (f *Frame) SetSize(width, height float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.width, f.height = width, height
	return nil
}

func (f *Frame) SetPosition(x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y = x, y
	return nil
}

func (f *Frame) SetAlwaysOnTop(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alwaysOnTop = enabled
	return nil
}

// Cells converts the frame size to terminal columns and rows.
func (f *Frame) Cells() (columns, rows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	columns = int(f.width) / cellWidth
	rows = int(f.height) / cellHeight
	if columns < minColumns {
		columns = minColumns
	}
	if rows < minRows {
		rows = minRows
	}
	return columns, rows
}

func (f *Frame) Pinned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alwaysOnTop
}

func cellsToPixels(columns, rows int) (width, height float64) {
	return float64(columns * cellWidth), float64(rows * cellHeight)
}
