package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shihongDev/simple-todo-note/internal/storage"
)

var (
	ErrValidation = errors.New("app: validation failed")
	ErrDecode     = errors.New("app: decode persisted value")
	ErrNotFound   = storage.ErrNotFound
)

// NotFoundError names the todo id an operation could not find. It matches
// ErrNotFound under errors.Is.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return "todo not found: " + e.ID
}

func (e *NotFoundError) Unwrap() error {
	return storage.ErrNotFound
}

// Store is the exclusive-access handle every service runs its operations
// against. *storage.Store implements it.
type Store interface {
	Do(ctx context.Context, fn func(storage.Handle) error) error
	Tx(ctx context.Context, fn func(storage.Handle) error) error
}

// Options carries the collaborators shared by every service. Zero values
// select the wall clock, random UUIDs and a discarding logger.
type Options struct {
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = storage.NewID
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	return o
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type CreateTodoRequest struct {
	Title         string
	RecurrenceTag *string
	Note          *string
	DueDate       *string
}

type dueDateAction int

const (
	dueDateUnchanged dueDateAction = iota
	dueDateClear
	dueDateSet
)

// DueDateUpdate is the three-way due date field of an update: leave the
// stored value alone, clear it, or set it. The zero value leaves it alone.
type DueDateUpdate struct {
	action dueDateAction
	value  string
}

func DueDateUnchanged() DueDateUpdate { return DueDateUpdate{} }

func ClearDueDate() DueDateUpdate { return DueDateUpdate{action: dueDateClear} }

// SetDueDate stores value after normalization; a blank value clears.
func SetDueDate(value string) DueDateUpdate {
	return DueDateUpdate{action: dueDateSet, value: value}
}

func (u DueDateUpdate) IsUnchanged() bool { return u.action == dueDateUnchanged }

// apply returns the due date to store given the current one.
func (u DueDateUpdate) apply(current *string) *string {
	switch u.action {
	case dueDateClear:
		return nil
	case dueDateSet:
		return normalizeDueDate(&u.value)
	default:
		return current
	}
}

type UpdateTodoRequest struct {
	ID            string
	Title         *string
	RecurrenceTag *string
	Note          *string
	Completed     *bool
	DueDate       DueDateUpdate
}

// LegacyTodo is one record of the pre-database export, in its original
// camelCase wire form.
type LegacyTodo struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	RecurrenceTag *string `json:"recurrenceTag,omitempty"`
	Note          string  `json:"note"`
	Completed     bool    `json:"completed"`
	DueDate       *string `json:"dueDate"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

type MigrationResult struct {
	MigratedCount   int  `json:"migratedCount"`
	AlreadyMigrated bool `json:"alreadyMigrated"`
}

type PanelMode string

const (
	PanelModeMini     PanelMode = "mini"
	PanelModeExpanded PanelMode = "expanded"
)

func (m PanelMode) Valid() bool {
	return m == PanelModeMini || m == PanelModeExpanded
}

// Size is the fixed window size each panel mode resizes to.
func (m PanelMode) Size() (width, height float64) {
	if m == PanelModeExpanded {
		return 920, 680
	}
	return 380, 520
}

type MotionMode string

const (
	MotionBalanced MotionMode = "balanced"
	MotionHigh     MotionMode = "high"
	MotionLow      MotionMode = "low"
)

func (m MotionMode) Valid() bool {
	return m == MotionBalanced || m == MotionHigh || m == MotionLow
}

type ReadabilityMode string

const (
	ReadabilityAdaptive ReadabilityMode = "adaptive"
	ReadabilityPure     ReadabilityMode = "pure"
	ReadabilityStrong   ReadabilityMode = "strong"
)

func (m ReadabilityMode) Valid() bool {
	return m == ReadabilityAdaptive || m == ReadabilityPure || m == ReadabilityStrong
}

type ReduceMotionOverride string

const (
	ReduceMotionSystem ReduceMotionOverride = "system"
	ReduceMotionOn     ReduceMotionOverride = "on"
	ReduceMotionOff    ReduceMotionOverride = "off"
)

func (m ReduceMotionOverride) Valid() bool {
	return m == ReduceMotionSystem || m == ReduceMotionOn || m == ReduceMotionOff
}

type WindowPrefs struct {
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Mode        PanelMode `json:"mode"`
	AlwaysOnTop bool      `json:"alwaysOnTop"`
}

func DefaultWindowPrefs() WindowPrefs {
	width, height := PanelModeMini.Size()
	return WindowPrefs{
		X:           80,
		Y:           80,
		Width:       width,
		Height:      height,
		Mode:        PanelModeMini,
		AlwaysOnTop: true,
	}
}

type UIPrefs struct {
	MotionMode           MotionMode           `json:"motionMode"`
	ReadabilityMode      ReadabilityMode      `json:"readabilityMode"`
	ReduceMotionOverride ReduceMotionOverride `json:"reduceMotionOverride"`
}

func DefaultUIPrefs() UIPrefs {
	return UIPrefs{
		MotionMode:           MotionBalanced,
		ReadabilityMode:      ReadabilityAdaptive,
		ReduceMotionOverride: ReduceMotionSystem,
	}
}

// Window is the live window the panel shell renders into.
type Window interface {
	SetSize(width, height float64) error
	SetPosition(x, y float64) error
	SetAlwaysOnTop(enabled bool) error
}
