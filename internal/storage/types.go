package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrSchemaTooNew    = errors.New("storage: schema version newer than code")
	ErrLockUnavailable = errors.New("storage: failed to acquire database lock")
)

const (
	RecurrenceNone     = "none"
	RecurrenceDaily    = "daily"
	RecurrenceBiWeekly = "bi-weekly"
)

type Todo struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	RecurrenceTag string  `json:"recurrenceTag"`
	Note          string  `json:"note"`
	Completed     bool    `json:"completed"`
	DueDate       *string `json:"dueDate"`

	// CreatedAt and UpdatedAt hold stored text. Rows written here use
	// FormatTimestamp; imported rows keep whatever the source recorded.
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`

	// SortOrder is the ranking key behind List order. It is never exposed to
	// callers outside the store.
	SortOrder int64 `json:"-"`
}

type TodoRepository interface {
	List(ctx context.Context) ([]Todo, error)
	Get(ctx context.Context, id string) (*Todo, error)
	Insert(ctx context.Context, todo *Todo) error
	// InsertIfAbsent reports false when a row with the same id already exists.
	InsertIfAbsent(ctx context.Context, todo *Todo) (bool, error)
	Update(ctx context.Context, todo *Todo) error
	Delete(ctx context.Context, id string) error
	SetSortOrder(ctx context.Context, id string, sortOrder int64, updatedAt time.Time) error
	// MinSortOrder returns the smallest stored sort order, or 0 when empty.
	MinSortOrder(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

type MetaRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
