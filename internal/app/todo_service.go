package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shihongDev/simple-todo-note/internal/storage"
)

type TodoService struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

func NewTodoService(store Store, opts Options) *TodoService {
	opts = opts.withDefaults()
	return &TodoService{
		store:  store,
		now:    opts.Now,
		newID:  opts.NewID,
		logger: opts.Logger,
	}
}

func (s *TodoService) List(ctx context.Context) ([]storage.Todo, error) {
	var items []storage.Todo
	err := s.store.Do(ctx, func(h storage.Handle) error {
		var err error
		items, err = h.Todos.List(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return items, nil
}

// Create places the new todo ahead of every stored one.
func (s *TodoService) Create(ctx context.Context, req CreateTodoRequest) (*storage.Todo, error) {
	title, err := normalizeTitle(req.Title)
	if err != nil {
		return nil, err
	}

	now := storage.FormatTimestamp(s.now())
	todo := &storage.Todo{
		ID:            s.newID(),
		Title:         title,
		RecurrenceTag: normalizeRecurrenceTag(req.RecurrenceTag),
		DueDate:       normalizeDueDate(req.DueDate),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Note != nil {
		todo.Note = *req.Note
	}

	err = s.store.Do(ctx, func(h storage.Handle) error {
		min, err := h.Todos.MinSortOrder(ctx)
		if err != nil {
			return err
		}
		todo.SortOrder = min - 1
		return h.Todos.Insert(ctx, todo)
	})
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}

	s.logger.Debug("todo created", "id", todo.ID, "title", todo.Title)
	return todo, nil
}

// Update applies the fields set in req. An unknown id is reported before
// any field validation.
func (s *TodoService) Update(ctx context.Context, req UpdateTodoRequest) (*storage.Todo, error) {
	var todo *storage.Todo
	err := s.store.Do(ctx, func(h storage.Handle) error {
		var err error
		todo, err = h.Todos.Get(ctx, req.ID)
		if err != nil {
			return err
		}

		if req.Title != nil {
			title, err := normalizeTitle(*req.Title)
			if err != nil {
				return err
			}
			todo.Title = title
		}
		if req.RecurrenceTag != nil {
			todo.RecurrenceTag = normalizeRecurrenceTag(req.RecurrenceTag)
		}
		if req.Note != nil {
			todo.Note = *req.Note
		}
		if req.Completed != nil {
			todo.Completed = *req.Completed
		}
		todo.DueDate = req.DueDate.apply(todo.DueDate)
		todo.UpdatedAt = storage.FormatTimestamp(s.now())

		return h.Todos.Update(ctx, todo)
	})
	if err != nil {
		return nil, wrapTodoErr("update todo", req.ID, err)
	}
	return todo, nil
}

func (s *TodoService) Toggle(ctx context.Context, id string) (*storage.Todo, error) {
	var todo *storage.Todo
	err := s.store.Do(ctx, func(h storage.Handle) error {
		var err error
		todo, err = h.Todos.Get(ctx, id)
		if err != nil {
			return err
		}
		todo.Completed = !todo.Completed
		todo.UpdatedAt = storage.FormatTimestamp(s.now())
		return h.Todos.Update(ctx, todo)
	})
	if err != nil {
		return nil, wrapTodoErr("toggle todo", id, err)
	}
	return todo, nil
}

// Delete is a no-op for ids that are not stored.
func (s *TodoService) Delete(ctx context.Context, id string) error {
	err := s.store.Do(ctx, func(h storage.Handle) error {
		return h.Todos.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

// Reorder assigns sort order i to ids[i] in one transaction. ids is expected
// to hold every stored id; omitted rows keep their old sort order.
func (s *TodoService) Reorder(ctx context.Context, ids []string) error {
	now := s.now().UTC()
	err := s.store.Tx(ctx, func(h storage.Handle) error {
		for i, id := range ids {
			if err := h.Todos.SetSortOrder(ctx, strings.TrimSpace(id), int64(i), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reorder todos: %w", err)
	}
	return nil
}

func wrapTodoErr(op, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return fmt.Errorf("%s: %w", op, err)
}
