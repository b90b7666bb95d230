package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const todoColumns = `id, title, recurrence_tag, note, completed, due_date, sort_order, created_at, updated_at`

type todoRepository struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*Todo, error) {
	var (
		t         Todo
		completed int
		dueDate   sql.NullString
	)
	// Timestamps stay as stored text; imported rows may carry any format.
	if err := row.Scan(&t.ID, &t.Title, &t.RecurrenceTag, &t.Note, &completed, &dueDate, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Completed = completed != 0
	t.DueDate = stringPtr(dueDate)
	return &t, nil
}

func (r *todoRepository) List(ctx context.Context) ([]Todo, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		ORDER BY sort_order ASC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("list todos: scan row: %w", err)
		}
		items = append(items, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: iterate: %w", err)
	}
	return items, nil
}

func (r *todoRepository) Get(ctx context.Context, id string) (*Todo, error) {
	todo, err := scanTodo(r.q.QueryRowContext(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE id = ?
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return todo, nil
}

func (r *todoRepository) Insert(ctx context.Context, todo *Todo) error {
	if todo == nil {
		return fmt.Errorf("insert todo: todo is nil")
	}
	if _, err := r.insert(ctx, `INSERT INTO`, todo); err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *todoRepository) InsertIfAbsent(ctx context.Context, todo *Todo) (bool, error) {
	if todo == nil {
		return false, fmt.Errorf("insert todo if absent: todo is nil")
	}
	result, err := r.insert(ctx, `INSERT OR IGNORE INTO`, todo)
	if err != nil {
		return false, fmt.Errorf("insert todo if absent: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert todo if absent: rows affected: %w", err)
	}
	return count > 0, nil
}

func (r *todoRepository) insert(ctx context.Context, verb string, todo *Todo) (sql.Result, error) {
	todo.ID = ensureID(todo.ID)
	if todo.RecurrenceTag == "" {
		todo.RecurrenceTag = RecurrenceNone
	}
	if todo.CreatedAt == "" {
		todo.CreatedAt = FormatTimestamp(nowUTC())
	}
	if todo.UpdatedAt == "" {
		todo.UpdatedAt = todo.CreatedAt
	}

	return r.q.ExecContext(ctx, verb+` todos(`+todoColumns+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		todo.ID,
		todo.Title,
		todo.RecurrenceTag,
		todo.Note,
		boolToInt(todo.Completed),
		nullableString(todo.DueDate),
		todo.SortOrder,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
}

// Update writes every mutable field of todo. SortOrder and CreatedAt are left
// as stored.
func (r *todoRepository) Update(ctx context.Context, todo *Todo) error {
	if todo == nil {
		return fmt.Errorf("update todo: todo is nil")
	}
	if todo.ID == "" {
		return fmt.Errorf("update todo: id is required")
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE todos
		SET title = ?, recurrence_tag = ?, note = ?, completed = ?, due_date = ?, updated_at = ?
		WHERE id = ?
	`,
		todo.Title,
		todo.RecurrenceTag,
		todo.Note,
		boolToInt(todo.Completed),
		nullableString(todo.DueDate),
		todo.UpdatedAt,
		todo.ID,
	)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update todo: rows affected: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *todoRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func (r *todoRepository) SetSortOrder(ctx context.Context, id string, sortOrder int64, updatedAt time.Time) error {
	if _, err := r.q.ExecContext(ctx, `
		UPDATE todos
		SET sort_order = ?, updated_at = ?
		WHERE id = ?
	`, sortOrder, FormatTimestamp(updatedAt), id); err != nil {
		return fmt.Errorf("set todo sort order: %w", err)
	}
	return nil
}

func (r *todoRepository) MinSortOrder(ctx context.Context) (int64, error) {
	var min int64
	if err := r.q.QueryRowContext(ctx, `SELECT COALESCE(MIN(sort_order), 0) FROM todos`).Scan(&min); err != nil {
		return 0, fmt.Errorf("min todo sort order: %w", err)
	}
	return min, nil
}

func (r *todoRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM todos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	return count, nil
}
