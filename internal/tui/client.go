package tui

import (
	"context"

	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/shihongDev/simple-todo-note/internal/storage"
)

// Client is everything the panel needs from the application.
type Client interface {
	ListTodos(ctx context.Context) ([]storage.Todo, error)
	CreateTodo(ctx context.Context, title string) (*storage.Todo, error)
	ToggleTodo(ctx context.Context, id string) (*storage.Todo, error)
	DeleteTodo(ctx context.Context, id string) error
	ReorderTodos(ctx context.Context, ids []string) error
	RestoreWindow(ctx context.Context) (app.WindowPrefs, error)
	SetPanelMode(ctx context.Context, mode app.PanelMode) (app.WindowPrefs, error)
	SetAlwaysOnTop(ctx context.Context, enabled bool) (app.WindowPrefs, error)
	WindowResized(ctx context.Context, width, height float64)
}

// ServicesClient adapts app.Services to Client.
type ServicesClient struct {
	Services *app.Services
	// Restore controls whether RestoreWindow applies persisted geometry or
	// starts from defaults.
	Restore bool
}

func (c ServicesClient) ListTodos(ctx context.Context) ([]storage.Todo, error) {
	return c.Services.Todos.List(ctx)
}

func (c ServicesClient) CreateTodo(ctx context.Context, title string) (*storage.Todo, error) {
	return c.Services.Todos.Create(ctx, app.CreateTodoRequest{Title: title})
}

func (c ServicesClient) ToggleTodo(ctx context.Context, id string) (*storage.Todo, error) {
	return c.Services.Todos.Toggle(ctx, id)
}

func (c ServicesClient) DeleteTodo(ctx context.Context, id string) error {
	return c.Services.Todos.Delete(ctx, id)
}

func (c ServicesClient) ReorderTodos(ctx context.Context, ids []string) error {
	return c.Services.Todos.Reorder(ctx, ids)
}

func (c ServicesClient) RestoreWindow(ctx context.Context) (app.WindowPrefs, error) {
	if !c.Restore {
		return app.DefaultWindowPrefs(), nil
	}
	return c.Services.Panel.Restore(ctx)
}

func (c ServicesClient) SetPanelMode(ctx context.Context, mode app.PanelMode) (app.WindowPrefs, error) {
	return c.Services.Panel.SetPanelMode(ctx, mode)
}

func (c ServicesClient) SetAlwaysOnTop(ctx context.Context, enabled bool) (app.WindowPrefs, error) {
	return c.Services.Panel.SetAlwaysOnTop(ctx, enabled)
}

func (c ServicesClient) WindowResized(ctx context.Context, width, height float64) {
	c.Services.Panel.HandleResized(ctx, width, height)
}
