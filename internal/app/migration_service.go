package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shihongDev/simple-todo-note/internal/storage"
)

const MetaKeyLegacyMigrationDone = "legacy_migration_done"

type MigrationService struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

func NewMigrationService(store Store, opts Options) *MigrationService {
	opts = opts.withDefaults()
	return &MigrationService{
		store:  store,
		now:    opts.Now,
		newID:  opts.NewID,
		logger: opts.Logger,
	}
}

// MigrateLegacyIfNeeded imports payload once per database. Imported rows
// sort ahead of existing rows in payload order. The done flag is written in
// the same transaction whether or not anything was imported.
func (s *MigrationService) MigrateLegacyIfNeeded(ctx context.Context, payload []LegacyTodo) (MigrationResult, error) {
	var result MigrationResult
	err := s.store.Tx(ctx, func(h storage.Handle) error {
		done, err := migrationDone(ctx, h.Meta)
		if err != nil {
			return err
		}
		if done {
			result.AlreadyMigrated = true
			return nil
		}

		min, err := h.Todos.MinSortOrder(ctx)
		if err != nil {
			return err
		}
		cursor := min - int64(len(payload))

		for _, item := range payload {
			todo, ok := s.legacyToTodo(item)
			if !ok {
				continue
			}
			todo.SortOrder = cursor
			inserted, err := h.Todos.InsertIfAbsent(ctx, todo)
			if err != nil {
				return err
			}
			if !inserted {
				s.logger.Debug("legacy todo skipped", "id", todo.ID, "reason", "duplicate id")
				continue
			}
			cursor++
			result.MigratedCount++
		}

		return h.Meta.Set(ctx, MetaKeyLegacyMigrationDone, "true")
	})
	if err != nil {
		return MigrationResult{}, fmt.Errorf("migrate legacy todos: %w", err)
	}

	if !result.AlreadyMigrated {
		s.logger.Info("legacy todos migrated", "migrated", result.MigratedCount, "received", len(payload))
	}
	return result, nil
}

// Migrated reports whether the one-time import has already run.
func (s *MigrationService) Migrated(ctx context.Context) (bool, error) {
	var done bool
	err := s.store.Do(ctx, func(h storage.Handle) error {
		var err error
		done, err = migrationDone(ctx, h.Meta)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("read legacy migration flag: %w", err)
	}
	return done, nil
}

func migrationDone(ctx context.Context, meta storage.MetaRepository) (bool, error) {
	value, ok, err := meta.Get(ctx, MetaKeyLegacyMigrationDone)
	if err != nil {
		return false, err
	}
	return ok && value == "true", nil
}

func (s *MigrationService) legacyToTodo(item LegacyTodo) (*storage.Todo, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil, false
	}

	id := strings.TrimSpace(item.ID)
	if id == "" {
		id = s.newID()
	}

	// Non-blank timestamps are kept verbatim, whatever their format.
	createdAt := item.CreatedAt
	if strings.TrimSpace(createdAt) == "" {
		createdAt = storage.FormatTimestamp(s.now())
	}
	updatedAt := item.UpdatedAt
	if strings.TrimSpace(updatedAt) == "" {
		updatedAt = createdAt
	}

	return &storage.Todo{
		ID:            id,
		Title:         title,
		RecurrenceTag: normalizeRecurrenceTag(item.RecurrenceTag),
		Note:          item.Note,
		Completed:     item.Completed,
		DueDate:       normalizeDueDate(item.DueDate),
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, true
}
