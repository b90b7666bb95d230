package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRunMigrationsAppliesAllSequentially(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	err := RunMigrations(db, DefaultMigrations())
	require.NoError(t, err)

	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))
	for _, table := range []string{"todos", "app_meta", "schema_migrations"} {
		require.Truef(t, tableExists(t, db, table), "expected table %s to exist", table)
	}
	for _, index := range []string{"idx_todos_sort_order", "idx_todos_completed_sort"} {
		require.Truef(t, indexExists(t, db, index), "expected index %s to exist", index)
	}
	require.True(t, columnPresent(t, db, "todos", "recurrence_tag"))
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	require.NoError(t, RunMigrations(db, DefaultMigrations()))
	require.NoError(t, RunMigrations(db, DefaultMigrations()))

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	require.Equal(t, len(DefaultMigrations()), applied)
}

func TestRunMigrationsIsAtomic(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	migrations := []Migration{
		{
			Version:     1,
			Description: "create a",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE test_a (id TEXT PRIMARY KEY)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create b then fail",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE test_b (id TEXT PRIMARY KEY)`); err != nil {
					return err
				}
				return errors.New("boom")
			},
		},
	}

	err := RunMigrations(db, migrations)
	require.Error(t, err)
	require.Equal(t, 1, mustSchemaVersion(t, db))
	require.True(t, tableExists(t, db, "test_a"))
	require.False(t, tableExists(t, db, "test_b"))
}

func TestRunMigrationsAdoptsUnversionedLegacyLayout(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	// Layout written before the recurrence column and version tracking existed.
	_, err := db.Exec(`CREATE TABLE todos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		due_date TEXT NULL,
		sort_order INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO todos(id, title, sort_order, created_at, updated_at)
		VALUES('old', 'Old task', 0, '2024-01-01T00:00:00+00:00', '2024-01-01T00:00:00+00:00')`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, DefaultMigrations()))
	require.True(t, columnPresent(t, db, "todos", "recurrence_tag"))

	var tag string
	require.NoError(t, db.QueryRow(`SELECT recurrence_tag FROM todos WHERE id = 'old'`).Scan(&tag))
	require.Equal(t, RecurrenceNone, tag)
}

func TestOpenAdoptedLayoutKeepsFreeFormTimestamps(t *testing.T) {
	t.Parallel()

	path := rawDBPath(t)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE todos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		due_date TEXT NULL,
		sort_order INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO todos(id, title, sort_order, created_at, updated_at)
		VALUES('dated', 'Imported long ago', 0, '2023-05-01', 'May 2nd')`)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path, Options{})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)
	ctx := context.Background()

	err = store.Do(ctx, func(h Handle) error {
		list, err := h.Todos.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, "2023-05-01", list[0].CreatedAt)
		require.Equal(t, "May 2nd", list[0].UpdatedAt)

		loaded, err := h.Todos.Get(ctx, "dated")
		require.NoError(t, err)
		loaded.Completed = true
		loaded.UpdatedAt = FormatTimestamp(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC))
		require.NoError(t, h.Todos.Update(ctx, loaded))

		updated, err := h.Todos.Get(ctx, "dated")
		require.NoError(t, err)
		require.True(t, updated.Completed)
		require.Equal(t, "2023-05-01", updated.CreatedAt)
		require.Equal(t, "2024-02-03T04:05:06.000000000Z", updated.UpdatedAt)
		return nil
	})
	require.NoError(t, err)
}

func TestRunMigrationsSkipsColumnAlreadyPresent(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	_, err := db.Exec(`CREATE TABLE todos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		recurrence_tag TEXT NOT NULL DEFAULT 'none',
		note TEXT NOT NULL DEFAULT '',
		completed INTEGER NOT NULL DEFAULT 0,
		due_date TEXT NULL,
		sort_order INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, DefaultMigrations()))
	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))
}

func TestOpenRefusesNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	path := rawDBPath(t)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db, DefaultMigrations()))
	_, err = db.Exec(`UPDATE app_meta SET value = ? WHERE key = 'schema_version'`, CurrentSchemaVersion()+1)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path, Options{})
	if store != nil {
		t.Cleanup(func() { _ = store.Close() })
	}
	require.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestStoreSchemaVersionAfterOpen(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion(), version)
}

func TestMetaGetMissingAndUpsert(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.Do(ctx, func(h Handle) error {
		_, ok, err := h.Meta.Get(ctx, "window_prefs_json")
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, h.Meta.Set(ctx, "window_prefs_json", `{"x":1}`))
		require.NoError(t, h.Meta.Set(ctx, "window_prefs_json", `{"x":2}`))

		value, ok, err := h.Meta.Get(ctx, "window_prefs_json")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `{"x":2}`, value)
		return nil
	})
	require.NoError(t, err)
}

func TestTodoInsertGetUpdateDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	due := "2024-01-01"

	err := store.Do(ctx, func(h Handle) error {
		todo := &Todo{Title: "Buy milk", Note: "2%", DueDate: &due, SortOrder: -1}
		require.NoError(t, h.Todos.Insert(ctx, todo))
		require.NotEmpty(t, todo.ID)
		require.Equal(t, RecurrenceNone, todo.RecurrenceTag)
		require.Equal(t, todo.CreatedAt, todo.UpdatedAt)

		loaded, err := h.Todos.Get(ctx, todo.ID)
		require.NoError(t, err)
		require.Equal(t, "Buy milk", loaded.Title)
		require.Equal(t, "2%", loaded.Note)
		require.NotNil(t, loaded.DueDate)
		require.Equal(t, due, *loaded.DueDate)
		require.Equal(t, int64(-1), loaded.SortOrder)
		require.Equal(t, todo.CreatedAt, loaded.CreatedAt)

		loaded.Completed = true
		loaded.DueDate = nil
		loaded.UpdatedAt = FormatTimestamp(time.Now().Add(time.Hour))
		require.NoError(t, h.Todos.Update(ctx, loaded))

		updated, err := h.Todos.Get(ctx, todo.ID)
		require.NoError(t, err)
		require.True(t, updated.Completed)
		require.Nil(t, updated.DueDate)
		require.Greater(t, updated.UpdatedAt, updated.CreatedAt)

		require.NoError(t, h.Todos.Delete(ctx, todo.ID))
		_, err = h.Todos.Get(ctx, todo.ID)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, h.Todos.Delete(ctx, todo.ID))
		return nil
	})
	require.NoError(t, err)
}

func TestTodoUpdateUnknownReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.Do(ctx, func(h Handle) error {
		return h.Todos.Update(ctx, &Todo{ID: "missing", Title: "x", RecurrenceTag: RecurrenceNone, UpdatedAt: FormatTimestamp(time.Now())})
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTodoListOrdersBySortOrderThenCreatedAtDesc(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := store.Do(ctx, func(h Handle) error {
		rows := []Todo{
			{ID: "late-tie", Title: "a", SortOrder: 0, CreatedAt: FormatTimestamp(base.Add(2 * time.Hour))},
			{ID: "first", Title: "b", SortOrder: -5, CreatedAt: FormatTimestamp(base)},
			{ID: "early-tie", Title: "c", SortOrder: 0, CreatedAt: FormatTimestamp(base.Add(time.Hour))},
			{ID: "last", Title: "d", SortOrder: 3, CreatedAt: FormatTimestamp(base.Add(3 * time.Hour))},
		}
		for i := range rows {
			require.NoError(t, h.Todos.Insert(ctx, &rows[i]))
		}

		list, err := h.Todos.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"first", "late-tie", "early-tie", "last"}, todoIDs(list))

		min, err := h.Todos.MinSortOrder(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(-5), min)

		count, err := h.Todos.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 4, count)
		return nil
	})
	require.NoError(t, err)
}

func TestTodoMinSortOrderEmptyIsZero(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.Do(ctx, func(h Handle) error {
		min, err := h.Todos.MinSortOrder(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(0), min)
		return nil
	})
	require.NoError(t, err)
}

func TestTodoInsertIfAbsentIgnoresDuplicateID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.Do(ctx, func(h Handle) error {
		inserted, err := h.Todos.InsertIfAbsent(ctx, &Todo{ID: "dup", Title: "one"})
		require.NoError(t, err)
		require.True(t, inserted)

		inserted, err = h.Todos.InsertIfAbsent(ctx, &Todo{ID: "dup", Title: "two"})
		require.NoError(t, err)
		require.False(t, inserted)

		loaded, err := h.Todos.Get(ctx, "dup")
		require.NoError(t, err)
		require.Equal(t, "one", loaded.Title)
		return nil
	})
	require.NoError(t, err)
}

func TestTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.Tx(ctx, func(h Handle) error {
		if err := h.Todos.Insert(ctx, &Todo{ID: "tx", Title: "in tx"}); err != nil {
			return err
		}
		if err := h.Meta.Set(ctx, "flag", "true"); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	err = store.Do(ctx, func(h Handle) error {
		_, err := h.Todos.Get(ctx, "tx")
		require.ErrorIs(t, err, ErrNotFound)
		_, ok, err := h.Meta.Get(ctx, "flag")
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestTxRollsBackOnPanic(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.Panics(t, func() {
		_ = store.Tx(ctx, func(h Handle) error {
			if err := h.Todos.Insert(ctx, &Todo{ID: "panic", Title: "in tx"}); err != nil {
				return err
			}
			panic("boom")
		})
	})

	err := store.Do(ctx, func(h Handle) error {
		count, err := h.Todos.Count(ctx)
		require.NoError(t, err)
		require.Zero(t, count)
		return nil
	})
	require.NoError(t, err)
}

func TestLockTimesOutWhileHeld(t *testing.T) {
	t.Parallel()

	store, err := Open(rawDBPath(t), Options{LockTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })

	ctx := context.Background()
	held := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = store.Do(ctx, func(Handle) error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	err = store.Do(ctx, func(Handle) error { return nil })
	require.ErrorIs(t, err, ErrLockUnavailable)

	close(release)
	wg.Wait()
	require.NoError(t, store.Do(ctx, func(Handle) error { return nil }))
}

func TestOperationsAfterCloseFailWithLockError(t *testing.T) {
	t.Parallel()

	store, err := Open(rawDBPath(t), Options{})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.Do(context.Background(), func(Handle) error { return nil })
	require.ErrorIs(t, err, ErrLockUnavailable)
}

func TestConcurrentOperationsAreSerialized(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	errCh := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				err := store.Tx(ctx, func(h Handle) error {
					min, err := h.Todos.MinSortOrder(ctx)
					if err != nil {
						return err
					}
					return h.Todos.Insert(ctx, &Todo{Title: fmt.Sprintf("w%d-%d", i, j), SortOrder: min - 1})
				})
				if err != nil {
					errCh <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	var distinct int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(DISTINCT sort_order) FROM todos`).Scan(&distinct))
	require.Equal(t, writers*20, distinct)
}

func TestDBFilePermissions0600OnUnix(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("permissions assertion is unix-specific")
	}

	path := rawDBPath(t)
	store, err := Open(path, Options{})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUUIDUniquenessForTodoCreation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	ids := map[string]struct{}{}
	err := store.Do(ctx, func(h Handle) error {
		for i := 0; i < 500; i++ {
			todo := &Todo{Title: fmt.Sprintf("todo-%d", i)}
			require.NoError(t, h.Todos.Insert(ctx, todo))
			_, exists := ids[todo.ID]
			require.False(t, exists)
			ids[todo.ID] = struct{}{}
		}
		return nil
	})
	require.NoError(t, err)
}

func openRawTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", rawDBPath(t))
	require.NoError(t, err)
	return db
}

func rawDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), DefaultFileName)
}

func mustSchemaVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var version int
	err := db.QueryRow(`SELECT value FROM app_meta WHERE key = 'schema_version'`).Scan(&version)
	require.NoError(t, err)
	return version
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func indexExists(t *testing.T, db *sql.DB, index string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='index' AND name=?`, index).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func columnPresent(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	ok, err := columnExists(tx, table, column)
	require.NoError(t, err)
	return ok
}

func todoIDs(todos []Todo) []string {
	out := make([]string, 0, len(todos))
	for _, todo := range todos {
		out = append(out, todo.ID)
	}
	return out
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(rawDBPath(t), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })
	return store
}

func closeStoreNoErr(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.Close())
}

func closeNoErr(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, db.Close())
}
