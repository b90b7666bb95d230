package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/shihongDev/simple-todo-note/internal/config"
	"github.com/shihongDev/simple-todo-note/internal/storage"
	"github.com/shihongDev/simple-todo-note/internal/tui"
	"github.com/stretchr/testify/require"
)

func TestVersionCommandOutputsBuildInfo(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "version=1.2.3")
	require.Contains(t, out, "commit=abc123")
	require.Contains(t, out, "build_time=2026-02-19T00:00:00Z")
}

func TestVersionCommandOutputsJSON(t *testing.T) {
	out, err := runCLI(t, "", "--json", "version")
	require.NoError(t, err)

	var payload BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Equal(t, "1.2.3", payload.Version)
	require.Equal(t, "abc123", payload.Commit)
}

func TestRootHasRequiredGlobalFlags(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())

	for _, name := range []string{"db", "config", "json", "quiet", "log-level"} {
		require.NotNilf(t, cmd.PersistentFlags().Lookup(name), "missing flag %q", name)
	}
}

func TestRootHasTopLevelCommands(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())

	for _, name := range []string{"list", "add", "edit", "toggle", "rm", "reorder", "migrate", "prefs", "panel", "debug", "version"} {
		_, _, err := cmd.Find([]string{name})
		require.NoErrorf(t, err, "expected command %q", name)
	}
}

func TestUnknownFlagReturnsUsageError(t *testing.T) {
	_, err := runCLI(t, "", "--no-such-flag", "x")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestInvalidLogLevelReturnsUsageError(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "--log-level", "chatty", "list")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestListEmptyStore(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "list")
	require.NoError(t, err)
	require.Equal(t, "no todos\n", out)

	out, err = env.run(t, "", "--json", "list")
	require.NoError(t, err)
	require.Equal(t, "[]\n", out)
}

func TestAddPutsNewestFirst(t *testing.T) {
	env := newCLIEnv(t)

	first := env.add(t, "buy milk")
	second := env.add(t, "call", "mom", "--recur", "daily", "--note", "after work", "--due", "2026-11-01")
	require.Equal(t, "call mom", second.Title)
	require.Equal(t, storage.RecurrenceDaily, second.RecurrenceTag)
	require.Equal(t, "after work", second.Note)
	require.NotNil(t, second.DueDate)
	require.Equal(t, "2026-11-01", *second.DueDate)

	todos := env.list(t)
	require.Equal(t, []string{second.ID, first.ID}, ids(todos))

	out, err := env.run(t, "", "list")
	require.NoError(t, err)
	require.Contains(t, out, "[ ] "+second.ID+"  call mom  (daily)  due 2026-11-01")

	out, err = env.run(t, "", "--quiet", "list")
	require.NoError(t, err)
	require.Equal(t, second.ID+"\n"+first.ID+"\n", out)
}

func TestAddRequiresTitle(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "add", "   ")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
	require.Empty(t, env.list(t))
}

func TestAddInteractiveUsesForm(t *testing.T) {
	env := newCLIEnv(t)
	stubTTY(t, true)

	original := addFormFn
	t.Cleanup(func() { addFormFn = original })
	var seen addFields
	addFormFn = func(_ io.Reader, _ io.Writer, fields addFields) (addFields, error) {
		seen = fields
		return addFields{Title: "water plants", Recur: storage.RecurrenceBiWeekly, Note: "", DueDate: ""}, nil
	}

	out, err := env.run(t, "", "--json", "add", "--interactive", "draft")
	require.NoError(t, err)
	require.Equal(t, "draft", seen.Title)

	var todo storage.Todo
	require.NoError(t, json.Unmarshal([]byte(out), &todo))
	require.Equal(t, "water plants", todo.Title)
	require.Equal(t, storage.RecurrenceBiWeekly, todo.RecurrenceTag)
	require.Nil(t, todo.DueDate)
}

func TestAddInteractiveRequiresTerminal(t *testing.T) {
	env := newCLIEnv(t)
	stubTTY(t, false)

	_, err := env.run(t, "", "add", "--interactive")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestEditChangesOnlyNamedFields(t *testing.T) {
	env := newCLIEnv(t)
	todo := env.add(t, "buy milk", "--note", "2%", "--due", "2026-11-01")

	out, err := env.run(t, "", "--json", "edit", todo.ID, "--title", "buy oat milk")
	require.NoError(t, err)
	var edited storage.Todo
	require.NoError(t, json.Unmarshal([]byte(out), &edited))
	require.Equal(t, "buy oat milk", edited.Title)
	require.Equal(t, "2%", edited.Note)
	require.Equal(t, "2026-11-01", *edited.DueDate)

	out, err = env.run(t, "", "--json", "edit", todo.ID, "--clear-due", "--completed")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &edited))
	require.Nil(t, edited.DueDate)
	require.True(t, edited.Completed)
}

func TestEditUsageErrors(t *testing.T) {
	env := newCLIEnv(t)
	todo := env.add(t, "buy milk")

	_, err := env.run(t, "", "edit", todo.ID)
	require.Equal(t, ExitCodeUsage, exitCode(err))

	_, err = env.run(t, "", "edit", todo.ID, "--due", "2026-11-01", "--clear-due")
	require.Equal(t, ExitCodeUsage, exitCode(err))

	_, err = env.run(t, "", "edit", todo.ID, "--title", "  ")
	require.Equal(t, ExitCodeUsage, exitCode(err))
	require.Contains(t, err.Error(), "title cannot be empty")

	_, err = env.run(t, "", "edit", "missing-id", "--title", "  ")
	require.Equal(t, ExitCodeNotFound, exitCode(err))

	_, err = env.run(t, "", "edit", "missing-id", "--title", "x")
	require.Equal(t, ExitCodeNotFound, exitCode(err))
}

func TestToggleFlipsCompletion(t *testing.T) {
	env := newCLIEnv(t)
	todo := env.add(t, "buy milk")

	out, err := env.run(t, "", "toggle", todo.ID)
	require.NoError(t, err)
	require.Contains(t, out, "completed [x] "+todo.ID)

	out, err = env.run(t, "", "toggle", todo.ID)
	require.NoError(t, err)
	require.Contains(t, out, "reopened [ ] "+todo.ID)
}

func TestToggleUnknownIDReturnsNotFound(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "", "toggle", "nope")
	require.Error(t, err)
	require.Equal(t, ExitCodeNotFound, exitCode(err))
	require.Contains(t, err.Error(), "todo not found: nope")
}

func TestRemoveDeletesTodo(t *testing.T) {
	env := newCLIEnv(t)
	keep := env.add(t, "keep")
	drop := env.add(t, "drop")

	out, err := env.run(t, "", "rm", drop.ID)
	require.NoError(t, err)
	require.Equal(t, "deleted "+drop.ID+"\n", out)
	require.Equal(t, []string{keep.ID}, ids(env.list(t)))
}

func TestReorderRewritesOrder(t *testing.T) {
	env := newCLIEnv(t)
	a := env.add(t, "a")
	b := env.add(t, "b")
	c := env.add(t, "c")
	require.Equal(t, []string{c.ID, b.ID, a.ID}, ids(env.list(t)))

	_, err := env.run(t, "", "reorder", a.ID, b.ID, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID, b.ID, c.ID}, ids(env.list(t)))

	_, err = env.run(t, "", "reorder")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestMigrateImportsOnce(t *testing.T) {
	env := newCLIEnv(t)
	existing := env.add(t, "already here")

	payload := `[
	  {"id": "legacy-1", "title": "from old app", "recurrenceTag": "daily", "completed": true,
	   "createdAt": "2024-01-02T03:04:05Z", "updatedAt": "2024-01-03T03:04:05Z"},
	  {"id": "legacy-2", "title": "  ", "note": "dropped"},
	  {"title": "no id", "dueDate": "2026-12-24"}
	]`
	out, err := env.run(t, payload, "--json", "migrate", "--file", "-")
	require.NoError(t, err)
	var result app.MigrationResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, 2, result.MigratedCount)
	require.False(t, result.AlreadyMigrated)

	todos := env.list(t)
	require.Len(t, todos, 3)
	require.Equal(t, "legacy-1", todos[0].ID)
	require.Equal(t, "no id", todos[1].Title)
	require.Equal(t, existing.ID, todos[2].ID)

	out, err = env.run(t, payload, "migrate", "--file", "-")
	require.NoError(t, err)
	require.Equal(t, "legacy import already done\n", out)
	require.Len(t, env.list(t), 3)
}

func TestMigrateFromFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.dir, "todos.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"one"},{"title":"two"}]`), 0o600))

	out, err := env.run(t, "", "migrate", "--file", path)
	require.NoError(t, err)
	require.Equal(t, "migrated 2 todos\n", out)
}

func TestMigrateRejectsBadPayload(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, `[{"title": 7}]`, "migrate", "--file", "-")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
	require.Contains(t, err.Error(), "0/title")

	_, err = env.run(t, "", "migrate", "--file", filepath.Join(env.dir, "missing.json"))
	require.Equal(t, ExitCodeIO, exitCode(err))

	_, err = env.run(t, "", "migrate")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestPrefsWindowShowAndSet(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "prefs", "window", "show")
	require.NoError(t, err)
	require.Equal(t, "mode=mini x=80 y=80 width=380 height=520 always_on_top=true\n", out)

	out, err = env.run(t, "", "--json", "prefs", "window", "set", "--x", "12", "--always-on-top=false")
	require.NoError(t, err)
	var prefs app.WindowPrefs
	require.NoError(t, json.Unmarshal([]byte(out), &prefs))
	require.Equal(t, float64(12), prefs.X)
	require.Equal(t, float64(80), prefs.Y)
	require.False(t, prefs.AlwaysOnTop)

	_, err = env.run(t, "", "prefs", "window", "set", "--mode", "huge")
	require.Equal(t, ExitCodeUsage, exitCode(err))

	_, err = env.run(t, "", "prefs", "window", "set")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestPrefsUIShowAndSet(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "prefs", "ui", "show")
	require.NoError(t, err)
	require.Equal(t, "motion=balanced readability=adaptive reduce_motion=system\n", out)

	_, err = env.run(t, "", "prefs", "ui", "set", "--motion", "low", "--reduce-motion", "on")
	require.NoError(t, err)
	out, err = env.run(t, "", "prefs", "ui", "show")
	require.NoError(t, err)
	require.Equal(t, "motion=low readability=adaptive reduce_motion=on\n", out)

	_, err = env.run(t, "", "prefs", "ui", "set", "--readability", "tiny")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestPanelModeAndPin(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "", "--json", "panel", "mode", "expanded")
	require.NoError(t, err)
	var prefs app.WindowPrefs
	require.NoError(t, json.Unmarshal([]byte(out), &prefs))
	require.Equal(t, app.PanelModeExpanded, prefs.Mode)
	require.Equal(t, float64(920), prefs.Width)
	require.Equal(t, float64(680), prefs.Height)

	out, err = env.run(t, "", "panel", "pin", "off")
	require.NoError(t, err)
	require.Equal(t, "panel unpinned\n", out)

	_, err = env.run(t, "", "panel", "mode", "giant")
	require.Equal(t, ExitCodeUsage, exitCode(err))

	_, err = env.run(t, "", "panel", "pin", "maybe")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestPanelRequiresTerminal(t *testing.T) {
	env := newCLIEnv(t)
	stubTTY(t, false)

	_, err := env.run(t, "", "panel")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestPanelOpensRestoredShell(t *testing.T) {
	env := newCLIEnv(t)
	stubTTY(t, true)
	todo := env.add(t, "visible in panel")
	_, err := env.run(t, "", "panel", "mode", "expanded")
	require.NoError(t, err)

	original := runPanelFn
	t.Cleanup(func() { runPanelFn = original })
	var listed []storage.Todo
	runPanelFn = func(opts tui.Options) error {
		ctx := context.Background()
		prefs, err := opts.Client.RestoreWindow(ctx)
		if err != nil {
			return err
		}
		if prefs.Mode != app.PanelModeExpanded {
			return fmt.Errorf("restored mode %q", prefs.Mode)
		}
		if columns, _ := opts.Frame.Cells(); columns != 115 {
			return fmt.Errorf("frame columns %d", columns)
		}
		listed, err = opts.Client.ListTodos(ctx)
		return err
	}

	_, err = env.run(t, "", "panel")
	require.NoError(t, err)
	require.Equal(t, []string{todo.ID}, ids(listed))
}

func TestDebugBundleOmitsTodoContent(t *testing.T) {
	env := newCLIEnv(t)
	env.add(t, "secret errand", "--note", "private note")
	output := filepath.Join(env.dir, "bundle", "debug.json")

	out, err := env.run(t, "", "debug", "bundle", "--output", output)
	require.NoError(t, err)
	require.Contains(t, out, "debug bundle written: "+output+" (healthy)")

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret errand")
	require.NotContains(t, string(raw), "private note")
	require.NotContains(t, string(raw), env.dir)
	require.Contains(t, string(raw), `"todo_count": 1`)
	require.Contains(t, string(raw), `"version": "1.2.3"`)

	_, err = env.run(t, "", "debug", "bundle")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestConfigFileSetsDatabasePath(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "from-config.db")
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(fmt.Sprintf("[storage]\npath = %q\n", dbPath)), 0o600))

	_, err := runCLI(t, "", "--config", configPath, "add", "from config")
	require.NoError(t, err)
	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestLoadConfigFailureMapsToExitCode(t *testing.T) {
	original := loadConfigFn
	t.Cleanup(func() { loadConfigFn = original })
	loadConfigFn = func(config.LoadOptions) (config.Config, error) {
		return config.Config{}, fmt.Errorf("%w: broken", config.ErrInvalidConfig)
	}

	_, err := runCLI(t, "", "list")
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestMapCommandError(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("create todo: %w", app.ErrValidation), ExitCodeUsage},
		{&app.NotFoundError{ID: "x"}, ExitCodeNotFound},
		{fmt.Errorf("list todos: %w", storage.ErrLockUnavailable), ExitCodeLocked},
		{fmt.Errorf("open: %w", storage.ErrSchemaTooNew), ExitCodeIO},
		{fmt.Errorf("get window prefs: %w", app.ErrDecode), ExitCodeIO},
		{&os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}, ExitCodePermission},
		{&os.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}, ExitCodeIO},
		{errors.New("boom"), ExitCodeGeneric},
		{usageErrorf("bad"), ExitCodeUsage},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.code, exitCode(mapCommandError(tc.err)), "error %v", tc.err)
	}
	require.NoError(t, mapCommandError(nil))
}

type cliEnv struct {
	dir    string
	db     string
	config string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	return cliEnv{
		dir:    dir,
		db:     filepath.Join(dir, "data", "todos.db"),
		config: filepath.Join(dir, "missing-config.toml"),
	}
}

func (e cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"--db", e.db, "--config", e.config, "--log-level", "error"}, args...)
	return runCLI(t, stdin, full...)
}

func (e cliEnv) add(t *testing.T, args ...string) storage.Todo {
	t.Helper()
	out, err := e.run(t, "", append([]string{"--json", "add"}, args...)...)
	require.NoError(t, err)
	var todo storage.Todo
	require.NoError(t, json.Unmarshal([]byte(out), &todo))
	return todo
}

func (e cliEnv) list(t *testing.T) []storage.Todo {
	t.Helper()
	out, err := e.run(t, "", "--json", "list")
	require.NoError(t, err)
	var todos []storage.Todo
	require.NoError(t, json.Unmarshal([]byte(out), &todos))
	return todos
}

func ids(todos []storage.Todo) []string {
	out := make([]string, 0, len(todos))
	for _, todo := range todos {
		out = append(out, todo.ID)
	}
	return out
}

func stubTTY(t *testing.T, value bool) {
	t.Helper()
	original := stdinIsTTYFn
	t.Cleanup(func() { stdinIsTTYFn = original })
	stdinIsTTYFn = func() bool { return value }
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   "1.2.3",
		Commit:    "abc123",
		BuildTime: "2026-02-19T00:00:00Z",
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return withExit.ExitCode()
	}
	return -1
}
