package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/shihongDev/simple-todo-note/internal/storage"
)

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type StorageInfo struct {
	// File is the database base name; directories are left out.
	File           string `json:"file"`
	SchemaVersion  int    `json:"schema_version"`
	TodoCount      int    `json:"todo_count"`
	LegacyMigrated bool   `json:"legacy_migrated"`
}

type Bundle struct {
	GeneratedAt string         `json:"generated_at"`
	GOOS        string         `json:"goos"`
	GOARCH      string         `json:"goarch"`
	Version     map[string]any `json:"version,omitempty"`
	Storage     *StorageInfo   `json:"storage,omitempty"`
	Checks      []Check        `json:"checks,omitempty"`
	Notes       []string       `json:"notes,omitempty"`
}

func NewBundle() Bundle {
	return Bundle{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
	}
}

// Collect inspects the store and records one check per concern. It never
// copies todo titles, notes or raw preference blobs into the bundle.
func Collect(ctx context.Context, store *storage.Store, services *app.Services) Bundle {
	bundle := NewBundle()
	bundle.Notes = append(bundle.Notes, "todo content and preference values are omitted")

	info := &StorageInfo{File: filepath.Base(store.Path())}
	bundle.Storage = info

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		bundle.addCheck("schema_version", false, err.Error())
	} else {
		info.SchemaVersion = version
		want := storage.CurrentSchemaVersion()
		bundle.addCheck("schema_version", version == want,
			"recorded "+strconv.Itoa(version)+", expected "+strconv.Itoa(want))
	}

	err = store.Do(ctx, func(h storage.Handle) error {
		count, err := h.Todos.Count(ctx)
		info.TodoCount = count
		return err
	})
	if err != nil {
		bundle.addCheck("todos", false, err.Error())
	} else {
		bundle.addCheck("todos", true, strconv.Itoa(info.TodoCount)+" stored")
	}

	migrated, err := services.Migration.Migrated(ctx)
	if err != nil {
		bundle.addCheck("legacy_migration", false, err.Error())
	} else {
		info.LegacyMigrated = migrated
		bundle.addCheck("legacy_migration", true, "done="+strconv.FormatBool(migrated))
	}

	if _, err := services.Prefs.GetWindowPrefs(ctx); err != nil {
		bundle.addCheck("window_prefs", false, err.Error())
	} else {
		bundle.addCheck("window_prefs", true, "decoded")
	}
	if _, err := services.Prefs.GetUIPrefs(ctx); err != nil {
		bundle.addCheck("ui_prefs", false, err.Error())
	} else {
		bundle.addCheck("ui_prefs", true, "decoded")
	}

	return bundle
}

// Healthy reports whether every check passed.
func (b Bundle) Healthy() bool {
	for _, check := range b.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

func (b *Bundle) addCheck(name string, ok bool, message string) {
	b.Checks = append(b.Checks, Check{Name: name, OK: ok, Message: message})
}

func WriteBundle(outputPath string, bundle Bundle) error {
	if outputPath == "" {
		return fmt.Errorf("write debug bundle: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
		return fmt.Errorf("write debug bundle: create output directory: %w", err)
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("write debug bundle: marshal json: %w", err)
	}
	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write debug bundle: %w", err)
	}
	return nil
}
