package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/shihongDev/simple-todo-note/internal/config"
	logpkg "github.com/shihongDev/simple-todo-note/internal/log"
	"github.com/shihongDev/simple-todo-note/internal/storage"
)

var (
	loadConfigFn = config.Load
	stdinIsTTYFn = func() bool { return isTerminal(os.Stdin) }
)

// runtimeEnv is what a command sees while the store is open.
type runtimeEnv struct {
	cfg      config.Config
	store    *storage.Store
	services *app.Services
	logger   *slog.Logger
}

func (d commandDeps) loadOptions() config.LoadOptions {
	opts := config.LoadOptions{}
	if d.globals == nil {
		return opts
	}
	if configPath := strings.TrimSpace(d.globals.ConfigPath); configPath != "" {
		opts.ConfigPath = configPath
	}
	if dbPath := strings.TrimSpace(d.globals.DBPath); dbPath != "" {
		opts.Flags.DatabasePath = &dbPath
	}
	if level := strings.TrimSpace(d.globals.LogLevel); level != "" {
		opts.Flags.LogLevel = &level
	}
	return opts
}

// withServices loads config, opens the store and hands fn a wired service
// set. Everything is released before it returns.
func withServices(cmdCtx context.Context, deps commandDeps, fn func(context.Context, runtimeEnv) error) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	cfg, err := loadConfigFn(deps.loadOptions())
	if err != nil {
		return mapCommandError(fmt.Errorf("load config: %w", err))
	}

	logger, closeLog, err := logpkg.New(logpkg.Options{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}, deps.logOut)
	if err != nil {
		return mapCommandError(fmt.Errorf("init logging: %w", err))
	}
	defer func() { _ = closeLog() }()

	store, err := storage.Open(cfg.Storage.Path, storage.Options{LockTimeout: cfg.Storage.LockTimeout})
	if err != nil {
		logger.Error("open storage failed", "error", err)
		return mapCommandError(err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close storage failed", "error", err)
		}
	}()

	env := runtimeEnv{
		cfg:      cfg,
		store:    store,
		services: app.NewServices(store, app.Options{Logger: logger}),
		logger:   logger,
	}
	return mapCommandError(fn(cmdCtx, env))
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func boolToState(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
