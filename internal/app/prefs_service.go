package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shihongDev/simple-todo-note/internal/storage"
)

const (
	MetaKeyWindowPrefs = "window_prefs_json"
	MetaKeyUIPrefs     = "ui_prefs_json"
)

// PreferencesService persists WindowPrefs and UIPrefs as whole JSON blobs in
// app_meta. A service built over a nil store reads defaults and drops writes.
type PreferencesService struct {
	store  Store
	logger *slog.Logger
}

func NewPreferencesService(store Store, opts Options) *PreferencesService {
	opts = opts.withDefaults()
	return &PreferencesService{store: store, logger: opts.Logger}
}

func (s *PreferencesService) GetWindowPrefs(ctx context.Context) (WindowPrefs, error) {
	if s.store == nil {
		return DefaultWindowPrefs(), nil
	}
	var prefs WindowPrefs
	err := s.store.Do(ctx, func(h storage.Handle) error {
		var err error
		prefs, err = readWindowPrefs(ctx, h.Meta)
		return err
	})
	if err != nil {
		return WindowPrefs{}, fmt.Errorf("get window prefs: %w", err)
	}
	return prefs, nil
}

func (s *PreferencesService) SaveWindowPrefs(ctx context.Context, prefs WindowPrefs) error {
	if err := validateWindowPrefs(prefs); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}
	err := s.store.Do(ctx, func(h storage.Handle) error {
		return writeJSON(ctx, h.Meta, MetaKeyWindowPrefs, prefs)
	})
	if err != nil {
		return fmt.Errorf("save window prefs: %w", err)
	}
	return nil
}

func (s *PreferencesService) GetUIPrefs(ctx context.Context) (UIPrefs, error) {
	if s.store == nil {
		return DefaultUIPrefs(), nil
	}
	var prefs UIPrefs
	err := s.store.Do(ctx, func(h storage.Handle) error {
		raw, ok, err := h.Meta.Get(ctx, MetaKeyUIPrefs)
		if err != nil || !ok {
			prefs = DefaultUIPrefs()
			return err
		}
		if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
			return fmt.Errorf("%w: ui prefs: %v", ErrDecode, err)
		}
		return validateUIPrefs(prefs, ErrDecode)
	})
	if err != nil {
		return UIPrefs{}, fmt.Errorf("get ui prefs: %w", err)
	}
	return prefs, nil
}

func (s *PreferencesService) SaveUIPrefs(ctx context.Context, prefs UIPrefs) error {
	if err := validateUIPrefs(prefs, ErrValidation); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}
	err := s.store.Do(ctx, func(h storage.Handle) error {
		return writeJSON(ctx, h.Meta, MetaKeyUIPrefs, prefs)
	})
	if err != nil {
		return fmt.Errorf("save ui prefs: %w", err)
	}
	return nil
}

// MutateWindowPrefs reads, changes and writes the window blob under one lock
// acquisition and returns the stored result.
func (s *PreferencesService) MutateWindowPrefs(ctx context.Context, mutate func(*WindowPrefs)) (WindowPrefs, error) {
	if s.store == nil {
		prefs := DefaultWindowPrefs()
		mutate(&prefs)
		return prefs, nil
	}
	var prefs WindowPrefs
	err := s.store.Do(ctx, func(h storage.Handle) error {
		var err error
		prefs, err = readWindowPrefs(ctx, h.Meta)
		if err != nil {
			return err
		}
		mutate(&prefs)
		if err := validateWindowPrefs(prefs); err != nil {
			return err
		}
		return writeJSON(ctx, h.Meta, MetaKeyWindowPrefs, prefs)
	})
	if err != nil {
		return WindowPrefs{}, fmt.Errorf("update window prefs: %w", err)
	}
	return prefs, nil
}

func (s *PreferencesService) UpdatePosition(ctx context.Context, x, y float64) error {
	if s.store == nil {
		return nil
	}
	_, err := s.MutateWindowPrefs(ctx, func(p *WindowPrefs) {
		p.X, p.Y = x, y
	})
	return err
}

func (s *PreferencesService) UpdateSize(ctx context.Context, width, height float64) error {
	if s.store == nil {
		return nil
	}
	_, err := s.MutateWindowPrefs(ctx, func(p *WindowPrefs) {
		p.Width, p.Height = width, height
	})
	return err
}

// LoadWindowPrefsOrDefault is the startup read: a malformed blob falls back
// to defaults instead of failing. Storage errors are still returned.
func (s *PreferencesService) LoadWindowPrefsOrDefault(ctx context.Context) (WindowPrefs, error) {
	prefs, err := s.GetWindowPrefs(ctx)
	if err == nil {
		return prefs, nil
	}
	if errors.Is(err, ErrDecode) {
		s.logger.Warn("stored window prefs unreadable, using defaults", "error", err)
		return DefaultWindowPrefs(), nil
	}
	return WindowPrefs{}, err
}

func readWindowPrefs(ctx context.Context, meta storage.MetaRepository) (WindowPrefs, error) {
	raw, ok, err := meta.Get(ctx, MetaKeyWindowPrefs)
	if err != nil {
		return WindowPrefs{}, err
	}
	if !ok {
		return DefaultWindowPrefs(), nil
	}
	var prefs WindowPrefs
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return WindowPrefs{}, fmt.Errorf("%w: window prefs: %v", ErrDecode, err)
	}
	if !prefs.Mode.Valid() {
		return WindowPrefs{}, fmt.Errorf("%w: window prefs: unknown panel mode %q", ErrDecode, prefs.Mode)
	}
	return prefs, nil
}

func writeJSON(ctx context.Context, meta storage.MetaRepository, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return meta.Set(ctx, key, string(payload))
}

func validateWindowPrefs(prefs WindowPrefs) error {
	if !prefs.Mode.Valid() {
		return fmt.Errorf("%w: unknown panel mode %q", ErrValidation, prefs.Mode)
	}
	if prefs.Width < 0 || prefs.Height < 0 {
		return fmt.Errorf("%w: window size must not be negative", ErrValidation)
	}
	return nil
}

func validateUIPrefs(prefs UIPrefs, kind error) error {
	switch {
	case !prefs.MotionMode.Valid():
		return fmt.Errorf("%w: unknown motion mode %q", kind, prefs.MotionMode)
	case !prefs.ReadabilityMode.Valid():
		return fmt.Errorf("%w: unknown readability mode %q", kind, prefs.ReadabilityMode)
	case !prefs.ReduceMotionOverride.Valid():
		return fmt.Errorf("%w: unknown reduce motion override %q", kind, prefs.ReduceMotionOverride)
	}
	return nil
}
