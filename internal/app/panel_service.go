package app

import (
	"context"
	"fmt"
	"log/slog"
)

// PanelService drives the mini/expanded panel state machine and keeps the
// live window and the persisted WindowPrefs in step.
type PanelService struct {
	prefs  *PreferencesService
	window Window
	logger *slog.Logger
}

func NewPanelService(prefs *PreferencesService, window Window, opts Options) *PanelService {
	opts = opts.withDefaults()
	return &PanelService{prefs: prefs, window: window, logger: opts.Logger}
}

// Attach sets the live window. A nil window limits the service to
// persistence.
func (s *PanelService) Attach(window Window) {
	s.window = window
}

func (s *PanelService) SetPanelMode(ctx context.Context, mode PanelMode) (WindowPrefs, error) {
	if !mode.Valid() {
		return WindowPrefs{}, fmt.Errorf("%w: unknown panel mode %q", ErrValidation, mode)
	}
	width, height := mode.Size()
	if s.window != nil {
		if err := s.window.SetSize(width, height); err != nil {
			return WindowPrefs{}, fmt.Errorf("set panel mode: resize window: %w", err)
		}
	}
	prefs, err := s.prefs.MutateWindowPrefs(ctx, func(p *WindowPrefs) {
		p.Mode = mode
		p.Width, p.Height = width, height
	})
	if err != nil {
		return WindowPrefs{}, fmt.Errorf("set panel mode: %w", err)
	}
	s.logger.Debug("panel mode changed", "mode", string(mode))
	return prefs, nil
}

func (s *PanelService) SetAlwaysOnTop(ctx context.Context, enabled bool) (WindowPrefs, error) {
	if s.window != nil {
		if err := s.window.SetAlwaysOnTop(enabled); err != nil {
			return WindowPrefs{}, fmt.Errorf("set always on top: %w", err)
		}
	}
	prefs, err := s.prefs.MutateWindowPrefs(ctx, func(p *WindowPrefs) {
		p.AlwaysOnTop = enabled
	})
	if err != nil {
		return WindowPrefs{}, fmt.Errorf("set always on top: %w", err)
	}
	return prefs, nil
}

// Restore applies the persisted geometry to the attached window. Unreadable
// prefs restore the defaults.
func (s *PanelService) Restore(ctx context.Context) (WindowPrefs, error) {
	prefs, err := s.prefs.LoadWindowPrefsOrDefault(ctx)
	if err != nil {
		return WindowPrefs{}, fmt.Errorf("restore window: %w", err)
	}
	if s.window == nil {
		return prefs, nil
	}
	if err := s.window.SetSize(prefs.Width, prefs.Height); err != nil {
		return WindowPrefs{}, fmt.Errorf("restore window: size: %w", err)
	}
	if err := s.window.SetPosition(prefs.X, prefs.Y); err != nil {
		return WindowPrefs{}, fmt.Errorf("restore window: position: %w", err)
	}
	if err := s.window.SetAlwaysOnTop(prefs.AlwaysOnTop); err != nil {
		return WindowPrefs{}, fmt.Errorf("restore window: always on top: %w", err)
	}
	return prefs, nil
}

// HandleMoved records a window move. Errors are logged and dropped.
func (s *PanelService) HandleMoved(ctx context.Context, x, y float64) {
	if err := s.prefs.UpdatePosition(ctx, x, y); err != nil {
		s.logger.Debug("window position not persisted", "error", err)
	}
}

// HandleResized records a window resize. Errors are logged and dropped.
func (s *PanelService) HandleResized(ctx context.Context, width, height float64) {
	if err := s.prefs.UpdateSize(ctx, width, height); err != nil {
		s.logger.Debug("window size not persisted", "error", err)
	}
}
