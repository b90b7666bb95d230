package cli

import (
	"context"
	"fmt"

	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newPrefsCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Window and UI preferences",
		Example: "  todonote prefs window show\n" +
			"  todonote prefs ui set --motion low",
	}

	window := &cobra.Command{
		Use:   "window",
		Short: "Persisted window geometry",
	}
	window.AddCommand(newPrefsWindowShowCommand(deps), newPrefsWindowSetCommand(deps))

	ui := &cobra.Command{
		Use:   "ui",
		Short: "Motion and readability preferences",
	}
	ui.AddCommand(newPrefsUIShowCommand(deps), newPrefsUISetCommand(deps))

	cmd.AddCommand(window, ui)
	return cmd
}

func newPrefsWindowShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Short:   "Show window preferences",
		Example: "  todonote --json prefs window show",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs window show does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				prefs, err := env.services.Prefs.GetWindowPrefs(ctx)
				if err != nil {
					return err
				}
				return printWindowPrefs(deps, prefs)
			})
		},
	}
}

func newPrefsWindowSetCommand(deps commandDeps) *cobra.Command {
	var (
		x, y, width, height float64
		mode                string
		alwaysOnTop         bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change window preferences",
		Example: "  todonote prefs window set --x 40 --y 40\n" +
			"  todonote prefs window set --always-on-top=false",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs window set does not accept positional arguments")
			}
			flags := cmd.Flags()
			if !anyChanged(flags, "x", "y", "width", "height", "mode", "always-on-top") {
				return usageErrorf("prefs window set requires at least one flag")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				prefs, err := env.services.Prefs.MutateWindowPrefs(ctx, func(p *app.WindowPrefs) {
					if flags.Changed("x") {
						p.X = x
					}
					if flags.Changed("y") {
						p.Y = y
					}
					if flags.Changed("width") {
						p.Width = width
					}
					if flags.Changed("height") {
						p.Height = height
					}
					if flags.Changed("mode") {
						p.Mode = app.PanelMode(mode)
					}
					if flags.Changed("always-on-top") {
						p.AlwaysOnTop = alwaysOnTop
					}
				})
				if err != nil {
					return err
				}
				return printWindowPrefs(deps, prefs)
			})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Window x position")
	cmd.Flags().Float64Var(&y, "y", 0, "Window y position")
	cmd.Flags().Float64Var(&width, "width", 0, "Window width")
	cmd.Flags().Float64Var(&height, "height", 0, "Window height")
	cmd.Flags().StringVar(&mode, "mode", "", "Panel mode (mini, expanded)")
	cmd.Flags().BoolVar(&alwaysOnTop, "always-on-top", true, "Keep the panel above other windows")
	return cmd
}

func newPrefsUIShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "show",
		Short:   "Show UI preferences",
		Example: "  todonote prefs ui show",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs ui show does not accept positional arguments")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				prefs, err := env.services.Prefs.GetUIPrefs(ctx)
				if err != nil {
					return err
				}
				return printUIPrefs(deps, prefs)
			})
		},
	}
}

func newPrefsUISetCommand(deps commandDeps) *cobra.Command {
	var motion, readability, reduceMotion string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change UI preferences",
		Example: "  todonote prefs ui set --motion low\n" +
			"  todonote prefs ui set --readability strong --reduce-motion on",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("prefs ui set does not accept positional arguments")
			}
			flags := cmd.Flags()
			if !anyChanged(flags, "motion", "readability", "reduce-motion") {
				return usageErrorf("prefs ui set requires at least one flag")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				prefs, err := env.services.Prefs.GetUIPrefs(ctx)
				if err != nil {
					return err
				}
				if flags.Changed("motion") {
					prefs.MotionMode = app.MotionMode(motion)
				}
				if flags.Changed("readability") {
					prefs.ReadabilityMode = app.ReadabilityMode(readability)
				}
				if flags.Changed("reduce-motion") {
					prefs.ReduceMotionOverride = app.ReduceMotionOverride(reduceMotion)
				}
				if err := env.services.Prefs.SaveUIPrefs(ctx, prefs); err != nil {
					return err
				}
				return printUIPrefs(deps, prefs)
			})
		},
	}
	cmd.Flags().StringVar(&motion, "motion", "", "Motion mode (balanced, high, low)")
	cmd.Flags().StringVar(&readability, "readability", "", "Readability mode (adaptive, pure, strong)")
	cmd.Flags().StringVar(&reduceMotion, "reduce-motion", "", "Reduce motion override (system, on, off)")
	return cmd
}

func printWindowPrefs(deps commandDeps, prefs app.WindowPrefs) error {
	if deps.globals.JSON {
		return printJSON(deps.out, prefs)
	}
	if deps.globals.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(
		deps.out,
		"mode=%s x=%g y=%g width=%g height=%g always_on_top=%t\n",
		prefs.Mode,
		prefs.X,
		prefs.Y,
		prefs.Width,
		prefs.Height,
		prefs.AlwaysOnTop,
	)
	return err
}

func printUIPrefs(deps commandDeps, prefs app.UIPrefs) error {
	if deps.globals.JSON {
		return printJSON(deps.out, prefs)
	}
	if deps.globals.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(
		deps.out,
		"motion=%s readability=%s reduce_motion=%s\n",
		prefs.MotionMode,
		prefs.ReadabilityMode,
		prefs.ReduceMotionOverride,
	)
	return err
}

func anyChanged(flags *pflag.FlagSet, names ...string) bool {
	for _, name := range names {
		if flags.Changed(name) {
			return true
		}
	}
	return false
}
