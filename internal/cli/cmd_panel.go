package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/shihongDev/simple-todo-note/internal/tui"
	"github.com/spf13/cobra"
)

var runPanelFn = tui.Run

func newPanelCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Open the interactive todo panel",
		Long: "Without a subcommand, opens the terminal panel restored to its saved\n" +
			"mode and geometry. The subcommands change the saved panel state.",
		Example: "  todonote panel\n" +
			"  todonote panel mode expanded\n" +
			"  todonote panel pin off",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("unknown panel subcommand %q", args[0])
			}
			if !stdinIsTTYFn() {
				return usageErrorf("panel requires an interactive terminal")
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				frame := tui.NewFrame()
				env.services.Panel.Attach(frame)
				return runPanelFn(tui.Options{
					Client: tui.ServicesClient{
						Services: env.services,
						Restore:  env.cfg.Panel.RestoreWindow,
					},
					Frame: frame,
					IsTTY: stdinIsTTYFn,
				})
			})
		},
	}
	cmd.AddCommand(newPanelModeCommand(deps), newPanelPinCommand(deps))
	return cmd
}

func newPanelModeCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:       "mode <mini|expanded>",
		Short:     "Switch the saved panel mode",
		ValidArgs: []string{string(app.PanelModeMini), string(app.PanelModeExpanded)},
		Example:   "  todonote panel mode expanded",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("panel mode requires mini or expanded")
			}
			mode := app.PanelMode(strings.ToLower(strings.TrimSpace(args[0])))
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				prefs, err := env.services.Panel.SetPanelMode(ctx, mode)
				if err != nil {
					return err
				}
				return printWindowPrefs(deps, prefs)
			})
		},
	}
}

func newPanelPinCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:       "pin <on|off>",
		Short:     "Keep the panel above other windows, or not",
		ValidArgs: []string{"on", "off"},
		Example:   "  todonote panel pin off",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("panel pin requires on or off")
			}
			var enabled bool
			switch strings.ToLower(strings.TrimSpace(args[0])) {
			case "on", "true":
				enabled = true
			case "off", "false":
				enabled = false
			default:
				return usageErrorf("panel pin: %q is not on or off", args[0])
			}
			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				prefs, err := env.services.Panel.SetAlwaysOnTop(ctx, enabled)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, prefs)
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "panel %s\n", boolToState(prefs.AlwaysOnTop, "pinned", "unpinned"))
				return err
			})
		},
	}
}
