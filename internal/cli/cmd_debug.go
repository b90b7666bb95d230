package cli

import (
	"context"
	"fmt"
	"strings"

	debugpkg "github.com/shihongDev/simple-todo-note/internal/debug"
	"github.com/spf13/cobra"
)

func newDebugCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug",
		Short:   "Diagnostics helpers",
		Example: "  todonote debug bundle --output ./todonote-debug.json",
	}
	cmd.AddCommand(newDebugBundleCommand(deps))
	return cmd
}

func newDebugBundleCommand(deps commandDeps) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Collect sanitized diagnostics into a JSON bundle",
		Example: "  todonote debug bundle --output ./todonote-debug.json\n" +
			"  todonote --json debug bundle --output ./todonote-debug.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("debug bundle does not accept positional arguments")
			}
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("debug bundle requires --output")
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				bundle := debugpkg.Collect(ctx, env.store, env.services)
				bundle.Version = map[string]any{
					"version":    deps.build.Version,
					"commit":     deps.build.Commit,
					"build_time": deps.build.BuildTime,
				}
				if err := debugpkg.WriteBundle(outputPath, bundle); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"output": outputPath, "healthy": bundle.Healthy()})
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err := fmt.Fprintf(deps.out, "debug bundle written: %s (%s)\n",
					outputPath, boolToState(bundle.Healthy(), "healthy", "checks failed"))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output JSON bundle path")
	return cmd
}
