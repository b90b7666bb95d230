package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shihongDev/simple-todo-note/internal/app"
	"github.com/spf13/cobra"
)

func newMigrateCommand(deps commandDeps) *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import todos exported by the pre-database version",
		Long: "Reads a JSON array of legacy todos and imports it once. Later runs\n" +
			"report that the import already happened and change nothing.",
		Example: "  todonote migrate --file ./todos.json\n" +
			"  cat todos.json | todonote migrate --file -",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("migrate does not accept positional arguments")
			}
			if strings.TrimSpace(filePath) == "" {
				return usageErrorf("migrate requires --file")
			}

			data, err := readPayload(cmd.InOrStdin(), filePath)
			if err != nil {
				return mapCommandError(err)
			}
			payload, err := app.DecodeLegacyPayload(data)
			if err != nil {
				return mapCommandError(err)
			}

			return withServices(cmd.Context(), deps, func(ctx context.Context, env runtimeEnv) error {
				result, err := env.services.Migration.MigrateLegacyIfNeeded(ctx, payload)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, result)
				}
				if deps.globals.Quiet {
					return nil
				}
				if result.AlreadyMigrated {
					_, err = fmt.Fprintln(deps.out, "legacy import already done")
					return err
				}
				_, err = fmt.Fprintf(deps.out, "migrated %d todos\n", result.MigratedCount)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "Legacy JSON file, or - for stdin")
	return cmd
}

func readPayload(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read legacy payload from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legacy payload: %w", err)
	}
	return data, nil
}
