package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type GlobalOptions struct {
	DBPath     string
	ConfigPath string
	LogLevel   string
	JSON       bool
	Quiet      bool
}

type commandDeps struct {
	globals *GlobalOptions
	build   BuildInfo
	out     io.Writer
	// logOut receives log records when no log file is configured.
	logOut io.Writer
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{
		globals: globals,
		build:   build,
		out:     out,
		logOut:  os.Stderr,
	}

	cmd := &cobra.Command{
		Use:   "todonote",
		Short: "Simple Todo Note: a local todo list with a floating panel",
		Long: "todonote keeps an ordered todo list in a local SQLite database.\n" +
			"Use the subcommands for scripted edits, or run `todonote panel` for the\n" +
			"interactive mini/expanded panel.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&globals.DBPath, "db", "", "Database file path")
	flags.StringVar(&globals.ConfigPath, "config", "", "Config file path")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&globals.JSON, "json", false, "Emit JSON output")
	flags.BoolVar(&globals.Quiet, "quiet", false, "Suppress non-essential output")

	cmd.AddCommand(
		newListCommand(deps),
		newAddCommand(deps),
		newEditCommand(deps),
		newToggleCommand(deps),
		newRemoveCommand(deps),
		newReorderCommand(deps),
		newMigrateCommand(deps),
		newPrefsCommand(deps),
		newPanelCommand(deps),
		newDebugCommand(deps),
		newVersionCommand(deps),
	)
	cmd.InitDefaultCompletionCmd()
	return cmd
}
