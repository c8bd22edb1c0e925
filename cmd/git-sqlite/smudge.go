// Smudge command: canonical SQL text on stdin, rebuilt database on stdout.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dukaforge/git-sqlite-filter/internal/filter"
	"github.com/dukaforge/git-sqlite-filter/internal/gitio"
	"github.com/dukaforge/git-sqlite-filter/internal/sqlite"
)

var (
	flagSchema      string
	flagSmudgeDebug bool
)

var smudgeCmd = &cobra.Command{
	Use:   "smudge [path]",
	Short: "Rebuild a SQLite database from its SQL text form",
	Long: `Reads the stored SQL text from stdin and writes the rebuilt binary
database to stdout. The positional path argument is accepted because git
passes %f to filters, but it is not used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSmudge,
}

func init() {
	smudgeCmd.Flags().StringVar(&flagSchema, "schema", "", "base schema file applied before the data stream")
	smudgeCmd.Flags().BoolVar(&flagSmudgeDebug, "debug", false, "log debug info to stderr (also triggered by GIT_TRACE=1)")
}

func runSmudge(cmd *cobra.Command, args []string) error {
	env := loadEnv()
	debug := flagSmudgeDebug || traceEnabled(env)
	log := newLogger("git-sqlite-smudge", debug)

	if gitio.ShouldSkipSubmodule(cmd.Context(), log) {
		return filter.Passthrough(os.Stdin, os.Stdout)
	}

	return filter.Smudge(flagSchema, os.Stdin, os.Stdout, sqlite.NewRegistry(), log)
}
