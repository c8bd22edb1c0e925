// Package main provides the git-sqlite CLI: a pair of git filters that
// store SQLite databases as deterministic SQL text (clean) and rebuild the
// binary file on checkout (smudge).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "git-sqlite",
	Short: "Git clean/smudge filters for SQLite databases",
	Long: `git-sqlite converts SQLite database files to a stable SQL text
representation before commit and back to binary form on checkout, so the
databases can be stored and diffed like source text.

Configure it as a git filter:

    git config filter.sqlite.clean  "git-sqlite clean %f"
    git config filter.sqlite.smudge "git-sqlite smudge %f"`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(smudgeCmd)
	rootCmd.AddCommand(versionCmd)
}
