// Version command for the git-sqlite CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukaforge/git-sqlite-filter/internal/sqlite"
)

// version is the tool release; bumped on tagged releases.
const version = "0.2.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the git-sqlite version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("git-sqlite %s (sqlite %s)\n", version, sqlite.EngineVersion())
	},
}
