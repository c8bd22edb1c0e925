// Clean command: database file in, canonical SQL text on stdout.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dukaforge/git-sqlite-filter/internal/filter"
	"github.com/dukaforge/git-sqlite-filter/internal/gitio"
	"github.com/dukaforge/git-sqlite-filter/internal/sqlite"
)

var (
	flagFloatPrecision int
	flagSchemaOnly     bool
	flagDataOnly       bool
	flagCleanDebug     bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <database>",
	Short: "Dump a SQLite database as deterministic SQL text",
	Args:  cobra.ExactArgs(1),
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().IntVar(&flagFloatPrecision, "float-precision", sqlite.NoPrecision, "round floats to this many fractional digits")
	cleanCmd.Flags().BoolVar(&flagSchemaOnly, "schema-only", false, "output only schema (no INSERTs)")
	cleanCmd.Flags().BoolVar(&flagDataOnly, "data-only", false, "output only INSERT statements")
	cleanCmd.Flags().BoolVar(&flagCleanDebug, "debug", false, "log debug info to stderr (also triggered by GIT_TRACE=1)")
}

func runClean(cmd *cobra.Command, args []string) error {
	env := loadEnv()
	debug := flagCleanDebug || traceEnabled(env)
	log := newLogger("git-sqlite-clean", debug)
	ctx := cmd.Context()
	path := args[0]

	if debug {
		logCleanBanner(log, path)
	}

	if gitio.ShouldSkipSubmodule(ctx, log) {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return filter.Passthrough(f, os.Stdout)
	}

	opts := filter.CleanOptions{
		FloatPrecision: flagFloatPrecision,
		SchemaOnly:     flagSchemaOnly,
		DataOnly:       flagDataOnly,
	}
	if !env.GetBool(envKeyNoWarn) {
		opts.Warner = filter.NewWarner(log)
	}

	return filter.Clean(ctx, path, opts, os.Stdout, sqlite.NewRegistry(), log)
}

// logCleanBanner records tool and engine versions, which makes locked-file
// and version-skew reports much easier to read.
func logCleanBanner(log *logrus.Entry, path string) {
	log.Debugf("starting semantic clean for %s", path)
	log.Debugf("engine version: %s", sqlite.EngineVersion())
}
