// Environment resolution for the git-sqlite CLI.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Environment keys read by the filters. GIT_TRACE follows git's own
// convention; the bypass variable suppresses the data-loss warning in
// scripted setups.
const (
	envKeyTrace  = "trace"
	envKeyNoWarn = "nowarn"
)

// loadEnv binds the recognized environment variables through viper so the
// rest of the CLI never touches the process environment directly.
func loadEnv() *viper.Viper {
	v := viper.New()
	v.BindEnv(envKeyTrace, "GIT_TRACE")
	v.BindEnv(envKeyNoWarn, "GIT_SQLITE_NO_WARN")
	return v
}

// traceEnabled reports whether GIT_TRACE requests debug output. Git accepts
// several truthy spellings; only the common ones are honored here.
func traceEnabled(v *viper.Viper) bool {
	switch v.GetString(envKeyTrace) {
	case "1", "2", "true":
		return true
	}
	return false
}

// newLogger builds the stderr diagnostic logger for one tool invocation.
// stdout is reserved for filter output, which git captures as file content.
func newLogger(tool string, debug bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger.WithField("tool", tool)
}
