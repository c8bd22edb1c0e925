// Package gitio wraps the git invocations the filters depend on: index
// lookups for the history fallback, superproject detection, and config
// reads. Every call carries a timeout so a hung git process can never stall
// a filter run.
package gitio

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	showTimeout   = 2 * time.Second
	configTimeout = 2 * time.Second

	// IgnoreSubmodulesKey disables filtering inside submodules when set to
	// true in either the submodule or the superproject config.
	IgnoreSubmodulesKey = "sqlite-filter.ignore-submodules"
)

// ShowIndex returns the staged (index) content of path, as `git show :path`.
// A non-zero exit or timeout is reported as an error.
func ShowIndex(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, showTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", "show", ":"+path)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SuperprojectRoot returns the superproject working tree when the current
// directory is inside a submodule, or "" otherwise. A submodule is
// recognized by .git being a file rather than a directory.
func SuperprojectRoot(ctx context.Context) string {
	info, err := os.Stat(".git")
	if err != nil || info.IsDir() {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, configTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--show-superproject-working-tree").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// ConfigBool reads a git config key as a bool. dir, when non-empty, is
// passed as `git -C dir`. Unset keys and errors read as false.
func ConfigBool(ctx context.Context, key, dir string) bool {
	ctx, cancel := context.WithTimeout(ctx, configTimeout)
	defer cancel()

	args := []string{}
	if dir != "" {
		args = append(args, "-C", dir)
	}
	args = append(args, "config", "--type=bool", "--get", key)

	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// ShouldSkipSubmodule reports whether this invocation runs inside a
// submodule that is configured to bypass the filter. When inside a submodule
// without the setting, it logs a one-time tip about enabling it.
func ShouldSkipSubmodule(ctx context.Context, log *logrus.Entry) bool {
	superRoot := SuperprojectRoot(ctx)
	if superRoot == "" {
		return false
	}

	ignored := ConfigBool(ctx, IgnoreSubmodulesKey, "")
	if !ignored {
		ignored = ConfigBool(ctx, IgnoreSubmodulesKey, superRoot)
	}
	if ignored {
		log.Info("skipping submodule scan (configured to ignore)")
		return true
	}

	log.Info("tip: using sqlite filter in submodules can be slow.")
	log.Infof("     run 'git config %s true' in the superproject to skip.", IgnoreSubmodulesKey)
	return false
}
