// Package filter implements the clean and smudge pipelines that sit between
// git and the dump/restore engine. The clean side is a fallback chain with
// bounded latency; the smudge side wraps the restorer and streams the
// rebuilt file to stdout.
package filter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dukaforge/git-sqlite-filter/internal/gitio"
	"github.com/dukaforge/git-sqlite-filter/internal/sqlite"
)

// magicHeader is the fixed 16-byte prefix of every SQLite database file.
// Anything else is already-text or foreign content and passes through.
const magicHeader = "SQLite format 3\x00"

// CleanOptions configures one clean invocation.
type CleanOptions struct {
	FloatPrecision int
	SchemaOnly     bool
	DataOnly       bool

	// Warner, when set, emits the data-loss warning once the source is
	// known to be a managed database. Nil disables the warning.
	Warner *Warner
}

// Clean converts the database at path into its canonical text form on out.
// It never blocks indefinitely: snapshot, dump, and history lookup each
// carry a timeout, and the chain terminates in a raw byte passthrough that
// always produces output. An error is returned only when even that final
// passthrough fails.
func Clean(ctx context.Context, path string, opts CleanOptions, out io.Writer, reg *sqlite.Registry, log *logrus.Entry) error {
	passedThrough, err := fastCheck(path, out, log)
	if err == nil && passedThrough {
		return nil
	}
	if err != nil {
		// Unreadable source; let the chain run, the raw copy at the end
		// reports the definitive failure.
		log.Debugf("header check failed: %v", err)
	}

	if opts.Warner != nil {
		opts.Warner.Maybe()
	}

	snap, err := sqlite.Snapshot(ctx, reg, path)
	if err != nil {
		if !strings.Contains(err.Error(), "database is locked") {
			log.Infof("backup failed: %v", err)
		}
		return fallback(ctx, path, out, log)
	}
	defer os.Remove(snap)

	dumper := sqlite.NewDumper(snap, reg, sqlite.DumpOptions{
		SchemaOnly:     opts.SchemaOnly,
		DataOnly:       opts.DataOnly,
		FloatPrecision: opts.FloatPrecision,
	}, log)
	if err := dumper.Dump(out); err != nil {
		log.Infof("dump failed: %v", err)
		return fallback(ctx, path, out, log)
	}
	return nil
}

// fastCheck streams the file through unchanged when it does not carry the
// database magic header. Returns whether passthrough happened.
func fastCheck(path string, out io.Writer, log *logrus.Entry) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, len(magicHeader))
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	if string(header[:n]) == magicHeader {
		return false, nil
	}

	log.Debugf("magic header mismatch; passing through as-is")
	if _, err := out.Write(header[:n]); err != nil {
		return false, err
	}
	if _, err := io.Copy(out, f); err != nil {
		return false, err
	}
	return true, nil
}

// fallback recovers output for a locked or otherwise undumpable source:
// last-committed copy from the index first, raw bytes as the terminal
// resort. Some output is always preferable to none, since the filter's
// stdout becomes the commit content.
func fallback(ctx context.Context, path string, out io.Writer, log *logrus.Entry) error {
	log.Warnf("using git history for %s (database locked/modified)", path)
	if content, err := gitio.ShowIndex(ctx, path); err == nil {
		_, werr := out.Write(content)
		return werr
	} else {
		log.Debugf("git show failed: %v", err)
	}

	log.Errorf("%s is inaccessible via history; using binary raw read", path)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("raw passthrough of %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("raw passthrough of %s: %w", path, err)
	}
	return nil
}

// Passthrough pipes in to out unchanged, for skip-submodule invocations.
func Passthrough(in io.Reader, out io.Writer) error {
	_, err := io.Copy(out, in)
	return err
}
