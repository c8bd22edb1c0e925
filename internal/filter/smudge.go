package filter

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dukaforge/git-sqlite-filter/internal/sqlite"
)

// Smudge rebuilds a binary database from the canonical text on in and
// streams it to out. schemaPath, when non-empty and present, is a base
// schema applied ahead of the data stream. Returns an error when
// restoration fails after exhausting its retries.
func Smudge(schemaPath string, in io.Reader, out io.Writer, reg *sqlite.Registry, log *logrus.Entry) error {
	var sources []io.Reader

	if schemaPath != "" {
		if f, err := os.Open(schemaPath); err == nil {
			defer f.Close()
			log.Debugf("loading schema from %s", schemaPath)
			sources = append(sources, f)
		}
	}
	sources = append(sources, in)

	restorer := sqlite.NewRestorer(reg, log)
	dbPath, err := restorer.Restore(sources...)
	if err != nil {
		return err
	}
	defer os.Remove(dbPath)

	f, err := os.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open rebuilt database: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("stream rebuilt database: %w", err)
	}
	return nil
}
