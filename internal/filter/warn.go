package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// warnWindow is how long one data-loss warning suppresses the next one.
// git runs the filter once per changed file, so a multi-file commit would
// otherwise repeat the warning dozens of times.
const warnWindow = 5 * time.Second

// Warner emits the data-loss warning at most once per window, debounced
// through a shared sentinel file so parallel filter processes coordinate.
// The clock and sentinel path are injectable so tests need no real
// timestamps.
type Warner struct {
	Sentinel string
	Window   time.Duration
	Now      func() time.Time
	Log      *logrus.Entry
}

// NewWarner returns a Warner with the shared TMPDIR sentinel and real clock.
func NewWarner(log *logrus.Entry) *Warner {
	return &Warner{
		Sentinel: filepath.Join(os.TempDir(), "git_sqlite_warn_lock"),
		Window:   warnWindow,
		Now:      time.Now,
		Log:      log,
	}
}

// Maybe logs the warning unless it was logged within the window. Sentinel
// I/O errors are ignored: a missed debounce only repeats a warning.
func (w *Warner) Maybe() {
	if info, err := os.Stat(w.Sentinel); err == nil {
		if w.Now().Sub(info.ModTime()) < w.Window {
			return
		}
	}

	w.Log.Warn("YOU CAN EASILY LOSE DATA IF YOU ISSUE WRITE COMMANDS!!! " +
		"(using offline copy is recommended)")

	if err := os.WriteFile(w.Sentinel, []byte(fmt.Sprint(w.Now().Unix())), 0o644); err == nil {
		now := w.Now()
		_ = os.Chtimes(w.Sentinel, now, now)
	}
}
