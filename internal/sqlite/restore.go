package sqlite

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxRestoreAttempts bounds the collation-discovery loop. Every retry must
// discover at least one new collation name, so N unknown collations restore
// within N+1 attempts.
const maxRestoreAttempts = 100

// triggerOnRE finds the table a CREATE TRIGGER statement is attached to.
var triggerOnRE = regexp.MustCompile(`ON\s+["']?([A-Za-z0-9_]+)["']?`)

// ftsShadowTriggerSuffixes mark triggers owned by a full-text-search
// extension; the extension recreates them, so replaying the dumped copy
// would collide.
var ftsShadowTriggerSuffixes = []string{"_CONTENT", "_DOC", "_CONFIG", "_IDX", "_DATA"}

// StatementScanner re-segments a text stream into complete statements.
// Lines accumulate until the buffered text is judged complete, so trigger
// bodies and multi-line inserts come out as single units. A non-empty
// unterminated tail is emitted as a final statement, which lets a truncated
// dump replay its complete prefix. Lines are unbounded: one hex-encoded blob
// literal can exceed any fixed token buffer.
type StatementScanner struct {
	r    *bufio.Reader
	buf  strings.Builder
	stmt string
	err  error
	done bool
}

// NewStatementScanner returns a scanner reading from r.
func NewStatementScanner(r io.Reader) *StatementScanner {
	return &StatementScanner{r: bufio.NewReader(r)}
}

// Scan advances to the next complete statement, returning false at end of
// input. The statement is available via Text.
func (s *StatementScanner) Scan() bool {
	if s.done {
		return false
	}
	for {
		line, err := s.r.ReadString('\n')
		s.buf.WriteString(line)
		if err == nil {
			if CompleteStatement(s.buf.String()) {
				s.stmt = s.buf.String()
				s.buf.Reset()
				return true
			}
			continue
		}
		s.done = true
		if err != io.EOF {
			s.err = err
		}
		if tail := s.buf.String(); strings.TrimSpace(tail) != "" {
			s.stmt = tail
			s.buf.Reset()
			return true
		}
		return false
	}
}

// Text returns the statement found by the last call to Scan.
func (s *StatementScanner) Text() string {
	return s.stmt
}

// Err returns the first error encountered while reading the input.
func (s *StatementScanner) Err() error {
	return s.err
}

// Restorer replays a canonical dump into a fresh database file, discovering
// collations through bounded retries.
type Restorer struct {
	reg *Registry
	log *logrus.Entry
}

// NewRestorer returns a restorer using reg for collation discovery.
func NewRestorer(reg *Registry, log *logrus.Entry) *Restorer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Restorer{reg: reg, log: log}
}

// Restore filters and replays each source in order and returns the path to
// the rebuilt database file. Ownership of that file passes to the caller,
// who must delete it after use. Each source is wrapped in its own
// foreign_keys-off transaction.
func (r *Restorer) Restore(sources ...io.Reader) (string, error) {
	staged, err := r.stage(sources)
	if err != nil {
		return "", err
	}
	defer os.Remove(staged)

	for attempt := 1; attempt <= maxRestoreAttempts; attempt++ {
		r.log.Debugf("restoration attempt %d", attempt)
		dbPath, retry, err := r.replay(staged)
		if err == nil {
			return dbPath, nil
		}
		os.Remove(dbPath)
		if !retry {
			return "", err
		}
	}
	return "", fmt.Errorf("restore did not converge after %d attempts", maxRestoreAttempts)
}

// stage writes the filtered statement stream to a spool file so every
// replay attempt can re-read it from the start.
func (r *Restorer) stage(sources []io.Reader) (string, error) {
	spool, err := os.CreateTemp("", "git-sqlite-stage-*.sql")
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	w := bufio.NewWriter(spool)

	for _, src := range sources {
		w.WriteString("PRAGMA foreign_keys=OFF;\n")
		w.WriteString("BEGIN TRANSACTION;\n")

		scanner := NewStatementScanner(src)
		for scanner.Scan() {
			stmt := scanner.Text()
			if r.suppress(stmt) {
				continue
			}
			w.WriteString(stmt)
		}
		if err := scanner.Err(); err != nil {
			spool.Close()
			os.Remove(spool.Name())
			return "", fmt.Errorf("read dump stream: %w", err)
		}

		w.WriteString("COMMIT;\n")
	}

	if err := w.Flush(); err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return "", fmt.Errorf("write spool file: %w", err)
	}
	if err := spool.Close(); err != nil {
		os.Remove(spool.Name())
		return "", fmt.Errorf("close spool file: %w", err)
	}
	return spool.Name(), nil
}

// suppress decides whether a statement must not be replayed verbatim.
func (r *Restorer) suppress(stmt string) bool {
	upper := strings.TrimSpace(strings.ToUpper(stmt))

	// The debug flag would let the replay rewrite the catalog directly.
	if strings.Contains(upper, "PRAGMA WRITABLE_SCHEMA") {
		return true
	}

	if isFTSShadowTrigger(upper) {
		r.log.Debug("skipping FTS internal trigger")
		return true
	}

	if strings.Contains(upper, "ROLLBACK") && !strings.Contains(upper, "ROLLBACK TO") {
		r.log.Warn("skipping ROLLBACK in dump (corrupted input?)")
		return true
	}

	if strings.Contains(upper, "INSERT INTO") &&
		(strings.Contains(upper, "SQLITE_MASTER") || strings.Contains(upper, "SQLITE_STAT")) {
		return true
	}

	// Bare transaction boundaries from the dump: the restorer supplies its
	// own. Savepoint-qualified forms pass through.
	if strings.HasPrefix(upper, "BEGIN TRANSACTION") ||
		strings.HasPrefix(upper, "COMMIT") ||
		strings.HasPrefix(upper, "ROLLBACK") {
		if len(strings.Fields(strings.Trim(upper, ";"))) < 3 {
			return true
		}
	}

	return false
}

func isFTSShadowTrigger(upper string) bool {
	if !strings.Contains(upper, "CREATE TRIGGER") {
		return false
	}
	m := triggerOnRE.FindStringSubmatch(upper)
	if m == nil {
		return false
	}
	for _, suffix := range ftsShadowTriggerSuffixes {
		if strings.HasSuffix(m[1], suffix) {
			return true
		}
	}
	return false
}

// replay applies the spooled statements to a brand-new empty database.
// retry is true when a new collation was registered and the whole replay
// should start over.
func (r *Restorer) replay(staged string) (dbPath string, retry bool, err error) {
	dbPath = filepath.Join(os.TempDir(), "git-sqlite-restore-"+uuid.NewString()+".sqlite")

	db, err := r.reg.Open(dbPath)
	if err != nil {
		return dbPath, false, err
	}
	defer db.Close()

	f, err := os.Open(staged)
	if err != nil {
		return dbPath, false, fmt.Errorf("reopen spool file: %w", err)
	}
	defer f.Close()

	scanner := NewStatementScanner(f)
	for scanner.Scan() {
		stmt := scanner.Text()
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, execErr := db.Exec(stmt)
		if execErr == nil {
			continue
		}
		if mce := AsMissingCollation(execErr); mce != nil {
			added, addErr := r.reg.Add(mce.Name)
			if addErr != nil {
				return dbPath, false, addErr
			}
			if !added {
				// The collation is bound yet the statement still fails;
				// another attempt would hit the same wall.
				return dbPath, false, execErr
			}
			r.log.Debugf("registering missing collation: %s", mce.Name)
			return dbPath, true, execErr
		}
		if tolerableReplayError(stmt, execErr) {
			r.log.Warnf("ignoring error: %v", execErr)
			continue
		}
		return dbPath, false, fmt.Errorf("restore failed: %w", execErr)
	}
	if err := scanner.Err(); err != nil {
		return dbPath, false, fmt.Errorf("read spool file: %w", err)
	}
	return dbPath, false, nil
}

// tolerableReplayError reports whether a replay error on stmt can be skipped:
// stray or duplicate artifacts are logged and restoration continues, but a
// failing table or view definition always aborts.
func tolerableReplayError(stmt string, err error) bool {
	upper := strings.TrimSpace(strings.ToUpper(stmt))
	if strings.HasPrefix(upper, "CREATE TABLE") || strings.HasPrefix(upper, "CREATE VIEW") {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such index") ||
		strings.Contains(msg, "already exists")
}
