// Package sqlite implements the dump/restore engine behind the git filters:
// canonical text serialization of a database file, statement-level
// reconstruction of that text into a fresh database, and the collation
// discovery both sides rely on.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sqlite3 "modernc.org/sqlite"
)

// missingCollationRE extracts the collation name from the engine's error
// message. The message text is stable across engine versions but the match is
// confined to this file; callers only ever see MissingCollationError.
var missingCollationRE = regexp.MustCompile(`no such collation sequence: (\S+)`)

// MissingCollationError reports that the engine needed a collation that has
// not been registered on the current connection.
type MissingCollationError struct {
	Name string
}

func (e *MissingCollationError) Error() string {
	return fmt.Sprintf("missing collation %q", e.Name)
}

// AsMissingCollation classifies an engine error. If err indicates an
// undefined collation it returns the typed error; otherwise it returns nil.
func AsMissingCollation(err error) *MissingCollationError {
	if err == nil {
		return nil
	}
	var mce *MissingCollationError
	if errors.As(err, &mce) {
		return mce
	}
	m := missingCollationRE.FindStringSubmatch(err.Error())
	if m == nil {
		return nil
	}
	return &MissingCollationError{Name: strings.Trim(m[1], `'"`)}
}

// fallbackCollate is the comparator bound to every discovered collation.
// Lexicographic byte order: the real collation is unknown, but dump ordering
// only needs any consistent total order.
func fallbackCollate(left, right string) int {
	return strings.Compare(left, right)
}

// Registry accumulates collation names the engine reported as undefined.
// It is append-only for the lifetime of one filter invocation: a name, once
// added, is bound on every connection opened afterwards.
type Registry struct {
	names map[string]struct{}
}

// NewRegistry returns an empty collation registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Add registers name with the driver so that subsequently opened connections
// can resolve it. Returns true if the name was new.
func (r *Registry) Add(name string) (bool, error) {
	if _, ok := r.names[name]; ok {
		return false, nil
	}
	if err := sqlite3.RegisterCollationUtf8(name, fallbackCollate); err != nil {
		// Already registered by an earlier invocation path; the binding is
		// identical, so record it and carry on.
		if !strings.Contains(err.Error(), "already registered") {
			return false, fmt.Errorf("register collation %q: %w", name, err)
		}
	}
	r.names[name] = struct{}{}
	return true, nil
}

// Names returns the accumulated collation names in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	return out
}

// Len returns the number of discovered collations.
func (r *Registry) Len() int {
	return len(r.names)
}

// EngineVersion reports the linked SQLite library version, for debug
// banners.
func EngineVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return "unknown"
	}
	defer db.Close()
	var v string
	if err := db.QueryRow("SELECT sqlite_version()").Scan(&v); err != nil {
		return "unknown"
	}
	return v
}

// Open opens path with the registry's collations bound and a short busy
// timeout. The caller owns the returned handle and must close it.
func (r *Registry) Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(100)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Replay drives BEGIN/COMMIT with bare Exec calls; a single connection
	// keeps the whole transaction on the handle that opened it.
	db.SetMaxOpenConns(1)
	return db, nil
}
