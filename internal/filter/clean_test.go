package filter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukaforge/git-sqlite-filter/internal/sqlite"
)

func newTestLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestCleanPassesThroughNonDatabase(t *testing.T) {
	content := []byte("PRAGMA user_version = 0;\n-- already text content\n")
	path := writeFile(t, "plain.sql", content)

	log, _ := newTestLogger()
	var out bytes.Buffer
	err := Clean(context.Background(), path, CleanOptions{FloatPrecision: sqlite.NoPrecision}, &out, sqlite.NewRegistry(), log)
	require.NoError(t, err)
	assert.Equal(t, content, out.Bytes(), "non-database content must pass through byte-identical")
}

func TestCleanPassesThroughShortFile(t *testing.T) {
	content := []byte("tiny")
	path := writeFile(t, "tiny.bin", content)

	log, _ := newTestLogger()
	var out bytes.Buffer
	err := Clean(context.Background(), path, CleanOptions{FloatPrecision: sqlite.NoPrecision}, &out, sqlite.NewRegistry(), log)
	require.NoError(t, err)
	assert.Equal(t, content, out.Bytes())
}

func TestCleanDumpsRealDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "real.db")
	reg := sqlite.NewRegistry()
	db, err := reg.Open(path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT)")
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t VALUES (1, 'a'), (2, 'b')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	log, _ := newTestLogger()
	var out bytes.Buffer
	err = Clean(context.Background(), path, CleanOptions{FloatPrecision: sqlite.NoPrecision}, &out, sqlite.NewRegistry(), log)
	require.NoError(t, err)

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "PRAGMA user_version = 0;\n"), "dump header first:\n%s", text)
	assert.Contains(t, text, `INSERT INTO "t" ("id", "v") VALUES (1, 'a');`)
	assert.True(t, strings.HasSuffix(text, "COMMIT;\n"))
}

func TestCleanLeavesNoSnapshotBehind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	reg := sqlite.NewRegistry()
	db, err := reg.Open(path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t(id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	before := countSnapshotFiles(t)
	log, _ := newTestLogger()
	var out bytes.Buffer
	require.NoError(t, Clean(context.Background(), path, CleanOptions{FloatPrecision: sqlite.NoPrecision}, &out, sqlite.NewRegistry(), log))
	assert.Equal(t, before, countSnapshotFiles(t), "snapshot must be deleted on every exit path")
}

func countSnapshotFiles(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "git-sqlite-snap-*"))
	require.NoError(t, err)
	return len(matches)
}

func TestSmudgeRoundTrip(t *testing.T) {
	input := "PRAGMA user_version = 0;\n" +
		"PRAGMA foreign_keys=OFF;\n" +
		"BEGIN TRANSACTION;\n" +
		"CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT);\n" +
		`INSERT INTO "t" ("id", "v") VALUES (1, 'a');` + "\n" +
		"COMMIT;\n"

	log, _ := newTestLogger()
	var out bytes.Buffer
	err := Smudge("", strings.NewReader(input), &out, sqlite.NewRegistry(), log)
	require.NoError(t, err)

	// The output is a binary database file carrying the magic header.
	require.Greater(t, out.Len(), 16)
	assert.Equal(t, magicHeader, out.String()[:16])

	// Cleaning the rebuilt file reproduces the input text.
	rebuilt := writeFile(t, "rebuilt.db", out.Bytes())
	var cleaned bytes.Buffer
	err = Clean(context.Background(), rebuilt, CleanOptions{FloatPrecision: sqlite.NoPrecision}, &cleaned, sqlite.NewRegistry(), log)
	require.NoError(t, err)
	assert.Equal(t, input, cleaned.String())
}

func TestSmudgeFailsOnBrokenInput(t *testing.T) {
	log, _ := newTestLogger()
	var out bytes.Buffer
	err := Smudge("", strings.NewReader("CREATE TABLE broken(;\n"), &out, sqlite.NewRegistry(), log)
	require.Error(t, err)
	assert.Zero(t, out.Len(), "no partial binary output on failure")
}

func TestPassthrough(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Passthrough(strings.NewReader("raw bytes"), &out))
	assert.Equal(t, "raw bytes", out.String())
}
