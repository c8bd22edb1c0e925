package sqlite

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createDB builds a fresh database file from the given statements.
func createDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewRegistry().Open(path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "exec %q", stmt)
	}
	return path
}

// dumpToString runs a full dump with default options.
func dumpToString(t *testing.T, path string, opts DumpOptions) string {
	t.Helper()
	var buf bytes.Buffer
	d := NewDumper(path, NewRegistry(), opts, nil)
	require.NoError(t, d.Dump(&buf))
	return buf.String()
}

func TestDumpTwoRowExample(t *testing.T) {
	path := createDB(t,
		"CREATE TABLE t(id INTEGER PRIMARY KEY, val TEXT)",
		// Physical insertion order is deliberately reversed.
		`INSERT INTO t VALUES (2, 'b')`,
		`INSERT INTO t VALUES (1, 'a')`,
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	want := "PRAGMA user_version = 0;\n" +
		"PRAGMA foreign_keys=OFF;\n" +
		"BEGIN TRANSACTION;\n" +
		"CREATE TABLE t(id INTEGER PRIMARY KEY, val TEXT);\n" +
		`INSERT INTO "t" ("id", "val") VALUES (1, 'a');` + "\n" +
		`INSERT INTO "t" ("id", "val") VALUES (2, 'b');` + "\n" +
		"COMMIT;\n"
	assert.Equal(t, want, out)
}

func TestDumpDeterministic(t *testing.T) {
	path := createDB(t,
		"CREATE TABLE a(x INTEGER PRIMARY KEY, y REAL)",
		"INSERT INTO a VALUES (3, 1.25), (1, -2.5), (2, 0.0)",
		"CREATE INDEX a_y ON a(y)",
	)

	first := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	second := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	assert.Equal(t, first, second)
}

func TestDumpNoPrimaryKeySortsAllColumns(t *testing.T) {
	path := createDB(t,
		"CREATE TABLE nopk(a INTEGER, b TEXT)",
		`INSERT INTO nopk VALUES (2, 'x'), (1, 'z'), (1, 'a')`,
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	i1 := strings.Index(out, "VALUES (1, 'a')")
	i2 := strings.Index(out, "VALUES (1, 'z')")
	i3 := strings.Index(out, "VALUES (2, 'x')")
	require.True(t, i1 >= 0 && i2 >= 0 && i3 >= 0, "all rows present:\n%s", out)
	assert.True(t, i1 < i2 && i2 < i3, "rows sorted by all columns:\n%s", out)
}

func TestDumpTablesOrderedByName(t *testing.T) {
	path := createDB(t,
		"CREATE TABLE zebra(id INTEGER PRIMARY KEY)",
		"CREATE TABLE apple(id INTEGER PRIMARY KEY)",
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	assert.Less(t, strings.Index(out, "CREATE TABLE apple"), strings.Index(out, "CREATE TABLE zebra"))
}

func TestDumpSequenceCounters(t *testing.T) {
	path := createDB(t,
		"CREATE TABLE s(id INTEGER PRIMARY KEY AUTOINCREMENT, v TEXT)",
		`INSERT INTO s(v) VALUES ('one'), ('two'), ('three')`,
		// Delete the high-water row; the counter must survive anyway.
		"DELETE FROM s WHERE id = 3",
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	assert.Contains(t, out, `DELETE FROM "sqlite_sequence";`)
	assert.Contains(t, out, `INSERT INTO "sqlite_sequence" (name, seq) VALUES ('s', 3);`)
	assert.NotContains(t, out, "CREATE TABLE sqlite_sequence")
}

func TestDumpFTS5ShadowExclusion(t *testing.T) {
	path := createDB(t,
		"CREATE VIRTUAL TABLE notes USING fts5(body)",
		`INSERT INTO notes(body) VALUES ('full text content')`,
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	assert.Contains(t, out, "CREATE VIRTUAL TABLE notes USING fts5")
	for _, suffix := range []string{"_data", "_idx", "_content", "_docsize", "_config"} {
		assert.NotContains(t, out, `"notes`+suffix+`"`, "shadow table must not be dumped")
		assert.NotContains(t, out, "CREATE TABLE 'notes"+suffix+"'")
	}
}

func TestDumpUserVersionAndViews(t *testing.T) {
	path := createDB(t,
		"PRAGMA user_version = 7",
		"CREATE TABLE base(id INTEGER PRIMARY KEY, v TEXT)",
		"CREATE VIEW v_base AS SELECT v FROM base",
		"CREATE TRIGGER base_tr AFTER INSERT ON base BEGIN UPDATE base SET v = v WHERE id = NEW.id; END",
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	assert.True(t, strings.HasPrefix(out, "PRAGMA user_version = 7;\n"), "dump starts with user_version:\n%s", out)
	assert.Contains(t, out, "CREATE VIEW v_base AS SELECT v FROM base;")
	assert.Contains(t, out, "CREATE TRIGGER base_tr")
	// Trigger definitions come after data, before COMMIT.
	assert.Less(t, strings.Index(out, "CREATE TABLE base"), strings.Index(out, "CREATE TRIGGER base_tr"))
}

func TestDumpSchemaOnlyAndDataOnly(t *testing.T) {
	path := createDB(t,
		"CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT)",
		`INSERT INTO t VALUES (1, 'a')`,
	)

	schema := dumpToString(t, path, DumpOptions{SchemaOnly: true, FloatPrecision: NoPrecision})
	assert.Contains(t, schema, "CREATE TABLE t")
	assert.NotContains(t, schema, "INSERT INTO \"t\"")

	data := dumpToString(t, path, DumpOptions{DataOnly: true, FloatPrecision: NoPrecision})
	assert.NotContains(t, data, "CREATE TABLE")
	assert.NotContains(t, data, "BEGIN TRANSACTION")
	assert.Contains(t, data, `INSERT INTO "t" ("id", "v") VALUES (1, 'a');`)
}

func TestDumpPreservesDatetimeText(t *testing.T) {
	path := createDB(t,
		"CREATE TABLE e(id INTEGER PRIMARY KEY, ts DATETIME, at TIMESTAMP)",
		`INSERT INTO e VALUES (1, '2024-01-02 10:00:00', '2024-01-02')`,
		`INSERT INTO e VALUES (2, NULL, NULL)`,
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	// The declared column type must not make the driver reformat stored text.
	assert.Contains(t, out, `INSERT INTO "e" ("id", "ts", "at") VALUES (1, '2024-01-02 10:00:00', '2024-01-02');`)
	assert.Contains(t, out, `INSERT INTO "e" ("id", "ts", "at") VALUES (2, NULL, NULL);`)
}

func TestDumpColumnlessTableSkipped(t *testing.T) {
	// A view of zero columns cannot exist, but a table whose every column is
	// generated has nothing insertable.
	path := createDB(t,
		"CREATE TABLE g(a INTEGER PRIMARY KEY, b INTEGER GENERATED ALWAYS AS (a + 1) VIRTUAL)",
		"INSERT INTO g(a) VALUES (1)",
	)

	out := dumpToString(t, path, DumpOptions{FloatPrecision: NoPrecision})
	// Generated column excluded from the insert, base column kept.
	assert.Contains(t, out, `INSERT INTO "g" ("a") VALUES (1);`)
}
