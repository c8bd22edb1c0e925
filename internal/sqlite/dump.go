package sqlite

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// DumpOptions selects what the canonical dump emits.
type DumpOptions struct {
	// SchemaOnly suppresses row data; DataOnly suppresses schema, pragmas
	// and transaction wrappers.
	SchemaOnly bool
	DataOnly   bool
	// FloatPrecision rounds reals to this many fractional digits before
	// trimming; NoPrecision emits shortest round-trippable form.
	FloatPrecision int
}

// Dumper serializes one database file into the canonical text stream.
//
// The entire dump is staged in memory and written to the consumer only after
// every step has succeeded: stdout of a clean filter becomes committed
// content, so a partial stream would silently corrupt history.
type Dumper struct {
	path string
	reg  *Registry
	opts DumpOptions
	log  *logrus.Entry

	db *sql.DB
}

// NewDumper prepares a dumper for the database at path. Collations
// discovered while dumping accumulate in reg.
func NewDumper(path string, reg *Registry, opts DumpOptions, log *logrus.Entry) *Dumper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dumper{path: path, reg: reg, opts: opts, log: log}
}

// Dump runs the full canonical serialization and, on success, writes the
// complete text to w. On any error nothing is written.
func (d *Dumper) Dump(w io.Writer) error {
	db, err := d.reg.Open(d.path)
	if err != nil {
		return err
	}
	d.db = db
	defer func() {
		if d.db != nil {
			d.db.Close()
		}
	}()

	objects, err := d.schemaObjects()
	if err != nil {
		return err
	}
	shadow := ShadowTables(objects)
	if len(shadow) > 0 {
		d.log.Debugf("identified %d shadow tables", len(shadow))
	}

	var buf bytes.Buffer

	if !d.opts.DataOnly {
		if err := d.writeHeader(&buf); err != nil {
			return err
		}
		d.writeSchema(&buf, objects, shadow)
	}
	if !d.opts.SchemaOnly {
		if err := d.writeData(&buf, objects, shadow); err != nil {
			return err
		}
	}
	if !d.opts.DataOnly {
		if err := d.writeExtras(&buf); err != nil {
			return err
		}
		buf.WriteString("COMMIT;\n")
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("flush dump: %w", err)
	}
	return nil
}

// schemaObjects reads the table and view catalog entries, name ascending,
// excluding the engine's reserved-internal namespace.
func (d *Dumper) schemaObjects() ([]SchemaObject, error) {
	rows, err := d.db.Query(`
		SELECT name, type, sql FROM sqlite_master
		WHERE name NOT LIKE 'sqlite_%'
		AND type IN ('table', 'view')
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	defer rows.Close()

	var objects []SchemaObject
	for rows.Next() {
		var obj SchemaObject
		var sqlText sql.NullString
		if err := rows.Scan(&obj.Name, &obj.Kind, &sqlText); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		obj.SQL = sqlText.String
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	d.log.Debugf("discovered %d tables/views", len(objects))
	return objects, nil
}

func (d *Dumper) writeHeader(buf *bytes.Buffer) error {
	var userVersion int64
	if err := d.db.QueryRow("PRAGMA user_version").Scan(&userVersion); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	d.log.Debugf("user_version: %d", userVersion)
	fmt.Fprintf(buf, "PRAGMA user_version = %d;\n", userVersion)
	buf.WriteString("PRAGMA foreign_keys=OFF;\n")
	buf.WriteString("BEGIN TRANSACTION;\n")
	return nil
}

func (d *Dumper) writeSchema(buf *bytes.Buffer, objects []SchemaObject, shadow ShadowSet) {
	for _, obj := range objects {
		if shadow.Contains(obj.Name) {
			d.log.Debugf("skipping shadow table schema: %s", obj.Name)
			continue
		}
		if obj.SQL == "" {
			continue
		}
		stmt := strings.TrimSpace(obj.SQL)
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		buf.WriteString(stmt)
		buf.WriteByte('\n')
	}
}

func (d *Dumper) writeData(buf *bytes.Buffer, objects []SchemaObject, shadow ShadowSet) error {
	for _, obj := range objects {
		if obj.Kind != "table" || shadow.Contains(obj.Name) {
			continue
		}
		if strings.Contains(strings.ToUpper(obj.SQL), "CREATE VIRTUAL TABLE") {
			d.log.Debugf("skipping data for virtual table: %s", obj.Name)
			continue
		}
		if err := d.writeTableData(buf, obj.Name); err != nil {
			return err
		}
	}
	return nil
}

// writeTableData emits one INSERT per row in deterministic order. A missing
// collation registers the name, reopens the connection, and restarts the
// table from the top; the table's partial output is staged separately so the
// retry never duplicates rows in the dump.
func (d *Dumper) writeTableData(buf *bytes.Buffer, table string) error {
	desc, err := describeTable(d.db, table)
	if err != nil {
		return err
	}
	if len(desc.InsertableColumns) == 0 {
		d.log.Debugf("skipping data for %s (no insertable columns)", table)
		return nil
	}

	orderCols := desc.PrimaryKeyColumns
	if len(orderCols) == 0 {
		// No primary key: order by every insertable column. Rows that are
		// exact duplicates keep their engine-defined relative order.
		orderCols = desc.InsertableColumns
	}

	for {
		var staged bytes.Buffer
		err := d.selectRows(&staged, desc, orderCols)
		if err == nil {
			buf.Write(staged.Bytes())
			return nil
		}
		mce := AsMissingCollation(err)
		if mce == nil {
			return err
		}
		added, aerr := d.reg.Add(mce.Name)
		if aerr != nil {
			return aerr
		}
		if !added {
			// Registered on a previous pass yet still failing; retrying
			// cannot make progress.
			return err
		}
		d.log.Debugf("registering missing collation: %s", mce.Name)
		d.db.Close()
		if d.db, err = d.reg.Open(d.path); err != nil {
			return err
		}
	}
}

func (d *Dumper) selectRows(buf *bytes.Buffer, desc *TableDescriptor, orderCols []string) error {
	quoted := make([]string, len(desc.InsertableColumns))
	exprs := make([]string, len(desc.InsertableColumns))
	for i, c := range desc.InsertableColumns {
		quoted[i] = quoteIdent(c)
		// Unary + is an engine no-op that drops the declared column type, so
		// the driver hands back the stored value verbatim instead of parsing
		// DATETIME-declared text into time.Time.
		exprs[i] = "+" + quoted[i]
	}
	colList := strings.Join(quoted, ", ")

	ordered := make([]string, len(orderCols))
	for i, c := range orderCols {
		ordered[i] = quoteIdent(c)
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(exprs, ", "), quoteIdent(desc.Name), strings.Join(ordered, ", "))
	rows, err := d.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	values := make([]any, len(desc.InsertableColumns))
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	literals := make([]string, len(values))

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for i, v := range values {
			literals[i] = EncodeValue(v, d.opts.FloatPrecision)
		}
		fmt.Fprintf(buf, "INSERT INTO %s (%s) VALUES (%s);\n",
			quoteIdent(desc.Name), colList, strings.Join(literals, ", "))
	}
	return rows.Err()
}

// writeExtras emits trigger and index definitions in discovery order, then
// mirrors the autoincrement bookkeeping table so restored databases never
// reissue an ID, even when the high-water row itself was deleted.
func (d *Dumper) writeExtras(buf *bytes.Buffer) error {
	rows, err := d.db.Query(`
		SELECT sql FROM sqlite_master
		WHERE type IN ('index', 'trigger')
		AND sql IS NOT NULL
		AND name NOT LIKE 'sqlite_autoindex_%'`)
	if err != nil {
		return fmt.Errorf("read indexes/triggers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return fmt.Errorf("scan index/trigger: %w", err)
		}
		stmt = strings.TrimSpace(stmt)
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		buf.WriteString(stmt)
		buf.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read indexes/triggers: %w", err)
	}

	var one int
	err = d.db.QueryRow("SELECT 1 FROM sqlite_master WHERE name='sqlite_sequence'").Scan(&one)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check sqlite_sequence: %w", err)
	}

	buf.WriteString("DELETE FROM \"sqlite_sequence\";\n")
	seqRows, err := d.db.Query(`SELECT name, seq FROM "sqlite_sequence" ORDER BY name ASC`)
	if err != nil {
		return fmt.Errorf("read sqlite_sequence: %w", err)
	}
	defer seqRows.Close()
	for seqRows.Next() {
		var name string
		var seq any
		if err := seqRows.Scan(&name, &seq); err != nil {
			return fmt.Errorf("scan sqlite_sequence: %w", err)
		}
		fmt.Fprintf(buf, "INSERT INTO \"sqlite_sequence\" (name, seq) VALUES (%s, %s);\n",
			quoteText(name), EncodeValue(seq, NoPrecision))
	}
	return seqRows.Err()
}
