package sqlite

import (
	"database/sql"
	"fmt"
)

// SchemaObject is one row of the engine catalog at dump time.
type SchemaObject struct {
	Name string
	Kind string // table, view, index, trigger
	SQL  string // definition text; empty when the catalog stores NULL
}

// TableDescriptor describes how a table's rows are selected and ordered.
// Derived fresh per dump; never persisted.
type TableDescriptor struct {
	Name              string
	InsertableColumns []string // declaration order, hidden/generated excluded
	PrimaryKeyColumns []string
}

// describeTable discovers insertable and primary-key columns via
// table_xinfo, which exposes the hidden-column flag (0=normal, 1=hidden,
// 2=virtual generated, 3=stored generated). Falls back to table_info when
// xinfo yields nothing, as happens with some virtual tables.
func describeTable(db *sql.DB, table string) (*TableDescriptor, error) {
	desc := &TableDescriptor{Name: table}

	rows, err := db.Query(fmt.Sprintf("PRAGMA table_xinfo(%s)", quoteIdent(table)))
	if err != nil {
		return describeTableBasic(db, table)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk, hidden int
			name, colType            string
			dflt                     any
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk, &hidden); err != nil {
			return nil, fmt.Errorf("scan table_xinfo for %s: %w", table, err)
		}
		if hidden == 0 {
			desc.InsertableColumns = append(desc.InsertableColumns, name)
		}
		if pk > 0 {
			desc.PrimaryKeyColumns = append(desc.PrimaryKeyColumns, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read table_xinfo for %s: %w", table, err)
	}

	if len(desc.InsertableColumns) == 0 {
		return describeTableBasic(db, table)
	}
	return desc, nil
}

// describeTableBasic is the table_info fallback; it cannot distinguish
// hidden columns, so every column counts as insertable.
func describeTableBasic(db *sql.DB, table string) (*TableDescriptor, error) {
	desc := &TableDescriptor{Name: table}

	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table_info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info for %s: %w", table, err)
		}
		desc.InsertableColumns = append(desc.InsertableColumns, name)
		if pk > 0 {
			desc.PrimaryKeyColumns = append(desc.PrimaryKeyColumns, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read table_info for %s: %w", table, err)
	}
	return desc, nil
}
