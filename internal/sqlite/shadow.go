package sqlite

import "strings"

// Shadow-table suffix vocabularies per FTS generation. Any other virtual
// table module contributes nothing: filtering an unknown extension's tables
// risks dropping real user data.
var (
	fts5Suffixes  = []string{"_data", "_idx", "_content", "_docsize", "_config"}
	fts34Suffixes = []string{"_content", "_segments", "_segdir", "_docsize", "_stat"}
)

// ShadowSet holds the names of tables owned by a full-text-search virtual
// table. Shadow tables are never dumped; the extension regenerates them.
type ShadowSet map[string]struct{}

// Contains reports whether name is a known shadow table.
func (s ShadowSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// ShadowTables scans schema definitions for FTS virtual tables and derives
// the auxiliary table names each one owns.
func ShadowTables(objects []SchemaObject) ShadowSet {
	set := make(ShadowSet)
	for _, obj := range objects {
		upper := strings.ToUpper(obj.SQL)
		if !strings.Contains(upper, "VIRTUAL TABLE") {
			continue
		}
		var suffixes []string
		switch {
		case strings.Contains(upper, "USING FTS5"):
			suffixes = fts5Suffixes
		case strings.Contains(upper, "USING FTS4"), strings.Contains(upper, "USING FTS3"):
			suffixes = fts34Suffixes
		default:
			continue
		}
		for _, suffix := range suffixes {
			set[obj.Name+suffix] = struct{}{}
		}
	}
	return set
}
