package tablestore

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor of the backing engine.
type Dialect int

const (
	SQLite Dialect = iota
	DuckDB
	MySQL
	PostgreSQL
)

// ParseDialect maps a user-supplied engine name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql":
		return PostgreSQL, nil
	default:
		return SQLite, fmt.Errorf("unsupported database type: %q", name)
	}
}

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case DuckDB:
		return "duckdb"
	case MySQL:
		return "mysql"
	case PostgreSQL:
		return "postgres"
	}
	return "unknown"
}

// DriverName is the database/sql driver registered for this dialect.
func (d Dialect) DriverName() string {
	switch d {
	case SQLite:
		return "sqlite3"
	case DuckDB:
		return "duckdb"
	case MySQL:
		return "mysql"
	case PostgreSQL:
		return "postgres"
	}
	return ""
}

// QuoteIdent quotes an identifier for safe use in SQL.
// MySQL uses backticks; PostgreSQL, SQLite and DuckDB use double quotes.
func (d Dialect) QuoteIdent(ident string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Placeholder returns the parameter placeholder for position i (1-indexed).
// PostgreSQL numbers its placeholders; the others use bare question marks.
func (d Dialect) Placeholder(position int) string {
	if d == PostgreSQL {
		return fmt.Sprintf("$%d", position)
	}
	return "?"
}

// NativeCSV reports whether the engine can ingest a CSV file by itself with
// full schema inference. Only DuckDB does; the other engines go through the
// generic row-by-row import path.
func (d Dialect) NativeCSV() bool {
	return d == DuckDB
}
