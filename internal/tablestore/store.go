package tablestore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"vgrid/internal/gridcore"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// newULID generates a time-sortable unique identifier for derived tables.
func newULID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Column describes one column of the active table for display purposes.
type Column struct {
	Name string
	Type string
}

// SortColumn is one ORDER BY term of a sort operation.
type SortColumn struct {
	Column    string
	Ascending bool
}

// Store is a SQL-backed table provider. Every table-identity operation
// (sort, filter, reset) materializes a new table or view named by a fresh
// ULID, so a replaced table stays readable for in-flight window fetches
// until the windowing core retires it through DropTable.
//
// The table created by import is the reset target; DropTable never removes
// it.
type Store struct {
	db      *sql.DB
	dialect Dialect

	mu       sync.Mutex
	original string
	views    map[string]bool   // derived id -> created as a view
	baseOf   map[string]string // view id -> the table or view it reads from
	deferred map[string]bool   // drop requested while a view still reads it
}

// Open connects to the backing engine. SQLite and DuckDB accept a file path
// or ":memory:" as DSN; MySQL and PostgreSQL take their usual connection
// strings.
func Open(dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", dialect, err)
	}
	return &Store{
		db:       db,
		dialect:  dialect,
		views:    make(map[string]bool),
		baseOf:   make(map[string]string),
		deferred: make(map[string]bool),
	}, nil
}

// Wrap adopts an already-open connection. Used by tests and by callers with
// their own connection management.
func Wrap(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:       db,
		dialect:  dialect,
		views:    make(map[string]bool),
		baseOf:   make(map[string]string),
		deferred: make(map[string]bool),
	}
}

func (s *Store) Close() error { return s.db.Close() }

// Dialect returns the engine flavor this store talks to.
func (s *Store) Dialect() Dialect { return s.dialect }

// FetchWindow reads a contiguous window of rows. The total row count is
// re-read on every call so progressive imports converge on the true count
// through normal scrolling.
func (s *Store) FetchWindow(ctx context.Context, tableID string, start, count int) (gridcore.FetchResult, error) {
	total, err := s.countRows(ctx, tableID)
	if err != nil {
		return gridcore.FetchResult{}, err
	}
	if count <= 0 {
		return gridcore.FetchResult{TotalRows: total}, nil
	}

	q := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d",
		s.dialect.QuoteIdent(tableID), count, start)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return gridcore.FetchResult{}, fmt.Errorf("fetch window [%d, %d) of %s: %w", start, start+count, tableID, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return gridcore.FetchResult{}, err
	}
	colCount := len(cols)

	batch := make(gridcore.RowBatch, 0, count)
	scanTargets := make([]any, colCount)
	for rows.Next() {
		row := make([]any, colCount)
		for j := 0; j < colCount; j++ {
			scanTargets[j] = &row[j]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return gridcore.FetchResult{}, err
		}
		batch = append(batch, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return gridcore.FetchResult{}, err
	}
	debugLog("store: fetched %d rows of %s at offset %d (total %d)\n", len(batch), tableID, start, total)
	return gridcore.FetchResult{Rows: batch, TotalRows: total}, nil
}

// Columns returns name and declared type of each column of a table.
func (s *Store) Columns(ctx context.Context, tableID string) ([]Column, error) {
	q := fmt.Sprintf("SELECT * FROM %s LIMIT 0", s.dialect.QuoteIdent(tableID))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", tableID, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(types))
	for i, ct := range types {
		cols[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}
	return cols, rows.Err()
}

// Sort materializes a new table holding the rows of tableID ordered by the
// given columns and returns its id and row count. The source table is left
// untouched; the caller replaces the session and eventually drops it.
func (s *Store) Sort(ctx context.Context, tableID string, cols []SortColumn) (string, int, error) {
	if len(cols) == 0 {
		return "", 0, fmt.Errorf("no sort columns specified")
	}

	orderParts := make([]string, len(cols))
	for i, sc := range cols {
		dir := "ASC"
		if !sc.Ascending {
			dir = "DESC"
		}
		orderParts[i] = s.dialect.QuoteIdent(sc.Column) + " " + dir
	}

	newID := "sort_" + newULID()
	q := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s ORDER BY %s",
		s.dialect.QuoteIdent(newID), s.dialect.QuoteIdent(tableID), strings.Join(orderParts, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return "", 0, fmt.Errorf("create sorted table: %w", err)
	}

	total, err := s.countRows(ctx, newID)
	if err != nil {
		return "", 0, err
	}
	return newID, total, nil
}

// Filter creates a view of tableID restricted by a WHERE clause. The clause
// is parsed and validated before any SQL reaches the engine.
func (s *Store) Filter(ctx context.Context, tableID, where string) (string, int, error) {
	if err := ValidateWhere(where); err != nil {
		return "", 0, err
	}

	newID := "filter_" + newULID()
	q := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s WHERE %s",
		s.dialect.QuoteIdent(newID), s.dialect.QuoteIdent(tableID), where)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return "", 0, fmt.Errorf("create filter view: %w", err)
	}
	s.mu.Lock()
	s.views[newID] = true
	s.baseOf[newID] = tableID
	s.mu.Unlock()

	total, err := s.countRows(ctx, newID)
	if err != nil {
		return "", 0, err
	}
	return newID, total, nil
}

// Reset returns the original imported table and its current row count.
func (s *Store) Reset(ctx context.Context) (string, int, error) {
	s.mu.Lock()
	orig := s.original
	s.mu.Unlock()
	if orig == "" {
		return "", 0, fmt.Errorf("no table imported")
	}
	total, err := s.countRows(ctx, orig)
	if err != nil {
		return "", 0, err
	}
	return orig, total, nil
}

// AttachTable adopts an existing table as the viewing target and the reset
// anchor, instead of importing one. Returns the current row count.
func (s *Store) AttachTable(ctx context.Context, tableID string) (int, error) {
	ok, err := s.tableExists(tableID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("table %s does not exist", tableID)
	}
	total, err := s.countRows(ctx, tableID)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.original = tableID
	s.mu.Unlock()
	return total, nil
}

// Original returns the id of the imported table, or "" before any import.
func (s *Store) Original() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original
}

// DropTable removes the backing table or view of a permanently
// unreferenced session. The original imported table is the reset target and
// is never dropped. A table that a live filter view still reads from is not
// dropped yet either: the drop is deferred until its last dependent view
// goes, so a view created over a sorted table keeps working after the
// sorted session itself is retired.
func (s *Store) DropTable(ctx context.Context, tableID string) error {
	s.mu.Lock()
	targets := s.releaseLocked(tableID)
	s.mu.Unlock()

	for _, tgt := range targets {
		q := fmt.Sprintf("DROP %s IF EXISTS %s", tgt.kind, s.dialect.QuoteIdent(tgt.id))
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("drop %s: %w", tgt.id, err)
		}
		debugLog("store: dropped %s %s\n", strings.ToLower(tgt.kind), tgt.id)
	}
	return nil
}

type dropTarget struct {
	id   string
	kind string
}

// releaseLocked resolves a drop request to the objects that can actually go
// now: the requested one unless a view still reads from it, then any
// deferred bases freed by its removal, walking down a filter chain. Views
// come before the tables they read from.
func (s *Store) releaseLocked(tableID string) []dropTarget {
	if tableID == s.original {
		return nil
	}
	if s.viewReadsLocked(tableID) {
		s.deferred[tableID] = true
		return nil
	}

	var targets []dropTarget
	id := tableID
	for {
		kind := "TABLE"
		if s.views[id] {
			kind = "VIEW"
		}
		targets = append(targets, dropTarget{id: id, kind: kind})

		base := s.baseOf[id]
		delete(s.views, id)
		delete(s.baseOf, id)
		delete(s.deferred, id)

		if base == "" || base == s.original || !s.deferred[base] || s.viewReadsLocked(base) {
			return targets
		}
		id = base
	}
}

// viewReadsLocked reports whether any live filter view selects from the
// given table or view.
func (s *Store) viewReadsLocked(tableID string) bool {
	for _, base := range s.baseOf {
		if base == tableID {
			return true
		}
	}
	return false
}

func (s *Store) countRows(ctx context.Context, tableID string) (int, error) {
	var total int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.dialect.QuoteIdent(tableID))
	if err := s.db.QueryRowContext(ctx, q).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", tableID, err)
	}
	return total, nil
}

// normalizeRow converts driver-specific byte slices to strings so cells
// display and compare consistently across engines.
func normalizeRow(row []any) []any {
	for i, v := range row {
		if b, ok := v.([]byte); ok {
			row[i] = string(b)
		}
	}
	return row
}
