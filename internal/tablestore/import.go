package tablestore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const importBatchSize = 500

// ImportCSV loads a CSV file into a new table, records it as the reset
// target, and returns its id and row count. progress, if non-nil, receives
// the running row count while the generic import path is still inserting,
// so the UI can correct its total before the import finishes.
//
// DuckDB ingests the file natively with full schema inference; the other
// engines get a TEXT-typed table filled row by row.
func (s *Store) ImportCSV(ctx context.Context, path string, progress func(rows int)) (string, int, error) {
	tableID, err := s.importTableID(path)
	if err != nil {
		return "", 0, err
	}

	var total int
	if s.dialect.NativeCSV() {
		total, err = s.importCSVNative(ctx, path, tableID)
	} else {
		total, err = s.importCSVGeneric(ctx, path, tableID, progress)
	}
	if err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	s.original = tableID
	s.mu.Unlock()
	debugLog("store: imported %s as %s (%d rows)\n", path, tableID, total)
	return tableID, total, nil
}

// importCSVNative lets DuckDB auto-detect delimiter, header, and column
// types.
func (s *Store) importCSVNative(ctx context.Context, path, tableID string) (int, error) {
	q := fmt.Sprintf("CREATE TABLE %s AS FROM '%s'",
		s.dialect.QuoteIdent(tableID), strings.ReplaceAll(path, "'", "''"))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return 0, fmt.Errorf("import %s: %w", path, err)
	}
	return s.countRows(ctx, tableID)
}

func (s *Store) importCSVGeneric(ctx context.Context, path, tableID string, progress func(rows int)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read CSV header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		name := sanitizeIdent(h)
		if name == "" {
			name = fmt.Sprintf("column%d", i+1)
		}
		cols[i] = name
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = s.dialect.QuoteIdent(c) + " TEXT"
	}
	createQ := fmt.Sprintf("CREATE TABLE %s (%s)", s.dialect.QuoteIdent(tableID), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, createQ); err != nil {
		return 0, fmt.Errorf("create table %s: %w", tableID, err)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = s.dialect.Placeholder(i + 1)
	}
	insertQ := fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		s.dialect.QuoteIdent(tableID), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insertQ)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	total := 0
	args := make([]any, len(cols))
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, fmt.Errorf("read CSV row %d: %w", total+1, err)
		}
		for i := range args {
			if i < len(record) {
				args[i] = record[i]
			} else {
				args[i] = nil // short row: pad with NULLs
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, fmt.Errorf("insert CSV row %d: %w", total+1, err)
		}
		total++
		if progress != nil && total%importBatchSize == 0 {
			progress(total)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// importTableID derives a table name from the file name, falling back to a
// ULID-suffixed name when the sanitized name is empty or already taken.
func (s *Store) importTableID(path string) (string, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := sanitizeIdent(base)
	if name == "" {
		return "import_" + newULID(), nil
	}
	exists, err := s.tableExists(name)
	if err != nil {
		return "", err
	}
	if exists {
		return name + "_" + newULID(), nil
	}
	return name, nil
}

func (s *Store) tableExists(tableID string) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM %s LIMIT 0", s.dialect.QuoteIdent(tableID))
	rows, err := s.db.Query(q)
	if err != nil {
		return false, nil // engines report missing tables as query errors
	}
	rows.Close()
	return true, nil
}

// sanitizeIdent keeps alphanumerics and underscores, replacing everything
// else, and trims leading/trailing underscores.
func sanitizeIdent(name string) string {
	var b strings.Builder
	for _, c := range name {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			b.WriteRune(c)
		} else {
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && unicode.IsDigit(rune(out[0])) {
		out = "t_" + out
	}
	return out
}
