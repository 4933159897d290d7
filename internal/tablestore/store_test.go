package tablestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(SQLite, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeTestCSV(t *testing.T, rows int) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "people-*.csv")
	if err != nil {
		t.Fatalf("Failed to create temp CSV: %v", err)
	}
	fmt.Fprintln(f, "id,name,age")
	names := []string{"Alice", "Bob", "Charlie", "David", "Eve"}
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(f, "%d,%s,%d\n", i, names[(i-1)%len(names)], 20+i)
	}
	f.Close()
	return f.Name()
}

func importTestCSV(t *testing.T, s *Store, rows int) (string, int) {
	t.Helper()
	id, total, err := s.ImportCSV(context.Background(), writeTestCSV(t, rows), nil)
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	return id, total
}

func TestImportCSVAndFetchWindow(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	id, total := importTestCSV(t, s, 10)
	if total != 10 {
		t.Fatalf("imported %d rows, want 10", total)
	}
	if s.Original() != id {
		t.Errorf("Original() = %q, want %q", s.Original(), id)
	}

	res, err := s.FetchWindow(ctx, id, 0, 5)
	if err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
	if len(res.Rows) != 5 || res.TotalRows != 10 {
		t.Errorf("FetchWindow(0, 5) = %d rows, total %d; want 5 rows, total 10", len(res.Rows), res.TotalRows)
	}
	if got := res.Rows[0][1]; got != "Alice" {
		t.Errorf("first row name = %v, want Alice", got)
	}

	// Window past the end is short, not an error.
	res, err = s.FetchWindow(ctx, id, 8, 5)
	if err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("FetchWindow(8, 5) = %d rows, want 2", len(res.Rows))
	}

	// Count-only probe.
	res, err = s.FetchWindow(ctx, id, 0, 0)
	if err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
	if len(res.Rows) != 0 || res.TotalRows != 10 {
		t.Errorf("count-only fetch = %d rows, total %d; want 0 rows, total 10", len(res.Rows), res.TotalRows)
	}
}

func TestImportProgressCallback(t *testing.T) {
	s := setupStore(t)

	var updates []int
	_, total, err := s.ImportCSV(context.Background(), writeTestCSV(t, 1200), func(rows int) {
		updates = append(updates, rows)
	})
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	if total != 1200 {
		t.Fatalf("imported %d rows, want 1200", total)
	}
	if len(updates) == 0 {
		t.Fatal("no progress updates for a multi-batch import")
	}
	for i := 1; i < len(updates); i++ {
		if updates[i] <= updates[i-1] {
			t.Errorf("progress not increasing: %v", updates)
			break
		}
	}
}

func TestSortMaterializesNewTable(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 10)

	sortedID, total, err := s.Sort(ctx, id, []SortColumn{{Column: "name", Ascending: true}})
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	if sortedID == id {
		t.Fatal("Sort reused the source table id")
	}
	if total != 10 {
		t.Errorf("sorted table has %d rows, want 10", total)
	}

	res, err := s.FetchWindow(ctx, sortedID, 0, 3)
	if err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
	if got := res.Rows[0][1]; got != "Alice" {
		t.Errorf("first sorted row = %v, want Alice", got)
	}

	// The source table is untouched and still readable.
	res, err = s.FetchWindow(ctx, id, 0, 1)
	if err != nil {
		t.Fatalf("source table unreadable after sort: %v", err)
	}
	if res.TotalRows != 10 {
		t.Errorf("source table total = %d, want 10", res.TotalRows)
	}
}

func TestSortDescending(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 5)

	sortedID, _, err := s.Sort(ctx, id, []SortColumn{{Column: "name", Ascending: false}})
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	res, err := s.FetchWindow(ctx, sortedID, 0, 1)
	if err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
	if got := res.Rows[0][1]; got != "Eve" {
		t.Errorf("first row of descending sort = %v, want Eve", got)
	}
}

func TestFilterCreatesView(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 10)

	filterID, total, err := s.Filter(ctx, id, "name = 'Alice'")
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if total != 2 {
		t.Errorf("filter view has %d rows, want 2", total)
	}

	res, err := s.FetchWindow(ctx, filterID, 0, 10)
	if err != nil {
		t.Fatalf("FetchWindow failed: %v", err)
	}
	for _, row := range res.Rows {
		if row[1] != "Alice" {
			t.Errorf("filter leaked row %v", row)
		}
	}
}

func TestFilterRejectsInvalidExpression(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 5)

	if _, _, err := s.Filter(ctx, id, "1; DROP TABLE "+id); err == nil {
		t.Fatal("Filter accepted a statement-injection expression")
	}
	// The table survives.
	if _, err := s.FetchWindow(ctx, id, 0, 1); err != nil {
		t.Fatalf("table damaged by rejected filter: %v", err)
	}
}

func TestResetReturnsOriginal(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 10)

	sortedID, _, err := s.Sort(ctx, id, []SortColumn{{Column: "name", Ascending: true}})
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	_ = sortedID

	resetID, total, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if resetID != id {
		t.Errorf("Reset returned %q, want original %q", resetID, id)
	}
	if total != 10 {
		t.Errorf("Reset total = %d, want 10", total)
	}
}

func TestDropTableProtectsOriginal(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 5)

	if err := s.DropTable(ctx, id); err != nil {
		t.Fatalf("DropTable on original errored: %v", err)
	}
	if _, err := s.FetchWindow(ctx, id, 0, 1); err != nil {
		t.Fatal("original table was dropped")
	}

	sortedID, _, err := s.Sort(ctx, id, []SortColumn{{Column: "id", Ascending: true}})
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	if err := s.DropTable(ctx, sortedID); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	if _, err := s.FetchWindow(ctx, sortedID, 0, 1); err == nil {
		t.Error("derived table still readable after drop")
	}

	filterID, _, err := s.Filter(ctx, id, "name = 'Alice'")
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if err := s.DropTable(ctx, filterID); err != nil {
		t.Fatalf("DropTable on view failed: %v", err)
	}
	if _, err := s.FetchWindow(ctx, filterID, 0, 1); err == nil {
		t.Error("filter view still readable after drop")
	}
}

// The windowing core retires a session as soon as the next table-identity
// operation lands. A filter view created over a sorted table must keep
// working after the sorted session is retired and its drop requested; the
// base drop is deferred until the view itself goes.
func TestFilterOverSortedSurvivesBaseDropRequest(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 10)

	sortedID, _, err := s.Sort(ctx, id, []SortColumn{{Column: "name", Ascending: true}})
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	filterID, total, err := s.Filter(ctx, sortedID, "name = 'Alice'")
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("filter view has %d rows, want 2", total)
	}

	if err := s.DropTable(ctx, sortedID); err != nil {
		t.Fatalf("DropTable on deferred base errored: %v", err)
	}
	res, err := s.FetchWindow(ctx, filterID, 0, 10)
	if err != nil {
		t.Fatalf("filter view broken after base drop request: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("filter view returned %d rows, want 2", len(res.Rows))
	}

	// Dropping the view releases the deferred base with it.
	if err := s.DropTable(ctx, filterID); err != nil {
		t.Fatalf("DropTable on view failed: %v", err)
	}
	if _, err := s.FetchWindow(ctx, filterID, 0, 1); err == nil {
		t.Error("filter view still readable after drop")
	}
	if _, err := s.FetchWindow(ctx, sortedID, 0, 1); err == nil {
		t.Error("deferred base still readable after its view was dropped")
	}
}

func TestChainedFilterViewsReleaseBasesInOrder(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	id, _ := importTestCSV(t, s, 10)

	sortedID, _, err := s.Sort(ctx, id, []SortColumn{{Column: "id", Ascending: true}})
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	f1, _, err := s.Filter(ctx, sortedID, "name = 'Alice'")
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	f2, total, err := s.Filter(ctx, f1, "id <> '1'")
	if err != nil {
		t.Fatalf("chained Filter failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("chained filter view has %d rows, want 1", total)
	}

	// Retire the chain the way successive table ops do.
	if err := s.DropTable(ctx, sortedID); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	if err := s.DropTable(ctx, f1); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}

	// Everything under the active view is still intact.
	res, err := s.FetchWindow(ctx, f2, 0, 5)
	if err != nil {
		t.Fatalf("chained view broken after retiring its bases: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Errorf("chained view returned %d rows, want 1", len(res.Rows))
	}

	// Dropping the last view releases the whole deferred chain.
	if err := s.DropTable(ctx, f2); err != nil {
		t.Fatalf("DropTable failed: %v", err)
	}
	for _, dead := range []string{f2, f1, sortedID} {
		if _, err := s.FetchWindow(ctx, dead, 0, 1); err == nil {
			t.Errorf("%s still readable after chain release", dead)
		}
	}
}

func TestAttachExistingTable(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, "CREATE TABLE existing (a TEXT)"); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO existing VALUES (?)", fmt.Sprint(i)); err != nil {
			t.Fatalf("Failed to insert row: %v", err)
		}
	}

	total, err := s.AttachTable(ctx, "existing")
	if err != nil {
		t.Fatalf("AttachTable failed: %v", err)
	}
	if total != 3 {
		t.Errorf("AttachTable total = %d, want 3", total)
	}
	if s.Original() != "existing" {
		t.Errorf("Original() = %q, want existing", s.Original())
	}

	if _, err := s.AttachTable(ctx, "no_such_table"); err == nil {
		t.Error("AttachTable accepted a missing table")
	}
}

func TestColumns(t *testing.T) {
	s := setupStore(t)
	id, _ := importTestCSV(t, s, 3)

	cols, err := s.Columns(context.Background(), id)
	if err != nil {
		t.Fatalf("Columns failed: %v", err)
	}
	want := []string{"id", "name", "age"}
	if len(cols) != len(want) {
		t.Fatalf("got %d columns, want %d", len(cols), len(want))
	}
	for i, w := range want {
		if cols[i].Name != w {
			t.Errorf("column %d = %q, want %q", i, cols[i].Name, w)
		}
	}
}

func TestSanitizeIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"normal_name", "normal_name"},
		{"with spaces", "with_spaces"},
		{"emp-data.2024", "emp_data_2024"},
		{"__trimmed__", "trimmed"},
		{"123starts_with_digit", "t_123starts_with_digit"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := sanitizeIdent(tt.in); got != tt.want {
			t.Errorf("sanitizeIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
