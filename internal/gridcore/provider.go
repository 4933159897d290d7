package gridcore

import "context"

// RowBatch is a contiguous slice of rows as returned by a Provider.
// Cell values keep whatever Go types the backing store produced.
type RowBatch [][]any

// FetchResult carries the rows for one window together with the provider's
// current notion of the total row count. The count is returned on every
// fetch so row-count drift during a progressive import is corrected as a
// side effect of normal scrolling.
type FetchResult struct {
	Rows      RowBatch
	TotalRows int
}

// Provider is the windowed row source backing a table session. FetchWindow
// may block for as long as the backing store needs; the orchestrator always
// runs it off the event thread. start/count address logical row space and
// are already clamped to [0, totalRows] by the caller.
type Provider interface {
	FetchWindow(ctx context.Context, tableID string, start, count int) (FetchResult, error)

	// DropTable releases the backing table of a session that can no longer
	// be referenced by any in-flight request.
	DropTable(ctx context.Context, tableID string) error
}

// RenderSink receives resolved, non-stale row batches. RenderBatch is
// invoked at most once per accepted fetch; Clear is invoked on every
// table-identity replacement before the first batch of the new session.
type RenderSink interface {
	RenderBatch(physicalOffset float64, rows RowBatch)
	Clear()
}
