package gridcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

type paintedBatch struct {
	offset float64
	rows   RowBatch
}

// recordingSink captures paints and clears. The controller only touches it
// from Dispatch, which tests call on a single goroutine.
type recordingSink struct {
	batches []paintedBatch
	clears  int
}

func (s *recordingSink) RenderBatch(offset float64, rows RowBatch) {
	s.batches = append(s.batches, paintedBatch{offset: offset, rows: rows})
}

func (s *recordingSink) Clear() { s.clears++ }

func newTestController(cfg Config, p *gatedProvider, sink *recordingSink) (*Controller, chan Event) {
	events := make(chan Event, 16)
	c := NewController(context.Background(), cfg, p, sink, func(ev Event) {
		events <- ev
	})
	return c, events
}

// pump waits for the next asynchronously posted event and dispatches it.
func pump(t *testing.T, c *Controller, events chan Event) {
	t.Helper()
	select {
	case ev := <-events:
		c.Dispatch(ev)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for posted event")
	}
}

func expectDrop(t *testing.T, p *gatedProvider, tableID string) {
	t.Helper()
	select {
	case id := <-p.drops:
		if id != tableID {
			t.Fatalf("dropped table %q, want %q", id, tableID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for drop of %q", tableID)
	}
}

func TestOpenTableFetchesInitialWindow(t *testing.T) {
	p := newGatedProvider()
	sink := &recordingSink{}
	c, events := newTestController(Config{RowHeight: 1, BufferSize: 5, MaxExtent: 1 << 20}, p, sink)

	c.Dispatch(ResizeEvent{Height: 20})
	expectNoCall(t, p) // no session yet

	c.Dispatch(TableOpenedEvent{TableID: "orig", TotalRows: 1000})
	if sink.clears != 1 {
		t.Errorf("clears = %d, want 1 before the first batch", sink.clears)
	}

	call := expectCall(t, p)
	if call.tableID != "orig" || call.start != 0 || call.count != 25 {
		t.Errorf("initial fetch = %s[%d, %d), want orig[0, 25)", call.tableID, call.start, call.start+call.count)
	}
	call.reply <- fetchReply{result: FetchResult{Rows: makeRows(25), TotalRows: 1000}}
	pump(t, c, events)

	if len(sink.batches) != 1 {
		t.Fatalf("painted %d batches, want 1", len(sink.batches))
	}
	if sink.batches[0].offset != 0 {
		t.Errorf("paint offset = %v, want 0", sink.batches[0].offset)
	}
}

func TestEmptyTableIssuesNoFetch(t *testing.T) {
	p := newGatedProvider()
	sink := &recordingSink{}
	c, _ := newTestController(Config{RowHeight: 1, BufferSize: 100, MaxExtent: 1 << 20}, p, sink)

	c.Dispatch(ResizeEvent{Height: 50})
	c.Dispatch(TableOpenedEvent{TableID: "empty", TotalRows: 0})

	expectNoCall(t, p)
	if len(sink.batches) != 0 {
		t.Errorf("painted %d batches for an empty table", len(sink.batches))
	}
}

// A sort replaces the table while a fetch for the previous generation is
// still in flight: the stale result must never be painted, the view resets
// to the top, and a fresh fetch runs against the new table.
func TestTableSwapMidScroll(t *testing.T) {
	p := newGatedProvider()
	sink := &recordingSink{}
	c, events := newTestController(Config{RowHeight: 1, BufferSize: 5, MaxExtent: 1 << 20}, p, sink)

	c.Dispatch(ResizeEvent{Height: 20})
	c.Dispatch(TableOpenedEvent{TableID: "orig", TotalRows: 1000})
	call := expectCall(t, p)
	call.reply <- fetchReply{result: FetchResult{Rows: makeRows(25), TotalRows: 1000}}
	pump(t, c, events)

	c.Dispatch(ScrollToEvent{Offset: 500})
	inflight := expectCall(t, p)
	if inflight.start != 495 {
		t.Errorf("scrolled fetch start = %d, want 495", inflight.start)
	}

	// Sort completes before the scrolled fetch resolves.
	c.Dispatch(TableReplacedEvent{TableID: "sorted", TotalRows: 1000})
	if sink.clears != 2 {
		t.Errorf("clears = %d, want 2 after replacement", sink.clears)
	}
	if c.Viewport().Offset != 0 {
		t.Errorf("offset = %v after replacement, want 0 (fresh view starts at the top)", c.Viewport().Offset)
	}

	painted := len(sink.batches)
	inflight.reply <- fetchReply{result: FetchResult{Rows: makeRows(30), TotalRows: 1000}}
	pump(t, c, events)
	if len(sink.batches) != painted {
		t.Fatal("stale generation result was painted")
	}

	// The parked request for the new generation dispatches next, at the top.
	fresh := expectCall(t, p)
	if fresh.tableID != "sorted" || fresh.start != 0 {
		t.Errorf("fresh fetch = %s[%d, ...), want sorted[0, ...)", fresh.tableID, fresh.start)
	}
	fresh.reply <- fetchReply{result: FetchResult{Rows: makeRows(25), TotalRows: 1000}}
	pump(t, c, events)
	if len(sink.batches) != painted+1 {
		t.Fatalf("fresh batch not painted")
	}

	// The replaced table is unreferenced now and gets dropped.
	expectDrop(t, p, "orig")
}

func TestRowCountCorrectionReevaluatesWindow(t *testing.T) {
	p := newGatedProvider()
	sink := &recordingSink{}
	c, events := newTestController(Config{RowHeight: 1, BufferSize: 5, MaxExtent: 1 << 20}, p, sink)

	c.Dispatch(ResizeEvent{Height: 20})
	c.Dispatch(TableOpenedEvent{TableID: "t", TotalRows: 100})
	call := expectCall(t, p)

	// Progressive import finished counting: the provider reports more rows.
	call.reply <- fetchReply{result: FetchResult{Rows: makeRows(25), TotalRows: 250}}
	pump(t, c, events)

	if got := c.Session().TotalRows; got != 250 {
		t.Errorf("session TotalRows = %d, want 250", got)
	}
	if got := c.Mapping().TotalRows; got != 250 {
		t.Errorf("mapping TotalRows = %d, want 250", got)
	}
	if len(sink.batches) != 1 {
		t.Fatalf("batch with corrected count not painted")
	}

	// The recompute contract re-evaluates the window under the new mapping.
	again := expectCall(t, p)
	again.reply <- fetchReply{result: FetchResult{Rows: makeRows(25), TotalRows: 250}}
	pump(t, c, events)
}

func TestRowCountEventWithoutIdentityChange(t *testing.T) {
	p := newGatedProvider()
	sink := &recordingSink{}
	c, events := newTestController(Config{RowHeight: 1, BufferSize: 5, MaxExtent: 1 << 20}, p, sink)

	c.Dispatch(ResizeEvent{Height: 20})
	c.Dispatch(TableOpenedEvent{TableID: "t", TotalRows: 100})
	call := expectCall(t, p)
	call.reply <- fetchReply{result: FetchResult{Rows: makeRows(25), TotalRows: 100}}
	pump(t, c, events)

	gen := c.Session().Generation
	c.Dispatch(RowCountEvent{TotalRows: 400})

	if c.Session().Generation != gen {
		t.Error("row-count update bumped the generation")
	}
	if c.Mapping().TotalRows != 400 {
		t.Errorf("mapping TotalRows = %d, want 400", c.Mapping().TotalRows)
	}
	refetch := expectCall(t, p)
	refetch.reply <- fetchReply{result: FetchResult{Rows: makeRows(25), TotalRows: 400}}
	pump(t, c, events)
}

func TestFetchErrorIsRecoverable(t *testing.T) {
	p := newGatedProvider()
	sink := &recordingSink{}
	c, events := newTestController(Config{RowHeight: 1, BufferSize: 5, MaxExtent: 1 << 20}, p, sink)

	var errs []error
	c.OnError = func(err error) { errs = append(errs, err) }

	c.Dispatch(ResizeEvent{Height: 20})
	c.Dispatch(TableOpenedEvent{TableID: "t", TotalRows: 1000})
	call := expectCall(t, p)
	call.reply <- fetchReply{err: context.DeadlineExceeded}
	pump(t, c, events)

	if len(errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(errs))
	}
	var fe *FetchError
	if !errors.As(errs[0], &fe) {
		t.Fatalf("reported error %T, want *FetchError", errs[0])
	}
	if len(sink.batches) != 0 {
		t.Error("errored fetch painted a batch")
	}

	// State is intact: the next scroll tick simply retries.
	c.Dispatch(ScrollToEvent{Offset: 100})
	retry := expectCall(t, p)
	retry.reply <- fetchReply{result: FetchResult{Rows: makeRows(30), TotalRows: 1000}}
	pump(t, c, events)
	if len(sink.batches) != 1 {
		t.Error("retry after error did not paint")
	}
}

func TestScrollByRowsUnderScaling(t *testing.T) {
	p := newGatedProvider()
	sink := &recordingSink{}
	// 1000 rows of height 1 into 100 physical units: scale factor 10.
	c, events := newTestController(Config{RowHeight: 1, BufferSize: 0, MaxExtent: 100}, p, sink)

	c.Dispatch(ResizeEvent{Height: 10})
	c.Dispatch(TableOpenedEvent{TableID: "t", TotalRows: 1000})
	call := expectCall(t, p)
	call.reply <- fetchReply{result: FetchResult{Rows: makeRows(100), TotalRows: 1000}}
	pump(t, c, events)

	c.Dispatch(ScrollByRowsEvent{Rows: 100})
	if got := c.FirstVisibleRow(); got != 100 {
		t.Errorf("FirstVisibleRow = %d after scrolling 100 rows, want 100", got)
	}
	step := expectCall(t, p)
	if step.start != 100 {
		t.Errorf("fetch start = %d, want 100", step.start)
	}
	step.reply <- fetchReply{result: FetchResult{Rows: makeRows(100), TotalRows: 1000}}
	pump(t, c, events)

	// Scrolling far past the end clamps to the bottom window.
	c.Dispatch(ScrollByRowsEvent{Rows: 1_000_000})
	bottom := expectCall(t, p)
	if bottom.start+bottom.count != 1000 {
		t.Errorf("bottom window ends at %d, want 1000", bottom.start+bottom.count)
	}
	bottom.reply <- fetchReply{result: FetchResult{Rows: makeRows(bottom.count), TotalRows: 1000}}
	pump(t, c, events)
}
