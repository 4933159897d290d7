package gridcore

import (
	"context"
	"testing"
	"time"
)

// gatedProvider hands each FetchWindow call to the test through a channel
// and blocks until the test sends the reply, so tests control exactly when
// and in which order fetches resolve.
type fetchCall struct {
	tableID string
	start   int
	count   int
	reply   chan fetchReply
}

type fetchReply struct {
	result FetchResult
	err    error
}

type gatedProvider struct {
	calls chan fetchCall
	drops chan string
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{
		calls: make(chan fetchCall, 16),
		drops: make(chan string, 16),
	}
}

func (p *gatedProvider) FetchWindow(ctx context.Context, tableID string, start, count int) (FetchResult, error) {
	reply := make(chan fetchReply)
	p.calls <- fetchCall{tableID: tableID, start: start, count: count, reply: reply}
	r := <-reply
	return r.result, r.err
}

func (p *gatedProvider) DropTable(ctx context.Context, tableID string) error {
	p.drops <- tableID
	return nil
}

func expectCall(t *testing.T, p *gatedProvider) fetchCall {
	t.Helper()
	select {
	case c := <-p.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for provider fetch")
		return fetchCall{}
	}
}

func expectNoCall(t *testing.T, p *gatedProvider) {
	t.Helper()
	select {
	case c := <-p.calls:
		t.Fatalf("unexpected provider fetch for [%d, %d)", c.start, c.start+c.count)
	case <-time.After(50 * time.Millisecond):
	}
}

func makeRows(n int) RowBatch {
	rows := make(RowBatch, n)
	for i := range rows {
		rows[i] = []any{i}
	}
	return rows
}

func newTestOrchestrator(p *gatedProvider) (*Orchestrator, chan ResolvedFetch) {
	resolved := make(chan ResolvedFetch, 16)
	orch := NewOrchestrator(context.Background(), p, func(r ResolvedFetch) {
		resolved <- r
	})
	return orch, resolved
}

func TestRapidRequestsCoalesceToLatestWindow(t *testing.T) {
	p := newGatedProvider()
	orch, resolved := newTestOrchestrator(p)
	s := &Session{ID: "t", Generation: 3, TotalRows: 1000, active: true}

	orch.Request(s, Window{Start: 0, Count: 10})
	first := expectCall(t, p)

	// Two more scroll ticks while the first fetch is still in flight. Only
	// the latest window may ever reach the provider.
	orch.Request(s, Window{Start: 100, Count: 10})
	orch.Request(s, Window{Start: 200, Count: 10})
	expectNoCall(t, p)

	first.reply <- fetchReply{result: FetchResult{Rows: makeRows(10), TotalRows: 1000}}
	r1 := <-resolved
	if orch.Resolve(r1, 3) {
		t.Error("superseded result was accepted")
	}

	second := expectCall(t, p)
	if second.start != 200 {
		t.Errorf("dispatched window start = %d, want 200 (middle window must be skipped)", second.start)
	}
	second.reply <- fetchReply{result: FetchResult{Rows: makeRows(10), TotalRows: 1000}}
	r2 := <-resolved
	if !orch.Resolve(r2, 3) {
		t.Error("latest result was not accepted")
	}
	if orch.Busy() {
		t.Error("orchestrator still busy after final resolve")
	}
}

func TestStaleGenerationDiscarded(t *testing.T) {
	p := newGatedProvider()
	orch, resolved := newTestOrchestrator(p)
	s3 := &Session{ID: "t3", Generation: 3, TotalRows: 100, active: true}

	orch.Request(s3, Window{Start: 0, Count: 10})
	call := expectCall(t, p)

	// Table identity changes to generation 4 while the fetch is in flight;
	// its result arrives afterwards and must be silently dropped.
	call.reply <- fetchReply{result: FetchResult{Rows: makeRows(10), TotalRows: 100}}
	r := <-resolved
	if orch.Resolve(r, 4) {
		t.Error("generation-3 result accepted after generation moved to 4")
	}
}

func TestEmptyWindowIssuesNoFetch(t *testing.T) {
	p := newGatedProvider()
	orch, _ := newTestOrchestrator(p)
	s := &Session{ID: "t", Generation: 0, active: true}

	orch.Request(s, Window{})
	orch.Request(nil, Window{Start: 0, Count: 10})
	expectNoCall(t, p)
	if orch.Busy() {
		t.Error("orchestrator busy with no dispatched fetch")
	}
}

func TestCurrentErrorIsReportedNotDiscarded(t *testing.T) {
	p := newGatedProvider()
	orch, resolved := newTestOrchestrator(p)
	s := &Session{ID: "t", Generation: 1, TotalRows: 100, active: true}

	orch.Request(s, Window{Start: 0, Count: 10})
	call := expectCall(t, p)
	call.reply <- fetchReply{err: context.DeadlineExceeded}

	r := <-resolved
	if !orch.Resolve(r, 1) {
		t.Fatal("current errored result reported as stale")
	}
	if r.Err == nil {
		t.Fatal("error lost in resolution")
	}
}

func TestReferencesTracksInFlightGenerations(t *testing.T) {
	p := newGatedProvider()
	orch, resolved := newTestOrchestrator(p)
	s := &Session{ID: "t", Generation: 2, TotalRows: 100, active: true}

	if orch.References(2) {
		t.Error("idle orchestrator references generation 2")
	}
	orch.Request(s, Window{Start: 0, Count: 5})
	call := expectCall(t, p)
	if !orch.References(2) {
		t.Error("in-flight generation 2 not referenced")
	}

	call.reply <- fetchReply{result: FetchResult{Rows: makeRows(5), TotalRows: 100}}
	r := <-resolved
	orch.Resolve(r, 2)
	if orch.References(2) {
		t.Error("generation 2 still referenced after resolve")
	}
}
