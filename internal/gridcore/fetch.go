package gridcore

import (
	"context"
	"time"
)

// FetchRequest correlates one windowed fetch with the session generation
// current at issue time.
type FetchRequest struct {
	Generation uint64
	TableID    string
	Window     Window
	Seq        uint64
	IssuedAt   time.Time
}

// ResolvedFetch is what the provider goroutine posts back to the event
// thread once a fetch completes, successfully or not.
type ResolvedFetch struct {
	Req    FetchRequest
	Result FetchResult
	Err    error
}

// Orchestrator issues windowed fetches against the active session and makes
// staleness explicit: a result is painted only if it belongs to the current
// generation and is the most recently requested window. There is no hard
// cancellation of provider calls; superseded results are discarded when
// they arrive.
//
// At most one request is in flight. Scroll events that arrive while one is
// outstanding overwrite a single pending slot, so rapid scrolling coalesces
// to the latest window instead of flooding the provider.
//
// All methods run on the event thread; only the dispatched goroutine and
// the post callback cross it.
type Orchestrator struct {
	ctx      context.Context
	provider Provider
	post     func(ResolvedFetch)

	nextSeq   uint64
	latestSeq uint64
	inflight  *FetchRequest
	pending   *FetchRequest
}

// NewOrchestrator wires a provider to a post function that delivers
// completions back to the event thread (tview's QueueUpdateDraw, bubbletea's
// Send, or a direct call in tests).
func NewOrchestrator(ctx context.Context, provider Provider, post func(ResolvedFetch)) *Orchestrator {
	return &Orchestrator{ctx: ctx, provider: provider, post: post}
}

// Request records a fetch for the window against the session's generation
// and dispatches it, or parks it in the pending slot while an earlier fetch
// is still in flight. An empty window issues nothing.
func (o *Orchestrator) Request(s *Session, w Window) {
	if s == nil || w.Empty() {
		return
	}
	req := FetchRequest{
		Generation: s.Generation,
		TableID:    s.ID,
		Window:     w,
		Seq:        o.nextSeq,
		IssuedAt:   time.Now(),
	}
	o.nextSeq++
	o.latestSeq = req.Seq

	if o.inflight != nil {
		// Supersede whatever was parked; its result will never be wanted.
		o.pending = &req
		return
	}
	o.dispatch(req)
}

func (o *Orchestrator) dispatch(req FetchRequest) {
	o.inflight = &req
	debugLog("fetch: dispatch seq=%d gen=%d [%d,%d)\n", req.Seq, req.Generation, req.Window.Start, req.Window.End())
	go func() {
		result, err := o.provider.FetchWindow(o.ctx, req.TableID, req.Window.Start, req.Window.Count)
		o.post(ResolvedFetch{Req: req, Result: result, Err: err})
	}()
}

// Resolve processes a completion on the event thread. It returns true when
// the result is current, i.e. it matches both the registry's generation and
// the most recently issued request; the caller then paints it or surfaces
// its error. A false return is the expected silent discard of a stale
// result, never a fault.
func (o *Orchestrator) Resolve(r ResolvedFetch, currentGeneration uint64) bool {
	if o.inflight != nil && r.Req.Seq == o.inflight.Seq {
		o.inflight = nil
		if o.pending != nil {
			next := *o.pending
			o.pending = nil
			o.dispatch(next)
		}
	}
	if r.Req.Generation != currentGeneration || r.Req.Seq != o.latestSeq {
		debugLog("fetch: discard stale seq=%d gen=%d (current gen=%d latest seq=%d)\n",
			r.Req.Seq, r.Req.Generation, currentGeneration, o.latestSeq)
		return false
	}
	return true
}

// Busy reports whether a fetch is in flight or parked.
func (o *Orchestrator) Busy() bool {
	return o.inflight != nil || o.pending != nil
}

// References reports whether any in-flight or parked request was issued
// against the given generation. Retired sessions may only be dropped once
// nothing references them.
func (o *Orchestrator) References(generation uint64) bool {
	if o.inflight != nil && o.inflight.Generation == generation {
		return true
	}
	if o.pending != nil && o.pending.Generation == generation {
		return true
	}
	return false
}
