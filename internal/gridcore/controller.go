package gridcore

import (
	"context"
	"math"
)

const (
	DefaultRowHeight  = 1.0
	DefaultBufferSize = 50
	DefaultMaxExtent  = float64(1 << 21)
)

// Config holds the tuning constants of the windowing pipeline.
type Config struct {
	RowHeight  float64 // physical height of one row, > 0
	BufferSize int     // rows fetched beyond the visible range on each side, >= 0
	MaxExtent  float64 // addressable physical ceiling of the host surface, > 0
}

func (c Config) withDefaults() Config {
	if c.RowHeight <= 0 {
		c.RowHeight = DefaultRowHeight
	}
	if c.BufferSize < 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxExtent <= 0 {
		c.MaxExtent = DefaultMaxExtent
	}
	return c
}

// Event is a discrete input to the controller. Frontends translate host
// notifications (key, mouse, engine callbacks) into events and dispatch
// them on their own event thread.
type Event interface{ isEvent() }

// ScrollToEvent sets the absolute physical scroll offset (scrollbar drag).
type ScrollToEvent struct{ Offset float64 }

// ScrollByRowsEvent scrolls by a whole number of logical rows (wheel, keys,
// page up/down). The controller converts through the scale mapping.
type ScrollByRowsEvent struct{ Rows int }

// ResizeEvent updates the viewport's physical height.
type ResizeEvent struct{ Height float64 }

// TableOpenedEvent installs the first session after an import completes.
type TableOpenedEvent struct {
	TableID   string
	TotalRows int
}

// TableReplacedEvent swaps table identity after a sort, filter-view
// creation, or reset. The fresh view starts scrolled to the top.
type TableReplacedEvent struct {
	TableID   string
	TotalRows int
}

// RowCountEvent corrects the total row count without an identity change
// (progressive import still counting).
type RowCountEvent struct{ TotalRows int }

// FetchResolvedEvent carries a completed provider fetch back onto the
// event thread.
type FetchResolvedEvent struct{ Resolved ResolvedFetch }

func (ScrollToEvent) isEvent()      {}
func (ScrollByRowsEvent) isEvent()  {}
func (ResizeEvent) isEvent()        {}
func (TableOpenedEvent) isEvent()   {}
func (TableReplacedEvent) isEvent() {}
func (RowCountEvent) isEvent()      {}
func (FetchResolvedEvent) isEvent() {}

// Controller is the scroll/render glue: it owns the viewport, the session
// registry, and the scale mapping, and wires scroll events through the
// window calculator and fetch orchestrator into the render sink.
//
// All state lives on one logical thread. Dispatch must only be called from
// the frontend's event loop; the post function given at construction must
// schedule the event back onto that same loop.
type Controller struct {
	cfg      Config
	ctx      context.Context
	provider Provider
	sink     RenderSink
	registry *SessionRegistry
	orch     *Orchestrator

	mapping  ScaleMapping
	viewport Viewport
	retired  []*Session

	// OnError receives recoverable pipeline failures (provider fetch
	// errors). Never called for stale-result discards.
	OnError func(error)
}

// NewController builds the pipeline. post delivers events produced off the
// event thread (fetch completions) back into the frontend's loop, which
// must hand them to Dispatch.
func NewController(ctx context.Context, cfg Config, provider Provider, sink RenderSink, post func(Event)) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:      cfg,
		ctx:      ctx,
		provider: provider,
		sink:     sink,
		registry: NewSessionRegistry(),
		mapping:  NewScaleMapping(0, cfg.RowHeight, cfg.MaxExtent),
	}
	c.orch = NewOrchestrator(ctx, provider, func(r ResolvedFetch) {
		post(FetchResolvedEvent{Resolved: r})
	})
	return c
}

// Dispatch feeds one event through the state machine.
func (c *Controller) Dispatch(ev Event) {
	switch ev := ev.(type) {
	case ScrollToEvent:
		c.scrollTo(ev.Offset)
	case ScrollByRowsEvent:
		delta := float64(ev.Rows) * c.cfg.RowHeight / c.mapping.ScaleFactor
		c.scrollTo(c.viewport.Offset + delta)
	case ResizeEvent:
		c.viewport.Height = ev.Height
		c.requestWindow()
	case TableOpenedEvent:
		c.replaceTable(ev.TableID, ev.TotalRows)
	case TableReplacedEvent:
		c.replaceTable(ev.TableID, ev.TotalRows)
	case RowCountEvent:
		c.updateRowCount(ev.TotalRows)
	case FetchResolvedEvent:
		c.fetchResolved(ev.Resolved)
	}
}

// Mapping returns the current scale mapping. Frontends use it to translate
// paint offsets back into row indices and to size their scrollbars.
func (c *Controller) Mapping() ScaleMapping { return c.mapping }

// Viewport returns the current physical viewport.
func (c *Controller) Viewport() Viewport { return c.viewport }

// Session returns the active table session, or nil before the first open.
func (c *Controller) Session() *Session { return c.registry.Current() }

// FirstVisibleRow is the logical index of the topmost visible row.
func (c *Controller) FirstVisibleRow() int {
	return int(math.Floor(c.mapping.PhysicalToLogical(c.viewport.Offset)))
}

func (c *Controller) scrollTo(offset float64) {
	max := c.mapping.MaxScrollOffset(c.viewport.Height)
	if offset < 0 {
		offset = 0
	} else if offset > max {
		offset = max
	}
	c.viewport.Offset = offset
	c.requestWindow()
}

func (c *Controller) requestWindow() {
	c.orch.Request(c.registry.Current(), ComputeWindow(c.viewport, c.mapping, c.cfg.BufferSize))
}

func (c *Controller) replaceTable(tableID string, totalRows int) {
	if old := c.registry.Current(); old != nil && old.ID != tableID {
		c.retired = append(c.retired, old)
	}
	s := c.registry.Create(tableID, totalRows)
	c.mapping = NewScaleMapping(s.TotalRows, c.cfg.RowHeight, c.cfg.MaxExtent)
	c.viewport.Offset = 0
	c.sink.Clear()
	c.requestWindow()
	c.reapRetired()
}

func (c *Controller) updateRowCount(totalRows int) {
	s := c.registry.Current()
	if s == nil || clampRows(totalRows) == s.TotalRows {
		return
	}
	c.registry.UpdateTotalRows(totalRows)
	c.mapping = NewScaleMapping(s.TotalRows, c.cfg.RowHeight, c.cfg.MaxExtent)
	// The physical offset stays put but its logical meaning shifted, so the
	// current window must be re-evaluated under the new mapping.
	c.scrollTo(c.viewport.Offset)
}

func (c *Controller) fetchResolved(r ResolvedFetch) {
	current := c.orch.Resolve(r, c.registry.CurrentGeneration())
	c.reapRetired()
	if !current {
		return // stale, expected, dropped silently
	}
	if r.Err != nil {
		c.reportError(&FetchError{Generation: r.Req.Generation, Window: r.Req.Window, Err: r.Err})
		return
	}
	if s := c.registry.Current(); s != nil && r.Result.TotalRows != s.TotalRows {
		c.registry.UpdateTotalRows(r.Result.TotalRows)
		c.mapping = NewScaleMapping(s.TotalRows, c.cfg.RowHeight, c.cfg.MaxExtent)
		c.requestWindow()
	}
	c.sink.RenderBatch(c.mapping.LogicalToPhysical(r.Req.Window.Start), r.Result.Rows)
}

// reapRetired drops backing tables of replaced sessions once no in-flight
// request can still read them. DropTable runs off the event thread; a
// failed drop only leaks a table in the store, so it is logged and ignored.
func (c *Controller) reapRetired() {
	kept := c.retired[:0]
	for _, s := range c.retired {
		if c.orch.References(s.Generation) {
			kept = append(kept, s)
			continue
		}
		id := s.ID
		go func() {
			if err := c.provider.DropTable(c.ctx, id); err != nil {
				debugLog("controller: drop table %s: %v\n", id, err)
			}
		}()
	}
	c.retired = kept
}

func (c *Controller) reportError(err error) {
	if c.OnError != nil {
		c.OnError(err)
		return
	}
	debugLog("controller: %v\n", err)
}
