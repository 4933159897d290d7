package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"vgrid/internal/gridcore"
	"vgrid/internal/tablestore"
)

const (
	DefaultColumnWidth = 8
	pagePicker         = "picker"
	pageGrid           = "grid"
	chromeHeight       = 6 // name row, borders, header, status bar, command palette
)

var dialectIcons = map[tablestore.Dialect]string{
	tablestore.SQLite:     "🪶",
	tablestore.DuckDB:     "🦆",
	tablestore.MySQL:      "🐬",
	tablestore.PostgreSQL: "🐘",
}

// gridTitle labels the grid's name header with the table and its engine.
func gridTitle(tableID string, d tablestore.Dialect) string {
	return fmt.Sprintf("%s %s", tableID, dialectIcons[d])
}

// Viewer owns the tview frontend: the grid, the status bar, the command
// palette, and the column picker overlay. It implements gridcore.RenderSink
// and feeds every input through the controller's event dispatch.
//
// All controller access happens on the tview event loop. Fetch completions
// arrive through QueueUpdateDraw, store operations (sort, filter, reset)
// run on their own goroutine and post their outcome back the same way.
type Viewer struct {
	app   *tview.Application
	pages *tview.Pages
	grid  *GridView
	ctrl  *gridcore.Controller
	store *tablestore.Store

	statusBar      *tview.TextView
	commandPalette *tview.InputField
	layout         *tview.Flex
	columnPicker   *ColumnPicker

	paletteMode PaletteMode
	lastGPress  time.Time // for detecting 'gg'
	busy        bool      // a store operation is running

	lastSortCol int
	lastSortAsc bool
}

// PaletteMode represents the current mode of the command palette
type PaletteMode int

const (
	PaletteModeDefault PaletteMode = iota
	PaletteModeFilter
)

func (m PaletteMode) Glyph() string {
	switch m {
	case PaletteModeFilter:
		return "↪ "
	default:
		return "⌃ "
	}
}

// mouseActionString converts tview.MouseAction to a human-readable string
func mouseActionString(action tview.MouseAction) string {
	switch action {
	case tview.MouseScrollUp:
		return "ScrollUp"
	case tview.MouseScrollDown:
		return "ScrollDown"
	case tview.MouseLeftClick:
		return "LeftClick"
	case tview.MouseRightClick:
		return "RightClick"
	case tview.MouseMove:
		return "Move"
	default:
		return fmt.Sprintf("Unknown(%d)", action)
	}
}

func runViewer(store *tablestore.Store, tableID string, totalRows int, cfg gridcore.Config) error {
	tview.Styles.ContrastBackgroundColor = tcell.ColorBlack

	ctx := context.Background()

	cols, err := store.Columns(ctx, tableID)
	if err != nil {
		CaptureError(err)
		return err
	}
	gridCols := make([]GridColumn, 0, len(cols))
	for _, c := range cols {
		gridCols = append(gridCols, GridColumn{Name: c.Name, Type: c.Type, Width: DefaultColumnWidth})
	}

	terminalHeight := getTerminalHeight()
	dataHeight := terminalHeight - chromeHeight
	if dataHeight < 1 {
		dataHeight = 1
	}

	app := tview.NewApplication().EnableMouse(true)

	viewer := &Viewer{
		app:         app,
		pages:       tview.NewPages(),
		store:       store,
		paletteMode: PaletteModeDefault,
		lastSortCol: -1,
	}

	viewer.grid = NewGridView(dataHeight, &GridViewConfig{
		Columns: gridCols,
		ColumnSelectFunc: func(col int) {
			viewer.ensureColumnVisible(col)
			viewer.updateStatusWithPosition()
		},
		MouseScrollFunc: func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
			if breadcrumbs != nil && event != nil {
				breadcrumbs.RecordMouse(mouseActionString(action))
			}

			switch action {
			case tview.MouseScrollUp:
				viewer.dispatch(gridcore.ScrollByRowsEvent{Rows: -3})
				return tview.MouseConsumed, nil
			case tview.MouseScrollDown:
				viewer.dispatch(gridcore.ScrollByRowsEvent{Rows: 3})
				return tview.MouseConsumed, nil
			case tview.MouseScrollLeft:
				viewer.grid.viewport.ScrollLeft()
				return tview.MouseConsumed, nil
			case tview.MouseScrollRight:
				viewer.grid.viewport.ScrollRight()
				return tview.MouseConsumed, nil
			}
			return action, event
		},
	})
	viewer.grid.SetTableName(gridTitle(tableID, store.Dialect())).SetScrollbarVisible(true)

	viewer.ctrl = gridcore.NewController(ctx, cfg, store, viewer, func(ev gridcore.Event) {
		app.QueueUpdateDraw(func() { viewer.dispatch(ev) })
	})
	viewer.ctrl.OnError = func(err error) {
		CaptureError(err)
		viewer.SetStatusError(fmt.Sprintf("fetch failed: %v", err))
	}

	viewer.columnPicker = NewColumnPicker(columnNames(gridCols), viewer.pickColumn, func() {
		viewer.pages.HidePage(pagePicker)
		viewer.app.SetFocus(viewer.grid)
		viewer.app.SetAfterDrawFunc(nil)
	})

	viewer.setupStatusBar()
	viewer.setupCommandPalette()
	viewer.setupKeyBindings()

	viewer.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(viewer.grid, 0, 1, true).
		AddItem(viewer.statusBar, 1, 0, false).
		AddItem(viewer.commandPalette, 1, 0, false)

	viewer.pages.AddPage(pageGrid, viewer.layout, true, true)

	pickerOverlay := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(viewer.columnPicker, 8, 0, true).
		AddItem(nil, 0, 1, false) // Spacer takes rest of screen
	viewer.pages.AddPage(pagePicker, pickerOverlay, true, false)

	// Prime the pipeline before the event loop starts. The fetch completion
	// arrives through QueueUpdateDraw once Run is up.
	viewer.dispatch(gridcore.ResizeEvent{Height: float64(dataHeight)})
	viewer.dispatch(gridcore.TableOpenedEvent{TableID: tableID, TotalRows: totalRows})

	if err := app.SetRoot(viewer.pages, true).Run(); err != nil {
		CaptureError(err)
		return err
	}
	return nil
}

func columnNames(cols []GridColumn) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// dispatch runs one controller event and refreshes the derived view state.
// Must only be called on the tview event loop.
func (v *Viewer) dispatch(ev gridcore.Event) {
	v.ctrl.Dispatch(ev)
	v.syncView()
}

// RenderBatch implements gridcore.RenderSink.
func (v *Viewer) RenderBatch(physicalOffset float64, rows gridcore.RowBatch) {
	first := int(math.Round(v.ctrl.Mapping().PhysicalToLogical(physicalOffset)))
	v.grid.SetRows(first, rows)
}

// Clear implements gridcore.RenderSink.
func (v *Viewer) Clear() {
	v.grid.ClearRows()
}

// syncView pushes the controller's viewport state into the grid.
func (v *Viewer) syncView() {
	m := v.ctrl.Mapping()
	vp := v.ctrl.Viewport()

	v.grid.SetTopRow(v.ctrl.FirstVisibleRow())
	v.grid.SetTotalRows(m.TotalRows)

	maxOffset := m.MaxScrollOffset(vp.Height)
	frac := 0.0
	if maxOffset > 0 {
		frac = vp.Offset / maxOffset
	}
	v.grid.SetScrollFraction(frac)
	v.updateStatusWithPosition()
}

func (v *Viewer) setupKeyBindings() {
	v.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// The palette and the picker keep their own input handling
		if v.commandPalette.HasFocus() || v.columnPicker.HasFocus() {
			return event
		}

		if breadcrumbs != nil {
			breadcrumbs.RecordKeyboard(event.Name(), "")
		}

		page := v.grid.RowsHeight() - 1
		if page < 1 {
			page = 1
		}

		switch event.Key() {
		case tcell.KeyUp:
			v.dispatch(gridcore.ScrollByRowsEvent{Rows: -1})
			return nil
		case tcell.KeyDown:
			v.dispatch(gridcore.ScrollByRowsEvent{Rows: 1})
			return nil
		case tcell.KeyPgUp:
			v.dispatch(gridcore.ScrollByRowsEvent{Rows: -page})
			return nil
		case tcell.KeyPgDn:
			v.dispatch(gridcore.ScrollByRowsEvent{Rows: page})
			return nil
		case tcell.KeyCtrlQ:
			v.app.Stop()
			return nil
		case tcell.KeyCtrlF:
			v.setPaletteMode(PaletteModeFilter, true)
			return nil
		}

		switch event.Rune() {
		case 'k':
			v.dispatch(gridcore.ScrollByRowsEvent{Rows: -1})
			return nil
		case 'j':
			v.dispatch(gridcore.ScrollByRowsEvent{Rows: 1})
			return nil
		case 'h':
			v.grid.SelectColumn(v.grid.SelectedColumn() - 1)
			return nil
		case 'l':
			v.grid.SelectColumn(v.grid.SelectedColumn() + 1)
			return nil
		case 'g':
			// 'gg' scrolls to the top
			if time.Since(v.lastGPress) < 500*time.Millisecond {
				v.dispatch(gridcore.ScrollToEvent{Offset: 0})
				v.lastGPress = time.Time{}
			} else {
				v.lastGPress = time.Now()
			}
			return nil
		case 'G':
			m := v.ctrl.Mapping()
			v.dispatch(gridcore.ScrollToEvent{Offset: m.MaxScrollOffset(v.ctrl.Viewport().Height)})
			return nil
		case '<':
			col := v.grid.SelectedColumn()
			v.grid.SetColumnWidth(col, v.grid.GetColumnWidth(col)-1)
			return nil
		case '>':
			col := v.grid.SelectedColumn()
			v.grid.SetColumnWidth(col, v.grid.GetColumnWidth(col)+1)
			return nil
		case 's':
			v.sortBySelectedColumn()
			return nil
		case 'o':
			v.pages.ShowPage(pagePicker)
			v.app.SetFocus(v.columnPicker)
			v.app.SetAfterDrawFunc(func(screen tcell.Screen) {
				screen.SetCursorStyle(tcell.CursorStyleBlinkingBar)
			})
			return nil
		case 'f':
			v.setPaletteMode(PaletteModeFilter, true)
			return nil
		case 'r':
			v.resetTable()
			return nil
		case 'q':
			v.app.Stop()
			return nil
		}

		return event
	})
}

// pickColumn is the column picker callback: it selects the column and
// scrolls it into view.
func (v *Viewer) pickColumn(name string) {
	v.pages.HidePage(pagePicker)
	v.app.SetFocus(v.grid)
	v.app.SetAfterDrawFunc(nil)

	for i, col := range v.grid.Columns() {
		if col.Name == name {
			v.grid.SelectColumn(i)
			return
		}
	}
}

// sortBySelectedColumn sorts by the selected column, ascending first and
// toggling direction on repeat.
func (v *Viewer) sortBySelectedColumn() {
	col := v.grid.SelectedColumn()
	cols := v.grid.Columns()
	if col < 0 || col >= len(cols) {
		return
	}

	asc := true
	if v.lastSortCol == col {
		asc = !v.lastSortAsc
	}
	v.lastSortCol = col
	v.lastSortAsc = asc

	name := cols[col].Name
	v.runTableOp(fmt.Sprintf("sort by %s", name), func(ctx context.Context) (string, int, error) {
		return v.store.Sort(ctx, v.currentTableID(), []tablestore.SortColumn{{Column: name, Ascending: asc}})
	})
}

func (v *Viewer) applyFilter(where string) {
	where = strings.TrimSpace(where)
	if where == "" {
		return
	}
	if err := tablestore.ValidateWhere(where); err != nil {
		v.SetStatusError(err.Error())
		return
	}
	v.runTableOp(fmt.Sprintf("filter %s", where), func(ctx context.Context) (string, int, error) {
		return v.store.Filter(ctx, v.currentTableID(), where)
	})
}

func (v *Viewer) resetTable() {
	v.lastSortCol = -1
	v.runTableOp("reset", func(ctx context.Context) (string, int, error) {
		return v.store.Reset(ctx)
	})
}

func (v *Viewer) currentTableID() string {
	if s := v.ctrl.Session(); s != nil {
		return s.ID
	}
	return v.store.Original()
}

// runTableOp runs a store operation off the event loop and swaps the table
// session when it lands. Only one operation runs at a time.
func (v *Viewer) runTableOp(desc string, op func(ctx context.Context) (string, int, error)) {
	if v.busy {
		v.SetStatusMessage("busy, hold on")
		return
	}
	v.busy = true
	v.SetStatusMessage(desc + "…")
	if breadcrumbs != nil {
		breadcrumbs.RecordTableOp(desc)
	}

	go func() {
		id, total, err := op(context.Background())
		v.app.QueueUpdateDraw(func() {
			v.busy = false
			if err != nil {
				CaptureError(err)
				v.SetStatusError(err.Error())
				return
			}
			debugLog("viewer: %s -> table %s (%d rows)\n", desc, id, total)
			v.grid.SetTableName(gridTitle(id, v.store.Dialect()))
			v.dispatch(gridcore.TableReplacedEvent{TableID: id, TotalRows: total})
		})
	}()
}
