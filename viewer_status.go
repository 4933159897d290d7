package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (v *Viewer) setupStatusBar() {
	v.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWrap(false)

	v.statusBar.SetBackgroundColor(tcell.ColorLightGray)
	v.statusBar.SetTextColor(tcell.ColorBlack)
	v.statusBar.SetText("Ready")
}

func (v *Viewer) setupCommandPalette() {
	inputField := tview.NewInputField()
	v.commandPalette = inputField.
		SetLabel("").
		SetFieldBackgroundColor(tcell.ColorBlack).
		SetFieldTextColor(tcell.ColorWhite)

	v.commandPalette.SetBackgroundColor(tcell.ColorBlack)

	v.setPaletteMode(PaletteModeDefault, false)

	v.commandPalette.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			text := v.commandPalette.GetText()
			if v.paletteMode == PaletteModeFilter {
				v.applyFilter(text)
			}
			v.setPaletteMode(PaletteModeDefault, false)
			v.app.SetFocus(v.grid)
			return nil
		case tcell.KeyEscape:
			v.setPaletteMode(PaletteModeDefault, false)
			v.app.SetFocus(v.grid)
			return nil
		case tcell.KeyCtrlQ:
			v.app.Stop()
			return nil
		}
		return event
	})
}

func (v *Viewer) setPaletteMode(mode PaletteMode, focus bool) {
	if breadcrumbs != nil && mode != v.paletteMode {
		modeStr := "Default"
		if mode == PaletteModeFilter {
			modeStr = "Filter"
		}
		breadcrumbs.RecordNavigation(modeStr, "Palette mode changed")
	}

	v.paletteMode = mode
	v.commandPalette.SetLabel(mode.Glyph())
	// Clear input when switching modes
	v.commandPalette.SetText("")
	style := v.commandPalette.GetPlaceholderStyle().Italic(true)
	v.commandPalette.SetPlaceholderStyle(style)

	switch mode {
	case PaletteModeDefault:
		v.commandPalette.SetPlaceholder("s: Sort · f: Filter · r: Reset · o: Columns · gg/G: Top/Bottom · q: Quit")
	case PaletteModeFilter:
		v.commandPalette.SetPlaceholder("WHERE condition… (Esc to exit)")
	}

	if focus {
		v.app.SetFocus(v.commandPalette)
	}
}

// Status bar API methods
func (v *Viewer) SetStatusMessage(message string) {
	if v.statusBar != nil {
		v.statusBar.SetText(message)
	}
}

func (v *Viewer) SetStatusError(message string) {
	if v.statusBar != nil {
		v.statusBar.SetText("[red]ERROR: " + message + "[white]")
	}
}

// updateStatusWithPosition shows the visible row range, the total count,
// and the selected column in the status bar.
func (v *Viewer) updateStatusWithPosition() {
	if v.busy || v.statusBar == nil {
		return
	}

	m := v.ctrl.Mapping()
	if m.TotalRows == 0 {
		v.SetStatusMessage("empty table")
		return
	}

	top := v.ctrl.FirstVisibleRow()
	bottom := top + v.grid.RowsHeight()
	if bottom > m.TotalRows {
		bottom = m.TotalRows
	}

	cols := v.grid.Columns()
	colName := ""
	if sel := v.grid.SelectedColumn(); sel >= 0 && sel < len(cols) {
		colName = cols[sel].Name
	}

	status := fmt.Sprintf("rows %d–%d of %d", top+1, bottom, m.TotalRows)
	if colName != "" {
		status += fmt.Sprintf(" [darkgreen]%s", colName)
	}
	if m.ScaleFactor > 1 {
		status += fmt.Sprintf(" [gray]×%.1f", m.ScaleFactor)
	}
	v.SetStatusMessage(status)
}

// ensureColumnVisible adjusts the viewport to show the selected column and
// its borders
func (v *Viewer) ensureColumnVisible(col int) {
	cols := v.grid.Columns()
	if col < 0 || col >= len(cols) {
		return
	}

	_, _, width, _ := v.grid.GetInnerRect()
	if width <= 0 {
		return
	}

	startX, endX := v.grid.GetColumnPosition(col)

	// Include the border or separator on each side of the column
	if col == 0 {
		startX = 0
	} else {
		startX--
	}
	endX++

	v.grid.viewport.EnsureColumnVisible(startX, endX, width)
}
