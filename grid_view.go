package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"vgrid/internal/gridcore"
)

// Viewport handles horizontal scrolling for the grid
type Viewport struct {
	scrollX     int          // Current horizontal offset
	screen      tcell.Screen // Reference to the tcell screen
	tableWidth  int          // Total width of the grid content
	screenWidth int          // Width of the visible area
}

// NewViewport creates a new viewport
func NewViewport() *Viewport {
	return &Viewport{
		scrollX: 0,
	}
}

// SetScreen sets the screen reference for the viewport
func (v *Viewport) SetScreen(screen tcell.Screen) {
	v.screen = screen
}

// SetDimensions sets the grid and screen dimensions for scroll limiting
func (v *Viewport) SetDimensions(tableWidth, screenWidth int) {
	v.tableWidth = tableWidth
	v.screenWidth = screenWidth
	// Clamp current scroll position if needed
	if v.tableWidth > v.screenWidth {
		maxScroll := v.tableWidth - v.screenWidth
		if v.scrollX > maxScroll {
			v.scrollX = maxScroll
		}
	} else {
		v.scrollX = 0
	}
}

// SetContent calls screen.SetContent with x adjusted by scrollX
func (v *Viewport) SetContent(x, y int, ch rune, combc []rune, style tcell.Style) {
	if v.screen != nil {
		v.screen.SetContent(x-v.scrollX, y, ch, combc, style)
	}
}

// ScrollLeft scrolls the viewport left by one unit
func (v *Viewport) ScrollLeft() {
	if v.scrollX > 0 {
		v.scrollX--
	}
}

// ScrollRight scrolls the viewport right by one unit
func (v *Viewport) ScrollRight() {
	if v.tableWidth > v.screenWidth {
		maxScroll := v.tableWidth - v.screenWidth
		if v.scrollX < maxScroll {
			v.scrollX++
		}
	}
}

// GetScrollX returns the current horizontal offset
func (v *Viewport) GetScrollX() int {
	return v.scrollX
}

// EnsureColumnVisible adjusts scrollX so that a column range is visible
// startX is the left edge of the column, endX is the right edge
func (v *Viewport) EnsureColumnVisible(startX, endX, screenWidth int) {
	// endX is exclusive (one past the last character of the column)
	// The column has to fit within the visible area: [scrollX, scrollX + screenWidth)

	if endX-startX >= screenWidth {
		// Column is wider than screen, just show from the start of the column
		v.scrollX = startX
		return
	}

	if startX < v.scrollX {
		// Column starts before visible area - scroll left
		v.scrollX = startX
	} else if endX > v.scrollX+screenWidth {
		// Column ends after visible area - scroll right
		v.scrollX = endX - screenWidth
	}

	if v.scrollX < 0 {
		v.scrollX = 0
	}
}

// GridColumn describes one rendered column of the grid.
type GridColumn struct {
	Name  string
	Type  string
	Width int
}

// GridView renders a window of rows out of a much larger logical table.
// It holds only the most recently painted batch; rows scrolled into view
// before their fetch lands are drawn as pending placeholders.
type GridView struct {
	*tview.Box

	// Grid data
	columns   []GridColumn
	rows      gridcore.RowBatch
	firstRow  int // logical index of rows[0]
	topRow    int // logical index of the first visible row
	totalRows int
	tableName string

	// Display configuration
	cellPadding   int
	borderColor   tcell.Color
	headerColor   tcell.Color
	headerBgColor tcell.Color

	// Selection state (column only, the grid is read-only)
	selectedCol int

	// Scrollbar state, fraction of the scaled scroll range
	scrollFrac    float64
	showScrollbar bool

	// Callbacks
	mouseScrollFunc  func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse)
	columnSelectFunc func(col int)

	// Drag state for column resizing
	resizingColumn   int // -1 if not resizing, otherwise column index
	resizeStartX     int // Initial X position of mouse when drag started
	resizeStartWidth int // Original column width before drag

	// Viewport for horizontal scrolling
	viewport *Viewport

	rowsHeight int
}

// GridViewConfig holds configuration for creating a GridView
type GridViewConfig struct {
	Columns          []GridColumn
	MouseScrollFunc  func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse)
	ColumnSelectFunc func(col int)
}

// NewGridView creates a new grid view component with the given configuration
func NewGridView(height int, config *GridViewConfig) *GridView {
	gv := &GridView{
		Box:            tview.NewBox(),
		cellPadding:    1,
		borderColor:    tcell.ColorWhite,
		headerColor:    tcell.ColorWhite,
		headerBgColor:  tcell.ColorDarkSlateGray,
		selectedCol:    0,
		resizingColumn: -1,
		viewport:       NewViewport(),
		rowsHeight:     height,
	}

	gv.SetBorder(false) // We draw our own borders

	if config != nil {
		if len(config.Columns) > 0 {
			gv.SetColumns(config.Columns)
		}
		gv.mouseScrollFunc = config.MouseScrollFunc
		gv.columnSelectFunc = config.ColumnSelectFunc
	}

	return gv
}

// SetColumns sets the grid columns
func (gv *GridView) SetColumns(columns []GridColumn) *GridView {
	gv.columns = make([]GridColumn, len(columns))
	copy(gv.columns, columns)
	if gv.selectedCol >= len(gv.columns) {
		gv.selectedCol = 0
	}
	return gv
}

// SetTableName sets the table name to display in the header row
func (gv *GridView) SetTableName(name string) *GridView {
	gv.tableName = name
	return gv
}

// SetRows installs a freshly painted batch. firstRow is the logical index
// of the batch's first row; earlier batches are discarded wholesale.
func (gv *GridView) SetRows(firstRow int, rows gridcore.RowBatch) *GridView {
	gv.firstRow = firstRow
	gv.rows = rows
	return gv
}

// ClearRows drops the painted batch, leaving the grid blank until the next
// paint arrives.
func (gv *GridView) ClearRows() *GridView {
	gv.rows = nil
	gv.firstRow = 0
	return gv
}

// SetTopRow sets the logical index of the first visible row.
func (gv *GridView) SetTopRow(row int) *GridView {
	if row < 0 {
		row = 0
	}
	gv.topRow = row
	return gv
}

// SetTotalRows sets the logical row count of the whole table.
func (gv *GridView) SetTotalRows(n int) *GridView {
	if n < 0 {
		n = 0
	}
	gv.totalRows = n
	return gv
}

// SetScrollFraction positions the scrollbar thumb. frac is the viewport
// offset divided by the maximum scroll offset of the scaled space.
func (gv *GridView) SetScrollFraction(frac float64) *GridView {
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	gv.scrollFrac = frac
	return gv
}

// SetScrollbarVisible toggles the right-edge scrollbar gutter.
func (gv *GridView) SetScrollbarVisible(visible bool) *GridView {
	gv.showScrollbar = visible
	return gv
}

// TopRow returns the logical index of the first visible row.
func (gv *GridView) TopRow() int { return gv.topRow }

// SelectedColumn returns the currently selected column.
func (gv *GridView) SelectedColumn() int { return gv.selectedCol }

// SelectColumn selects a column and notifies the callback.
func (gv *GridView) SelectColumn(col int) *GridView {
	if col >= 0 && col < len(gv.columns) {
		changed := gv.selectedCol != col
		gv.selectedCol = col
		if changed && gv.columnSelectFunc != nil {
			gv.columnSelectFunc(col)
		}
	}
	return gv
}

// Columns returns the grid columns
func (gv *GridView) Columns() []GridColumn {
	return gv.columns
}

// GetColumnWidth returns the width of a column
func (gv *GridView) GetColumnWidth(col int) int {
	if col >= 0 && col < len(gv.columns) {
		return gv.columns[col].Width
	}
	return 0
}

// SetColumnWidth updates a column width
func (gv *GridView) SetColumnWidth(col int, width int) *GridView {
	if col >= 0 && col < len(gv.columns) {
		gv.columns[col].Width = max(3, width) // Minimum width of 3
	}
	return gv
}

// RowsHeight returns the number of data rows the grid can show.
func (gv *GridView) RowsHeight() int { return gv.rowsHeight }

// UpdateRowsHeightFromRect recalculates rowsHeight from the given outer
// height, reserving the chrome rows (table name, borders, header).
func (gv *GridView) UpdateRowsHeightFromRect(height int) {
	maxDataRows := height - 3
	if gv.tableName != "" {
		maxDataRows--
	}
	if maxDataRows < 0 {
		maxDataRows = 0
	}
	gv.rowsHeight = maxDataRows
}

// Draw renders the grid view
func (gv *GridView) Draw(screen tcell.Screen) {
	gv.Box.DrawForSubclass(screen, gv)
	x, y, width, height := gv.GetInnerRect()

	if len(gv.columns) == 0 || width <= 0 || height <= 0 {
		return
	}

	gv.UpdateRowsHeightFromRect(height)
	gv.viewport.SetScreen(screen)

	gutter := 0
	if gv.showScrollbar {
		gutter = 1
	}

	tableWidth := gv.calculateTableWidth()
	gv.viewport.SetDimensions(tableWidth, width-gutter)

	currentY := y

	if gv.tableName != "" {
		gv.drawTableNameHeader(x, currentY, tableWidth)
		currentY++
	}

	gv.drawTopBorder(x, currentY, tableWidth)
	currentY++

	if currentY < y+height {
		gv.drawHeaderRow(x, currentY)
		currentY++
	}

	if currentY < y+height {
		gv.drawHeaderSeparator(x, currentY, tableWidth)
		currentY++
	}

	dataTop := currentY
	maxDataRows := y + height - currentY
	drawnLastRow := false

	for i := 0; i < maxDataRows && currentY < y+height; i++ {
		logical := gv.topRow + i
		if logical >= gv.totalRows {
			break
		}
		gv.drawDataRow(x, currentY, logical)
		currentY++
		if logical == gv.totalRows-1 {
			drawnLastRow = true
		}
	}

	// Close the table off when its last row is on screen
	if drawnLastRow && currentY < y+height {
		gv.drawBottomBorder(x, currentY, tableWidth)
	}

	if gv.showScrollbar {
		gv.drawScrollbar(screen, x+width-1, dataTop, y+height-dataTop)
	}
}

// calculateTableWidth calculates the total width needed for the grid
func (gv *GridView) calculateTableWidth() int {
	width := 1 // Left border
	for i, col := range gv.columns {
		width += col.Width + 2*gv.cellPadding
		if i < len(gv.columns)-1 {
			width += 1 // Column separator
		}
	}
	width += 1 // Right border
	return width
}

// drawTableNameHeader draws the table name and row count above the grid
func (gv *GridView) drawTableNameHeader(x, y, tableWidth int) {
	headerText := fmt.Sprintf(" %s ▾", gv.tableName)
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	countText := fmt.Sprintf("%d rows ", gv.totalRows)

	pos := x
	for _, ch := range headerText {
		gv.viewport.SetContent(pos, y, ch, nil, style)
		pos++
	}

	countStartPos := x + tableWidth - len(countText)
	for pos < countStartPos {
		gv.viewport.SetContent(pos, y, ' ', nil, style)
		pos++
	}
	for _, ch := range countText {
		gv.viewport.SetContent(pos, y, ch, nil, style)
		pos++
	}
}

func (gv *GridView) drawTopBorder(x, y, tableWidth int) {
	gv.viewport.SetContent(x, y, '┌', nil, tcell.StyleDefault.Foreground(gv.borderColor))
	pos := x + 1

	for i, col := range gv.columns {
		cellWidth := col.Width + 2*gv.cellPadding
		for j := 0; j < cellWidth; j++ {
			gv.viewport.SetContent(pos+j, y, '─', nil, tcell.StyleDefault.Foreground(gv.borderColor))
		}
		pos += cellWidth

		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '┬', nil, tcell.StyleDefault.Foreground(gv.borderColor))
			pos++
		} else {
			gv.viewport.SetContent(pos, y, '┐', nil, tcell.StyleDefault.Foreground(gv.borderColor))
		}
	}
}

// drawHeaderRow draws the header content row
func (gv *GridView) drawHeaderRow(x, y int) {
	gv.viewport.SetContent(x, y, '│', nil, tcell.StyleDefault.Foreground(gv.borderColor))
	pos := x + 1

	for i, col := range gv.columns {
		bg := gv.headerBgColor
		if i == gv.selectedCol {
			bg = tcell.ColorDarkBlue
		}
		cellStyle := tcell.StyleDefault.Foreground(gv.headerColor).Background(bg)

		for j := 0; j < gv.cellPadding; j++ {
			gv.viewport.SetContent(pos+j, y, ' ', nil, cellStyle)
		}
		pos += gv.cellPadding

		headerText := padCellToWidth(col.Name, col.Width)
		for j, ch := range headerText {
			gv.viewport.SetContent(pos+j, y, ch, nil, cellStyle.Bold(true))
		}
		pos += col.Width

		for j := 0; j < gv.cellPadding; j++ {
			gv.viewport.SetContent(pos+j, y, ' ', nil, cellStyle)
		}
		pos += gv.cellPadding

		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '│', nil, tcell.StyleDefault.Foreground(gv.borderColor))
			pos++
		}
	}

	gv.viewport.SetContent(pos, y, '│', nil, tcell.StyleDefault.Foreground(gv.borderColor))
}

// drawHeaderSeparator draws the heavy line separator between header and data
func (gv *GridView) drawHeaderSeparator(x, y, tableWidth int) {
	gv.viewport.SetContent(x, y, '┝', nil, tcell.StyleDefault.Foreground(gv.borderColor))
	pos := x + 1

	for i, col := range gv.columns {
		cellWidth := col.Width + 2*gv.cellPadding
		for j := 0; j < cellWidth; j++ {
			gv.viewport.SetContent(pos+j, y, '━', nil, tcell.StyleDefault.Foreground(gv.borderColor))
		}
		pos += cellWidth

		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '┿', nil, tcell.StyleDefault.Foreground(gv.borderColor))
			pos++
		} else {
			gv.viewport.SetContent(pos, y, '┥', nil, tcell.StyleDefault.Foreground(gv.borderColor))
		}
	}
}

// drawDataRow draws the data row at the given logical index, or a pending
// placeholder when the painted batch does not cover it.
func (gv *GridView) drawDataRow(x, y, logical int) {
	var row []any
	if idx := logical - gv.firstRow; idx >= 0 && idx < len(gv.rows) {
		row = gv.rows[idx]
	}

	borderStyle := tcell.StyleDefault.Foreground(gv.borderColor)
	gv.viewport.SetContent(x, y, '│', nil, borderStyle)
	pos := x + 1

	for i, col := range gv.columns {
		cellStyle := tcell.StyleDefault
		if i == gv.selectedCol {
			cellStyle = cellStyle.Background(tcell.ColorDarkBlue).Foreground(tcell.ColorWhite)
		}

		for j := 0; j < gv.cellPadding; j++ {
			gv.viewport.SetContent(pos+j, y, ' ', nil, cellStyle)
		}
		pos += gv.cellPadding

		if row == nil {
			// Pending row: fetch in flight, show a dotted placeholder
			pendingStyle := cellStyle.Foreground(tcell.ColorGray)
			for k := 0; k < col.Width; k++ {
				gv.viewport.SetContent(pos+k, y, '·', nil, pendingStyle)
			}
		} else {
			var value any
			if i < len(row) {
				value = row[i]
			}
			cellText, style := formatCellValue(value, cellStyle)
			cellText = padCellToWidth(cellText, col.Width)
			for j, ch := range cellText {
				gv.viewport.SetContent(pos+j, y, ch, nil, style)
			}
		}
		pos += col.Width

		for j := 0; j < gv.cellPadding; j++ {
			gv.viewport.SetContent(pos+j, y, ' ', nil, cellStyle)
		}
		pos += gv.cellPadding

		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '│', nil, tcell.StyleDefault.Foreground(gv.borderColor))
			pos++
		}
	}

	gv.viewport.SetContent(pos, y, '│', nil, borderStyle)
}

// drawBottomBorder draws the bottom border of the grid
func (gv *GridView) drawBottomBorder(x, y, tableWidth int) {
	gv.viewport.SetContent(x, y, '└', nil, tcell.StyleDefault.Foreground(gv.borderColor))
	pos := x + 1

	for i, col := range gv.columns {
		cellWidth := col.Width + 2*gv.cellPadding
		for j := 0; j < cellWidth; j++ {
			gv.viewport.SetContent(pos+j, y, '─', nil, tcell.StyleDefault.Foreground(gv.borderColor))
		}
		pos += cellWidth

		if i < len(gv.columns)-1 {
			gv.viewport.SetContent(pos, y, '┴', nil, tcell.StyleDefault.Foreground(gv.borderColor))
			pos++
		} else {
			gv.viewport.SetContent(pos, y, '┘', nil, tcell.StyleDefault.Foreground(gv.borderColor))
		}
	}
}

// drawScrollbar draws the vertical scrollbar gutter. The thumb position is
// the viewport's fraction of the scaled scroll range, not of the row count,
// so it stays meaningful for tables far beyond the addressable extent.
func (gv *GridView) drawScrollbar(screen tcell.Screen, x, y, height int) {
	if height <= 0 {
		return
	}
	trackStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	thumbStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	thumbY := int(gv.scrollFrac * float64(height-1))
	for i := 0; i < height; i++ {
		if i == thumbY {
			screen.SetContent(x, y+i, '█', nil, thumbStyle)
		} else {
			screen.SetContent(x, y+i, '░', nil, trackStyle)
		}
	}
}

// InputHandler handles keyboard input for column selection
func (gv *GridView) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return gv.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		switch event.Key() {
		case tcell.KeyLeft:
			if gv.selectedCol > 0 {
				gv.SelectColumn(gv.selectedCol - 1)
			}
		case tcell.KeyRight:
			if gv.selectedCol < len(gv.columns)-1 {
				gv.SelectColumn(gv.selectedCol + 1)
			}
		case tcell.KeyHome:
			gv.SelectColumn(0)
		case tcell.KeyEnd:
			gv.SelectColumn(len(gv.columns) - 1)
		}
	})
}

// MouseHandler handles mouse events for the grid
func (gv *GridView) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return gv.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
		x, y := event.Position()

		if !gv.InRect(x, y) {
			return false, nil
		}

		switch action {
		case tview.MouseLeftDown:
			setFocus(gv)
			consumed = true

			// Check if clicked on column separator for drag resize
			separatorCol := gv.GetColumnSeparatorAtPosition(x, y)
			if separatorCol >= 0 {
				gv.resizingColumn = separatorCol
				gv.resizeStartX = x
				gv.resizeStartWidth = gv.columns[separatorCol].Width
				return true, gv // Capture further mouse events
			}

			if col := gv.GetColumnAtPosition(x, y); col >= 0 {
				gv.SelectColumn(col)
			}
		case tview.MouseMove:
			if gv.resizingColumn >= 0 {
				delta := x - gv.resizeStartX
				gv.SetColumnWidth(gv.resizingColumn, gv.resizeStartWidth+delta)
				return true, gv // Continue capturing
			}
		case tview.MouseLeftUp:
			if gv.resizingColumn >= 0 {
				gv.resizingColumn = -1
				return true, nil // Release capture
			}
		default:
			// Delegate scroll and other events to mouseScrollFunc if set
			if gv.mouseScrollFunc != nil {
				action, event = gv.mouseScrollFunc(action, event)
				if action == tview.MouseConsumed {
					consumed = true
				}
			}
		}

		return consumed, nil
	})
}

// GetColumnPosition returns the start and end x positions of a column
// relative to the grid. startX is the leftmost position of the column
// content (including padding), endX is one past the rightmost.
func (gv *GridView) GetColumnPosition(col int) (startX, endX int) {
	if col < 0 || col >= len(gv.columns) {
		return 0, 0
	}

	pos := 1 // Start after the left border
	for i := 0; i < col; i++ {
		pos += gv.columns[i].Width + 2*gv.cellPadding
		if i < len(gv.columns)-1 {
			pos += 1 // Column separator
		}
	}

	startX = pos
	endX = pos + gv.columns[col].Width + 2*gv.cellPadding
	return startX, endX
}

// GetColumnAtPosition returns the column index for screen coordinates,
// or -1 if the position is outside the grid columns.
func (gv *GridView) GetColumnAtPosition(screenX, screenY int) int {
	x, _, width, _ := gv.GetInnerRect()
	if screenX < x || screenX >= x+width {
		return -1
	}

	relativeX := screenX - x + gv.viewport.GetScrollX()
	if relativeX < 1 {
		return -1 // Left border
	}

	currentX := 1
	for i, col := range gv.columns {
		cellWidth := col.Width + 2*gv.cellPadding
		if relativeX >= currentX && relativeX < currentX+cellWidth {
			return i
		}
		currentX += cellWidth
		if i < len(gv.columns)-1 {
			if relativeX == currentX {
				return -1 // Separator
			}
			currentX += 1
		}
	}
	return -1
}

// GetColumnSeparatorAtPosition returns the column index if the position is
// on a column separator, or -1 if not. Uses tolerance of ±1 for easier
// clicking.
func (gv *GridView) GetColumnSeparatorAtPosition(screenX, screenY int) int {
	x, y, width, _ := gv.GetInnerRect()

	if screenX < x || screenX >= x+width {
		return -1
	}

	// Allow grabbing on the header row or any data row
	relativeY := screenY - y
	headerRow := 1
	if gv.tableName != "" {
		headerRow = 2
	}
	if relativeY < headerRow {
		return -1
	}

	relativeX := screenX - x + gv.viewport.GetScrollX()
	if relativeX < 1 {
		return -1
	}

	currentX := 1
	for i, col := range gv.columns {
		cellWidth := col.Width + 2*gv.cellPadding
		currentX += cellWidth

		if i < len(gv.columns)-1 {
			if relativeX >= currentX-1 && relativeX <= currentX+1 {
				return i // Column to the left of this separator
			}
			currentX += 1
		}
	}

	return -1
}

func formatCellValue(value any, cellStyle tcell.Style) (string, tcell.Style) {
	if value == nil {
		return "null", cellStyle.Italic(true).Foreground(tcell.ColorGray)
	}

	switch v := value.(type) {
	case []byte:
		return string(v), cellStyle
	case string:
		return v, cellStyle
	case int64:
		return strconv.FormatInt(v, 10), cellStyle
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), cellStyle
	case bool:
		if v {
			return "true", cellStyle
		}
		return "false", cellStyle
	case time.Time:
		// ISO 8601, date-only when there is no time component
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02"), cellStyle
		}
		return v.Format(time.RFC3339), cellStyle
	default:
		return fmt.Sprintf("%v", value), cellStyle
	}
}

// padCellToWidth pads text to a specific width, truncating if too long
func padCellToWidth(text string, width int) string {
	if len(text) >= width {
		if width >= 3 {
			return text[:width-1] + "…"
		}
		return text[:width]
	}
	spaces := ""
	for i := 0; i < width-len(text); i++ {
		spaces += " "
	}
	return text + spaces
}
