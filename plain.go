package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vgrid/internal/gridcore"
	"vgrid/internal/tablestore"
)

// plainModel is the bubbletea frontend: a minimal scrolling viewer for
// terminals where the full tview chrome is unwanted (--plain). It renders
// the grid as a markdown-style table and implements gridcore.RenderSink.
//
// bubbletea's Update runs on a single goroutine, which is the event thread
// the controller requires; fetch completions are delivered via Program.Send.
type plainModel struct {
	ctrl    *gridcore.Controller
	store   *tablestore.Store
	columns []tablestore.Column

	firstRow int // logical index of rows[0]
	rows     gridcore.RowBatch

	focusCol    int
	lastSortCol int
	lastSortAsc bool

	width  int
	height int

	statusMsg string
	errorMsg  string
}

// Messages
type gridEventMsg struct {
	ev gridcore.Event
}

type tableOpMsg struct {
	tableID string
	total   int
	err     error
}

func runPlainViewer(store *tablestore.Store, tableID string, totalRows int, cfg gridcore.Config) error {
	ctx := context.Background()

	cols, err := store.Columns(ctx, tableID)
	if err != nil {
		CaptureError(err)
		return err
	}

	m := &plainModel{
		store:       store,
		columns:     cols,
		lastSortCol: -1,
	}

	var p *tea.Program
	m.ctrl = gridcore.NewController(ctx, cfg, store, m, func(ev gridcore.Event) {
		p.Send(gridEventMsg{ev})
	})
	m.ctrl.OnError = func(err error) {
		CaptureError(err)
		m.errorMsg = err.Error()
	}

	p = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		p.Send(gridEventMsg{gridcore.TableOpenedEvent{TableID: tableID, TotalRows: totalRows}})
	}()

	if _, err := p.Run(); err != nil {
		CaptureError(err)
		return err
	}
	return nil
}

func (m *plainModel) Init() tea.Cmd {
	return nil
}

// RenderBatch implements gridcore.RenderSink.
func (m *plainModel) RenderBatch(physicalOffset float64, rows gridcore.RowBatch) {
	m.firstRow = int(math.Round(m.ctrl.Mapping().PhysicalToLogical(physicalOffset)))
	m.rows = rows
}

// Clear implements gridcore.RenderSink.
func (m *plainModel) Clear() {
	m.rows = nil
	m.firstRow = 0
}

func (m *plainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ctrl.Dispatch(gridcore.ResizeEvent{Height: float64(m.dataHeight())})
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case gridEventMsg:
		m.ctrl.Dispatch(msg.ev)
		return m, nil

	case tableOpMsg:
		if msg.err != nil {
			CaptureError(msg.err)
			m.errorMsg = msg.err.Error()
			return m, nil
		}
		m.errorMsg = ""
		m.ctrl.Dispatch(gridcore.TableReplacedEvent{TableID: msg.tableID, TotalRows: msg.total})
		return m, nil
	}

	return m, nil
}

// dataHeight is the number of visible data rows: total minus header,
// separator, and status bar.
func (m *plainModel) dataHeight() int {
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m *plainModel) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.dataHeight() - 1
	if page < 1 {
		page = 1
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		m.ctrl.Dispatch(gridcore.ScrollByRowsEvent{Rows: -1})

	case "down", "j":
		m.ctrl.Dispatch(gridcore.ScrollByRowsEvent{Rows: 1})

	case "pgup":
		m.ctrl.Dispatch(gridcore.ScrollByRowsEvent{Rows: -page})

	case "pgdown":
		m.ctrl.Dispatch(gridcore.ScrollByRowsEvent{Rows: page})

	case "home", "g":
		m.ctrl.Dispatch(gridcore.ScrollToEvent{Offset: 0})

	case "end", "G":
		mp := m.ctrl.Mapping()
		m.ctrl.Dispatch(gridcore.ScrollToEvent{Offset: mp.MaxScrollOffset(m.ctrl.Viewport().Height)})

	case "left", "h":
		if m.focusCol > 0 {
			m.focusCol--
		}

	case "right", "l":
		if m.focusCol < len(m.columns)-1 {
			m.focusCol++
		}

	case "s":
		return m, m.sortByFocusColumn()

	case "r":
		m.lastSortCol = -1
		return m, m.tableOp(func(ctx context.Context) (string, int, error) {
			return m.store.Reset(ctx)
		})
	}

	return m, nil
}

func (m *plainModel) sortByFocusColumn() tea.Cmd {
	if m.focusCol < 0 || m.focusCol >= len(m.columns) {
		return nil
	}
	asc := true
	if m.lastSortCol == m.focusCol {
		asc = !m.lastSortAsc
	}
	m.lastSortCol = m.focusCol
	m.lastSortAsc = asc

	name := m.columns[m.focusCol].Name
	return m.tableOp(func(ctx context.Context) (string, int, error) {
		return m.store.Sort(ctx, m.currentTableID(), []tablestore.SortColumn{{Column: name, Ascending: asc}})
	})
}

func (m *plainModel) currentTableID() string {
	if s := m.ctrl.Session(); s != nil {
		return s.ID
	}
	return m.store.Original()
}

func (m *plainModel) tableOp(op func(ctx context.Context) (string, int, error)) tea.Cmd {
	return func() tea.Msg {
		id, total, err := op(context.Background())
		return tableOpMsg{tableID: id, total: total, err: err}
	}
}

func (m *plainModel) View() string {
	if m.ctrl.Session() == nil {
		if m.errorMsg != "" {
			return fmt.Sprintf("Error: %s\n\nPress 'q' to quit.", m.errorMsg)
		}
		return "Loading table data..."
	}

	var b strings.Builder

	b.WriteString(m.renderGrid())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

func (m *plainModel) renderGrid() string {
	if len(m.columns) == 0 {
		return "No data available"
	}

	var b strings.Builder

	colWidths := m.calculateColumnWidths()

	// Render header
	b.WriteString("|")
	for i, col := range m.columns {
		width := colWidths[i]
		content := truncateString(col.Name, width-2)
		if i == m.focusCol {
			content = lipgloss.NewStyle().Bold(true).Render(content)
		}
		b.WriteString(fmt.Sprintf(" %-*s |", width-2, content))
	}
	b.WriteString("\n")

	// Render separator
	b.WriteString("|")
	for _, width := range colWidths {
		b.WriteString(strings.Repeat("-", width-1))
		b.WriteString("|")
	}
	b.WriteString("\n")

	// Render visible rows out of the painted window
	top := m.ctrl.FirstVisibleRow()
	total := m.ctrl.Mapping().TotalRows
	bottom := top + m.dataHeight()
	if bottom > total {
		bottom = total
	}

	for logical := top; logical < bottom; logical++ {
		b.WriteString("|")

		var row []any
		if idx := logical - m.firstRow; idx >= 0 && idx < len(m.rows) {
			row = m.rows[idx]
		}

		for colIdx := range m.columns {
			width := colWidths[colIdx]
			var content string
			if row == nil {
				content = "…" // fetch in flight
			} else if colIdx < len(row) && row[colIdx] != nil {
				content = fmt.Sprintf("%v", row[colIdx])
			}
			content = truncateString(content, width-2)

			if colIdx == m.focusCol {
				content = lipgloss.NewStyle().Background(lipgloss.Color("4")).Render(content)
			}

			b.WriteString(fmt.Sprintf(" %-*s |", width-2, content))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func (m *plainModel) renderStatusBar() string {
	mp := m.ctrl.Mapping()
	top := m.ctrl.FirstVisibleRow()

	status := fmt.Sprintf("%s | Row %d/%d", m.currentTableID(), top+1, mp.TotalRows)
	if mp.ScaleFactor > 1 {
		status += fmt.Sprintf(" | scale x%.1f", mp.ScaleFactor)
	}

	if m.errorMsg != "" {
		status = fmt.Sprintf("Error: %s", m.errorMsg)
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color("8")).
		Foreground(lipgloss.Color("15")).
		Width(m.width).
		Render(status)
}

func (m *plainModel) calculateColumnWidths() []int {
	numCols := len(m.columns)

	widths := make([]int, numCols)
	availableWidth := m.width - numCols - 1 // Account for pipes
	colWidth := availableWidth / numCols

	if colWidth < 8 {
		colWidth = 8
	}

	for i := range widths {
		widths[i] = colWidth
	}

	return widths
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	return s[:maxLen-1] + "…"
}
