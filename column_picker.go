package main

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// fuzzyMatch performs fuzzy matching and returns match status and positions.
// It matches characters from search in order within text (case-insensitive).
// Returns true if all characters in search were found, and the positions of those characters.
func fuzzyMatch(search, text string) (bool, []int) {
	search = strings.ToLower(search)
	text = strings.ToLower(text)

	var positions []int
	searchIdx := 0

	for i, char := range text {
		if searchIdx < len(search) && char == rune(search[searchIdx]) {
			positions = append(positions, i)
			searchIdx++
		}
	}

	return searchIdx == len(search), positions
}

// formatNameWithColor formats a column name with tview color codes
// highlighting the matched positions in bold dark green.
func formatNameWithColor(name string, positions []int) string {
	if len(positions) == 0 {
		return name
	}

	highlightMap := make(map[int]bool)
	for _, pos := range positions {
		highlightMap[pos] = true
	}

	var result strings.Builder
	for i, r := range []rune(name) {
		if highlightMap[i] {
			result.WriteString("[darkgreen::b]")
			result.WriteRune(r)
			result.WriteString("[-::-]")
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// ColumnPicker is a searchable dropdown overlay for jumping to a column.
type ColumnPicker struct {
	*tview.Box
	items         []string          // All column names
	searchText    string            // Current search text
	selectedIndex int               // Highlighted item in dropdown
	dropdownList  *tview.List       // Dropdown list for showing filtered columns
	maxVisible    int               // Max items to show in dropdown (6)
	inputField    *tview.InputField // Reference to the currently created input field
	innerFlex     *tview.Flex       // Inner flex container
	dropdownFlex  *tview.Flex       // Flex container for dropdown (to allow resizing)

	// Callbacks
	onSelect func(columnName string) // Called when a column is selected
	onClose  func()                  // Called when the picker should be closed
}

// NewColumnPicker creates a new column picker component.
func NewColumnPicker(columns []string, onSelect func(string), onClose func()) *ColumnPicker {
	cp := &ColumnPicker{
		Box:           tview.NewBox(),
		items:         columns,
		selectedIndex: 0,
		maxVisible:    6,
		onSelect:      onSelect,
		onClose:       onClose,
	}

	// Pre-initialize the layout so the input field exists immediately
	filtered, matchPositions := cp.calculateFiltered("")
	cp.buildInnerLayout(filtered, matchPositions)

	return cp
}

// calculateFiltered filters the column list based on search text and returns
// filtered columns and match positions.
func (cp *ColumnPicker) calculateFiltered(search string) ([]string, map[int][]int) {
	filtered := []string{}
	matchPositions := make(map[int][]int)

	if search == "" {
		filtered = cp.items
		for i := range cp.items {
			matchPositions[i] = []int{}
		}
	} else {
		for _, name := range cp.items {
			matches, positions := fuzzyMatch(search, name)
			if matches {
				filtered = append(filtered, name)
				matchPositions[len(filtered)-1] = positions
			}
		}
	}

	return filtered, matchPositions
}

// Draw implements tview.Primitive and renders the picker.
// It calculates filtered results and match positions on each frame.
func (cp *ColumnPicker) Draw(screen tcell.Screen) {
	cp.Box.DrawForSubclass(screen, cp)

	filtered, matchPositions := cp.calculateFiltered(cp.searchText)

	if cp.innerFlex == nil {
		cp.buildInnerLayout(filtered, matchPositions)
	} else {
		// Just update the dropdown list without rebuilding the input field
		cp.updateDropdownList(filtered, matchPositions)
	}

	if cp.innerFlex != nil {
		x, y, width, height := cp.GetInnerRect()
		cp.innerFlex.SetRect(x, y, width, height)
		cp.innerFlex.Draw(screen)
	}
}

// InputHandler returns the handler for keyboard events.
// This forwards input to the input field so it can receive keystrokes.
func (cp *ColumnPicker) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return cp.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		if cp.inputField != nil {
			if handler := cp.inputField.InputHandler(); handler != nil {
				handler(event, setFocus)
				return
			}
		}
	})
}

// MouseHandler returns the handler for mouse events.
// This enables hover highlighting and click selection in the dropdown list.
func (cp *ColumnPicker) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
	return cp.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
		mouseX, mouseY := event.Position()

		if cp.dropdownList != nil {
			listX, listY, listWidth, listHeight := cp.dropdownList.GetRect()

			if mouseX >= listX && mouseX < listX+listWidth &&
				mouseY >= listY && mouseY < listY+listHeight {

				filtered, _ := cp.calculateFiltered(cp.searchText)
				if len(filtered) == 0 {
					return false, nil
				}

				itemIndex := mouseY - listY
				if itemIndex >= 0 && itemIndex < len(filtered) {
					switch action {
					case tview.MouseMove:
						// Hover: highlight the item
						cp.dropdownList.SetCurrentItem(itemIndex)
						cp.selectedIndex = itemIndex
						return true, nil

					case tview.MouseLeftClick:
						if cp.onSelect != nil {
							cp.clearSearchText()
							cp.onSelect(filtered[itemIndex])
						}
						return true, nil
					}
				}
			}
		}

		// Forward other mouse events to inner components
		if cp.innerFlex != nil {
			if handler := cp.innerFlex.MouseHandler(); handler != nil {
				consumed, primitive := handler(action, event, setFocus)
				if consumed {
					return true, primitive
				}
			}
		}

		return false, nil
	})
}

// Focus is called when this primitive receives focus.
func (cp *ColumnPicker) Focus(delegate func(p tview.Primitive)) {
	if cp.inputField != nil {
		delegate(cp.inputField)
	}
}

// HasFocus returns whether or not this primitive has focus.
func (cp *ColumnPicker) HasFocus() bool {
	if cp.inputField != nil {
		return cp.inputField.HasFocus()
	}
	return false
}

// buildInnerLayout builds the internal flex layout with input field and dropdown.
func (cp *ColumnPicker) buildInnerLayout(filtered []string, matchPositions map[int][]int) {
	inputField := cp.createInputField()
	cp.createDropdownListWithData(filtered, matchPositions)

	listHeight := len(filtered)
	if listHeight == 0 {
		listHeight = 1 // Show "No results"
	}
	if listHeight > cp.maxVisible {
		listHeight = cp.maxVisible
	}

	// Inner flex: input field + dropdown list
	cp.dropdownFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(inputField, 1, 0, true).
		AddItem(cp.dropdownList, listHeight, 0, false)

	// Outer flex: 1-character left padding + inner flex
	cp.innerFlex = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(cp.dropdownFlex, 0, 1, true)
}

// updateDropdownList updates just the dropdown list without rebuilding the input field.
func (cp *ColumnPicker) updateDropdownList(filtered []string, matchPositions map[int][]int) {
	if cp.dropdownFlex == nil {
		return
	}

	cp.dropdownFlex.RemoveItem(cp.dropdownList)
	cp.createDropdownListWithData(filtered, matchPositions)

	listHeight := len(filtered)
	if listHeight == 0 {
		listHeight = 1 // Show "No results"
	}
	if listHeight > cp.maxVisible {
		listHeight = cp.maxVisible
	}

	cp.dropdownFlex.AddItem(cp.dropdownList, listHeight, 0, false)
}

// createInputField creates and returns a new input field for the search box.
func (cp *ColumnPicker) createInputField() *tview.InputField {
	inputField := tview.NewInputField().
		SetLabel("").
		SetText(cp.searchText).
		SetPlaceholder("Search for columns...").
		SetFieldWidth(0)

	cp.inputField = inputField

	// Update search text (dropdown will be updated in Draw)
	inputField.SetChangedFunc(func(text string) {
		cp.searchText = text
	})

	// Handle keyboard navigation and selection
	inputField.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		filtered, _ := cp.calculateFiltered(cp.searchText)

		switch event.Key() {
		case tcell.KeyEscape:
			if cp.onClose != nil {
				cp.onClose()
			}
			return nil // Consume the event
		case tcell.KeyDown, tcell.KeyTab:
			if cp.dropdownList != nil && len(filtered) > 0 {
				cp.selectedIndex++
				cp.dropdownList.SetCurrentItem(cp.selectedIndex)
				return tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)
			}
			return nil
		case tcell.KeyUp, tcell.KeyBacktab:
			if cp.dropdownList != nil && len(filtered) > 0 {
				cp.selectedIndex--
				cp.dropdownList.SetCurrentItem(cp.selectedIndex)
				return tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)
			}
			return nil
		case tcell.KeyEnter:
			if cp.dropdownList != nil && len(filtered) > 0 {
				if idx := cp.dropdownList.GetCurrentItem(); idx >= 0 && idx < len(filtered) {
					if cp.onSelect != nil {
						cp.clearSearchText()
						cp.onSelect(filtered[idx])
					}
				}
				return nil // Consume the event
			}
		}
		return event
	})

	return inputField
}

// clearSearchText clears the search text and updates the input field.
func (cp *ColumnPicker) clearSearchText() {
	cp.searchText = ""
	if cp.inputField != nil {
		cp.inputField.SetText("")
	}
	cp.selectedIndex = 0
}

// createDropdownListWithData creates and populates the dropdown list with pre-calculated filtered results.
func (cp *ColumnPicker) createDropdownListWithData(filtered []string, matchPositions map[int][]int) {
	cp.dropdownList = tview.NewList().
		SetWrapAround(true).
		ShowSecondaryText(false)

	if len(filtered) == 0 {
		cp.dropdownList.AddItem("No results", "", rune(0), nil)
	} else {
		for i, columnName := range filtered {
			positions := matchPositions[i]
			displayText := formatNameWithColor(columnName, positions)

			// Capture column name in closure for selection handler
			name := columnName
			cp.dropdownList.AddItem(displayText, "", rune(0), func() {
				if cp.onSelect != nil {
					cp.clearSearchText()
					cp.onSelect(name)
				}
			})
		}
	}

	if cp.selectedIndex >= 0 && cp.selectedIndex < len(filtered) {
		cp.dropdownList.SetCurrentItem(cp.selectedIndex)
	}

	// Handle navigation in dropdown
	cp.dropdownList.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentItem := cp.dropdownList.GetCurrentItem()

		switch event.Key() {
		case tcell.KeyEscape:
			// Return focus to input field
			return tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone)
		case tcell.KeyUp:
			// If at first item, move focus back to input field
			if currentItem == 0 {
				return tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone)
			}
			return event
		case tcell.KeyBacktab:
			return event
		case tcell.KeyEnter:
			if currentItem >= 0 && currentItem < len(filtered) {
				if cp.onSelect != nil {
					cp.clearSearchText()
					cp.onSelect(filtered[currentItem])
				}
			}
			return nil // Consume the event
		}
		return event
	})
}
