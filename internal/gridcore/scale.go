package gridcore

import "math"

// ScaleMapping compresses logical row space into the bounded physical
// coordinate space of the rendering surface. Hosts cap their addressable
// scroll extent well below totalRows*rowHeight for large datasets, so all
// physical offsets are divided by ScaleFactor.
//
// A mapping is a pure function of (TotalRows, RowHeight, MaxExtent) and is
// rebuilt, never mutated, whenever either input changes.
type ScaleMapping struct {
	RowHeight   float64
	TotalRows   int
	MaxExtent   float64
	ScaleFactor float64
}

// NewScaleMapping derives a mapping for the given row count. A negative
// totalRows is a programming fault upstream; it is clamped to zero here so
// the mapping invariants hold regardless.
func NewScaleMapping(totalRows int, rowHeight, maxExtent float64) ScaleMapping {
	if totalRows < 0 {
		debugLog("scale: clamping negative totalRows %d\n", totalRows)
		totalRows = 0
	}
	return ScaleMapping{
		RowHeight:   rowHeight,
		TotalRows:   totalRows,
		MaxExtent:   maxExtent,
		ScaleFactor: computeScaleFactor(totalRows, rowHeight, maxExtent),
	}
}

// computeScaleFactor returns 1 while the full logical extent fits the
// surface, otherwise the ratio that compresses it to exactly MaxExtent.
func computeScaleFactor(totalRows int, rowHeight, maxExtent float64) float64 {
	if totalRows <= 0 {
		return 1
	}
	logical := float64(totalRows) * rowHeight
	if logical <= maxExtent {
		return 1
	}
	return logical / maxExtent
}

// LogicalToPhysical maps a row index to its physical scroll coordinate.
func (m ScaleMapping) LogicalToPhysical(index int) float64 {
	return float64(index) * m.RowHeight / m.ScaleFactor
}

// PhysicalToLogical maps a physical offset back to (fractional) row index.
// Callers floor or ceil as appropriate for their bound.
func (m ScaleMapping) PhysicalToLogical(offset float64) float64 {
	return offset * m.ScaleFactor / m.RowHeight
}

// SpacerExtent is the physical height of the whole dataset under this
// mapping. It never exceeds MaxExtent.
func (m ScaleMapping) SpacerExtent() float64 {
	return float64(m.TotalRows) * m.RowHeight / m.ScaleFactor
}

// MaxScrollOffset is the largest meaningful physical offset for a viewport
// of the given height: scrolled fully to the bottom.
func (m ScaleMapping) MaxScrollOffset(viewportHeight float64) float64 {
	return math.Max(0, m.SpacerExtent()-viewportHeight)
}
