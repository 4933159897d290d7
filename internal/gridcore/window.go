package gridcore

import "math"

// Viewport is the host's current scroll position and height, both in
// physical coordinates. It is owned by the glue layer and updated on every
// scroll or resize notification.
type Viewport struct {
	Offset float64
	Height float64
}

// Window is a half-open logical row range [Start, Start+Count), clamped to
// [0, totalRows) and padded by the configured buffer on both sides.
type Window struct {
	Start int
	Count int
}

func (w Window) End() int { return w.Start + w.Count }

func (w Window) Empty() bool { return w.Count <= 0 }

func (w Window) Contains(i int) bool { return i >= w.Start && i < w.End() }

// ComputeWindow derives the buffered fetch window for a viewport under a
// scale mapping. The result always fully covers the visible range, so a
// fetch for it can never leave visible rows blank.
func ComputeWindow(vp Viewport, m ScaleMapping, buffer int) Window {
	if m.TotalRows <= 0 {
		return Window{}
	}
	visStart := int(math.Floor(m.PhysicalToLogical(vp.Offset)))
	visEnd := int(math.Ceil(m.PhysicalToLogical(vp.Offset + vp.Height)))

	start := clampInt(visStart-buffer, 0, m.TotalRows)
	end := clampInt(visEnd+buffer, 0, m.TotalRows)
	return Window{Start: start, Count: end - start}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
