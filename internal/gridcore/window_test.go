package gridcore

import (
	"math"
	"math/rand"
	"testing"
)

func TestComputeWindow(t *testing.T) {
	m := NewScaleMapping(1000, 1, 1<<20) // scaleFactor 1: physical == logical

	tests := []struct {
		name      string
		vp        Viewport
		buffer    int
		wantStart int
		wantEnd   int
	}{
		{
			name:      "top of table",
			vp:        Viewport{Offset: 0, Height: 40},
			buffer:    10,
			wantStart: 0,
			wantEnd:   50,
		},
		{
			name:      "middle of table",
			vp:        Viewport{Offset: 500, Height: 40},
			buffer:    10,
			wantStart: 490,
			wantEnd:   550,
		},
		{
			name:      "bottom clamps the buffer",
			vp:        Viewport{Offset: 960, Height: 40},
			buffer:    10,
			wantStart: 950,
			wantEnd:   1000,
		},
		{
			name:      "zero buffer",
			vp:        Viewport{Offset: 100, Height: 25},
			buffer:    0,
			wantStart: 100,
			wantEnd:   125,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWindow(tt.vp, m, tt.buffer)
			if w.Start != tt.wantStart || w.End() != tt.wantEnd {
				t.Errorf("ComputeWindow() = [%d, %d), want [%d, %d)",
					w.Start, w.End(), tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestComputeWindowEmptyTable(t *testing.T) {
	m := NewScaleMapping(0, 32, 33_000_000)

	w := ComputeWindow(Viewport{Offset: 0, Height: 500}, m, 100)
	if !w.Empty() || w.Start != 0 {
		t.Errorf("window for empty table = {%d, %d}, want {0, 0}", w.Start, w.Count)
	}
}

// The computed window must always contain the full visible range plus
// buffer, clamped to the table bounds, for arbitrary scroll positions.
func TestComputeWindowCoversVisibleRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		totalRows := 1 + rng.Intn(5_000_000)
		rowHeight := 1 + float64(rng.Intn(40))
		maxExtent := 10_000 + float64(rng.Intn(50_000_000))
		buffer := rng.Intn(200)
		m := NewScaleMapping(totalRows, rowHeight, maxExtent)

		height := 100 + float64(rng.Intn(2000))
		offset := rng.Float64() * m.MaxScrollOffset(height)
		vp := Viewport{Offset: offset, Height: height}

		w := ComputeWindow(vp, m, buffer)

		visStart := int(math.Floor(m.PhysicalToLogical(offset)))
		visEnd := int(math.Ceil(m.PhysicalToLogical(offset + height)))
		if visStart < 0 {
			visStart = 0
		}
		if visEnd > totalRows {
			visEnd = totalRows
		}

		if w.Start > visStart || w.End() < visEnd {
			t.Fatalf("case %d: window [%d, %d) does not cover visible [%d, %d) (totalRows=%d sf=%v)",
				i, w.Start, w.End(), visStart, visEnd, totalRows, m.ScaleFactor)
		}
		if w.Start < 0 || w.End() > totalRows {
			t.Fatalf("case %d: window [%d, %d) out of bounds [0, %d]",
				i, w.Start, w.End(), totalRows)
		}
	}
}
