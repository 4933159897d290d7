package gridcore

import "testing"

func TestSessionGenerationsAreStrictlyMonotonic(t *testing.T) {
	r := NewSessionRegistry()

	first := r.Create("t0", 100)
	if first.Generation != 0 {
		t.Fatalf("first generation = %d, want 0", first.Generation)
	}
	if !first.Active() {
		t.Fatal("first session should be active")
	}

	prev := first
	for i := 1; i <= 5; i++ {
		s := r.Replace("t"+string(rune('0'+i)), 100+i)
		if s.Generation != prev.Generation+1 {
			t.Fatalf("generation %d after %d, want strict +1", s.Generation, prev.Generation)
		}
		if prev.Active() {
			t.Fatalf("replaced session gen %d still active", prev.Generation)
		}
		if !s.Active() {
			t.Fatalf("new session gen %d not active", s.Generation)
		}
		if r.Current() != s {
			t.Fatal("registry current is not the replacement")
		}
		prev = s
	}
}

func TestReplaceProducesNewObject(t *testing.T) {
	r := NewSessionRegistry()
	old := r.Create("orig", 10)
	oldRows := old.TotalRows

	s := r.Replace("sorted", 10)
	if s == old {
		t.Fatal("Replace returned the same session object")
	}
	if old.TotalRows != oldRows {
		t.Fatal("Replace mutated the old session")
	}
}

func TestUpdateTotalRowsKeepsIdentity(t *testing.T) {
	r := NewSessionRegistry()
	s := r.Create("t", 100)

	r.UpdateTotalRows(2500)
	if r.Current() != s {
		t.Fatal("UpdateTotalRows replaced the session")
	}
	if s.Generation != 0 {
		t.Errorf("generation bumped to %d by row-count update", s.Generation)
	}
	if s.TotalRows != 2500 {
		t.Errorf("TotalRows = %d, want 2500", s.TotalRows)
	}

	r.UpdateTotalRows(-4)
	if s.TotalRows != 0 {
		t.Errorf("negative row count not clamped, TotalRows = %d", s.TotalRows)
	}
}

func TestCreateOverExistingSessionReplaces(t *testing.T) {
	r := NewSessionRegistry()
	first := r.Create("a", 1)

	second := r.Create("b", 2)
	if second.Generation != first.Generation+1 {
		t.Errorf("generation = %d, want %d", second.Generation, first.Generation+1)
	}
	if first.Active() {
		t.Error("first session still active after second create")
	}
}
