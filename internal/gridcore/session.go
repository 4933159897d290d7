package gridcore

// Session identifies one epoch of backing-table identity. The ID doubles as
// the provider-side table name. Sessions are replaced, never mutated, when
// the backing table changes identity (import, sort, filter, reset);
// Generation is the sole authority for staleness detection.
type Session struct {
	ID         string
	Generation uint64
	TotalRows  int

	active bool
}

// Active reports whether this session is still the registry's current one.
// In-flight requests may hold an inactive session; their results are
// discarded by generation comparison when they arrive.
func (s *Session) Active() bool { return s.active }

// SessionRegistry is the single source of truth for which backing table is
// active. It is a single-writer resource: all calls happen on the event
// thread.
type SessionRegistry struct {
	current *Session
	nextGen uint64
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Current returns the active session, or nil before the first Create.
func (r *SessionRegistry) Current() *Session { return r.current }

// CurrentGeneration returns the generation in-flight results must match to
// be painted. Zero before the first session is fine: no fetch can have been
// issued yet.
func (r *SessionRegistry) CurrentGeneration() uint64 {
	if r.current == nil {
		return 0
	}
	return r.current.Generation
}

// Create installs the first session. Generation starts at 0; subsequent
// replacements continue the registry-global counter.
func (r *SessionRegistry) Create(tableID string, totalRows int) *Session {
	if r.current != nil {
		// Identity change over an existing session is a replacement.
		return r.Replace(tableID, totalRows)
	}
	s := &Session{ID: tableID, Generation: r.nextGen, TotalRows: clampRows(totalRows), active: true}
	r.nextGen++
	r.current = s
	return s
}

// Replace atomically swaps in a new session with a strictly larger
// generation. The old session object stays readable for any in-flight
// request but is marked inactive; it is returned so the caller can retire
// its backing table once unreferenced.
func (r *SessionRegistry) Replace(tableID string, totalRows int) *Session {
	if r.current == nil {
		return r.Create(tableID, totalRows)
	}
	old := r.current
	old.active = false
	s := &Session{ID: tableID, Generation: r.nextGen, TotalRows: clampRows(totalRows), active: true}
	r.nextGen++
	r.current = s
	debugLog("session: replace gen %d -> %d table=%s rows=%d\n", old.Generation, s.Generation, tableID, totalRows)
	return s
}

// UpdateTotalRows corrects the row count of the current session without
// changing table identity, e.g. while a progressive import is still
// counting. Data already fetched stays valid at its logical index, so the
// generation is not bumped.
func (r *SessionRegistry) UpdateTotalRows(totalRows int) {
	if r.current == nil {
		return
	}
	r.current.TotalRows = clampRows(totalRows)
}

func clampRows(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
