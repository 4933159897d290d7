package gridcore

import "fmt"

// FetchError reports a provider failure for a specific window. It is
// recoverable: the pipeline keeps its state and the next scroll tick simply
// issues a fresh request. The orchestrator never retries on its own.
type FetchError struct {
	Generation uint64
	Window     Window
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch rows [%d, %d) for generation %d: %v",
		e.Window.Start, e.Window.End(), e.Generation, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
