package trace

import (
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/pta"
)

// Thread is one thread of execution discovered by the trace builder: a
// pthread, an OpenMP fork-duplication sibling, or an OpenMP task,
// together with its ordered event stream (spec.md §3 "Thread").
type Thread struct {
	ID ThreadID

	EntryFunc *ir.Function

	// HasParent is false only for the root thread (ID 0).
	HasParent    bool
	ParentThread ThreadID
	ParentEvent  EventID

	// SpawnContext is the pointer-analysis context in effect at the fork
	// site that created this thread.
	SpawnContext pta.Context

	// Sibling is -1 for the root thread and for pthread/task threads
	// (which have no fork-duplication partner), 0 for the first sibling
	// produced by an OpenMP fork-duplication pair and 1 for the second
	// (spec.md §4.C, §4.E).
	Sibling int

	// Suppressed is true when this thread was created under an effective
	// num_threads(1) constraint: it exists (so Fork/Join structure holds)
	// but was never traversed, so Events is empty (spec.md §4.E).
	Suppressed bool

	Events []Event
}

// EventAt returns the event with the given id, if any.
func (t *Thread) EventAt(id EventID) (*Event, bool) {
	if int(id) < 0 || int(id) >= len(t.Events) {
		return nil, false
	}
	return &t.Events[id], true
}
