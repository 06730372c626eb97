// Package trace implements the Thread Trace Builder and Program Trace of
// spec.md §4.E/§4.F: interprocedural unfolding of the call graph per
// thread of execution into ordered event streams, and the structure that
// owns every thread of a program trace. The goroutine-coloring worklist
// over a callgraph.Node is the direct ancestor of the fork/join,
// depth-first-spawns-a-child-trace traversal here; ProgramTrace's "one
// struct owns everything, freed together" ownership model follows the
// same shape an AnalyzerState uses.
package trace

import (
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/pta"
	"github.com/RohanKheraCR/OpenRace/analysis/rop"
)

// ThreadID identifies a thread within a ProgramTrace; the root thread is
// always 0 (spec.md §3).
type ThreadID int

// EventID identifies an event within its owning thread, assigned at
// emission in strictly increasing order (spec.md §3, invariant 2).
type EventID int

// LockKey identifies a lock for the purposes of acquire/release matching:
// either a points-to set (pthread mutexes/spinlocks, OpenMP lock
// variables) or a critical-section name (OpenMP critical regions).
type LockKey struct {
	Name   string
	Points pta.PointsToSet
}

// Event is one entry of a thread's event stream, mirroring the IR
// Operation vocabulary at trace level (spec.md §3).
type Event struct {
	Thread ThreadID
	ID     EventID

	Kind rop.Kind
	Op   rop.Operation

	// CallStack is the chain of call-site instructions active when this
	// event was emitted, root (entry function) first.
	CallStack []*ir.Instruction

	// Context is the pointer-analysis calling context active when this
	// event was emitted.
	Context pta.Context

	// PairedThread/PairedEvent link a Fork and the Join that closes it
	// (spec.md §3, invariant 3; §9 "no back-pointers in data" — this is an
	// index pair, not a pointer). On a Fork they are the (thread, event id)
	// of the closing Join, which lives in the same thread as the Fork. On a
	// Join, PairedThread is the joined child thread and PairedEvent is the
	// id of the Fork event in the Join's own thread. Exit* events are not
	// paired with their Enter* events.
	PairedThread ThreadID
	PairedEvent  EventID
	HasPaired    bool

	// GuardTID is the effective thread id this event should be attributed
	// to for race purposes, when it executes inside a GuardStart/GuardEnd
	// span (spec.md §3, invariant 6). Nil when no guard is active.
	GuardTID *int64

	// LocksHeld is the snapshot of lock keys held by this thread at the
	// moment the event was emitted.
	LocksHeld []LockKey
}

// Handle returns the (ThreadID, EventID) pair that uniquely identifies
// this event (spec.md §3, invariant 1).
func (e Event) Handle() (ThreadID, EventID) { return e.Thread, e.ID }
