// Package race implements the Race-Report Interface of spec.md §4.G: given
// a built program trace, enumerate candidate racing event pairs and filter
// them by the happens-before relation implied by joins, locks, barriers,
// single/master/critical/ordered regions, and guard markers. spec.md §4.G
// specifies this component "only where it drives requirements on the
// trace" (a contract, not an algorithm); the filter below is the concrete
// realization the contract requires the trace to support, in the same
// layered shape as a flow graph feeding a downstream sink search:
// trace.ProgramTrace feeding a candidate-pair filter.
package race

import (
	"github.com/RohanKheraCR/OpenRace/analysis/config"
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/pta"
	"github.com/RohanKheraCR/OpenRace/analysis/rop"
	"github.com/RohanKheraCR/OpenRace/analysis/trace"
)

// Candidate is one candidate race record: two events naming the same
// memory location with no happens-before ordering or common
// synchronization found between them (spec.md §4.G).
type Candidate struct {
	A, B trace.Event
}

// Location returns the source locations of the two events, when their
// originating instructions carry one.
func (c Candidate) Location() (a, b ir.Location) {
	if c.A.Op.Instr != nil {
		a = c.A.Op.Instr.Loc
	}
	if c.B.Op.Instr != nil {
		b = c.B.Op.Instr.Loc
	}
	return a, b
}

// Finder enumerates and filters candidate races over a built program
// trace.
type Finder struct {
	prog    *trace.ProgramTrace
	ptaImpl pta.Interface
	logger  *config.LogGroup
}

// NewFinder returns a Finder over prog, resolving points-to sets through
// ptaImpl (the same analysis prog.Build used to construct the trace).
func NewFinder(prog *trace.ProgramTrace, ptaImpl pta.Interface, logger *config.LogGroup) *Finder {
	if logger == nil {
		logger = config.NewLogGroup(config.WarnLevel)
	}
	return &Finder{prog: prog, ptaImpl: ptaImpl, logger: logger}
}

// Find enumerates every memory-access event pair across distinct threads
// and returns those that survive every exclusion spec.md §4.G names:
// points-to sets must intersect, at least one access is a write, their
// effective thread ids (accounting for guard spans) must differ, they
// must share no held lock, and no fork/join or barrier ordering may
// separate them.
//
// Both events of a single/master region that executed on only one thread
// can never appear on opposite sides of a candidate pair here: the trace
// builder never emits events for the suppressed sibling of such a region
// in the first place (analysis/trace's single/master suppression), so the
// "neither sits inside a matching single/master region on both sides"
// exclusion of spec.md §4.G is already enforced by construction and needs
// no extra filtering in this package.
func (f *Finder) Find() []Candidate {
	accesses := f.collectAccesses()
	var candidates []Candidate
	for i := 0; i < len(accesses); i++ {
		for j := i + 1; j < len(accesses); j++ {
			a, b := accesses[i], accesses[j]
			if a.Thread == b.Thread {
				continue
			}
			if c, ok := f.evaluate(a, b); ok {
				candidates = append(candidates, c)
			}
		}
	}
	f.logger.Infof("race: %d candidate(s) over %d access event(s)", len(candidates), len(accesses))
	return candidates
}

func (f *Finder) collectAccesses() []trace.Event {
	var out []trace.Event
	for _, t := range f.prog.Threads() {
		for _, ev := range t.Events {
			if ev.Kind == rop.Read || ev.Kind == rop.Write {
				out = append(out, ev)
			}
		}
	}
	return out
}

func (f *Finder) evaluate(a, b trace.Event) (Candidate, bool) {
	if a.Kind != rop.Write && b.Kind != rop.Write {
		return Candidate{}, false
	}
	if effectiveThreadID(a) == effectiveThreadID(b) {
		return Candidate{}, false
	}
	ptsA := f.ptaImpl.GetPointsTo(a.Context, a.Op.Addr)
	ptsB := f.ptaImpl.GetPointsTo(b.Context, b.Op.Addr)
	if !ptsA.Intersects(ptsB) {
		return Candidate{}, false
	}
	if sharesLock(a, b) {
		return Candidate{}, false
	}
	if f.forkJoinOrdered(a, b) || f.forkJoinOrdered(b, a) {
		return Candidate{}, false
	}
	if barrierOrdered(f.prog, a, b) {
		return Candidate{}, false
	}
	return Candidate{A: a, B: b}, true
}

// effectiveThreadID is the thread id a race must be attributed to: the
// innermost active GuardStart/GuardEnd span's constant, or the event's
// real thread id when no guard is active (spec.md §3, invariant 6; §4.G).
func effectiveThreadID(ev trace.Event) int64 {
	if ev.GuardTID != nil {
		return *ev.GuardTID
	}
	return int64(ev.Thread)
}

func sharesLock(a, b trace.Event) bool {
	for _, la := range a.LocksHeld {
		for _, lb := range b.LocksHeld {
			if la.Name != "" && la.Name == lb.Name {
				return true
			}
			if la.Points != nil && lb.Points != nil && la.Points.Intersects(lb.Points) {
				return true
			}
		}
	}
	return false
}

// forkJoinOrdered reports whether a happens-before b through the
// fork/join thread-spawn tree: either a occurs in an ancestor thread at
// or before the point it forked the subtree containing b's thread, or b's
// thread is an ancestor of a's thread and a's thread is fully joined at
// or before b.
func (f *Finder) forkJoinOrdered(a, b trace.Event) bool {
	if before, ok := f.forkBeforeChild(a, b.Thread); ok && before {
		return true
	}
	if joined, ok := f.childJoinedBeforeAncestor(a, b); ok && joined {
		return true
	}
	return false
}

// forkBeforeChild reports whether a's thread is an ancestor of child,
// and a occurred at or before the fork event that spawned the link of
// the ancestor chain leading to child — in which case a happens-before
// every event anywhere in child's subtree.
func (f *Finder) forkBeforeChild(a trace.Event, child trace.ThreadID) (before, isAncestor bool) {
	cur := child
	for {
		t := f.prog.Thread(cur)
		if t == nil || !t.HasParent {
			return false, false
		}
		if t.ParentThread == a.Thread {
			return a.ID <= t.ParentEvent, true
		}
		cur = t.ParentThread
	}
}

// childJoinedBeforeAncestor reports whether a's thread is a descendant
// of b's thread, the chain between them was fully joined, and b occurs
// at or after the Join event that closed it — in which case every event
// in a's subtree, including a, happens-before b.
func (f *Finder) childJoinedBeforeAncestor(a, b trace.Event) (joined, isDescendant bool) {
	cur := a.Thread
	chainJoined := true
	for {
		t := f.prog.Thread(cur)
		if t == nil || !t.HasParent {
			return false, false
		}
		parent := f.prog.Thread(t.ParentThread)
		if parent == nil {
			return false, false
		}
		forkEv, ok := parent.EventAt(t.ParentEvent)
		if !ok || !forkEv.HasPaired {
			chainJoined = false
		}
		if t.ParentThread == b.Thread {
			if !chainJoined {
				// Some link of the chain is never joined (e.g. a thread
				// the program never joins): nothing in b's thread is
				// ordered after this subtree via this rule.
				return false, true
			}
			return b.ID >= forkEv.PairedEvent, true
		}
		cur = t.ParentThread
	}
}

// barrierOrdered reports whether a and b are separated by a completed
// OpenMP barrier round: if the two threads have each executed a
// different number of Barrier events strictly before their respective
// event, the thread with fewer completed rounds necessarily fired before
// the team-wide rendezvous that the other thread has already passed
// (spec.md §4.E, §4.G).
func barrierOrdered(prog *trace.ProgramTrace, a, b trace.Event) bool {
	return barrierCountBefore(prog, a) != barrierCountBefore(prog, b)
}

func barrierCountBefore(prog *trace.ProgramTrace, ev trace.Event) int {
	t := prog.Thread(ev.Thread)
	if t == nil {
		return 0
	}
	n := 0
	for i := 0; i < int(ev.ID) && i < len(t.Events); i++ {
		if t.Events[i].Kind == rop.OpenMPBarrier {
			n++
		}
	}
	return n
}
