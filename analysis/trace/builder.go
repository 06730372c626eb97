package trace

import (
	"github.com/RohanKheraCR/OpenRace/analysis/config"
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/analysis/pta"
	"github.com/RohanKheraCR/OpenRace/analysis/rop"
)

// threadBuilder carries the mutable OpenMP region state of spec.md §4.E
// across the whole depth-first unfolding of one thread's call tree: the
// state belongs to the thread, not to any single function activation, so
// a single/master suppression or a held lock is visible across nested
// calls exactly as it would be at runtime. The same shape as a
// goroutine-coloring worklist walk over a callgraph.Node; here the walk
// is a plain recursive
// descent (no worklist needed, since a thread's call tree is unfolded
// eagerly and depth-first) but the "one mutable state object threaded
// through the whole walk" shape is the same.
type threadBuilder struct {
	prog   *ProgramTrace
	thread *Thread
	logger *config.LogGroup

	// activeStack is the (function, context-key) recursion-cutoff stack
	// of spec.md §4.E, "Recursion handling".
	activeStack []activeFrame

	locksHeld []LockKey

	// unjoinedTasks lists task threads spawned in this thread that have
	// not yet been joined at a Barrier or at thread end (spec.md §4.E,
	// "Task join points").
	unjoinedTasks []pendingSpawn

	pendingPthreads []pendingPthread

	// forkPairSpawns/forkPairIdx implement pairing of the two forks and
	// two joins that fork duplication always produces adjacently in a
	// FunctionSummary (spec.md §4.B).
	forkPairSpawns [2]pendingSpawn
	forkPairIdx    int

	singleDepth int
	masterDepth int

	pushNumThreads          *int64
	setNumThreadsPersistent *int64
	currentPairNumThreads   *int64

	reduceOpen bool

	guardStack []int64
}

type activeFrame struct {
	fn  *ir.Function
	ctx pta.Context
}

type pendingSpawn struct {
	tid     ThreadID
	eventID EventID
}

type pendingPthread struct {
	handle  ir.Value
	pending pendingSpawn
}

// visit unfolds fn's FunctionSummary into tb.thread's event stream under
// calling context ctx, reached via callStack. It is the single recursive
// entry point for both ordinary calls and the outlined bodies of forks.
func (tb *threadBuilder) visit(fn *ir.Function, ctx pta.Context, callStack []*ir.Instruction) error {
	if fn == nil {
		return nil
	}
	for _, f := range tb.activeStack {
		if f.fn == fn && f.ctx.String() == ctx.String() {
			// Recursion cutoff (spec.md §4.E): this function is already
			// active in the same context further up the call stack.
			return nil
		}
	}
	tb.activeStack = append(tb.activeStack, activeFrame{fn: fn, ctx: ctx})
	defer func() { tb.activeStack = tb.activeStack[:len(tb.activeStack)-1] }()

	fs, err := tb.prog.summarizer.Summarize(fn)
	if err != nil {
		return err
	}
	for _, op := range fs.Ops {
		if err := tb.visitOp(op, ctx, callStack); err != nil {
			return err
		}
	}
	return nil
}

// suppressed reports whether body events are currently suppressed
// because this thread is the non-executing sibling of a single/master
// region (spec.md §4.E).
func (tb *threadBuilder) suppressed() bool {
	return (tb.singleDepth > 0 || tb.masterDepth > 0) && tb.thread.Sibling == 1
}

func isRegionDelimiter(k rop.Kind) bool {
	switch k {
	case rop.OpenMPSingleStart, rop.OpenMPSingleEnd, rop.OpenMPMasterStart, rop.OpenMPMasterEnd:
		return true
	default:
		return false
	}
}

func (tb *threadBuilder) visitOp(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) error {
	if tb.suppressed() && !isRegionDelimiter(op.Kind) {
		return nil
	}

	switch op.Kind {
	case rop.Read, rop.Write:
		tb.emit(op, ctx, callStack)

	case rop.Call:
		return tb.visitCall(op, ctx, callStack)

	case rop.PthreadCreate:
		tb.visitPthreadCreate(op, ctx, callStack)

	case rop.PthreadJoin:
		tb.visitPthreadJoin(op, ctx, callStack)

	case rop.PthreadMutexLock, rop.PthreadSpinLock:
		key := LockKey{Points: tb.prog.ptaImpl.GetPointsTo(ctx, op.Addr)}
		tb.locksHeld = append(tb.locksHeld, key)
		tb.emit(op, ctx, callStack)

	case rop.PthreadMutexUnlock, rop.PthreadSpinUnlock:
		tb.emit(op, ctx, callStack)
		tb.popLockByPoints(tb.prog.ptaImpl.GetPointsTo(ctx, op.Addr))

	case rop.OpenMPFork, rop.OpenMPForkTeams:
		tb.visitOpenMPFork(op, ctx, callStack)

	case rop.OpenMPJoin, rop.OpenMPJoinTeams:
		tb.visitOpenMPJoin(op, ctx, callStack)

	case rop.OpenMPTaskFork:
		tb.visitTaskFork(op, ctx, callStack)

	case rop.OpenMPBarrier:
		tb.joinUnjoinedTasks(ctx, callStack)
		if tb.reduceOpen {
			tb.emitSynthetic(rop.OpenMPCriticalEnd, "__reduce__", op, ctx, callStack)
			tb.popLockByName("__reduce__")
			tb.reduceOpen = false
		}
		tb.emit(op, ctx, callStack)

	case rop.OpenMPSingleStart:
		tb.singleDepth++
		tb.emit(op, ctx, callStack)
	case rop.OpenMPSingleEnd:
		tb.emit(op, ctx, callStack)
		if tb.singleDepth > 0 {
			tb.singleDepth--
		}
	case rop.OpenMPMasterStart:
		tb.masterDepth++
		tb.emit(op, ctx, callStack)
	case rop.OpenMPMasterEnd:
		tb.emit(op, ctx, callStack)
		if tb.masterDepth > 0 {
			tb.masterDepth--
		}

	case rop.OpenMPCriticalStart:
		tb.locksHeld = append(tb.locksHeld, LockKey{Name: op.Name})
		tb.emit(op, ctx, callStack)
	case rop.OpenMPCriticalEnd:
		tb.emit(op, ctx, callStack)
		tb.popLockByName(op.Name)

	case rop.OpenMPOrderedStart:
		tb.locksHeld = append(tb.locksHeld, LockKey{Name: "__ordered__"})
		tb.emit(op, ctx, callStack)
	case rop.OpenMPOrderedEnd:
		tb.emit(op, ctx, callStack)
		tb.popLockByName("__ordered__")

	case rop.OpenMPReduce:
		if !tb.reduceOpen {
			tb.locksHeld = append(tb.locksHeld, LockKey{Name: "__reduce__"})
			tb.reduceOpen = true
		}
		tb.emit(op, ctx, callStack)

	case rop.OpenMPSetLock:
		key := LockKey{Points: tb.prog.ptaImpl.GetPointsTo(ctx, op.Addr)}
		tb.locksHeld = append(tb.locksHeld, key)
		tb.emit(op, ctx, callStack)
	case rop.OpenMPUnsetLock:
		tb.emit(op, ctx, callStack)
		tb.popLockByPoints(tb.prog.ptaImpl.GetPointsTo(ctx, op.Addr))

	case rop.OpenMPSetNumThreads:
		n := op.ConstArg
		tb.setNumThreadsPersistent = &n
		tb.emit(op, ctx, callStack)
	case rop.OpenMPPushNumThreads:
		n := op.ConstArg
		tb.pushNumThreads = &n
		tb.emit(op, ctx, callStack)

	case rop.GuardStart:
		tb.guardStack = append(tb.guardStack, op.ConstArg)
		tb.emit(op, ctx, callStack)
	case rop.GuardEnd:
		tb.emit(op, ctx, callStack)
		if len(tb.guardStack) > 0 {
			tb.guardStack = tb.guardStack[:len(tb.guardStack)-1]
		}

	default:
		// OpenMPForStaticInit/Fini, OpenMPForDispatchInit/Next/Fini and
		// any other plain bookkeeping call carry no synchronization
		// semantics this analyzer models beyond being visible in the
		// stream (spec.md §4.E).
		tb.emit(op, ctx, callStack)
	}
	return nil
}

func (tb *threadBuilder) visitCall(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) error {
	if op.Instr == nil {
		tb.emit(op, ctx, callStack)
		return nil
	}
	switch op.Instr.Op {
	case ir.OpCallIndirect:
		nodes := tb.prog.ptaImpl.GetIndirectCallSite(ctx, op.Instr)
		if len(nodes) == 0 {
			tb.emit(op, ctx, callStack)
			return nil
		}
		for _, n := range nodes {
			childCtx := tb.prog.ptaImpl.ContextEvolve(ctx, op.Instr)
			if err := tb.visit(n.Func, childCtx, append(callStack, op.Instr)); err != nil {
				return err
			}
		}
		return nil

	case ir.OpCallDirect:
		callee := tb.prog.module.Func(op.Instr.Callee)
		if callee == nil {
			tb.emit(op, ctx, callStack)
			return nil
		}
		childCtx := tb.prog.ptaImpl.ContextEvolve(ctx, op.Instr)
		return tb.visit(callee, childCtx, append(callStack, op.Instr))

	default:
		tb.emit(op, ctx, callStack)
		return nil
	}
}

func (tb *threadBuilder) visitPthreadCreate(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) {
	ev := tb.emit(op, ctx, callStack)
	entryFn := tb.resolveEntry(op.Entry)
	if entryFn == nil {
		tb.logger.Warnf("pthread_create entry point could not be resolved in %s; not spawning a child thread", op.Func.Name)
		return
	}
	childCtx := tb.prog.ptaImpl.ContextEvolve(ctx, op.Instr)
	tid := tb.prog.spawnThread(entryFn, childCtx, -1, tb.thread.ID, ev.ID, false)
	tb.pendingPthreads = append(tb.pendingPthreads, pendingPthread{
		handle:  op.Handle,
		pending: pendingSpawn{tid: tid, eventID: ev.ID},
	})
}

func (tb *threadBuilder) visitPthreadJoin(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) {
	idx := -1
	for i, p := range tb.pendingPthreads {
		if sameHandle(p.handle, op.Handle) {
			idx = i
			break
		}
	}
	if idx == -1 {
		tb.logger.Warnf("pthread_join in %s has no matching pthread_create handle; emitting unpaired", op.Func.Name)
		tb.emit(op, ctx, callStack)
		return
	}
	match := tb.pendingPthreads[idx]
	tb.pendingPthreads = append(tb.pendingPthreads[:idx], tb.pendingPthreads[idx+1:]...)
	joinEv := tb.emit(op, ctx, callStack)
	tb.pair(match.pending.tid, match.pending.eventID, joinEv)
}

func sameHandle(a, b ir.Value) bool {
	if a.Global != "" || b.Global != "" {
		return a.Global == b.Global
	}
	return a.LocalID == b.LocalID
}

func (tb *threadBuilder) visitOpenMPFork(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) {
	if tb.forkPairIdx%2 == 0 {
		n := tb.effectiveNumThreads()
		tb.currentPairNumThreads = n
	}
	slot := tb.forkPairIdx % 2
	tb.forkPairIdx++

	ev := tb.emit(op, ctx, callStack)
	entryFn := tb.resolveEntry(op.Entry)
	suppressed := tb.currentPairNumThreads != nil && *tb.currentPairNumThreads == 1

	var tid ThreadID
	if entryFn != nil {
		childCtx := tb.prog.ptaImpl.ContextEvolve(ctx, op.Instr)
		tid = tb.prog.spawnThread(entryFn, childCtx, slot, tb.thread.ID, ev.ID, suppressed)
	} else {
		tb.logger.Warnf("OpenMP fork entry point could not be resolved in %s", op.Func.Name)
		tid = -1
	}
	tb.forkPairSpawns[slot] = pendingSpawn{tid: tid, eventID: ev.ID}
}

func (tb *threadBuilder) visitOpenMPJoin(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) {
	joinEv := tb.emit(op, ctx, callStack)
	if op.PairedFork < 0 || op.PairedFork > 1 {
		return
	}
	spawn := tb.forkPairSpawns[op.PairedFork]
	if spawn.tid < 0 {
		return
	}
	tb.pair(spawn.tid, spawn.eventID, joinEv)
	if op.PairedFork == 1 {
		// End of the pair: push_num_threads(N) applies only to the
		// parallel construct it immediately precedes (spec.md §9, Open
		// Question 3).
		tb.currentPairNumThreads = nil
	}
}

func (tb *threadBuilder) visitTaskFork(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) {
	ev := tb.emit(op, ctx, callStack)
	entryFn := tb.resolveEntry(op.Entry)
	if entryFn == nil {
		tb.logger.Warnf("OpenMP task entry point could not be resolved in %s", op.Func.Name)
		return
	}
	childCtx := tb.prog.ptaImpl.ContextEvolve(ctx, op.Instr)
	tid := tb.prog.spawnThread(entryFn, childCtx, -1, tb.thread.ID, ev.ID, false)
	tb.unjoinedTasks = append(tb.unjoinedTasks, pendingSpawn{tid: tid, eventID: ev.ID})
}

// joinUnjoinedTasks emits a synthetic OpenMPJoin for every task spawned
// in this thread that has not yet been joined, at a barrier or at thread
// end (spec.md §4.E, "Task join points").
func (tb *threadBuilder) joinUnjoinedTasks(ctx pta.Context, callStack []*ir.Instruction) {
	for _, spawn := range tb.unjoinedTasks {
		op := rop.Operation{Kind: rop.OpenMPJoin, PairedFork: -1}
		joinEv := tb.emit(op, ctx, callStack)
		tb.pair(spawn.tid, spawn.eventID, joinEv)
	}
	tb.unjoinedTasks = tb.unjoinedTasks[:0]
}

func (tb *threadBuilder) effectiveNumThreads() *int64 {
	if tb.pushNumThreads != nil {
		n := *tb.pushNumThreads
		tb.pushNumThreads = nil
		return &n
	}
	if tb.setNumThreadsPersistent != nil {
		n := *tb.setNumThreadsPersistent
		return &n
	}
	return nil
}

// resolveEntry finds the function an entry operand refers to. Only
// direct function values are resolved; an entry point passed through a
// level of indirection this analyzer's minimal ir.Value cannot see
// (spec.md §9) is reported as unresolved, matching the "warn and
// degrade" pattern used throughout this module rather than failing the
// whole trace.
func (tb *threadBuilder) resolveEntry(v ir.Value) *ir.Function {
	if v.Func == "" {
		return nil
	}
	return tb.prog.module.Func(v.Func)
}

func (tb *threadBuilder) popLockByPoints(pts pta.PointsToSet) {
	for i := len(tb.locksHeld) - 1; i >= 0; i-- {
		if tb.locksHeld[i].Points != nil && tb.locksHeld[i].Points.Intersects(pts) {
			tb.locksHeld = append(tb.locksHeld[:i], tb.locksHeld[i+1:]...)
			return
		}
	}
}

func (tb *threadBuilder) popLockByName(name string) {
	for i := len(tb.locksHeld) - 1; i >= 0; i-- {
		if tb.locksHeld[i].Name == name {
			tb.locksHeld = append(tb.locksHeld[:i], tb.locksHeld[i+1:]...)
			return
		}
	}
}

// pair links a fork/spawn event in this thread and the join event that
// closes it (spec.md §3, invariant 3): the join records (child thread,
// fork event id), the fork records (this thread, join event id).
func (tb *threadBuilder) pair(childTid ThreadID, forkEventID EventID, joinEv *Event) {
	joinEv.PairedThread = childTid
	joinEv.PairedEvent = forkEventID
	joinEv.HasPaired = true
	if fe, ok := tb.thread.EventAt(forkEventID); ok {
		fe.PairedThread = tb.thread.ID
		fe.PairedEvent = joinEv.ID
		fe.HasPaired = true
	}
}

func (tb *threadBuilder) emit(op rop.Operation, ctx pta.Context, callStack []*ir.Instruction) *Event {
	ev := Event{
		Thread:    tb.thread.ID,
		ID:        EventID(len(tb.thread.Events)),
		Kind:      op.Kind,
		Op:        op,
		CallStack: append([]*ir.Instruction(nil), callStack...),
		Context:   ctx,
		LocksHeld: append([]LockKey(nil), tb.locksHeld...),
	}
	if len(tb.guardStack) > 0 {
		tid := tb.guardStack[len(tb.guardStack)-1]
		ev.GuardTID = &tid
	}
	tb.thread.Events = append(tb.thread.Events, ev)
	return &tb.thread.Events[len(tb.thread.Events)-1]
}

func (tb *threadBuilder) emitSynthetic(kind rop.Kind, name string, like rop.Operation, ctx pta.Context, callStack []*ir.Instruction) *Event {
	op := rop.Operation{Kind: kind, Name: name, Func: like.Func, Instr: like.Instr, PairedFork: -1}
	return tb.emit(op, ctx, callStack)
}
