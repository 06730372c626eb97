// Package rop ("race operation") defines the typed event vocabulary that
// the IR Summarizer (spec.md §4.B) lowers raw instructions into, and that
// the Thread Trace Builder (spec.md §4.E) replays as trace-level Events.
// It is a single closed tagged variant, matching spec.md §3's "IR
// Operation" and "Event" entities: one Kind discriminant plus the union of
// fields any kind might need, dispatched through a plain switch on Kind
// rather than through type assertions scattered across the codebase
// (spec.md §9).
package rop

import "github.com/RohanKheraCR/OpenRace/analysis/ir"

// Kind discriminates the members of the IR Operation / Event tagged
// variant of spec.md §3.
type Kind int

const (
	Read Kind = iota
	Write
	Call // opaque call, resolution deferred to the pointer analysis
	PthreadCreate
	PthreadJoin
	PthreadMutexLock
	PthreadMutexUnlock
	PthreadSpinLock
	PthreadSpinUnlock
	OpenMPFork
	OpenMPForkTeams
	OpenMPTaskFork
	OpenMPJoin
	OpenMPJoinTeams
	OpenMPBarrier
	OpenMPSingleStart
	OpenMPSingleEnd
	OpenMPMasterStart
	OpenMPMasterEnd
	OpenMPCriticalStart
	OpenMPCriticalEnd
	OpenMPOrderedStart
	OpenMPOrderedEnd
	OpenMPReduce
	OpenMPSetLock
	OpenMPUnsetLock
	OpenMPForStaticInit
	OpenMPForStaticFini
	OpenMPForDispatchInit
	OpenMPForDispatchNext
	OpenMPForDispatchFini
	OpenMPGetThreadNum
	OpenMPSetNumThreads
	OpenMPPushNumThreads
	GuardStart
	GuardEnd
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case Call:
		return "Call"
	case PthreadCreate:
		return "PthreadCreate"
	case PthreadJoin:
		return "PthreadJoin"
	case PthreadMutexLock:
		return "PthreadMutexLock"
	case PthreadMutexUnlock:
		return "PthreadMutexUnlock"
	case PthreadSpinLock:
		return "PthreadSpinLock"
	case PthreadSpinUnlock:
		return "PthreadSpinUnlock"
	case OpenMPFork:
		return "OpenMPFork"
	case OpenMPForkTeams:
		return "OpenMPForkTeams"
	case OpenMPTaskFork:
		return "OpenMPTaskFork"
	case OpenMPJoin:
		return "OpenMPJoin"
	case OpenMPJoinTeams:
		return "OpenMPJoinTeams"
	case OpenMPBarrier:
		return "OpenMPBarrier"
	case OpenMPSingleStart:
		return "OpenMPSingleStart"
	case OpenMPSingleEnd:
		return "OpenMPSingleEnd"
	case OpenMPMasterStart:
		return "OpenMPMasterStart"
	case OpenMPMasterEnd:
		return "OpenMPMasterEnd"
	case OpenMPCriticalStart:
		return "OpenMPCriticalStart"
	case OpenMPCriticalEnd:
		return "OpenMPCriticalEnd"
	case OpenMPOrderedStart:
		return "OpenMPOrderedStart"
	case OpenMPOrderedEnd:
		return "OpenMPOrderedEnd"
	case OpenMPReduce:
		return "OpenMPReduce"
	case OpenMPSetLock:
		return "OpenMPSetLock"
	case OpenMPUnsetLock:
		return "OpenMPUnsetLock"
	case OpenMPForStaticInit:
		return "OpenMPForStaticInit"
	case OpenMPForStaticFini:
		return "OpenMPForStaticFini"
	case OpenMPForDispatchInit:
		return "OpenMPForDispatchInit"
	case OpenMPForDispatchNext:
		return "OpenMPForDispatchNext"
	case OpenMPForDispatchFini:
		return "OpenMPForDispatchFini"
	case OpenMPGetThreadNum:
		return "OpenMPGetThreadNum"
	case OpenMPSetNumThreads:
		return "OpenMPSetNumThreads"
	case OpenMPPushNumThreads:
		return "OpenMPPushNumThreads"
	case GuardStart:
		return "GuardStart"
	case GuardEnd:
		return "GuardEnd"
	default:
		return "Unknown"
	}
}

// Operation is one element of a FunctionSummary (spec.md §3). Fields are
// populated according to Kind; unused fields are zero.
type Operation struct {
	Kind Kind

	// Addr is the memory operand of Read/Write, or the mutex/lock operand
	// of the pthread/OpenMP lock operations. The thread handle of
	// PthreadCreate/PthreadJoin is in Handle and the critical-section name
	// in Name (see below).
	Addr ir.Value

	// Entry is the thread/task/region entry-point operand: the function
	// value passed to pthread_create, the outlined function of an OpenMP
	// fork, or the task entry of an OpenMPTaskFork.
	Entry ir.Value

	// Args carries the argument values shared into a fork's outlined
	// function (the "shared_args..." of spec.md §3).
	Args []ir.Value

	// Handle is the thread handle operand of PthreadCreate/PthreadJoin.
	Handle ir.Value

	// Name is the critical-section name for OpenMPCriticalStart/End: the
	// string form of the call's lock-variable operand, or "__critical__"
	// when the call has no such operand.
	Name string

	// ConstArg is the integer argument of OpenMPSetNumThreads/PushNumThreads,
	// and the thread id of GuardStart/GuardEnd.
	ConstArg int64

	// PairedFork links an OpenMPJoin back to the fork operation it closes,
	// by that fork's slot in its duplicated pair: 0 for the first fork, 1
	// for the second (spec.md §3, invariant 3). -1 when not applicable.
	PairedFork int

	// Instr is the originating instruction (spec.md §3: "each carries a
	// reference to the originating instruction").
	Instr *ir.Instruction

	// Func is the function this operation was lowered from, used to
	// resolve Instr's location without threading it separately.
	Func *ir.Function
}

