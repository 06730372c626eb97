package pta

import (
	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/internal/funcutil"
)

// ArgConnection is one (caller argument index, callee formal index) edge
// the call-site interception rules of spec.md §4.D require a pointer
// analysis to add, so that argument flow through pthread_create,
// __kmpc_fork_call/__kmpc_fork_teams and __kmpc_omp_task matches runtime
// semantics instead of the analysis's default call-argument handling.
type ArgConnection struct {
	CallerArg int
	CalleeArg int
}

// InterceptCallSite returns the argument connections a pointer analysis
// must add for a recognized concurrency call site, and the entry
// function operand whose formals they target. Returns ok=false for call
// sites that need no special handling.
func InterceptCallSite(instr *ir.Instruction, numCalleeParams int) (entry ir.Value, conns []ArgConnection, ok bool) {
	switch instr.Callee {
	case "pthread_create":
		// connect the 4th argument of the caller to the 1st formal of
		// the entry function.
		if len(instr.Operands) < 4 {
			return ir.Value{}, nil, false
		}
		return instr.Operands[2], []ArgConnection{{CallerArg: 3, CalleeArg: 0}}, true

	case "__kmpc_fork_call", "__kmpc_fork_teams":
		// connect the (i+3)-th caller argument to the (i+2)-th formal of
		// outlined, for every i >= 0 while the formal exists. Formals are
		// not filtered by type: ir.Function carries no formal types, so
		// every candidate connection is reported, and Reference applies
		// them all.
		if len(instr.Operands) < 3 {
			return ir.Value{}, nil, false
		}
		var conns []ArgConnection
		for i := 0; i+3 < len(instr.Operands); i++ {
			calleeArg := i + 2
			if calleeArg >= numCalleeParams {
				break
			}
			conns = append(conns, ArgConnection{CallerArg: i + 3, CalleeArg: calleeArg})
		}
		return instr.Operands[2], conns, true

	case "__kmpc_omp_task":
		// connect the 3rd caller argument to the 2nd formal of the task
		// function.
		if len(instr.Operands) < 3 {
			return ir.Value{}, nil, false
		}
		return instr.Operands[2], []ArgConnection{{CallerArg: 2, CalleeArg: 1}}, true

	default:
		return ir.Value{}, nil, false
	}
}

// heapAllocators names the functions recognized as heap allocators by
// spec.md §4.D, "Heap allocation interception".
var heapAllocators = map[string]bool{
	"malloc":                true,
	"calloc":                true,
	"new":                   true,
	"new[]":                 true,
	"__kmpc_omp_task_alloc": true,
}

// IsHeapAllocator reports whether name is a recognized heap allocator.
func IsHeapAllocator(name string) bool { return heapAllocators[name] }

// originatingCalls names the call sites recognized as beginning a new
// thread of execution (spec.md §4.D, "Origin detection").
var originatingCalls = map[string]bool{
	"pthread_create":        true,
	"__kmpc_fork_call":      true,
	"__kmpc_fork_teams":     true,
	"__kmpc_omp_task":       true,
	"__kmpc_omp_task_alloc": true,
}

// BeginsNewThread answers "does this call site begin a new thread?"
func BeginsNewThread(calleeName string) bool { return originatingCalls[calleeName] }

// AllocationSizeKind classifies a static allocation size against a known
// element size, per spec.md §4.D.
func AllocationSizeKind(staticSize, elementSize int64) ObjectKind {
	switch {
	case elementSize <= 0 || staticSize <= 0:
		return ObjectKindUnknown
	case staticSize == elementSize:
		return ObjectKindSingle
	case staticSize%elementSize == 0:
		return ObjectKindBoundedArray
	default:
		return ObjectKindUnboundedArray
	}
}

// InferAllocatedType looks at the bitcast users of a heap-allocation
// result to determine the allocated type. bitcastUsers is the set of
// distinct types the result was bitcast to; per spec.md §9 Open Question
// 1, when more than one distinct type is observed (the "inlined context"
// case), the original give-up behavior is preserved: no type is
// returned.
func InferAllocatedType(bitcastUsers []ir.Type) (ir.Type, bool) {
	opt := inferAllocatedType(bitcastUsers)
	return opt.ValueOr(ir.Type{}), opt.IsSome()
}

func inferAllocatedType(bitcastUsers []ir.Type) funcutil.Optional[ir.Type] {
	if len(bitcastUsers) == 1 {
		return funcutil.Some(bitcastUsers[0])
	}
	return funcutil.None[ir.Type]()
}

// TaskAllocationObjects returns the (task struct, shared data) object pair
// spec.md §4.D requires __kmpc_omp_task_alloc to allocate, with a
// points-to edge from the task struct to the shared object already
// established via the Points field.
func TaskAllocationObjects(taskID, sharedID ObjectID, taskType, sharedType ir.Type) (task Object, shared Object) {
	task = Object{ID: taskID, Kind: ObjectKindTaskStruct, Type: taskType, Points: sharedID}
	shared = Object{ID: sharedID, Kind: ObjectKindTaskShared, Type: sharedType}
	return task, shared
}
