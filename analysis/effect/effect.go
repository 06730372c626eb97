// Package effect implements the Function-Effect Recognizer of spec.md
// §4.A: a pure, total classifier from a called function's name to a
// concurrency-relevant category, in the shape of a name-keyed
// classification table backing a total classifier (an IsStdFunction-style
// check that always has an answer, never a partial one).
package effect

import "strings"

// Category is the result of classifying a callee by name.
type Category int

const (
	// CategoryOpaqueCall is the default for any name not otherwise
	// recognized: classification is total (spec.md §4.A).
	CategoryOpaqueCall Category = iota
	CategoryNoEffect

	CategoryPthreadCreate
	CategoryPthreadJoin
	CategoryPthreadMutexLock
	CategoryPthreadMutexUnlock
	CategoryPthreadSpinLock
	CategoryPthreadSpinUnlock

	CategoryOmpForkCall
	CategoryOmpForkTeams
	CategoryOmpTaskAlloc
	CategoryOmpTask
	CategoryOmpForStaticInit
	CategoryOmpForStaticFini
	CategoryOmpDispatchInit
	CategoryOmpDispatchNext
	CategoryOmpDispatchFini
	CategoryOmpSingle
	CategoryOmpSingleEnd
	CategoryOmpMaster
	CategoryOmpMasterEnd
	CategoryOmpBarrier
	CategoryOmpReduce
	CategoryOmpReduceNowait
	CategoryOmpCritical
	CategoryOmpCriticalEnd
	CategoryOmpOrdered
	CategoryOmpOrderedEnd
	CategoryOmpSetLock
	CategoryOmpUnsetLock
	CategoryOmpSetNestLock
	CategoryOmpUnsetNestLock

	CategoryOmpGetThreadNum
	CategoryOmpSetNumThreads
	CategoryOmpPushNumThreads

	// CategoryGuardStart/End recognize the synthetic external
	// declarations the preprocessing pass inserts (spec.md §4.C, §6).
	CategoryGuardStart
	CategoryGuardEnd
)

func (c Category) String() string {
	switch c {
	case CategoryOpaqueCall:
		return "OpaqueCall"
	case CategoryNoEffect:
		return "NoEffect"
	case CategoryPthreadCreate:
		return "PthreadCreate"
	case CategoryPthreadJoin:
		return "PthreadJoin"
	case CategoryPthreadMutexLock:
		return "PthreadMutexLock"
	case CategoryPthreadMutexUnlock:
		return "PthreadMutexUnlock"
	case CategoryPthreadSpinLock:
		return "PthreadSpinLock"
	case CategoryPthreadSpinUnlock:
		return "PthreadSpinUnlock"
	case CategoryOmpForkCall:
		return "OmpForkCall"
	case CategoryOmpForkTeams:
		return "OmpForkTeams"
	case CategoryOmpTaskAlloc:
		return "OmpTaskAlloc"
	case CategoryOmpTask:
		return "OmpTask"
	case CategoryOmpForStaticInit:
		return "OmpForStaticInit"
	case CategoryOmpForStaticFini:
		return "OmpForStaticFini"
	case CategoryOmpDispatchInit:
		return "OmpDispatchInit"
	case CategoryOmpDispatchNext:
		return "OmpDispatchNext"
	case CategoryOmpDispatchFini:
		return "OmpDispatchFini"
	case CategoryOmpSingle:
		return "OmpSingle"
	case CategoryOmpSingleEnd:
		return "OmpSingleEnd"
	case CategoryOmpMaster:
		return "OmpMaster"
	case CategoryOmpMasterEnd:
		return "OmpMasterEnd"
	case CategoryOmpBarrier:
		return "OmpBarrier"
	case CategoryOmpReduce:
		return "OmpReduce"
	case CategoryOmpReduceNowait:
		return "OmpReduceNowait"
	case CategoryOmpCritical:
		return "OmpCritical"
	case CategoryOmpCriticalEnd:
		return "OmpCriticalEnd"
	case CategoryOmpOrdered:
		return "OmpOrdered"
	case CategoryOmpOrderedEnd:
		return "OmpOrderedEnd"
	case CategoryOmpSetLock:
		return "OmpSetLock"
	case CategoryOmpUnsetLock:
		return "OmpUnsetLock"
	case CategoryOmpSetNestLock:
		return "OmpSetNestLock"
	case CategoryOmpUnsetNestLock:
		return "OmpUnsetNestLock"
	case CategoryOmpGetThreadNum:
		return "OmpGetThreadNum"
	case CategoryOmpSetNumThreads:
		return "OmpSetNumThreads"
	case CategoryOmpPushNumThreads:
		return "OmpPushNumThreads"
	case CategoryGuardStart:
		return "GuardStart"
	case CategoryGuardEnd:
		return "GuardEnd"
	default:
		return "Unknown"
	}
}

// pthreadNames maps exact pthread symbol names to their category
// (spec.md §4.A, §6: "Pthread symbols are matched by exact names").
var pthreadNames = map[string]Category{
	"pthread_create":          CategoryPthreadCreate,
	"pthread_join":            CategoryPthreadJoin,
	"pthread_mutex_lock":      CategoryPthreadMutexLock,
	"pthread_mutex_unlock":    CategoryPthreadMutexUnlock,
	"pthread_spin_lock":       CategoryPthreadSpinLock,
	"pthread_spin_unlock":     CategoryPthreadSpinUnlock,
}

// kmpcNames maps exact __kmpc_-family runtime symbol names to their
// category (spec.md §4.A).
var kmpcNames = map[string]Category{
	"__kmpc_fork_call":         CategoryOmpForkCall,
	"__kmpc_fork_teams":        CategoryOmpForkTeams,
	"__kmpc_omp_task_alloc":    CategoryOmpTaskAlloc,
	"__kmpc_omp_task":          CategoryOmpTask,
	"__kmpc_for_static_init":   CategoryOmpForStaticInit,
	"__kmpc_for_static_fini":   CategoryOmpForStaticFini,
	"__kmpc_dispatch_init":     CategoryOmpDispatchInit,
	"__kmpc_dispatch_next":     CategoryOmpDispatchNext,
	"__kmpc_dispatch_fini":     CategoryOmpDispatchFini,
	"__kmpc_single":            CategoryOmpSingle,
	"__kmpc_end_single":        CategoryOmpSingleEnd,
	"__kmpc_master":            CategoryOmpMaster,
	"__kmpc_end_master":        CategoryOmpMasterEnd,
	"__kmpc_barrier":           CategoryOmpBarrier,
	"__kmpc_reduce":            CategoryOmpReduce,
	"__kmpc_reduce_nowait":     CategoryOmpReduceNowait,
	"__kmpc_critical":          CategoryOmpCritical,
	"__kmpc_end_critical":      CategoryOmpCriticalEnd,
	"__kmpc_ordered":           CategoryOmpOrdered,
	"__kmpc_end_ordered":       CategoryOmpOrderedEnd,
	"__kmpc_set_lock":          CategoryOmpSetLock,
	"__kmpc_unset_lock":        CategoryOmpUnsetLock,
	"__kmpc_set_nest_lock":     CategoryOmpSetNestLock,
	"__kmpc_unset_nest_lock":   CategoryOmpUnsetNestLock,
	"__kmpc_push_num_threads":  CategoryOmpPushNumThreads,
}

// ompLibNames maps exact omp_ library call names to their category
// (spec.md §4.A).
var ompLibNames = map[string]Category{
	"omp_get_thread_num":  CategoryOmpGetThreadNum,
	"omp_set_num_threads": CategoryOmpSetNumThreads,
}

// guardNames recognizes the synthetic external declarations inserted by
// preprocess.MarkGuards (spec.md §4.C, §6).
var guardNames = map[string]Category{
	"omp_get_thread_num_guard_start": CategoryGuardStart,
	"omp_get_thread_num_guard_end":   CategoryGuardEnd,
}

// noEffectPrefixes are intrinsic-call name prefixes with no observable
// effect on memory or concurrency (spec.md §4.A).
var noEffectPrefixes = []string{
	"llvm.dbg.",
	"llvm.lifetime",
	"llvm.stacksave",
	"llvm.stackrestore",
	"llvm.memcpy",
}

// Classify maps a callee function name to its Category. Classification is
// total: an unrecognized name is CategoryOpaqueCall.
func Classify(name string) Category {
	if c, ok := pthreadNames[name]; ok {
		return c
	}
	if c, ok := kmpcNames[name]; ok {
		return c
	}
	if c, ok := ompLibNames[name]; ok {
		return c
	}
	if c, ok := guardNames[name]; ok {
		return c
	}
	for _, p := range noEffectPrefixes {
		if strings.HasPrefix(name, p) {
			return CategoryNoEffect
		}
	}
	return CategoryOpaqueCall
}

// IsKmpcFamily reports whether name matches the __kmpc_ runtime family by
// prefix, regardless of whether a specific mapping exists for it (used to
// detect an unhandled-but-recognized OpenMP call, spec.md §7).
func IsKmpcFamily(name string) bool {
	return strings.HasPrefix(name, "__kmpc_")
}

// IsOmpLibFamily reports whether name matches the omp_ library family by
// prefix.
func IsOmpLibFamily(name string) bool {
	return strings.HasPrefix(name, "omp_")
}

// knownNoEffectOmpCalls lists __kmpc_/omp_ family calls that are
// recognized by family but intentionally have no modeled effect; the
// summarizer drops these without an operation and without the
// unhandled-OpenMP-call warning it logs for other unmapped family calls.
var knownNoEffectOmpCalls = map[string]bool{
	"__kmpc_global_thread_num": true,
	"__kmpc_push_proc_bind":    true,
	"__kmpc_flush":             true,
	"__kmpc_serialized_parallel":   true,
	"__kmpc_end_serialized_parallel": true,
}

// IsKnownNoEffectOmpCall reports whether name is on the asserted-no-effect
// list for OpenMP calls recognized by family but not modeled as a
// distinct rop.Kind.
func IsKnownNoEffectOmpCall(name string) bool {
	return knownNoEffectOmpCalls[name]
}
