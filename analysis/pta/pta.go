// Package pta defines the Pointer-Analysis Interface of spec.md §4.D: the
// contract the trace builder imposes on a points-to service, plus the
// call-site interception and heap-allocation rules that make argument
// flow match pthread/OpenMP runtime semantics. The concrete solver is
// explicitly out of scope (spec.md §1: "only its interface is
// specified"); this package defines Interface and ships a small reference
// implementation used by the trace package's own tests, the same role a
// vendored, partial pointer-analysis solver plays for a test suite that
// can't afford a real one. Follows a NodeID-style node/object vocabulary
// and a call-stack-shaped calling context.
package pta

import (
	"fmt"

	"github.com/RohanKheraCR/OpenRace/analysis/ir"
	"github.com/RohanKheraCR/OpenRace/internal/funcutil"
)

// ObjectID identifies one abstract memory object in the points-to
// universe (spec.md §3, "Points-to Set").
type ObjectID int

// ObjectKind classifies an abstract object by how it was allocated
// (spec.md §4.D, "Heap allocation interception").
type ObjectKind int

const (
	ObjectKindUnknown ObjectKind = iota
	ObjectKindSingle
	ObjectKindBoundedArray
	ObjectKindUnboundedArray
	// ObjectKindTaskStruct and ObjectKindTaskShared model the two
	// abstract objects __kmpc_omp_task_alloc allocates: the task struct
	// itself, and the shared-data object it points to.
	ObjectKindTaskStruct
	ObjectKindTaskShared
)

// Object is one entry of the points-to universe.
type Object struct {
	ID    ObjectID
	Kind  ObjectKind
	Type  ir.Type
	// Points is set for ObjectKindTaskStruct: the shared-data object the
	// task struct contains (spec.md §4.D).
	Points ObjectID
}

// PointsToSet is the set of abstract objects a pointer value may refer to
// in some context.
type PointsToSet map[ObjectID]bool

// Union mutates dst to include every member of src.
func (s PointsToSet) Union(src PointsToSet) {
	for id := range src {
		s[id] = true
	}
}

// Intersects reports whether s and other share at least one object
// (spec.md §4.G: "candidate races iff their points-to sets intersect").
func (s PointsToSet) Intersects(other PointsToSet) bool {
	for id := range s {
		if other[id] {
			return true
		}
	}
	return false
}

// Sorted returns the members of s as a slice in increasing ObjectID
// order, for deterministic report output (spec.md §8, Testable Property
// 1: determinism) — map iteration order is otherwise unspecified.
func (s PointsToSet) Sorted() []ObjectID {
	return funcutil.SetToOrderedSlice(s)
}

// Context is an opaque, context-sensitive calling context. Two contexts
// are the same context iff they compare equal with ==; Interface
// implementations are free to choose their own representation (call
// strings, k-CFA summaries, etc.) as long as ContextEvolve is consistent
// and the concrete type is comparable.
type Context interface {
	fmt.Stringer
}

// CallGraphNode identifies a function in a specific evolved context, the
// unit getDirectNode/getIndirectCallSite operate over (spec.md §4.D).
type CallGraphNode struct {
	Func    *ir.Function
	Context Context
}

// Interface is the contract a pointer analysis must satisfy, as named by
// spec.md §4.D.
type Interface interface {
	// Analyze eagerly builds the call graph and points-to relation rooted
	// at the function named entry.
	Analyze(module *ir.Module, entry string) error

	// GetPointsTo is a context-sensitive query for the abstract objects a
	// pointer value may refer to inside the given calling context.
	GetPointsTo(ctx Context, v ir.Value) PointsToSet

	// GetDirectNode looks up the analysis node for fn invoked directly at
	// a call site that evolves ctx.
	GetDirectNode(ctx Context, fn *ir.Function) *CallGraphNode

	// GetIndirectCallSite returns the set of callees the analysis
	// resolved for an indirect call instruction evaluated in ctx.
	GetIndirectCallSite(ctx Context, instr *ir.Instruction) []*CallGraphNode

	// ContextEvolve returns the context transformation the analysis uses
	// at a call site.
	ContextEvolve(parent Context, site *ir.Instruction) Context

	// Object returns the Object referred to by id.
	Object(id ObjectID) Object
}

// RootContext is the calling context of the program's root function
// (thread 0's entry point).
func RootContext() Context { return contextImpl{key: "root"} }

type contextImpl struct{ key string }

func (c contextImpl) String() string { return c.key }

// NewCallStringContext builds a Context by appending site to parent's
// call string, a CallStack-flavored context evolution using a simple
// string key instead of a *CallNode tree, since this package owns no
// call graph of its own until Analyze runs.
func NewCallStringContext(parent Context, site *ir.Instruction) Context {
	key := parent.String()
	if site != nil {
		key += fmt.Sprintf(">%p", site)
	}
	return contextImpl{key: key}
}
